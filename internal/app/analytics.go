package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/ascent/internal/domain/analytics"
	"github.com/okian/ascent/internal/domain/types"
	"github.com/okian/ascent/pkg/logger"
)

// paceWindowWeeks is the rolling period pace is evaluated over.
const paceWindowWeeks = 12

// summaryConfidence is the confidence level reported in summaries.
const summaryConfidence = 0.95

// WeekScore is one week's completion on the summary timeline.
type WeekScore struct {
	Week       types.WeekKey `json:"week"`
	Completion int           `json:"completion"`
}

// CompletionReport aggregates the weekly completion series.
type CompletionReport struct {
	Mean      float64                  `json:"mean"`
	Median    float64                  `json:"median"`
	StdDev    float64                  `json:"std_dev"`
	Min       float64                  `json:"min"`
	Max       float64                  `json:"max"`
	Direction analytics.TrendDirection `json:"direction"`
	Interval  analytics.Interval       `json:"interval"`
	History   []WeekScore              `json:"history"`
}

// MetricReport aggregates one metric's history.
type MetricReport struct {
	MetricID      string                   `json:"metric_id"`
	Name          string                   `json:"name"`
	Target        float64                  `json:"target"`
	Mean          float64                  `json:"mean"`
	Min           float64                  `json:"min"`
	Max           float64                  `json:"max"`
	Direction     analytics.TrendDirection `json:"direction"`
	Pace          analytics.PaceResult     `json:"pace"`
	CurrentStreak int                      `json:"current_streak"`
	Anomalies     []analytics.Anomaly      `json:"anomalies,omitempty"`
}

// Summary is the full analytics view over one user's history. It is
// advisory and safe to cache: regenerating it from the stored records
// always yields the same result.
type Summary struct {
	UserID     string             `json:"user_id"`
	Weeks      int                `json:"weeks"`
	Completion CompletionReport   `json:"completion"`
	Metrics    []MetricReport     `json:"metrics"`
	Insights   analytics.Insights `json:"insights"`
}

// Summary computes (or serves from cache) the analytics summary for a user.
func (s *Service) Summary(ctx context.Context, userID string) (Summary, error) {
	key := s.summaryKey(userID)
	if s.snapshots != nil {
		var cached Summary
		if hit, err := s.snapshots.Get(ctx, key, &cached); err == nil && hit {
			return cached, nil
		}
	}

	sum, err := s.buildSummary(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	if s.snapshots != nil {
		if err := s.snapshots.Set(ctx, key, sum); err != nil {
			// Cache failures degrade to recompute-on-read.
			s.logger.Warn(ctx, "summary cache write failed",
				logger.String("userID", userID),
				logger.Error(err),
			)
		}
	}
	return sum, nil
}

// Insights returns just the synthesized insight block of the summary.
func (s *Service) Insights(ctx context.Context, userID string) (analytics.Insights, error) {
	sum, err := s.Summary(ctx, userID)
	if err != nil {
		return analytics.Insights{}, err
	}
	return sum.Insights, nil
}

func (s *Service) buildSummary(ctx context.Context, userID string) (Summary, error) {
	records, err := s.store.ListWeeks(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("load weekly records: %w", err)
	}
	defs, err := s.store.ActiveMetrics(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("load metric definitions: %w", err)
	}

	sum := Summary{
		UserID: userID,
		Weeks:  len(records),
	}

	// Completion timeline.
	completionSamples := make([]analytics.Sample, 0, len(records))
	for _, rec := range records {
		score := s.calc.Complete(ctx, rec.Values, defs)
		sum.Completion.History = append(sum.Completion.History, WeekScore{
			Week:       rec.WeekKey,
			Completion: score.Completion,
		})
		completionSamples = append(completionSamples, analytics.Sample{
			Date:  weekStart(rec.WeekKey),
			Value: float64(score.Completion),
		})
	}
	cvals := analytics.Values(completionSamples)
	sum.Completion.Mean = analytics.Mean(cvals)
	sum.Completion.Median = analytics.Median(cvals)
	sum.Completion.StdDev = analytics.StdDev(cvals)
	sum.Completion.Min = analytics.Min(cvals)
	sum.Completion.Max = analytics.Max(cvals)
	sum.Completion.Direction = analytics.Direction(cvals)
	sum.Completion.Interval = analytics.ConfidenceInterval(cvals, summaryConfidence)

	// Per-metric reports and insight input.
	input := analytics.InsightInput{Completion: completionSamples}
	for _, def := range defs {
		samples := metricSamples(records, def.ID)
		vals := analytics.Values(samples)
		pace := metricPace(vals, def.Target)

		report := MetricReport{
			MetricID:  def.ID,
			Name:      def.Name,
			Target:    def.Target,
			Mean:      analytics.Mean(vals),
			Min:       analytics.Min(vals),
			Max:       analytics.Max(vals),
			Direction: analytics.Direction(vals),
			Pace:      pace,
			Anomalies: analytics.DetectAnomalies(samples, 0),
		}
		if streak, ok := analytics.CurrentStreak(samples, def.Target); ok {
			report.CurrentStreak = streak.Length
		}
		sum.Metrics = append(sum.Metrics, report)

		input.Metrics = append(input.Metrics, analytics.MetricSeries{
			ID:      def.ID,
			Name:    def.Name,
			Target:  def.Target,
			Samples: samples,
		})
		input.Paces = append(input.Paces, analytics.MetricPace{
			MetricID:   def.ID,
			MetricName: def.Name,
			Pace:       pace,
		})
	}

	sum.Insights = analytics.Synthesize(input)
	return sum, nil
}

// metricPace evaluates the rolling-period pace for one metric: the sum of
// the recorded values over the last paceWindowWeeks weeks against a linear
// trajectory toward target-per-week times the window.
func metricPace(vals []float64, target float64) analytics.PaceResult {
	elapsed := len(vals)
	if elapsed > paceWindowWeeks {
		vals = vals[elapsed-paceWindowWeeks:]
		elapsed = paceWindowWeeks
	}
	current := 0.0
	for _, v := range vals {
		current += v
	}
	return analytics.Pace(current, target*paceWindowWeeks, float64(elapsed), paceWindowWeeks)
}

// metricSamples extracts one metric's dated series from the records.
// Weeks without a value for the metric are skipped, not zero-filled.
func metricSamples(records []types.WeeklyRecord, metricID string) []analytics.Sample {
	out := make([]analytics.Sample, 0, len(records))
	for _, rec := range records {
		v, ok := rec.Values[metricID]
		if !ok {
			continue
		}
		out = append(out, analytics.Sample{
			Date:  weekStart(rec.WeekKey),
			Value: v,
		})
	}
	return out
}

// weekStart returns the Monday of the ISO week the key names.
func weekStart(k types.WeekKey) time.Time {
	year, week := k.Year(), k.Week()
	if year == 0 || week == 0 {
		return time.Time{}
	}

	// January 4th is always in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	week1Monday := jan4.AddDate(0, 0, 1-weekday)
	return week1Monday.AddDate(0, 0, (week-1)*7)
}

func (s *Service) summaryKey(userID string) string {
	if s.snapshots == nil {
		return ""
	}
	return s.snapshots.Key("summary", userID)
}

func (s *Service) invalidateSummary(ctx context.Context, userID string) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Invalidate(ctx, s.summaryKey(userID)); err != nil {
		s.logger.Warn(ctx, "summary cache invalidation failed",
			logger.String("userID", userID),
			logger.Error(err),
		)
	}
}

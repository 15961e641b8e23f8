// Package replay rebuilds rank history deterministically from weekly records.
package replay

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/ascent/internal/domain/completion"
	"github.com/okian/ascent/internal/domain/rank"
	"github.com/okian/ascent/internal/domain/types"
	"github.com/okian/ascent/pkg/logger"
	"github.com/okian/ascent/pkg/metrics"
)

// WeeklySource lists the full weekly record history for a user.
type WeeklySource interface {
	ListWeeks(ctx context.Context, userID string) ([]types.WeeklyRecord, error)
}

// MetricSource returns the active metric definitions for a user.
type MetricSource interface {
	ActiveMetrics(ctx context.Context, userID string) ([]types.MetricDefinition, error)
}

// StateStore commits a regenerated state and its event log in one shot.
// Implementations must make the clear-and-rewrite atomic from the caller's
// perspective (a transaction, or a lock over the in-memory swap).
type StateStore interface {
	CommitRegeneration(ctx context.Context, state types.RankState, events []types.RankChangeEvent) error
}

// Merger overlays supplemental per-week values onto the recorded map.
// Supplemental values override recorded values on metric id collision.
type Merger interface {
	Merge(ctx context.Context, userID string, week types.WeekKey, base map[string]float64) (map[string]float64, error)
}

// Result summarizes one regeneration run.
type Result struct {
	State          types.RankState
	Events         []types.RankChangeEvent
	WeeksProcessed int // weeks that advanced the replay
	WeeksEmpty     int // skipped: empty merged value map
	WeeksZero      int // skipped: computed completion was exactly zero
	Duplicates     int // records dropped by weekKey dedupe
}

// Regenerator replays the rank engine over a user's entire weekly history.
// Runs are single-flight per user and deterministic given unchanged input.
type Regenerator struct {
	weekly  WeeklySource
	metrics MetricSource
	store   StateStore
	merger  Merger
	calc    completion.Calculator
	engine  *rank.Engine
	logger  logger.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewRegenerator creates a regenerator with configuration options.
func NewRegenerator(weekly WeeklySource, metricSource MetricSource, store StateStore, opts ...Option) *Regenerator {
	r := &Regenerator{
		weekly:   weekly,
		metrics:  metricSource,
		store:    store,
		calc:     completion.NewStandardCalculator(),
		engine:   rank.NewEngine(), // replay is always the deterministic base
		inFlight: make(map[string]struct{}),
		logger:   logger.Get().Named("replay"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Regenerate rebuilds the user's RankState and RankChangeEvent log from
// scratch and commits the result atomically. A second call for the same user
// while one is in progress fails with ErrRegenerationInProgress. Cancellation
// between week-steps leaves the previously persisted state untouched.
func (r *Regenerator) Regenerate(ctx context.Context, userID string) (Result, error) {
	if !r.acquire(userID) {
		return Result{}, fmt.Errorf("%w: user %s", ErrRegenerationInProgress, userID)
	}
	defer r.release(userID)

	defs, err := r.metrics.ActiveMetrics(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("load metric definitions: %w", err)
	}
	if len(defs) == 0 {
		return Result{}, fmt.Errorf("%w: user %s", rank.ErrNoActiveMetrics, userID)
	}

	records, err := r.weekly.ListWeeks(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("load weekly records: %w", err)
	}

	res, err := r.replay(ctx, userID, defs, records)
	if err != nil {
		return Result{}, err
	}

	if err := r.store.CommitRegeneration(ctx, res.State, res.Events); err != nil {
		return Result{}, fmt.Errorf("commit regeneration: %w", err)
	}

	metrics.RecordRegeneration()
	metrics.RecordWeeksReplayed(res.WeeksProcessed)
	r.logger.Info(ctx, "regenerated rank history",
		logger.String("userID", userID),
		logger.Int("processed", res.WeeksProcessed),
		logger.Int("emptyWeeks", res.WeeksEmpty),
		logger.Int("zeroWeeks", res.WeeksZero),
		logger.Int("tierChanges", len(res.Events)),
	)
	return res, nil
}

// replay is the pure fold: dedupe, merge, skip, step.
func (r *Regenerator) replay(ctx context.Context, userID string, defs []types.MetricDefinition, records []types.WeeklyRecord) (Result, error) {
	deduped, dropped := dedupeByWeek(records)

	res := Result{
		State:      rank.NewState(userID),
		Duplicates: dropped,
	}

	for _, rec := range deduped {
		// Cooperative cancellation between week-steps.
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("regeneration cancelled: %w", err)
		}

		values, err := r.mergedValues(ctx, userID, rec)
		if err != nil {
			return Result{}, err
		}
		if len(values) == 0 {
			res.WeeksEmpty++
			continue
		}

		score := r.calc.Complete(ctx, values, defs)
		// Zero-completion weeks do not advance the replay. This also drops
		// genuinely zero-effort weeks; kept as-is pending product review.
		if score.Completion == 0 {
			res.WeeksZero++
			continue
		}

		before := res.State
		next, assessment := r.engine.Step(before, rec.WeekKey, score.Completion, rec.UpdatedAt)
		if assessment.TierChanged() {
			event := rank.NewChangeEvent(userID, before, assessment, rec.UpdatedAt)
			event.ID = rank.DeterministicEventID(userID, rec.WeekKey)
			res.Events = append(res.Events, event)
		}
		res.State = next
		res.WeeksProcessed++
	}
	return res, nil
}

func (r *Regenerator) mergedValues(ctx context.Context, userID string, rec types.WeeklyRecord) (map[string]float64, error) {
	if r.merger == nil {
		return rec.Values, nil
	}
	merged, err := r.merger.Merge(ctx, userID, rec.WeekKey, rec.Values)
	if err != nil {
		return nil, fmt.Errorf("merge supplemental values for %s: %w", rec.WeekKey, err)
	}
	return merged, nil
}

// dedupeByWeek keeps the most-recently-updated record per weekKey and
// returns the survivors in ascending weekKey order.
func dedupeByWeek(records []types.WeeklyRecord) ([]types.WeeklyRecord, int) {
	best := make(map[types.WeekKey]types.WeeklyRecord, len(records))
	dropped := 0
	for _, rec := range records {
		cur, ok := best[rec.WeekKey]
		if !ok {
			best[rec.WeekKey] = rec
			continue
		}
		dropped++
		if rec.UpdatedAt.After(cur.UpdatedAt) {
			best[rec.WeekKey] = rec
		}
	}

	out := make([]types.WeeklyRecord, 0, len(best))
	for _, rec := range best {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekKey.Before(out[j].WeekKey) })
	return out, dropped
}

func (r *Regenerator) acquire(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inFlight[userID]; busy {
		return false
	}
	r.inFlight[userID] = struct{}{}
	return true
}

func (r *Regenerator) release(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, userID)
}

package replay_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	replay "github.com/okian/ascent/internal/domain/replay"
	types "github.com/okian/ascent/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeWeekly serves canned records and can block to simulate a slow store.
type fakeWeekly struct {
	records []types.WeeklyRecord
	block   chan struct{} // when non-nil, ListWeeks waits on it
}

func (f *fakeWeekly) ListWeeks(ctx context.Context, _ string) ([]types.WeeklyRecord, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.records, nil
}

type fakeMetrics struct {
	defs []types.MetricDefinition
}

func (f *fakeMetrics) ActiveMetrics(_ context.Context, _ string) ([]types.MetricDefinition, error) {
	return f.defs, nil
}

type fakeStore struct {
	mu      sync.Mutex
	commits int
	state   types.RankState
	events  []types.RankChangeEvent
}

func (f *fakeStore) CommitRegeneration(_ context.Context, state types.RankState, events []types.RankChangeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits++
	f.state = state
	f.events = events
	return nil
}

func week(key types.WeekKey, updated time.Time, values map[string]float64) types.WeeklyRecord {
	return types.WeeklyRecord{WeekKey: key, Values: values, CreatedAt: updated, UpdatedAt: updated}
}

func normalMetric(id string, target float64) types.MetricDefinition {
	return types.MetricDefinition{ID: id, Name: id, Target: target, Mode: types.ModeNormal, Active: true}
}

func TestRegenerator_Regenerate(t *testing.T) {
	Convey("Given a history with an empty middle week", t, func() {
		base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
		weekly := &fakeWeekly{records: []types.WeeklyRecord{
			week("2025-W01", base, map[string]float64{"m1": 6}),           // 60%
			week("2025-W02", base.AddDate(0, 0, 7), map[string]float64{}), // empty
			week("2025-W03", base.AddDate(0, 0, 14), map[string]float64{"m1": 9}), // 90%
		}}
		metricSrc := &fakeMetrics{defs: []types.MetricDefinition{normalMetric("m1", 10)}}
		store := &fakeStore{}
		regen := replay.NewRegenerator(weekly, metricSrc, store)

		Convey("When regenerating", func() {
			res, err := regen.Regenerate(context.Background(), "user-1")
			So(err, ShouldBeNil)

			Convey("Then exactly two weeks advance the replay", func() {
				So(res.WeeksProcessed, ShouldEqual, 2)
				So(res.WeeksEmpty, ShouldEqual, 1)

				// Manual two-step: 100 +15 (60%) +35 (90%) = 150.
				So(res.State.Points, ShouldEqual, 150)
				So(res.State.Tier, ShouldEqual, types.TierBronze)
				So(res.State.WeeksAssessed, ShouldEqual, 2)
				So(res.Events, ShouldBeEmpty)
			})

			Convey("And the result was committed once", func() {
				So(store.commits, ShouldEqual, 1)
				So(store.state.Points, ShouldEqual, 150)
			})
		})

		Convey("When regenerating twice from unchanged input", func() {
			first, err := regen.Regenerate(context.Background(), "user-1")
			So(err, ShouldBeNil)
			second, err := regen.Regenerate(context.Background(), "user-1")
			So(err, ShouldBeNil)

			Convey("Then the runs are identical", func() {
				So(second.State, ShouldResemble, first.State)
				So(second.Events, ShouldResemble, first.Events)
			})
		})
	})

	Convey("Given a history with a zero-completion week", t, func() {
		base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
		weekly := &fakeWeekly{records: []types.WeeklyRecord{
			week("2025-W01", base, map[string]float64{"m1": 6}),                   // 60%
			week("2025-W02", base.AddDate(0, 0, 7), map[string]float64{"m1": 0}),  // 0%
			week("2025-W03", base.AddDate(0, 0, 14), map[string]float64{"m1": 9}), // 90%
		}}
		metricSrc := &fakeMetrics{defs: []types.MetricDefinition{normalMetric("m1", 10)}}
		store := &fakeStore{}
		regen := replay.NewRegenerator(weekly, metricSrc, store)

		Convey("When regenerating", func() {
			res, err := regen.Regenerate(context.Background(), "user-1")
			So(err, ShouldBeNil)

			Convey("Then the zero week is counted but does not advance the replay", func() {
				So(res.WeeksZero, ShouldEqual, 1)
				So(res.WeeksEmpty, ShouldEqual, 0)
				So(res.WeeksProcessed, ShouldEqual, 2)

				// Same fold as if W02 were absent: 100 +15 (60%) +35 (90%).
				So(res.State.Points, ShouldEqual, 150)
				So(res.State.WeeksAssessed, ShouldEqual, 2)
				So(res.State.CurrentStreak, ShouldEqual, 2)
			})
		})
	})

	Convey("Given duplicate records for the same week", t, func() {
		base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
		weekly := &fakeWeekly{records: []types.WeeklyRecord{
			week("2025-W01", base, map[string]float64{"m1": 2}),
			week("2025-W01", base.Add(time.Hour), map[string]float64{"m1": 10}), // newer wins
		}}
		metricSrc := &fakeMetrics{defs: []types.MetricDefinition{normalMetric("m1", 10)}}
		store := &fakeStore{}
		regen := replay.NewRegenerator(weekly, metricSrc, store)

		res, err := regen.Regenerate(context.Background(), "user-1")
		So(err, ShouldBeNil)

		Convey("Then the most-recently-updated record wins", func() {
			So(res.Duplicates, ShouldEqual, 1)
			So(res.WeeksProcessed, ShouldEqual, 1)
			So(res.State.Points, ShouldEqual, 150) // 100 + 50 for the 100% week
		})
	})

	Convey("Given enough perfect weeks to cross a tier band", t, func() {
		base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
		var records []types.WeeklyRecord
		for i := 1; i <= 8; i++ {
			key := types.WeekKey(fmt.Sprintf("2025-W%02d", i))
			records = append(records, week(key, base.AddDate(0, 0, 7*i), map[string]float64{"m1": 10}))
		}
		weekly := &fakeWeekly{records: records}
		metricSrc := &fakeMetrics{defs: []types.MetricDefinition{normalMetric("m1", 10)}}
		store := &fakeStore{}
		regen := replay.NewRegenerator(weekly, metricSrc, store)

		first, err := regen.Regenerate(context.Background(), "user-1")
		So(err, ShouldBeNil)

		Convey("Then a tier-change event is logged with a stable ID", func() {
			// 100 + 8x50 = 500: bronze -> silver on the final week.
			So(first.State.Points, ShouldEqual, 500)
			So(first.State.Tier, ShouldEqual, types.TierSilver)
			So(first.Events, ShouldHaveLength, 1)
			So(first.Events[0].FromTier, ShouldEqual, types.TierBronze)
			So(first.Events[0].ToTier, ShouldEqual, types.TierSilver)
			So(first.Events[0].WeekKey, ShouldEqual, types.WeekKey("2025-W08"))

			second, err := regen.Regenerate(context.Background(), "user-1")
			So(err, ShouldBeNil)
			So(second.Events[0].ID, ShouldEqual, first.Events[0].ID)
		})
	})

	Convey("Given no active metrics", t, func() {
		weekly := &fakeWeekly{}
		store := &fakeStore{}
		regen := replay.NewRegenerator(weekly, &fakeMetrics{}, store)

		_, err := regen.Regenerate(context.Background(), "user-1")

		Convey("Then regeneration fails without touching the store", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "no active metrics")
			So(store.commits, ShouldEqual, 0)
		})
	})

	Convey("Given a regeneration already in flight", t, func() {
		gate := make(chan struct{})
		weekly := &fakeWeekly{block: gate}
		metricSrc := &fakeMetrics{defs: []types.MetricDefinition{normalMetric("m1", 10)}}
		store := &fakeStore{}
		regen := replay.NewRegenerator(weekly, metricSrc, store)

		done := make(chan error, 1)
		go func() {
			_, err := regen.Regenerate(context.Background(), "user-1")
			done <- err
		}()

		// Wait for the first run to park inside ListWeeks.
		time.Sleep(50 * time.Millisecond)

		Convey("When a second regeneration starts for the same user", func() {
			_, err := regen.Regenerate(context.Background(), "user-1")

			Convey("Then it is rejected with a concurrency error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "already in progress")
			})

			close(gate)
			So(<-done, ShouldBeNil)
		})
	})

	Convey("Given a cancelled context", t, func() {
		base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
		weekly := &fakeWeekly{records: []types.WeeklyRecord{
			week("2025-W01", base, map[string]float64{"m1": 10}),
		}}
		metricSrc := &fakeMetrics{defs: []types.MetricDefinition{normalMetric("m1", 10)}}
		store := &fakeStore{}
		regen := replay.NewRegenerator(weekly, metricSrc, store)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := regen.Regenerate(ctx, "user-1")

		Convey("Then the run aborts and nothing is committed", func() {
			So(err, ShouldNotBeNil)
			So(store.commits, ShouldEqual, 0)
		})
	})
}

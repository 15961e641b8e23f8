package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/ascent/internal/adapters/repository"
	"github.com/okian/ascent/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func metricDef(id string, target float64, active bool) types.MetricDefinition {
	return types.MetricDefinition{
		ID:     id,
		Name:   id,
		Target: target,
		Mode:   types.ModeNormal,
		Active: active,
	}
}

func TestMemoryStoreMetrics(t *testing.T) {
	Convey("Given an empty memory store", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()

		Convey("When upserting metric definitions", func() {
			So(store.UpsertMetric(ctx, "u1", metricDef("b-metric", 10, true)), ShouldBeNil)
			So(store.UpsertMetric(ctx, "u1", metricDef("a-metric", 5, false)), ShouldBeNil)

			Convey("Then ListMetrics returns them ordered by id", func() {
				defs, err := store.ListMetrics(ctx, "u1")
				So(err, ShouldBeNil)
				So(defs, ShouldHaveLength, 2)
				So(defs[0].ID, ShouldEqual, "a-metric")
				So(defs[1].ID, ShouldEqual, "b-metric")
			})

			Convey("Then ActiveMetrics filters inactive ones", func() {
				defs, err := store.ActiveMetrics(ctx, "u1")
				So(err, ShouldBeNil)
				So(defs, ShouldHaveLength, 1)
				So(defs[0].ID, ShouldEqual, "b-metric")
			})

			Convey("Then GetMetric finds one and misses another", func() {
				def, err := store.GetMetric(ctx, "u1", "a-metric")
				So(err, ShouldBeNil)
				So(def.Target, ShouldEqual, 5)

				_, err = store.GetMetric(ctx, "u1", "missing")
				So(err, ShouldWrap, repository.ErrNotFound)
			})

			Convey("And upserting again replaces in place", func() {
				updated := metricDef("b-metric", 20, true)
				So(store.UpsertMetric(ctx, "u1", updated), ShouldBeNil)
				def, err := store.GetMetric(ctx, "u1", "b-metric")
				So(err, ShouldBeNil)
				So(def.Target, ShouldEqual, 20)
			})
		})

		Convey("When upserting a definition without an id", func() {
			err := store.UpsertMetric(ctx, "u1", types.MetricDefinition{Name: "nameless"})
			So(err, ShouldWrap, repository.ErrInvalidMetric)
		})

		Convey("Then users are isolated from each other", func() {
			So(store.UpsertMetric(ctx, "u1", metricDef("m", 10, true)), ShouldBeNil)
			defs, err := store.ListMetrics(ctx, "u2")
			So(err, ShouldBeNil)
			So(defs, ShouldBeEmpty)
		})
	})
}

func TestMemoryStoreWeeks(t *testing.T) {
	Convey("Given a memory store with weekly records", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

		rec := types.WeeklyRecord{
			WeekKey:   types.WeekKey("2025-W09"),
			Values:    map[string]float64{"m1": 7},
			CreatedAt: now,
			UpdatedAt: now,
		}
		So(store.PutWeek(ctx, "u1", rec), ShouldBeNil)

		Convey("Then GetWeek returns an isolated copy", func() {
			got, err := store.GetWeek(ctx, "u1", rec.WeekKey)
			So(err, ShouldBeNil)
			got.Values["m1"] = 999

			again, err := store.GetWeek(ctx, "u1", rec.WeekKey)
			So(err, ShouldBeNil)
			So(again.Values["m1"], ShouldEqual, 7)
		})

		Convey("Then PutWeek for the same week replaces the record", func() {
			update := rec.Clone()
			update.Values["m1"] = 9
			update.UpdatedAt = now.Add(time.Hour)
			So(store.PutWeek(ctx, "u1", update), ShouldBeNil)

			weeks, err := store.ListWeeks(ctx, "u1")
			So(err, ShouldBeNil)
			So(weeks, ShouldHaveLength, 1)
			So(weeks[0].Values["m1"], ShouldEqual, 9)
		})

		Convey("Then ListWeeks is ordered by week key", func() {
			early := rec.Clone()
			early.WeekKey = types.WeekKey("2025-W02")
			So(store.PutWeek(ctx, "u1", early), ShouldBeNil)

			weeks, err := store.ListWeeks(ctx, "u1")
			So(err, ShouldBeNil)
			So(weeks, ShouldHaveLength, 2)
			So(weeks[0].WeekKey, ShouldEqual, types.WeekKey("2025-W02"))
			So(weeks[1].WeekKey, ShouldEqual, types.WeekKey("2025-W09"))
		})

		Convey("Then an invalid week key is rejected", func() {
			bad := rec.Clone()
			bad.WeekKey = types.WeekKey("2025-09")
			So(store.PutWeek(ctx, "u1", bad), ShouldWrap, types.ErrInvalidWeekKey)
		})

		Convey("Then a missing week reports not found", func() {
			_, err := store.GetWeek(ctx, "u1", types.WeekKey("2025-W50"))
			So(err, ShouldWrap, repository.ErrNotFound)
		})
	})
}

func TestMemoryStoreRankState(t *testing.T) {
	Convey("Given a memory store with rank state", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()

		state := types.RankState{UserID: "u1", Tier: types.TierSilver, Points: 600}
		So(store.SetState(ctx, state), ShouldBeNil)

		Convey("Then GetState round-trips and Count reflects users", func() {
			got, err := store.GetState(ctx, "u1")
			So(err, ShouldBeNil)
			So(got, ShouldResemble, state)
			So(store.Count(ctx), ShouldEqual, 1)
		})

		Convey("Then an unseen user reports not found", func() {
			_, err := store.GetState(ctx, "ghost")
			So(err, ShouldWrap, repository.ErrNotFound)
		})

		Convey("When events are appended out of order", func() {
			late := types.RankChangeEvent{ID: "e2", UserID: "u1", WeekKey: types.WeekKey("2025-W10")}
			early := types.RankChangeEvent{ID: "e1", UserID: "u1", WeekKey: types.WeekKey("2025-W03")}
			So(store.AppendEvent(ctx, late), ShouldBeNil)
			So(store.AppendEvent(ctx, early), ShouldBeNil)

			Convey("Then ListEvents sorts by week key", func() {
				events, err := store.ListEvents(ctx, "u1")
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 2)
				So(events[0].ID, ShouldEqual, "e1")
				So(events[1].ID, ShouldEqual, "e2")
			})
		})

		Convey("When an assessment commits with a tier change event", func() {
			newState := types.RankState{UserID: "u1", Tier: types.TierGold, Points: 1000}
			event := types.RankChangeEvent{ID: "e3", UserID: "u1", WeekKey: types.WeekKey("2025-W12")}
			So(store.CommitAssessment(ctx, newState, &event), ShouldBeNil)

			Convey("Then the state and the event both land", func() {
				got, err := store.GetState(ctx, "u1")
				So(err, ShouldBeNil)
				So(got, ShouldResemble, newState)

				events, err := store.ListEvents(ctx, "u1")
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 1)
				So(events[0].ID, ShouldEqual, "e3")
			})
		})

		Convey("When an assessment commits without an event", func() {
			newState := types.RankState{UserID: "u1", Tier: types.TierSilver, Points: 650}
			So(store.CommitAssessment(ctx, newState, nil), ShouldBeNil)

			Convey("Then only the state moves", func() {
				got, err := store.GetState(ctx, "u1")
				So(err, ShouldBeNil)
				So(got.Points, ShouldEqual, 650)

				events, err := store.ListEvents(ctx, "u1")
				So(err, ShouldBeNil)
				So(events, ShouldBeEmpty)
			})
		})

		Convey("When a regeneration commits", func() {
			So(store.AppendEvent(ctx, types.RankChangeEvent{ID: "stale", UserID: "u1", WeekKey: types.WeekKey("2025-W01")}), ShouldBeNil)

			newState := types.RankState{UserID: "u1", Tier: types.TierGold, Points: 1100}
			newEvents := []types.RankChangeEvent{
				{ID: "r1", UserID: "u1", WeekKey: types.WeekKey("2025-W05")},
			}
			So(store.CommitRegeneration(ctx, newState, newEvents), ShouldBeNil)

			Convey("Then the state and event log are fully replaced", func() {
				got, err := store.GetState(ctx, "u1")
				So(err, ShouldBeNil)
				So(got, ShouldResemble, newState)

				events, err := store.ListEvents(ctx, "u1")
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 1)
				So(events[0].ID, ShouldEqual, "r1")
			})
		})
	})
}

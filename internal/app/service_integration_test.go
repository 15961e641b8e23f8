package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	service "github.com/okian/ascent/internal/app"
	"github.com/okian/ascent/internal/adapters/supplemental"
	"github.com/okian/ascent/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

// waitForWeeks polls until the user's rank state reports the expected
// number of assessed weeks, or the deadline passes.
func waitForWeeks(ctx context.Context, svc *service.Service, userID string, weeks int, deadline time.Duration) bool {
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		if state, err := svc.GetState(ctx, userID); err == nil && state.WeeksAssessed >= weeks {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a running service with active metrics", t, func() {
		svc := service.New(
			service.WithWorkerCount(2),
			service.WithQueueSize(1000),
			service.WithDedupeSize(500),
			service.WithGamification(false),
		)
		defer svc.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		So(svc.Start(ctx), ShouldBeNil)

		for _, user := range []string{"athlete-1", "athlete-2"} {
			_, err := svc.UpsertMetric(ctx, user, types.MetricDefinition{
				ID: "hours", Name: "Deep work hours", Target: 10,
				Mode: types.ModeNormal, Active: true,
			})
			So(err, ShouldBeNil)
		}

		Convey("When submitting weekly values through the queue", func() {
			subs := []types.WeeklySubmission{
				{SubmissionID: "sub-1", UserID: "athlete-1", WeekKey: weekN(1), Values: map[string]float64{"hours": 10}},
				{SubmissionID: "sub-2", UserID: "athlete-2", WeekKey: weekN(1), Values: map[string]float64{"hours": 5}},
				{SubmissionID: "sub-3", UserID: "athlete-1", WeekKey: weekN(2), Values: map[string]float64{"hours": 8}},
			}
			for _, sub := range subs {
				_, err := svc.SubmitWeek(ctx, sub)
				So(err, ShouldBeNil)
			}

			So(waitForWeeks(ctx, svc, "athlete-1", 2, 5*time.Second), ShouldBeTrue)
			So(waitForWeeks(ctx, svc, "athlete-2", 1, 5*time.Second), ShouldBeTrue)

			Convey("Then the rank states reflect both weeks", func() {
				state, err := svc.GetState(ctx, "athlete-1")
				So(err, ShouldBeNil)
				// +50 for the perfect week, +35 for the 80% week.
				So(state.Points, ShouldEqual, 185)
				So(state.CurrentStreak, ShouldEqual, 2)
			})

			Convey("And the leaderboard orders the users", func() {
				entries, err := svc.TopN(ctx, 10)
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 2)
				So(entries[0].UserID, ShouldEqual, "athlete-1")
				for i := 1; i < len(entries); i++ {
					So(entries[i-1].Points, ShouldBeGreaterThanOrEqualTo, entries[i].Points)
				}
			})

			Convey("And resubmitting a processed id changes nothing", func() {
				dup, err := svc.SubmitWeek(ctx, subs[0])
				So(err, ShouldBeNil)
				So(dup, ShouldBeTrue)
				time.Sleep(100 * time.Millisecond)

				state, err := svc.GetState(ctx, "athlete-1")
				So(err, ShouldBeNil)
				So(state.WeeksAssessed, ShouldEqual, 2)
			})
		})

		Convey("When handling a burst of submissions", func() {
			const weeks = 20
			for w := 1; w <= weeks; w++ {
				_, err := svc.SubmitWeek(ctx, types.WeeklySubmission{
					SubmissionID: fmt.Sprintf("bulk-%d", w),
					UserID:       "athlete-1",
					WeekKey:      weekN(w),
					Values:       map[string]float64{"hours": 10},
				})
				So(err, ShouldBeNil)
			}

			Convey("Then every week is eventually assessed", func() {
				So(waitForWeeks(ctx, svc, "athlete-1", weeks, 10*time.Second), ShouldBeTrue)

				state, err := svc.GetState(ctx, "athlete-1")
				So(err, ShouldBeNil)
				So(state.WeeksAssessed, ShouldEqual, weeks)
				So(state.Points, ShouldBeGreaterThan, 500)
			})
		})
	})
}

func TestServiceIntegration_RegenerateWithSupplemental(t *testing.T) {
	Convey("Given a service with a supplemental wearable source", t, func() {
		wearable := supplemental.NewMapSource("wearable")
		registry := supplemental.NewRegistry(wearable)

		svc := service.New(
			service.WithWorkerCount(1),
			service.WithGamification(false),
			service.WithMerger(registry),
		)
		defer svc.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)

		_, err := svc.UpsertMetric(ctx, "u1", types.MetricDefinition{
			ID: "hours", Name: "Deep work hours", Target: 10,
			Mode: types.ModeNormal, Active: true,
		})
		So(err, ShouldBeNil)

		// Live path records a weak week; the wearable later reports it was
		// actually a perfect one.
		So(svc.Assess(ctx, types.WeeklySubmission{
			SubmissionID: "s1", UserID: "u1", WeekKey: weekN(1),
			Values: map[string]float64{"hours": 2}, TS: time.Now(),
		}), ShouldBeNil)
		wearable.Put("u1", weekN(1), map[string]float64{"hours": 10})

		Convey("When regenerating history", func() {
			res, err := svc.Regenerate(ctx, "u1")

			Convey("Then the supplemental value overrides the recorded one", func() {
				So(err, ShouldBeNil)
				// Replayed as a perfect week: 100 + 50 instead of 100 - 30.
				So(res.State.Points, ShouldEqual, 150)
				So(res.WeeksProcessed, ShouldEqual, 1)
			})

			Convey("And the leaderboard picks up the regenerated points", func() {
				entry, err := svc.Rank(ctx, "u1")
				So(err, ShouldBeNil)
				So(entry.Points, ShouldEqual, 150)
			})
		})
	})
}

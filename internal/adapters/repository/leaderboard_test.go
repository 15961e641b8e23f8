package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/ascent/internal/adapters/repository"
	"github.com/okian/ascent/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func newBoard(ctx context.Context) *repository.TreapBoard {
	return repository.NewTreapBoard(ctx,
		repository.WithSnapshotInterval(10*time.Millisecond),
		repository.WithTopCacheSize(10),
	)
}

func TestTreapBoardUpdateAndTopN(t *testing.T) {
	Convey("Given a leaderboard with a few users", t, func() {
		ctx := context.Background()
		board := newBoard(ctx)
		defer func() { So(board.Close(), ShouldBeNil) }()

		So(board.Update(ctx, "alice", types.TierGold, 1200), ShouldBeNil)
		So(board.Update(ctx, "bob", types.TierSilver, 700), ShouldBeNil)
		So(board.Update(ctx, "carol", types.TierBronze, 300), ShouldBeNil)

		Convey("Then TopN returns points-descending entries with ranks", func() {
			top, err := board.TopN(ctx, 10)
			So(err, ShouldBeNil)
			So(top, ShouldHaveLength, 3)
			So(top[0].UserID, ShouldEqual, "alice")
			So(top[0].Rank, ShouldEqual, 1)
			So(top[0].Tier, ShouldEqual, "gold")
			So(top[1].UserID, ShouldEqual, "bob")
			So(top[2].UserID, ShouldEqual, "carol")
		})

		Convey("Then TopN truncates at the limit", func() {
			top, err := board.TopN(ctx, 2)
			So(err, ShouldBeNil)
			So(top, ShouldHaveLength, 2)
		})

		Convey("Then a non-positive limit is rejected", func() {
			_, err := board.TopN(ctx, 0)
			So(err, ShouldWrap, repository.ErrInvalidLimit)
		})

		Convey("When points drop after a losing streak", func() {
			So(board.Update(ctx, "alice", types.TierSilver, 600), ShouldBeNil)

			Convey("Then the ordering follows the new points", func() {
				top, err := board.TopN(ctx, 10)
				So(err, ShouldBeNil)
				So(top[0].UserID, ShouldEqual, "bob")
				So(top[1].UserID, ShouldEqual, "alice")
				So(top[1].Points, ShouldEqual, 600)
				So(top[1].Tier, ShouldEqual, "silver")
			})
		})

		Convey("Then Count tracks distinct users", func() {
			So(board.Count(ctx), ShouldEqual, 3)
			So(board.Update(ctx, "alice", types.TierGold, 1200), ShouldBeNil)
			So(board.Count(ctx), ShouldEqual, 3)
		})
	})
}

func TestTreapBoardRank(t *testing.T) {
	Convey("Given users with tied points", t, func() {
		ctx := context.Background()
		board := newBoard(ctx)
		defer func() { So(board.Close(), ShouldBeNil) }()

		So(board.Update(ctx, "bob", types.TierSilver, 800), ShouldBeNil)
		So(board.Update(ctx, "alice", types.TierSilver, 800), ShouldBeNil)
		So(board.Update(ctx, "carol", types.TierBronze, 200), ShouldBeNil)

		Convey("Then tied users share a rank", func() {
			a, err := board.Rank(ctx, "alice")
			So(err, ShouldBeNil)
			b, err := board.Rank(ctx, "bob")
			So(err, ShouldBeNil)
			So(a.Rank, ShouldEqual, 1)
			So(b.Rank, ShouldEqual, 1)
		})

		Convey("Then the next distinct score takes the next rank", func() {
			c, err := board.Rank(ctx, "carol")
			So(err, ShouldBeNil)
			So(c.Rank, ShouldEqual, 2)
		})

		Convey("Then an unknown user reports not found", func() {
			_, err := board.Rank(ctx, "ghost")
			So(err, ShouldWrap, repository.ErrNotFound)
		})
	})
}

func TestTreapBoardSnapshot(t *testing.T) {
	Convey("Given a board with a short snapshot interval", t, func() {
		ctx := context.Background()
		board := newBoard(ctx)
		defer func() { So(board.Close(), ShouldBeNil) }()

		So(board.Update(ctx, "alice", types.TierGold, 1200), ShouldBeNil)
		So(board.Update(ctx, "bob", types.TierSilver, 700), ShouldBeNil)

		Convey("Then a snapshot is eventually published", func() {
			var snap *repository.Snapshot
			for i := 0; i < 100; i++ {
				if snap = board.LatestSnapshot(); snap != nil {
					break
				}
				time.Sleep(5 * time.Millisecond)
			}
			So(snap, ShouldNotBeNil)
			So(snap.RankByUser["alice"], ShouldEqual, 1)
			So(snap.PointsByUser["bob"], ShouldEqual, 700)
			So(len(snap.TopCache), ShouldEqual, 2)
		})
	})
}

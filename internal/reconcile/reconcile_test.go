package reconcile_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/rankforge/internal/domain/model"
	"github.com/okian/rankforge/internal/reconcile"
	"github.com/okian/rankforge/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

type fakeStore struct {
	rankWrites     []int
	peakWrites     []int
	historyEntries []*model.RankHistoryEntry
}

func (f *fakeStore) UpdateRank(_ context.Context, _ int64, _ model.Mode, rank int) error {
	f.rankWrites = append(f.rankWrites, rank)
	return nil
}

func (f *fakeStore) UpdatePeakRank(_ context.Context, _ int64, _ model.Mode, rank int) error {
	f.peakWrites = append(f.peakWrites, rank)
	return nil
}

func (f *fakeStore) InsertRankHistory(_ context.Context, entry *model.RankHistoryEntry) error {
	f.historyEntries = append(f.historyEntries, entry)
	return nil
}

type fakeCache struct {
	ranks   map[int64]int
	count   int64
	updates int
	legacy  int
}

func (f *fakeCache) GlobalRank(_ context.Context, userID int64, _ model.Mode) (int, error) {
	return f.ranks[userID], nil
}

func (f *fakeCache) Count(_ context.Context, _ model.Mode) (int64, error) {
	return f.count, nil
}

func (f *fakeCache) Update(_ context.Context, _ *model.UserStats, _ string) error {
	f.updates++
	return nil
}

func (f *fakeCache) UpdateLegacy(_ context.Context, _ *model.UserStats) error {
	f.legacy++
	return nil
}

type fakeSource struct {
	users []*model.User
	stats map[int64][]*model.UserStats
}

func (f *fakeSource) FetchUsersPage(_ context.Context, offset, limit int) ([]*model.User, error) {
	if offset >= len(f.users) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.users) {
		end = len(f.users)
	}
	return f.users[offset:end], nil
}

func (f *fakeSource) FetchAllStats(_ context.Context, userID int64) ([]*model.UserStats, error) {
	return f.stats[userID], nil
}

func TestReconcile(t *testing.T) {
	Convey("Given a reconciler over fakes", t, func() {
		store := &fakeStore{}
		cache := &fakeCache{ranks: map[int64]int{1: 10}}
		r := reconcile.New(store, cache)

		Convey("When the stored rank already matches the cache", func() {
			stats := &model.UserStats{UserID: 1, Mode: model.ModeOsu, Rank: 10, PeakRank: 5}
			So(r.Reconcile(context.Background(), stats, "US"), ShouldBeNil)

			Convey("Then no update and no history entry are issued", func() {
				So(store.rankWrites, ShouldBeEmpty)
				So(store.historyEntries, ShouldBeEmpty)
			})
		})

		Convey("When the stored rank drifted from the cache", func() {
			stats := &model.UserStats{UserID: 1, Mode: model.ModeOsu, Rank: 50, PeakRank: 5}
			So(r.Reconcile(context.Background(), stats, "US"), ShouldBeNil)

			Convey("Then exactly one correction and one history entry land", func() {
				So(store.rankWrites, ShouldResemble, []int{10})
				So(len(store.historyEntries), ShouldEqual, 1)
				So(store.historyEntries[0].Rank, ShouldEqual, 10)
				So(store.historyEntries[0].Country, ShouldEqual, "US")
				So(stats.Rank, ShouldEqual, 10)
			})
		})

		Convey("When rank updates are frozen", func() {
			frozen := reconcile.New(store, cache, reconcile.WithFrozenRankUpdates(true))
			stats := &model.UserStats{UserID: 1, Mode: model.ModeOsu, Rank: 50}
			So(frozen.Reconcile(context.Background(), stats, "US"), ShouldBeNil)

			Convey("Then the correction is persisted without history", func() {
				So(store.rankWrites, ShouldResemble, []int{10})
				So(store.historyEntries, ShouldBeEmpty)
			})
		})

		Convey("When the observed rank improves on the stored peak", func() {
			stats := &model.UserStats{UserID: 1, Mode: model.ModeOsu, Rank: 10, PeakRank: 20}
			So(r.Reconcile(context.Background(), stats, "US"), ShouldBeNil)

			Convey("Then the peak is updated with no history side effect", func() {
				So(store.peakWrites, ShouldResemble, []int{10})
				So(store.historyEntries, ShouldBeEmpty)
				So(stats.PeakRank, ShouldEqual, 10)
			})
		})

		Convey("When the observed rank is worse than the stored peak", func() {
			stats := &model.UserStats{UserID: 1, Mode: model.ModeOsu, Rank: 10, PeakRank: 3}
			So(r.Reconcile(context.Background(), stats, "US"), ShouldBeNil)

			Convey("Then the peak stays untouched", func() {
				So(store.peakWrites, ShouldBeEmpty)
				So(stats.PeakRank, ShouldEqual, 3)
			})
		})

		Convey("When the user was never ranked before", func() {
			stats := &model.UserStats{UserID: 1, Mode: model.ModeOsu, Rank: 10, PeakRank: 0}
			So(r.Reconcile(context.Background(), stats, "US"), ShouldBeNil)

			Convey("Then the first observed rank becomes the peak", func() {
				So(store.peakWrites, ShouldResemble, []int{10})
			})
		})
	})
}

func TestRebuildIndex(t *testing.T) {
	Convey("Given a reconciler and a ground-truth source", t, func() {
		store := &fakeStore{}
		cache := &fakeCache{ranks: map[int64]int{}}
		source := &fakeSource{
			users: []*model.User{
				{ID: 1, Country: "US"},
				{ID: 2, Country: "DE"},
			},
			stats: map[int64][]*model.UserStats{
				1: {{UserID: 1, Mode: model.ModeOsu, PP: 100}},
				2: {
					{UserID: 2, Mode: model.ModeOsu, PP: 200},
					{UserID: 2, Mode: model.ModeTaiko, PP: 50},
				},
			},
		}
		r := reconcile.New(store, cache, reconcile.WithPageSize(1))

		Convey("When the cache is empty for the mode", func() {
			indexed, err := r.RebuildIndex(context.Background(), source, model.ModeOsu)

			Convey("Then every matching stats row is pushed", func() {
				So(err, ShouldBeNil)
				So(indexed, ShouldEqual, 2)
				So(cache.updates, ShouldEqual, 2)
				So(cache.legacy, ShouldEqual, 2)
			})
		})

		Convey("When the cache already holds entries for the mode", func() {
			cache.count = 1
			indexed, err := r.RebuildIndex(context.Background(), source, model.ModeOsu)

			Convey("Then the reindex is refused with zero writes", func() {
				So(errors.Is(err, reconcile.ErrIndexNotEmpty), ShouldBeTrue)
				So(indexed, ShouldEqual, 0)
				So(cache.updates, ShouldEqual, 0)
			})
		})
	})
}

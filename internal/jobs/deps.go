// Package jobs contains the background tasks that keep derived ranking
// state consistent: score-status classification, weighted stat
// aggregation, leaderboard pushes and rank reconciliation.
package jobs

import (
	"context"

	"github.com/okian/rankforge/internal/batch"
	"github.com/okian/rankforge/internal/config"
	"github.com/okian/rankforge/internal/domain/model"
	"github.com/okian/rankforge/internal/domain/performance"
	"github.com/okian/rankforge/internal/reconcile"
	"github.com/okian/rankforge/pkg/logger"
)

// Store is the relational surface the jobs consume. Implemented by
// store.DB through the sqlStore adapter; faked in tests.
type Store interface {
	// classification
	Classifiable(ctx context.Context, userID int64, mode model.Mode, key model.RankingKey) ([]*model.Score, error)
	SetStatus(ctx context.Context, scoreID int64, key model.RankingKey, status model.Status) error
	BackfillScoreStatus(ctx context.Context, userID int64) error

	// users
	FetchUserByID(ctx context.Context, userID int64) (*model.User, error)
	FetchUsersPage(ctx context.Context, offset, limit int) ([]*model.User, error)
	UpdateUserCountry(ctx context.Context, userID int64, country string) error
	CountUsers(ctx context.Context) (int, error)
	CountBeatmaps(ctx context.Context) (int, error)

	// scores
	FetchBest(ctx context.Context, userID int64, mode model.Mode, excludeApproved bool) ([]*model.Score, error)
	FetchBestByScore(ctx context.Context, userID int64, mode model.Mode) ([]*model.Score, error)
	FetchScoresPage(ctx context.Context, offset, limit int) ([]*model.Score, error)
	FetchFailedPP(ctx context.Context) ([]*model.Score, error)
	UpdateScorePP(ctx context.Context, scoreID int64, pp float64) error
	UpdateScoreLegacy(ctx context.Context, scoreID int64, ppv1 float64) error
	CountScores(ctx context.Context) (int, error)

	// stats
	FetchStats(ctx context.Context, userID int64, mode model.Mode) (*model.UserStats, error)
	FetchAllStats(ctx context.Context, userID int64) ([]*model.UserStats, error)
	UpdateAggregates(ctx context.Context, stats *model.UserStats) error
	UpdateRank(ctx context.Context, userID int64, mode model.Mode, rank int) error
	UpdatePeakRank(ctx context.Context, userID int64, mode model.Mode, rank int) error
	UpdateLegacyPP(ctx context.Context, userID int64, mode model.Mode, ppv1 float64) error
	InsertStats(ctx context.Context, stats []*model.UserStats) error
	DeleteStats(ctx context.Context, userID int64) error
	InsertRankHistory(ctx context.Context, entry *model.RankHistoryEntry) error

	// restoration sources
	ScoreCount(ctx context.Context, userID int64, mode model.Mode) (int, error)
	SumFailTime(ctx context.Context, userID int64, mode model.Mode) (int64, error)
	SumMapTime(ctx context.Context, userID int64, mode model.Mode) (int64, error)
	MaxCombo(ctx context.Context, userID int64, mode model.Mode) (int, error)
	SumTotalScore(ctx context.Context, userID int64, mode model.Mode) (int64, error)

	// RunInTx scopes fn to one transaction: the per-user unit commits or
	// rolls back as a whole.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// Cache is the leaderboard surface the jobs consume.
type Cache interface {
	Update(ctx context.Context, stats *model.UserStats, country string) error
	UpdateLegacy(ctx context.Context, stats *model.UserStats) error
	Remove(ctx context.Context, userID int64) error
	RemoveCountry(ctx context.Context, userID int64, country string) error
	GlobalRank(ctx context.Context, userID int64, mode model.Mode) (int, error)
	CountryRank(ctx context.Context, userID int64, mode model.Mode, country string) (int, error)
	Count(ctx context.Context, mode model.Mode) (int64, error)
	SetCounter(ctx context.Context, name string, value int64) error
}

// Flags are the boolean configuration toggles, read once per invocation.
type Flags struct {
	ApprovedMapRewards bool
	FrozenRankUpdates  bool
	AllowRankedMods    bool
}

// Deps carries every collaborator a task needs. Constructed at the job
// boundary and torn down with it; no component holds module-level handles.
type Deps struct {
	Store Store
	Cache Cache
	Calc  performance.Calculator
	Flags Flags

	// NewStore acquires a fresh, caller-owned store handle for isolated
	// workers. The release func must be called exactly once.
	NewStore func(ctx context.Context) (Store, func(), error)

	Workers  int
	PageSize int

	Runner *batch.Runner
	Logger logger.Logger
}

// FlagsFromConfig snapshots the per-invocation toggles.
func FlagsFromConfig(cfg *config.Config) Flags {
	return Flags{
		ApprovedMapRewards: cfg.ApprovedMapRewards,
		FrozenRankUpdates:  cfg.FrozenRankUpdates,
		AllowRankedMods:    cfg.AllowRankedMods,
	}
}

func (d *Deps) log() logger.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return logger.Get().Named("jobs")
}

func (d *Deps) runner() *batch.Runner {
	if d.Runner != nil {
		return d.Runner
	}
	return batch.NewRunner()
}

func (d *Deps) pageSize() int {
	if d.PageSize > 0 {
		return d.PageSize
	}
	return 500
}

func (d *Deps) reconciler() *reconcile.Reconciler {
	return d.reconcilerFor(d.Store)
}

// reconcilerFor builds a reconciler writing through st, which may be a
// transaction-scoped handle.
func (d *Deps) reconcilerFor(st Store) *reconcile.Reconciler {
	return reconcile.New(st, d.Cache,
		reconcile.WithFrozenRankUpdates(d.Flags.FrozenRankUpdates),
		reconcile.WithPageSize(d.pageSize()),
		reconcile.WithLogger(d.log()),
	)
}

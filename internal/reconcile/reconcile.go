// Package reconcile keeps the relational store's cached rank column in
// step with the leaderboard cache, which owns the authoritative rank.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/rankforge/internal/domain/model"
	"github.com/okian/rankforge/pkg/logger"
	"github.com/okian/rankforge/pkg/metrics"
)

// Sentinel kinds for reconciliation errors.
var (
	// ErrIndexNotEmpty guards the full reindex path: rebuilding over a
	// populated cache would double-count entries.
	ErrIndexNotEmpty = errors.New("leaderboard index is not empty")
)

// Store is the slice of the relational store the reconciler writes to.
type Store interface {
	UpdateRank(ctx context.Context, userID int64, mode model.Mode, rank int) error
	UpdatePeakRank(ctx context.Context, userID int64, mode model.Mode, rank int) error
	InsertRankHistory(ctx context.Context, entry *model.RankHistoryEntry) error
}

// Cache is the slice of the leaderboard cache the reconciler consumes.
type Cache interface {
	GlobalRank(ctx context.Context, userID int64, mode model.Mode) (int, error)
	Count(ctx context.Context, mode model.Mode) (int64, error)
	Update(ctx context.Context, stats *model.UserStats, country string) error
	UpdateLegacy(ctx context.Context, stats *model.UserStats) error
}

// UserSource streams ground-truth users and stats for a full reindex.
type UserSource interface {
	FetchUsersPage(ctx context.Context, offset, limit int) ([]*model.User, error)
	FetchAllStats(ctx context.Context, userID int64) ([]*model.UserStats, error)
}

// Default reconciler configuration constants.
const (
	defaultPageSize = 500
)

// Option applies a configuration option to the Reconciler.
type Option func(*Reconciler)

// WithFrozenRankUpdates suppresses rank-history writes. Corrections to the
// stored rank itself are still applied.
func WithFrozenRankUpdates(frozen bool) Option {
	return func(r *Reconciler) {
		r.frozen = frozen
	}
}

// WithPageSize sets the reindex pagination window.
func WithPageSize(size int) Option {
	return func(r *Reconciler) {
		if size > 0 {
			r.pageSize = size
		}
	}
}

// WithLogger sets a custom logger for the reconciler.
func WithLogger(log logger.Logger) Option {
	return func(r *Reconciler) {
		if log != nil {
			r.logger = log
		}
	}
}

// Reconciler compares stored against cache-derived ranks and repairs drift.
type Reconciler struct {
	store    Store
	cache    Cache
	frozen   bool
	pageSize int
	logger   logger.Logger
}

// New creates a Reconciler with configuration options.
func New(store Store, cache Cache, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:    store,
		cache:    cache,
		pageSize: defaultPageSize,
		logger:   logger.Get().Named("reconcile"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Reconcile repairs the stored rank of one stats row against the cache and
// tracks the peak rank. Equal ranks are a strict no-op: no update call, no
// history entry.
func (r *Reconciler) Reconcile(ctx context.Context, stats *model.UserStats, country string) error {
	rank, err := r.cache.GlobalRank(ctx, stats.UserID, stats.Mode)
	if err != nil {
		return fmt.Errorf("query cache rank: %w", err)
	}

	if rank != stats.Rank {
		if err := r.store.UpdateRank(ctx, stats.UserID, stats.Mode, rank); err != nil {
			return fmt.Errorf("persist corrected rank: %w", err)
		}

		if !r.frozen {
			entry := &model.RankHistoryEntry{
				UserID:    stats.UserID,
				Mode:      stats.Mode,
				Country:   country,
				Rank:      rank,
				CreatedAt: time.Now().UTC(),
			}
			if err := r.store.InsertRankHistory(ctx, entry); err != nil {
				return fmt.Errorf("append rank history: %w", err)
			}
		}

		r.logger.Info(ctx, "corrected desynced rank",
			logger.Int64("user_id", stats.UserID),
			logger.Int("mode", int(stats.Mode)),
			logger.Int("stored", stats.Rank),
			logger.Int("actual", rank),
		)
		metrics.RecordRankCorrection()
		stats.Rank = rank
	}

	// Lower is better; zero means never ranked.
	if rank > 0 && (stats.PeakRank == 0 || rank < stats.PeakRank) {
		if err := r.store.UpdatePeakRank(ctx, stats.UserID, stats.Mode, rank); err != nil {
			return fmt.Errorf("persist peak rank: %w", err)
		}
		stats.PeakRank = rank
	}

	return nil
}

// RebuildIndex repopulates the mode's leaderboard sets from ground truth.
// It refuses outright when the cache already holds entries for the mode.
func (r *Reconciler) RebuildIndex(ctx context.Context, source UserSource, mode model.Mode) (int, error) {
	count, err := r.cache.Count(ctx, mode)
	if err != nil {
		return 0, fmt.Errorf("inspect cache before reindex: %w", err)
	}
	if count > 0 {
		return 0, fmt.Errorf("reindex mode %d with %d cached entries: %w", mode, count, ErrIndexNotEmpty)
	}

	indexed := 0
	for offset := 0; ; offset += r.pageSize {
		users, err := source.FetchUsersPage(ctx, offset, r.pageSize)
		if err != nil {
			return indexed, fmt.Errorf("fetch user page: %w", err)
		}
		if len(users) == 0 {
			break
		}

		for _, user := range users {
			stats, err := source.FetchAllStats(ctx, user.ID)
			if err != nil {
				r.logger.Warn(ctx, "skipping user without stats",
					logger.Int64("user_id", user.ID),
					logger.Error(err),
				)
				continue
			}

			for _, row := range stats {
				if row.Mode != mode {
					continue
				}
				if err := r.cache.Update(ctx, row, user.Country); err != nil {
					return indexed, fmt.Errorf("push entry for user %d: %w", user.ID, err)
				}
				if err := r.cache.UpdateLegacy(ctx, row); err != nil {
					return indexed, fmt.Errorf("push legacy entry for user %d: %w", user.ID, err)
				}
				indexed++
			}
		}
	}

	r.logger.Info(ctx, "rebuilt leaderboard index",
		logger.Int("mode", int(mode)),
		logger.Int("entries", indexed),
	)
	return indexed, nil
}

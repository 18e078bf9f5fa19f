package store

import (
	"context"
	"fmt"

	"github.com/okian/rankforge/internal/domain/model"
)

// FetchStats returns the stats row for (user, mode) or ErrNotFound.
func (d *DB) FetchStats(ctx context.Context, userID int64, mode model.Mode) (*model.UserStats, error) {
	stats := new(model.UserStats)
	err := d.bun.NewSelect().
		Model(stats).
		Where("user_id = ?", userID).
		Where("mode = ?", mode).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch stats for user %d mode %d: %w", userID, mode, notFound(err))
	}
	return stats, nil
}

// FetchAllStats returns every stats row of the user, ordered by mode.
func (d *DB) FetchAllStats(ctx context.Context, userID int64) ([]*model.UserStats, error) {
	var stats []*model.UserStats
	err := d.bun.NewSelect().
		Model(&stats).
		Where("user_id = ?", userID).
		Order("mode ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch stats for user %d: %w", userID, err)
	}
	return stats, nil
}

// UpdateAggregates rewrites the weighted metric columns of the stats row.
func (d *DB) UpdateAggregates(ctx context.Context, stats *model.UserStats) error {
	_, err := d.bun.NewUpdate().
		Model(stats).
		Column("pp", "pp_vn", "pp_rx", "pp_ap", "ppv1", "acc", "rscore").
		Where("user_id = ?", stats.UserID).
		Where("mode = ?", stats.Mode).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update stat aggregates: %w", err)
	}
	return nil
}

// UpdateRank persists a corrected rank value.
func (d *DB) UpdateRank(ctx context.Context, userID int64, mode model.Mode, rank int) error {
	_, err := d.bun.NewUpdate().
		Model((*model.UserStats)(nil)).
		Set("rank = ?", rank).
		Where("user_id = ?", userID).
		Where("mode = ?", mode).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update rank: %w", err)
	}
	return nil
}

// UpdatePeakRank persists an improved peak rank.
func (d *DB) UpdatePeakRank(ctx context.Context, userID int64, mode model.Mode, rank int) error {
	_, err := d.bun.NewUpdate().
		Model((*model.UserStats)(nil)).
		Set("peak_rank = ?", rank).
		Where("user_id = ?", userID).
		Where("mode = ?", mode).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update peak rank: %w", err)
	}
	return nil
}

// UpdateLegacyPP persists a recomputed ppv1 aggregate.
func (d *DB) UpdateLegacyPP(ctx context.Context, userID int64, mode model.Mode, ppv1 float64) error {
	_, err := d.bun.NewUpdate().
		Model((*model.UserStats)(nil)).
		Set("ppv1 = ?", ppv1).
		Where("user_id = ?", userID).
		Where("mode = ?", mode).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update ppv1: %w", err)
	}
	return nil
}

// InsertStats creates stats rows, one per mode, for a restored account.
func (d *DB) InsertStats(ctx context.Context, stats []*model.UserStats) error {
	if len(stats) == 0 {
		return nil
	}
	_, err := d.bun.NewInsert().
		Model(&stats).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert stats: %w", err)
	}
	return nil
}

// DeleteStats force-removes every stats row of the user.
func (d *DB) DeleteStats(ctx context.Context, userID int64) error {
	_, err := d.bun.NewDelete().
		Model((*model.UserStats)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete stats: %w", err)
	}
	return nil
}

// InsertRankHistory appends an immutable rank correction record.
func (d *DB) InsertRankHistory(ctx context.Context, entry *model.RankHistoryEntry) error {
	_, err := d.bun.NewInsert().
		Model(entry).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert rank history: %w", err)
	}
	return nil
}

// restoration source queries

// ScoreCount counts every score the user submitted in the mode.
func (d *DB) ScoreCount(ctx context.Context, userID int64, mode model.Mode) (int, error) {
	n, err := d.bun.NewSelect().
		Model((*model.Score)(nil)).
		Where("user_id = ?", userID).
		Where("mode = ?", mode).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count user scores: %w", err)
	}
	return n, nil
}

// SumFailTime totals the fail time (milliseconds) of failed scores.
func (d *DB) SumFailTime(ctx context.Context, userID int64, mode model.Mode) (int64, error) {
	var total int64
	err := d.bun.NewSelect().
		Model((*model.Score)(nil)).
		ColumnExpr("COALESCE(SUM(failtime), 0)").
		Where("user_id = ?", userID).
		Where("mode = ?", mode).
		Where("status_pp = ?", int(model.StatusFailed)).
		Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("sum fail time: %w", err)
	}
	return total, nil
}

// SumMapTime totals the length of charts the user passed.
func (d *DB) SumMapTime(ctx context.Context, userID int64, mode model.Mode) (int64, error) {
	var total int64
	err := d.bun.NewSelect().
		Model((*model.Score)(nil)).
		Join("JOIN beatmaps AS beatmap ON beatmap.id = score.beatmap_id").
		ColumnExpr("COALESCE(SUM(beatmap.total_length), 0)").
		Where("score.user_id = ?", userID).
		Where("score.mode = ?", mode).
		Where("score.status_pp > ?", int(model.StatusFailed)).
		Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("sum map time: %w", err)
	}
	return total, nil
}

// MaxCombo returns the user's highest combo in the mode.
func (d *DB) MaxCombo(ctx context.Context, userID int64, mode model.Mode) (int, error) {
	var combo int
	err := d.bun.NewSelect().
		Model((*model.Score)(nil)).
		ColumnExpr("COALESCE(MAX(max_combo), 0)").
		Where("user_id = ?", userID).
		Where("mode = ?", mode).
		Where("hidden = FALSE").
		Scan(ctx, &combo)
	if err != nil {
		return 0, fmt.Errorf("query max combo: %w", err)
	}
	return combo, nil
}

// SumTotalScore totals every visible score of the user in the mode.
func (d *DB) SumTotalScore(ctx context.Context, userID int64, mode model.Mode) (int64, error) {
	var total int64
	err := d.bun.NewSelect().
		Model((*model.Score)(nil)).
		ColumnExpr("COALESCE(SUM(total_score), 0)").
		Where("user_id = ?", userID).
		Where("mode = ?", mode).
		Where("hidden = FALSE").
		Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("sum total score: %w", err)
	}
	return total, nil
}

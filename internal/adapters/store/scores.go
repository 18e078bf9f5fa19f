package store

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/okian/rankforge/internal/domain/model"
)

// Classifiable returns one consistent snapshot of the user's non-hidden
// scores whose status under key is above the failed threshold.
func (d *DB) Classifiable(ctx context.Context, userID int64, mode model.Mode, key model.RankingKey) ([]*model.Score, error) {
	var scores []*model.Score
	err := d.bun.NewSelect().
		Model(&scores).
		Where("user_id = ?", userID).
		Where("mode = ?", mode).
		Where("? > ?", bun.Ident(key.Column()), int(model.StatusFailed)).
		Where("hidden = FALSE").
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch classifiable scores: %w", err)
	}
	return scores, nil
}

// SetStatus persists a single status change under the given key.
func (d *DB) SetStatus(ctx context.Context, scoreID int64, key model.RankingKey, status model.Status) error {
	_, err := d.bun.NewUpdate().
		Model((*model.Score)(nil)).
		Set("? = ?", bun.Ident(key.Column()), int(status)).
		Where("id = ?", scoreID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update score status: %w", err)
	}
	return nil
}

// BackfillScoreStatus copies status_pp into status_score for the user's
// scores still carrying the unclassified marker.
func (d *DB) BackfillScoreStatus(ctx context.Context, userID int64) error {
	_, err := d.bun.NewUpdate().
		Model((*model.Score)(nil)).
		Set("status_score = status_pp").
		Where("user_id = ?", userID).
		Where("status_score = ?", int(model.StatusUnclassified)).
		Where("status_pp > ?", int(model.StatusUnclassified)).
		Where("hidden = FALSE").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("backfill score statuses: %w", err)
	}
	return nil
}

// FetchBest returns the user's best-of-chart scores under the pp key,
// ordered by pp descending. With excludeApproved set, scores on approved
// (non-ranked) charts are filtered out of the reward pool.
func (d *DB) FetchBest(ctx context.Context, userID int64, mode model.Mode, excludeApproved bool) ([]*model.Score, error) {
	var scores []*model.Score
	q := d.bun.NewSelect().
		Model(&scores).
		Relation("Beatmap").
		Where("score.user_id = ?", userID).
		Where("score.mode = ?", mode).
		Where("score.status_pp = ?", int(model.StatusBest)).
		Where("score.hidden = FALSE")

	if excludeApproved {
		q = q.Where("beatmap.status = ?", model.BeatmapRanked)
	}

	if err := q.Order("score.pp DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("fetch best scores: %w", err)
	}
	return scores, nil
}

// FetchBestByScore returns the user's best-of-chart scores under the
// total-score key, ordered by total score descending.
func (d *DB) FetchBestByScore(ctx context.Context, userID int64, mode model.Mode) ([]*model.Score, error) {
	var scores []*model.Score
	err := d.bun.NewSelect().
		Model(&scores).
		Where("user_id = ?", userID).
		Where("mode = ?", mode).
		Where("status_score = ?", int(model.StatusBest)).
		Where("hidden = FALSE").
		Order("total_score DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch best scores by total score: %w", err)
	}
	return scores, nil
}

// FetchScoresPage returns a fixed-size window of all scores, ordered by id
// so a full sweep never materializes the collection.
func (d *DB) FetchScoresPage(ctx context.Context, offset, limit int) ([]*model.Score, error) {
	var scores []*model.Score
	err := d.bun.NewSelect().
		Model(&scores).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch score page: %w", err)
	}
	return scores, nil
}

// FetchFailedPP returns scores whose pp calculation previously failed.
func (d *DB) FetchFailedPP(ctx context.Context) ([]*model.Score, error) {
	var scores []*model.Score
	err := d.bun.NewSelect().
		Model(&scores).
		Where("pp = 0").
		Where("status_pp > ?", int(model.StatusFailed)).
		Where("hidden = FALSE").
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch failed pp scores: %w", err)
	}
	return scores, nil
}

// UpdateScorePP persists a recalculated pp value.
func (d *DB) UpdateScorePP(ctx context.Context, scoreID int64, pp float64) error {
	_, err := d.bun.NewUpdate().
		Model((*model.Score)(nil)).
		Set("pp = ?", pp).
		Where("id = ?", scoreID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update score pp: %w", err)
	}
	return nil
}

// UpdateScoreLegacy persists a recalculated legacy (ppv1) value.
func (d *DB) UpdateScoreLegacy(ctx context.Context, scoreID int64, ppv1 float64) error {
	_, err := d.bun.NewUpdate().
		Model((*model.Score)(nil)).
		Set("ppv1 = ?", ppv1).
		Where("id = ?", scoreID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update score ppv1: %w", err)
	}
	return nil
}

// CountScores returns the total number of visible scores.
func (d *DB) CountScores(ctx context.Context) (int, error) {
	n, err := d.bun.NewSelect().
		Model((*model.Score)(nil)).
		Where("hidden = FALSE").
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count scores: %w", err)
	}
	return n, nil
}

// Package classify assigns ranking statuses to a user's scores.
//
// For one (user, mode) pass, every eligible score ends up submitted,
// best-of-chart, or best-of-chart-for-mods. The assignment itself is a pure
// function; the Classifier wraps it with snapshot fetching and persistence.
package classify

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/rankforge/internal/domain/model"
	"github.com/okian/rankforge/pkg/logger"
)

// Store is the slice of the relational store the classifier needs.
type Store interface {
	// Classifiable returns one consistent snapshot of the user's non-hidden
	// scores whose status under key is above the failed threshold.
	Classifiable(ctx context.Context, userID int64, mode model.Mode, key model.RankingKey) ([]*model.Score, error)

	// SetStatus persists a single status change under the given key.
	SetStatus(ctx context.Context, scoreID int64, key model.RankingKey, status model.Status) error

	// BackfillScoreStatus copies status_pp into status_score for the user's
	// scores still carrying the unclassified marker.
	BackfillScoreStatus(ctx context.Context, userID int64) error
}

// Option applies a configuration option to the Classifier.
type Option func(*Classifier)

// WithRankedMods admits relax/autopilot scores into the global pp pool
// instead of forcing them to submitted.
func WithRankedMods(allow bool) Option {
	return func(c *Classifier) {
		c.allowRankedMods = allow
	}
}

// WithLogger sets a custom logger for the classifier.
func WithLogger(log logger.Logger) Option {
	return func(c *Classifier) {
		if log != nil {
			c.logger = log
		}
	}
}

// Classifier runs status classification passes against the store.
type Classifier struct {
	store           Store
	allowRankedMods bool
	logger          logger.Logger
}

// New creates a Classifier with configuration options.
func New(store Store, opts ...Option) *Classifier {
	c := &Classifier{
		store:  store,
		logger: logger.Get().Named("classify"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ClassifyPP reclassifies the user's scores under the pp key.
// A user with no eligible scores is a no-op.
func (c *Classifier) ClassifyPP(ctx context.Context, userID int64, mode model.Mode) error {
	return c.classify(ctx, userID, mode, model.KeyPP)
}

// ClassifyScore reclassifies the user's scores under the total-score key,
// backfilling unclassified status_score values from status_pp first.
func (c *Classifier) ClassifyScore(ctx context.Context, userID int64, mode model.Mode) error {
	if err := c.store.BackfillScoreStatus(ctx, userID); err != nil {
		return fmt.Errorf("backfill score statuses: %w", err)
	}
	return c.classify(ctx, userID, mode, model.KeyScore)
}

func (c *Classifier) classify(ctx context.Context, userID int64, mode model.Mode, key model.RankingKey) error {
	scores, err := c.store.Classifiable(ctx, userID, mode, key)
	if err != nil {
		return fmt.Errorf("fetch classifiable scores: %w", err)
	}

	if len(scores) == 0 {
		c.logger.Warn(ctx, "user has no eligible scores",
			logger.Int("user_id", int(userID)),
			logger.Int("mode", int(mode)),
		)
		return nil
	}

	assigned := Assign(scores, key, c.allowRankedMods)

	for _, s := range scores {
		status, ok := assigned[s.ID]
		if !ok || status == key.Status(s) {
			continue
		}
		if err := c.store.SetStatus(ctx, s.ID, key, status); err != nil {
			return fmt.Errorf("persist status of score %d: %w", s.ID, err)
		}
	}

	c.logger.Debug(ctx, "classified scores",
		logger.Int("user_id", int(userID)),
		logger.Int("mode", int(mode)),
		logger.String("key", key.Column()),
		logger.Int("scores", len(scores)),
	)
	return nil
}

// Assign computes the status every input score should carry under key.
// Pure and deterministic: ties keep their incoming order. Relax/autopilot
// scores are forced to submitted under the pp key unless allowRankedMods.
func Assign(scores []*model.Score, key model.RankingKey, allowRankedMods bool) map[int64]model.Status {
	assigned := make(map[int64]model.Status, len(scores))

	pool := make([]*model.Score, 0, len(scores))
	for _, s := range scores {
		if key == model.KeyPP && !allowRankedMods && s.Mods.Relaxing() {
			assigned[s.ID] = model.StatusSubmitted
			continue
		}
		pool = append(pool, s)
	}

	charts := make(map[int64][]*model.Score)
	order := make([]int64, 0, len(pool))
	for _, s := range pool {
		if _, seen := charts[s.BeatmapID]; !seen {
			order = append(order, s.BeatmapID)
		}
		charts[s.BeatmapID] = append(charts[s.BeatmapID], s)
	}

	for _, beatmapID := range order {
		group := charts[beatmapID]
		sort.SliceStable(group, func(i, j int) bool {
			return key.Value(group[i]) > key.Value(group[j])
		})

		best := group[0]
		for _, s := range group {
			assigned[s.ID] = model.StatusSubmitted
		}
		assigned[best.ID] = model.StatusBest

		// The group is already sorted, so each mods partition keeps the
		// descending order and its first element is the partition best.
		tops := make(map[model.Mods]*model.Score)
		for _, s := range group {
			if _, seen := tops[s.Mods]; !seen {
				tops[s.Mods] = s
			}
		}

		for mods, top := range tops {
			if top.ID == best.ID || mods == best.Mods {
				continue
			}
			assigned[top.ID] = model.StatusModsBest
		}
	}

	return assigned
}

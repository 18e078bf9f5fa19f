package jobs

import (
	"context"
	"fmt"

	"github.com/okian/rankforge/pkg/logger"
)

// Cached site-wide counter names.
const (
	counterUsers    = "registered_users"
	counterScores   = "submitted_scores"
	counterBeatmaps = "total_beatmaps"
)

// UpdateSiteStats refreshes the cached site-wide totals shown on the
// front page.
func UpdateSiteStats(ctx context.Context, deps *Deps, _ []string) error {
	users, err := deps.Store.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if err := deps.Cache.SetCounter(ctx, counterUsers, int64(users)); err != nil {
		return fmt.Errorf("cache user count: %w", err)
	}

	scores, err := deps.Store.CountScores(ctx)
	if err != nil {
		return fmt.Errorf("count scores: %w", err)
	}
	if err := deps.Cache.SetCounter(ctx, counterScores, int64(scores)); err != nil {
		return fmt.Errorf("cache score count: %w", err)
	}

	beatmaps, err := deps.Store.CountBeatmaps(ctx)
	if err != nil {
		return fmt.Errorf("count beatmaps: %w", err)
	}
	if err := deps.Cache.SetCounter(ctx, counterBeatmaps, int64(beatmaps)); err != nil {
		return fmt.Errorf("cache beatmap count: %w", err)
	}

	deps.log().Info(ctx, "refreshed site stats",
		logger.Int("users", users),
		logger.Int("scores", scores),
		logger.Int("beatmaps", beatmaps),
	)
	return nil
}

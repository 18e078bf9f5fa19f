package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/rankforge/internal/batch"
	"github.com/okian/rankforge/internal/domain/model"
	"github.com/okian/rankforge/internal/reconcile"
	"github.com/okian/rankforge/pkg/logger"
)

// UpdateRanks sweeps every user and repairs stored ranks that drifted
// from the leaderboard cache.
func UpdateRanks(ctx context.Context, deps *Deps, _ []string) error {
	runner := deps.runner()
	rec := deps.reconciler()

	var total batch.Report
	err := batch.Pages(ctx, deps.pageSize(), deps.Store.FetchUsersPage,
		func(ctx context.Context, page []*model.User) error {
			report := batch.Run(ctx, runner, page, func(ctx context.Context, user *model.User) error {
				rows, err := deps.Store.FetchAllStats(ctx, user.ID)
				if err != nil {
					return fmt.Errorf("stats of user %d: %w", user.ID, err)
				}
				for _, row := range rows {
					// A row the user never played carries no rank to repair.
					if row.Playcount <= 0 {
						continue
					}
					if err := rec.Reconcile(ctx, row, user.Country); err != nil {
						return fmt.Errorf("reconcile user %d mode %d: %w", user.ID, row.Mode, err)
					}
				}
				return nil
			})
			total.Add(report)
			return nil
		})
	if err != nil {
		return err
	}

	logReport(ctx, deps, "update-ranks", total)
	return nil
}

// IndexRanks rebuilds empty leaderboard indexes from the relational
// ground truth. Without a mode argument it covers every mode; modes
// whose cache already holds entries are skipped, never overwritten.
func IndexRanks(ctx context.Context, deps *Deps, args []string) error {
	modes := model.AllModes()
	if len(args) > 0 {
		mode, err := parseMode(args[0])
		if err != nil {
			return err
		}
		modes = []model.Mode{mode}
	}

	explicit := len(args) > 0
	rec := deps.reconciler()
	for _, mode := range modes {
		indexed, err := rec.RebuildIndex(ctx, deps.Store, mode)
		if errors.Is(err, reconcile.ErrIndexNotEmpty) && !explicit {
			deps.log().Warn(ctx, "mode already indexed, skipping", logger.Int("mode", int(mode)))
			continue
		}
		if err != nil {
			return fmt.Errorf("index mode %d: %w", mode, err)
		}
		deps.log().Info(ctx, "indexed mode",
			logger.Int("mode", int(mode)),
			logger.Int("entries", indexed),
		)
	}
	return nil
}

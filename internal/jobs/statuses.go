package jobs

import (
	"context"
	"fmt"

	"github.com/okian/rankforge/internal/batch"
	"github.com/okian/rankforge/internal/domain/classify"
	"github.com/okian/rankforge/internal/domain/model"
	"github.com/okian/rankforge/pkg/logger"
)

// RecalculatePPStatus reclassifies one user's scores under the pp key.
func RecalculatePPStatus(ctx context.Context, deps *Deps, args []string) error {
	userID, mode, err := parseUserMode(args)
	if err != nil {
		return err
	}

	return deps.Store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		if _, err := tx.FetchUserByID(ctx, userID); err != nil {
			deps.log().Warn(ctx, "user not found", logger.Int64("user_id", userID))
			return nil
		}
		c := classify.New(tx, classify.WithRankedMods(deps.Flags.AllowRankedMods))
		return c.ClassifyPP(ctx, userID, mode)
	})
}

// RecalculateScoreStatus reclassifies one user's scores under the
// total-score key, backfilling unmigrated statuses first.
func RecalculateScoreStatus(ctx context.Context, deps *Deps, args []string) error {
	userID, mode, err := parseUserMode(args)
	if err != nil {
		return err
	}

	return deps.Store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		if _, err := tx.FetchUserByID(ctx, userID); err != nil {
			deps.log().Warn(ctx, "user not found", logger.Int64("user_id", userID))
			return nil
		}
		c := classify.New(tx, classify.WithRankedMods(deps.Flags.AllowRankedMods))
		return c.ClassifyScore(ctx, userID, mode)
	})
}

// RecalculateStatusesAll reclassifies every user's scores in every mode.
// Passing "exclude-pp" limits the sweep to the total-score key.
func RecalculateStatusesAll(ctx context.Context, deps *Deps, args []string) error {
	excludePP := len(args) > 0 && args[0] == "exclude-pp"
	runner := deps.runner()

	var total batch.Report
	err := batch.Pages(ctx, deps.pageSize(), deps.Store.FetchUsersPage,
		func(ctx context.Context, page []*model.User) error {
			report := batch.Run(ctx, runner, page, func(ctx context.Context, user *model.User) error {
				return deps.Store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
					c := classify.New(tx, classify.WithRankedMods(deps.Flags.AllowRankedMods))
					for _, mode := range model.AllModes() {
						if err := c.ClassifyScore(ctx, user.ID, mode); err != nil {
							return fmt.Errorf("score statuses of user %d mode %d: %w", user.ID, mode, err)
						}
						if excludePP {
							continue
						}
						if err := c.ClassifyPP(ctx, user.ID, mode); err != nil {
							return fmt.Errorf("pp statuses of user %d mode %d: %w", user.ID, mode, err)
						}
					}
					return nil
				})
			})
			total.Add(report)
			return nil
		})
	if err != nil {
		return err
	}

	logReport(ctx, deps, "recalculate-statuses-all", total)
	return nil
}

func logReport(ctx context.Context, deps *Deps, task string, report batch.Report) {
	deps.log().Info(ctx, "batch report",
		logger.String("task", task),
		logger.Int("processed", report.Processed),
		logger.Int("skipped", report.Skipped),
		logger.Int("failed", report.Failed),
	)
}

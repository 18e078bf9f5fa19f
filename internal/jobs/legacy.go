package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/rankforge/internal/adapters/store"
	"github.com/okian/rankforge/internal/batch"
	"github.com/okian/rankforge/internal/domain/aggregate"
	"github.com/okian/rankforge/internal/domain/model"
	"github.com/okian/rankforge/pkg/logger"
	"github.com/okian/rankforge/pkg/metrics"
)

// UpdatePPv1 refreshes per-score legacy weights and the aggregated ppv1
// of every user, pushes the fresh values into both leaderboard sets and
// reconciles the rank.
func UpdatePPv1(ctx context.Context, deps *Deps, _ []string) error {
	runner := deps.runner()

	var total batch.Report
	err := batch.Pages(ctx, deps.pageSize(), deps.Store.FetchUsersPage,
		func(ctx context.Context, page []*model.User) error {
			report := batch.Run(ctx, runner, page, func(ctx context.Context, user *model.User) error {
				return deps.Store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
					for _, mode := range model.AllModes() {
						if err := updateUserLegacy(ctx, deps, tx, user, mode); err != nil {
							return fmt.Errorf("ppv1 of user %d mode %d: %w", user.ID, mode, err)
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

	logReport(ctx, deps, "update-ppv1", total)
	return nil
}

// updateUserLegacy recomputes one (user, mode): per-score legacy weights
// are persisted as they are produced, combined through the decay ladder
// into the stats aggregate, pushed to the cache and rank-reconciled.
// Users who never played the mode are skipped.
func updateUserLegacy(ctx context.Context, deps *Deps, tx Store, user *model.User, mode model.Mode) error {
	stats, err := tx.FetchStats(ctx, user.ID, mode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if stats.Playcount <= 0 {
		return nil
	}

	best, err := tx.FetchBest(ctx, user.ID, mode, !deps.Flags.ApprovedMapRewards)
	if err != nil {
		return err
	}
	if len(best) == 0 {
		return nil
	}

	values := make([]float64, 0, len(best))
	for _, s := range best {
		v, err := deps.Calc.LegacyScore(ctx, s)
		if err != nil {
			deps.log().Warn(ctx, "legacy weight failed, skipping score",
				logger.Int64("score_id", s.ID),
				logger.Error(err),
			)
			metrics.RecordCalculatorFailure()
			continue
		}
		if v != s.PPv1 {
			if err := tx.UpdateScoreLegacy(ctx, s.ID, v); err != nil {
				return err
			}
			metrics.RecordScoreUpdate()
		}
		values = append(values, v)
	}

	ppv1 := aggregate.LegacyLadder(values)
	if err := tx.UpdateLegacyPP(ctx, user.ID, mode, ppv1); err != nil {
		return err
	}
	stats.PPv1 = ppv1

	if err := deps.Cache.Update(ctx, stats, user.Country); err != nil {
		return err
	}
	metrics.RecordLeaderboardPush()

	if err := deps.Cache.UpdateLegacy(ctx, stats); err != nil {
		return err
	}
	metrics.RecordLeaderboardPush()

	return deps.reconcilerFor(tx).Reconcile(ctx, stats, user.Country)
}

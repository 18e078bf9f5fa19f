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

// RecalculateStats recomputes one user's weighted aggregates in one mode,
// pushes the fresh metric into the cache and reconciles the rank.
func RecalculateStats(ctx context.Context, deps *Deps, args []string) error {
	userID, mode, err := parseUserMode(args)
	if err != nil {
		return err
	}

	return deps.Store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		user, err := tx.FetchUserByID(ctx, userID)
		if err != nil {
			deps.log().Warn(ctx, "user not found", logger.Int64("user_id", userID))
			return nil
		}
		return recalcUserStats(ctx, deps, tx, user, mode)
	})
}

// RecalculateStatsAll recomputes weighted aggregates for every user and
// mode. One user is the atomic unit; a failing user defers to the next run.
func RecalculateStatsAll(ctx context.Context, deps *Deps, _ []string) error {
	runner := deps.runner()

	var total batch.Report
	err := batch.Pages(ctx, deps.pageSize(), deps.Store.FetchUsersPage,
		func(ctx context.Context, page []*model.User) error {
			report := batch.Run(ctx, runner, page, func(ctx context.Context, user *model.User) error {
				return deps.Store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
					for _, mode := range model.AllModes() {
						if err := recalcUserStats(ctx, deps, tx, user, mode); err != nil {
							return err
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

	logReport(ctx, deps, "recalculate-stats-all", total)
	return nil
}

// recalcUserStats is the shared per-(user, mode) aggregation pass.
func recalcUserStats(ctx context.Context, deps *Deps, tx Store, user *model.User, mode model.Mode) error {
	bestByScore, err := tx.FetchBestByScore(ctx, user.ID, mode)
	if err != nil {
		return err
	}

	best, err := tx.FetchBest(ctx, user.ID, mode, !deps.Flags.ApprovedMapRewards)
	if err != nil {
		return err
	}

	if len(best) == 0 && len(bestByScore) == 0 {
		deps.log().Warn(ctx, "no scores for stats pass",
			logger.Int64("user_id", user.ID),
			logger.Int("mode", int(mode)),
		)
		return nil
	}

	stats, err := tx.FetchStats(ctx, user.ID, mode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			deps.log().Warn(ctx, "stats row missing, run restore-stats",
				logger.Int64("user_id", user.ID),
				logger.Int("mode", int(mode)),
			)
			return nil
		}
		return err
	}

	vn, rx, ap := aggregate.SplitByMods(best)

	stats.PP = aggregate.Performance(best)
	stats.PPVanilla = aggregate.Performance(vn)
	stats.PPRelax = aggregate.Performance(rx)
	stats.PPAutopilot = aggregate.Performance(ap)
	stats.Acc = aggregate.Accuracy(best)
	stats.RankedScore = aggregate.RankedScore(bestByScore)
	stats.PPv1 = legacyAggregate(ctx, deps, best)

	if err := tx.UpdateAggregates(ctx, stats); err != nil {
		return err
	}

	if err := deps.Cache.Update(ctx, stats, user.Country); err != nil {
		return err
	}
	metrics.RecordLeaderboardPush()

	rec := deps.reconcilerFor(tx)
	return rec.Reconcile(ctx, stats, user.Country)
}

// legacyAggregate feeds per-score legacy weights through the decay ladder.
// Calculator failures exclude the single score, never the pass.
func legacyAggregate(ctx context.Context, deps *Deps, best []*model.Score) float64 {
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
		values = append(values, v)
	}
	return aggregate.LegacyLadder(values)
}

// RestoreStats rebuilds missing stats rows for a user from raw scores.
// Passing "remove" force-drops any existing rows first.
func RestoreStats(ctx context.Context, deps *Deps, args []string) error {
	userID, err := parseUser(args)
	if err != nil {
		return err
	}
	remove := len(args) > 1 && args[1] == "remove"

	return deps.Store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		user, err := tx.FetchUserByID(ctx, userID)
		if err != nil {
			deps.log().Warn(ctx, "user not found", logger.Int64("user_id", userID))
			return nil
		}

		if remove {
			if err := tx.DeleteStats(ctx, userID); err != nil {
				return err
			}
			if err := deps.Cache.Remove(ctx, userID); err != nil {
				return fmt.Errorf("purge cached entries: %w", err)
			}
			if err := deps.Cache.RemoveCountry(ctx, userID, user.Country); err != nil {
				return fmt.Errorf("purge cached country entries: %w", err)
			}
		}

		existing, err := tx.FetchAllStats(ctx, userID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			deps.log().Warn(ctx, "user already has stats", logger.Int64("user_id", userID))
			return nil
		}

		rows := make([]*model.UserStats, 0, model.ModeCount)
		for _, mode := range model.AllModes() {
			row, err := restoreModeStats(ctx, deps, tx, userID, mode)
			if err != nil {
				return fmt.Errorf("restore mode %d: %w", mode, err)
			}
			rows = append(rows, row)
		}

		if err := tx.InsertStats(ctx, rows); err != nil {
			return err
		}

		for _, row := range rows {
			if err := deps.Cache.Update(ctx, row, user.Country); err != nil {
				return err
			}
			metrics.RecordLeaderboardPush()
		}
		return nil
	})
}

// restoreModeStats reconstructs one stats row from ground truth.
func restoreModeStats(ctx context.Context, deps *Deps, tx Store, userID int64, mode model.Mode) (*model.UserStats, error) {
	row := &model.UserStats{UserID: userID, Mode: mode}

	playcount, err := tx.ScoreCount(ctx, userID, mode)
	if err != nil {
		return nil, err
	}
	row.Playcount = playcount

	failMS, err := tx.SumFailTime(ctx, userID, mode)
	if err != nil {
		return nil, err
	}

	mapTime, err := tx.SumMapTime(ctx, userID, mode)
	if err != nil {
		return nil, err
	}
	row.PlaytimeSec = mapTime + failMS/1000

	combo, err := tx.MaxCombo(ctx, userID, mode)
	if err != nil {
		return nil, err
	}
	row.MaxCombo = combo

	totalScore, err := tx.SumTotalScore(ctx, userID, mode)
	if err != nil {
		return nil, err
	}
	row.TotalScore = totalScore

	bestByScore, err := tx.FetchBestByScore(ctx, userID, mode)
	if err != nil {
		return nil, err
	}

	best, err := tx.FetchBest(ctx, userID, mode, !deps.Flags.ApprovedMapRewards)
	if err != nil {
		return nil, err
	}

	vn, rx, ap := aggregate.SplitByMods(best)
	row.PP = aggregate.Performance(best)
	row.PPVanilla = aggregate.Performance(vn)
	row.PPRelax = aggregate.Performance(rx)
	row.PPAutopilot = aggregate.Performance(ap)
	row.Acc = aggregate.Accuracy(best)
	row.RankedScore = aggregate.RankedScore(bestByScore)
	row.PPv1 = legacyAggregate(ctx, deps, best)

	return row, nil
}

package jobs

import (
	"context"
	"fmt"

	"github.com/okian/rankforge/internal/batch"
	"github.com/okian/rankforge/internal/domain/model"
	"github.com/okian/rankforge/pkg/logger"
	"github.com/okian/rankforge/pkg/metrics"
)

// Execution strategies for population-wide pp sweeps.
const (
	strategySequential = "sequential"
	strategyPool       = "pool"
	strategyIsolated   = "isolated"
)

// RecalculatePP recalculates the pp of every user's best scores. The
// optional strategy argument selects sequential execution, a shared
// worker pool, or isolated workers that each own a fresh store handle.
func RecalculatePP(ctx context.Context, deps *Deps, args []string) error {
	strategy := strategyIsolated
	if len(args) > 0 {
		strategy = args[0]
	}

	runner := deps.runner()

	var total batch.Report
	err := batch.Pages(ctx, deps.pageSize(), deps.Store.FetchUsersPage,
		func(ctx context.Context, page []*model.User) error {
			report, err := runScorePage(ctx, deps, runner, strategy, page)
			if err != nil {
				return err
			}
			total.Add(report)
			return nil
		})
	if err != nil {
		return err
	}

	logReport(ctx, deps, "recalculate-pp", total)
	return nil
}

func runScorePage(ctx context.Context, deps *Deps, runner *batch.Runner, strategy string, page []*model.User) (batch.Report, error) {
	switch strategy {
	case strategySequential:
		return batch.Run(ctx, runner, page, func(ctx context.Context, user *model.User) error {
			return recalcUserPP(ctx, deps, deps.Store, user)
		}), nil

	case strategyPool:
		return batch.RunPool(ctx, runner, deps.Workers, page, func(ctx context.Context, user *model.User) error {
			return recalcUserPP(ctx, deps, deps.Store, user)
		}), nil

	case strategyIsolated:
		if deps.NewStore == nil {
			return batch.Report{}, fmt.Errorf("isolated strategy needs a store factory")
		}
		return batch.RunIsolated(ctx, runner, deps.Workers, page, deps.NewStore,
			func(ctx context.Context, st Store, user *model.User) error {
				return recalcUserPP(ctx, deps, st, user)
			}), nil

	default:
		return batch.Report{}, fmt.Errorf("%w: unknown strategy %q", ErrBadArguments, strategy)
	}
}

// recalcUserPP refreshes the stored pp of one user's best scores across
// all modes, then recomputes the aggregates over the fresh values so the
// leaderboard and rank never lag a sweep. A calculator failure excludes
// the single score, never the user.
func recalcUserPP(ctx context.Context, deps *Deps, st Store, user *model.User) error {
	for _, mode := range model.AllModes() {
		best, err := st.FetchBest(ctx, user.ID, mode, !deps.Flags.ApprovedMapRewards)
		if err != nil {
			return fmt.Errorf("best scores of user %d mode %d: %w", user.ID, mode, err)
		}
		if len(best) == 0 {
			continue
		}
		for _, score := range best {
			if err := recalcScorePP(ctx, deps, st, score); err != nil {
				return err
			}
		}
		if err := recalcUserStats(ctx, deps, st, user, mode); err != nil {
			return fmt.Errorf("refresh aggregates of user %d mode %d: %w", user.ID, mode, err)
		}
	}
	return nil
}

// recalcScorePP recomputes and persists one score's pp. Only persistence
// errors propagate; calculator failures are logged and skipped.
func recalcScorePP(ctx context.Context, deps *Deps, st Store, score *model.Score) error {
	pp, err := deps.Calc.CurrentPP(ctx, score)
	if err != nil {
		deps.log().Warn(ctx, "pp calculation failed, skipping score",
			logger.Int64("score_id", score.ID),
			logger.Error(err),
		)
		metrics.RecordCalculatorFailure()
		return nil
	}

	if pp == score.PP {
		return nil
	}

	if err := st.UpdateScorePP(ctx, score.ID, pp); err != nil {
		return fmt.Errorf("persist pp of score %d: %w", score.ID, err)
	}
	metrics.RecordScoreUpdate()
	return nil
}

// RecalculateFailedPP retries scores whose pp is still the zero
// sentinel from an earlier failed calculation.
func RecalculateFailedPP(ctx context.Context, deps *Deps, _ []string) error {
	scores, err := deps.Store.FetchFailedPP(ctx)
	if err != nil {
		return fmt.Errorf("fetch failed scores: %w", err)
	}
	if len(scores) == 0 {
		deps.log().Info(ctx, "no failed scores to retry")
		return nil
	}

	report := batch.Run(ctx, deps.runner(), scores, func(ctx context.Context, score *model.Score) error {
		return recalcScorePP(ctx, deps, deps.Store, score)
	})
	logReport(ctx, deps, "recalculate-failed-pp", report)
	return nil
}

// RecalculateAllScores sweeps every score in the system, not just the
// best ones. Heavy; meant for calculator version rollouts.
func RecalculateAllScores(ctx context.Context, deps *Deps, _ []string) error {
	total, err := deps.Store.CountScores(ctx)
	if err != nil {
		return fmt.Errorf("count scores: %w", err)
	}
	deps.log().Info(ctx, "sweeping all scores", logger.Int("total", total))

	runner := deps.runner()

	var report batch.Report
	err = batch.Pages(ctx, deps.pageSize(), deps.Store.FetchScoresPage,
		func(ctx context.Context, page []*model.Score) error {
			r := batch.RunPool(ctx, runner, deps.Workers, page, func(ctx context.Context, score *model.Score) error {
				return recalcScorePP(ctx, deps, deps.Store, score)
			})
			report.Add(r)
			return nil
		})
	if err != nil {
		return err
	}

	logReport(ctx, deps, "recalculate-all-scores", report)
	return nil
}

package jobs

import (
	"context"
	"fmt"

	"github.com/okian/rankforge/pkg/logger"
	"github.com/okian/rankforge/pkg/metrics"
)

// ChangeCountry moves a user between country leaderboards: the stored
// country is updated, the old country sets are purged and every mode's
// stats are re-pushed under the new country.
func ChangeCountry(ctx context.Context, deps *Deps, args []string) error {
	userID, err := parseUser(args)
	if err != nil {
		return err
	}
	if len(args) < 2 || len(args[1]) != 2 {
		return fmt.Errorf("%w: expected <user> <two-letter country>", ErrBadArguments)
	}
	country := args[1]

	return deps.Store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		user, err := tx.FetchUserByID(ctx, userID)
		if err != nil {
			deps.log().Warn(ctx, "user not found", logger.Int64("user_id", userID))
			return nil
		}
		if user.Country == country {
			deps.log().Info(ctx, "country unchanged",
				logger.Int64("user_id", userID),
				logger.String("country", country),
			)
			return nil
		}

		if err := tx.UpdateUserCountry(ctx, userID, country); err != nil {
			return fmt.Errorf("persist country: %w", err)
		}

		if err := deps.Cache.RemoveCountry(ctx, userID, user.Country); err != nil {
			return fmt.Errorf("purge old country sets: %w", err)
		}

		rows, err := tx.FetchAllStats(ctx, userID)
		if err != nil {
			return fmt.Errorf("stats of user %d: %w", userID, err)
		}
		for _, row := range rows {
			if err := deps.Cache.Update(ctx, row, country); err != nil {
				return fmt.Errorf("push mode %d under new country: %w", row.Mode, err)
			}
			metrics.RecordLeaderboardPush()

			rank, err := deps.Cache.CountryRank(ctx, userID, row.Mode, country)
			if err != nil {
				return fmt.Errorf("query new country rank: %w", err)
			}
			deps.log().Info(ctx, "entered new country leaderboard",
				logger.Int64("user_id", userID),
				logger.Int("mode", int(row.Mode)),
				logger.Int("rank", rank),
			)
		}

		deps.log().Info(ctx, "moved user between countries",
			logger.Int64("user_id", userID),
			logger.String("from", user.Country),
			logger.String("to", country),
		)
		return nil
	})
}

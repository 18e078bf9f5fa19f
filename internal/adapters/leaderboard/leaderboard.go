// Package leaderboard adapts the external sorted-set cache holding the
// authoritative "current rank" per mode and per country.
//
// The engine is the sole writer of entries derived from UserStats; the
// cache's storage itself is owned by the redis service.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/okian/rankforge/internal/domain/model"
)

// Entry is a ranked member read back from the cache.
type Entry struct {
	Rank   int
	UserID int64
	PP     float64
}

// Cache wraps the redis client with the ranking key scheme.
type Cache struct {
	client *redis.Client
}

// New creates a Cache over an established redis client.
func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func globalKey(mode model.Mode) string {
	return fmt.Sprintf("leaderboard:%d", mode)
}

func countryKey(mode model.Mode, country string) string {
	return fmt.Sprintf("leaderboard:%d:%s", mode, country)
}

func legacyKey(mode model.Mode) string {
	return fmt.Sprintf("ppv1:%d", mode)
}

func member(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// Update pushes the stats row into the global and country sets for its mode.
func (c *Cache) Update(ctx context.Context, stats *model.UserStats, country string) error {
	entry := &redis.Z{Score: stats.PP, Member: member(stats.UserID)}

	pipe := c.client.TxPipeline()
	pipe.ZAdd(ctx, globalKey(stats.Mode), entry)
	pipe.ZAdd(ctx, countryKey(stats.Mode, country), entry)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push leaderboard entry: %w", err)
	}
	return nil
}

// UpdateLegacy pushes the stats row's ppv1 into the secondary legacy set.
func (c *Cache) UpdateLegacy(ctx context.Context, stats *model.UserStats) error {
	err := c.client.ZAdd(ctx, legacyKey(stats.Mode), &redis.Z{
		Score:  stats.PPv1,
		Member: member(stats.UserID),
	}).Err()
	if err != nil {
		return fmt.Errorf("push legacy entry: %w", err)
	}
	return nil
}

// RemoveCountry drops the user from every per-country set of the country.
func (c *Cache) RemoveCountry(ctx context.Context, userID int64, country string) error {
	pipe := c.client.TxPipeline()
	for _, mode := range model.AllModes() {
		pipe.ZRem(ctx, countryKey(mode, country), member(userID))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove country entries: %w", err)
	}
	return nil
}

// Remove drops the user from the global and legacy sets of every mode.
func (c *Cache) Remove(ctx context.Context, userID int64) error {
	pipe := c.client.TxPipeline()
	for _, mode := range model.AllModes() {
		pipe.ZRem(ctx, globalKey(mode), member(userID))
		pipe.ZRem(ctx, legacyKey(mode), member(userID))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove entries: %w", err)
	}
	return nil
}

// GlobalRank returns the user's 1-based global rank for the mode, or 0
// when the user was never inserted.
func (c *Cache) GlobalRank(ctx context.Context, userID int64, mode model.Mode) (int, error) {
	return c.rank(ctx, globalKey(mode), userID)
}

// CountryRank returns the user's 1-based country rank for the mode, or 0
// when the user was never inserted.
func (c *Cache) CountryRank(ctx context.Context, userID int64, mode model.Mode, country string) (int, error) {
	return c.rank(ctx, countryKey(mode, country), userID)
}

func (c *Cache) rank(ctx context.Context, key string, userID int64) (int, error) {
	pos, err := c.client.ZRevRank(ctx, key, member(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query rank: %w", err)
	}
	return int(pos) + 1, nil
}

// TopPlayers returns the highest-ranked entries for the mode, possibly empty.
func (c *Cache) TopPlayers(ctx context.Context, mode model.Mode, limit int64) ([]Entry, error) {
	members, err := c.client.ZRevRangeWithScores(ctx, globalKey(mode), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("query top players: %w", err)
	}

	entries := make([]Entry, 0, len(members))
	for i, m := range members {
		id, err := strconv.ParseInt(fmt.Sprint(m.Member), 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Rank:   i + 1,
			UserID: id,
			PP:     m.Score,
		})
	}
	return entries, nil
}

// Count returns the number of members in the mode's global set.
func (c *Cache) Count(ctx context.Context, mode model.Mode) (int64, error) {
	n, err := c.client.ZCard(ctx, globalKey(mode)).Result()
	if err != nil {
		return 0, fmt.Errorf("count leaderboard entries: %w", err)
	}
	return n, nil
}

// SetCounter stores a site-wide counter consumed by the frontend.
func (c *Cache) SetCounter(ctx context.Context, name string, value int64) error {
	if err := c.client.Set(ctx, "stats:"+name, value, 0).Err(); err != nil {
		return fmt.Errorf("set counter %q: %w", name, err)
	}
	return nil
}

package store

import (
	"context"
	"fmt"

	"github.com/okian/rankforge/internal/domain/model"
)

// FetchUserByID returns a single user or ErrNotFound.
func (d *DB) FetchUserByID(ctx context.Context, userID int64) (*model.User, error) {
	user := new(model.User)
	err := d.bun.NewSelect().
		Model(user).
		Where("id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch user %d: %w", userID, notFound(err))
	}
	return user, nil
}

// FetchUsersPage returns a fixed-size window of active users ordered by id.
func (d *DB) FetchUsersPage(ctx context.Context, offset, limit int) ([]*model.User, error) {
	var users []*model.User
	err := d.bun.NewSelect().
		Model(&users).
		Where("active = TRUE").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch user page: %w", err)
	}
	return users, nil
}

// UpdateUserCountry persists a country change on the user row.
func (d *DB) UpdateUserCountry(ctx context.Context, userID int64, country string) error {
	_, err := d.bun.NewUpdate().
		Model((*model.User)(nil)).
		Set("country = ?", country).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update user country: %w", err)
	}
	return nil
}

// CountUsers returns the total number of active users.
func (d *DB) CountUsers(ctx context.Context) (int, error) {
	n, err := d.bun.NewSelect().
		Model((*model.User)(nil)).
		Where("active = TRUE").
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// CountBeatmaps returns the total number of known beatmaps.
func (d *DB) CountBeatmaps(ctx context.Context) (int, error) {
	n, err := d.bun.NewSelect().
		Model((*model.Beatmap)(nil)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count beatmaps: %w", err)
	}
	return n, nil
}

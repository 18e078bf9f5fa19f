package model

import (
	"time"

	"github.com/uptrace/bun"
)

// User is an account that owns scores and per-mode stats.
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Name      string    `bun:"name,notnull"`
	Country   string    `bun:"country,notnull"`
	Active    bool      `bun:"active,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`

	Stats []*UserStats `bun:"rel:has-many,join:id=user_id"`
}

// Beatmap is an individual playable difficulty within a set.
type Beatmap struct {
	bun.BaseModel `bun:"table:beatmaps"`

	ID          int64 `bun:"id,pk"`
	SetID       int64 `bun:"set_id,notnull"`
	Status      int   `bun:"status,notnull"`
	TotalLength int   `bun:"total_length,notnull"`
}

// Beatmap ranking statuses relevant to reward eligibility.
const (
	BeatmapRanked   = 1
	BeatmapApproved = 2
)

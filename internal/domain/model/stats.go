package model

import (
	"time"

	"github.com/uptrace/bun"
)

// UserStats is the per (user, mode) aggregate row. One row per user per
// mode, created on account creation and rewritten by every recompute pass.
type UserStats struct {
	bun.BaseModel `bun:"table:stats"`

	UserID      int64   `bun:"user_id,pk"`
	Mode        Mode    `bun:"mode,pk"`
	PP          float64 `bun:"pp,notnull"`
	PPVanilla   float64 `bun:"pp_vn,notnull"`
	PPRelax     float64 `bun:"pp_rx,notnull"`
	PPAutopilot float64 `bun:"pp_ap,notnull"`
	PPv1        float64 `bun:"ppv1,notnull"`
	Acc         float64 `bun:"acc,notnull"`
	RankedScore int64   `bun:"rscore,notnull"`
	TotalScore  int64   `bun:"tscore,notnull"`
	Playcount   int     `bun:"playcount,notnull"`
	PlaytimeSec int64   `bun:"playtime,notnull"`
	MaxCombo    int     `bun:"max_combo,notnull"`
	Rank        int     `bun:"rank,notnull"`
	PeakRank    int     `bun:"peak_rank,notnull"`
}

// RankHistoryEntry is an immutable append-only record of an applied rank
// correction, used for trend display.
type RankHistoryEntry struct {
	bun.BaseModel `bun:"table:rank_history"`

	ID        int64     `bun:"id,pk,autoincrement"`
	UserID    int64     `bun:"user_id,notnull"`
	Mode      Mode      `bun:"mode,notnull"`
	Country   string    `bun:"country,notnull"`
	Rank      int       `bun:"rank,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

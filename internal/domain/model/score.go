// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/uptrace/bun"
)

// Status classifies a score under one ranking key (pp or total score).
// The classifier only ever reads statuses above StatusFailed and only ever
// writes StatusSubmitted, StatusBest or StatusModsBest.
type Status int8

// Score status states.
const (
	StatusUnclassified Status = -1
	StatusHidden       Status = 0
	StatusFailed       Status = 1
	StatusSubmitted    Status = 2
	StatusBest         Status = 3
	StatusModsBest     Status = 4
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusUnclassified:
		return "unclassified"
	case StatusHidden:
		return "hidden"
	case StatusFailed:
		return "failed"
	case StatusSubmitted:
		return "submitted"
	case StatusBest:
		return "best"
	case StatusModsBest:
		return "best-for-mods"
	default:
		return "unknown"
	}
}

// Classifiable reports whether a score in this state may enter a
// classification pass. Hidden, failed and unclassified scores never do.
func (s Status) Classifiable() bool {
	return s > StatusFailed
}

// Mods is the gameplay modifier bitmask attached to a score.
type Mods uint32

// Modifier bits relevant to ranking.
const (
	ModRelax     Mods = 1 << 7
	ModAutopilot Mods = 1 << 13
)

// Relaxing reports whether the relax or autopilot bit is set.
func (m Mods) Relaxing() bool {
	return m&(ModRelax|ModAutopilot) != 0
}

// Mode is one of the four discrete game modes.
type Mode uint8

// Game modes.
const (
	ModeOsu Mode = iota
	ModeTaiko
	ModeCatch
	ModeMania
)

// ModeCount is the number of game modes.
const ModeCount = 4

// AllModes lists every mode, in order.
func AllModes() []Mode {
	return []Mode{ModeOsu, ModeTaiko, ModeCatch, ModeMania}
}

// Score is a single submitted play against a beatmap.
type Score struct {
	bun.BaseModel `bun:"table:scores"`

	ID          int64     `bun:"id,pk,autoincrement"`
	UserID      int64     `bun:"user_id,notnull"`
	BeatmapID   int64     `bun:"beatmap_id,notnull"`
	Mode        Mode      `bun:"mode,notnull"`
	Mods        Mods      `bun:"mods,notnull"`
	PP          float64   `bun:"pp,notnull"`
	PPv1        float64   `bun:"ppv1,notnull"`
	Acc         float64   `bun:"acc,notnull"`
	TotalScore  int64     `bun:"total_score,notnull"`
	MaxCombo    int       `bun:"max_combo,notnull"`
	StatusPP    Status    `bun:"status_pp,notnull"`
	StatusScore Status    `bun:"status_score,notnull"`
	Hidden      bool      `bun:"hidden,notnull"`
	FailTimeMS  int64     `bun:"failtime,nullzero"`
	SubmittedAt time.Time `bun:"submitted_at,notnull"`

	Beatmap *Beatmap `bun:"rel:belongs-to,join:beatmap_id=id"`
}

// RankingKey selects the metric a classification pass orders by.
type RankingKey uint8

// Ranking keys.
const (
	KeyPP RankingKey = iota
	KeyScore
)

// Value returns the score's value under the key.
func (k RankingKey) Value(s *Score) float64 {
	if k == KeyScore {
		return float64(s.TotalScore)
	}
	return s.PP
}

// Status returns the score's status field under the key.
func (k RankingKey) Status(s *Score) Status {
	if k == KeyScore {
		return s.StatusScore
	}
	return s.StatusPP
}

// Column returns the store column holding the key's status field.
func (k RankingKey) Column() string {
	if k == KeyScore {
		return "status_score"
	}
	return "status_pp"
}

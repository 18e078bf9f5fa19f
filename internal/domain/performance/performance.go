// Package performance defines the contract for the external difficulty
// and performance calculator.
//
// The engine never computes raw pp or legacy weights itself; it treats the
// calculator as an opaque capability. Failures are reported per score so
// callers can skip the score without aborting the pass.
package performance

import (
	"context"
	"errors"
	"math"

	"github.com/okian/rankforge/internal/domain/model"
)

// Sentinel error kinds for this package.
var (
	// ErrNoResult means the calculator produced no value for the score.
	ErrNoResult = errors.New("calculator produced no result")
)

// Calculator computes per-score performance values.
type Calculator interface {
	// CurrentPP computes the score's pp under the current system.
	CurrentPP(ctx context.Context, score *model.Score) (float64, error)

	// LegacyScore computes the score's weight under the legacy (ppv1)
	// system. Combined by the aggregate package's decay ladder.
	LegacyScore(ctx context.Context, score *model.Score) (float64, error)
}

// Simulator configuration defaults.
const (
	defaultPPScale     = 1.0
	defaultLegacyScale = 0.06
)

// Option applies a configuration option to the Simulator.
type Option func(*Simulator)

// WithPPScale adjusts the simulated pp scale factor.
func WithPPScale(scale float64) Option {
	return func(s *Simulator) {
		if scale > 0 {
			s.ppScale = scale
		}
	}
}

// WithLegacyScale adjusts the simulated legacy weight scale factor.
func WithLegacyScale(scale float64) Option {
	return func(s *Simulator) {
		if scale > 0 {
			s.legacyScale = scale
		}
	}
}

// Simulator implements Calculator with a deterministic stand-in for the
// real difficulty engine. Useful for local runs and load tests where the
// engine binary is unavailable.
type Simulator struct {
	ppScale     float64
	legacyScale float64
}

// NewSimulator creates a simulator with configuration options.
func NewSimulator(opts ...Option) *Simulator {
	s := &Simulator{
		ppScale:     defaultPPScale,
		legacyScale: defaultLegacyScale,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CurrentPP derives a deterministic pp value from the score's own fields.
func (s *Simulator) CurrentPP(ctx context.Context, score *model.Score) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if score.TotalScore <= 0 {
		return 0, ErrNoResult
	}

	base := math.Log10(float64(score.TotalScore)) * float64(score.MaxCombo+1)
	return base * score.Acc * s.ppScale, nil
}

// LegacyScore derives a deterministic legacy weight from the score.
func (s *Simulator) LegacyScore(ctx context.Context, score *model.Score) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if score.TotalScore <= 0 {
		return 0, ErrNoResult
	}

	return float64(score.TotalScore) * score.Acc * s.legacyScale / 1000.0, nil
}

// Package rating converts one interaction into updated scores for both
// participants using an Elo-style expected/actual comparison.
package rating

import (
	"math"

	"github.com/okian/elove/internal/domain/errs"
	"github.com/okian/elove/internal/domain/model"
)

// Default engine configuration constants.
const (
	defaultBaseK = 32.0
	eloDivisor   = 400.0

	// K-factor tiers, keyed by the participant's score before the update.
	firstTierCeiling  = 1400.0
	secondTierCeiling = 1800.0
	firstTierScale    = 1.0
	secondTierScale   = 0.8
	topTierScale      = 0.6

	neutralValueLow  = 5
	neutralValueHigh = 6
	neutralTarget    = 0.5
	positiveStep     = 0.125
	recipientBonus   = 0.2
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithBaseK sets the base K-factor. Non-positive values are ignored.
func WithBaseK(k float64) Option {
	return func(e *Engine) {
		if k > 0 {
			e.baseK = k
		}
	}
}

// Input carries the scores of both sides and the interaction being applied.
type Input struct {
	FromScore  float64
	ToScore    float64
	Value      int
	IsPositive bool
}

// Result holds both updated scores plus display data derived from them.
type Result struct {
	FromScore float64 `json:"new_from_score"`
	ToScore   float64 `json:"new_to_score"`
	FromDelta float64 `json:"from_delta"`
	ToDelta   float64 `json:"to_delta"`
	FromTier  string  `json:"from_tier"`
	ToTier    string  `json:"to_tier"`
	Impact    string  `json:"impact"`
}

// Engine computes score updates. It holds no state beyond its configuration
// and is safe for concurrent use.
type Engine struct {
	baseK float64
}

// NewEngine creates an engine with configuration options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{baseK: defaultBaseK}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BaseK returns the configured base K-factor.
func (e *Engine) BaseK() float64 { return e.baseK }

// Update validates in and returns the new scores for both sides.
func (e *Engine) Update(in Input) (Result, error) {
	const op = "rating.update"
	if err := ValidateValue(in.Value); err != nil {
		return Result{}, errs.Wrap(op, err)
	}
	if math.IsNaN(in.FromScore) || math.IsNaN(in.ToScore) {
		return Result{}, errs.Newf(op, errs.ErrValidation, "scores must be numbers")
	}

	expectedFrom := ExpectedScore(in.FromScore, in.ToScore)
	expectedTo := ExpectedScore(in.ToScore, in.FromScore)
	actualFrom, actualTo := ActualScores(in.Value, in.IsPositive)

	newFrom := clamp(in.FromScore + e.KFactor(in.FromScore)*(actualFrom-expectedFrom))
	newTo := clamp(in.ToScore + e.KFactor(in.ToScore)*(actualTo-expectedTo))

	return Result{
		FromScore: newFrom,
		ToScore:   newTo,
		FromDelta: newFrom - in.FromScore,
		ToDelta:   newTo - in.ToScore,
		FromTier:  Tier(newFrom),
		ToTier:    Tier(newTo),
		Impact:    ImpactDescription(in.Value, in.IsPositive),
	}, nil
}

// ValidateValue rejects interaction values outside [1, 10].
func ValidateValue(value int) error {
	if value < model.MinValue || value > model.MaxValue {
		return errs.Newf("rating.validate", errs.ErrValidation,
			"value %d outside %d-%d", value, model.MinValue, model.MaxValue)
	}
	return nil
}

// ExpectedScore is the logistic expectation of a against b.
// ExpectedScore(a, b) + ExpectedScore(b, a) == 1.
func ExpectedScore(a, b float64) float64 {
	return 1 / (1 + math.Pow(10, (b-a)/eloDivisor))
}

// NormalizedValue maps a 1-10 value onto [0, 1]:
// 1-4 spread over [0, 1/3], 5-6 neutral at 0.5, 7-10 over [0.625, 1].
func NormalizedValue(value int) float64 {
	switch {
	case value < neutralValueLow:
		return float64(value-1) / 9
	case value <= neutralValueHigh:
		return neutralTarget
	default:
		return neutralTarget + float64(value-neutralValueHigh)*positiveStep
	}
}

// ActualScores returns the observed outcome for the initiator and the recipient.
func ActualScores(value int, positive bool) (from, to float64) {
	normalized := NormalizedValue(value)
	if !positive {
		return neutralTarget, normalized
	}
	switch {
	case value >= 8:
		from = 1.0
	case value >= 6:
		from = 0.8
	default:
		from = 0.6
	}
	return from, math.Min(1.0, normalized+recipientBonus)
}

// KFactor scales the base K down as the current score rises.
func (e *Engine) KFactor(current float64) float64 {
	switch {
	case current < firstTierCeiling:
		return e.baseK * firstTierScale
	case current < secondTierCeiling:
		return e.baseK * secondTierScale
	default:
		return e.baseK * topTierScale
	}
}

func clamp(score float64) float64 {
	return math.Max(model.MinScore, math.Min(model.MaxScore, score))
}

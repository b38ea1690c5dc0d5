// Package analysis prices a swap against a constant-product pool snapshot and
// classifies the result into a risk tier.
//
// Price impact uses the ratio-difference form |mid - effective| / mid. The
// integer reserve-product form lives in internal/dex/uniswapv2.
package analysis

import (
	"fmt"
	"math"

	"github.com/devlongs/trade-guardian/pkg/types"
)

// Config is the risk policy
type Config struct {
	Rules              []Rule // evaluated in order, first match wins
	SafeTemplate       string
	PendingTemplate    string
	SlippageMultiplier float64
}

// DefaultConfig returns the reference policy
func DefaultConfig() Config {
	return Config{
		Rules:              DefaultRules(),
		SafeTemplate:       DefaultSafeTemplate,
		PendingTemplate:    DefaultPendingTemplate,
		SlippageMultiplier: DefaultSlippageMultiplier,
	}
}

// Engine computes trade analyses. It holds no mutable state.
type Engine struct {
	cfg Config
}

// NewEngine validates the policy and returns an engine
func NewEngine(cfg Config) (*Engine, error) {
	if err := validateRules(cfg.Rules); err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}
	if cfg.SlippageMultiplier < 1 {
		return nil, fmt.Errorf("analysis: slippage multiplier must be >= 1, got %v", cfg.SlippageMultiplier)
	}
	rules := make([]Rule, len(cfg.Rules))
	copy(rules, cfg.Rules)
	cfg.Rules = rules
	return &Engine{cfg: cfg}, nil
}

// Rules returns a copy of the configured risk table
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.cfg.Rules))
	copy(out, e.cfg.Rules)
	return out
}

// Analyze prices inputAmount of the source asset against reserves.
// inputAmount must be finite and positive; callers reject anything else.
func (e *Engine) Analyze(inputAmount float64, reserves types.PoolReserves, dir types.Direction) types.TradeAnalysis {
	x, y := reserves.Sides(dir)
	if x == 0 {
		return e.pending(inputAmount)
	}

	amountInWithFee := inputAmount * (1 - reserves.Fee)
	expectedOutput := (amountInWithFee * y) / (x + amountInWithFee)

	midPrice := y / x
	effectivePrice := expectedOutput / inputAmount
	priceImpact := math.Abs((midPrice-effectivePrice)/midPrice) * 100

	health, action, maxSize := e.classify(priceImpact, x, inputAmount)

	return types.TradeAnalysis{
		ExpectedOutput:     expectedOutput,
		PriceImpact:        priceImpact,
		EffectivePrice:     effectivePrice,
		MidPrice:           midPrice,
		Slippage:           priceImpact * e.cfg.SlippageMultiplier,
		Health:             health,
		SuggestedAction:    action,
		MaxRecommendedSize: maxSize,
	}
}

// Classify returns the tier for a price impact and the rule that produced
// it. ok is false when no rule matched and the Safe fallback applies.
func (e *Engine) Classify(priceImpact float64) (health types.Health, rule Rule, ok bool) {
	for _, r := range e.cfg.Rules {
		if priceImpact > r.Above {
			return r.Health, r, true
		}
	}
	return types.Safe, Rule{}, false
}

func (e *Engine) classify(priceImpact, sourceReserve, inputAmount float64) (types.Health, string, float64) {
	health, rule, ok := e.Classify(priceImpact)
	if !ok {
		return types.Safe, render(e.cfg.SafeTemplate, priceImpact, inputAmount, inputAmount), inputAmount
	}
	maxSize := sourceReserve * rule.ReserveFraction
	return health, render(rule.Template, priceImpact, maxSize, inputAmount), maxSize
}

func (e *Engine) pending(inputAmount float64) types.TradeAnalysis {
	return types.TradeAnalysis{
		Health:             types.Safe,
		SuggestedAction:    e.cfg.PendingTemplate,
		MaxRecommendedSize: inputAmount,
	}
}

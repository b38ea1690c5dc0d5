// Package assess is the entry point for pricing a trade request: it validates
// input, takes one reserve snapshot, runs the float and exact engines and
// attaches advisory text.
package assess

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/devlongs/trade-guardian/internal/advisor"
	"github.com/devlongs/trade-guardian/internal/analysis"
	"github.com/devlongs/trade-guardian/internal/dex/uniswapv2"
	"github.com/devlongs/trade-guardian/internal/pool"
	"github.com/devlongs/trade-guardian/pkg/types"
)

var (
	ErrInvalidRequest = errors.New("assess: invalid request")
	ErrInvalidAmount  = errors.New("assess: invalid amount")
)

// bisection stops after this many halvings or once the bracket is this tight
const (
	maxBisectSteps   = 64
	bisectRelEpsilon = 1e-9
)

// Request is a single trade to assess
type Request struct {
	Sell   string  `json:"sell"`
	Buy    string  `json:"buy"`
	Amount float64 `json:"amount"`
}

// ExactConfig controls the integer base-unit check
type ExactConfig struct {
	Enabled        bool
	FeeDenominator uint64
	SafeBps        uint64
}

// DefaultExactConfig expresses fees in pips and uses the contract cutoff
func DefaultExactConfig() ExactConfig {
	return ExactConfig{
		Enabled:        true,
		FeeDenominator: 1_000_000,
		SafeBps:        uniswapv2.DefaultSafeBps,
	}
}

// Advisor supplies advisory text; it must not fail
type Advisor interface {
	Advise(ctx context.Context, s advisor.Summary) string
}

// Recorder receives every completed assessment
type Recorder interface {
	LogAssessment(a *types.Assessment)
}

// Assessor is safe for concurrent use
type Assessor struct {
	provider *pool.Provider
	engine   *analysis.Engine
	advisor  Advisor
	recorder Recorder
	exact    ExactConfig
	now      func() time.Time
}

// Option customizes an Assessor
type Option func(*Assessor)

// WithRecorder reports assessments to r
func WithRecorder(r Recorder) Option {
	return func(a *Assessor) { a.recorder = r }
}

// WithExact overrides the exact-engine settings
func WithExact(cfg ExactConfig) Option {
	return func(a *Assessor) { a.exact = cfg }
}

// WithClock overrides the CreatedAt timestamp source
func WithClock(now func() time.Time) Option {
	return func(a *Assessor) { a.now = now }
}

// New creates an Assessor. A nil advisor yields the static fallback text.
func New(provider *pool.Provider, engine *analysis.Engine, adv Advisor, opts ...Option) *Assessor {
	a := &Assessor{
		provider: provider,
		engine:   engine,
		advisor:  adv,
		exact:    DefaultExactConfig(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Provider returns the reserve provider
func (a *Assessor) Provider() *pool.Provider {
	return a.provider
}

// Assess prices req against a single reserve snapshot
func (a *Assessor) Assess(ctx context.Context, req Request) (*types.Assessment, error) {
	sell, buy, err := validatePair(req.Sell, req.Buy)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}

	reserves := a.provider.GetReserves(sell, buy)
	pair := types.PairName(sell, buy)
	result := a.engine.Analyze(req.Amount, reserves, types.ZeroForOne)

	out := &types.Assessment{
		ID:        uuid.New(),
		Pair:      pair,
		Sell:      sell,
		Buy:       buy,
		Amount:    req.Amount,
		Reserves:  reserves,
		Analysis:  result,
		CreatedAt: a.now().UTC(),
	}

	if a.exact.Enabled {
		exact, err := a.Exact(sell, buy, req.Amount, reserves)
		if err != nil {
			log.Warn().Err(err).Str("pair", pair).Float64("amount", req.Amount).Msg("Exact check skipped")
		} else {
			out.Exact = exact
		}
	}

	if a.advisor != nil {
		out.Advisory = a.advisor.Advise(ctx, advisor.SummaryOf(pair, result))
	} else {
		out.Advisory = advisor.FallbackAdvice
	}

	if a.recorder != nil {
		a.recorder.LogAssessment(out)
	}
	return out, nil
}

// Exact reruns the trade in integer base units using each token's decimals
func (a *Assessor) Exact(sell, buy string, amount float64, reserves types.PoolReserves) (*types.ExactAnalysis, error) {
	registry := a.provider.Registry()
	decIn := registry.Resolve(sell).Decimals
	decOut := registry.Resolve(buy).Decimals

	amountIn, err := uniswapv2.ToBaseUnits(amount, decIn)
	if err != nil {
		return nil, fmt.Errorf("scale amount: %w", err)
	}
	reserveIn, err := uniswapv2.ToBaseUnits(reserves.Reserve0, decIn)
	if err != nil {
		return nil, fmt.Errorf("scale reserve in: %w", err)
	}
	reserveOut, err := uniswapv2.ToBaseUnits(reserves.Reserve1, decOut)
	if err != nil {
		return nil, fmt.Errorf("scale reserve out: %w", err)
	}
	fee, err := uniswapv2.FeeFromFraction(reserves.Fee, a.exact.FeeDenominator)
	if err != nil {
		return nil, err
	}

	res, err := uniswapv2.AnalyzeTrade(amountIn, reserveIn, reserveOut, fee, a.exact.SafeBps)
	if err != nil {
		return nil, err
	}

	health, _, _ := a.engine.Classify(uniswapv2.ImpactPercent(res.ImpactBps))
	return &types.ExactAnalysis{
		AmountIn:       amountIn.ToBig().String(),
		ExpectedOutput: res.AmountOut.ToBig().String(),
		Output:         uniswapv2.FromBaseUnits(res.AmountOut, decOut),
		ImpactBps:      res.ImpactBps,
		Safe:           res.Safe,
		Health:         health,
	}, nil
}

// Ladder analyzes each size against one shared snapshot. Results keep the
// order of sizes.
func (a *Assessor) Ladder(ctx context.Context, sell, buy string, sizes []float64) ([]types.LadderStep, error) {
	sell, buy, err := validatePair(sell, buy)
	if err != nil {
		return nil, err
	}
	if len(sizes) == 0 {
		return nil, fmt.Errorf("%w: no sizes", ErrInvalidRequest)
	}
	for _, size := range sizes {
		if err := validateAmount(size); err != nil {
			return nil, err
		}
	}

	reserves := a.provider.GetReserves(sell, buy)
	steps := make([]types.LadderStep, len(sizes))

	g, ctx := errgroup.WithContext(ctx)
	for i, size := range sizes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			steps[i] = types.LadderStep{
				Amount:   size,
				Analysis: a.engine.Analyze(size, reserves, types.ZeroForOne),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Debug().Str("pair", types.PairName(sell, buy)).Int("steps", len(steps)).Msg("Ladder computed")
	return steps, nil
}

// MaxSafeSize finds the largest input that still classifies as Safe on one
// snapshot of the pool.
func (a *Assessor) MaxSafeSize(ctx context.Context, sell, buy string) (types.LadderStep, error) {
	sell, buy, err := validatePair(sell, buy)
	if err != nil {
		return types.LadderStep{}, err
	}

	reserves := a.provider.GetReserves(sell, buy)
	x, _ := reserves.Sides(types.ZeroForOne)
	if x <= 0 {
		return types.LadderStep{}, nil
	}

	analyze := func(amount float64) types.TradeAnalysis {
		return a.engine.Analyze(amount, reserves, types.ZeroForOne)
	}

	// the whole source reserve is the upper bracket
	hi := x
	if analyze(hi).Health == types.Safe {
		return types.LadderStep{Amount: hi, Analysis: analyze(hi)}, nil
	}

	lo := 0.0
	for i := 0; i < maxBisectSteps && hi-lo > bisectRelEpsilon*hi; i++ {
		if err := ctx.Err(); err != nil {
			return types.LadderStep{}, err
		}
		mid := lo + (hi-lo)/2
		if analyze(mid).Health == types.Safe {
			lo = mid
		} else {
			hi = mid
		}
	}

	if lo == 0 {
		return types.LadderStep{}, nil
	}
	return types.LadderStep{Amount: lo, Analysis: analyze(lo)}, nil
}

func validatePair(sell, buy string) (string, string, error) {
	sell, buy = strings.TrimSpace(sell), strings.TrimSpace(buy)
	if sell == "" || buy == "" {
		return "", "", fmt.Errorf("%w: sell and buy symbols are required", ErrInvalidRequest)
	}
	return sell, buy, nil
}

func validateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	return nil
}

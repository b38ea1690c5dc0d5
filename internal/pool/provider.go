// Package pool synthesizes constant-product pool reserves for an asset pair.
//
// Reserves are a pure function of the pair, the configured tiers and the
// injected clock. Nothing is cached between calls.
package pool

import (
	"fmt"
	"math"
	"time"
	"unicode/utf16"

	"github.com/devlongs/trade-guardian/internal/token"
	"github.com/devlongs/trade-guardian/pkg/types"
)

// Clock supplies the wall-clock time used by the fluctuation term
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now
type SystemClock struct{}

// Now implements Clock
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant
type FixedClock time.Time

// Now implements Clock
func (c FixedClock) Now() time.Time { return time.Time(c) }

// Config holds the fee and liquidity tiers
type Config struct {
	FeeStable  float64
	FeeMajor   float64
	FeeDefault float64

	LiquidityDeep    float64 // USD, both assets major
	LiquidityMedium  float64 // USD, exactly one major
	LiquidityShallow float64 // USD, neither major

	IdentityReserve float64

	SeedModulus int64   // 1 disables the per-pair offset
	SeedDivisor float64 // offset = (seed % modulus) / divisor

	FluctuationAmplitude float64       // 0 disables the time term
	FluctuationTimescale time.Duration // sin argument is unixMillis / timescaleMillis
}

// DefaultConfig returns the tiers of the reference simulator
func DefaultConfig() Config {
	return Config{
		FeeStable:            0.0001,
		FeeMajor:             0.0005,
		FeeDefault:           0.01,
		LiquidityDeep:        10_000_000,
		LiquidityMedium:      500_000,
		LiquidityShallow:     50_000,
		IdentityReserve:      1_000_000,
		SeedModulus:          10,
		SeedDivisor:          100,
		FluctuationAmplitude: 0.02,
		FluctuationTimescale: 10 * time.Second,
	}
}

// Validate checks that every tier is usable
func (c Config) Validate() error {
	for name, fee := range map[string]float64{
		"fee_stable":  c.FeeStable,
		"fee_major":   c.FeeMajor,
		"fee_default": c.FeeDefault,
	} {
		if fee < 0 || fee >= 1 {
			return fmt.Errorf("pool: %s must be in [0, 1), got %v", name, fee)
		}
	}
	if c.LiquidityDeep <= 0 || c.LiquidityMedium <= 0 || c.LiquidityShallow <= 0 {
		return fmt.Errorf("pool: liquidity tiers must be positive")
	}
	if c.IdentityReserve <= 0 {
		return fmt.Errorf("pool: identity reserve must be positive")
	}
	if c.SeedModulus < 1 {
		return fmt.Errorf("pool: seed modulus must be >= 1, got %d", c.SeedModulus)
	}
	if c.SeedDivisor <= 0 {
		return fmt.Errorf("pool: seed divisor must be positive")
	}
	// The multiplier must stay positive at every instant.
	if c.FluctuationAmplitude < 0 || c.FluctuationAmplitude >= 1 {
		return fmt.Errorf("pool: fluctuation amplitude must be in [0, 1), got %v", c.FluctuationAmplitude)
	}
	if c.FluctuationAmplitude > 0 && c.FluctuationTimescale <= 0 {
		return fmt.Errorf("pool: fluctuation timescale must be positive")
	}
	return nil
}

// Provider generates reserves for asset pairs
type Provider struct {
	cfg      Config
	registry *token.Registry
	clock    Clock
}

// NewProvider creates a provider. A nil clock means SystemClock.
func NewProvider(cfg Config, registry *token.Registry, clock Clock) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = token.DefaultRegistry()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Provider{cfg: cfg, registry: registry, clock: clock}, nil
}

// Registry returns the token registry backing the provider
func (p *Provider) Registry() *token.Registry {
	return p.registry
}

// GetReserves returns a fresh reserve snapshot for selling assetA into assetB.
// Reserve0 belongs to assetA. The pair order matters for the seed.
func (p *Provider) GetReserves(assetA, assetB string) types.PoolReserves {
	if assetA == assetB {
		return types.PoolReserves{
			Reserve0: p.cfg.IdentityReserve,
			Reserve1: p.cfg.IdentityReserve,
			Fee:      0,
		}
	}

	liquidity := p.LiquidityFor(assetA, assetB) * p.multiplier(assetA, assetB)

	return types.PoolReserves{
		Reserve0: liquidity / p.registry.Price(assetA),
		Reserve1: liquidity / p.registry.Price(assetB),
		Fee:      p.FeeFor(assetA, assetB),
	}
}

// FeeFor returns the fee tier for a pair
func (p *Provider) FeeFor(assetA, assetB string) float64 {
	switch {
	case assetA == assetB:
		return 0
	case p.registry.IsStable(assetA) && p.registry.IsStable(assetB):
		return p.cfg.FeeStable
	case p.registry.IsMajor(assetA) && p.registry.IsMajor(assetB):
		return p.cfg.FeeMajor
	default:
		return p.cfg.FeeDefault
	}
}

// LiquidityFor returns the base USD liquidity tier for a pair
func (p *Provider) LiquidityFor(assetA, assetB string) float64 {
	majorA, majorB := p.registry.IsMajor(assetA), p.registry.IsMajor(assetB)
	switch {
	case majorA && majorB:
		return p.cfg.LiquidityDeep
	case majorA || majorB:
		return p.cfg.LiquidityMedium
	default:
		return p.cfg.LiquidityShallow
	}
}

// Classify returns the class of a symbol
func (p *Provider) Classify(symbol string) token.Class {
	return p.registry.Resolve(symbol).Class
}

// multiplier is 1 + per-pair offset + time fluctuation
func (p *Provider) multiplier(assetA, assetB string) float64 {
	seed := PairSeed(assetA, assetB)
	offset := float64(seed%p.cfg.SeedModulus) / p.cfg.SeedDivisor
	return 1 + offset + p.fluctuation(p.clock.Now())
}

func (p *Provider) fluctuation(now time.Time) float64 {
	if p.cfg.FluctuationAmplitude == 0 {
		return 0
	}
	phase := float64(now.UnixMilli()) / float64(p.cfg.FluctuationTimescale.Milliseconds())
	return math.Sin(phase) * p.cfg.FluctuationAmplitude
}

// StringHash is the 32-bit polynomial hash h = h*31 + u over the UTF-16 code
// units of s, wrapping at int32.
func StringHash(s string) int32 {
	var h int32
	for _, u := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(u)
	}
	return h
}

// PairSeed is |StringHash(assetA + assetB)|. Order-dependent: (A, B) and
// (B, A) usually differ.
func PairSeed(assetA, assetB string) int64 {
	h := int64(StringHash(assetA + assetB))
	if h < 0 {
		h = -h
	}
	return h
}

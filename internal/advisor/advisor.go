// Package advisor produces short natural-language advisory notes for an
// analyzed trade. Advise never fails: every error path degrades to a fixed
// fallback sentence.
package advisor

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/devlongs/trade-guardian/pkg/types"
)

const (
	// FallbackAdvice is returned when the annotator is disabled or failing
	FallbackAdvice = "Ensure you are using a pool with deep liquidity to avoid slippage."
	// PendingAdvice is returned when the annotator answers with no text
	PendingAdvice = "Analyzing market conditions..."
)

// Summary is what the annotator sees of a trade
type Summary struct {
	Pair            string       `json:"pair"`
	PriceImpact     float64      `json:"priceImpact"`
	Health          types.Health `json:"health"`
	SuggestedAction string       `json:"suggestedAction"`
}

// SummaryOf extracts the advisory inputs from an analysis
func SummaryOf(pair string, a types.TradeAnalysis) Summary {
	return Summary{
		Pair:            pair,
		PriceImpact:     a.PriceImpact,
		Health:          a.Health,
		SuggestedAction: a.SuggestedAction,
	}
}

// Prompt renders the instruction sent to the language model
func Prompt(s Summary) string {
	var b strings.Builder
	b.WriteString("Analyze this DeFi trade on the Base blockchain for a retail trader:\n")
	fmt.Fprintf(&b, "Pair: %s\n", s.Pair)
	fmt.Fprintf(&b, "Price Impact: %.2f%%\n", s.PriceImpact)
	fmt.Fprintf(&b, "Health Status: %s\n", strings.ToUpper(s.Health.String()))
	fmt.Fprintf(&b, "Suggested Action: %s\n\n", s.SuggestedAction)
	b.WriteString("Provide a very short, punchy advisory note in professional but accessible language. ")
	b.WriteString("Focus on capital preservation. Mention specific risks like 'Low Liquidity' or 'Sandwich Attacks' if impact is high.")
	return b.String()
}

// CacheKey buckets a summary so trades with near-identical impact share advice.
// Buckets are 0.1 percentage points wide.
func CacheKey(s Summary) string {
	bucket := int64(math.Round(s.PriceImpact * 10))
	return fmt.Sprintf("advice:%s:%s:%d", s.Pair, s.Health, bucket)
}

// Annotator turns a trade summary into advisory prose
type Annotator interface {
	Annotate(ctx context.Context, s Summary) (string, error)
}

// Cache stores advisory text. A miss returns ok == false and a nil error.
type Cache interface {
	Get(ctx context.Context, s Summary) (string, bool, error)
	Set(ctx context.Context, s Summary, text string) error
}

// Config controls retries and timeouts around the annotator
type Config struct {
	Enabled      bool
	MaxRetries   int
	RetryBackoff time.Duration
	Timeout      time.Duration
}

// DefaultConfig returns conservative defaults
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		MaxRetries:   2,
		RetryBackoff: 250 * time.Millisecond,
		Timeout:      10 * time.Second,
	}
}

// Advisor wraps an Annotator with caching, retry and fallback
type Advisor struct {
	cfg       Config
	annotator Annotator
	cache     Cache
}

// New creates an Advisor. annotator and cache may be nil.
func New(cfg Config, annotator Annotator, cache Cache) *Advisor {
	return &Advisor{cfg: cfg, annotator: annotator, cache: cache}
}

// Enabled reports whether advice comes from the annotator
func (a *Advisor) Enabled() bool {
	return a != nil && a.cfg.Enabled && a.annotator != nil
}

// Advise returns advisory text for the summary
func (a *Advisor) Advise(ctx context.Context, s Summary) string {
	if !a.Enabled() {
		return FallbackAdvice
	}

	if a.cache != nil {
		text, ok, err := a.cache.Get(ctx, s)
		if err != nil {
			log.Warn().Err(err).Str("pair", s.Pair).Msg("Advisory cache lookup failed")
		} else if ok {
			log.Debug().Str("pair", s.Pair).Msg("Advisory cache hit")
			return text
		}
	}

	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	var text string
	err := withRetry(ctx, a.cfg.MaxRetries, a.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		text, err = a.annotator.Annotate(ctx, s)
		return err
	})
	if err != nil {
		log.Warn().Err(err).Str("pair", s.Pair).Msg("Advisory unavailable, using fallback")
		return FallbackAdvice
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return PendingAdvice
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, s, text); err != nil {
			log.Warn().Err(err).Str("pair", s.Pair).Msg("Advisory cache store failed")
		}
	}
	return text
}

func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}
		log.Debug().Err(err).Int("attempt", attempt+1).Msg("Advisory request failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}

package analysis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/devlongs/trade-guardian/pkg/types"
)

// Rule is one row of the risk table. A rule matches when the price impact
// is strictly greater than Above.
// ReserveFraction sizes the recommended maximum against the source reserve.
type Rule struct {
	Above           float64
	Health          types.Health
	ReserveFraction float64
	Template        string
}

// Template placeholders
const (
	PlaceholderImpact    = "{impact}"
	PlaceholderMaxSize   = "{max_size}"
	PlaceholderSplitSize = "{split_size}"
	PlaceholderInput     = "{input}"
)

// Default thresholds and messages
const (
	DefaultRiskyAbove   = 5.0
	DefaultWarningAbove = 2.0

	DefaultRiskyFraction   = 0.005
	DefaultWarningFraction = 0.015

	DefaultSlippageMultiplier = 1.05

	DefaultRiskyTemplate = "DANGER: {impact}% price impact. Pool liquidity is too thin for this size and the trade " +
		"is an easy sandwich-attack target. Keep single orders under {max_size}, or split into 5+ micro-orders of approx. {split_size} each."
	DefaultWarningTemplate = "Slippage threshold reached ({impact}% impact). Better execution possible if split into 2 separate transactions " +
		"of at most {max_size}."
	DefaultSafeTemplate    = "This trade looks efficient. Proceed with confidence."
	DefaultPendingTemplate = "Awaiting pool data..."
)

// DefaultRules is the reference table: Risky above 5%, Warning above 2%
func DefaultRules() []Rule {
	return []Rule{
		{Above: DefaultRiskyAbove, Health: types.Risky, ReserveFraction: DefaultRiskyFraction, Template: DefaultRiskyTemplate},
		{Above: DefaultWarningAbove, Health: types.Warning, ReserveFraction: DefaultWarningFraction, Template: DefaultWarningTemplate},
	}
}

func validateRules(rules []Rule) error {
	for i, r := range rules {
		if r.Above < 0 {
			return fmt.Errorf("rule %d: threshold must be non-negative, got %v", i, r.Above)
		}
		if r.ReserveFraction <= 0 {
			return fmt.Errorf("rule %d: reserve fraction must be positive, got %v", i, r.ReserveFraction)
		}
		if r.Health == types.Safe {
			return fmt.Errorf("rule %d: Safe is the fallback tier and cannot be a rule", i)
		}
		if i > 0 && r.Above >= rules[i-1].Above {
			return fmt.Errorf("rule %d: thresholds must be strictly descending (%v after %v)", i, r.Above, rules[i-1].Above)
		}
		if i > 0 && r.Health > rules[i-1].Health {
			return fmt.Errorf("rule %d: %s cannot sit below %s", i, r.Health, rules[i-1].Health)
		}
	}
	return nil
}

func render(template string, impact, maxSize, input float64) string {
	return strings.NewReplacer(
		PlaceholderImpact, strconv.FormatFloat(impact, 'f', 2, 64),
		PlaceholderMaxSize, strconv.FormatFloat(maxSize, 'f', 4, 64),
		PlaceholderSplitSize, strconv.FormatFloat(input/5, 'f', 4, 64),
		PlaceholderInput, strconv.FormatFloat(input, 'f', 4, 64),
	).Replace(template)
}

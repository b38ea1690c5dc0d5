package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PoolReserves is a snapshot of a constant-product pool
type PoolReserves struct {
	Reserve0 float64 `json:"reserve0"`
	Reserve1 float64 `json:"reserve1"`
	Fee      float64 `json:"fee"` // fraction of input, e.g. 0.003
}

// Direction selects which side of the pool is being sold
type Direction int

const (
	ZeroForOne Direction = iota // sell asset 0, receive asset 1
	OneForZero
)

// String implements fmt.Stringer
func (d Direction) String() string {
	if d == OneForZero {
		return "1->0"
	}
	return "0->1"
}

// Sides returns the source (x) and destination (y) reserves for the direction
func (r PoolReserves) Sides(d Direction) (x, y float64) {
	if d == OneForZero {
		return r.Reserve1, r.Reserve0
	}
	return r.Reserve0, r.Reserve1
}

// Health is the risk tier of a trade. Ordered: Safe < Warning < Risky.
type Health int

const (
	Safe Health = iota
	Warning
	Risky
)

var healthNames = map[Health]string{
	Safe:    "Safe",
	Warning: "Warning",
	Risky:   "Risky",
}

// String implements fmt.Stringer
func (h Health) String() string {
	if name, ok := healthNames[h]; ok {
		return name
	}
	return fmt.Sprintf("Health(%d)", int(h))
}

// ParseHealth converts a tier name back into a Health
func ParseHealth(s string) (Health, error) {
	for h, name := range healthNames {
		if name == s {
			return h, nil
		}
	}
	return Safe, fmt.Errorf("unknown health %q", s)
}

// MarshalJSON encodes the tier by name
func (h Health) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a tier name
func (h *Health) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseHealth(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// TradeAnalysis is the result of pricing a single swap against a pool snapshot
type TradeAnalysis struct {
	ExpectedOutput     float64 `json:"expectedOutput"`
	PriceImpact        float64 `json:"priceImpact"` // percent
	EffectivePrice     float64 `json:"effectivePrice"`
	MidPrice           float64 `json:"midPrice"`
	Slippage           float64 `json:"slippage"` // percent
	Health             Health  `json:"health"`
	SuggestedAction    string  `json:"suggestedAction"`
	MaxRecommendedSize float64 `json:"maxRecommendedSize"`
}

// ExactAnalysis is the integer-arithmetic counterpart of TradeAnalysis,
// computed in token base units the way the on-chain guardian does.
type ExactAnalysis struct {
	AmountIn       string  `json:"amountIn"`       // base units
	ExpectedOutput string  `json:"expectedOutput"` // base units
	Output         float64 `json:"output"`         // whole tokens
	ImpactBps      uint64  `json:"impactBps"`
	Safe           bool    `json:"safe"`
	Health         Health  `json:"health"`
}

// Assessment bundles everything produced for one trade request
type Assessment struct {
	ID        uuid.UUID      `json:"id"`
	Pair      string         `json:"pair"`
	Sell      string         `json:"sell"`
	Buy       string         `json:"buy"`
	Amount    float64        `json:"amount"`
	Reserves  PoolReserves   `json:"reserves"`
	Analysis  TradeAnalysis  `json:"analysis"`
	Exact     *ExactAnalysis `json:"exact,omitempty"`
	Advisory  string         `json:"advisory"`
	CreatedAt time.Time      `json:"createdAt"`
}

// LadderStep is one trade size evaluated against a shared snapshot
type LadderStep struct {
	Amount   float64       `json:"amount"`
	Analysis TradeAnalysis `json:"analysis"`
}

// PairName formats a pair the way it is shown to users
func PairName(sell, buy string) string {
	return sell + "/" + buy
}

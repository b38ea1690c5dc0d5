// Package token holds the static price table and asset classification used
// by the synthetic pool provider.
package token

import (
	"fmt"
	"sort"
)

// Class groups assets by how deep and cheap their pools tend to be
type Class int

const (
	Other Class = iota
	Major
	Stable
)

// String implements fmt.Stringer
func (c Class) String() string {
	switch c {
	case Stable:
		return "stable"
	case Major:
		return "major"
	default:
		return "other"
	}
}

// MarshalText encodes the class by name
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Token is a known asset
type Token struct {
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Decimals uint8   `json:"decimals"`
	PriceUSD float64 `json:"priceUsd"`
	Class    Class   `json:"class"`
}

// FallbackPrice is used for symbols missing from the table
const FallbackPrice = 1.0

// DefaultDecimals is used for symbols missing from the table
const DefaultDecimals uint8 = 18

// Defaults is the built-in table of Base-chain assets
var Defaults = []Token{
	{Symbol: "ETH", Name: "Ether", Decimals: 18, PriceUSD: 2650, Class: Major},
	{Symbol: "WETH", Name: "Wrapped Ether", Decimals: 18, PriceUSD: 2650, Class: Major},
	{Symbol: "cbBTC", Name: "Coinbase Wrapped BTC", Decimals: 8, PriceUSD: 63000, Class: Major},
	{Symbol: "WBTC", Name: "Wrapped BTC", Decimals: 8, PriceUSD: 63000, Class: Major},
	{Symbol: "USDC", Name: "USD Coin", Decimals: 6, PriceUSD: 1, Class: Stable},
	{Symbol: "USDbC", Name: "USD Base Coin", Decimals: 6, PriceUSD: 1, Class: Stable},
	{Symbol: "DAI", Name: "Dai Stablecoin", Decimals: 18, PriceUSD: 1, Class: Stable},
	{Symbol: "AERO", Name: "Aerodrome", Decimals: 18, PriceUSD: 0.85},
	{Symbol: "DEGEN", Name: "Degen", Decimals: 18, PriceUSD: 0.008},
	{Symbol: "VIRTUAL", Name: "Virtual Protocol", Decimals: 18, PriceUSD: 0.45},
	{Symbol: "PEPE", Name: "Pepe", Decimals: 18, PriceUSD: 0.000009},
	{Symbol: "TOSHI", Name: "Toshi", Decimals: 18, PriceUSD: 0.0002},
	{Symbol: "KEYCAT", Name: "Keyboard Cat", Decimals: 18, PriceUSD: 0.005},
	{Symbol: "MOXIE", Name: "Moxie", Decimals: 18, PriceUSD: 0.012},
	{Symbol: "HIGHER", Name: "Higher", Decimals: 18, PriceUSD: 0.03},
	{Symbol: "FUEGO", Name: "Fuego", Decimals: 18, PriceUSD: 0.12},
}

// Registry resolves symbols to tokens. It is read-only after construction
// and safe for concurrent use.
type Registry struct {
	tokens map[string]Token
}

// NewRegistry builds a registry from a token list. Later entries win.
func NewRegistry(tokens []Token) (*Registry, error) {
	r := &Registry{tokens: make(map[string]Token, len(tokens))}
	for _, t := range tokens {
		if t.Symbol == "" {
			return nil, fmt.Errorf("token with empty symbol")
		}
		if t.PriceUSD <= 0 {
			return nil, fmt.Errorf("token %s: price must be positive, got %v", t.Symbol, t.PriceUSD)
		}
		r.tokens[t.Symbol] = t
	}
	return r, nil
}

// DefaultRegistry returns a registry over Defaults
func DefaultRegistry() *Registry {
	r, _ := NewRegistry(Defaults)
	return r
}

// WithOverrides returns a copy of the registry with prices replaced and
// classes reassigned. Symbols not yet known are added with default decimals.
func (r *Registry) WithOverrides(prices map[string]float64, stable, major []string) (*Registry, error) {
	tokens := make(map[string]Token, len(r.tokens))
	for sym, t := range r.tokens {
		tokens[sym] = t
	}

	for sym, price := range prices {
		t, ok := tokens[sym]
		if !ok {
			t = Token{Symbol: sym, Name: sym, Decimals: DefaultDecimals}
		}
		t.PriceUSD = price
		tokens[sym] = t
	}

	if len(stable) > 0 || len(major) > 0 {
		for sym, t := range tokens {
			t.Class = Other
			tokens[sym] = t
		}
		for _, sym := range major {
			t := tokens[sym]
			if t.Symbol == "" {
				t = Token{Symbol: sym, Name: sym, Decimals: DefaultDecimals, PriceUSD: FallbackPrice}
			}
			t.Class = Major
			tokens[sym] = t
		}
		for _, sym := range stable {
			t := tokens[sym]
			if t.Symbol == "" {
				t = Token{Symbol: sym, Name: sym, Decimals: DefaultDecimals, PriceUSD: FallbackPrice}
			}
			t.Class = Stable
			tokens[sym] = t
		}
	}

	list := make([]Token, 0, len(tokens))
	for _, t := range tokens {
		list = append(list, t)
	}
	return NewRegistry(list)
}

// Lookup returns the token for a symbol
func (r *Registry) Lookup(symbol string) (Token, bool) {
	t, ok := r.tokens[symbol]
	return t, ok
}

// Resolve returns the token for a symbol, synthesizing an "other" token
// priced at FallbackPrice when the symbol is unknown.
func (r *Registry) Resolve(symbol string) Token {
	if t, ok := r.tokens[symbol]; ok {
		return t
	}
	return Token{Symbol: symbol, Name: symbol, Decimals: DefaultDecimals, PriceUSD: FallbackPrice, Class: Other}
}

// Price returns the USD price of a symbol
func (r *Registry) Price(symbol string) float64 {
	return r.Resolve(symbol).PriceUSD
}

// IsStable reports whether the symbol is a pegged-value asset
func (r *Registry) IsStable(symbol string) bool {
	return r.Resolve(symbol).Class == Stable
}

// IsMajor reports whether the symbol is a stable or blue-chip asset
func (r *Registry) IsMajor(symbol string) bool {
	return r.Resolve(symbol).Class >= Major
}

// All returns every token ordered by symbol
func (r *Registry) All() []Token {
	out := make([]Token, 0, len(r.tokens))
	for _, t := range r.tokens {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

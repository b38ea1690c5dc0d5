package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	eth, ok := r.Lookup("ETH")
	require.True(t, ok)
	assert.Equal(t, uint8(18), eth.Decimals)
	assert.Equal(t, 2650.0, eth.PriceUSD)

	assert.True(t, r.IsStable("USDC"))
	assert.True(t, r.IsMajor("USDC"), "stables count as major")
	assert.True(t, r.IsMajor("cbBTC"))
	assert.False(t, r.IsStable("cbBTC"))
	assert.False(t, r.IsMajor("PEPE"))
	assert.Equal(t, uint8(8), r.Resolve("WBTC").Decimals)
}

func TestResolveUnknown(t *testing.T) {
	r := DefaultRegistry()

	_, ok := r.Lookup("NOPE")
	assert.False(t, ok)

	tok := r.Resolve("NOPE")
	assert.Equal(t, "NOPE", tok.Symbol)
	assert.Equal(t, FallbackPrice, tok.PriceUSD)
	assert.Equal(t, DefaultDecimals, tok.Decimals)
	assert.Equal(t, Other, tok.Class)
	assert.Equal(t, 1.0, r.Price("NOPE"))
}

func TestAllIsSorted(t *testing.T) {
	all := DefaultRegistry().All()
	require.Len(t, all, len(Defaults))
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Symbol, all[i].Symbol)
	}
}

func TestNewRegistryValidates(t *testing.T) {
	_, err := NewRegistry([]Token{{Symbol: "", PriceUSD: 1}})
	assert.Error(t, err)
	_, err = NewRegistry([]Token{{Symbol: "X", PriceUSD: 0}})
	assert.Error(t, err)
}

func TestWithOverrides(t *testing.T) {
	base := DefaultRegistry()

	r, err := base.WithOverrides(map[string]float64{"ETH": 3000, "NEW": 5}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3000.0, r.Price("ETH"))
	assert.Equal(t, 5.0, r.Price("NEW"))
	assert.Equal(t, DefaultDecimals, r.Resolve("NEW").Decimals)
	assert.True(t, r.IsMajor("ETH"), "classes kept without class overrides")
	assert.Equal(t, 2650.0, base.Price("ETH"), "base registry untouched")

	r, err = base.WithOverrides(nil, []string{"DAI"}, []string{"AERO"})
	require.NoError(t, err)
	assert.True(t, r.IsStable("DAI"))
	assert.False(t, r.IsStable("USDC"))
	assert.True(t, r.IsMajor("AERO"))
	assert.False(t, r.IsMajor("ETH"))

	_, err = base.WithOverrides(map[string]float64{"ETH": -1}, nil, nil)
	assert.Error(t, err)
}

func TestClassText(t *testing.T) {
	text, err := Stable.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "stable", string(text))
	assert.Equal(t, "major", Major.String())
	assert.Equal(t, "other", Other.String())
}

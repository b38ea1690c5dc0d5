package uniswapv2

import (
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u(t *testing.T, s string) *uint256.Int {
	t.Helper()
	b, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, "bad integer %q", s)
	v, overflow := uint256.FromBig(b)
	require.False(t, overflow)
	return v
}

func TestGetAmountOutReference(t *testing.T) {
	out, err := GetAmountOut(uint256.NewInt(1000), uint256.NewInt(10000), uint256.NewInt(10000), ContractFee)
	require.NoError(t, err)
	assert.Equal(t, uint64(906), out.Uint64())
}

func TestAnalyzeTradeVectors(t *testing.T) {
	pips := Fee{Numerator: 500, Denominator: 1_000_000}

	tests := []struct {
		name       string
		amountIn   string
		reserveIn  string
		reserveOut string
		fee        Fee
		out        string
		bps        uint64
		safe       bool
	}{
		{"eth/usdc deep pool", "10000000000000000000", "3773584905660377358490", "10000000000000", ContractFee, "26350879658", 57, true},
		{"eth/usdc 5 bps tier", "10000000000000000000", "3773584905660377358490", "10000000000000", pips, "26416780533", 32, true},
		{"half the pool", "500000000000000000000", "1000000000000000000000", "1000000000000000000000", ContractFee, "332665999332665999332", 3347, false},
		{"three percent", "30000000", "1000000000", "1000000000", Fee{Numerator: 0, Denominator: 1}, "29126213", 292, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := AnalyzeTrade(u(t, tt.amountIn), u(t, tt.reserveIn), u(t, tt.reserveOut), tt.fee, DefaultSafeBps)
			require.NoError(t, err)
			assert.Equal(t, tt.out, res.AmountOut.ToBig().String())
			assert.Equal(t, tt.bps, res.ImpactBps)
			assert.Equal(t, tt.safe, res.Safe)
		})
	}
}

func TestAnalyzeTradeDustOutput(t *testing.T) {
	// one unit into a one-unit pool rounds the output down to zero
	res, err := AnalyzeTrade(uint256.NewInt(1), uint256.NewInt(1), uint256.NewInt(1), Fee{Numerator: 0, Denominator: 1}, DefaultSafeBps)
	require.NoError(t, err)
	assert.True(t, res.AmountOut.IsZero())
	assert.Equal(t, uint64(BpsScale), res.ImpactBps)
	assert.False(t, res.Safe)
}

func TestGetAmountOutNeverDrainsPool(t *testing.T) {
	reserveOut := u(t, "1000000000000000000")
	for _, in := range []string{"1", "1000", "1000000000000000000", "1000000000000000000000000000000"} {
		out, err := GetAmountOut(u(t, in), u(t, "1000000000000000000"), reserveOut, ContractFee)
		require.NoError(t, err)
		assert.True(t, out.Lt(reserveOut), "input %s", in)
	}
}

func TestGetAmountOutErrors(t *testing.T) {
	one := uint256.NewInt(1)
	zero := uint256.NewInt(0)

	_, err := GetAmountOut(zero, one, one, ContractFee)
	assert.ErrorIs(t, err, ErrInsufficientInput)

	_, err = GetAmountOut(one, zero, one, ContractFee)
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)

	_, err = GetAmountOut(one, one, nil, ContractFee)
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)

	_, err = GetAmountOut(one, one, one, Fee{Numerator: 5, Denominator: 5})
	assert.ErrorIs(t, err, ErrInvalidFee)

	huge := new(uint256.Int).Lsh(one, 200)
	_, err = GetAmountOut(huge, one, huge, ContractFee)
	assert.True(t, errors.Is(err, ErrOverflow), "got %v", err)
}

func TestFeeFromFraction(t *testing.T) {
	fee, err := FeeFromFraction(0.0005, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, Fee{Numerator: 500, Denominator: 1_000_000}, fee)

	fee, err = FeeFromFraction(0.003, 1000)
	require.NoError(t, err)
	assert.Equal(t, ContractFee, fee)
	assert.Equal(t, 0.003, fee.Fraction())

	_, err = FeeFromFraction(1, 1000)
	assert.ErrorIs(t, err, ErrInvalidFee)
	_, err = FeeFromFraction(-0.1, 1000)
	assert.ErrorIs(t, err, ErrInvalidFee)
	_, err = NewFee(1, 0)
	assert.ErrorIs(t, err, ErrInvalidFee)
}

func TestExactTracksFloatFormula(t *testing.T) {
	// 10 ETH into a 3773.58 ETH / 10M USDC pool at 5 bps
	in, err := ToBaseUnits(10, 18)
	require.NoError(t, err)
	resIn, err := ToBaseUnits(3773.5849056603774, 18)
	require.NoError(t, err)
	resOut, err := ToBaseUnits(10_000_000, 6)
	require.NoError(t, err)

	out, err := GetAmountOut(in, resIn, resOut, Fee{Numerator: 500, Denominator: 1_000_000})
	require.NoError(t, err)

	inWithFee := 10 * (1 - 0.0005)
	want := inWithFee * 10_000_000 / (3773.5849056603774 + inWithFee)
	assert.InEpsilon(t, want, FromBaseUnits(out, 6), 1e-9)
}

func TestBaseUnits(t *testing.T) {
	v, err := ToBaseUnits(1.5, 6)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000), v.Uint64())

	v, err = ToBaseUnits(0.1, 18)
	require.NoError(t, err)
	assert.Equal(t, "100000000000000000", v.ToBig().String())

	// below one base unit truncates
	v, err = ToBaseUnits(0.0000001, 6)
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	assert.Equal(t, 1.5, FromBaseUnits(uint256.NewInt(1_500_000), 6))
	assert.Equal(t, 0.0, FromBaseUnits(nil, 6))

	_, err = ToBaseUnits(-1, 6)
	assert.ErrorIs(t, err, ErrInsufficientInput)
	_, err = ToBaseUnits(1e80, 18)
	assert.ErrorIs(t, err, ErrOverflow)
}

package uniswapv2

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// ToBaseUnits scales a whole-token amount into integer base units, truncating
// any precision below one unit.
func ToBaseUnits(amount float64, decimals uint8) (*uint256.Int, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInsufficientInput, amount)
	}

	scaled := decimal.NewFromFloat(amount).Shift(int32(decimals)).Floor()
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("%w: %v with %d decimals", ErrOverflow, amount, decimals)
	}
	return v, nil
}

// FromBaseUnits converts base units back into a whole-token amount
func FromBaseUnits(v *uint256.Int, decimals uint8) float64 {
	if v == nil {
		return 0
	}
	f, _ := decimal.NewFromBigInt(v.ToBig(), -int32(decimals)).Float64()
	return f
}

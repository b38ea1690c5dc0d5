// Package uniswapv2 implements constant-product swap math in integer base
// units, matching the on-chain guardian contract bit for bit.
package uniswapv2

import (
	"errors"
	"fmt"
	"math"

	"github.com/holiman/uint256"
)

var (
	ErrInsufficientInput     = errors.New("insufficient input amount")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrOverflow              = errors.New("uint256 overflow")
	ErrInvalidFee            = errors.New("invalid fee")
)

// BpsScale is the fixed-point scale of price impact (10000 = 100%)
const BpsScale = 10_000

// DefaultSafeBps is the guardian contract's safety cutoff (3%)
const DefaultSafeBps = 300

// Fee is the share of input retained by the pool, Numerator/Denominator
type Fee struct {
	Numerator   uint64
	Denominator uint64
}

// ContractFee is the 0.3% fee hardcoded in the guardian contract (997/1000 kept)
var ContractFee = Fee{Numerator: 3, Denominator: 1000}

// NewFee validates and returns a fee
func NewFee(numerator, denominator uint64) (Fee, error) {
	if denominator == 0 || numerator >= denominator {
		return Fee{}, fmt.Errorf("%w: %d/%d", ErrInvalidFee, numerator, denominator)
	}
	return Fee{Numerator: numerator, Denominator: denominator}, nil
}

// FeeFromFraction converts a fee fraction such as 0.0005 into a fee over
// denominator, rounding to the nearest unit.
func FeeFromFraction(fraction float64, denominator uint64) (Fee, error) {
	if math.IsNaN(fraction) || fraction < 0 || fraction >= 1 {
		return Fee{}, fmt.Errorf("%w: fraction %v", ErrInvalidFee, fraction)
	}
	return NewFee(uint64(math.Round(fraction*float64(denominator))), denominator)
}

// Fraction returns the fee as a float
func (f Fee) Fraction() float64 {
	return float64(f.Numerator) / float64(f.Denominator)
}

// Result is the output of AnalyzeTrade
type Result struct {
	AmountOut *uint256.Int
	ImpactBps uint64
	Safe      bool
}

// GetAmountOut returns the output of selling amountIn into the pool:
//
//	inWithFee = amountIn * (den - num)
//	out       = inWithFee * reserveOut / (reserveIn * den + inWithFee)
func GetAmountOut(amountIn, reserveIn, reserveOut *uint256.Int, fee Fee) (*uint256.Int, error) {
	if amountIn == nil || amountIn.IsZero() {
		return nil, ErrInsufficientInput
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	if fee.Denominator == 0 || fee.Numerator >= fee.Denominator {
		return nil, ErrInvalidFee
	}

	inWithFee, overflow := new(uint256.Int).MulOverflow(amountIn, uint256.NewInt(fee.Denominator-fee.Numerator))
	if overflow {
		return nil, fmt.Errorf("%w: amountIn * feeKeep", ErrOverflow)
	}
	numerator, overflow := new(uint256.Int).MulOverflow(inWithFee, reserveOut)
	if overflow {
		return nil, fmt.Errorf("%w: amountInWithFee * reserveOut", ErrOverflow)
	}
	scaledReserve, overflow := new(uint256.Int).MulOverflow(reserveIn, uint256.NewInt(fee.Denominator))
	if overflow {
		return nil, fmt.Errorf("%w: reserveIn * denominator", ErrOverflow)
	}
	denominator, overflow := new(uint256.Int).AddOverflow(scaledReserve, inWithFee)
	if overflow {
		return nil, fmt.Errorf("%w: denominator", ErrOverflow)
	}

	return new(uint256.Int).Div(numerator, denominator), nil
}

// AnalyzeTrade mirrors TradeGuardian.analyzeTrade with a configurable fee
// and safety cutoff. Impact uses the reserve-product form:
//
//	impactBps = 10000 - (out * reserveIn * 10000) / (amountIn * reserveOut)
func AnalyzeTrade(amountIn, reserveIn, reserveOut *uint256.Int, fee Fee, safeBps uint64) (Result, error) {
	out, err := GetAmountOut(amountIn, reserveIn, reserveOut, fee)
	if err != nil {
		return Result{}, err
	}

	realized, overflow := new(uint256.Int).MulOverflow(out, reserveIn)
	if !overflow {
		realized, overflow = new(uint256.Int).MulOverflow(realized, uint256.NewInt(BpsScale))
	}
	if overflow {
		return Result{}, fmt.Errorf("%w: amountOut * reserveIn * scale", ErrOverflow)
	}
	quoted, overflow := new(uint256.Int).MulOverflow(amountIn, reserveOut)
	if overflow {
		return Result{}, fmt.Errorf("%w: amountIn * reserveOut", ErrOverflow)
	}

	ratio := new(uint256.Int).Div(realized, quoted)
	impact, underflow := new(uint256.Int).SubOverflow(uint256.NewInt(BpsScale), ratio)
	if underflow {
		return Result{}, fmt.Errorf("%w: impact underflow", ErrOverflow)
	}

	bps := impact.Uint64()
	return Result{
		AmountOut: out,
		ImpactBps: bps,
		Safe:      bps < safeBps,
	}, nil
}

// ImpactPercent converts basis points into percent
func ImpactPercent(bps uint64) float64 {
	return float64(bps) / 100
}

// Package guardian encodes calls to the TradeGuardian verifier contract and
// decodes its Analysis return tuple.
package guardian

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/holiman/uint256"

	"github.com/devlongs/trade-guardian/internal/dex/uniswapv2"
)

// TradeGuardian.analyzeTrade(uint256 amountIn, uint256 resIn, uint256 resOut) returns (Analysis)
const guardianABIJSON = `[
  {"inputs": [
     {"internalType": "uint256", "name": "amountIn", "type": "uint256"},
     {"internalType": "uint256", "name": "resIn", "type": "uint256"},
     {"internalType": "uint256", "name": "resOut", "type": "uint256"}
   ],
   "name": "analyzeTrade",
   "outputs": [
     {"components": [
        {"internalType": "uint256", "name": "expectedOutput", "type": "uint256"},
        {"internalType": "uint256", "name": "priceImpact", "type": "uint256"},
        {"internalType": "bool", "name": "isSafe", "type": "bool"},
        {"internalType": "string", "name": "warning", "type": "string"}
      ],
      "internalType": "struct TradeGuardian.Analysis", "name": "", "type": "tuple"}
   ],
   "stateMutability": "pure", "type": "function"}
]`

const methodAnalyzeTrade = "analyzeTrade"

// SecureWarning is the warning string the contract always returns
const SecureWarning = "SECURE"

var (
	guardianABI    abi.ABI
	guardianOnce   sync.Once
	guardianABIErr error
)

// ABI returns the parsed contract ABI
func ABI() (abi.ABI, error) {
	guardianOnce.Do(func() {
		guardianABI, guardianABIErr = abi.JSON(strings.NewReader(guardianABIJSON))
	})
	return guardianABI, guardianABIErr
}

// Analysis mirrors the contract's Analysis struct. PriceImpact is in bps.
type Analysis struct {
	ExpectedOutput *big.Int
	PriceImpact    *big.Int
	IsSafe         bool
	Warning        string
}

// FromResult converts a locally computed result into the contract's shape
func FromResult(res uniswapv2.Result) Analysis {
	out := new(big.Int)
	if res.AmountOut != nil {
		out = res.AmountOut.ToBig()
	}
	return Analysis{
		ExpectedOutput: out,
		PriceImpact:    new(big.Int).SetUint64(res.ImpactBps),
		IsSafe:         res.Safe,
		Warning:        SecureWarning,
	}
}

// PackAnalyzeTrade builds calldata for analyzeTrade
func PackAnalyzeTrade(amountIn, reserveIn, reserveOut *uint256.Int) ([]byte, error) {
	parsed, err := ABI()
	if err != nil {
		return nil, fmt.Errorf("parse guardian abi: %w", err)
	}
	data, err := parsed.Pack(methodAnalyzeTrade, amountIn.ToBig(), reserveIn.ToBig(), reserveOut.ToBig())
	if err != nil {
		return nil, fmt.Errorf("pack analyzeTrade: %w", err)
	}
	return data, nil
}

// EncodeResult ABI-encodes an Analysis as analyzeTrade return data
func EncodeResult(a Analysis) ([]byte, error) {
	parsed, err := ABI()
	if err != nil {
		return nil, fmt.Errorf("parse guardian abi: %w", err)
	}
	data, err := parsed.Methods[methodAnalyzeTrade].Outputs.Pack(a)
	if err != nil {
		return nil, fmt.Errorf("pack analysis: %w", err)
	}
	return data, nil
}

// UnpackAnalysis decodes analyzeTrade return data
func UnpackAnalysis(data []byte) (Analysis, error) {
	parsed, err := ABI()
	if err != nil {
		return Analysis{}, fmt.Errorf("parse guardian abi: %w", err)
	}
	values, err := parsed.Unpack(methodAnalyzeTrade, data)
	if err != nil {
		return Analysis{}, fmt.Errorf("unpack analysis: %w", err)
	}
	if len(values) != 1 {
		return Analysis{}, fmt.Errorf("analyzeTrade return size %d", len(values))
	}
	return *abi.ConvertType(values[0], new(Analysis)).(*Analysis), nil
}

// Matches reports whether a decoded contract analysis agrees with a local result
func Matches(a Analysis, res uniswapv2.Result) bool {
	if a.ExpectedOutput == nil || a.PriceImpact == nil || res.AmountOut == nil {
		return false
	}
	return a.ExpectedOutput.Cmp(res.AmountOut.ToBig()) == 0 &&
		a.PriceImpact.IsUint64() && a.PriceImpact.Uint64() == res.ImpactBps &&
		a.IsSafe == res.Safe
}

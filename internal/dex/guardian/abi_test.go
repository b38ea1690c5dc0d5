package guardian

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devlongs/trade-guardian/internal/dex/uniswapv2"
)

func TestABIParses(t *testing.T) {
	parsed, err := ABI()
	require.NoError(t, err)

	method, ok := parsed.Methods["analyzeTrade"]
	require.True(t, ok)
	assert.Equal(t, "analyzeTrade(uint256,uint256,uint256)", method.Sig)
	assert.Len(t, method.Outputs, 1)
}

func TestPackAnalyzeTrade(t *testing.T) {
	data, err := PackAnalyzeTrade(uint256.NewInt(1000), uint256.NewInt(10000), uint256.NewInt(20000))
	require.NoError(t, err)

	parsed, err := ABI()
	require.NoError(t, err)
	require.Len(t, data, 4+3*32)
	assert.Equal(t, parsed.Methods["analyzeTrade"].ID, data[:4])

	args, err := parsed.Methods["analyzeTrade"].Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Len(t, args, 3)
	assert.Equal(t, big.NewInt(1000), args[0])
	assert.Equal(t, big.NewInt(10000), args[1])
	assert.Equal(t, big.NewInt(20000), args[2])
}

func TestResultRoundTrip(t *testing.T) {
	res, err := uniswapv2.AnalyzeTrade(uint256.NewInt(1000), uint256.NewInt(10000), uint256.NewInt(10000), uniswapv2.ContractFee, uniswapv2.DefaultSafeBps)
	require.NoError(t, err)
	require.Equal(t, uint64(906), res.AmountOut.Uint64())

	encoded, err := EncodeResult(FromResult(res))
	require.NoError(t, err)

	decoded, err := UnpackAnalysis(encoded)
	require.NoError(t, err)
	assert.Equal(t, int64(906), decoded.ExpectedOutput.Int64())
	assert.Equal(t, int64(res.ImpactBps), decoded.PriceImpact.Int64())
	assert.Equal(t, res.Safe, decoded.IsSafe)
	assert.Equal(t, SecureWarning, decoded.Warning)
	assert.True(t, Matches(decoded, res))
}

func TestMatchesDetectsDisagreement(t *testing.T) {
	res := uniswapv2.Result{AmountOut: uint256.NewInt(500), ImpactBps: 120, Safe: true}
	a := FromResult(res)
	assert.True(t, Matches(a, res))

	a.PriceImpact = big.NewInt(121)
	assert.False(t, Matches(a, res))

	assert.False(t, Matches(Analysis{}, res))
}

func TestUnpackRejectsGarbage(t *testing.T) {
	_, err := UnpackAnalysis([]byte{0x01, 0x02})
	assert.Error(t, err)
}

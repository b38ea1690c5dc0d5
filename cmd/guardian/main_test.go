package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devlongs/trade-guardian/internal/dex/guardian"
	"github.com/devlongs/trade-guardian/pkg/types"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--no-advisor", "--log-level=error"))
	err := root.Execute()
	return out.String(), err
}

func TestTokensCommand(t *testing.T) {
	out, err := execute(t, "tokens")
	require.NoError(t, err)
	assert.Contains(t, out, "SYMBOL")
	assert.Contains(t, out, "cbBTC")
	assert.Contains(t, out, "stable")
}

func TestAnalyzeCommand(t *testing.T) {
	out, err := execute(t, "analyze", "--sell", "ETH", "--buy", "USDC", "--amount", "10", "--calldata")
	require.NoError(t, err)

	dec := json.NewDecoder(strings.NewReader(out))
	var result types.Assessment
	require.NoError(t, dec.Decode(&result))
	assert.Equal(t, "ETH/USDC", result.Pair)
	assert.Equal(t, types.Safe, result.Analysis.Health)
	require.NotNil(t, result.Exact)

	var call struct {
		Calldata       string `json:"calldata"`
		ExpectedReturn string `json:"expectedReturn"`
	}
	require.NoError(t, dec.Decode(&call))

	parsed, err := guardian.ABI()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(call.Calldata, hexutil.Encode(parsed.Methods["analyzeTrade"].ID)))
	assert.Len(t, call.Calldata, 2+2*(4+3*32))

	raw, err := hexutil.Decode(call.ExpectedReturn)
	require.NoError(t, err)
	decoded, err := guardian.UnpackAnalysis(raw)
	require.NoError(t, err)
	assert.Equal(t, guardian.SecureWarning, decoded.Warning)
	assert.True(t, decoded.IsSafe)
}

func TestAnalyzeCommandRejectsBadAmount(t *testing.T) {
	_, err := execute(t, "analyze", "--amount", "0")
	assert.Error(t, err)
}

func TestLadderCommand(t *testing.T) {
	out, err := execute(t, "ladder", "--sell", "ETH", "--buy", "USDC", "--sizes", "1,1000", "--max-safe")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, lines[0], "HEALTH")
	assert.Contains(t, lines[1], "Safe")
	assert.Contains(t, lines[2], "Risky")
	assert.Contains(t, out, "Largest Safe size:")
}

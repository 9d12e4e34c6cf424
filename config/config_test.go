package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dexarb/go-arbengine/engine"
	"github.com/dexarb/go-arbengine/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
chains:
  - name: ethereum
    rpc_endpoint: https://rpc.example/eth
    ws_endpoint: wss://ws.example/eth
    tokens:
      - symbol: ETH
        address: "0x0000000000000000000000000000000000000001"
        decimals: 18
      - symbol: USDT
        address: "0x0000000000000000000000000000000000000002"
        decimals: 6
    pools:
      - exchange: uniswap
        version: v3
        address: "0x00000000000000000000000000000000000aaa"
        fee: 500
        token0: ETH
        token1: USDT
trading_symbols: ["ETH/USDT"]
max_swaps: 3
max_bet_size: 20000
target_spread: 0.0015
gas_costs:
  base: 100000
  v2_hop: 40000
  v3_hop: 50000
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))
	return path
}

func TestLoad_ParsesValidConfig(t *testing.T) {
	path := writeSample(t)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"ETH/USDT"}, cfg.TradingSymbols)
	assert.Equal(t, 3, cfg.MaxSwaps)
	assert.InDelta(t, 20000.0, cfg.MaxBetSize, 1e-9)
	assert.Equal(t, engine.GasCosts{Base: 100000, V2Hop: 40000, V3Hop: 50000}, cfg.EngineGasCosts())

	tokens := cfg.TokenConfigs()
	assert.Len(t, tokens, 2)

	pools, err := cfg.PoolConfigs()
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, engine.V3, pools[0].Version)

	assert.Equal(t, map[string]string{"ethereum": "https://rpc.example/eth"}, cfg.RPCEndpoints())
	assert.Equal(t, map[string]string{"ethereum": "wss://ws.example/eth"}, cfg.WSEndpoints())
}

func TestLoad_MissingFileFailsWithConfigError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrConfig)
}

func TestLoad_MissingWSEndpointFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	bad := `
chains:
  - name: ethereum
    rpc_endpoint: https://rpc.example/eth
trading_symbols: ["ETH/USDT"]
max_swaps: 2
`
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestPoolConfigs_UnknownVersionFails(t *testing.T) {
	cfg := &Config{
		Chains: []Chain{{
			Name:        "ethereum",
			RPCEndpoint: "x",
			WSEndpoint:  "y",
			Pools: []Pool{{
				Exchange: "uniswap", Version: "v7", Address: "0x1", Token0: "A", Token1: "B",
			}},
		}},
	}

	_, err := cfg.PoolConfigs()
	require.Error(t, err)
}

package registry

import (
	"testing"

	"github.com/dexarb/go-arbengine/engine"
	"github.com/dexarb/go-arbengine/errs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokens() []TokenConfig {
	return []TokenConfig{
		{Chain: "ethereum", Symbol: "ETH", Address: common.HexToAddress("0x1"), Decimals: 18},
		{Chain: "ethereum", Symbol: "USDT", Address: common.HexToAddress("0x2"), Decimals: 6},
		{Chain: "ethereum", Symbol: "USDC", Address: common.HexToAddress("0x3"), Decimals: 6},
	}
}

func TestBuild_AssignsDenseIDsByLexicographicOrder(t *testing.T) {
	r, err := Build(tokens(), []PoolConfig{
		{Chain: "ethereum", Exchange: "uniswap", Version: engine.V3, Address: common.HexToAddress("0xaaa"), Fee: 500, Token0: "ETH", Token1: "USDT"},
	})
	require.NoError(t, err)

	ethID, ok := r.TokenID("ethereum", "ETH")
	require.True(t, ok)
	usdcID, ok := r.TokenID("ethereum", "USDC")
	require.True(t, ok)
	usdtID, ok := r.TokenID("ethereum", "USDT")
	require.True(t, ok)

	// Lexicographic: ETH < USDC < USDT
	assert.Equal(t, engine.TokenID(0), ethID)
	assert.Equal(t, engine.TokenID(1), usdcID)
	assert.Equal(t, engine.TokenID(2), usdtID)
}

func TestBuild_DuplicatePoolRegistrationFails(t *testing.T) {
	pools := []PoolConfig{
		{Chain: "ethereum", Exchange: "uniswap", Version: engine.V3, Address: common.HexToAddress("0xaaa"), Fee: 500, Token0: "ETH", Token1: "USDT"},
		{Chain: "ethereum", Exchange: "uniswap", Version: engine.V3, Address: common.HexToAddress("0xbbb"), Fee: 3000, Token0: "ETH", Token1: "USDT"},
	}

	_, err := Build(tokens(), pools)
	require.Error(t, err)
}

func TestBuild_UnknownTokenFailsWithConfigError(t *testing.T) {
	pools := []PoolConfig{
		{Chain: "ethereum", Exchange: "uniswap", Version: engine.V2, Address: common.HexToAddress("0xaaa"), Fee: 30, Token0: "ETH", Token1: "DOESNOTEXIST"},
	}
	_, err := Build(tokens(), pools)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrConfig)
}

func TestBuild_PoolKeysAgreeAcrossDirections(t *testing.T) {
	r, err := Build(tokens(), []PoolConfig{
		{Chain: "ethereum", Exchange: "uniswap", Version: engine.V3, Address: common.HexToAddress("0xaaa"), Fee: 500, Token0: "ETH", Token1: "USDT"},
	})
	require.NoError(t, err)

	desc, ok := r.Pool(0)
	require.True(t, ok)

	key0, key1 := desc.Keys()
	assert.Equal(t, key0.TokenIn, key1.TokenOut)
	assert.Equal(t, key0.TokenOut, key1.TokenIn)
	assert.Equal(t, key0.Chain, key1.Chain)
	assert.Equal(t, key0.Exchange, key1.Exchange)
	assert.Equal(t, key0.Version, key1.Version)

	chainKeys := r.ChainKeys(desc.Chain)
	assert.Len(t, chainKeys, 2)
}

func TestOrdinal_ResolvesBothDirections(t *testing.T) {
	r, err := Build(tokens(), []PoolConfig{
		{Chain: "ethereum", Exchange: "uniswap", Version: engine.V3, Address: common.HexToAddress("0xaaa"), Fee: 500, Token0: "ETH", Token1: "USDT"},
	})
	require.NoError(t, err)

	desc, ok := r.Pool(0)
	require.True(t, ok)
	key0, key1 := desc.Keys()

	ord0, ok := r.Ordinal(key0)
	require.True(t, ok)
	assert.Equal(t, engine.PoolOrdinal(0), ord0)

	ord1, ok := r.Ordinal(key1)
	require.True(t, ok)
	assert.Equal(t, engine.PoolOrdinal(0), ord1)

	_, ok = r.Ordinal(engine.PoolKey{Chain: 99, Exchange: 0, TokenIn: 0, TokenOut: 1, Version: engine.V2})
	assert.False(t, ok)
}

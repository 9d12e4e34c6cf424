package detector

import (
	"context"
	"math/big"
	"testing"

	"github.com/dexarb/go-arbengine/engine"
	"github.com/dexarb/go-arbengine/external"
	"github.com/dexarb/go-arbengine/pathbuilder"
	"github.com/dexarb/go-arbengine/pricegraph"
	"github.com/dexarb/go-arbengine/pricestore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	m map[engine.PoolKey]engine.PoolOrdinal
}

func (f fakeLookup) Ordinal(key engine.PoolKey) (engine.PoolOrdinal, bool) {
	o, ok := f.m[key]
	return o, ok
}

type fakeOracle struct {
	amountOut *big.Int
	err       error
	calls     int
}

func (f *fakeOracle) Simulate(ctx context.Context, hops []external.SimulateHop) (*big.Int, error) {
	f.calls++
	return f.amountOut, f.err
}

const (
	usdt = engine.TokenID(0)
	eth  = engine.TokenID(1)
)

// twoPoolGraph builds a two-path ETH/USDT symbol graph, one V2 pool per path,
// distinct pool ordinals (so BuildEdges always admits the pair).
func twoPoolGraph(t *testing.T) (*pricegraph.Graph, *pricestore.Store, engine.PoolDescriptor, engine.PoolDescriptor) {
	t.Helper()

	keyA := engine.PoolKey{Chain: 0, Exchange: 0, TokenIn: usdt, TokenOut: eth, Version: engine.V2}
	keyB := engine.PoolKey{Chain: 0, Exchange: 1, TokenIn: usdt, TokenOut: eth, Version: engine.V2}

	lookup := fakeLookup{m: map[engine.PoolKey]engine.PoolOrdinal{
		keyA: 0, keyA.Reverse(): 0,
		keyB: 1, keyB.Reverse(): 1,
	}}

	sg, err := pricegraph.NewSymbolGraph("ETH/USDT", []engine.ChainID{0}, map[engine.ChainID][]pathbuilder.Path{
		0: {{keyA}, {keyB}},
	}, lookup)
	require.NoError(t, err)

	g := pricegraph.New()
	g.AddSymbol(sg)

	store := pricestore.New()

	descA := engine.PoolDescriptor{Chain: 0, Exchange: 0, Version: engine.V2, Address: common.HexToAddress("0xa"),
		Fee: 500, Token0: usdt, Token1: eth, Token0Decimals: 6, Token1Decimals: 18, Ordinal: 0}
	descB := engine.PoolDescriptor{Chain: 0, Exchange: 1, Version: engine.V2, Address: common.HexToAddress("0xb"),
		Fee: 500, Token0: usdt, Token1: eth, Token0Decimals: 6, Token1Decimals: 18, Ordinal: 1}

	// reserve0 chosen so V2Mid -> reciprocal in pricegraph yields the quoted
	// USDT/ETH mid price directly (mirrors pricegraph's own reciprocal test).
	loadAt := func(desc engine.PoolDescriptor, usdtPerEth float64) {
		reserve0 := new(big.Int).Mul(big.NewInt(int64(usdtPerEth)), new(big.Int).Exp(big.NewInt(10), big.NewInt(6), nil))
		reserve1 := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
		store.Load(desc, reserve0, reserve1, nil)
	}
	loadAt(descA, 1850)
	loadAt(descB, 1855)

	return g, store, descA, descB
}

func TestBuildEdges_ExcludesSameFirstOrSameLastPool(t *testing.T) {
	g, _, _, _ := twoPoolGraph(t)
	sg, ok := g.Symbol("ETH/USDT")
	require.True(t, ok)

	edges := BuildEdges(sg)
	require.Len(t, edges, 1)
	assert.Equal(t, 0, edges[0].I)
	assert.Equal(t, 1, edges[0].J)
}

func TestRecomputeSpreads_MatchesSpecScenario(t *testing.T) {
	g, store, _, _ := twoPoolGraph(t)
	sg, ok := g.Symbol("ETH/USDT")
	require.True(t, ok)

	require.NoError(t, g.UpdatePrice(store, 0, "ETH/USDT"))

	assert.InDelta(t, 1850.0, sg.Paths[0].Price, 1.0)
	assert.InDelta(t, 1855.0, sg.Paths[1].Price, 1.0)
	assert.InDelta(t, 0.0005, sg.Paths[0].Fee, 1e-9)

	edges := BuildEdges(sg)
	spreads, best := RecomputeSpreads(sg, edges)
	require.NotNil(t, best)

	// buy on the cheaper path (A, index 0), sell on the richer path (B,
	// index 1): the spread going that direction should be ~ +0.0017.
	assert.Equal(t, 0, best.BuyIndex)
	assert.Equal(t, 1, best.SellIndex)
	assert.InDelta(t, 0.0017, best.Spread, 1e-3)
	assert.Len(t, spreads, 2)
}

func TestDetector_PendingLifecycleAndProfitableSimulation(t *testing.T) {
	g, store, _, _ := twoPoolGraph(t)
	sg, ok := g.Symbol("ETH/USDT")
	require.True(t, ok)

	gas := engine.GasCosts{Base: 100000, V2Hop: 40000, V3Hop: 50000}
	d := New(g, gas, 20000, 0.001)
	d.RegisterSymbol(sg)

	_, err := d.OnPoolUpdate(store, 0, "ETH/USDT", 42)
	require.NoError(t, err)

	pending := d.Pending()
	require.NotNil(t, pending)
	assert.Equal(t, Detected, pending.Status)
	assert.EqualValues(t, 42, pending.BlockSeen)
	assert.EqualValues(t, 180000, pending.EstimatedGasUnits)

	// A second pool update while one pending is live must not replace it.
	_, err = d.OnPoolUpdate(store, 0, "ETH/USDT", 42)
	require.NoError(t, err)
	assert.Equal(t, pending.EdgeName, d.Pending().EdgeName)

	block := engine.BlockSummary{Chain: 0, Number: 42, MaxFeePerGas: big.NewInt(10_000_000_000)} // 10 gwei
	oracle := &fakeOracle{amountOut: big.NewInt(2_300)}

	result, err := d.OnNewBlock(context.Background(), block, oracle)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 1, oracle.calls)
	assert.True(t, result.Submitted)
	assert.Nil(t, d.Pending())
}

func TestDetector_OnPoolUpdate_NegativeRevaluationClearsPending_S5(t *testing.T) {
	g, store, _, descB := twoPoolGraph(t)
	sg, ok := g.Symbol("ETH/USDT")
	require.True(t, ok)

	gas := engine.GasCosts{Base: 100000, V2Hop: 40000, V3Hop: 50000}
	d := New(g, gas, 20000, 0.001)
	d.RegisterSymbol(sg)

	_, err := d.OnPoolUpdate(store, 0, "ETH/USDT", 42)
	require.NoError(t, err)
	require.NotNil(t, d.Pending())

	// Push descB's price back down near descA's: the edge's spread falls to
	// 1851/1850 - 1 - 0.001 ~ -0.00046, below targetSpread, so this revaluation must delete the
	// pending rather than leave it live for the next OnNewBlock.
	reserve0 := new(big.Int).Mul(big.NewInt(1851), new(big.Int).Exp(big.NewInt(10), big.NewInt(6), nil))
	reserve1 := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	require.NoError(t, store.UpdateReserves(descB.Chain, descB.Exchange, descB.Token0, descB.Token1, reserve0, reserve1))

	_, err = d.OnPoolUpdate(store, 0, "ETH/USDT", 43)
	require.NoError(t, err)
	assert.Nil(t, d.Pending())
}

func TestDetector_GasUnderfundedDiscardsWithoutSimulating_S6(t *testing.T) {
	g, store, _, _ := twoPoolGraph(t)
	sg, ok := g.Symbol("ETH/USDT")
	require.True(t, ok)

	gas := engine.GasCosts{Base: 100000, V2Hop: 40000, V3Hop: 50000}
	d := New(g, gas, 20000, 0.001)
	d.RegisterSymbol(sg)

	_, err := d.OnPoolUpdate(store, 0, "ETH/USDT", 7)
	require.NoError(t, err)
	require.NotNil(t, d.Pending())

	block := engine.BlockSummary{Chain: 0, Number: 7, MaxFeePerGas: big.NewInt(200_000_000_000)} // 200 gwei
	oracle := &fakeOracle{amountOut: big.NewInt(1)}

	result, err := d.OnNewBlock(context.Background(), block, oracle)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Discarded)
	assert.False(t, result.Submitted)
	assert.Equal(t, 0, oracle.calls)
	assert.Nil(t, d.Pending())
}

func TestDetector_OnNewBlock_NoPendingIsNoop(t *testing.T) {
	g, _, _, _ := twoPoolGraph(t)
	gas := engine.GasCosts{Base: 100000, V2Hop: 40000, V3Hop: 50000}
	d := New(g, gas, 20000, 0.001)

	result, err := d.OnNewBlock(context.Background(), engine.BlockSummary{Number: 1, MaxFeePerGas: big.NewInt(1)}, &fakeOracle{})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestDetector_OnNewBlock_WrongBlockIsNoop(t *testing.T) {
	g, store, _, _ := twoPoolGraph(t)
	sg, ok := g.Symbol("ETH/USDT")
	require.True(t, ok)

	gas := engine.GasCosts{Base: 100000, V2Hop: 40000, V3Hop: 50000}
	d := New(g, gas, 20000, 0.001)
	d.RegisterSymbol(sg)

	_, err := d.OnPoolUpdate(store, 0, "ETH/USDT", 10)
	require.NoError(t, err)

	result, err := d.OnNewBlock(context.Background(), engine.BlockSummary{Number: 11, MaxFeePerGas: big.NewInt(1)}, &fakeOracle{})
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NotNil(t, d.Pending())
}

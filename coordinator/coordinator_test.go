package coordinator

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/dexarb/go-arbengine/detector"
	"github.com/dexarb/go-arbengine/engine"
	"github.com/dexarb/go-arbengine/external"
	"github.com/dexarb/go-arbengine/pathbuilder"
	"github.com/dexarb/go-arbengine/pricegraph"
	"github.com/dexarb/go-arbengine/pricestore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct{ m map[engine.PoolKey]engine.PoolOrdinal }

func (f fakeLookup) Ordinal(key engine.PoolKey) (engine.PoolOrdinal, bool) {
	o, ok := f.m[key]
	return o, ok
}

type fakeOracle struct{ amountOut *big.Int }

func (f fakeOracle) Simulate(ctx context.Context, hops []external.SimulateHop) (*big.Int, error) {
	return f.amountOut, nil
}

type recordingSinks struct {
	spreads   []string
	pendings  int
	finalized int
}

func (r *recordingSinks) EmitSpreads(symbol string, spreads detector.Spreads) {
	r.spreads = append(r.spreads, symbol)
}
func (r *recordingSinks) EmitPending(p *detector.Pending)            { r.pendings++ }
func (r *recordingSinks) EmitFinalized(res *detector.FinalizeResult) { r.finalized++ }

const (
	usdt = engine.TokenID(0)
	eth  = engine.TokenID(1)
)

func buildGraphAndStore(t *testing.T) (*pricegraph.Graph, *pricestore.Store) {
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
	load := func(exchange engine.ExchangeID, ordinal engine.PoolOrdinal, usdtPerEth int64) {
		desc := engine.PoolDescriptor{Chain: 0, Exchange: exchange, Version: engine.V2, Address: common.BigToAddress(big.NewInt(int64(ordinal) + 1)),
			Fee: 500, Token0: usdt, Token1: eth, Token0Decimals: 6, Token1Decimals: 18, Ordinal: ordinal}
		reserve0 := new(big.Int).Mul(big.NewInt(usdtPerEth), new(big.Int).Exp(big.NewInt(10), big.NewInt(6), nil))
		reserve1 := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
		store.Load(desc, reserve0, reserve1, nil)
	}
	load(0, 0, 1850)
	load(1, 1, 1855)

	return g, store
}

func TestConsumer_EventThenBlock_DrainsInOrder(t *testing.T) {
	g, store := buildGraphAndStore(t)
	sg, ok := g.Symbol("ETH/USDT")
	require.True(t, ok)

	gas := engine.GasCosts{Base: 100000, V2Hop: 40000, V3Hop: 50000}
	det := detector.New(g, gas, 20000, 0.001)
	det.RegisterSymbol(sg)

	sinks := &recordingSinks{}
	q := NewQueue(4)
	consumer := &Consumer{Queue: q, Store: store, Detect: det, Oracle: fakeOracle{amountOut: big.NewInt(2300)}, Sinks: sinks}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	require.NoError(t, q.Put(ctx, Message{Kind: KindEvent, Event: Event{Chain: 0, Symbol: "ETH/USDT", Block: 5}}))
	require.NoError(t, q.Put(ctx, Message{Kind: KindBlock, Block: Block{Summary: engine.BlockSummary{Number: 5, MaxFeePerGas: big.NewInt(10_000_000_000)}}}))

	require.Eventually(t, func() bool { return sinks.finalized == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, []string{"ETH/USDT"}, sinks.spreads)
	assert.GreaterOrEqual(t, sinks.pendings, 1)
	assert.Equal(t, 1, sinks.finalized)
}

func TestQueue_PutRespectsContextCancellation(t *testing.T) {
	q := NewQueue(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := q.Put(ctx, Message{Kind: KindSetup})
	require.Error(t, err)
}

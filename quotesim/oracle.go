package quotesim

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sync"

	"github.com/dexarb/go-arbengine/ammmath"
	"github.com/dexarb/go-arbengine/engine"
	"github.com/dexarb/go-arbengine/errs"
	"github.com/dexarb/go-arbengine/external"
	"github.com/dexarb/go-arbengine/pricestore"
)

// PoolLookup resolves a pool ordinal to its immutable descriptor;
// registry.Registry satisfies this.
type PoolLookup interface {
	Pool(ordinal engine.PoolOrdinal) (engine.PoolDescriptor, bool)
}

// Oracle is the in-process external.QuoteOracle reference implementation: it
// chains one SimulateHop at a time, routing V2 hops through ammmath's
// constant-product formula against the live Price Store and V3 hops through
// this package's tick-by-tick SimulateExactIn against the most recent pool
// snapshot LoadV3Pool was given. A V3 hop with no snapshot yet falls back to
// the single-tick mid-price quote ammmath.V3Mid would give the Price Graph —
// real multi-tick depth is only as good as the snapshots fed to it.
type Oracle struct {
	store *pricestore.Store
	pools PoolLookup

	mu      sync.RWMutex
	v3Pools map[engine.PoolOrdinal]Pool
}

// New builds an Oracle reading reserves from store and descriptors from pools.
func New(store *pricestore.Store, pools PoolLookup) *Oracle {
	return &Oracle{store: store, pools: pools, v3Pools: map[engine.PoolOrdinal]Pool{}}
}

// LoadV3Pool installs or refreshes the tick snapshot used to simulate
// ordinal's hops. Without a snapshot, ordinal's hops degrade to the
// single-tick fallback.
func (o *Oracle) LoadV3Pool(ordinal engine.PoolOrdinal, pool Pool) {
	SortTicks(pool.Ticks)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.v3Pools[ordinal] = pool
}

// Simulate executes hops in order, threading the output of one hop into the
// AmountIn of the next, per spec.md §6.
func (o *Oracle) Simulate(ctx context.Context, hops []external.SimulateHop) (*big.Int, error) {
	if len(hops) == 0 {
		return nil, fmt.Errorf("%w: empty hop list", errs.ErrSimulation)
	}

	amount := new(big.Int).Set(hops[0].AmountIn)

	for _, hop := range hops {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if amount.Sign() <= 0 {
			return nil, fmt.Errorf("%w: non-positive amount entering pool %d", errs.ErrSimulation, hop.PoolOrdinal)
		}

		desc, ok := o.pools.Pool(hop.PoolOrdinal)
		if !ok {
			return nil, fmt.Errorf("%w: unregistered pool %d", errs.ErrNoSuchPool, hop.PoolOrdinal)
		}

		var err error
		switch desc.Version {
		case engine.V2:
			amount, err = o.simulateV2(desc, hop, amount)
		case engine.V3:
			amount, err = o.simulateV3(desc, hop, amount)
		default:
			err = fmt.Errorf("%w: unknown pool version for %d", errs.ErrSimulation, hop.PoolOrdinal)
		}
		if err != nil {
			return nil, err
		}
	}

	return amount, nil
}

func (o *Oracle) simulateV2(desc engine.PoolDescriptor, hop external.SimulateHop, amountIn *big.Int) (*big.Int, error) {
	key := engine.PoolKey{Chain: desc.Chain, Exchange: desc.Exchange, TokenIn: hop.TokenIn, TokenOut: hop.TokenOut, Version: engine.V2}
	cell, err := o.store.Get(key)
	if err != nil {
		return nil, err
	}

	reserveIn, reserveOut := cell.Reserve0, cell.Reserve1
	if !cell.Token0IsInput {
		reserveIn, reserveOut = cell.Reserve1, cell.Reserve0
	}
	return ammmath.GetAmountOut(amountIn, reserveIn, reserveOut, desc.Fee)
}

func (o *Oracle) simulateV3(desc engine.PoolDescriptor, hop external.SimulateHop, amountIn *big.Int) (*big.Int, error) {
	o.mu.RLock()
	pool, ok := o.v3Pools[hop.PoolOrdinal]
	o.mu.RUnlock()

	zeroForOne := hop.TokenIn == desc.Token0

	if !ok {
		return o.fallbackV3(desc, zeroForOne, amountIn)
	}

	amountOut, newPool, err := SimulateExactIn(amountIn, zeroForOne, pool)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.v3Pools[hop.PoolOrdinal] = newPool
	o.mu.Unlock()

	return amountOut, nil
}

// fallbackV3 prices the hop at the current single-tick mid-price, the same
// number the Price Graph already computed, applying the pool's fee — used
// only when no tick snapshot has been loaded for this pool.
func (o *Oracle) fallbackV3(desc engine.PoolDescriptor, zeroForOne bool, amountIn *big.Int) (*big.Int, error) {
	key := engine.PoolKey{Chain: desc.Chain, Exchange: desc.Exchange, Version: engine.V3}
	decIn, decOut := desc.Token0Decimals, desc.Token1Decimals
	if zeroForOne {
		key.TokenIn, key.TokenOut = desc.Token0, desc.Token1
	} else {
		key.TokenIn, key.TokenOut = desc.Token1, desc.Token0
		decIn, decOut = desc.Token1Decimals, desc.Token0Decimals
	}

	mid, feeRate, err := o.store.GetPrice(key)
	if err != nil {
		return nil, err
	}
	if mid <= 0 {
		return nil, fmt.Errorf("%w: no price available for pool %d", errs.ErrSimulation, desc.Ordinal)
	}

	// mid is decimal-adjusted; amountIn and the result are raw token units.
	in, _ := new(big.Float).SetInt(amountIn).Float64()
	out := in * mid * math.Pow(10, float64(decOut)-float64(decIn)) * (1 - feeRate)
	outInt, _ := big.NewFloat(out).Int(nil)
	return outInt, nil
}

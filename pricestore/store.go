// Package pricestore implements the Price Store (spec.md §4.2): a compact,
// indexable store of per-pool state (V2 reserves or V3 sqrt-price) keyed by
// the engine.PoolKey 5-tuple, with O(1) read/write and directional price
// evaluation via ammmath.
package pricestore

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/dexarb/go-arbengine/ammmath"
	"github.com/dexarb/go-arbengine/engine"
	"github.com/dexarb/go-arbengine/errs"
)

// Cell is the fixed-width record held per directional PoolKey.
// Mutation is restricted to Reserve0/Reserve1 (V2) or SqrtPriceX96 (V3);
// Decimals/FeeRate/Token0IsInput/PoolOrdinal are write-once at load time.
type Cell struct {
	Decimals0      uint8
	Decimals1      uint8
	Reserve0       *big.Int
	Reserve1       *big.Int
	SqrtPriceX96   *big.Int
	FeeRate        float64
	Token0IsInput  bool
	PoolOrdinal    engine.PoolOrdinal
	Version        engine.Version
}

// Store is the Price Store. Mutation is restricted to reserves/sqrt-price;
// all other cell fields are fixed at Load time. Per spec.md §5, concurrent
// ingestion tasks write disjoint per-chain cells; the mutex here protects
// against the rarer cross-chain overlap and guards map growth.
type Store struct {
	mu    sync.RWMutex
	cells map[engine.PoolKey]*Cell
}

// New creates an empty Price Store.
func New() *Store {
	return &Store{cells: map[engine.PoolKey]*Cell{}}
}

// Load populates both directional cells for one pool descriptor from its
// initial on-chain state. For V2 pools pass reserves; for V3 pools pass
// sqrtPriceX96. The unused pair should be nil/zero.
func (s *Store) Load(desc engine.PoolDescriptor, reserve0, reserve1, sqrtPriceX96 *big.Int) {
	key0, key1 := desc.Keys()

	base := Cell{
		Decimals0:    desc.Token0Decimals,
		Decimals1:    desc.Token1Decimals,
		Reserve0:     cloneOrZero(reserve0),
		Reserve1:     cloneOrZero(reserve1),
		SqrtPriceX96: cloneOrZero(sqrtPriceX96),
		FeeRate:      desc.FeeRate(),
		PoolOrdinal:  desc.Ordinal,
		Version:      desc.Version,
	}

	cell0 := base
	cell0.Token0IsInput = true
	cell1 := base
	cell1.Token0IsInput = false

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cells[key0] = &cell0
	s.cells[key1] = &cell1
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// Get returns a copy of the cell for key, or errs.ErrNoSuchPool if unpopulated.
func (s *Store) Get(key engine.PoolKey) (Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cells[key]
	if !ok {
		return Cell{}, fmt.Errorf("%w: %s", errs.ErrNoSuchPool, key)
	}
	return *c, nil
}

// GetPrice returns the directional mid-price and fee rate for key, per
// spec.md §4.2: V2 uses reserves, V3 uses sqrt-price; both apply the
// token0/token1 decimal adjustment and the token0_is_input direction flag.
func (s *Store) GetPrice(key engine.PoolKey) (price float64, feeRate float64, err error) {
	cell, err := s.Get(key)
	if err != nil {
		return 0, 0, err
	}

	var mid float64
	switch cell.Version {
	case engine.V2:
		mid = ammmath.V2Mid(cell.Reserve0, cell.Reserve1, cell.Decimals0, cell.Decimals1)
	case engine.V3:
		mid = ammmath.V3Mid(cell.SqrtPriceX96, cell.Decimals0, cell.Decimals1)
	default:
		return 0, 0, fmt.Errorf("%w: unknown version for %s", errs.ErrNoSuchPool, key)
	}

	if cell.Token0IsInput {
		return mid, cell.FeeRate, nil
	}
	if mid == 0 {
		return 0, cell.FeeRate, nil
	}
	return 1 / mid, cell.FeeRate, nil
}

// UpdateReserves writes new V2 reserves to both directional cells of the pool
// identified by (chain, exchange, token0, token1).
func (s *Store) UpdateReserves(chain engine.ChainID, exchange engine.ExchangeID, token0, token1 engine.TokenID, reserve0, reserve1 *big.Int) error {
	key0 := engine.PoolKey{Chain: chain, Exchange: exchange, TokenIn: token0, TokenOut: token1, Version: engine.V2}
	key1 := key0.Reverse()

	s.mu.Lock()
	defer s.mu.Unlock()

	c0, ok := s.cells[key0]
	if !ok {
		return fmt.Errorf("%w: %s", errs.ErrNoSuchPool, key0)
	}
	c1 := s.cells[key1]

	r0, r1 := cloneOrZero(reserve0), cloneOrZero(reserve1)
	c0.Reserve0, c0.Reserve1 = r0, r1
	if c1 != nil {
		c1.Reserve0, c1.Reserve1 = new(big.Int).Set(r0), new(big.Int).Set(r1)
	}
	return nil
}

// UpdateSqrtPrice writes a new V3 sqrtPriceX96 to both directional cells of
// the pool identified by (chain, exchange, token0, token1).
func (s *Store) UpdateSqrtPrice(chain engine.ChainID, exchange engine.ExchangeID, token0, token1 engine.TokenID, sqrtPriceX96 *big.Int) error {
	key0 := engine.PoolKey{Chain: chain, Exchange: exchange, TokenIn: token0, TokenOut: token1, Version: engine.V3}
	key1 := key0.Reverse()

	s.mu.Lock()
	defer s.mu.Unlock()

	c0, ok := s.cells[key0]
	if !ok {
		return fmt.Errorf("%w: %s", errs.ErrNoSuchPool, key0)
	}
	c1 := s.cells[key1]

	sp := cloneOrZero(sqrtPriceX96)
	c0.SqrtPriceX96 = sp
	if c1 != nil {
		c1.SqrtPriceX96 = new(big.Int).Set(sp)
	}
	return nil
}

// Package external holds the abstract collaborators spec.md §6 explicitly
// keeps out of scope: chain transports, transaction submission, and on-chain
// swap simulation. Only the interfaces and the wire-level event/request
// shapes live here; concrete implementations (ethfeed, a relay client, a
// QuoterV2-backed oracle) are separate packages wired at startup.
package external

import (
	"context"
	"math/big"

	"github.com/dexarb/go-arbengine/engine"
	"github.com/ethereum/go-ethereum/common"
)

// PoolUpdateV2 is a decoded Sync(uint112,uint112) log (spec.md §6).
type PoolUpdateV2 struct {
	Chain       engine.ChainID
	PoolAddress common.Address
	BlockNumber uint64
	Reserve0    *big.Int
	Reserve1    *big.Int
}

// PoolUpdateV3 is a decoded Swap(...) log; SqrtPriceX96 is the post-swap
// price, the third data field.
type PoolUpdateV3 struct {
	Chain        engine.ChainID
	PoolAddress  common.Address
	BlockNumber  uint64
	SqrtPriceX96 *big.Int
}

// NewBlock is a decoded new-head notification carrying the EIP-1559 fields
// the detector needs to finalize a pending opportunity.
type NewBlock struct {
	Chain    engine.ChainID
	Number   uint64
	BaseFee  *big.Int
	GasUsed  uint64
	GasLimit uint64
}

// EventSource produces the three decoded event streams per chain described in
// spec.md §6. A concrete implementation (ethfeed) owns the reconnecting
// subscription loops; callers range over the returned channels until they are
// closed by a fatal, non-transport error.
type EventSource interface {
	SubscribePoolUpdatesV2(ctx context.Context, chain engine.ChainID) (<-chan PoolUpdateV2, error)
	SubscribePoolUpdatesV3(ctx context.Context, chain engine.ChainID) (<-chan PoolUpdateV3, error)
	SubscribeNewBlocks(ctx context.Context, chain engine.ChainID) (<-chan NewBlock, error)
}

// SimulateHop is one leg of a QuoteOracle.Simulate request. AmountIn is
// nonzero only on the first hop of the concatenated buy-path++sell-path
// sequence; every other hop carries its output forward implicitly. The
// concrete oracle resolves PoolOrdinal to a protocol id and handler address
// (Factory for V2, QuoterV2 for V3) itself — the detector only knows which
// pools and tokens are involved, not how to reach them on-chain.
type SimulateHop struct {
	PoolOrdinal engine.PoolOrdinal
	Version     engine.Version
	TokenIn     engine.TokenID
	TokenOut    engine.TokenID
	AmountIn    *big.Int
}

// QuoteOracle simulates a chain of swaps and returns the final amount out,
// used to gate a pending opportunity on real price impact before it is
// submitted (spec.md §4.6).
type QuoteOracle interface {
	Simulate(ctx context.Context, hops []SimulateHop) (amountOut *big.Int, err error)
}

// OrderSubmitter builds and sends the single transaction that executes a
// confirmed opportunity through a private relay.
type OrderSubmitter interface {
	SendOrder(ctx context.Context, hops []SimulateHop, minAmountOut *big.Int, maxPriorityFeePerGas, maxFeePerGas *big.Int, retry int, targetBlock uint64) ([]byte, error)
}

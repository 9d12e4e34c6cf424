package main

import (
	"context"

	"github.com/dexarb/go-arbengine/coordinator"
	"github.com/dexarb/go-arbengine/engine"
	"github.com/dexarb/go-arbengine/ethfeed"
	"github.com/dexarb/go-arbengine/external"
	"github.com/dexarb/go-arbengine/pricegraph"
	"github.com/dexarb/go-arbengine/pricestore"
	"github.com/dexarb/go-arbengine/registry"
	"github.com/dexarb/go-arbengine/telemetry"
	"github.com/ethereum/go-ethereum/common"
)

// runIngestion starts the three per-chain subscription loops against source
// and applies every decoded update to store before enqueueing the
// corresponding coordinator.Event, matching coordinator.go's documented
// contract that an Event's Price Store write has already happened by the
// time the consumer sees it.
func runIngestion(ctx context.Context, chain engine.ChainID, source external.EventSource, store *pricestore.Store, reg *registry.Registry, graph *pricegraph.Graph, queue *coordinator.Queue, gasOracle *ethfeed.GasOracle, logger telemetry.Logger) {
	v2Updates, err := source.SubscribePoolUpdatesV2(ctx, chain)
	if err != nil {
		logger.Error("failed to subscribe to V2 pool updates", "chain", chain, "error", err)
		return
	}
	v3Updates, err := source.SubscribePoolUpdatesV3(ctx, chain)
	if err != nil {
		logger.Error("failed to subscribe to V3 pool updates", "chain", chain, "error", err)
		return
	}
	blocks, err := source.SubscribeNewBlocks(ctx, chain)
	if err != nil {
		logger.Error("failed to subscribe to new blocks", "chain", chain, "error", err)
		return
	}

	for {
		select {
		case update, ok := <-v2Updates:
			if !ok {
				return
			}
			applyV2Update(ctx, chain, update, store, reg, graph, queue, logger)

		case update, ok := <-v3Updates:
			if !ok {
				return
			}
			applyV3Update(ctx, chain, update, store, reg, graph, queue, logger)

		case block, ok := <-blocks:
			if !ok {
				return
			}
			applyNewBlock(ctx, chain, block, gasOracle, queue, logger)

		case <-ctx.Done():
			return
		}
	}
}

func applyV2Update(ctx context.Context, chain engine.ChainID, update external.PoolUpdateV2, store *pricestore.Store, reg *registry.Registry, graph *pricegraph.Graph, queue *coordinator.Queue, logger telemetry.Logger) {
	desc, ok := findPoolByAddress(reg, chain, update.PoolAddress)
	if !ok {
		return
	}
	if err := store.UpdateReserves(chain, desc.Exchange, desc.Token0, desc.Token1, update.Reserve0, update.Reserve1); err != nil {
		logger.Warn("failed to apply V2 reserve update", "chain", chain, "pool", update.PoolAddress, "error", err)
		return
	}
	enqueueAffectedSymbols(ctx, graph, desc, update.BlockNumber, queue, logger)
}

func applyV3Update(ctx context.Context, chain engine.ChainID, update external.PoolUpdateV3, store *pricestore.Store, reg *registry.Registry, graph *pricegraph.Graph, queue *coordinator.Queue, logger telemetry.Logger) {
	desc, ok := findPoolByAddress(reg, chain, update.PoolAddress)
	if !ok {
		return
	}
	if err := store.UpdateSqrtPrice(chain, desc.Exchange, desc.Token0, desc.Token1, update.SqrtPriceX96); err != nil {
		logger.Warn("failed to apply V3 sqrt-price update", "chain", chain, "pool", update.PoolAddress, "error", err)
		return
	}
	enqueueAffectedSymbols(ctx, graph, desc, update.BlockNumber, queue, logger)
}

func enqueueAffectedSymbols(ctx context.Context, graph *pricegraph.Graph, desc engine.PoolDescriptor, block uint64, queue *coordinator.Queue, logger telemetry.Logger) {
	for _, symbol := range graph.SymbolsAffected(desc.Token0, desc.Token1) {
		msg := coordinator.Message{Kind: coordinator.KindEvent, Event: coordinator.Event{Chain: desc.Chain, Symbol: symbol, Block: block}}
		if err := queue.Put(ctx, msg); err != nil {
			logger.Warn("dropped event, queue put failed", "symbol", symbol, "error", err)
		}
	}
}

func applyNewBlock(ctx context.Context, chain engine.ChainID, block external.NewBlock, gasOracle *ethfeed.GasOracle, queue *coordinator.Queue, logger telemetry.Logger) {
	summary := engine.BlockSummary{
		Chain:    chain,
		Number:   block.Number,
		GasUsed:  block.GasUsed,
		GasLimit: block.GasLimit,
		BaseFee:  block.BaseFee,
	}

	if gasOracle != nil {
		priority, maxFee, err := gasOracle.Fetch(ctx, chain)
		if err != nil {
			logger.Warn("gas oracle unavailable, proceeding with zero fee estimate", "chain", chain, "error", err)
		} else {
			summary.MaxPriorityFeePerGas = priority
			summary.MaxFeePerGas = maxFee
		}
	}

	msg := coordinator.Message{Kind: coordinator.KindBlock, Block: coordinator.Block{Summary: summary}}
	if err := queue.Put(ctx, msg); err != nil {
		logger.Warn("dropped block, queue put failed", "block", block.Number, "error", err)
	}
}

func findPoolByAddress(reg *registry.Registry, chain engine.ChainID, addr common.Address) (engine.PoolDescriptor, bool) {
	for _, p := range reg.Pools() {
		if p.Chain == chain && p.Address == addr {
			return p, true
		}
	}
	return engine.PoolDescriptor{}, false
}

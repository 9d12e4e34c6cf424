// Package ethfeed implements the Event Demultiplexer (spec.md §4.5): a
// concrete, go-ethereum-backed external.EventSource. Three reconnecting
// subscription loops per chain — V2 Sync logs, V3 Swap logs, new-head
// notifications — translate raw chain events into the normalized
// PoolUpdateV2/PoolUpdateV3/NewBlock streams external.EventSource promises.
package ethfeed

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"time"

	"github.com/dexarb/go-arbengine/engine"
	"github.com/dexarb/go-arbengine/errs"
	"github.com/dexarb/go-arbengine/external"
	"github.com/dexarb/go-arbengine/telemetry"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// reconnectDelay is the fixed backoff spec.md §5 mandates for transport
// closures — no exponential growth, no jitter (unlike the base-fee jitter
// below, which is a distinct, deliberate mechanism).
const reconnectDelay = 2 * time.Second

var (
	syncEventSignature = crypto.Keccak256Hash([]byte("Sync(uint112,uint112)"))
	swapV3EventSignature = crypto.Keccak256Hash([]byte("Swap(address,address,int256,int256,uint160,uint128,int24)"))
)

// Dialer abstracts how a chain's websocket client is obtained, so tests can
// substitute a fake without dialing a real endpoint.
type Dialer func(ctx context.Context, wsURL string) (*ethclient.Client, error)

// DialEthClient is the production Dialer, a thin wrapper over ethclient.DialContext.
func DialEthClient(ctx context.Context, wsURL string) (*ethclient.Client, error) {
	return ethclient.DialContext(ctx, wsURL)
}

// Source is the concrete external.EventSource. One Source serves every
// configured chain; Chains maps a chain's dense ID to its WS endpoint.
type Source struct {
	Chains map[engine.ChainID]string
	Dial   Dialer
	Oracle *GasOracle // optional; stored only, the subscription loops never query it.
	Logger telemetry.Logger
	Metrics *telemetry.Metrics

	addressIndex map[engine.ChainID]map[common.Address]engine.PoolDescriptor
}

// NewSource builds a Source. pools is typically registry.Registry.Pools().
func NewSource(chains map[engine.ChainID]string, dial Dialer, oracle *GasOracle, logger telemetry.Logger, metrics *telemetry.Metrics, pools []engine.PoolDescriptor) *Source {
	idx := map[engine.ChainID]map[common.Address]engine.PoolDescriptor{}
	for _, p := range pools {
		if idx[p.Chain] == nil {
			idx[p.Chain] = map[common.Address]engine.PoolDescriptor{}
		}
		idx[p.Chain][p.Address] = p
	}
	return &Source{Chains: chains, Dial: dial, Oracle: oracle, Logger: logger, Metrics: metrics, addressIndex: idx}
}

// SubscribePoolUpdatesV2 runs the V2 Sync-log reconnecting supervisor for chain.
func (s *Source) SubscribePoolUpdatesV2(ctx context.Context, chain engine.ChainID) (<-chan external.PoolUpdateV2, error) {
	out := make(chan external.PoolUpdateV2, 64)
	wsURL, ok := s.Chains[chain]
	if !ok {
		return nil, fmt.Errorf("%w: no WS endpoint configured for chain %d", errs.ErrConfig, chain)
	}

	go func() {
		defer close(out)
		s.superviseLogs(ctx, chain, wsURL, "v2-sync", syncEventSignature, func(l types.Log) {
			desc, ok := s.addressIndex[chain][l.Address]
			if !ok || len(l.Data) < 64 {
				return
			}
			reserve0 := new(big.Int).SetBytes(l.Data[0:32])
			reserve1 := new(big.Int).SetBytes(l.Data[32:64])
			if s.Metrics != nil {
				s.Metrics.PoolUpdatesTotal.WithLabelValues(fmt.Sprint(desc.Chain), "v2").Inc()
			}
			select {
			case out <- external.PoolUpdateV2{Chain: chain, PoolAddress: l.Address, BlockNumber: l.BlockNumber, Reserve0: reserve0, Reserve1: reserve1}:
			case <-ctx.Done():
			}
		})
	}()

	return out, nil
}

// SubscribePoolUpdatesV3 runs the V3 Swap-log reconnecting supervisor for chain.
func (s *Source) SubscribePoolUpdatesV3(ctx context.Context, chain engine.ChainID) (<-chan external.PoolUpdateV3, error) {
	out := make(chan external.PoolUpdateV3, 64)
	wsURL, ok := s.Chains[chain]
	if !ok {
		return nil, fmt.Errorf("%w: no WS endpoint configured for chain %d", errs.ErrConfig, chain)
	}

	go func() {
		defer close(out)
		s.superviseLogs(ctx, chain, wsURL, "v3-swap", swapV3EventSignature, func(l types.Log) {
			desc, ok := s.addressIndex[chain][l.Address]
			// Swap data: amount0(32) amount1(32) sqrtPriceX96(32) liquidity(32) tick(32);
			// sqrtPriceX96 is the third field, spec.md §6 field index 2.
			if !ok || len(l.Data) < 96 {
				return
			}
			sqrtPriceX96 := new(big.Int).SetBytes(l.Data[64:96])
			if s.Metrics != nil {
				s.Metrics.PoolUpdatesTotal.WithLabelValues(fmt.Sprint(desc.Chain), "v3").Inc()
			}
			select {
			case out <- external.PoolUpdateV3{Chain: chain, PoolAddress: l.Address, BlockNumber: l.BlockNumber, SqrtPriceX96: sqrtPriceX96}:
			case <-ctx.Done():
			}
		})
	}()

	return out, nil
}

// superviseLogs is the reconnecting supervisor shared by both log streams:
// dial, subscribe, forward, and on any transport closure back off a fixed
// interval and retry; a non-transport error aborts (spec.md §5).
func (s *Source) superviseLogs(ctx context.Context, chain engine.ChainID, wsURL, kind string, signature common.Hash, handle func(types.Log)) {
	for {
		if ctx.Err() != nil {
			return
		}

		client, err := s.Dial(ctx, wsURL)
		if err != nil {
			s.logReconnect(chain, kind, err)
			sleep(ctx, reconnectDelay)
			continue
		}

		err = s.runLogSubscription(ctx, client, chain, signature, handle)
		client.Close()

		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		if !isTransportClosed(err) {
			s.Logger.Error("fatal error in log subscription, aborting", "chain", chain, "kind", kind, "error", err)
			return
		}
		s.logReconnect(chain, kind, err)
		sleep(ctx, reconnectDelay)
	}
}

func (s *Source) runLogSubscription(ctx context.Context, client *ethclient.Client, chain engine.ChainID, signature common.Hash, handle func(types.Log)) error {
	addrs := make([]common.Address, 0, len(s.addressIndex[chain]))
	for addr := range s.addressIndex[chain] {
		addrs = append(addrs, addr)
	}

	logCh := make(chan types.Log)
	sub, err := client.SubscribeFilterLogs(ctx, ethereum.FilterQuery{
		Addresses: addrs,
		Topics:    [][]common.Hash{{signature}},
	}, logCh)
	if err != nil {
		return fmt.Errorf("%w: subscribe: %v", errs.ErrTransportClosed, err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case l := <-logCh:
			handle(l)
		case err := <-sub.Err():
			if err == nil {
				return fmt.Errorf("%w: subscription closed", errs.ErrTransportClosed)
			}
			return fmt.Errorf("%w: %v", errs.ErrTransportClosed, err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SubscribeNewBlocks runs the new-head reconnecting supervisor, computing the
// next-block EIP-1559 base fee on every head. It does not query the gas
// oracle: NewBlock carries no priority/max fee fields.
func (s *Source) SubscribeNewBlocks(ctx context.Context, chain engine.ChainID) (<-chan external.NewBlock, error) {
	out := make(chan external.NewBlock, 16)
	wsURL, ok := s.Chains[chain]
	if !ok {
		return nil, fmt.Errorf("%w: no WS endpoint configured for chain %d", errs.ErrConfig, chain)
	}

	go func() {
		defer close(out)
		s.superviseHeads(ctx, chain, wsURL, out)
	}()
	return out, nil
}

func (s *Source) superviseHeads(ctx context.Context, chain engine.ChainID, wsURL string, out chan<- external.NewBlock) {
	for {
		if ctx.Err() != nil {
			return
		}

		client, err := s.Dial(ctx, wsURL)
		if err != nil {
			s.logReconnect(chain, "new-heads", err)
			sleep(ctx, reconnectDelay)
			continue
		}

		err = s.runHeadSubscription(ctx, client, chain, out)
		client.Close()

		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		if !isTransportClosed(err) {
			s.Logger.Error("fatal error in new-head subscription, aborting", "chain", chain, "error", err)
			return
		}
		s.logReconnect(chain, "new-heads", err)
		sleep(ctx, reconnectDelay)
	}
}

func (s *Source) runHeadSubscription(ctx context.Context, client *ethclient.Client, chain engine.ChainID, out chan<- external.NewBlock) error {
	headCh := make(chan *types.Header)
	sub, err := client.SubscribeNewHead(ctx, headCh)
	if err != nil {
		return fmt.Errorf("%w: subscribe: %v", errs.ErrTransportClosed, err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case h := <-headCh:
			block := s.summarize(ctx, chain, h)
			select {
			case out <- block:
			case <-ctx.Done():
				return ctx.Err()
			}
		case err := <-sub.Err():
			if err == nil {
				return fmt.Errorf("%w: subscription closed", errs.ErrTransportClosed)
			}
			return fmt.Errorf("%w: %v", errs.ErrTransportClosed, err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Source) summarize(ctx context.Context, chain engine.ChainID, h *types.Header) external.NewBlock {
	baseFee := h.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}
	nextBase := NextBaseFee(baseFee, h.GasUsed, h.GasLimit)

	nb := external.NewBlock{Chain: chain, Number: h.Number.Uint64(), BaseFee: nextBase, GasUsed: h.GasUsed, GasLimit: h.GasLimit}
	_ = ctx // gas-oracle priority/max fee are attached by the caller via engine.BlockSummary, not this event type.
	return nb
}

func (s *Source) logReconnect(chain engine.ChainID, kind string, err error) {
	if s.Metrics != nil {
		s.Metrics.ReconnectsTotal.WithLabelValues(fmt.Sprint(chain), kind).Inc()
	}
	s.Logger.Warn("subscription closed, reconnecting", "chain", chain, "kind", kind, "delay", reconnectDelay, "error", err)
}

func isTransportClosed(err error) bool {
	if errors.Is(err, errs.ErrTransportClosed) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// NextBaseFee computes the next block's EIP-1559 base fee per spec.md §4.5:
// let T = gasLimit/2 (floor, minimum 1); if gasUsed > T the fee rises by
// base*(gasUsed-T)/T/8, otherwise it falls by base*(T-gasUsed)/T/8. A small
// jitter in [0,9] is added to break ties under concurrent reads.
func NextBaseFee(base *big.Int, gasUsed, gasLimit uint64) *big.Int {
	target := gasLimit / 2
	if target < 1 {
		target = 1
	}

	next := new(big.Int).Set(base)
	if gasUsed > target {
		delta := new(big.Int).Mul(base, big.NewInt(int64(gasUsed-target)))
		delta.Div(delta, big.NewInt(int64(target)))
		delta.Div(delta, big.NewInt(8))
		next.Add(next, delta)
	} else if gasUsed < target {
		delta := new(big.Int).Mul(base, big.NewInt(int64(target-gasUsed)))
		delta.Div(delta, big.NewInt(int64(target)))
		delta.Div(delta, big.NewInt(8))
		next.Sub(next, delta)
	}

	jitter := rand.Intn(10)
	next.Add(next, big.NewInt(int64(jitter)))
	return next
}

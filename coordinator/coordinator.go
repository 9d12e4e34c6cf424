// Package coordinator implements the Pipeline Coordinator (spec.md §4.7): a
// single bounded multi-producer/single-consumer queue carrying three message
// kinds — Setup, Block, Event — from the ingestion domain (one task per
// chain x subscription-kind) to the single-threaded detector domain. The
// queue is the only channel through which ingestion and detection
// communicate, guaranteeing serialized state mutation on the consumer side
// (spec.md §5).
package coordinator

import (
	"context"

	"github.com/dexarb/go-arbengine/detector"
	"github.com/dexarb/go-arbengine/engine"
	"github.com/dexarb/go-arbengine/external"
	"github.com/dexarb/go-arbengine/pricestore"
)

// MessageKind discriminates the three payloads the queue carries.
type MessageKind uint8

const (
	KindSetup MessageKind = iota
	KindBlock
	KindEvent
)

// Setup carries the symbols the detector should have edge sets registered
// for. The consumer takes no action on it, and cmd/dexarb does not send one:
// edge sets are registered with Detector.RegisterSymbol at startup.
type Setup struct {
	Symbols []string
}

// Block carries one chain's new-block gas context (spec.md §3's "Gas/block
// context").
type Block struct {
	Summary engine.BlockSummary
}

// Event carries one pool-update notification already applied to the Price
// Store by the ingestion task that produced it; the detector only needs to
// know which (chain, symbol) pair to recompute and at which block.
type Event struct {
	Chain  engine.ChainID
	Symbol string
	Block  uint64
}

// Message is one bounded-queue entry. Exactly one of Setup/Block/Event is
// populated, selected by Kind.
type Message struct {
	Kind  MessageKind
	Setup Setup
	Block Block
	Event Event
}

// Queue is the bounded multi-producer/single-consumer channel. Producers
// call Put; the single consumer ranges over Messages.
type Queue struct {
	ch chan Message
}

// NewQueue creates a Queue with the given capacity — the "bounded" in
// bounded multi-producer/single-consumer queue.
func NewQueue(capacity int) *Queue {
	return &Queue{ch: make(chan Message, capacity)}
}

// Put enqueues msg, blocking (a suspension point, spec.md §5) if the queue is
// full, until ctx is done.
func (q *Queue) Put(ctx context.Context, msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Messages exposes the receive side for the single consumer task.
func (q *Queue) Messages() <-chan Message {
	return q.ch
}

// Close signals producers are done; only the owner of all producers should call this.
func (q *Queue) Close() {
	close(q.ch)
}

// Sinks receives the detector's observable outcomes for downstream delivery
// (InfluxDB, Telegram, an OrderSubmitter queue — all out of scope here,
// spec.md §1).
type Sinks interface {
	EmitSpreads(symbol string, spreads detector.Spreads)
	EmitPending(pending *detector.Pending)
	EmitFinalized(result *detector.FinalizeResult)
}

// Consumer is the detector domain's single consumer: it dequeues messages in
// arrival order, drives det against store, and forwards every observable
// outcome to sinks. One Consumer must be run per process — spec.md §4.6's
// "strictly one pending at a time" depends on it.
type Consumer struct {
	Queue  *Queue
	Store  *pricestore.Store
	Detect *detector.Detector
	Oracle external.QuoteOracle
	Sinks  Sinks
}

// Run drains the queue until ctx is done or the queue is closed.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		select {
		case msg, ok := <-c.Queue.Messages():
			if !ok {
				return nil
			}
			if err := c.handle(ctx, msg); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg Message) error {
	switch msg.Kind {
	case KindEvent:
		before := c.Detect.Pending()
		spreads, err := c.Detect.OnPoolUpdate(c.Store, msg.Event.Chain, msg.Event.Symbol, msg.Event.Block)
		if err != nil {
			return err
		}
		c.Sinks.EmitSpreads(msg.Event.Symbol, spreads)
		// Emit a pending only when this update opened it, not on every event
		// while an older one is still live.
		if pending := c.Detect.Pending(); pending != nil &&
			(before == nil || before.EdgeName != pending.EdgeName || before.BlockSeen != pending.BlockSeen) {
			c.Sinks.EmitPending(pending)
		}

	case KindBlock:
		result, err := c.Detect.OnNewBlock(ctx, msg.Block.Summary, c.Oracle)
		if err != nil {
			return err
		}
		if result != nil {
			c.Sinks.EmitFinalized(result)
		}

	case KindSetup:
		// Edge sets are registered directly against the detector at startup
		// (Detector.RegisterSymbol), before the consumer ever runs; a Setup
		// message here is advisory/logging only.
	}
	return nil
}

// Package detector implements the Arbitrage Detector (spec.md §4.6): it
// precomputes, per trading symbol, the set of path pairs ("edges") that can
// form a cyclic arbitrage trade, recomputes directed spreads on every pool
// update, and tracks the single pending opportunity through to a simulation
// decision once a matching block's gas context arrives.
package detector

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/dexarb/go-arbengine/engine"
	"github.com/dexarb/go-arbengine/errs"
	"github.com/dexarb/go-arbengine/external"
	"github.com/dexarb/go-arbengine/pathbuilder"
	"github.com/dexarb/go-arbengine/pricegraph"
	"github.com/dexarb/go-arbengine/pricestore"
)

// Status is the lifecycle state of a Pending opportunity (spec.md §3).
type Status uint8

const (
	Detected Status = iota
	OrderProcessing
)

func (s Status) String() string {
	if s == OrderProcessing {
		return "order_processing"
	}
	return "detected"
}

// Edge is an unordered pair of path indices into a SymbolGraph eligible for
// cyclic arbitrage: their first pools differ and their last pools differ
// (spec.md §3, §4.6). Name is a stable, human-readable identifier built from
// pool short codes; it carries no semantic weight, only logging value —
// mirrors the debug-only role of the teacher's cycle_name.
type Edge struct {
	Name string
	I, J int
}

// BuildEdges precomputes the edge set for one symbol's enumerated paths.
func BuildEdges(sg *pricegraph.SymbolGraph) []Edge {
	var edges []Edge
	for i := 0; i < len(sg.Paths); i++ {
		for j := i + 1; j < len(sg.Paths); j++ {
			pi, pj := sg.Paths[i], sg.Paths[j]
			if pi.FirstPoolOrdinal() == pj.FirstPoolOrdinal() {
				continue
			}
			if pi.LastPoolOrdinal() == pj.LastPoolOrdinal() {
				continue
			}
			edges = append(edges, Edge{Name: edgeName(pi, pj), I: i, J: j})
		}
	}
	return edges
}

func edgeName(a, b *pricegraph.PathRecord) string {
	return fmt.Sprintf("%s/%s", pathName(a), pathName(b))
}

func reverseEdgeName(name string) string {
	parts := strings.SplitN(name, "/", 2)
	if len(parts) != 2 {
		return name
	}
	return parts[1] + "/" + parts[0]
}

func pathName(p *pricegraph.PathRecord) string {
	codes := make([]string, len(p.PoolOrdinals))
	for i, ord := range p.PoolOrdinals {
		codes[i] = fmt.Sprintf("P%dv%d", ord, p.Hops[i].Version)
	}
	return strings.Join(codes, "-")
}

// Spreads maps a directed edge name to its computed spread (unit fraction,
// not percent — see Candidate for the same convention).
type Spreads map[string]float64

// Candidate is the best directed spread found during one recomputation pass.
// Price fields are the QUOTE/BASE cumulative prices pricegraph.Graph.UpdatePrice
// produced; Spread is a unit fraction (0.0017 means 0.17%), matching the
// fraction convention pricegraph already uses for Fee.
type Candidate struct {
	EdgeName            string
	Spread              float64
	BuyIndex, SellIndex int
	BuyPrice, SellPrice float64
}

// RecomputeSpreads computes both directed spreads for every edge (spec.md
// §4.6 steps 1-3) and returns the spreads map plus the single best directed
// spread found, or nil if edges is empty. An unpriced path (Price 0) gives
// its directed spreads the value 0.
func RecomputeSpreads(sg *pricegraph.SymbolGraph, edges []Edge) (Spreads, *Candidate) {
	spreads := make(Spreads, len(edges)*2)
	var best *Candidate

	for _, e := range edges {
		pi, pj := sg.Paths[e.I], sg.Paths[e.J]
		totalFee := pi.Fee + pj.Fee

		nameIJ := e.Name
		nameJI := reverseEdgeName(e.Name)

		var spreadIJ, spreadJI float64
		if pj.Price != 0 {
			spreadIJ = (pi.Price/pj.Price - 1) - totalFee
		}
		if pi.Price != 0 {
			spreadJI = (pj.Price/pi.Price - 1) - totalFee
		}

		spreads[nameIJ] = spreadIJ
		spreads[nameJI] = spreadJI

		// spread_ij positive means path i is priced above path j: buy on the
		// cheaper leg (j), sell on the richer leg (i).
		if best == nil || spreadIJ > best.Spread {
			best = &Candidate{EdgeName: nameIJ, Spread: spreadIJ, BuyIndex: e.J, SellIndex: e.I, BuyPrice: pj.Price, SellPrice: pi.Price}
		}
		if spreadJI > best.Spread {
			best = &Candidate{EdgeName: nameJI, Spread: spreadJI, BuyIndex: e.I, SellIndex: e.J, BuyPrice: pi.Price, SellPrice: pj.Price}
		}
	}

	return spreads, best
}

// Pending is the single in-flight candidate opportunity (spec.md §3).
type Pending struct {
	EdgeName  string
	BlockSeen uint64
	Status    Status

	BuyPrice, SellPrice float64
	Spread              float64

	BuyPath, SellPath                 pathbuilder.Path
	BuyPoolOrdinals, SellPoolOrdinals []engine.PoolOrdinal
	EstimatedGasUnits                 uint64
}

// FinalizeResult is the outcome of evaluating a Detected pending against a
// new block's gas context (spec.md §4.6, the new-block branch).
type FinalizeResult struct {
	// Discarded is true when the pending was cleared without being
	// submitted: its spread no longer cleared targetSpread, it was
	// un-fundable at MaxBetSize (no simulation run), or the simulated profit
	// was not positive.
	Discarded bool
	// Submitted is true when the simulated profit was positive and the
	// pending transitioned to OrderProcessing.
	Submitted bool

	MinInputQuote   float64
	SimulatedProfit float64
}

// Detector tracks, per symbol, the precomputed edge set and the single live
// Pending opportunity across every symbol (spec.md §4.6's "strictly one
// pending at a time" applies process-wide, not per symbol).
type Detector struct {
	mu sync.Mutex

	graph        *pricegraph.Graph
	edges        map[string][]Edge
	gas          engine.GasCosts
	maxBetSize   float64
	targetSpread float64

	pending *Pending
}

// New constructs a Detector over graph. maxBetSize and targetSpread are unit
// quote/fraction values (e.g. 20000 USDT, 0.0015 for 0.15%).
func New(graph *pricegraph.Graph, gas engine.GasCosts, maxBetSize, targetSpread float64) *Detector {
	return &Detector{
		graph:        graph,
		edges:        map[string][]Edge{},
		gas:          gas,
		maxBetSize:   maxBetSize,
		targetSpread: targetSpread,
	}
}

// RegisterSymbol precomputes the edge set for sg. Must be called once per
// symbol before OnPoolUpdate is ever invoked for it.
func (d *Detector) RegisterSymbol(sg *pricegraph.SymbolGraph) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.edges[sg.Symbol] = BuildEdges(sg)
}

// OnPoolUpdate recomputes prices for symbol on chain, recomputes every edge's
// directed spreads, and — if no pending is currently live and the best
// spread clears targetSpread — opens a new Detected pending (spec.md §4.6
// steps 1-4, pool-update branch). A live pending is cleared here too if this
// revaluation shows its own edge has dropped back to or below targetSpread
// (spec.md §4.6 "spread-revaluation" clearing, scenario S5).
func (d *Detector) OnPoolUpdate(store *pricestore.Store, chain engine.ChainID, symbol string, block uint64) (Spreads, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.graph.UpdatePrice(store, chain, symbol); err != nil {
		return nil, err
	}

	sg, ok := d.graph.Symbol(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrNoSuchSymbol, symbol)
	}
	edges, ok := d.edges[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: no edge set registered for symbol %s", errs.ErrNoSuchSymbol, symbol)
	}

	spreads, best := RecomputeSpreads(sg, edges)

	if d.pending != nil {
		if revalued, ok := spreads[d.pending.EdgeName]; ok && revalued <= d.targetSpread {
			d.pending = nil
		}
	}

	if best == nil {
		return spreads, nil
	}

	if d.pending == nil && best.Spread > d.targetSpread {
		buy := sg.Paths[best.BuyIndex]
		sell := sg.Paths[best.SellIndex]

		d.pending = &Pending{
			EdgeName:         best.EdgeName,
			BlockSeen:        block,
			Status:           Detected,
			BuyPrice:         best.BuyPrice,
			SellPrice:        best.SellPrice,
			Spread:           best.Spread,
			BuyPath:          buy.Hops,
			SellPath:         sell.Hops,
			BuyPoolOrdinals:  buy.PoolOrdinals,
			SellPoolOrdinals: sell.PoolOrdinals,
			EstimatedGasUnits: d.gas.EstimateGas(
				hopVersions(buy.Hops),
				hopVersions(sell.Hops),
			),
		}
	}

	return spreads, nil
}

// Pending returns a copy of the currently live pending, or nil if none.
func (d *Detector) Pending() *Pending {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return nil
	}
	cp := *d.pending
	return &cp
}

// OnNewBlock evaluates the live Detected pending (if any) against block's gas
// context and, when fundable, gates it through oracle.Simulate before
// deciding whether to mark it OrderProcessing (spec.md §4.6, new-block
// branch, steps 1-4). The pending is always cleared by this call once it is
// evaluated; a nil result means there was nothing to evaluate.
func (d *Detector) OnNewBlock(ctx context.Context, block engine.BlockSummary, oracle external.QuoteOracle) (*FinalizeResult, error) {
	d.mu.Lock()
	pending := d.pending
	d.mu.Unlock()

	if pending == nil || pending.Status != Detected {
		return nil, nil
	}
	if pending.BlockSeen != block.Number {
		return nil, nil
	}

	defer func() {
		d.mu.Lock()
		if d.pending == pending {
			d.pending = nil
		}
		d.mu.Unlock()
	}()

	if pending.Spread <= d.targetSpread {
		return &FinalizeResult{Discarded: true}, nil
	}

	maxFeePerGas := bigIntToFloat(block.MaxFeePerGas)
	gasCostBase := float64(pending.EstimatedGasUnits) * maxFeePerGas * 1e-18
	gasCostQuote := gasCostBase * pending.SellPrice
	quoteProfitPerUnit := pending.BuyPrice * pending.Spread
	if quoteProfitPerUnit <= 0 {
		return &FinalizeResult{Discarded: true}, nil
	}

	minInputQuote := (gasCostQuote / quoteProfitPerUnit) * pending.BuyPrice
	if minInputQuote > d.maxBetSize {
		return &FinalizeResult{Discarded: true, MinInputQuote: minInputQuote}, nil
	}

	amountIn := minInputQuote * 1.1
	hops := buildSimulateHops(pending, amountIn)

	amountOutInt, err := oracle.Simulate(ctx, hops)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrSimulation, err)
	}
	amountOut := bigIntToFloat(amountOutInt)

	profit := amountOut - amountIn - gasCostQuote
	if profit <= 0 {
		return &FinalizeResult{Discarded: true, MinInputQuote: minInputQuote, SimulatedProfit: profit}, nil
	}

	d.mu.Lock()
	if d.pending == pending {
		d.pending.Status = OrderProcessing
	}
	d.mu.Unlock()

	return &FinalizeResult{Submitted: true, MinInputQuote: minInputQuote, SimulatedProfit: profit}, nil
}

func hopVersions(hops pathbuilder.Path) []engine.Version {
	out := make([]engine.Version, 0, len(hops))
	for _, h := range hops {
		out = append(out, h.Version)
	}
	return out
}

// buildSimulateHops concatenates buy-path then sell-path into one ordered
// request, carrying amountIn only on the very first hop (spec.md §6).
func buildSimulateHops(p *Pending, amountIn float64) []external.SimulateHop {
	hops := make([]external.SimulateHop, 0, len(p.BuyPath)+len(p.SellPath))

	appendLeg := func(leg pathbuilder.Path, ordinals []engine.PoolOrdinal) {
		for i, key := range leg {
			amt := big.NewInt(0)
			if len(hops) == 0 {
				amt = floatToBigInt(amountIn)
			}
			hops = append(hops, external.SimulateHop{
				PoolOrdinal: ordinals[i],
				Version:     key.Version,
				TokenIn:     key.TokenIn,
				TokenOut:    key.TokenOut,
				AmountIn:    amt,
			})
		}
	}

	appendLeg(p.BuyPath, p.BuyPoolOrdinals)
	appendLeg(p.SellPath, p.SellPoolOrdinals)

	return hops
}

func bigIntToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

func floatToBigInt(v float64) *big.Int {
	bf := big.NewFloat(v)
	out, _ := bf.Int(nil)
	return out
}

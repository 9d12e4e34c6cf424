// Package pricegraph implements the Price Graph Engine (spec.md §4.4): it
// holds, per trading symbol, the paths the Path Builder enumerated and their
// cumulative price/fee, recomputed as the Price Store is updated.
package pricegraph

import (
	"fmt"

	"github.com/dexarb/go-arbengine/engine"
	"github.com/dexarb/go-arbengine/errs"
	"github.com/dexarb/go-arbengine/pathbuilder"
	"github.com/dexarb/go-arbengine/pricestore"
)

// OrdinalLookup resolves a directional PoolKey to its stable pool ordinal;
// registry.Registry satisfies this.
type OrdinalLookup interface {
	Ordinal(key engine.PoolKey) (engine.PoolOrdinal, bool)
}

// PathRecord is one enumerated path plus its last-computed cumulative price
// and fee. Hops are listed in traversal order; PoolOrdinals is parallel to
// Hops.
type PathRecord struct {
	Chain        engine.ChainID
	Hops         pathbuilder.Path
	PoolOrdinals []engine.PoolOrdinal
	Price        float64
	Fee          float64
}

// FirstPoolOrdinal and LastPoolOrdinal identify a path for edge-set
// construction in the detector (spec.md §4.6).
func (p *PathRecord) FirstPoolOrdinal() engine.PoolOrdinal {
	return p.PoolOrdinals[0]
}

func (p *PathRecord) LastPoolOrdinal() engine.PoolOrdinal {
	return p.PoolOrdinals[len(p.PoolOrdinals)-1]
}

// SymbolGraph is one trading symbol's full set of enumerated paths across
// all chains, plus the token set used to drive selective recomputation.
type SymbolGraph struct {
	Symbol string
	Paths  []*PathRecord
	Tokens map[engine.TokenID]struct{}
}

// NewSymbolGraph builds a SymbolGraph from the Path Builder's per-chain
// output, concatenated in chain-ID order as spec.md §4.3 requires.
func NewSymbolGraph(symbol string, chainOrder []engine.ChainID, chainPaths map[engine.ChainID][]pathbuilder.Path, lookup OrdinalLookup) (*SymbolGraph, error) {
	sg := &SymbolGraph{Symbol: symbol, Tokens: map[engine.TokenID]struct{}{}}

	for _, chain := range chainOrder {
		for _, path := range chainPaths[chain] {
			ordinals := make([]engine.PoolOrdinal, len(path))
			for i, hop := range path {
				ord, ok := lookup.Ordinal(hop)
				if !ok {
					return nil, fmt.Errorf("%w: path references unregistered pool %s", errs.ErrNoSuchPool, hop)
				}
				ordinals[i] = ord
				sg.Tokens[hop.TokenIn] = struct{}{}
				sg.Tokens[hop.TokenOut] = struct{}{}
			}
			sg.Paths = append(sg.Paths, &PathRecord{
				Chain:        chain,
				Hops:         path,
				PoolOrdinals: ordinals,
			})
		}
	}

	return sg, nil
}

// Graph holds every tracked trading symbol's SymbolGraph.
type Graph struct {
	symbols map[string]*SymbolGraph
}

// New creates an empty Price Graph.
func New() *Graph {
	return &Graph{symbols: map[string]*SymbolGraph{}}
}

// AddSymbol registers a SymbolGraph, overwriting any prior graph for the same symbol.
func (g *Graph) AddSymbol(sg *SymbolGraph) {
	g.symbols[sg.Symbol] = sg
}

// Symbol returns the SymbolGraph for a trading symbol.
func (g *Graph) Symbol(name string) (*SymbolGraph, bool) {
	sg, ok := g.symbols[name]
	return sg, ok
}

// UpdatePrice recomputes cumulative price and fee for every path of symbol
// whose first hop is on chain (spec.md §4.4): price accumulates as the
// product of hop reciprocals (BASE/QUOTE convention matching CEX quoting),
// fee accumulates as 1 - Π(1-fee_hop).
func (g *Graph) UpdatePrice(store *pricestore.Store, chain engine.ChainID, symbol string) error {
	sg, ok := g.symbols[symbol]
	if !ok {
		return fmt.Errorf("%w: %s", errs.ErrNoSuchSymbol, symbol)
	}

	for _, path := range sg.Paths {
		if path.Chain != chain {
			continue
		}

		price := 1.0
		feeMul := 1.0
		for _, hop := range path.Hops {
			p, f, err := store.GetPrice(hop)
			if err != nil {
				return err
			}
			if p == 0 {
				price = 0
			} else {
				price *= 1 / p
			}
			feeMul *= 1 - f
		}

		path.Price = price
		path.Fee = 1 - feeMul
	}

	return nil
}

// SymbolsAffected returns every tracked symbol whose token set intersects
// {token0, token1}, driving selective recomputation after a pool update.
func (g *Graph) SymbolsAffected(token0, token1 engine.TokenID) []string {
	var affected []string
	for name, sg := range g.symbols {
		_, has0 := sg.Tokens[token0]
		_, has1 := sg.Tokens[token1]
		if has0 || has1 {
			affected = append(affected, name)
		}
	}
	return affected
}

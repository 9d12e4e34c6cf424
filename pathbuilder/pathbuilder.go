// Package pathbuilder implements the Path Builder (spec.md §4.3): an
// offline enumerator of every 1..MaxHops-hop directional pool sequence that
// starts at a symbol's quote token and ends at its base token on one chain
// (buying BASE of a BASE/QUOTE symbol swaps QUOTE -> BASE).
//
// It runs in two phases. Phase A samples, for each target hop count and hop
// position, the directional pools that could legally occupy that position.
// Phase B assembles full sequences by backtracking over the sampled
// candidates, enforcing the hop-chaining invariant and the U-turn
// exclusion rule.
package pathbuilder

import (
	"github.com/dexarb/go-arbengine/bitset"
	"github.com/dexarb/go-arbengine/engine"
)

// Path is one complete, ordered directional-pool sequence from a symbol's
// input token to its output token.
type Path []engine.PoolKey

// Build enumerates every path of length 1..maxHops from tokenIn to tokenOut
// using only the directional pools in keys (typically one chain's
// registry.Registry.ChainKeys result). numTokens bounds the bitset used to
// track reachable tokens between hop positions; it must be at least
// 1+the largest TokenID appearing in keys.
func Build(keys []engine.PoolKey, tokenIn, tokenOut engine.TokenID, maxHops int, numTokens int) []Path {
	var paths []Path
	for n := 1; n <= maxHops; n++ {
		samples, ok := samplePools(keys, tokenIn, tokenOut, n, numTokens)
		if !ok {
			continue
		}
		assemble(samples, n, nil, make(Path, n), 0, &paths)
	}
	return paths
}

// samplePools is Phase A: it returns, for hop count n, the candidate keys at
// each of the n hop positions, or ok=false if any position sampled empty.
func samplePools(keys []engine.PoolKey, tokenIn, tokenOut engine.TokenID, n int, numTokens int) (positions [][]engine.PoolKey, ok bool) {
	positions = make([][]engine.PoolKey, n)

	reachable := bitset.NewBitSet(uint64(numTokens))
	reachable.Set(uint64(tokenIn))

	for i := 0; i < n; i++ {
		last := i == n-1

		var filtered []engine.PoolKey
		for _, k := range keys {
			if !reachable.IsSet(uint64(k.TokenIn)) {
				continue
			}
			if last {
				if k.TokenOut != tokenOut {
					continue
				}
			} else if k.TokenOut == tokenOut {
				continue
			}
			filtered = append(filtered, k)
		}

		if len(filtered) == 0 {
			return nil, false
		}
		positions[i] = filtered

		next := bitset.NewBitSet(uint64(numTokens))
		for _, k := range filtered {
			next.Set(uint64(k.TokenOut))
		}
		reachable = next
	}

	return positions, true
}

// assemble is Phase B: depth-first backtracking over the sampled candidates,
// enforcing the hop-chaining invariant and the U-turn exclusion rule at the
// final hop.
func assemble(positions [][]engine.PoolKey, n int, prev *engine.PoolKey, current Path, hop int, out *[]Path) {
	for _, candidate := range positions[hop] {
		if prev != nil && prev.TokenOut != candidate.TokenIn {
			continue
		}

		if hop == n-1 && prev != nil && isUTurn(*prev, candidate) {
			continue
		}

		current[hop] = candidate

		if hop == n-1 {
			finished := make(Path, n)
			copy(finished, current)
			*out = append(*out, finished)
			continue
		}

		c := candidate
		assemble(positions, n, &c, current, hop+1, out)
	}
}

// isUTurn reports whether candidate reverses prev on the same exchange,
// version, and token pair — an A→B→A round trip on the same pool.
func isUTurn(prev, candidate engine.PoolKey) bool {
	sameExchange := prev.Exchange == candidate.Exchange
	sameVersion := prev.Version == candidate.Version
	samePair := prev.TokenIn == candidate.TokenOut && prev.TokenOut == candidate.TokenIn
	return sameExchange && sameVersion && samePair
}

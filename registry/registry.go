// Package registry implements the Pool Registry (spec.md §4.1): it reads a
// list of pool descriptors and a per-chain token table, assigns dense integer
// identifiers to chains/exchanges/tokens by lexicographic enumeration, and
// builds the immutable pool descriptor array plus the per-chain key index
// the Path Builder walks.
package registry

import (
	"fmt"
	"sort"

	"github.com/dexarb/go-arbengine/engine"
	"github.com/dexarb/go-arbengine/errs"
	"github.com/ethereum/go-ethereum/common"
)

// TokenConfig is one entry of the per-chain token table: a symbol mapped to
// its on-chain address and ERC20 decimals.
type TokenConfig struct {
	Chain    string
	Symbol   string
	Address  common.Address
	Decimals uint8
}

// PoolConfig is one descriptor line as supplied by configuration, prior to ID
// assignment.
type PoolConfig struct {
	Chain    string
	Exchange string
	Version  engine.Version
	Address  common.Address
	Fee      uint32
	Token0   string
	Token1   string
}

// Registry is the built, queryable Pool Registry.
type Registry struct {
	chains    []string
	exchanges []string
	tokens    []string

	chainToID    map[string]engine.ChainID
	exchangeToID map[string]engine.ExchangeID
	tokenToID    map[tokenKey]engine.TokenID

	pools []engine.PoolDescriptor

	// chainKeys holds, per chain, both directional PoolKeys of every pool on
	// that chain — exactly the input the Path Builder needs for Phase A.
	chainKeys map[engine.ChainID][]engine.PoolKey

	decimals map[engine.TokenID]uint8

	// ordinalByKey resolves either directional PoolKey of a pool back to its
	// stable ordinal, for the Price Graph's path -> pool-ordinal mapping.
	ordinalByKey map[engine.PoolKey]engine.PoolOrdinal
}

// tokenKey disambiguates token symbols across chains: "ETH" on ethereum and
// "ETH" on arbitrum are different dense tokens.
type tokenKey struct {
	chain  string
	symbol string
}

// Build assigns dense IDs and constructs the registry. Every
// (chain, exchange, token0, token1, version) combination must be unique;
// a duplicate fails with errs.ErrConfig.
func Build(tokenConfigs []TokenConfig, poolConfigs []PoolConfig) (*Registry, error) {
	chainSet := map[string]struct{}{}
	exchangeSet := map[string]struct{}{}

	for _, t := range tokenConfigs {
		chainSet[t.Chain] = struct{}{}
	}
	for _, p := range poolConfigs {
		chainSet[p.Chain] = struct{}{}
		exchangeSet[p.Exchange] = struct{}{}
	}

	r := &Registry{
		chains:       sortedKeys(chainSet),
		exchanges:    sortedKeys(exchangeSet),
		chainToID:    map[string]engine.ChainID{},
		exchangeToID: map[string]engine.ExchangeID{},
		tokenToID:    map[tokenKey]engine.TokenID{},
		chainKeys:    map[engine.ChainID][]engine.PoolKey{},
		decimals:     map[engine.TokenID]uint8{},
		ordinalByKey: map[engine.PoolKey]engine.PoolOrdinal{},
	}

	for i, c := range r.chains {
		r.chainToID[c] = engine.ChainID(i)
	}
	for i, e := range r.exchanges {
		r.exchangeToID[e] = engine.ExchangeID(i)
	}

	tokenSet := map[tokenKey]struct{}{}
	for _, t := range tokenConfigs {
		tokenSet[tokenKey{t.Chain, t.Symbol}] = struct{}{}
	}
	tokenKeys := make([]tokenKey, 0, len(tokenSet))
	for k := range tokenSet {
		tokenKeys = append(tokenKeys, k)
	}
	sort.Slice(tokenKeys, func(i, j int) bool {
		if tokenKeys[i].chain != tokenKeys[j].chain {
			return tokenKeys[i].chain < tokenKeys[j].chain
		}
		return tokenKeys[i].symbol < tokenKeys[j].symbol
	})
	for i, k := range tokenKeys {
		r.tokenToID[k] = engine.TokenID(i)
		r.tokens = append(r.tokens, fmt.Sprintf("%s/%s", k.chain, k.symbol))
	}
	for _, t := range tokenConfigs {
		id := r.tokenToID[tokenKey{t.Chain, t.Symbol}]
		r.decimals[id] = t.Decimals
	}

	seen := map[engine.PoolKey]struct{}{}
	for ordinal, p := range poolConfigs {
		token0ID, ok := r.tokenToID[tokenKey{p.Chain, p.Token0}]
		if !ok {
			return nil, fmt.Errorf("%w: pool %d references unknown token %q on chain %q", errs.ErrConfig, ordinal, p.Token0, p.Chain)
		}
		token1ID, ok := r.tokenToID[tokenKey{p.Chain, p.Token1}]
		if !ok {
			return nil, fmt.Errorf("%w: pool %d references unknown token %q on chain %q", errs.ErrConfig, ordinal, p.Token1, p.Chain)
		}

		desc := engine.PoolDescriptor{
			Chain:          r.chainToID[p.Chain],
			Exchange:       r.exchangeToID[p.Exchange],
			Version:        p.Version,
			Address:        p.Address,
			Fee:            p.Fee,
			Token0:         token0ID,
			Token1:         token1ID,
			Token0Decimals: r.decimals[token0ID],
			Token1Decimals: r.decimals[token1ID],
			Ordinal:        engine.PoolOrdinal(ordinal),
		}

		key0, key1 := desc.Keys()
		if _, dup := seen[key0]; dup {
			return nil, fmt.Errorf("%w: duplicate pool registration for %s", errs.ErrConfig, key0)
		}
		seen[key0] = struct{}{}
		seen[key1] = struct{}{}

		r.pools = append(r.pools, desc)
		r.chainKeys[desc.Chain] = append(r.chainKeys[desc.Chain], key0, key1)
		r.ordinalByKey[key0] = desc.Ordinal
		r.ordinalByKey[key1] = desc.Ordinal
	}

	return r, nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Pools returns a defensive copy of the pool descriptor array, indexed by PoolOrdinal.
func (r *Registry) Pools() []engine.PoolDescriptor {
	out := make([]engine.PoolDescriptor, len(r.pools))
	copy(out, r.pools)
	return out
}

// Pool retrieves one descriptor by its ordinal.
func (r *Registry) Pool(ordinal engine.PoolOrdinal) (engine.PoolDescriptor, bool) {
	if int(ordinal) < 0 || int(ordinal) >= len(r.pools) {
		return engine.PoolDescriptor{}, false
	}
	return r.pools[ordinal], true
}

// ChainKeys returns both directional PoolKeys of every pool registered on chain.
func (r *Registry) ChainKeys(chain engine.ChainID) []engine.PoolKey {
	out := make([]engine.PoolKey, len(r.chainKeys[chain]))
	copy(out, r.chainKeys[chain])
	return out
}

// Chains returns the dense chain IDs in enumeration order.
func (r *Registry) Chains() []engine.ChainID {
	out := make([]engine.ChainID, len(r.chains))
	for i := range r.chains {
		out[i] = engine.ChainID(i)
	}
	return out
}

// ChainName resolves a dense chain ID back to its configured name.
func (r *Registry) ChainName(id engine.ChainID) (string, bool) {
	if int(id) < 0 || int(id) >= len(r.chains) {
		return "", false
	}
	return r.chains[id], true
}

// ChainID resolves a chain's configured name to its dense ID.
func (r *Registry) ChainID(name string) (engine.ChainID, bool) {
	id, ok := r.chainToID[name]
	return id, ok
}

// ExchangeID resolves an exchange's configured name to its dense ID.
func (r *Registry) ExchangeID(name string) (engine.ExchangeID, bool) {
	id, ok := r.exchangeToID[name]
	return id, ok
}

// TokenID resolves a (chain, symbol) pair to its dense ID.
func (r *Registry) TokenID(chain, symbol string) (engine.TokenID, bool) {
	id, ok := r.tokenToID[tokenKey{chain, symbol}]
	return id, ok
}

// Ordinal resolves either directional PoolKey of a registered pool to its
// stable ordinal.
func (r *Registry) Ordinal(key engine.PoolKey) (engine.PoolOrdinal, bool) {
	o, ok := r.ordinalByKey[key]
	return o, ok
}

// Decimals returns the ERC20 decimals registered for a token ID.
func (r *Registry) Decimals(id engine.TokenID) (uint8, bool) {
	d, ok := r.decimals[id]
	return d, ok
}

// NumTokens returns the number of dense token IDs assigned, i.e. one past
// the largest engine.TokenID in use — the bitset size the Path Builder needs.
func (r *Registry) NumTokens() int {
	return len(r.tokens)
}

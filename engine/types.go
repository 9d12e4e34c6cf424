// Package engine holds the domain primitives shared by every other package:
// the dense integer identifiers assigned at startup, the composite pool key
// built from them, the immutable pool descriptor, and the block/gas context
// the detector needs to finalize a pending opportunity.
package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Version encodes the AMM family a pool belongs to.
type Version uint8

const (
	V2 Version = 0
	V3 Version = 1
)

func (v Version) String() string {
	if v == V2 {
		return "v2"
	}
	return "v3"
}

// ChainID, ExchangeID and TokenID are dense integers assigned by lexicographic
// enumeration at startup (see registry.Registry). They are small enough to be
// used as array/map keys without the cardinality problems of addresses.
type ChainID uint32
type ExchangeID uint32
type TokenID uint32

// PoolOrdinal is the position of a pool descriptor in the registry's pool
// array; it is the stable identifier carried through paths and edges.
type PoolOrdinal uint32

// PoolKey is the 5-tuple identifying one directional cell in the Price Store:
// (chain, exchange, token_in, token_out, version). Two cells share every
// field but TokenIn/TokenOut swapped — one per swap direction.
type PoolKey struct {
	Chain    ChainID
	Exchange ExchangeID
	TokenIn  TokenID
	TokenOut TokenID
	Version  Version
}

// Reverse returns the key for the opposite swap direction of the same pool.
func (k PoolKey) Reverse() PoolKey {
	return PoolKey{
		Chain:    k.Chain,
		Exchange: k.Exchange,
		TokenIn:  k.TokenOut,
		TokenOut: k.TokenIn,
		Version:  k.Version,
	}
}

func (k PoolKey) String() string {
	return fmt.Sprintf("(chain=%d,exchange=%d,in=%d,out=%d,%s)", k.Chain, k.Exchange, k.TokenIn, k.TokenOut, k.Version)
}

// PoolDescriptor is the immutable record assigned to every registered pool.
// Fee is in hundredths of a basis point (500 = 0.05%).
type PoolDescriptor struct {
	Chain          ChainID
	Exchange       ExchangeID
	Version        Version
	Address        common.Address
	Fee            uint32
	Token0         TokenID
	Token1         TokenID
	Token0Decimals uint8
	Token1Decimals uint8
	Ordinal        PoolOrdinal
}

// FeeRate returns Fee as a unit-fraction, e.g. 0.0005 for a 500 fee.
func (d PoolDescriptor) FeeRate() float64 {
	return float64(d.Fee) / 1_000_000.0
}

// Keys returns the two directional PoolKeys a pool contributes to the Price Store.
func (d PoolDescriptor) Keys() (token0In, token1In PoolKey) {
	token0In = PoolKey{Chain: d.Chain, Exchange: d.Exchange, TokenIn: d.Token0, TokenOut: d.Token1, Version: d.Version}
	token1In = token0In.Reverse()
	return token0In, token1In
}

// BlockSummary carries the block fields the detector and event demultiplexer
// need: EIP-1559 gas parameters plus enough identity to recognize the block
// a pending opportunity was detected in.
type BlockSummary struct {
	Chain                ChainID
	Number                uint64
	Hash                 common.Hash
	GasUsed              uint64
	GasLimit             uint64
	BaseFee              *big.Int
	MaxPriorityFeePerGas *big.Int
	MaxFeePerGas         *big.Int
	ReceivedAtUnixNs     int64
}

// GasCosts holds the per-hop gas estimates used to size a pending opportunity.
type GasCosts struct {
	Base  uint64
	V2Hop uint64
	V3Hop uint64
}

// EstimateGas sums the base cost plus one hop cost per non-sentinel hop across
// both legs (buy path, sell path) of a candidate cyclic trade.
func (g GasCosts) EstimateGas(legs ...[]Version) uint64 {
	total := g.Base
	for _, leg := range legs {
		for _, v := range leg {
			if v == V2 {
				total += g.V2Hop
			} else {
				total += g.V3Hop
			}
		}
	}
	return total
}

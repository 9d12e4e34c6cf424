// Package tickbitmap locates the next initialized tick from a sorted slice
// of initialized ticks via binary search, standing in for Uniswap V3's
// word-packed on-chain bitmap (quotesim only ever holds the ticks a fetched
// pool snapshot returned, not the full bitmap).
package tickbitmap

import "sort"

// NextInitializedTickWithinOneWord returns the next initialized tick from
// tick in the walk direction implied by lte: when lte is true it returns the
// greatest initialized tick <= tick (searching left); otherwise the smallest
// initialized tick > tick (searching right).
func NextInitializedTickWithinOneWord(ticks []int64, tick int64, lte bool) (next int64, initialized bool) {
	if len(ticks) == 0 {
		return 0, false
	}

	if lte {
		index := sort.Search(len(ticks), func(i int) bool { return ticks[i] >= tick })
		if index < len(ticks) && ticks[index] == tick {
			return tick, true
		}
		if index == 0 {
			return 0, false
		}
		return ticks[index-1], true
	}

	index := sort.Search(len(ticks), func(i int) bool { return ticks[i] > tick })
	if index >= len(ticks) {
		return 0, false
	}
	return ticks[index], true
}

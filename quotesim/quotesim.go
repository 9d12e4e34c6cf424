// Package quotesim is the reference multi-tick QuoteOracle: it replays a
// Uniswap V3 swap tick-by-tick against a pool snapshot, the way the
// official SwapMath/TickBitmap libraries do, to produce an exact execution
// price. It exists to exercise the spec's "single-tick mid-price now,
// multi-tick simulation as an extension" design note (spec.md's Design
// Notes); the core Price Graph still ranks paths on ammmath's single-tick
// mid-price and only calls into quotesim to validate a detected opportunity
// before funding it.
package quotesim

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/dexarb/go-arbengine/errs"
	"github.com/dexarb/go-arbengine/quotesim/liquiditymath"
	"github.com/dexarb/go-arbengine/quotesim/swapmath"
	"github.com/dexarb/go-arbengine/quotesim/tickbitmap"
	"github.com/dexarb/go-arbengine/quotesim/tickmath"
)

// TickInfo is one initialized tick boundary and the signed liquidity delta
// crossing it introduces.
type TickInfo struct {
	Index        int64
	LiquidityNet *big.Int
}

// Pool is a point-in-time snapshot of a V3 pool's simulation-relevant state.
type Pool struct {
	Token0IsInput bool
	Fee           uint32
	SqrtPriceX96  *big.Int
	Liquidity     *big.Int
	Tick          int64
	Ticks         []TickInfo // sorted ascending by Index
}

var ErrInvalidAmountIn = errors.New("amountIn must be greater than zero")

type swapState struct {
	amountSpecifiedRemaining *big.Int
	amountCalculated         *big.Int
	sqrtPriceX96             *big.Int
	tick                     int64
	liquidity                *big.Int

	sqrtPriceStartX96 *big.Int
	sqrtPriceNextX96  *big.Int
	targetPrice       *big.Int
	stepAmountIn      *big.Int
	stepAmountOut     *big.Int
	stepFeeAmount     *big.Int
	tempAmount        *big.Int
	liquidityNet      *big.Int
}

var swapStatePool = sync.Pool{
	New: func() any {
		return &swapState{
			amountSpecifiedRemaining: new(big.Int),
			amountCalculated:         new(big.Int),
			sqrtPriceX96:             new(big.Int),
			liquidity:                new(big.Int),
			sqrtPriceStartX96:        new(big.Int),
			sqrtPriceNextX96:         new(big.Int),
			targetPrice:              new(big.Int),
			stepAmountIn:             new(big.Int),
			stepAmountOut:            new(big.Int),
			stepFeeAmount:            new(big.Int),
			tempAmount:               new(big.Int),
			liquidityNet:             new(big.Int),
		}
	},
}

func tickIndices(ticks []TickInfo) []int64 {
	out := make([]int64, len(ticks))
	for i, t := range ticks {
		out[i] = t.Index
	}
	return out
}

func swap(state *swapState, pool Pool, sqrtPriceLimitX96 *big.Int, zeroForOne bool) error {
	if sqrtPriceLimitX96 == nil {
		if zeroForOne {
			sqrtPriceLimitX96 = tickmath.MinSqrtRatio
		} else {
			sqrtPriceLimitX96 = tickmath.MaxSqrtRatio
		}
	}

	exactInput := state.amountSpecifiedRemaining.Sign() > 0
	indices := tickIndices(pool.Ticks)

	for state.amountSpecifiedRemaining.Sign() != 0 && state.sqrtPriceX96.Cmp(sqrtPriceLimitX96) != 0 {
		state.sqrtPriceStartX96.Set(state.sqrtPriceX96)

		tickNext, initialized := tickbitmap.NextInitializedTickWithinOneWord(indices, state.tick, zeroForOne)
		if !initialized {
			break
		}
		if tickNext < tickmath.MinTick {
			tickNext = tickmath.MinTick
		} else if tickNext > tickmath.MaxTick {
			tickNext = tickmath.MaxTick
		}

		if err := tickmath.GetSqrtRatioAtTick(state.sqrtPriceNextX96, tickNext); err != nil {
			return err
		}

		if (zeroForOne && state.sqrtPriceNextX96.Cmp(sqrtPriceLimitX96) < 0) ||
			(!zeroForOne && state.sqrtPriceNextX96.Cmp(sqrtPriceLimitX96) > 0) {
			state.targetPrice.Set(sqrtPriceLimitX96)
		} else {
			state.targetPrice.Set(state.sqrtPriceNextX96)
		}

		err := swapmath.ComputeSwapStep(
			state.sqrtPriceX96, state.stepAmountIn, state.stepAmountOut, state.stepFeeAmount,
			state.sqrtPriceStartX96, state.targetPrice, state.liquidity, state.amountSpecifiedRemaining,
			state.tempAmount.SetUint64(uint64(pool.Fee)),
		)
		if err != nil {
			break
		}

		if exactInput {
			state.amountSpecifiedRemaining.Sub(state.amountSpecifiedRemaining, state.tempAmount.Add(state.stepAmountIn, state.stepFeeAmount))
			state.amountCalculated.Add(state.amountCalculated, state.stepAmountOut)
		} else {
			state.amountSpecifiedRemaining.Add(state.amountSpecifiedRemaining, state.stepAmountOut)
			state.amountCalculated.Add(state.amountCalculated, state.tempAmount.Add(state.stepAmountIn, state.stepFeeAmount))
		}

		if state.sqrtPriceX96.Cmp(state.sqrtPriceNextX96) == 0 {
			var found bool
			for _, t := range pool.Ticks {
				if t.Index == tickNext {
					state.liquidityNet.Set(t.LiquidityNet)
					found = true
					break
				}
			}
			if found {
				if zeroForOne {
					state.liquidityNet.Neg(state.liquidityNet)
				}
				if err := liquiditymath.AddDelta(state.liquidity, state.liquidity, state.liquidityNet); err != nil {
					if errors.Is(err, liquiditymath.ErrLiquidityUnderflow) {
						break
					}
					return err
				}
			}
			if zeroForOne {
				state.tick = tickNext - 1
			} else {
				state.tick = tickNext
			}
		} else if state.sqrtPriceX96.Cmp(state.sqrtPriceStartX96) != 0 {
			var err error
			state.tick, err = tickmath.GetTickAtSqrtRatio(state.sqrtPriceX96)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// SimulateExactIn executes amountIn of tokenIn (token0 if zeroForOne) through
// pool tick-by-tick and returns the amount out plus the post-swap snapshot.
func SimulateExactIn(amountIn *big.Int, zeroForOne bool, pool Pool) (amountOut *big.Int, newPool Pool, err error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, Pool{}, fmt.Errorf("%w: %v", errs.ErrSimulation, ErrInvalidAmountIn)
	}

	state := swapStatePool.Get().(*swapState)
	defer swapStatePool.Put(state)

	state.amountSpecifiedRemaining.Set(amountIn)
	state.amountCalculated.SetInt64(0)
	state.sqrtPriceX96.Set(pool.SqrtPriceX96)
	state.tick = pool.Tick
	state.liquidity.Set(pool.Liquidity)

	if err := swap(state, pool, nil, zeroForOne); err != nil {
		return nil, Pool{}, fmt.Errorf("%w: %v", errs.ErrSimulation, err)
	}

	newPool = pool
	newPool.SqrtPriceX96 = new(big.Int).Set(state.sqrtPriceX96)
	newPool.Tick = state.tick
	newPool.Liquidity = new(big.Int).Set(state.liquidity)

	return new(big.Int).Set(state.amountCalculated), newPool, nil
}

// SortTicks orders a tick slice ascending by Index, the invariant the swap
// loop and tickbitmap search both require.
func SortTicks(ticks []TickInfo) {
	sort.Slice(ticks, func(i, j int) bool { return ticks[i].Index < ticks[j].Index })
}

// Package ammmath implements the AMM Math component (spec.md §4.2/4.3): the
// single-tick mid-price and constant-product swap formulas used by the Price
// Store and Price Graph. Multi-tick V3 simulation lives in package quotesim;
// this package is the cheap, allocation-light path the hot update loop uses.
package ammmath

import (
	"fmt"
	"math"
	"math/big"

	"github.com/dexarb/go-arbengine/errs"
)

// q96 is 2^96, the fixed-point base of Uniswap V3's sqrtPriceX96 encoding.
var q96 = new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), 96))

var basisPointDivisor = big.NewInt(1_000_000)

// V2Mid returns the token0-in-terms-of-token1 mid-price of a constant-product
// pool, decimal-adjusted. Reverse it (1/mid) for the token1-in direction.
func V2Mid(reserve0, reserve1 *big.Int, decimals0, decimals1 uint8) float64 {
	if reserve0 == nil || reserve1 == nil || reserve0.Sign() == 0 {
		return 0
	}
	r0 := new(big.Float).SetInt(reserve0)
	r1 := new(big.Float).SetInt(reserve1)
	ratio := new(big.Float).Quo(r1, r0)

	adj := decimalAdjust(decimals0, decimals1)
	ratio.Mul(ratio, adj)
	f, _ := ratio.Float64()
	return f
}

// V3Mid returns the token0-in-terms-of-token1 mid-price derived from
// sqrtPriceX96 = sqrt(token1/token0) * 2^96, decimal-adjusted.
func V3Mid(sqrtPriceX96 *big.Int, decimals0, decimals1 uint8) float64 {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return 0
	}
	sp := new(big.Float).SetInt(sqrtPriceX96)
	ratio := new(big.Float).Quo(sp, q96)
	price := new(big.Float).Mul(ratio, ratio)

	adj := decimalAdjust(decimals0, decimals1)
	price.Mul(price, adj)
	f, _ := price.Float64()
	return f
}

func decimalAdjust(decimals0, decimals1 uint8) *big.Float {
	return big.NewFloat(math.Pow(10, float64(decimals0)) / math.Pow(10, float64(decimals1)))
}

// GetAmountOut applies the constant-product swap formula with a fee
// expressed in parts-per-million (feePPM: 500 == 0.05%), matching the
// teacher's GetAmountOut but generalized from fixed basis points.
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int, feePPM uint32) (*big.Int, error) {
	if amountIn == nil {
		return nil, fmt.Errorf("%w: nil amountIn", errs.ErrSimulation)
	}
	if amountIn.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative amountIn", errs.ErrSimulation)
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return new(big.Int), nil
	}

	feeMultiplier := new(big.Int).Sub(basisPointDivisor, big.NewInt(int64(feePPM)))
	amountInWithFee := new(big.Int).Mul(amountIn, feeMultiplier)

	numerator := new(big.Int).Mul(reserveOut, amountInWithFee)
	denominator := new(big.Int).Mul(reserveIn, basisPointDivisor)
	denominator.Add(denominator, amountInWithFee)

	if denominator.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero denominator", errs.ErrSimulation)
	}
	return new(big.Int).Div(numerator, denominator), nil
}

// ApplyFeeChain returns 1 - Π(1 - fee_i), the cumulative fee rate of a
// multi-hop path (spec.md §4.4).
func ApplyFeeChain(feeRates []float64) float64 {
	remaining := 1.0
	for _, f := range feeRates {
		remaining *= 1 - f
	}
	return 1 - remaining
}

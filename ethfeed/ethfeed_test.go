package ethfeed

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextBaseFee_RisesWhenGasUsedAboveTarget(t *testing.T) {
	base := big.NewInt(100_000_000_000) // 100 gwei
	gasLimit := uint64(30_000_000)
	target := gasLimit / 2

	next := NextBaseFee(base, target+1_000_000, gasLimit)

	delta := new(big.Int).Mul(base, big.NewInt(1_000_000))
	delta.Div(delta, big.NewInt(int64(target)))
	delta.Div(delta, big.NewInt(8))
	expectedFloor := new(big.Int).Add(base, delta)

	assert.True(t, next.Cmp(expectedFloor) >= 0, "next (%s) should be at least the un-jittered value (%s)", next, expectedFloor)
	assert.True(t, next.Cmp(new(big.Int).Add(expectedFloor, big.NewInt(9))) <= 0)
}

func TestNextBaseFee_FallsWhenGasUsedBelowTarget(t *testing.T) {
	base := big.NewInt(100_000_000_000)
	gasLimit := uint64(30_000_000)
	target := gasLimit / 2

	next := NextBaseFee(base, target-1_000_000, gasLimit)

	delta := new(big.Int).Mul(base, big.NewInt(1_000_000))
	delta.Div(delta, big.NewInt(int64(target)))
	delta.Div(delta, big.NewInt(8))
	expectedFloor := new(big.Int).Sub(base, delta)

	assert.True(t, next.Cmp(expectedFloor) >= 0)
	assert.True(t, next.Cmp(new(big.Int).Add(expectedFloor, big.NewInt(9))) <= 0)
}

func TestNextBaseFee_UnchangedAtExactTarget(t *testing.T) {
	base := big.NewInt(50_000_000_000)
	gasLimit := uint64(30_000_000)
	target := gasLimit / 2

	next := NextBaseFee(base, target, gasLimit)

	assert.True(t, next.Cmp(base) >= 0)
	assert.True(t, next.Cmp(new(big.Int).Add(base, big.NewInt(9))) <= 0)
}

func TestNextBaseFee_ZeroGasLimitFloorsTargetAtOne(t *testing.T) {
	base := big.NewInt(1_000)
	next := NextBaseFee(base, 0, 0)
	assert.NotNil(t, next)
}

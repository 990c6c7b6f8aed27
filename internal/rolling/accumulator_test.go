package rolling

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoPass computes mean and sample variance the textbook way for
// cross-checking the single-pass update.
func twoPass(data []float64) (mean, variance float64) {
	for _, x := range data {
		mean += x
	}
	mean /= float64(len(data))
	for _, x := range data {
		variance += (x - mean) * (x - mean)
	}
	if len(data) >= 2 {
		variance /= float64(len(data) - 1)
	} else {
		variance = 0
	}
	return mean, variance
}

func TestWelfordMatchesTwoPass(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	lengths := []int{1, 2, 10, 100, 1000, 10000}
	for _, n := range lengths {
		data := make([]float64, n)
		for i := range data {
			data[i] = 50 + rng.Float64()*100
		}

		acc := NewAccumulator(DefaultWindowSize)
		for _, x := range data {
			acc.Observe(x)
		}

		wantMean, wantVar := twoPass(data)
		assert.InEpsilon(t, wantMean, acc.Mean, 1e-9, "mean for n=%d", n)
		if n >= 2 {
			assert.InEpsilon(t, wantVar, acc.Variance(), 1e-9, "variance for n=%d", n)
		} else {
			assert.Zero(t, acc.Variance())
		}
		assert.Equal(t, int64(n), acc.Count)
	}
}

func TestVarianceBelowTwoSamplesIsZero(t *testing.T) {
	acc := NewAccumulator(10)
	assert.Zero(t, acc.Variance())
	acc.Observe(3.5)
	assert.Zero(t, acc.Variance())
	assert.Equal(t, 3.5, acc.Mean)
}

func TestWindowIsBoundedFIFO(t *testing.T) {
	acc := NewAccumulator(5)
	for i := 1; i <= 8; i++ {
		acc.Observe(float64(i))
	}

	assert.Equal(t, []float64{4, 5, 6, 7, 8}, acc.Window)
	assert.Equal(t, int64(8), acc.Count, "running moments keep the full history")
}

func TestWindowStats(t *testing.T) {
	acc := NewAccumulator(10)
	for _, x := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		acc.Observe(x)
	}

	mean, std := acc.WindowStats()
	assert.InDelta(t, 5.0, mean, 1e-12)
	// Sample std of the classic 2,4,4,4,5,5,7,9 sequence
	assert.InDelta(t, math.Sqrt(32.0/7.0), std, 1e-12)
}

func TestWindowStatsEmpty(t *testing.T) {
	acc := NewAccumulator(10)
	mean, std := acc.WindowStats()
	assert.Zero(t, mean)
	assert.Zero(t, std)
}

func TestWindowFill(t *testing.T) {
	acc := NewAccumulator(4)
	assert.Zero(t, acc.WindowFill())
	acc.Observe(1)
	acc.Observe(2)
	assert.InDelta(t, 0.5, acc.WindowFill(), 1e-12)
	for i := 0; i < 10; i++ {
		acc.Observe(1)
	}
	assert.InDelta(t, 1.0, acc.WindowFill(), 1e-12)
}

func TestReset(t *testing.T) {
	acc := NewAccumulator(10)
	for i := 0; i < 20; i++ {
		acc.Observe(float64(i))
	}
	require.NotZero(t, acc.Count)

	acc.Reset()
	assert.Zero(t, acc.Count)
	assert.Zero(t, acc.Mean)
	assert.Zero(t, acc.M2)
	assert.Empty(t, acc.Window)
	assert.Equal(t, 10, acc.Capacity(), "capacity survives reset")
}

func TestSetCapacityTrimsOldest(t *testing.T) {
	acc := NewAccumulator(10)
	for i := 1; i <= 6; i++ {
		acc.Observe(float64(i))
	}

	acc.SetCapacity(3)
	assert.Equal(t, []float64{4, 5, 6}, acc.Window)
	assert.Equal(t, 3, acc.Capacity())
}

func TestCloneIsIndependent(t *testing.T) {
	acc := NewAccumulator(5)
	acc.Observe(1)
	acc.Observe(2)

	dup := acc.Clone()
	dup.Observe(3)

	assert.Equal(t, int64(2), acc.Count)
	assert.Equal(t, int64(3), dup.Count)
	assert.Len(t, acc.Window, 2)
	assert.Len(t, dup.Window, 3)
}

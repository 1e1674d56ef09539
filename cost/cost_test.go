package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func baseConfig() Config {
	return Config{
		IO:           4096,
		SeekCost:     1.0,
		CompareTime:  1.0,
		NodeOverhead: 16,
	}
}

// Cost strictly decreases as the memory budget grows, and a budget large
// enough to avoid any spill matches the pure in-memory formula (zero
// spill and merge terms).
func TestEstimateCost_MonotonicInMemory(t *testing.T) {
	cfg := baseConfig()
	const n = 1_000_000
	const w = 8

	small := EstimateCost(n, w, 64*1024, cfg)
	medium := EstimateCost(n, w, 64*1024*1024, cfg)
	large := EstimateCost(n, w, 1024*1024*1024, cfg)

	assert.Greater(t, small, medium)
	assert.Greater(t, medium, large)
}

func TestEstimateCost_ZeroSpillWhenEverythingFitsInMemory(t *testing.T) {
	cfg := baseConfig()
	const n = 1000
	const w = 8

	// Budget big enough that kMax > n: no spill ever occurs, so the
	// estimate must match the pure in-memory formula computed
	// independently here — one tree build plus one output read, with
	// zero spill-write and merge terms.
	huge := EstimateCost(n, w, 10*1024*1024, cfg)
	pureTreeCost := log2Factorial(float64(n)+1)/cfg.CompareTime + float64(ceilDiv(int64(w)*n, cfg.IO))
	assert.Equal(t, pureTreeCost, huge)

	// Cost with a tiny budget that forces spills must be strictly larger.
	tiny := EstimateCost(n, w, 200, cfg)
	assert.Greater(t, tiny, huge)
}

func TestEstimateCost_MonotonicInN(t *testing.T) {
	cfg := baseConfig()
	small := EstimateCost(1000, 8, 4096, cfg)
	large := EstimateCost(1_000_000, 8, 4096, cfg)
	assert.Greater(t, large, small)
}

func TestEstimateCost_DegenerateInputsReturnZero(t *testing.T) {
	cfg := baseConfig()
	assert.Equal(t, 0.0, EstimateCost(100, 0, 4096, cfg))
	assert.Equal(t, 0.0, EstimateCost(100, 8, 0, cfg))
}

func TestEstimatedRuns(t *testing.T) {
	cfg := baseConfig()
	// kMax = 4096 / (8+16) = 170; 1000 keys -> ceil(1000/170) = 6 runs.
	got := EstimatedRuns(1000, 8, 4096, cfg)
	assert.Equal(t, int64(6), got)
}

// Package cost implements the Deduper's planner-facing cost model: a pure
// function predicting the disk-seek cost of inserting N keys of width W
// under a memory budget M, without constructing a Deduper.
//
// The model is closed-form numerical estimation (Stirling's approximation
// for log2(n!) plus a simulated bounded fan-in reduction), not I/O,
// storage, or transport — the standard library's math package is what
// that kind of arithmetic calls for.
package cost

import (
	"math"

	"github.com/flowdb/rowdedup/merge"
)

// Config carries the engine-wide constants the cost model depends on, as
// explicit inputs rather than hidden globals.
type Config struct {
	// IO is the size, in bytes, of one I/O block.
	IO int64
	// SeekCost is the cost, in seek-equivalents, of one I/O block's
	// worth of sequential disk access.
	SeekCost float64
	// CompareTime is the number of comparator invocations that cost as
	// much as one seek; comparison counts are divided by it to turn them
	// into seek-equivalents.
	CompareTime float64
	// NodeOverhead is the per-element bookkeeping overhead of the
	// in-memory ordered set, in bytes.
	NodeOverhead int64
	// FanIn and FanInThreshold parameterize the simulated bounded
	// fan-in reduction. Zero means use merge.DefaultFanIn /
	// merge.DefaultFanInThreshold.
	FanIn          int
	FanInThreshold int
}

func (c Config) fanIn() int {
	if c.FanIn > 0 {
		return c.FanIn
	}
	return merge.DefaultFanIn
}

func (c Config) fanInThreshold() int {
	if c.FanInThreshold > 0 {
		return c.FanInThreshold
	}
	return merge.DefaultFanInThreshold
}

// log2Factorial approximates log2(n!) via Stirling's approximation:
// log2(n!) ≈ (log(2πn)/2 + n·log(n/e)) / ln 2.
func log2Factorial(n float64) float64 {
	if n <= 1 {
		return 0
	}
	return (math.Log(2*math.Pi*n)/2 + n*math.Log(n/math.E)) / math.Ln2
}

func ceilDiv(a, b int64) int64 {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// EstimateCost predicts, in seek-equivalents, the cost of building and
// extracting a Deduper holding up to n keys of width w bytes under memory
// budget m. It performs no I/O and constructs no Deduper.
func EstimateCost(n, w, m int64, cfg Config) float64 {
	if w <= 0 || m <= 0 || cfg.IO <= 0 {
		return 0
	}

	kMax := m / (w + cfg.NodeOverhead)
	if kMax <= 0 {
		return 0
	}

	nFull := n / kMax
	nLast := n % kMax

	// Building a tree of n elements one insert at a time takes about
	// log2(n!) comparisons, so each full tree costs log2((kMax+1)!) and the
	// last, partial tree log2((nLast+1)!).
	treeBuildCost := 0.0
	if cfg.CompareTime > 0 {
		treeBuildCost = (float64(nFull)*log2Factorial(float64(kMax)+1) +
			log2Factorial(float64(nLast)+1)) / cfg.CompareTime
	}

	spillWriteCost := 0.0
	if nFull > 0 {
		spillWriteCost = cfg.SeekCost * float64(
			nFull*ceilDiv(w*kMax, cfg.IO)+ceilDiv(w*nLast, cfg.IO),
		)
	}

	mergeCost := estimateMergeCost(nFull, nLast, kMax, w, cfg)

	outputReadCost := float64(ceilDiv(w*n, cfg.IO))

	return treeBuildCost + spillWriteCost + mergeCost + outputReadCost
}

// estimateMergeCost simulates merge.ReduceMany's bounded fan-in passes
// over a vector of nFull runs of size kMax plus one run of size nLast
// (when nLast > 0), summing each pass's merge_buffers_cost until a single
// run remains.
func estimateMergeCost(nFull, nLast, kMax, w int64, cfg Config) float64 {
	if nFull == 0 {
		return 0
	}

	sizes := make([]int64, 0, nFull+1)
	for i := int64(0); i < nFull; i++ {
		sizes = append(sizes, kMax)
	}
	if nLast > 0 {
		sizes = append(sizes, nLast)
	}

	total := 0.0
	fanIn := cfg.fanIn()
	threshold := cfg.fanInThreshold()

	for len(sizes) > 1 {
		var groups [][2]int
		if len(sizes) <= threshold {
			// At or below the fan-in threshold: the next pass is the
			// single final merge over everything remaining.
			groups = [][2]int{{0, len(sizes)}}
		} else {
			groups = merge.GroupRuns(len(sizes), fanIn)
		}

		next := make([]int64, 0, len(groups))
		for _, g := range groups {
			start, end := g[0], g[1]
			if end-start == 1 {
				next = append(next, sizes[start])
				continue
			}

			var sum int64
			for _, s := range sizes[start:end] {
				sum += s
			}

			groupSize := float64(end - start)
			cost := 2*float64(sum)*float64(w)/float64(cfg.IO) +
				float64(sum)*math.Log(groupSize)/(cfg.CompareTime*math.Ln2)
			total += cost

			next = append(next, sum)
		}

		sizes = next
	}

	return total
}

// EstimatedRuns predicts how many runs accumulation would spill for n keys
// of width w under budget m, a cheap incidental count the planner can use
// for downstream memory planning.
func EstimatedRuns(n, w, m int64, cfg Config) int64 {
	kMax := m / (w + cfg.NodeOverhead)
	if kMax <= 0 {
		return 0
	}
	return ceilDiv(n, kMax)
}

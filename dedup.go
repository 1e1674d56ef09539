package dedup

import (
	"errors"
	"fmt"
	"iter"

	"github.com/flowdb/rowdedup/cost"
	"github.com/flowdb/rowdedup/dederr"
	"github.com/flowdb/rowdedup/merge"
	"github.com/flowdb/rowdedup/spillfile"
	"github.com/flowdb/rowdedup/treeset"
)

// Comparator is a total order over opaque, fixed-width byte keys. Any
// context the comparator needs should be captured by the closure itself —
// Go closures already give the same immutable-context,
// borrowed-for-the-Deduper's-lifetime guarantee that a separate context
// parameter threaded through every call would, without the plumbing.
type Comparator func(a, b []byte) int

type phase int

const (
	accumulating phase = iota
	extracted
	poisoned
)

// Deduper is a single-use, single-threaded, bounded-memory deduplicating
// key set. See the package doc for the accumulate/extract lifecycle.
type Deduper struct {
	width  int
	budget int64
	kMax   int
	cmp    Comparator

	tree *treeset.Set
	file *spillfile.File
	dir  spillfile.Directory

	opts  options
	phase phase
}

// New constructs a Deduper ordered by cmp, holding keys of exactly width
// bytes, under a memory ceiling of budget bytes. budget must be at least
// width plus one tree node's overhead, or New returns an
// dederr.InvalidArgument error.
func New(cmp Comparator, width int, budget int64, opts ...Option) (*Deduper, error) {
	if width <= 0 {
		return nil, dederr.New(dederr.InvalidArgument, "New", errors.New("width must be > 0"))
	}
	if budget < int64(width+treeset.NodeOverhead) {
		return nil, dederr.New(dederr.InvalidArgument, "New",
			fmt.Errorf("budget %d too small to hold one %d-byte key", budget, width))
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	kMax := int(budget / int64(width+treeset.NodeOverhead))

	return &Deduper{
		width:  width,
		budget: budget,
		kMax:   kMax,
		cmp:    cmp,
		tree:   treeset.New(treeset.Comparator(cmp), kMax),
		opts:   o,
		phase:  accumulating,
	}, nil
}

// Put inserts a width-byte key. Inserting a key equal to one already
// present (under cmp) is a no-op: the logical set does not grow, and
// memory is not consumed.
func (d *Deduper) Put(key []byte) error {
	if d.phase != accumulating {
		return dederr.New(dederr.InvalidPhase, "Put", nil)
	}
	if len(key) != d.width {
		return dederr.New(dederr.InvalidArgument, "Put",
			fmt.Errorf("key length %d != width %d", len(key), d.width))
	}

	if d.tree.Len() == d.kMax {
		if err := d.spill(); err != nil {
			return err
		}
	}

	d.tree.Insert(key)
	return nil
}

// spill writes the current tree to the scratch file as one sorted run and
// clears it. The scratch file is opened lazily, on the first spill, so a
// Deduper whose working set always fits in memory never touches disk.
// Failure here does not poison the Deduper: accumulation may continue, or
// the caller may extract what has been accumulated so far.
func (d *Deduper) spill() error {
	if d.file == nil {
		f, err := spillfile.Open(d.opts.tempDir, d.opts.tempPrefix)
		if err != nil {
			return dederr.New(dederr.SpillWriteFailure, "spill", err)
		}
		d.file = f
	}

	offset := d.file.Tell()
	count := 0

	var walkErr error
	d.tree.Ascend(func(key []byte) bool {
		if _, err := d.file.Write(key); err != nil {
			walkErr = err
			return false
		}
		count++
		return true
	})
	if walkErr != nil {
		return dederr.New(dederr.SpillWriteFailure, "spill", walkErr)
	}
	// Flush so that a write failure surfaces here, as a failed spill,
	// rather than being held in the write buffer until extraction.
	if err := d.file.FlushAndSwitchToRead(); err != nil {
		return dederr.New(dederr.SpillWriteFailure, "spill", err)
	}

	// The run descriptor is only committed now that the walk has
	// completed without error — an aborted spill must not leave a
	// descriptor behind.
	d.dir.Append(offset, count)
	d.tree.Clear()
	return nil
}

// ExtractInto finalizes the Deduper and emits its sorted, duplicate-free
// keys to sink. It may be called only once: a second call, or a call
// after a prior call failed, returns dederr.InvalidPhase.
//
// If nothing was ever spilled, the fast path walks the in-memory tree
// directly into one buffer and hands it to sink.WriteBuffer. If that
// buffer can't be allocated, ExtractInto falls through to the slow path
// instead, since nothing has reached sink yet at that point. Any other
// fast-path failure — including sink.WriteBuffer itself failing — poisons
// the Deduper immediately rather than retrying via the slow path, which
// would otherwise risk delivering the same keys to sink a second time.
// The slow path flushes any residual tree as a final run, reduces all
// runs to a small number via bounded fan-in merges, and performs one last
// k-way merge straight into sink.WriteKey / sink.Finalize, dropping
// adjacent-equal keys as runs collide.
func (d *Deduper) ExtractInto(sink Sink) error {
	if d.phase != accumulating {
		return dederr.New(dederr.InvalidPhase, "ExtractInto", nil)
	}

	if d.dir.Empty() {
		err := d.extractFastPath(sink)
		if err == nil {
			d.phase = extracted
			return nil
		}
		if !dederr.Is(err, dederr.AllocationFailure) {
			// Only a failed allocation licenses falling through to the
			// slow path: the fast path hasn't written anything to sink
			// yet at that point. Any other failure may already have
			// delivered partial output to sink (e.g. a short
			// sink.WriteBuffer), so retrying via the slow path would
			// write the same keys again ahead of — or after — whatever
			// sink already has. Poison and return immediately instead.
			d.phase = poisoned
			return err
		}
		// Fast-path buffer allocation failed before anything was written
		// to sink; fall through and try the slow path, which will
		// attempt further allocations of its own.
	}

	if err := d.extractSlowPath(sink); err != nil {
		d.phase = poisoned
		return err
	}

	d.phase = extracted
	return nil
}

func (d *Deduper) extractFastPath(sink Sink) error {
	buf, err := d.opts.allocate(d.tree.Len() * d.width)
	if err != nil {
		return dederr.New(dederr.AllocationFailure, "ExtractInto", err)
	}

	idx := 0
	d.tree.Ascend(func(key []byte) bool {
		copy(buf[idx:idx+d.width], key)
		idx += d.width
		return true
	})

	if err := sink.WriteBuffer(buf, d.width); err != nil {
		return dederr.New(dederr.MergeFailure, "ExtractInto", err)
	}
	return nil
}

func (d *Deduper) extractSlowPath(sink Sink) error {
	if err := d.spill(); err != nil {
		return dederr.New(dederr.SpillWriteFailure, "ExtractInto", err)
	}

	mergeCmp := merge.Comparator(d.cmp)

	if err := merge.ReduceMany(d.file, &d.dir, mergeCmp, d.width, d.opts.fanIn, d.opts.fanInThreshold); err != nil {
		return err
	}

	if err := merge.FinalMerge(d.file, &d.dir, mergeCmp, d.width, sinkAdapter{sink}); err != nil {
		return err
	}

	if err := sink.Finalize(); err != nil {
		return dederr.New(dederr.MergeFailure, "ExtractInto", err)
	}
	return nil
}

// Extract is a convenience wrapper around ExtractInto for callers that
// want to range over the result directly rather than implement a Sink: it
// extracts into an in-memory BufferSink and returns an iterator over the
// same sorted, duplicate-free keys.
func (d *Deduper) Extract() (iter.Seq[[]byte], error) {
	sink := &BufferSink{Width: d.width}
	if err := d.ExtractInto(sink); err != nil {
		return nil, err
	}
	return func(yield func([]byte) bool) {
		for i := 0; i < sink.Len(); i++ {
			if !yield(sink.Key(i)) {
				return
			}
		}
	}, nil
}

// Close releases the Deduper's tree, closes and unlinks its scratch file,
// and discards its run directory. Safe to call in any phase, including
// after a Poisoned extraction.
func (d *Deduper) Close() error {
	d.tree = nil
	d.dir.Reset(nil)
	if d.file != nil {
		err := d.file.CloseAndUnlink()
		d.file = nil
		return err
	}
	return nil
}

// EstimateCost predicts, in seek-equivalents, the disk-seek cost of
// inserting n keys of width w bytes under memory budget m, without
// constructing a Deduper. It is a static function, not a method, since the
// planner must be able to call it before deciding whether to build a
// Deduper at all.
func EstimateCost(n, w, m int64, cfg cost.Config) float64 {
	return cost.EstimateCost(n, w, m, cfg)
}

// EstimatedRuns predicts how many runs would be spilled for n keys of
// width w under budget m, for planner-side memory accounting.
func EstimatedRuns(n, w, m int64, cfg cost.Config) int64 {
	return cost.EstimatedRuns(n, w, m, cfg)
}

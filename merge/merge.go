// Package merge implements the Deduper's external-memory merge pipeline:
// a bounded fan-in run reducer and a final k-way merge that drops
// adjacent-equal keys.
//
// The contract — a Sequence interface, one merge pass dropping duplicates
// between runs, and a many-to-one reducer driving repeated bounded-fan-in
// passes — runs a comparator-ordered merge of several sequences into one,
// suppressing adjacent keys that compare equal. The merge engine is a
// binary-heap k-way merge rather than a hand-rolled tournament (loser)
// tree: container/heap already does this job without pulling in a
// priority-queue dependency for it.
package merge

import (
	"bufio"
	"container/heap"
	"fmt"
	"io"

	"github.com/flowdb/rowdedup/dederr"
	"github.com/flowdb/rowdedup/spillfile"
)

// Comparator is a total order over opaque byte keys.
type Comparator func(a, b []byte) int

// DefaultFanIn and DefaultFanInThreshold are the conventional constants
// governing run reduction: merge 7 runs at a time during reduction, and
// stop reducing once 15 or fewer runs remain (the next call is the final
// emit-to-sink merge).
const (
	DefaultFanIn          = 7
	DefaultFanInThreshold = 15
)

// Sequence produces keys in ascending comparator order: a source the
// merger can pull from once per merge. Next returns ok=false both when
// the sequence is exhausted and when a read failed; callers must check
// Err after a false return to tell the two apart, the way bufio.Scanner
// distinguishes end-of-input from a real I/O error.
type Sequence interface {
	// Next returns the next key, or ok=false when exhausted or failed.
	Next() (key []byte, ok bool)
	// Err returns the error, if any, that caused the most recent Next to
	// return ok=false. It returns nil if the sequence is simply exhausted.
	Err() error
}

// Sink receives the deduplicated, sorted keys produced by a merge.
type Sink interface {
	Write(key []byte) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(key []byte) error

func (f SinkFunc) Write(key []byte) error { return f(key) }

type heapItem struct {
	key      []byte
	seqIndex int
}

type minHeap struct {
	items []heapItem
	cmp   Comparator
}

func (h *minHeap) Len() int { return len(h.items) }
func (h *minHeap) Less(i, j int) bool {
	return h.cmp(h.items[i].key, h.items[j].key) < 0
}
func (h *minHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *minHeap) Push(x any)    { h.items = append(h.items, x.(heapItem)) }
func (h *minHeap) Pop() any {
	n := len(h.items)
	it := h.items[n-1]
	h.items = h.items[:n-1]
	return it
}

// KWayMerge merges sequences, already individually sorted and duplicate-
// free under cmp, into out in ascending order. When dropDuplicates is
// true, keys that compare equal across sequence boundaries are collapsed
// to a single emitted copy — which source sequence supplies the survivor
// is unspecified.
func KWayMerge(cmp Comparator, sequences []Sequence, dropDuplicates bool, out Sink) error {
	h := &minHeap{cmp: cmp}
	heap.Init(h)

	for i, seq := range sequences {
		key, ok := seq.Next()
		if !ok {
			if err := seq.Err(); err != nil {
				return dederr.New(dederr.MergeFailure, "merge.KWayMerge", err)
			}
			continue
		}
		heap.Push(h, heapItem{key: key, seqIndex: i})
	}

	var (
		haveLast bool
		last     []byte
	)

	for h.Len() > 0 {
		top := heap.Pop(h).(heapItem)

		suppress := dropDuplicates && haveLast && cmp(top.key, last) == 0
		if !suppress {
			if err := out.Write(top.key); err != nil {
				return dederr.New(dederr.MergeFailure, "merge.KWayMerge", err)
			}
			last = top.key
			haveLast = true
		}

		next, ok := sequences[top.seqIndex].Next()
		if !ok {
			if err := sequences[top.seqIndex].Err(); err != nil {
				return dederr.New(dederr.MergeFailure, "merge.KWayMerge", err)
			}
			continue
		}
		heap.Push(h, heapItem{key: next, seqIndex: top.seqIndex})
	}

	return nil
}

// fileSequence reads fixed-width keys sequentially from a run's byte range
// within the scratch file.
type fileSequence struct {
	r       *bufio.Reader
	width   int
	scratch []byte
	err     error
}

func newFileSequence(r *bufio.Reader, width int) *fileSequence {
	return &fileSequence{r: r, width: width, scratch: make([]byte, width)}
}

func (s *fileSequence) Next() ([]byte, bool) {
	if _, err := io.ReadFull(s.r, s.scratch); err != nil {
		if err != io.EOF && err != io.ErrUnexpectedEOF {
			s.err = err
		}
		return nil, false
	}
	key := append([]byte(nil), s.scratch...)
	return key, true
}

func (s *fileSequence) Err() error { return s.err }

// runSequences opens one fileSequence per run descriptor in dir, reading
// from file. Callers must have flushed any pending writes first.
func runSequences(file *spillfile.File, runs []spillfile.RunDescriptor, width int) []Sequence {
	sequences := make([]Sequence, len(runs))
	for i, run := range runs {
		length := int64(run.Count * width)
		r := file.NewReader(run.Offset, length)
		sequences[i] = newFileSequence(r, width)
	}
	return sequences
}

// GroupRuns partitions n runs into left-to-right groups of at most fanIn
// runs, except the final group, which absorbs any straggler remainder so
// that no group (other than when n itself is small) ends up with fewer
// than fanIn/2 runs. The final group may therefore hold up to
// 3*fanIn/2 - 1 runs.
func GroupRuns(n, fanIn int) [][2]int {
	if n <= 0 || fanIn <= 0 {
		return nil
	}

	var groups [][2]int
	i := 0
	for i < n {
		end := i + fanIn
		if end > n {
			end = n
		}
		groups = append(groups, [2]int{i, end})
		i = end
	}

	if len(groups) >= 2 {
		last := groups[len(groups)-1]
		if lastSize := last[1] - last[0]; lastSize < fanIn/2 {
			prev := groups[len(groups)-2]
			groups = groups[:len(groups)-1]
			groups[len(groups)-1] = [2]int{prev[0], last[1]}
		}
	}

	return groups
}

// ReduceMany reduces dir to at most fanInThreshold runs by repeatedly
// merging bounded-fan-in groups of runs into one, writing each merged run
// back to file and replacing the group's descriptors with the new one.
// Groups of size 1 are left untouched — nothing is gained by rewriting a
// run that isn't being combined with anything.
func ReduceMany(file *spillfile.File, dir *spillfile.Directory, cmp Comparator, width, fanIn, fanInThreshold int) error {
	for dir.Len() > fanInThreshold {
		if err := file.FlushAndSwitchToRead(); err != nil {
			return dederr.New(dederr.MergeFailure, "merge.ReduceMany", err)
		}

		runs := dir.Runs()
		groups := GroupRuns(len(runs), fanIn)
		newRuns := make([]spillfile.RunDescriptor, 0, len(groups))

		for _, g := range groups {
			start, end := g[0], g[1]
			if end-start == 1 {
				newRuns = append(newRuns, runs[start])
				continue
			}

			group := runs[start:end]
			sequences := runSequences(file, group, width)

			count := 0
			offset := file.Tell()
			writeErr := KWayMerge(cmp, sequences, false, SinkFunc(func(key []byte) error {
				if _, err := file.Write(key); err != nil {
					return err
				}
				count++
				return nil
			}))
			if writeErr != nil {
				return dederr.New(dederr.MergeFailure, "merge.ReduceMany", writeErr)
			}

			newRuns = append(newRuns, spillfile.RunDescriptor{Offset: offset, Count: count})
		}

		dir.Reset(newRuns)
	}

	return nil
}

// FinalMerge performs the last k-way merge over dir's runs, writing
// deduplicated, sorted keys to out.
func FinalMerge(file *spillfile.File, dir *spillfile.Directory, cmp Comparator, width int, out Sink) error {
	if err := file.FlushAndSwitchToRead(); err != nil {
		return dederr.New(dederr.MergeFailure, "merge.FinalMerge", err)
	}

	sequences := runSequences(file, dir.Runs(), width)
	if err := KWayMerge(cmp, sequences, true, out); err != nil {
		return fmt.Errorf("merge.FinalMerge: %w", err)
	}
	return nil
}

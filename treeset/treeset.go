// Package treeset implements the ordered in-memory set the Deduper spills
// to disk from: a btree-backed container that tracks its own element count so
// the caller can enforce a memory ceiling measured in elements rather than
// bytes.
//
// The design mirrors wal.Writer's in-memory segment: records accumulate in
// a github.com/google/btree tree until a size threshold is hit, at which
// point the caller flushes it and starts a fresh one. Here the tree holds
// fixed-width opaque keys instead of partition.Record values, and ordering
// comes from a caller-supplied Comparator rather than a Less method.
package treeset

import (
	"github.com/google/btree"
)

// btreeDegree controls the branching factor of the underlying B-tree. 32 is
// the degree google/btree itself defaults to in its examples; it amortizes
// comparator calls well for the key widths this package expects (a handful
// of bytes up to a few hundred).
const btreeDegree = 32

// NodeOverhead estimates the per-key bookkeeping cost of the underlying
// B-tree, in bytes: the slice header for the stored key plus this
// implementation's amortized share of each node's item/child slices. A
// balanced binary tree node pays two full pointers per element;
// google/btree's wide nodes share that overhead across many keys, so this
// is deliberately conservative rather than exact — callers that need a
// precise bound should measure their own key width and adjust M.
const NodeOverhead = 48

// Comparator is a total order over opaque byte keys. Context, if any,
// should be closed over by the caller when constructing the Comparator.
type Comparator func(a, b []byte) int

// InsertResult reports what Insert did.
type InsertResult int

const (
	// Inserted means the key was new and is now present in the set.
	Inserted InsertResult = iota
	// AlreadyPresent means an equal key (per the Comparator) was already
	// present; the set's element count did not grow.
	AlreadyPresent
)

// Set is the ordered in-memory container used by the Deduper while
// accumulating keys. It is not safe for concurrent use.
type Set struct {
	tree *btree.BTreeG[[]byte]
	cmp  Comparator
}

// New constructs an empty Set ordered by cmp. capacityHint is advisory and
// currently unused by the underlying btree implementation, but kept in the
// signature so callers can size ahead if a future backing store wants it.
func New(cmp Comparator, _ int) *Set {
	less := func(a, b []byte) bool { return cmp(a, b) < 0 }
	return &Set{
		tree: btree.NewG[[]byte](btreeDegree, less),
		cmp:  cmp,
	}
}

// Insert adds key to the set, copying it so the caller's buffer may be
// reused. Returns AlreadyPresent, without growing the set, if an equal key
// (per the Comparator) is already present.
func (s *Set) Insert(key []byte) InsertResult {
	owned := append([]byte(nil), key...)
	_, existed := s.tree.ReplaceOrInsert(owned)
	if existed {
		return AlreadyPresent
	}
	return Inserted
}

// Len reports the number of keys currently held.
func (s *Set) Len() int {
	return s.tree.Len()
}

// Ascend walks the set in ascending comparator order, calling visit for
// each key. Walking stops early if visit returns false.
func (s *Set) Ascend(visit func(key []byte) bool) {
	s.tree.Ascend(func(item []byte) bool {
		return visit(item)
	})
}

// Clear empties the set. The underlying tree is discarded so its memory is
// released rather than retained for reuse across spill boundaries.
func (s *Set) Clear() {
	less := func(a, b []byte) bool { return s.cmp(a, b) < 0 }
	s.tree = btree.NewG[[]byte](btreeDegree, less)
}

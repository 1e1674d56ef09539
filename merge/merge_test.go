package merge

import (
	"bytes"
	"errors"
	"testing"

	"github.com/flowdb/rowdedup/dederr"
	"github.com/flowdb/rowdedup/spillfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func byteCmp(a, b []byte) int { return bytes.Compare(a, b) }

// listSequence is a fixed in-memory Sequence backed by a flat byte slice,
// used to drive the merge with a known, hand-checkable input.
type listSequence struct {
	keys []byte // flat, width-byte keys
	w    int
	pos  int
}

func (s *listSequence) Next() ([]byte, bool) {
	if s.pos >= len(s.keys) {
		return nil, false
	}
	k := s.keys[s.pos : s.pos+s.w]
	s.pos += s.w
	return k, true
}

func (s *listSequence) Err() error { return nil }

func seq(w int, keys ...byte) *listSequence {
	return &listSequence{keys: keys, w: w}
}

func TestKWayMerge_DropsAdjacentDuplicatesAcrossSequences(t *testing.T) {
	a := seq(1, 1, 3, 5)
	b := seq(1, 2, 3, 6)
	c := seq(1, 3, 4)

	var out [][]byte
	err := KWayMerge(byteCmp, []Sequence{a, b, c}, true, SinkFunc(func(key []byte) error {
		out = append(out, append([]byte(nil), key...))
		return nil
	}))
	require.NoError(t, err)

	var flat []byte
	for _, k := range out {
		flat = append(flat, k...)
	}
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, flat)
}

func TestKWayMerge_NoDropKeepsDuplicates(t *testing.T) {
	a := seq(1, 1, 2)
	b := seq(1, 2, 3)

	var out []byte
	err := KWayMerge(byteCmp, []Sequence{a, b}, false, SinkFunc(func(key []byte) error {
		out = append(out, key...)
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 2, 3}, out)
}

// failingSequence yields a few keys, then reports a non-EOF error rather
// than simply exhausting.
type failingSequence struct {
	keys [][]byte
	pos  int
	err  error
}

func (s *failingSequence) Next() ([]byte, bool) {
	if s.pos >= len(s.keys) {
		return nil, false
	}
	k := s.keys[s.pos]
	s.pos++
	if s.pos == len(s.keys) {
		s.err = errors.New("injected read failure")
	}
	return k, true
}

func (s *failingSequence) Err() error { return s.err }

func TestKWayMerge_PropagatesSequenceReadFailure(t *testing.T) {
	ok := seq(1, 1, 2, 3)
	bad := &failingSequence{keys: [][]byte{{4}}}

	var out []byte
	err := KWayMerge(byteCmp, []Sequence{ok, bad}, true, SinkFunc(func(key []byte) error {
		out = append(out, key...)
		return nil
	}))
	require.Error(t, err)
	assert.True(t, dederr.Is(err, dederr.MergeFailure))
}

func TestGroupRuns(t *testing.T) {
	tests := []struct {
		n, fanIn int
		want     [][2]int
	}{
		{n: 7, fanIn: 7, want: [][2]int{{0, 7}}},
		{n: 14, fanIn: 7, want: [][2]int{{0, 7}, {7, 14}}},
		// 15 runs, fanIn 7: groups of 7,7,1 -> last group (size 1) < 7/2=3,
		// absorbed into previous: 7, 8.
		{n: 15, fanIn: 7, want: [][2]int{{0, 7}, {7, 15}}},
		// 17 runs: 7,7,3 -> last size 3 == fanIn/2, stands alone.
		{n: 17, fanIn: 7, want: [][2]int{{0, 7}, {7, 14}, {14, 17}}},
	}

	for _, tt := range tests {
		got := GroupRuns(tt.n, tt.fanIn)
		assert.Equal(t, tt.want, got, "n=%d fanIn=%d", tt.n, tt.fanIn)
	}
}

func TestReduceMany_PreservesAllKeysAndShrinksRunCount(t *testing.T) {
	f, err := spillfile.Open(t.TempDir(), "reduce")
	require.NoError(t, err)
	defer f.CloseAndUnlink()

	var dir spillfile.Directory
	// 20 single-key runs: 1..20, each its own run.
	for i := byte(1); i <= 20; i++ {
		offset := f.Tell()
		_, err := f.Write([]byte{i})
		require.NoError(t, err)
		dir.Append(offset, 1)
	}

	require.NoError(t, ReduceMany(f, &dir, byteCmp, 1, 3, 5))
	assert.LessOrEqual(t, dir.Len(), 5)
	assert.Equal(t, 20, dir.SpilledCount())

	var sink []byte
	require.NoError(t, FinalMerge(f, &dir, byteCmp, 1, SinkFunc(func(key []byte) error {
		sink = append(sink, key...)
		return nil
	})))

	want := make([]byte, 20)
	for i := range want {
		want[i] = byte(i + 1)
	}
	assert.Equal(t, want, sink)
}

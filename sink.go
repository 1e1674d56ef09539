package dedup

import "io"

// Sink receives the Deduper's output. Exactly one of its two delivery
// modes is exercised per call to ExtractInto, depending on which path
// extraction takes:
//
//   - WriteBuffer is called once, on the fast path, with a heap-allocated
//     buffer of n*width bytes in sorted, unique order. The sink takes
//     ownership of buf.
//   - WriteKey is called once per output key, on the slow path, followed
//     by exactly one call to Finalize once the merge completes.
//
// A Sink implementation that only cares about one path may leave the
// other a no-op, but should not assume it won't be called — which path
// runs depends on whether the Deduper ever spilled, not on anything the
// caller controls.
type Sink interface {
	WriteBuffer(buf []byte, width int) error
	WriteKey(key []byte) error
	Finalize() error
}

// BufferSink is an in-memory Sink: on the fast path it simply retains the
// handed-over buffer, and on the slow path it appends each key into an
// internally-grown buffer, giving both paths the same flat, sorted
// representation afterward.
type BufferSink struct {
	Width int
	Buf   []byte
}

func (s *BufferSink) WriteBuffer(buf []byte, width int) error {
	s.Width = width
	s.Buf = buf
	return nil
}

func (s *BufferSink) WriteKey(key []byte) error {
	if s.Width == 0 {
		s.Width = len(key)
	}
	s.Buf = append(s.Buf, key...)
	return nil
}

func (s *BufferSink) Finalize() error { return nil }

// Len reports how many keys the sink has accumulated.
func (s *BufferSink) Len() int {
	if s.Width == 0 {
		return 0
	}
	return len(s.Buf) / s.Width
}

// Key returns the i'th key.
func (s *BufferSink) Key(i int) []byte {
	return s.Buf[i*s.Width : (i+1)*s.Width]
}

// StreamSink adapts an io.Writer into a Sink: finalize is invoked once,
// after the last key, to let the caller flush its stream and switch it
// into a read cache.
type StreamSink struct {
	w        io.Writer
	finalize func() error
}

// NewStreamSink wraps w. finalize may be nil if the caller has nothing to
// do once writing completes.
func NewStreamSink(w io.Writer, finalize func() error) *StreamSink {
	return &StreamSink{w: w, finalize: finalize}
}

func (s *StreamSink) WriteBuffer(buf []byte, _ int) error {
	_, err := s.w.Write(buf)
	return err
}

func (s *StreamSink) WriteKey(key []byte) error {
	_, err := s.w.Write(key)
	return err
}

func (s *StreamSink) Finalize() error {
	if s.finalize == nil {
		return nil
	}
	return s.finalize()
}

// sinkAdapter exposes a Sink's per-key write path as a merge.Sink.
type sinkAdapter struct {
	sink Sink
}

func (a sinkAdapter) Write(key []byte) error {
	return a.sink.WriteKey(key)
}

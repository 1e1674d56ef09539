// Package spillfile implements the Deduper's scratch file and run
// directory: the append-only file that accumulated runs are written to
// during accumulation, re-read during merge, and unlinked on destruction.
//
// The write side follows wal.Writer's segment-flush pattern (buffered
// sequential appends, tracking a running byte offset); the read side
// follows wal/reader.go's segmentReader and sstable's BufferReaderSeeker,
// both of which wrap an io.ReaderAt with io.NewSectionReader to get
// buffered, independent random-access windows into one file without a
// shared read cursor.
package spillfile

import (
	"bufio"
	"io"
	"os"
)

const (
	defaultWriteBufSize = 64 * 1024
	defaultReadBufSize  = 64 * 1024
)

// File is the append-only scratch file backing a single Deduper. Writes
// are always sequential appends during accumulation and reduction passes;
// reads are random-access, by explicit byte range, during merge.
type File struct {
	f           *os.File
	bw          *bufio.Writer
	writeOffset int64
}

// Open creates a new, uniquely-named scratch file in tmpDir with the given
// filename prefix. The file is unlinked by CloseAndUnlink.
func Open(tmpDir, prefix string) (*File, error) {
	f, err := os.CreateTemp(tmpDir, prefix+"-*.spill")
	if err != nil {
		return nil, err
	}
	return &File{
		f:  f,
		bw: bufio.NewWriterSize(f, defaultWriteBufSize),
	}, nil
}

// Tell reports the byte offset the next Write will land at.
func (f *File) Tell() int64 {
	return f.writeOffset
}

// Write appends b to the file. Writes are buffered; call
// FlushAndSwitchToRead before reading back bytes written this way.
func (f *File) Write(b []byte) (int, error) {
	n, err := f.bw.Write(b)
	f.writeOffset += int64(n)
	return n, err
}

// FlushAndSwitchToRead makes all buffered writes visible to subsequent
// reads. The file supports interleaved write and read phases: a random-
// access NewReader window never shares a cursor with the write side, so
// "switching to read mode" is exactly "flush what has been buffered so
// far" — there is no separate read cursor to rewind.
func (f *File) FlushAndSwitchToRead() error {
	return f.bw.Flush()
}

// NewReader returns a buffered, random-access reader over the byte range
// [offset, offset+length). Call FlushAndSwitchToRead first if the range
// may include bytes written but not yet flushed.
func (f *File) NewReader(offset, length int64) *bufio.Reader {
	return bufio.NewReaderSize(io.NewSectionReader(f.f, offset, length), defaultReadBufSize)
}

// CloseAndUnlink closes and removes the scratch file. Safe to call once;
// the caller must not use the File afterward.
func (f *File) CloseAndUnlink() error {
	path := f.f.Name()
	closeErr := f.f.Close()
	removeErr := os.Remove(path)
	if closeErr != nil {
		return closeErr
	}
	return removeErr
}

// RunDescriptor locates one spilled, sorted, duplicate-free run within the
// scratch file.
type RunDescriptor struct {
	Offset int64
	Count  int
}

// Directory is the ordered list of runs written so far, in write order.
// The merger makes no assumption about the runs' relative key ranges;
// Directory exists purely to let the Deduper find them again.
type Directory struct {
	runs         []RunDescriptor
	spilledCount int
}

// Append records a newly-completed run. It must only be called once the
// run's walk has finished without error — an aborted spill must not leave
// a descriptor behind.
func (d *Directory) Append(offset int64, count int) {
	d.runs = append(d.runs, RunDescriptor{Offset: offset, Count: count})
	d.spilledCount += count
}

// Runs returns the current run descriptors, in write order. The returned
// slice must not be mutated by the caller.
func (d *Directory) Runs() []RunDescriptor {
	return d.runs
}

// Len reports the number of runs currently on disk.
func (d *Directory) Len() int {
	return len(d.runs)
}

// SpilledCount is the sum of Count across all runs.
func (d *Directory) SpilledCount() int {
	return d.spilledCount
}

// Empty reports whether any spill has occurred yet. This is the
// authoritative way to ask "has accumulation ever spilled" — not a file
// byte-offset check, which would entangle the fast-path decision with the
// file's internal layout.
func (d *Directory) Empty() bool {
	return len(d.runs) == 0
}

// Reset replaces the entire run list, e.g. after a bounded fan-in
// reduction pass has collapsed the previous runs into fewer, larger ones.
// Total spilled count is unchanged by reduction, so it is recomputed from
// the new list rather than carried over, as a cheap consistency check.
func (d *Directory) Reset(runs []RunDescriptor) {
	d.runs = runs
	total := 0
	for _, r := range runs {
		total += r.Count
	}
	d.spilledCount = total
}

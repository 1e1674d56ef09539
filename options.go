package dedup

import (
	"os"

	"github.com/flowdb/rowdedup/merge"
)

// options holds all configuration for a Deduper, following the
// functional-options pattern used throughout this codebase.
type options struct {
	tempDir        string
	tempPrefix     string
	fanIn          int
	fanInThreshold int
	allocate       func(n int) ([]byte, error)
}

// Option configures a Deduper at construction time.
type Option func(*options)

// WithTempDir sets the directory the Deduper's scratch file is created
// in. Defaults to os.TempDir().
func WithTempDir(dir string) Option {
	return func(o *options) { o.tempDir = dir }
}

// WithTempPrefix sets the filename prefix used for the scratch file. Each
// concurrently-live Deduper must use a unique prefix, since they each
// create their own file in the same directory.
func WithTempPrefix(prefix string) Option {
	return func(o *options) { o.tempPrefix = prefix }
}

// WithFanIn overrides the bounded fan-in used during run reduction.
// Defaults to merge.DefaultFanIn.
func WithFanIn(fanIn int) Option {
	return func(o *options) { o.fanIn = fanIn }
}

// WithFanInThreshold overrides the run count below which reduction stops
// and the next call performs the final merge. Defaults to
// merge.DefaultFanInThreshold.
func WithFanInThreshold(threshold int) Option {
	return func(o *options) { o.fanInThreshold = threshold }
}

// WithAllocator overrides how the Deduper allocates the output buffer on
// the extraction fast path. The default allocator never fails; tests inject a failing one
// to exercise the AllocationFailure path without needing an actual
// out-of-memory condition, which Go's runtime does not surface as a
// recoverable error.
func WithAllocator(allocate func(n int) ([]byte, error)) Option {
	return func(o *options) { o.allocate = allocate }
}

func defaultOptions() options {
	return options{
		tempDir:        os.TempDir(),
		tempPrefix:     "dedup",
		fanIn:          merge.DefaultFanIn,
		fanInThreshold: merge.DefaultFanInThreshold,
		allocate:       func(n int) ([]byte, error) { return make([]byte, n), nil },
	}
}

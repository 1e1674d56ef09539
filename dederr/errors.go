// Package dederr defines the error kinds surfaced by the dedup core.
//
// The core never recovers from a failure internally; every error is
// wrapped in an *Error carrying a Kind so the calling SQL layer can branch
// on what went wrong without string-matching messages.
package dederr

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation on the dedup core failed.
type Kind int

const (
	// AllocationFailure means a tree node, output buffer, or work buffer
	// could not be allocated.
	AllocationFailure Kind = iota
	// SpillWriteFailure means an I/O error occurred while appending a run
	// or growing the run directory.
	SpillWriteFailure
	// MergeFailure means an I/O or comparator failure occurred inside
	// reduction or the final merge.
	MergeFailure
	// InvalidPhase means Put was called after extraction, or ExtractInto
	// was called twice.
	InvalidPhase
	// InvalidArgument means a construction argument was invalid (W == 0,
	// M too small to hold even one element), or a key passed to Put did
	// not have the declared width.
	InvalidArgument
)

func (k Kind) String() string {
	switch k {
	case AllocationFailure:
		return "allocation failure"
	case SpillWriteFailure:
		return "spill write failure"
	case MergeFailure:
		return "merge failure"
	case InvalidPhase:
		return "invalid phase"
	case InvalidArgument:
		return "invalid argument"
	default:
		return "unknown error"
	}
}

// Error wraps an underlying error with the Kind and the operation that
// produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("dedup: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("dedup: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an *Error for op, wrapping err under kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is a dedup *Error of the given kind.
func Is(err error, kind Kind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

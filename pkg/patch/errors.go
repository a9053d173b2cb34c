package patch

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds reported by the engine. Every failure of Apply wraps one of
// them in an *OpError carrying the index of the failing operation.
var (
	ErrInvalidOperation    = errors.New("invalid operation")
	ErrInvalidPath         = errors.New("invalid path")
	ErrIndexOutOfBounds    = errors.New("index out of bounds")
	ErrPathNotFound        = errors.New("path not found")
	ErrUnresolvedReference = errors.New("unresolved reference")
	ErrBlacklistedPath     = errors.New("blacklisted path")
	ErrTestFailed          = errors.New("patch test failed")
	ErrRejected            = errors.New("operation rejected")
	ErrTransformConflict   = errors.New("transform conflict")
	ErrRevisionMismatch    = errors.New("revision mismatch")
	ErrCommit              = errors.New("commit failed")
)

// OpError reports the operation that aborted a patch.
type OpError struct {
	Index int
	Op    Op
	Path  string
	Err   error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("operation %d (%s %s): %v", e.Index, e.Op, e.Path, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// CommitError reports a failed autosave. Documents listed in Saved were
// already persisted when the store offers no multi-document transaction.
type CommitError struct {
	Saved  []string
	Failed string
	Err    error
}

func (e *CommitError) Error() string {
	if len(e.Saved) == 0 {
		return fmt.Sprintf("commit failed at %s: %v", e.Failed, e.Err)
	}
	return fmt.Sprintf("commit failed at %s after saving %s: %v", e.Failed, strings.Join(e.Saved, ", "), e.Err)
}

func (e *CommitError) Unwrap() []error {
	return []error{ErrCommit, e.Err}
}

// Dropped is an operation of the rebased patch that lost against the other patch.
type Dropped struct {
	Index     int
	Operation Operation
	Against   Operation
}

// ConflictError lists the operations Transform dropped.
type ConflictError struct {
	Dropped []Dropped
}

func (e *ConflictError) Error() string {
	parts := make([]string, len(e.Dropped))
	for i, d := range e.Dropped {
		parts[i] = fmt.Sprintf("#%d %s %s", d.Index, d.Operation.Op, d.Operation.Path)
	}
	return fmt.Sprintf("%v: dropped %s", ErrTransformConflict, strings.Join(parts, "; "))
}

func (e *ConflictError) Unwrap() error {
	return ErrTransformConflict
}

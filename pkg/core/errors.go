package core

import "errors"

// Common errors.
var (
	ErrNotFound          = errors.New("document not found")
	ErrRevisionConflict  = errors.New("revision conflict")
	ErrReadOnly          = errors.New("store is in read-only mode")
	ErrTransactionClosed = errors.New("transaction closed")
)

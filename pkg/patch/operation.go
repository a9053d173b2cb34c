// Package patch applies RFC 6902 JSON Patch operations to graphs of stored
// documents. It resolves paths across reference fields, runs a per-operation
// middleware chain, commits the mutated documents through a core.Store, and
// can invert or rebase patches.
package patch

import (
	"encoding/json"
	"fmt"
)

// Op represents JSON Patch operation types.
type Op string

const (
	Add     Op = "add"
	Remove  Op = "remove"
	Replace Op = "replace"
	Move    Op = "move"
	Copy    Op = "copy"
	Test    Op = "test"
)

// Valid reports whether op is one of the six RFC 6902 verbs.
func (op Op) Valid() bool {
	switch op {
	case Add, Remove, Replace, Move, Copy, Test:
		return true
	}
	return false
}

// Operation represents a single JSON Patch operation.
// HasValue distinguishes an explicit null value from an absent one.
type Operation struct {
	Op       Op
	Path     string
	From     string
	Value    any
	HasValue bool
}

// Patch represents an ordered collection of JSON Patch operations.
type Patch []Operation

// AddOp builds an add operation.
func AddOp(path string, value any) Operation {
	return Operation{Op: Add, Path: path, Value: value, HasValue: true}
}

// RemoveOp builds a remove operation.
func RemoveOp(path string) Operation {
	return Operation{Op: Remove, Path: path}
}

// ReplaceOp builds a replace operation.
func ReplaceOp(path string, value any) Operation {
	return Operation{Op: Replace, Path: path, Value: value, HasValue: true}
}

// MoveOp builds a move operation.
func MoveOp(from, path string) Operation {
	return Operation{Op: Move, From: from, Path: path}
}

// CopyOp builds a copy operation.
func CopyOp(from, path string) Operation {
	return Operation{Op: Copy, From: from, Path: path}
}

// TestOp builds a test operation.
func TestOp(path string, value any) Operation {
	return Operation{Op: Test, Path: path, Value: value, HasValue: true}
}

// Validate checks the structural invariants of the operation.
func (o Operation) Validate() error {
	if !o.Op.Valid() {
		return fmt.Errorf("%w: unsupported op %q", ErrInvalidOperation, o.Op)
	}
	if _, err := ParsePointer(o.Path); err != nil {
		return err
	}
	switch o.Op {
	case Move, Copy:
		if o.From == "" {
			return fmt.Errorf("%w: %s requires from", ErrInvalidOperation, o.Op)
		}
		if _, err := ParsePointer(o.From); err != nil {
			return err
		}
	default:
		if o.From != "" {
			return fmt.Errorf("%w: %s does not accept from", ErrInvalidOperation, o.Op)
		}
	}
	switch o.Op {
	case Add, Replace, Test:
		if !o.HasValue {
			return fmt.Errorf("%w: %s requires value", ErrInvalidOperation, o.Op)
		}
	}
	return nil
}

func (o Operation) String() string {
	switch o.Op {
	case Move, Copy:
		return fmt.Sprintf("%s %s -> %s", o.Op, o.From, o.Path)
	case Remove:
		return fmt.Sprintf("%s %s", o.Op, o.Path)
	default:
		return fmt.Sprintf("%s %s = %v", o.Op, o.Path, o.Value)
	}
}

type wireOperation struct {
	Op    Op     `json:"op"`
	Path  string `json:"path"`
	From  string `json:"from,omitempty"`
	Value *any   `json:"value,omitempty"`
}

// MarshalJSON encodes the operation in RFC 6902 wire format.
func (o Operation) MarshalJSON() ([]byte, error) {
	w := wireOperation{Op: o.Op, Path: o.Path, From: o.From}
	if o.HasValue {
		v := o.Value
		w.Value = &v
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a single wire operation.
func (o *Operation) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}
	var w wireOperation
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}
	*o = Operation{Op: w.Op, Path: w.Path, From: w.From}
	if _, ok := raw["value"]; ok {
		o.HasValue = true
		if w.Value != nil {
			o.Value = *w.Value
		}
	}
	return nil
}

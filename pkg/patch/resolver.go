package patch

import (
	"fmt"

	"github.com/aretw0/patchwork/pkg/core"
)

// Mode selects the existence rules applied to the final path segment.
type Mode int

const (
	// ModeRead requires the target to exist.
	ModeRead Mode = iota
	// ModeAdd allows a missing object key and the append marker.
	ModeAdd
)

// Target is the resolved location of a pointer inside a document graph.
type Target struct {
	// Owner is the document that holds the target. It differs from the
	// root when the path crossed a reference.
	Owner *core.Document
	// Rel is the path relative to Owner.
	Rel Pointer
	// Field is Rel without array tokens, the key used for schema lookups.
	Field string

	// Parent is the container of the target: map[string]any or []any.
	Parent any
	Key    string
	Index  int
	Append bool
	Exists bool

	rebind func([]any)
}

// IsElement reports whether the target is an array slot.
func (t *Target) IsElement() bool {
	_, ok := t.Parent.([]any)
	return ok
}

// Get returns the current value at the target, nil when absent.
func (t *Target) Get() any {
	switch c := t.Parent.(type) {
	case map[string]any:
		return c[t.Key]
	case []any:
		if t.Index < len(c) {
			return c[t.Index]
		}
	}
	return nil
}

// set overwrites an object key or an existing array element.
func (t *Target) set(v any) {
	switch c := t.Parent.(type) {
	case map[string]any:
		c[t.Key] = v
		t.Exists = true
	case []any:
		c[t.Index] = v
	}
}

// insert places v at the target index, shifting later elements up.
func (t *Target) insert(v any) {
	arr := t.Parent.([]any)
	arr = append(arr, nil)
	copy(arr[t.Index+1:], arr[t.Index:])
	arr[t.Index] = v
	t.Parent = arr
	t.rebind(arr)
}

// removeElement deletes the target element, shifting later elements down.
func (t *Target) removeElement() any {
	arr := t.Parent.([]any)
	old := arr[t.Index]
	out := make([]any, 0, len(arr)-1)
	out = append(out, arr[:t.Index]...)
	out = append(out, arr[t.Index+1:]...)
	t.Parent = out
	t.rebind(out)
	return old
}

// Resolve walks ptr from root, transparently crossing resolved references.
// It never loads anything: an unresolved reference on the way fails with
// ErrUnresolvedReference.
func Resolve(root *core.Document, ptr Pointer, mode Mode) (*Target, error) {
	if len(ptr) == 0 {
		return nil, fmt.Errorf("%w: the document root cannot be patched", ErrInvalidPath)
	}

	owner := root
	var cur any = fieldsOf(owner, mode)
	var rel, field Pointer
	var rebind func([]any)

	for i, tok := range ptr[:len(ptr)-1] {
		if tok == AppendMarker {
			return nil, fmt.Errorf("%w: %q may only be the last segment of %s", ErrInvalidPath, AppendMarker, ptr)
		}

		switch c := cur.(type) {
		case map[string]any:
			child, ok := c[tok]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrPathNotFound, ptr[:i+1])
			}
			rebind = func(a []any) { c[tok] = a }
			field = append(field, tok)
			cur = child
		case []any:
			idx, err := checkIndex(tok, len(c), false, ptr[:i+1])
			if err != nil {
				return nil, err
			}
			rebind = func(a []any) { c[idx] = a }
			cur = c[idx]
		default:
			return nil, fmt.Errorf("%w: %s is not a container (%T)", ErrPathNotFound, ptr[:i], cur)
		}
		rel = append(rel, tok)

		if ref, ok := cur.(*core.Reference); ok {
			if !ref.Resolved() {
				return nil, fmt.Errorf("%w: %s (%s)", ErrUnresolvedReference, ptr[:i+1], ref)
			}
			owner = ref.Target
			cur = fieldsOf(owner, mode)
			rel, field, rebind = nil, nil, nil
		}
	}

	last := ptr.Last()
	t := &Target{Owner: owner, Parent: cur, Rel: rel.Append(last)}

	switch c := cur.(type) {
	case map[string]any:
		if last == AppendMarker {
			return nil, fmt.Errorf("%w: %q used on an object at %s", ErrInvalidPath, AppendMarker, ptr)
		}
		t.Key = last
		_, t.Exists = c[last]
		t.Field = field.Append(last).String()
		if !t.Exists && mode != ModeAdd {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, ptr)
		}
	case []any:
		t.Field = field.String()
		t.rebind = rebind
		if last == AppendMarker {
			if mode != ModeAdd {
				return nil, fmt.Errorf("%w: %q is only valid for add at %s", ErrInvalidPath, AppendMarker, ptr)
			}
			t.Append = true
			t.Index = len(c)
			return t, nil
		}
		idx, err := checkIndex(last, len(c), mode == ModeAdd, ptr)
		if err != nil {
			return nil, err
		}
		t.Index = idx
		t.Exists = idx < len(c)
	default:
		return nil, fmt.Errorf("%w: %s is not a container (%T)", ErrPathNotFound, ptr.Parent(), cur)
	}
	return t, nil
}

// fieldsOf returns the fields of doc as the root container. A nil map reads
// as empty and is only allocated on the document when adding.
func fieldsOf(doc *core.Document, mode Mode) map[string]any {
	if doc.Fields != nil {
		return doc.Fields
	}
	if mode == ModeAdd {
		doc.Fields = core.Fields{}
		return doc.Fields
	}
	return map[string]any{}
}

// checkIndex validates an array token against the array length. Adds may
// address one past the last element.
func checkIndex(tok string, length int, forAdd bool, at Pointer) (int, error) {
	if tok == AppendMarker {
		return 0, fmt.Errorf("%w: %q may only be the last segment of an add at %s", ErrInvalidPath, AppendMarker, at)
	}
	idx, ok := parseIndex(tok)
	if !ok {
		return 0, fmt.Errorf("%w: %q is not an array index at %s", ErrInvalidPath, tok, at)
	}
	limit := length - 1
	if forAdd {
		limit = length
	}
	if idx > limit {
		return 0, fmt.Errorf("%w: index %d, length %d at %s", ErrIndexOutOfBounds, idx, length, at)
	}
	return idx, nil
}

package patch

import (
	"fmt"
	"strconv"

	"github.com/aretw0/patchwork/pkg/core"
)

// Invert builds the patch undoing applied, which must have been applied to
// the document captured by snap. The inverse of each operation is computed
// against the state right before it ran, so array shifts and overwritten
// keys are restored exactly; the inverses are emitted in reverse order.
//
// Values in the inverse never carry loaded reference targets, only type
// and id.
func Invert(snap *core.Snapshot, applied Patch) (Patch, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: no snapshot to invert against", ErrInvalidOperation)
	}

	doc := snap.Document()
	x := NewExecutor(nil)
	inverses := make([]Patch, len(applied))
	for i, op := range applied {
		inv, err := invertOne(x, doc, op)
		if err != nil {
			return nil, &OpError{Index: i, Op: op.Op, Path: op.Path, Err: err}
		}
		inverses[i] = inv
	}

	var out Patch
	for i := len(inverses) - 1; i >= 0; i-- {
		out = append(out, inverses[i]...)
	}
	return out, nil
}

// invertOne applies op to doc and returns what reverts it.
func invertOne(x *Executor, doc *core.Document, op Operation) (Patch, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}
	path, _ := ParsePointer(op.Path)

	switch op.Op {
	case Test:
		return nil, nil

	case Add, Copy:
		t, err := Resolve(doc, path, ModeAdd)
		if err != nil {
			return nil, err
		}
		var inv Patch
		switch {
		case t.IsElement():
			inv = Patch{RemoveOp(path.With(strconv.Itoa(t.Index)).String())}
		case t.Exists:
			inv = Patch{ReplaceOp(op.Path, detach(t.Get()))}
		default:
			inv = Patch{RemoveOp(op.Path)}
		}
		return inv, x.Execute(doc, op)

	case Remove:
		t, err := Resolve(doc, path, ModeRead)
		if err != nil {
			return nil, err
		}
		inv := Patch{AddOp(op.Path, detach(t.Get()))}
		return inv, x.Execute(doc, op)

	case Replace:
		t, err := Resolve(doc, path, ModeRead)
		if err != nil {
			return nil, err
		}
		inv := Patch{ReplaceOp(op.Path, detach(t.Get()))}
		return inv, x.Execute(doc, op)

	case Move:
		from, _ := ParsePointer(op.From)
		if from.Equal(path) {
			return nil, nil
		}
		// an overwritten object key must be restored after moving back
		var overwritten any
		var restore bool
		if t, err := Resolve(doc, path, ModeAdd); err == nil && !t.IsElement() && t.Exists {
			overwritten, restore = detach(t.Get()), true
		}

		t, err := x.move(doc, from, path)
		if err != nil {
			return nil, err
		}
		if restore && from.HasPrefix(path) {
			// the moved value came from inside the overwritten one
			return Patch{ReplaceOp(op.Path, overwritten)}, nil
		}
		at := path
		if t.IsElement() {
			at = path.With(strconv.Itoa(t.Index))
		}
		inv := Patch{MoveOp(at.String(), op.From)}
		if restore {
			inv = append(inv, ReplaceOp(op.Path, overwritten))
		}
		return inv, nil
	}
	return nil, fmt.Errorf("%w: unsupported op %q", ErrInvalidOperation, op.Op)
}

// detach copies v, replacing every reference by an unloaded one.
func detach(v any) any {
	switch t := v.(type) {
	case *core.Reference:
		return core.Ref(t.Type, t.ID)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, el := range t {
			out[k] = detach(el)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = detach(el)
		}
		return out
	}
	return v
}

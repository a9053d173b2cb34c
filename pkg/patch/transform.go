package patch

import (
	"fmt"
	"strconv"

	"github.com/aretw0/patchwork/pkg/core"
)

// Change is a patch together with the document revision it was written against.
type Change struct {
	Base  core.Revision
	Patch Patch
}

// Transform rebases b so it can be applied after a, both having been written
// against revision base. Array indices in b are shifted past a's inserts and
// deletes; operations of b that touch what a overwrote or deleted are
// dropped, so a wins. The rebased patch is always returned; when something
// was dropped the error is a *ConflictError listing it.
//
// A numeric path token is taken to address an array element.
func Transform(base core.Revision, a, b Change) (Patch, error) {
	if a.Base != base || b.Base != base {
		return nil, fmt.Errorf("%w: transform at revision %d, changes based on %d and %d", ErrRevisionMismatch, base, a.Base, b.Base)
	}
	for i, op := range a.Patch {
		if err := op.Validate(); err != nil {
			return nil, fmt.Errorf("first change: %w", &OpError{Index: i, Op: op.Op, Path: op.Path, Err: err})
		}
	}

	var effects []effect
	var sources []Operation
	for _, op := range a.Patch {
		for _, e := range effectsOf(op) {
			effects = append(effects, e)
			sources = append(sources, op)
		}
	}

	out := make(Patch, 0, len(b.Patch))
	var dropped []Dropped

next:
	for i, op := range b.Patch {
		if err := op.Validate(); err != nil {
			return nil, &OpError{Index: i, Op: op.Op, Path: op.Path, Err: err}
		}
		path, _ := ParsePointer(op.Path)
		var from Pointer
		if op.From != "" {
			from, _ = ParsePointer(op.From)
		}

		for k, e := range effects {
			var ok bool
			if path, ok = e.rebase(path, pathAccess(op)); ok && from != nil {
				from, ok = e.rebase(from, fromAccess(op))
			}
			if !ok {
				dropped = append(dropped, Dropped{Index: i, Operation: op, Against: sources[k]})
				continue next
			}
		}

		rebased := op
		rebased.Path = path.String()
		if from != nil {
			rebased.From = from.String()
		}
		out = append(out, rebased)
	}

	if len(dropped) > 0 {
		return out, &ConflictError{Dropped: dropped}
	}
	return out, nil
}

type effectKind int

const (
	inserted effectKind = iota
	deleted
	written
)

// effect is what an operation did to its base: an array slot inserted or
// deleted at index of the array at, or the value at at overwritten.
type effect struct {
	kind  effectKind
	at    Pointer
	index int
}

func effectsOf(op Operation) []effect {
	path, _ := ParsePointer(op.Path)
	switch op.Op {
	case Add, Copy:
		return addEffect(path)
	case Remove:
		return removeEffect(path)
	case Replace:
		return []effect{{kind: written, at: path}}
	case Move:
		from, _ := ParsePointer(op.From)
		if from.Equal(path) {
			return nil
		}
		return append(removeEffect(from), addEffect(path)...)
	}
	return nil
}

func addEffect(p Pointer) []effect {
	last := p.Last()
	if last == AppendMarker {
		return nil
	}
	if i, ok := parseIndex(last); ok {
		return []effect{{kind: inserted, at: p.Parent(), index: i}}
	}
	return []effect{{kind: written, at: p}}
}

func removeEffect(p Pointer) []effect {
	if i, ok := parseIndex(p.Last()); ok {
		return []effect{{kind: deleted, at: p.Parent(), index: i}}
	}
	return []effect{{kind: written, at: p}}
}

// access is how an operation uses one of its pointers.
type access int

const (
	reads access = iota
	inserts
	writes
)

func pathAccess(op Operation) access {
	switch op.Op {
	case Test:
		return reads
	case Add, Copy, Move:
		last := MustPointer(op.Path).Last()
		if last == AppendMarker || isIndex(last) {
			return inserts
		}
	}
	return writes
}

func fromAccess(op Operation) access {
	if op.Op == Move {
		return writes
	}
	return reads
}

// rebase moves q past e. It reports false when q can no longer be applied.
func (e effect) rebase(q Pointer, how access) (Pointer, bool) {
	if e.kind == written {
		if how == reads {
			return q, true
		}
		switch {
		case q.Equal(e.at):
			return q, how == inserts
		case q.HasPrefix(e.at):
			return nil, false
		case e.at.HasPrefix(q) && how == writes:
			return nil, false
		}
		return q, true
	}

	n := len(e.at)
	if len(q) <= n {
		if how == writes && e.at.HasPrefix(q) {
			return nil, false
		}
		return q, true
	}
	if !q.HasPrefix(e.at) {
		return q, true
	}
	j, ok := parseIndex(q[n])
	if !ok || j == maxIndex {
		return q, true
	}

	if e.kind == inserted {
		if e.index <= j {
			return withIndex(q, n, j+1), true
		}
		return q, true
	}
	switch {
	case j > e.index:
		return withIndex(q, n, j-1), true
	case j == e.index:
		if how == inserts && len(q) == n+1 {
			return q, true
		}
		return nil, false
	}
	return q, true
}

func withIndex(q Pointer, at, idx int) Pointer {
	out := make(Pointer, len(q))
	copy(out, q)
	out[at] = strconv.Itoa(idx)
	return out
}

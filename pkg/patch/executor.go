package patch

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"

	"github.com/aretw0/patchwork/pkg/core"
)

// Executor performs single operations on a document graph and records every
// document it mutates or creates.
type Executor struct {
	schemas core.SchemaSource
	newID   func() string
	journal *journal
}

// NewExecutor returns an executor binding reference fields with schemas.
// schemas may be nil, in which case values are stored as given.
func NewExecutor(schemas core.SchemaSource) *Executor {
	return &Executor{
		schemas: schemas,
		newID:   uuid.NewString,
		journal: newJournal(),
	}
}

// Mutated returns the pre-existing documents changed so far, in first-touch order.
func (x *Executor) Mutated() []*core.Document {
	return x.journal.mutated()
}

// Created returns the documents instantiated by create-and-link, in creation order.
func (x *Executor) Created() []*core.Document {
	return x.journal.created
}

// Rollback restores every touched document to its state before the first
// mutation and forgets the created ones.
func (x *Executor) Rollback() {
	x.journal.rollback()
}

// Execute applies op to the graph rooted at root.
func (x *Executor) Execute(root *core.Document, op Operation) error {
	if err := op.Validate(); err != nil {
		return err
	}
	path, _ := ParsePointer(op.Path)

	switch op.Op {
	case Add:
		_, err := x.add(root, path, op.Value)
		return err
	case Remove:
		_, _, err := x.remove(root, path)
		return err
	case Replace:
		return x.replace(root, path, op.Value)
	case Move:
		from, _ := ParsePointer(op.From)
		_, err := x.move(root, from, path)
		return err
	case Copy:
		from, _ := ParsePointer(op.From)
		t, err := Resolve(root, from, ModeRead)
		if err != nil {
			return err
		}
		v, err := core.CloneValue(t.Get())
		if err != nil {
			return fmt.Errorf("failed to copy %s: %w", op.From, err)
		}
		_, err = x.add(root, path, v)
		return err
	case Test:
		t, err := Resolve(root, path, ModeRead)
		if err != nil {
			return err
		}
		return compare(t.Get(), op.Value, op.Path)
	}
	return fmt.Errorf("%w: unsupported op %q", ErrInvalidOperation, op.Op)
}

// add inserts into arrays and sets object keys, binding reference fields.
func (x *Executor) add(root *core.Document, path Pointer, value any) (*Target, error) {
	t, err := Resolve(root, path, ModeAdd)
	if err != nil {
		return nil, err
	}
	v, err := x.bind(t, value)
	if err != nil {
		return nil, err
	}
	if err := x.journal.touch(t.Owner); err != nil {
		return nil, err
	}
	if t.IsElement() {
		t.insert(v)
	} else {
		t.set(v)
	}
	return t, nil
}

// remove nulls object fields and splices array elements. It returns the
// removed value and the resolved target.
func (x *Executor) remove(root *core.Document, path Pointer) (any, *Target, error) {
	t, err := Resolve(root, path, ModeRead)
	if err != nil {
		return nil, nil, err
	}
	if err := x.journal.touch(t.Owner); err != nil {
		return nil, nil, err
	}
	if t.IsElement() {
		return t.removeElement(), t, nil
	}
	old := t.Get()
	t.set(nil)
	return old, t, nil
}

func (x *Executor) replace(root *core.Document, path Pointer, value any) error {
	t, err := Resolve(root, path, ModeRead)
	if err != nil {
		return err
	}
	v, err := x.bind(t, value)
	if err != nil {
		return err
	}
	if err := x.journal.touch(t.Owner); err != nil {
		return err
	}
	t.set(v)
	return nil
}

func (x *Executor) move(root *core.Document, from, path Pointer) (*Target, error) {
	if from.Equal(path) {
		return Resolve(root, path, ModeRead)
	}
	if path.HasPrefix(from) {
		return nil, fmt.Errorf("%w: cannot move %s into its own subtree %s", ErrInvalidPath, from, path)
	}
	v, _, err := x.remove(root, from)
	if err != nil {
		return nil, err
	}
	return x.add(root, path, v)
}

// bind copies value for storage at t and turns it into references wherever
// the owner's schema declares reference fields.
func (x *Executor) bind(t *Target, value any) (any, error) {
	v, err := core.CloneValue(value)
	if err != nil {
		return nil, fmt.Errorf("failed to copy value: %w", err)
	}
	return x.bindTree(t.Owner.Type, t.Field, t.IsElement(), v)
}

// bindTree binds the reference fields of ownerType found in v, which is
// stored at field (an element of it when element is true).
func (x *Executor) bindTree(ownerType, field string, element bool, v any) (any, error) {
	schema := x.schema(ownerType)
	if schema == nil {
		return v, nil
	}

	base := MustPointer(field)
	for _, refField := range schema.ReferenceFields() {
		refType := schema.References[refField]
		rp, err := ParsePointer(refField)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", ownerType, err)
		}
		switch {
		case rp.Equal(base):
			if element {
				return x.bindOne(refType, v)
			}
			return x.bindField(refType, v)
		case len(base) < len(rp) && rp.HasPrefix(base):
			if err := x.bindNested(refType, v, rp[len(base):]); err != nil {
				return nil, err
			}
		}
	}
	return v, nil
}

// bindNested follows rest through embedded objects below v and binds the field it names.
func (x *Executor) bindNested(refType string, v any, rest Pointer) error {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	if len(rest) == 1 {
		cur, ok := m[rest[0]]
		if !ok {
			return nil
		}
		bound, err := x.bindField(refType, cur)
		if err != nil {
			return err
		}
		m[rest[0]] = bound
		return nil
	}
	return x.bindNested(refType, m[rest[0]], rest[1:])
}

// bindField binds a whole reference field: a single reference or an array of them.
func (x *Executor) bindField(refType string, v any) (any, error) {
	arr, ok := v.([]any)
	if !ok {
		return x.bindOne(refType, v)
	}
	for i, el := range arr {
		b, err := x.bindOne(refType, el)
		if err != nil {
			return nil, err
		}
		arr[i] = b
	}
	return arr, nil
}

// bindOne turns an id into a reference and an object payload into a newly
// created, linked document.
func (x *Executor) bindOne(refType string, v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case *core.Reference:
		return t, nil
	case *core.Document:
		return core.Link(t), nil
	case string:
		return core.Ref(refType, t), nil
	case map[string]any:
		if typ, id, ok := wireRef(t); ok {
			return core.Ref(typ, id), nil
		}
		doc := core.NewDocument(refType, x.newID(), t)
		bound, err := x.bindTree(refType, "", false, doc.Fields)
		if err != nil {
			return nil, err
		}
		doc.Fields = bound.(core.Fields)
		x.journal.create(doc)
		return core.Link(doc), nil
	}
	return nil, fmt.Errorf("%w: cannot store %T in a %s reference", ErrInvalidOperation, v, refType)
}

func (x *Executor) schema(docType string) *core.Schema {
	if x.schemas == nil {
		return nil
	}
	return x.schemas.Schema(docType)
}

// wireRef recognizes the stored reference form {"$ref": type, "$id": id}.
func wireRef(m map[string]any) (string, string, bool) {
	if len(m) != 2 {
		return "", "", false
	}
	typ, ok1 := m["$ref"].(string)
	id, ok2 := m["$id"].(string)
	return typ, id, ok1 && ok2
}

// compare checks structural equality of the plain JSON renderings.
func compare(actual, expected any, path string) error {
	a, err := json.Marshal(core.Plain(actual))
	if err != nil {
		return fmt.Errorf("failed to encode value at %s: %w", path, err)
	}
	b, err := json.Marshal(core.Plain(expected))
	if err != nil {
		return fmt.Errorf("failed to encode expected value: %w", err)
	}
	if !jsonpatch.Equal(a, b) {
		return fmt.Errorf("%w: %s is %s, expected %s", ErrTestFailed, path, a, b)
	}
	return nil
}

// journal records pre-mutation field trees so a failed patch can be undone.
type journal struct {
	order     []*core.Document
	pre       map[*core.Document]core.Fields
	created   []*core.Document
	isCreated map[*core.Document]bool
}

func newJournal() *journal {
	return &journal{
		pre:       make(map[*core.Document]core.Fields),
		isCreated: make(map[*core.Document]bool),
	}
}

func (j *journal) touch(doc *core.Document) error {
	if _, ok := j.pre[doc]; ok || j.isCreated[doc] {
		return nil
	}
	fields, err := core.CloneFields(doc.Fields)
	if err != nil {
		return fmt.Errorf("failed to journal %s: %w", doc.Key(), err)
	}
	j.pre[doc] = fields
	j.order = append(j.order, doc)
	return nil
}

func (j *journal) create(doc *core.Document) {
	j.isCreated[doc] = true
	j.created = append(j.created, doc)
}

func (j *journal) mutated() []*core.Document {
	out := make([]*core.Document, len(j.order))
	copy(out, j.order)
	return out
}

func (j *journal) rollback() {
	for doc, fields := range j.pre {
		doc.Fields = fields
	}
	j.pre = make(map[*core.Document]core.Fields)
	j.order = nil
	j.created = nil
	j.isCreated = make(map[*core.Document]bool)
}

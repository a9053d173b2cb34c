package core

import (
	"reflect"
	"time"

	"github.com/huandu/go-clone"
	"github.com/mitchellh/copystructure"
)

// Snapshot is an immutable deep copy of a document graph: the root document
// and every reference target that was loaded when it was taken.
type Snapshot struct {
	Key      string
	Revision Revision
	TakenAt  time.Time

	root *Document
}

// TakeSnapshot copies doc and everything reachable from it.
// Reference cycles between loaded documents are preserved.
func TakeSnapshot(doc *Document) *Snapshot {
	return &Snapshot{
		Key:      doc.Key(),
		Revision: doc.Revision,
		TakenAt:  time.Now(),
		root:     clone.Slowly(doc).(*Document),
	}
}

// Document returns a private, mutable copy of the snapshotted graph.
func (s *Snapshot) Document() *Document {
	return clone.Slowly(s.root).(*Document)
}

// Fields returns a copy of the root field tree.
func (s *Snapshot) Fields() Fields {
	return s.Document().Fields
}

var valueCopier = copystructure.Config{
	ShallowCopiers: map[reflect.Type]struct{}{
		reflect.TypeOf((*Document)(nil)): {},
	},
}

// CloneValue deep copies a field value. Reference targets are shared, not
// copied, so the clone keeps pointing at the same loaded documents.
func CloneValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	return valueCopier.Copy(v)
}

// CloneFields deep copies a field tree with the same rules as CloneValue.
func CloneFields(f Fields) (Fields, error) {
	if f == nil {
		return nil, nil
	}
	out, err := valueCopier.Copy(f)
	if err != nil {
		return nil, err
	}
	return out.(Fields), nil
}

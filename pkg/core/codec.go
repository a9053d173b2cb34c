package core

import (
	"encoding/json"
	"fmt"
)

const (
	refTypeKey = "$ref"
	refIDKey   = "$id"
)

type documentJSON struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Revision Revision `json:"revision"`
	Fields   Fields   `json:"fields"`
}

// MarshalJSON encodes the document envelope. References are stored as
// {"$ref": type, "$id": id}; loaded targets are never embedded.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(documentJSON{ID: d.ID, Type: d.Type, Revision: d.Revision, Fields: d.Fields})
}

// UnmarshalJSON decodes the document envelope and restores references.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw documentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid document: %w", err)
	}
	d.ID, d.Type, d.Revision = raw.ID, raw.Type, raw.Revision
	d.Fields = RestoreRefs(raw.Fields)
	return nil
}

// RestoreRefs replaces encoded references ({"$ref": type, "$id": id}
// objects) in fields by *Reference values. The tree is modified in place.
func RestoreRefs(fields Fields) Fields {
	if fields == nil {
		return Fields{}
	}
	for k, el := range fields {
		fields[k] = decodeRefs(el)
	}
	return fields
}

// MarshalJSON encodes the reference without its target.
func (r *Reference) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{refTypeKey: r.Type, refIDKey: r.ID})
}

func decodeRefs(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 2 {
			typ, ok1 := t[refTypeKey].(string)
			id, ok2 := t[refIDKey].(string)
			if ok1 && ok2 {
				return Ref(typ, id)
			}
		}
		for k, el := range t {
			t[k] = decodeRefs(el)
		}
		return t
	case []any:
		for i, el := range t {
			t[i] = decodeRefs(el)
		}
		return t
	default:
		return v
	}
}

// Plain renders a field value as plain JSON data, replacing references by
// their ids. It is the representation used for structural comparison.
func Plain(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, el := range t {
			out[k] = Plain(el)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = Plain(el)
		}
		return out
	case *Reference:
		if t == nil {
			return nil
		}
		return t.ID
	case *Document:
		if t == nil {
			return nil
		}
		return Plain(t.Fields)
	default:
		return v
	}
}

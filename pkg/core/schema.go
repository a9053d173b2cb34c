package core

import (
	"sort"
	"strings"
)

// Schema describes a document type: which fields reference other documents
// and which paths may never be patched.
type Schema struct {
	Type string `yaml:"type" json:"type"`

	// References maps a field pointer (e.g. "/author", "/books") to the
	// referenced document type. A reference array is declared by its
	// field; every element is a reference.
	References map[string]string `yaml:"references" json:"references,omitempty"`

	// Blacklist holds path patterns that may never be targeted.
	Blacklist []string `yaml:"blacklist" json:"blacklist,omitempty"`
}

// ReferenceType returns the referenced type declared for the field pointer.
func (s *Schema) ReferenceType(field string) (string, bool) {
	if s == nil {
		return "", false
	}
	t, ok := s.References[field]
	return t, ok
}

// ReferenceFields returns the declared reference field pointers, sorted.
func (s *Schema) ReferenceFields() []string {
	if s == nil {
		return nil
	}
	fields := make([]string, 0, len(s.References))
	for f := range s.References {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// SchemaSource resolves the schema of a document type.
type SchemaSource interface {
	Schema(docType string) *Schema
}

// Schemas is a static SchemaSource keyed by document type.
type Schemas map[string]*Schema

// NewSchemas indexes the given schemas by type.
func NewSchemas(schemas ...*Schema) Schemas {
	out := make(Schemas, len(schemas))
	for _, s := range schemas {
		out[s.Type] = s
	}
	return out
}

// Schema returns the schema for docType, or nil when none is registered.
func (s Schemas) Schema(docType string) *Schema {
	if s == nil {
		return nil
	}
	return s[docType]
}

func splitPointer(p string) []string {
	if p == "" || p == "/" {
		return nil
	}
	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	r := strings.NewReplacer("~1", "/", "~0", "~")
	for i, part := range parts {
		parts[i] = r.Replace(part)
	}
	return parts
}

package fs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/patchwork/pkg/core"
)

// Serializer defines how to read and write a specific file format.
type Serializer interface {
	// Parse decodes a stored document envelope.
	Parse(data []byte) (*core.Document, error)
	// Serialize encodes the document envelope.
	Serialize(doc *core.Document) ([]byte, error)
	// Revision reads only the stored revision.
	Revision(data []byte) (core.Revision, error)
}

// DefaultSerializers returns the standard set of serializers keyed by extension.
func DefaultSerializers(strict bool) map[string]Serializer {
	return map[string]Serializer{
		".json": NewJSONSerializer(strict),
		".yaml": NewYAMLSerializer(),
		".yml":  NewYAMLSerializer(),
	}
}

func extensions(serializers map[string]Serializer, preferred string) []string {
	exts := make([]string, 0, len(serializers))
	for ext := range serializers {
		if ext != preferred {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	if _, ok := serializers[preferred]; ok {
		exts = append([]string{preferred}, exts...)
	}
	return exts
}

// --- JSON Serializer ---

// JSONSerializer handles reading and writing JSON files.
type JSONSerializer struct {
	// Strict enables strict number parsing (as json.Number) to avoid precision loss.
	Strict bool
}

// NewJSONSerializer creates a new JSON serializer.
func NewJSONSerializer(strict bool) *JSONSerializer {
	return &JSONSerializer{Strict: strict}
}

type envelope struct {
	ID       string         `json:"id" yaml:"id"`
	Type     string         `json:"type" yaml:"type"`
	Revision core.Revision  `json:"revision" yaml:"revision"`
	Fields   map[string]any `json:"fields" yaml:"fields"`
}

func (e envelope) document() *core.Document {
	return &core.Document{
		ID:       e.ID,
		Type:     e.Type,
		Revision: e.Revision,
		Fields:   core.RestoreRefs(e.Fields),
	}
}

func (s *JSONSerializer) Parse(data []byte) (*core.Document, error) {
	var raw envelope
	decoder := json.NewDecoder(bytes.NewReader(data))
	if s.Strict {
		decoder.UseNumber()
	}
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	return raw.document(), nil
}

func (s *JSONSerializer) Serialize(doc *core.Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Revision peeks at the revision without decoding the field tree.
func (s *JSONSerializer) Revision(data []byte) (core.Revision, error) {
	if !gjson.ValidBytes(data) {
		return 0, fmt.Errorf("invalid json")
	}
	return core.Revision(gjson.GetBytes(data, "revision").Int()), nil
}

// --- YAML Serializer ---

// YAMLSerializer handles reading and writing YAML files.
// References are written in their JSON form ({"$ref", "$id"} mappings).
type YAMLSerializer struct{}

// NewYAMLSerializer creates a new YAML serializer.
func NewYAMLSerializer() *YAMLSerializer {
	return &YAMLSerializer{}
}

func (s *YAMLSerializer) Parse(data []byte) (*core.Document, error) {
	var raw envelope
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	return raw.document(), nil
}

func (s *YAMLSerializer) Serialize(doc *core.Document) ([]byte, error) {
	// Round-trip the fields through JSON so references take their encoded form.
	fieldsJSON, err := json.Marshal(doc.Fields)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(fieldsJSON, &fields); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(envelope{ID: doc.ID, Type: doc.Type, Revision: doc.Revision, Fields: fields}); err != nil {
		return nil, fmt.Errorf("failed to encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *YAMLSerializer) Revision(data []byte) (core.Revision, error) {
	var raw struct {
		Revision core.Revision `yaml:"revision"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return 0, fmt.Errorf("invalid yaml: %w", err)
	}
	return raw.Revision, nil
}

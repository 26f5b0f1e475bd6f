package fs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/jotter/pkg/core"
)

// Serializer defines how a note is written to and read from a single file.
type Serializer interface {
	// Ext is the file extension, including the dot.
	Ext() string
	Marshal(n core.Note) ([]byte, error)
	Unmarshal(data []byte) (core.Note, error)
}

// DefaultSerializers returns the serializers a store can read, keyed by extension.
func DefaultSerializers(strict bool) map[string]Serializer {
	y := NewYAMLSerializer(strict)
	return map[string]Serializer{
		".json": NewJSONSerializer(strict),
		".yaml": y,
		".yml":  y,
	}
}

// SerializerFor resolves a format name ("json", "yaml" or "yml") or extension.
func SerializerFor(format string, strict bool) (Serializer, error) {
	ext := strings.ToLower(format)
	if ext == "" {
		ext = ".json"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	s, ok := DefaultSerializers(strict)[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported note format %q", format)
	}
	return s, nil
}

// --- JSON Serializer ---

// JSONSerializer stores one note per .json file.
type JSONSerializer struct {
	// Strict rejects unknown fields.
	Strict bool
}

// NewJSONSerializer creates a JSON serializer.
func NewJSONSerializer(strict bool) *JSONSerializer {
	return &JSONSerializer{Strict: strict}
}

func (s *JSONSerializer) Ext() string { return ".json" }

func (s *JSONSerializer) Marshal(n core.Note) ([]byte, error) {
	data, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (s *JSONSerializer) Unmarshal(data []byte) (core.Note, error) {
	var n core.Note
	decoder := json.NewDecoder(bytes.NewReader(data))
	if s.Strict {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(&n); err != nil {
		return core.Note{}, fmt.Errorf("invalid json: %w", err)
	}
	return n, nil
}

// --- YAML Serializer ---

// YAMLSerializer stores one note per .yaml file.
type YAMLSerializer struct {
	Strict bool
}

// NewYAMLSerializer creates a YAML serializer.
func NewYAMLSerializer(strict bool) *YAMLSerializer {
	return &YAMLSerializer{Strict: strict}
}

func (s *YAMLSerializer) Ext() string { return ".yaml" }

func (s *YAMLSerializer) Marshal(n core.Note) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(n); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *YAMLSerializer) Unmarshal(data []byte) (core.Note, error) {
	var n core.Note
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(s.Strict)
	if err := decoder.Decode(&n); err != nil {
		return core.Note{}, fmt.Errorf("invalid yaml: %w", err)
	}
	return n, nil
}

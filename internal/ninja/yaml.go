package ninja

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// WriteYAML writes the graph snapshot as YAML, for tooling that wants the
// structure without parsing Ninja syntax.
func (w *Writer) WriteYAML(out io.Writer) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(w.Snapshot()); err != nil {
		return fmt.Errorf("failed to encode graph as YAML: %w", err)
	}
	return enc.Close()
}

// ParseYAML reads a graph snapshot written by WriteYAML.
func ParseYAML(data []byte) (*Graph, error) {
	var g Graph
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&g); err != nil {
		return nil, fmt.Errorf("failed to decode graph YAML: %w", err)
	}
	return &g, nil
}

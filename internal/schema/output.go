package schema

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadYAML reads a schema from a YAML file.
func LoadYAML(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	s := &Schema{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validating schema: %w", err)
	}
	return s, nil
}

// WriteYAML writes the schema to a YAML file at the given path.
func (s *Schema) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling schema: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// ToYAML returns the schema as a YAML byte slice.
func (s *Schema) ToYAML() ([]byte, error) {
	return yaml.Marshal(s)
}

// Table returns the table with the given name, or nil.
func (s *Schema) Table(name string) *Table {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

// Summary returns a human-readable summary of the schema.
func (s *Schema) Summary() string {
	var totalCols, totalIdx, totalFKs, totalTriggers int
	for _, t := range s.Tables {
		totalCols += len(t.Fields)
		totalIdx += len(t.Indexes)
		totalFKs += len(t.ForeignKeys)
		totalTriggers += len(t.Triggers)
	}

	return fmt.Sprintf(
		"Found %d tables, %d columns, %d indexes, %d foreign keys, %d triggers",
		len(s.Tables), totalCols, totalIdx, totalFKs, totalTriggers,
	)
}

package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrMultiplePrimary is returned when a table declares more than one PRIMARY index.
var ErrMultiplePrimary = errors.New("table has more than one PRIMARY index")

// Validate checks the descriptor's structural invariants.
func (t *Table) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("table %s: %w", t.Name, describeValidation(err))
	}

	primaries := 0
	for _, ix := range t.Indexes {
		if ix.Kind == IndexPrimary {
			primaries++
		}
	}
	if primaries > 1 {
		return fmt.Errorf("table %s: %w", t.Name, ErrMultiplePrimary)
	}

	seen := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		key := strings.ToLower(f.Name)
		if seen[key] {
			return fmt.Errorf("table %s: duplicate field %s", t.Name, f.Name)
		}
		seen[key] = true
	}

	for _, fk := range t.ForeignKeys {
		if len(fk.Columns) != len(fk.RefColumns) {
			return fmt.Errorf("table %s: foreign key %s has %d source columns and %d target columns",
				t.Name, fk.Name, len(fk.Columns), len(fk.RefColumns))
		}
	}
	return nil
}

// Validate checks every table in the schema.
func (s *Schema) Validate() error {
	for i := range s.Tables {
		if err := s.Tables[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

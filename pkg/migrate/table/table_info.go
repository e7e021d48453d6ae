package table

import (
	"context"
	"fmt"
	"strings"

	"github.com/baderkha/table-transfer/pkg/migrate/errs"
	"github.com/hashicorp/go-multierror"
)

// Column : one column of a source table as the source engine describes it
type Column struct {
	Name       string `json:"name" db:"col_name"`
	SourceType string `json:"source_type" db:"col_type"`
	Nullable   bool   `json:"nullable" db:"is_nullable"`
	Position   int    `json:"position" db:"ordinal_position"`
	PrimaryKey bool   `json:"primary_key" db:"is_primary_key"`
}

// Schema : ordered column layout of a table plus the columns that identify a row
type Schema struct {
	Name       string   `json:"table_name" db:"table_name"`
	Columns    []Column `json:"columns"`
	KeyColumns []string `json:"key_columns"`
}

// Validate : column names are unique and positions run 0..n-1 in slice order
func (s *Schema) Validate() error {
	var result error
	if strings.TrimSpace(s.Name) == "" {
		result = multierror.Append(result, fmt.Errorf("table name is empty"))
	}
	if len(s.Columns) == 0 {
		result = multierror.Append(result, fmt.Errorf("table %s has no columns", s.Name))
	}
	seen := make(map[string]struct{}, len(s.Columns))
	for i, c := range s.Columns {
		if c.Name == "" {
			result = multierror.Append(result, fmt.Errorf("column at position %d has no name", i))
		}
		key := strings.ToLower(c.Name)
		if _, dup := seen[key]; dup {
			result = multierror.Append(result, fmt.Errorf("duplicate column %s", c.Name))
		}
		seen[key] = struct{}{}
		if c.Position != i {
			result = multierror.Append(result, fmt.Errorf("column %s has position %d, expected %d", c.Name, c.Position, i))
		}
	}
	for _, k := range s.KeyColumns {
		if s.Index(k) < 0 {
			result = multierror.Append(result, fmt.Errorf("key column %s is not a column of %s", k, s.Name))
		}
	}
	return result
}

// ColumnNames : names in ordinal order
func (s *Schema) ColumnNames() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Index : position of the named column (case insensitive), -1 when absent
func (s *Schema) Index(name string) int {
	for i, c := range s.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// DetectedKey : primary key columns in ordinal order
func (s *Schema) DetectedKey() []string {
	var out []string
	for _, c := range s.Columns {
		if c.PrimaryKey {
			out = append(out, c.Name)
		}
	}
	return out
}

// ResolveKey : picks the columns that identify a row. an override wins over the detected
// primary key and is normalized to the source spelling of each column
func (s *Schema) ResolveKey(override []string) error {
	if len(override) > 0 {
		keys := make([]string, 0, len(override))
		for _, k := range override {
			i := s.Index(k)
			if i < 0 {
				return errs.Newf(errs.SchemaConflict, "key column %s is not a column of %s", k, s.Name)
			}
			keys = append(keys, s.Columns[i].Name)
		}
		s.KeyColumns = keys
	}
	if len(s.KeyColumns) == 0 {
		s.KeyColumns = s.DetectedKey()
	}
	if len(s.KeyColumns) == 0 {
		return errs.Newf(errs.NoRowKey, "table %s has no primary key, set key_columns to give rows a stable order", s.Name)
	}
	return nil
}

// Introspector : reads the layout of a single source table
type Introspector interface {
	// Introspect : fails with errs.SourceUnavailable when the source can't be reached and
	// errs.TableNotFound when the table does not exist
	Introspect(ctx context.Context, tableName string) (*Schema, error)
}

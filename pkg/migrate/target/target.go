// package target
//
// destination side of a transfer: creating the table and upserting batches into it
package target

import (
	"context"
	"strings"

	"github.com/baderkha/table-transfer/pkg/migrate/errs"
	"github.com/baderkha/table-transfer/pkg/migrate/table"
	"github.com/baderkha/table-transfer/pkg/migrate/table/colmap"
)

// ColumnDef : a destination column
type ColumnDef struct {
	Name     string
	Type     string
	Nullable bool
}

// TableDef : destination table as it is going to be created and written
type TableDef struct {
	Name    string
	Columns []ColumnDef
	Key     []string
}

// ColumnNames : names in order
func (t *TableDef) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Binary : per column, whether the destination stores raw bytes
func (t *TableDef) Binary() []bool {
	out := make([]bool, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = colmap.IsBinary(c.Type)
	}
	return out
}

// NewTableDef : maps every source column through the type mapper. key columns are never null
func NewTableDef(s *table.Schema, mapping colmap.Type, name string) *TableDef {
	def := &TableDef{Name: name, Key: append([]string(nil), s.KeyColumns...)}
	isKey := make(map[string]bool, len(s.KeyColumns))
	for _, k := range s.KeyColumns {
		isKey[strings.ToLower(k)] = true
	}
	for _, c := range s.Columns {
		def.Columns = append(def.Columns, ColumnDef{
			Name:     c.Name,
			Type:     colmap.Convert(mapping, c.SourceType),
			Nullable: c.Nullable && !isKey[strings.ToLower(c.Name)],
		})
	}
	return def
}

// Destination : the write capability a transfer needs from the target engine
type Destination interface {
	// Driver : driver name, the right hand side of a colmap.Type
	Driver() string
	// Columns : column names of table in ordinal order, exists is false when there is no such table
	Columns(ctx context.Context, table string) (cols []string, exists bool, err error)
	// CreateSQL : create-if-absent statement for def
	CreateSQL(def *TableDef) string
	Exec(ctx context.Context, stmt string) error
	// WriteBatch : upserts rows in a single transaction, rows whose key already exists are left
	// alone. returns how many rows were inserted
	WriteBatch(ctx context.Context, def *TableDef, rows []table.Row) (int64, error)
	// Classify : Transient, Permanent or Unknown for an error returned by this destination
	Classify(err error) errs.Kind
	Count(ctx context.Context, table string) (int64, error)
	Close() error
}

func splitQualified(name string) (schema, tbl string) {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

func chunkRows(rows []table.Row, ncols, maxParams int) [][]table.Row {
	per := maxParams / max(ncols, 1)
	if per < 1 {
		per = 1
	}
	var out [][]table.Row
	for len(rows) > 0 {
		n := min(per, len(rows))
		out = append(out, rows[:n])
		rows = rows[n:]
	}
	return out
}

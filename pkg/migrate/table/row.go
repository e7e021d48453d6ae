package table

import (
	"fmt"
)

// Row : column values in schema order
type Row []any

// CheckNulls : a nil in a NOT NULL column can never be written, report it up front
func (r Row) CheckNulls(s *Schema) error {
	if len(r) != len(s.Columns) {
		return fmt.Errorf("row has %d values, table %s has %d columns", len(r), s.Name, len(s.Columns))
	}
	for i, v := range r {
		if v == nil && !s.Columns[i].Nullable {
			return fmt.Errorf("column %s is NOT NULL but value is null", s.Columns[i].Name)
		}
	}
	return nil
}

// Batch : consecutive source rows starting at offset Start. it is written in one destination
// transaction and retried as a whole
type Batch struct {
	Seq   int64
	Start int64
	Rows  []Row
}

// End : offset right after the last row of the batch
func (b *Batch) End() int64 {
	return b.Start + int64(len(b.Rows))
}

// Len : number of rows
func (b *Batch) Len() int {
	return len(b.Rows)
}

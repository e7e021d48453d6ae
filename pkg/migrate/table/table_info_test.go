package table

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/baderkha/table-transfer/pkg/migrate/errs"
	"github.com/davecgh/go-spew/spew"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"
)

func ordersSchema() *Schema {
	return &Schema{
		Name: "orders",
		Columns: []Column{
			{Name: "id", SourceType: "int(11)", Position: 0, PrimaryKey: true},
			{Name: "total", SourceType: "decimal(10,2)", Nullable: true, Position: 1},
			{Name: "note", SourceType: "varchar(255)", Nullable: true, Position: 2},
		},
		KeyColumns: []string{"id"},
	}
}

func TestSchemaValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Schema)
		wantErr bool
	}{
		{"valid", func(s *Schema) {}, false},
		{"duplicate name", func(s *Schema) { s.Columns[2].Name = "ID" }, true},
		{"gap in positions", func(s *Schema) { s.Columns[2].Position = 3 }, true},
		{"positions out of order", func(s *Schema) { s.Columns[0].Position, s.Columns[1].Position = 1, 0 }, true},
		{"unknown key", func(s *Schema) { s.KeyColumns = []string{"nope"} }, true},
		{"no columns", func(s *Schema) { s.Columns = nil; s.KeyColumns = nil }, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := ordersSchema()
			tc.mutate(s)
			err := s.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v\n%s", err, tc.wantErr, spew.Sdump(s))
			}
		})
	}
}

func TestResolveKey(t *testing.T) {
	s := ordersSchema()
	s.KeyColumns = nil
	if err := s.ResolveKey(nil); err != nil {
		t.Fatalf("ResolveKey: %v", err)
	}
	if len(s.KeyColumns) != 1 || s.KeyColumns[0] != "id" {
		t.Fatalf("expected detected key [id], got %v", s.KeyColumns)
	}

	if err := s.ResolveKey([]string{"NOTE", "Total"}); err != nil {
		t.Fatalf("ResolveKey override: %v", err)
	}
	if s.KeyColumns[0] != "note" || s.KeyColumns[1] != "total" {
		t.Fatalf("override should use source spelling, got %v", s.KeyColumns)
	}

	if err := s.ResolveKey([]string{"missing"}); !errs.Is(err, errs.SchemaConflict) {
		t.Fatalf("expected SchemaConflict, got %v", err)
	}

	keyless := ordersSchema()
	keyless.KeyColumns = nil
	keyless.Columns[0].PrimaryKey = false
	if err := keyless.ResolveKey(nil); !errs.Is(err, errs.NoRowKey) {
		t.Fatalf("expected NoRowKey, got %v", err)
	}
}

func TestRowCheckNulls(t *testing.T) {
	s := ordersSchema()
	if err := (Row{1, nil, nil}).CheckNulls(s); err != nil {
		t.Fatalf("nullable nils should pass: %v", err)
	}
	if err := (Row{nil, "1.00", "x"}).CheckNulls(s); err == nil {
		t.Fatal("nil in NOT NULL column should fail")
	}
	if err := (Row{1, "1.00"}).CheckNulls(s); err == nil {
		t.Fatal("short row should fail")
	}
}

func TestBatchEnd(t *testing.T) {
	b := &Batch{Seq: 3, Start: 1500, Rows: make([]Row, 500)}
	if b.End() != 2000 || b.Len() != 500 {
		t.Fatalf("End() = %d Len() = %d", b.End(), b.Len())
	}
}

func openSqlite(tb testing.TB) *sql.DB {
	tb.Helper()
	db, err := sql.Open("sqlite", filepath.Join(tb.TempDir(), "source.db"))
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })
	return db
}

func TestIntrospectorSqlite(t *testing.T) {
	db := openSqlite(t)
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `CREATE TABLE line_items (
		order_id INTEGER NOT NULL,
		line INTEGER NOT NULL,
		sku VARCHAR(32),
		qty INT NOT NULL,
		PRIMARY KEY (order_id, line)
	)`); err != nil {
		t.Fatalf("create: %v", err)
	}

	s, err := NewIntrospectorSqlite(db, zerolog.Nop()).Introspect(ctx, "line_items")
	if err != nil {
		t.Fatalf("Introspect: %v", err)
	}
	if got := s.ColumnNames(); len(got) != 4 || got[0] != "order_id" || got[3] != "qty" {
		t.Fatalf("unexpected columns %v", got)
	}
	if len(s.KeyColumns) != 2 || s.KeyColumns[0] != "order_id" || s.KeyColumns[1] != "line" {
		t.Fatalf("unexpected key %v", s.KeyColumns)
	}
	if s.Columns[2].SourceType != "VARCHAR(32)" || !s.Columns[2].Nullable {
		t.Fatalf("unexpected sku column %+v", s.Columns[2])
	}
	if s.Columns[3].Nullable {
		t.Fatalf("qty is NOT NULL: %+v", s.Columns[3])
	}
}

func TestIntrospectorSqliteTableNotFound(t *testing.T) {
	db := openSqlite(t)
	_, err := NewIntrospectorSqlite(db, zerolog.Nop()).Introspect(context.Background(), "ghost")
	if !errs.Is(err, errs.TableNotFound) {
		t.Fatalf("expected TableNotFound, got %v", err)
	}
}

func TestIntrospectorSqliteUnavailable(t *testing.T) {
	db := openSqlite(t)
	_ = db.Close()
	_, err := NewIntrospectorSqlite(db, zerolog.Nop()).Introspect(context.Background(), "orders")
	if !errs.Is(err, errs.SourceUnavailable) {
		t.Fatalf("expected SourceUnavailable, got %v", err)
	}
}

func TestSplitQualified(t *testing.T) {
	if db, tb := splitQualified("shop.orders"); db != "shop" || tb != "orders" {
		t.Fatalf("got %q %q", db, tb)
	}
	if db, tb := splitQualified("orders"); db != "" || tb != "orders" {
		t.Fatalf("got %q %q", db, tb)
	}
}

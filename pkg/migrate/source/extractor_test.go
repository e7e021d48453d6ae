package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/baderkha/table-transfer/pkg/migrate/errs"
	"github.com/baderkha/table-transfer/pkg/migrate/table"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"
)

func seed(tb testing.TB, n int) (*sql.DB, *table.Schema) {
	tb.Helper()
	db, err := sql.Open("sqlite", filepath.Join(tb.TempDir(), "src.db"))
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() { _ = db.Close() })
	if _, err := db.Exec(`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT, payload BLOB)`); err != nil {
		tb.Fatal(err)
	}
	// insert in reverse so storage order differs from key order
	for i := n; i >= 1; i-- {
		if _, err := db.Exec(`INSERT INTO items (id, name, payload) VALUES (?, ?, ?)`, i, fmt.Sprintf("item-%d", i), []byte{byte(i)}); err != nil {
			tb.Fatal(err)
		}
	}
	s := &table.Schema{
		Name: "items",
		Columns: []table.Column{
			{Name: "id", SourceType: "INTEGER", Position: 0, PrimaryKey: true},
			{Name: "name", SourceType: "TEXT", Nullable: true, Position: 1},
			{Name: "payload", SourceType: "BLOB", Nullable: true, Position: 2},
		},
		KeyColumns: []string{"id"},
	}
	return db, s
}

func drain(t *testing.T, e *Extractor, s *table.Schema, offset int64) ([]table.Row, error) {
	t.Helper()
	out := make(chan table.Row, 4)
	errc := make(chan error, 1)
	go func() { errc <- e.Stream(context.Background(), s, offset, out) }()
	var rows []table.Row
	for r := range out {
		rows = append(rows, r)
	}
	return rows, <-errc
}

func TestStreamOrderedFromOffset(t *testing.T) {
	db, s := seed(t, 10)
	e := NewExtractor(db, Sqlite, zerolog.Nop()).WithBinary([]bool{false, false, true})

	rows, err := drain(t, e, s, 0)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(rows) != 10 {
		t.Fatalf("got %d rows", len(rows))
	}
	for i, r := range rows {
		if r[0].(int64) != int64(i+1) {
			t.Fatalf("row %d out of order: %v", i, r)
		}
		if _, ok := r[1].(string); !ok {
			t.Fatalf("name should be a string, got %T", r[1])
		}
		if _, ok := r[2].([]byte); !ok {
			t.Fatalf("payload should stay []byte, got %T", r[2])
		}
	}

	rows, err = drain(t, e, s, 7)
	if err != nil {
		t.Fatalf("Stream from offset: %v", err)
	}
	if len(rows) != 3 || rows[0][0].(int64) != 8 {
		t.Fatalf("resume should start at id 8, got %v", rows)
	}
}

func TestStreamCanceled(t *testing.T) {
	db, s := seed(t, 50)
	e := NewExtractor(db, Sqlite, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan table.Row)
	errc := make(chan error, 1)
	go func() { errc <- e.Stream(ctx, s, 0, out) }()
	<-out
	cancel()
	for range out {
	}
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStreamReadError(t *testing.T) {
	db, s := seed(t, 1)
	s.Name = "gone"
	e := NewExtractor(db, Sqlite, zerolog.Nop())
	_, err := drain(t, e, s, 0)
	if !errs.Is(err, errs.SourceReadError) {
		t.Fatalf("expected SourceReadError, got %v", err)
	}
}

func TestSelectSQL(t *testing.T) {
	s := &table.Schema{
		Name:       "shop.orders",
		Columns:    []table.Column{{Name: "id"}, {Name: "note", Position: 1}},
		KeyColumns: []string{"id"},
	}
	e := NewExtractor(nil, Mysql, zerolog.Nop())
	if got := e.SelectSQL(s, 0); got != "SELECT `id`, `note` FROM `shop`.`orders` ORDER BY `id`" {
		t.Fatalf("unexpected %s", got)
	}
	if got := e.SelectSQL(s, 500); got != "SELECT `id`, `note` FROM `shop`.`orders` ORDER BY `id` LIMIT 18446744073709551615 OFFSET 500" {
		t.Fatalf("unexpected %s", got)
	}
}

func TestCount(t *testing.T) {
	db, s := seed(t, 7)
	n, err := NewExtractor(db, Sqlite, zerolog.Nop()).Count(context.Background(), s)
	if err != nil || n != 7 {
		t.Fatalf("Count = %d, %v", n, err)
	}
}

func TestReadLeavesOutOpen(t *testing.T) {
	db, s := seed(t, 5)
	e := NewExtractor(db, Sqlite, zerolog.Nop())
	out := make(chan table.Row, 10)
	if err := e.Read(context.Background(), s, 2, out); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := e.Read(context.Background(), s, 4, out); err != nil {
		t.Fatalf("second Read: %v", err)
	}
	close(out)
	var ids []int64
	for r := range out {
		ids = append(ids, r[0].(int64))
	}
	if len(ids) != 4 || ids[0] != 3 || ids[2] != 5 || ids[3] != 5 {
		t.Fatalf("unexpected ids %v", ids)
	}
}

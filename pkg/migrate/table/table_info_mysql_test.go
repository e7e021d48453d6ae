package table

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/baderkha/table-transfer/pkg/migrate/errs"
	"github.com/rs/zerolog"
)

var errCursorLost = errors.New("cursor lost")

// brokenCursorConn : answers every query with one "id" row and then fails the cursor
type brokenCursorConn struct{}

func (brokenCursorConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (brokenCursorConn) Close() error                        { return nil }
func (brokenCursorConn) Begin() (driver.Tx, error)           { return nil, errors.New("not supported") }

func (brokenCursorConn) QueryContext(context.Context, string, []driver.NamedValue) (driver.Rows, error) {
	return &brokenCursor{}, nil
}

type brokenCursor struct{ n int }

func (c *brokenCursor) Columns() []string { return []string{"col_name"} }
func (c *brokenCursor) Close() error      { return nil }

func (c *brokenCursor) Next(dest []driver.Value) error {
	c.n++
	switch c.n {
	case 1:
		dest[0] = "id"
		return nil
	case 2:
		return errCursorLost
	}
	return io.EOF
}

type brokenCursorConnector struct{}

func (brokenCursorConnector) Connect(context.Context) (driver.Conn, error) {
	return brokenCursorConn{}, nil
}
func (brokenCursorConnector) Driver() driver.Driver { return nil }

func TestMysqlPrimaryKeyCursorError(t *testing.T) {
	db := sql.OpenDB(brokenCursorConnector{})
	defer db.Close()
	ctx := context.Background()
	conn, err := db.Conn(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	m := NewIntrospectorMysql(db, zerolog.Nop()).(*IntrospectorMYSQL)
	keys, err := m.GetPrimaryKey(ctx, conn, "shop", "orders")
	if keys != nil || !errs.Is(err, errs.SourceUnavailable) || !errors.Is(err, errCursorLost) {
		t.Fatalf("GetPrimaryKey = %v, %v", keys, err)
	}
	if !strings.Contains(err.Error(), "read primary key of orders") {
		t.Fatalf("unexpected message %v", err)
	}
}

package target

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/baderkha/table-transfer/pkg/migrate/errs"
	"github.com/baderkha/table-transfer/pkg/migrate/table"
)

// sqlDialect : what a database/sql backed engine needs to describe itself
type sqlDialect struct {
	name      string
	maxParams int
	quote     func(string) string
	// placeholder : bind marker for the 0 based parameter i
	placeholder func(i int) string
	// columnsSQL : query returning column names of (schema, table) in order, schema may be ""
	columnsSQL func(schema, tbl string) (string, []any)
	createSQL  func(def *TableDef, fqn string) string
	// upsertSQL : statement inserting rows whose key is not present yet, values is the
	// rendered "(..), (..)" list
	upsertSQL func(def *TableDef, fqn string, values string) string
	value     func(destType string, v any) any
	classify  func(err error) errs.Kind
}

// SQLDestination : destination reached through database/sql
type SQLDestination struct {
	db *sql.DB
	d  sqlDialect
}

func (s *SQLDestination) Driver() string { return s.d.name }

func (s *SQLDestination) fqn(name string) string {
	schema, tbl := splitQualified(name)
	if schema == "" {
		return s.d.quote(tbl)
	}
	return s.d.quote(schema) + "." + s.d.quote(tbl)
}

func (s *SQLDestination) Columns(ctx context.Context, name string) ([]string, bool, error) {
	q, args := s.d.columnsSQL(splitQualified(name))
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, false, err
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return cols, len(cols) > 0, nil
}

func (s *SQLDestination) CreateSQL(def *TableDef) string {
	return s.d.createSQL(def, s.fqn(def.Name))
}

func (s *SQLDestination) Exec(ctx context.Context, stmt string) error {
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

// InsertSQL : the upsert for nrows rows
func (s *SQLDestination) InsertSQL(def *TableDef, nrows int) string {
	ncols := len(def.Columns)
	var sb strings.Builder
	for r := 0; r < nrows; r++ {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := 0; c < ncols; c++ {
			if c > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(s.d.placeholder(r*ncols + c))
		}
		sb.WriteByte(')')
	}
	return s.d.upsertSQL(def, s.fqn(def.Name), sb.String())
}

func (s *SQLDestination) WriteBatch(ctx context.Context, def *TableDef, rows []table.Row) (inserted int64, err error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, chunk := range chunkRows(rows, len(def.Columns), s.d.maxParams) {
		args := make([]any, 0, len(chunk)*len(def.Columns))
		for _, r := range chunk {
			for i, v := range r {
				if s.d.value != nil {
					v = s.d.value(def.Columns[i].Type, v)
				}
				args = append(args, v)
			}
		}
		res, err := tx.ExecContext(ctx, s.InsertSQL(def, len(chunk)), args...)
		if err != nil {
			return 0, err
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += n
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *SQLDestination) Classify(err error) errs.Kind {
	if k, ok := classifyCommon(err); ok {
		return k
	}
	if s.d.classify != nil {
		return s.d.classify(err)
	}
	return errs.Unknown
}

func (s *SQLDestination) Count(ctx context.Context, name string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.fqn(name))).Scan(&n)
	return n, err
}

func (s *SQLDestination) Close() error {
	return s.db.Close()
}

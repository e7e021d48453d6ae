// package source
//
// streams the rows of one source table in a stable order
package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/baderkha/table-transfer/pkg/migrate/errs"
	"github.com/baderkha/table-transfer/pkg/migrate/table"
	"github.com/rs/zerolog"
)

// Dialect : the bits of sql that differ between source engines
type Dialect struct {
	Name string
	// Quote : quotes a single identifier
	Quote func(ident string) string
	// NoLimit : LIMIT value meaning "all rows", engines that know OFFSET only with a LIMIT need it
	NoLimit string
}

var (
	Mysql = Dialect{
		Name:    "mysql",
		Quote:   func(s string) string { return "`" + strings.ReplaceAll(s, "`", "``") + "`" },
		NoLimit: "18446744073709551615",
	}
	Sqlite = Dialect{
		Name:    "sqlite",
		Quote:   func(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` },
		NoLimit: "-1",
	}
)

// QuoteTable : quotes a possibly qualified "db.table" name part by part
func (d Dialect) QuoteTable(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.Quote(p)
	}
	return strings.Join(parts, ".")
}

// Extractor : reads a table through one server side cursor ordered by its key columns
type Extractor struct {
	db      *sql.DB
	dialect Dialect
	binary  []bool
	log     zerolog.Logger
}

func NewExtractor(db *sql.DB, d Dialect, log zerolog.Logger) *Extractor {
	return &Extractor{
		db:      db,
		dialect: d,
		log:     log.With().Str("component", "extractor").Str("driver", d.Name).Logger(),
	}
}

// WithBinary : marks the columns whose destination stores raw bytes. []byte values of every
// other column are handed on as strings
func (e *Extractor) WithBinary(binary []bool) *Extractor {
	e.binary = binary
	return e
}

// SelectSQL : the ordered scan starting after offset rows
func (e *Extractor) SelectSQL(s *table.Schema, offset int64) string {
	cols := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = e.dialect.Quote(c.Name)
	}
	keys := make([]string, len(s.KeyColumns))
	for i, k := range s.KeyColumns {
		keys[i] = e.dialect.Quote(k)
	}
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", strings.Join(cols, ", "), e.dialect.QuoteTable(s.Name), strings.Join(keys, ", "))
	if offset > 0 {
		q += fmt.Sprintf(" LIMIT %s OFFSET %d", e.dialect.NoLimit, offset)
	}
	return q
}

// Stream : Read, closing out when done
func (e *Extractor) Stream(ctx context.Context, s *table.Schema, offset int64, out chan<- table.Row) error {
	defer close(out)
	return e.Read(ctx, s, offset, out)
}

// Read : sends every row after offset to out in key order, out is left open so a broken scan
// can be reopened into it. A blocked send is the backpressure, it gives up when ctx is done.
// Query and scan faults come back as errs.SourceReadError whose Offset is the first row that
// was not sent
func (e *Extractor) Read(ctx context.Context, s *table.Schema, offset int64, out chan<- table.Row) error {
	if len(s.KeyColumns) == 0 {
		return errs.Newf(errs.NoRowKey, "table %s has no key columns to order by", s.Name)
	}
	at := offset
	readErr := func(err error) error {
		return &errs.Error{Kind: errs.SourceReadError, Offset: at, Err: fmt.Errorf("%s : read %s : %w", strings.ToUpper(e.dialect.Name)+"_SOURCE", s.Name, err)}
	}

	query := e.SelectSQL(s, offset)
	e.log.Debug().Str("sql", query).Int64("offset", offset).Msg("starting scan")
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return readErr(err)
	}
	defer rows.Close()

	n := len(s.Columns)
	for rows.Next() {
		vals := make([]any, n)
		ptrs := make([]any, n)
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return readErr(err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok && !e.isBinary(i) {
				vals[i] = string(b)
			}
		}
		select {
		case out <- table.Row(vals):
			at++
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := rows.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return readErr(err)
	}
	e.log.Debug().Int64("rows", at-offset).Msg("scan finished")
	return nil
}

func (e *Extractor) isBinary(i int) bool {
	return i < len(e.binary) && e.binary[i]
}

// Count : rows in the source table
func (e *Extractor) Count(ctx context.Context, s *table.Schema) (int64, error) {
	var n int64
	if err := e.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+e.dialect.QuoteTable(s.Name)).Scan(&n); err != nil {
		return 0, errs.New(errs.SourceReadError, fmt.Errorf("count %s : %w", s.Name, err))
	}
	return n, nil
}

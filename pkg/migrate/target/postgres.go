package target

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/baderkha/table-transfer/pkg/migrate/errs"
	"github.com/baderkha/table-transfer/pkg/migrate/table"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// postgres caps a statement at 65535 bind parameters
const pgMaxParams = 65535

// Postgres : destination backed by a pgx pool
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Driver() string { return "postgres" }

func pgIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func pgFQN(name string) string {
	schema, tbl := splitQualified(name)
	if schema == "" {
		return pgIdent(tbl)
	}
	return pgIdent(schema) + "." + pgIdent(tbl)
}

func mapIdent(cols []string, quote func(string) string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = quote(c)
	}
	return out
}

func (p *Postgres) Columns(ctx context.Context, name string) ([]string, bool, error) {
	schema, tbl := splitQualified(name)
	rows, err := p.pool.Query(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_name = $1 AND table_schema = COALESCE(NULLIF($2, ''), current_schema())
		ORDER BY ordinal_position`, tbl, schema)
	if err != nil {
		return nil, false, err
	}
	cols, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, false, err
	}
	return cols, len(cols) > 0, nil
}

func (p *Postgres) CreateSQL(def *TableDef) string {
	return createTableSQL("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", pgFQN(def.Name), def, pgIdent, nil)
}

func (p *Postgres) Exec(ctx context.Context, stmt string) error {
	_, err := p.pool.Exec(ctx, stmt)
	return err
}

// InsertSQL : multi row insert that skips rows whose key already exists
func (p *Postgres) InsertSQL(def *TableDef, nrows int) string {
	ncols := len(def.Columns)
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", pgFQN(def.Name), strings.Join(mapIdent(def.ColumnNames(), pgIdent), ", "))
	for r := 0; r < nrows; r++ {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := 0; c < ncols; c++ {
			if c > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", r*ncols+c+1)
		}
		sb.WriteByte(')')
	}
	fmt.Fprintf(&sb, " ON CONFLICT (%s) DO NOTHING", strings.Join(mapIdent(def.Key, pgIdent), ", "))
	return sb.String()
}

func (p *Postgres) WriteBatch(ctx context.Context, def *TableDef, rows []table.Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	var inserted int64
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		for _, chunk := range chunkRows(rows, len(def.Columns), pgMaxParams) {
			args := make([]any, 0, len(chunk)*len(def.Columns))
			for _, r := range chunk {
				for i, v := range r {
					args = append(args, pgValue(def.Columns[i].Type, v))
				}
			}
			tag, err := tx.Exec(ctx, p.InsertSQL(def, len(chunk)), args...)
			if err != nil {
				return err
			}
			inserted += tag.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// pgValue : pgx encodes by the parameter type, so values the source engine typed loosely are
// brought in line with the destination column first
func pgValue(destType string, v any) any {
	switch x := v.(type) {
	case nil, string:
		return v
	case int64:
		if destType == "BOOLEAN" {
			return x != 0
		}
		if isPgText(destType) {
			return fmt.Sprint(x)
		}
	case float64:
		if isPgText(destType) {
			return fmt.Sprint(x)
		}
	case bool:
		if isPgText(destType) {
			return fmt.Sprint(x)
		}
	case time.Time:
		if isPgText(destType) {
			return x.Format(time.RFC3339Nano)
		}
	case []byte:
		if destType != "BYTEA" {
			return string(x)
		}
	}
	return v
}

func isPgText(destType string) bool {
	return destType == "TEXT" || destType == "JSONB"
}

func (p *Postgres) Classify(err error) errs.Kind {
	if k, ok := classifyCommon(err); ok {
		return k
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return sqlStateKind(pgErr.SQLState())
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return errs.Transient
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return errs.Transient
	}
	return errs.Unknown
}

func (p *Postgres) Count(ctx context.Context, name string) (int64, error) {
	var n int64
	err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+pgFQN(name)).Scan(&n)
	return n, err
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

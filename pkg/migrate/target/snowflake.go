package target

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/baderkha/table-transfer/pkg/migrate/errs"
	sf "github.com/snowflakedb/gosnowflake"
)

const snowflakeMaxParams = 16384

func sfIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

var snowflakeDialect = sqlDialect{
	name:        "snowflake",
	maxParams:   snowflakeMaxParams,
	quote:       sfIdent,
	placeholder: func(int) string { return "?" },
	columnsSQL: func(schema, tbl string) (string, []any) {
		return `SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS
			WHERE TABLE_NAME = ? AND TABLE_SCHEMA = COALESCE(NULLIF(?, ''), CURRENT_SCHEMA())
			ORDER BY ORDINAL_POSITION`, []any{tbl, schema}
	},
	createSQL: func(def *TableDef, fqn string) string {
		return createTableSQL("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", fqn, def, sfIdent, nil)
	},
	// VALUES can't be aliased with column names in snowflake, the positional column1..n are
	// renamed in a wrapping select instead
	upsertSQL: func(def *TableDef, fqn, values string) string {
		names := def.ColumnNames()
		sel := make([]string, len(names))
		srcCols := make([]string, len(names))
		for i, n := range names {
			sel[i] = fmt.Sprintf("column%d AS %s", i+1, sfIdent(n))
			srcCols[i] = "src." + sfIdent(n)
		}
		on := make([]string, len(def.Key))
		for i, k := range def.Key {
			on[i] = fmt.Sprintf("dst.%s = src.%s", sfIdent(k), sfIdent(k))
		}
		return fmt.Sprintf(
			"MERGE INTO %s AS dst USING (SELECT %s FROM VALUES %s) AS src ON %s WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s)",
			fqn, strings.Join(sel, ", "), values, strings.Join(on, " AND "),
			strings.Join(mapIdent(names, sfIdent), ", "), strings.Join(srcCols, ", "))
	},
	classify: classifySnowflake,
}

// NewSnowflake : destination writing into snowflake
func NewSnowflake(db *sql.DB) *SQLDestination {
	return &SQLDestination{db: db, d: snowflakeDialect}
}

func classifySnowflake(err error) errs.Kind {
	var e *sf.SnowflakeError
	if !errors.As(err, &e) {
		return errs.Unknown
	}
	if k := sqlStateKind(e.SQLState); k != errs.Unknown {
		return k
	}
	switch e.Number {
	case sf.ErrCodeServiceUnavailable, sf.ErrCodeFailedToConnect:
		return errs.Transient
	}
	return errs.Unknown
}

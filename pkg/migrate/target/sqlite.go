package target

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/baderkha/table-transfer/pkg/migrate/errs"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// sqlite's default SQLITE_MAX_VARIABLE_NUMBER
const sqliteMaxParams = 32766

func sqliteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

var sqliteDialect = sqlDialect{
	name:        "sqlite",
	maxParams:   sqliteMaxParams,
	quote:       sqliteIdent,
	placeholder: func(int) string { return "?" },
	columnsSQL: func(_, tbl string) (string, []any) {
		return `SELECT name FROM pragma_table_info(?) ORDER BY cid`, []any{tbl}
	},
	createSQL: func(def *TableDef, fqn string) string {
		return createTableSQL("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", fqn, def, sqliteIdent, nil)
	},
	upsertSQL: func(def *TableDef, fqn, values string) string {
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s ON CONFLICT (%s) DO NOTHING",
			fqn, strings.Join(mapIdent(def.ColumnNames(), sqliteIdent), ", "), values,
			strings.Join(mapIdent(def.Key, sqliteIdent), ", "))
	},
	classify: classifySqlite,
}

// NewSqlite : destination writing into a sqlite database
func NewSqlite(db *sql.DB) *SQLDestination {
	return &SQLDestination{db: db, d: sqliteDialect}
}

func classifySqlite(err error) errs.Kind {
	var e *sqlite.Error
	if !errors.As(err, &e) {
		return errs.Unknown
	}
	switch e.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_PROTOCOL:
		return errs.Transient
	case sqlite3.SQLITE_CONSTRAINT, sqlite3.SQLITE_MISMATCH, sqlite3.SQLITE_TOOBIG, sqlite3.SQLITE_RANGE:
		return errs.Permanent
	}
	return errs.Unknown
}

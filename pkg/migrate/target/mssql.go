package target

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/baderkha/table-transfer/pkg/migrate/errs"
	mssql "github.com/microsoft/go-mssqldb"
)

// sql server allows 2100 parameters per request, leave room for the driver
const mssqlMaxParams = 2000

func msIdent(s string) string {
	return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
}

// msKeyType : MAX types can't be part of an index
func msKeyType(t string) string {
	switch t {
	case "NVARCHAR(MAX)":
		return "NVARCHAR(450)"
	case "VARBINARY(MAX)":
		return "VARBINARY(900)"
	}
	return t
}

var mssqlDialect = sqlDialect{
	name:        "mssql",
	maxParams:   mssqlMaxParams,
	quote:       msIdent,
	placeholder: func(i int) string { return fmt.Sprintf("@p%d", i+1) },
	columnsSQL: func(schema, tbl string) (string, []any) {
		return `SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS
			WHERE TABLE_NAME = @p1 AND TABLE_SCHEMA = COALESCE(NULLIF(@p2, ''), SCHEMA_NAME())
			ORDER BY ORDINAL_POSITION`, []any{tbl, schema}
	},
	createSQL: func(def *TableDef, fqn string) string {
		guard := strings.ReplaceAll(strings.ReplaceAll(fqn, "'", "''"), "%", "%%")
		format := "IF OBJECT_ID(N'" + guard + "', N'U') IS NULL\nBEGIN\nCREATE TABLE %s (\n%s\n);\nEND"
		return createTableSQL(format, fqn, def, msIdent, msKeyType)
	},
	upsertSQL: func(def *TableDef, fqn, values string) string {
		cols := strings.Join(mapIdent(def.ColumnNames(), msIdent), ", ")
		on := make([]string, len(def.Key))
		for i, k := range def.Key {
			on[i] = fmt.Sprintf("dst.%s = src.%s", msIdent(k), msIdent(k))
		}
		return fmt.Sprintf(
			"INSERT INTO %s (%s) SELECT %s FROM (VALUES %s) AS src (%s) WHERE NOT EXISTS (SELECT 1 FROM %s AS dst WITH (UPDLOCK, HOLDLOCK) WHERE %s)",
			fqn, cols, cols, values, cols, fqn, strings.Join(on, " AND "))
	},
	classify: classifyMssql,
}

// NewMssql : destination writing into sql server
func NewMssql(db *sql.DB) *SQLDestination {
	return &SQLDestination{db: db, d: mssqlDialect}
}

func classifyMssql(err error) errs.Kind {
	var e mssql.Error
	if !errors.As(err, &e) {
		var pe *mssql.Error
		if !errors.As(err, &pe) {
			return errs.Unknown
		}
		e = *pe
	}
	switch e.Number {
	case 2627, 2601, 547, 515, 245, 8114, 241, 242, 8115, 8152, 2628:
		// key and constraint violations, conversion and truncation
		return errs.Permanent
	case 1205, -2, 40613, 40197, 40501, 49918, 49919, 49920, 4060, 233, 10053, 10054, 10060:
		// deadlock victim, timeout, azure throttling and failover, broken connections
		return errs.Transient
	}
	return errs.Unknown
}

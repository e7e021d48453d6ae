package colmap

import (
	"fmt"
	"strings"
)

// Family : engine neutral type a source rule resolves to. targets render it in their own words
type Family string

const (
	Bool      Family = "bool"
	SmallInt  Family = "smallint"
	Int       Family = "int"
	BigInt    Family = "bigint"
	Decimal   Family = "decimal"
	Real      Family = "real"
	Double    Family = "double"
	Date      Family = "date"
	Time      Family = "time"
	Timestamp Family = "timestamp"
	Text      Family = "text"
	Binary    Family = "binary"
	JSON      Family = "json"
)

// Fallback : what every unmatched source type becomes
const Fallback = Text

// target : family -> destination type. Decimal is rendered separately since it carries
// precision and scale. maxPrecision caps it, 0 means the engine takes anything
type target struct {
	name         string
	decimal      string
	maxPrecision int
	types        map[Family]string
}

var (
	postgresTarget = target{
		name:    "POSTGRES",
		decimal: "DECIMAL",
		types: map[Family]string{
			Bool:      "BOOLEAN",
			SmallInt:  "SMALLINT",
			Int:       "INTEGER",
			BigInt:    "BIGINT",
			Real:      "REAL",
			Double:    "DOUBLE PRECISION",
			Date:      "DATE",
			Time:      "TIME",
			Timestamp: "TIMESTAMP",
			Text:      "TEXT",
			Binary:    "BYTEA",
			JSON:      "JSONB",
		},
	}
	sqliteTarget = target{
		name:    "SQLITE",
		decimal: "DECIMAL",
		types: map[Family]string{
			Bool:      "BOOLEAN",
			SmallInt:  "INTEGER",
			Int:       "INTEGER",
			BigInt:    "INTEGER",
			Real:      "REAL",
			Double:    "REAL",
			Date:      "DATE",
			Time:      "TIME",
			Timestamp: "TIMESTAMP",
			Text:      "TEXT",
			Binary:    "BLOB",
			JSON:      "TEXT",
		},
	}
	mssqlTarget = target{
		name:         "MSSQL",
		decimal:      "DECIMAL",
		maxPrecision: 38,
		types: map[Family]string{
			Bool:      "BIT",
			SmallInt:  "SMALLINT",
			Int:       "INT",
			BigInt:    "BIGINT",
			Real:      "REAL",
			Double:    "FLOAT",
			Date:      "DATE",
			Time:      "TIME",
			Timestamp: "DATETIME2",
			Text:      "NVARCHAR(MAX)",
			Binary:    "VARBINARY(MAX)",
			JSON:      "NVARCHAR(MAX)",
		},
	}
	snowflakeTarget = target{
		name:         "SNOWFLAKE",
		decimal:      "NUMBER",
		maxPrecision: 38,
		types: map[Family]string{
			Bool:      "BOOLEAN",
			SmallInt:  "NUMBER",
			Int:       "NUMBER",
			BigInt:    "NUMBER",
			Real:      "FLOAT",
			Double:    "FLOAT",
			Date:      "DATE",
			Time:      "TIME",
			Timestamp: "TIMESTAMP",
			Text:      "STRING",
			Binary:    "BINARY",
			JSON:      "VARIANT",
		},
	}
	targets = map[string]target{
		postgresTarget.name:  postgresTarget,
		sqliteTarget.name:    sqliteTarget,
		mssqlTarget.name:     mssqlTarget,
		snowflakeTarget.name: snowflakeTarget,
	}
)

func (t target) render(f Family, d Descriptor) string {
	if f == Decimal {
		// wider than the engine allows, text keeps every digit
		if t.maxPrecision > 0 && len(d.Args) > 0 && d.Args[0] > t.maxPrecision {
			return t.types[Fallback]
		}
		switch len(d.Args) {
		case 1:
			return fmt.Sprintf("%s(%d)", t.decimal, d.Args[0])
		case 2:
			return fmt.Sprintf("%s(%d,%d)", t.decimal, d.Args[0], d.Args[1])
		}
		return t.decimal
	}
	if s, ok := t.types[f]; ok {
		return s
	}
	return t.types[Fallback]
}

// IsBinary : destination type stores raw bytes
func IsBinary(destType string) bool {
	up := strings.ToUpper(destType)
	for _, b := range []string{"BYTEA", "BLOB", "BINARY"} {
		if strings.Contains(up, b) {
			return true
		}
	}
	return false
}

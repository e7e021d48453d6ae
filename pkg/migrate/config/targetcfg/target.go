// package targetcfg
//
// target side connection settings
package targetcfg

import "fmt"

const (
	DriverPostgres  = "postgres"
	DriverSqlite    = "sqlite"
	DriverMssql     = "mssql"
	DriverSnowflake = "snowflake"
)

// Target : which engine to write to and how to reach it
type Target struct {
	Driver       string    `json:"driver" yaml:"driver"`
	Postgres     Postgres  `json:"postgres" yaml:"postgres"`
	SQLite       SQLite    `json:"sqlite" yaml:"sqlite"`
	MSSQL        MSSQL     `json:"mssql" yaml:"mssql"`
	Snowflake    Snowflake `json:"snowflake" yaml:"snowflake"`
	QueryLogging bool      `json:"query_log" yaml:"query_log"`
}

// GetDSN : dsn of the configured driver
func (t *Target) GetDSN() string {
	switch t.Driver {
	case DriverSqlite:
		return t.SQLite.GetDSN()
	case DriverMssql:
		return t.MSSQL.GetDSN()
	case DriverSnowflake:
		return t.Snowflake.GetDSN()
	}
	return t.Postgres.GetDSN()
}

// Validate : problems with the target block, empty when fine
func (t *Target) Validate() []error {
	switch t.Driver {
	case DriverPostgres:
		return t.Postgres.validate()
	case DriverSqlite:
		return t.SQLite.validate()
	case DriverMssql:
		return t.MSSQL.validate()
	case DriverSnowflake:
		return t.Snowflake.validate()
	}
	return []error{fmt.Errorf("target.driver %q is not supported (postgres, sqlite, mssql, snowflake)", t.Driver)}
}

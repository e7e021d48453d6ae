// package sourcecfg
//
// source side connection settings
package sourcecfg

import "fmt"

const (
	DriverMysql  = "mysql"
	DriverSqlite = "sqlite"
)

// Source : which engine to read from and how to reach it
type Source struct {
	Driver       string `json:"driver" yaml:"driver"`
	MySQL        MYSQL  `json:"mysql" yaml:"mysql"`
	SQLite       SQLite `json:"sqlite" yaml:"sqlite"`
	QueryLogging bool   `json:"query_log" yaml:"query_log"`
}

// GetDSN : dsn of the configured driver
func (s *Source) GetDSN() string {
	if s.Driver == DriverSqlite {
		return s.SQLite.GetDSN()
	}
	return s.MySQL.GetDSN()
}

// Validate : problems with the source block, empty when fine
func (s *Source) Validate() []error {
	switch s.Driver {
	case DriverMysql:
		return s.MySQL.validate()
	case DriverSqlite:
		return s.SQLite.validate()
	}
	return []error{fmt.Errorf("source.driver %q is not supported (mysql, sqlite)", s.Driver)}
}

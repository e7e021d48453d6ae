// package colmap
//
// maps columns between different database types
package colmap

import "strings"

// Type : column mapping type, one per source -> target pair
type Type string

const (
	// MysqlToPostgres : mysql -> postgres type casting
	MysqlToPostgres Type = "MYSQL_POSTGRES"
	// MysqlToSqlite : mysql -> sqlite type casting
	MysqlToSqlite Type = "MYSQL_SQLITE"
	// MysqlToMssql : mysql -> sql server type casting
	MysqlToMssql Type = "MYSQL_MSSQL"
	// MysqlToSnowflake : mysql -> snowflake type casting
	MysqlToSnowflake Type = "MYSQL_SNOWFLAKE"
	// SqliteToPostgres : sqlite -> postgres type casting
	SqliteToPostgres Type = "SQLITE_POSTGRES"
	// SqliteToSqlite : sqlite -> sqlite type casting
	SqliteToSqlite Type = "SQLITE_SQLITE"
	// SqliteToMssql : sqlite -> sql server type casting
	SqliteToMssql Type = "SQLITE_MSSQL"
	// SqliteToSnowflake : sqlite -> snowflake type casting
	SqliteToSnowflake Type = "SQLITE_SNOWFLAKE"
)

// Rule : a predicate over a parsed source type and the family it resolves to.
// Args, when set, replace the precision the source declared
type Rule struct {
	Name   string
	Match  func(d Descriptor) bool
	Family Family
	Args   []int
}

var sourceRules = map[string][]Rule{
	"MYSQL":  mysqlRules,
	"SQLITE": sqliteRules,
}

// Pair : builds the mapping type for a source and target driver name ("mysql", "postgres" ...)
func Pair(source, target string) Type {
	return Type(strings.ToUpper(source) + "_" + strings.ToUpper(target))
}

func (t Type) split() (rules []Rule, tgt target) {
	src, dst, _ := strings.Cut(string(t), "_")
	rules, ok := sourceRules[src]
	if !ok {
		rules = mysqlRules
	}
	tgt, ok = targets[dst]
	if !ok {
		tgt = postgresTarget
	}
	return rules, tgt
}

// Supported : both sides of the pair have rules
func (t Type) Supported() bool {
	src, dst, _ := strings.Cut(string(t), "_")
	_, okSrc := sourceRules[src]
	_, okDst := targets[dst]
	return okSrc && okDst
}

// Convert : converts a source column type to the target db type. It never fails,
// types no rule claims become the target's text type. Unknown pairs resolve with the
// mysql -> postgres rules
func Convert(t Type, colTypeSource string) string {
	rules, tgt := t.split()
	d := Parse(colTypeSource)
	for _, r := range rules {
		if !r.Match(d) {
			continue
		}
		if r.Args != nil {
			d.Args = r.Args
		}
		return tgt.render(r.Family, d)
	}
	return tgt.render(Fallback, d)
}

// Matches : names of every rule that claims colTypeSource. more than one is a bug in the rules
func Matches(t Type, colTypeSource string) []string {
	rules, _ := t.split()
	d := Parse(colTypeSource)
	var names []string
	for _, r := range rules {
		if r.Match(d) {
			names = append(names, r.Name)
		}
	}
	return names
}

package target

import (
	"fmt"
	"strings"
)

// createTableSQL : renders the column list and primary key of def into format, which takes the
// quoted table name and the body. keyType lets an engine narrow types it can't index
func createTableSQL(format string, fqn string, def *TableDef, quote func(string) string, keyType func(string) string) string {
	isKey := make(map[string]bool, len(def.Key))
	for _, k := range def.Key {
		isKey[strings.ToLower(k)] = true
	}
	lines := make([]string, 0, len(def.Columns)+1)
	for _, c := range def.Columns {
		typ := c.Type
		if keyType != nil && isKey[strings.ToLower(c.Name)] {
			typ = keyType(typ)
		}
		var sb strings.Builder
		sb.WriteString("  ")
		sb.WriteString(quote(c.Name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		lines = append(lines, sb.String())
	}
	if len(def.Key) > 0 {
		lines = append(lines, fmt.Sprintf("  PRIMARY KEY (%s)", strings.Join(mapIdent(def.Key, quote), ", ")))
	}
	return fmt.Sprintf(format, fqn, strings.Join(lines, ",\n"))
}

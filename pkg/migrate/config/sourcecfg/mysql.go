package sourcecfg

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// MYSQL : connection settings for a mysql source
type MYSQL struct {
	SessionVariableValues map[string]string `json:"session_vars" yaml:"session_vars"`
	Host                  string            `json:"host" yaml:"host"`
	UserName              string            `json:"user_name" yaml:"user_name"`
	Password              string            `json:"password" yaml:"password"`
	Port                  int               `json:"port" yaml:"port"`
	DB                    string            `json:"db" yaml:"db"`
}

// GetDSN : go-sql-driver dsn. session vars are passed through as system variables
func (m *MYSQL) GetDSN() string {
	keys := make([]string, 0, len(m.SessionVariableValues))
	for k := range m.SessionVariableValues {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var ses []string
	for _, k := range keys {
		ses = append(ses, k+"="+url.QueryEscape(m.SessionVariableValues[k]))
	}
	dsn := fmt.Sprintf(`%s:%s@tcp(%s:%d)/%s?parseTime=true&collation=utf8mb4_general_ci&autocommit=true`, m.UserName, m.Password, m.Host, m.Port, m.DB)
	if len(ses) > 0 {
		dsn += "&" + strings.Join(ses, "&")
	}
	return dsn
}

func (m *MYSQL) validate() []error {
	var out []error
	if m.Host == "" {
		out = append(out, fmt.Errorf("source.mysql.host is required"))
	}
	if m.UserName == "" {
		out = append(out, fmt.Errorf("source.mysql.user_name is required"))
	}
	if m.Port <= 0 {
		out = append(out, fmt.Errorf("source.mysql.port must be > 0"))
	}
	return out
}

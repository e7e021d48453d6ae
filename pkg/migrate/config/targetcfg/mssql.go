package targetcfg

import (
	"fmt"
	"net/url"
)

// MSSQL : connection settings for a sql server target
type MSSQL struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	UserName string `json:"user_name" yaml:"user_name"`
	Password string `json:"password" yaml:"password"`
	DB       string `json:"db" yaml:"db"`
	Encrypt  string `json:"encrypt" yaml:"encrypt"`
}

// GetDSN : sqlserver:// url understood by go-mssqldb
func (m *MSSQL) GetDSN() string {
	q := url.Values{}
	q.Set("database", m.DB)
	if m.Encrypt != "" {
		q.Set("encrypt", m.Encrypt)
	}
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(m.UserName, m.Password),
		Host:     fmt.Sprintf("%s:%d", m.Host, m.Port),
		RawQuery: q.Encode(),
	}
	return u.String()
}

func (m *MSSQL) validate() []error {
	var out []error
	if m.Host == "" {
		out = append(out, fmt.Errorf("target.mssql.host is required"))
	}
	if m.DB == "" {
		out = append(out, fmt.Errorf("target.mssql.db is required"))
	}
	return out
}

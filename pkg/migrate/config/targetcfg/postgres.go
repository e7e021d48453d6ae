package targetcfg

import (
	"fmt"
	"net/url"
)

// Postgres : connection settings for a postgres target
type Postgres struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	UserName string `json:"user_name" yaml:"user_name"`
	Password string `json:"password" yaml:"password"`
	DB       string `json:"db" yaml:"db"`
	Schema   string `json:"schema" yaml:"schema"`
	SSLMode  string `json:"ssl_mode" yaml:"ssl_mode"`
	MaxConns int    `json:"max_conns" yaml:"max_conns"`
}

// GetDSN : pgx url. schema becomes the search_path so unqualified names land in it
func (p *Postgres) GetDSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.UserName, p.Password),
		Host:   fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:   "/" + p.DB,
	}
	q := url.Values{}
	if p.SSLMode != "" {
		q.Set("sslmode", p.SSLMode)
	}
	if p.Schema != "" {
		q.Set("search_path", p.Schema)
	}
	if p.MaxConns > 0 {
		q.Set("pool_max_conns", fmt.Sprint(p.MaxConns))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (p *Postgres) validate() []error {
	var out []error
	if p.Host == "" {
		out = append(out, fmt.Errorf("target.postgres.host is required"))
	}
	if p.Port <= 0 {
		out = append(out, fmt.Errorf("target.postgres.port must be > 0"))
	}
	if p.DB == "" {
		out = append(out, fmt.Errorf("target.postgres.db is required"))
	}
	return out
}

package targetcfg

import "fmt"

// SQLite : a sqlite database file used as the target
type SQLite struct {
	Path string `json:"path" yaml:"path"`
}

// GetDSN : modernc dsn with a busy timeout so concurrent workers wait instead of failing
func (s *SQLite) GetDSN() string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)", s.Path)
}

func (s *SQLite) validate() []error {
	if s.Path == "" {
		return []error{fmt.Errorf("target.sqlite.path is required")}
	}
	return nil
}

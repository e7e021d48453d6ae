package sourcecfg

import "fmt"

// SQLite : a sqlite database file used as the source
type SQLite struct {
	Path string `json:"path" yaml:"path"`
}

// GetDSN : read only file uri for modernc sqlite
func (s *SQLite) GetDSN() string {
	return fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", s.Path)
}

func (s *SQLite) validate() []error {
	if s.Path == "" {
		return []error{fmt.Errorf("source.sqlite.path is required")}
	}
	return nil
}

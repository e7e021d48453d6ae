package targetcfg

import "fmt"

// Snowflake : connection settings for a snowflake target
type Snowflake struct {
	DB        string `json:"db" yaml:"db"`
	UserName  string `json:"user_name" yaml:"user_name"`
	Password  string `json:"password" yaml:"password"`
	Account   string `json:"account" yaml:"account"`
	Warehouse string `json:"ware_house" yaml:"ware_house"`
	Role      string `json:"role" yaml:"role"`
	Schema    string `json:"schema" yaml:"schema"`
}

func (s *Snowflake) GetDSN() string {
	return fmt.Sprintf("%s:%s@%s.snowflakecomputing.com/%s/%s?protocol=https&role=%s&timezone=UTC&warehouse=%s", s.UserName, s.Password, s.Account, s.DB, s.Schema, s.Role, s.Warehouse)
}

func (s *Snowflake) validate() []error {
	var out []error
	if s.Account == "" {
		out = append(out, fmt.Errorf("target.snowflake.account is required"))
	}
	if s.DB == "" || s.Schema == "" {
		out = append(out, fmt.Errorf("target.snowflake.db and target.snowflake.schema are required"))
	}
	return out
}

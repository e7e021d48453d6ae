package config

import (
	"strings"
	"testing"

	"github.com/baderkha/table-transfer/pkg/migrate/config/sourcecfg"
	"github.com/baderkha/table-transfer/pkg/migrate/config/targetcfg"
	"github.com/baderkha/table-transfer/pkg/migrate/errs"
	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/afero"
)

const jobJSON = `{
	"max_concurrency": 3,
	"max_batch_record_size": 500,
	"table": {"source": "orders"},
	"source": {"driver": "mysql", "mysql": {"host": "db", "user_name": "app", "password": "${TT_TEST_PASSWORD}", "port": 3306, "db": "shop"}},
	"target": {"driver": "postgres", "postgres": {"host": "pg", "port": 5432, "user_name": "app", "db": "warehouse"}}
}`

const jobYAML = `
max_concurrency: 2
table:
  source: orders
  destination: orders_copy
  key_columns: [id]
on_row_error: skip
source:
  driver: sqlite
  sqlite:
    path: /tmp/source.db
target:
  driver: sqlite
  sqlite:
    path: /tmp/dest.db
state:
  driver: file
`

func TestLoadJSON(t *testing.T) {
	t.Setenv("TT_TEST_PASSWORD", "s3cret")
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "job.json", []byte(jobJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(fs, "job.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v\n%s", err, spew.Sdump(cfg))
	}
	if cfg.SourceConfig.MySQL.Password != "s3cret" {
		t.Fatalf("env not expanded: %q", cfg.SourceConfig.MySQL.Password)
	}
	if cfg.QueueDepth != 6 || cfg.Retry.MaxAttempts != 5 || cfg.OnRowError != OnRowErrorAbort {
		t.Fatalf("defaults not applied\n%s", spew.Sdump(cfg))
	}
	if cfg.DestinationTable() != "orders" {
		t.Fatalf("destination should default to the source table, got %q", cfg.DestinationTable())
	}
	if !strings.Contains(cfg.SourceConfig.GetDSN(), "app:s3cret@tcp(db:3306)/shop?parseTime=true") {
		t.Fatalf("unexpected dsn %s", cfg.SourceConfig.GetDSN())
	}
}

func TestLoadYAML(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "job.yaml", []byte(jobYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(fs, "job.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.DestinationTable() != "orders_copy" || cfg.Table.KeyColumns[0] != "id" {
		t.Fatalf("unexpected table block %+v", cfg.Table)
	}
	if cfg.SourceConfig.Driver != sourcecfg.DriverSqlite || cfg.Target.Driver != targetcfg.DriverSqlite {
		t.Fatalf("unexpected drivers %s %s", cfg.SourceConfig.Driver, cfg.Target.Driver)
	}
	if cfg.State.Path != "./checkpoints" {
		t.Fatalf("file state should default to a directory, got %q", cfg.State.Path)
	}
}

func TestLoadUnknownField(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "job.json", []byte(`{"max_concurency": 3}`), 0o644)
	if _, err := Load(fs, "job.json"); !errs.Is(err, errs.Config) {
		t.Fatalf("expected Config error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(afero.NewMemMapFs(), "nope.json"); !errs.Is(err, errs.Config) {
		t.Fatalf("expected Config error, got %v", err)
	}
}

func TestValidateCollectsEverything(t *testing.T) {
	cfg := &Config{}
	cfg.Defaults()
	cfg.OnRowError = "explode"
	cfg.State.Driver = StateS3
	cfg.Metrics.Backend = MetricsPrompush
	err := cfg.Validate()
	if !errs.Is(err, errs.Config) {
		t.Fatalf("expected Config error, got %v", err)
	}
	for _, want := range []string{"table.source", "on_row_error", "state.s3.bucket", "pushgateway_url", "source.mysql.host", "target.postgres.host"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %q in %v", want, err)
		}
	}
}

func TestTargetDSN(t *testing.T) {
	tests := []struct {
		target targetcfg.Target
		want   string
	}{
		{targetcfg.Target{Driver: targetcfg.DriverPostgres, Postgres: targetcfg.Postgres{Host: "pg", Port: 5432, UserName: "u", Password: "p", DB: "w", Schema: "raw"}}, "postgres://u:p@pg:5432/w?search_path=raw"},
		{targetcfg.Target{Driver: targetcfg.DriverMssql, MSSQL: targetcfg.MSSQL{Host: "ms", Port: 1433, UserName: "sa", Password: "p", DB: "w"}}, "sqlserver://sa:p@ms:1433?database=w"},
		{targetcfg.Target{Driver: targetcfg.DriverSnowflake, Snowflake: targetcfg.Snowflake{UserName: "u", Password: "p", Account: "acc", DB: "d", Schema: "s", Role: "r", Warehouse: "wh"}}, "u:p@acc.snowflakecomputing.com/d/s?protocol=https&role=r&timezone=UTC&warehouse=wh"},
	}
	for _, tc := range tests {
		if got := tc.target.GetDSN(); got != tc.want {
			t.Errorf("%s: got %s want %s", tc.target.Driver, got, tc.want)
		}
	}
}

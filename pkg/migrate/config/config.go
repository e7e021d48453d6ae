package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/baderkha/table-transfer/pkg/conditional"
	"github.com/baderkha/table-transfer/pkg/migrate/config/sourcecfg"
	"github.com/baderkha/table-transfer/pkg/migrate/config/targetcfg"
	"github.com/baderkha/table-transfer/pkg/migrate/errs"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	// OnRowErrorAbort : a rejected row fails the run
	OnRowErrorAbort = "abort"
	// OnRowErrorSkip : rejected rows go to the reject sink and the run continues
	OnRowErrorSkip = "skip"

	StateSqlite = "sqlite"
	StateFile   = "file"
	StateS3     = "s3"

	MetricsNone     = "none"
	MetricsPrompush = "prompush"
	MetricsDatadog  = "datadog"
)

// Table : which table to move and where
type Table struct {
	Source      string   `json:"source" yaml:"source"`
	Destination string   `json:"destination" yaml:"destination"`
	KeyColumns  []string `json:"key_columns" yaml:"key_columns"`
}

// Retry : exponential backoff for transient write failures
type Retry struct {
	MaxAttempts      int     `json:"max_attempts" yaml:"max_attempts"`
	InitialBackoffMS int     `json:"initial_backoff_ms" yaml:"initial_backoff_ms"`
	MaxBackoffMS     int     `json:"max_backoff_ms" yaml:"max_backoff_ms"`
	Multiplier       float64 `json:"multiplier" yaml:"multiplier"`
}

func (r Retry) InitialBackoff() time.Duration {
	return time.Duration(r.InitialBackoffMS) * time.Millisecond
}

func (r Retry) MaxBackoff() time.Duration { return time.Duration(r.MaxBackoffMS) * time.Millisecond }

// S3 : bucket used by the s3 checkpoint store
type S3 struct {
	Bucket string `json:"bucket" yaml:"bucket"`
	Prefix string `json:"prefix" yaml:"prefix"`
	Region string `json:"region" yaml:"region"`
}

// State : where checkpoints and the run log live
type State struct {
	Driver string `json:"driver" yaml:"driver"`
	Path   string `json:"path" yaml:"path"`
	S3     S3     `json:"s3" yaml:"s3"`
}

// Log : process logger settings
type Log struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Metrics : optional metrics backend
type Metrics struct {
	Backend        string   `json:"backend" yaml:"backend"`
	Job            string   `json:"job" yaml:"job"`
	PushgatewayURL string   `json:"pushgateway_url" yaml:"pushgateway_url"`
	DatadogAddr    string   `json:"datadog_addr" yaml:"datadog_addr"`
	DatadogTags    []string `json:"datadog_tags" yaml:"datadog_tags"`
}

// Config : configuration for the job
type Config struct {
	MaxConcurrency  int              `json:"max_concurrency" yaml:"max_concurrency"`
	BatchRecordSize int              `json:"max_batch_record_size" yaml:"max_batch_record_size"`
	QueueDepth      int              `json:"queue_depth" yaml:"queue_depth"`
	MaxBatchWaitMS  int              `json:"max_batch_wait_ms" yaml:"max_batch_wait_ms"`
	ShutdownGraceMS int              `json:"shutdown_grace_ms" yaml:"shutdown_grace_ms"`
	OnRowError      string           `json:"on_row_error" yaml:"on_row_error"`
	Fresh           bool             `json:"fresh" yaml:"fresh"`
	Verify          bool             `json:"verify" yaml:"verify"`
	RejectsDir      string           `json:"rejects_dir" yaml:"rejects_dir"`
	Table           Table            `json:"table" yaml:"table"`
	Retry           Retry            `json:"retry" yaml:"retry"`
	State           State            `json:"state" yaml:"state"`
	Log             Log              `json:"log" yaml:"log"`
	Metrics         Metrics          `json:"metrics" yaml:"metrics"`
	SourceConfig    sourcecfg.Source `json:"source" yaml:"source"`
	Target          targetcfg.Target `json:"target" yaml:"target"`
}

func (c *Config) MaxBatchWait() time.Duration {
	return time.Duration(c.MaxBatchWaitMS) * time.Millisecond
}

func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceMS) * time.Millisecond
}

// DestinationTable : the destination name, the source name when unset
func (c *Config) DestinationTable() string {
	return conditional.Coalesce(c.Table.Destination, c.Table.Source)
}

// Load : reads a json or yaml job file (by extension). ${VARS} are expanded from the
// environment before decoding so secrets never need to live in the file
func Load(fs afero.Fs, path string) (*Config, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errs.New(errs.Config, fmt.Errorf("read job file %s : %w", path, err))
	}
	cfg, err := Decode(b, filepath.Ext(path))
	if err != nil {
		return nil, errs.New(errs.Config, fmt.Errorf("job file %s : %w", path, err))
	}
	return cfg, nil
}

// Decode : decodes raw job bytes, ext picks the format (".yaml"/".yml" or json)
func Decode(raw []byte, ext string) (*Config, error) {
	var cfg Config
	expanded := []byte(os.ExpandEnv(string(raw)))
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(expanded))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode yaml : %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(expanded))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode json : %w", err)
		}
	}
	cfg.Defaults()
	return &cfg, nil
}

// Defaults : fills zero values
func (c *Config) Defaults() {
	c.MaxConcurrency = conditional.Ternary(c.MaxConcurrency > 0, c.MaxConcurrency, 4)
	c.BatchRecordSize = conditional.Ternary(c.BatchRecordSize > 0, c.BatchRecordSize, 1000)
	c.QueueDepth = conditional.Ternary(c.QueueDepth > 0, c.QueueDepth, 2*c.MaxConcurrency)
	c.MaxBatchWaitMS = conditional.Ternary(c.MaxBatchWaitMS > 0, c.MaxBatchWaitMS, 2000)
	c.ShutdownGraceMS = conditional.Ternary(c.ShutdownGraceMS > 0, c.ShutdownGraceMS, 30000)
	c.OnRowError = conditional.Coalesce(strings.ToLower(c.OnRowError), OnRowErrorAbort)
	c.RejectsDir = conditional.Coalesce(c.RejectsDir, "./rejects")

	c.Retry.MaxAttempts = conditional.Ternary(c.Retry.MaxAttempts > 0, c.Retry.MaxAttempts, 5)
	c.Retry.InitialBackoffMS = conditional.Ternary(c.Retry.InitialBackoffMS > 0, c.Retry.InitialBackoffMS, 200)
	c.Retry.MaxBackoffMS = conditional.Ternary(c.Retry.MaxBackoffMS > 0, c.Retry.MaxBackoffMS, 10000)
	c.Retry.Multiplier = conditional.Ternary(c.Retry.Multiplier >= 1, c.Retry.Multiplier, 2)

	c.State.Driver = conditional.Coalesce(strings.ToLower(c.State.Driver), StateSqlite)
	c.State.Path = conditional.Coalesce(c.State.Path, conditional.Ternary(c.State.Driver == StateFile, "./checkpoints", "./transfer_state.sqlite"))

	c.Log.Level = conditional.Coalesce(c.Log.Level, "info")
	c.Log.Format = conditional.Coalesce(c.Log.Format, "console")

	c.Metrics.Backend = conditional.Coalesce(strings.ToLower(c.Metrics.Backend), MetricsNone)
	c.Metrics.Job = conditional.Coalesce(c.Metrics.Job, "table_transfer")

	c.SourceConfig.Driver = conditional.Coalesce(strings.ToLower(c.SourceConfig.Driver), sourcecfg.DriverMysql)
	c.Target.Driver = conditional.Coalesce(strings.ToLower(c.Target.Driver), targetcfg.DriverPostgres)
}

// Validate : every problem with the config at once
func (c *Config) Validate() error {
	var finalErr error
	add := func(err error) { finalErr = multierror.Append(finalErr, err) }

	if strings.TrimSpace(c.Table.Source) == "" {
		add(fmt.Errorf("table.source is required"))
	}
	if c.BatchRecordSize <= 0 {
		add(fmt.Errorf("max_batch_record_size must be > 0"))
	}
	if c.MaxConcurrency <= 0 {
		add(fmt.Errorf("max_concurrency must be > 0"))
	}
	if c.QueueDepth <= 0 {
		add(fmt.Errorf("queue_depth must be > 0"))
	}
	if c.Retry.MaxAttempts <= 0 {
		add(fmt.Errorf("retry.max_attempts must be > 0"))
	}
	if c.Retry.MaxBackoffMS < c.Retry.InitialBackoffMS {
		add(fmt.Errorf("retry.max_backoff_ms must be >= retry.initial_backoff_ms"))
	}
	if c.OnRowError != OnRowErrorAbort && c.OnRowError != OnRowErrorSkip {
		add(fmt.Errorf("on_row_error %q must be abort or skip", c.OnRowError))
	}
	switch c.State.Driver {
	case StateSqlite, StateFile:
	case StateS3:
		if c.State.S3.Bucket == "" {
			add(fmt.Errorf("state.s3.bucket is required for the s3 state driver"))
		}
	default:
		add(fmt.Errorf("state.driver %q must be sqlite, file or s3", c.State.Driver))
	}
	switch c.Metrics.Backend {
	case MetricsNone:
	case MetricsPrompush:
		if c.Metrics.PushgatewayURL == "" {
			add(fmt.Errorf("metrics.pushgateway_url is required for prompush"))
		}
	case MetricsDatadog:
		if c.Metrics.DatadogAddr == "" {
			add(fmt.Errorf("metrics.datadog_addr is required for datadog"))
		}
	default:
		add(fmt.Errorf("metrics.backend %q must be none, prompush or datadog", c.Metrics.Backend))
	}
	for _, err := range c.SourceConfig.Validate() {
		add(err)
	}
	for _, err := range c.Target.Validate() {
		add(err)
	}
	if finalErr != nil {
		return errs.New(errs.Config, finalErr)
	}
	return nil
}

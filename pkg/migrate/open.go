package migrate

import (
	"context"
	"database/sql"

	"github.com/baderkha/table-transfer/pkg/migrate/config"
	"github.com/baderkha/table-transfer/pkg/migrate/config/sourcecfg"
	"github.com/baderkha/table-transfer/pkg/migrate/connection"
	"github.com/baderkha/table-transfer/pkg/migrate/errs"
	"github.com/baderkha/table-transfer/pkg/migrate/metrics"
	"github.com/baderkha/table-transfer/pkg/migrate/metrics/datadog"
	"github.com/baderkha/table-transfer/pkg/migrate/metrics/prompush"
	"github.com/baderkha/table-transfer/pkg/migrate/source"
	"github.com/baderkha/table-transfer/pkg/migrate/state"
	"github.com/baderkha/table-transfer/pkg/migrate/table"
	"github.com/baderkha/table-transfer/pkg/migrate/target"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// sourceConns : introspection plus one streaming cursor
const sourceConns = 2

// Open : dials source, destination and state store for cfg. whatever was opened before a
// failure is closed again
func Open(ctx context.Context, cfg *config.Config, fs afero.Fs, log zerolog.Logger) (*TableMigrator, error) {
	db, intro, dialect, err := dialSource(ctx, &cfg.SourceConfig, log)
	if err != nil {
		return nil, err
	}
	dest, err := target.Open(ctx, &cfg.Target, cfg.MaxConcurrency, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store, runs, err := state.Open(ctx, cfg.State, fs, log)
	if err != nil {
		_ = db.Close()
		_ = dest.Close()
		return nil, errs.New(errs.Config, err)
	}
	m := NewTableMigrator(cfg, Deps{
		Introspector: intro,
		Extractor:    source.NewExtractor(db, dialect, log),
		Destination:  dest,
		Store:        store,
		Runs:         runs,
		Fs:           fs,
		Log:          log,
	})
	m.closers = append(m.closers, db.Close)
	return m, nil
}

func dialSource(ctx context.Context, cfg *sourcecfg.Source, log zerolog.Logger) (*sql.DB, table.Introspector, source.Dialect, error) {
	switch cfg.Driver {
	case sourcecfg.DriverSqlite:
		db, err := connection.DialSqlite(ctx, cfg.GetDSN(), sourceConns, cfg.QueryLogging, log)
		if err != nil {
			return nil, nil, source.Dialect{}, errs.New(errs.SourceUnavailable, err)
		}
		return db, table.NewIntrospectorSqlite(db, log), source.Sqlite, nil
	case sourcecfg.DriverMysql:
		db, err := connection.DialMysql(ctx, cfg.GetDSN(), sourceConns, cfg.QueryLogging, log)
		if err != nil {
			return nil, nil, source.Dialect{}, errs.New(errs.SourceUnavailable, err)
		}
		return db, table.NewIntrospectorMysql(db, log), source.Mysql, nil
	}
	return nil, nil, source.Dialect{}, errs.Newf(errs.Config, "source driver %q is not supported", cfg.Driver)
}

// InstallMetrics : sets the process metrics backend from cfg, none leaves the no-op in place
func InstallMetrics(cfg config.Metrics) error {
	switch cfg.Backend {
	case config.MetricsPrompush:
		b, err := prompush.NewBackend(cfg.Job, cfg.PushgatewayURL)
		if err != nil {
			return errs.New(errs.Config, err)
		}
		metrics.SetBackend(b)
	case config.MetricsDatadog:
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       cfg.DatadogAddr,
			Namespace:  "table_transfer.",
			GlobalTags: append([]string{"job:" + cfg.Job}, cfg.DatadogTags...),
		})
		if err != nil {
			return errs.New(errs.Config, err)
		}
		metrics.SetBackend(b)
	}
	return nil
}

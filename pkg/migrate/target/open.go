package target

import (
	"context"

	"github.com/baderkha/table-transfer/pkg/migrate/config/targetcfg"
	"github.com/baderkha/table-transfer/pkg/migrate/connection"
	"github.com/baderkha/table-transfer/pkg/migrate/errs"
	"github.com/rs/zerolog"
)

// Open : dials the configured target. maxConc sizes the pool to the number of loader workers
func Open(ctx context.Context, cfg *targetcfg.Target, maxConc int, log zerolog.Logger) (Destination, error) {
	dsn := cfg.GetDSN()
	switch cfg.Driver {
	case targetcfg.DriverSqlite:
		db, err := connection.DialSqlite(ctx, dsn, maxConc, cfg.QueryLogging, log)
		if err != nil {
			return nil, errs.New(errs.DestinationUnavailable, err)
		}
		return NewSqlite(db), nil
	case targetcfg.DriverMssql:
		db, err := connection.DialMssql(ctx, dsn, maxConc, cfg.QueryLogging, log)
		if err != nil {
			return nil, errs.New(errs.DestinationUnavailable, err)
		}
		return NewMssql(db), nil
	case targetcfg.DriverSnowflake:
		db, err := connection.DialSnowflake(ctx, dsn, maxConc, cfg.QueryLogging, log)
		if err != nil {
			return nil, errs.New(errs.DestinationUnavailable, err)
		}
		return NewSnowflake(db), nil
	case targetcfg.DriverPostgres:
		pool, err := connection.DialPostgres(ctx, dsn, maxConc, cfg.QueryLogging, log)
		if err != nil {
			return nil, errs.New(errs.DestinationUnavailable, err)
		}
		return NewPostgres(pool), nil
	}
	return nil, errs.Newf(errs.Config, "target driver %q is not supported", cfg.Driver)
}

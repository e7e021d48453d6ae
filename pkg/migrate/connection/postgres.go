package connection

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

// DialPostgres : pgx pool. with qlog every statement goes through tracelog into log
func DialPostgres(ctx context.Context, dsn string, maxConc int, qlog bool, log zerolog.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("POSTGRES_TARGET : bad dsn : %w", err)
	}
	if maxConc > 0 && cfg.MaxConns < int32(maxConc) {
		cfg.MaxConns = int32(maxConc)
	}
	if qlog {
		cfg.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   pgxLogger(log.With().Str("driver", "pgx").Logger()),
			LogLevel: tracelog.LogLevelInfo,
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("POSTGRES_TARGET : Could not dial connection to postgres due to : %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("POSTGRES_TARGET : Could not ping postgres due to : %w", err)
	}
	return pool, nil
}

func pgxLogger(log zerolog.Logger) tracelog.LoggerFunc {
	return func(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
		var ev *zerolog.Event
		switch level {
		case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
			ev = log.Debug()
		case tracelog.LogLevelInfo:
			ev = log.Info()
		case tracelog.LogLevelWarn:
			ev = log.Warn()
		default:
			ev = log.Error()
		}
		ev.Fields(data).Msg(msg)
	}
}

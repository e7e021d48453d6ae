// package connection
//
// dials the source and target engines. every dialer pings before returning so a bad
// dsn or an unreachable host is reported before any work starts
package connection

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"
	sqldblogger "github.com/simukti/sqldb-logger"
	"github.com/simukti/sqldb-logger/logadapter/zerologadapter"
)

const pingTimeout = 10 * time.Second

// AddLogger : re-opens db through sqldb-logger so every statement is logged with its duration
func AddLogger(db *sql.DB, dsn string, driverName string, log zerolog.Logger) *sql.DB {
	loggerAdapter := zerologadapter.New(log.With().Str("driver", driverName).Logger())
	db = sqldblogger.OpenDriver(dsn, db.Driver(), loggerAdapter,
		sqldblogger.WithWrapResult(false),
		sqldblogger.WithDurationFieldname("dur_ms"),
		sqldblogger.WithDurationUnit(sqldblogger.DurationMillisecond),
		sqldblogger.WithSQLQueryAsMessage(true),
		sqldblogger.WithSQLQueryFieldname("sql_query"),
	)
	return db
}

// open : sql.Open + optional query log + pool sizing + ping
func open(ctx context.Context, driverName, dsn string, maxConc int, qlog bool, log zerolog.Logger) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	if qlog {
		db = AddLogger(db, dsn, driverName, log)
	}
	if maxConc > 0 {
		db.SetMaxOpenConns(maxConc)
		db.SetMaxIdleConns(maxConc)
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

package connection

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// DialSqlite : sqlite allows a single writer, callers writing concurrently rely on the busy
// timeout in the dsn
func DialSqlite(ctx context.Context, dsn string, maxConc int, qlog bool, log zerolog.Logger) (*sql.DB, error) {
	db, err := open(ctx, "sqlite", dsn, maxConc, qlog, log)
	if err != nil {
		return nil, fmt.Errorf("SQLITE : Could not open %s due to : %w", dsn, err)
	}
	return db, nil
}

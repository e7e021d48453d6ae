package connection

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	_ "github.com/snowflakedb/gosnowflake"
)

func DialSnowflake(ctx context.Context, dsn string, maxConc int, qlog bool, log zerolog.Logger) (*sql.DB, error) {
	log.Debug().Msg("getting DialSnowflake")
	db, err := open(ctx, "snowflake", dsn, maxConc, qlog, log)
	if err != nil {
		return nil, fmt.Errorf("SNOWFLAKE_TARGET : Could not dial connection to snowflake due to : %w", err)
	}
	var res string
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&res); err != nil || res != "1" {
		_ = db.Close()
		return nil, fmt.Errorf("SNOWFLAKE_TARGET : can't ping snowflake via select 1 : %v", err)
	}
	log.Debug().Msg("got DialSnowflake")
	return db, nil
}

package connection

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
)

func DialMysql(ctx context.Context, dsn string, maxConc int, qlog bool, log zerolog.Logger) (*sql.DB, error) {
	log.Debug().Msg("getting DialMysql con")
	db, err := open(ctx, "mysql", dsn, maxConc, qlog, log)
	if err != nil {
		return nil, fmt.Errorf("MYSQL_SOURCE : Could not dial connection to mysql due to : %w", err)
	}
	log.Debug().Msg("got DialMysql con")
	return db, nil
}

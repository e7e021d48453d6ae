package connection

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
	"github.com/rs/zerolog"
)

func DialMssql(ctx context.Context, dsn string, maxConc int, qlog bool, log zerolog.Logger) (*sql.DB, error) {
	if _, err := msdsn.Parse(dsn); err != nil {
		return nil, fmt.Errorf("MSSQL_TARGET : bad dsn : %w", err)
	}
	db, err := open(ctx, "sqlserver", dsn, maxConc, qlog, log)
	if err != nil {
		return nil, fmt.Errorf("MSSQL_TARGET : Could not dial connection to sql server due to : %w", err)
	}
	return db, nil
}

package table

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/baderkha/table-transfer/pkg/migrate/errs"
	"github.com/rs/zerolog"
)

func NewIntrospectorMysql(db *sql.DB, log zerolog.Logger) Introspector {
	return &IntrospectorMYSQL{
		source: db,
		log:    log.With().Str("component", "introspector").Str("driver", "mysql").Logger(),
	}
}

// IntrospectorMYSQL : reads table layout from information_schema
type IntrospectorMYSQL struct {
	source *sql.DB
	log    zerolog.Logger
}

type mysqlColumnRow struct {
	Name     string `db:"col_name"`
	Type     string `db:"col_type"`
	Nullable string `db:"is_nullable"`
	Position int    `db:"ordinal_position"`
	Key      string `db:"col_key"`
}

func (m *IntrospectorMYSQL) Introspect(ctx context.Context, tableName string) (*Schema, error) {
	conn, err := m.source.Conn(ctx)
	if err != nil {
		return nil, errs.New(errs.SourceUnavailable, fmt.Errorf("MYSQL_SOURCE : could not get connection : %w", err))
	}
	defer conn.Close()
	if err := conn.PingContext(ctx); err != nil {
		return nil, errs.New(errs.SourceUnavailable, fmt.Errorf("MYSQL_SOURCE : ping failed : %w", err))
	}

	dbName, name := splitQualified(tableName)
	exists, err := m.tableExists(ctx, conn, dbName, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errs.Newf(errs.TableNotFound, "MYSQL_SOURCE : table %s does not exist", tableName)
	}

	cols, err := m.GetTableColumns(ctx, conn, dbName, name)
	if err != nil {
		return nil, err
	}
	keys, err := m.GetPrimaryKey(ctx, conn, dbName, name)
	if err != nil {
		return nil, err
	}

	s := &Schema{Name: tableName, Columns: cols, KeyColumns: keys}
	if err := s.Validate(); err != nil {
		return nil, errs.New(errs.SchemaConflict, fmt.Errorf("MYSQL_SOURCE : invalid layout for %s : %w", tableName, err))
	}
	m.log.Debug().Str("table", tableName).Int("columns", len(cols)).Strs("key", keys).Msg("introspected table")
	return s, nil
}

func (m *IntrospectorMYSQL) tableExists(ctx context.Context, conn *sql.Conn, dbName string, table string) (bool, error) {
	var n int
	err := conn.QueryRowContext(ctx, `
	SELECT COUNT(*)
	FROM information_schema.TABLES
	WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE())
		AND TABLE_NAME = ?`, dbName, table).Scan(&n)
	if err != nil {
		return false, errs.New(errs.SourceUnavailable, fmt.Errorf("MYSQL_SOURCE : lookup table %s : %w", table, err))
	}
	return n > 0, nil
}

// GetTableColumns : columns in ordinal order. positions are rebased to 0
func (m *IntrospectorMYSQL) GetTableColumns(ctx context.Context, conn *sql.Conn, dbName string, table string) ([]Column, error) {
	rows, err := conn.QueryContext(ctx, `
	SELECT COLUMN_NAME AS col_name,
		COLUMN_TYPE AS col_type,
		IS_NULLABLE AS is_nullable,
		ORDINAL_POSITION AS ordinal_position,
		COLUMN_KEY AS col_key
	FROM information_schema.COLUMNS
	WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE())
		AND TABLE_NAME = ?
	ORDER BY ORDINAL_POSITION`, dbName, table)
	if err != nil {
		return nil, errs.New(errs.SourceUnavailable, fmt.Errorf("MYSQL_SOURCE : read columns of %s : %w", table, err))
	}
	defer rows.Close()

	var res []Column
	for rows.Next() {
		var r mysqlColumnRow
		if err := rows.Scan(&r.Name, &r.Type, &r.Nullable, &r.Position, &r.Key); err != nil {
			return nil, errs.New(errs.SourceUnavailable, fmt.Errorf("MYSQL_SOURCE : scan column of %s : %w", table, err))
		}
		res = append(res, Column{
			Name:       r.Name,
			SourceType: r.Type,
			Nullable:   strings.EqualFold(r.Nullable, "YES"),
			Position:   len(res),
			PrimaryKey: strings.EqualFold(r.Key, "PRI"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errs.New(errs.SourceUnavailable, fmt.Errorf("MYSQL_SOURCE : read columns of %s : %w", table, err))
	}
	return res, nil
}

// GetPrimaryKey : primary key columns in index order
func (m *IntrospectorMYSQL) GetPrimaryKey(ctx context.Context, conn *sql.Conn, dbName string, table string) ([]string, error) {
	rows, err := conn.QueryContext(ctx, `
	SELECT COLUMN_NAME AS col_name
	FROM information_schema.STATISTICS
	WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE())
		AND TABLE_NAME = ?
		AND lower(INDEX_NAME) = 'primary'
	ORDER BY SEQ_IN_INDEX`, dbName, table)
	if err != nil {
		return nil, errs.New(errs.SourceUnavailable, fmt.Errorf("MYSQL_SOURCE : read primary key of %s : %w", table, err))
	}
	defer rows.Close()

	var res []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, errs.New(errs.SourceUnavailable, fmt.Errorf("MYSQL_SOURCE : scan primary key of %s : %w", table, err))
		}
		res = append(res, col)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.New(errs.SourceUnavailable, fmt.Errorf("MYSQL_SOURCE : read primary key of %s : %w", table, err))
	}
	return res, nil
}

// splitQualified : "db.table" -> ("db", "table"), "table" -> ("", "table")
func splitQualified(name string) (string, string) {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

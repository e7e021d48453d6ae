package table

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/baderkha/table-transfer/pkg/migrate/errs"
	"github.com/rs/zerolog"
)

func NewIntrospectorSqlite(db *sql.DB, log zerolog.Logger) Introspector {
	return &IntrospectorSQLITE{
		source: db,
		log:    log.With().Str("component", "introspector").Str("driver", "sqlite").Logger(),
	}
}

// IntrospectorSQLITE : reads table layout through pragma_table_info
type IntrospectorSQLITE struct {
	source *sql.DB
	log    zerolog.Logger
}

func (m *IntrospectorSQLITE) Introspect(ctx context.Context, tableName string) (*Schema, error) {
	conn, err := m.source.Conn(ctx)
	if err != nil {
		return nil, errs.New(errs.SourceUnavailable, fmt.Errorf("SQLITE_SOURCE : could not get connection : %w", err))
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, `SELECT name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`, tableName)
	if err != nil {
		return nil, errs.New(errs.SourceUnavailable, fmt.Errorf("SQLITE_SOURCE : read columns of %s : %w", tableName, err))
	}
	defer rows.Close()

	type pkCol struct {
		name string
		seq  int
	}
	var (
		cols []Column
		pks  []pkCol
	)
	for rows.Next() {
		var (
			name, typ string
			notNull   int
			pk        int
		)
		if err := rows.Scan(&name, &typ, &notNull, &pk); err != nil {
			return nil, errs.New(errs.SourceUnavailable, fmt.Errorf("SQLITE_SOURCE : scan column of %s : %w", tableName, err))
		}
		cols = append(cols, Column{
			Name:       name,
			SourceType: typ,
			Nullable:   notNull == 0 && pk == 0,
			Position:   len(cols),
			PrimaryKey: pk > 0,
		})
		if pk > 0 {
			pks = append(pks, pkCol{name: name, seq: pk})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errs.New(errs.SourceUnavailable, fmt.Errorf("SQLITE_SOURCE : read columns of %s : %w", tableName, err))
	}
	if len(cols) == 0 {
		return nil, errs.Newf(errs.TableNotFound, "SQLITE_SOURCE : table %s does not exist", tableName)
	}

	sort.Slice(pks, func(i, j int) bool { return pks[i].seq < pks[j].seq })
	keys := make([]string, 0, len(pks))
	for _, p := range pks {
		keys = append(keys, p.name)
	}

	s := &Schema{Name: tableName, Columns: cols, KeyColumns: keys}
	if err := s.Validate(); err != nil {
		return nil, errs.New(errs.SchemaConflict, fmt.Errorf("SQLITE_SOURCE : invalid layout for %s : %w", tableName, err))
	}
	m.log.Debug().Str("table", tableName).Int("columns", len(cols)).Strs("key", keys).Msg("introspected table")
	return s, nil
}

package target

import (
	"context"
	"fmt"
	"strings"

	"github.com/baderkha/table-transfer/pkg/migrate/errs"
	"github.com/baderkha/table-transfer/pkg/migrate/table"
	"github.com/baderkha/table-transfer/pkg/migrate/table/colmap"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// Materializer : makes sure the destination table exists with the source layout
type Materializer struct {
	dest    Destination
	mapping colmap.Type
	log     zerolog.Logger
}

func NewMaterializer(dest Destination, mapping colmap.Type, log zerolog.Logger) *Materializer {
	return &Materializer{
		dest:    dest,
		mapping: mapping,
		log:     log.With().Str("component", "materializer").Str("driver", dest.Driver()).Logger(),
	}
}

// Materialize : creates destTable when absent. A table that already has the same column names
// in the same order is accepted as is, one that differs is an errs.SchemaConflict
func (m *Materializer) Materialize(ctx context.Context, s *table.Schema, destTable string) (*TableDef, error) {
	def := NewTableDef(s, m.mapping, destTable)

	existing, exists, err := m.dest.Columns(ctx, destTable)
	if err != nil {
		return nil, m.unavailable(err)
	}
	if exists {
		if err := conflicts(def, existing); err != nil {
			return nil, errs.New(errs.SchemaConflict, fmt.Errorf("destination table %s does not match %s : %w", destTable, s.Name, err))
		}
		m.log.Info().Str("table", destTable).Msg("destination table already exists with a matching layout")
		return def, nil
	}

	stmt := m.dest.CreateSQL(def)
	m.log.Info().Str("table", destTable).Str("ddl", stmt).Msg("creating destination table")
	if err := m.dest.Exec(ctx, stmt); err != nil {
		return nil, m.createFailed(destTable, err)
	}

	// re-read so a concurrent creator with a different layout is still caught
	existing, exists, err = m.dest.Columns(ctx, destTable)
	if err != nil {
		return nil, m.unavailable(err)
	}
	if !exists {
		return nil, errs.Newf(errs.DestinationUnavailable, "destination table %s is missing after create", destTable)
	}
	if err := conflicts(def, existing); err != nil {
		return nil, errs.New(errs.SchemaConflict, fmt.Errorf("destination table %s does not match %s : %w", destTable, s.Name, err))
	}
	return def, nil
}

func (m *Materializer) unavailable(err error) error {
	if m.dest.Classify(err) == errs.Canceled {
		return err
	}
	return errs.New(errs.DestinationUnavailable, err)
}

// createFailed : connection trouble means the destination is unavailable, anything else is the
// engine refusing the statement (syntax, permissions, a type it does not know)
func (m *Materializer) createFailed(destTable string, err error) error {
	switch m.dest.Classify(err) {
	case errs.Canceled:
		return err
	case errs.Transient:
		return errs.New(errs.DestinationUnavailable, err)
	case errs.Permanent:
		return errs.New(errs.Permanent, fmt.Errorf("create %s : %w", destTable, err))
	}
	return errs.New(errs.SchemaConflict, fmt.Errorf("create %s was refused : %w", destTable, err))
}

// conflicts : one error per column that differs between def and the existing table
func conflicts(def *TableDef, existing []string) error {
	var result error
	want := def.ColumnNames()
	if len(want) != len(existing) {
		result = multierror.Append(result, fmt.Errorf("expected %d columns, found %d", len(want), len(existing)))
	}
	for i := 0; i < max(len(want), len(existing)); i++ {
		switch {
		case i >= len(existing):
			result = multierror.Append(result, fmt.Errorf("column %d: expected %s, missing", i, want[i]))
		case i >= len(want):
			result = multierror.Append(result, fmt.Errorf("column %d: unexpected %s", i, existing[i]))
		case !strings.EqualFold(want[i], existing[i]):
			result = multierror.Append(result, fmt.Errorf("column %d: expected %s, found %s", i, want[i], existing[i]))
		}
	}
	return result
}

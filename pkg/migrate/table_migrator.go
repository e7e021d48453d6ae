package migrate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/baderkha/table-transfer/pkg/migrate/config"
	"github.com/baderkha/table-transfer/pkg/migrate/errs"
	"github.com/baderkha/table-transfer/pkg/migrate/load"
	"github.com/baderkha/table-transfer/pkg/migrate/metrics"
	"github.com/baderkha/table-transfer/pkg/migrate/reject"
	"github.com/baderkha/table-transfer/pkg/migrate/source"
	"github.com/baderkha/table-transfer/pkg/migrate/state"
	"github.com/baderkha/table-transfer/pkg/migrate/table"
	"github.com/baderkha/table-transfer/pkg/migrate/table/colmap"
	"github.com/baderkha/table-transfer/pkg/migrate/target"
	"github.com/gofrs/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Deps : everything a TableMigrator talks to. Runs defaults to a LogManager and Fs to the
// os filesystem
type Deps struct {
	Introspector table.Introspector
	Extractor    *source.Extractor
	Destination  target.Destination
	Store        state.Store
	Runs         state.Manager
	Fs           afero.Fs
	Log          zerolog.Logger
}

// TableMigrator : transfers cfg.Table.Source into cfg.DestinationTable()
type TableMigrator struct {
	cfg     *config.Config
	intro   table.Introspector
	ext     *source.Extractor
	dest    target.Destination
	store   state.Store
	runs    state.Manager
	fs      afero.Fs
	log     zerolog.Logger
	closers []func() error
}

var _ Runner = (*TableMigrator)(nil)

func NewTableMigrator(cfg *config.Config, deps Deps) *TableMigrator {
	m := &TableMigrator{
		cfg:   cfg,
		intro: deps.Introspector,
		ext:   deps.Extractor,
		dest:  deps.Destination,
		store: deps.Store,
		runs:  deps.Runs,
		fs:    deps.Fs,
		log:   deps.Log,
	}
	if m.runs == nil {
		m.runs = state.NewLogManager(deps.Log)
	}
	if m.fs == nil {
		m.fs = afero.NewOsFs()
	}
	return m
}

// GetStateManager : run log of this migrator
func (m *TableMigrator) GetStateManager() state.Manager {
	return m.runs
}

func (m *TableMigrator) scope() state.Scope {
	return state.Scope{SourceTable: m.cfg.Table.Source, DestinationTable: m.cfg.DestinationTable()}
}

// Run : Init -> SchemaSync -> Transferring -> Completed. Any failure ends the run with the
// returned error classified as an *errs.Error carrying the stage and committed offset
func (m *TableMigrator) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	uid, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("run id : %w", err)
	}
	res := &Result{State: Init, RunID: uid.String()}
	scope := m.scope()
	job := m.cfg.Metrics.Job
	log := m.log.With().
		Str("run_id", res.RunID).
		Str("source_table", scope.SourceTable).
		Str("destination_table", scope.DestinationTable).
		Logger()

	runLogged := false
	fail := func(stage errs.Stage, err error) (*Result, error) {
		err = errs.At(err, stage, res.Checkpoint)
		res.State = Failed
		if errs.Is(err, errs.Canceled) {
			res.State = Canceled
		}
		res.Duration = time.Since(started)
		metrics.RecordStep(job, "run", err, res.Duration)
		if runLogged {
			bg := context.WithoutCancel(ctx)
			var logErr error
			if res.State == Canceled {
				logErr = m.runs.OnShutDownEv(bg, scope)
			} else {
				logErr = m.runs.FailedRunLog(bg, res.RunID, res.Checkpoint, res.RowsWritten, err)
			}
			if logErr != nil {
				log.Error().Err(logErr).Msg("could not update run log")
			}
		}
		log.Error().Err(err).Str("state", string(res.State)).Int64("checkpoint", res.Checkpoint).Msg("transfer stopped")
		return res, err
	}

	// Init
	if m.cfg.Fresh {
		log.Info().Msg("fresh run, dropping checkpoint")
		if err := m.store.Reset(ctx, scope); err != nil {
			return fail(errs.StageInit, err)
		}
	}
	from := state.Checkpoint{Scope: scope, RunID: res.RunID}
	cp, err := m.store.Get(ctx, scope)
	if err != nil {
		return fail(errs.StageInit, err)
	}
	if cp != nil {
		from = *cp
		from.RunID = res.RunID
		res.Checkpoint = cp.Offset
		log.Info().Int64("offset", cp.Offset).Str("previous_run", cp.RunID).Msg("resuming from checkpoint")
	}
	if err := m.runs.InitRunLog(ctx, res.RunID, scope, res.Checkpoint); err != nil {
		return fail(errs.StageInit, err)
	}
	runLogged = true

	// SchemaSync
	res.State = SchemaSync
	stepStart := time.Now()
	schema, def, err := m.schemaSync(ctx, scope, log)
	metrics.RecordStep(job, "schema_sync", err, time.Since(stepStart))
	if err != nil {
		return fail(errs.StageSchemaSync, err)
	}

	// Transferring
	res.State = Transferring
	stepStart = time.Now()
	sink := reject.NewSink(m.fs, m.cfg.RejectsDir, scope.DestinationTable, res.RunID)
	c := newCommitter(m.cfg, m.store, sink, from, res, log)
	err = m.transfer(ctx, schema, def, c, log)
	if closeErr := sink.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	res.Checkpoint = c.offset()
	if sink.Count() > 0 {
		res.RejectsPath = sink.Path()
	}
	metrics.RecordStep(job, "transfer", err, time.Since(stepStart))
	if err != nil {
		return fail(errs.StageTransferring, err)
	}

	if m.cfg.Verify {
		stepStart = time.Now()
		warning, err := m.verify(ctx, schema, def, c.cp.Rejected)
		metrics.RecordStep(job, "verify", err, time.Since(stepStart))
		switch {
		case err != nil:
			res.Warnings = append(res.Warnings, fmt.Sprintf("verification failed : %v", err))
		case warning != "":
			res.Warnings = append(res.Warnings, warning)
		}
	}

	res.State = Completed
	res.Duration = time.Since(started)
	metrics.RecordStep(job, "run", nil, res.Duration)
	if err := m.runs.PassedRunLog(context.WithoutCancel(ctx), res.RunID, res.Checkpoint, res.RowsWritten); err != nil {
		log.Error().Err(err).Msg("could not update run log")
	}
	for _, w := range res.Warnings {
		log.Warn().Msg(w)
	}
	log.Info().
		Int64("checkpoint", res.Checkpoint).
		Int64("batches", res.Batches).
		Int64("rows_written", res.RowsWritten).
		Int64("rows_rejected", res.RowsRejected).
		Int64("retries", res.Retries).
		Dur("took", res.Duration).
		Msg("transfer completed")
	return res, nil
}

// schemaSync : source layout plus a destination table that matches it
func (m *TableMigrator) schemaSync(ctx context.Context, scope state.Scope, log zerolog.Logger) (*table.Schema, *target.TableDef, error) {
	schema, err := m.intro.Introspect(ctx, scope.SourceTable)
	if err != nil {
		return nil, nil, err
	}
	if err := schema.ResolveKey(m.cfg.Table.KeyColumns); err != nil {
		return nil, nil, err
	}
	mapping := colmap.Pair(m.cfg.SourceConfig.Driver, m.dest.Driver())
	if !mapping.Supported() {
		return nil, nil, errs.Newf(errs.Config, "no type mapping from %s to %s", m.cfg.SourceConfig.Driver, m.dest.Driver())
	}
	def, err := target.NewMaterializer(m.dest, mapping, log).Materialize(ctx, schema, scope.DestinationTable)
	if err != nil {
		return nil, nil, err
	}
	m.ext.WithBinary(def.Binary())
	log.Info().Strs("key", schema.KeyColumns).Int("columns", len(schema.Columns)).Msg("schema in sync")
	return schema, def, nil
}

// transfer : extractor -> batcher -> workers -> committer. returns once every goroutine has
// stopped, the committer's watermark is the committed offset either way
func (m *TableMigrator) transfer(ctx context.Context, schema *table.Schema, def *target.TableDef, c *committer, log zerolog.Logger) error {
	var (
		offset  = c.offset()
		rows    = make(chan table.Row, m.cfg.BatchRecordSize)
		batches = make(chan *table.Batch, m.cfg.QueueDepth)
		acks    = make(chan ack)
		workers sync.WaitGroup
	)
	g, gctx := errgroup.WithContext(ctx)
	backoff := load.Backoff{
		MaxAttempts: max(m.cfg.Retry.MaxAttempts, 1),
		Initial:     m.cfg.Retry.InitialBackoff(),
		Max:         m.cfg.Retry.MaxBackoff(),
		Multiplier:  m.cfg.Retry.Multiplier,
	}
	loader := load.NewLoader(m.dest, def, schema, backoff, log)
	batcher := &load.Batcher{Size: m.cfg.BatchRecordSize, MaxWait: m.cfg.MaxBatchWait()}

	log.Info().Int64("offset", offset).Int("workers", m.cfg.MaxConcurrency).Int("batch_size", m.cfg.BatchRecordSize).Msg("transfer starting")
	g.Go(func() error {
		return m.extract(gctx, schema, offset, rows, backoff, log)
	})
	g.Go(func() error {
		return batcher.Run(gctx, offset, rows, batches)
	})
	for i := 1; i <= m.cfg.MaxConcurrency; i++ {
		id := i
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			return m.work(gctx, id, loader, batches, acks, log)
		})
	}
	// acks closes once no worker can send anymore, which is what ends the committer
	go func() {
		workers.Wait()
		close(acks)
	}()
	g.Go(func() error {
		return c.run(ctx, acks)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if c.wm.gaps() != 0 {
		return fmt.Errorf("%d batches committed past a gap that never closed", c.wm.gaps())
	}
	return nil
}

// extract : streams the source from offset into rows and closes rows when done. a read fault
// reopens the scan at the first row that was not sent, after a backoff. attempts count from
// the last row that made it through, the scan gives up once MaxAttempts fail in a row
func (m *TableMigrator) extract(ctx context.Context, schema *table.Schema, offset int64, rows chan<- table.Row, backoff load.Backoff, log zerolog.Logger) error {
	defer close(rows)
	attempt := 0
	for {
		err := m.ext.Read(ctx, schema, offset, rows)
		if err == nil {
			return nil
		}
		var e *errs.Error
		if !errors.As(err, &e) || !e.Kind.Retryable() || ctx.Err() != nil {
			return err
		}
		if e.Offset > offset {
			attempt = 0
		}
		attempt++
		offset = e.Offset
		if attempt >= backoff.MaxAttempts {
			return fmt.Errorf("source read gave up after %d attempts : %w", attempt, err)
		}
		log.Warn().Err(err).Int64("offset", offset).Int("attempt", attempt).Dur("backoff", backoff.Delay(attempt)).Msg("source read failed, reopening scan")
		if err := backoff.Wait(ctx, attempt); err != nil {
			return err
		}
	}
}

// work : one loader worker. it takes a batch, commits it and waits for the checkpoint to
// cover it before taking the next one
func (m *TableMigrator) work(ctx context.Context, id int, loader *load.Loader, batches <-chan *table.Batch, acks chan<- ack, log zerolog.Logger) error {
	log = log.With().Int("worker", id).Logger()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var batch *table.Batch
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-batches:
			if !ok {
				log.Debug().Msg("no more batches, worker exiting")
				return nil
			}
			batch = b
		}

		wctx, cancel := detached(ctx, m.cfg.ShutdownGrace())
		res, err := loader.Load(wctx, batch)
		cancel()
		if err != nil {
			return err
		}

		a := newAck(res)
		acks <- a
		select {
		case err := <-a.done:
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// detached : a context that outlives parent by grace, so a write in flight when the run is
// canceled can still commit or roll back
func detached(parent context.Context, grace time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	stop := context.AfterFunc(parent, func() {
		time.AfterFunc(grace, cancel)
	})
	return ctx, func() {
		stop()
		cancel()
	}
}

// verify : source rows should equal destination rows plus everything rejected so far.
// a mismatch is only a warning, the destination may hold rows of its own
func (m *TableMigrator) verify(ctx context.Context, schema *table.Schema, def *target.TableDef, rejected int64) (string, error) {
	src, err := m.ext.Count(ctx, schema)
	if err != nil {
		return "", err
	}
	dst, err := m.dest.Count(ctx, def.Name)
	if err != nil {
		return "", err
	}
	if src != dst+rejected {
		return fmt.Sprintf("row count mismatch : source %s has %d rows, destination %s has %d and %d were rejected", schema.Name, src, def.Name, dst, rejected), nil
	}
	m.log.Info().Int64("rows", src).Msg("row counts match")
	return "", nil
}

// Close : releases the connections and stores the migrator was built with
func (m *TableMigrator) Close() error {
	var result error
	closers := append([]func() error{m.dest.Close, m.store.Close}, m.closers...)
	for _, c := range closers {
		if err := c(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

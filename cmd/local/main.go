package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/baderkha/table-transfer/pkg/logger"
	"github.com/baderkha/table-transfer/pkg/migrate"
	"github.com/baderkha/table-transfer/pkg/migrate/config"
	"github.com/baderkha/table-transfer/pkg/migrate/errs"
	"github.com/baderkha/table-transfer/pkg/migrate/metrics"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const (
	exitOK          = 0
	exitFailed      = 1
	exitInterrupted = 130
)

type flags struct {
	job         string
	sourceTable string
	destTable   string
	batchSize   int
	workers     int
	maxAttempts int
	fresh       bool
}

func parseFlags(args []string) (*flags, error) {
	f := &flags{}
	fs := flag.NewFlagSet("table-transfer", flag.ContinueOnError)
	fs.StringVar(&f.job, "job", "job.json", "job file (.json, .yaml or .yml)")
	fs.StringVar(&f.sourceTable, "source-table", "", "source table, overrides table.source")
	fs.StringVar(&f.destTable, "dest-table", "", "destination table, overrides table.destination")
	fs.IntVar(&f.batchSize, "batch-size", 0, "rows per batch, overrides max_batch_record_size")
	fs.IntVar(&f.workers, "workers", 0, "loader workers, overrides max_concurrency")
	fs.IntVar(&f.maxAttempts, "max-attempts", 0, "attempts per batch on transient failures, overrides retry.max_attempts")
	fs.BoolVar(&f.fresh, "fresh", false, "ignore the checkpoint and start from the first row")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// apply : flags win over the job file
func (f *flags) apply(cfg *config.Config) {
	if f.sourceTable != "" {
		cfg.Table.Source = f.sourceTable
	}
	if f.destTable != "" {
		cfg.Table.Destination = f.destTable
	}
	if f.batchSize > 0 {
		cfg.BatchRecordSize = f.batchSize
	}
	if f.workers > 0 {
		if cfg.QueueDepth == 2*cfg.MaxConcurrency {
			cfg.QueueDepth = 2 * f.workers
		}
		cfg.MaxConcurrency = f.workers
	}
	if f.maxAttempts > 0 {
		cfg.Retry.MaxAttempts = f.maxAttempts
	}
	cfg.Fresh = cfg.Fresh || f.fresh
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	f, err := parseFlags(args)
	if err != nil {
		return exitFailed
	}
	fs := afero.NewOsFs()
	cfg, err := config.Load(fs, f.job)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailed
	}
	f.apply(cfg)
	log := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid job")
		return exitFailed
	}
	if err := migrate.InstallMetrics(cfg.Metrics); err != nil {
		log.Error().Err(err).Msg("metrics")
		return exitFailed
	}
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Warn().Err(err).Msg("could not flush metrics")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	var runner migrate.Runner
	runner, err = migrate.Open(ctx, cfg, fs, log)
	if err != nil {
		return report(ctx, log, nil, err)
	}
	defer func() {
		if err := runner.Close(); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}()

	res, err := runner.Run(ctx)
	return report(ctx, log, res, err)
}

// report : prints the outcome and picks the exit code
func report(ctx context.Context, log zerolog.Logger, res *migrate.Result, err error) int {
	if err == nil {
		fmt.Printf("completed run=%s checkpoint=%d batches=%d written=%d rejected=%d retries=%d took=%s\n",
			res.RunID, res.Checkpoint, res.Batches, res.RowsWritten, res.RowsRejected, res.Retries, res.Duration)
		if res.RejectsPath != "" {
			fmt.Printf("rejected rows written to %s\n", res.RejectsPath)
		}
		return exitOK
	}
	var e *errs.Error
	if errors.As(err, &e) {
		fmt.Fprintf(os.Stderr, "failed stage=%s kind=%s checkpoint=%d : %v\n", e.Stage, e.Kind, e.Offset, e.Err)
		if e.Kind.Terminal() {
			fmt.Fprintln(os.Stderr, "rerunning as is will fail the same way, fix the job or the tables first")
		} else {
			fmt.Fprintf(os.Stderr, "rerun to resume from offset %d\n", e.Offset)
		}
	} else {
		fmt.Fprintf(os.Stderr, "failed : %v\n", err)
	}
	if errs.Is(err, errs.Canceled) || ctx.Err() != nil {
		log.Warn().Msg("interrupted, committed batches are checkpointed")
		return exitInterrupted
	}
	log.Debug().Err(err).Msg("run failed")
	return exitFailed
}

package load

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/baderkha/table-transfer/pkg/migrate/errs"
	"github.com/baderkha/table-transfer/pkg/migrate/table"
	"github.com/baderkha/table-transfer/pkg/migrate/target"
	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"
)

// Backoff : exponential backoff between attempts of a transient failure
type Backoff struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
}

// Delay : wait before attempt n+1 after n failed attempts (n >= 1)
func (b Backoff) Delay(n int) time.Duration {
	d := float64(b.Initial) * math.Pow(b.Multiplier, float64(n-1))
	if b.Max > 0 && d > float64(b.Max) {
		return b.Max
	}
	return time.Duration(d)
}

// Wait : sleeps Delay(n), cut short by ctx
func (b Backoff) Wait(ctx context.Context, n int) error {
	return sleepCtx(ctx, b.Delay(n))
}

// Rejected : a row the destination refused for good
type Rejected struct {
	Offset int64     `json:"offset"`
	Row    table.Row `json:"row"`
	Err    error     `json:"-"`
	Reason string    `json:"reason"`
}

// CommitResult : what happened to one batch
type CommitResult struct {
	Seq      int64
	Start    int64
	End      int64
	Written  int64
	Attempts int
	Retries  int
	Rejected []Rejected
	Digest   uint64
	Duration time.Duration
}

// Loader : writes batches with retries. a batch the destination refuses because of its data
// is split into single row writes so only the offending rows are rejected
type Loader struct {
	dest    target.Destination
	def     *target.TableDef
	schema  *table.Schema
	backoff Backoff
	log     zerolog.Logger

	// sleep is swapped out in tests
	sleep func(ctx context.Context, d time.Duration) error
}

func NewLoader(dest target.Destination, def *target.TableDef, schema *table.Schema, backoff Backoff, log zerolog.Logger) *Loader {
	if backoff.MaxAttempts <= 0 {
		backoff.MaxAttempts = 1
	}
	if backoff.Multiplier < 1 {
		backoff.Multiplier = 2
	}
	return &Loader{
		dest:    dest,
		def:     def,
		schema:  schema,
		backoff: backoff,
		log:     log.With().Str("component", "loader").Str("table", def.Name).Logger(),
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Load : commits batch in one transaction. Transient failures retry the whole batch until
// MaxAttempts, then fail with errs.Transient. Permanent failures end up in
// CommitResult.Rejected, the caller decides whether that is fatal
func (l *Loader) Load(ctx context.Context, batch *table.Batch) (*CommitResult, error) {
	start := time.Now()
	res := &CommitResult{Seq: batch.Seq, Start: batch.Start, End: batch.End(), Digest: Digest(batch.Rows)}

	rows := make([]table.Row, 0, len(batch.Rows))
	offsets := make([]int64, 0, len(batch.Rows))
	for i, r := range batch.Rows {
		if err := r.CheckNulls(l.schema); err != nil {
			res.Rejected = append(res.Rejected, reject(batch.Start+int64(i), r, err))
			continue
		}
		rows = append(rows, r)
		offsets = append(offsets, batch.Start+int64(i))
	}

	n, attempts, err := l.write(ctx, rows)
	res.Attempts = attempts
	res.Retries = max(attempts-1, 0)
	switch {
	case err == nil:
		res.Written = n
	case errs.Is(err, errs.Permanent):
		l.log.Warn().Err(err).Int64("seq", batch.Seq).Int64("start", batch.Start).Msg("batch refused, isolating rows")
		if err := l.isolate(ctx, rows, offsets, res); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("batch %d [%d,%d) : %w", batch.Seq, batch.Start, batch.End(), err)
	}
	res.Duration = time.Since(start)
	l.log.Debug().
		Int64("seq", res.Seq).
		Int64("start", res.Start).
		Int64("end", res.End).
		Int64("written", res.Written).
		Int("rejected", len(res.Rejected)).
		Int("attempts", res.Attempts).
		Dur("took", res.Duration).
		Msg("batch committed")
	return res, nil
}

// write : one transactional write with retries. the returned error is always classified
func (l *Loader) write(ctx context.Context, rows []table.Row) (int64, int, error) {
	if len(rows) == 0 {
		return 0, 0, nil
	}
	var attempt int
	for {
		attempt++
		n, err := l.dest.WriteBatch(ctx, l.def, rows)
		if err == nil {
			return n, attempt, nil
		}
		kind := l.dest.Classify(err)
		if !kind.Retryable() {
			return 0, attempt, errs.New(kind, err)
		}
		if attempt >= l.backoff.MaxAttempts {
			return 0, attempt, errs.New(errs.Transient, fmt.Errorf("gave up after %d attempts : %w", attempt, err))
		}
		delay := l.backoff.Delay(attempt)
		l.log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", delay).Msg("transient write failure, retrying")
		if err := l.sleep(ctx, delay); err != nil {
			return 0, attempt, errs.New(errs.Canceled, err)
		}
	}
}

// isolate : every row in its own transaction
func (l *Loader) isolate(ctx context.Context, rows []table.Row, offsets []int64, res *CommitResult) error {
	for i, r := range rows {
		n, attempts, err := l.write(ctx, []table.Row{r})
		res.Attempts += attempts
		res.Retries += max(attempts-1, 0)
		switch {
		case err == nil:
			res.Written += n
		case errs.Is(err, errs.Permanent):
			res.Rejected = append(res.Rejected, reject(offsets[i], r, err))
		default:
			return fmt.Errorf("row at offset %d : %w", offsets[i], err)
		}
	}
	return nil
}

func reject(offset int64, r table.Row, err error) Rejected {
	return Rejected{Offset: offset, Row: r, Err: err, Reason: err.Error()}
}

// Digest : xxh3 of the rendered batch, lets two runs be compared batch by batch in the logs
func Digest(rows []table.Row) uint64 {
	h := xxh3.New()
	for _, r := range rows {
		for _, v := range r {
			_, _ = fmt.Fprintf(h, "%v\x1f", v)
		}
		_, _ = h.Write([]byte{'\x1e'})
	}
	return h.Sum64()
}

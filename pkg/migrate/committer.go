package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/baderkha/table-transfer/pkg/migrate/config"
	"github.com/baderkha/table-transfer/pkg/migrate/errs"
	"github.com/baderkha/table-transfer/pkg/migrate/load"
	"github.com/baderkha/table-transfer/pkg/migrate/metrics"
	"github.com/baderkha/table-transfer/pkg/migrate/reject"
	"github.com/baderkha/table-transfer/pkg/migrate/state"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// ack : a worker reporting a committed batch. done receives nil once the checkpoint covers
// the batch, or the error that stopped the committer
type ack struct {
	res  *load.CommitResult
	done chan error
}

func newAck(res *load.CommitResult) ack {
	return ack{res: res, done: make(chan error, 1)}
}

// committer : the only writer of the checkpoint. it folds acks into the watermark and
// persists every advance before releasing the workers it covers
type committer struct {
	store   state.Store
	sink    *reject.Sink
	abort   bool
	grace   time.Duration
	job     string
	wm      *watermark
	cp      state.Checkpoint
	saved   int64
	res     *Result
	waiting map[int64]chan error
	log     zerolog.Logger
}

func newCommitter(cfg *config.Config, store state.Store, sink *reject.Sink, from state.Checkpoint, res *Result, log zerolog.Logger) *committer {
	return &committer{
		store:   store,
		sink:    sink,
		abort:   cfg.OnRowError == config.OnRowErrorAbort,
		grace:   cfg.ShutdownGrace(),
		job:     cfg.Metrics.Job,
		wm:      newWatermark(from.Offset),
		cp:      from,
		saved:   from.Offset,
		res:     res,
		waiting: map[int64]chan error{},
		log:     log.With().Str("component", "committer").Logger(),
	}
}

// offset : the last offset the store accepted
func (c *committer) offset() int64 {
	return c.saved
}

// release : done is buffered and answered at most once, a worker that already left never
// blocks the committer
func release(done chan error, err error) {
	select {
	case done <- err:
	default:
	}
}

// run : consumes acks until the channel is closed. after the first failure every ack still
// coming in is answered with that failure so no worker is left waiting
func (c *committer) run(ctx context.Context, acks <-chan ack) error {
	var failed error
	for a := range acks {
		if failed != nil {
			release(a.done, failed)
			continue
		}
		if err := c.handle(ctx, a); err != nil {
			failed = err
			release(a.done, err)
			for seq, done := range c.waiting {
				release(done, err)
				delete(c.waiting, seq)
			}
		}
	}
	return failed
}

func (c *committer) handle(ctx context.Context, a ack) error {
	r := a.res
	c.res.Batches++
	c.res.RowsWritten += r.Written
	c.res.Retries += int64(r.Retries)
	metrics.RecordBatch(c.job, r.Retries, r.Duration)
	metrics.RecordRows(c.job, "extracted", r.End-r.Start)
	metrics.RecordRows(c.job, "written", r.Written)

	if n := int64(len(r.Rejected)); n > 0 {
		c.res.RowsRejected += n
		metrics.RecordRows(c.job, "rejected", n)
		if c.abort {
			var rejected error
			for _, rj := range r.Rejected {
				rejected = multierror.Append(rejected, fmt.Errorf("offset %d : %s", rj.Offset, rj.Reason))
			}
			return errs.New(errs.Permanent, fmt.Errorf("batch %d [%d,%d) has %d rejected rows : %w", r.Seq, r.Start, r.End, n, rejected))
		}
		if err := c.sink.Write(r.Rejected); err != nil {
			return err
		}
		c.log.Warn().Int64("seq", r.Seq).Int64("rejected", n).Str("file", c.sink.Path()).Msg("rows rejected")
	}

	ready := c.wm.add(r)
	if len(ready) == 0 {
		c.waiting[r.Seq] = a.done
		c.log.Debug().Int64("seq", r.Seq).Int("waiting", c.wm.gaps()).Msg("batch ahead of watermark")
		return nil
	}
	for _, d := range ready {
		c.cp.Rows += d.Written
		c.cp.Rejected += int64(len(d.Rejected))
		c.cp.Batches++
	}
	c.cp.Offset = c.wm.offset
	c.cp.UpdatedAt = time.Now().UTC()

	// a canceled run still records what it committed
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.grace)
	defer cancel()
	cp := c.cp
	if err := c.store.Set(pctx, &cp); err != nil {
		return fmt.Errorf("persist checkpoint at %d : %w", c.cp.Offset, err)
	}
	c.saved = c.cp.Offset
	for _, d := range ready {
		if d.Seq == r.Seq {
			release(a.done, nil)
			continue
		}
		if done, ok := c.waiting[d.Seq]; ok {
			release(done, nil)
			delete(c.waiting, d.Seq)
		}
	}
	c.log.Debug().Int64("offset", c.cp.Offset).Int64("batches", c.cp.Batches).Msg("checkpoint")
	return nil
}

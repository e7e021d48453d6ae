// package load
//
// groups extracted rows into batches and writes them to the destination
package load

import (
	"context"
	"fmt"
	"time"

	"github.com/baderkha/table-transfer/pkg/migrate/table"
)

// Batcher : cuts the row stream into batches of Size rows. a partial batch is flushed once
// MaxWait has passed since its first row so slow sources still make progress
type Batcher struct {
	Size    int
	MaxWait time.Duration
}

// Run : reads in until it is closed and sends batches to out, numbering them from 0 and
// starting at startOffset. out is closed when Run returns
func (b *Batcher) Run(ctx context.Context, startOffset int64, in <-chan table.Row, out chan<- *table.Batch) error {
	defer close(out)
	if b.Size <= 0 {
		return fmt.Errorf("batch size must be > 0")
	}

	var (
		seq     int64
		offset  = startOffset
		current = make([]table.Row, 0, b.Size)
		timer   *time.Timer
		timeout <-chan time.Time
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer, timeout = nil, nil
		}
	}
	defer stopTimer()

	flush := func() error {
		stopTimer()
		if len(current) == 0 {
			return nil
		}
		batch := &table.Batch{Seq: seq, Start: offset, Rows: current}
		select {
		case out <- batch:
		case <-ctx.Done():
			return ctx.Err()
		}
		seq++
		offset += int64(len(current))
		current = make([]table.Row, 0, b.Size)
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			timer, timeout = nil, nil
			if err := flush(); err != nil {
				return err
			}
		case row, ok := <-in:
			if !ok {
				return flush()
			}
			current = append(current, row)
			if len(current) == 1 && b.MaxWait > 0 {
				timer = time.NewTimer(b.MaxWait)
				timeout = timer.C
			}
			if len(current) >= b.Size {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
}

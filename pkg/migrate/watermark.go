package migrate

import "github.com/baderkha/table-transfer/pkg/migrate/load"

// watermark : highest offset below which every batch is committed. batches finish in any
// order, one that arrives ahead of a gap waits in pending until the gap closes
type watermark struct {
	next    int64
	offset  int64
	pending map[int64]*load.CommitResult
}

func newWatermark(offset int64) *watermark {
	return &watermark{offset: offset, pending: map[int64]*load.CommitResult{}}
}

// add : records r and returns, in sequence order, the results that became contiguous
func (w *watermark) add(r *load.CommitResult) []*load.CommitResult {
	w.pending[r.Seq] = r
	var ready []*load.CommitResult
	for {
		next, ok := w.pending[w.next]
		if !ok {
			return ready
		}
		delete(w.pending, w.next)
		w.next++
		w.offset = next.End
		ready = append(ready, next)
	}
}

// gaps : batches committed but not yet covered by the watermark
func (w *watermark) gaps() int {
	return len(w.pending)
}

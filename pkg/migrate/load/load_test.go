package load

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/baderkha/table-transfer/pkg/migrate/errs"
	"github.com/baderkha/table-transfer/pkg/migrate/table"
	"github.com/baderkha/table-transfer/pkg/migrate/target"
	"github.com/davecgh/go-spew/spew"
	"github.com/rs/zerolog"
)

var (
	errFlaky = errors.New("connection reset")
	errBad   = errors.New("value out of range")
)

// fakeDest : keyed in-memory table. failTransient fails that many writes before succeeding,
// badKeys are refused as permanent errors whenever they are part of a write
type fakeDest struct {
	mu            sync.Mutex
	rows          map[any]table.Row
	failTransient int
	badKeys       map[any]bool
	writes        int
}

func newFakeDest() *fakeDest {
	return &fakeDest{rows: map[any]table.Row{}, badKeys: map[any]bool{}}
}

func (f *fakeDest) Driver() string { return "fake" }
func (f *fakeDest) Columns(context.Context, string) ([]string, bool, error) {
	return nil, false, nil
}
func (f *fakeDest) CreateSQL(*target.TableDef) string  { return "" }
func (f *fakeDest) Exec(context.Context, string) error { return nil }
func (f *fakeDest) Close() error                       { return nil }
func (f *fakeDest) Count(context.Context, string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.rows)), nil
}

func (f *fakeDest) WriteBatch(_ context.Context, _ *target.TableDef, rows []table.Row) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.failTransient > 0 {
		f.failTransient--
		return 0, errFlaky
	}
	for _, r := range rows {
		if f.badKeys[r[0]] {
			return 0, errBad
		}
	}
	var n int64
	for _, r := range rows {
		if _, ok := f.rows[r[0]]; !ok {
			f.rows[r[0]] = r
			n++
		}
	}
	return n, nil
}

func (f *fakeDest) Classify(err error) errs.Kind {
	switch {
	case errors.Is(err, errFlaky):
		return errs.Transient
	case errors.Is(err, errBad):
		return errs.Permanent
	}
	return errs.Unknown
}

func testSchema() *table.Schema {
	return &table.Schema{
		Name: "t",
		Columns: []table.Column{
			{Name: "id", Position: 0, PrimaryKey: true},
			{Name: "v", Position: 1, Nullable: true},
		},
		KeyColumns: []string{"id"},
	}
}

func newTestLoader(dest target.Destination, attempts int) (*Loader, *[]time.Duration) {
	s := testSchema()
	def := &target.TableDef{Name: "t", Columns: []target.ColumnDef{{Name: "id", Type: "INTEGER"}, {Name: "v", Type: "TEXT", Nullable: true}}, Key: []string{"id"}}
	l := NewLoader(dest, def, s, Backoff{MaxAttempts: attempts, Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond, Multiplier: 2}, zerolog.Nop())
	var slept []time.Duration
	l.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return l, &slept
}

func batchOf(seq, start int64, n int) *table.Batch {
	b := &table.Batch{Seq: seq, Start: start}
	for i := 0; i < n; i++ {
		b.Rows = append(b.Rows, table.Row{start + int64(i), "x"})
	}
	return b
}

func TestLoadRetriesTransientThenCommitsOnce(t *testing.T) {
	dest := newFakeDest()
	dest.failTransient = 2
	l, slept := newTestLoader(dest, 5)

	res, err := l.Load(context.Background(), batchOf(0, 0, 10))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Attempts != 3 || res.Retries != 2 || res.Written != 10 {
		t.Fatalf("unexpected result %s", spew.Sdump(res))
	}
	if n, _ := dest.Count(context.Background(), "t"); n != 10 {
		t.Fatalf("expected 10 rows once, got %d", n)
	}
	if len(*slept) != 2 || (*slept)[0] != 10*time.Millisecond || (*slept)[1] != 20*time.Millisecond {
		t.Fatalf("unexpected backoff %v", *slept)
	}
}

func TestLoadGivesUp(t *testing.T) {
	dest := newFakeDest()
	dest.failTransient = 10
	l, _ := newTestLoader(dest, 3)
	_, err := l.Load(context.Background(), batchOf(4, 2000, 5))
	if !errs.Is(err, errs.Transient) {
		t.Fatalf("expected Transient, got %v", err)
	}
	if dest.writes != 3 {
		t.Fatalf("expected 3 attempts, got %d", dest.writes)
	}
}

func TestLoadIsolatesPermanentRows(t *testing.T) {
	dest := newFakeDest()
	dest.badKeys[int64(3)] = true
	dest.badKeys[int64(7)] = true
	l, _ := newTestLoader(dest, 3)

	res, err := l.Load(context.Background(), batchOf(0, 0, 10))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Written != 8 || len(res.Rejected) != 2 {
		t.Fatalf("unexpected result %s", spew.Sdump(res))
	}
	if res.Rejected[0].Offset != 3 || res.Rejected[1].Offset != 7 {
		t.Fatalf("rejected offsets %d %d", res.Rejected[0].Offset, res.Rejected[1].Offset)
	}
}

func TestLoadRejectsNullsUpFront(t *testing.T) {
	dest := newFakeDest()
	l, _ := newTestLoader(dest, 1)
	b := batchOf(0, 100, 3)
	b.Rows[1][0] = nil
	res, err := l.Load(context.Background(), b)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Written != 2 || len(res.Rejected) != 1 || res.Rejected[0].Offset != 101 {
		t.Fatalf("unexpected result %s", spew.Sdump(res))
	}
}

func TestLoadUnknownIsFatal(t *testing.T) {
	dest := &erroringDest{fakeDest: newFakeDest()}
	l, _ := newTestLoader(dest, 5)
	_, err := l.Load(context.Background(), batchOf(0, 0, 1))
	if !errs.Is(err, errs.Unknown) {
		t.Fatalf("expected Unknown, got %v", err)
	}
}

type erroringDest struct{ *fakeDest }

func (e *erroringDest) WriteBatch(context.Context, *target.TableDef, []table.Row) (int64, error) {
	return 0, errors.New("relation does not exist")
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 3}
	for n, want := range map[int]time.Duration{1: 100 * time.Millisecond, 2: 300 * time.Millisecond, 3: 900 * time.Millisecond, 4: time.Second} {
		if got := b.Delay(n); got != want {
			t.Errorf("Delay(%d) = %s, want %s", n, got, want)
		}
	}
}

func TestDigestStable(t *testing.T) {
	a := batchOf(0, 0, 5).Rows
	b := batchOf(0, 0, 5).Rows
	if Digest(a) != Digest(b) {
		t.Fatal("same rows should hash the same")
	}
	b[2][1] = "y"
	if Digest(a) == Digest(b) {
		t.Fatal("different rows should hash differently")
	}
}

func runBatcher(t *testing.T, b *Batcher, rows int, start int64) []*table.Batch {
	t.Helper()
	in := make(chan table.Row)
	out := make(chan *table.Batch, rows+1)
	errc := make(chan error, 1)
	go func() { errc <- b.Run(context.Background(), start, in, out) }()
	for i := 0; i < rows; i++ {
		in <- table.Row{int64(i)}
	}
	close(in)
	var got []*table.Batch
	for batch := range out {
		got = append(got, batch)
	}
	if err := <-errc; err != nil {
		t.Fatalf("Run: %v", err)
	}
	return got
}

func TestBatcherSizes(t *testing.T) {
	const bs = 500
	for _, n := range []int{0, 1, bs - 1, bs, bs + 1, 2500} {
		got := runBatcher(t, &Batcher{Size: bs}, n, 0)
		want := (n + bs - 1) / bs
		if len(got) != want {
			t.Fatalf("n=%d: %d batches, want %d", n, len(got), want)
		}
		var next int64
		for i, b := range got {
			if b.Seq != int64(i) || b.Start != next || b.Len() > bs {
				t.Fatalf("n=%d: batch %d seq=%d start=%d len=%d", n, i, b.Seq, b.Start, b.Len())
			}
			next = b.End()
		}
		if next != int64(n) {
			t.Fatalf("n=%d: batches cover %d rows", n, next)
		}
	}
}

func TestBatcherStartOffset(t *testing.T) {
	got := runBatcher(t, &Batcher{Size: 10}, 15, 1000)
	if got[0].Start != 1000 || got[1].Start != 1010 || got[1].End() != 1015 {
		t.Fatalf("unexpected offsets %d %d", got[0].Start, got[1].Start)
	}
}

func TestBatcherMaxWait(t *testing.T) {
	b := &Batcher{Size: 100, MaxWait: 20 * time.Millisecond}
	in := make(chan table.Row)
	out := make(chan *table.Batch, 4)
	go func() { _ = b.Run(context.Background(), 0, in, out) }()
	in <- table.Row{1}
	in <- table.Row{2}
	select {
	case batch := <-out:
		if batch.Len() != 2 {
			t.Fatalf("expected partial batch of 2, got %d", batch.Len())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("partial batch was never flushed")
	}
	close(in)
}

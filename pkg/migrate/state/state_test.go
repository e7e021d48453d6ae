package state

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/davecgh/go-spew/spew"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

var scope = Scope{SourceTable: "shop.orders", DestinationTable: "orders"}

// exerciseStore : the contract every checkpoint store has to honour
func exerciseStore(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	cp, err := st.Get(ctx, scope)
	if err != nil || cp != nil {
		t.Fatalf("fresh store Get = %v, %v", cp, err)
	}
	if err := st.Set(ctx, &Checkpoint{Scope: scope, Offset: 500, RunID: "r1", Rows: 500, Batches: 1}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := st.Set(ctx, &Checkpoint{Scope: scope, Offset: 1000, RunID: "r1", Rows: 990, Rejected: 10, Batches: 2}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	cp, err = st.Get(ctx, scope)
	if err != nil || cp == nil {
		t.Fatalf("Get = %v, %v", cp, err)
	}
	if cp.Offset != 1000 || cp.Rows != 990 || cp.Rejected != 10 || cp.Batches != 2 || cp.RunID != "r1" || cp.UpdatedAt.IsZero() {
		t.Fatalf("unexpected checkpoint %s", spew.Sdump(cp))
	}

	other := Scope{SourceTable: "shop.orders", DestinationTable: "orders_v2"}
	if cp, _ := st.Get(ctx, other); cp != nil {
		t.Fatalf("scopes must not share checkpoints: %s", spew.Sdump(cp))
	}

	if err := st.Reset(ctx, scope); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if cp, err := st.Get(ctx, scope); err != nil || cp != nil {
		t.Fatalf("after Reset Get = %v, %v", cp, err)
	}
	if err := st.Reset(ctx, scope); err != nil {
		t.Fatalf("Reset of a missing checkpoint should be a no-op: %v", err)
	}
}

func TestSqliteStore(t *testing.T) {
	m, err := NewSqliteManager(context.Background(), filepath.Join(t.TempDir(), "state.sqlite"), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	exerciseStore(t, m)
}

func TestSqliteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.sqlite")
	ctx := context.Background()
	m, err := NewSqliteManager(ctx, path, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Set(ctx, &Checkpoint{Scope: scope, Offset: 42, RunID: "r"}); err != nil {
		t.Fatal(err)
	}
	_ = m.Close()

	m, err = NewSqliteManager(ctx, path, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	cp, err := m.Get(ctx, scope)
	if err != nil || cp == nil || cp.Offset != 42 {
		t.Fatalf("checkpoint lost across reopen: %v %v", cp, err)
	}
}

func exerciseManager(t *testing.T, m Manager) {
	t.Helper()
	ctx := context.Background()
	if r, err := m.GetLastRun(ctx); err != nil || r != nil {
		t.Fatalf("empty run log GetLastRun = %v, %v", r, err)
	}
	other := Scope{SourceTable: "customers", DestinationTable: "customers"}
	if err := m.InitRunLog(ctx, "other", other, 0); err != nil {
		t.Fatal(err)
	}
	if err := m.InitRunLog(ctx, "a", scope, 0); err != nil {
		t.Fatal(err)
	}
	if err := m.FailedRunLog(ctx, "a", 500, 500, errors.New("boom")); err != nil {
		t.Fatal(err)
	}
	if err := m.InitRunLog(ctx, "b", scope, 500); err != nil {
		t.Fatal(err)
	}
	if err := m.OnShutDownEv(ctx, scope); err != nil {
		t.Fatal(err)
	}
	if o, _ := m.GetRunLog(ctx, "other"); o == nil || o.Status != Started {
		t.Fatalf("shutdown of %s touched another scope %s", scope.SourceTable, spew.Sdump(o))
	}
	a, _ := m.GetRunLog(ctx, "a")
	if a == nil || a.Status != Failed || a.ErrMsg != "boom" || a.EndOffset != 500 {
		t.Fatalf("unexpected run a %s", spew.Sdump(a))
	}
	b, _ := m.GetLastRun(ctx)
	if b == nil || b.RunID != "b" || b.Status != Aborted || b.StartOffset != 500 {
		t.Fatalf("unexpected last run %s", spew.Sdump(b))
	}

	if err := m.InitRunLog(ctx, "c", scope, 500); err != nil {
		t.Fatal(err)
	}
	if err := m.PassedRunLog(ctx, "c", 2500, 2000); err != nil {
		t.Fatal(err)
	}
	c, _ := m.GetRunLog(ctx, "c")
	if c == nil || c.Status != Success || c.RowsWritten != 2000 {
		t.Fatalf("unexpected run c %s", spew.Sdump(c))
	}
}

func TestSqliteRunLog(t *testing.T) {
	m, err := NewSqliteManager(context.Background(), filepath.Join(t.TempDir(), "state.sqlite"), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	exerciseManager(t, m)
}

func TestLogManagerRunLog(t *testing.T) {
	exerciseManager(t, NewLogManager(zerolog.Nop()))
}

func TestFileStore(t *testing.T) {
	fs := afero.NewMemMapFs()
	st, err := NewFileStore(fs, "/var/lib/transfer")
	if err != nil {
		t.Fatal(err)
	}
	exerciseStore(t, st)

	_ = st.Set(context.Background(), &Checkpoint{Scope: scope, Offset: 7})
	if ok, _ := afero.Exists(fs, st.path(scope)+".tmp"); ok {
		t.Fatal("temp file left behind")
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	fs := afero.NewMemMapFs()
	st, _ := NewFileStore(fs, "/s")
	_ = afero.WriteFile(fs, st.path(scope), []byte("{not json"), 0o644)
	if _, err := st.Get(context.Background(), scope); err == nil {
		t.Fatal("a corrupt checkpoint must not read as empty")
	}
}

// fakeS3 : in-memory bucket behind the s3iface.S3API methods the store uses
type fakeS3 struct {
	s3iface.S3API
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "no such key", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Bucket+"/"+*in.Key] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjectWithContext(_ aws.Context, in *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *in.Bucket+"/"+*in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	st := NewS3Store(fake, "bucket", "transfers/prod")
	exerciseStore(t, st)

	_ = st.Set(context.Background(), &Checkpoint{Scope: scope, Offset: 1})
	if _, ok := fake.objects["bucket/transfers/prod/checkpoint-"+scope.Key()+".json"]; !ok {
		t.Fatalf("unexpected object keys %v", fake.objects)
	}
}

func TestScopeKey(t *testing.T) {
	a := Scope{SourceTable: "a", DestinationTable: "b"}
	if a.Key() != a.Key() || len(a.Key()) != 32 {
		t.Fatalf("unexpected key %q", a.Key())
	}
	if a.Key() == (Scope{SourceTable: "b", DestinationTable: "a"}).Key() {
		t.Fatal("swapped tables share a key")
	}
}

// package reject
//
// rows the destination refused, kept as json lines so they can be fixed and replayed by hand
package reject

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/baderkha/table-transfer/pkg/migrate/load"
	"github.com/spf13/afero"
)

// Record : one line of a reject file
type Record struct {
	RunID  string    `json:"run_id"`
	Table  string    `json:"table"`
	Offset int64     `json:"offset"`
	Row    []any     `json:"row"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Sink : append only reject file for one run. the file is created on the first write so a
// clean run leaves nothing behind. not safe for concurrent use, the committer owns it
type Sink struct {
	fs    afero.Fs
	path  string
	runID string
	table string
	f     afero.File
	enc   *json.Encoder
	n     int64
	now   func() time.Time
}

func NewSink(fs afero.Fs, dir, table, runID string) *Sink {
	return &Sink{
		fs:    fs,
		path:  filepath.Join(dir, fmt.Sprintf("%s-%s.jsonl", table, runID)),
		runID: runID,
		table: table,
		now:   time.Now,
	}
}

// Path : where rejects of this run go
func (s *Sink) Path() string { return s.path }

// Count : rejects written so far
func (s *Sink) Count() int64 { return s.n }

func (s *Sink) Write(rejected []load.Rejected) error {
	if len(rejected) == 0 {
		return nil
	}
	if s.f == nil {
		if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			return fmt.Errorf("reject : create %s : %w", filepath.Dir(s.path), err)
		}
		f, err := s.fs.Create(s.path)
		if err != nil {
			return fmt.Errorf("reject : create %s : %w", s.path, err)
		}
		s.f, s.enc = f, json.NewEncoder(f)
	}
	for _, r := range rejected {
		rec := Record{RunID: s.runID, Table: s.table, Offset: r.Offset, Row: r.Row, Reason: r.Reason, At: s.now().UTC()}
		if err := s.enc.Encode(rec); err != nil {
			return fmt.Errorf("reject : write %s : %w", s.path, err)
		}
		s.n++
	}
	return nil
}

// Close : syncs and closes the file when one was opened
func (s *Sink) Close() error {
	if s.f == nil {
		return nil
	}
	if err := s.f.Sync(); err != nil {
		_ = s.f.Close()
		return err
	}
	return s.f.Close()
}

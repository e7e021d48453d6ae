// package state
//
// where a transfer remembers how far it got (checkpoints) and what happened to each run
// (run log)
package state

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/zeebo/xxh3"
)

type RunLogState string

const (
	Started RunLogState = "STARTED"
	Success RunLogState = "SUCCESS"
	Aborted RunLogState = "ABORTED"
	Failed  RunLogState = "FAILED"
)

// Scope : a checkpoint belongs to one source table -> destination table pair
type Scope struct {
	SourceTable      string `json:"source_table"`
	DestinationTable string `json:"destination_table"`
}

// Key : stable short id for the pair, used in file and object names
func (s Scope) Key() string {
	h := xxh3.HashString128(s.SourceTable + "|" + s.DestinationTable).Bytes()
	return hex.EncodeToString(h[:])
}

// Checkpoint : Offset source rows (in key order) are durably handled at the destination
type Checkpoint struct {
	Scope     Scope     `json:"scope"`
	Offset    int64     `json:"offset"`
	RunID     string    `json:"run_id"`
	Rows      int64     `json:"rows_written"`
	Rejected  int64     `json:"rows_rejected"`
	Batches   int64     `json:"batches"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store : durable checkpoint storage
type Store interface {
	// Get : nil without error when the scope has no checkpoint yet
	Get(ctx context.Context, scope Scope) (*Checkpoint, error)
	Set(ctx context.Context, cp *Checkpoint) error
	Reset(ctx context.Context, scope Scope) error
	Close() error
}

// RunLog : one attempt at a transfer
type RunLog struct {
	RunID            string      `json:"run_id" db:"run_id"`
	SourceTable      string      `json:"source_table" db:"source_table"`
	DestinationTable string      `json:"destination_table" db:"destination_table"`
	StartOffset      int64       `json:"start_offset" db:"start_offset"`
	EndOffset        int64       `json:"end_offset" db:"end_offset"`
	RowsWritten      int64       `json:"rows_written" db:"rows_written"`
	Status           RunLogState `json:"status" db:"status"`
	ErrMsg           string      `json:"err_msg" db:"err_msg"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"`
}

// Manager : run log bookkeeping
type Manager interface {
	// GetLastRun : most recent run, nil when there is none
	GetLastRun(ctx context.Context) (*RunLog, error)
	GetRunLog(ctx context.Context, runID string) (*RunLog, error)
	InitRunLog(ctx context.Context, runID string, scope Scope, startOffset int64) error
	PassedRunLog(ctx context.Context, runID string, endOffset, rows int64) error
	FailedRunLog(ctx context.Context, runID string, endOffset, rows int64, err error) error
	// OnShutDownEv : marks runs of scope still STARTED as ABORTED
	OnShutDownEv(ctx context.Context, scope Scope) error
}

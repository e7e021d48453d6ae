// package migrate
//
// moves one table from a source database to a destination database in key order, batch by
// batch, remembering how far it got so an interrupted run picks up where it stopped
package migrate

import (
	"context"
	"time"
)

// State : where a run is (or ended)
type State string

const (
	Init         State = "Init"
	SchemaSync   State = "SchemaSync"
	Transferring State = "Transferring"
	Completed    State = "Completed"
	Failed       State = "Failed"
	// Canceled : Failed because the run was interrupted, not because something broke
	Canceled State = "Canceled"
)

// Result : outcome of a run. counters cover this run only, Checkpoint is the committed offset
// across every run of the same table pair
type Result struct {
	State        State
	RunID        string
	Checkpoint   int64
	Batches      int64
	RowsWritten  int64
	RowsRejected int64
	Retries      int64
	Duration     time.Duration
	// RejectsPath : json lines file holding the rejected rows, empty when there were none
	RejectsPath string
	Warnings    []string
}

// Runner : runs a table transfer
type Runner interface {
	Run(ctx context.Context) (*Result, error)
	Close() error
}

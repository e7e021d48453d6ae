// package metrics
//
// backend agnostic counters and timings for a transfer. the default backend drops
// everything so callers never need to check whether metrics are configured
package metrics

import "time"

const (
	StepTotal       = "transfer_step_total"
	StepDuration    = "transfer_step_duration_seconds"
	RowsTotal       = "transfer_rows_total"
	BatchesTotal    = "transfer_batches_total"
	RetriesTotal    = "transfer_retries_total"
	BatchDuration   = "transfer_batch_duration_seconds"
	StatusSucceeded = "success"
	StatusFailed    = "failure"
)

// Labels : key value pairs attached to a metric
type Labels map[string]string

// Backend : where metrics end up
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush : push or drain buffered metrics, called once at the end of a run
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend : nil keeps the current backend
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

func Flush() error {
	return backend.Flush()
}

// RecordStep : one pipeline stage (introspect, schema_sync, transfer, verify) finished
func RecordStep(job, step string, err error, d time.Duration) {
	status := StatusSucceeded
	if err != nil {
		status = StatusFailed
	}
	lbls := Labels{"job": job, "step": step, "status": status}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRows : kind is one of extracted, written, rejected
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordBatch : a batch committed after retries extra attempts
func RecordBatch(job string, retries int, d time.Duration) {
	lbls := Labels{"job": job}
	backend.IncCounter(BatchesTotal, 1, lbls)
	backend.ObserveHistogram(BatchDuration, d.Seconds(), lbls)
	if retries > 0 {
		backend.IncCounter(RetriesTotal, float64(retries), lbls)
	}
}

// package prompush
//
// metrics.Backend that collects into a private registry and pushes it to a prometheus
// pushgateway on Flush. a transfer is a batch job, nothing is around to be scraped
package prompush

import (
	"fmt"

	"github.com/baderkha/table-transfer/pkg/migrate/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	stepCounter   *prometheus.CounterVec
	stepDuration  *prometheus.SummaryVec
	rowCounter    *prometheus.CounterVec
	batchCounter  prometheus.Counter
	retryCounter  prometheus.Counter
	batchDuration prometheus.Histogram
}

// NewBackend : jobName is the pushgateway grouping key
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush : gateway url is required")
	}
	if jobName == "" {
		jobName = "table_transfer"
	}
	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Transfer stages run, by stage and outcome.",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Duration of transfer stages in seconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"step", "status"}),
		rowCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Rows by outcome (extracted, written, rejected).",
		}, []string{"kind"}),
		batchCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Batches committed at the destination.",
		}),
		retryCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.RetriesTotal,
			Help: "Extra write attempts caused by transient failures.",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metrics.BatchDuration,
			Help:    "Time to commit one batch in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
	for _, c := range []prometheus.Collector{b.stepCounter, b.stepDuration, b.rowCounter, b.batchCounter, b.retryCounter, b.batchDuration} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush : register : %w", err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case metrics.RowsTotal:
		b.rowCounter.WithLabelValues(labels["kind"]).Add(delta)
	case metrics.BatchesTotal:
		b.batchCounter.Add(delta)
	case metrics.RetriesTotal:
		b.retryCounter.Add(delta)
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case metrics.StepDuration:
		b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
	case metrics.BatchDuration:
		b.batchDuration.Observe(value)
	}
}

// Flush : replaces the job's metric group on the gateway
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).Gatherer(b.reg).Push()
}

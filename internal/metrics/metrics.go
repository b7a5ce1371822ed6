// Package metrics collects prometheus counters for a single generation run.
//
// randgraph is a one-shot process, so the registry is not served over HTTP;
// it is written to a node_exporter textfile or pushed to a Pushgateway when
// the run ends.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "randgraph"

const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Recorder owns a private registry with the run counters.
type Recorder struct {
	registry *prometheus.Registry

	NodesCreated         *prometheus.CounterVec
	RelationshipsCreated *prometheus.CounterVec
	IsolatedFound        prometheus.Counter
	Attachments          *prometheus.CounterVec
	StoreTransactions    *prometheus.CounterVec
}

// NewRecorder creates the counters and registers them on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		NodesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "nodes_created_total", Help: "Vertices created"},
			[]string{"label"},
		),
		RelationshipsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "relationships_created_total", Help: "Edges created"},
			[]string{"type"},
		),
		IsolatedFound: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "isolated_vertices_total", Help: "Isolated vertices found after generation"},
		),
		Attachments: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "attachments_total", Help: "Isolated vertex repairs by outcome"},
			[]string{"outcome"},
		),
		StoreTransactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "store_transactions_total", Help: "Store transactions by operation and result"},
			[]string{"operation", "result"},
		),
	}
	r.registry.MustRegister(
		r.NodesCreated,
		r.RelationshipsCreated,
		r.IsolatedFound,
		r.Attachments,
		r.StoreTransactions,
	)
	return r
}

// Registry exposes the underlying registry as a gatherer.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) NodeCreated(label string) {
	r.NodesCreated.WithLabelValues(label).Inc()
}

func (r *Recorder) RelationshipCreated(relType string) {
	r.RelationshipsCreated.WithLabelValues(relType).Inc()
}

func (r *Recorder) IsolatedVertices(n int) {
	r.IsolatedFound.Add(float64(n))
}

func (r *Recorder) Attachment(outcome string) {
	r.Attachments.WithLabelValues(outcome).Inc()
}

// StoreTransaction counts one store operation, labelled by whether err is nil.
func (r *Recorder) StoreTransaction(operation string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	r.StoreTransactions.WithLabelValues(operation, result).Inc()
}

// WriteTextfile writes the registry in the text exposition format, atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

// Push sends the registry to a Pushgateway, grouped by run ID.
func (r *Recorder) Push(ctx context.Context, url, job, runID string) error {
	pusher := push.New(url, job).Gatherer(r.registry)
	if runID != "" {
		pusher = pusher.Grouping("run_id", runID)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}

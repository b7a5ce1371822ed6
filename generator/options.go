package generator

import (
	"math/rand"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Metrics receives run counters. internal/metrics.Recorder implements it.
type Metrics interface {
	NodeCreated(label string)
	RelationshipCreated(relType string)
	IsolatedVertices(n int)
	Attachment(outcome string)
	StoreTransaction(operation string, err error)
}

type nopMetrics struct{}

func (nopMetrics) NodeCreated(string) {}
func (nopMetrics) RelationshipCreated(string) {}
func (nopMetrics) IsolatedVertices(int) {}
func (nopMetrics) Attachment(string) {}
func (nopMetrics) StoreTransaction(string, error) {}

// Option configures a Generator.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	tracer  trace.Tracer
	metrics Metrics
	runID   string
	rng     *rand.Rand
}

// WithLogger sets the logger for progress and per-operation debug lines.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTracer sets the tracer used for step and store spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithMetrics sets the counters sink.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(o *options) {
		o.runID = id
	}
}

// WithRand supplies the random source directly, ignoring Config.Seed. Runs
// using it report a seed of 0, so they cannot be replayed from the report.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) {
		o.rng = rng
	}
}

package generator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/randgraph/randgraph/graphs"
)

// Store operation names, used as span suffixes and metric labels.
const (
	OpWipe               = "wipe"
	OpCreateNode         = "create_node"
	OpCreateRelationship = "create_relationship"
	OpIsolatedNodes      = "isolated_nodes"
	OpAttachCandidates   = "attach_candidates"
	OpStats              = "stats"
)

// Attribute keys
const (
	AttrRunID       = "randgraph.run.id"
	AttrSeed        = "randgraph.seed"
	AttrOperation   = "randgraph.store.operation"
	AttrNodeName    = "randgraph.node.name"
	AttrNodeLabel   = "randgraph.node.label"
	AttrRelType     = "randgraph.relationship.type"
	AttrResultCount = "randgraph.result.count"
)

// instrumentedStore wraps every store call in a span, a metrics sample and a
// debug log line.
type instrumentedStore struct {
	next    graphs.Store
	tracer  trace.Tracer
	metrics Metrics
	logger  *zap.Logger
}

var _ graphs.Store = (*instrumentedStore)(nil)

func (s *instrumentedStore) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String(AttrOperation, op))
	return s.tracer.Start(ctx, "store."+op, trace.WithAttributes(attrs...))
}

func (s *instrumentedStore) finish(span trace.Span, op string, started time.Time, err error) {
	defer span.End()

	s.metrics.StoreTransaction(op, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Debug("store operation failed",
			zap.String("operation", op),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err))
		return
	}
	span.SetStatus(codes.Ok, "")
	s.logger.Debug("store operation",
		zap.String("operation", op),
		zap.Duration("elapsed", time.Since(started)))
}

func (s *instrumentedStore) Wipe(ctx context.Context) (err error) {
	started := time.Now()
	ctx, span := s.start(ctx, OpWipe)
	defer func() { s.finish(span, OpWipe, started, err) }()

	return s.next.Wipe(ctx)
}

func (s *instrumentedStore) CreateNode(ctx context.Context, node graphs.Node) (err error) {
	started := time.Now()
	ctx, span := s.start(ctx, OpCreateNode,
		attribute.String(AttrNodeName, node.Name),
		attribute.String(AttrNodeLabel, node.Label))
	defer func() { s.finish(span, OpCreateNode, started, err) }()

	return s.next.CreateNode(ctx, node)
}

func (s *instrumentedStore) CreateRelationship(ctx context.Context, rel graphs.Relationship) (err error) {
	started := time.Now()
	ctx, span := s.start(ctx, OpCreateRelationship, attribute.String(AttrRelType, rel.Type))
	defer func() { s.finish(span, OpCreateRelationship, started, err) }()

	return s.next.CreateRelationship(ctx, rel)
}

func (s *instrumentedStore) IsolatedNodes(ctx context.Context) (nodes []graphs.Node, err error) {
	started := time.Now()
	ctx, span := s.start(ctx, OpIsolatedNodes)
	defer func() {
		span.SetAttributes(attribute.Int(AttrResultCount, len(nodes)))
		s.finish(span, OpIsolatedNodes, started, err)
	}()

	return s.next.IsolatedNodes(ctx)
}

func (s *instrumentedStore) AttachCandidates(ctx context.Context, anchorLabel, label string) (names []string, err error) {
	started := time.Now()
	ctx, span := s.start(ctx, OpAttachCandidates, attribute.String(AttrNodeLabel, label))
	defer func() {
		span.SetAttributes(attribute.Int(AttrResultCount, len(names)))
		s.finish(span, OpAttachCandidates, started, err)
	}()

	return s.next.AttachCandidates(ctx, anchorLabel, label)
}

func (s *instrumentedStore) Stats(ctx context.Context) (stats graphs.Stats, err error) {
	started := time.Now()
	ctx, span := s.start(ctx, OpStats)
	defer func() { s.finish(span, OpStats, started, err) }()

	return s.next.Stats(ctx)
}

// Close is not instrumented; the store's owner closes it.
func (s *instrumentedStore) Close(ctx context.Context) error {
	return s.next.Close(ctx)
}

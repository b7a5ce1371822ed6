// Package generator builds a random labeled graph in a graphs.Store and then
// repairs the vertices that ended up without any edge.
//
// A run has three steps, each a series of single-operation transactions:
//
//  1. Reset wipes the store.
//  2. Generate creates the vertices and, for every vertex pair, an edge with
//     probability LinkChance.
//  3. AttachIsolated links each isolated vertex to a same-labeled vertex that
//     neighbours an anchor-labeled vertex and has no same-labeled neighbour.
//
// A Generator is not safe for concurrent use.
package generator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/randgraph/randgraph/graphs"
)

// TracerName is the instrumentation scope of the generator's spans.
const TracerName = "github.com/randgraph/randgraph/generator"

// ErrNilStore is returned by New when no store is given.
var ErrNilStore = errors.New("graph store is nil")

// Generator drives one store through the generate-and-repair flow.
type Generator struct {
	store   graphs.Store
	config  Config
	rng     *rand.Rand
	seed    int64
	runID   string
	logger  *zap.Logger
	tracer  trace.Tracer
	metrics Metrics
}

// New validates config and prepares a generator over store.
func New(store graphs.Store, config Config, opts ...Option) (*Generator, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.tracer == nil {
		o.tracer = noop.NewTracerProvider().Tracer(TracerName)
	}
	if o.metrics == nil {
		o.metrics = nopMetrics{}
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}

	// A caller-supplied source has no known seed.
	var seed int64
	rng := o.rng
	if rng == nil {
		seed = config.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}

	logger := o.logger.With(zap.String("run_id", o.runID))
	return &Generator{
		store: &instrumentedStore{
			next:    store,
			tracer:  o.tracer,
			metrics: o.metrics,
			logger:  logger,
		},
		config:  config,
		rng:     rng,
		seed:    seed,
		runID:   o.runID,
		logger:  logger,
		tracer:  o.tracer,
		metrics: o.metrics,
	}, nil
}

// RunID returns the identifier attached to logs, spans and the report.
func (g *Generator) RunID() string {
	return g.runID
}

// Seed returns the seed the random source was created from, or 0 when the
// source was supplied with WithRand.
func (g *Generator) Seed() int64 {
	return g.seed
}

// Config returns the validated configuration.
func (g *Generator) Config() Config {
	return g.config
}

// Reset deletes every vertex and edge.
func (g *Generator) Reset(ctx context.Context) (err error) {
	ctx, span := g.tracer.Start(ctx, "generator.Reset")
	defer func() { endSpan(span, err) }()

	if err := g.store.Wipe(ctx); err != nil {
		return fmt.Errorf("failed to reset graph: %w", err)
	}
	return nil
}

// Generate creates TotalNodes vertices and the random edges between them.
// On failure the returned Graph holds what was written before the error.
func (g *Generator) Generate(ctx context.Context) (graph Graph, err error) {
	ctx, span := g.tracer.Start(ctx, "generator.Generate")
	defer func() {
		span.SetAttributes(
			attribute.Int("randgraph.nodes", len(graph.Nodes)),
			attribute.Int("randgraph.relationships", len(graph.Relationships)),
		)
		endSpan(span, err)
	}()

	graph.Nodes = make([]graphs.Node, 0, g.config.TotalNodes)
	for idx := 0; idx < g.config.TotalNodes; idx++ {
		node := graphs.NewNode(strconv.Itoa(idx), g.pick(g.config.VertexLabels))
		if err := g.store.CreateNode(ctx, node); err != nil {
			return graph, fmt.Errorf("failed to generate vertex %s: %w", node.Name, err)
		}
		g.metrics.NodeCreated(node.Label)
		graph.Nodes = append(graph.Nodes, node)
	}

	for i := 0; i < len(graph.Nodes); i++ {
		for j := i + 1; j < len(graph.Nodes); j++ {
			if g.rng.Float64() > g.config.LinkChance {
				continue
			}
			relType := g.pick(g.config.RelationshipTypes)
			source, target := graph.Nodes[i], graph.Nodes[j]
			if g.rng.Float64() >= 0.5 {
				source, target = target, source
			}

			rel := graphs.NewRelationship(source, target, relType)
			if err := g.store.CreateRelationship(ctx, rel); err != nil {
				return graph, fmt.Errorf("failed to generate edge %s: %w", rel, err)
			}
			g.metrics.RelationshipCreated(rel.Type)
			graph.Relationships = append(graph.Relationships, rel)
		}
	}

	g.logger.Debug("graph generated",
		zap.Int("nodes", len(graph.Nodes)),
		zap.Int("relationships", len(graph.Relationships)))
	return graph, nil
}

// AttachIsolated repairs every isolated vertex it can. Candidates are looked
// up again for each vertex, so earlier attachments are taken into account.
func (g *Generator) AttachIsolated(ctx context.Context) (attachments []Attachment, err error) {
	ctx, span := g.tracer.Start(ctx, "generator.AttachIsolated")
	defer func() { endSpan(span, err) }()

	isolated, err := g.store.IsolatedNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find isolated vertices: %w", err)
	}
	g.metrics.IsolatedVertices(len(isolated))
	span.SetAttributes(attribute.Int("randgraph.isolated", len(isolated)))

	attachments = make([]Attachment, 0, len(isolated))
	for _, node := range isolated {
		attachment, err := g.attach(ctx, node)
		if err != nil {
			return attachments, err
		}
		g.metrics.Attachment(string(attachment.Outcome))
		attachments = append(attachments, attachment)
	}
	return attachments, nil
}

func (g *Generator) attach(ctx context.Context, node graphs.Node) (Attachment, error) {
	if node.Label == "" {
		g.logger.Debug("isolated vertex has no label", zap.String("node", node.Name))
		return Attachment{Node: node, Outcome: OutcomeUnlabeled}, nil
	}

	candidates, err := g.store.AttachCandidates(ctx, g.config.AnchorLabel, node.Label)
	if err != nil {
		return Attachment{}, fmt.Errorf("failed to find candidates for vertex %s: %w", node.Name, err)
	}
	if len(candidates) == 0 {
		g.logger.Debug("no candidate for isolated vertex",
			zap.String("node", node.Name),
			zap.String("label", node.Label))
		return Attachment{Node: node, Outcome: OutcomeNoCandidate}, nil
	}

	rel := graphs.Relationship{Source: node.Name, Target: candidates[0], Type: g.config.AttachType()}
	if err := g.store.CreateRelationship(ctx, rel); err != nil {
		return Attachment{}, fmt.Errorf("failed to attach vertex %s: %w", node.Name, err)
	}
	g.metrics.RelationshipCreated(rel.Type)
	g.logger.Debug("isolated vertex attached", zap.Stringer("relationship", rel))
	return Attachment{Node: node, Outcome: OutcomeAttached, Relationship: &rel}, nil
}

// Run performs Reset, Generate and AttachIsolated in order.
func (g *Generator) Run(ctx context.Context) (report Report, err error) {
	report = Report{RunID: g.runID, Seed: g.seed, StartedAt: time.Now()}

	ctx, span := g.tracer.Start(ctx, "generator.Run", trace.WithAttributes(
		attribute.String(AttrRunID, g.runID),
		attribute.Int64(AttrSeed, g.seed),
	))
	defer func() {
		report.Duration = time.Since(report.StartedAt)
		endSpan(span, err)
	}()

	g.logger.Info("step 1: wiping the current graph")
	if err := g.Reset(ctx); err != nil {
		return report, err
	}

	g.logger.Info("step 2: generating vertices and edges")
	report.Graph, err = g.Generate(ctx)
	if err != nil {
		return report, err
	}

	g.logger.Info("step 3: attaching isolated vertices")
	report.Attachments, err = g.AttachIsolated(ctx)
	if err != nil {
		return report, err
	}

	g.logger.Info("done",
		zap.Int("nodes", len(report.Graph.Nodes)),
		zap.Int("relationships", len(report.Graph.Relationships)),
		zap.Int("attached", report.Count(OutcomeAttached)),
		zap.Int("unattached", report.Count(OutcomeNoCandidate)+report.Count(OutcomeUnlabeled)))
	return report, nil
}

// Isolated lists the vertices that currently have no edge.
func (g *Generator) Isolated(ctx context.Context) ([]graphs.Node, error) {
	return g.store.IsolatedNodes(ctx)
}

// Stats counts the stored vertices and edges.
func (g *Generator) Stats(ctx context.Context) (graphs.Stats, error) {
	return g.store.Stats(ctx)
}

func (g *Generator) pick(values []string) string {
	return values[g.rng.Intn(len(values))]
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

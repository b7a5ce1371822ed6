package generator

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/randgraph/randgraph/graphs"
	"github.com/randgraph/randgraph/graphs/memory"
	"github.com/randgraph/randgraph/internal/metrics"
)

func seededConfig(seed int64) Config {
	cfg := DefaultConfig()
	cfg.Seed = seed
	return cfg
}

func newTestGenerator(t *testing.T, store graphs.Store, cfg Config, opts ...Option) *Generator {
	t.Helper()
	gen, err := New(store, cfg, opts...)
	require.NoError(t, err)
	return gen
}

// failingStore fails the configured operation and delegates everything else.
type failingStore struct {
	*memory.Store
	failOn string
}

var errStoreDown = errors.New("store down")

func (s *failingStore) CreateRelationship(ctx context.Context, rel graphs.Relationship) error {
	if s.failOn == OpCreateRelationship {
		return errStoreDown
	}
	return s.Store.CreateRelationship(ctx, rel)
}

func (s *failingStore) IsolatedNodes(ctx context.Context) ([]graphs.Node, error) {
	if s.failOn == OpIsolatedNodes {
		return nil, errStoreDown
	}
	return s.Store.IsolatedNodes(ctx)
}

// unlabeledStore reports an extra isolated node without a label.
type unlabeledStore struct {
	*memory.Store
}

func (s *unlabeledStore) IsolatedNodes(ctx context.Context) ([]graphs.Node, error) {
	nodes, err := s.Store.IsolatedNodes(ctx)
	if err != nil {
		return nil, err
	}
	return append([]graphs.Node{graphs.NewNode("x", "")}, nodes...), nil
}

func TestNew(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNilStore)

	cfg := DefaultConfig()
	cfg.TotalNodes = 0
	_, err = New(memory.New(), cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	gen := newTestGenerator(t, memory.New(), seededConfig(7), WithRunID("run-7"))
	assert.Equal(t, "run-7", gen.RunID())
	assert.Equal(t, int64(7), gen.Seed())

	gen = newTestGenerator(t, memory.New(), DefaultConfig())
	assert.NotEmpty(t, gen.RunID())
	assert.NotZero(t, gen.Seed())
}

func TestGenerateShape(t *testing.T) {
	store := memory.New()
	cfg := seededConfig(42)
	gen := newTestGenerator(t, store, cfg)

	graph, err := gen.Generate(context.Background())
	require.NoError(t, err)

	require.Len(t, graph.Nodes, cfg.TotalNodes)
	for idx, node := range graph.Nodes {
		assert.Equal(t, strconv.Itoa(idx), node.Name)
		assert.Contains(t, cfg.VertexLabels, node.Label)
	}

	seen := make(map[[2]string]bool)
	for _, rel := range graph.Relationships {
		assert.NotEqual(t, rel.Source, rel.Target, "self loop %s", rel)
		assert.Contains(t, cfg.RelationshipTypes, rel.Type)

		src, _ := strconv.Atoi(rel.Source)
		dst, _ := strconv.Atoi(rel.Target)
		pair := [2]string{rel.Source, rel.Target}
		if src > dst {
			pair = [2]string{rel.Target, rel.Source}
		}
		assert.False(t, seen[pair], "pair considered twice: %s", rel)
		seen[pair] = true
	}

	assert.Equal(t, cfg.TotalNodes, store.Calls(memory.OpCreateNode))
	assert.Equal(t, len(graph.Relationships), store.Calls(memory.OpCreateRelationship))
	assert.Equal(t, graph.Nodes, store.Nodes())
	assert.Equal(t, graph.Relationships, store.Relationships())
}

func TestGenerateIsDeterministicForSeed(t *testing.T) {
	ctx := context.Background()

	first, err := newTestGenerator(t, memory.New(), seededConfig(1234)).Generate(ctx)
	require.NoError(t, err)
	second, err := newTestGenerator(t, memory.New(), seededConfig(1234)).Generate(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("same seed produced different graphs (-first +second):\n%s", diff)
	}

	other, err := newTestGenerator(t, memory.New(), seededConfig(4321)).Generate(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestGenerateWithRand(t *testing.T) {
	ctx := context.Background()
	cfg := seededConfig(99)

	viaSeed, err := newTestGenerator(t, memory.New(), cfg).Generate(ctx)
	require.NoError(t, err)
	withRand := newTestGenerator(t, memory.New(), cfg, WithRand(rand.New(rand.NewSource(99))))
	viaRand, err := withRand.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, viaSeed, viaRand)

	assert.Zero(t, withRand.Seed())
	report, err := withRand.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Seed)
}

func TestGenerateLinkChanceBounds(t *testing.T) {
	ctx := context.Background()

	cfg := seededConfig(5)
	cfg.TotalNodes = 10
	cfg.LinkChance = 1
	graph, err := newTestGenerator(t, memory.New(), cfg).Generate(ctx)
	require.NoError(t, err)
	assert.Len(t, graph.Relationships, 10*9/2)

	cfg.TotalNodes = 1
	graph, err = newTestGenerator(t, memory.New(), cfg).Generate(ctx)
	require.NoError(t, err)
	assert.Empty(t, graph.Relationships)
}

func TestGenerateEdgeDirection(t *testing.T) {
	cfg := seededConfig(11)
	cfg.TotalNodes = 30
	cfg.LinkChance = 1
	graph, err := newTestGenerator(t, memory.New(), cfg).Generate(context.Background())
	require.NoError(t, err)

	forward, backward := 0, 0
	for _, rel := range graph.Relationships {
		src, _ := strconv.Atoi(rel.Source)
		dst, _ := strconv.Atoi(rel.Target)
		if src < dst {
			forward++
		} else {
			backward++
		}
	}
	assert.NotZero(t, forward)
	assert.NotZero(t, backward)
}

// seedGraph writes a small fixed graph:
//
//	0:A -R1-> 1:B, isolated 2:B, 3:C, 4:A, 5:B
func seedGraph(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()
	for _, n := range []graphs.Node{
		graphs.NewNode("0", "A"),
		graphs.NewNode("1", "B"),
		graphs.NewNode("2", "B"),
		graphs.NewNode("3", "C"),
		graphs.NewNode("4", "A"),
		graphs.NewNode("5", "B"),
	} {
		require.NoError(t, store.CreateNode(ctx, n))
	}
	require.NoError(t, store.CreateRelationship(ctx, graphs.Relationship{Source: "0", Target: "1", Type: "R1"}))
}

func TestAttachIsolated(t *testing.T) {
	store := memory.New()
	seedGraph(t, store)
	recorder := metrics.NewRecorder()
	gen := newTestGenerator(t, store, seededConfig(1), WithMetrics(recorder))

	attachments, err := gen.AttachIsolated(context.Background())
	require.NoError(t, err)

	require.Len(t, attachments, 4)
	assert.Equal(t, graphs.NewNode("2", "B"), attachments[0].Node)
	assert.Equal(t, OutcomeAttached, attachments[0].Outcome)
	require.NotNil(t, attachments[0].Relationship)
	assert.Equal(t, graphs.Relationship{Source: "2", Target: "1", Type: "R1"}, *attachments[0].Relationship)

	assert.Equal(t, OutcomeNoCandidate, attachments[1].Outcome, "C has no candidate")
	assert.Equal(t, OutcomeNoCandidate, attachments[2].Outcome, "anchor-labeled vertices never attach")
	// Vertex 1 gained a B neighbour when 2 attached, so 5 has no candidate left.
	assert.Equal(t, OutcomeNoCandidate, attachments[3].Outcome)
	assert.Nil(t, attachments[3].Relationship)

	assert.Equal(t, 1, store.Calls(memory.OpIsolatedNodes))
	assert.Equal(t, 4, store.Calls(memory.OpAttachCandidates))

	assert.Equal(t, 4.0, testutil.ToFloat64(recorder.IsolatedFound))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.Attachments.WithLabelValues(string(OutcomeAttached))))
	assert.Equal(t, 3.0, testutil.ToFloat64(recorder.Attachments.WithLabelValues(string(OutcomeNoCandidate))))
}

func TestAttachIsolatedUnlabeled(t *testing.T) {
	mem := memory.New()
	seedGraph(t, mem)
	gen := newTestGenerator(t, &unlabeledStore{Store: mem}, seededConfig(1))

	attachments, err := gen.AttachIsolated(context.Background())
	require.NoError(t, err)

	require.Len(t, attachments, 5)
	assert.Equal(t, OutcomeUnlabeled, attachments[0].Outcome)
	assert.Equal(t, 4, mem.Calls(memory.OpAttachCandidates), "unlabeled vertices are not looked up")
}

func TestAttachIsolatedStoreError(t *testing.T) {
	mem := memory.New()
	seedGraph(t, mem)
	gen := newTestGenerator(t, &failingStore{Store: mem, failOn: OpIsolatedNodes}, seededConfig(1))

	_, err := gen.AttachIsolated(context.Background())
	assert.ErrorIs(t, err, errStoreDown)
}

func TestRun(t *testing.T) {
	store := memory.New()
	core, logs := observer.New(zap.InfoLevel)
	gen := newTestGenerator(t, store, seededConfig(2024),
		WithLogger(zap.New(core)),
		WithRunID("run-2024"))

	report, err := gen.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-2024", report.RunID)
	assert.Equal(t, int64(2024), report.Seed)
	assert.Len(t, report.Graph.Nodes, 50)
	assert.False(t, report.StartedAt.IsZero())
	assert.Positive(t, report.Duration)
	assert.Equal(t, 1, store.Calls(memory.OpWipe))

	messages := make([]string, 0)
	for _, entry := range logs.All() {
		messages = append(messages, entry.Message)
		assert.Equal(t, "run-2024", entry.ContextMap()["run_id"])
	}
	assert.Equal(t, []string{
		"step 1: wiping the current graph",
		"step 2: generating vertices and edges",
		"step 3: attaching isolated vertices",
		"done",
	}, messages)

	isolated, err := store.IsolatedNodes(context.Background())
	require.NoError(t, err)
	assert.Len(t, isolated, len(report.Attachments)-report.Count(OutcomeAttached))
}

func TestRunRepairInvariants(t *testing.T) {
	ctx := context.Background()
	for seed := int64(1); seed <= 25; seed++ {
		store := memory.New()
		gen := newTestGenerator(t, store, seededConfig(seed))

		report, err := gen.Run(ctx)
		require.NoError(t, err)

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(len(report.Graph.Relationships)+report.Count(OutcomeAttached)), stats.RelationshipTotal())

		for _, a := range report.Attachments {
			if a.Node.Label == gen.Config().AnchorLabel {
				assert.Equal(t, OutcomeNoCandidate, a.Outcome, "seed %d node %s", seed, a.Node.Name)
			}
			if a.Outcome == OutcomeAttached {
				assert.Equal(t, a.Node.Name, a.Relationship.Source)
				assert.Equal(t, "R1", a.Relationship.Type)
			}
		}
	}
}

func TestRunResetsPreviousGraph(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.CreateNode(ctx, graphs.NewNode("stale", "Z")))

	_, err := newTestGenerator(t, store, seededConfig(3)).Run(ctx)
	require.NoError(t, err)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Nodes["Z"])
	assert.Equal(t, int64(50), stats.NodeTotal())
}

func TestRunTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	cfg := seededConfig(8)
	cfg.TotalNodes = 5

	gen := newTestGenerator(t, memory.New(), cfg, WithTracer(tp.Tracer(TracerName)))
	_, err := gen.Run(context.Background())
	require.NoError(t, err)

	byName := make(map[string][]sdktrace.ReadOnlySpan)
	for _, span := range sr.Ended() {
		byName[span.Name()] = append(byName[span.Name()], span)
	}

	require.Len(t, byName["generator.Run"], 1)
	require.Len(t, byName["generator.Reset"], 1)
	require.Len(t, byName["generator.Generate"], 1)
	require.Len(t, byName["generator.AttachIsolated"], 1)
	require.Len(t, byName["store.wipe"], 1)
	assert.Len(t, byName["store.create_node"], 5)
	assert.Len(t, byName["store.isolated_nodes"], 1)

	root := byName["generator.Run"][0]
	assert.Equal(t, codes.Ok, root.Status().Code)
	assert.Equal(t, root.SpanContext().SpanID(), byName["generator.Reset"][0].Parent().SpanID())
	assert.Equal(t, byName["generator.Reset"][0].SpanContext().SpanID(), byName["store.wipe"][0].Parent().SpanID())
	for _, span := range byName["store.create_node"] {
		assert.Equal(t, byName["generator.Generate"][0].SpanContext().SpanID(), span.Parent().SpanID())
	}
}

func TestGenerateStoreError(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	recorder := metrics.NewRecorder()
	cfg := seededConfig(6)
	cfg.LinkChance = 1
	cfg.TotalNodes = 3

	gen := newTestGenerator(t,
		&failingStore{Store: memory.New(), failOn: OpCreateRelationship},
		cfg,
		WithTracer(tp.Tracer(TracerName)),
		WithMetrics(recorder))

	graph, err := gen.Generate(context.Background())
	require.ErrorIs(t, err, errStoreDown)
	assert.Len(t, graph.Nodes, 3)
	assert.Empty(t, graph.Relationships)

	assert.Equal(t, 3.0, testutil.ToFloat64(recorder.StoreTransactions.WithLabelValues(OpCreateNode, metrics.ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.StoreTransactions.WithLabelValues(OpCreateRelationship, metrics.ResultError)))

	var failed int
	for _, span := range sr.Ended() {
		if span.Status().Code == codes.Error {
			failed++
		}
	}
	assert.Equal(t, 2, failed, "store span and step span are marked failed")
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestGenerator(t, memory.New(), seededConfig(1)).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsolatedAndStats(t *testing.T) {
	store := memory.New()
	seedGraph(t, store)
	gen := newTestGenerator(t, store, seededConfig(1))
	ctx := context.Background()

	isolated, err := gen.Isolated(ctx)
	require.NoError(t, err)
	assert.Len(t, isolated, 4)

	stats, err := gen.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), stats.NodeTotal())
	assert.Equal(t, int64(1), stats.RelationshipTotal())
}

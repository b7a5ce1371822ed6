package kuzu

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randgraph/randgraph/generator"
	"github.com/randgraph/randgraph/graphs"
	"github.com/randgraph/randgraph/graphs/memory"
)

func createTestKuzu(t *testing.T) *Kuzu {
	t.Helper()

	store, err := NewKuzu(
		WithInMemory(true),
		WithNodeLabels("A", "B", "C"),
		WithRelationshipTypes("R1", "R2", "R3"),
		WithTimeout(10*time.Second),
		WithMaxNumThreads(2),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, store.Close(context.Background()))
	})
	return store
}

func TestKuzuNew(t *testing.T) {
	tests := []struct {
		name    string
		options []Option
		wantErr error
	}{
		{
			name: "in-memory database",
			options: []Option{
				WithInMemory(true),
				WithNodeLabels("A"),
				WithRelationshipTypes("R1"),
			},
		},
		{
			name:    "schema not declared",
			options: []Option{WithInMemory(true)},
			wantErr: ErrSchemaNotDeclared,
		},
		{
			name: "invalid label",
			options: []Option{
				WithInMemory(true),
				WithNodeLabels("A-B"),
				WithRelationshipTypes("R1"),
			},
			wantErr: graphs.ErrInvalidIdentifier,
		},
		{
			name: "invalid relationship type",
			options: []Option{
				WithInMemory(true),
				WithNodeLabels("A"),
				WithRelationshipTypes("1R"),
			},
			wantErr: graphs.ErrInvalidIdentifier,
		},
		{
			name: "file-based database",
			options: []Option{
				WithDatabasePath(filepath.Join(t.TempDir(), "kuzu_db")),
				WithNodeLabels("A", "B"),
				WithRelationshipTypes("R1"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewKuzu(tt.options...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer store.Close(context.Background())

			assert.True(t, store.IsConnected())
			assert.NoError(t, store.HealthCheck(context.Background()))
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	opts := &options{}
	applyDefaults(opts)

	assert.Equal(t, "./kuzu_db", opts.databasePath)
	assert.Equal(t, 30*time.Second, opts.timeout)
	assert.Equal(t, uint64(4), opts.maxNumThreads)
	assert.NotNil(t, opts.logger)

	inMemory := &options{}
	WithInMemory(true)(inMemory)
	applyDefaults(inMemory)
	assert.Empty(t, inMemory.databasePath)
}

func TestSchemaQueries(t *testing.T) {
	assert.Equal(t,
		"CREATE NODE TABLE IF NOT EXISTS A (name STRING, PRIMARY KEY(name))",
		nodeTableQuery("A"))
	assert.Equal(t,
		"CREATE REL TABLE IF NOT EXISTS R1 (FROM A TO A, FROM A TO B, FROM B TO A, FROM B TO B)",
		relationshipTableQuery("R1", []string{"A", "B"}))
	assert.Equal(t,
		"MATCH (s:B {name: $source}), (t:A {name: $target}) CREATE (s)-[:R2]->(t)",
		createRelationshipQuery("B", "A", "R2"))
}

func TestSchemaTables(t *testing.T) {
	store := createTestKuzu(t)

	assert.Equal(t, []string{"A", "B", "C"}, store.NodeLabels())
	assert.Equal(t, []string{"R1", "R2", "R3"}, store.RelationshipTypes())
}

func TestSchemaRepeatedDeclarations(t *testing.T) {
	store, err := NewKuzu(
		WithInMemory(true),
		WithNodeLabels("B", "A", "B"),
		WithRelationshipTypes("R1", "R1"),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, store.Close(context.Background()))
	})

	assert.Equal(t, []string{"A", "B"}, store.NodeLabels())
	assert.Equal(t, []string{"R1"}, store.RelationshipTypes())
}

func TestCreateAndQuery(t *testing.T) {
	store := createTestKuzu(t)
	ctx := context.Background()

	nodes := []graphs.Node{
		graphs.NewNode("0", "A"),
		graphs.NewNode("1", "B"),
		graphs.NewNode("2", "B"),
		graphs.NewNode("3", "B"),
		graphs.NewNode("4", "C"),
		graphs.NewNode("5", "B"),
	}
	for _, n := range nodes {
		require.NoError(t, store.CreateNode(ctx, n))
	}
	rels := []graphs.Relationship{
		{Source: "0", Target: "1", Type: "R1"},
		{Source: "2", Target: "0", Type: "R2"},
		{Source: "2", Target: "3", Type: "R3"},
	}
	for _, r := range rels {
		require.NoError(t, store.CreateRelationship(ctx, r))
	}

	isolated, err := store.IsolatedNodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []graphs.Node{graphs.NewNode("4", "C"), graphs.NewNode("5", "B")}, isolated)

	candidates, err := store.AttachCandidates(ctx, "A", "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, candidates)

	require.NoError(t, store.CreateRelationship(ctx, graphs.Relationship{Source: "5", Target: "1", Type: "R1"}))

	candidates, err = store.AttachCandidates(ctx, "A", "B")
	require.NoError(t, err)
	assert.Empty(t, candidates)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"A": 1, "B": 4, "C": 1}, stats.Nodes)
	assert.Equal(t, map[string]int64{"R1": 2, "R2": 1, "R3": 1}, stats.Relationships)
}

func TestAttachCandidatesUndeclaredLabel(t *testing.T) {
	store := createTestKuzu(t)
	ctx := context.Background()

	candidates, err := store.AttachCandidates(ctx, "Z", "B")
	require.NoError(t, err)
	assert.Empty(t, candidates)

	_, err = store.AttachCandidates(ctx, "A", "B C")
	assert.ErrorIs(t, err, graphs.ErrInvalidIdentifier)
}

func TestCreateRelationshipMissingEndpoint(t *testing.T) {
	store := createTestKuzu(t)
	ctx := context.Background()

	require.NoError(t, store.CreateNode(ctx, graphs.NewNode("0", "A")))
	require.NoError(t, store.CreateRelationship(ctx, graphs.Relationship{Source: "0", Target: "42", Type: "R1"}))
	require.NoError(t, store.CreateRelationship(ctx, graphs.Relationship{Source: "42", Target: "0", Type: "R1"}))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.RelationshipTotal())
}

func TestUnknownTables(t *testing.T) {
	store := createTestKuzu(t)
	ctx := context.Background()

	err := store.CreateNode(ctx, graphs.NewNode("0", "D"))
	assert.ErrorIs(t, err, ErrUnknownLabel)

	err = store.CreateRelationship(ctx, graphs.Relationship{Source: "0", Target: "1", Type: "R9"})
	assert.ErrorIs(t, err, ErrUnknownRelationshipType)
}

func TestDuplicateNodeName(t *testing.T) {
	store := createTestKuzu(t)
	ctx := context.Background()

	require.NoError(t, store.CreateNode(ctx, graphs.NewNode("0", "A")))
	assert.Error(t, store.CreateNode(ctx, graphs.NewNode("0", "A")))

	// The failed insert is rolled back and the connection stays usable.
	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.NodeTotal())
}

func TestWipe(t *testing.T) {
	store := createTestKuzu(t)
	ctx := context.Background()

	require.NoError(t, store.CreateNode(ctx, graphs.NewNode("0", "A")))
	require.NoError(t, store.CreateNode(ctx, graphs.NewNode("1", "B")))
	require.NoError(t, store.CreateRelationship(ctx, graphs.Relationship{Source: "0", Target: "1", Type: "R1"}))

	require.NoError(t, store.Wipe(ctx))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.NodeTotal())
	assert.Zero(t, stats.RelationshipTotal())
}

func TestGeneratorRun(t *testing.T) {
	cfg := generator.DefaultConfig()
	cfg.Seed = 1

	store, err := NewKuzu(
		WithInMemory(true),
		WithNodeLabels(cfg.VertexLabels...),
		WithRelationshipTypes(cfg.RelationshipTypes...),
		WithMaxNumThreads(2),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, store.Close(context.Background()))
	})
	ctx := context.Background()

	gen, err := generator.New(store, cfg)
	require.NoError(t, err)
	report, err := gen.Run(ctx)
	require.NoError(t, err)

	require.Len(t, report.Graph.Nodes, cfg.TotalNodes)
	require.NotEmpty(t, report.Graph.Relationships)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(cfg.TotalNodes), stats.NodeTotal())
	assert.Equal(t,
		int64(len(report.Graph.Relationships)+report.Count(generator.OutcomeAttached)),
		stats.RelationshipTotal())

	for _, a := range report.Attachments {
		if a.Node.Label == cfg.AnchorLabel {
			assert.Equal(t, generator.OutcomeNoCandidate, a.Outcome, "vertex %s", a.Node.Name)
		}
	}

	isolated, err := store.IsolatedNodes(ctx)
	require.NoError(t, err)
	assert.Len(t, isolated, len(report.Attachments)-report.Count(generator.OutcomeAttached))

	// The graph depends only on the seed, not on the store.
	memReport, err := newMemoryRun(t, cfg)
	require.NoError(t, err)
	assert.Equal(t, memReport.Graph, report.Graph)
}

func newMemoryRun(t *testing.T, cfg generator.Config) (generator.Report, error) {
	t.Helper()
	gen, err := generator.New(memory.New(), cfg)
	require.NoError(t, err)
	return gen.Run(context.Background())
}

func TestRunInTransactionRollback(t *testing.T) {
	store := createTestKuzu(t)
	ctx := context.Background()
	errBoom := errors.New("boom")

	var captured *Transaction
	err := store.RunInTransaction(ctx, func(tx *Transaction) error {
		captured = tx
		if _, err := tx.Query("CREATE (n:A {name: $name})", map[string]any{"name": "7"}); err != nil {
			return err
		}
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	require.NotNil(t, captured)
	assert.Equal(t, TransactionRolledBack, captured.State())
	assert.NotEmpty(t, captured.ID())

	_, err = captured.Query("RETURN 1", nil)
	assert.ErrorIs(t, err, ErrTransactionNotActive)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.NodeTotal())
}

func TestReadOnlyTransaction(t *testing.T) {
	store := createTestKuzu(t)
	ctx := context.Background()

	err := store.RunInTransaction(ctx, func(tx *Transaction) error {
		assert.True(t, tx.ReadOnly())
		_, err := tx.Query("CREATE (n:A {name: $name})", map[string]any{"name": "1"})
		return err
	}, WithReadOnly(true))
	assert.Error(t, err)
}

func TestClosedStore(t *testing.T) {
	store, err := NewKuzu(
		WithInMemory(true),
		WithNodeLabels("A"),
		WithRelationshipTypes("R1"),
	)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Close(ctx))
	assert.False(t, store.IsConnected())

	assert.ErrorIs(t, store.Wipe(ctx), graphs.ErrStoreClosed)
	_, err = store.IsolatedNodes(ctx)
	assert.ErrorIs(t, err, graphs.ErrStoreClosed)
	assert.ErrorIs(t, store.CreateNode(ctx, graphs.NewNode("0", "A")), graphs.ErrStoreClosed)
	assert.NoError(t, store.Close(ctx))
}

func TestCancelledContext(t *testing.T) {
	store := createTestKuzu(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.IsolatedNodes(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValueConversion(t *testing.T) {
	record := map[string]any{
		"s":   "x",
		"nil": nil,
		"i64": int64(3),
		"u8":  uint8(2),
		"f":   1.5,
	}

	s, err := stringValue(record, "s")
	require.NoError(t, err)
	assert.Equal(t, "x", s)

	s, err = stringValue(record, "nil")
	require.NoError(t, err)
	assert.Empty(t, s)

	_, err = stringValue(record, "i64")
	assert.ErrorIs(t, err, ErrUnexpectedValue)

	_, err = stringValue(record, "missing")
	assert.ErrorIs(t, err, ErrUnexpectedValue)

	n, err := int64Value(record, "i64")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = int64Value(record, "u8")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = int64Value(record, "f")
	assert.ErrorIs(t, err, ErrUnexpectedValue)
}

package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounters(t *testing.T) {
	r := NewRecorder()

	r.NodeCreated("A")
	r.NodeCreated("A")
	r.NodeCreated("B")
	r.RelationshipCreated("R1")
	r.IsolatedVertices(3)
	r.Attachment("attached")
	r.StoreTransaction("create_node", nil)
	r.StoreTransaction("create_node", errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.NodesCreated.WithLabelValues("A")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.NodesCreated.WithLabelValues("B")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RelationshipsCreated.WithLabelValues("R1")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.IsolatedFound))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Attachments.WithLabelValues("attached")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.StoreTransactions.WithLabelValues("create_node", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.StoreTransactions.WithLabelValues("create_node", ResultError)))

	mfs, err := r.Registry().Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "randgraph_nodes_created_total" {
			found = true
			break
		}
	}
	assert.True(t, found, "randgraph_nodes_created_total metric not found")
}

func TestRecordersAreIndependent(t *testing.T) {
	first := NewRecorder()
	second := NewRecorder()

	first.NodeCreated("A")

	assert.Equal(t, 0.0, testutil.ToFloat64(second.NodesCreated.WithLabelValues("A")))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.Attachment("no_candidate")

	path := filepath.Join(t.TempDir(), "randgraph.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `randgraph_attachments_total{outcome="no_candidate"} 1`)
}

func TestWriteTextfileBadPath(t *testing.T) {
	r := NewRecorder()
	err := r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "randgraph.prom"))
	assert.Error(t, err)
}

func TestPush(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path
		body, _ := io.ReadAll(req.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewRecorder()
	r.NodeCreated("C")

	require.NoError(t, r.Push(context.Background(), srv.URL, "randgraph", "run-1"))
	assert.True(t, strings.HasPrefix(gotPath, "/metrics/job/randgraph/run_id/run-1"), gotPath)
	assert.NotEmpty(t, gotBody)
}

func TestPushFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewRecorder().Push(context.Background(), srv.URL, "randgraph", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to push metrics")
}

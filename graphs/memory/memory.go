// Package memory provides a map-backed graphs.Store.
//
// It follows the same query semantics as the database-backed stores and
// counts every operation it serves, which makes it the store of choice for
// generator tests and for dry runs that should not touch a database.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/randgraph/randgraph/graphs"
)

// Operation names counted by the store.
const (
	OpWipe               = "wipe"
	OpCreateNode         = "create_node"
	OpCreateRelationship = "create_relationship"
	OpIsolatedNodes      = "isolated_nodes"
	OpAttachCandidates   = "attach_candidates"
	OpStats              = "stats"
)

// Store is an in-memory graph.
type Store struct {
	mu            sync.RWMutex
	closed        bool
	nodes         map[string]graphs.Node
	order         []string
	relationships []graphs.Relationship
	calls         map[string]int
}

var _ graphs.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nodes: make(map[string]graphs.Node),
		calls: make(map[string]int),
	}
}

// Wipe removes all nodes and relationships.
func (s *Store) Wipe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpWipe); err != nil {
		return err
	}

	s.nodes = make(map[string]graphs.Node)
	s.order = nil
	s.relationships = nil
	return nil
}

// CreateNode adds a node. Unlike the database stores, a repeated name
// replaces the stored label instead of creating a second node.
func (s *Store) CreateNode(ctx context.Context, node graphs.Node) error {
	if err := graphs.ValidateIdentifier(node.Label); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpCreateNode); err != nil {
		return err
	}

	if _, exists := s.nodes[node.Name]; !exists {
		s.order = append(s.order, node.Name)
	}
	s.nodes[node.Name] = node
	return nil
}

// CreateRelationship adds a directed relationship when both endpoints exist.
func (s *Store) CreateRelationship(ctx context.Context, rel graphs.Relationship) error {
	if err := graphs.ValidateIdentifier(rel.Type); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpCreateRelationship); err != nil {
		return err
	}

	_, hasSource := s.nodes[rel.Source]
	_, hasTarget := s.nodes[rel.Target]
	if !hasSource || !hasTarget {
		return nil
	}
	s.relationships = append(s.relationships, rel)
	return nil
}

// IsolatedNodes returns nodes with no incident relationship, ordered by name.
func (s *Store) IsolatedNodes(ctx context.Context) ([]graphs.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpIsolatedNodes); err != nil {
		return nil, err
	}

	degree := make(map[string]int, len(s.nodes))
	for _, rel := range s.relationships {
		degree[rel.Source]++
		degree[rel.Target]++
	}

	isolated := make([]graphs.Node, 0)
	for _, name := range s.order {
		if degree[name] == 0 {
			isolated = append(isolated, s.nodes[name])
		}
	}
	sort.Slice(isolated, func(i, j int) bool {
		return isolated[i].Name < isolated[j].Name
	})
	return isolated, nil
}

// AttachCandidates returns nodes labeled label that neighbour an anchorLabel
// node and have no neighbour labeled label, in creation order.
func (s *Store) AttachCandidates(ctx context.Context, anchorLabel, label string) ([]string, error) {
	if err := graphs.ValidateIdentifiers(anchorLabel, label); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpAttachCandidates); err != nil {
		return nil, err
	}

	neighbours := s.adjacency()
	candidates := make([]string, 0)
	for _, name := range s.order {
		if s.nodes[name].Label != label {
			continue
		}

		nearAnchor, nearSame := false, false
		for _, peer := range neighbours[name] {
			if s.nodes[peer].Label == anchorLabel {
				nearAnchor = true
			}
			if s.nodes[peer].Label == label {
				nearSame = true
			}
		}
		if nearAnchor && !nearSame {
			candidates = append(candidates, name)
		}
	}
	return candidates, nil
}

// Stats counts nodes per label and relationships per type.
func (s *Store) Stats(ctx context.Context) (graphs.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx, OpStats); err != nil {
		return graphs.Stats{}, err
	}

	stats := graphs.NewStats()
	for _, node := range s.nodes {
		stats.Nodes[node.Label]++
	}
	for _, rel := range s.relationships {
		stats.Relationships[rel.Type]++
	}
	return stats, nil
}

// Close marks the store closed. Further calls fail with graphs.ErrStoreClosed.
func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Nodes returns a snapshot of the stored nodes in creation order.
func (s *Store) Nodes() []graphs.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]graphs.Node, 0, len(s.order))
	for _, name := range s.order {
		nodes = append(nodes, s.nodes[name])
	}
	return nodes
}

// Relationships returns a snapshot of the stored relationships in creation order.
func (s *Store) Relationships() []graphs.Relationship {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rels := make([]graphs.Relationship, len(s.relationships))
	copy(rels, s.relationships)
	return rels
}

// Calls returns how many times op was served.
func (s *Store) Calls(op string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[op]
}

// begin must be called with the lock held.
func (s *Store) begin(ctx context.Context, op string) error {
	if s.closed {
		return graphs.ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.calls[op]++
	return nil
}

// adjacency must be called with the lock held. Parallel relationships yield
// repeated neighbours, which the callers tolerate.
func (s *Store) adjacency() map[string][]string {
	neighbours := make(map[string][]string, len(s.nodes))
	for _, rel := range s.relationships {
		neighbours[rel.Source] = append(neighbours[rel.Source], rel.Target)
		neighbours[rel.Target] = append(neighbours[rel.Target], rel.Source)
	}
	return neighbours
}

package graphs

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var (
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrStoreClosed       = errors.New("graph store is closed")
)

// Store defines the graph database operations the generator relies on.
// Every call runs in its own transaction.
type Store interface {
	// Wipe deletes every node and relationship in the store.
	Wipe(ctx context.Context) error

	// CreateNode creates a node carrying node.Label and a name property.
	CreateNode(ctx context.Context, node Node) error

	// CreateRelationship creates a directed relationship between the nodes
	// named rel.Source and rel.Target. Missing endpoints create nothing.
	CreateRelationship(ctx context.Context, rel Relationship) error

	// IsolatedNodes returns the nodes without any relationship, ordered by name.
	IsolatedNodes(ctx context.Context) ([]Node, error)

	// AttachCandidates returns the names of distinct nodes labeled label that are
	// one hop away from a node labeled anchorLabel and have no neighbour labeled label.
	AttachCandidates(ctx context.Context, anchorLabel, label string) ([]string, error)

	// Stats counts nodes per label and relationships per type.
	Stats(ctx context.Context) (Stats, error)

	// Close releases the store connection.
	Close(ctx context.Context) error
}

// Node is a vertex identified by its name property.
type Node struct {
	Name  string
	Label string
}

// NewNode creates a node with the given name and label.
func NewNode(name, label string) Node {
	return Node{Name: name, Label: label}
}

// Relationship is a directed, typed edge between two named nodes.
type Relationship struct {
	Source string
	Target string
	Type   string
}

// NewRelationship creates a relationship from source to target.
func NewRelationship(source, target Node, relType string) Relationship {
	return Relationship{Source: source.Name, Target: target.Name, Type: relType}
}

// String renders the relationship as a Cypher-like pattern.
func (r Relationship) String() string {
	return fmt.Sprintf("(%s)-[:%s]->(%s)", r.Source, r.Type, r.Target)
}

// Stats holds element counts keyed by node label and relationship type.
type Stats struct {
	Nodes         map[string]int64
	Relationships map[string]int64
}

// NewStats returns empty stats.
func NewStats() Stats {
	return Stats{
		Nodes:         make(map[string]int64),
		Relationships: make(map[string]int64),
	}
}

// NodeTotal returns the number of labeled nodes.
func (s Stats) NodeTotal() int64 {
	return sum(s.Nodes)
}

// RelationshipTotal returns the number of relationships.
func (s Stats) RelationshipTotal() int64 {
	return sum(s.Relationships)
}

// Labels returns the node labels in sorted order.
func (s Stats) Labels() []string {
	return sortedKeys(s.Nodes)
}

// Types returns the relationship types in sorted order.
func (s Stats) Types() []string {
	return sortedKeys(s.Relationships)
}

func sum(counts map[string]int64) int64 {
	var total int64
	for _, c := range counts {
		total += c
	}
	return total
}

func sortedKeys(counts map[string]int64) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

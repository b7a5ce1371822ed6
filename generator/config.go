package generator

import (
	"errors"
	"fmt"

	"github.com/randgraph/randgraph/graphs"
)

// ErrInvalidConfig is wrapped by every Config validation failure.
var ErrInvalidConfig = errors.New("invalid generator config")

// Config controls the shape of the generated graph.
type Config struct {
	// TotalNodes is the number of vertices, named "0" to TotalNodes-1.
	TotalNodes int `mapstructure:"total_nodes" yaml:"total_nodes"`

	// VertexLabels are drawn uniformly for each vertex.
	VertexLabels []string `mapstructure:"vertex_labels" yaml:"vertex_labels"`

	// RelationshipTypes are drawn uniformly for each edge. The first one is
	// also used when attaching isolated vertices.
	RelationshipTypes []string `mapstructure:"relationship_types" yaml:"relationship_types"`

	// LinkChance is the probability that a vertex pair gets an edge.
	LinkChance float64 `mapstructure:"link_chance" yaml:"link_chance"`

	// AnchorLabel selects the vertices whose neighbours may adopt isolated vertices.
	AnchorLabel string `mapstructure:"anchor_label" yaml:"anchor_label"`

	// Seed makes runs reproducible. Zero picks a time-based seed.
	Seed int64 `mapstructure:"seed" yaml:"seed"`
}

// DefaultConfig returns a 50 vertex graph over labels A to G and types R1 to R3.
func DefaultConfig() Config {
	return Config{
		TotalNodes:        50,
		VertexLabels:      []string{"A", "B", "C", "D", "E", "F", "G"},
		RelationshipTypes: []string{"R1", "R2", "R3"},
		LinkChance:        0.05,
		AnchorLabel:       "A",
	}
}

// Validate reports the first problem with c.
func (c Config) Validate() error {
	if c.TotalNodes < 1 {
		return fmt.Errorf("%w: total nodes must be at least 1, got %d", ErrInvalidConfig, c.TotalNodes)
	}
	if len(c.VertexLabels) == 0 {
		return fmt.Errorf("%w: at least one vertex label is required", ErrInvalidConfig)
	}
	if len(c.RelationshipTypes) == 0 {
		return fmt.Errorf("%w: at least one relationship type is required", ErrInvalidConfig)
	}
	if c.LinkChance < 0 || c.LinkChance > 1 {
		return fmt.Errorf("%w: link chance must be within [0, 1], got %v", ErrInvalidConfig, c.LinkChance)
	}
	if err := graphs.ValidateIdentifiers(c.VertexLabels...); err != nil {
		return fmt.Errorf("%w: vertex label: %w", ErrInvalidConfig, err)
	}
	if err := graphs.ValidateIdentifiers(c.RelationshipTypes...); err != nil {
		return fmt.Errorf("%w: relationship type: %w", ErrInvalidConfig, err)
	}
	if err := graphs.ValidateIdentifier(c.AnchorLabel); err != nil {
		return fmt.Errorf("%w: anchor label: %w", ErrInvalidConfig, err)
	}
	// Repeats would weight the uniform draw.
	if dup, ok := firstDuplicate(c.VertexLabels); ok {
		return fmt.Errorf("%w: vertex label %q listed twice", ErrInvalidConfig, dup)
	}
	if dup, ok := firstDuplicate(c.RelationshipTypes); ok {
		return fmt.Errorf("%w: relationship type %q listed twice", ErrInvalidConfig, dup)
	}
	return nil
}

func firstDuplicate(values []string) (string, bool) {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			return v, true
		}
		seen[v] = struct{}{}
	}
	return "", false
}

// AttachType is the relationship type used to attach isolated vertices.
func (c Config) AttachType() string {
	return c.RelationshipTypes[0]
}

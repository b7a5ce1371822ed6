package kuzu

import (
	"context"
	"fmt"

	"github.com/randgraph/randgraph/graphs"
)

// Wipe deletes every node together with its relationships.
func (k *Kuzu) Wipe(ctx context.Context) error {
	err := k.RunInTransaction(ctx, func(tx *Transaction) error {
		_, err := tx.Query("MATCH (n) DETACH DELETE n", nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to wipe graph: %w", err)
	}
	return nil
}

// CreateNode inserts a node into the table of its label. Names are the
// table's primary key, so a repeated name within a label fails.
func (k *Kuzu) CreateNode(ctx context.Context, node graphs.Node) error {
	if err := graphs.ValidateIdentifier(node.Label); err != nil {
		return err
	}
	if !k.nodeTables[node.Label] {
		return fmt.Errorf("%w: %s", ErrUnknownLabel, node.Label)
	}

	query := fmt.Sprintf("CREATE (n:%s {name: $name})", node.Label)
	err := k.RunInTransaction(ctx, func(tx *Transaction) error {
		_, err := tx.Query(query, map[string]any{"name": node.Name})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create node %s: %w", node.Name, err)
	}
	return nil
}

// CreateRelationship links two existing nodes matched by name. Kuzu cannot
// create a relationship between unlabeled patterns, so the endpoint tables are
// looked up first. When either endpoint is missing nothing is created.
func (k *Kuzu) CreateRelationship(ctx context.Context, rel graphs.Relationship) error {
	if err := graphs.ValidateIdentifier(rel.Type); err != nil {
		return err
	}
	if !k.relTables[rel.Type] {
		return fmt.Errorf("%w: %s", ErrUnknownRelationshipType, rel.Type)
	}

	err := k.RunInTransaction(ctx, func(tx *Transaction) error {
		sourceLabel, err := k.nodeLabel(tx, rel.Source)
		if err != nil || sourceLabel == "" {
			return err
		}
		targetLabel, err := k.nodeLabel(tx, rel.Target)
		if err != nil || targetLabel == "" {
			return err
		}

		_, err = tx.Query(createRelationshipQuery(sourceLabel, targetLabel, rel.Type), map[string]any{
			"source": rel.Source,
			"target": rel.Target,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create relationship %s: %w", rel, err)
	}
	return nil
}

// nodeLabel returns the table holding the node called name, or "" when there
// is no such node.
func (k *Kuzu) nodeLabel(tx *Transaction, name string) (string, error) {
	records, err := tx.Query("MATCH (n) WHERE n.name = $name RETURN label(n) AS node_label", map[string]any{
		"name": name,
	})
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", nil
	}

	label, err := stringValue(records[0], "node_label")
	if err != nil {
		return "", err
	}
	if !k.nodeTables[label] {
		return "", fmt.Errorf("%w: %s", ErrUnknownLabel, label)
	}
	return label, nil
}

func createRelationshipQuery(sourceLabel, targetLabel, relType string) string {
	return fmt.Sprintf(
		"MATCH (s:%s {name: $source}), (t:%s {name: $target}) CREATE (s)-[:%s]->(t)",
		sourceLabel, targetLabel, relType)
}

package kuzu

import (
	"context"
	"fmt"

	"github.com/randgraph/randgraph/graphs"
)

const isolatedNodesQuery = `MATCH (n)
WHERE NOT EXISTS { MATCH (n)-[]-() }
RETURN n.name AS node_name, label(n) AS node_label
ORDER BY node_name`

// IsolatedNodes returns nodes without any relationship, ordered by name.
func (k *Kuzu) IsolatedNodes(ctx context.Context) ([]graphs.Node, error) {
	var nodes []graphs.Node
	err := k.RunInTransaction(ctx, func(tx *Transaction) error {
		records, err := tx.Query(isolatedNodesQuery, nil)
		if err != nil {
			return err
		}
		nodes = make([]graphs.Node, 0, len(records))
		for _, record := range records {
			name, err := stringValue(record, "node_name")
			if err != nil {
				return err
			}
			label, err := stringValue(record, "node_label")
			if err != nil {
				return err
			}
			nodes = append(nodes, graphs.NewNode(name, label))
		}
		return nil
	}, WithReadOnly(true))
	if err != nil {
		return nil, fmt.Errorf("failed to query isolated nodes: %w", err)
	}
	return nodes, nil
}

// AttachCandidates returns nodes labeled label that neighbour an anchorLabel
// node and have no label neighbour. Labels without a node table have no
// nodes, so the result is empty rather than an error.
func (k *Kuzu) AttachCandidates(ctx context.Context, anchorLabel, label string) ([]string, error) {
	if err := graphs.ValidateIdentifiers(anchorLabel, label); err != nil {
		return nil, err
	}
	if !k.nodeTables[anchorLabel] || !k.nodeTables[label] {
		return []string{}, nil
	}

	query := fmt.Sprintf(`MATCH (a:%s)-[]-(c:%s)
WITH DISTINCT c
WHERE NOT EXISTS { MATCH (c)-[]-(x:%s) }
RETURN c.name AS node_name`, anchorLabel, label, label)

	var names []string
	err := k.RunInTransaction(ctx, func(tx *Transaction) error {
		records, err := tx.Query(query, nil)
		if err != nil {
			return err
		}
		names = make([]string, 0, len(records))
		for _, record := range records {
			name, err := stringValue(record, "node_name")
			if err != nil {
				return err
			}
			names = append(names, name)
		}
		return nil
	}, WithReadOnly(true))
	if err != nil {
		return nil, fmt.Errorf("failed to query attach candidates: %w", err)
	}
	return names, nil
}

// Stats counts nodes per label and relationships per type.
func (k *Kuzu) Stats(ctx context.Context) (graphs.Stats, error) {
	stats := graphs.NewStats()
	err := k.RunInTransaction(ctx, func(tx *Transaction) error {
		nodeRecords, err := tx.Query("MATCH (n) RETURN label(n) AS group_key, count(*) AS total", nil)
		if err != nil {
			return err
		}
		if err := collectCounts(nodeRecords, stats.Nodes); err != nil {
			return err
		}

		relRecords, err := tx.Query("MATCH ()-[r]->() RETURN label(r) AS group_key, count(*) AS total", nil)
		if err != nil {
			return err
		}
		return collectCounts(relRecords, stats.Relationships)
	}, WithReadOnly(true))
	if err != nil {
		return graphs.Stats{}, fmt.Errorf("failed to query stats: %w", err)
	}
	return stats, nil
}

func collectCounts(records []map[string]any, into map[string]int64) error {
	for _, record := range records {
		key, err := stringValue(record, "group_key")
		if err != nil {
			return err
		}
		total, err := int64Value(record, "total")
		if err != nil {
			return err
		}
		into[key] = total
	}
	return nil
}

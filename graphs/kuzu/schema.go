package kuzu

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// ensureSchema creates one node table per declared label and one relationship
// table per declared type, the latter spanning every ordered pair of distinct
// labels. Repeated declarations are collapsed.
func (k *Kuzu) ensureSchema() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, label := range k.options.nodeLabels {
		if err := k.createNodeTable(label); err != nil {
			return err
		}
	}

	labels := k.NodeLabels()
	for _, relType := range k.options.relationshipTypes {
		if err := k.createRelationshipTable(relType, labels); err != nil {
			return err
		}
	}

	k.options.logger.Debug("kuzu schema ready",
		zap.Strings("node_tables", k.NodeLabels()),
		zap.Strings("rel_tables", k.RelationshipTypes()))
	return nil
}

// createNodeTable creates a node table for the given label
func (k *Kuzu) createNodeTable(label string) error {
	if k.nodeTables[label] {
		return nil
	}

	if err := k.exec(nodeTableQuery(label)); err != nil {
		return fmt.Errorf("failed to create node table %s: %w", label, err)
	}

	k.nodeTables[label] = true
	return nil
}

// createRelationshipTable creates a relationship table connecting every pair of labels
func (k *Kuzu) createRelationshipTable(relType string, labels []string) error {
	if k.relTables[relType] {
		return nil
	}

	if err := k.exec(relationshipTableQuery(relType, labels)); err != nil {
		return fmt.Errorf("failed to create relationship table %s: %w", relType, err)
	}

	k.relTables[relType] = true
	return nil
}

// exec runs a statement outside of an explicit transaction and discards its result.
func (k *Kuzu) exec(query string) error {
	result, err := k.connection.Query(query)
	if err != nil {
		return err
	}
	result.Close()
	return nil
}

func nodeTableQuery(label string) string {
	return fmt.Sprintf("CREATE NODE TABLE IF NOT EXISTS %s (name STRING, PRIMARY KEY(name))", label)
}

func relationshipTableQuery(relType string, labels []string) string {
	pairs := make([]string, 0, len(labels)*len(labels))
	for _, from := range labels {
		for _, to := range labels {
			pairs = append(pairs, fmt.Sprintf("FROM %s TO %s", from, to))
		}
	}
	return fmt.Sprintf("CREATE REL TABLE IF NOT EXISTS %s (%s)", relType, strings.Join(pairs, ", "))
}

// NodeLabels returns the labels that have a node table, sorted.
func (k *Kuzu) NodeLabels() []string {
	return sortedKeys(k.nodeTables)
}

// RelationshipTypes returns the relationship types that have a table, sorted.
func (k *Kuzu) RelationshipTypes() []string {
	return sortedKeys(k.relTables)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

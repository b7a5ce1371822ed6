// Package kuzu provides a graphs.Store backed by an embedded KuzuDB database.
//
// KuzuDB needs a schema before it stores anything, so the store is opened
// with the full set of vertex labels and relationship types. Each label gets
// a node table keyed by name, and each relationship type gets one table that
// connects every pair of labels.
//
// Every store operation runs in its own explicit transaction; reads open it
// with BEGIN TRANSACTION READ ONLY.
//
// Example usage:
//
//	store, err := kuzu.NewKuzu(
//		kuzu.WithInMemory(true),
//		kuzu.WithNodeLabels("A", "B", "C"),
//		kuzu.WithRelationshipTypes("R1", "R2"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close(ctx)
//
//	err = store.CreateNode(ctx, graphs.NewNode("0", "A"))
//	isolated, err := store.IsolatedNodes(ctx)
package kuzu

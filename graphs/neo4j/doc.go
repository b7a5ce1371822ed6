// Package neo4j provides a graphs.Store backed by a Neo4j server.
//
// Every operation opens its own session and runs a single managed
// transaction: writes go through ExecuteWrite, reads through ExecuteRead, so
// transient cluster errors are retried by the driver for up to the configured
// MaxTransactionRetryTime.
//
// Basic usage:
//
//	store, err := neo4j.New(ctx,
//		neo4j.WithURI("bolt://localhost:7687"),
//		neo4j.WithCredentials("neo4j", "password"),
//		neo4j.WithDatabase("neo4j"),
//	)
//	if err != nil {
//		return err
//	}
//	defer store.Close(ctx)
//
//	err = store.CreateNode(ctx, graphs.NewNode("0", "A"))
//	isolated, err := store.IsolatedNodes(ctx)
package neo4j

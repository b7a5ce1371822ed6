// Package graphs defines the graph store contract used by the random graph
// generator, together with the node and relationship value types it exchanges.
//
// Implementations live in subpackages:
//
//   - graphs/neo4j: a Neo4j server reached over Bolt
//   - graphs/kuzu: an embedded KuzuDB database
//   - graphs/memory: a map-backed store for tests and dry runs
//
// Labels and relationship types are part of the query text rather than query
// parameters, so every implementation checks them with ValidateIdentifier
// before building a query.
package graphs

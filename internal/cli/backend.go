package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/randgraph/randgraph/graphs"
	"github.com/randgraph/randgraph/graphs/kuzu"
	"github.com/randgraph/randgraph/graphs/memory"
	"github.com/randgraph/randgraph/graphs/neo4j"
	"github.com/randgraph/randgraph/internal/config"
)

type storeOpener func(ctx context.Context, cfg config.Config, logger *zap.Logger) (graphs.Store, error)

// openStore connects to the configured backend. Kuzu tables are declared
// from the generator's labels and relationship types.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (graphs.Store, error) {
	switch cfg.Backend {
	case config.BackendNeo4j:
		store, err := neo4j.New(ctx,
			neo4j.WithURI(cfg.Neo4j.URI),
			neo4j.WithCredentials(cfg.Neo4j.Username, cfg.Neo4j.Password),
			neo4j.WithDatabase(cfg.Neo4j.Database),
			neo4j.WithMaxConnectionPoolSize(cfg.Neo4j.MaxConnectionPoolSize),
			neo4j.WithConnectionTimeout(cfg.Neo4j.ConnectionTimeout.Std()),
			neo4j.WithMaxTransactionRetryTime(cfg.Neo4j.MaxTransactionRetryTime.Std()),
			neo4j.WithTransactionTimeout(cfg.Neo4j.TransactionTimeout.Std()),
			neo4j.WithConnectRetries(cfg.Neo4j.ConnectRetries),
			neo4j.WithLogger(logger.Named("neo4j")),
		)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendKuzu:
		opts := []kuzu.Option{
			kuzu.WithNodeLabels(cfg.Generator.VertexLabels...),
			kuzu.WithRelationshipTypes(cfg.Generator.RelationshipTypes...),
			kuzu.WithTimeout(cfg.Kuzu.Timeout.Std()),
			kuzu.WithMaxNumThreads(cfg.Kuzu.MaxNumThreads),
			kuzu.WithBufferPoolSize(cfg.Kuzu.BufferPoolSize),
			kuzu.WithLogger(logger.Named("kuzu")),
		}
		if cfg.Kuzu.InMemory {
			opts = append(opts, kuzu.WithInMemory(true))
		} else {
			opts = append(opts, kuzu.WithDatabasePath(cfg.Kuzu.Path))
		}
		store, err := kuzu.NewKuzu(opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnsupportedBackend, cfg.Backend)
	}
}

package kuzu

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kuzudb/go-kuzu"
	"go.uber.org/zap"

	"github.com/randgraph/randgraph/graphs"
)

var (
	ErrConnectionNotInitialized = errors.New("kuzu connection not initialized")
	ErrSchemaNotDeclared        = errors.New("node labels and relationship types must be declared")
	ErrUnknownLabel             = errors.New("label has no node table")
	ErrUnknownRelationshipType  = errors.New("relationship type has no relationship table")
	ErrDatabaseCreationFailed   = errors.New("failed to create kuzu database")
	ErrConnectionCreationFailed = errors.New("failed to create kuzu connection")
	ErrQueryExecutionFailed     = errors.New("failed to execute query")
)

// Kuzu implements graphs.Store on an embedded KuzuDB database.
type Kuzu struct {
	database   *kuzu.Database
	connection *kuzu.Connection
	options    *options

	// mu serialises transactions on the single connection.
	mu sync.Mutex

	nodeTables map[string]bool
	relTables  map[string]bool
}

var _ graphs.Store = (*Kuzu)(nil)

// NewKuzu opens the database and declares the node and relationship tables.
func NewKuzu(opts ...Option) (*Kuzu, error) {
	options := &options{}
	for _, opt := range opts {
		opt(options)
	}
	applyDefaults(options)

	if len(options.nodeLabels) == 0 || len(options.relationshipTypes) == 0 {
		return nil, ErrSchemaNotDeclared
	}
	if err := graphs.ValidateIdentifiers(options.nodeLabels...); err != nil {
		return nil, err
	}
	if err := graphs.ValidateIdentifiers(options.relationshipTypes...); err != nil {
		return nil, err
	}

	k := &Kuzu{
		options:    options,
		nodeTables: make(map[string]bool),
		relTables:  make(map[string]bool),
	}

	if err := k.connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to kuzu: %w", err)
	}

	if err := k.ensureSchema(); err != nil {
		k.Close(context.Background())
		return nil, err
	}

	return k, nil
}

// connect initializes the KuzuDB database and connection
func (k *Kuzu) connect() error {
	var err error

	systemConfig := kuzu.DefaultSystemConfig()
	systemConfig.BufferPoolSize = k.options.bufferPoolSize
	systemConfig.MaxNumThreads = k.options.maxNumThreads

	if k.options.inMemory {
		k.database, err = kuzu.OpenInMemoryDatabase(systemConfig)
	} else {
		k.database, err = kuzu.OpenDatabase(k.options.databasePath, systemConfig)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseCreationFailed, err)
	}

	k.connection, err = kuzu.OpenConnection(k.database)
	if err != nil {
		k.database.Close()
		k.database = nil
		return fmt.Errorf("%w: %v", ErrConnectionCreationFailed, err)
	}

	k.connection.SetMaxNumThreads(k.options.maxNumThreads)
	if k.options.timeout > 0 {
		k.connection.SetTimeout(uint64(k.options.timeout.Milliseconds()))
	}

	k.options.logger.Debug("kuzu database opened",
		zap.Bool("in_memory", k.options.inMemory),
		zap.String("path", k.options.databasePath))
	return nil
}

// Close closes the KuzuDB connection and database
func (k *Kuzu) Close(_ context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.connection != nil {
		k.connection.Close()
		k.connection = nil
	}
	if k.database != nil {
		k.database.Close()
		k.database = nil
	}
	return nil
}

// IsConnected checks if the KuzuDB connection is active
func (k *Kuzu) IsConnected() bool {
	return k.connection != nil && k.database != nil
}

// HealthCheck performs a basic health check on the database connection
func (k *Kuzu) HealthCheck(ctx context.Context) error {
	return k.RunInTransaction(ctx, func(tx *Transaction) error {
		_, err := tx.Query("RETURN 1 AS health_check", nil)
		return err
	}, WithReadOnly(true))
}

// query executes a Cypher query and returns its rows. It must be called with
// k.mu held.
func (k *Kuzu) query(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	if !k.IsConnected() {
		return nil, graphs.ErrStoreClosed
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	var result *kuzu.QueryResult
	var err error

	go func() {
		defer close(done)

		if len(params) > 0 {
			result, err = k.executeWithParameters(query, params)
		} else {
			result, err = k.connection.Query(query)
		}
	}()

	select {
	case <-ctx.Done():
		k.connection.Interrupt()
		<-done
		if result != nil {
			result.Close()
		}
		return nil, ctx.Err()
	case <-done:
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryExecutionFailed, err)
	}
	defer result.Close()

	return convertQueryResult(ctx, result)
}

// executeWithParameters executes a query using prepared statements with parameters
func (k *Kuzu) executeWithParameters(query string, params map[string]any) (*kuzu.QueryResult, error) {
	stmt, err := k.connection.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	result, err := k.connection.Execute(stmt, params)
	if err != nil {
		return nil, fmt.Errorf("failed to execute prepared statement: %w", err)
	}
	return result, nil
}

// convertQueryResult drains result into one map per row.
func convertQueryResult(ctx context.Context, result *kuzu.QueryResult) ([]map[string]any, error) {
	records := make([]map[string]any, 0)

	for result.HasNext() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tuple, err := result.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to get next tuple: %w", err)
		}

		record, err := tuple.GetAsMap()
		tuple.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to convert tuple to map: %w", err)
		}

		records = append(records, record)
	}

	return records, nil
}

package neo4j

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
	"go.uber.org/zap"

	"github.com/randgraph/randgraph/graphs"
)

var (
	ErrInvalidURI       = errors.New("neo4j uri must not be empty")
	ErrInvalidTimeout   = errors.New("timeouts must be positive")
	ErrInvalidRetries   = errors.New("connect retries must be at least 1")
	ErrUnexpectedRecord = errors.New("unexpected record shape")
)

const baseConnectDelay = 100 * time.Millisecond

const (
	wipeQuery     = "MATCH (n) DETACH DELETE n"
	isolatedQuery = `
		MATCH (n)
		WHERE NOT (n)--()
		RETURN n.name AS name, head(labels(n)) AS label
		ORDER BY name`
	nodeStatsQuery = `
		MATCH (n)
		UNWIND labels(n) AS label
		RETURN label, count(*) AS count`
	relationshipStatsQuery = `
		MATCH ()-[r]->()
		RETURN type(r) AS type, count(r) AS count`
)

// Store is a graphs.Store backed by a Neo4j server.
type Store struct {
	driver neo4j.DriverWithContext
	opts   *options
}

var _ graphs.Store = (*Store)(nil)

// New creates a Neo4j graph store and verifies the server is reachable.
func New(ctx context.Context, opts ...Option) (*Store, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	if err := validateOptions(options); err != nil {
		return nil, err
	}

	driver, err := connect(ctx, options)
	if err != nil {
		return nil, err
	}

	return &Store{driver: driver, opts: options}, nil
}

// connect creates the driver, retrying connectivity checks with exponential backoff.
func connect(ctx context.Context, o *options) (neo4j.DriverWithContext, error) {
	auth := neo4j.NoAuth()
	if o.username != "" {
		auth = neo4j.BasicAuth(o.username, o.password, "")
	}

	configure := func(c *config.Config) {
		c.MaxConnectionPoolSize = o.maxConnectionPoolSize
		c.ConnectionAcquisitionTimeout = o.connectionTimeout
		c.MaxTransactionRetryTime = o.maxTransactionRetryTime
	}

	var driver neo4j.DriverWithContext
	attempts := 0
	operation := func() error {
		attempts++
		d, err := neo4j.NewDriverWithContext(o.uri, auth, configure)
		if err != nil {
			// A malformed URI will not fix itself.
			return backoff.Permanent(fmt.Errorf("failed to create Neo4j driver: %w", err))
		}
		if err := d.VerifyConnectivity(ctx); err != nil {
			_ = d.Close(ctx)
			return err
		}
		driver = d
		return nil
	}
	notify := func(err error, next time.Duration) {
		o.logger.Debug("neo4j connectivity check failed",
			zap.String("uri", o.uri),
			zap.Int("attempt", attempts),
			zap.Duration("retry_in", next),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(operation, connectBackOff(ctx, o), notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("failed to connect to Neo4j: %w", ctxErr)
		}
		return nil, fmt.Errorf("failed to connect to Neo4j after %d attempts: %w", attempts, err)
	}
	return driver, nil
}

// connectBackOff doubles the delay from baseConnectDelay up to the connection
// timeout and allows connectRetries attempts in total.
func connectBackOff(ctx context.Context, o *options) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = baseConnectDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = o.connectionTimeout
	b.MaxElapsedTime = 0
	b.Reset()

	var retries uint64
	if o.connectRetries > 1 {
		retries = uint64(o.connectRetries - 1)
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)
}

// Close closes the Neo4j driver connection.
func (s *Store) Close(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	err := s.driver.Close(ctx)
	s.driver = nil
	if err != nil {
		return fmt.Errorf("failed to close Neo4j driver: %w", err)
	}
	return nil
}

// Health verifies the server is still reachable.
func (s *Store) Health(ctx context.Context) error {
	if s.driver == nil {
		return graphs.ErrStoreClosed
	}
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.driver.VerifyConnectivity(healthCtx); err != nil {
		return fmt.Errorf("connectivity check failed: %w", err)
	}
	return nil
}

// Wipe deletes every node together with its relationships.
func (s *Store) Wipe(ctx context.Context) error {
	if err := s.write(ctx, wipeQuery, nil); err != nil {
		return fmt.Errorf("failed to wipe graph: %w", err)
	}
	return nil
}

// CreateNode creates a node with the node's label and name property.
func (s *Store) CreateNode(ctx context.Context, node graphs.Node) error {
	if err := graphs.ValidateIdentifier(node.Label); err != nil {
		return err
	}

	cypher := fmt.Sprintf("CREATE (n:%s {name: $name})", node.Label)
	if err := s.write(ctx, cypher, map[string]any{"name": node.Name}); err != nil {
		return fmt.Errorf("failed to create node %s: %w", node.Name, err)
	}
	return nil
}

// CreateRelationship links the nodes named rel.Source and rel.Target.
func (s *Store) CreateRelationship(ctx context.Context, rel graphs.Relationship) error {
	if err := graphs.ValidateIdentifier(rel.Type); err != nil {
		return err
	}

	cypher := fmt.Sprintf(`
		MATCH (s {name: $source}), (t {name: $target})
		CREATE (s)-[:%s]->(t)`, rel.Type)
	params := map[string]any{
		"source": rel.Source,
		"target": rel.Target,
	}
	if err := s.write(ctx, cypher, params); err != nil {
		return fmt.Errorf("failed to create relationship %s: %w", rel, err)
	}
	return nil
}

// IsolatedNodes returns the nodes without relationships, ordered by name.
func (s *Store) IsolatedNodes(ctx context.Context) ([]graphs.Node, error) {
	records, err := s.read(ctx, isolatedQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query isolated nodes: %w", err)
	}

	nodes := make([]graphs.Node, 0, len(records))
	for _, record := range records {
		name, err := stringValue(record, "name")
		if err != nil {
			return nil, err
		}
		label, err := stringValue(record, "label")
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, graphs.NewNode(name, label))
	}
	return nodes, nil
}

// AttachCandidates returns nodes labeled label next to an anchorLabel node
// that have no neighbour labeled label.
func (s *Store) AttachCandidates(ctx context.Context, anchorLabel, label string) ([]string, error) {
	if err := graphs.ValidateIdentifiers(anchorLabel, label); err != nil {
		return nil, err
	}

	cypher := fmt.Sprintf(`
		MATCH (a:%s)--(c)
		WHERE $label IN labels(c)
		WITH DISTINCT c
		WHERE NOT EXISTS { MATCH (c)--(x) WHERE $label IN labels(x) }
		RETURN c.name AS name`, anchorLabel)

	records, err := s.read(ctx, cypher, map[string]any{"label": label})
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates for label %s: %w", label, err)
	}

	names := make([]string, 0, len(records))
	for _, record := range records {
		name, err := stringValue(record, "name")
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// Stats counts nodes per label and relationships per type.
func (s *Store) Stats(ctx context.Context) (graphs.Stats, error) {
	stats := graphs.NewStats()

	nodeRecords, err := s.read(ctx, nodeStatsQuery, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to count nodes: %w", err)
	}
	if err := collectCounts(nodeRecords, "label", stats.Nodes); err != nil {
		return stats, err
	}

	relRecords, err := s.read(ctx, relationshipStatsQuery, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to count relationships: %w", err)
	}
	if err := collectCounts(relRecords, "type", stats.Relationships); err != nil {
		return stats, err
	}
	return stats, nil
}

// write runs cypher in its own managed write transaction.
func (s *Store) write(ctx context.Context, cypher string, params map[string]any) error {
	if s.driver == nil {
		return graphs.ErrStoreClosed
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.opts.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	}, s.txConfigurers()...)
	return err
}

// read runs cypher in its own managed read transaction and collects every record.
func (s *Store) read(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	if s.driver == nil {
		return nil, graphs.ErrStoreClosed
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.opts.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	}, s.txConfigurers()...)
	if err != nil {
		return nil, err
	}
	return records.([]*neo4j.Record), nil
}

func (s *Store) txConfigurers() []func(*neo4j.TransactionConfig) {
	if s.opts.txTimeout <= 0 {
		return nil
	}
	return []func(*neo4j.TransactionConfig){neo4j.WithTxTimeout(s.opts.txTimeout)}
}

// stringValue reads key from record. A null value yields "".
func stringValue(record *neo4j.Record, key string) (string, error) {
	value, ok := record.Get(key)
	if !ok {
		return "", fmt.Errorf("%w: missing %q", ErrUnexpectedRecord, key)
	}
	if value == nil {
		return "", nil
	}
	str, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q is %T", ErrUnexpectedRecord, key, value)
	}
	return str, nil
}

func collectCounts(records []*neo4j.Record, key string, into map[string]int64) error {
	for _, record := range records {
		name, err := stringValue(record, key)
		if err != nil {
			return err
		}
		value, _ := record.Get("count")
		count, ok := value.(int64)
		if !ok {
			return fmt.Errorf("%w: count is %T", ErrUnexpectedRecord, value)
		}
		into[name] += count
	}
	return nil
}

// validateOptions validates the provided options.
func validateOptions(opts *options) error {
	if opts.uri == "" {
		return ErrInvalidURI
	}
	if opts.connectionTimeout <= 0 || opts.maxTransactionRetryTime <= 0 || opts.txTimeout < 0 {
		return ErrInvalidTimeout
	}
	if opts.connectRetries < 1 {
		return ErrInvalidRetries
	}
	return nil
}

package neo4j

import (
	"time"

	"go.uber.org/zap"
)

// Option is a function type for configuring a Neo4j graph store.
type Option func(*options)

// options contains the configuration for the Neo4j graph store.
type options struct {
	uri                     string
	username                string
	password                string
	database                string
	maxConnectionPoolSize   int
	connectionTimeout       time.Duration
	maxTransactionRetryTime time.Duration
	txTimeout               time.Duration
	connectRetries          int
	logger                  *zap.Logger
}

// defaultOptions returns the default options for the Neo4j graph store.
func defaultOptions() *options {
	return &options{
		uri:                     "bolt://localhost:7687",
		username:                "neo4j",
		password:                "password",
		database:                "neo4j",
		maxConnectionPoolSize:   10,
		connectionTimeout:       30 * time.Second,
		maxTransactionRetryTime: 30 * time.Second,
		connectRetries:          5,
		logger:                  zap.NewNop(),
	}
}

// WithURI sets the Bolt or neo4j:// connection URI.
func WithURI(uri string) Option {
	return func(o *options) {
		o.uri = uri
	}
}

// WithCredentials sets the basic auth credentials. An empty username
// connects without authentication.
func WithCredentials(username, password string) Option {
	return func(o *options) {
		o.username = username
		o.password = password
	}
}

// WithDatabase sets the Neo4j database name.
func WithDatabase(database string) Option {
	return func(o *options) {
		o.database = database
	}
}

// WithMaxConnectionPoolSize limits the driver connection pool.
func WithMaxConnectionPoolSize(size int) Option {
	return func(o *options) {
		o.maxConnectionPoolSize = size
	}
}

// WithConnectionTimeout sets how long to wait for a pooled connection. It also
// caps the backoff between connection attempts.
func WithConnectionTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.connectionTimeout = timeout
	}
}

// WithMaxTransactionRetryTime sets how long managed transactions are retried
// on transient errors.
func WithMaxTransactionRetryTime(d time.Duration) Option {
	return func(o *options) {
		o.maxTransactionRetryTime = d
	}
}

// WithTransactionTimeout sets a server side timeout for every transaction.
// Zero leaves the server default.
func WithTransactionTimeout(d time.Duration) Option {
	return func(o *options) {
		o.txTimeout = d
	}
}

// WithConnectRetries sets the number of connection attempts made by New.
func WithConnectRetries(retries int) Option {
	return func(o *options) {
		o.connectRetries = retries
	}
}

// WithLogger sets the logger used for connection diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

package kuzu

import (
	"time"

	"go.uber.org/zap"
)

// Option defines functional options for KuzuDB configuration.
type Option func(*options)

// options contains configuration options for KuzuDB graph store.
type options struct {
	// Database path for file-based storage (empty for in-memory)
	databasePath string

	// Whether to use in-memory database
	inMemory bool

	// Query timeout
	timeout time.Duration

	// Buffer pool size for KuzuDB
	bufferPoolSize uint64

	// Maximum number of threads for query execution
	maxNumThreads uint64

	// Node tables to declare, one per vertex label
	nodeLabels []string

	// Relationship tables to declare, each spanning every label pair
	relationshipTypes []string

	logger *zap.Logger
}

// applyDefaults sets default values for any unset options.
func applyDefaults(opts *options) {
	if opts.databasePath == "" && !opts.inMemory {
		opts.databasePath = "./kuzu_db"
	}

	if opts.timeout == 0 {
		opts.timeout = 30 * time.Second
	}

	if opts.bufferPoolSize == 0 {
		opts.bufferPoolSize = 256 * 1024 * 1024
	}

	if opts.maxNumThreads == 0 {
		opts.maxNumThreads = 4
	}

	if opts.logger == nil {
		opts.logger = zap.NewNop()
	}
}

// WithDatabasePath sets the file path for the KuzuDB database.
// If not set, defaults to "./kuzu_db".
func WithDatabasePath(path string) Option {
	return func(opts *options) {
		opts.databasePath = path
		opts.inMemory = false
	}
}

// WithInMemory configures KuzuDB to run in-memory mode.
func WithInMemory(inMemory bool) Option {
	return func(opts *options) {
		opts.inMemory = inMemory
		if inMemory {
			opts.databasePath = ""
		}
	}
}

// WithTimeout sets the query execution timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(opts *options) {
		opts.timeout = timeout
	}
}

// WithBufferPoolSize sets the buffer pool size for KuzuDB.
func WithBufferPoolSize(size uint64) Option {
	return func(opts *options) {
		opts.bufferPoolSize = size
	}
}

// WithMaxNumThreads sets the maximum number of threads for query execution.
func WithMaxNumThreads(threads uint64) Option {
	return func(opts *options) {
		opts.maxNumThreads = threads
	}
}

// WithNodeLabels declares the vertex labels. KuzuDB only stores nodes whose
// table exists, so every label the caller will use must be listed.
func WithNodeLabels(labels ...string) Option {
	return func(opts *options) {
		opts.nodeLabels = append([]string(nil), labels...)
	}
}

// WithRelationshipTypes declares the relationship types.
func WithRelationshipTypes(types ...string) Option {
	return func(opts *options) {
		opts.relationshipTypes = append([]string(nil), types...)
	}
}

// WithLogger sets the logger used for schema and transaction diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

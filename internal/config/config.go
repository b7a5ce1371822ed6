// Package config loads the randgraph configuration from defaults, an optional
// YAML file, an optional .env file and RANDGRAPH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/randgraph/randgraph/generator"
	"github.com/randgraph/randgraph/internal/logging"
)

// Backends selectable with the backend key.
const (
	BackendNeo4j  = "neo4j"
	BackendKuzu   = "kuzu"
	BackendMemory = "memory"
)

const redacted = "******"

// ErrUnsupportedBackend is returned for an unknown backend name.
var ErrUnsupportedBackend = errors.New("unsupported backend")

// Duration is a time.Duration that reads and writes as "30s".
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the effective configuration of a randgraph invocation.
type Config struct {
	Backend   string           `mapstructure:"backend" yaml:"backend"`
	Log       LogConfig        `mapstructure:"log" yaml:"log"`
	Neo4j     Neo4jConfig      `mapstructure:"neo4j" yaml:"neo4j"`
	Kuzu      KuzuConfig       `mapstructure:"kuzu" yaml:"kuzu"`
	Generator generator.Config `mapstructure:"generator" yaml:"generator"`
	Metrics   MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type Neo4jConfig struct {
	URI                     string   `mapstructure:"uri" yaml:"uri"`
	Username                string   `mapstructure:"username" yaml:"username"`
	Password                string   `mapstructure:"password" yaml:"password"`
	Database                string   `mapstructure:"database" yaml:"database"`
	MaxConnectionPoolSize   int      `mapstructure:"max_connection_pool_size" yaml:"max_connection_pool_size"`
	ConnectionTimeout       Duration `mapstructure:"connection_timeout" yaml:"connection_timeout"`
	MaxTransactionRetryTime Duration `mapstructure:"max_transaction_retry_time" yaml:"max_transaction_retry_time"`
	TransactionTimeout      Duration `mapstructure:"transaction_timeout" yaml:"transaction_timeout"`
	ConnectRetries          int      `mapstructure:"connect_retries" yaml:"connect_retries"`
}

type KuzuConfig struct {
	Path           string   `mapstructure:"path" yaml:"path"`
	InMemory       bool     `mapstructure:"in_memory" yaml:"in_memory"`
	Timeout        Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxNumThreads  uint64   `mapstructure:"max_num_threads" yaml:"max_num_threads"`
	BufferPoolSize uint64   `mapstructure:"buffer_pool_size" yaml:"buffer_pool_size"`
}

type MetricsConfig struct {
	// File receives the counters in the textfile exposition format.
	File string `mapstructure:"file" yaml:"file"`
	// Pushgateway is the base URL of a Prometheus Pushgateway.
	Pushgateway string `mapstructure:"pushgateway" yaml:"pushgateway"`
	Job         string `mapstructure:"job" yaml:"job"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Backend: BackendNeo4j,
		Log: LogConfig{
			Level:  string(logging.LevelInfo),
			Format: string(logging.FormatConsole),
		},
		Neo4j: Neo4jConfig{
			URI:                     "bolt://localhost:7687",
			Username:                "neo4j",
			Password:                "password",
			Database:                "neo4j",
			MaxConnectionPoolSize:   10,
			ConnectionTimeout:       Duration(30 * time.Second),
			MaxTransactionRetryTime: Duration(30 * time.Second),
			ConnectRetries:          5,
		},
		Kuzu: KuzuConfig{
			Path:          "./kuzu_db",
			Timeout:       Duration(30 * time.Second),
			MaxNumThreads: 4,
		},
		Generator: generator.DefaultConfig(),
		Metrics:   MetricsConfig{Job: "randgraph"},
	}
}

// Defaults flattens Default into viper keys.
func Defaults() map[string]any {
	d := Default()
	return map[string]any{
		"backend":                          d.Backend,
		"log.level":                        d.Log.Level,
		"log.format":                       d.Log.Format,
		"neo4j.uri":                        d.Neo4j.URI,
		"neo4j.username":                   d.Neo4j.Username,
		"neo4j.password":                   d.Neo4j.Password,
		"neo4j.database":                   d.Neo4j.Database,
		"neo4j.max_connection_pool_size":   d.Neo4j.MaxConnectionPoolSize,
		"neo4j.connection_timeout":         d.Neo4j.ConnectionTimeout.Std().String(),
		"neo4j.max_transaction_retry_time": d.Neo4j.MaxTransactionRetryTime.Std().String(),
		"neo4j.transaction_timeout":        d.Neo4j.TransactionTimeout.Std().String(),
		"neo4j.connect_retries":            d.Neo4j.ConnectRetries,
		"kuzu.path":                        d.Kuzu.Path,
		"kuzu.in_memory":                   d.Kuzu.InMemory,
		"kuzu.timeout":                     d.Kuzu.Timeout.Std().String(),
		"kuzu.max_num_threads":             d.Kuzu.MaxNumThreads,
		"kuzu.buffer_pool_size":            d.Kuzu.BufferPoolSize,
		"generator.total_nodes":            d.Generator.TotalNodes,
		"generator.vertex_labels":          d.Generator.VertexLabels,
		"generator.relationship_types":     d.Generator.RelationshipTypes,
		"generator.link_chance":            d.Generator.LinkChance,
		"generator.anchor_label":           d.Generator.AnchorLabel,
		"generator.seed":                   d.Generator.Seed,
		"metrics.file":                     d.Metrics.File,
		"metrics.pushgateway":              d.Metrics.Pushgateway,
		"metrics.job":                      d.Metrics.Job,
	}
}

// Validate checks the fields every command depends on.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendNeo4j:
		if c.Neo4j.URI == "" {
			return errors.New("neo4j.uri is required for the neo4j backend")
		}
	case BackendKuzu:
		if c.Kuzu.Path == "" && !c.Kuzu.InMemory {
			return errors.New("kuzu.path is required unless kuzu.in_memory is set")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedBackend, c.Backend)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return err
	}
	if c.Metrics.Pushgateway != "" && c.Metrics.Job == "" {
		return errors.New("metrics.job is required when metrics.pushgateway is set")
	}
	return c.Generator.Validate()
}

// Redacted returns a copy of c with secrets masked.
func (c Config) Redacted() Config {
	if c.Neo4j.Password != "" {
		c.Neo4j.Password = redacted
	}
	c.Generator.VertexLabels = append([]string(nil), c.Generator.VertexLabels...)
	c.Generator.RelationshipTypes = append([]string(nil), c.Generator.RelationshipTypes...)
	return c
}

// YAML renders the redacted configuration.
func (c Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return nil, fmt.Errorf("failed to render configuration: %w", err)
	}
	return out, nil
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultName      = "randgraph"
	DefaultType      = "yaml"
	DefaultEnvPrefix = "RANDGRAPH"
	DefaultDotenv    = ".env"
)

// Loader wraps Viper to load the configuration file and environment overrides.
type Loader struct {
	name        string
	configType  string
	envPrefix   string
	searchPaths []string
	dotenvFiles []string
}

// Loaded surfaces metadata about the resolved configuration.
type Loaded struct {
	ConfigFileUsed string
	DotenvLoaded   []string
}

// NewLoader creates a loader for randgraph.yaml in searchPaths with the
// RANDGRAPH_ environment prefix and ./.env.
func NewLoader(searchPaths ...string) *Loader {
	return &Loader{
		name:        DefaultName,
		configType:  DefaultType,
		envPrefix:   DefaultEnvPrefix,
		searchPaths: append([]string(nil), searchPaths...),
		dotenvFiles: []string{DefaultDotenv},
	}
}

// WithDotenv replaces the .env files read before the environment is consulted.
func (l *Loader) WithDotenv(paths ...string) *Loader {
	l.dotenvFiles = append([]string(nil), paths...)
	return l
}

// Load resolves the configuration. configFile, when set, replaces the search
// paths and must exist. Variables already set in the environment win over
// .env entries.
func (l *Loader) Load(configFile string) (Config, Loaded, error) {
	var loaded Loaded

	for _, path := range l.dotenvFiles {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, loaded, fmt.Errorf("failed to load %s: %w", path, err)
		}
		loaded.DotenvLoaded = append(loaded.DotenvLoaded, path)
	}

	v := viper.New()
	v.SetConfigName(l.name)
	v.SetConfigType(l.configType)
	for _, path := range l.searchPaths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix(l.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, loaded, fmt.Errorf("failed to read configuration: %w", err)
		}
	}

	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return Config{}, loaded, fmt.Errorf("failed to parse configuration: %w", err)
	}

	loaded.ConfigFileUsed = v.ConfigFileUsed()
	return cfg, loaded, nil
}

// Package cli wires the randgraph cobra commands to configuration, logging,
// the graph stores and the generator.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/randgraph/randgraph/internal/config"
	"github.com/randgraph/randgraph/internal/logging"
)

const (
	applicationName        = "randgraph"
	applicationShort       = "Generate a random labeled graph and repair its isolated vertices"
	applicationLong        = "randgraph wipes a graph store, fills it with randomly labeled vertices and edges, then links every isolated vertex it can to a same-labeled vertex next to an anchor-labeled one."
	configFileFlagName     = "config"
	logLevelFlagName       = "log-level"
	logFormatFlagName      = "log-format"
	backendFlagName        = "backend"
	seedFlagName           = "seed"
	metricsFileFlagName    = "metrics-file"
	pushgatewayFlagName    = "pushgateway"
	defaultConfigSearchDir = "."
)

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	root          *cobra.Command
	loader        *config.Loader
	loggerFactory *logging.Factory
	logger        *zap.Logger
	config        config.Config
	loaded        config.Loaded
	openStore     storeOpener

	configFile  string
	logLevel    string
	logFormat   string
	backend     string
	seed        int64
	metricsFile string
	pushgateway string
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	app := &Application{
		loader:        config.NewLoader(defaultConfigSearchDir),
		loggerFactory: logging.NewFactory(),
		logger:        zap.NewNop(),
		openStore:     openStore,
	}

	root := &cobra.Command{
		Use:           applicationName,
		Short:         applicationShort,
		Long:          applicationLong,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.initializeConfiguration(cmd)
		},
	}
	root.SetContext(context.Background())

	flags := root.PersistentFlags()
	flags.StringVar(&app.configFile, configFileFlagName, "", "path to a randgraph.yaml configuration file")
	flags.StringVar(&app.logLevel, logLevelFlagName, "", "log level (debug, info, warn, error)")
	flags.StringVar(&app.logFormat, logFormatFlagName, "", "log format (structured, console)")
	flags.StringVar(&app.backend, backendFlagName, "", "graph store backend (neo4j, kuzu, memory)")
	flags.Int64Var(&app.seed, seedFlagName, 0, "random seed, 0 picks a time-based seed")
	flags.StringVar(&app.metricsFile, metricsFileFlagName, "", "write run metrics to this textfile")
	flags.StringVar(&app.pushgateway, pushgatewayFlagName, "", "push run metrics to this Pushgateway URL")

	root.AddCommand(
		app.newRunCommand(),
		app.newResetCommand(),
		app.newGenerateCommand(),
		app.newAttachCommand(),
		app.newIsolatedCommand(),
		app.newStatsCommand(),
		app.newConfigCommand(),
	)

	app.root = root
	return app
}

// ExecuteContext runs the command hierarchy and flushes the logger.
func (app *Application) ExecuteContext(ctx context.Context) error {
	err := app.root.ExecuteContext(ctx)
	if syncErr := syncLogger(app.logger); syncErr != nil && err == nil {
		return fmt.Errorf("failed to flush logger: %w", syncErr)
	}
	return err
}

// Execute builds a fresh application and runs it until completion or an
// interrupt signal. Spans go to the global otel provider, which stays noop
// unless the embedding program installs one with otel.SetTracerProvider.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewApplication().ExecuteContext(ctx)
}

func (app *Application) initializeConfiguration(cmd *cobra.Command) error {
	cfg, loaded, err := app.loader.Load(app.configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if flagChanged(cmd, logLevelFlagName) {
		cfg.Log.Level = app.logLevel
	}
	if flagChanged(cmd, logFormatFlagName) {
		cfg.Log.Format = app.logFormat
	}
	if flagChanged(cmd, backendFlagName) {
		cfg.Backend = app.backend
	}
	if flagChanged(cmd, seedFlagName) {
		cfg.Generator.Seed = app.seed
	}
	if flagChanged(cmd, metricsFileFlagName) {
		cfg.Metrics.File = app.metricsFile
	}
	if flagChanged(cmd, pushgatewayFlagName) {
		cfg.Metrics.Pushgateway = app.pushgateway
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	format, _ := logging.ParseFormat(cfg.Log.Format)
	logger, err := app.loggerFactory.CreateLogger(level, format)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	app.config = cfg
	app.loaded = loaded
	app.logger = logger
	app.logger.Debug("configuration initialized",
		zap.String("backend", cfg.Backend),
		zap.String("config_file", loaded.ConfigFileUsed),
		zap.Strings("dotenv", loaded.DotenvLoaded))
	return nil
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil {
		return false
	}

	sets := []*pflag.FlagSet{cmd.PersistentFlags(), cmd.InheritedFlags()}
	if root := cmd.Root(); root != nil {
		sets = append(sets, root.PersistentFlags())
	}
	for _, set := range sets {
		if set != nil && set.Changed(name) {
			return true
		}
	}
	return false
}

func syncLogger(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	err := logger.Sync()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, syscall.ENOTSUP), errors.Is(err, syscall.EINVAL), errors.Is(err, syscall.ENOTTY):
		return nil
	default:
		return err
	}
}

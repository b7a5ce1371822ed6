package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/randgraph/randgraph/generator"
	"github.com/randgraph/randgraph/graphs"
	"github.com/randgraph/randgraph/internal/metrics"
)

func (app *Application) newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Wipe the store, generate a random graph and attach isolated vertices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withGenerator(cmd, func(ctx context.Context, gen *generator.Generator) error {
				report, err := gen.Run(ctx)
				if err != nil {
					return err
				}
				return printReport(cmd.OutOrStdout(), report)
			})
		},
	}
}

func (app *Application) newResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete every vertex and edge in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withGenerator(cmd, func(ctx context.Context, gen *generator.Generator) error {
				if err := gen.Reset(ctx); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "graph wiped")
				return err
			})
		},
	}
}

func (app *Application) newGenerateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Add random vertices and edges without wiping or repairing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withGenerator(cmd, func(ctx context.Context, gen *generator.Generator) error {
				graph, err := gen.Generate(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "seed: %d\nvertices: %d\nedges: %d\n",
					gen.Seed(), len(graph.Nodes), len(graph.Relationships))
				return err
			})
		},
	}
}

func (app *Application) newAttachCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "attach",
		Short: "Attach isolated vertices to compatible peers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withGenerator(cmd, func(ctx context.Context, gen *generator.Generator) error {
				attachments, err := gen.AttachIsolated(ctx)
				if err != nil {
					return err
				}
				return printAttachments(cmd.OutOrStdout(), attachments)
			})
		},
	}
}

func (app *Application) newIsolatedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "isolated",
		Short: "List vertices without any edge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withGenerator(cmd, func(ctx context.Context, gen *generator.Generator) error {
				nodes, err := gen.Isolated(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tLABEL")
				for _, node := range nodes {
					fmt.Fprintf(w, "%s\t%s\n", node.Name, node.Label)
				}
				return w.Flush()
			})
		},
	}
}

func (app *Application) newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count vertices per label and edges per type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withGenerator(cmd, func(ctx context.Context, gen *generator.Generator) error {
				stats, err := gen.Stats(ctx)
				if err != nil {
					return err
				}
				return printStats(cmd.OutOrStdout(), stats)
			})
		},
	}
}

func (app *Application) newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := app.config.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

// withGenerator opens the configured store, runs fn and publishes the run
// metrics, closing the store afterwards.
func (app *Application) withGenerator(cmd *cobra.Command, fn func(ctx context.Context, gen *generator.Generator) error) (err error) {
	ctx := cmd.Context()

	store, err := app.openStore(ctx, app.config, app.logger)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", app.config.Backend, err)
	}
	defer func() {
		if closeErr := store.Close(context.WithoutCancel(ctx)); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close store: %w", closeErr))
		}
	}()

	recorder := metrics.NewRecorder()
	gen, err := generator.New(store, app.config.Generator,
		generator.WithLogger(app.logger),
		generator.WithTracer(otel.Tracer(generator.TracerName)),
		generator.WithMetrics(recorder),
	)
	if err != nil {
		return err
	}

	app.logger.Debug("command started",
		zap.String("command", cmd.Name()),
		zap.String("run_id", gen.RunID()),
		zap.Int64("seed", gen.Seed()))

	runErr := fn(ctx, gen)
	return errors.Join(runErr, app.publishMetrics(ctx, recorder, gen.RunID()))
}

func (app *Application) publishMetrics(ctx context.Context, recorder *metrics.Recorder, runID string) error {
	var errs []error
	if path := app.config.Metrics.File; path != "" {
		errs = append(errs, recorder.WriteTextfile(path))
	}
	if url := app.config.Metrics.Pushgateway; url != "" {
		errs = append(errs, recorder.Push(context.WithoutCancel(ctx), url, app.config.Metrics.Job, runID))
	}
	return errors.Join(errs...)
}

func printReport(out io.Writer, report generator.Report) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "run:\t%s\n", report.RunID)
	fmt.Fprintf(w, "seed:\t%d\n", report.Seed)
	fmt.Fprintf(w, "vertices:\t%d\n", len(report.Graph.Nodes))
	fmt.Fprintf(w, "edges:\t%d\n", len(report.Graph.Relationships))
	fmt.Fprintf(w, "isolated:\t%d\n", len(report.Attachments))
	fmt.Fprintf(w, "attached:\t%d\n", report.Count(generator.OutcomeAttached))
	fmt.Fprintf(w, "no candidate:\t%d\n", report.Count(generator.OutcomeNoCandidate))
	fmt.Fprintf(w, "unlabeled:\t%d\n", report.Count(generator.OutcomeUnlabeled))
	fmt.Fprintf(w, "duration:\t%s\n", report.Duration)
	if err := w.Flush(); err != nil {
		return err
	}
	return printAttachments(out, report.Attachments)
}

func printAttachments(out io.Writer, attachments []generator.Attachment) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERTEX\tLABEL\tOUTCOME\tEDGE")
	for _, a := range attachments {
		edge := "-"
		if a.Relationship != nil {
			edge = a.Relationship.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Node.Name, a.Node.Label, a.Outcome, edge)
	}
	return w.Flush()
}

func printStats(out io.Writer, stats graphs.Stats) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tVERTICES")
	for _, label := range stats.Labels() {
		fmt.Fprintf(w, "%s\t%d\n", label, stats.Nodes[label])
	}
	fmt.Fprintf(w, "total\t%d\n\n", stats.NodeTotal())
	fmt.Fprintln(w, "TYPE\tEDGES")
	for _, relType := range stats.Types() {
		fmt.Fprintf(w, "%s\t%d\n", relType, stats.Relationships[relType])
	}
	fmt.Fprintf(w, "total\t%d\n", stats.RelationshipTotal())
	return w.Flush()
}

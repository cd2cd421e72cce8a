package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meshtap/meshtap/internal/apiclient"
	"github.com/meshtap/meshtap/internal/config"
	"github.com/meshtap/meshtap/internal/logger"
	"github.com/meshtap/meshtap/internal/render"
	"github.com/meshtap/meshtap/internal/validation"
)

func newStatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "stat [flags] <kind>",
		Short:        "Show rollup traffic metrics for all resources of one kind",
		Long:         `stat fetches per-resource rollup metrics (request rate, success rate, latency percentiles) from the control plane metrics API. With --watch the table is polled and redrawn until interrupted.`,
		Args:         cobra.ExactArgs(1),
		RunE:         runStat,
		SilenceUsage: true,
	}
	addMetricsFlags(cmd)
	return cmd
}

func addMetricsFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&metricsWindow, "window", config.MetricsWindow, "Aggregation window for metrics (e.g. 30s, 1m)")
	cmd.Flags().BoolVarP(&watchMetrics, "watch", "w", false, "Poll and redraw until interrupted")
}

func runStat(cmd *cobra.Command, args []string) error {
	kind, name, err := validation.ParseResourceTarget(args[0])
	if err != nil {
		return fmt.Errorf("invalid resource kind: %w", err)
	}
	if name != "" {
		return fmt.Errorf("stat takes a resource kind, not a name (got %q)", args[0])
	}
	if err := validation.ValidateNamespace(namespace); err != nil {
		return fmt.Errorf("invalid namespace: %w", err)
	}
	if err := validation.ValidateWindow(metricsWindow); err != nil {
		return fmt.Errorf("invalid window: %w", err)
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		return fmt.Errorf("invalid output format: %w", err)
	}

	cleanup := setupRuntime()
	defer cleanup()

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	banner := render.NewBanner()
	source, err := dataSourceFactory(ctx, banner.Set)
	if err != nil {
		return fmt.Errorf("failed to create data source: %w", err)
	}

	req := apiclient.StatsRequest{
		ResourceType: kind,
		Namespace:    namespace,
		Window:       metricsWindow,
	}

	if !watchMetrics {
		rows, err := source.Stats(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to fetch stats: %w", err)
		}
		alertLowSuccessRates(statSamples(kind, rows))
		return printResult(render.FormatStatTable(rows), rows)
	}

	logger.Info("Watching stats",
		zap.String("namespace", namespace),
		zap.String("kind", kind),
		zap.String("window", metricsWindow))

	title := fmt.Sprintf("stat %s in %s", kind, namespace)
	return watchStats(ctx, source, req, banner, title)
}

// watchStats polls the stats endpoint and keeps the latest table
// rendered until ctx is canceled.
func watchStats(ctx context.Context, source DataSource, req apiclient.StatsRequest, banner *render.Banner, title string) error {
	view := newPollView()
	fetch := func(fctx context.Context) error {
		rows, err := source.Stats(fctx, req)
		if err != nil {
			return err
		}
		view.set(render.FormatStatTable(rows))
		alertLowSuccessRates(statSamples(req.ResourceType, rows))
		return nil
	}
	return runWatch(ctx, title, view, banner, fetch)
}

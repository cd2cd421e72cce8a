package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meshtap/meshtap/internal/apiclient"
	"github.com/meshtap/meshtap/internal/logger"
	"github.com/meshtap/meshtap/internal/render"
	"github.com/meshtap/meshtap/internal/validation"
)

func newRoutesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "routes [flags] <kind>/<name>",
		Short:        "Show per-route rollup metrics for one resource",
		Long:         `routes fetches the per-route rollup metrics the control plane keeps for one resource. With --watch the table is polled and redrawn until interrupted.`,
		Args:         cobra.ExactArgs(1),
		RunE:         runRoutes,
		SilenceUsage: true,
	}
	addMetricsFlags(cmd)
	return cmd
}

func runRoutes(cmd *cobra.Command, args []string) error {
	target := args[0]
	if err := validation.ValidateResourceTarget(target); err != nil {
		return fmt.Errorf("invalid resource target: %w", err)
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

	req := apiclient.RoutesRequest{
		Resource:  target,
		Namespace: namespace,
		Window:    metricsWindow,
	}

	if !watchMetrics {
		rows, err := source.Routes(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to fetch routes: %w", err)
		}
		alertLowSuccessRates(routeSamples(target, namespace, rows))
		return printResult(render.FormatRouteTable(rows), rows)
	}

	logger.Info("Watching routes",
		zap.String("namespace", namespace),
		zap.String("target", target),
		zap.String("window", metricsWindow))

	title := fmt.Sprintf("routes %s in %s", target, namespace)
	return watchRoutes(ctx, source, req, banner, title)
}

// watchRoutes polls the routes endpoint and keeps the latest table
// rendered until ctx is canceled.
func watchRoutes(ctx context.Context, source DataSource, req apiclient.RoutesRequest, banner *render.Banner, title string) error {
	view := newPollView()
	fetch := func(fctx context.Context) error {
		rows, err := source.Routes(fctx, req)
		if err != nil {
			return err
		}
		view.set(render.FormatRouteTable(rows))
		alertLowSuccessRates(routeSamples(req.Resource, req.Namespace, rows))
		return nil
	}
	return runWatch(ctx, title, view, banner, fetch)
}

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meshtap/meshtap/internal/aggregate"
	"github.com/meshtap/meshtap/internal/config"
	"github.com/meshtap/meshtap/internal/correlate"
	"github.com/meshtap/meshtap/internal/logger"
	"github.com/meshtap/meshtap/internal/metricsexporter"
	"github.com/meshtap/meshtap/internal/redactor"
	"github.com/meshtap/meshtap/internal/render"
	"github.com/meshtap/meshtap/internal/tapevent"
	"github.com/meshtap/meshtap/internal/validation"
)

func newTopCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "top [flags] <kind>/<name>",
		Short:        "Rank live routes of a meshed workload by request count",
		Long:         `top folds the tap stream for one resource into a per-route leaderboard with counts, success rates and latency extremes. With -o json the final leaderboard is printed once on exit.`,
		Args:         cobra.ExactArgs(1),
		RunE:         runTop,
		SilenceUsage: true,
	}
	addTapFlags(cmd)
	return cmd
}

func runTop(cmd *cobra.Command, args []string) error {
	target := args[0]
	query, err := buildTapQuery(target)
	if err != nil {
		return err
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

	logger.Info("Starting top",
		zap.String("namespace", namespace),
		zap.String("target", target))

	aggregator := aggregate.NewAggregator(config.TopResultCap)
	correlator := correlate.NewCorrelator(config.TapResultCap, aggregator.Fold)
	red := redactor.Default()

	handle := func(e *tapevent.Event) {
		start := time.Now()
		red.Redact(e)
		correlator.Apply(e, start)
		observeResponseLatency(e)
		metricsexporter.RecordEventProcessingLatency(time.Since(start))
	}

	if strings.EqualFold(outputFormat, "json") {
		err := source.Tap(ctx, query, handle)
		if exportErr := render.ExportJSON(os.Stdout, aggregator.Snapshot()); exportErr != nil && err == nil {
			err = exportErr
		}
		return err
	}

	view := &topView{
		aggregator: aggregator,
		wide:       strings.EqualFold(outputFormat, "wide"),
	}
	loop := render.NewLoop(fmt.Sprintf("top %s in %s", target, namespace), view, banner)
	return runStream(ctx, cancel, loop, func() error {
		return source.Tap(ctx, query, handle)
	})
}

// topView renders the route leaderboard. Partial requests do not move
// the aggregate version, so frames are skipped until a request
// completes.
type topView struct {
	aggregator *aggregate.Aggregator
	wide       bool
}

func (v *topView) Version() uint64 {
	return v.aggregator.Version()
}

func (v *topView) Render() string {
	snap := v.aggregator.Snapshot()
	metricsexporter.SetTopRoutes(len(snap.Rows))
	return render.FormatTopTable(snap, config.TopDisplayRows, v.wide)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meshtap/meshtap/internal/config"
	"github.com/meshtap/meshtap/internal/correlate"
	"github.com/meshtap/meshtap/internal/logger"
	"github.com/meshtap/meshtap/internal/metricsexporter"
	"github.com/meshtap/meshtap/internal/redactor"
	"github.com/meshtap/meshtap/internal/render"
	"github.com/meshtap/meshtap/internal/stream"
	"github.com/meshtap/meshtap/internal/tapevent"
	"github.com/meshtap/meshtap/internal/validation"
)

func newTapCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "tap [flags] <kind>/<name>",
		Short:        "Stream live request metadata from a meshed workload",
		Long:         `tap subscribes to the control plane tap stream for one resource and renders a rolling table of correlated requests. With -o json every event is written as one JSON object per line instead.`,
		Args:         cobra.ExactArgs(1),
		RunE:         runTap,
		SilenceUsage: true,
	}
	addTapFlags(cmd)
	return cmd
}

func addTapFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&toNamespace, "to-namespace", "", "Only show requests to this namespace")
	cmd.Flags().StringVar(&toResource, "to-resource", "", "Only show requests to this resource (<kind>/<name>)")
	cmd.Flags().StringVar(&methodFilter, "method", "", "Only show requests with this HTTP method")
	cmd.Flags().StringVar(&pathFilter, "path", "", "Only show requests with paths starting with this prefix")
	cmd.Flags().StringVar(&schemeFilter, "scheme", "", "Only show requests with this scheme (HTTP, HTTPS)")
	cmd.Flags().StringVar(&authorityFilter, "authority", "", "Only show requests with this :authority")
	cmd.Flags().Float64Var(&maxRPS, "max-rps", config.DefaultTapRPS, "Maximum requests per second to sample per target pod")
}

func runTap(cmd *cobra.Command, args []string) error {
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

	logger.Info("Starting tap",
		zap.String("namespace", namespace),
		zap.String("target", target))

	red := redactor.Default()

	if strings.EqualFold(outputFormat, "json") {
		return tapJSON(ctx, source, query, red)
	}

	correlator := correlate.NewCorrelator(config.TapResultCap, nil)
	filters := correlate.NewFilterOptions(config.FilterOptionCap)
	view := &tapView{
		correlator: correlator,
		filters:    filters,
		wide:       strings.EqualFold(outputFormat, "wide"),
	}

	handle := func(e *tapevent.Event) {
		start := time.Now()
		red.Redact(e)
		correlator.Apply(e, start)
		filters.ObserveEvent(e, start)
		observeResponseLatency(e)
		metricsexporter.RecordEventProcessingLatency(time.Since(start))
	}

	loop := render.NewLoop(fmt.Sprintf("tap %s in %s", target, namespace), view, banner)
	return runStream(ctx, cancel, loop, func() error {
		return source.Tap(ctx, query, handle)
	})
}

// runStream runs the stream and the render loop together. Whichever
// stops first, the loop always gets to draw the final snapshot before
// the stream error is returned.
func runStream(ctx context.Context, cancel context.CancelFunc, loop *render.Loop, tap func() error) error {
	streamErr := make(chan error, 1)
	go func() { streamErr <- tap() }()

	loopDone := make(chan struct{})
	go func() {
		_ = loop.Run(ctx)
		close(loopDone)
	}()

	err := <-streamErr
	cancel()
	<-loopDone
	return err
}

// tapJSON copies the event flow to stdout, one JSON object per line,
// without the interactive table. Redaction still applies.
func tapJSON(ctx context.Context, source DataSource, query stream.Query, red *redactor.Redactor) error {
	enc := json.NewEncoder(os.Stdout)
	return source.Tap(ctx, query, func(e *tapevent.Event) {
		red.Redact(e)
		if err := enc.Encode(e); err != nil {
			logger.Warn("Failed to encode tap event", zap.Error(err))
		}
	})
}

// buildTapQuery validates the target and every filter flag, then
// assembles the subscription query sent to the tap endpoint.
func buildTapQuery(target string) (stream.Query, error) {
	var query stream.Query

	if err := validation.ValidateResourceTarget(target); err != nil {
		return query, fmt.Errorf("invalid resource target: %w", err)
	}
	if err := validation.ValidateNamespace(namespace); err != nil {
		return query, fmt.Errorf("invalid namespace: %w", err)
	}
	if toResource != "" {
		if err := validation.ValidateResourceTarget(toResource); err != nil {
			return query, fmt.Errorf("invalid to-resource: %w", err)
		}
	}
	if toNamespace != "" {
		if err := validation.ValidateNamespace(toNamespace); err != nil {
			return query, fmt.Errorf("invalid to-namespace: %w", err)
		}
	}
	if err := validation.ValidateMethod(methodFilter); err != nil {
		return query, fmt.Errorf("invalid method: %w", err)
	}
	if err := validation.ValidatePath(pathFilter); err != nil {
		return query, fmt.Errorf("invalid path: %w", err)
	}
	if err := validation.ValidateScheme(schemeFilter); err != nil {
		return query, fmt.Errorf("invalid scheme: %w", err)
	}
	if err := validation.ValidateAuthority(authorityFilter); err != nil {
		return query, fmt.Errorf("invalid authority: %w", err)
	}
	if err := validation.ValidateMaxRPS(maxRPS); err != nil {
		return query, fmt.Errorf("invalid max-rps: %w", err)
	}

	return stream.Query{
		Namespace:   namespace,
		Resource:    target,
		ToNamespace: toNamespace,
		ToResource:  toResource,
		Method:      strings.ToUpper(methodFilter),
		Path:        pathFilter,
		Scheme:      schemeFilter,
		Authority:   authorityFilter,
		MaxRPS:      maxRPS,
	}, nil
}

// observeResponseLatency records the end-to-end latency histogram for
// completed requests.
func observeResponseLatency(e *tapevent.Event) {
	if e == nil || e.ResponseEnd == nil {
		return
	}
	d, err := tapevent.ParseLatency(e.ResponseEnd.SinceRequestInit)
	if err != nil {
		return
	}
	metricsexporter.ObserveRequestLatency(string(e.Direction), d)
}

// tapView renders the correlator snapshot plus the observed filter
// values footer.
type tapView struct {
	correlator *correlate.Correlator
	filters    *correlate.FilterOptions
	wide       bool
}

func (v *tapView) Version() uint64 {
	return v.correlator.Version() + v.filters.Version()
}

func (v *tapView) Render() string {
	snap := v.correlator.Snapshot()
	metricsexporter.SetTapRows(len(snap.Rows))

	var b strings.Builder
	b.WriteString(render.FormatTapTable(snap.Rows, v.wide))
	if opts := v.filters.Options(); len(opts) > 0 {
		b.WriteString("\n")
		b.WriteString(render.FormatFilterOptions(opts))
	}
	return b.String()
}

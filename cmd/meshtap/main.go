package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meshtap/meshtap/internal/alerting"
	"github.com/meshtap/meshtap/internal/config"
	"github.com/meshtap/meshtap/internal/logger"
	"github.com/meshtap/meshtap/internal/metricsexporter"
	"github.com/meshtap/meshtap/internal/render"
	"github.com/meshtap/meshtap/internal/tracing"
)

var (
	namespace           string
	apiAddr             string
	toNamespace         string
	toResource          string
	methodFilter        string
	pathFilter          string
	schemeFilter        string
	authorityFilter     string
	maxRPS              float64
	outputFormat        string
	metricsWindow       string
	watchMetrics        bool
	enableMetrics       bool
	enableTracing       bool
	logLevel            string
	tracingOTLPEndpoint string
	tracingSampleRate   float64

	dataSourceFactory func(ctx context.Context, notice func(string)) (DataSource, error)
	sendAlert         func(alert *alerting.Alert)
	exitFunc          func(int)
)

func init() {
	dataSourceFactory = newLiveSource
	sendAlert = func(alert *alerting.Alert) {
		if manager := alerting.GetGlobalManager(); manager != nil {
			manager.SendAlert(alert)
		}
	}
	exitFunc = os.Exit
}

func main() {
	var rootCmd = &cobra.Command{
		Use:          "meshtap",
		Short:        "Terminal client for the mesh control plane tap and metrics APIs",
		Long:         `meshtap subscribes to the control plane tap stream of a service mesh and renders live request tables, route leaderboards and rollup metrics for meshed workloads.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&namespace, "namespace", "n", config.DefaultNamespace, "Kubernetes namespace of the target resource")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "Output format (table, json, wide)")
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api-addr", "", "Control plane API address. Overrides MESHTAP_API_ADDR and the Kubernetes service lookup")
	rootCmd.PersistentFlags().BoolVar(&enableMetrics, "metrics", false, "Enable Prometheus metrics server")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log level (debug, info, warn, error, fatal). Overrides MESHTAP_LOG_LEVEL environment variable")
	rootCmd.PersistentFlags().BoolVar(&enableTracing, "tracing", config.DefaultTracingEnabled, "Enable distributed tracing")
	rootCmd.PersistentFlags().StringVar(&tracingOTLPEndpoint, "tracing-otlp-endpoint", config.DefaultOTLPEndpoint, "OpenTelemetry OTLP endpoint")
	rootCmd.PersistentFlags().Float64Var(&tracingSampleRate, "tracing-sample-rate", config.DefaultTracingSampleRate, "Tracing sample rate (0.0-1.0)")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if logLevel != "" {
			logger.SetLevel(logLevel)
		}
	}

	rootCmd.AddCommand(newTapCommand())
	rootCmd.AddCommand(newTopCommand())
	rootCmd.AddCommand(newStatCommand())
	rootCmd.AddCommand(newRoutesCommand())
	rootCmd.AddCommand(newEdgesCommand())

	if err := rootCmd.Execute(); err != nil {
		logger.Error("Command execution failed", zap.Error(err))
		exitFunc(1)
	}
	defer logger.Sync()
}

// setupRuntime applies flag overrides to the config package and starts
// the optional metrics server, alerting manager and tracing pipeline.
// The returned cleanup tears them down in reverse order.
func setupRuntime() func() {
	if apiAddr != "" {
		config.APIAddrOverride = apiAddr
	}
	if enableTracing {
		config.TracingEnabled = true
		if tracingOTLPEndpoint != "" {
			config.OTLPEndpoint = tracingOTLPEndpoint
		}
		if tracingSampleRate >= 0.0 && tracingSampleRate <= 1.0 {
			config.TracingSampleRate = tracingSampleRate
		}
	}

	var metricsServer *metricsexporter.Server
	if enableMetrics {
		metricsServer = metricsexporter.StartServer()
	}

	alertManager, err := alerting.NewManager()
	if err != nil {
		logger.Warn("Failed to create alert manager", zap.Error(err))
	} else {
		alerting.SetGlobalManager(alertManager)
	}

	tracingManager, err := tracing.NewManager()
	if err != nil {
		logger.Warn("Failed to create tracing manager", zap.Error(err))
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		if tracingManager != nil {
			_ = tracingManager.Shutdown(shutdownCtx)
		}
		if alertManager != nil {
			_ = alertManager.Shutdown(shutdownCtx)
		}
		if metricsServer != nil {
			metricsServer.Shutdown()
		}
	}
}

// interruptChan returns a channel that receives SIGINT and SIGTERM.
func interruptChan() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	return sigChan
}

// signalContext derives a context that is canceled by the first
// interrupt. The render loop reacts by printing the final snapshot.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-ctx.Done():
		case sig := <-interruptChan():
			logger.Info("Interrupt received, shutting down", zap.String("signal", sig.String()))
			cancel()
		}
	}()
	return ctx, cancel
}

// printResult writes the rendered table to stdout, or the raw rows as
// indented JSON when -o json is set.
func printResult(table string, rows any) error {
	if strings.EqualFold(outputFormat, "json") {
		return render.ExportJSON(os.Stdout, rows)
	}
	fmt.Print(table)
	return nil
}

package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/meshtap/meshtap/internal/alerting"
	"github.com/meshtap/meshtap/internal/apiclient"
	"github.com/meshtap/meshtap/internal/config"
)

var stdoutMutex sync.Mutex

// captureStdout runs fn with stdout redirected to a pipe and returns
// everything written while fn ran.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	stdoutMutex.Lock()
	defer stdoutMutex.Unlock()

	originalStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() failed: %v", err)
	}
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = originalStdout

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

// resetCommandFlags snapshots every package-level flag and factory var
// and restores them when the test finishes.
func resetCommandFlags(t *testing.T) {
	t.Helper()
	origNamespace := namespace
	origAPIAddr := apiAddr
	origToNamespace := toNamespace
	origToResource := toResource
	origMethodFilter := methodFilter
	origPathFilter := pathFilter
	origSchemeFilter := schemeFilter
	origAuthorityFilter := authorityFilter
	origMaxRPS := maxRPS
	origOutputFormat := outputFormat
	origMetricsWindow := metricsWindow
	origWatchMetrics := watchMetrics
	origEnableMetrics := enableMetrics
	origEnableTracing := enableTracing
	origLogLevel := logLevel
	origFactory := dataSourceFactory
	origSendAlert := sendAlert
	origExitFunc := exitFunc
	t.Cleanup(func() {
		namespace = origNamespace
		apiAddr = origAPIAddr
		toNamespace = origToNamespace
		toResource = origToResource
		methodFilter = origMethodFilter
		pathFilter = origPathFilter
		schemeFilter = origSchemeFilter
		authorityFilter = origAuthorityFilter
		maxRPS = origMaxRPS
		outputFormat = origOutputFormat
		metricsWindow = origMetricsWindow
		watchMetrics = origWatchMetrics
		enableMetrics = origEnableMetrics
		enableTracing = origEnableTracing
		logLevel = origLogLevel
		dataSourceFactory = origFactory
		sendAlert = origSendAlert
		exitFunc = origExitFunc
	})
}

// setDefaultFlags puts every flag var into its parsed-default state,
// since tests call the run functions without going through cobra.
func setDefaultFlags() {
	namespace = config.DefaultNamespace
	apiAddr = ""
	toNamespace = ""
	toResource = ""
	methodFilter = ""
	pathFilter = ""
	schemeFilter = ""
	authorityFilter = ""
	maxRPS = config.DefaultTapRPS
	outputFormat = ""
	metricsWindow = config.MetricsWindow
	watchMetrics = false
	enableMetrics = false
	enableTracing = false
	logLevel = ""
}

func TestPrintResult_Table(t *testing.T) {
	resetCommandFlags(t)
	setDefaultFlags()

	out := captureStdout(t, func() {
		if err := printResult("NAME\nweb\n", nil); err != nil {
			t.Errorf("printResult returned error: %v", err)
		}
	})
	if !strings.Contains(out, "web") {
		t.Errorf("expected table output, got %q", out)
	}
}

func TestPrintResult_JSON(t *testing.T) {
	resetCommandFlags(t)
	setDefaultFlags()
	outputFormat = "json"

	rows := []apiclient.StatRow{{Name: "web", Namespace: "prod", RPS: 1.5}}
	out := captureStdout(t, func() {
		if err := printResult("unused table", rows); err != nil {
			t.Errorf("printResult returned error: %v", err)
		}
	})
	if strings.Contains(out, "unused table") {
		t.Errorf("json mode printed the table: %q", out)
	}

	var decoded []apiclient.StatRow
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	if len(decoded) != 1 || decoded[0].Name != "web" {
		t.Errorf("unexpected decoded rows: %+v", decoded)
	}
}

func TestAlertLowSuccessRates(t *testing.T) {
	resetCommandFlags(t)
	setDefaultFlags()

	origThreshold := config.SuccessRateAlertThreshold
	config.SuccessRateAlertThreshold = 90.0
	defer func() { config.SuccessRateAlertThreshold = origThreshold }()

	var mu sync.Mutex
	var got []*alerting.Alert
	sendAlert = func(alert *alerting.Alert) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, alert)
	}

	alertLowSuccessRates([]successRateSample{
		{resource: "deployment/web", namespace: "prod", rps: 5, rate: 0.5},
		{resource: "deployment/ok", namespace: "prod", rps: 5, rate: 0.99},
		{resource: "deployment/idle", namespace: "prod", rps: 0, rate: 0},
		{resource: "deployment/api", namespace: "prod", route: "GET /items", rps: 2, rate: 0.85},
	})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(got))
	}
	if got[0].Resource != "deployment/web" || got[0].Namespace != "prod" {
		t.Errorf("unexpected first alert: %+v", got[0])
	}
	if got[1].Route != "GET /items" {
		t.Errorf("expected route on second alert, got %+v", got[1])
	}
}

func TestStatSamples(t *testing.T) {
	rows := []apiclient.StatRow{
		{Name: "web", Namespace: "prod", RPS: 3, SuccessRate: 0.75},
	}
	samples := statSamples("deployment", rows)
	if len(samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(samples))
	}
	s := samples[0]
	if s.resource != "deployment/web" || s.namespace != "prod" || s.route != "" {
		t.Errorf("unexpected sample: %+v", s)
	}
	if s.rps != 3 || s.rate != 0.75 {
		t.Errorf("unexpected sample numbers: %+v", s)
	}
}

func TestRouteSamples(t *testing.T) {
	rows := []apiclient.RouteRow{
		{Route: "GET /api/items", RPS: 1.5, SuccessRate: 0.6},
	}
	samples := routeSamples("deployment/web", "prod", rows)
	if len(samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(samples))
	}
	s := samples[0]
	if s.resource != "deployment/web" || s.namespace != "prod" || s.route != "GET /api/items" {
		t.Errorf("unexpected sample: %+v", s)
	}
}

func TestSetupRuntime_CleanupIsSafe(t *testing.T) {
	resetCommandFlags(t)
	setDefaultFlags()

	cleanup := setupRuntime()
	cleanup()
}

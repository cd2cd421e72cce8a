package config

import (
	"os"
	"strconv"
	"time"
)

const (
	DefaultNamespace             = "default"
	DefaultAPIScheme             = "http"
	DefaultControlNamespace      = "mesh-system"
	DefaultControlAPIService     = "mesh-api"
	DefaultControlAPIPort        = 8085
	DefaultAPITimeout            = 10 * time.Second
	DefaultPollInterval          = 2 * time.Second
	DefaultMetricsWindow         = "1m"
	DefaultRenderInterval        = 500 * time.Millisecond
	DefaultMetricsPort           = 3000
	DefaultMetricsHost           = "127.0.0.1"
	DefaultLogLevel              = "info"
	DefaultTracingEnabled        = false
	DefaultTracingSampleRate     = 1.0
	DefaultOTLPEndpoint          = "http://localhost:4318"
	DefaultAlertHTTPTimeout      = 10 * time.Second
	DefaultAlertDedupWindow      = 5 * time.Minute
	DefaultAlertRateLimitPerMin  = 10
	DefaultAlertMaxRetries       = 3
	DefaultAlertRetryBackoffBase = 1 * time.Second
	DefaultAlertMaxPayloadSize   = 1024 * 1024
	DefaultSplunkEndpoint        = "http://localhost:8088/services/collector"
	DefaultVersion               = "v0.3.0"
)

const (
	DefaultTapResultCap    = 40
	DefaultTopResultCap    = 50
	DefaultFilterOptionCap = 12
	DefaultTopDisplayRows  = 10
	DefaultDisplaySetCap   = 10
	DefaultTapEventBuffer  = 1000
	MaxResourceNameLength  = 253
	MaxMethodLength        = 16
	MaxPathLength          = 2048
	MaxAuthorityLength     = 256
	MaxTapRPS              = 100.0
	DefaultTapRPS          = 1.0
)

const (
	DefaultStreamHandshakeTimeout = 10 * time.Second
	DefaultStreamWriteTimeout     = 10 * time.Second
	DefaultStreamMaxMessageBytes  = 1024 * 1024
	DefaultShutdownTimeout        = 5 * time.Second
	DefaultTracingExporterTimeout = 10 * time.Second
	DefaultMetricsReadTimeout     = 5 * time.Second
	DefaultMetricsWriteTimeout    = 10 * time.Second
	DefaultMetricsShutdownTimeout = 5 * time.Second
)

const (
	MaxRequestSize         = 1024 * 1024
	DefaultRateLimitPerSec = 10
	DefaultRateLimitBurst  = 20
)

const (
	DefaultSuccessRateAlertThreshold = 90.0
	Percent100                       = 100.0
	TruncateEllipsisLen              = 3
)

const (
	KB uint64 = 1024
	MB        = KB * 1024
	GB        = MB * 1024
)

var (
	TapEventBufferSize        = getIntEnvOrDefault("MESHTAP_TAP_EVENT_BUFFER_SIZE", DefaultTapEventBuffer)
	TapResultCap              = getIntEnvOrDefault("MESHTAP_TAP_RESULT_CAP", DefaultTapResultCap)
	TopResultCap              = getIntEnvOrDefault("MESHTAP_TOP_RESULT_CAP", DefaultTopResultCap)
	FilterOptionCap           = getIntEnvOrDefault("MESHTAP_FILTER_OPTION_CAP", DefaultFilterOptionCap)
	TopDisplayRows            = getIntEnvOrDefault("MESHTAP_TOP_DISPLAY_ROWS", DefaultTopDisplayRows)
	DisplaySetCap             = getIntEnvOrDefault("MESHTAP_DISPLAY_SET_CAP", DefaultDisplaySetCap)
	RenderInterval            = getDurationEnvOrDefault("MESHTAP_RENDER_INTERVAL", DefaultRenderInterval)
	PollInterval              = getDurationEnvOrDefault("MESHTAP_POLL_INTERVAL", DefaultPollInterval)
	APITimeout                = getDurationEnvOrDefault("MESHTAP_API_TIMEOUT", DefaultAPITimeout)
	MetricsWindow             = getEnvOrDefault("MESHTAP_METRICS_WINDOW", DefaultMetricsWindow)
	ControlNamespace          = getEnvOrDefault("MESHTAP_CONTROL_NAMESPACE", DefaultControlNamespace)
	ControlAPIService         = getEnvOrDefault("MESHTAP_CONTROL_API_SERVICE", DefaultControlAPIService)
	ControlAPIPort            = getIntEnvOrDefault("MESHTAP_CONTROL_API_PORT", DefaultControlAPIPort)
	APIAddrOverride           = getEnvOrDefault("MESHTAP_API_ADDR", "")
	StreamHandshakeTimeout    = getDurationEnvOrDefault("MESHTAP_STREAM_HANDSHAKE_TIMEOUT", DefaultStreamHandshakeTimeout)
	StreamWriteTimeout        = getDurationEnvOrDefault("MESHTAP_STREAM_WRITE_TIMEOUT", DefaultStreamWriteTimeout)
	StreamMaxMessageBytes     = getInt64EnvOrDefault("MESHTAP_STREAM_MAX_MESSAGE_BYTES", DefaultStreamMaxMessageBytes)
	TracingEnabled            = getEnvOrDefault("MESHTAP_TRACING_ENABLED", "false") == "true"
	TracingSampleRate         = getFloatEnvOrDefault("MESHTAP_TRACING_SAMPLE_RATE", DefaultTracingSampleRate)
	OTLPEndpoint              = getEnvOrDefault("MESHTAP_OTLP_ENDPOINT", DefaultOTLPEndpoint)
	AlertingEnabled           = getEnvOrDefault("MESHTAP_ALERTING_ENABLED", "false") == "true"
	AlertWebhookURL           = getEnvOrDefault("MESHTAP_ALERT_WEBHOOK_URL", "")
	AlertSlackWebhookURL      = getEnvOrDefault("MESHTAP_ALERT_SLACK_WEBHOOK_URL", "")
	AlertSlackChannel         = getEnvOrDefault("MESHTAP_ALERT_SLACK_CHANNEL", "#alerts")
	AlertSplunkEnabled        = getEnvOrDefault("MESHTAP_ALERT_SPLUNK_ENABLED", "false") == "true"
	SplunkEndpoint            = getEnvOrDefault("MESHTAP_SPLUNK_ENDPOINT", DefaultSplunkEndpoint)
	SplunkToken               = getEnvOrDefault("MESHTAP_SPLUNK_TOKEN", "")
	AlertDeduplicationWindow  = getDurationEnvOrDefault("MESHTAP_ALERT_DEDUP_WINDOW", DefaultAlertDedupWindow)
	AlertRateLimitPerMinute   = getIntEnvOrDefault("MESHTAP_ALERT_RATE_LIMIT", DefaultAlertRateLimitPerMin)
	AlertHTTPTimeout          = getDurationEnvOrDefault("MESHTAP_ALERT_HTTP_TIMEOUT", DefaultAlertHTTPTimeout)
	AlertMaxRetries           = getIntEnvOrDefault("MESHTAP_ALERT_MAX_RETRIES", DefaultAlertMaxRetries)
	AlertMaxPayloadSize       = getInt64EnvOrDefault("MESHTAP_ALERT_MAX_PAYLOAD_SIZE", DefaultAlertMaxPayloadSize)
	SuccessRateAlertThreshold = getFloatEnvOrDefault("MESHTAP_SUCCESS_RATE_ALERT_THRESHOLD", DefaultSuccessRateAlertThreshold)
	ShutdownTimeout           = getDurationEnvOrDefault("MESHTAP_SHUTDOWN_TIMEOUT", DefaultShutdownTimeout)
	TracingExporterTimeout    = getDurationEnvOrDefault("MESHTAP_TRACING_EXPORTER_TIMEOUT", DefaultTracingExporterTimeout)
	RateLimitPerSec           = getIntEnvOrDefault("MESHTAP_RATE_LIMIT_PER_SEC", DefaultRateLimitPerSec)
	RateLimitBurst            = getIntEnvOrDefault("MESHTAP_RATE_LIMIT_BURST", DefaultRateLimitBurst)
	Version                   = getEnvOrDefault("MESHTAP_VERSION", DefaultVersion)
)

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getFloatEnvOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil && i > 0 {
			return i
		}
	}
	return defaultValue
}

func getInt64EnvOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil && i > 0 {
			return i
		}
	}
	return defaultValue
}

func getDurationEnvOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func GetMetricsAddress() string {
	addr := os.Getenv("MESHTAP_METRICS_ADDR")
	if addr == "" {
		addr = DefaultMetricsHost + ":" + strconv.Itoa(DefaultMetricsPort)
	}
	return addr
}

func AllowNonLoopbackMetrics() bool {
	return os.Getenv("MESHTAP_METRICS_INSECURE_ALLOW_ANY_ADDR") == "1"
}

func GetAlertMinSeverity() string {
	return getEnvOrDefault("MESHTAP_ALERT_MIN_SEVERITY", "warning")
}

func GetVersion() string {
	return Version
}

func GetUserAgent() string {
	return "Meshtap/" + Version
}

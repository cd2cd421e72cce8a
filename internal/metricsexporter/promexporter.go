package metricsexporter

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/meshtap/meshtap/internal/config"
	"github.com/meshtap/meshtap/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tapEventsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meshtap_tap_events_total",
			Help: "Total number of tap events received from the stream.",
		},
	)

	parseErrorsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meshtap_tap_parse_errors_total",
			Help: "Total number of stream records dropped as undecodable.",
		},
	)

	correlatorEvictionsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meshtap_correlator_evictions_total",
			Help: "Total number of rows evicted from the tap result index.",
		},
	)

	filterEvictionsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meshtap_filter_evictions_total",
			Help: "Total number of values evicted from filter-option sets.",
		},
	)

	aggregateEvictionsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meshtap_aggregate_evictions_total",
			Help: "Total number of routes evicted from the top aggregate.",
		},
	)

	foldsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meshtap_folds_total",
			Help: "Total number of completed requests folded into route aggregates.",
		},
	)

	pollCyclesCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meshtap_poll_cycles_total",
			Help: "Total number of metrics API poll cycles started.",
		},
	)

	pollErrorsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshtap_poll_errors_total",
			Help: "Total number of failed metrics API polls by endpoint.",
		},
		[]string{"endpoint"},
	)

	renderFramesCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meshtap_render_frames_total",
			Help: "Total number of frames drawn by the terminal renderer.",
		},
	)

	streamFailuresCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meshtap_stream_failures_total",
			Help: "Total number of tap stream transport failures.",
		},
	)

	requestLatencyHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meshtap_request_latency_seconds",
			Help:    "End-to-end latency of completed tapped requests.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 20),
		},
		[]string{"direction"},
	)

	requestLatencyGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "meshtap_request_latency_latest_seconds",
			Help: "Most recent latency of a completed tapped request.",
		},
		[]string{"direction"},
	)

	eventProcessingLatencyHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "meshtap_event_processing_latency_seconds",
			Help:    "Time taken to take one stream record through parse, correlate and fold.",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20),
		},
	)

	tapRowsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "meshtap_tap_rows",
			Help: "Number of rows currently held in the tap result index.",
		},
	)

	topRoutesGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "meshtap_top_routes",
			Help: "Number of routes currently held in the top aggregate.",
		},
	)
)

func init() {
	prometheus.MustRegister(tapEventsCounter)
	prometheus.MustRegister(parseErrorsCounter)
	prometheus.MustRegister(correlatorEvictionsCounter)
	prometheus.MustRegister(filterEvictionsCounter)
	prometheus.MustRegister(aggregateEvictionsCounter)
	prometheus.MustRegister(foldsCounter)
	prometheus.MustRegister(pollCyclesCounter)
	prometheus.MustRegister(pollErrorsCounter)
	prometheus.MustRegister(renderFramesCounter)
	prometheus.MustRegister(streamFailuresCounter)
	prometheus.MustRegister(requestLatencyHistogram)
	prometheus.MustRegister(requestLatencyGauge)
	prometheus.MustRegister(eventProcessingLatencyHistogram)
	prometheus.MustRegister(tapRowsGauge)
	prometheus.MustRegister(topRoutesGauge)
}

func RecordTapEvent() {
	tapEventsCounter.Inc()
}

func RecordParseError() {
	parseErrorsCounter.Inc()
}

func RecordCorrelatorEviction() {
	correlatorEvictionsCounter.Inc()
}

func RecordFilterEviction() {
	filterEvictionsCounter.Inc()
}

func RecordAggregateEviction() {
	aggregateEvictionsCounter.Inc()
}

func RecordFold() {
	foldsCounter.Inc()
}

func RecordPollCycle() {
	pollCyclesCounter.Inc()
}

func RecordPollError(endpoint string) {
	pollErrorsCounter.WithLabelValues(endpoint).Inc()
}

func RecordRenderFrame() {
	renderFramesCounter.Inc()
}

func RecordStreamFailure() {
	streamFailuresCounter.Inc()
}

func ObserveRequestLatency(direction string, d time.Duration) {
	requestLatencyHistogram.WithLabelValues(direction).Observe(d.Seconds())
	requestLatencyGauge.WithLabelValues(direction).Set(d.Seconds())
}

func RecordEventProcessingLatency(d time.Duration) {
	eventProcessingLatencyHistogram.Observe(d.Seconds())
}

func SetTapRows(n int) {
	tapRowsGauge.Set(float64(n))
}

func SetTopRoutes(n int) {
	topRoutesGauge.Set(float64(n))
}

var (
	limiter        = rate.NewLimiter(rate.Every(time.Second/time.Duration(config.RateLimitPerSec)), config.RateLimitBurst)
	maxRequestSize = int64(config.MaxRequestSize)
)

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > maxRequestSize {
			http.Error(w, "Request too large", http.StatusRequestEntityTooLarge)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type Server struct {
	server *http.Server
}

func StartServer() *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", securityHeadersMiddleware(rateLimitMiddleware(promhttp.Handler())))

	addr := config.GetMetricsAddress()

	if host, _, err := net.SplitHostPort(addr); err == nil {
		if ip := net.ParseIP(host); ip != nil && !ip.IsLoopback() {
			if !config.AllowNonLoopbackMetrics() {
				logger.Warn("Rejecting non-loopback metrics address, falling back to default",
					zap.String("requested_addr", addr),
					zap.String("fallback", fmt.Sprintf("%s:%d", config.DefaultMetricsHost, config.DefaultMetricsPort)))
				addr = config.DefaultMetricsHost + ":" + fmt.Sprintf("%d", config.DefaultMetricsPort)
			}
		}
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  config.DefaultMetricsReadTimeout,
		WriteTimeout: config.DefaultMetricsWriteTimeout,
	}

	srv := &Server{server: server}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Panic in metrics server", zap.Any("panic", r))
			}
		}()
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	return srv
}

func (s *Server) Shutdown() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), config.DefaultMetricsShutdownTimeout)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
}

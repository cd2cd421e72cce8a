// Package stream maintains the persistent tap session against the
// control-plane API. The client dials the tap endpoint, sends one
// query message describing the requested traffic, then decodes
// lifecycle events until the stream ends or the context is canceled.
package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/meshtap/meshtap/internal/alerting"
	"github.com/meshtap/meshtap/internal/config"
	"github.com/meshtap/meshtap/internal/logger"
	"github.com/meshtap/meshtap/internal/metricsexporter"
	"github.com/meshtap/meshtap/internal/tapevent"
)

const tapPath = "/api/tap"

// Query is the filter message sent to the tap endpoint on connect.
type Query struct {
	Namespace   string  `json:"namespace"`
	Resource    string  `json:"resource"`
	ToNamespace string  `json:"toNamespace,omitempty"`
	ToResource  string  `json:"toResource,omitempty"`
	Method      string  `json:"method,omitempty"`
	Path        string  `json:"path,omitempty"`
	Scheme      string  `json:"scheme,omitempty"`
	Authority   string  `json:"authority,omitempty"`
	MaxRPS      float64 `json:"maxRps,omitempty"`
}

// Handler consumes one decoded event.
type Handler func(*tapevent.Event)

// Client dials the tap endpoint and feeds decoded events to a handler.
// A Client is reusable; each Run is one stream session.
type Client struct {
	target string
	dialer *websocket.Dialer
	notice func(string)
}

// Option customises client instantiation.
type Option func(*Client)

// WithDialer overrides the default websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithNotice installs a sink for user-facing stream notices. Decode
// and transport problems are reported there as well as logged.
func WithNotice(fn func(string)) Option {
	return func(c *Client) {
		c.notice = fn
	}
}

// NewClient creates a Client for the given ws(s) tap URL.
func NewClient(target string, opts ...Option) *Client {
	c := &Client{
		target: target,
		dialer: &websocket.Dialer{HandshakeTimeout: config.StreamHandshakeTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TapURL rewrites an API base URL into the websocket tap endpoint.
func TapURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("invalid api base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported api scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + tapPath
	return u.String(), nil
}

// Run dials the target, sends the query and pumps events into handle
// until the server closes the stream or ctx is canceled. Cancellation
// is a clean stop, not an error. Transport failures are reported once
// through the failure path and returned.
func (c *Client) Run(ctx context.Context, query Query, handle Handler) error {
	session := uuid.NewString()
	ctx, span := otel.Tracer("meshtap/stream").Start(ctx, "tap.stream",
		trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("session_id", session),
		attribute.String("namespace", query.Namespace),
		attribute.String("resource", query.Resource),
	)
	defer span.End()

	logger.Info("Starting tap stream",
		zap.String("session_id", session),
		zap.String("target", c.target),
		zap.String("namespace", query.Namespace),
		zap.String("resource", query.Resource),
		zap.Float64("max_rps", query.MaxRPS))

	header := http.Header{"User-Agent": []string{config.GetUserAgent()}}
	conn, resp, err := c.dialer.DialContext(ctx, c.target, header)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		c.fail(session, err)
		return fmt.Errorf("failed to dial tap endpoint: %w", err)
	}
	defer conn.Close()

	conn.SetReadLimit(config.StreamMaxMessageBytes)
	_ = conn.SetWriteDeadline(time.Now().Add(config.StreamWriteTimeout))
	if err := conn.WriteJSON(query); err != nil {
		c.fail(session, err)
		return fmt.Errorf("failed to send tap query: %w", err)
	}

	// Unblock the read loop when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			_ = conn.Close()
		case <-done:
		}
	}()

	limiter := newLimiter(query.MaxRPS)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("Tap stream stopped", zap.String("session_id", session))
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Info("Tap stream ended", zap.String("session_id", session))
				return nil
			}
			c.fail(session, err)
			return fmt.Errorf("tap stream closed: %w", err)
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
		}

		start := time.Now()
		events, perr := tapevent.ParseBatch(data)
		for _, e := range events {
			metricsexporter.RecordTapEvent()
			handle(e)
		}
		if perr != nil {
			metricsexporter.RecordParseError()
			logger.Logger().Warn("Dropped undecodable tap records",
				zap.String("session_id", session),
				zap.Error(perr))
			c.say(fmt.Sprintf("dropped undecodable tap record: %v", perr))
		}
		metricsexporter.RecordEventProcessingLatency(time.Since(start))
	}
}

// newLimiter builds the client-side pacing limiter. Zero means the
// server-advertised rate is trusted as-is.
func newLimiter(maxRPS float64) *rate.Limiter {
	if maxRPS <= 0 {
		return nil
	}
	burst := int(maxRPS)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(maxRPS), burst)
}

// fail reports one transport failure: metric, log, alert, notice. The
// raw zap logger is used so the alerting hook does not fire twice.
func (c *Client) fail(session string, err error) {
	metricsexporter.RecordStreamFailure()
	logger.Logger().Error("Tap stream failed",
		zap.String("session_id", session),
		zap.String("target", c.target),
		zap.Error(err))
	if m := alerting.GetGlobalManager(); m != nil {
		m.SendAlert(alerting.NewStreamFailureAlert(c.target, err))
	}
	c.say(fmt.Sprintf("stream error: %v", err))
}

func (c *Client) say(msg string) {
	if c.notice != nil {
		c.notice(msg)
	}
}

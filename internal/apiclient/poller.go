package apiclient

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/meshtap/meshtap/internal/config"
	"github.com/meshtap/meshtap/internal/logger"
	"github.com/meshtap/meshtap/internal/metricsexporter"
)

// Poller invokes a fetch function on a fixed cadence. A tick that
// fires while the previous cycle is still in flight is skipped, never
// queued. There is no retry; a failed cycle waits for the next tick.
type Poller struct {
	interval time.Duration
	fetch    func(context.Context) error
	onError  func(error)
	pending  atomic.Bool
}

// NewPoller creates a Poller. onError may be nil; it receives every
// fetch failure except cancellations, which are swallowed.
func NewPoller(interval time.Duration, fetch func(context.Context) error, onError func(error)) *Poller {
	if interval <= 0 {
		interval = config.PollInterval
	}
	return &Poller{interval: interval, fetch: fetch, onError: onError}
}

// Run polls until ctx is canceled. The first cycle starts immediately.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

// cycle runs one fetch in the background so a slow cycle cannot block
// the ticker; overlap is suppressed by the pending guard instead.
func (p *Poller) cycle(ctx context.Context) {
	if !p.pending.CompareAndSwap(false, true) {
		logger.Debug("Poll cycle still pending, skipping tick")
		return
	}
	metricsexporter.RecordPollCycle()
	go func() {
		defer p.pending.Store(false)
		ctx, span := otel.Tracer("meshtap/apiclient").Start(ctx, "poll.cycle",
			trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()

		err := p.fetch(ctx)
		if err == nil {
			return
		}
		if errors.Is(err, context.Canceled) {
			logger.Debug("Poll cycle canceled")
			return
		}
		logger.Logger().Warn("Poll cycle failed", zap.Error(err))
		if p.onError != nil {
			p.onError(err)
		}
	}()
}

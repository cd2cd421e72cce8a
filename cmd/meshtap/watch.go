package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/meshtap/meshtap/internal/alerting"
	"github.com/meshtap/meshtap/internal/apiclient"
	"github.com/meshtap/meshtap/internal/config"
	"github.com/meshtap/meshtap/internal/render"
)

// pollView holds the most recently rendered table from a poll cycle.
// The version moves only when the body actually changes, so the render
// loop skips frames between poll updates.
type pollView struct {
	mu      sync.Mutex
	body    string
	version uint64
}

func newPollView() *pollView {
	return &pollView{body: "(waiting for first poll)\n", version: 1}
}

func (v *pollView) set(body string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if body == v.body {
		return
	}
	v.body = body
	v.version++
}

func (v *pollView) Version() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.version
}

func (v *pollView) Render() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.body
}

// runWatch polls fetch on the configured cadence and keeps the view on
// screen until ctx is canceled. Fetch failures land in the banner and
// the previous table stays up.
func runWatch(ctx context.Context, title string, view *pollView, banner *render.Banner, fetch func(context.Context) error) error {
	poller := apiclient.NewPoller(config.PollInterval, fetch, func(err error) {
		banner.Set(fmt.Sprintf("fetch failed: %v", err))
	})
	go poller.Run(ctx)

	loop := render.NewLoop(title, view, banner)
	return loop.Run(ctx)
}

// successRateSample is one measured success rate eligible for alerting.
type successRateSample struct {
	resource  string
	namespace string
	route     string
	rps       float64
	rate      float64
}

// alertLowSuccessRates raises an alert for every sample below the
// configured threshold. Idle resources are skipped; deduplication and
// rate limits live in the alert manager.
func alertLowSuccessRates(samples []successRateSample) {
	for _, s := range samples {
		if s.rps == 0 {
			continue
		}
		rate := s.rate * config.Percent100
		if rate >= config.SuccessRateAlertThreshold {
			continue
		}
		sendAlert(alerting.NewSuccessRateAlert(s.resource, s.namespace, s.route, rate, config.SuccessRateAlertThreshold))
	}
}

func statSamples(kind string, rows []apiclient.StatRow) []successRateSample {
	samples := make([]successRateSample, 0, len(rows))
	for _, row := range rows {
		samples = append(samples, successRateSample{
			resource:  kind + "/" + row.Name,
			namespace: row.Namespace,
			rps:       row.RPS,
			rate:      row.SuccessRate,
		})
	}
	return samples
}

func routeSamples(resource, namespace string, rows []apiclient.RouteRow) []successRateSample {
	samples := make([]successRateSample, 0, len(rows))
	for _, row := range rows {
		samples = append(samples, successRateSample{
			resource:  resource,
			namespace: namespace,
			route:     row.Route,
			rps:       row.RPS,
			rate:      row.SuccessRate,
		})
	}
	return samples
}

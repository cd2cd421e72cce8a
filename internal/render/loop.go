// Package render draws throttled terminal snapshots of the tap and
// top indexes. The indexes own all state; this package only formats
// read-only copies, so nothing here affects correctness.
package render

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/meshtap/meshtap/internal/config"
	"github.com/meshtap/meshtap/internal/metricsexporter"
)

// Source produces the body of a frame. Version must change whenever
// the rendered state changes; Render is called only after a change.
type Source interface {
	Version() uint64
	Render() string
}

// Loop redraws a Source on a fixed cadence. Frames whose source and
// banner versions are unchanged are skipped.
type Loop struct {
	title    string
	source   Source
	banner   *Banner
	out      io.Writer
	interval time.Duration

	printed       bool
	lastVersion   uint64
	lastBannerVer uint64
}

type LoopOption func(*Loop)

func WithOutput(w io.Writer) LoopOption {
	return func(l *Loop) { l.out = w }
}

func WithInterval(d time.Duration) LoopOption {
	return func(l *Loop) { l.interval = d }
}

func NewLoop(title string, source Source, banner *Banner, opts ...LoopOption) *Loop {
	l := &Loop{
		title:    title,
		source:   source,
		banner:   banner,
		out:      os.Stdout,
		interval: config.RenderInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.interval <= 0 {
		l.interval = config.DefaultRenderInterval
	}
	return l
}

// Run draws frames until ctx is done, then draws one final frame and
// returns.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.draw(true)
			return nil
		case <-ticker.C:
			version := l.source.Version()
			var bannerVer uint64
			if l.banner != nil {
				bannerVer = l.banner.Version()
			}
			if l.printed && version == l.lastVersion && bannerVer == l.lastBannerVer {
				continue
			}
			l.lastVersion = version
			l.lastBannerVer = bannerVer
			l.draw(false)
		}
	}
}

func (l *Loop) draw(final bool) {
	if l.printed {
		fmt.Fprint(l.out, "\033[2J\033[H")
	}
	if final {
		fmt.Fprintf(l.out, "=== %s (final snapshot) ===\n\n", l.title)
	} else {
		fmt.Fprintf(l.out, "=== %s (updating every %v) ===\n", l.title, l.interval)
		fmt.Fprintln(l.out, "Press Ctrl+C to stop and print the final snapshot.")
		fmt.Fprintln(l.out)
	}
	fmt.Fprint(l.out, l.source.Render())
	if l.banner != nil {
		if line := l.banner.Line(); line != "" {
			fmt.Fprintln(l.out)
			fmt.Fprintln(l.out, line)
		}
	}
	l.printed = true
	metricsexporter.RecordRenderFrame()
}

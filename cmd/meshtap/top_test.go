package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/meshtap/meshtap/internal/aggregate"
	"github.com/meshtap/meshtap/internal/stream"
	"github.com/meshtap/meshtap/internal/tapevent"
)

// twoRequestFixture returns two completed requests on the same route,
// the second one a gRPC failure.
func twoRequestFixture() []*tapevent.Event {
	first := tapFixture()

	id := tapevent.EventID{Base: "7f3a", Stream: 6}
	src := first[0].Source
	dst := first[0].Destination
	code := uint32(13)
	second := []*tapevent.Event{
		{
			ID: id, Phase: tapevent.PhaseRequestInit, Direction: tapevent.DirectionInbound,
			Source: src, Destination: dst,
			RequestInit: &tapevent.RequestInit{Method: "GET", Scheme: "HTTP", Authority: "web.prod", Path: "/api/items"},
		},
		{
			ID: id, Phase: tapevent.PhaseResponseInit, Direction: tapevent.DirectionInbound,
			Source: src, Destination: dst,
			ResponseInit: &tapevent.ResponseInit{HTTPStatus: 200, SinceRequestInit: "0.020s"},
		},
		{
			ID: id, Phase: tapevent.PhaseResponseEnd, Direction: tapevent.DirectionInbound,
			Source: src, Destination: dst,
			ResponseEnd: &tapevent.ResponseEnd{GRPCStatusCode: &code, SinceRequestInit: "0.040s", ResponseBytes: 128},
		},
	}
	return append(first, second...)
}

func TestRunTop_RendersLeaderboard(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stream test in short mode")
	}
	resetCommandFlags(t)
	setDefaultFlags()
	namespace = "prod"

	events := twoRequestFixture()
	dataSourceFactory = func(ctx context.Context, notice func(string)) (DataSource, error) {
		return &mockDataSource{
			tapFunc: func(ctx context.Context, query stream.Query, handle stream.Handler) error {
				for _, e := range events {
					handle(e)
				}
				return nil
			},
		}, nil
	}

	var err error
	out := captureStdout(t, func() {
		done := make(chan error, 1)
		go func() { done <- runTop(&cobra.Command{}, []string{"deployment/web"}) }()
		select {
		case err = <-done:
		case <-time.After(3 * time.Second):
			t.Error("runTop did not finish in time")
		}
	})
	if err != nil {
		t.Fatalf("runTop returned error: %v", err)
	}

	for _, want := range []string{"final snapshot", "GET", "/api/items", "50.00%", "unmeshed sources"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestRunTop_JSONExportsFinalSnapshot(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stream test in short mode")
	}
	resetCommandFlags(t)
	setDefaultFlags()
	outputFormat = "json"

	events := twoRequestFixture()
	dataSourceFactory = func(ctx context.Context, notice func(string)) (DataSource, error) {
		return &mockDataSource{
			tapFunc: func(ctx context.Context, query stream.Query, handle stream.Handler) error {
				for _, e := range events {
					handle(e)
				}
				return nil
			},
		}, nil
	}

	var err error
	out := captureStdout(t, func() {
		done := make(chan error, 1)
		go func() { done <- runTop(&cobra.Command{}, []string{"deployment/web"}) }()
		select {
		case err = <-done:
		case <-time.After(3 * time.Second):
			t.Error("runTop did not finish in time")
		}
	})
	if err != nil {
		t.Fatalf("runTop returned error: %v", err)
	}

	var snap aggregate.Snapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("output is not a snapshot: %v\n%s", err, out)
	}
	if len(snap.Rows) != 1 {
		t.Fatalf("expected 1 aggregated route, got %d", len(snap.Rows))
	}
	row := snap.Rows[0]
	if row.Count != 2 || row.Success != 1 || row.Failure != 1 {
		t.Errorf("unexpected fold counters: %+v", row)
	}
	if row.SuccessRate != 0.5 {
		t.Errorf("expected success rate 0.5, got %v", row.SuccessRate)
	}
	if row.Key.Method != "GET" || row.Key.Path != "/api/items" {
		t.Errorf("unexpected route key: %+v", row.Key)
	}
}

func TestRunTop_InvalidTarget(t *testing.T) {
	resetCommandFlags(t)
	setDefaultFlags()

	err := runTop(&cobra.Command{}, []string{"unknown/web"})
	if err == nil {
		t.Fatal("expected error for unknown resource kind")
	}
	if !strings.Contains(err.Error(), "invalid resource target") {
		t.Errorf("unexpected error: %v", err)
	}
}

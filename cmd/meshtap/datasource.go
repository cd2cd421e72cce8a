package main

import (
	"context"
	"fmt"

	"github.com/meshtap/meshtap/internal/apiclient"
	"github.com/meshtap/meshtap/internal/kubernetes"
	"github.com/meshtap/meshtap/internal/stream"
)

// DataSource is the control plane as the commands see it: one-shot
// REST fetches plus the streaming tap subscription. Commands depend on
// this interface only, so tests can script responses without a
// cluster.
type DataSource interface {
	Stats(ctx context.Context, req apiclient.StatsRequest) ([]apiclient.StatRow, error)
	Routes(ctx context.Context, req apiclient.RoutesRequest) ([]apiclient.RouteRow, error)
	Edges(ctx context.Context, namespace string) ([]apiclient.Edge, error)
	Tap(ctx context.Context, query stream.Query, handle stream.Handler) error
}

// liveSource talks to a real control plane reached through the
// Kubernetes API server proxy, or directly when an address override is
// set.
type liveSource struct {
	api *apiclient.Client
	tap *stream.Client
}

var _ DataSource = (*liveSource)(nil)

func newLiveSource(ctx context.Context, notice func(string)) (DataSource, error) {
	base, err := kubernetes.ResolveBaseURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to locate control plane API: %w", err)
	}
	api, err := apiclient.New(base)
	if err != nil {
		return nil, err
	}
	tapURL, err := stream.TapURL(base)
	if err != nil {
		return nil, err
	}
	return &liveSource{
		api: api,
		tap: stream.NewClient(tapURL, stream.WithNotice(notice)),
	}, nil
}

func (s *liveSource) Stats(ctx context.Context, req apiclient.StatsRequest) ([]apiclient.StatRow, error) {
	return s.api.Stats(ctx, req)
}

func (s *liveSource) Routes(ctx context.Context, req apiclient.RoutesRequest) ([]apiclient.RouteRow, error) {
	return s.api.Routes(ctx, req)
}

func (s *liveSource) Edges(ctx context.Context, namespace string) ([]apiclient.Edge, error) {
	return s.api.Edges(ctx, namespace)
}

func (s *liveSource) Tap(ctx context.Context, query stream.Query, handle stream.Handler) error {
	return s.tap.Run(ctx, query, handle)
}

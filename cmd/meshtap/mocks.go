package main

import (
	"context"

	"github.com/meshtap/meshtap/internal/apiclient"
	"github.com/meshtap/meshtap/internal/stream"
)

// mockDataSource lets tests script control plane responses without a
// cluster. Unset functions return empty results; an unset tap blocks
// until the context is canceled, like an idle stream.
type mockDataSource struct {
	statsFunc  func(ctx context.Context, req apiclient.StatsRequest) ([]apiclient.StatRow, error)
	routesFunc func(ctx context.Context, req apiclient.RoutesRequest) ([]apiclient.RouteRow, error)
	edgesFunc  func(ctx context.Context, namespace string) ([]apiclient.Edge, error)
	tapFunc    func(ctx context.Context, query stream.Query, handle stream.Handler) error
}

var _ DataSource = (*mockDataSource)(nil)

func (m *mockDataSource) Stats(ctx context.Context, req apiclient.StatsRequest) ([]apiclient.StatRow, error) {
	if m.statsFunc != nil {
		return m.statsFunc(ctx, req)
	}
	return nil, nil
}

func (m *mockDataSource) Routes(ctx context.Context, req apiclient.RoutesRequest) ([]apiclient.RouteRow, error) {
	if m.routesFunc != nil {
		return m.routesFunc(ctx, req)
	}
	return nil, nil
}

func (m *mockDataSource) Edges(ctx context.Context, namespace string) ([]apiclient.Edge, error) {
	if m.edgesFunc != nil {
		return m.edgesFunc(ctx, namespace)
	}
	return nil, nil
}

func (m *mockDataSource) Tap(ctx context.Context, query stream.Query, handle stream.Handler) error {
	if m.tapFunc != nil {
		return m.tapFunc(ctx, query, handle)
	}
	<-ctx.Done()
	return nil
}

package apiclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meshtap/meshtap/internal/apiclient"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		expected string
		wantErr  bool
	}{
		{"full url", "http://127.0.0.1:8085", "http://127.0.0.1:8085", false},
		{"bare host gains scheme", "127.0.0.1:8085", "http://127.0.0.1:8085", false},
		{"trailing slash trimmed", "http://127.0.0.1:8085/", "http://127.0.0.1:8085", false},
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := apiclient.New(tt.base)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q) error = %v, wantErr %v", tt.base, err, tt.wantErr)
			}
			if !tt.wantErr && c.BaseURL() != tt.expected {
				t.Errorf("BaseURL: want %q, got %q", tt.expected, c.BaseURL())
			}
		})
	}
}

func TestStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/stats" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("resource_type") != "deployment" || q.Get("namespace") != "prod" || q.Get("window") != "1m" {
			t.Errorf("unexpected query %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"name": "web", "namespace": "prod", "kind": "deployment", "meshedPods": 3, "totalPods": 3, "rps": 12.5, "successRate": 0.98, "latencyMsP50": 2, "latencyMsP95": 9, "latencyMsP99": 21.3},
			{"name": "db", "namespace": "prod", "kind": "deployment", "meshedPods": 1, "totalPods": 2, "rps": 4.0, "successRate": 1.0, "latencyMsP50": 1, "latencyMsP95": 3, "latencyMsP99": 8}
		]`))
	}))
	defer srv.Close()

	c, err := apiclient.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rows, err := c.Stats(context.Background(), apiclient.StatsRequest{
		ResourceType: "deployment",
		Namespace:    "prod",
		Window:       "1m",
	})
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Name != "web" || rows[0].RPS != 12.5 || rows[0].LatencyMSP99 != 21.3 {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[1].MeshedPods != 1 || rows[1].TotalPods != 2 {
		t.Errorf("unexpected second row: %+v", rows[1])
	}
}

func TestRoutes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/routes" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("resource"); got != "deployment/web" {
			t.Errorf("unexpected resource %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"route": "GET /api/items", "authority": "web.prod", "rps": 3.2, "successRate": 0.5, "latencyMsP50": 2, "latencyMsP95": 10, "latencyMsP99": 30}]`))
	}))
	defer srv.Close()

	c, err := apiclient.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rows, err := c.Routes(context.Background(), apiclient.RoutesRequest{
		Resource:  "deployment/web",
		Namespace: "prod",
	})
	if err != nil {
		t.Fatalf("Routes: %v", err)
	}
	if len(rows) != 1 || rows[0].Route != "GET /api/items" || rows[0].SuccessRate != 0.5 {
		t.Errorf("unexpected rows: %+v", rows)
	}
}

func TestEdges(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/edges" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"src": "web", "srcNamespace": "prod", "dst": "db", "dstNamespace": "prod", "clientId": "web.prod.serviceaccount", "serverId": "db.prod.serviceaccount"}]`))
	}))
	defer srv.Close()

	c, err := apiclient.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	edges, err := c.Edges(context.Background(), "prod")
	if err != nil {
		t.Fatalf("Edges: %v", err)
	}
	if len(edges) != 1 || edges[0].Source != "web" || edges[0].Destination != "db" {
		t.Errorf("unexpected edges: %+v", edges)
	}
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "prometheus unavailable"}`))
	}))
	defer srv.Close()

	c, err := apiclient.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Stats(context.Background(), apiclient.StatsRequest{ResourceType: "deployment", Namespace: "prod"})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr apiclient.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusInternalServerError || apiErr.Message != "prometheus unavailable" {
		t.Errorf("unexpected APIError: %+v", apiErr)
	}
}

func TestAPIError_PlainTextBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad window"))
	}))
	defer srv.Close()

	c, err := apiclient.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Edges(context.Background(), "prod")
	var apiErr apiclient.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != "bad window" {
		t.Errorf("expected raw body as message, got %q", apiErr.Message)
	}
}

func TestStats_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, err := apiclient.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Stats(ctx, apiclient.StatsRequest{ResourceType: "deployment", Namespace: "prod"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

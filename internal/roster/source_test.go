package roster

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const testRoster = `
fighters:
  - id: aapl
    name: Apple
    scale: 3.4e12
    momentum: 0.12
    volatility: 0.25
    engagement: 0.05
    stability: 0.8
    sector: technology
  - id: XOM
    name: Exxon
    scale: 4.5e11
    sector: energy
    class: assassin
  - id: MRBEAST
    kind: channel
    scale: 2.5e8
    engagement: 0.04
`

// TestParseRoster verifies YAML parsing, id normalization and default kinds
func TestParseRoster(t *testing.T) {
	fs, err := ParseRoster([]byte(testRoster))
	if err != nil {
		t.Fatalf("ParseRoster failed: %v", err)
	}

	m, err := fs.Fetch(context.Background(), "Aapl")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if m.ID != "AAPL" || m.Name != "Apple" || m.Kind != KindMarket {
		t.Errorf("Unexpected metrics %+v", m)
	}

	ch, _ := fs.Fetch(context.Background(), "MRBEAST")
	if ch.Kind != KindChannel {
		t.Errorf("Expected channel kind, got %q", ch.Kind)
	}

	list, _ := fs.List(context.Background())
	if len(list) != 3 || list[1].ID != "XOM" {
		t.Errorf("Expected file order, got %d entries", len(list))
	}
}

// TestParseRosterErrors verifies malformed rosters are rejected
func TestParseRosterErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", "fighters: [\n"},
		{"missing id", "fighters:\n  - name: Nobody\n"},
		{"duplicate", "fighters:\n  - id: A\n  - id: a\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRoster([]byte(tt.data)); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

// TestNewFileSource verifies rosters load from disk
func TestNewFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	if err := os.WriteFile(path, []byte(testRoster), 0o644); err != nil {
		t.Fatal(err)
	}

	fs, err := NewFileSource(path)
	if err != nil {
		t.Fatalf("NewFileSource failed: %v", err)
	}
	if _, err := fs.Fetch(context.Background(), "NOPE"); !errors.Is(err, ErrUnknownFighter) {
		t.Errorf("Expected ErrUnknownFighter, got %v", err)
	}

	if _, err := NewFileSource(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func metricsServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		id := strings.TrimPrefix(r.URL.Path, "/metrics/")
		switch id {
		case "BOOM":
			w.WriteHeader(http.StatusInternalServerError)
		case "GONE":
			w.WriteHeader(http.StatusNotFound)
		case "SLOW":
			time.Sleep(200 * time.Millisecond)
			json.NewEncoder(w).Encode(Metrics{ID: id})
		default:
			json.NewEncoder(w).Encode(Metrics{ID: id, Name: "Remote " + id, Scale: 1e9})
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// TestHTTPSource verifies status codes map to the right errors
func TestHTTPSource(t *testing.T) {
	srv := metricsServer(t, nil)
	src := NewHTTPSource(srv.URL+"/metrics/%s", time.Second)
	ctx := context.Background()

	m, err := src.Fetch(ctx, "TSLA")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if m.Name != "Remote TSLA" {
		t.Errorf("Unexpected metrics %+v", m)
	}

	if _, err := src.Fetch(ctx, "GONE"); !errors.Is(err, ErrUnknownFighter) {
		t.Errorf("Expected ErrUnknownFighter for 404, got %v", err)
	}
	if _, err := src.Fetch(ctx, "BOOM"); err == nil || errors.Is(err, ErrUnknownFighter) {
		t.Errorf("Expected a plain error for 500, got %v", err)
	}
}

// TestChainFallsThrough verifies the chain tries the next source on failure
func TestChainFallsThrough(t *testing.T) {
	fs, err := ParseRoster([]byte(testRoster))
	if err != nil {
		t.Fatal(err)
	}
	srv := metricsServer(t, nil)
	chain := Chain{fs, NewHTTPSource(srv.URL+"/metrics/%s", time.Second)}

	local, err := chain.Fetch(context.Background(), "AAPL")
	if err != nil || local.Name != "Apple" {
		t.Errorf("Expected the file source to win, got %+v, %v", local, err)
	}
	remote, err := chain.Fetch(context.Background(), "NVDA")
	if err != nil || remote.Name != "Remote NVDA" {
		t.Errorf("Expected the http fallback, got %+v, %v", remote, err)
	}

	list, err := chain.List(context.Background())
	if err != nil || len(list) != 3 {
		t.Errorf("Expected only listable sources, got %d, %v", len(list), err)
	}
}

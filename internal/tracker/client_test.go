package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/annaglyph/qc-asset-tracker/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewRoot(logging.LevelDisabled)
}

func TestLookupFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/asset/asset-search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("expected bearer auth header, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"asset_id": "asset-42"})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, BearerToken: "test-token", Timeout: time.Second}, testLogger())
	result := c.Lookup(context.Background(), "/vol/show/shot/clip.mxf")
	if result.StatusTag != "ok" {
		t.Fatalf("expected ok, got %s", result.StatusTag)
	}
	if result.AssetID == nil || *result.AssetID != "asset-42" {
		t.Fatalf("expected asset-42, got %v", result.AssetID)
	}
}

func TestLookupNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"asset_id": ""})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: time.Second}, testLogger())
	result := c.Lookup(context.Background(), "/vol/show/shot/clip.mxf")
	if result.StatusTag != "not_found" {
		t.Fatalf("expected not_found, got %s", result.StatusTag)
	}
	if result.AssetID != nil {
		t.Fatal("expected nil asset id")
	}
}

func TestLookupUnauthorizedDoesNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: time.Second}, testLogger())
	result := c.Lookup(context.Background(), "/vol/show/shot/clip.mxf")
	if result.StatusTag != "unauthorized" {
		t.Fatalf("expected unauthorized, got %s", result.StatusTag)
	}
	if result.HTTPCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", result.HTTPCode)
	}
}

func TestPostResultOK(t *testing.T) {
	var received PostResult
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: time.Second}, testLogger())
	result := c.PostResult(context.Background(), PostResult{
		AssetID:  "asset-42",
		QCID:     "qc-1",
		QCResult: "pass",
	})
	if result.StatusTag != "ok" {
		t.Fatalf("expected ok, got %s", result.StatusTag)
	}
	if received.AssetID != "asset-42" {
		t.Fatalf("expected posted payload to reach server, got %+v", received)
	}
}

func TestNilClientLookupIsDisabled(t *testing.T) {
	var c *Client
	result := c.Lookup(context.Background(), "/vol/show/shot/clip.mxf")
	if result.StatusTag != "disabled" {
		t.Fatalf("expected disabled status from a nil client, got %s", result.StatusTag)
	}
}

func TestLookupRespectsRateLimit(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]string{"asset_id": "a"})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: time.Second, RequestsPerSec: 1000, Burst: 2}, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := 0; i < 3; i++ {
		if result := c.Lookup(ctx, "/x"); result.StatusTag != "ok" {
			t.Fatalf("lookup %d failed: %+v", i, result)
		}
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls to reach the server, got %d", calls)
	}
}

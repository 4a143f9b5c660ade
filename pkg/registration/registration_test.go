package registration

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
)

type fakeRegistry struct {
	mu           sync.Mutex
	registered   []Request
	deregistered []string
	status       int
}

func (f *fakeRegistry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/register":
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.registered = append(f.registered, req)
		if f.status != 0 && f.status != http.StatusOK {
			w.WriteHeader(f.status)
			return
		}
		_ = json.NewEncoder(w).Encode(Response{Status: "ok", Name: req.Name, TTLSeconds: 90})
	case r.Method == http.MethodDelete:
		f.deregistered = append(f.deregistered, r.URL.Path)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeRegistry) registrations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.registered)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_RegisterHeartbeatDeregister(t *testing.T) {
	registry := &fakeRegistry{}
	srv := httptest.NewServer(registry)
	defer srv.Close()

	client := NewClient(Config{
		RegistryURL:       srv.URL + "/",
		ServiceName:       "osmnode",
		ServiceURL:        "http://osmnode:7082",
		Version:           "1.2.3",
		Tools:             []string{"get_osm_node"},
		HeartbeatInterval: time.Minute,
	}, quietLogger())
	clock := clockwork.NewFakeClock()
	client.SetClock(clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	if err := clock.BlockUntilContext(waitCtx, 1); err != nil {
		t.Fatalf("heartbeat ticker never started: %v", err)
	}
	clock.Advance(time.Minute)

	deadline := time.Now().Add(2 * time.Second)
	for registry.registrations() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("expected at least one heartbeat after the initial registration")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !client.IsRegistered() {
		t.Error("client should report registered")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	want := Request{
		Name:      "osmnode",
		Type:      "mcp",
		URL:       "http://osmnode:7082",
		HealthURL: "http://osmnode:7082/health",
		Version:   "1.2.3",
		Tools:     []string{"get_osm_node"},
	}
	if diff := cmp.Diff(want, registry.registered[0]); diff != "" {
		t.Errorf("registration payload mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"/api/register/osmnode"}, registry.deregistered); diff != "" {
		t.Errorf("deregistration mismatch (-want +got):\n%s", diff)
	}
	if client.IsRegistered() {
		t.Error("client should not be registered after Run returns")
	}
}

func TestClient_RejectedRegistration(t *testing.T) {
	registry := &fakeRegistry{status: http.StatusServiceUnavailable}
	srv := httptest.NewServer(registry)
	defer srv.Close()

	client := NewClient(Config{RegistryURL: srv.URL, ServiceName: "osmnode"}, quietLogger())
	client.register(context.Background())

	if client.IsRegistered() {
		t.Error("a rejected registration must not count as registered")
	}

	// nothing to deregister
	client.deregister()
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if len(registry.deregistered) != 0 {
		t.Errorf("unexpected deregistration %v", registry.deregistered)
	}
}

func TestClient_UnreachableRegistry(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(Config{RegistryURL: url, ServiceName: "osmnode", Timeout: time.Second}, quietLogger())
	client.register(context.Background())
	if client.IsRegistered() {
		t.Error("unreachable registry must not count as registered")
	}
}

func TestClient_RunRequiresConfig(t *testing.T) {
	if err := NewClient(Config{ServiceName: "osmnode"}, nil).Run(context.Background()); err == nil {
		t.Error("expected error without registry URL")
	}
	if err := NewClient(Config{RegistryURL: "http://registry"}, nil).Run(context.Background()); err == nil {
		t.Error("expected error without service name")
	}
}

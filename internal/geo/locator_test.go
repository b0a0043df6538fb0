package geo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"campusd/internal/infrastructure/config"
	"campusd/internal/infrastructure/logging"
)

// fakeStore is an in-memory PositionStore.
type fakeStore struct {
	last    *Position
	lastErr error
	saved   []Position
}

func (s *fakeStore) LastPosition(_ context.Context) (*Position, error) {
	return s.last, s.lastErr
}

func (s *fakeStore) SavePosition(_ context.Context, pos Position) error {
	s.saved = append(s.saved, pos)
	return nil
}

func testConfig() config.LocatorConfig {
	return config.LocatorConfig{
		Fallback: config.PositionConfig{Latitude: 44.8048, Longitude: -0.5954},
	}
}

func TestResolve_StaticWins(t *testing.T) {
	cfg := testConfig()
	cfg.Static = config.PositionConfig{Latitude: 44.83, Longitude: -0.58}

	// A store with a different position must not be consulted first.
	store := &fakeStore{last: &Position{Latitude: 1, Longitude: 1}}
	locator := NewLocator(cfg, store, logging.Default())

	fix := locator.Resolve(context.Background())

	if fix.Source != SourceStatic {
		t.Errorf("Source = %q, want %q", fix.Source, SourceStatic)
	}
	if fix.Position.Latitude != 44.83 || fix.Position.Longitude != -0.58 {
		t.Errorf("Position = %+v, want static position", fix.Position)
	}
	if fix.Degraded {
		t.Error("static fix must not be degraded")
	}
}

func TestResolve_LastKnown(t *testing.T) {
	store := &fakeStore{last: &Position{Latitude: 44.79, Longitude: -0.61}}
	locator := NewLocator(testConfig(), store, logging.Default())

	fix := locator.Resolve(context.Background())

	if fix.Source != SourceLastKnown {
		t.Errorf("Source = %q, want %q", fix.Source, SourceLastKnown)
	}
	if fix.Degraded {
		t.Error("last-known fix must not be degraded")
	}
}

func TestResolve_IPLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","lat":44.84,"lon":-0.57}`))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.IPLookup = config.IPLookupConfig{Enabled: true, URL: server.URL}

	store := &fakeStore{}
	locator := NewLocator(cfg, store, logging.Default())

	fix := locator.Resolve(context.Background())

	if fix.Source != SourceIPLookup {
		t.Errorf("Source = %q, want %q", fix.Source, SourceIPLookup)
	}
	if fix.Position.Latitude != 44.84 || fix.Position.Longitude != -0.57 {
		t.Errorf("Position = %+v, want lookup result", fix.Position)
	}
	if len(store.saved) != 1 {
		t.Errorf("saved positions = %d, want 1 (fresh fix persisted)", len(store.saved))
	}
}

func TestResolve_FallbackOnLookupFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.IPLookup = config.IPLookupConfig{Enabled: true, URL: server.URL}

	locator := NewLocator(cfg, nil, logging.Default())

	fix := locator.Resolve(context.Background())

	if fix.Source != SourceFallback {
		t.Errorf("Source = %q, want %q", fix.Source, SourceFallback)
	}
	if !fix.Degraded {
		t.Error("fallback fix must be flagged degraded")
	}
	if fix.Position.Latitude != 44.8048 || fix.Position.Longitude != -0.5954 {
		t.Errorf("Position = %+v, want campus fallback", fix.Position)
	}
}

func TestResolve_StoreErrorDegradesGracefully(t *testing.T) {
	store := &fakeStore{lastErr: errors.New("database locked")}
	locator := NewLocator(testConfig(), store, logging.Default())

	fix := locator.Resolve(context.Background())

	// Store failure falls through the chain to the fallback; it never
	// surfaces as an error to the caller.
	if fix.Source != SourceFallback {
		t.Errorf("Source = %q, want %q", fix.Source, SourceFallback)
	}
	if !fix.Degraded {
		t.Error("expected degraded flag when every source failed")
	}
}

func TestResolve_LookupRejectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"fail"}`))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.IPLookup = config.IPLookupConfig{Enabled: true, URL: server.URL}

	locator := NewLocator(cfg, nil, logging.Default())

	fix := locator.Resolve(context.Background())
	if fix.Source != SourceFallback {
		t.Errorf("Source = %q, want %q after provider rejection", fix.Source, SourceFallback)
	}
}

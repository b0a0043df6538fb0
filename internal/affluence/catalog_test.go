package affluence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"campusd/internal/geo"
	"campusd/internal/infrastructure/config"
	"campusd/internal/infrastructure/logging"
)

// newTestClient binds a Client to a fake upstream.
func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	return New(config.AffluenceConfig{
		BaseURL:        server.URL,
		TimeoutSeconds: 5,
	}, logging.Default())
}

// catalogFixture builds one provider record.
func catalogFixture(id, name, city, slug string, distance float64, categories ...int) map[string]any {
	cats := make([]map[string]any, 0, len(categories))
	for _, c := range categories {
		cats = append(cats, map[string]any{"id": c})
	}
	record := map[string]any{
		"id":           id,
		"primary_name": name,
		"location": map[string]any{
			"address":     map[string]any{"city": city},
			"coordinates": map[string]any{"latitude": 44.8, "longitude": -0.6},
		},
		"categories":         cats,
		"slug":               slug,
		"estimated_distance": distance,
	}
	return record
}

func catalogServer(t *testing.T, records []map[string]any, capture *map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/app/v3/sites/map" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if capture != nil {
			for name := range providerHeaders {
				(*capture)[name] = r.Header.Get(name)
			}
		}

		var body struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding search body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"results": records},
		})
	}))
}

func TestFetchNearby_SendsProviderHeaders(t *testing.T) {
	captured := make(map[string]string)
	server := catalogServer(t, nil, &captured)
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.FetchNearby(context.Background(), geo.Position{Latitude: 44.8, Longitude: -0.6}, 15)
	if err != nil {
		t.Fatalf("FetchNearby() error = %v", err)
	}

	// The provider rejects requests without its website's header set.
	for name, want := range providerHeaders {
		if got := captured[name]; got != want {
			t.Errorf("header %s = %q, want %q", name, got, want)
		}
	}
}

func TestFetchNearby_FiltersNonLibraries(t *testing.T) {
	records := []map[string]any{
		catalogFixture("lib-1", "BU Sciences", "Talence", "bu-sciences", 800, 1),
		catalogFixture("museum-1", "Musée", "Bordeaux", "musee", 500, 7),
		catalogFixture("lib-2", "BU Droit", "Pessac", "bu-droit", 1400, 20),
		catalogFixture("gym-1", "Gymnase", "Talence", "gymnase", 300, 3, 9),
	}
	server := catalogServer(t, records, nil)
	defer server.Close()

	client := newTestClient(t, server)
	sites, err := client.FetchNearby(context.Background(), geo.Position{Latitude: 44.8, Longitude: -0.6}, 15)
	if err != nil {
		t.Fatalf("FetchNearby() error = %v", err)
	}

	if len(sites) != 2 {
		t.Fatalf("len(sites) = %d, want 2", len(sites))
	}
	if sites[0].ID != "lib-1" || sites[1].ID != "lib-2" {
		t.Errorf("sites = [%s %s], want provider order [lib-1 lib-2]", sites[0].ID, sites[1].ID)
	}
}

func TestFetchNearby_Normalisation(t *testing.T) {
	record := catalogFixture("lib-1", "BU Sciences", "", "bu-sciences", 800, 1)
	server := catalogServer(t, []map[string]any{record}, nil)
	defer server.Close()

	client := newTestClient(t, server)
	sites, err := client.FetchNearby(context.Background(), geo.Position{Latitude: 44.8, Longitude: -0.6}, 15)
	if err != nil {
		t.Fatalf("FetchNearby() error = %v", err)
	}
	if len(sites) != 1 {
		t.Fatalf("len(sites) = %d, want 1", len(sites))
	}

	site := sites[0]
	if site.Campus != "Campus" {
		t.Errorf("Campus = %q, want placeholder for missing city", site.Campus)
	}
	if site.DistanceKm == nil {
		t.Fatal("DistanceKm = nil, want converted distance")
	}
	if *site.DistanceKm != 0.8 {
		t.Errorf("DistanceKm = %v, want 0.8 (800 m)", *site.DistanceKm)
	}
	if site.Slug != "bu-sciences" {
		t.Errorf("Slug = %q, want bu-sciences", site.Slug)
	}
}

func TestFetchNearby_DropsRecordsWithoutSlug(t *testing.T) {
	records := []map[string]any{
		catalogFixture("lib-1", "BU Sciences", "Talence", "", 800, 1),
		catalogFixture("lib-2", "BU Droit", "Pessac", "bu-droit", 1400, 20),
	}
	server := catalogServer(t, records, nil)
	defer server.Close()

	client := newTestClient(t, server)
	sites, err := client.FetchNearby(context.Background(), geo.Position{}, 15)
	if err != nil {
		t.Fatalf("FetchNearby() error = %v", err)
	}

	if len(sites) != 1 || sites[0].ID != "lib-2" {
		t.Errorf("sites = %+v, want only lib-2 (slug is the enrichment key)", sites)
	}
}

func TestFetchNearby_CapAndDuplicates(t *testing.T) {
	// 20 records: 18 libraries (one duplicated id), 2 non-libraries.
	var records []map[string]any
	for i := 0; i < 18; i++ {
		id := fmt.Sprintf("lib-%d", i)
		if i == 5 {
			id = "lib-4" // duplicate
		}
		records = append(records, catalogFixture(id, "BU "+id, "Talence", "slug-"+id, float64(100*(i+1)), 20))
	}
	records = append(records,
		catalogFixture("pool-1", "Piscine", "Talence", "piscine", 50, 4),
		catalogFixture("cafe-1", "Cafétéria", "Pessac", "cafeteria", 60, 11),
	)

	server := catalogServer(t, records, nil)
	defer server.Close()

	client := newTestClient(t, server)
	sites, err := client.FetchNearby(context.Background(), geo.Position{Latitude: 44.8048, Longitude: -0.5954}, 15)
	if err != nil {
		t.Fatalf("FetchNearby() error = %v", err)
	}

	if len(sites) != 15 {
		t.Fatalf("len(sites) = %d, want cap of 15", len(sites))
	}

	seen := make(map[string]bool)
	for _, site := range sites {
		if seen[site.ID] {
			t.Errorf("duplicate site id %q in result", site.ID)
		}
		seen[site.ID] = true
		if site.DistanceKm == nil || *site.DistanceKm < 0 {
			t.Errorf("site %s DistanceKm = %v, want finite non-negative", site.ID, site.DistanceKm)
		}
	}
}

func TestFetchNearby_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.FetchNearby(context.Background(), geo.Position{}, 15)
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestFetchNearby_InvalidLimit(t *testing.T) {
	server := catalogServer(t, nil, nil)
	defer server.Close()

	client := newTestClient(t, server)
	if _, err := client.FetchNearby(context.Background(), geo.Position{}, 0); err == nil {
		t.Fatal("expected error for zero limit")
	}
}

package aggregate_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"campusd/internal/affluence"
	"campusd/internal/aggregate"
	"campusd/internal/geo"
	"campusd/internal/infrastructure/config"
	"campusd/internal/infrastructure/logging"
)

// TestLoadNearbySites_EndToEnd wires real clients against a fake upstream:
// 20 catalog records (18 libraries, 2 not) searched from the Talence
// campus position must yield 15 capped library sites in provider order,
// each with a finite distance, enriched concurrently with live data.
func TestLoadNearbySites_EndToEnd(t *testing.T) {
	var gotSearch struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /app/v3/sites/map", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotSearch); err != nil {
			t.Errorf("decoding search body: %v", err)
		}

		var results []map[string]any
		for i := 0; i < 20; i++ {
			category := 20
			if i == 7 || i == 13 {
				category = 5 // not a library
			}
			results = append(results, map[string]any{
				"id":           fmt.Sprintf("site-%d", i),
				"primary_name": fmt.Sprintf("BU %d", i),
				"location": map[string]any{
					"address":     map[string]any{"city": "Talence"},
					"coordinates": map[string]any{"latitude": 44.8, "longitude": -0.6},
				},
				"categories":         []map[string]any{{"id": category}},
				"slug":               fmt.Sprintf("bu-%d", i),
				"estimated_distance": float64(150 * (i + 1)),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"results": results}})
	})
	mux.HandleFunc("GET /app/v4/sites/{slug}/live-data", func(w http.ResponseWriter, r *http.Request) {
		slug := r.PathValue("slug")
		if strings.HasSuffix(slug, "-3") {
			// One site's live data is down; the batch must survive.
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"status":{"isOpen":true},"liveAttendance":{"percentage":55}}}`))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	logger := logging.Default()
	client := affluence.New(config.AffluenceConfig{BaseURL: server.URL, TimeoutSeconds: 5}, logger)
	locator := geo.NewLocator(config.LocatorConfig{
		Static:   config.PositionConfig{Latitude: 44.8048, Longitude: -0.5954},
		Fallback: config.PositionConfig{Latitude: 44.8048, Longitude: -0.5954},
	}, nil, logger)

	o, err := aggregate.New(aggregate.Deps{
		Locator:   locator,
		Catalog:   client,
		Status:    client,
		Timetable: client,
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result := o.LoadNearbySites(context.Background())

	if gotSearch.Latitude != 44.8048 || gotSearch.Longitude != -0.5954 {
		t.Errorf("search position = %+v, want campus position", gotSearch)
	}

	if len(result.Sites) != 15 {
		t.Fatalf("len(Sites) = %d, want 15 (cap applied to 18 libraries)", len(result.Sites))
	}

	seen := make(map[string]bool)
	for _, site := range result.Sites {
		if site.ID == "site-7" || site.ID == "site-13" {
			t.Errorf("non-library %s leaked into results", site.ID)
		}
		if seen[site.ID] {
			t.Errorf("duplicate id %s", site.ID)
		}
		seen[site.ID] = true
		if site.DistanceKm == nil || *site.DistanceKm < 0 {
			t.Errorf("site %s DistanceKm = %v, want finite non-negative", site.ID, site.DistanceKm)
		}
	}

	// Provider order preserved around the filtered records.
	if result.Sites[0].ID != "site-0" {
		t.Errorf("Sites[0].ID = %s, want site-0", result.Sites[0].ID)
	}
	if result.Sites[7].ID != "site-8" {
		t.Errorf("Sites[7].ID = %s, want site-8 (site-7 filtered out)", result.Sites[7].ID)
	}
	if result.Sites[14].ID != "site-16" {
		t.Errorf("Sites[14].ID = %s, want site-16", result.Sites[14].ID)
	}

	// site-3's live data failed; every other capped site has a status.
	if _, ok := result.Status["site-3"]; ok {
		t.Error("Status[site-3] present, want absent after 502")
	}
	if len(result.Status) != 14 {
		t.Errorf("len(Status) = %d, want 14", len(result.Status))
	}
}

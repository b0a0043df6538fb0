package affluence

import (
	"context"
	"fmt"

	"campusd/internal/geo"
)

// Category identifiers the provider assigns to library sites. Only records
// carrying at least one of these are kept from a catalog response.
const (
	categoryLibrary           = 1
	categoryUniversityLibrary = 20
)

// metresPerKilometre converts the provider's estimated distance field.
const metresPerKilometre = 1000

// catalogRequest is the search body for the map endpoint.
type catalogRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Catalog response wire format.
type catalogResponse struct {
	Data struct {
		Results []catalogRecord `json:"results"`
	} `json:"data"`
}

type catalogRecord struct {
	ID            string `json:"id"`
	PrimaryName   string `json:"primary_name"`
	SecondaryName string `json:"secondary_name"`
	Location      struct {
		Address struct {
			City string `json:"city"`
		} `json:"address"`
		Coordinates struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"coordinates"`
	} `json:"location"`
	Categories []struct {
		ID int `json:"id"`
	} `json:"categories"`
	Slug              string   `json:"slug"`
	EstimatedDistance *float64 `json:"estimated_distance"`
}

// campusPlaceholder substitutes for a missing city field.
const campusPlaceholder = "Campus"

// FetchNearby searches the catalog for library sites around a position.
//
// Records are filtered to library categories, normalised, and truncated to
// limit entries. Ordering is whatever the provider returned; it is assumed
// pre-sorted by relevance and is not re-sorted locally. Records without a
// slug are dropped: the slug is the only key for live-data and timetable
// lookups, so a record without one can never be enriched.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - pos: Search position
//   - limit: Maximum number of sites to return (must be positive)
//
// Returns:
//   - []Site: Normalised sites in provider order, at most limit entries
//   - error: Transport, status, or decode failure
func (c *Client) FetchNearby(ctx context.Context, pos geo.Position, limit int) ([]Site, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	var resp catalogResponse
	req := catalogRequest{Latitude: pos.Latitude, Longitude: pos.Longitude}
	if err := c.postJSON(ctx, "/app/v3/sites/map", req, &resp); err != nil {
		return nil, fmt.Errorf("fetching site catalog: %w", err)
	}

	sites := make([]Site, 0, limit)
	seen := make(map[string]bool)
	for _, record := range resp.Data.Results {
		if len(sites) == limit {
			break
		}
		if !isLibrary(record) {
			continue
		}
		if record.Slug == "" {
			c.logger.Warn("catalog record has no slug, dropping",
				"id", record.ID,
				"name", record.PrimaryName,
			)
			continue
		}
		if seen[record.ID] {
			c.logger.Warn("duplicate catalog record, dropping", "id", record.ID)
			continue
		}
		seen[record.ID] = true
		sites = append(sites, normalise(record))
	}

	return sites, nil
}

// isLibrary reports whether a record carries one of the library categories.
func isLibrary(record catalogRecord) bool {
	for _, cat := range record.Categories {
		if cat.ID == categoryLibrary || cat.ID == categoryUniversityLibrary {
			return true
		}
	}
	return false
}

// normalise converts a provider record into a Site.
func normalise(record catalogRecord) Site {
	campus := record.Location.Address.City
	if campus == "" {
		campus = campusPlaceholder
	}

	site := Site{
		ID:        record.ID,
		Name:      record.PrimaryName,
		Campus:    campus,
		Latitude:  record.Location.Coordinates.Latitude,
		Longitude: record.Location.Coordinates.Longitude,
		Slug:      record.Slug,
	}

	if record.EstimatedDistance != nil {
		km := *record.EstimatedDistance / metresPerKilometre
		site.DistanceKm = &km
	}

	return site
}

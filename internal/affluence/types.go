package affluence

// Site is one physical facility (a library) from the catalog, normalised
// for downstream use.
//
// Identity is ID; Slug is the stable external key used for live-data and
// timetable lookups and is never empty (records without one are dropped
// during normalisation).
type Site struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Campus    string  `json:"campus"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Slug      string  `json:"slug"`

	// DistanceKm is the provider's estimated distance from the search
	// position. Nil means no position was available to compute it.
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// LiveStatus is a site's current open/closed state and crowding.
//
// A nil OccupancyRate means "open/closed known, crowding unknown", which
// is distinct from having no LiveStatus at all (fetch failed).
type LiveStatus struct {
	IsOpen        bool   `json:"is_open"`
	OccupancyRate *int   `json:"occupancy_rate"`
	ClosingTime   string `json:"closing_time,omitempty"`
	OpeningText   string `json:"opening_text,omitempty"`
}

// TimetableEntry is one day of a site's weekly timetable.
type TimetableEntry struct {
	Day          string        `json:"day"`
	IsToday      bool          `json:"is_today"`
	OpeningHours []OpeningSpan `json:"opening_hours"`
}

// OpeningSpan is a single open-close interval within a day. An entry with
// no spans is closed all day.
type OpeningSpan struct {
	OpeningHour string `json:"opening_hour"`
	ClosingHour string `json:"closing_hour"`
}

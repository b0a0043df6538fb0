package aggregate

import (
	"context"
	"fmt"
	"sync"

	"campusd/internal/affluence"
	"campusd/internal/geo"
	"campusd/internal/infrastructure/logging"
)

// DefaultSiteLimit caps the number of sites per aggregate result.
const DefaultSiteLimit = 15

// PositionResolver produces a best-effort user position. Satisfied by
// geo.Locator.
type PositionResolver interface {
	Resolve(ctx context.Context) geo.Fix
}

// CatalogClient searches the site catalog. Satisfied by affluence.Client.
type CatalogClient interface {
	FetchNearby(ctx context.Context, pos geo.Position, limit int) ([]affluence.Site, error)
}

// StatusClient fetches one site's live status. Satisfied by affluence.Client.
type StatusClient interface {
	FetchStatus(ctx context.Context, slug string) (*affluence.LiveStatus, error)
}

// TimetableClient fetches one week of a site's opening hours. Satisfied by
// affluence.Client.
type TimetableClient interface {
	FetchTimetable(ctx context.Context, slug string, weekOffset int) ([]affluence.TimetableEntry, error)
}

// Result is one aggregate nearby-sites round-trip.
type Result struct {
	// Sites is the capped, provider-ordered site list.
	Sites []affluence.Site `json:"sites"`

	// Status maps site ID to live status. A missing key means that
	// site's status fetch failed; consumers must treat it as "assume
	// open, occupancy unknown", never as closed.
	Status map[string]affluence.LiveStatus `json:"status"`

	// Position is the fix the search was run from.
	Position geo.Fix `json:"position"`
}

// WeekView is one site's weekly timetable with the initially selected day.
type WeekView struct {
	Entries []affluence.TimetableEntry `json:"entries"`

	// SelectedIndex is the day the UI should focus first: today's entry
	// for the current week, the first day otherwise.
	SelectedIndex int `json:"selected_index"`
}

// Deps holds the orchestrator's collaborators.
type Deps struct {
	Locator   PositionResolver
	Catalog   CatalogClient
	Status    StatusClient
	Timetable TimetableClient
	Logger    *logging.Logger

	// SiteLimit overrides DefaultSiteLimit when positive.
	SiteLimit int
}

// Orchestrator composes the clients behind the two load operations.
type Orchestrator struct {
	locator   PositionResolver
	catalog   CatalogClient
	status    StatusClient
	timetable TimetableClient
	limit     int
	logger    *logging.Logger
}

// New creates an Orchestrator.
//
// Returns:
//   - *Orchestrator: Ready orchestrator
//   - error: If a required collaborator is missing
func New(deps Deps) (*Orchestrator, error) {
	if deps.Locator == nil {
		return nil, fmt.Errorf("locator is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog client is required")
	}
	if deps.Status == nil {
		return nil, fmt.Errorf("status client is required")
	}
	if deps.Timetable == nil {
		return nil, fmt.Errorf("timetable client is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	limit := deps.SiteLimit
	if limit <= 0 {
		limit = DefaultSiteLimit
	}

	return &Orchestrator{
		locator:   deps.Locator,
		catalog:   deps.Catalog,
		status:    deps.Status,
		timetable: deps.Timetable,
		limit:     limit,
		logger:    deps.Logger.With("component", "aggregate"),
	}, nil
}

// LoadNearbySites resolves a position, fetches the nearby site catalog,
// and enriches every site with its live status.
//
// The per-site status calls run concurrently and join on an all-settled
// barrier: one slow or failing site never blocks or invalidates the
// others. Only successful statuses appear in the returned map.
//
// The function never fails: catalog errors degrade to an empty site list,
// and a panic anywhere in the pipeline is recovered and logged so the
// caller is never stuck.
func (o *Orchestrator) LoadNearbySites(ctx context.Context) (result Result) {
	result = Result{Status: make(map[string]affluence.LiveStatus)}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic in nearby-sites pipeline", "panic", r)
			result = Result{Status: make(map[string]affluence.LiveStatus)}
		}
	}()

	fix := o.locator.Resolve(ctx)
	result.Position = fix

	sites, err := o.catalog.FetchNearby(ctx, fix.Position, o.limit)
	if err != nil {
		// An empty catalog is a valid terminal state for rendering.
		o.logger.Error("catalog fetch failed", "error", err)
		return result
	}
	result.Sites = sites

	if len(sites) == 0 {
		return result
	}

	// Fan out one status call per site; one result slot per goroutine,
	// so no locking is needed until the merge.
	type outcome struct {
		siteID string
		status *affluence.LiveStatus
	}

	outcomes := make([]outcome, len(sites))
	var wg sync.WaitGroup
	for i, site := range sites {
		wg.Add(1)
		go func(i int, site affluence.Site) {
			defer wg.Done()
			status, err := o.status.FetchStatus(ctx, site.Slug)
			if err != nil {
				// Partial failure is a first-class outcome; the site
				// simply has no status entry.
				o.logger.Warn("live status fetch failed",
					"slug", site.Slug,
					"error", err,
				)
				return
			}
			outcomes[i] = outcome{siteID: site.ID, status: status}
		}(i, site)
	}
	wg.Wait()

	for _, out := range outcomes {
		if out.status != nil {
			result.Status[out.siteID] = *out.status
		}
	}

	o.logger.Info("nearby sites loaded",
		"sites", len(result.Sites),
		"statuses", len(result.Status),
		"position_source", fix.Source,
	)

	return result
}

// LoadWeek fetches one week of a site's timetable and selects the day the
// UI should focus.
//
// Selection policy: for weekOffset 0, the entry flagged as today, or
// index 0 if none is flagged; for any other offset, always index 0, since
// "today" has no meaning outside the current week.
//
// Like LoadNearbySites, this never fails: a fetch error degrades to an
// empty week.
func (o *Orchestrator) LoadWeek(ctx context.Context, slug string, weekOffset int) WeekView {
	entries, err := o.timetable.FetchTimetable(ctx, slug, weekOffset)
	if err != nil {
		o.logger.Error("timetable fetch failed",
			"slug", slug,
			"week_offset", weekOffset,
			"error", err,
		)
		return WeekView{}
	}

	return WeekView{
		Entries:       entries,
		SelectedIndex: selectDay(entries, weekOffset),
	}
}

// selectDay applies the initial-focus policy.
func selectDay(entries []affluence.TimetableEntry, weekOffset int) int {
	if weekOffset != 0 {
		return 0
	}
	for i, entry := range entries {
		if entry.IsToday {
			return i
		}
	}
	return 0
}

package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"campusd/internal/affluence"
	"campusd/internal/geo"
	"campusd/internal/infrastructure/logging"
)

// Fakes for the orchestrator's collaborators.

type fakeLocator struct {
	fix geo.Fix
}

func (l *fakeLocator) Resolve(_ context.Context) geo.Fix {
	return l.fix
}

type fakeCatalog struct {
	sites []affluence.Site
	err   error

	gotPos   geo.Position
	gotLimit int
}

func (c *fakeCatalog) FetchNearby(_ context.Context, pos geo.Position, limit int) ([]affluence.Site, error) {
	c.gotPos = pos
	c.gotLimit = limit
	if c.err != nil {
		return nil, c.err
	}
	if len(c.sites) > limit {
		return c.sites[:limit], nil
	}
	return c.sites, nil
}

type fakeStatus struct {
	mu       sync.Mutex
	statuses map[string]*affluence.LiveStatus
	failing  map[string]bool
	calls    []string
}

func (s *fakeStatus) FetchStatus(_ context.Context, slug string) (*affluence.LiveStatus, error) {
	s.mu.Lock()
	s.calls = append(s.calls, slug)
	s.mu.Unlock()

	if s.failing[slug] {
		return nil, errors.New("connection refused")
	}
	if status, ok := s.statuses[slug]; ok {
		return status, nil
	}
	return &affluence.LiveStatus{IsOpen: true}, nil
}

type fakeTimetable struct {
	entries []affluence.TimetableEntry
	err     error

	gotSlug   string
	gotOffset int
}

func (f *fakeTimetable) FetchTimetable(_ context.Context, slug string, weekOffset int) ([]affluence.TimetableEntry, error) {
	f.gotSlug = slug
	f.gotOffset = weekOffset
	return f.entries, f.err
}

func site(id, slug string) affluence.Site {
	km := 1.2
	return affluence.Site{
		ID:         id,
		Name:       "BU " + id,
		Campus:     "Talence",
		Slug:       slug,
		DistanceKm: &km,
	}
}

func newOrchestrator(t *testing.T, deps Deps) *Orchestrator {
	t.Helper()
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	o, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}

func TestLoadNearbySites_MergesStatuses(t *testing.T) {
	rate := 42
	catalog := &fakeCatalog{sites: []affluence.Site{site("1", "bu-1"), site("2", "bu-2")}}
	status := &fakeStatus{
		statuses: map[string]*affluence.LiveStatus{
			"bu-1": {IsOpen: true, OccupancyRate: &rate},
			"bu-2": {IsOpen: false},
		},
	}

	o := newOrchestrator(t, Deps{
		Locator:   &fakeLocator{fix: geo.Fix{Position: geo.Position{Latitude: 44.8, Longitude: -0.6}, Source: geo.SourceStatic}},
		Catalog:   catalog,
		Status:    status,
		Timetable: &fakeTimetable{},
	})

	result := o.LoadNearbySites(context.Background())

	if len(result.Sites) != 2 {
		t.Fatalf("len(Sites) = %d, want 2", len(result.Sites))
	}
	if len(result.Status) != 2 {
		t.Fatalf("len(Status) = %d, want 2", len(result.Status))
	}
	if got := result.Status["1"]; got.OccupancyRate == nil || *got.OccupancyRate != 42 {
		t.Errorf("Status[1].OccupancyRate = %v, want 42", got.OccupancyRate)
	}
	if result.Status["2"].IsOpen {
		t.Error("Status[2].IsOpen = true, want false")
	}
	if catalog.gotLimit != DefaultSiteLimit {
		t.Errorf("catalog limit = %d, want %d", catalog.gotLimit, DefaultSiteLimit)
	}
	if catalog.gotPos.Latitude != 44.8 {
		t.Errorf("catalog position = %+v, want locator fix", catalog.gotPos)
	}
}

func TestLoadNearbySites_PartialStatusFailure(t *testing.T) {
	catalog := &fakeCatalog{sites: []affluence.Site{
		site("1", "bu-1"), site("2", "bu-2"), site("3", "bu-3"),
	}}
	status := &fakeStatus{failing: map[string]bool{"bu-2": true}}

	o := newOrchestrator(t, Deps{
		Locator:   &fakeLocator{},
		Catalog:   catalog,
		Status:    status,
		Timetable: &fakeTimetable{},
	})

	result := o.LoadNearbySites(context.Background())

	// The failing site is absent from the map; its siblings are not.
	if len(result.Sites) != 3 {
		t.Fatalf("len(Sites) = %d, want 3 (failures never shrink the site list)", len(result.Sites))
	}
	if _, ok := result.Status["2"]; ok {
		t.Error("Status[2] present, want absent for failed fetch")
	}
	if _, ok := result.Status["1"]; !ok {
		t.Error("Status[1] absent, want present")
	}
	if _, ok := result.Status["3"]; !ok {
		t.Error("Status[3] absent, want present")
	}

	// All three fetches were attempted: no short-circuit join.
	if len(status.calls) != 3 {
		t.Errorf("status calls = %d, want 3", len(status.calls))
	}
}

func TestLoadNearbySites_CatalogFailureIsSafe(t *testing.T) {
	o := newOrchestrator(t, Deps{
		Locator:   &fakeLocator{fix: geo.Fix{Source: geo.SourceFallback, Degraded: true}},
		Catalog:   &fakeCatalog{err: errors.New("upstream down")},
		Status:    &fakeStatus{},
		Timetable: &fakeTimetable{},
	})

	result := o.LoadNearbySites(context.Background())

	if len(result.Sites) != 0 {
		t.Errorf("len(Sites) = %d, want 0", len(result.Sites))
	}
	if result.Status == nil {
		t.Error("Status map is nil, want empty map")
	}
	if !result.Position.Degraded {
		t.Error("Position.Degraded = false, want locator flag carried through")
	}
}

func TestLoadNearbySites_SiteLimitOverride(t *testing.T) {
	var sites []affluence.Site
	for i := 0; i < 30; i++ {
		sites = append(sites, site(fmt.Sprintf("%d", i), fmt.Sprintf("bu-%d", i)))
	}
	catalog := &fakeCatalog{sites: sites}

	o := newOrchestrator(t, Deps{
		Locator:   &fakeLocator{},
		Catalog:   catalog,
		Status:    &fakeStatus{},
		Timetable: &fakeTimetable{},
		SiteLimit: 5,
	})

	result := o.LoadNearbySites(context.Background())
	if len(result.Sites) != 5 {
		t.Errorf("len(Sites) = %d, want override limit 5", len(result.Sites))
	}
}

func weekFixture(todayIndex int) []affluence.TimetableEntry {
	entries := make([]affluence.TimetableEntry, 7)
	for i := range entries {
		entries[i] = affluence.TimetableEntry{
			Day:     fmt.Sprintf("2026-08-%02d", 24+i),
			IsToday: i == todayIndex,
		}
	}
	return entries
}

func TestLoadWeek_SelectsToday(t *testing.T) {
	timetable := &fakeTimetable{entries: weekFixture(3)}
	o := newOrchestrator(t, Deps{
		Locator:   &fakeLocator{},
		Catalog:   &fakeCatalog{},
		Status:    &fakeStatus{},
		Timetable: timetable,
	})

	view := o.LoadWeek(context.Background(), "bu-1", 0)

	if view.SelectedIndex != 3 {
		t.Errorf("SelectedIndex = %d, want 3 (today)", view.SelectedIndex)
	}
	if timetable.gotSlug != "bu-1" || timetable.gotOffset != 0 {
		t.Errorf("fetch args = (%q, %d), want (bu-1, 0)", timetable.gotSlug, timetable.gotOffset)
	}
}

func TestLoadWeek_NoTodayFlagDefaultsToFirst(t *testing.T) {
	o := newOrchestrator(t, Deps{
		Locator:   &fakeLocator{},
		Catalog:   &fakeCatalog{},
		Status:    &fakeStatus{},
		Timetable: &fakeTimetable{entries: weekFixture(-1)},
	})

	view := o.LoadWeek(context.Background(), "bu-1", 0)
	if view.SelectedIndex != 0 {
		t.Errorf("SelectedIndex = %d, want 0", view.SelectedIndex)
	}
}

func TestLoadWeek_NonZeroOffsetAlwaysSelectsFirst(t *testing.T) {
	// Even with an isToday flag present, a non-current week starts on
	// its first day.
	o := newOrchestrator(t, Deps{
		Locator:   &fakeLocator{},
		Catalog:   &fakeCatalog{},
		Status:    &fakeStatus{},
		Timetable: &fakeTimetable{entries: weekFixture(4)},
	})

	view := o.LoadWeek(context.Background(), "bu-1", 1)
	if view.SelectedIndex != 0 {
		t.Errorf("SelectedIndex = %d, want 0 for weekOffset 1", view.SelectedIndex)
	}
}

func TestLoadWeek_FetchFailureYieldsEmptyWeek(t *testing.T) {
	o := newOrchestrator(t, Deps{
		Locator:   &fakeLocator{},
		Catalog:   &fakeCatalog{},
		Status:    &fakeStatus{},
		Timetable: &fakeTimetable{err: errors.New("timeout")},
	})

	view := o.LoadWeek(context.Background(), "bu-1", 0)
	if len(view.Entries) != 0 || view.SelectedIndex != 0 {
		t.Errorf("view = %+v, want empty week", view)
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Deps{Logger: logging.Default()})
	if err == nil {
		t.Fatal("New() without collaborators should fail")
	}
}

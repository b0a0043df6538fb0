package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"campusd/internal/affluence"
	"campusd/internal/ical"
)

// maxWeekOffset bounds how far the timetable can be paged in either
// direction. The provider serves nothing useful beyond a year out.
const maxWeekOffset = 52

// handleTimetable serves one week of a site's opening hours as JSON.
//
// Query parameters:
//   - weekOffset: signed week selector, 0 (default) is the current week
func (s *Server) handleTimetable(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		writeBadRequest(w, "slug is required")
		return
	}

	weekOffset, ok := parseWeekOffset(w, r)
	if !ok {
		return
	}

	view := s.aggregator.LoadWeek(r.Context(), slug, weekOffset)
	writeJSON(w, http.StatusOK, view)
}

// handleTimetableICS serves one week of a site's opening hours as an
// iCalendar document, for subscription from calendar clients.
func (s *Server) handleTimetableICS(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		writeBadRequest(w, "slug is required")
		return
	}

	weekOffset, ok := parseWeekOffset(w, r)
	if !ok {
		return
	}

	view := s.aggregator.LoadWeek(r.Context(), slug, weekOffset)
	if len(view.Entries) == 0 {
		writeNotFound(w, "no timetable for site "+slug)
		return
	}

	loc := s.campusLocation()
	site := affluence.Site{Slug: slug, Name: s.siteName(r, slug)}
	document, err := ical.Export(site, view.Entries, loc)
	if err != nil {
		s.logger.Error("ics export failed", "slug", slug, "error", err)
		writeInternalError(w, "timetable export failed")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+slug+`.ics"`)
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write([]byte(document))
}

// parseWeekOffset reads and bounds the weekOffset query parameter,
// writing a 400 response on malformed input.
func parseWeekOffset(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("weekOffset")
	if raw == "" {
		return 0, true
	}

	offset, err := strconv.Atoi(raw)
	if err != nil {
		writeBadRequest(w, "weekOffset must be an integer")
		return 0, false
	}
	if offset < -maxWeekOffset || offset > maxWeekOffset {
		writeBadRequest(w, "weekOffset out of range")
		return 0, false
	}

	return offset, true
}

// campusLocation resolves the configured campus timezone, falling back
// to UTC when it cannot be loaded.
func (s *Server) campusLocation() *time.Location {
	if s.campus.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.campus.Timezone)
	if err != nil {
		s.logger.Warn("invalid campus timezone, using UTC", "timezone", s.campus.Timezone)
		return time.UTC
	}
	return loc
}

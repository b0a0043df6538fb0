package api

import (
	"net/http"
	"time"

	"campusd/internal/affluence"
	"campusd/internal/geo"
	"campusd/internal/refresh"
)

// Result sources for the sites response.
const (
	sourceLive     = "live"
	sourceCache    = "cache"
	sourceSnapshot = "snapshot"
)

// sitesResponse is the aggregated nearby-sites view.
type sitesResponse struct {
	Sites  []affluence.Site                `json:"sites"`
	Status map[string]affluence.LiveStatus `json:"status"`

	// Position is the fix the site list was computed from. Absent when
	// the result came from a persisted snapshot.
	Position *geo.Fix `json:"position,omitempty"`

	// Source records where the data came from: live aggregation, the
	// last refresh cycle, or the persisted snapshot.
	Source string `json:"source"`

	RefreshedAt time.Time `json:"refreshed_at"`
}

// handleListSites serves the aggregated site list.
//
// By default it returns the most recent refresh cycle's result, falling
// back to the persisted snapshot on a cold start, and to a live
// aggregation round-trip when neither exists. ?refresh=1 forces a live
// cycle regardless.
func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.URL.Query().Get("refresh") == "1" {
		writeJSON(w, http.StatusOK, s.liveSites(r))
		return
	}

	if s.refresher != nil {
		if last := s.refresher.Last(); last != nil {
			writeJSON(w, http.StatusOK, sitesResponse{
				Sites:       last.Result.Sites,
				Status:      last.Result.Status,
				Position:    &last.Result.Position,
				Source:      sourceCache,
				RefreshedAt: last.FinishedAt,
			})
			return
		}
	}

	if s.snapshots != nil {
		snap, err := s.snapshots.Latest(ctx)
		if err != nil {
			s.logger.Warn("snapshot read failed, falling back to live aggregation", "error", err)
		} else if snap != nil {
			writeJSON(w, http.StatusOK, sitesResponse{
				Sites:       snap.Sites,
				Status:      snap.Status,
				Source:      sourceSnapshot,
				RefreshedAt: snap.RefreshedAt,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, s.liveSites(r))
}

// liveSites runs one aggregation round-trip, through the refresher when
// available so sinks and the cache observe the cycle.
func (s *Server) liveSites(r *http.Request) sitesResponse {
	if s.refresher != nil {
		ev := s.refresher.RunOnce(r.Context(), refresh.TriggerManual)
		return sitesResponse{
			Sites:       ev.Result.Sites,
			Status:      ev.Result.Status,
			Position:    &ev.Result.Position,
			Source:      sourceLive,
			RefreshedAt: ev.FinishedAt,
		}
	}

	result := s.aggregator.LoadNearbySites(r.Context())
	return sitesResponse{
		Sites:       result.Sites,
		Status:      result.Status,
		Position:    &result.Position,
		Source:      sourceLive,
		RefreshedAt: time.Now().UTC(),
	}
}

// refreshResponse summarizes a manually triggered cycle.
type refreshResponse struct {
	RunID      string    `json:"run_id"`
	Sites      int       `json:"sites"`
	Statuses   int       `json:"statuses"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// handleRefresh triggers an immediate refresh cycle.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "background refresh is not enabled")
		return
	}

	ev := s.refresher.RunOnce(r.Context(), refresh.TriggerManual)
	writeJSON(w, http.StatusOK, refreshResponse{
		RunID:      ev.RunID,
		Sites:      len(ev.Result.Sites),
		Statuses:   len(ev.Result.Status),
		StartedAt:  ev.StartedAt,
		FinishedAt: ev.FinishedAt,
	})
}

// siteName looks up a site's display name by slug from the freshest
// available result. Falls back to the slug itself.
func (s *Server) siteName(r *http.Request, slug string) string {
	if s.refresher != nil {
		if last := s.refresher.Last(); last != nil {
			for _, site := range last.Result.Sites {
				if site.Slug == slug {
					return site.Name
				}
			}
		}
	}

	if s.snapshots != nil {
		if snap, err := s.snapshots.Latest(r.Context()); err == nil && snap != nil {
			for _, site := range snap.Sites {
				if site.Slug == slug {
					return site.Name
				}
			}
		}
	}

	return slug
}

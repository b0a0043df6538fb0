package affluence

import (
	"context"
	"fmt"
	"net/url"
)

// Live-data response wire format.
type liveDataResponse struct {
	Data struct {
		Status struct {
			IsOpen      bool   `json:"isOpen"`
			ClosingAt   string `json:"closingAt"`
			OpeningText string `json:"openingText"`
		} `json:"status"`
		LiveAttendance *liveAttendance `json:"liveAttendance"`
	} `json:"data"`
}

type liveAttendance struct {
	Percentage *int `json:"percentage"`
	Occupancy  *int `json:"occupancy"`
}

// occupancyAccessor names one provider field that may carry the occupancy
// rate.
type occupancyAccessor struct {
	name string
	get  func(liveAttendance) *int
}

// occupancyPrecedence is the ordered field-precedence policy for reading
// occupancy: the first present field wins. The provider has shipped both
// names at different times.
var occupancyPrecedence = []occupancyAccessor{
	{name: "percentage", get: func(a liveAttendance) *int { return a.Percentage }},
	{name: "occupancy", get: func(a liveAttendance) *int { return a.Occupancy }},
}

// occupancyFrom resolves the occupancy rate through the precedence policy.
// Nil means the provider reported no crowding figure at all.
func occupancyFrom(attendance *liveAttendance) *int {
	if attendance == nil {
		return nil
	}
	for _, accessor := range occupancyPrecedence {
		if v := accessor.get(*attendance); v != nil {
			return v
		}
	}
	return nil
}

// occupancy rates outside this range are provider data-quality defects;
// they are passed through unclamped but logged.
const (
	occupancyMin = 0
	occupancyMax = 100
)

// FetchStatus fetches the current open state and occupancy for one site.
//
// Occupancy is resolved through the ordered field-precedence policy; a nil
// OccupancyRate in the result means the site's crowding is unknown while
// its open state is not.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - slug: The site's stable external key
//
// Returns:
//   - *LiveStatus: Current status
//   - error: Transport, status, or decode failure
func (c *Client) FetchStatus(ctx context.Context, slug string) (*LiveStatus, error) {
	if slug == "" {
		return nil, fmt.Errorf("slug is required")
	}

	var resp liveDataResponse
	path := "/app/v4/sites/" + url.PathEscape(slug) + "/live-data"
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("fetching live data for %s: %w", slug, err)
	}

	rate := occupancyFrom(resp.Data.LiveAttendance)
	if rate != nil && (*rate < occupancyMin || *rate > occupancyMax) {
		// Passed through unclamped: the provider is the source of truth
		// and clamping would hide the defect.
		c.logger.Warn("occupancy rate out of range",
			"slug", slug,
			"rate", *rate,
		)
	}

	return &LiveStatus{
		IsOpen:        resp.Data.Status.IsOpen,
		OccupancyRate: rate,
		ClosingTime:   resp.Data.Status.ClosingAt,
		OpeningText:   resp.Data.Status.OpeningText,
	}, nil
}

package affluence

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Timetable response wire format.
type timetableResponse struct {
	Data struct {
		Entries []timetableEntryWire `json:"entries"`
	} `json:"data"`
}

type timetableEntryWire struct {
	Day          string `json:"day"`
	IsToday      bool   `json:"isToday"`
	OpeningHours []struct {
		OpeningHour string `json:"openingHour"`
		ClosingHour string `json:"closingHour"`
	} `json:"openingHours"`
}

// FetchTimetable fetches one week of a site's opening hours.
//
// weekOffset selects the week relative to the provider's own week boundary:
// 0 is the current week, negative past, positive future. Day selection for
// display is the orchestrator's job, not this client's.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - slug: The site's stable external key
//   - weekOffset: Signed week selector
//
// Returns:
//   - []TimetableEntry: Chronologically ordered entries, typically seven
//   - error: Transport, status, or decode failure
func (c *Client) FetchTimetable(ctx context.Context, slug string, weekOffset int) ([]TimetableEntry, error) {
	if slug == "" {
		return nil, fmt.Errorf("slug is required")
	}

	var resp timetableResponse
	path := "/app/v4/sites/" + url.PathEscape(slug) + "/timetables?weekOffset=" + strconv.Itoa(weekOffset)
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("fetching timetable for %s: %w", slug, err)
	}

	entries := make([]TimetableEntry, 0, len(resp.Data.Entries))
	for _, wire := range resp.Data.Entries {
		entry := TimetableEntry{
			Day:          wire.Day,
			IsToday:      wire.IsToday,
			OpeningHours: make([]OpeningSpan, 0, len(wire.OpeningHours)),
		}
		for _, span := range wire.OpeningHours {
			entry.OpeningHours = append(entry.OpeningHours, OpeningSpan{
				OpeningHour: span.OpeningHour,
				ClosingHour: span.ClosingHour,
			})
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

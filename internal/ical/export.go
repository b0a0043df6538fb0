package ical

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"campusd/internal/affluence"
)

// dayLayout is the timetable's date format.
const dayLayout = "2006-01-02"

// clockLayouts are the accepted opening-hour formats, tried in order.
var clockLayouts = []string{"15:04:05", "15:04"}

// prodID identifies campusd as the calendar generator.
const prodID = "-//campusd//timetable//EN"

// Export renders a site's weekly timetable as an iCalendar document.
//
// Each opening span becomes one VEVENT: a day with two spans (morning
// and evening service) yields two events, and a closed day yields none.
// Span times are interpreted in loc, the campus's local timezone.
//
// Parameters:
//   - site: The site the timetable belongs to
//   - entries: One week of timetable entries
//   - loc: Timezone for span times (nil means time.Local)
//
// Returns:
//   - string: The serialized VCALENDAR
//   - error: If a day or span cannot be parsed
func Export(site affluence.Site, entries []affluence.TimetableEntry, loc *time.Location) (string, error) {
	if loc == nil {
		loc = time.Local
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(prodID)

	now := time.Now().UTC()

	for _, entry := range entries {
		day, err := time.ParseInLocation(dayLayout, entry.Day, loc)
		if err != nil {
			return "", fmt.Errorf("parsing day %q: %w", entry.Day, err)
		}

		for i, span := range entry.OpeningHours {
			start, err := spanTime(day, span.OpeningHour, loc)
			if err != nil {
				return "", fmt.Errorf("parsing opening hour %q on %s: %w", span.OpeningHour, entry.Day, err)
			}
			end, err := spanTime(day, span.ClosingHour, loc)
			if err != nil {
				return "", fmt.Errorf("parsing closing hour %q on %s: %w", span.ClosingHour, entry.Day, err)
			}

			uid := fmt.Sprintf("%s-%s-%d@campusd", site.Slug, entry.Day, i)
			event := cal.AddEvent(uid)
			event.SetDtStampTime(now)
			event.SetStartAt(start)
			event.SetEndAt(end)
			event.SetSummary(fmt.Sprintf("%s open", site.Name))
			event.SetLocation(site.Name)
		}
	}

	return cal.Serialize(), nil
}

// spanTime combines a day with a clock string into a concrete time.
func spanTime(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	var lastErr error
	for _, layout := range clockLayouts {
		t, err := time.ParseInLocation(layout, clock, loc)
		if err != nil {
			lastErr = err
			continue
		}
		return time.Date(day.Year(), day.Month(), day.Day(),
			t.Hour(), t.Minute(), t.Second(), 0, loc), nil
	}
	return time.Time{}, lastErr
}

package affluence

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchTimetable_WeekOffsetParam(t *testing.T) {
	var gotOffset string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/app/v4/sites/bu-droit/timetables" {
			t.Errorf("path = %q, want /app/v4/sites/bu-droit/timetables", r.URL.Path)
		}
		gotOffset = r.URL.Query().Get("weekOffset")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"entries":[]}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	if _, err := client.FetchTimetable(context.Background(), "bu-droit", -2); err != nil {
		t.Fatalf("FetchTimetable() error = %v", err)
	}

	if gotOffset != "-2" {
		t.Errorf("weekOffset param = %q, want -2", gotOffset)
	}
}

func TestFetchTimetable_MapsEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"entries":[
			{"day":"2026-08-31","isToday":true,"openingHours":[
				{"openingHour":"2026-08-31T08:30:00","closingHour":"2026-08-31T12:00:00"},
				{"openingHour":"2026-08-31T13:30:00","closingHour":"2026-08-31T19:00:00"}]},
			{"day":"2026-09-01","isToday":false,"openingHours":[]}
		]}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	entries, err := client.FetchTimetable(context.Background(), "bu-droit", 0)
	if err != nil {
		t.Fatalf("FetchTimetable() error = %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if !entries[0].IsToday {
		t.Error("entries[0].IsToday = false, want true")
	}
	if len(entries[0].OpeningHours) != 2 {
		t.Fatalf("len(entries[0].OpeningHours) = %d, want 2", len(entries[0].OpeningHours))
	}
	if entries[0].OpeningHours[0].OpeningHour != "2026-08-31T08:30:00" {
		t.Errorf("OpeningHour = %q, want passthrough datetime string", entries[0].OpeningHours[0].OpeningHour)
	}
	// A day with no spans is closed all day, and stays an empty slice.
	if len(entries[1].OpeningHours) != 0 {
		t.Errorf("entries[1].OpeningHours = %v, want empty", entries[1].OpeningHours)
	}
}

func TestFetchTimetable_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	if _, err := client.FetchTimetable(context.Background(), "bu-droit", 0); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestFetchTimetable_EmptySlug(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	if _, err := client.FetchTimetable(context.Background(), "", 0); err == nil {
		t.Fatal("expected error for empty slug")
	}
}

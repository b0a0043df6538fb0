// Package ical renders site timetables as iCalendar documents, so
// opening hours can be subscribed to from any calendar client.
package ical

// Package api implements the HTTP REST API and WebSocket server for campusd.
//
// This package provides:
//   - REST endpoints for the aggregated site list, timetables, and
//     building resolution
//   - WebSocket hub broadcasting completed refresh cycles
//   - iCalendar export of site opening hours
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Architecture
//
// The API server sits between user interfaces and the aggregation
// pipeline. Reads are served from the last refresh cycle or the
// persisted snapshot whenever possible, so the upstream provider is
// only hit by the scheduler and explicit refresh requests. Refresh
// cycles are streamed to WebSocket clients subscribed to the
// "sites.refreshed" channel.
package api

// Package affluence is the client for the Affluences site catalog and
// live-occupancy provider.
//
// It covers three upstream endpoints:
//   - POST /app/v3/sites/map - nearby site search around a position
//   - GET  /app/v4/sites/{slug}/live-data - current open state and occupancy
//   - GET  /app/v4/sites/{slug}/timetables - weekly opening hours
//
// The provider only accepts requests carrying its website's exact header
// set (Accept-Language, x-service-name, Origin, Referer, User-Agent);
// these are reproduced verbatim on every call.
//
// All methods return explicit errors; degrade-to-empty policy on failure
// is the aggregate orchestrator's job, not this package's.
//
// Thread Safety: the Client is safe for concurrent use from multiple
// goroutines; it holds no mutable state beyond the shared http.Client.
package affluence

// Package geo resolves a best-effort position for nearby-site searches.
//
// Resolution tries, in order:
//  1. a static operator-configured position
//  2. the last position persisted in the snapshot store
//  3. a fresh IP-geolocation lookup with a bounded time budget
//  4. the fixed fallback campus coordinate
//
// Resolve never fails: the caller always receives a usable position. A
// Degraded flag reports that only the fallback was available, so callers
// can warn the user; it never blocks data flow.
package geo

// Package snapshot persists the latest aggregate result to SQLite.
//
// The store is a warm-start cache: on boot the daemon serves the last
// persisted sites and statuses immediately, then replaces them on the
// first successful refresh. The repository also keeps the last resolved
// position so the locator can fall back to it when live sources fail.
package snapshot

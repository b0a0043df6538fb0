// Package history records occupancy samples to InfluxDB.
//
// Each refresh cycle produces one point per site in the "occupancy"
// measurement, tagged by site_id, slug, and campus. Writes are batched
// and non-blocking so the refresh loop never waits on the backend, and
// the recorder is optional: when disabled in config, the daemon runs
// without it.
package history

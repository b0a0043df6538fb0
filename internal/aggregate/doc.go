// Package aggregate composes the locator, catalog, live-status and
// timetable clients into the result sets the UI layers consume.
//
// It is the only package with ordering and consistency contracts across
// network calls:
//   - the per-site live-status fan-out is concurrent and joins on an
//     all-settled barrier, never aborting siblings on one failure
//   - both entry points absorb every failure into a safe empty result,
//     so a caller is never left with an error or a stuck loading state
//
// No retries and no caching happen here: a failed fetch is terminal for
// that call, and every call re-fetches. Memoization is the snapshot
// store's concern, outside this package.
package aggregate

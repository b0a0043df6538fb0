// Package database provides SQLite connection management for campusd.
//
// This package manages:
//   - Opening the snapshot database with WAL mode and busy timeout
//   - Running embedded schema migrations in order
//   - Health checks and graceful shutdown
//
// The database holds only request-scoped snapshot data (last resolved
// position, last aggregate result); losing it is never fatal, campusd
// simply starts cold and refetches.
package database

package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"campusd/internal/affluence"
	"campusd/internal/infrastructure/config"
)

// Default timeouts for InfluxDB operations.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	// millisecondsPerSecond converts seconds to milliseconds for the InfluxDB API.
	millisecondsPerSecond = 1000
)

// Defaults applied when batching settings are absent from config.
const (
	defaultBatchSize     = 100
	defaultFlushInterval = 10
)

// occupancyMeasurement is the InfluxDB measurement occupancy samples land in.
const occupancyMeasurement = "occupancy"

// Recorder writes per-refresh occupancy samples to InfluxDB.
//
// Writes are non-blocking and batched; a refresh cycle is never delayed
// by a slow or unreachable time-series backend.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Recorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig

	// connected tracks current connection state.
	connected bool
	mu        sync.RWMutex

	// onError is called when async write errors occur.
	onError func(err error)
}

// Connect establishes a connection to the InfluxDB server.
//
// It performs the following setup:
//  1. Creates the client with token authentication
//  2. Verifies connectivity with a ping
//  3. Configures the non-blocking write API with batching
//  4. Sets up error callback for async write failures
//
// Parameters:
//   - cfg: InfluxDB configuration from config.yaml
//
// Returns:
//   - *Recorder: Connected recorder ready for use
//   - error: If history recording is disabled or connection fails
func Connect(cfg config.InfluxDBConfig) (*Recorder, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	// #nosec G115 -- values validated above to be positive
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	r := &Recorder{
		client:    client,
		writeAPI:  writeAPI,
		cfg:       cfg,
		connected: true,
	}

	errorsCh := writeAPI.Errors()
	go r.handleWriteErrors(errorsCh)

	return r, nil
}

// handleWriteErrors processes async write errors from the WriteAPI.
func (r *Recorder) handleWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		r.mu.RLock()
		callback := r.onError
		r.mu.RUnlock()

		if callback != nil {
			callback(err)
		}
	}
}

// RecordStatus writes one occupancy sample for a site.
//
// Sites whose status carries no occupancy reading still produce a point,
// tagged with their open state, so closed-hours gaps are visible in the
// series rather than indistinguishable from write failures.
//
// Parameters:
//   - site: The site the sample belongs to
//   - status: The live status observed for it
//   - at: The refresh timestamp shared by all samples of one cycle
func (r *Recorder) RecordStatus(site affluence.Site, status affluence.LiveStatus, at time.Time) {
	if !r.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"is_open": status.IsOpen,
	}
	if status.OccupancyRate != nil {
		fields["rate"] = *status.OccupancyRate
	}

	point := write.NewPoint(
		occupancyMeasurement,
		map[string]string{
			"site_id": site.ID,
			"slug":    site.Slug,
			"campus":  site.Campus,
		},
		fields,
		at,
	)

	r.writeAPI.WritePoint(point)
}

// RecordCycle writes samples for every site of a refresh cycle.
//
// Sites without a status entry are skipped; an absent entry means the
// upstream fetch for that site failed, and there is nothing to record.
func (r *Recorder) RecordCycle(sites []affluence.Site, status map[string]affluence.LiveStatus, at time.Time) {
	for _, site := range sites {
		s, ok := status[site.ID]
		if !ok {
			continue
		}
		r.RecordStatus(site, s, at)
	}
}

// Close gracefully shuts down the InfluxDB connection.
//
// It flushes any pending writes before closing the underlying client.
func (r *Recorder) Close() error {
	if r.client == nil {
		return nil
	}

	r.mu.Lock()
	r.connected = false
	r.mu.Unlock()

	r.writeAPI.Flush()
	r.client.Close()

	return nil
}

// HealthCheck verifies the InfluxDB connection is alive and functioning.
func (r *Recorder) HealthCheck(ctx context.Context) error {
	if !r.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := r.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("history health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("history health check failed: server not healthy")
	}

	return nil
}

// IsConnected returns the current connection state.
//
// Note: This reflects the last known state. For reliability,
// use HealthCheck which performs an active ping.
func (r *Recorder) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected
}

// SetOnError sets a callback to be invoked when async write errors occur.
//
// Since writes are non-blocking, errors are delivered asynchronously.
// Use this callback to log or handle write failures.
func (r *Recorder) SetOnError(callback func(err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = callback
}

// Flush forces all pending writes to be sent to InfluxDB.
//
// This blocks until all buffered points are written.
// Safe to call after Close() (no-op).
func (r *Recorder) Flush() {
	if r.writeAPI == nil {
		return
	}

	r.mu.RLock()
	connected := r.connected
	r.mu.RUnlock()

	if !connected {
		return
	}

	r.writeAPI.Flush()
}

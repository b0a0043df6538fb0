// campusd - Campus Companion Resource Discovery Daemon
//
// This is the main entry point for campusd. The daemon aggregates the
// campus site catalog, live occupancy, and weekly timetables from the
// upstream provider, and serves them to user interfaces over:
//   - A REST API (nearby sites, timetables, building resolution)
//   - A WebSocket feed of refresh cycles
//   - Optional MQTT retained-status topics and InfluxDB occupancy history
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "campusd/migrations"

	"campusd/internal/affluence"
	"campusd/internal/aggregate"
	"campusd/internal/api"
	"campusd/internal/geo"
	"campusd/internal/history"
	"campusd/internal/infrastructure/config"
	"campusd/internal/infrastructure/database"
	"campusd/internal/infrastructure/logging"
	"campusd/internal/notify"
	"campusd/internal/refresh"
	"campusd/internal/resolver"
	"campusd/internal/snapshot"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// componentStopTimeout bounds each component's shutdown during cleanup.
const componentStopTimeout = 5 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting campusd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Snapshot repository doubles as the locator's position store
	snapshots := snapshot.NewRepository(db)

	// Upstream provider client and aggregation pipeline
	client := affluence.New(cfg.Affluence, log)
	locator := geo.NewLocator(cfg.Locator, snapshots, log)

	orchestrator, err := aggregate.New(aggregate.Deps{
		Locator:   locator,
		Catalog:   client,
		Status:    client,
		Timetable: client,
		Logger:    log,
		SiteLimit: cfg.Affluence.ResultLimit,
	})
	if err != nil {
		return fmt.Errorf("creating orchestrator: %w", err)
	}

	// Connect occupancy history recorder (optional)
	recorder, err := history.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, history.ErrDisabled):
		log.Info("occupancy history disabled")
		recorder = nil
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := recorder.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		recorder.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("occupancy history connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	// Connect live-status publisher (optional)
	publisher, err := notify.Connect(cfg.MQTT)
	switch {
	case errors.Is(err, notify.ErrDisabled):
		log.Info("status publishing disabled")
		publisher = nil
	case err != nil:
		return fmt.Errorf("connecting to MQTT: %w", err)
	default:
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := publisher.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("status publishing connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	}

	// Build the building-code resolver from the embedded gazetteer
	res, err := resolver.New()
	if err != nil {
		return fmt.Errorf("creating resolver: %w", err)
	}
	log.Info("resolver initialised", "buildings", res.Len())

	// Create the API server first: the refresher needs its WebSocket hub
	// as a sink, so the refresh trigger is wired back in afterwards.
	srv, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Campus:     cfg.Campus,
		Logger:     log,
		Aggregator: orchestrator,
		Snapshots:  snapshots,
		Resolver:   res,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	refresher, err := refresh.New(orchestrator, log,
		refreshSinks(log, snapshots, recorder, publisher, srv.Hub())...)
	if err != nil {
		return fmt.Errorf("creating refresher: %w", err)
	}
	srv.SetRefresher(refresher)

	// Warm-up cycle so the first request is served from cache, not live
	warmup := refresher.RunOnce(ctx, refresh.TriggerStartup)
	log.Info("warm-up cycle complete",
		"run_id", warmup.RunID,
		"sites", len(warmup.Result.Sites),
	)

	if cfg.Refresh.Enabled {
		if startErr := refresher.Start(cfg.Refresh.Schedule); startErr != nil {
			return fmt.Errorf("starting refresher: %w", startErr)
		}
		defer func() {
			log.Info("stopping refresher")
			stopCtx, stopCancel := context.WithTimeout(context.Background(), componentStopTimeout)
			defer stopCancel()
			if stopErr := refresher.Stop(stopCtx); stopErr != nil {
				log.Error("error stopping refresher", "error", stopErr)
			}
		}()
		log.Info("scheduled refresh started", "schedule", cfg.Refresh.Schedule)
	} else {
		log.Info("scheduled refresh disabled")
	}

	// Start the API server
	if startErr := srv.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, srv, recorder, publisher); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. Refresher (if enabled)
	// 3. MQTT (if enabled)
	// 4. InfluxDB (if enabled)
	// 5. Database

	log.Info("campusd stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses CAMPUSD_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CAMPUSD_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// refreshSinks assembles the fan-out consumers of completed refresh cycles.
//
// Sink order matters only for the snapshot store, which should persist
// before anything is announced downstream.
//
// Parameters:
//   - log: Logger for sink failures
//   - snapshots: Snapshot repository (always wired)
//   - recorder: Occupancy history recorder (nil when disabled)
//   - publisher: Retained-status publisher (nil when disabled)
//   - hub: WebSocket hub broadcasting refresh events
//
// Returns:
//   - []refresh.Sink: Sinks in dispatch order
func refreshSinks(
	log *logging.Logger,
	snapshots *snapshot.Repository,
	recorder *history.Recorder,
	publisher *notify.Publisher,
	hub *api.Hub,
) []refresh.Sink {
	sinks := []refresh.Sink{
		refresh.SinkFunc(func(ctx context.Context, ev refresh.Event) {
			// A cycle that lost the catalog entirely keeps the
			// previous snapshot rather than wiping it.
			if len(ev.Result.Sites) == 0 {
				return
			}
			if err := snapshots.Save(ctx, ev.Result.Sites, ev.Result.Status); err != nil {
				log.Error("snapshot save failed", "run_id", ev.RunID, "error", err)
			}
		}),
	}

	if recorder != nil {
		sinks = append(sinks, refresh.SinkFunc(func(_ context.Context, ev refresh.Event) {
			recorder.RecordCycle(ev.Result.Sites, ev.Result.Status, ev.FinishedAt)
		}))
	}

	if publisher != nil {
		sinks = append(sinks, refresh.SinkFunc(func(_ context.Context, ev refresh.Event) {
			if err := publisher.PublishCycle(ev.Result.Sites, ev.Result.Status, ev.FinishedAt); err != nil {
				log.Error("status publish failed", "run_id", ev.RunID, "error", err)
			}
		}))
	}

	return append(sinks, hub)
}

// healthCheck verifies all running components are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - srv: API server to check
//   - recorder: Occupancy history recorder (may be nil if disabled)
//   - publisher: Status publisher (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(
	ctx context.Context,
	db *database.DB,
	srv *api.Server,
	recorder *history.Recorder,
	publisher *notify.Publisher,
) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := srv.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if recorder != nil {
		if err := recorder.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if publisher != nil {
		if err := publisher.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	return nil
}

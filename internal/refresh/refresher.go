package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"campusd/internal/aggregate"
	"campusd/internal/infrastructure/logging"
)

// Triggers describe what started a refresh cycle.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerStartup  = "startup"
)

// Event is one completed refresh cycle.
type Event struct {
	// RunID uniquely identifies the cycle across logs and sinks.
	RunID string `json:"run_id"`

	// Trigger records what started the cycle.
	Trigger string `json:"trigger"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Result is the aggregate outcome. It is always usable: a cycle
	// that hit upstream failures carries an empty or partial result,
	// never a nil one.
	Result aggregate.Result `json:"result"`
}

// Sink receives completed refresh cycles.
//
// Sinks are invoked sequentially on the refresh goroutine. A sink that
// must not delay the cycle (slow broker, remote store) should hand off
// internally.
type Sink interface {
	HandleRefresh(ctx context.Context, ev Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev Event)

// HandleRefresh calls f(ctx, ev).
func (f SinkFunc) HandleRefresh(ctx context.Context, ev Event) { f(ctx, ev) }

// Refresher drives periodic aggregate refreshes.
//
// It runs the orchestrator on a cron schedule, fans the result out to
// registered sinks (snapshot store, history recorder, MQTT publisher,
// WebSocket hub), and keeps the latest event for on-demand reads.
//
// Cycles are serialized: if one is still running when the next tick
// fires, the tick runs after it, never concurrently with it.
type Refresher struct {
	orchestrator *aggregate.Orchestrator
	logger       *logging.Logger
	sinks        []Sink

	cron    *cron.Cron
	entryID cron.EntryID

	// runMu serializes cycles.
	runMu sync.Mutex

	// lastMu guards last.
	lastMu sync.RWMutex
	last   *Event
}

// New creates a refresher over an orchestrator.
//
// Parameters:
//   - orchestrator: The aggregation pipeline to run each cycle
//   - logger: Structured logger for cycle lifecycle events
//   - sinks: Consumers of completed cycles, invoked in order
func New(orchestrator *aggregate.Orchestrator, logger *logging.Logger, sinks ...Sink) (*Refresher, error) {
	if orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Refresher{
		orchestrator: orchestrator,
		logger:       logger,
		sinks:        sinks,
	}, nil
}

// Start begins scheduled refreshes.
//
// schedule is a standard five-field cron expression ("*/5 * * * *").
// Start returns an error if the expression does not parse; the first
// scheduled cycle runs at the next matching tick, not immediately.
// Use RunOnce with TriggerStartup for an immediate warm-up cycle.
func (r *Refresher) Start(schedule string) error {
	if r.cron != nil {
		return fmt.Errorf("refresher already started")
	}

	c := cron.New()
	id, err := c.AddFunc(schedule, func() {
		ctx := context.Background()
		r.RunOnce(ctx, TriggerSchedule)
	})
	if err != nil {
		return fmt.Errorf("parsing refresh schedule %q: %w", schedule, err)
	}

	r.cron = c
	r.entryID = id
	c.Start()

	r.logger.Info("refresh schedule started", "schedule", schedule)
	return nil
}

// Stop halts scheduled refreshes and waits for a running cycle to end.
//
// The context bounds the wait; a cycle still running when it expires is
// abandoned to finish in the background.
func (r *Refresher) Stop(ctx context.Context) error {
	if r.cron == nil {
		return nil
	}

	stopCtx := r.cron.Stop()
	select {
	case <-stopCtx.Done():
		r.logger.Info("refresh schedule stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for refresh cycle: %w", ctx.Err())
	}
}

// RunOnce executes a single refresh cycle and distributes the result.
//
// It is safe to call concurrently with the schedule; cycles queue on an
// internal mutex. The returned event is also retained for Last.
func (r *Refresher) RunOnce(ctx context.Context, trigger string) Event {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	ev := Event{
		RunID:     uuid.New().String(),
		Trigger:   trigger,
		StartedAt: time.Now().UTC(),
	}

	r.logger.Info("refresh cycle started",
		"run_id", ev.RunID,
		"trigger", trigger,
	)

	ev.Result = r.orchestrator.LoadNearbySites(ctx)
	ev.FinishedAt = time.Now().UTC()

	r.logger.Info("refresh cycle finished",
		"run_id", ev.RunID,
		"sites", len(ev.Result.Sites),
		"statuses", len(ev.Result.Status),
		"duration", ev.FinishedAt.Sub(ev.StartedAt),
	)

	for _, sink := range r.sinks {
		r.dispatch(ctx, sink, ev)
	}

	r.lastMu.Lock()
	r.last = &ev
	r.lastMu.Unlock()

	return ev
}

// dispatch invokes one sink with panic isolation, so a faulty sink
// cannot take down the refresh loop or starve later sinks.
func (r *Refresher) dispatch(ctx context.Context, sink Sink, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("refresh sink panic recovered",
				"run_id", ev.RunID,
				"panic", rec,
			)
		}
	}()

	sink.HandleRefresh(ctx, ev)
}

// Last returns the most recent completed cycle, or nil before the first.
func (r *Refresher) Last() *Event {
	r.lastMu.RLock()
	defer r.lastMu.RUnlock()
	return r.last
}

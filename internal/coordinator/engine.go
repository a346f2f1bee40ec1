package coordinator

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Iron-Ham/redgreen/internal/agent"
	"github.com/Iron-Ham/redgreen/internal/backlog"
	"github.com/Iron-Ham/redgreen/internal/config"
	"github.com/Iron-Ham/redgreen/internal/conflict"
	"github.com/Iron-Ham/redgreen/internal/cycle"
	"github.com/Iron-Ham/redgreen/internal/event"
	"github.com/Iron-Ham/redgreen/internal/lockmgr"
	"github.com/Iron-Ham/redgreen/internal/logging"
	"github.com/Iron-Ham/redgreen/internal/pool"
	"github.com/Iron-Ham/redgreen/internal/store"
	"github.com/Iron-Ham/redgreen/internal/workflow"
)

// inflightOp tracks one phase execution handed to a worker goroutine.
type inflightOp struct {
	workerID  string
	phase     cycle.Phase
	cancel    context.CancelFunc
	startedAt time.Time
	leaseLost bool // lease lapsed mid-phase; result counts a strike
}

// phaseResult is a worker goroutine's report back to the engine.
type phaseResult struct {
	storyID  string
	phase    cycle.Phase
	output   string
	err      error
	timedOut bool
	started  time.Time
}

// Engine owns the workflow, the lock table, the worker pool, and every
// cycle record. All decisions run under one mutex; worker goroutines
// only execute agent calls and report over the results and heartbeats
// channels.
type Engine struct {
	cfg     *config.Config
	bus     *event.Bus
	log     *logging.Logger
	backend agent.Backend
	store   store.Store

	wf       *workflow.Workflow
	detector *conflict.Detector
	locks    *lockmgr.Manager
	pool     *pool.Pool

	mu        sync.Mutex
	stories   map[string]backlog.Story
	cycles    map[string]*cycle.Cycle // story ID -> running cycle
	inflight  map[string]*inflightOp  // story ID -> dispatched phase
	outputs   map[string]string       // story ID -> last phase output
	announced map[string]bool         // story ID -> cycle.started published
	done      map[string]bool         // story ID -> finished, not eligible again
	completed []cycle.Snapshot
	degraded  bool

	results    chan phaseResult
	heartbeats chan string
	workers    sync.WaitGroup

	now          func() time.Time
	gate         GateFunc
	phaseTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithBus shares an externally owned event bus. Used when the CLI
// subscribes before the engine starts publishing.
func WithBus(bus *event.Bus) Option {
	return func(e *Engine) {
		if bus != nil {
			e.bus = bus
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(log *logging.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithGate replaces the default output gate.
func WithGate(gate GateFunc) Option {
	return func(e *Engine) {
		if gate != nil {
			e.gate = gate
		}
	}
}

// WithPhaseTimeout overrides the configured phase deadline. Used by
// tests that need sub-minute deadlines.
func WithPhaseTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.phaseTimeout = d
	}
}

// New creates an engine over the given store and agent backend. The
// workflow starts idle; Restore loads a prior checkpoint if one exists.
func New(cfg *config.Config, st store.Store, backend agent.Backend, opts ...Option) *Engine {
	e := &Engine{
		cfg:          cfg,
		log:          logging.NopLogger(),
		backend:      backend,
		store:        st,
		stories:      make(map[string]backlog.Story),
		cycles:       make(map[string]*cycle.Cycle),
		inflight:     make(map[string]*inflightOp),
		outputs:      make(map[string]string),
		announced:    make(map[string]bool),
		done:         make(map[string]bool),
		results:      make(chan phaseResult, 64),
		heartbeats:   make(chan string, 64),
		now:          time.Now,
		gate:         ParseVerdict,
		phaseTimeout: cfg.Coordinator.PhaseTimeout(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.bus == nil {
		e.bus = event.NewBus()
	}

	e.wf = workflow.New(cfg.Workflow.ID, workflow.WithClock(e.now))
	e.detector = conflict.NewDetector(cfg.Conflict, conflict.WithClock(e.now))
	e.locks = lockmgr.NewManager(e.bus,
		lockmgr.WithTTL(cfg.Locks.LeaseTTL()),
		lockmgr.WithClock(e.now),
	)
	e.pool = pool.NewPool(cfg.Pool, e.bus, pool.WithClock(e.now))
	return e
}

// Bus returns the engine's event bus.
func (e *Engine) Bus() *event.Bus {
	return e.bus
}

// Workflow returns the underlying workflow state machine.
func (e *Engine) Workflow() *workflow.Workflow {
	return e.wf
}

// Degraded reports whether a persistence failure has halted scheduling.
func (e *Engine) Degraded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.degraded
}

// LoadStories registers the backlog stories the engine schedules from.
// Stories already loaded are replaced by ID.
func (e *Engine) LoadStories(stories []backlog.Story) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, story := range stories {
		e.stories[story.ID] = story
	}
}

// Run drives the scheduling loop until ctx is cancelled, then cancels
// in-flight work, drains the workers, and writes a final checkpoint.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.Coordinator.Tick())
	defer ticker.Stop()

	var observer *conflict.Observer
	if e.cfg.Conflict.WatchEnabled {
		obs, err := e.startObserver()
		if err != nil {
			e.log.Warn("file observation unavailable", "error", err.Error())
		} else {
			observer = obs
			defer observer.Stop()
		}
	}

	e.log.Info("engine started",
		"workflow_id", e.wf.ID(),
		"backend", e.backend.Name(),
		"tick", e.cfg.Coordinator.Tick().String(),
	)

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			e.log.Info("engine stopped")
			return nil
		case r := <-e.results:
			e.handleResult(r)
		case storyID := <-e.heartbeats:
			e.renewLease(storyID)
		case now := <-ticker.C:
			e.runPass(now)
		}
	}
}

// shutdown cancels in-flight phases, drains their results, and saves a
// final checkpoint. Cancelled phases are not counted as failures: the
// cycles resume in the same phase on restore.
func (e *Engine) shutdown() {
	e.mu.Lock()
	for _, op := range e.inflight {
		op.cancel()
	}
	e.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		e.workers.Wait()
		close(drained)
	}()

	for {
		select {
		case r := <-e.results:
			e.discardResult(r)
		case <-e.heartbeats:
		case <-drained:
			e.mu.Lock()
			e.checkpointLocked()
			e.mu.Unlock()
			return
		}
	}
}

// discardResult returns the worker of an abandoned phase without
// applying its outcome. Cancelling cycles still finalize so a shutdown
// does not resurrect them.
func (e *Engine) discardResult(r phaseResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if op, ok := e.inflight[r.storyID]; ok {
		delete(e.inflight, r.storyID)
		op.cancel()
		if err := e.pool.Release(op.workerID); err != nil {
			e.log.Warn("worker release failed", "worker_id", op.workerID, "error", err.Error())
		}
	}
	c, ok := e.cycles[r.storyID]
	if !ok {
		return
	}
	c.ReleaseWorker()
	if c.Cancelling() {
		e.finalizeLocked(c, false, "cancelled")
	}
}

// renewLease extends the lock lease of the story's cycle. Called on
// worker heartbeats.
func (e *Engine) renewLease(storyID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.cycles[storyID]
	if !ok {
		return
	}
	if err := e.locks.Renew(c.ID(), e.now()); err != nil {
		e.log.Warn("lease renewal failed", "story_id", storyID, "error", err.Error())
	}
}

// startObserver wires the filesystem observer to the detector,
// attributing writes to the running cycle whose footprint covers them.
func (e *Engine) startObserver() (*conflict.Observer, error) {
	root := e.cfg.Conflict.WatchDir
	if root == "" {
		root = "."
	}
	obs, err := conflict.NewObserver(root, e.detector, e.ownerFor, e.log)
	if err != nil {
		return nil, err
	}
	if err := obs.Start(); err != nil {
		return nil, err
	}
	return obs, nil
}

// ownerFor resolves a written path to the running cycle whose declared
// footprint covers it.
func (e *Engine) ownerFor(relPath string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for storyID, c := range e.cycles {
		if !c.Phase().IsWorking() {
			continue
		}
		if footprintCovers(c.Footprint(), relPath) {
			return storyID, true
		}
	}
	return "", false
}

// publishCycleTransition is the transition hook installed on every
// cycle the engine creates or restores.
func (e *Engine) publishCycleTransition(storyID string, from, to cycle.Phase) {
	e.bus.Publish(event.NewCycleTransitionedEvent(storyID, event.Phase(from), event.Phase(to)))
}

// Status is a point-in-time view of the engine for status output.
type Status struct {
	WorkflowID string                    `json:"workflow_id"`
	State      workflow.State            `json:"state"`
	Sprint     *workflow.Sprint          `json:"sprint,omitempty"`
	Cycles     []cycle.Snapshot          `json:"cycles,omitempty"`
	Completed  []cycle.Snapshot          `json:"completed,omitempty"`
	Degraded   bool                      `json:"degraded,omitempty"`
	Pool       []pool.SegmentUtilization `json:"pool,omitempty"`
	Locks      []lockmgr.ResourceLock    `json:"locks,omitempty"`
}

// Status reports the engine's current state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{
		WorkflowID: e.wf.ID(),
		State:      e.wf.State(),
		Cycles:     e.cycleSnapshotsLocked(),
		Completed:  slices.Clone(e.completed),
		Degraded:   e.degraded,
		Pool:       e.pool.Utilization(),
		Locks:      e.locks.Table(),
	}
	if sprint, ok := e.wf.CurrentSprint(); ok {
		st.Sprint = &sprint
	}
	return st
}

// ReviewQueue returns the cycles flagged for merge review: completed
// ones first, then still-running flagged cycles.
func (e *Engine) ReviewQueue() []cycle.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	var flagged []cycle.Snapshot
	for _, snap := range e.completed {
		if snap.ReviewFlag {
			flagged = append(flagged, snap)
		}
	}
	for _, storyID := range slices.Sorted(maps.Keys(e.cycles)) {
		if snap := e.cycles[storyID].Snapshot(); snap.ReviewFlag {
			flagged = append(flagged, snap)
		}
	}
	return flagged
}

// cycleSnapshotsLocked snapshots every running cycle in story order.
// Caller holds e.mu.
func (e *Engine) cycleSnapshotsLocked() []cycle.Snapshot {
	snaps := make([]cycle.Snapshot, 0, len(e.cycles))
	for _, storyID := range slices.Sorted(maps.Keys(e.cycles)) {
		snaps = append(snaps, e.cycles[storyID].Snapshot())
	}
	return snaps
}

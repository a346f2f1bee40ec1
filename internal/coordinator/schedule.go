package coordinator

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/redgreen/internal/backlog"
	"github.com/Iron-Ham/redgreen/internal/conflict"
	"github.com/Iron-Ham/redgreen/internal/cycle"
	"github.com/Iron-Ham/redgreen/internal/errors"
	"github.com/Iron-Ham/redgreen/internal/event"
	"github.com/Iron-Ham/redgreen/internal/lockmgr"
	"github.com/Iron-Ham/redgreen/internal/workflow"
)

// runPass executes one scheduling pass: reclaim lapsed leases, apply
// the pool's watermark policy, admit eligible stories, and hand every
// runnable phase to a worker. Degraded mode probes persistence instead
// of scheduling until a save lands.
func (e *Engine) runPass(now time.Time) {
	expired := e.locks.ExpireStale(now)
	e.pool.Evaluate(now)

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(expired) > 0 {
		e.reapSilentLocked()
	}
	e.sweepCancelledLocked()

	if e.degraded {
		e.checkpointLocked()
		if e.degraded {
			return
		}
	}
	if e.wf.State() != workflow.StateSprintActive {
		return
	}

	e.admitEligibleLocked()
	if e.degraded {
		return
	}
	e.dispatchReadyLocked(now)
}

// reapSilentLocked abandons phases whose cycle lost its lease while
// the phase was still in flight: the worker went silent past the TTL.
// The cancelled work counts a strike when its result drains. Caller
// holds e.mu.
func (e *Engine) reapSilentLocked() {
	for storyID, op := range e.inflight {
		if op.leaseLost {
			continue
		}
		c, ok := e.cycles[storyID]
		if !ok {
			continue
		}
		if len(e.locks.HeldBy(c.ID())) > 0 {
			continue
		}
		op.leaseLost = true
		op.cancel()
		e.log.Warn("lease expired with a phase in flight",
			"story_id", storyID,
			"phase", op.phase.String(),
		)
	}
}

// sweepCancelledLocked finalizes cycles marked cancelling that have no
// phase in flight. Restored checkpoints can carry such cycles.
func (e *Engine) sweepCancelledLocked() {
	for _, storyID := range slices.Sorted(maps.Keys(e.cycles)) {
		c := e.cycles[storyID]
		if !c.Cancelling() {
			continue
		}
		if _, busy := e.inflight[storyID]; busy {
			continue
		}
		e.finalizeLocked(c, false, "cancelled")
		e.checkpointLocked()
	}
}

// admitEligibleLocked starts cycles for sprint stories that have none,
// in priority order with footprint cardinality breaking ties, up to the
// parallelism limit. Conflict- or contention-deferred stories stay
// queued for the next pass. Caller holds e.mu.
func (e *Engine) admitEligibleLocked() {
	sprint, ok := e.wf.CurrentSprint()
	if !ok {
		return
	}

	var candidates []backlog.Story
	for _, storyID := range sprint.StoryIDs {
		if e.done[storyID] {
			continue
		}
		if _, running := e.cycles[storyID]; running {
			continue
		}
		story, known := e.stories[storyID]
		if !known {
			continue
		}
		candidates = append(candidates, story)
	}
	slices.SortStableFunc(candidates, func(a, b backlog.Story) int {
		if d := cmp.Compare(a.Priority, b.Priority); d != 0 {
			return d
		}
		return conflict.ByCardinality(
			conflict.CycleFootprint{StoryID: a.ID, Resources: a.Footprint},
			conflict.CycleFootprint{StoryID: b.ID, Resources: b.Footprint},
		)
	})

	for _, story := range candidates {
		if e.runnableCountLocked() >= e.cfg.Coordinator.MaxParallelCycles {
			return
		}
		if err := e.tryStartLocked(story); err != nil {
			e.log.Debug("story deferred", "story_id", story.ID, "reason", err.Error())
			continue
		}
		e.checkpointLocked()
		if e.degraded {
			return
		}
	}
}

// tryStartLocked creates and registers a cycle for the story: conflict
// check, footprint locks, workflow registration, in that order. Any
// refusal leaves no trace; the story is retried on a later pass.
// Caller holds e.mu.
func (e *Engine) tryStartLocked(story backlog.Story) error {
	pending := conflict.CycleFootprint{
		StoryID:   story.ID,
		Resources: story.Footprint,
		DependsOn: story.DependsOn,
	}
	pairs := e.detector.Evaluate(pending, e.runningFootprintsLocked())
	for _, pair := range pairs {
		e.detector.RecordConflict(pair.StoryA, pair.StoryB)
		e.bus.Publish(event.NewConflictDetectedEvent(
			pair.StoryA, pair.StoryB,
			event.Classification(pair.Classification),
			pair.Score, pair.SharedResources,
		))
	}
	if len(pairs) > 0 {
		worst := pairs[0]
		if worst.Classification == conflict.ClassificationHard {
			return errors.NewLockError("hard conflict with running cycle", errors.ErrLockUnavailable).
				WithResources(worst.SharedResources)
		}
		if !e.cfg.Coordinator.ScheduleSoftConflicts {
			return errors.NewLockError("soft conflict and concurrent scheduling disabled", errors.ErrLockUnavailable).
				WithResources(worst.SharedResources)
		}
	}

	opts := []cycle.Option{
		cycle.WithClock(e.now),
		cycle.WithTransitionHook(e.publishCycleTransition),
	}
	if e.cfg.Coordinator.MaxStrikes > 0 {
		opts = append(opts, cycle.WithMaxStrikes(e.cfg.Coordinator.MaxStrikes))
	}
	if overrides := story.CapabilityOverrides(); overrides != nil {
		opts = append(opts, cycle.WithCapabilityOverrides(overrides))
	}
	c := cycle.New(story.ID, story.Footprint, opts...)

	if ok, err := e.locks.Acquire(c.ID(), c.Footprint(), lockmgr.ModeExclusive); !ok {
		return err
	}
	if err := e.wf.RegisterCycle(story.ID, c.ID()); err != nil {
		e.releaseLocksLocked(c)
		return err
	}
	e.cycles[story.ID] = c

	// Soft pairings flag both sides for post-completion merge review.
	for _, pair := range pairs {
		if pair.Classification != conflict.ClassificationSoft {
			continue
		}
		c.MarkReview(pair.StoryB)
		if other, running := e.cycles[pair.StoryB]; running {
			other.MarkReview(story.ID)
		}
	}
	e.log.Info("cycle started",
		"story_id", story.ID,
		"cycle_id", c.ID(),
		"footprint", c.Footprint(),
	)
	return nil
}

// dispatchReadyLocked hands every runnable phase to a capability-typed
// worker: working phase, nothing in flight, locks held or reacquirable,
// and an idle or growable worker in the segment. Caller holds e.mu.
func (e *Engine) dispatchReadyLocked(now time.Time) {
	for _, storyID := range slices.Sorted(maps.Keys(e.cycles)) {
		c := e.cycles[storyID]
		if _, busy := e.inflight[storyID]; busy {
			continue
		}
		if c.Cancelling() || !c.Phase().IsWorking() {
			continue
		}

		// Locks may have lapsed during a retry window or a blocked spell;
		// Acquire confirms held grants and retakes freed ones atomically.
		if ok, err := e.locks.Acquire(c.ID(), c.Footprint(), lockmgr.ModeExclusive); !ok {
			e.log.Debug("footprint contended", "story_id", storyID, "error", err.Error())
			continue
		}

		capability := c.CurrentCapability()
		workerID, err := e.pool.Acquire(capability)
		if err != nil {
			e.log.Debug("no worker available",
				"story_id", storyID,
				"capability", capability,
				"error", err.Error(),
			)
			continue
		}
		e.startPhaseLocked(c, workerID, now)
	}
}

// startPhaseLocked binds the worker to the cycle and spawns the phase
// execution goroutine. Caller holds e.mu.
func (e *Engine) startPhaseLocked(c *cycle.Cycle, workerID string, now time.Time) {
	storyID := c.StoryID()
	phase := c.Phase()
	capability := c.CurrentCapability()

	if err := e.pool.Bind(workerID, c.ID()); err != nil {
		e.log.Warn("worker bind failed", "worker_id", workerID, "error", err.Error())
	}
	if err := c.AssignWorker(workerID); err != nil {
		e.log.Warn("worker assignment failed", "story_id", storyID, "error", err.Error())
	}

	prompt, bundle := e.promptForLocked(c)

	var ctx context.Context
	var cancel context.CancelFunc
	if timeout := e.phaseTimeout; timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	e.inflight[storyID] = &inflightOp{
		workerID:  workerID,
		phase:     phase,
		cancel:    cancel,
		startedAt: now,
	}

	if !e.announced[storyID] {
		e.announced[storyID] = true
		e.bus.Publish(event.NewCycleStartedEvent(storyID, workerID, event.Phase(phase)))
	}
	e.log.Debug("phase dispatched",
		"story_id", storyID,
		"phase", phase.String(),
		"capability", capability,
		"worker_id", workerID,
	)

	e.workers.Add(1)
	go e.runPhase(ctx, storyID, phase, capability, prompt, bundle, now)
}

// runPhase executes one phase on a worker goroutine. It renews the
// cycle's lease on each heartbeat interval and reports the outcome over
// the results channel. No shared state is touched here.
func (e *Engine) runPhase(ctx context.Context, storyID string, phase cycle.Phase, capability, prompt string, bundle map[string]string, started time.Time) {
	defer e.workers.Done()

	stopHeartbeat := make(chan struct{})
	go func() {
		ticker := time.NewTicker(e.cfg.Locks.HeartbeatInterval())
		defer ticker.Stop()
		for {
			select {
			case <-stopHeartbeat:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case e.heartbeats <- storyID:
				default:
				}
			}
		}
	}()

	output, err := e.backend.Generate(ctx, capability, prompt, bundle)
	close(stopHeartbeat)

	e.results <- phaseResult{
		storyID:  storyID,
		phase:    phase,
		output:   output,
		err:      err,
		timedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
		started:  started,
	}
}

// handleResult applies one worker report: return the worker, then
// finalize a cancellation, count a failure, or apply the gate verdict.
func (e *Engine) handleResult(r phaseResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	op, wasInflight := e.inflight[r.storyID]
	if wasInflight {
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

	switch {
	case c.Cancelling():
		e.finalizeLocked(c, false, "cancelled")

	case wasInflight && op.leaseLost:
		e.strikeLocked(c, fmt.Sprintf("lease expired during %s, worker silent past TTL", r.phase))

	case r.timedOut:
		elapsed := e.now().Sub(r.started)
		e.bus.Publish(event.NewPhaseTimeoutEvent(r.storyID, event.Phase(r.phase), elapsed.String()))
		// Release early so contenders are not starved through the retry
		// window; the retry reacquires at dispatch.
		e.releaseLocksLocked(c)
		e.strikeLocked(c, fmt.Sprintf("phase %s timed out after %s", r.phase, elapsed))

	case r.err != nil:
		e.strikeLocked(c, r.err.Error())

	default:
		e.outputs[r.storyID] = r.output
		e.applyVerdictLocked(c, r.phase, e.gate(r.phase, r.output))
	}

	e.checkpointLocked()
}

// applyVerdictLocked moves the cycle per the gate's ruling. Caller
// holds e.mu.
func (e *Engine) applyVerdictLocked(c *cycle.Cycle, phase cycle.Phase, v Verdict) {
	storyID := c.StoryID()
	switch v.Kind {
	case VerdictRegress:
		if !cycle.CanRegress(phase, v.Target) {
			e.strikeLocked(c, fmt.Sprintf("gate demanded illegal regression %s to %s", phase, v.Target))
			return
		}
		if err := c.Regress(v.Target, v.Reason); err != nil {
			e.log.Warn("regression failed", "story_id", storyID, "error", err.Error())
		}

	case VerdictFail:
		e.strikeLocked(c, v.Reason)

	default:
		wasCommit := phase == cycle.PhaseCommit
		if err := c.Advance(v.Reason); err != nil {
			e.log.Warn("advance failed", "story_id", storyID, "error", err.Error())
			return
		}
		if wasCommit {
			e.finalizeLocked(c, true, "committed")
		}
	}
}

// strikeLocked counts a consecutive failure. At the strike limit the
// cycle blocks, its locks release, and an operator unblock is required.
// Caller holds e.mu.
func (e *Engine) strikeLocked(c *cycle.Cycle, reason string) {
	storyID := c.StoryID()
	blocked, err := c.RecordFailure(reason)
	if err != nil {
		e.log.Warn("failure not recorded", "story_id", storyID, "error", err.Error())
		return
	}
	if !blocked {
		e.log.Info("phase failed, retrying",
			"story_id", storyID,
			"strikes", c.Strikes(),
			"reason", reason,
		)
		return
	}

	e.releaseLocksLocked(c)
	e.bus.Publish(event.NewCycleBlockedEvent(storyID, event.Phase(c.PriorPhase()), c.Strikes(), reason))
	e.log.Warn("cycle blocked",
		"story_id", storyID,
		"phase", c.PriorPhase().String(),
		"strikes", c.Strikes(),
		"reason", reason,
	)
}

// finalizeLocked removes a finished or cancelled cycle: locks released,
// workflow registration dropped, observations cleared, snapshot kept
// for review and status. Caller holds e.mu.
func (e *Engine) finalizeLocked(c *cycle.Cycle, success bool, reason string) {
	storyID := c.StoryID()
	e.releaseLocksLocked(c)
	if err := e.wf.UnregisterCycle(storyID); err != nil {
		e.log.Warn("cycle unregister failed", "story_id", storyID, "error", err.Error())
	}
	e.detector.ClearObserved(storyID)
	e.completed = append(e.completed, c.Snapshot())
	e.done[storyID] = true
	delete(e.cycles, storyID)
	delete(e.outputs, storyID)
	delete(e.announced, storyID)

	e.bus.Publish(event.NewCycleCompletedEvent(storyID, success, reason))
	e.log.Info("cycle finished", "story_id", storyID, "success", success, "reason", reason)
}

// releaseLocksLocked frees the cycle's footprint locks. Holding nothing
// is not an error here: timeouts and expiries release first.
func (e *Engine) releaseLocksLocked(c *cycle.Cycle) {
	if err := e.locks.Release(c.ID()); err != nil && !errors.Is(err, errors.ErrNotHolder) {
		e.log.Warn("lock release failed", "cycle_id", c.ID(), "error", err.Error())
	}
}

// runnableCountLocked counts cycles that consume a parallelism slot:
// everything registered except blocked ones. Caller holds e.mu.
func (e *Engine) runnableCountLocked() int {
	count := 0
	for _, c := range e.cycles {
		if !c.Blocked() {
			count++
		}
	}
	return count
}

// runningFootprintsLocked builds the conflict-scoring view of every
// cycle that can still touch its footprint. Caller holds e.mu.
func (e *Engine) runningFootprintsLocked() []conflict.CycleFootprint {
	fps := make([]conflict.CycleFootprint, 0, len(e.cycles))
	for storyID, c := range e.cycles {
		if c.Blocked() {
			continue
		}
		fp := conflict.CycleFootprint{
			StoryID:   storyID,
			Resources: c.Footprint(),
		}
		if story, ok := e.stories[storyID]; ok {
			fp.DependsOn = story.DependsOn
		}
		fps = append(fps, fp)
	}
	return fps
}

// footprintCovers reports whether any footprint entry, read as a path
// glob, covers the path.
func footprintCovers(footprint []string, path string) bool {
	for _, entry := range footprint {
		if entry == path {
			return true
		}
		if g, err := glob.Compile(entry, '/'); err == nil && g.Match(path) {
			return true
		}
	}
	return false
}

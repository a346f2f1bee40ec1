package cycle

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"

	"github.com/Iron-Ham/redgreen/internal/errors"
)

// DefaultMaxStrikes is the number of consecutive phase failures that
// block a cycle when no override is configured.
const DefaultMaxStrikes = 3

// TransitionHook is called after every applied phase change. The
// coordinator uses it to refresh conflict data and publish events.
type TransitionHook func(storyID string, from, to Phase)

// Cycle is one story's run through the TDD loop. All methods are safe
// for concurrent use.
type Cycle struct {
	mu sync.Mutex

	id         string
	storyID    string
	phase      Phase
	priorPhase Phase
	strikes    int
	maxStrikes int

	footprint    []string
	worker       string
	capabilities map[Phase]string

	cancelling  bool
	reviewFlag  bool
	reviewWith  []string
	blockReason string
	lastFailure string

	history []PhaseTransition

	// hook and now are set at construction and never mutated, so they
	// are read without holding mu.
	hook TransitionHook
	now  func() time.Time

	createdAt   time.Time
	completedAt time.Time
}

// Option configures a Cycle.
type Option func(*Cycle)

// WithMaxStrikes overrides the consecutive-failure limit.
func WithMaxStrikes(n int) Option {
	return func(c *Cycle) {
		if n > 0 {
			c.maxStrikes = n
		}
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cycle) {
		if now != nil {
			c.now = now
		}
	}
}

// WithTransitionHook registers a callback fired after each applied
// transition, outside the cycle's lock.
func WithTransitionHook(hook TransitionHook) Option {
	return func(c *Cycle) {
		c.hook = hook
	}
}

// WithCapabilityOverrides replaces the default phase-to-capability
// mapping for specific phases. Unlisted phases keep the defaults.
func WithCapabilityOverrides(overrides map[Phase]string) Option {
	return func(c *Cycle) {
		if len(overrides) == 0 {
			return
		}
		c.capabilities = make(map[Phase]string, len(overrides))
		for phase, capability := range overrides {
			c.capabilities[phase] = capability
		}
	}
}

// New creates a cycle for the story in the design phase. The footprint
// is the story's declared resource set; the design phase may later
// refine it.
func New(storyID string, footprint []string, opts ...Option) *Cycle {
	c := &Cycle{
		id:         uuid.NewString(),
		storyID:    storyID,
		phase:      PhaseDesign,
		maxStrikes: DefaultMaxStrikes,
		footprint:  slices.Clone(footprint),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.createdAt = c.now()
	return c
}

// ID returns the cycle's unique identifier.
func (c *Cycle) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// StoryID returns the story this cycle executes.
func (c *Cycle) StoryID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storyID
}

// Phase returns the current phase.
func (c *Cycle) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// PriorPhase returns the phase a blocked cycle will resume in. Empty
// when the cycle is not blocked.
func (c *Cycle) PriorPhase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.priorPhase
}

// Strikes returns the current consecutive-failure count.
func (c *Cycle) Strikes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.strikes
}

// MaxStrikes returns the consecutive-failure limit.
func (c *Cycle) MaxStrikes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxStrikes
}

// Footprint returns a copy of the most recently declared footprint.
func (c *Cycle) Footprint() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.footprint)
}

// Worker returns the assigned worker ID, or empty when unassigned.
func (c *Cycle) Worker() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.worker
}

// Blocked reports whether the cycle is parked after repeated failures.
func (c *Cycle) Blocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase == PhaseBlocked
}

// Done reports whether the cycle committed and finished.
func (c *Cycle) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase == PhaseDone
}

// Cancelling reports whether a cooperative cancel is in progress.
func (c *Cycle) Cancelling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelling
}

// ReviewFlagged reports whether a soft conflict marked this cycle for
// post-completion merge review.
func (c *Cycle) ReviewFlagged() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reviewFlag
}

// ReviewWith returns the stories this cycle was soft-conflicted with.
func (c *Cycle) ReviewWith() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.reviewWith)
}

// BlockReason returns the failure context recorded when the cycle
// blocked. Empty when the cycle is not blocked.
func (c *Cycle) BlockReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blockReason
}

// LastFailure returns the most recent phase failure context.
func (c *Cycle) LastFailure() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFailure
}

// History returns a copy of the applied phase transitions.
func (c *Cycle) History() []PhaseTransition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.history)
}

// CreatedAt returns when the cycle was created.
func (c *Cycle) CreatedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createdAt
}

// CompletedAt returns when the cycle reached done, or the zero time.
func (c *Cycle) CompletedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completedAt
}

// CapabilityFor returns the worker capability that executes the phase,
// honoring per-story overrides.
func (c *Cycle) CapabilityFor(phase Phase) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if capability, ok := c.capabilities[phase]; ok {
		return capability
	}
	return DefaultCapability(phase)
}

// CurrentCapability returns the capability for the current phase.
func (c *Cycle) CurrentCapability() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if capability, ok := c.capabilities[c.phase]; ok {
		return capability
	}
	return DefaultCapability(c.phase)
}

// Advance moves the cycle along its forward edge and resets the strike
// counter. The reason records the gate evidence in the history.
func (c *Cycle) Advance(reason string) error {
	c.mu.Lock()
	if err := c.ensureWorkingLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	from := c.phase
	to := ForwardTransitions[from]
	c.applyLocked(to, reason)
	c.strikes = 0
	c.mu.Unlock()

	c.fireHook(from, to)
	return nil
}

// Regress sends work back along a legal backward edge and resets the
// strike counter. The reason records which gate failed.
func (c *Cycle) Regress(to Phase, reason string) error {
	c.mu.Lock()
	if err := c.ensureWorkingLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	from := c.phase
	if !CanRegress(from, to) {
		err := errors.NewCycleError(
			fmt.Sprintf("no backward edge from %s to %s", from, to),
			errors.ErrIllegalTransition,
		).WithStoryID(c.storyID).WithPhase(string(from))
		c.mu.Unlock()
		return err
	}
	c.applyLocked(to, reason)
	c.strikes = 0
	c.mu.Unlock()

	c.fireHook(from, to)
	return nil
}

// RecordFailure counts a phase-level failure. Below the strike limit the
// cycle stays in its phase for a retry and RecordFailure returns false.
// At the limit the cycle transitions to blocked, remembers the phase it
// was in, and RecordFailure returns true.
func (c *Cycle) RecordFailure(reason string) (bool, error) {
	c.mu.Lock()
	if err := c.ensureWorkingLocked(); err != nil {
		c.mu.Unlock()
		return false, err
	}
	c.strikes++
	c.lastFailure = reason
	if c.strikes < c.maxStrikes {
		c.mu.Unlock()
		return false, nil
	}
	from := c.phase
	c.priorPhase = from
	c.blockReason = reason
	c.applyLocked(PhaseBlocked, reason)
	c.mu.Unlock()

	c.fireHook(from, PhaseBlocked)
	return true, nil
}

// Unblock returns a blocked cycle to the phase it was interrupted in and
// resets the strike counter.
func (c *Cycle) Unblock() error {
	c.mu.Lock()
	if c.cancelling {
		err := errors.NewCycleError("cycle is cancelling", errors.ErrCycleCancelling).
			WithStoryID(c.storyID).WithPhase(string(c.phase))
		c.mu.Unlock()
		return err
	}
	if c.phase != PhaseBlocked {
		err := errors.NewCycleError("cycle is not blocked", errors.ErrCycleNotBlocked).
			WithStoryID(c.storyID).WithPhase(string(c.phase))
		c.mu.Unlock()
		return err
	}
	from := c.phase
	to := c.priorPhase
	c.applyLocked(to, "unblocked")
	c.strikes = 0
	c.blockReason = ""
	c.priorPhase = ""
	c.mu.Unlock()

	c.fireHook(from, to)
	return nil
}

// RefineFootprint replaces the declared footprint. A refinement may
// shrink the footprint or restate it; entries not covered by the current
// footprint are rejected so a running cycle cannot widen its claim.
func (c *Cycle) RefineFootprint(resources []string) error {
	if len(resources) == 0 {
		return errors.NewValidationError("footprint cannot be empty").
			WithField("footprint")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, resource := range resources {
		if !covered(c.footprint, resource) {
			return errors.NewValidationError("refinement widens the footprint").
				WithField("footprint").WithValue(resource)
		}
	}
	c.footprint = slices.Clone(resources)
	return nil
}

// covered reports whether the resource equals an existing footprint
// entry or falls inside one interpreted as a path glob.
func covered(footprint []string, resource string) bool {
	for _, entry := range footprint {
		if entry == resource {
			return true
		}
		matcher, err := glob.Compile(entry, '/')
		if err != nil {
			continue
		}
		if matcher.Match(resource) {
			return true
		}
	}
	return false
}

// AssignWorker records the worker executing the current phase.
func (c *Cycle) AssignWorker(workerID string) error {
	if workerID == "" {
		return errors.NewValidationError("worker id cannot be empty").
			WithField("worker")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.worker != "" && c.worker != workerID {
		return errors.NewCycleError("worker already assigned", errors.ErrInvalidInput).
			WithStoryID(c.storyID).WithPhase(string(c.phase))
	}
	c.worker = workerID
	return nil
}

// ReleaseWorker clears the worker assignment. Safe to call when no
// worker is assigned.
func (c *Cycle) ReleaseWorker() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.worker = ""
}

// MarkCancelling flags the cycle for cooperative cancellation. Further
// phase operations fail with ErrCycleCancelling; the coordinator removes
// the cycle once its in-flight work returns.
func (c *Cycle) MarkCancelling() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelling = true
}

// MarkReview flags the cycle for post-completion merge review against
// the given story.
func (c *Cycle) MarkReview(withStoryID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reviewFlag = true
	if withStoryID != "" && !slices.Contains(c.reviewWith, withStoryID) {
		c.reviewWith = append(c.reviewWith, withStoryID)
	}
}

func (c *Cycle) ensureWorkingLocked() error {
	switch {
	case c.cancelling:
		return errors.NewCycleError("cycle is cancelling", errors.ErrCycleCancelling).
			WithStoryID(c.storyID).WithPhase(string(c.phase))
	case c.phase == PhaseBlocked:
		return errors.NewCycleError("cycle is blocked", errors.ErrCycleBlocked).
			WithStoryID(c.storyID).WithStrikes(c.strikes)
	case c.phase == PhaseDone:
		return errors.NewCycleError("cycle already complete", errors.ErrIllegalTransition).
			WithStoryID(c.storyID)
	}
	return nil
}

func (c *Cycle) applyLocked(to Phase, reason string) {
	c.history = append(c.history, PhaseTransition{
		From:      c.phase,
		To:        to,
		Timestamp: c.now(),
		Reason:    reason,
	})
	c.phase = to
	if to == PhaseDone {
		c.completedAt = c.now()
	}
}

func (c *Cycle) fireHook(from, to Phase) {
	if c.hook != nil {
		c.hook(c.storyID, from, to)
	}
}

// Snapshot is the serializable form of a cycle used in checkpoints.
type Snapshot struct {
	ID           string            `json:"id"`
	StoryID      string            `json:"story_id"`
	Phase        Phase             `json:"phase"`
	PriorPhase   Phase             `json:"prior_phase,omitempty"`
	Strikes      int               `json:"strikes"`
	MaxStrikes   int               `json:"max_strikes"`
	Footprint    []string          `json:"footprint"`
	Worker       string            `json:"worker,omitempty"`
	Cancelling   bool              `json:"cancelling,omitempty"`
	ReviewFlag   bool              `json:"review_flag,omitempty"`
	ReviewWith   []string          `json:"review_with,omitempty"`
	BlockReason  string            `json:"block_reason,omitempty"`
	LastFailure  string            `json:"last_failure,omitempty"`
	Capabilities map[Phase]string  `json:"capabilities,omitempty"`
	History      []PhaseTransition `json:"history,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	CompletedAt  time.Time         `json:"completed_at"`
}

// Snapshot returns a deep copy of the cycle's state.
func (c *Cycle) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		ID:          c.id,
		StoryID:     c.storyID,
		Phase:       c.phase,
		PriorPhase:  c.priorPhase,
		Strikes:     c.strikes,
		MaxStrikes:  c.maxStrikes,
		Footprint:   slices.Clone(c.footprint),
		Worker:      c.worker,
		Cancelling:  c.cancelling,
		ReviewFlag:  c.reviewFlag,
		ReviewWith:  slices.Clone(c.reviewWith),
		BlockReason: c.blockReason,
		LastFailure: c.lastFailure,
		History:     slices.Clone(c.history),
		CreatedAt:   c.createdAt,
		CompletedAt: c.completedAt,
	}
	if len(c.capabilities) > 0 {
		snap.Capabilities = make(map[Phase]string, len(c.capabilities))
		for phase, capability := range c.capabilities {
			snap.Capabilities[phase] = capability
		}
	}
	return snap
}

// FromSnapshot reconstructs a cycle from a checkpoint. Worker
// assignments are restored as recorded; the coordinator clears them
// before resuming since checkpointed workers no longer exist.
func FromSnapshot(snap Snapshot, opts ...Option) *Cycle {
	c := &Cycle{
		id:          snap.ID,
		storyID:     snap.StoryID,
		phase:       snap.Phase,
		priorPhase:  snap.PriorPhase,
		strikes:     snap.Strikes,
		maxStrikes:  snap.MaxStrikes,
		footprint:   slices.Clone(snap.Footprint),
		worker:      snap.Worker,
		cancelling:  snap.Cancelling,
		reviewFlag:  snap.ReviewFlag,
		reviewWith:  slices.Clone(snap.ReviewWith),
		blockReason: snap.BlockReason,
		lastFailure: snap.LastFailure,
		history:     slices.Clone(snap.History),
		now:         time.Now,
		createdAt:   snap.CreatedAt,
		completedAt: snap.CompletedAt,
	}
	if c.id == "" {
		c.id = uuid.NewString()
	}
	if c.phase == "" {
		c.phase = PhaseDesign
	}
	if c.maxStrikes <= 0 {
		c.maxStrikes = DefaultMaxStrikes
	}
	if len(snap.Capabilities) > 0 {
		c.capabilities = make(map[Phase]string, len(snap.Capabilities))
		for phase, capability := range snap.Capabilities {
			c.capabilities[phase] = capability
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

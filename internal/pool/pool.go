package pool

import (
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/redgreen/internal/config"
	"github.com/Iron-Ham/redgreen/internal/errors"
	"github.com/Iron-Ham/redgreen/internal/event"
)

// Pool owns the worker fleet. Acquisition grows a segment on demand up
// to the configured maximum; Evaluate applies the watermark policy to
// grow hot segments and retire idle workers from cold ones.
type Pool struct {
	mu      sync.Mutex
	cfg     config.PoolConfig
	workers map[string]*Worker
	bus     *event.Bus
	now     func() time.Time

	// Watermark bookkeeping, keyed by capability. A segment must hold a
	// breach for a full evaluation window before it triggers a resize,
	// and consecutive resizes are separated by the cooldown.
	highSince  map[string]time.Time
	lowSince   map[string]time.Time
	lastResize map[string]time.Time
}

// NewPool creates a pool seeded with the configured capability mix.
// Each configured capability starts with at least MinWorkers workers,
// capped at MaxWorkers. Resizes publish to bus; a nil bus disables
// publishing.
func NewPool(cfg config.PoolConfig, bus *event.Bus, opts ...Option) *Pool {
	p := &Pool{
		cfg:        cfg,
		workers:    make(map[string]*Worker),
		bus:        bus,
		now:        time.Now,
		highSince:  make(map[string]time.Time),
		lowSince:   make(map[string]time.Time),
		lastResize: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	for _, capability := range slices.Sorted(maps.Keys(cfg.Capabilities)) {
		count := max(cfg.Capabilities[capability], cfg.MinWorkers)
		count = min(count, cfg.MaxWorkers)
		for range count {
			p.addWorkerLocked(capability)
		}
	}
	return p
}

// Acquire reserves an idle worker of the given capability and returns
// its ID. When the segment has no idle worker and room remains under
// MaxWorkers, a new worker is created on the spot; otherwise the call
// fails with ErrPoolExhausted and the caller retries on a later pass.
func (p *Pool) Acquire(capability string) (string, error) {
	if !config.IsValidCapability(capability) {
		return "", errors.NewPoolError("no such capability", errors.ErrUnknownCapability).
			WithCapability(capability)
	}

	p.mu.Lock()
	if w := p.idleWorkerLocked(capability); w != nil {
		w.Status = StatusBusy
		p.mu.Unlock()
		return w.ID, nil
	}

	total := p.segmentSizeLocked(capability)
	if total >= p.cfg.MaxWorkers {
		p.mu.Unlock()
		return "", errors.NewPoolError("segment at capacity", errors.ErrPoolExhausted).
			WithCapability(capability).
			WithPoolSize(total, p.cfg.MaxWorkers)
	}

	w := p.addWorkerLocked(capability)
	w.Status = StatusBusy
	p.lastResize[capability] = p.now()
	p.mu.Unlock()

	p.publishResize(capability, total, total+1, "demand")
	return w.ID, nil
}

// Release returns a worker to the idle set. A draining worker leaves
// the pool instead of going idle.
func (p *Pool) Release(workerID string) error {
	p.mu.Lock()
	w, ok := p.workers[workerID]
	if !ok {
		p.mu.Unlock()
		return errors.NewPoolError("release of unknown worker", errors.ErrWorkerNotFound)
	}

	if w.Status == StatusDraining {
		delete(p.workers, workerID)
		total := p.segmentSizeLocked(w.Capability)
		p.mu.Unlock()
		p.publishResize(w.Capability, total+1, total, "drain complete")
		return nil
	}

	w.Status = StatusIdle
	w.AssignedCycle = ""
	p.mu.Unlock()
	return nil
}

// Bind records which cycle a busy worker is serving. The assignment is
// informational: it surfaces in status output and checkpoints.
func (p *Pool) Bind(workerID, cycleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	w, ok := p.workers[workerID]
	if !ok {
		return errors.NewPoolError("bind to unknown worker", errors.ErrWorkerNotFound)
	}
	w.AssignedCycle = cycleID
	return nil
}

// Drain marks a worker for removal. An idle worker leaves immediately;
// a busy one finishes its assignment and leaves on Release.
func (p *Pool) Drain(workerID string) error {
	p.mu.Lock()
	w, ok := p.workers[workerID]
	if !ok {
		p.mu.Unlock()
		return errors.NewPoolError("drain of unknown worker", errors.ErrWorkerNotFound)
	}

	if w.Status == StatusIdle {
		delete(p.workers, workerID)
		total := p.segmentSizeLocked(w.Capability)
		p.mu.Unlock()
		p.publishResize(w.Capability, total+1, total, "drained while idle")
		return nil
	}

	w.Status = StatusDraining
	p.mu.Unlock()
	return nil
}

// Utilization reports per-segment occupancy, sorted by capability.
func (p *Pool) Utilization() []SegmentUtilization {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.utilizationLocked()
}

func (p *Pool) utilizationLocked() []SegmentUtilization {
	byCapability := make(map[string]*SegmentUtilization)
	for _, w := range p.workers {
		seg, ok := byCapability[w.Capability]
		if !ok {
			seg = &SegmentUtilization{Capability: w.Capability}
			byCapability[w.Capability] = seg
		}
		seg.Total++
		switch w.Status {
		case StatusBusy:
			seg.Busy++
		case StatusIdle:
			seg.Idle++
		case StatusDraining:
			seg.Draining++
		}
	}

	segments := make([]SegmentUtilization, 0, len(byCapability))
	for _, capability := range slices.Sorted(maps.Keys(byCapability)) {
		seg := byCapability[capability]
		seg.Ratio = float64(seg.Busy+seg.Draining) / float64(seg.Total)
		segments = append(segments, *seg)
	}
	return segments
}

// Evaluate runs one watermark pass at the given instant and returns the
// resizes it applied. A segment scales up after its utilization holds
// above the high watermark for a full evaluation window, and scales
// down by at most one idle worker after holding below the low
// watermark, both gated by the cooldown since the segment's last
// resize. Utilization is also published per segment for observers.
func (p *Pool) Evaluate(now time.Time) []Decision {
	type applied struct {
		d          Decision
		prev, curr int
	}

	p.mu.Lock()
	segments := p.utilizationLocked()
	results := make([]applied, 0, 2)

	for _, seg := range segments {
		capability := seg.Capability

		switch {
		case seg.Ratio > p.cfg.HighWatermark:
			delete(p.lowSince, capability)
			if seg.Total >= p.cfg.MaxWorkers {
				delete(p.highSince, capability)
				continue
			}
			since, breached := p.highSince[capability]
			if !breached {
				p.highSince[capability] = now
				continue
			}
			if now.Sub(since) < p.cfg.EvaluationWindow() {
				continue
			}
			if !p.cooldownElapsedLocked(capability, now) {
				continue
			}
			p.addWorkerLocked(capability)
			p.lastResize[capability] = now
			delete(p.highSince, capability)
			results = append(results, applied{
				d: Decision{
					Capability: capability,
					Action:     ActionScaleUp,
					Delta:      1,
					Reason:     "utilization above high watermark",
				},
				prev: seg.Total,
				curr: seg.Total + 1,
			})

		case seg.Ratio < p.cfg.LowWatermark:
			delete(p.highSince, capability)
			if seg.Total <= p.cfg.MinWorkers {
				delete(p.lowSince, capability)
				continue
			}
			since, breached := p.lowSince[capability]
			if !breached {
				p.lowSince[capability] = now
				continue
			}
			if now.Sub(since) < p.cfg.EvaluationWindow() {
				continue
			}
			if !p.cooldownElapsedLocked(capability, now) {
				continue
			}
			idle := p.idleWorkerLocked(capability)
			if idle == nil {
				// Everything is busy or draining. Keep the breach; the
				// segment will drop a worker once one goes idle.
				continue
			}
			delete(p.workers, idle.ID)
			p.lastResize[capability] = now
			delete(p.lowSince, capability)
			results = append(results, applied{
				d: Decision{
					Capability: capability,
					Action:     ActionScaleDown,
					Delta:      -1,
					Reason:     "utilization below low watermark",
				},
				prev: seg.Total,
				curr: seg.Total - 1,
			})

		default:
			delete(p.highSince, capability)
			delete(p.lowSince, capability)
		}
	}
	p.mu.Unlock()

	decisions := make([]Decision, 0, len(results))
	for _, r := range results {
		p.publishResize(r.d.Capability, r.prev, r.curr, r.d.Reason)
		decisions = append(decisions, r.d)
	}
	for _, seg := range segments {
		p.publishUtilization(seg)
	}
	return decisions
}

// Get returns a copy of the worker, if present.
func (p *Pool) Get(workerID string) (Worker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w, ok := p.workers[workerID]
	if !ok {
		return Worker{}, false
	}
	return *w, true
}

// Workers returns copies of all workers, sorted by capability then ID.
func (p *Pool) Workers() []Worker {
	p.mu.Lock()
	defer p.mu.Unlock()

	workers := make([]Worker, 0, len(p.workers))
	for _, w := range p.workers {
		workers = append(workers, *w)
	}
	slices.SortFunc(workers, func(a, b Worker) int {
		if c := strings.Compare(a.Capability, b.Capability); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return workers
}

// Shape returns the current worker count per capability.
func (p *Pool) Shape() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()

	shape := make(map[string]int)
	for _, w := range p.workers {
		shape[w.Capability]++
	}
	return shape
}

// addWorkerLocked creates an idle worker in the segment. Caller holds mu.
func (p *Pool) addWorkerLocked(capability string) *Worker {
	w := &Worker{
		ID:         uuid.NewString(),
		Capability: capability,
		Status:     StatusIdle,
		CreatedAt:  p.now(),
	}
	p.workers[w.ID] = w
	return w
}

// idleWorkerLocked returns the idle worker with the smallest ID in the
// segment, keeping acquisition order deterministic. Caller holds mu.
func (p *Pool) idleWorkerLocked(capability string) *Worker {
	var pick *Worker
	for _, w := range p.workers {
		if w.Capability != capability || w.Status != StatusIdle {
			continue
		}
		if pick == nil || w.ID < pick.ID {
			pick = w
		}
	}
	return pick
}

// segmentSizeLocked counts workers of the capability. Caller holds mu.
func (p *Pool) segmentSizeLocked(capability string) int {
	total := 0
	for _, w := range p.workers {
		if w.Capability == capability {
			total++
		}
	}
	return total
}

// cooldownElapsedLocked reports whether the segment is past its resize
// cooldown. Caller holds mu.
func (p *Pool) cooldownElapsedLocked(capability string, now time.Time) bool {
	last, resized := p.lastResize[capability]
	return !resized || now.Sub(last) >= p.cfg.Cooldown()
}

func (p *Pool) publishResize(capability string, previous, current int, reason string) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(event.NewPoolResizedEvent(capability, previous, current, reason))
}

func (p *Pool) publishUtilization(seg SegmentUtilization) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(event.NewPoolUtilizationEvent(seg.Capability, seg.Busy, seg.Total))
}

package conflict

import (
	"maps"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/redgreen/internal/config"
)

// Detector scores pending cycles against running ones. Check, Score and
// Evaluate are pure reads; prior conflicts and observed writes
// accumulate through RecordConflict and RecordObserved.
type Detector struct {
	mu  sync.RWMutex
	cfg config.ConflictConfig
	now func() time.Time

	// history holds prior-conflict timestamps per unordered story pair.
	history map[string][]time.Time

	// observed holds paths each story's cycle was seen writing, with the
	// most recent write time.
	observed map[string]map[string]time.Time
}

// Option configures a Detector.
type Option func(*Detector)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDetector creates a detector with the given scoring policy.
func NewDetector(cfg config.ConflictConfig, opts ...Option) *Detector {
	d := &Detector{
		cfg:      cfg,
		now:      time.Now,
		history:  make(map[string][]time.Time),
		observed: make(map[string]map[string]time.Time),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Score computes the weighted conflict score for one pairing: footprint
// overlap, declared dependency edges, and recency-decayed prior
// conflicts, each scaled by its configured weight. Capped at 1.
func (d *Detector) Score(a, b CycleFootprint) float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	score, _ := d.scoreLocked(a, b)
	return score
}

// Classify maps a score onto the configured thresholds.
func (d *Detector) Classify(score float64) Classification {
	switch {
	case score >= d.cfg.HardThreshold:
		return ClassificationHard
	case score >= d.cfg.SoftThreshold:
		return ClassificationSoft
	default:
		return ClassificationNone
	}
}

// Check classifies starting the pending cycle against everything
// currently running and returns the worst classification found.
func (d *Detector) Check(pending CycleFootprint, running []CycleFootprint) Classification {
	d.mu.RLock()
	defer d.mu.RUnlock()

	worst := ClassificationNone
	for _, other := range running {
		if other.StoryID == pending.StoryID {
			continue
		}
		score, _ := d.scoreLocked(pending, other)
		if c := d.Classify(score); c.Severity() > worst.Severity() {
			worst = c
		}
	}
	return worst
}

// Evaluate scores the pending cycle against each running cycle and
// returns every pairing that is not None, worst first.
func (d *Detector) Evaluate(pending CycleFootprint, running []CycleFootprint) []PairScore {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var pairs []PairScore
	for _, other := range running {
		if other.StoryID == pending.StoryID {
			continue
		}
		score, shared := d.scoreLocked(pending, other)
		classification := d.Classify(score)
		if classification == ClassificationNone {
			continue
		}
		pairs = append(pairs, PairScore{
			StoryA:          pending.StoryID,
			StoryB:          other.StoryID,
			Score:           score,
			Classification:  classification,
			SharedResources: shared,
		})
	}
	slices.SortStableFunc(pairs, func(a, b PairScore) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return strings.Compare(a.StoryB, b.StoryB)
		}
	})
	return pairs
}

// RecordConflict notes a detected conflict between the pair, feeding the
// recency-decayed history component of future scores.
func (d *Detector) RecordConflict(storyA, storyB string) {
	if storyA == "" || storyB == "" || storyA == storyB {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	key := pairKey(storyA, storyB)
	d.history[key] = append(d.history[key], d.now())
}

// PriorConflicts returns how many conflicts are on record for the pair.
func (d *Detector) PriorConflicts(storyA, storyB string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.history[pairKey(storyA, storyB)])
}

// RecordObserved notes that the story's cycle wrote the path. Observed
// paths join the story's declared resources in every future score.
func (d *Detector) RecordObserved(storyID, path string) {
	if storyID == "" || path == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.observed[storyID] == nil {
		d.observed[storyID] = make(map[string]time.Time)
	}
	d.observed[storyID][path] = d.now()
}

// ObservedPaths returns the paths recorded for the story, sorted.
func (d *Detector) ObservedPaths(storyID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Sorted(maps.Keys(d.observed[storyID]))
}

// ClearObserved drops the story's observed paths. Called when its cycle
// completes or is cancelled.
func (d *Detector) ClearObserved(storyID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.observed, storyID)
}

// Prune removes prior conflicts and observations older than maxAge.
func (d *Detector) Prune(maxAge time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := d.now().Add(-maxAge)
	for key, events := range d.history {
		kept := events[:0]
		for _, ts := range events {
			if !ts.Before(cutoff) {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			delete(d.history, key)
			continue
		}
		d.history[key] = kept
	}
	for storyID, paths := range d.observed {
		for path, ts := range paths {
			if ts.Before(cutoff) {
				delete(paths, path)
			}
		}
		if len(paths) == 0 {
			delete(d.observed, storyID)
		}
	}
}

func (d *Detector) scoreLocked(a, b CycleFootprint) (float64, []string) {
	overlap, shared := overlapRatio(d.entriesLocked(a), d.entriesLocked(b))

	dependency := 0.0
	if slices.Contains(a.DependsOn, b.StoryID) || slices.Contains(b.DependsOn, a.StoryID) {
		dependency = 1.0
	}

	history := d.decayedHistoryLocked(a.StoryID, b.StoryID)

	score := d.cfg.OverlapWeight*overlap +
		d.cfg.DependencyWeight*dependency +
		d.cfg.HistoryWeight*history
	return math.Min(score, 1.0), shared
}

// entriesLocked merges a footprint's declared resources, its caller-
// supplied observed paths, and the detector's own observations for the
// story into one sorted, deduplicated entry set.
func (d *Detector) entriesLocked(fp CycleFootprint) []string {
	seen := make(map[string]bool, len(fp.Resources)+len(fp.Observed))
	var entries []string
	add := func(resource string) {
		if resource == "" || seen[resource] {
			return
		}
		seen[resource] = true
		entries = append(entries, resource)
	}
	for _, resource := range fp.Resources {
		add(resource)
	}
	for _, resource := range fp.Observed {
		add(resource)
	}
	for path := range d.observed[fp.StoryID] {
		add(path)
	}
	slices.Sort(entries)
	return entries
}

// decayedHistoryLocked sums prior conflicts for the pair, each halved
// per configured half-life of age, capped at 1.
func (d *Detector) decayedHistoryLocked(storyA, storyB string) float64 {
	events := d.history[pairKey(storyA, storyB)]
	if len(events) == 0 {
		return 0
	}
	halfLife := d.cfg.DecayHalfLife()
	if halfLife <= 0 {
		return 1
	}
	now := d.now()
	total := 0.0
	for _, ts := range events {
		age := now.Sub(ts)
		if age < 0 {
			age = 0
		}
		total += math.Exp2(-float64(age) / float64(halfLife))
	}
	return math.Min(total, 1.0)
}

// overlapRatio measures how much of either entry set falls inside the
// other: the matched fraction of whichever side overlaps more, so a
// footprint fully contained in a wider one still scores 1. Returns the
// matched entries sorted.
func overlapRatio(ea, eb []string) (float64, []string) {
	if len(ea) == 0 || len(eb) == 0 {
		return 0, nil
	}

	shared := make(map[string]bool)
	matchedA := 0
	for _, entry := range ea {
		if matchesAny(entry, eb) {
			matchedA++
			shared[entry] = true
		}
	}
	matchedB := 0
	for _, entry := range eb {
		if matchesAny(entry, ea) {
			matchedB++
			shared[entry] = true
		}
	}

	ratio := math.Max(
		float64(matchedA)/float64(len(ea)),
		float64(matchedB)/float64(len(eb)),
	)
	return ratio, slices.Sorted(maps.Keys(shared))
}

func matchesAny(resource string, entries []string) bool {
	for _, entry := range entries {
		if resourcesOverlap(resource, entry) {
			return true
		}
	}
	return false
}

// resourcesOverlap reports whether two footprint entries can touch the
// same path: equal literals, or either side read as a path glob
// matching the other.
func resourcesOverlap(a, b string) bool {
	if a == b {
		return true
	}
	if g, err := glob.Compile(a, '/'); err == nil && g.Match(b) {
		return true
	}
	if g, err := glob.Compile(b, '/'); err == nil && g.Match(a) {
		return true
	}
	return false
}

// pairKey builds the unordered lookup key for a story pair.
func pairKey(storyA, storyB string) string {
	if storyA > storyB {
		storyA, storyB = storyB, storyA
	}
	return storyA + "\x00" + storyB
}

package lockmgr

import (
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Iron-Ham/redgreen/internal/errors"
	"github.com/Iron-Ham/redgreen/internal/event"
)

// lockState tracks the holders of one resource.
type lockState struct {
	mode    Mode
	holders map[string]bool // cycle IDs
}

// Manager owns the authoritative lock table: resource holders on one
// axis, per-cycle leases on the other.
type Manager struct {
	mu     sync.Mutex
	locks  map[string]*lockState // resource -> holders
	leases map[string]*Lease     // cycleID -> lease
	ttl    time.Duration
	now    func() time.Time
	bus    *event.Bus
}

// NewManager creates a lock manager. Lease expiries publish to bus;
// a nil bus disables publishing.
func NewManager(bus *event.Bus, opts ...Option) *Manager {
	m := &Manager{
		locks:  make(map[string]*lockState),
		leases: make(map[string]*Lease),
		ttl:    DefaultLeaseTTL,
		now:    time.Now,
		bus:    bus,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire takes every resource in the set for the cycle, atomically:
// on the first unavailable resource everything taken in this request is
// rolled back and the call returns ok=false with ErrLockUnavailable.
// Resources the cycle already holds are confirmed, not retaken. A
// successful grant starts (or extends) the cycle's lease.
func (m *Manager) Acquire(cycleID string, resources []string, mode Mode) (bool, error) {
	if cycleID == "" {
		return false, errors.NewValidationError("cycle id cannot be empty").WithField("cycle_id")
	}
	if !mode.IsValid() {
		return false, errors.NewValidationError("unknown lock mode").
			WithField("mode").
			WithValue(string(mode))
	}
	wanted := canonical(resources)
	if len(wanted) == 0 {
		return false, errors.NewValidationError("resource set cannot be empty").WithField("resources")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.leases[cycleID]; ok && existing.Mode != mode {
		return false, errors.NewLockError("lease already held in a different mode", errors.ErrLockUnavailable).
			WithCycleID(cycleID).
			WithMode(string(mode))
	}

	var taken []string
	for _, resource := range wanted {
		newly, ok := m.claimLocked(cycleID, resource, mode)
		if !ok {
			// Roll back claims made in this request; earlier grants to
			// the same cycle stay held.
			for _, r := range taken {
				m.releaseResourceLocked(cycleID, r)
			}
			return false, errors.NewLockError("resource unavailable", errors.ErrLockUnavailable).
				WithCycleID(cycleID).
				WithResources([]string{resource}).
				WithMode(string(mode))
		}
		if newly {
			taken = append(taken, resource)
		}
	}

	now := m.now()
	lease, ok := m.leases[cycleID]
	if !ok {
		lease = &Lease{CycleID: cycleID, Mode: mode, AcquiredAt: now}
		m.leases[cycleID] = lease
	}
	lease.Resources = mergeSorted(lease.Resources, wanted)
	lease.ExpiresAt = now.Add(m.ttl)
	return true, nil
}

// claimLocked takes a single resource while the write lock is held.
// newly is false for an idempotent re-claim by the same cycle.
func (m *Manager) claimLocked(cycleID, resource string, mode Mode) (newly, ok bool) {
	st, exists := m.locks[resource]
	if !exists {
		m.locks[resource] = &lockState{
			mode:    mode,
			holders: map[string]bool{cycleID: true},
		}
		return true, true
	}

	if st.holders[cycleID] {
		return false, st.mode == mode
	}
	if mode == ModeShared && st.mode == ModeShared {
		st.holders[cycleID] = true
		return true, true
	}
	return false, false
}

// releaseResourceLocked drops the cycle's hold on one resource while
// the write lock is held.
func (m *Manager) releaseResourceLocked(cycleID, resource string) {
	st, ok := m.locks[resource]
	if !ok {
		return
	}
	delete(st.holders, cycleID)
	if len(st.holders) == 0 {
		delete(m.locks, resource)
	}
}

// Release frees every resource held by the cycle and ends its lease.
// Returns ErrNotHolder if the cycle holds nothing.
func (m *Manager) Release(cycleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lease, ok := m.leases[cycleID]
	if !ok {
		return errors.NewLockError("nothing to release", errors.ErrNotHolder).WithCycleID(cycleID)
	}
	for _, resource := range lease.Resources {
		m.releaseResourceLocked(cycleID, resource)
	}
	delete(m.leases, cycleID)
	return nil
}

// Renew extends the cycle's lease from now. A lease already past its
// expiry cannot be renewed; the next ExpireStale sweep reclaims it.
func (m *Manager) Renew(cycleID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lease, ok := m.leases[cycleID]
	if !ok {
		return errors.NewLockError("no lease to renew", errors.ErrNotHolder).WithCycleID(cycleID)
	}
	if !lease.ExpiresAt.After(now) {
		return errors.NewLockError("lease lapsed before renewal", errors.ErrLeaseExpired).
			WithCycleID(cycleID).
			WithResources(slices.Clone(lease.Resources))
	}
	lease.ExpiresAt = now.Add(m.ttl)
	return nil
}

// ExpireStale reclaims every lease whose expiry has passed, making the
// resources acquirable again. Returns the freed resources, sorted.
// Expiry events publish outside the lock.
func (m *Manager) ExpireStale(now time.Time) []string {
	type reclaim struct {
		cycleID   string
		resources []string
	}

	m.mu.Lock()
	var reclaimed []reclaim
	for cycleID, lease := range m.leases {
		if lease.ExpiresAt.After(now) {
			continue
		}
		for _, resource := range lease.Resources {
			m.releaseResourceLocked(cycleID, resource)
		}
		reclaimed = append(reclaimed, reclaim{cycleID, slices.Clone(lease.Resources)})
		delete(m.leases, cycleID)
	}
	m.mu.Unlock()

	var freed []string
	for _, r := range reclaimed {
		for _, resource := range r.resources {
			if m.bus != nil {
				m.bus.Publish(event.NewLockLeaseExpiredEvent(resource, r.cycleID))
			}
			freed = append(freed, resource)
		}
	}
	slices.Sort(freed)
	return slices.Compact(freed)
}

// Holder returns the cycle holding the resource exclusively, or
// ("", false) when the resource is unheld or held shared.
func (m *Manager) Holder(resource string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.locks[resource]
	if !ok || st.mode != ModeExclusive {
		return "", false
	}
	for cycleID := range st.holders {
		return cycleID, true
	}
	return "", false
}

// Holders returns every cycle holding the resource, sorted.
func (m *Manager) Holders(resource string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.locks[resource]
	if !ok {
		return nil
	}
	return slices.Sorted(maps.Keys(st.holders))
}

// IsAvailable reports whether a new holder could take the resource in
// the given mode right now.
func (m *Manager) IsAvailable(resource string, mode Mode) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.locks[resource]
	if !ok {
		return true
	}
	return mode == ModeShared && st.mode == ModeShared
}

// HeldBy returns the resources the cycle currently holds, sorted.
func (m *Manager) HeldBy(cycleID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	lease, ok := m.leases[cycleID]
	if !ok {
		return nil
	}
	return slices.Clone(lease.Resources)
}

// LeaseFor returns a copy of the cycle's lease.
func (m *Manager) LeaseFor(cycleID string) (Lease, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lease, ok := m.leases[cycleID]
	if !ok {
		return Lease{}, false
	}
	out := *lease
	out.Resources = slices.Clone(lease.Resources)
	return out, true
}

// Table returns the lock table as resource rows, sorted by resource.
// Checkpoints embed it for post-mortem visibility; restore paths
// re-acquire rather than load it.
func (m *Manager) Table() []ResourceLock {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := make([]ResourceLock, 0, len(m.locks))
	for resource, st := range m.locks {
		rows = append(rows, ResourceLock{
			Resource: resource,
			Mode:     st.mode,
			Holders:  slices.Sorted(maps.Keys(st.holders)),
		})
	}
	slices.SortFunc(rows, func(a, b ResourceLock) int {
		return strings.Compare(a.Resource, b.Resource)
	})
	return rows
}

// canonical sorts and deduplicates a resource request, dropping empty
// entries. Taking resources in one global order keeps concurrent
// multi-resource requests from deadlocking each other.
func canonical(resources []string) []string {
	out := make([]string, 0, len(resources))
	for _, r := range resources {
		if r != "" {
			out = append(out, r)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func mergeSorted(a, b []string) []string {
	merged := append(slices.Clone(a), b...)
	slices.Sort(merged)
	return slices.Compact(merged)
}

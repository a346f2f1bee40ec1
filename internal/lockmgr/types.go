package lockmgr

import "time"

// Mode is the sharing discipline of a lock.
type Mode string

const (
	// ModeExclusive admits a single holder. Used for resources the
	// cycle will write.
	ModeExclusive Mode = "exclusive"

	// ModeShared admits any number of shared holders. Used for
	// resources the cycle only reads.
	ModeShared Mode = "shared"
)

// IsValid reports whether the mode is a known value.
func (m Mode) IsValid() bool {
	return m == ModeExclusive || m == ModeShared
}

func (m Mode) String() string {
	return string(m)
}

// Lease records one cycle's hold over a resource set. The resources
// slice is sorted.
type Lease struct {
	CycleID    string    `json:"cycle_id"`
	Mode       Mode      `json:"mode"`
	Resources  []string  `json:"resources"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// ResourceLock is one row of the lock table seen from the resource
// side. Holders is sorted; an exclusive row has exactly one holder.
type ResourceLock struct {
	Resource string   `json:"resource"`
	Mode     Mode     `json:"mode"`
	Holders  []string `json:"holders"`
}

// DefaultLeaseTTL applies when no WithTTL option is given.
const DefaultLeaseTTL = 90 * time.Second

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the lease duration for grants and renewals.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock overrides the time source used for grants. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

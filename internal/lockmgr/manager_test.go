package lockmgr

import (
	"slices"
	"testing"
	"time"

	"github.com/Iron-Ham/redgreen/internal/errors"
	"github.com/Iron-Ham/redgreen/internal/event"
)

func newTestManager(opts ...Option) *Manager {
	return NewManager(nil, opts...)
}

func mustAcquire(t *testing.T, m *Manager, cycleID string, resources []string, mode Mode) {
	t.Helper()
	ok, err := m.Acquire(cycleID, resources, mode)
	if err != nil {
		t.Fatalf("Acquire(%s) error = %v", cycleID, err)
	}
	if !ok {
		t.Fatalf("Acquire(%s) = false, want true", cycleID)
	}
}

func TestManager_Acquire(t *testing.T) {
	t.Run("grants an exclusive set", func(t *testing.T) {
		m := newTestManager()
		mustAcquire(t, m, "cycle-1", []string{"src/auth/**", "docs/auth.md"}, ModeExclusive)

		if holder, ok := m.Holder("src/auth/**"); !ok || holder != "cycle-1" {
			t.Errorf("Holder() = %q, %v, want cycle-1, true", holder, ok)
		}
		if m.IsAvailable("src/auth/**", ModeExclusive) {
			t.Error("IsAvailable(exclusive) = true for a held resource")
		}
		if m.IsAvailable("src/auth/**", ModeShared) {
			t.Error("IsAvailable(shared) = true for an exclusively held resource")
		}

		want := []string{"docs/auth.md", "src/auth/**"}
		if got := m.HeldBy("cycle-1"); !slices.Equal(got, want) {
			t.Errorf("HeldBy() = %v, want %v", got, want)
		}
	})

	t.Run("re-acquiring held resources is idempotent", func(t *testing.T) {
		m := newTestManager()
		mustAcquire(t, m, "cycle-1", []string{"src/auth/**"}, ModeExclusive)
		mustAcquire(t, m, "cycle-1", []string{"src/auth/**"}, ModeExclusive)

		if got := m.HeldBy("cycle-1"); len(got) != 1 {
			t.Errorf("HeldBy() = %v, want one resource", got)
		}
	})

	t.Run("a later request extends the lease resource set", func(t *testing.T) {
		m := newTestManager()
		mustAcquire(t, m, "cycle-1", []string{"src/auth/**"}, ModeExclusive)
		mustAcquire(t, m, "cycle-1", []string{"docs/auth.md"}, ModeExclusive)

		want := []string{"docs/auth.md", "src/auth/**"}
		if got := m.HeldBy("cycle-1"); !slices.Equal(got, want) {
			t.Errorf("HeldBy() = %v, want %v", got, want)
		}
	})

	t.Run("request is deduplicated and empty entries dropped", func(t *testing.T) {
		m := newTestManager()
		mustAcquire(t, m, "cycle-1", []string{"b.go", "a.go", "a.go", ""}, ModeExclusive)

		want := []string{"a.go", "b.go"}
		if got := m.HeldBy("cycle-1"); !slices.Equal(got, want) {
			t.Errorf("HeldBy() = %v, want %v", got, want)
		}
	})
}

func TestManager_Acquire_Validation(t *testing.T) {
	tests := []struct {
		name      string
		cycleID   string
		resources []string
		mode      Mode
	}{
		{"empty cycle id", "", []string{"a.go"}, ModeExclusive},
		{"empty resource set", "cycle-1", nil, ModeExclusive},
		{"only blank resources", "cycle-1", []string{""}, ModeExclusive},
		{"unknown mode", "cycle-1", []string{"a.go"}, Mode("upgradable")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager()
			ok, err := m.Acquire(tt.cycleID, tt.resources, tt.mode)
			if ok {
				t.Error("Acquire() = true, want false")
			}
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestManager_Acquire_Contention(t *testing.T) {
	tests := []struct {
		name       string
		firstMode  Mode
		secondMode Mode
		wantOK     bool
	}{
		{"exclusive blocks exclusive", ModeExclusive, ModeExclusive, false},
		{"exclusive blocks shared", ModeExclusive, ModeShared, false},
		{"shared blocks exclusive", ModeShared, ModeExclusive, false},
		{"shared admits shared", ModeShared, ModeShared, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager()
			mustAcquire(t, m, "cycle-1", []string{"src/auth/**"}, tt.firstMode)

			ok, err := m.Acquire("cycle-2", []string{"src/auth/**"}, tt.secondMode)
			if ok != tt.wantOK {
				t.Fatalf("Acquire() = %v, want %v", ok, tt.wantOK)
			}
			if tt.wantOK {
				if err != nil {
					t.Fatalf("Acquire() error = %v", err)
				}
				holders := m.Holders("src/auth/**")
				want := []string{"cycle-1", "cycle-2"}
				if !slices.Equal(holders, want) {
					t.Errorf("Holders() = %v, want %v", holders, want)
				}
				return
			}
			if !errors.Is(err, errors.ErrLockUnavailable) {
				t.Errorf("error = %v, want ErrLockUnavailable", err)
			}
			if got := m.HeldBy("cycle-2"); len(got) != 0 {
				t.Errorf("refused cycle still holds %v", got)
			}
		})
	}
}

func TestManager_Acquire_RollsBackPartialFailure(t *testing.T) {
	m := newTestManager()
	mustAcquire(t, m, "cycle-1", []string{"b.go"}, ModeExclusive)

	ok, err := m.Acquire("cycle-2", []string{"a.go", "b.go", "c.go"}, ModeExclusive)
	if ok {
		t.Fatal("Acquire() = true, want false")
	}
	if !errors.Is(err, errors.ErrLockUnavailable) {
		t.Fatalf("error = %v, want ErrLockUnavailable", err)
	}

	var lockErr *errors.LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("error is not a LockError: %v", err)
	}
	if !slices.Equal(lockErr.Resources, []string{"b.go"}) {
		t.Errorf("LockError.Resources = %v, want the contended resource", lockErr.Resources)
	}

	// Nothing from the failed request may remain held.
	for _, resource := range []string{"a.go", "c.go"} {
		if !m.IsAvailable(resource, ModeExclusive) {
			t.Errorf("IsAvailable(%s) = false after rollback", resource)
		}
	}
	if got := m.HeldBy("cycle-2"); len(got) != 0 {
		t.Errorf("HeldBy(cycle-2) = %v, want empty", got)
	}
	if holder, _ := m.Holder("b.go"); holder != "cycle-1" {
		t.Errorf("Holder(b.go) = %q, want cycle-1", holder)
	}
}

func TestManager_Acquire_RollbackKeepsEarlierGrants(t *testing.T) {
	m := newTestManager()
	mustAcquire(t, m, "cycle-1", []string{"b.go"}, ModeExclusive)
	mustAcquire(t, m, "cycle-2", []string{"x.go"}, ModeExclusive)

	ok, _ := m.Acquire("cycle-2", []string{"a.go", "b.go"}, ModeExclusive)
	if ok {
		t.Fatal("Acquire() = true, want false")
	}

	// The failed request rolls back only its own claims.
	want := []string{"x.go"}
	if got := m.HeldBy("cycle-2"); !slices.Equal(got, want) {
		t.Errorf("HeldBy(cycle-2) = %v, want %v", got, want)
	}
	if !m.IsAvailable("a.go", ModeExclusive) {
		t.Error("IsAvailable(a.go) = false after rollback")
	}
}

func TestManager_Acquire_ModeChangeRefused(t *testing.T) {
	m := newTestManager()
	mustAcquire(t, m, "cycle-1", []string{"a.go"}, ModeShared)

	ok, err := m.Acquire("cycle-1", []string{"b.go"}, ModeExclusive)
	if ok {
		t.Fatal("Acquire() = true, want false")
	}
	if !errors.Is(err, errors.ErrLockUnavailable) {
		t.Errorf("error = %v, want ErrLockUnavailable", err)
	}
	if !m.IsAvailable("b.go", ModeExclusive) {
		t.Error("IsAvailable(b.go) = false after refused mode change")
	}
}

func TestManager_Acquire_OppositeOrderNeverDeadlocks(t *testing.T) {
	m := newTestManager()

	// Two cycles repeatedly contend for the same pair in opposite caller
	// order. All-or-nothing acquisition over the canonical order means
	// one always wins outright; neither goroutine can wedge the other.
	run := func(cycleID string, resources []string) chan struct{} {
		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 200; i++ {
				for {
					ok, _ := m.Acquire(cycleID, resources, ModeExclusive)
					if ok {
						break
					}
				}
				if err := m.Release(cycleID); err != nil {
					t.Errorf("Release(%s) error = %v", cycleID, err)
					return
				}
			}
		}()
		return done
	}

	first := run("cycle-1", []string{"a.go", "b.go"})
	second := run("cycle-2", []string{"b.go", "a.go"})

	timeout := time.After(10 * time.Second)
	for _, done := range []chan struct{}{first, second} {
		select {
		case <-done:
		case <-timeout:
			t.Fatal("acquisition loops did not finish")
		}
	}
	for _, resource := range []string{"a.go", "b.go"} {
		if !m.IsAvailable(resource, ModeExclusive) {
			t.Errorf("IsAvailable(%s) = false after both loops released", resource)
		}
	}
}

func TestManager_Release(t *testing.T) {
	m := newTestManager()
	mustAcquire(t, m, "cycle-1", []string{"src/auth/**", "docs/auth.md"}, ModeExclusive)

	if err := m.Release("cycle-1"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	for _, resource := range []string{"src/auth/**", "docs/auth.md"} {
		if !m.IsAvailable(resource, ModeExclusive) {
			t.Errorf("IsAvailable(%s) = false after release", resource)
		}
	}
	if _, ok := m.LeaseFor("cycle-1"); ok {
		t.Error("LeaseFor() = ok after release")
	}

	t.Run("releasing again fails", func(t *testing.T) {
		err := m.Release("cycle-1")
		if !errors.Is(err, errors.ErrNotHolder) {
			t.Errorf("error = %v, want ErrNotHolder", err)
		}
	})

	t.Run("releasing an unknown cycle fails", func(t *testing.T) {
		err := m.Release("cycle-9")
		if !errors.Is(err, errors.ErrNotHolder) {
			t.Errorf("error = %v, want ErrNotHolder", err)
		}
	})

	t.Run("released resources are reacquirable", func(t *testing.T) {
		mustAcquire(t, m, "cycle-2", []string{"src/auth/**"}, ModeExclusive)
	})
}

func TestManager_Release_SharedHolderKeepsOthers(t *testing.T) {
	m := newTestManager()
	mustAcquire(t, m, "cycle-1", []string{"go.mod"}, ModeShared)
	mustAcquire(t, m, "cycle-2", []string{"go.mod"}, ModeShared)

	if err := m.Release("cycle-1"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	if m.IsAvailable("go.mod", ModeExclusive) {
		t.Error("IsAvailable(exclusive) = true while a shared holder remains")
	}
	want := []string{"cycle-2"}
	if got := m.Holders("go.mod"); !slices.Equal(got, want) {
		t.Errorf("Holders() = %v, want %v", got, want)
	}

	if err := m.Release("cycle-2"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if !m.IsAvailable("go.mod", ModeExclusive) {
		t.Error("IsAvailable(exclusive) = false after all holders released")
	}
}

func TestManager_Renew(t *testing.T) {
	base := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
	m := newTestManager(
		WithTTL(90*time.Second),
		WithClock(func() time.Time { return base }),
	)
	mustAcquire(t, m, "cycle-1", []string{"src/auth/**"}, ModeExclusive)

	lease, ok := m.LeaseFor("cycle-1")
	if !ok {
		t.Fatal("LeaseFor() missing after acquire")
	}
	if want := base.Add(90 * time.Second); !lease.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", lease.ExpiresAt, want)
	}

	if err := m.Renew("cycle-1", base.Add(30*time.Second)); err != nil {
		t.Fatalf("Renew() error = %v", err)
	}
	lease, _ = m.LeaseFor("cycle-1")
	if want := base.Add(120 * time.Second); !lease.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt after renew = %v, want %v", lease.ExpiresAt, want)
	}

	t.Run("unknown cycle", func(t *testing.T) {
		err := m.Renew("cycle-9", base)
		if !errors.Is(err, errors.ErrNotHolder) {
			t.Errorf("error = %v, want ErrNotHolder", err)
		}
	})

	t.Run("lapsed lease cannot be renewed", func(t *testing.T) {
		err := m.Renew("cycle-1", base.Add(10*time.Minute))
		if !errors.Is(err, errors.ErrLeaseExpired) {
			t.Errorf("error = %v, want ErrLeaseExpired", err)
		}
	})
}

func TestManager_ExpireStale(t *testing.T) {
	base := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
	bus := event.NewBus()

	var expiries []event.LockLeaseExpiredEvent
	bus.Subscribe("lock.lease_expired", func(e event.Event) {
		if le, ok := e.(event.LockLeaseExpiredEvent); ok {
			expiries = append(expiries, le)
		}
	})

	m := NewManager(bus,
		WithTTL(90*time.Second),
		WithClock(func() time.Time { return base }),
	)
	mustAcquire(t, m, "cycle-1", []string{"src/auth/**"}, ModeExclusive)
	mustAcquire(t, m, "cycle-2", []string{"src/payments/**"}, ModeExclusive)

	// cycle-2 heartbeats; cycle-1 goes silent.
	if err := m.Renew("cycle-2", base.Add(60*time.Second)); err != nil {
		t.Fatalf("Renew() error = %v", err)
	}

	freed := m.ExpireStale(base.Add(100 * time.Second))
	want := []string{"src/auth/**"}
	if !slices.Equal(freed, want) {
		t.Fatalf("ExpireStale() = %v, want %v", freed, want)
	}

	if got := m.HeldBy("cycle-1"); len(got) != 0 {
		t.Errorf("HeldBy(cycle-1) = %v, want empty after expiry", got)
	}
	if got := m.HeldBy("cycle-2"); !slices.Equal(got, []string{"src/payments/**"}) {
		t.Errorf("HeldBy(cycle-2) = %v, want lease intact", got)
	}

	if len(expiries) != 1 {
		t.Fatalf("published %d expiry events, want 1", len(expiries))
	}
	if expiries[0].Resource != "src/auth/**" || expiries[0].HolderID != "cycle-1" {
		t.Errorf("expiry event = %+v, want src/auth/** held by cycle-1", expiries[0])
	}

	t.Run("freed resources are reacquirable", func(t *testing.T) {
		mustAcquire(t, m, "cycle-3", []string{"src/auth/**"}, ModeExclusive)
	})

	t.Run("nothing stale", func(t *testing.T) {
		// cycle-3's lease started at the fixed clock, so it needs a
		// renewal to survive a sweep past base+TTL.
		if err := m.Renew("cycle-3", base.Add(100*time.Second)); err != nil {
			t.Fatalf("Renew() error = %v", err)
		}
		if freed := m.ExpireStale(base.Add(101 * time.Second)); len(freed) != 0 {
			t.Errorf("ExpireStale() = %v, want empty", freed)
		}
	})

	t.Run("unrenewed reacquire expires at TTL past grant", func(t *testing.T) {
		mustAcquire(t, m, "cycle-4", []string{"src/web/**"}, ModeExclusive)

		freed := m.ExpireStale(base.Add(91 * time.Second))
		if !slices.Equal(freed, []string{"src/web/**"}) {
			t.Errorf("ExpireStale() = %v, want [src/web/**]", freed)
		}
	})
}

func TestManager_Holder(t *testing.T) {
	m := newTestManager()

	t.Run("unheld resource", func(t *testing.T) {
		if holder, ok := m.Holder("a.go"); ok || holder != "" {
			t.Errorf("Holder() = %q, %v, want empty, false", holder, ok)
		}
	})

	t.Run("shared resources report no exclusive holder", func(t *testing.T) {
		mustAcquire(t, m, "cycle-1", []string{"go.mod"}, ModeShared)
		mustAcquire(t, m, "cycle-2", []string{"go.mod"}, ModeShared)

		if _, ok := m.Holder("go.mod"); ok {
			t.Error("Holder() = ok for a shared resource")
		}
		want := []string{"cycle-1", "cycle-2"}
		if got := m.Holders("go.mod"); !slices.Equal(got, want) {
			t.Errorf("Holders() = %v, want %v", got, want)
		}
	})
}

func TestManager_Table(t *testing.T) {
	m := newTestManager()
	mustAcquire(t, m, "cycle-1", []string{"src/b/**"}, ModeExclusive)
	mustAcquire(t, m, "cycle-2", []string{"src/a/**"}, ModeExclusive)
	mustAcquire(t, m, "cycle-3", []string{"go.mod"}, ModeShared)
	mustAcquire(t, m, "cycle-4", []string{"go.mod"}, ModeShared)

	rows := m.Table()
	if len(rows) != 3 {
		t.Fatalf("Table() returned %d rows, want 3", len(rows))
	}

	if rows[0].Resource != "go.mod" || rows[0].Mode != ModeShared {
		t.Errorf("rows[0] = %+v, want shared go.mod", rows[0])
	}
	if want := []string{"cycle-3", "cycle-4"}; !slices.Equal(rows[0].Holders, want) {
		t.Errorf("rows[0].Holders = %v, want %v", rows[0].Holders, want)
	}
	if rows[1].Resource != "src/a/**" || rows[2].Resource != "src/b/**" {
		t.Errorf("rows not sorted by resource: %v, %v", rows[1].Resource, rows[2].Resource)
	}
}

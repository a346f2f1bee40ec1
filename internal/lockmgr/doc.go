// Package lockmgr grants leased resource locks to running TDD cycles.
//
// Parallel cycles must never write the same resources at once. The lock
// manager holds the authoritative table of which cycle may touch which
// resource: the coordinator acquires a cycle's full footprint before
// starting it and releases it when the cycle completes, blocks, or is
// cancelled.
//
// # Acquisition
//
// [Manager.Acquire] takes a resource set atomically. The request is
// sorted canonically and taken in order; the first unavailable resource
// rolls back everything taken in this request and the call reports
// ok=false with [errors.ErrLockUnavailable]. Nothing is ever left
// partially held.
//
// # Modes
//
// Exclusive locks cover resources the cycle will write. Shared locks
// coexist with other shared holders, never with an exclusive holder.
//
// # Leases
//
// Every grant carries a lease. The coordinator renews leases on worker
// heartbeats via [Manager.Renew]; a lease that lapses is reclaimed by
// the [Manager.ExpireStale] sweep, which frees its resources and
// publishes a lock.lease_expired event per resource.
//
// # Basic Usage
//
//	mgr := lockmgr.NewManager(bus, lockmgr.WithTTL(cfg.Locks.LeaseTTL()))
//
//	// Take a cycle's footprint before starting it
//	ok, err := mgr.Acquire("cycle-1", []string{"src/auth/**"}, lockmgr.ModeExclusive)
//
//	// Heartbeat renewal
//	err = mgr.Renew("cycle-1", time.Now())
//
//	// Free everything on completion
//	err = mgr.Release("cycle-1")
//
// # Thread Safety
//
// All [Manager] methods are safe for concurrent use.
package lockmgr

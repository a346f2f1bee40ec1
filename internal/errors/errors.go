// Package errors provides centralized error definitions and error handling
// utilities for the Redgreen codebase. It defines domain-specific errors,
// semantic error types, error constructors with context wrapping, and error
// classification helpers.
//
// # Error Types
//
// The package provides two categories of errors:
//
// Domain-specific errors represent errors from specific subsystems:
//   - TransitionError: a workflow or cycle state machine rejected a command
//   - CycleError: errors in a running TDD cycle (phase failures, blocking)
//   - LockError: errors from resource lock acquisition and leasing
//   - PoolError: errors from worker pool acquisition and scaling
//   - PersistenceError: errors reading or writing checkpoints
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - AlreadyExistsError: resource already exists
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
// Creating errors:
//
//	// Domain-specific error
//	err := errors.NewLockError("acquire failed", errors.ErrLockUnavailable)
//
//	// Semantic error
//	err := errors.NewNotFoundError("story", "AUTH-12")
//
//	// With context wrapping
//	err := errors.NewCycleError("phase failed", cause).WithStoryID("AUTH-12").WithPhase("TEST_RED")
//
// Checking errors:
//
//	// Check for specific sentinel errors
//	if errors.Is(err, errors.ErrPoolExhausted) { ... }
//
//	// Check for error types
//	var lockErr *errors.LockError
//	if errors.As(err, &lockErr) { ... }
//
//	// Use classification helpers
//	if errors.IsRetryable(err) { ... }
//	if errors.IsUserFacing(err) { ... }
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: transient errors that may succeed on a later scheduling pass
//   - UserFacing: errors safe to display to operators (vs internal errors)
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Workflow-related sentinel errors
var (
	// ErrIllegalTransition indicates a command not present in the transition table.
	ErrIllegalTransition = New("illegal transition")
	// ErrBlockedByActiveCycles indicates sprint review was attempted with cycles still running.
	ErrBlockedByActiveCycles = New("blocked by active cycles")
	// ErrWorkflowNotFound indicates that a workflow instance could not be found.
	ErrWorkflowNotFound = New("workflow not found")
	// ErrWorkflowPaused indicates that scheduling is suspended by PauseAll.
	ErrWorkflowPaused = New("workflow is paused")
)

// Cycle-related sentinel errors
var (
	// ErrCycleNotFound indicates that no cycle exists for the story.
	ErrCycleNotFound = New("cycle not found")
	// ErrCycleExists indicates that a cycle is already running for the story.
	ErrCycleExists = New("cycle already exists")
	// ErrCycleBlocked indicates the three-strike limit was exhausted.
	ErrCycleBlocked = New("cycle is blocked")
	// ErrCycleNotBlocked indicates an unblock was requested for a cycle that is not blocked.
	ErrCycleNotBlocked = New("cycle is not blocked")
	// ErrCycleCancelling indicates the cycle is draining after a cancel request.
	ErrCycleCancelling = New("cycle is cancelling")
	// ErrPhaseTimeout indicates an agent invocation exceeded its deadline.
	ErrPhaseTimeout = New("phase timed out")
)

// Lock-related sentinel errors
var (
	// ErrLockUnavailable indicates at least one requested resource is held incompatibly.
	ErrLockUnavailable = New("lock unavailable")
	// ErrNotHolder indicates a release or renew by a cycle that holds nothing.
	ErrNotHolder = New("cycle holds no locks")
	// ErrLeaseExpired indicates the lock lease lapsed before renewal.
	ErrLeaseExpired = New("lock lease expired")
)

// Pool-related sentinel errors
var (
	// ErrPoolExhausted indicates no worker capacity within configured limits.
	ErrPoolExhausted = New("worker pool exhausted")
	// ErrUnknownCapability indicates a request for a capability the pool does not stock.
	ErrUnknownCapability = New("unknown capability")
	// ErrWorkerNotFound indicates that a worker could not be found.
	ErrWorkerNotFound = New("worker not found")
)

// Persistence-related sentinel errors
var (
	// ErrPersistenceFailure indicates a checkpoint write or read failed.
	ErrPersistenceFailure = New("persistence failure")
	// ErrNoCheckpoint indicates no checkpoint has been saved for the workflow.
	ErrNoCheckpoint = New("no checkpoint found")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// RedgreenError is the base interface for all Redgreen errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type RedgreenError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	// This is used by errors.Is() for error comparison.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on a later scheduling pass.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to operators.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show operators.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// TransitionError represents a state machine rejecting a command, either at
// the workflow layer or the cycle layer.
//
// Example:
//
//	err := errors.NewTransitionError("cannot finish sprint", errors.ErrBlockedByActiveCycles)
//	err = err.WithState("SPRINT_ACTIVE").WithTrigger("FinishSprint")
type TransitionError struct {
	baseError
	State        string
	Trigger      string
	ActiveCycles int
}

// NewTransitionError creates a new TransitionError.
func NewTransitionError(message string, cause error) *TransitionError {
	return &TransitionError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ActiveCycles: -1, // -1 indicates not set
	}
}

// WithState adds the current state to the error context.
func (e *TransitionError) WithState(state string) *TransitionError {
	e.State = state
	return e
}

// WithTrigger adds the rejected trigger to the error context.
func (e *TransitionError) WithTrigger(trigger string) *TransitionError {
	e.Trigger = trigger
	return e
}

// WithActiveCycles records how many cycles were running at rejection time.
func (e *TransitionError) WithActiveCycles(n int) *TransitionError {
	e.ActiveCycles = n
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *TransitionError) WithRetryable(r bool) *TransitionError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *TransitionError) Error() string {
	var parts []string
	if e.State != "" {
		parts = append(parts, fmt.Sprintf("state=%s", e.State))
	}
	if e.Trigger != "" {
		parts = append(parts, fmt.Sprintf("trigger=%s", e.Trigger))
	}
	if e.ActiveCycles >= 0 {
		parts = append(parts, fmt.Sprintf("active_cycles=%d", e.ActiveCycles))
	}

	prefix := "transition error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("transition error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *TransitionError) Is(target error) bool {
	if _, ok := target.(*TransitionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// CycleError represents errors in a running TDD cycle.
//
// Example:
//
//	err := errors.NewCycleError("phase failed", errors.ErrPhaseTimeout)
//	err = err.WithStoryID("AUTH-12").WithPhase("CODE_GREEN").WithStrikes(2)
type CycleError struct {
	baseError
	StoryID string
	Phase   string
	Strikes int
}

// NewCycleError creates a new CycleError.
func NewCycleError(message string, cause error) *CycleError {
	return &CycleError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		Strikes: -1, // -1 indicates not set
	}
}

// WithStoryID adds a story ID to the error context.
func (e *CycleError) WithStoryID(id string) *CycleError {
	e.StoryID = id
	return e
}

// WithPhase adds the cycle phase to the error context.
func (e *CycleError) WithPhase(phase string) *CycleError {
	e.Phase = phase
	return e
}

// WithStrikes records the consecutive-failure count at error time.
func (e *CycleError) WithStrikes(n int) *CycleError {
	e.Strikes = n
	return e
}

// WithSeverity sets the error severity.
func (e *CycleError) WithSeverity(s Severity) *CycleError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *CycleError) WithRetryable(r bool) *CycleError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *CycleError) Error() string {
	var parts []string
	if e.StoryID != "" {
		parts = append(parts, fmt.Sprintf("story=%s", e.StoryID))
	}
	if e.Phase != "" {
		parts = append(parts, fmt.Sprintf("phase=%s", e.Phase))
	}
	if e.Strikes >= 0 {
		parts = append(parts, fmt.Sprintf("strikes=%d", e.Strikes))
	}

	prefix := "cycle error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("cycle error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *CycleError) Is(target error) bool {
	if _, ok := target.(*CycleError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// LockError represents errors from resource lock acquisition and leasing.
//
// Example:
//
//	err := errors.NewLockError("acquire failed", errors.ErrLockUnavailable)
//	err = err.WithCycleID("cycle-AUTH-12").WithResources([]string{"internal/auth/token.go"})
type LockError struct {
	baseError
	CycleID   string
	Resources []string
	Mode      string
}

// NewLockError creates a new LockError.
func NewLockError(message string, cause error) *LockError {
	return &LockError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  true, // contention clears when the holder releases
			userFacing: true,
		},
	}
}

// WithCycleID adds the requesting cycle to the error context.
func (e *LockError) WithCycleID(id string) *LockError {
	e.CycleID = id
	return e
}

// WithResources adds the contended resources to the error context.
func (e *LockError) WithResources(resources []string) *LockError {
	e.Resources = resources
	return e
}

// WithMode adds the requested lock mode to the error context.
func (e *LockError) WithMode(mode string) *LockError {
	e.Mode = mode
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *LockError) WithRetryable(r bool) *LockError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *LockError) Error() string {
	var parts []string
	if e.CycleID != "" {
		parts = append(parts, fmt.Sprintf("cycle=%s", e.CycleID))
	}
	if len(e.Resources) > 0 {
		parts = append(parts, fmt.Sprintf("resources=%s", strings.Join(e.Resources, ",")))
	}
	if e.Mode != "" {
		parts = append(parts, fmt.Sprintf("mode=%s", e.Mode))
	}

	prefix := "lock error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("lock error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *LockError) Is(target error) bool {
	if _, ok := target.(*LockError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// PoolError represents errors from worker pool acquisition and scaling.
//
// Example:
//
//	err := errors.NewPoolError("no capacity", errors.ErrPoolExhausted)
//	err = err.WithCapability("test").WithPoolSize(3, 3)
type PoolError struct {
	baseError
	Capability string
	Size       int
	Max        int
}

// NewPoolError creates a new PoolError.
func NewPoolError(message string, cause error) *PoolError {
	return &PoolError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  true, // capacity frees up as cycles complete
			userFacing: true,
		},
		Size: -1,
		Max:  -1,
	}
}

// WithCapability adds the requested capability to the error context.
func (e *PoolError) WithCapability(capability string) *PoolError {
	e.Capability = capability
	return e
}

// WithPoolSize records pool occupancy at error time.
func (e *PoolError) WithPoolSize(size, max int) *PoolError {
	e.Size = size
	e.Max = max
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *PoolError) WithRetryable(r bool) *PoolError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *PoolError) Error() string {
	var parts []string
	if e.Capability != "" {
		parts = append(parts, fmt.Sprintf("capability=%s", e.Capability))
	}
	if e.Size >= 0 && e.Max >= 0 {
		parts = append(parts, fmt.Sprintf("size=%d/%d", e.Size, e.Max))
	}

	prefix := "pool error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("pool error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *PoolError) Is(target error) bool {
	if _, ok := target.(*PoolError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// PersistenceError represents errors reading or writing checkpoints.
// These are the only errors that escalate past the coordinator loop: a
// failed save puts the workflow into degraded mode until a save succeeds.
//
// Example:
//
//	err := errors.NewPersistenceError("checkpoint save failed", cause)
//	err = err.WithWorkflowID("proj-1").WithOp("save")
type PersistenceError struct {
	baseError
	WorkflowID string
	Op         string
	Path       string
}

// NewPersistenceError creates a new PersistenceError.
func NewPersistenceError(message string, cause error) *PersistenceError {
	return &PersistenceError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityCritical,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithWorkflowID adds the workflow to the error context.
func (e *PersistenceError) WithWorkflowID(id string) *PersistenceError {
	e.WorkflowID = id
	return e
}

// WithOp adds the failing operation ("save" or "load") to the error context.
func (e *PersistenceError) WithOp(op string) *PersistenceError {
	e.Op = op
	return e
}

// WithPath adds the storage path to the error context.
func (e *PersistenceError) WithPath(path string) *PersistenceError {
	e.Path = path
	return e
}

// Error returns the formatted error message.
func (e *PersistenceError) Error() string {
	var parts []string
	if e.WorkflowID != "" {
		parts = append(parts, fmt.Sprintf("workflow=%s", e.WorkflowID))
	}
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}

	prefix := "persistence error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("persistence error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *PersistenceError) Is(target error) bool {
	if _, ok := target.(*PersistenceError); ok {
		return true
	}
	if errors.Is(target, ErrPersistenceFailure) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("story", "AUTH-12")
//	fmt.Println(err) // "story 'AUTH-12' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a resource that already exists.
//
// Example:
//
//	err := errors.NewAlreadyExistsError("cycle", "AUTH-12")
//	fmt.Println(err) // "cycle 'AUTH-12' already exists"
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' already exists", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *AlreadyExistsError) WithCause(cause error) *AlreadyExistsError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *AlreadyExistsError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' already exists: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' already exists", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("story ID cannot be empty")
//	err = err.WithField("id").WithValue("")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	// Empty values carry no diagnostic weight; the field name alone
	// reads better than "value=".
	if v := fmt.Sprintf("%v", e.Value); e.Value != nil && v != "" {
		parts = append(parts, "value="+v)
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for agent output", 30*time.Second)
//	fmt.Println(err) // "timeout error: waiting for agent output (timeout: 30s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true, // Timeouts are generally retryable
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// WithRetryable sets whether the error is retryable (default true for timeouts).
func (e *TimeoutError) WithRetryable(r bool) *TimeoutError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on a later scheduling pass. This checks for:
//   - Errors implementing RedgreenError with IsRetryable() returning true
//   - Errors wrapping ErrLockUnavailable, ErrPoolExhausted, or ErrPhaseTimeout
//   - Errors wrapping ErrTimeout
//
// Example:
//
//	if errors.IsRetryable(err) {
//	    keepQueued(story)
//	}
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Check if error implements RedgreenError
	var rgErr RedgreenError
	if As(err, &rgErr) {
		return rgErr.IsRetryable()
	}

	// Check for known retryable sentinel errors
	if Is(err, ErrTimeout) || Is(err, ErrLockUnavailable) ||
		Is(err, ErrPoolExhausted) || Is(err, ErrPhaseTimeout) {
		return true
	}

	return false
}

// IsUserFacing returns true if the error message is safe to display to operators.
// This checks for:
//   - Errors implementing RedgreenError with IsUserFacing() returning true
//   - Semantic errors (NotFoundError, AlreadyExistsError, ValidationError, TimeoutError)
//
// Example:
//
//	if errors.IsUserFacing(err) {
//	    fmt.Fprintln(os.Stderr, err)
//	} else {
//	    log.Error("internal error", "err", err)
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	// Check if error implements RedgreenError
	var rgErr RedgreenError
	if As(err, &rgErr) {
		return rgErr.IsUserFacing()
	}

	// Semantic errors are always user-facing
	var notFound *NotFoundError
	var alreadyExists *AlreadyExistsError
	var validation *ValidationError
	var timeout *TimeoutError

	if As(err, &notFound) || As(err, &alreadyExists) ||
		As(err, &validation) || As(err, &timeout) {
		return true
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement RedgreenError.
//
// Example:
//
//	switch errors.GetSeverity(err) {
//	case errors.SeverityCritical:
//	    haltScheduling(err)
//	case errors.SeverityError:
//	    log.Error("error occurred", "err", err)
//	case errors.SeverityWarning:
//	    log.Warn("warning", "err", err)
//	}
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	// Check if error implements RedgreenError
	var rgErr RedgreenError
	if As(err, &rgErr) {
		return rgErr.Severity()
	}

	// Default to Error severity for unknown errors
	return SeverityError
}

// IsDomainError returns true if the error is a domain-specific error
// (TransitionError, CycleError, LockError, PoolError, or PersistenceError).
func IsDomainError(err error) bool {
	if err == nil {
		return false
	}

	var transitionErr *TransitionError
	var cycleErr *CycleError
	var lockErr *LockError
	var poolErr *PoolError
	var persistErr *PersistenceError

	return As(err, &transitionErr) || As(err, &cycleErr) ||
		As(err, &lockErr) || As(err, &poolErr) || As(err, &persistErr)
}

// IsSemanticError returns true if the error is a semantic error
// (NotFoundError, AlreadyExistsError, ValidationError, or TimeoutError).
func IsSemanticError(err error) bool {
	if err == nil {
		return false
	}

	var notFound *NotFoundError
	var alreadyExists *AlreadyExistsError
	var validation *ValidationError
	var timeout *TimeoutError

	return As(err, &notFound) || As(err, &alreadyExists) ||
		As(err, &validation) || As(err, &timeout)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike fmt.Errorf with %w, this preserves the RedgreenError interface.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to start cycle")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to start cycle for story %s", storyID)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

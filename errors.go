package dbquery

import (
	"errors"
	"fmt"

	"github.com/syssam/dbquery/dialect"
)

// Standard sentinel errors for common misuse.
var (
	// ErrNoTransaction is returned when AbortTransaction is called outside
	// any transaction scope.
	ErrNoTransaction = errors.New("dbquery: no transaction in progress")

	// ErrMissingMetadata is returned by row formatters that need column
	// metadata when the cursor carries none.
	ErrMissingMetadata = errors.New("dbquery: no column metadata available")

	// errAbort is the internal abort marker. It unwinds through nested scope
	// exits and is consumed by the outermost one after the rollback.
	errAbort = errors.New("dbquery: aborting transaction")
)

// IsAborting reports whether err is the transaction abort signal. Nested
// scope bodies can use it to tell a deliberate abort from a real failure
// while the transaction unwinds.
func IsAborting(err error) bool {
	return errors.Is(err, errAbort)
}

// IsOperational reports whether err is a backend connection-level failure.
func IsOperational(err error) bool {
	return dialect.IsOperational(err)
}

// ManipulationCheckError is returned when a Manipulation reports an
// affected-row count different from the expected one. It is never retried.
type ManipulationCheckError struct {
	Expected int64
	Actual   int64
}

// Error returns the error string.
func (e *ManipulationCheckError) Error() string {
	return fmt.Sprintf("dbquery: row count was %d, expected %d", e.Actual, e.Expected)
}

// IsManipulationCheck returns true if the error is a ManipulationCheckError.
func IsManipulationCheck(err error) bool {
	if err == nil {
		return false
	}
	var e *ManipulationCheckError
	return errors.As(err, &e)
}

// ConnectionStateError reports a connection lifecycle misuse, such as
// connecting a handle that is already connected. It is fatal, never retried.
type ConnectionStateError struct {
	State string
}

// Error returns the error string.
func (e *ConnectionStateError) Error() string {
	return fmt.Sprintf("dbquery: illegal connection state: %s", e.State)
}

// IsConnectionState returns true if the error is a ConnectionStateError.
func IsConnectionState(err error) bool {
	if err == nil {
		return false
	}
	var e *ConnectionStateError
	return errors.As(err, &e)
}

// ConnectionLostError is returned when a transaction control operation runs
// against an absent connection. A transaction cannot be resumed on a new
// connection, so this is fatal.
type ConnectionLostError struct {
	Op string
}

// Error returns the error string.
func (e *ConnectionLostError) Error() string {
	return fmt.Sprintf("dbquery: connection lost, can not %s", e.Op)
}

// IsConnectionLost returns true if the error is a ConnectionLostError.
func IsConnectionLost(err error) bool {
	if err == nil {
		return false
	}
	var e *ConnectionLostError
	return errors.As(err, &e)
}

// UnbalancedScopeError reports more scope exits than entries. The handle
// resets its depth to zero before returning it, but the caller has a bug.
type UnbalancedScopeError struct {
	Depth int
}

// Error returns the error string.
func (e *UnbalancedScopeError) Error() string {
	return fmt.Sprintf("dbquery: illegal transaction scope level %d", e.Depth)
}

// IsUnbalancedScope returns true if the error is an UnbalancedScopeError.
func IsUnbalancedScope(err error) bool {
	if err == nil {
		return false
	}
	var e *UnbalancedScopeError
	return errors.As(err, &e)
}

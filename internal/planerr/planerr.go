// Package planerr defines the sentinel error taxonomy shared by the plan
// library, the intention boundary, and the agent loop. Errors are checked
// with errors.Is/errors.As rather than an exception hierarchy.
package planerr

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPath is returned when the pathfinder cannot reach a destination.
	ErrNoPath = errors.New("no path found")
	// ErrNoApplicablePlan is returned when no plan in the library matches a predicate.
	ErrNoApplicablePlan = errors.New("no applicable plan")
	// ErrStopped is the cooperative-cancellation signal. It is never surfaced
	// to a caller outside the intention/plan boundary.
	ErrStopped = errors.New("stopped")
	// ErrProtocolViolation marks a coordination-protocol assumption broken
	// badly enough that the worker cannot safely continue.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrMalformedPredicate is returned when a predicate is missing required fields.
	ErrMalformedPredicate = errors.New("malformed predicate")
	// ErrUnknownTileType is a hard error raised during map initialization.
	ErrUnknownTileType = errors.New("unknown tile type")
)

// TransientMoveError wraps a failed move/pickup/putdown RPC that the plan
// layer retries locally before giving up and replanning.
type TransientMoveError struct {
	Op  string
	Err error
}

func (e *TransientMoveError) Error() string {
	return fmt.Sprintf("transient failure on %s: %v", e.Op, e.Err)
}

func (e *TransientMoveError) Unwrap() error { return e.Err }

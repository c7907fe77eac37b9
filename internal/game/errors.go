package game

import (
	"errors"
	"fmt"
)

// Domain errors report caller mistakes. They never crash the actor.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
	ErrAlreadyStarted  = errors.New("game already started")
	ErrNoActiveRound   = errors.New("no active round")
)

// ErrInvariant marks an unrecoverable internal defect, distinct from domain
// errors so callers can tell a caller mistake from a broken system. Check
// with errors.Is.
var ErrInvariant = errors.New("invariant violation")

func invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}

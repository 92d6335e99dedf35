package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrMatchNotFound  = errors.New("match not found")
)

// ValidationError rejects a request before anything is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// CommitError means the store rejected the atomic match+ratings write.
// Nothing was persisted; the caller may retry.
type CommitError struct {
	MatchID string
	Err     error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit of match %s failed: %v", e.MatchID, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// ReplayError means the recomputation engine hit a malformed match
// mid-stream. The ledger keeps its pre-replay state.
type ReplayError struct {
	MatchID string
	Reason  string
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("replay aborted at match %s: %s", e.MatchID, e.Reason)
}

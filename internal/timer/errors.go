package timer

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition marks a call made in a phase that does not allow it.
	ErrInvalidTransition = errors.New("invalid timer transition")

	// ErrPersistence marks a session write that neither succeeded nor was queued.
	ErrPersistence = errors.New("session persistence failed")
)

// TransitionError reports which operation was refused and in which phase.
type TransitionError struct {
	Op    string
	Phase Phase
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s timer while %s", e.Op, e.Phase)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

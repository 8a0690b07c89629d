package repository

import "errors"

var (
	// ErrEventNotPending means an event is no longer eligible for the transition
	// being attempted (e.g. lobby-open requested on an already-started event).
	ErrEventNotPending = errors.New("event is not in a pending state")
)

package router

import "errors"

// Sentinel errors for the router.
var (
	// ErrInvalidPattern is returned when a subscription pattern is empty or malformed.
	ErrInvalidPattern = errors.New("invalid topic pattern")

	// ErrNilHandler is returned when a nil handler is provided.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrSubscriptionNotFound is returned when trying to unsubscribe a non-existent subscription.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrLoopClosed is returned when posting to a closed loop.
	ErrLoopClosed = errors.New("dispatch loop is closed")
)

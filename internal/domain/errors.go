package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrOrderNotFound is returned by the store when an order id is unknown.
	ErrOrderNotFound = errors.New("order not found")

	// ErrEmptyOrder rejects saving an order with no items.
	ErrEmptyOrder = errors.New("order must contain at least one item")

	// ErrAlreadyConnected is returned when a second session tries to claim
	// the device while one is live. The caller must disconnect or wait;
	// requests are never queued.
	ErrAlreadyConnected = errors.New("device already claimed by an active session")

	// ErrNotConnected signals an operation that needs a live device connection.
	ErrNotConnected = errors.New("session is not connected")

	// ErrAppNotReady signals an item operation issued before openApp succeeded.
	ErrAppNotReady = errors.New("target app is not ready")

	// ErrElementNotFound signals a UI element that never rendered within the
	// bounded wait. For item additions this maps to ItemNotFound, not a
	// session failure.
	ErrElementNotFound = errors.New("ui element not found")
)

// TranscriptionError wraps a failed remote speech-to-text call. It is
// surfaced to the caller as-is and never retried by the orchestrator.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription failed: %v", e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

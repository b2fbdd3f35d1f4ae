package future

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Settlement errors.
var (
	// ErrNoOutcome is returned by Settle when neither a value nor a cause
	// is supplied.
	ErrNoOutcome = errors.New("settle requires a value or a cause")

	// ErrBothOutcomes is returned by Settle when both a value and a cause
	// are supplied.
	ErrBothOutcomes = errors.New("settle accepts a value or a cause, not both")

	// ErrAlreadyDone is returned by Settle when the future has already
	// reached a terminal state, including cancellation.
	ErrAlreadyDone = errors.New("future already settled")

	// ErrCancelled is the outcome observed by waiters and continuations
	// after a successful Cancel.
	ErrCancelled = errors.New("future was cancelled")

	// ErrTimeout is returned by AwaitTimeout when the duration elapses
	// before the future settles.
	ErrTimeout = errors.New("timed out awaiting future")
)

// ExecutionError wraps the cause a future failed with, as observed by
// Await and AwaitTimeout. Continuations receive the raw cause instead.
type ExecutionError struct {
	Cause error
}

// Error returns the error message.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("future failed: %v", e.Cause)
}

// Unwrap returns the original cause.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// state is the lifecycle state of a Future.
type state uint8

const (
	statePending state = iota
	stateCompleted
	stateFailed
	stateCancelled
)

// Future is a single-assignment result container. The zero value is not
// usable; create instances with New.
//
// Exactly one of Settle and Cancel wins the terminal transition; the
// loser observes ErrAlreadyDone or a false return. All methods are safe
// for concurrent use.
type Future[T any] struct {
	mu    sync.Mutex
	done  chan struct{}
	state state
	value *T
	cause error

	cont    func(*T, error)
	contSet bool
}

// New creates a pending future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Settle transitions the future to completed (value non-nil) or failed
// (cause non-nil). Exactly one of the two must be supplied; otherwise
// Settle returns ErrNoOutcome or ErrBothOutcomes and the future stays
// pending. Settling a future that already reached a terminal state
// returns ErrAlreadyDone without touching the recorded outcome.
//
// On success every blocked waiter is woken and a registered continuation
// is invoked synchronously, on the calling goroutine.
func (f *Future[T]) Settle(value *T, cause error) error {
	if value == nil && cause == nil {
		return ErrNoOutcome
	}
	if value != nil && cause != nil {
		return ErrBothOutcomes
	}

	f.mu.Lock()
	if f.state != statePending {
		f.mu.Unlock()
		return ErrAlreadyDone
	}
	if cause != nil {
		f.state = stateFailed
		f.cause = cause
	} else {
		f.state = stateCompleted
		f.value = value
	}
	cont := f.cont
	f.cont = nil
	close(f.done)
	f.mu.Unlock()

	if cont != nil {
		cont(value, cause)
	}
	return nil
}

// Cancel transitions a pending future to cancelled and returns true.
// If the future already reached a terminal state, Cancel returns false
// and has no effect. Blocked waiters observe ErrCancelled.
func (f *Future[T]) Cancel() bool {
	f.mu.Lock()
	if f.state != statePending {
		f.mu.Unlock()
		return false
	}
	f.state = stateCancelled
	cont := f.cont
	f.cont = nil
	close(f.done)
	f.mu.Unlock()

	if cont != nil {
		cont(nil, ErrCancelled)
	}
	return true
}

// Await blocks until the future reaches a terminal state or the context
// is done. A completed future yields its value; a failed future yields
// an *ExecutionError wrapping the cause; a cancelled future yields
// ErrCancelled. Context expiry yields ctx.Err() and leaves the future
// untouched.
func (f *Future[T]) Await(ctx context.Context) (*T, error) {
	select {
	case <-f.done:
		return f.outcome()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AwaitTimeout is Await bounded by a duration. It returns ErrTimeout if
// the future does not settle within d. A zero or negative d fails
// immediately with ErrTimeout unless the future is already terminal.
func (f *Future[T]) AwaitTimeout(d time.Duration) (*T, error) {
	if d <= 0 {
		select {
		case <-f.done:
			return f.outcome()
		default:
			return nil, ErrTimeout
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-f.done:
		return f.outcome()
	case <-timer.C:
		return nil, ErrTimeout
	}
}

// IsDone reports whether the future reached any terminal state.
func (f *Future[T]) IsDone() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state != statePending
}

// IsCancelled reports whether the future was cancelled.
func (f *Future[T]) IsCancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == stateCancelled
}

// OnComplete registers fn to be invoked exactly once with the terminal
// outcome: (value, nil) when completed, (nil, cause) when failed, or
// (nil, ErrCancelled) when cancelled. If the future is already terminal
// fn runs inline on the calling goroutine; otherwise it runs on
// whichever goroutine later wins the terminal transition.
//
// A future supports at most one continuation. Registering a second one
// is a programming error and panics.
func (f *Future[T]) OnComplete(fn func(*T, error)) {
	f.mu.Lock()
	if f.contSet {
		f.mu.Unlock()
		panic("future: OnComplete called twice on the same future")
	}
	f.contSet = true

	if f.state == statePending {
		f.cont = fn
		f.mu.Unlock()
		return
	}

	value, cause := f.value, f.cause
	if f.state == stateCancelled {
		cause = ErrCancelled
	}
	f.mu.Unlock()

	fn(value, cause)
}

// outcome reads the settled result. Only valid after the done channel
// is closed.
func (f *Future[T]) outcome() (*T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case stateCompleted:
		return f.value, nil
	case stateFailed:
		return nil, &ExecutionError{Cause: f.cause}
	case stateCancelled:
		return nil, ErrCancelled
	default:
		// Unreachable: outcome is only called after the done channel
		// closed, which happens under the same lock as the transition.
		panic("future: outcome read while pending")
	}
}

// Package future provides a single-assignment, thread-safe result
// container used throughout the driver to deliver the outcome of
// asynchronous command submissions.
//
// A Future starts out pending and transitions exactly once to one of
// three terminal states: completed with a value, failed with a cause,
// or cancelled. The transition wakes every blocked waiter and fires a
// registered continuation. After the transition the outcome is
// immutable.
//
// A Future supports both consumption styles used by the driver:
// blocking callers use Await or AwaitTimeout, callback-driven code
// registers a continuation with OnComplete. Both observe the same
// terminal outcome.
package future

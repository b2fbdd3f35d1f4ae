// Package conn implements the asynchronous NimbusDB connection.
//
// A Conn multiplexes command submissions over one TCP or TLS stream.
// Submit never blocks: it frames the request, records a pending future
// keyed by request id, and returns the future. A single read loop
// decodes server replies and settles the matching future, so results
// are delivered on the read loop's goroutine. Closing the connection
// fails every pending future with ErrConnClosed.
//
// Conn implements auth.Submitter; Authenticate bridges the
// callback-driven authentication core to blocking callers.
package conn

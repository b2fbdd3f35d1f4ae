// Package auth implements NimbusDB challenge-response authentication.
//
// The Authenticator drives a SASL conversation against the server: one
// saslStart command followed by zero or more saslContinue commands,
// each submitted asynchronously through a Submitter. The negotiation
// never blocks; each round's reply arrives via a continuation on the
// submission's future, which evaluates the server challenge through
// the pluggable Mechanism and re-registers itself for the next round
// until the server reports done.
//
// Mechanisms are opaque to the conversation loop. The package ships
// PLAIN (RFC 4616) and SCRAM-SHA-256 (RFC 7677) clients; applications
// can plug in their own by implementing Mechanism.
package auth

// Package wire defines the NimbusDB client wire format.
//
// Every exchange is a length-prefixed CBOR frame. The outer envelope
// (Request/Reply) carries a request id for multiplexing and the target
// database; the inner command document names the operation. Command
// documents use the string keys the server expects (saslStart,
// saslContinue, ping); envelopes use compact integer keys.
package wire

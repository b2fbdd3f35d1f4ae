package auth

// Mechanism is a pluggable SASL negotiation state. One instance backs
// exactly one conversation: the Authenticator creates it at the start
// of Authenticate and disposes it exactly once on every terminal path.
// Implementations need not be thread-safe; the conversation loop never
// calls a mechanism from more than one round at a time.
type Mechanism interface {
	// Name returns the SASL mechanism name sent in saslStart.
	Name() string

	// HasInitialResponse reports whether the mechanism produces a token
	// before seeing any server challenge.
	HasInitialResponse() bool

	// EvaluateChallenge consumes a server challenge and produces the next
	// client token. A (nil, nil) return means the mechanism has no
	// response to the challenge, which the Authenticator treats as a
	// protocol error.
	EvaluateChallenge(challenge []byte) ([]byte, error)

	// Dispose releases mechanism resources. Errors are swallowed by the
	// Authenticator.
	Dispose() error
}

// MechanismFactory creates a fresh Mechanism for one conversation.
// Authenticate calls the factory once per invocation so that no
// negotiation state leaks between attempts.
type MechanismFactory func(cred Credential) (Mechanism, error)

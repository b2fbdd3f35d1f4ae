package auth

import "fmt"

// Built-in mechanism names.
const (
	MechanismPlain       = "PLAIN"
	MechanismScramSHA256 = "SCRAM-SHA-256"
)

// NewMechanism is the default MechanismFactory covering the built-in
// mechanisms, selected by the credential's mechanism name.
func NewMechanism(cred Credential) (Mechanism, error) {
	switch cred.Mechanism {
	case MechanismPlain:
		return NewPlain(cred)
	case MechanismScramSHA256:
		return NewScramSHA256(cred)
	default:
		return nil, fmt.Errorf("unsupported mechanism %q", cred.Mechanism)
	}
}

// Plain is the RFC 4616 PLAIN mechanism: a single initial token of the
// form NUL username NUL password, no further rounds.
type Plain struct {
	username string
	password string
	sent     bool
}

// NewPlain creates a PLAIN mechanism for the credential.
func NewPlain(cred Credential) (*Plain, error) {
	if cred.Username == "" {
		return nil, fmt.Errorf("PLAIN requires a username")
	}
	return &Plain{username: cred.Username, password: cred.Password}, nil
}

// Name returns "PLAIN".
func (p *Plain) Name() string {
	return MechanismPlain
}

// HasInitialResponse returns true; PLAIN sends its whole token with
// saslStart.
func (p *Plain) HasInitialResponse() bool {
	return true
}

// EvaluateChallenge produces the initial token. PLAIN is a single-shot
// mechanism; any further challenge is a protocol error.
func (p *Plain) EvaluateChallenge(challenge []byte) ([]byte, error) {
	if p.sent {
		return nil, fmt.Errorf("PLAIN accepts no server challenge")
	}
	p.sent = true

	token := make([]byte, 0, len(p.username)+len(p.password)+2)
	token = append(token, 0)
	token = append(token, p.username...)
	token = append(token, 0)
	token = append(token, p.password...)
	return token, nil
}

// Dispose clears the held password.
func (p *Plain) Dispose() error {
	p.password = ""
	return nil
}

// Compile-time interface satisfaction check.
var _ Mechanism = (*Plain)(nil)

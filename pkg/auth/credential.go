package auth

import "fmt"

// Credential identifies a user to authenticate and the mechanism to
// authenticate with. The conversation loop reads only Source and
// Mechanism; Username and Password feed the concrete mechanism.
type Credential struct {
	// Source is the database the authentication commands are addressed to.
	Source string

	// Mechanism is the SASL mechanism name, e.g. "SCRAM-SHA-256".
	Mechanism string

	// Username identifies the user.
	Username string

	// Password is the user's password. Never logged or printed.
	Password string
}

// String renders the credential without the password.
func (c Credential) String() string {
	return fmt.Sprintf("%s@%s (%s)", c.Username, c.Source, c.Mechanism)
}

// Validate checks the credential has the fields the conversation needs.
func (c Credential) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("credential source must not be empty")
	}
	if c.Mechanism == "" {
		return fmt.Errorf("credential mechanism must not be empty")
	}
	return nil
}

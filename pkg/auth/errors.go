package auth

import "fmt"

// SecurityError reports an authentication failure that originated in
// the mechanism: initial-token computation, challenge evaluation, or a
// missing response to a challenge. Transport and server failures pass
// through the Authenticator unwrapped and never take this form.
type SecurityError struct {
	Credential Credential
	Msg        string
	Cause      error
}

// Error returns the error message.
func (e *SecurityError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s for credential %s: %v", e.Msg, e.Credential, e.Cause)
	}
	return fmt.Sprintf("%s for credential %s", e.Msg, e.Credential)
}

// Unwrap returns the mechanism failure, if any.
func (e *SecurityError) Unwrap() error {
	return e.Cause
}

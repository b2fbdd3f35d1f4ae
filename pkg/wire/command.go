package wire

import "fmt"

// SaslStart opens an authentication conversation. The payload carries
// the mechanism's initial token; a mechanism without an initial
// response sends an empty byte string, never null.
type SaslStart struct {
	SaslStart int    `cbor:"saslStart"`
	Mechanism string `cbor:"mechanism"`
	Payload   []byte `cbor:"payload"`
}

// NewSaslStart builds a saslStart command. A nil token is encoded as an
// empty payload.
func NewSaslStart(mechanism string, token []byte) *SaslStart {
	if token == nil {
		token = []byte{}
	}
	return &SaslStart{SaslStart: 1, Mechanism: mechanism, Payload: token}
}

// SaslContinue advances an authentication conversation identified by
// the server-assigned conversation id.
type SaslContinue struct {
	SaslContinue   int    `cbor:"saslContinue"`
	ConversationID int32  `cbor:"conversationId"`
	Payload        []byte `cbor:"payload"`
}

// NewSaslContinue builds a saslContinue command for an established
// conversation.
func NewSaslContinue(conversationID int32, token []byte) *SaslContinue {
	if token == nil {
		token = []byte{}
	}
	return &SaslContinue{SaslContinue: 1, ConversationID: conversationID, Payload: token}
}

// Ping is the connectivity check command.
type Ping struct {
	Ping int `cbor:"ping"`
}

// NewPing builds a ping command.
func NewPing() *Ping {
	return &Ping{Ping: 1}
}

// CommandResult is the decoded body of a server reply.
type CommandResult struct {
	OK             int    `cbor:"ok"`
	ConversationID int32  `cbor:"conversationId,omitempty"`
	Done           bool   `cbor:"done,omitempty"`
	Payload        []byte `cbor:"payload,omitempty"`
	Code           int    `cbor:"code,omitempty"`
	ErrMsg         string `cbor:"errmsg,omitempty"`
}

// IsSuccess returns true if the server reported success.
func (r *CommandResult) IsSuccess() bool {
	return r.OK == 1
}

// ServerError reports a command the server rejected (ok != 1).
type ServerError struct {
	Code    int
	Message string
}

// Error returns the error message.
func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error (code %d)", e.Code)
	}
	return fmt.Sprintf("server error (code %d): %s", e.Code, e.Message)
}

// AsError converts a failed command result into a *ServerError, or nil
// for a successful result.
func (r *CommandResult) AsError() error {
	if r.IsSuccess() {
		return nil
	}
	return &ServerError{Code: r.Code, Message: r.ErrMsg}
}

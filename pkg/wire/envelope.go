package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Request represents a command submission from client to server.
//
// CBOR encoding:
//
//	{
//	  1: requestId,   // uint32, non-zero, matches the reply
//	  2: database,    // text, the database the command is addressed to
//	  3: command      // encoded command document
//	}
type Request struct {
	RequestID uint32          `cbor:"1,keyasint"`
	Database  string          `cbor:"2,keyasint"`
	Command   cbor.RawMessage `cbor:"3,keyasint"`
}

// Validate checks if the request envelope is valid.
func (r *Request) Validate() error {
	if r.RequestID == 0 {
		return fmt.Errorf("requestId 0 is reserved")
	}
	if r.Database == "" {
		return fmt.Errorf("database must not be empty")
	}
	if len(r.Command) == 0 {
		return fmt.Errorf("command document must not be empty")
	}
	return nil
}

// Reply represents the server's reply to one request.
//
// CBOR encoding:
//
//	{
//	  1: requestId,   // uint32, copied from the request
//	  2: body         // encoded command result document
//	}
type Reply struct {
	RequestID uint32          `cbor:"1,keyasint"`
	Body      cbor.RawMessage `cbor:"2,keyasint"`
}

// Validate checks if the reply envelope is valid.
func (r *Reply) Validate() error {
	if r.RequestID == 0 {
		return fmt.Errorf("requestId 0 is reserved")
	}
	if len(r.Body) == 0 {
		return fmt.Errorf("reply body must not be empty")
	}
	return nil
}

// NewRequest builds a request envelope around an encoded command
// document.
func NewRequest(requestID uint32, database string, command any) (*Request, error) {
	raw, err := Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("failed to encode command: %w", err)
	}
	return &Request{
		RequestID: requestID,
		Database:  database,
		Command:   raw,
	}, nil
}

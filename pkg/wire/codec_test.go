package wire

import (
	"bytes"
	"testing"
)

func TestRequestRoundTrip(t *testing.T) {
	req, err := NewRequest(7, "admin", NewSaslStart("PLAIN", []byte("tok")))
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}

	data, err := EncodeRequest(req)
	if err != nil {
		t.Fatalf("EncodeRequest failed: %v", err)
	}

	got, err := DecodeRequest(data)
	if err != nil {
		t.Fatalf("DecodeRequest failed: %v", err)
	}
	if got.RequestID != 7 || got.Database != "admin" {
		t.Errorf("envelope fields lost: %+v", got)
	}

	var cmd SaslStart
	if err := Unmarshal(got.Command, &cmd); err != nil {
		t.Fatalf("failed to decode command: %v", err)
	}
	if cmd.SaslStart != 1 || cmd.Mechanism != "PLAIN" || !bytes.Equal(cmd.Payload, []byte("tok")) {
		t.Errorf("command fields lost: %+v", cmd)
	}
}

func TestRequestValidation(t *testing.T) {
	cases := []struct {
		name string
		req  Request
	}{
		{"zero request id", Request{RequestID: 0, Database: "admin", Command: []byte{0x01}}},
		{"empty database", Request{RequestID: 1, Database: "", Command: []byte{0x01}}},
		{"empty command", Request{RequestID: 1, Database: "admin"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.req.Validate(); err == nil {
				t.Error("Validate should fail")
			}
		})
	}
}

func TestSaslStartAbsentTokenIsEmptyPayload(t *testing.T) {
	cmd := NewSaslStart("SCRAM-SHA-256", nil)
	if cmd.Payload == nil || len(cmd.Payload) != 0 {
		t.Fatalf("absent token must encode as empty bytes, got %v", cmd.Payload)
	}

	data, err := Marshal(cmd)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	// The payload must travel as a byte string, not CBOR null.
	var fields map[string]any
	if err := Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	payload, isBytes := fields["payload"].([]byte)
	if !isBytes {
		t.Fatalf("payload encoded as %T, want byte string", fields["payload"])
	}
	if len(payload) != 0 {
		t.Errorf("payload = %v, want empty", payload)
	}
}

func TestSaslContinueCarriesConversationID(t *testing.T) {
	cmd := NewSaslContinue(42, []byte{0xde, 0xad})

	data, err := Marshal(cmd)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var decoded SaslContinue
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.ConversationID != 42 {
		t.Errorf("conversationId = %d, want 42", decoded.ConversationID)
	}
	if decoded.SaslContinue != 1 {
		t.Errorf("saslContinue = %d, want 1", decoded.SaslContinue)
	}
}

func TestCommandResultAsError(t *testing.T) {
	ok := &CommandResult{OK: 1, ConversationID: 1, Done: true}
	if err := ok.AsError(); err != nil {
		t.Errorf("successful result yielded error: %v", err)
	}

	failed := &CommandResult{OK: 0, Code: 18, ErrMsg: "authentication failed"}
	err := failed.AsError()
	if err == nil {
		t.Fatal("failed result should yield an error")
	}
	srvErr, isServer := err.(*ServerError)
	if !isServer {
		t.Fatalf("AsError = %T, want *ServerError", err)
	}
	if srvErr.Code != 18 {
		t.Errorf("code = %d, want 18", srvErr.Code)
	}
}

func TestReplyValidation(t *testing.T) {
	rep := &Reply{RequestID: 0, Body: []byte{0x01}}
	if err := rep.Validate(); err == nil {
		t.Error("reply with requestId 0 should be invalid")
	}
	rep = &Reply{RequestID: 3}
	if err := rep.Validate(); err == nil {
		t.Error("reply without body should be invalid")
	}
}

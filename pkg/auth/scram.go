package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// scramStep tracks progress through the SCRAM exchange.
type scramStep int

const (
	scramClientFirst scramStep = iota // next token: client-first-message
	scramClientFinal                  // next token: client-final-message
	scramVerify                       // next challenge: server-final-message
	scramFinished
)

// ScramSHA256 is an RFC 5802 / RFC 7677 SCRAM-SHA-256 client.
//
// The exchange spans three rounds on the wire: saslStart carries the
// client-first-message, the first saslContinue answers the server's
// salt and nonce with the client proof, and a final empty saslContinue
// acknowledges the verified server signature.
type ScramSHA256 struct {
	username string
	password string

	step            scramStep
	clientNonce     string
	clientFirstBare string
	serverSignature []byte
}

// NewScramSHA256 creates a SCRAM-SHA-256 mechanism for the credential.
func NewScramSHA256(cred Credential) (*ScramSHA256, error) {
	if cred.Username == "" {
		return nil, fmt.Errorf("SCRAM-SHA-256 requires a username")
	}
	if cred.Password == "" {
		return nil, fmt.Errorf("SCRAM-SHA-256 requires a password")
	}

	nonce := make([]byte, 18)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate client nonce: %w", err)
	}

	return &ScramSHA256{
		username:    cred.Username,
		password:    cred.Password,
		clientNonce: base64.StdEncoding.EncodeToString(nonce),
	}, nil
}

// Name returns "SCRAM-SHA-256".
func (s *ScramSHA256) Name() string {
	return MechanismScramSHA256
}

// HasInitialResponse returns true; the client-first-message travels in
// saslStart.
func (s *ScramSHA256) HasInitialResponse() bool {
	return true
}

// EvaluateChallenge advances the exchange by one step.
func (s *ScramSHA256) EvaluateChallenge(challenge []byte) ([]byte, error) {
	switch s.step {
	case scramClientFirst:
		s.step = scramClientFinal
		s.clientFirstBare = "n=" + escapeUsername(s.username) + ",r=" + s.clientNonce
		return []byte("n,," + s.clientFirstBare), nil

	case scramClientFinal:
		s.step = scramVerify
		return s.clientFinal(string(challenge))

	case scramVerify:
		s.step = scramFinished
		if err := s.verifyServerFinal(string(challenge)); err != nil {
			return nil, err
		}
		// Empty acknowledgement; the server replies done.
		return []byte{}, nil

	default:
		return nil, fmt.Errorf("unexpected challenge after completed exchange")
	}
}

// clientFinal consumes the server-first-message and produces the
// client-final-message carrying the proof.
func (s *ScramSHA256) clientFinal(serverFirst string) ([]byte, error) {
	attrs, err := parseScramAttributes(serverFirst)
	if err != nil {
		return nil, fmt.Errorf("invalid server-first-message: %w", err)
	}

	serverNonce := attrs["r"]
	if !strings.HasPrefix(serverNonce, s.clientNonce) || serverNonce == s.clientNonce {
		return nil, fmt.Errorf("server nonce does not extend client nonce")
	}

	salt, err := base64.StdEncoding.DecodeString(attrs["s"])
	if err != nil {
		return nil, fmt.Errorf("invalid salt: %w", err)
	}

	iterations, err := strconv.Atoi(attrs["i"])
	if err != nil || iterations < 1 {
		return nil, fmt.Errorf("invalid iteration count %q", attrs["i"])
	}

	saltedPassword := pbkdf2.Key([]byte(s.password), salt, iterations, sha256.Size, sha256.New)
	clientKey := hmacSHA256(saltedPassword, "Client Key")
	storedKey := sha256.Sum256(clientKey)

	withoutProof := "c=biws,r=" + serverNonce
	authMessage := s.clientFirstBare + "," + serverFirst + "," + withoutProof

	clientSignature := hmacSHA256(storedKey[:], authMessage)
	proof := make([]byte, len(clientKey))
	for i := range clientKey {
		proof[i] = clientKey[i] ^ clientSignature[i]
	}

	serverKey := hmacSHA256(saltedPassword, "Server Key")
	s.serverSignature = hmacSHA256(serverKey, authMessage)

	return []byte(withoutProof + ",p=" + base64.StdEncoding.EncodeToString(proof)), nil
}

// verifyServerFinal checks the server signature in the
// server-final-message.
func (s *ScramSHA256) verifyServerFinal(serverFinal string) error {
	attrs, err := parseScramAttributes(serverFinal)
	if err != nil {
		return fmt.Errorf("invalid server-final-message: %w", err)
	}
	if errMsg, failed := attrs["e"]; failed {
		return fmt.Errorf("server rejected authentication: %s", errMsg)
	}

	signature, err := base64.StdEncoding.DecodeString(attrs["v"])
	if err != nil {
		return fmt.Errorf("invalid server signature encoding: %w", err)
	}
	if !hmac.Equal(signature, s.serverSignature) {
		return fmt.Errorf("server signature mismatch")
	}
	return nil
}

// Dispose clears the held password and derived key material.
func (s *ScramSHA256) Dispose() error {
	s.password = ""
	for i := range s.serverSignature {
		s.serverSignature[i] = 0
	}
	s.serverSignature = nil
	s.step = scramFinished
	return nil
}

// parseScramAttributes splits a SCRAM message into its attr=value
// pairs.
func parseScramAttributes(msg string) (map[string]string, error) {
	attrs := make(map[string]string)
	for _, field := range strings.Split(msg, ",") {
		key, value, found := strings.Cut(field, "=")
		if !found || len(key) != 1 {
			return nil, fmt.Errorf("malformed attribute %q", field)
		}
		attrs[key] = value
	}
	return attrs, nil
}

// escapeUsername applies the RFC 5802 username escaping.
func escapeUsername(name string) string {
	name = strings.ReplaceAll(name, "=", "=3D")
	return strings.ReplaceAll(name, ",", "=2C")
}

func hmacSHA256(key []byte, msg string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}

// Compile-time interface satisfaction check.
var _ Mechanism = (*ScramSHA256)(nil)

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"

	"golang.org/x/crypto/pbkdf2"
)

const (
	scramTestIterations = 4096
	scramTestSalt       = "nimbus-test-salt"
)

// scramServer simulates the server side of one SCRAM-SHA-256 exchange
// so the client can be tested without a connection.
type scramServer struct {
	t        *testing.T
	password string

	serverNonce string
	authMessage string
	serverKey   []byte
}

func (s *scramServer) first(clientFirst string) string {
	s.t.Helper()

	bare, found := strings.CutPrefix(clientFirst, "n,,")
	if !found {
		s.t.Fatalf("client-first-message %q lacks GS2 header", clientFirst)
	}
	attrs, err := parseScramAttributes(bare)
	if err != nil {
		s.t.Fatalf("bad client-first-message: %v", err)
	}

	s.serverNonce = attrs["r"] + "server-extension"
	serverFirst := "r=" + s.serverNonce +
		",s=" + base64.StdEncoding.EncodeToString([]byte(scramTestSalt)) +
		",i=4096"

	salted := pbkdf2.Key([]byte(s.password), []byte(scramTestSalt), scramTestIterations, sha256.Size, sha256.New)
	s.serverKey = hmacSHA256(salted, "Server Key")
	s.authMessage = bare + "," + serverFirst + ","
	return serverFirst
}

// final verifies the client proof and returns the server-final-message.
func (s *scramServer) final(clientFinal string) string {
	s.t.Helper()

	attrs, err := parseScramAttributes(clientFinal)
	if err != nil {
		s.t.Fatalf("bad client-final-message: %v", err)
	}
	if attrs["r"] != s.serverNonce {
		s.t.Fatalf("client-final nonce %q, want %q", attrs["r"], s.serverNonce)
	}

	withoutProof := strings.TrimSuffix(clientFinal, ",p="+attrs["p"])
	s.authMessage += withoutProof

	proof, err := base64.StdEncoding.DecodeString(attrs["p"])
	if err != nil {
		s.t.Fatalf("bad proof encoding: %v", err)
	}

	salted := pbkdf2.Key([]byte(s.password), []byte(scramTestSalt), scramTestIterations, sha256.Size, sha256.New)
	clientKey := hmacSHA256(salted, "Client Key")
	storedKey := sha256.Sum256(clientKey)
	clientSignature := hmacSHA256(storedKey[:], s.authMessage)

	recovered := make([]byte, len(proof))
	for i := range proof {
		recovered[i] = proof[i] ^ clientSignature[i]
	}
	recoveredStored := sha256.Sum256(recovered)
	if !hmac.Equal(recoveredStored[:], storedKey[:]) {
		s.t.Fatal("client proof does not verify")
	}

	return "v=" + base64.StdEncoding.EncodeToString(hmacSHA256(s.serverKey, s.authMessage))
}

func newScramClient(t *testing.T) *ScramSHA256 {
	t.Helper()
	client, err := NewScramSHA256(Credential{
		Source:    "admin",
		Mechanism: MechanismScramSHA256,
		Username:  "app",
		Password:  "correct horse",
	})
	if err != nil {
		t.Fatalf("NewScramSHA256 failed: %v", err)
	}
	return client
}

func TestScramFullExchange(t *testing.T) {
	client := newScramClient(t)
	server := &scramServer{t: t, password: "correct horse"}

	clientFirst, err := client.EvaluateChallenge(nil)
	if err != nil {
		t.Fatalf("client-first failed: %v", err)
	}
	if !strings.HasPrefix(string(clientFirst), "n,,n=app,r=") {
		t.Fatalf("client-first = %q", clientFirst)
	}

	clientFinal, err := client.EvaluateChallenge([]byte(server.first(string(clientFirst))))
	if err != nil {
		t.Fatalf("client-final failed: %v", err)
	}
	if !strings.HasPrefix(string(clientFinal), "c=biws,r=") {
		t.Fatalf("client-final = %q", clientFinal)
	}

	ack, err := client.EvaluateChallenge([]byte(server.final(string(clientFinal))))
	if err != nil {
		t.Fatalf("server-final verification failed: %v", err)
	}
	if ack == nil || len(ack) != 0 {
		t.Errorf("acknowledgement = %v, want empty non-nil token", ack)
	}
}

func TestScramRejectsBadServerSignature(t *testing.T) {
	client := newScramClient(t)
	server := &scramServer{t: t, password: "correct horse"}

	clientFirst, _ := client.EvaluateChallenge(nil)
	clientFinal, err := client.EvaluateChallenge([]byte(server.first(string(clientFirst))))
	if err != nil {
		t.Fatalf("client-final failed: %v", err)
	}
	server.final(string(clientFinal))

	forged := "v=" + base64.StdEncoding.EncodeToString([]byte("not the signature, padded to len"))
	if _, err := client.EvaluateChallenge([]byte(forged)); err == nil {
		t.Fatal("forged server signature must be rejected")
	}
}

func TestScramRejectsServerErrorAttribute(t *testing.T) {
	client := newScramClient(t)
	server := &scramServer{t: t, password: "correct horse"}

	clientFirst, _ := client.EvaluateChallenge(nil)
	if _, err := client.EvaluateChallenge([]byte(server.first(string(clientFirst)))); err != nil {
		t.Fatalf("client-final failed: %v", err)
	}

	if _, err := client.EvaluateChallenge([]byte("e=other-error")); err == nil {
		t.Fatal("server error attribute must be rejected")
	}
}

func TestScramRejectsNonExtendingNonce(t *testing.T) {
	client := newScramClient(t)

	if _, err := client.EvaluateChallenge(nil); err != nil {
		t.Fatalf("client-first failed: %v", err)
	}

	serverFirst := "r=unrelated-nonce,s=" +
		base64.StdEncoding.EncodeToString([]byte(scramTestSalt)) + ",i=4096"
	if _, err := client.EvaluateChallenge([]byte(serverFirst)); err == nil {
		t.Fatal("server nonce that does not extend the client nonce must be rejected")
	}
}

func TestScramRejectsMalformedServerFirst(t *testing.T) {
	cases := []struct {
		name    string
		message string
	}{
		{"no attributes", "garbage"},
		{"bad salt", "r=NONCE,s=!!!,i=4096"},
		{"bad iterations", "r=NONCE,s=c2FsdA==,i=zero"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newScramClient(t)
			first, _ := client.EvaluateChallenge(nil)

			// Splice the real client nonce in so only the attribute under
			// test is malformed.
			attrs, _ := parseScramAttributes(strings.TrimPrefix(string(first), "n,,"))
			msg := strings.ReplaceAll(tc.message, "NONCE", attrs["r"]+"x")

			if _, err := client.EvaluateChallenge([]byte(msg)); err == nil {
				t.Errorf("challenge %q should be rejected", msg)
			}
		})
	}
}

func TestScramChallengeAfterCompletion(t *testing.T) {
	client := newScramClient(t)
	server := &scramServer{t: t, password: "correct horse"}

	clientFirst, _ := client.EvaluateChallenge(nil)
	clientFinal, _ := client.EvaluateChallenge([]byte(server.first(string(clientFirst))))
	if _, err := client.EvaluateChallenge([]byte(server.final(string(clientFinal)))); err != nil {
		t.Fatalf("exchange failed: %v", err)
	}

	if _, err := client.EvaluateChallenge([]byte("anything")); err == nil {
		t.Fatal("challenge after a completed exchange must fail")
	}
}

func TestScramNonceUniquePerMechanism(t *testing.T) {
	a := newScramClient(t)
	b := newScramClient(t)
	if a.clientNonce == b.clientNonce {
		t.Fatal("two mechanism instances share a client nonce")
	}
}

func TestScramUsernameEscaping(t *testing.T) {
	client, err := NewScramSHA256(Credential{
		Source:    "admin",
		Mechanism: MechanismScramSHA256,
		Username:  "a=b,c",
		Password:  "pw",
	})
	if err != nil {
		t.Fatalf("NewScramSHA256 failed: %v", err)
	}

	first, err := client.EvaluateChallenge(nil)
	if err != nil {
		t.Fatalf("client-first failed: %v", err)
	}
	if !strings.Contains(string(first), "n=a=3Db=2Cc,") {
		t.Errorf("client-first = %q, want escaped username", first)
	}
}

func TestScramRequiresCredentials(t *testing.T) {
	if _, err := NewScramSHA256(Credential{Username: "app"}); err == nil {
		t.Error("missing password should be rejected")
	}
	if _, err := NewScramSHA256(Credential{Password: "pw"}); err == nil {
		t.Error("missing username should be rejected")
	}
}

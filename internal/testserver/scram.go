package testserver

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/nimbusdb/nimbus-go/pkg/wire"
)

// Scram implements the server side of SCRAM-SHA-256 for one user, so
// the real client mechanism can be exercised end to end. One instance
// serves one conversation.
type Scram struct {
	// Username and Password are the expected credentials.
	Username string
	Password string

	// ConversationID is assigned on the first reply (default 1).
	ConversationID int32

	// Iterations is the PBKDF2 iteration count (default 4096).
	Iterations int

	mu          sync.Mutex
	state       int
	salt        []byte
	serverNonce string
	authMessage string
	saltedPass  []byte
}

// Handler returns the Handler implementing the exchange.
func (s *Scram) Handler() Handler {
	if s.ConversationID == 0 {
		s.ConversationID = 1
	}
	if s.Iterations == 0 {
		s.Iterations = 4096
	}
	s.salt = make([]byte, 16)
	rand.Read(s.salt)
	s.saltedPass = pbkdf2.Key([]byte(s.Password), s.salt, s.Iterations, sha256.Size, sha256.New)
	return s.handle
}

func (s *Scram) handle(req *wire.Request) (any, error) {
	var probe map[string]any
	if err := wire.Unmarshal(req.Command, &probe); err != nil {
		return nil, fmt.Errorf("undecodable command: %w", err)
	}
	if _, isPing := probe["ping"]; isPing {
		return &wire.CommandResult{OK: 1}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case 0:
		var cmd wire.SaslStart
		if err := wire.Unmarshal(req.Command, &cmd); err != nil {
			return nil, err
		}
		if cmd.Mechanism != "SCRAM-SHA-256" {
			return nil, fmt.Errorf("unsupported mechanism %q", cmd.Mechanism)
		}
		serverFirst, err := s.serverFirst(string(cmd.Payload))
		if err != nil {
			return nil, err
		}
		s.state = 1
		return &wire.CommandResult{
			OK:             1,
			ConversationID: s.ConversationID,
			Payload:        []byte(serverFirst),
		}, nil

	case 1:
		var cmd wire.SaslContinue
		if err := wire.Unmarshal(req.Command, &cmd); err != nil {
			return nil, err
		}
		serverFinal, err := s.serverFinal(string(cmd.Payload))
		if err != nil {
			return nil, err
		}
		s.state = 2
		return &wire.CommandResult{
			OK:             1,
			ConversationID: s.ConversationID,
			Payload:        []byte(serverFinal),
		}, nil

	case 2:
		// Empty acknowledgement of the server signature.
		s.state = 3
		return &wire.CommandResult{
			OK:             1,
			ConversationID: s.ConversationID,
			Done:           true,
		}, nil

	default:
		return nil, fmt.Errorf("conversation already finished")
	}
}

func (s *Scram) serverFirst(clientFirst string) (string, error) {
	bare, found := strings.CutPrefix(clientFirst, "n,,")
	if !found {
		return "", fmt.Errorf("client-first-message lacks GS2 header")
	}
	attrs := scramAttrs(bare)
	if attrs["n"] != s.Username {
		return "", fmt.Errorf("unknown user %q", attrs["n"])
	}

	extension := make([]byte, 12)
	rand.Read(extension)
	s.serverNonce = attrs["r"] + base64.StdEncoding.EncodeToString(extension)

	serverFirst := fmt.Sprintf("r=%s,s=%s,i=%d",
		s.serverNonce, base64.StdEncoding.EncodeToString(s.salt), s.Iterations)
	s.authMessage = bare + "," + serverFirst + ","
	return serverFirst, nil
}

func (s *Scram) serverFinal(clientFinal string) (string, error) {
	attrs := scramAttrs(clientFinal)
	if attrs["r"] != s.serverNonce {
		return "", fmt.Errorf("nonce mismatch")
	}
	proof, err := base64.StdEncoding.DecodeString(attrs["p"])
	if err != nil {
		return "", fmt.Errorf("bad proof encoding: %w", err)
	}
	s.authMessage += strings.TrimSuffix(clientFinal, ",p="+attrs["p"])

	clientKey := serverHMAC(s.saltedPass, "Client Key")
	storedKey := sha256.Sum256(clientKey)
	clientSignature := serverHMAC(storedKey[:], s.authMessage)

	if len(proof) != len(clientSignature) {
		return "", fmt.Errorf("authentication failed")
	}
	recovered := make([]byte, len(proof))
	for i := range proof {
		recovered[i] = proof[i] ^ clientSignature[i]
	}
	recoveredStored := sha256.Sum256(recovered)
	if !hmac.Equal(recoveredStored[:], storedKey[:]) {
		return "", fmt.Errorf("authentication failed")
	}

	serverKey := serverHMAC(s.saltedPass, "Server Key")
	signature := serverHMAC(serverKey, s.authMessage)
	return "v=" + base64.StdEncoding.EncodeToString(signature), nil
}

func scramAttrs(msg string) map[string]string {
	attrs := make(map[string]string)
	for _, field := range strings.Split(msg, ",") {
		if key, value, found := strings.Cut(field, "="); found && len(key) == 1 {
			attrs[key] = value
		}
	}
	return attrs
}

func serverHMAC(key []byte, msg string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}

package testserver

import (
	"fmt"
	"sync"

	"github.com/nimbusdb/nimbus-go/pkg/wire"
)

// SASL scripts a challenge-response conversation: done=false replies
// carrying synthetic challenges until Rounds is reached, then
// done=true. It also answers ping. Zero values: one round, conversation
// id 1.
type SASL struct {
	// ConversationID is the id assigned on the first reply.
	ConversationID int32

	// Rounds is the total number of server replies before done=true.
	// 1 means saslStart completes immediately.
	Rounds int

	// DropAtRound closes the connection instead of sending reply number
	// DropAtRound. 0 disables dropping.
	DropAtRound int

	mu       sync.Mutex
	round    int
	received []any
}

// Handler returns the Handler implementing the script.
func (s *SASL) Handler() Handler {
	if s.ConversationID == 0 {
		s.ConversationID = 1
	}
	if s.Rounds == 0 {
		s.Rounds = 1
	}
	return s.handle
}

// Received returns the decoded commands seen so far, in order.
func (s *SASL) Received() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]any(nil), s.received...)
}

func (s *SASL) handle(req *wire.Request) (any, error) {
	var probe map[string]any
	if err := wire.Unmarshal(req.Command, &probe); err != nil {
		return nil, fmt.Errorf("undecodable command: %w", err)
	}

	if _, isPing := probe["ping"]; isPing {
		return &wire.CommandResult{OK: 1}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case probe["saslStart"] != nil:
		var cmd wire.SaslStart
		if err := wire.Unmarshal(req.Command, &cmd); err != nil {
			return nil, err
		}
		s.received = append(s.received, &cmd)
		if s.round != 0 {
			return nil, fmt.Errorf("saslStart on an open conversation")
		}

	case probe["saslContinue"] != nil:
		var cmd wire.SaslContinue
		if err := wire.Unmarshal(req.Command, &cmd); err != nil {
			return nil, err
		}
		s.received = append(s.received, &cmd)
		if s.round == 0 {
			return nil, fmt.Errorf("saslContinue without saslStart")
		}
		if cmd.ConversationID != s.ConversationID {
			return nil, fmt.Errorf("unknown conversationId %d", cmd.ConversationID)
		}

	default:
		return nil, fmt.Errorf("unsupported command")
	}

	s.round++
	if s.DropAtRound != 0 && s.round == s.DropAtRound {
		return nil, ErrDrop
	}

	if s.round >= s.Rounds {
		return &wire.CommandResult{OK: 1, ConversationID: s.ConversationID, Done: true}, nil
	}
	return &wire.CommandResult{
		OK:             1,
		ConversationID: s.ConversationID,
		Payload:        []byte(fmt.Sprintf("challenge-%d", s.round)),
	}, nil
}

package auth

import (
	"fmt"
	"log/slog"

	"github.com/nimbusdb/nimbus-go/pkg/future"
	"github.com/nimbusdb/nimbus-go/pkg/wire"
)

// Submitter is the asynchronous command submission capability the
// authenticator negotiates through. Submit must never block: it returns
// a future that settles with the decoded command result, a server
// rejection (*wire.ServerError), or a transport failure.
type Submitter interface {
	Submit(database string, command any) *future.Future[wire.CommandResult]
}

// Authenticator drives one challenge-response negotiation per
// Authenticate call. It is stateless between calls; every invocation
// gets a fresh mechanism from the factory and an independent
// conversation, so distinct authentications run fully concurrently.
type Authenticator struct {
	cred         Credential
	newMechanism MechanismFactory
	submitter    Submitter

	// Logger for debug output (optional)
	logger *slog.Logger
}

// NewAuthenticator creates an authenticator for one credential.
func NewAuthenticator(cred Credential, factory MechanismFactory, submitter Submitter, logger *slog.Logger) (*Authenticator, error) {
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, fmt.Errorf("mechanism factory must not be nil")
	}
	if submitter == nil {
		return nil, fmt.Errorf("submitter must not be nil")
	}
	return &Authenticator{
		cred:         cred,
		newMechanism: factory,
		submitter:    submitter,
		logger:       logger,
	}, nil
}

// Authenticate begins the negotiation. It never blocks. The outcome is
// delivered to onComplete exactly once: synchronously if the mechanism
// fails before the first submission, otherwise from whichever goroutine
// the submitter uses to settle each round's future.
//
// Exactly one saslStart and zero or more saslContinue commands are
// submitted. The mechanism is created once and disposed exactly once on
// every terminal path; disposal failures are swallowed.
func (a *Authenticator) Authenticate(onComplete func(*wire.CommandResult, error)) {
	mech, err := a.newMechanism(a.cred)
	if err != nil {
		onComplete(nil, &SecurityError{
			Credential: a.cred,
			Msg:        "failed to create mechanism",
			Cause:      err,
		})
		return
	}

	conv := &conversation{
		cred:       a.cred,
		mech:       mech,
		submitter:  a.submitter,
		logger:     a.logger,
		onComplete: onComplete,
	}

	var token []byte
	if mech.HasInitialResponse() {
		token, err = mech.EvaluateChallenge([]byte{})
		if err != nil {
			conv.dispose()
			onComplete(nil, &SecurityError{
				Credential: a.cred,
				Msg:        "failed to compute initial response",
				Cause:      err,
			})
			return
		}
	}

	if a.logger != nil {
		a.logger.Debug("starting authentication conversation",
			"mechanism", mech.Name(), "source", a.cred.Source)
	}
	a.submitter.Submit(a.cred.Source, wire.NewSaslStart(mech.Name(), token)).OnComplete(conv.handle)
}

// conversation is the state of one in-flight negotiation: the mechanism
// handle, the server-assigned conversation id, and the caller's
// completion callback. Its handle method is the continuation for every
// round; it re-registers itself on the next round's future, so at most
// one invocation is ever pending and the mechanism is never touched by
// two rounds concurrently.
type conversation struct {
	cred       Credential
	mech       Mechanism
	submitter  Submitter
	logger     *slog.Logger
	onComplete func(*wire.CommandResult, error)

	conversationID int32
	round          int
	disposed       bool
}

// handle processes one round's outcome and either terminates the
// negotiation or submits the next saslContinue.
func (c *conversation) handle(result *wire.CommandResult, err error) {
	c.round++

	if err != nil {
		// Transport and server failures pass through unwrapped.
		c.dispose()
		c.onComplete(nil, err)
		return
	}

	if c.round == 1 {
		// The server assigns the conversation id on the first reply;
		// every later round reuses it.
		c.conversationID = result.ConversationID
	}

	if result.Done {
		c.dispose()
		if c.logger != nil {
			c.logger.Debug("authentication conversation complete",
				"conversationId", c.conversationID, "rounds", c.round)
		}
		c.onComplete(result, nil)
		return
	}

	token, evalErr := c.mech.EvaluateChallenge(result.Payload)
	if evalErr != nil {
		c.dispose()
		c.onComplete(nil, &SecurityError{
			Credential: c.cred,
			Msg:        "failed to evaluate server challenge",
			Cause:      evalErr,
		})
		return
	}
	if token == nil {
		c.dispose()
		c.onComplete(nil, &SecurityError{
			Credential: c.cred,
			Msg:        "protocol error: no client response to server challenge",
		})
		return
	}

	c.submitter.Submit(c.cred.Source, wire.NewSaslContinue(c.conversationID, token)).OnComplete(c.handle)
}

// dispose releases the mechanism exactly once. Disposal failures never
// abort delivery of the primary outcome.
func (c *conversation) dispose() {
	if c.disposed {
		return
	}
	c.disposed = true
	if err := c.mech.Dispose(); err != nil && c.logger != nil {
		c.logger.Warn("failed to dispose mechanism", "mechanism", c.mech.Name(), "error", err)
	}
}

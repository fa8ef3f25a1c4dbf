// Package pam drives a pluggable authentication service through its
// standardized operation sequence: start a transaction, authenticate,
// check the account, open a session, populate the environment, and tear
// everything down again. The service itself is reached through the
// Transaction interface; backends register themselves by name.
//
// A single Authenticator is not safe for concurrent use. Every operation is
// a direct blocking call into the backend and returns only when the backend
// returns; there is no cancellation at this layer.
package pam

import (
	"fmt"

	pamerrors "github.com/infodancer/pam/errors"
)

// Style identifies the kind of a conversation message. The values match the
// message style constants of the underlying service protocol.
type Style int

// Conversation message styles.
const (
	// PromptEchoOff requests a secret; the answer must not be echoed.
	PromptEchoOff Style = 1

	// PromptEchoOn requests visible text, typically a login name.
	PromptEchoOn Style = 2

	// ErrorMsg delivers an error message; no answer is expected.
	ErrorMsg Style = 3

	// TextInfo delivers an informational message; no answer is expected.
	TextInfo Style = 4
)

// Message is a single prompt or notice issued by the authentication service
// during a transaction.
type Message struct {
	// Style is the kind of prompt.
	Style Style

	// Text is the prompt or message text supplied by the service.
	Text string
}

// Conversation answers prompts issued by the authentication service while a
// transaction is in flight. The service may invoke it at any point between
// the start of the transaction and its end, so the implementation bound to
// an Authenticator must stay usable for the Authenticator's whole lifetime.
//
// Respond returns one answer per message, in order. Messages with style
// ErrorMsg or TextInfo take no answer; the corresponding entry is the empty
// string. Returning an error fails the whole batch; backends surface that
// to the caller as a conversation error. Implementations must return
// answers or errors, never panic.
type Conversation interface {
	Respond(msgs []Message) ([]string, error)

	// Username reports the login name this conversation authenticates.
	// It is used after a session is opened to resolve the session user's
	// environment. Implementations that never prompt interactively return
	// their preset login name.
	Username() string
}

// PasswordConv is a Conversation preloaded with a fixed login and secret.
// It answers PromptEchoOn with the login, PromptEchoOff with the secret,
// and acknowledges informational and error messages unconditionally.
//
// The secret is held as a byte slice so it can be zeroed; the Authenticator
// clears it during teardown.
type PasswordConv struct {
	login  string
	secret []byte
}

// NewPasswordConv returns a PasswordConv with empty credentials. Callers
// preset the login and secret with SetCredentials before authenticating.
func NewPasswordConv() *PasswordConv {
	return &PasswordConv{}
}

// SetCredentials replaces the login and secret used to answer prompts.
// Any previously held secret is zeroed first.
func (c *PasswordConv) SetCredentials(login, secret string) {
	c.Clear()
	c.login = login
	c.secret = []byte(secret)
}

// Username returns the preset login name.
func (c *PasswordConv) Username() string {
	return c.login
}

// Clear zeros out the held secret. Safe to call more than once.
func (c *PasswordConv) Clear() {
	for i := range c.secret {
		c.secret[i] = 0
	}
	c.secret = nil
}

// Respond answers each prompt from the preset credentials.
func (c *PasswordConv) Respond(msgs []Message) ([]string, error) {
	answers := make([]string, len(msgs))
	for i, msg := range msgs {
		switch msg.Style {
		case PromptEchoOn:
			answers[i] = c.login
		case PromptEchoOff:
			answers[i] = string(c.secret)
		case ErrorMsg, TextInfo:
			// Acknowledged without an answer.
		default:
			return nil, fmt.Errorf("%w: unsupported message style %d", pamerrors.ErrConversation, msg.Style)
		}
	}
	return answers, nil
}

// PromptConv is a Conversation that delegates each prompt to a
// caller-supplied function. Fields may be swapped or reconfigured between
// authentication attempts, but not while a primitive operation is in flight.
type PromptConv struct {
	// Login is the name reported by Username. When EchoOn is nil it also
	// answers visible-text prompts. Respond updates it with the answer to
	// the most recent visible prompt, so Username reflects the name the
	// service actually received.
	Login string

	// EchoOn answers visible-text prompts. Optional when Login is set.
	EchoOn func(prompt string) (string, error)

	// EchoOff answers secret prompts. Required to answer them.
	EchoOff func(prompt string) (string, error)

	// Info receives informational messages. Optional.
	Info func(msg string)

	// Error receives error messages. Optional.
	Error func(msg string)
}

// Username returns the configured login name.
func (c *PromptConv) Username() string {
	return c.Login
}

// Respond delegates each prompt to the configured function for its style.
// A data prompt with no configured responder fails the batch.
func (c *PromptConv) Respond(msgs []Message) ([]string, error) {
	answers := make([]string, len(msgs))
	for i, msg := range msgs {
		switch msg.Style {
		case PromptEchoOn:
			if c.EchoOn == nil {
				if c.Login == "" {
					return nil, fmt.Errorf("%w: no responder for visible prompt %q", pamerrors.ErrConversation, msg.Text)
				}
				answers[i] = c.Login
				continue
			}
			answer, err := c.EchoOn(msg.Text)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", pamerrors.ErrConversation, err)
			}
			answers[i] = answer
			c.Login = answer
		case PromptEchoOff:
			if c.EchoOff == nil {
				return nil, fmt.Errorf("%w: no responder for secret prompt %q", pamerrors.ErrConversation, msg.Text)
			}
			answer, err := c.EchoOff(msg.Text)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", pamerrors.ErrConversation, err)
			}
			answers[i] = answer
		case ErrorMsg:
			if c.Error != nil {
				c.Error(msg.Text)
			}
		case TextInfo:
			if c.Info != nil {
				c.Info(msg.Text)
			}
		default:
			return nil, fmt.Errorf("%w: unsupported message style %d", pamerrors.ErrConversation, msg.Style)
		}
	}
	return answers, nil
}

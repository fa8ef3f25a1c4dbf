package pam

import (
	pamerrors "github.com/infodancer/pam/errors"
)

// Authenticator owns a single authentication transaction and drives it
// through the mandated operation order: authenticate, account check, open
// session, environment setup, teardown. It exclusively owns its transaction
// and conversation for its entire lifetime.
//
// The zero value is not usable; construct with New, NewWithConv, or
// NewWithBackend and release with Close, normally via defer:
//
//	a, err := pam.New("login")
//	if err != nil { ... }
//	defer a.Close()
//	a.Handler().(*pam.PasswordConv).SetCredentials("login", "password")
//	if err := a.Authenticate(); err != nil { ... }
//	if err := a.OpenSession(); err != nil { ... }
//
// An Authenticator is not safe for concurrent use.
type Authenticator struct {
	// CloseSessionOnClose controls whether Close also closes an open
	// session. Defaults to true.
	CloseSessionOnClose bool

	tx              Transaction
	conv            Conversation
	isAuthenticated bool
	hasOpenSession  bool
	lastCode        ReturnCode
	closed          bool
	lookupUser      UserLookupFunc
}

// New starts a transaction for the given service with the default backend
// and a password-based conversation. Preset the credentials through
// Handler before calling Authenticate.
func New(service string) (*Authenticator, error) {
	return NewWithConv(service, NewPasswordConv())
}

// NewWithConv starts a transaction for the given service with the default
// backend and the supplied conversation.
func NewWithConv(service string, conv Conversation) (*Authenticator, error) {
	return NewWithBackend(DefaultBackend, service, conv)
}

// NewWithBackend starts a transaction for the given service with the named
// backend and the supplied conversation. No target user is preset; backends
// prompt the conversation when they need a name.
func NewWithBackend(backend, service string, conv Conversation) (*Authenticator, error) {
	start, err := lookupBackend(backend)
	if err != nil {
		return nil, err
	}
	if err := checkString(service); err != nil {
		return nil, err
	}
	tx, err := start(service, "", conv)
	if err != nil {
		return nil, err
	}
	return &Authenticator{
		CloseSessionOnClose: true,
		tx:                  tx,
		conv:                conv,
		lastCode:            Success,
		lookupUser:          lookupSystemUser,
	}, nil
}

// Handler returns the conversation bound to this Authenticator, for
// presetting credentials or reconfiguring prompts between attempts.
func (a *Authenticator) Handler() Conversation {
	return a.conv
}

// WithUserLookup replaces the resolver used to build the session
// environment. Returns the Authenticator to allow chaining.
func (a *Authenticator) WithUserLookup(lookup UserLookupFunc) *Authenticator {
	if lookup != nil {
		a.lookupUser = lookup
	}
	return a
}

// Authenticate validates the user's credentials and checks that the account
// is permitted to proceed. On success the Authenticator is authenticated
// and a session may be opened. A failed account check deletes any
// credentials the authenticate step established.
func (a *Authenticator) Authenticate() error {
	a.lastCode = a.tx.Authenticate(FlagNone)
	if a.lastCode != Success {
		// No credentials were established, so no reset is needed.
		return codeError(a.lastCode)
	}

	a.isAuthenticated = true

	a.lastCode = a.tx.AcctMgmt(FlagNone)
	if a.lastCode != Success {
		// Credentials were valid but the account may not proceed.
		return a.reset()
	}
	return nil
}

// OpenSession opens a login session for a previously authenticated user and
// initializes the session environment. Credentials are established before
// the session is opened and reinitialized immediately after, following the
// order used by sshd: some session modules depend on credentials already
// being live.
//
// If every primitive succeeds but the environment cannot be initialized,
// the session stays open and marked as such while the environment error is
// returned; callers relying on the session must treat that error as
// non-fatal to the session itself.
func (a *Authenticator) OpenSession() error {
	if !a.isAuthenticated {
		return pamerrors.ErrNotAuthenticated
	}

	a.lastCode = a.tx.SetCred(FlagEstablishCred)
	if a.lastCode != Success {
		return a.reset()
	}

	a.lastCode = a.tx.OpenSession(FlagNone)
	if a.lastCode != Success {
		return a.reset()
	}

	a.lastCode = a.tx.SetCred(FlagReinitializeCred)
	if a.lastCode != Success {
		return a.reset()
	}

	a.hasOpenSession = true
	return a.initializeEnvironment()
}

// ChangeAuthTok updates the user's authentication token, driving the bound
// conversation for the old and new secrets.
func (a *Authenticator) ChangeAuthTok() error {
	a.lastCode = a.tx.ChangeAuthTok(FlagNone)
	return codeError(a.lastCode)
}

// Environment returns a copy of the service-side environment namespace for
// this transaction.
func (a *Authenticator) Environment() map[string]string {
	return a.tx.GetEnvList()
}

// IsAuthenticated reports whether a full authenticate and account check
// sequence has succeeded.
func (a *Authenticator) IsAuthenticated() bool {
	return a.isAuthenticated
}

// HasOpenSession reports whether a session is currently open.
func (a *Authenticator) HasOpenSession() bool {
	return a.hasOpenSession
}

// reset deletes any established credentials and clears the authenticated
// flag, so a half-established session never leaves stale credentials
// behind. The delete result is deliberately ignored; the returned error
// reports the code that triggered the reset.
func (a *Authenticator) reset() error {
	a.tx.SetCred(FlagDeleteCred)
	a.isAuthenticated = false
	return codeError(a.lastCode)
}

// Close releases the transaction: it closes the session if one is open and
// CloseSessionOnClose is set, deletes credentials, and ends the
// transaction with the delete result. It runs at most once; later calls are
// no-ops. Teardown failures are not reported, as there is no caller context
// left to recover from them. Close always returns nil and exists in the
// io.Closer shape so the Authenticator can stand in where a closer is
// expected.
func (a *Authenticator) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true

	if a.hasOpenSession && a.CloseSessionOnClose {
		a.tx.CloseSession(FlagNone)
	}
	code := a.tx.SetCred(FlagDeleteCred)
	a.tx.End(code)

	if c, ok := a.conv.(interface{ Clear() }); ok {
		c.Clear()
	}
	return nil
}

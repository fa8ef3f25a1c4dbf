package pam

import (
	"fmt"
	"strings"
	"sync"

	pamerrors "github.com/infodancer/pam/errors"
)

// Transaction is the fixed low-level operation set an authentication
// backend exposes for a single transaction. A Transaction is created by a
// backend's StartFunc bound to one service name, an optional target user,
// and a Conversation, and is destroyed exactly once by End. No operation may
// be invoked after End.
//
// Each operation returns a ReturnCode from the service's enumerated domain;
// higher layers map non-success codes to ServiceError. Transactions are not
// safe for concurrent use.
type Transaction interface {
	// Authenticate validates the user's credentials, driving the bound
	// Conversation for any prompts.
	Authenticate(flags Flag) ReturnCode

	// AcctMgmt checks that the authenticated account is permitted to
	// proceed (not expired, not locked, token still valid).
	AcctMgmt(flags Flag) ReturnCode

	// SetCred establishes, deletes, reinitializes, or refreshes the user's
	// credentials according to flags.
	SetCred(flags Flag) ReturnCode

	// OpenSession opens a login session for the authenticated user.
	OpenSession(flags Flag) ReturnCode

	// CloseSession closes a previously opened session.
	CloseSession(flags Flag) ReturnCode

	// ChangeAuthTok updates the user's authentication token.
	ChangeAuthTok(flags Flag) ReturnCode

	// GetEnv reports the named variable from the transaction's environment
	// namespace. ok is false when the variable is not defined there.
	GetEnv(name string) (value string, ok bool)

	// PutEnv sets a "name=value" pair in the transaction's environment
	// namespace. A name with no "=" removes the variable.
	PutEnv(nameValue string) ReturnCode

	// GetEnvList returns a copy of the transaction's environment namespace.
	GetEnvList() map[string]string

	// End destroys the transaction, reporting the final status of the
	// surrounding operation sequence so the backend can clean up
	// accordingly.
	End(status ReturnCode) ReturnCode
}

// StartFunc starts a new transaction with a backend. service selects the
// backend-side policy for the transaction; user may be empty, in which case
// the backend prompts the conversation when it needs a name. The returned
// Transaction holds a reference to conv for its whole lifetime but does not
// own it.
type StartFunc func(service, user string, conv Conversation) (Transaction, error)

// DefaultBackend is the backend name used by New and NewWithConv. The
// system binding registers itself under this name; programs without it
// select a backend explicitly with NewWithBackend.
const DefaultBackend = "system"

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]StartFunc)
)

// RegisterBackend makes a backend's StartFunc available under the given
// name. Registering a duplicate name panics, as does a nil start function.
// Backends typically register from the importing program's setup code.
func RegisterBackend(name string, start StartFunc) {
	if start == nil {
		panic("pam: RegisterBackend with nil StartFunc")
	}
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if _, dup := backends[name]; dup {
		panic(fmt.Sprintf("pam: backend %q already registered", name))
	}
	backends[name] = start
}

// lookupBackend returns the StartFunc registered under name.
func lookupBackend(name string) (StartFunc, error) {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	start, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", pamerrors.ErrBackendNotRegistered, name)
	}
	return start, nil
}

// checkString rejects strings the service boundary cannot represent. The
// failure maps to the service's own buffer-error code for uniformity with
// errors reported from inside the backend.
func checkString(s string) error {
	if strings.ContainsRune(s, 0) {
		return &ServiceError{Code: BufErr}
	}
	return nil
}

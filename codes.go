package pam

import "fmt"

// ReturnCode is the result of a single primitive operation against the
// authentication service. The values match the Linux-PAM return codes so a
// backend wrapping the system library can pass them through unchanged.
type ReturnCode int

// Primitive operation return codes.
const (
	Success             ReturnCode = 0
	OpenErr             ReturnCode = 1
	SymbolErr           ReturnCode = 2
	ServiceErr          ReturnCode = 3
	SystemErr           ReturnCode = 4
	BufErr              ReturnCode = 5
	PermDenied          ReturnCode = 6
	AuthErr             ReturnCode = 7
	CredInsufficient    ReturnCode = 8
	AuthinfoUnavail     ReturnCode = 9
	UserUnknown         ReturnCode = 10
	MaxTries            ReturnCode = 11
	NewAuthTokReqd      ReturnCode = 12
	AcctExpired         ReturnCode = 13
	SessionErr          ReturnCode = 14
	CredUnavail         ReturnCode = 15
	CredExpired         ReturnCode = 16
	CredErr             ReturnCode = 17
	NoModuleData        ReturnCode = 18
	ConvErr             ReturnCode = 19
	AuthTokErr          ReturnCode = 20
	AuthTokRecoveryErr  ReturnCode = 21
	AuthTokLockBusy     ReturnCode = 22
	AuthTokDisableAging ReturnCode = 23
	TryAgain            ReturnCode = 24
	Ignore              ReturnCode = 25
	Abort               ReturnCode = 26
	AuthTokExpired      ReturnCode = 27
	ModuleUnknown       ReturnCode = 28
	BadItem             ReturnCode = 29
	ConvAgain           ReturnCode = 30
	Incomplete          ReturnCode = 31
)

var codeNames = map[ReturnCode]string{
	Success:             "success",
	OpenErr:             "failed to load service module",
	SymbolErr:           "symbol not found",
	ServiceErr:          "error in service module",
	SystemErr:           "system error",
	BufErr:              "memory buffer error",
	PermDenied:          "permission denied",
	AuthErr:             "authentication failure",
	CredInsufficient:    "insufficient credentials",
	AuthinfoUnavail:     "authentication information unavailable",
	UserUnknown:         "user not known to the authentication service",
	MaxTries:            "maximum number of retries exhausted",
	NewAuthTokReqd:      "authentication token is no longer valid; new one required",
	AcctExpired:         "user account has expired",
	SessionErr:          "cannot make or remove an entry for the session",
	CredUnavail:         "cannot retrieve user credentials",
	CredExpired:         "user credentials expired",
	CredErr:             "failure setting user credentials",
	NoModuleData:        "no module specific data is present",
	ConvErr:             "conversation error",
	AuthTokErr:          "authentication token manipulation error",
	AuthTokRecoveryErr:  "authentication information cannot be recovered",
	AuthTokLockBusy:     "authentication token lock busy",
	AuthTokDisableAging: "authentication token aging disabled",
	TryAgain:            "failed preliminary check by password service",
	Ignore:              "ignore underlying account module",
	Abort:               "critical error, immediate abort",
	AuthTokExpired:      "authentication token expired",
	ModuleUnknown:       "module is unknown",
	BadItem:             "bad item passed to get or set item",
	ConvAgain:           "conversation is waiting for an event",
	Incomplete:          "application needs to call the service again",
}

// String returns the human-readable description of the return code.
func (c ReturnCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("unknown return code %d", int(c))
}

// Flag modifies the behavior of a primitive operation. The bit values match
// the Linux-PAM flag constants.
type Flag int

// Primitive operation flags.
const (
	FlagNone                 Flag = 0
	FlagSilent               Flag = 0x8000
	FlagDisallowNullAuthTok  Flag = 0x0001
	FlagEstablishCred        Flag = 0x0002
	FlagDeleteCred           Flag = 0x0004
	FlagReinitializeCred     Flag = 0x0008
	FlagRefreshCred          Flag = 0x0010
	FlagChangeExpiredAuthTok Flag = 0x0020
)

// ServiceError is a non-success return code from a primitive operation,
// carrying the original code for diagnostics. Callers distinguish failure
// kinds with errors.As and the Code field:
//
//	var se *pam.ServiceError
//	if errors.As(err, &se) && se.Code == pam.AcctExpired { ... }
type ServiceError struct {
	// Code is the return code reported by the failing operation.
	Code ReturnCode
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return "pam: " + e.Code.String()
}

// codeError converts a primitive return code to an error, mapping Success
// to nil and everything else to a ServiceError.
func codeError(code ReturnCode) error {
	if code == Success {
		return nil
	}
	return &ServiceError{Code: code}
}

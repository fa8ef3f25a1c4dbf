package localauth

import (
	"log/slog"
	"strings"

	"github.com/infodancer/pam"
)

// transaction implements pam.Transaction against a single credential file.
// It tracks the establish/session state the primitive ordering contract
// requires and refuses every operation after End.
type transaction struct {
	service string
	user    string
	passwd  string
	conv    pam.Conversation
	env     map[string]string
	logger  *slog.Logger

	entry       *Entry
	credsLive   bool
	sessionOpen bool
	ended       bool
}

// resolveUser returns the login name for this transaction, prompting the
// conversation when none was preset.
func (t *transaction) resolveUser() (string, pam.ReturnCode) {
	if t.user != "" {
		return t.user, pam.Success
	}
	answers, err := t.conv.Respond([]pam.Message{{Style: pam.PromptEchoOn, Text: "login: "}})
	if err != nil || len(answers) != 1 || answers[0] == "" {
		return "", pam.ConvErr
	}
	t.user = answers[0]
	return t.user, pam.Success
}

func (t *transaction) Authenticate(flags pam.Flag) pam.ReturnCode {
	if t.ended {
		return pam.SystemErr
	}

	username, code := t.resolveUser()
	if code != pam.Success {
		return code
	}

	entry, err := findEntry(t.passwd, username)
	if err != nil {
		t.logger.Warn("credential file unavailable", "service", t.service, "error", err)
		return pam.AuthinfoUnavail
	}
	if entry == nil {
		t.logger.Debug("unknown user", "service", t.service, "user", username)
		return pam.UserUnknown
	}

	answers, err := t.conv.Respond([]pam.Message{{Style: pam.PromptEchoOff, Text: "Password: "}})
	if err != nil || len(answers) != 1 {
		return pam.ConvErr
	}
	password := answers[0]
	if password == "" && flags&pam.FlagDisallowNullAuthTok != 0 {
		return pam.AuthErr
	}

	if !verifyPassword(password, entry.hash) {
		t.logger.Info("authentication failed", "service", t.service, "user", username)
		return pam.AuthErr
	}

	t.entry = entry
	t.logger.Info("authenticated", "service", t.service, "user", username)
	return pam.Success
}

func (t *transaction) AcctMgmt(flags pam.Flag) pam.ReturnCode {
	if t.ended {
		return pam.SystemErr
	}
	if t.entry == nil {
		return pam.UserUnknown
	}
	switch t.entry.Status {
	case StatusLocked:
		t.logger.Info("account locked", "service", t.service, "user", t.entry.Username)
		return pam.PermDenied
	case StatusExpired:
		t.logger.Info("account expired", "service", t.service, "user", t.entry.Username)
		return pam.AcctExpired
	}
	return pam.Success
}

func (t *transaction) SetCred(flags pam.Flag) pam.ReturnCode {
	if t.ended {
		return pam.SystemErr
	}
	switch {
	case flags&pam.FlagDeleteCred != 0:
		t.credsLive = false
		return pam.Success
	case flags&(pam.FlagEstablishCred|pam.FlagReinitializeCred|pam.FlagRefreshCred) != 0:
		if t.entry == nil {
			return pam.CredUnavail
		}
		t.credsLive = true
		return pam.Success
	}
	return pam.Success
}

func (t *transaction) OpenSession(flags pam.Flag) pam.ReturnCode {
	if t.ended {
		return pam.SystemErr
	}
	// Session modules here depend on credentials already being live.
	if !t.credsLive {
		return pam.SessionErr
	}
	t.sessionOpen = true
	t.logger.Info("session opened", "service", t.service, "user", t.entry.Username)
	return pam.Success
}

func (t *transaction) CloseSession(flags pam.Flag) pam.ReturnCode {
	if t.ended {
		return pam.SystemErr
	}
	if !t.sessionOpen {
		return pam.SessionErr
	}
	t.sessionOpen = false
	t.logger.Info("session closed", "service", t.service, "user", t.entry.Username)
	return pam.Success
}

func (t *transaction) ChangeAuthTok(flags pam.Flag) pam.ReturnCode {
	if t.ended {
		return pam.SystemErr
	}

	username, code := t.resolveUser()
	if code != pam.Success {
		return code
	}
	entry, err := findEntry(t.passwd, username)
	if err != nil {
		return pam.AuthinfoUnavail
	}
	if entry == nil {
		return pam.UserUnknown
	}

	// The current secret authenticates the change unless the user already
	// authenticated in this transaction.
	if t.entry == nil {
		answers, err := t.conv.Respond([]pam.Message{{Style: pam.PromptEchoOff, Text: "Current password: "}})
		if err != nil || len(answers) != 1 {
			return pam.ConvErr
		}
		if !verifyPassword(answers[0], entry.hash) {
			return pam.AuthTokErr
		}
	}

	answers, err := t.conv.Respond([]pam.Message{
		{Style: pam.PromptEchoOff, Text: "New password: "},
		{Style: pam.PromptEchoOff, Text: "Retype new password: "},
	})
	if err != nil || len(answers) != 2 {
		return pam.ConvErr
	}
	if answers[0] != answers[1] {
		_, _ = t.conv.Respond([]pam.Message{{Style: pam.ErrorMsg, Text: "passwords do not match"}})
		return pam.AuthTokErr
	}
	if answers[0] == "" {
		return pam.AuthTokErr
	}

	if err := SetPassword(t.passwd, username, answers[0]); err != nil {
		t.logger.Warn("password update failed", "service", t.service, "user", username, "error", err)
		return pam.AuthTokErr
	}
	t.logger.Info("password changed", "service", t.service, "user", username)
	return pam.Success
}

func (t *transaction) GetEnv(name string) (string, bool) {
	value, ok := t.env[name]
	return value, ok
}

func (t *transaction) PutEnv(nameValue string) pam.ReturnCode {
	if t.ended {
		return pam.SystemErr
	}
	if nameValue == "" || strings.ContainsRune(nameValue, 0) {
		return pam.BufErr
	}
	if i := strings.IndexByte(nameValue, '='); i >= 0 {
		if i == 0 {
			return pam.BufErr
		}
		t.env[nameValue[:i]] = nameValue[i+1:]
		return pam.Success
	}
	delete(t.env, nameValue)
	return pam.Success
}

func (t *transaction) GetEnvList() map[string]string {
	out := make(map[string]string, len(t.env))
	for k, v := range t.env {
		out[k] = v
	}
	return out
}

func (t *transaction) End(status pam.ReturnCode) pam.ReturnCode {
	if t.ended {
		return pam.SystemErr
	}
	t.ended = true
	t.entry = nil
	t.credsLive = false
	t.sessionOpen = false
	t.logger.Debug("transaction ended", "service", t.service, "status", status.String())
	return pam.Success
}

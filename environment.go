package pam

import (
	"bufio"
	"fmt"
	"os"
	"os/user"
	"strings"

	pamerrors "github.com/infodancer/pam/errors"
)

// UserRecord holds the host account fields needed to build a session
// environment.
type UserRecord struct {
	// Name is the account's login name.
	Name string

	// Home is the account's home directory.
	Home string

	// Shell is the account's login shell.
	Shell string
}

// UserLookupFunc resolves a login name to its host account record. The
// default implementation consults the OS user database; tests and embedders
// with their own account source replace it via Authenticator.WithUserLookup.
type UserLookupFunc func(username string) (*UserRecord, error)

// etcPasswd is the account database consulted for the login shell, which
// os/user does not expose. Overridden in tests.
var etcPasswd = "/etc/passwd"

// lookupSystemUser resolves a user through the OS user database. The shell
// falls back to /bin/sh when the passwd entry does not name one.
func lookupSystemUser(username string) (*UserRecord, error) {
	u, err := user.Lookup(username)
	if err != nil {
		return nil, err
	}
	rec := &UserRecord{
		Name:  u.Username,
		Home:  u.HomeDir,
		Shell: "/bin/sh",
	}
	if shell, ok := lookupShell(u.Username); ok {
		rec.Shell = shell
	}
	return rec, nil
}

// lookupShell reads the login shell for a user from the passwd file.
func lookupShell(username string) (string, bool) {
	f, err := os.Open(etcPasswd)
	if err != nil {
		return "", false
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) < 7 || fields[0] != username {
			continue
		}
		if shell := strings.TrimSpace(fields[6]); shell != "" {
			return shell, true
		}
		return "", false
	}
	return "", false
}

// initializeEnvironment populates the environment for a freshly opened
// session: USER, LOGNAME, HOME, PWD, and SHELL from the resolved account
// record. PATH is deliberately left to the service's own environment
// modules. Called only from OpenSession after the session is live.
func (a *Authenticator) initializeEnvironment() error {
	username := a.conv.Username()
	rec, err := a.lookupUser(username)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", pamerrors.ErrUserResolution, username, err)
	}

	if err := a.setEnv("USER", rec.Name); err != nil {
		return err
	}
	if err := a.setEnv("LOGNAME", rec.Name); err != nil {
		return err
	}
	if err := a.setEnv("HOME", rec.Home); err != nil {
		return err
	}
	if err := a.setEnv("PWD", rec.Home); err != nil {
		return err
	}
	if err := a.setEnv("SHELL", rec.Shell); err != nil {
		return err
	}
	return nil
}

// setEnv sets a variable in the process environment and mirrors it into the
// service's environment namespace, but only when the service already
// defines that name; the mirror never introduces new service-side
// variables.
func (a *Authenticator) setEnv(key, value string) error {
	if err := checkString(key + value); err != nil {
		return err
	}
	if err := os.Setenv(key, value); err != nil {
		return err
	}
	if _, ok := a.tx.GetEnv(key); ok {
		return codeError(a.tx.PutEnv(key + "=" + value))
	}
	return nil
}

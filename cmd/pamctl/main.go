// Command pamctl exercises a pam backend from the terminal and manages users
// in local credential files.
//
// Usage:
//
//	pamctl [--config <path>] auth    <service> [user]        authenticate against a service
//	pamctl [--config <path>] session <service> [user]        authenticate and open a session
//	pamctl [--config <path>] passwd  <service> [user]        change a user's password
//	pamctl [--config <path>] user    <op> <service> [name]   manage credential files
//
// User operations: add, del, list, lock, unlock.
//
// The config path can also be set via the PAMCTL_CONFIG environment variable.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/infodancer/pam"
	"github.com/infodancer/pam/localauth"
	"github.com/infodancer/pam/token"
)

func main() {
	fs := flag.NewFlagSet("pamctl", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("PAMCTL_CONFIG"), "path to pamctl config file")
	verbose := fs.Bool("v", false, "enable debug logging")
	issueToken := fs.Bool("token", false, "print a signed session token (session subcommand)")
	fs.Usage = usage

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}

	args := fs.Args()
	if len(args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	provider := localauth.NewProvider(cfg.BasePath, logger)
	provider.Register(cfg.Backend)

	subcmd := args[0]
	rest := args[1:]

	switch subcmd {
	case "auth":
		err = cmdAuth(cfg, rest)
	case "session":
		err = cmdSession(cfg, provider, *issueToken, rest)
	case "passwd":
		err = cmdPasswd(cfg, rest)
	case "user":
		err = cmdUser(provider, rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n", subcmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// serviceUser splits a subcommand's positional arguments into the service
// name and an optional preset login.
func serviceUser(args []string) (service, user string, err error) {
	switch len(args) {
	case 1:
		return args[0], "", nil
	case 2:
		return args[0], args[1], nil
	default:
		return "", "", fmt.Errorf("expected <service> [user]")
	}
}

func cmdAuth(cfg Config, args []string) error {
	service, user, err := serviceUser(args)
	if err != nil {
		return err
	}

	conv := pam.TerminalConv(user)
	a, err := pam.NewWithBackend(cfg.Backend, service, conv)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.Authenticate(); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	fmt.Printf("OK: %s authenticated for service %q\n", conv.Username(), service)
	return nil
}

func cmdSession(cfg Config, provider *localauth.Provider, issueToken bool, args []string) error {
	service, user, err := serviceUser(args)
	if err != nil {
		return err
	}

	conv := pam.TerminalConv(user)
	a, err := pam.NewWithBackend(cfg.Backend, service, conv)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	a.WithUserLookup(provider.UserLookup(service))

	if err := a.Authenticate(); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	if err := a.OpenSession(); err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	env := a.Environment()
	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "NAME\tVALUE"); err != nil {
		return err
	}
	for _, name := range names {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", name, env[name]); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if issueToken {
		signed, err := mintToken(cfg, conv.Username(), service)
		if err != nil {
			return err
		}
		fmt.Println(signed)
	}
	return nil
}

func mintToken(cfg Config, username, service string) (string, error) {
	if cfg.Token.Secret == "" {
		return "", fmt.Errorf("no token secret configured")
	}
	ttl, err := cfg.tokenTTL()
	if err != nil {
		return "", err
	}
	issuer, err := token.NewIssuer([]byte(cfg.Token.Secret), cfg.Token.Issuer, ttl)
	if err != nil {
		return "", err
	}
	return issuer.Issue(username, service)
}

func cmdPasswd(cfg Config, args []string) error {
	service, user, err := serviceUser(args)
	if err != nil {
		return err
	}

	conv := pam.TerminalConv(user)
	a, err := pam.NewWithBackend(cfg.Backend, service, conv)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.ChangeAuthTok(); err != nil {
		return fmt.Errorf("password change failed: %w", err)
	}

	fmt.Printf("Password changed for %s\n", conv.Username())
	return nil
}

func cmdUser(provider *localauth.Provider, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("expected user <op> <service> [name]")
	}
	op, service := args[0], args[1]

	passwdPath, err := provider.PasswdPath(service)
	if err != nil {
		return err
	}

	if op == "list" {
		return cmdUserList(passwdPath)
	}

	if len(args) != 3 {
		return fmt.Errorf("expected user %s <service> <name>", op)
	}
	username := args[2]

	switch op {
	case "add":
		return cmdUserAdd(passwdPath, username)
	case "del":
		if err := localauth.DeleteUser(passwdPath, username); err != nil {
			return err
		}
		fmt.Printf("Deleted user %q\n", username)
		return nil
	case "lock":
		if err := localauth.SetStatus(passwdPath, username, localauth.StatusLocked); err != nil {
			return err
		}
		fmt.Printf("Locked user %q\n", username)
		return nil
	case "unlock":
		if err := localauth.SetStatus(passwdPath, username, ""); err != nil {
			return err
		}
		fmt.Printf("Unlocked user %q\n", username)
		return nil
	default:
		return fmt.Errorf("unknown user operation: %s", op)
	}
}

func cmdUserAdd(passwdPath, username string) error {
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return err
	}

	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	home, err := promptLine("Home directory (optional): ")
	if err != nil {
		return err
	}
	shell, err := promptLine("Shell (optional): ")
	if err != nil {
		return err
	}

	if err := localauth.AddUser(passwdPath, username, password, home, shell); err != nil {
		return err
	}

	fmt.Printf("Added user %q\n", username)
	return nil
}

func cmdUserList(passwdPath string) error {
	users, err := localauth.ListUsers(passwdPath)
	if err != nil {
		return err
	}

	if len(users) == 0 {
		fmt.Println("no users")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "USERNAME\tHOME\tSHELL\tSTATUS"); err != nil {
		return err
	}
	for _, u := range users {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.Username, u.Home, u.Shell, u.Status); err != nil {
			return err
		}
	}
	return w.Flush()
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

func promptLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  pamctl [--config <path>] auth    <service> [user]        authenticate against a service
  pamctl [--config <path>] session <service> [user]        authenticate and open a session
  pamctl [--config <path>] passwd  <service> [user]        change a user's password
  pamctl [--config <path>] user    <op> <service> [name]   manage credential files

User operations: add, del, list, lock, unlock.

Flags:
  --config  path to pamctl config file (or set PAMCTL_CONFIG)
  --token   with session: print a signed session token
  -v        enable debug logging

The config path can also be set via PAMCTL_CONFIG.
`)
}

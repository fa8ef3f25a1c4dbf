package localauth

import (
	"bufio"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argon2id parameters for newly hashed secrets. Verification reads the
// parameters back out of the stored hash, so these can change without
// invalidating existing entries.
const (
	saltSize      = 16
	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32
)

// Account status markers stored in the optional last field of an entry.
const (
	// StatusLocked marks an account whose account check fails with
	// permission denied.
	StatusLocked = "locked"

	// StatusExpired marks an account whose account check fails with
	// account expired.
	StatusExpired = "expired"
)

// Entry is one account in a credential file. The line format is
//
//	username:argon2id-hash:home:shell[:status]
//
// with blank lines and #-comments ignored.
type Entry struct {
	Username string
	Home     string
	Shell    string
	Status   string

	hash string
}

// HashPassword generates an argon2id hash of password using canonical
// parameters. The returned string is the full PHC-format hash ready to
// embed in a credential file entry.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedHash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argon2Memory, argon2Time, argon2Threads, encodedSalt, encodedHash), nil
}

// verifyPassword checks password against a PHC-format argon2id hash in
// constant time. Malformed hashes verify as false.
func verifyPassword(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, hash
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	got := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

// AddUser appends a new account entry to the credential file at path.
// Returns an error if the username already exists.
func AddUser(path, username, password, home, shell string) error {
	if strings.ContainsAny(username, ":\n") {
		return fmt.Errorf("invalid username %q", username)
	}

	entries, err := parseEntries(path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Username == username {
			return fmt.Errorf("user %q already exists", username)
		}
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create service directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o640)
	if err != nil {
		return fmt.Errorf("open credential file: %w", err)
	}
	defer func() { _ = f.Close() }()

	_, err = fmt.Fprintf(f, "%s:%s:%s:%s\n", username, hash, home, shell)
	return err
}

// DeleteUser removes the named account from the credential file.
// Returns an error if the account does not exist.
func DeleteUser(path, username string) error {
	lines, found, err := rewriteEntries(path, username, nil)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("user %q not found", username)
	}
	return writeFile(path, lines)
}

// SetStatus updates the status marker of the named account. An empty status
// clears the marker, making the account active again.
func SetStatus(path, username, status string) error {
	lines, found, err := rewriteEntries(path, username, func(e Entry) string {
		return formatEntry(e.Username, e.hash, e.Home, e.Shell, status)
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("user %q not found", username)
	}
	return writeFile(path, lines)
}

// SetPassword replaces the named account's secret with a fresh hash of
// password, preserving the other fields.
func SetPassword(path, username, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	lines, found, err := rewriteEntries(path, username, func(e Entry) string {
		return formatEntry(e.Username, hash, e.Home, e.Shell, e.Status)
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("user %q not found", username)
	}
	return writeFile(path, lines)
}

// ListUsers returns all account entries from the credential file.
func ListUsers(path string) ([]Entry, error) {
	return parseEntries(path)
}

func formatEntry(username, hash, home, shell, status string) string {
	line := fmt.Sprintf("%s:%s:%s:%s", username, hash, home, shell)
	if status != "" {
		line += ":" + status
	}
	return line
}

// parseEntries reads the credential file and returns all account entries.
// Returns an empty slice if the file does not exist.
func parseEntries(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open credential file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) < 4 {
			continue
		}
		e := Entry{
			Username: fields[0],
			hash:     fields[1],
			Home:     fields[2],
			Shell:    fields[3],
		}
		if len(fields) >= 5 {
			e.Status = fields[4]
		}
		entries = append(entries, e)
	}

	return entries, scanner.Err()
}

// findEntry returns the entry for username, or nil when absent.
func findEntry(path, username string) (*Entry, error) {
	entries, err := parseEntries(path)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].Username == username {
			return &entries[i], nil
		}
	}
	return nil, nil
}

// rewriteEntries reads all lines from the credential file, replacing the
// named user's line with replace(entry), or removing it when replace is
// nil. found reports whether the user was present. Comments and blank lines
// are preserved.
func rewriteEntries(path, username string, replace func(Entry) string) (lines []string, found bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("open credential file: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			lines = append(lines, line)
			continue
		}
		fields := strings.Split(trimmed, ":")
		if len(fields) >= 4 && fields[0] == username {
			found = true
			if replace != nil {
				e := Entry{Username: fields[0], hash: fields[1], Home: fields[2], Shell: fields[3]}
				if len(fields) >= 5 {
					e.Status = fields[4]
				}
				lines = append(lines, replace(e))
			}
			continue
		}
		lines = append(lines, line)
	}

	return lines, found, scanner.Err()
}

// writeFile atomically replaces the credential file with the given lines.
func writeFile(path string, lines []string) error {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("create temp credential file: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			_ = f.Close()
			_ = os.Remove(tmpPath)
			return err
		}
	}

	if err := w.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, path)
}

package pam

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLookupShell(t *testing.T) {
	dir := t.TempDir()
	passwd := filepath.Join(dir, "passwd")
	content := `# comment
root:x:0:0:root:/root:/bin/bash

alice:x:1000:1000:Alice:/home/alice:/bin/zsh
noshell:x:1001:1001::/home/noshell:
short:x:1002
`
	if err := os.WriteFile(passwd, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	orig := etcPasswd
	etcPasswd = passwd
	defer func() { etcPasswd = orig }()

	if shell, ok := lookupShell("alice"); !ok || shell != "/bin/zsh" {
		t.Errorf("alice shell = %q, %v; want /bin/zsh, true", shell, ok)
	}
	if shell, ok := lookupShell("root"); !ok || shell != "/bin/bash" {
		t.Errorf("root shell = %q, %v; want /bin/bash, true", shell, ok)
	}
	if _, ok := lookupShell("noshell"); ok {
		t.Error("empty shell field must report not found")
	}
	if _, ok := lookupShell("short"); ok {
		t.Error("malformed entry must report not found")
	}
	if _, ok := lookupShell("nobody-here"); ok {
		t.Error("missing user must report not found")
	}
}

func TestLookupShellMissingFile(t *testing.T) {
	orig := etcPasswd
	etcPasswd = filepath.Join(t.TempDir(), "does-not-exist")
	defer func() { etcPasswd = orig }()

	if _, ok := lookupShell("alice"); ok {
		t.Error("missing passwd file must report not found")
	}
}

func TestCodeStrings(t *testing.T) {
	if Success.String() != "success" {
		t.Errorf("Success.String() = %q", Success.String())
	}
	if AuthErr.String() != "authentication failure" {
		t.Errorf("AuthErr.String() = %q", AuthErr.String())
	}
	if got := ReturnCode(99).String(); got != "unknown return code 99" {
		t.Errorf("unknown code string = %q", got)
	}

	se := &ServiceError{Code: AcctExpired}
	if se.Error() != "pam: user account has expired" {
		t.Errorf("ServiceError.Error() = %q", se.Error())
	}
	if codeError(Success) != nil {
		t.Error("codeError(Success) must be nil")
	}
}

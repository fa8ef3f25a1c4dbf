package pam

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// TerminalConv returns a PromptConv wired to the controlling terminal:
// visible prompts read a line from stdin, secret prompts use hidden input,
// and informational and error messages go to stderr. Prompts are written to
// stderr so stdout stays clean for program output.
//
// login may be empty, in which case the service is expected to prompt for
// the user name with a visible prompt.
func TerminalConv(login string) *PromptConv {
	stdin := bufio.NewReader(os.Stdin)
	return &PromptConv{
		Login: login,
		EchoOn: func(prompt string) (string, error) {
			fmt.Fprint(os.Stderr, prompt)
			line, err := stdin.ReadString('\n')
			if err != nil {
				return "", fmt.Errorf("read input: %w", err)
			}
			return strings.TrimRight(line, "\r\n"), nil
		},
		EchoOff: func(prompt string) (string, error) {
			fmt.Fprint(os.Stderr, prompt)
			raw, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(os.Stderr) // newline after hidden input
			if err != nil {
				return "", fmt.Errorf("read password: %w", err)
			}
			return string(raw), nil
		},
		Info: func(msg string) {
			fmt.Fprintln(os.Stderr, msg)
		},
		Error: func(msg string) {
			fmt.Fprintln(os.Stderr, msg)
		},
	}
}

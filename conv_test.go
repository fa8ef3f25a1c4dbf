package pam

import (
	"errors"
	"testing"

	pamerrors "github.com/infodancer/pam/errors"
)

func TestPasswordConvRespond(t *testing.T) {
	conv := NewPasswordConv()
	conv.SetCredentials("alice", "hunter2")

	answers, err := conv.Respond([]Message{
		{Style: TextInfo, Text: "welcome"},
		{Style: PromptEchoOn, Text: "login: "},
		{Style: PromptEchoOff, Text: "Password: "},
		{Style: ErrorMsg, Text: "last login failed"},
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	want := []string{"", "alice", "hunter2", ""}
	for i := range want {
		if answers[i] != want[i] {
			t.Errorf("answer %d = %q, want %q", i, answers[i], want[i])
		}
	}
}

func TestPasswordConvUnknownStyle(t *testing.T) {
	conv := NewPasswordConv()
	_, err := conv.Respond([]Message{{Style: Style(99), Text: "?"}})
	if !errors.Is(err, pamerrors.ErrConversation) {
		t.Fatalf("expected ErrConversation, got %v", err)
	}
}

func TestPasswordConvClear(t *testing.T) {
	conv := NewPasswordConv()
	conv.SetCredentials("alice", "hunter2")

	secret := conv.secret
	conv.Clear()
	for i, b := range secret {
		if b != 0 {
			t.Fatalf("secret byte %d not zeroed", i)
		}
	}
	if conv.secret != nil {
		t.Error("secret should be released")
	}
	// Clear must be safe to repeat.
	conv.Clear()

	// Replacing credentials zeroes the previous secret.
	conv.SetCredentials("alice", "first")
	old := conv.secret
	conv.SetCredentials("alice", "second")
	for i, b := range old {
		if b != 0 {
			t.Fatalf("previous secret byte %d not zeroed on replace", i)
		}
	}
}

func TestPromptConvDelegation(t *testing.T) {
	var infos, errs []string
	conv := &PromptConv{
		Login: "alice",
		EchoOn: func(prompt string) (string, error) {
			return "bob", nil
		},
		EchoOff: func(prompt string) (string, error) {
			return "s3cret", nil
		},
		Info:  func(msg string) { infos = append(infos, msg) },
		Error: func(msg string) { errs = append(errs, msg) },
	}

	answers, err := conv.Respond([]Message{
		{Style: PromptEchoOn, Text: "login: "},
		{Style: PromptEchoOff, Text: "Password: "},
		{Style: TextInfo, Text: "motd"},
		{Style: ErrorMsg, Text: "bad day"},
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if answers[0] != "bob" || answers[1] != "s3cret" {
		t.Errorf("unexpected answers %v", answers)
	}
	if len(infos) != 1 || infos[0] != "motd" {
		t.Errorf("info sink got %v", infos)
	}
	if len(errs) != 1 || errs[0] != "bad day" {
		t.Errorf("error sink got %v", errs)
	}
	// The prompted answer replaces the preset login.
	if conv.Username() != "bob" {
		t.Errorf("Username = %q, want bob", conv.Username())
	}
}

func TestPromptConvLoginAnswersVisiblePrompt(t *testing.T) {
	conv := &PromptConv{Login: "alice"}
	answers, err := conv.Respond([]Message{{Style: PromptEchoOn, Text: "login: "}})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if answers[0] != "alice" {
		t.Errorf("visible prompt answered %q, want alice", answers[0])
	}
}

func TestPromptConvMissingResponder(t *testing.T) {
	conv := &PromptConv{Login: "alice"}
	_, err := conv.Respond([]Message{{Style: PromptEchoOff, Text: "Password: "}})
	if !errors.Is(err, pamerrors.ErrConversation) {
		t.Fatalf("expected ErrConversation, got %v", err)
	}

	conv = &PromptConv{}
	_, err = conv.Respond([]Message{{Style: PromptEchoOn, Text: "login: "}})
	if !errors.Is(err, pamerrors.ErrConversation) {
		t.Fatalf("expected ErrConversation for visible prompt, got %v", err)
	}
}

func TestPromptConvResponderError(t *testing.T) {
	conv := &PromptConv{
		EchoOff: func(prompt string) (string, error) {
			return "", errors.New("terminal gone")
		},
	}
	_, err := conv.Respond([]Message{{Style: PromptEchoOff, Text: "Password: "}})
	if !errors.Is(err, pamerrors.ErrConversation) {
		t.Fatalf("expected ErrConversation, got %v", err)
	}
}

func TestPromptConvReconfigure(t *testing.T) {
	conv := &PromptConv{
		EchoOff: func(prompt string) (string, error) { return "first", nil },
	}

	answers, err := conv.Respond([]Message{{Style: PromptEchoOff}})
	if err != nil || answers[0] != "first" {
		t.Fatalf("first attempt: %v %v", answers, err)
	}

	// Swapping the responder between attempts takes effect immediately.
	conv.EchoOff = func(prompt string) (string, error) { return "second", nil }
	answers, err = conv.Respond([]Message{{Style: PromptEchoOff}})
	if err != nil || answers[0] != "second" {
		t.Fatalf("second attempt: %v %v", answers, err)
	}
}

package mail

import (
	"strings"
	"testing"
)

func TestDefaultsApply(t *testing.T) {
	defaults := Defaults{FromName: "Accounts", FromEmail: "no-reply@example.com"}

	msg := defaults.apply(Message{ToEmail: "player@example.com"})
	if msg.FromName != "Accounts" || msg.FromEmail != "no-reply@example.com" {
		t.Fatalf("defaults not applied: %+v", msg)
	}

	msg = defaults.apply(Message{FromName: "Support", FromEmail: "support@example.com"})
	if msg.FromName != "Support" || msg.FromEmail != "support@example.com" {
		t.Fatalf("explicit sender overwritten: %+v", msg)
	}
}

func TestBuildMessage(t *testing.T) {
	raw := buildMessage("Accounts <no-reply@example.com>", "player@example.com", "Hello", "body text")

	lines := strings.Split(raw, "\r\n")
	want := []string{
		"From: Accounts <no-reply@example.com>",
		"To: player@example.com",
		"Subject: Hello",
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"body text",
	}
	if len(lines) != len(want) {
		t.Fatalf("unexpected message shape:\n%s", raw)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestPasswordReset(t *testing.T) {
	msg := PasswordReset("player@example.com", "Ada", "https://app.example.com/password-reset/user-1?token=tok")

	if msg.ToEmail != "player@example.com" {
		t.Fatalf("unexpected recipient: %s", msg.ToEmail)
	}
	if msg.Subject != "Reset your password" {
		t.Fatalf("unexpected subject: %s", msg.Subject)
	}
	if !strings.Contains(msg.TextBody, "Hi Ada,") {
		t.Fatalf("greeting missing from body:\n%s", msg.TextBody)
	}
	if !strings.Contains(msg.TextBody, "https://app.example.com/password-reset/user-1?token=tok") {
		t.Fatalf("reset link missing from body:\n%s", msg.TextBody)
	}
	if msg.FromEmail != "" {
		t.Fatalf("sender should be left to defaults, got %s", msg.FromEmail)
	}

	anon := PasswordReset("player@example.com", "", "https://app.example.com/r")
	if !strings.Contains(anon.TextBody, "Hi,") {
		t.Fatalf("fallback greeting missing:\n%s", anon.TextBody)
	}
}

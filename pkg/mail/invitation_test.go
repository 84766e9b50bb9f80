package mail

import (
	"strings"
	"testing"
	"time"
)

func TestAcceptURL(t *testing.T) {
	got := AcceptURL("https://plan.example.com/", "abc+def")
	want := "https://plan.example.com/invitations/accept?token=abc%2Bdef"
	if got != want {
		t.Fatalf("AcceptURL = %q, want %q", got, want)
	}
}

func TestRenderInvitation(t *testing.T) {
	subject, body := RenderInvitation(InvitationEmail{
		ProjectID:   "sensor-logger",
		InviterName: "alice",
		AcceptURL:   "https://plan.example.com/invitations/accept?token=tok",
		ExpiresAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	if !strings.Contains(subject, "alice") || !strings.Contains(subject, "sensor-logger") {
		t.Fatalf("subject = %q", subject)
	}
	if !strings.Contains(body, "https://plan.example.com/invitations/accept?token=tok") {
		t.Fatalf("body missing accept link: %q", body)
	}
	if !strings.Contains(body, "Mar 1, 2026") {
		t.Fatalf("body missing expiry: %q", body)
	}
}

func TestRenderInvitationDefaultsInviter(t *testing.T) {
	subject, _ := RenderInvitation(InvitationEmail{ProjectID: "p1", AcceptURL: "u"})
	if !strings.HasPrefix(subject, "A collaborator invited") {
		t.Fatalf("subject = %q", subject)
	}
}

func TestBuildMessageHeaders(t *testing.T) {
	msg := string(buildMessage("noreply@example.com", "bob@example.com", "hello", "world"))
	for _, want := range []string{
		"From: noreply@example.com\r\n",
		"To: bob@example.com\r\n",
		"Subject: hello\r\n",
		"\r\n\r\nworld",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

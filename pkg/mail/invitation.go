package mail

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// InvitationEmail holds everything needed to render an invite message.
type InvitationEmail struct {
	ProjectID   string
	InviterName string
	AcceptURL   string
	ExpiresAt   time.Time
}

// AcceptURL builds the link an invitee follows to join a project.
func AcceptURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/invitations/accept?token=" + url.QueryEscape(token)
}

// RenderInvitation produces the subject and plain-text body for an invite.
func RenderInvitation(inv InvitationEmail) (subject, body string) {
	inviter := strings.TrimSpace(inv.InviterName)
	if inviter == "" {
		inviter = "A collaborator"
	}
	subject = fmt.Sprintf("%s invited you to plan project %s", inviter, inv.ProjectID)

	var b strings.Builder
	fmt.Fprintf(&b, "Hi,\n\n")
	fmt.Fprintf(&b, "%s invited you to collaborate on project %q.\n\n", inviter, inv.ProjectID)
	fmt.Fprintf(&b, "Accept the invitation here:\n\n  %s\n\n", inv.AcceptURL)
	if !inv.ExpiresAt.IsZero() {
		fmt.Fprintf(&b, "This link expires on %s.\n\n", inv.ExpiresAt.UTC().Format("Jan 2, 2006 15:04 MST"))
	}
	b.WriteString("If you were not expecting this invitation you can ignore this email.\n")
	return subject, b.String()
}

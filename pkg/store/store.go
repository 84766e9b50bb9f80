package store

import (
	"errors"
	"time"

	"planhub/pkg/domain"
)

// ErrNotFound is returned by delete/update operations that matched no row.
// Lookups signal absence with a bool instead.
var ErrNotFound = errors.New("not found")

// Store defines persistence operations for projects, sessions, messages,
// documents, uploads, and invitations.
type Store interface {
	// projects
	SaveProject(domain.Project) error
	GetProject(id string) (domain.Project, bool, error)
	ListProjects() ([]domain.Project, error)
	TouchProject(id string, at time.Time) error
	// DeleteProject removes the project and everything attached to it:
	// messages, document, sessions, uploads, invitations.
	DeleteProject(id string) error

	// sessions
	SaveSession(domain.Session) error
	GetSession(id string) (domain.Session, bool, error)
	SetSessionInactive(id string) error
	TouchSession(id string, at time.Time) error
	ListActiveSessions(projectID string) ([]domain.Session, error)
	// PurgeSessions marks sessions inactive when they have been idle since
	// before the cutoff, or removes already-inactive rows. Returns how many
	// sessions were purged.
	PurgeSessions(projectID string, idleBefore time.Time) (int, error)
	// ExpireIdleSessions marks idle sessions inactive across all projects.
	ExpireIdleSessions(idleBefore time.Time) (int, error)

	// messages
	AppendMessage(domain.Message) error
	ListMessages(projectID string, limit int) ([]domain.Message, error)

	// documents
	GetDocument(projectID string) (domain.ProjectDocument, bool, error)
	// ReplaceDocument overwrites the whole document. Last write wins; there
	// is no version token guarding concurrent regenerations.
	ReplaceDocument(doc domain.ProjectDocument) error

	// uploads
	SaveUpload(domain.UploadedDocument) error
	GetUpload(id string) (domain.UploadedDocument, bool, error)
	ListUploads(projectID string) ([]domain.UploadedDocument, error)
	DeleteUpload(id string) error

	// invitations
	SaveInvitation(domain.Invitation) error
	GetInvitation(id string) (domain.Invitation, bool, error)
	MarkInvitationUsed(id string, at time.Time) error
}

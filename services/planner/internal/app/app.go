package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"planhub/internal/invitetoken"
	"planhub/internal/util"
	"planhub/pkg/agent"
	"planhub/pkg/domain"
	"planhub/pkg/extract"
	"planhub/pkg/mail"
	"planhub/pkg/queue"
	"planhub/pkg/storage"
	"planhub/pkg/store"
)

const (
	defaultHistoryLimit     = 40
	defaultSessionIdleAfter = 30 * time.Minute
)

// MailQueue schedules delivery of invitation emails and reports job progress.
type MailQueue interface {
	Enqueue(ctx context.Context, invitationID string) (queue.JobStatus, error)
	GetJob(ctx context.Context, jobID string) (queue.JobStatus, bool, error)
}

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	Store       store.Store

	Planner *agent.Planner

	Objects   storage.ObjectStore
	Extractor *extract.Extractor

	InviteCodec     *invitetoken.Codec
	MailQueue       MailQueue
	Mailer          mail.Mailer
	InviteAcceptURL string

	HistoryLimit     int
	SessionIdleAfter time.Duration
}

// App is the core application service wiring storage, the planning agents,
// uploads, and invitations.
type App struct {
	store     store.Store
	planner   *agent.Planner
	objects   storage.ObjectStore
	extractor *extract.Extractor

	inviteCodec     *invitetoken.Codec
	mailQueue       MailQueue
	mailer          mail.Mailer
	inviteAcceptURL string

	historyLimit     int
	sessionIdleAfter time.Duration
}

// New constructs the application with database-backed storage.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	if cfg.Planner == nil {
		return nil, fmt.Errorf("planner required")
	}
	extractor := cfg.Extractor
	if extractor == nil {
		extractor = extract.New()
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	idleAfter := cfg.SessionIdleAfter
	if idleAfter <= 0 {
		idleAfter = defaultSessionIdleAfter
	}
	return &App{
		store:            dataStore,
		planner:          cfg.Planner,
		objects:          cfg.Objects,
		extractor:        extractor,
		inviteCodec:      cfg.InviteCodec,
		mailQueue:        cfg.MailQueue,
		mailer:           cfg.Mailer,
		inviteAcceptURL:  cfg.InviteAcceptURL,
		historyLimit:     historyLimit,
		sessionIdleAfter: idleAfter,
	}, nil
}

// JoinResult is returned by Join and AcceptInvitation.
type JoinResult struct {
	SessionID string `json:"sessionId"`
	ProjectID string `json:"projectId"`
	Message   string `json:"message"`
}

// Join registers a session as active in a project, creating the project on
// first join. A caller-supplied session id is reused so a rejoining client
// keeps its identity instead of accumulating ghost sessions.
func (a *App) Join(sessionID, projectID, userName string) (JoinResult, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return JoinResult{}, ErrProjectIDRequired
	}
	// Clients keep their session id across rejoins; only mint one when the
	// caller did not assert an identity.
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = util.NewID()
	}
	now := time.Now().UTC()
	if err := a.ensureProject(projectID, now); err != nil {
		return JoinResult{}, err
	}
	session := domain.Session{
		ID:           sessionID,
		ProjectID:    projectID,
		UserName:     strings.TrimSpace(userName),
		JoinedAt:     now,
		LastActivity: now,
		Active:       true,
	}
	if err := a.store.SaveSession(session); err != nil {
		return JoinResult{}, fmt.Errorf("save session: %w", err)
	}
	return JoinResult{
		SessionID: session.ID,
		ProjectID: projectID,
		Message:   fmt.Sprintf("joined project %s", projectID),
	}, nil
}

// Leave marks the session inactive. A session the server has never seen is
// a no-op: leave is best-effort and may race with cleanup.
func (a *App) Leave(sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	if err := a.store.SetSessionInactive(sessionID); err != nil {
		return fmt.Errorf("mark session inactive: %w", err)
	}
	return nil
}

// CleanupSessions purges ghost sessions for one project and returns how many
// were removed.
func (a *App) CleanupSessions(projectID string) (int, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return 0, ErrProjectIDRequired
	}
	if _, err := a.requireProject(projectID); err != nil {
		return 0, err
	}
	cutoff := time.Now().UTC().Add(-a.sessionIdleAfter)
	purged, err := a.store.PurgeSessions(projectID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return purged, nil
}

// ChatResult is the outcome of one conversation turn.
type ChatResult struct {
	Response        string              `json:"response"`
	Document        string              `json:"document,omitempty"`
	DocumentUpdated bool                `json:"documentUpdated"`
	ActiveUsers     []domain.ActiveUser `json:"activeUsers"`
}

// Chat runs one conversation turn: append the user message, invoke the agent
// pipeline with accumulated context, append the reply, and replace the
// document when the pipeline regenerated it.
func (a *App) Chat(ctx context.Context, sessionID, projectID, userName, message string) (ChatResult, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ChatResult{}, ErrProjectIDRequired
	}
	if strings.TrimSpace(message) == "" {
		return ChatResult{}, ErrMessageRequired
	}
	now := time.Now().UTC()
	if err := a.ensureProject(projectID, now); err != nil {
		return ChatResult{}, err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID != "" {
		if _, ok, err := a.store.GetSession(sessionID); err == nil && ok {
			_ = a.store.TouchSession(sessionID, now)
		}
	}

	history, err := a.store.ListMessages(projectID, a.historyLimit)
	if err != nil {
		return ChatResult{}, fmt.Errorf("load history: %w", err)
	}
	doc, hasDoc, err := a.store.GetDocument(projectID)
	if err != nil {
		return ChatResult{}, fmt.Errorf("load document: %w", err)
	}
	uploads, err := a.store.ListUploads(projectID)
	if err != nil {
		return ChatResult{}, fmt.Errorf("load uploads: %w", err)
	}

	in := agent.TurnInput{
		ProjectID:             projectID,
		UserName:              strings.TrimSpace(userName),
		Message:               message,
		History:               history,
		MessagesSinceDocWrite: len(history),
		Uploads:               uploads,
	}
	if hasDoc {
		in.Document = doc.Content
		in.MessagesSinceDocWrite = countMessagesAfter(history, doc.UpdatedAt)
	}

	result, err := a.planner.RunTurn(ctx, in)
	if err != nil {
		return ChatResult{}, fmt.Errorf("run turn: %w", err)
	}

	if err := a.store.AppendMessage(domain.Message{
		ID:        util.NewID(),
		ProjectID: projectID,
		SessionID: sessionID,
		Role:      domain.RoleUser,
		Content:   message,
		UserName:  strings.TrimSpace(userName),
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return ChatResult{}, fmt.Errorf("save user message: %w", err)
	}
	if err := a.store.AppendMessage(domain.Message{
		ID:        util.NewID(),
		ProjectID: projectID,
		Role:      domain.RoleAssistant,
		Content:   result.Reply,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return ChatResult{}, fmt.Errorf("save assistant message: %w", err)
	}
	if result.DocumentUpdated {
		if err := a.store.ReplaceDocument(domain.ProjectDocument{
			ProjectID: projectID,
			Content:   result.Document,
			UpdatedAt: time.Now().UTC(),
		}); err != nil {
			return ChatResult{}, fmt.Errorf("replace document: %w", err)
		}
	}
	if err := a.store.TouchProject(projectID, time.Now().UTC()); err != nil {
		return ChatResult{}, fmt.Errorf("touch project: %w", err)
	}

	users, err := a.ActiveUsers(projectID)
	if err != nil {
		return ChatResult{}, err
	}
	out := ChatResult{
		Response:        result.Reply,
		DocumentUpdated: result.DocumentUpdated,
		ActiveUsers:     users,
	}
	if result.DocumentUpdated {
		out.Document = result.Document
	}
	return out, nil
}

// HistoryResult is the full project snapshot the polling client consumes.
type HistoryResult struct {
	History     []domain.Message    `json:"history"`
	Document    string              `json:"document"`
	ActiveUsers []domain.ActiveUser `json:"activeUsers"`
}

// History returns messages, document, and active users in one snapshot.
func (a *App) History(projectID string) (HistoryResult, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return HistoryResult{}, ErrProjectIDRequired
	}
	if _, err := a.requireProject(projectID); err != nil {
		return HistoryResult{}, err
	}
	messages, err := a.store.ListMessages(projectID, 0)
	if err != nil {
		return HistoryResult{}, fmt.Errorf("list messages: %w", err)
	}
	document, err := a.Document(projectID)
	if err != nil {
		return HistoryResult{}, err
	}
	users, err := a.ActiveUsers(projectID)
	if err != nil {
		return HistoryResult{}, err
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return HistoryResult{
		History:     messages,
		Document:    document,
		ActiveUsers: users,
	}, nil
}

// Document returns the current plan, or the placeholder when none was
// generated yet.
func (a *App) Document(projectID string) (string, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return "", ErrProjectIDRequired
	}
	if _, err := a.requireProject(projectID); err != nil {
		return "", err
	}
	doc, ok, err := a.store.GetDocument(projectID)
	if err != nil {
		return "", fmt.Errorf("load document: %w", err)
	}
	if !ok || strings.TrimSpace(doc.Content) == "" {
		return domain.PlaceholderDocument, nil
	}
	return doc.Content, nil
}

// ListProjects lists projects newest-updated first with active user counts.
func (a *App) ListProjects() ([]domain.Project, error) {
	projects, err := a.store.ListProjects()
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	for i := range projects {
		sessions, err := a.store.ListActiveSessions(projects[i].ID)
		if err != nil {
			return nil, fmt.Errorf("count active sessions: %w", err)
		}
		projects[i].ActiveUsers = len(sessions)
	}
	if projects == nil {
		projects = []domain.Project{}
	}
	return projects, nil
}

// DeleteProject removes the project and everything attached to it.
func (a *App) DeleteProject(projectID string) error {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ErrProjectIDRequired
	}
	uploads, err := a.store.ListUploads(projectID)
	if err != nil {
		return fmt.Errorf("list uploads: %w", err)
	}
	if err := a.store.DeleteProject(projectID); err != nil {
		if err == store.ErrNotFound {
			return ErrProjectNotFound
		}
		return fmt.Errorf("delete project: %w", err)
	}
	// Object removal is best-effort: the rows are already gone.
	if a.objects != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, upload := range uploads {
			if upload.StorageKey != "" {
				_ = a.objects.Delete(ctx, upload.StorageKey)
			}
		}
	}
	return nil
}

// ProjectStatus reports a project with its current active user count.
func (a *App) ProjectStatus(projectID string) (domain.Project, error) {
	project, err := a.requireProject(projectID)
	if err != nil {
		return domain.Project{}, err
	}
	sessions, err := a.store.ListActiveSessions(project.ID)
	if err != nil {
		return domain.Project{}, fmt.Errorf("count active sessions: %w", err)
	}
	project.ActiveUsers = len(sessions)
	return project, nil
}

// ActiveUsers returns the public view of a project's active sessions.
func (a *App) ActiveUsers(projectID string) ([]domain.ActiveUser, error) {
	sessions, err := a.store.ListActiveSessions(projectID)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	users := make([]domain.ActiveUser, 0, len(sessions))
	for _, session := range sessions {
		users = append(users, domain.ActiveUser{
			SessionID: session.ID,
			UserName:  session.UserName,
			JoinedAt:  session.JoinedAt,
		})
	}
	return users, nil
}

// Upload stores an uploaded reference file: raw bytes to object storage,
// extracted text to the database.
func (a *App) Upload(ctx context.Context, projectID, userName, filename string, r io.Reader, size int64) (domain.UploadedDocument, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return domain.UploadedDocument{}, ErrProjectIDRequired
	}
	if _, err := a.requireProject(projectID); err != nil {
		return domain.UploadedDocument{}, err
	}
	filename = strings.TrimSpace(filepath.Base(filename))
	if filename == "" || filename == "." {
		return domain.UploadedDocument{}, fmt.Errorf("filename required")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.UploadedDocument{}, fmt.Errorf("read upload: %w", err)
	}
	if size <= 0 {
		size = int64(len(data))
	}
	extracted, err := a.extractor.Extract(filename, data)
	if err != nil {
		return domain.UploadedDocument{}, fmt.Errorf("extract text: %w", err)
	}
	upload := domain.UploadedDocument{
		ID:         util.NewID(),
		ProjectID:  projectID,
		Filename:   filename,
		FileSize:   size,
		FileType:   strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."),
		UploadedBy: strings.TrimSpace(userName),
		UploadedAt: time.Now().UTC(),
		Content:    extracted.Content,
		Metadata:   extracted.Metadata,
	}
	if a.objects != nil {
		key := storage.UploadKey(projectID, upload.ID, filename)
		if err := a.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentTypeFor(upload.FileType)); err != nil {
			return domain.UploadedDocument{}, fmt.Errorf("store upload: %w", err)
		}
		upload.StorageKey = key
	}
	if err := a.store.SaveUpload(upload); err != nil {
		if a.objects != nil && upload.StorageKey != "" {
			_ = a.objects.Delete(ctx, upload.StorageKey)
		}
		return domain.UploadedDocument{}, fmt.Errorf("save upload: %w", err)
	}
	return upload, nil
}

// GetUpload returns one upload including its extracted content.
func (a *App) GetUpload(uploadID string) (domain.UploadedDocument, error) {
	uploadID = strings.TrimSpace(uploadID)
	if uploadID == "" {
		return domain.UploadedDocument{}, ErrUploadNotFound
	}
	upload, ok, err := a.store.GetUpload(uploadID)
	if err != nil {
		return domain.UploadedDocument{}, fmt.Errorf("load upload: %w", err)
	}
	if !ok {
		return domain.UploadedDocument{}, ErrUploadNotFound
	}
	return upload, nil
}

// ListUploads returns a project's uploads without their extracted content.
func (a *App) ListUploads(projectID string) ([]domain.UploadedDocument, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, ErrProjectIDRequired
	}
	if _, err := a.requireProject(projectID); err != nil {
		return nil, err
	}
	uploads, err := a.store.ListUploads(projectID)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	for i := range uploads {
		uploads[i].Content = ""
	}
	if uploads == nil {
		uploads = []domain.UploadedDocument{}
	}
	return uploads, nil
}

// DownloadURL returns a pre-signed URL for the raw uploaded file.
func (a *App) DownloadURL(ctx context.Context, uploadID string) (string, error) {
	if a.objects == nil {
		return "", ErrUploadsDisabled
	}
	upload, err := a.GetUpload(uploadID)
	if err != nil {
		return "", err
	}
	if upload.StorageKey == "" {
		return "", ErrUploadNotFound
	}
	url, err := a.objects.PresignGet(ctx, upload.StorageKey, 15*time.Minute)
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return url, nil
}

// DeleteUpload removes the row and, best-effort, the stored object.
func (a *App) DeleteUpload(uploadID string) error {
	upload, err := a.GetUpload(uploadID)
	if err != nil {
		return err
	}
	if err := a.store.DeleteUpload(upload.ID); err != nil {
		if err == store.ErrNotFound {
			return ErrUploadNotFound
		}
		return fmt.Errorf("delete upload: %w", err)
	}
	if a.objects != nil && upload.StorageKey != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = a.objects.Delete(ctx, upload.StorageKey)
	}
	return nil
}

// InviteResult is returned to the inviter.
type InviteResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	InvitationID string `json:"invitationId,omitempty"`
	MailJobID    string `json:"mailJobId,omitempty"`
}

// Invite creates a single-use invitation and queues its email for delivery.
func (a *App) Invite(ctx context.Context, projectID, email, inviterName string) (InviteResult, error) {
	if a.inviteCodec == nil {
		return InviteResult{}, ErrInvitesDisabled
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return InviteResult{}, ErrProjectIDRequired
	}
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return InviteResult{}, ErrEmailRequired
	}
	if _, err := a.requireProject(projectID); err != nil {
		return InviteResult{}, err
	}
	now := time.Now().UTC()
	invitation := domain.Invitation{
		ID:          util.NewID(),
		ProjectID:   projectID,
		Email:       email,
		InviterName: strings.TrimSpace(inviterName),
		CreatedAt:   now,
		ExpiresAt:   now.Add(a.inviteCodec.TTL()),
	}
	if err := a.store.SaveInvitation(invitation); err != nil {
		return InviteResult{}, fmt.Errorf("save invitation: %w", err)
	}
	var mailJobID string
	if a.mailQueue != nil {
		job, err := a.mailQueue.Enqueue(ctx, invitation.ID)
		if err != nil {
			return InviteResult{}, fmt.Errorf("queue invitation mail: %w", err)
		}
		mailJobID = job.ID
	}
	return InviteResult{
		Success:      true,
		Message:      fmt.Sprintf("invitation sent to %s", email),
		InvitationID: invitation.ID,
		MailJobID:    mailJobID,
	}, nil
}

// MailJobStatus reports delivery progress for a queued invitation email.
func (a *App) MailJobStatus(ctx context.Context, jobID string) (queue.JobStatus, error) {
	if a.mailQueue == nil {
		return queue.JobStatus{}, ErrInvitesDisabled
	}
	job, ok, err := a.mailQueue.GetJob(ctx, jobID)
	if err != nil {
		return queue.JobStatus{}, fmt.Errorf("get mail job: %w", err)
	}
	if !ok {
		return queue.JobStatus{}, ErrMailJobNotFound
	}
	return job, nil
}

// ValidationResult answers whether an invitation token can still be accepted.
type ValidationResult struct {
	Valid     bool   `json:"valid"`
	ProjectID string `json:"projectId,omitempty"`
	Message   string `json:"message"`
}

// ValidateInvitation checks signature, store record, expiry, and reuse.
func (a *App) ValidateInvitation(token string) (ValidationResult, error) {
	invitation, err := a.resolveInvitation(token)
	if err != nil {
		switch err {
		case ErrInvitationExpired:
			return ValidationResult{Valid: false, Message: "invitation expired"}, nil
		case ErrInvitationInvalid:
			return ValidationResult{Valid: false, Message: "invitation invalid"}, nil
		}
		return ValidationResult{}, err
	}
	return ValidationResult{
		Valid:     true,
		ProjectID: invitation.ProjectID,
		Message:   "invitation valid",
	}, nil
}

// AcceptInvitation burns the token and joins the invitee to the project.
func (a *App) AcceptInvitation(sessionID, token, userName string) (JoinResult, error) {
	invitation, err := a.resolveInvitation(token)
	if err != nil {
		return JoinResult{}, err
	}
	// Single-use: the store refuses a second mark, so a concurrent accept
	// loses here rather than producing two sessions from one token.
	if err := a.store.MarkInvitationUsed(invitation.ID, time.Now().UTC()); err != nil {
		if err == store.ErrNotFound {
			return JoinResult{}, ErrInvitationInvalid
		}
		return JoinResult{}, fmt.Errorf("mark invitation used: %w", err)
	}
	if strings.TrimSpace(userName) == "" {
		userName = invitation.Email
	}
	return a.Join(sessionID, invitation.ProjectID, userName)
}

// HandleMailJob delivers one queued invitation email.
func (a *App) HandleMailJob(ctx context.Context, job queue.JobStatus) error {
	if a.inviteCodec == nil || a.mailer == nil {
		return fmt.Errorf("mail delivery not configured")
	}
	invitation, ok, err := a.store.GetInvitation(job.InvitationID)
	if err != nil {
		return fmt.Errorf("load invitation: %w", err)
	}
	if !ok || invitation.Used() || time.Now().UTC().After(invitation.ExpiresAt) {
		// Nothing to deliver; treat as done so the job is not retried.
		return nil
	}
	token, _, err := a.inviteCodec.Sign(invitation.ID, invitation.ProjectID, invitation.Email)
	if err != nil {
		return fmt.Errorf("sign invitation token: %w", err)
	}
	subject, body := mail.RenderInvitation(mail.InvitationEmail{
		ProjectID:   invitation.ProjectID,
		InviterName: invitation.InviterName,
		AcceptURL:   mail.AcceptURL(a.inviteAcceptURL, token),
		ExpiresAt:   invitation.ExpiresAt,
	})
	if err := a.mailer.Send(invitation.Email, subject, body); err != nil {
		return fmt.Errorf("send invitation mail: %w", err)
	}
	return nil
}

func (a *App) resolveInvitation(token string) (domain.Invitation, error) {
	if a.inviteCodec == nil {
		return domain.Invitation{}, ErrInvitesDisabled
	}
	claims, err := a.inviteCodec.Verify(token)
	if err != nil {
		return domain.Invitation{}, ErrInvitationInvalid
	}
	invitation, ok, err := a.store.GetInvitation(claims.InvitationID)
	if err != nil {
		return domain.Invitation{}, fmt.Errorf("load invitation: %w", err)
	}
	if !ok || invitation.Used() {
		return domain.Invitation{}, ErrInvitationInvalid
	}
	if time.Now().UTC().After(invitation.ExpiresAt) {
		return domain.Invitation{}, ErrInvitationExpired
	}
	if _, ok, err := a.store.GetProject(invitation.ProjectID); err != nil {
		return domain.Invitation{}, fmt.Errorf("load project: %w", err)
	} else if !ok {
		return domain.Invitation{}, ErrInvitationInvalid
	}
	return invitation, nil
}

func (a *App) ensureProject(projectID string, now time.Time) error {
	_, ok, err := a.store.GetProject(projectID)
	if err != nil {
		return fmt.Errorf("load project: %w", err)
	}
	if ok {
		return nil
	}
	if err := a.store.SaveProject(domain.Project{
		ID:        projectID,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (a *App) requireProject(projectID string) (domain.Project, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return domain.Project{}, ErrProjectIDRequired
	}
	project, ok, err := a.store.GetProject(projectID)
	if err != nil {
		return domain.Project{}, fmt.Errorf("load project: %w", err)
	}
	if !ok {
		return domain.Project{}, ErrProjectNotFound
	}
	return project, nil
}

func countMessagesAfter(messages []domain.Message, cutoff time.Time) int {
	count := 0
	for _, msg := range messages {
		if msg.CreatedAt.After(cutoff) {
			count++
		}
	}
	return count
}

func contentTypeFor(fileType string) string {
	switch fileType {
	case "pdf":
		return "application/pdf"
	case "html", "htm":
		return "text/html"
	case "md", "markdown":
		return "text/markdown"
	default:
		return "text/plain"
	}
}

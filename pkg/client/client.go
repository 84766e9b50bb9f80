// Package client is a Go consumer of the planning service: a thin REST
// wrapper plus a polling synchronizer that mirrors server state locally.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"planhub/pkg/domain"
)

// ErrSendInFlight is returned when a send starts before the previous one for
// the same session resolved.
var ErrSendInFlight = errors.New("send already in flight")

// APIError represents a non-2xx service response.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client calls the planning service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a service client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Session is the explicit session-context object: every mutating call made
// through it carries the X-Session-Id header.
type Session struct {
	client    *Client
	id        string
	projectID string
	userName  string

	mu           sync.Mutex
	sendInFlight bool
}

// ID returns the server-issued session identifier.
func (s *Session) ID() string { return s.id }

// ProjectID returns the joined project.
func (s *Session) ProjectID() string { return s.projectID }

type joinResponse struct {
	SessionID string `json:"sessionId"`
	ProjectID string `json:"projectId"`
	Message   string `json:"message"`
}

// Join registers a new session in a project and returns the session context.
func (c *Client) Join(ctx context.Context, projectID, userName string) (*Session, error) {
	var res joinResponse
	err := c.doJSON(ctx, http.MethodPost, "/join", "", map[string]string{
		"projectId": projectID,
		"userName":  userName,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &Session{
		client:    c,
		id:        res.SessionID,
		projectID: res.ProjectID,
		userName:  userName,
	}, nil
}

// Leave marks the session inactive. Best-effort on the server side; an error
// here still means the local session should be discarded.
func (s *Session) Leave(ctx context.Context) error {
	return s.client.doJSON(ctx, http.MethodPost, "/leave", s.id, nil, nil)
}

// ChatResponse is one turn's outcome.
type ChatResponse struct {
	Response        string              `json:"response"`
	Document        string              `json:"document"`
	DocumentUpdated bool                `json:"documentUpdated"`
	ActiveUsers     []domain.ActiveUser `json:"activeUsers"`
}

// Send submits one chat message. A second Send while the first is unresolved
// returns ErrSendInFlight without issuing a request; concurrent sends from
// other sessions are not guarded.
func (s *Session) Send(ctx context.Context, message string) (ChatResponse, error) {
	s.mu.Lock()
	if s.sendInFlight {
		s.mu.Unlock()
		return ChatResponse{}, ErrSendInFlight
	}
	s.sendInFlight = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.sendInFlight = false
		s.mu.Unlock()
	}()

	var res ChatResponse
	err := s.client.doJSON(ctx, http.MethodPost, "/chat", s.id, map[string]string{
		"message":   message,
		"projectId": s.projectID,
		"userName":  s.userName,
	}, &res)
	if err != nil {
		return ChatResponse{}, err
	}
	return res, nil
}

// Snapshot is the full server-side project state the synchronizer polls.
type Snapshot struct {
	History     []domain.Message    `json:"history"`
	Document    string              `json:"document"`
	ActiveUsers []domain.ActiveUser `json:"activeUsers"`
}

// History fetches the project snapshot.
func (c *Client) History(ctx context.Context, projectID string) (Snapshot, error) {
	var res Snapshot
	err := c.doJSON(ctx, http.MethodGet, "/history/"+url.PathEscape(projectID), "", nil, &res)
	return res, err
}

// Document fetches the current plan document.
func (c *Client) Document(ctx context.Context, projectID string) (string, error) {
	var res struct {
		Document string `json:"document"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/document/"+url.PathEscape(projectID), "", nil, &res)
	return res.Document, err
}

// Projects lists all projects.
func (c *Client) Projects(ctx context.Context) ([]domain.Project, error) {
	var res struct {
		Projects []domain.Project `json:"projects"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/projects", "", nil, &res)
	return res.Projects, err
}

// DeleteProject removes a project and everything attached to it.
func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/projects/"+url.PathEscape(projectID), "", nil, nil)
}

// CleanupSessions purges ghost sessions for a project.
func (c *Client) CleanupSessions(ctx context.Context, projectID string) error {
	return c.doJSON(ctx, http.MethodPost, "/projects/"+url.PathEscape(projectID)+"/cleanup-sessions", "", nil, nil)
}

// UploadResult is returned after storing a reference file.
type UploadResult struct {
	UploadID string `json:"uploadId"`
	Filename string `json:"filename"`
	FileSize int64  `json:"fileSize"`
	Message  string `json:"message"`
}

// Upload stores a reference file in a project.
func (c *Client) Upload(ctx context.Context, projectID, filename, userName string, r io.Reader) (UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return UploadResult{}, err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return UploadResult{}, err
	}
	if userName != "" {
		_ = mw.WriteField("userName", userName)
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/projects/"+url.PathEscape(projectID)+"/upload", &buf)
	if err != nil {
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var res UploadResult
	if err := c.do(req, &res); err != nil {
		return UploadResult{}, err
	}
	return res, nil
}

// Uploads lists a project's uploads without extracted content.
func (c *Client) Uploads(ctx context.Context, projectID string) ([]domain.UploadedDocument, error) {
	var res struct {
		Documents []domain.UploadedDocument `json:"documents"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/projects/"+url.PathEscape(projectID)+"/uploads", "", nil, &res)
	return res.Documents, err
}

// GetUpload fetches one upload including extracted content.
func (c *Client) GetUpload(ctx context.Context, uploadID string) (domain.UploadedDocument, error) {
	var res domain.UploadedDocument
	err := c.doJSON(ctx, http.MethodGet, "/uploads/"+url.PathEscape(uploadID), "", nil, &res)
	return res, err
}

// DeleteUpload removes an upload.
func (c *Client) DeleteUpload(ctx context.Context, uploadID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/uploads/"+url.PathEscape(uploadID), "", nil, nil)
}

// InviteResult is returned to the inviter.
type InviteResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	InvitationID string `json:"invitationId"`
	MailJobID    string `json:"mailJobId"`
}

// Invite emails a single-use project invitation.
func (c *Client) Invite(ctx context.Context, projectID, email, inviterName string) (InviteResult, error) {
	var res InviteResult
	err := c.doJSON(ctx, http.MethodPost, "/projects/"+url.PathEscape(projectID)+"/invite", "", map[string]string{
		"email":       email,
		"inviterName": inviterName,
	}, &res)
	return res, err
}

// MailJobStatus reports delivery progress for an invitation email.
type MailJobStatus struct {
	ID           string `json:"id"`
	InvitationID string `json:"invitationId"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage"`
	Attempts     int    `json:"attempts"`
}

// MailJob fetches the delivery status of a queued invitation email.
func (c *Client) MailJob(ctx context.Context, jobID string) (MailJobStatus, error) {
	var res MailJobStatus
	err := c.doJSON(ctx, http.MethodGet, "/mail-jobs/"+url.PathEscape(jobID), "", nil, &res)
	return res, err
}

// ValidationResult answers whether an invitation token is still acceptable.
type ValidationResult struct {
	Valid     bool   `json:"valid"`
	ProjectID string `json:"projectId"`
	Message   string `json:"message"`
}

// ValidateInvitation checks an invitation token without burning it.
func (c *Client) ValidateInvitation(ctx context.Context, token string) (ValidationResult, error) {
	var res ValidationResult
	err := c.doJSON(ctx, http.MethodGet, "/invitations/"+url.PathEscape(token)+"/validate", "", nil, &res)
	return res, err
}

// AcceptInvitation burns the token and returns a joined session.
func (c *Client) AcceptInvitation(ctx context.Context, token, userName string) (*Session, error) {
	var res joinResponse
	err := c.doJSON(ctx, http.MethodPost, "/invitations/"+url.PathEscape(token)+"/accept", "", map[string]string{
		"userName": userName,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &Session{
		client:    c,
		id:        res.SessionID,
		projectID: res.ProjectID,
		userName:  userName,
	}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, sessionID string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.Header.Set("X-Session-Id", sessionID)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg, Code: errResp.Code}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

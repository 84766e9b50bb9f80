package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"planhub/internal/ratelimit"
	"planhub/internal/util"
	"planhub/services/planner/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App               *app.App
	MaxUploadBytes    int64
	AllowedExtensions []string

	// Limiters are optional; nil disables rate limiting for that route.
	JoinLimiter   *ratelimit.FixedWindowLimiter
	ChatLimiter   *ratelimit.FixedWindowLimiter
	InviteLimiter *ratelimit.FixedWindowLimiter
}

// Server exposes the HTTP endpoints of the planning service.
type Server struct {
	app               *app.App
	mux               *http.ServeMux
	maxUploadBytes    int64
	allowedExtensions map[string]struct{}
	joinLimiter       *ratelimit.FixedWindowLimiter
	chatLimiter       *ratelimit.FixedWindowLimiter
	inviteLimiter     *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 20 * 1024 * 1024
	}
	s := &Server{
		app:               cfg.App,
		mux:               http.NewServeMux(),
		maxUploadBytes:    maxUploadBytes,
		allowedExtensions: normalizeExtensions(cfg.AllowedExtensions),
		joinLimiter:       cfg.JoinLimiter,
		chatLimiter:       cfg.ChatLimiter,
		inviteLimiter:     cfg.InviteLimiter,
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("planner", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	s.mux.HandleFunc("/join", s.handleJoin)
	s.mux.HandleFunc("/leave", s.handleLeave)
	s.mux.HandleFunc("/chat", s.handleChat)
	s.mux.HandleFunc("/document/", s.handleDocument)
	s.mux.HandleFunc("/history/", s.handleHistory)

	s.mux.HandleFunc("/projects", s.handleProjects)
	s.mux.HandleFunc("/projects/", s.handleProjectByID)

	s.mux.HandleFunc("/uploads/", s.handleUploadByID)
	s.mux.HandleFunc("/invitations/", s.handleInvitation)
	s.mux.HandleFunc("/mail-jobs/", s.handleMailJob)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type joinRequest struct {
	ProjectID string `json:"projectId"`
	UserName  string `json:"userName"`
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.joinLimiter, "too many join attempts") {
		return
	}
	var req joinRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.app.Join(sessionIDFrom(r), req.ProjectID, req.UserName)
	if err != nil {
		s.audit(r, "planner.join", "fail", "project_id", req.ProjectID)
		writeAppError(w, err)
		return
	}
	s.audit(r, "planner.join", "success", "project_id", res.ProjectID, "session_id", res.SessionID)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	sessionID := sessionIDFrom(r)
	if err := s.app.Leave(sessionID); err != nil {
		// Leave is best-effort; failure is logged, not surfaced.
		slog.Warn("leave failed", "session_id", sessionID, "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

type chatRequest struct {
	Message   string `json:"message"`
	ProjectID string `json:"projectId"`
	UserName  string `json:"userName"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.chatLimiter, "too many chat requests") {
		return
	}
	var req chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.app.Chat(r.Context(), sessionIDFrom(r), req.ProjectID, req.UserName, req.Message)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/document/")
	document, err := s.app.Document(id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"document": document})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/history/")
	res, err := s.app.History(id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	projects, err := s.app.ListProjects()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

// /projects/{id} plus the per-project sub-resources.
func (s *Server) handleProjectByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/projects/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		notFound(w, "not found")
		return
	}
	if len(parts) == 1 {
		if r.Method != http.MethodDelete {
			methodNotAllowed(w)
			return
		}
		if err := s.app.DeleteProject(id); err != nil {
			writeAppError(w, err)
			return
		}
		s.audit(r, "planner.project.delete", "success", "project_id", id)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	switch parts[1] {
	case "cleanup-sessions":
		s.handleCleanupSessions(w, r, id)
	case "upload":
		s.handleUpload(w, r, id)
	case "uploads":
		s.handleListUploads(w, r, id)
	case "invite":
		s.handleInvite(w, r, id)
	case "status":
		s.handleProjectStatus(w, r, id)
	case "users":
		s.handleProjectUsers(w, r, id)
	default:
		notFound(w, "not found")
	}
}

func (s *Server) handleCleanupSessions(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	purged, err := s.app.CleanupSessions(id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	s.audit(r, "planner.sessions.cleanup", "success", "project_id", id, "purged", purged)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProjectStatus(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	project, err := s.app.ProjectStatus(id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleProjectUsers(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if _, err := s.app.ProjectStatus(id); err != nil {
		writeAppError(w, err)
		return
	}
	users, err := s.app.ActiveUsers(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activeUsers": users})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()
	if !s.isExtensionAllowed(header.Filename) {
		writeError(w, http.StatusBadRequest, "unsupported file type")
		return
	}
	userName := strings.TrimSpace(r.FormValue("userName"))
	upload, err := s.app.Upload(r.Context(), id, userName, header.Filename, file, header.Size)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"uploadId": upload.ID,
		"filename": upload.Filename,
		"fileSize": upload.FileSize,
		"message":  "upload stored",
	})
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	uploads, err := s.app.ListUploads(id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": uploads})
}

type inviteRequest struct {
	Email       string `json:"email"`
	InviterName string `json:"inviterName"`
}

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.inviteLimiter, "too many invitations") {
		return
	}
	var req inviteRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.app.Invite(r.Context(), id, req.Email, req.InviterName)
	if err != nil {
		s.audit(r, "planner.invite", "fail", "project_id", id)
		writeAppError(w, err)
		return
	}
	s.audit(r, "planner.invite", "success", "project_id", id, "invitation_id", res.InvitationID)
	writeJSON(w, http.StatusOK, res)
}

// /uploads/{uploadId} or /uploads/{uploadId}/download
func (s *Server) handleUploadByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/uploads/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		notFound(w, "not found")
		return
	}
	if len(parts) == 2 && parts[1] == "download" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		url, err := s.app.DownloadURL(r.Context(), id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
		return
	}
	if len(parts) == 2 {
		notFound(w, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		upload, err := s.app.GetUpload(id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, upload)
	case http.MethodDelete:
		if err := s.app.DeleteUpload(id); err != nil {
			writeAppError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

// /invitations/{token}/validate or /invitations/{token}/accept
func (s *Server) handleInvitation(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/invitations/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" {
		notFound(w, "not found")
		return
	}
	token := parts[0]
	switch parts[1] {
	case "validate":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		res, err := s.app.ValidateInvitation(token)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	case "accept":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req joinRequest
		if r.Body != nil {
			// Body is optional for accept; a username may be supplied.
			_ = json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req)
		}
		res, err := s.app.AcceptInvitation(sessionIDFrom(r), token, req.UserName)
		if err != nil {
			s.audit(r, "planner.invite.accept", "fail")
			writeAppError(w, err)
			return
		}
		s.audit(r, "planner.invite.accept", "success", "project_id", res.ProjectID, "session_id", res.SessionID)
		writeJSON(w, http.StatusOK, res)
	default:
		notFound(w, "not found")
	}
}

// /mail-jobs/{jobId}
func (s *Server) handleMailJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/mail-jobs/")
	if id == "" || strings.Contains(id, "/") {
		notFound(w, "not found")
		return
	}
	job, err := s.app.MailJobStatus(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) isExtensionAllowed(filename string) bool {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return false
	}
	ext := strings.ToLower(filename[idx:])
	_, ok := s.allowedExtensions[ext]
	return ok
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, nil)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, nil),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func sessionIDFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Session-Id"))
}

func normalizeExtensions(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		exts = []string{".pdf", ".txt", ".md", ".html", ".htm"}
	}
	out := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out[ext] = struct{}{}
	}
	return out
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCodeFor(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrProjectIDRequired),
		errors.Is(err, app.ErrMessageRequired),
		errors.Is(err, app.ErrEmailRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrProjectNotFound),
		errors.Is(err, app.ErrUploadNotFound),
		errors.Is(err, app.ErrMailJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrInvitationInvalid),
		errors.Is(err, app.ErrInvitationExpired):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, app.ErrInvitesDisabled),
		errors.Is(err, app.ErrUploadsDisabled):
		writeError(w, http.StatusNotImplemented, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func errorCodeFor(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case message == "project id required":
		return "PLAN_PROJECT_ID_REQUIRED"
	case message == "message required":
		return "PLAN_MESSAGE_REQUIRED"
	case message == "email required":
		return "PLAN_EMAIL_REQUIRED"
	case message == "project not found":
		return "PLAN_PROJECT_NOT_FOUND"
	case message == "upload not found":
		return "PLAN_UPLOAD_NOT_FOUND"
	case message == "mail job not found":
		return "PLAN_MAIL_JOB_NOT_FOUND"
	case message == "invitation invalid":
		return "PLAN_INVITATION_INVALID"
	case message == "invitation expired":
		return "PLAN_INVITATION_EXPIRED"
	case message == "unsupported file type":
		return "PLAN_UNSUPPORTED_FILE_TYPE"
	case message == "invalid form data":
		return "PLAN_INVALID_UPLOAD_FORM"
	case message == "invalid json body":
		return "PLAN_INVALID_REQUEST"
	case message == "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case message == "not found":
		return "SYSTEM_NOT_FOUND"
	}

	switch status {
	case http.StatusBadRequest:
		return "PLAN_INVALID_REQUEST"
	case http.StatusNotFound:
		return "PLAN_NOT_FOUND"
	case http.StatusGone:
		return "PLAN_INVITATION_INVALID"
	case http.StatusTooManyRequests:
		return "SYSTEM_RATE_LIMITED"
	case http.StatusNotImplemented:
		return "SYSTEM_NOT_CONFIGURED"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	default:
		return "SYSTEM_INTERNAL_ERROR"
	}
}

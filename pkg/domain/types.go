package domain

import "time"

// MessageRole identifies who authored a chat message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// PlaceholderDocument is returned for projects that have no generated plan yet.
const PlaceholderDocument = "# Project Plan\n\nWaiting for project details..."

// Session is a client-asserted identity scoped to a single project.
// Identity is self-asserted: any client can present any session id and the
// server records it as-is.
type Session struct {
	ID           string    `json:"sessionId"`
	ProjectID    string    `json:"projectId"`
	UserName     string    `json:"userName,omitempty"`
	JoinedAt     time.Time `json:"joinedAt"`
	LastActivity time.Time `json:"lastActivity"`
	Active       bool      `json:"-"`
}

// ActiveUser is the public view of an active session inside a project.
type ActiveUser struct {
	SessionID string    `json:"sessionId"`
	UserName  string    `json:"userName,omitempty"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// Project is a named collaborative workspace holding one document and one
// message history. Created implicitly on first join.
type Project struct {
	ID          string    `json:"projectId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	ActiveUsers int       `json:"activeUsers"`
}

// Message is one chat entry. Immutable once appended; display order equals
// server append order.
type Message struct {
	ID        string      `json:"id"`
	ProjectID string      `json:"projectId"`
	SessionID string      `json:"sessionId,omitempty"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	UserName  string      `json:"userName,omitempty"`
	CreatedAt time.Time   `json:"timestamp"`
}

// Key returns the (content, role) pair clients use to detect new messages.
// Two distinct messages with identical text and role collapse to one key;
// that approximation is part of the protocol.
func (m Message) Key() string {
	return string(m.Role) + "\x00" + m.Content
}

// ProjectDocument is the single mutable markdown plan for a project.
// Replaced wholesale on every regeneration; last write wins.
type ProjectDocument struct {
	ProjectID string    `json:"projectId"`
	Content   string    `json:"document"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UploadedDocument is a user-supplied reference file attached to a project.
// Content holds the extracted plain text, not the raw bytes.
type UploadedDocument struct {
	ID         string    `json:"uploadId"`
	ProjectID  string    `json:"projectId"`
	Filename   string    `json:"filename"`
	FileSize   int64     `json:"fileSize"`
	FileType   string    `json:"fileType"`
	StorageKey string    `json:"-"`
	UploadedBy string    `json:"uploadedBy,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
	Content    string    `json:"content,omitempty"`
	// Metadata carries extractor details (page counts, truncation flags).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Invitation is a single-use invite to join a project.
type Invitation struct {
	ID          string     `json:"invitationId"`
	ProjectID   string     `json:"projectId"`
	Email       string     `json:"email"`
	InviterName string     `json:"inviterName,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	UsedAt      *time.Time `json:"usedAt,omitempty"`
}

// Used reports whether the invitation has already been accepted.
func (i Invitation) Used() bool {
	return i.UsedAt != nil
}

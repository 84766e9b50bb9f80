package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type ProjectModel struct {
	ID        string    `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type SessionModel struct {
	ID           string `gorm:"primaryKey"`
	ProjectID    string `gorm:"not null;index"`
	UserName     string
	JoinedAt     time.Time `gorm:"not null"`
	LastActivity time.Time `gorm:"not null;index"`
	Active       bool      `gorm:"not null;index"`
}

type MessageModel struct {
	ID        string `gorm:"primaryKey"`
	ProjectID string `gorm:"not null;index"`
	SessionID string
	Role      string `gorm:"not null"`
	Content   string `gorm:"type:text;not null"`
	UserName  string
	CreatedAt time.Time `gorm:"not null;index"`
	// Seq preserves append order even when two messages share a timestamp.
	Seq int64 `gorm:"autoIncrement;uniqueIndex"`
}

type DocumentModel struct {
	ProjectID string    `gorm:"primaryKey"`
	Content   string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type UploadModel struct {
	ID         string `gorm:"primaryKey"`
	ProjectID  string `gorm:"not null;index"`
	Filename   string `gorm:"not null"`
	FileSize   int64  `gorm:"not null"`
	FileType   string
	StorageKey string
	UploadedBy string
	UploadedAt time.Time      `gorm:"not null"`
	Content    string         `gorm:"type:text"`
	Metadata   datatypes.JSON `gorm:"type:jsonb"`
}

type InvitationModel struct {
	ID          string `gorm:"primaryKey"`
	ProjectID   string `gorm:"not null;index"`
	Email       string `gorm:"not null"`
	InviterName string
	CreatedAt   time.Time `gorm:"not null"`
	ExpiresAt   time.Time `gorm:"not null"`
	UsedAt      *time.Time
}

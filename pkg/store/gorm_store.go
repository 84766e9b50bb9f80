package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"planhub/pkg/domain"
)

const migrateLockID int64 = 54125412

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations under an advisory lock
// so concurrent replicas do not race on schema changes.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&ProjectModel{},
			&SessionModel{},
			&MessageModel{},
			&DocumentModel{},
			&UploadModel{},
			&InvitationModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveProject creates or updates a project row.
func (s *GormStore) SaveProject(p domain.Project) error {
	model := projectToModel(p)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
	}).Create(&model).Error
}

// GetProject retrieves a project.
func (s *GormStore) GetProject(id string) (domain.Project, bool, error) {
	var model ProjectModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Project{}, false, nil
		}
		return domain.Project{}, false, err
	}
	project := projectFromModel(model)
	count, err := s.activeSessionCount(id)
	if err != nil {
		return domain.Project{}, false, err
	}
	project.ActiveUsers = count
	return project, true, nil
}

// ListProjects returns all projects ordered by last activity, newest first,
// with their active-user counts filled in.
func (s *GormStore) ListProjects() ([]domain.Project, error) {
	var models []ProjectModel
	if err := s.db.Order("updated_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Project, 0, len(models))
	for _, m := range models {
		project := projectFromModel(m)
		count, err := s.activeSessionCount(m.ID)
		if err != nil {
			return nil, err
		}
		project.ActiveUsers = count
		res = append(res, project)
	}
	return res, nil
}

// TouchProject bumps the project updated_at timestamp.
func (s *GormStore) TouchProject(id string, at time.Time) error {
	return s.db.Model(&ProjectModel{}).
		Where("id = ?", id).
		Update("updated_at", at.UTC()).Error
}

// DeleteProject removes the project and all rows attached to it.
func (s *GormStore) DeleteProject(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&ProjectModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		for _, m := range []any{&SessionModel{}, &MessageModel{}, &DocumentModel{}, &UploadModel{}, &InvitationModel{}} {
			if err := tx.Where("project_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GormStore) activeSessionCount(projectID string) (int, error) {
	var count int64
	if err := s.db.Model(&SessionModel{}).
		Where("project_id = ? AND active = ?", projectID, true).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// SaveSession creates or updates a session row.
func (s *GormStore) SaveSession(sess domain.Session) error {
	model := sessionToModel(sess)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"project_id", "user_name", "last_activity", "active"}),
	}).Create(&model).Error
}

// GetSession retrieves a session.
func (s *GormStore) GetSession(id string) (domain.Session, bool, error) {
	var model SessionModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Session{}, false, nil
		}
		return domain.Session{}, false, err
	}
	return sessionFromModel(model), true, nil
}

// SetSessionInactive marks the session inactive. Unknown sessions are a no-op
// because leave is best-effort.
func (s *GormStore) SetSessionInactive(id string) error {
	return s.db.Model(&SessionModel{}).
		Where("id = ?", id).
		Update("active", false).Error
}

// TouchSession records session activity.
func (s *GormStore) TouchSession(id string, at time.Time) error {
	return s.db.Model(&SessionModel{}).
		Where("id = ?", id).
		Update("last_activity", at.UTC()).Error
}

// ListActiveSessions returns active sessions for a project in join order.
func (s *GormStore) ListActiveSessions(projectID string) ([]domain.Session, error) {
	var models []SessionModel
	if err := s.db.
		Where("project_id = ? AND active = ?", projectID, true).
		Order("joined_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Session, 0, len(models))
	for _, m := range models {
		res = append(res, sessionFromModel(m))
	}
	return res, nil
}

// PurgeSessions deactivates idle sessions and deletes inactive rows for a
// project. This is the manual cleanup behind ghost sessions left by missed
// unload signals.
func (s *GormStore) PurgeSessions(projectID string, idleBefore time.Time) (int, error) {
	var purged int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&SessionModel{}).
			Where("project_id = ? AND active = ? AND last_activity < ?", projectID, true, idleBefore.UTC()).
			Update("active", false)
		if res.Error != nil {
			return res.Error
		}
		purged = res.RowsAffected
		return tx.Where("project_id = ? AND active = ?", projectID, false).
			Delete(&SessionModel{}).Error
	})
	return int(purged), err
}

// ExpireIdleSessions deactivates idle sessions across all projects.
func (s *GormStore) ExpireIdleSessions(idleBefore time.Time) (int, error) {
	res := s.db.Model(&SessionModel{}).
		Where("active = ? AND last_activity < ?", true, idleBefore.UTC()).
		Update("active", false)
	return int(res.RowsAffected), res.Error
}

// AppendMessage persists one message. Messages are immutable; there is no
// update path.
func (s *GormStore) AppendMessage(msg domain.Message) error {
	model := messageToModel(msg)
	return s.db.Create(&model).Error
}

// ListMessages returns messages in append order. limit <= 0 means all.
func (s *GormStore) ListMessages(projectID string, limit int) ([]domain.Message, error) {
	var models []MessageModel
	tx := s.db.Where("project_id = ?", projectID).Order("seq ASC")
	if limit > 0 {
		// Keep the newest N while preserving chronological output order.
		var total int64
		if err := s.db.Model(&MessageModel{}).Where("project_id = ?", projectID).Count(&total).Error; err != nil {
			return nil, err
		}
		if total > int64(limit) {
			tx = tx.Offset(int(total) - limit)
		}
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Message, 0, len(models))
	for _, m := range models {
		res = append(res, messageFromModel(m))
	}
	return res, nil
}

// GetDocument retrieves the project document.
func (s *GormStore) GetDocument(projectID string) (domain.ProjectDocument, bool, error) {
	var model DocumentModel
	if err := s.db.First(&model, "project_id = ?", projectID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.ProjectDocument{}, false, nil
		}
		return domain.ProjectDocument{}, false, err
	}
	return documentFromModel(model), true, nil
}

// ReplaceDocument overwrites the project document wholesale.
func (s *GormStore) ReplaceDocument(doc domain.ProjectDocument) error {
	model := documentToModel(doc)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "updated_at"}),
	}).Create(&model).Error
}

// SaveUpload stores uploaded-document metadata and extracted content.
func (s *GormStore) SaveUpload(u domain.UploadedDocument) error {
	model, err := uploadToModel(u)
	if err != nil {
		return err
	}
	return s.db.Create(&model).Error
}

// GetUpload retrieves an uploaded document including extracted content.
func (s *GormStore) GetUpload(id string) (domain.UploadedDocument, bool, error) {
	var model UploadModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.UploadedDocument{}, false, nil
		}
		return domain.UploadedDocument{}, false, err
	}
	upload, err := uploadFromModel(model)
	if err != nil {
		return domain.UploadedDocument{}, false, err
	}
	return upload, true, nil
}

// ListUploads returns uploads for a project, newest first.
func (s *GormStore) ListUploads(projectID string) ([]domain.UploadedDocument, error) {
	var models []UploadModel
	if err := s.db.
		Where("project_id = ?", projectID).
		Order("uploaded_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.UploadedDocument, 0, len(models))
	for _, m := range models {
		upload, err := uploadFromModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, upload)
	}
	return res, nil
}

// DeleteUpload removes an uploaded document row.
func (s *GormStore) DeleteUpload(id string) error {
	res := s.db.Delete(&UploadModel{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveInvitation persists an invitation row.
func (s *GormStore) SaveInvitation(inv domain.Invitation) error {
	model := invitationToModel(inv)
	return s.db.Create(&model).Error
}

// GetInvitation retrieves an invitation by id (the token jti).
func (s *GormStore) GetInvitation(id string) (domain.Invitation, bool, error) {
	var model InvitationModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Invitation{}, false, nil
		}
		return domain.Invitation{}, false, err
	}
	return invitationFromModel(model), true, nil
}

// MarkInvitationUsed stamps the invitation as accepted exactly once.
func (s *GormStore) MarkInvitationUsed(id string, at time.Time) error {
	used := at.UTC()
	res := s.db.Model(&InvitationModel{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", &used)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// model converters

func projectToModel(p domain.Project) ProjectModel {
	return ProjectModel{ID: p.ID, CreatedAt: p.CreatedAt.UTC(), UpdatedAt: p.UpdatedAt.UTC()}
}

func projectFromModel(m ProjectModel) domain.Project {
	return domain.Project{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

func sessionToModel(s domain.Session) SessionModel {
	return SessionModel{
		ID:           s.ID,
		ProjectID:    s.ProjectID,
		UserName:     s.UserName,
		JoinedAt:     s.JoinedAt.UTC(),
		LastActivity: s.LastActivity.UTC(),
		Active:       s.Active,
	}
}

func sessionFromModel(m SessionModel) domain.Session {
	return domain.Session{
		ID:           m.ID,
		ProjectID:    m.ProjectID,
		UserName:     m.UserName,
		JoinedAt:     m.JoinedAt,
		LastActivity: m.LastActivity,
		Active:       m.Active,
	}
}

func messageToModel(msg domain.Message) MessageModel {
	return MessageModel{
		ID:        msg.ID,
		ProjectID: msg.ProjectID,
		SessionID: msg.SessionID,
		Role:      string(msg.Role),
		Content:   msg.Content,
		UserName:  msg.UserName,
		CreatedAt: msg.CreatedAt.UTC(),
	}
}

func messageFromModel(m MessageModel) domain.Message {
	return domain.Message{
		ID:        m.ID,
		ProjectID: m.ProjectID,
		SessionID: m.SessionID,
		Role:      domain.MessageRole(m.Role),
		Content:   m.Content,
		UserName:  m.UserName,
		CreatedAt: m.CreatedAt,
	}
}

func documentToModel(d domain.ProjectDocument) DocumentModel {
	return DocumentModel{ProjectID: d.ProjectID, Content: d.Content, UpdatedAt: d.UpdatedAt.UTC()}
}

func documentFromModel(m DocumentModel) domain.ProjectDocument {
	return domain.ProjectDocument{ProjectID: m.ProjectID, Content: m.Content, UpdatedAt: m.UpdatedAt}
}

func uploadToModel(u domain.UploadedDocument) (UploadModel, error) {
	var meta datatypes.JSON
	if len(u.Metadata) > 0 {
		raw, err := json.Marshal(u.Metadata)
		if err != nil {
			return UploadModel{}, fmt.Errorf("marshal upload metadata: %w", err)
		}
		meta = datatypes.JSON(raw)
	}
	return UploadModel{
		ID:         u.ID,
		ProjectID:  u.ProjectID,
		Filename:   u.Filename,
		FileSize:   u.FileSize,
		FileType:   u.FileType,
		StorageKey: u.StorageKey,
		UploadedBy: u.UploadedBy,
		UploadedAt: u.UploadedAt.UTC(),
		Content:    u.Content,
		Metadata:   meta,
	}, nil
}

func uploadFromModel(m UploadModel) (domain.UploadedDocument, error) {
	var meta map[string]string
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &meta); err != nil {
			return domain.UploadedDocument{}, fmt.Errorf("unmarshal upload metadata: %w", err)
		}
	}
	return domain.UploadedDocument{
		ID:         m.ID,
		ProjectID:  m.ProjectID,
		Filename:   m.Filename,
		FileSize:   m.FileSize,
		FileType:   m.FileType,
		StorageKey: m.StorageKey,
		UploadedBy: m.UploadedBy,
		UploadedAt: m.UploadedAt,
		Content:    m.Content,
		Metadata:   meta,
	}, nil
}

func invitationToModel(i domain.Invitation) InvitationModel {
	return InvitationModel{
		ID:          i.ID,
		ProjectID:   i.ProjectID,
		Email:       i.Email,
		InviterName: i.InviterName,
		CreatedAt:   i.CreatedAt.UTC(),
		ExpiresAt:   i.ExpiresAt.UTC(),
		UsedAt:      i.UsedAt,
	}
}

func invitationFromModel(m InvitationModel) domain.Invitation {
	return domain.Invitation{
		ID:          m.ID,
		ProjectID:   m.ProjectID,
		Email:       m.Email,
		InviterName: m.InviterName,
		CreatedAt:   m.CreatedAt,
		ExpiresAt:   m.ExpiresAt,
		UsedAt:      m.UsedAt,
	}
}

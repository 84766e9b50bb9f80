package store

import (
	"sort"
	"sync"
	"time"

	"planhub/pkg/domain"
)

// MemoryStore keeps all state in-process. It backs unit tests and the
// zero-dependency development mode.
type MemoryStore struct {
	mu          sync.RWMutex
	projects    map[string]domain.Project
	sessions    map[string]domain.Session
	messages    map[string][]domain.Message // projectID -> append order
	documents   map[string]domain.ProjectDocument
	uploads     map[string]domain.UploadedDocument
	invitations map[string]domain.Invitation
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects:    make(map[string]domain.Project),
		sessions:    make(map[string]domain.Session),
		messages:    make(map[string][]domain.Message),
		documents:   make(map[string]domain.ProjectDocument),
		uploads:     make(map[string]domain.UploadedDocument),
		invitations: make(map[string]domain.Invitation),
	}
}

// SaveProject stores or replaces a project record.
func (m *MemoryStore) SaveProject(p domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.projects[p.ID]; ok {
		existing.UpdatedAt = p.UpdatedAt
		m.projects[p.ID] = existing
		return nil
	}
	m.projects[p.ID] = p
	return nil
}

// GetProject returns a project with its active-user count.
func (m *MemoryStore) GetProject(id string) (domain.Project, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return domain.Project{}, false, nil
	}
	p.ActiveUsers = m.activeCountLocked(id)
	return p, true, nil
}

// ListProjects returns projects ordered by last activity, newest first.
func (m *MemoryStore) ListProjects() ([]domain.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Project, 0, len(m.projects))
	for _, p := range m.projects {
		p.ActiveUsers = m.activeCountLocked(p.ID)
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].UpdatedAt.Equal(res[j].UpdatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].UpdatedAt.After(res[j].UpdatedAt)
	})
	return res, nil
}

// TouchProject bumps the project activity timestamp.
func (m *MemoryStore) TouchProject(id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil
	}
	p.UpdatedAt = at.UTC()
	m.projects[id] = p
	return nil
}

// DeleteProject removes a project and all attached state.
func (m *MemoryStore) DeleteProject(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return ErrNotFound
	}
	delete(m.projects, id)
	delete(m.messages, id)
	delete(m.documents, id)
	for sid, sess := range m.sessions {
		if sess.ProjectID == id {
			delete(m.sessions, sid)
		}
	}
	for uid, u := range m.uploads {
		if u.ProjectID == id {
			delete(m.uploads, uid)
		}
	}
	for iid, inv := range m.invitations {
		if inv.ProjectID == id {
			delete(m.invitations, iid)
		}
	}
	return nil
}

func (m *MemoryStore) activeCountLocked(projectID string) int {
	count := 0
	for _, sess := range m.sessions {
		if sess.ProjectID == projectID && sess.Active {
			count++
		}
	}
	return count
}

// SaveSession stores or replaces a session record.
func (m *MemoryStore) SaveSession(sess domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

// GetSession returns a session by id.
func (m *MemoryStore) GetSession(id string) (domain.Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok, nil
}

// SetSessionInactive marks a session inactive; unknown ids are a no-op.
func (m *MemoryStore) SetSessionInactive(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil
	}
	sess.Active = false
	m.sessions[id] = sess
	return nil
}

// TouchSession records session activity.
func (m *MemoryStore) TouchSession(id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil
	}
	sess.LastActivity = at.UTC()
	m.sessions[id] = sess
	return nil
}

// ListActiveSessions returns active sessions for a project in join order.
func (m *MemoryStore) ListActiveSessions(projectID string) ([]domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Session, 0)
	for _, sess := range m.sessions {
		if sess.ProjectID == projectID && sess.Active {
			res = append(res, sess)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].JoinedAt.Equal(res[j].JoinedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].JoinedAt.Before(res[j].JoinedAt)
	})
	return res, nil
}

// PurgeSessions deactivates idle sessions and drops inactive rows for a project.
func (m *MemoryStore) PurgeSessions(projectID string, idleBefore time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	purged := 0
	for id, sess := range m.sessions {
		if sess.ProjectID != projectID {
			continue
		}
		if sess.Active && sess.LastActivity.Before(idleBefore) {
			sess.Active = false
			m.sessions[id] = sess
			purged++
		}
		if !m.sessions[id].Active {
			delete(m.sessions, id)
		}
	}
	return purged, nil
}

// ExpireIdleSessions deactivates idle sessions across all projects.
func (m *MemoryStore) ExpireIdleSessions(idleBefore time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expired := 0
	for id, sess := range m.sessions {
		if sess.Active && sess.LastActivity.Before(idleBefore) {
			sess.Active = false
			m.sessions[id] = sess
			expired++
		}
	}
	return expired, nil
}

// AppendMessage appends to the project history.
func (m *MemoryStore) AppendMessage(msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ProjectID] = append(m.messages[msg.ProjectID], msg)
	return nil
}

// ListMessages returns project messages in append order. limit <= 0 means all.
func (m *MemoryStore) ListMessages(projectID string, limit int) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[projectID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// GetDocument returns the project document.
func (m *MemoryStore) GetDocument(projectID string) (domain.ProjectDocument, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[projectID]
	return doc, ok, nil
}

// ReplaceDocument overwrites the project document wholesale.
func (m *MemoryStore) ReplaceDocument(doc domain.ProjectDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[doc.ProjectID] = doc
	return nil
}

// SaveUpload stores an uploaded-document record.
func (m *MemoryStore) SaveUpload(u domain.UploadedDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads[u.ID] = u
	return nil
}

// GetUpload returns an uploaded document by id.
func (m *MemoryStore) GetUpload(id string) (domain.UploadedDocument, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.uploads[id]
	return u, ok, nil
}

// ListUploads returns uploads for a project, newest first.
func (m *MemoryStore) ListUploads(projectID string) ([]domain.UploadedDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.UploadedDocument, 0)
	for _, u := range m.uploads {
		if u.ProjectID == projectID {
			res = append(res, u)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].UploadedAt.Equal(res[j].UploadedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].UploadedAt.After(res[j].UploadedAt)
	})
	return res, nil
}

// DeleteUpload removes an uploaded-document record.
func (m *MemoryStore) DeleteUpload(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.uploads[id]; !ok {
		return ErrNotFound
	}
	delete(m.uploads, id)
	return nil
}

// SaveInvitation stores an invitation record.
func (m *MemoryStore) SaveInvitation(inv domain.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invitations[inv.ID] = inv
	return nil
}

// GetInvitation returns an invitation by id.
func (m *MemoryStore) GetInvitation(id string) (domain.Invitation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.invitations[id]
	return inv, ok, nil
}

// MarkInvitationUsed stamps the invitation as accepted exactly once.
func (m *MemoryStore) MarkInvitationUsed(id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[id]
	if !ok || inv.UsedAt != nil {
		return ErrNotFound
	}
	used := at.UTC()
	inv.UsedAt = &used
	m.invitations[id] = inv
	return nil
}

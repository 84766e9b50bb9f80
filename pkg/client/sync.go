package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"planhub/pkg/domain"
)

const (
	// DefaultPollInterval is the regular synchronizer tick.
	DefaultPollInterval = 500 * time.Millisecond
	// quickPollDelay shortens perceived latency after a local send.
	quickPollDelay = 100 * time.Millisecond
)

// State is the local mirror of server-side project state.
type State struct {
	Messages    []domain.Message
	Document    string
	ActiveUsers []domain.ActiveUser
}

// Synchronizer polls the history endpoint and reconciles a local state copy
// against each snapshot. It is the single owner of its State; callers observe
// changes through the OnChange callback, invoked only when state mutated.
type Synchronizer struct {
	client    *Client
	projectID string
	interval  time.Duration
	onChange  func(State)
	logger    *slog.Logger

	mu    sync.Mutex
	state State
	keys  map[string]struct{}

	pollNow chan struct{}
}

// SyncConfig configures a Synchronizer.
type SyncConfig struct {
	Client    *Client
	ProjectID string
	Interval  time.Duration
	// OnChange is called after every reconciliation that mutated state.
	OnChange func(State)
	Logger   *slog.Logger
}

// NewSynchronizer builds a synchronizer; it does not start polling.
func NewSynchronizer(cfg SyncConfig) *Synchronizer {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		client:    cfg.Client,
		projectID: cfg.ProjectID,
		interval:  interval,
		onChange:  cfg.OnChange,
		logger:    logger,
		keys:      make(map[string]struct{}),
		pollNow:   make(chan struct{}, 1),
	}
}

// State returns a copy of the current local state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyState(s.state)
}

// PollSoon schedules an extra poll shortly after a local send resolved,
// instead of waiting for the next regular tick.
func (s *Synchronizer) PollSoon() {
	go func() {
		time.Sleep(quickPollDelay)
		select {
		case s.pollNow <- struct{}{}:
		default:
		}
	}()
}

// Run polls until ctx is canceled. A failed poll is logged and the loop
// continues at the regular interval; there is no backoff.
func (s *Synchronizer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.pollNow:
		}
		snapshot, err := s.client.History(ctx, s.projectID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("poll failed", "project_id", s.projectID, "err", err)
			continue
		}
		s.Reconcile(snapshot)
	}
}

// Reconcile merges one server snapshot into local state and reports whether
// anything changed.
//
// Rules, in order:
//  1. If the snapshot holds a message whose (content, role) key is unknown
//     locally, the whole local list is replaced with the server's
//     (authoritative re-sync) and document/users update too.
//  2. Else if only the document changed, update the document.
//  3. Else if the active-user set changed (serialized deep equality), update
//     the user list.
//  4. Else nothing changes; an unchanged snapshot must cause zero mutations.
func (s *Synchronizer) Reconcile(snapshot Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	hasNew := false
	for _, msg := range snapshot.History {
		if _, ok := s.keys[msg.Key()]; !ok {
			hasNew = true
			break
		}
	}

	changed := false
	if hasNew {
		s.state.Messages = append([]domain.Message(nil), snapshot.History...)
		s.keys = make(map[string]struct{}, len(snapshot.History))
		for _, msg := range snapshot.History {
			s.keys[msg.Key()] = struct{}{}
		}
		s.state.Document = snapshot.Document
		s.state.ActiveUsers = append([]domain.ActiveUser(nil), snapshot.ActiveUsers...)
		changed = true
	} else if snapshot.Document != s.state.Document {
		s.state.Document = snapshot.Document
		changed = true
	} else if !sameUsers(s.state.ActiveUsers, snapshot.ActiveUsers) {
		s.state.ActiveUsers = append([]domain.ActiveUser(nil), snapshot.ActiveUsers...)
		changed = true
	}

	if changed && s.onChange != nil {
		s.onChange(copyState(s.state))
	}
	return changed
}

func sameUsers(a, b []domain.ActiveUser) bool {
	if len(a) != len(b) {
		return false
	}
	aj, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(aj) == string(bj)
}

func copyState(st State) State {
	return State{
		Messages:    append([]domain.Message(nil), st.Messages...),
		Document:    st.Document,
		ActiveUsers: append([]domain.ActiveUser(nil), st.ActiveUsers...),
	}
}

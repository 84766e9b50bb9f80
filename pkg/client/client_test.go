package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newFakeService(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL)
}

func TestJoinBuildsSessionContext(t *testing.T) {
	c := newFakeService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/join" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["projectId"] != "demo" || req["userName"] != "alice" {
			t.Errorf("unexpected join payload: %v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"sessionId": "sess-1",
			"projectId": "demo",
			"message":   "joined project demo",
		})
	})
	session, err := c.Join(context.Background(), "demo", "alice")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if session.ID() != "sess-1" || session.ProjectID() != "demo" {
		t.Fatalf("unexpected session: %s %s", session.ID(), session.ProjectID())
	}
}

func TestSendCarriesSessionHeader(t *testing.T) {
	c := newFakeService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/join":
			_ = json.NewEncoder(w).Encode(map[string]string{"sessionId": "sess-1", "projectId": "demo"})
		case "/chat":
			if got := r.Header.Get("X-Session-Id"); got != "sess-1" {
				t.Errorf("X-Session-Id = %q", got)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"response": "ok"})
		default:
			http.NotFound(w, r)
		}
	})
	session, err := c.Join(context.Background(), "demo", "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	res, err := session.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Response != "ok" {
		t.Fatalf("response = %q", res.Response)
	}
}

func TestSecondSendWhileInFlightRejected(t *testing.T) {
	release := make(chan struct{})
	var chatCalls int32
	c := newFakeService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/join":
			_ = json.NewEncoder(w).Encode(map[string]string{"sessionId": "sess-1", "projectId": "demo"})
		case "/chat":
			atomic.AddInt32(&chatCalls, 1)
			<-release
			_ = json.NewEncoder(w).Encode(map[string]any{"response": "ok"})
		default:
			http.NotFound(w, r)
		}
	})
	session, err := c.Join(context.Background(), "demo", "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	firstDone := make(chan error, 1)
	go func() {
		_, err := session.Send(context.Background(), "first")
		firstDone <- err
	}()

	// Wait for the first request to reach the server, then try a second.
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&chatCalls) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("first send never reached server")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := session.Send(context.Background(), "second"); !errors.Is(err, ErrSendInFlight) {
		t.Fatalf("err = %v, want ErrSendInFlight", err)
	}
	if got := atomic.LoadInt32(&chatCalls); got != 1 {
		t.Fatalf("second request must not be issued, chat calls = %d", got)
	}

	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first send: %v", err)
	}

	// After the first resolves, sending works again.
	if _, err := session.Send(context.Background(), "third"); err != nil {
		t.Fatalf("third send: %v", err)
	}
}

func TestAPIErrorDecoded(t *testing.T) {
	c := newFakeService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error": "project not found",
			"code":  "PLAN_PROJECT_NOT_FOUND",
		})
	})
	_, err := c.History(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Code != "PLAN_PROJECT_NOT_FOUND" {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
}

func TestRunPollsAndPollSoonTriggersEarlyFetch(t *testing.T) {
	var polls int32
	c := newFakeService(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&polls, 1)
		_ = json.NewEncoder(w).Encode(Snapshot{Document: "# Plan"})
	})
	s := NewSynchronizer(SyncConfig{Client: c, ProjectID: "demo", Interval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	// The interval is long, so only PollSoon can cause a fetch.
	s.PollSoon()
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&polls) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("PollSoon never triggered a poll")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if s.State().Document != "# Plan" {
		t.Fatalf("document = %q", s.State().Document)
	}
}

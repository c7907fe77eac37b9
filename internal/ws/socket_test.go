package ws

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/fableforge/fableforge/internal/game"
)

// countingStore records how often the arena reaches for persisted state. A
// session actor loads on first access, so zero loads proves no actor ran.
type countingStore struct {
	loads atomic.Int64
}

func (s *countingStore) Load(context.Context, string) (*game.SessionState, error) {
	s.loads.Add(1)
	return nil, nil
}

func (s *countingStore) Save(context.Context, string, *game.SessionState) error {
	return nil
}

func newTestServer(t *testing.T) (*Server, *countingStore) {
	t.Helper()
	st := &countingStore{}
	dir := game.NewDirectory(0)
	t.Cleanup(dir.Close)
	arena := game.NewArena(st, dir, game.NewScheduler(), nil, nil, game.Config{})
	return New(arena, dir), st
}

type discardSubscriber struct{}

func (discardSubscriber) Notify(game.Event) {}

func TestViewForUnattachedConnSkipsArena(t *testing.T) {
	srv, st := newTestServer(t)

	payload, err := srv.viewFor(context.Background(), &ConnCtx{}, "sid", discardSubscriber{})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if payload["phase"] != "nonexistent" {
		t.Fatalf("expected nonexistent phase, got %v", payload["phase"])
	}
	if n := st.loads.Load(); n != 0 {
		t.Fatalf("unattached view must not touch session state, saw %d loads", n)
	}
}

func TestViewForAttachedConnLoadsSession(t *testing.T) {
	srv, st := newTestServer(t)

	cc := &ConnCtx{SessionID: "g1", PlayerID: "p1"}
	payload, err := srv.viewFor(context.Background(), cc, "sid", discardSubscriber{})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if payload["phase"] != "nonexistent" {
		t.Fatalf("uncreated session should project as nonexistent, got %v", payload["phase"])
	}
	if n := st.loads.Load(); n == 0 {
		t.Fatal("attached view should consult session state")
	}
}

func TestErrCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{game.ErrSessionNotFound, "session_not_found"},
		{game.ErrSessionExists, "session_exists"},
		{game.ErrAlreadyStarted, "already_started"},
		{game.ErrNoActiveRound, "no_active_round"},
		{game.ErrInvariant, "internal"},
		{errors.New("anything else"), "bad_request"},
	}
	for _, tc := range cases {
		if got := errCode(tc.err); got != tc.code {
			t.Fatalf("errCode(%v) = %s, want %s", tc.err, got, tc.code)
		}
	}
}

package game

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Engine is the narrative-judgment service for one session. Calls are
// conversationally stateful: earlier exchanges are implicit context for
// later ones, so an Engine must only ever be used by its owning session
// actor.
type Engine interface {
	StartStory(ctx context.Context) (string, error)
	EstimateProbability(ctx context.Context, activity string) (float64, error)
	ProgressStory(ctx context.Context, activities []string) (string, error)
	CountOccurrences(ctx context.Context, theme string) (int, error)
}

// EngineFactory mints one Engine per session.
type EngineFactory interface {
	NewEngine(sessionID string) Engine
}

// Weighter assigns a raw scoring weight per player given their themes.
// Returned weights are renormalized by the caller; see NormalizeWeights.
type Weighter interface {
	AssignWeights(ctx context.Context, themes map[string]string) (map[string]int, error)
}

// Store is the persistence contract for session state. Load returns
// (nil, nil) for a session that was never saved. Both calls must be
// read-your-writes consistent from the owning actor's perspective.
type Store interface {
	Load(ctx context.Context, sessionID string) (*SessionState, error)
	Save(ctx context.Context, sessionID string, state *SessionState) error
}

// Config carries the game parameters shared by every session in the arena.
type Config struct {
	Rounds        int
	RoundDuration time.Duration
	LeaseTTL      time.Duration
	RetryDelay    time.Duration
}

func (c Config) withDefaults() Config {
	if c.Rounds <= 0 {
		c.Rounds = 3
	}
	if c.RoundDuration <= 0 {
		c.RoundDuration = time.Minute
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = DefaultLeaseTTL
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
	return c
}

// Arena is the registry of live session actors, indexed by session id. An
// actor is created on first access and loads its state from the store; all
// operations against one id are serialized through that actor's loop, which
// is the whole concurrency story — no session state is ever shared.
type Arena struct {
	mu       sync.Mutex
	sessions map[string]*session

	store     Store
	directory *Directory
	scheduler *Scheduler
	engines   EngineFactory
	weighter  Weighter
	cfg       Config

	// overridable for tests
	now  func() time.Time
	rand func() float64
}

func NewArena(store Store, directory *Directory, scheduler *Scheduler, engines EngineFactory, weighter Weighter, cfg Config) *Arena {
	return &Arena{
		sessions:  make(map[string]*session),
		store:     store,
		directory: directory,
		scheduler: scheduler,
		engines:   engines,
		weighter:  weighter,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
		rand:      rand.Float64,
	}
}

// session returns the live actor for id, starting one if needed.
func (a *Arena) session(id string) *session {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[id]
	if !ok {
		s = newSession(id, a)
		a.sessions[id] = s
	}
	return s
}

// Create initializes a session with playerID as host and registers it with
// the directory. Fails with ErrSessionExists if it was already created.
func (a *Arena) Create(ctx context.Context, sessionID, playerID string) error {
	return a.session(sessionID).create(ctx, playerID)
}

// Join adds or updates a player. Fails with ErrAlreadyStarted once the game
// is underway.
func (a *Arena) Join(ctx context.Context, sessionID, playerID, nickname, theme string) error {
	return a.session(sessionID).join(ctx, playerID, nickname, theme)
}

// PostLobbyMessage broadcasts an ephemeral chat line to subscribers.
func (a *Arena) PostLobbyMessage(ctx context.Context, sessionID, playerID, text string) error {
	return a.session(sessionID).postLobbyMessage(ctx, playerID, text)
}

// Start begins the game. Calls from anyone but the host are silently
// ignored.
func (a *Arena) Start(ctx context.Context, sessionID, playerID string) error {
	return a.session(sessionID).start(ctx, playerID)
}

// AddInput records playerID's hidden input for the current round. Last write
// wins; inputs arriving while the round is being processed are dropped.
func (a *Arena) AddInput(ctx context.Context, sessionID, playerID, text string) error {
	return a.session(sessionID).addInput(ctx, playerID, text)
}

// GetView computes the requester-specific read projection of the session.
func (a *Arena) GetView(ctx context.Context, sessionID, playerID string) (View, error) {
	return a.session(sessionID).getView(ctx, playerID)
}

// Subscribe registers sub for push events from the session, inserting or
// refreshing its lease.
func (a *Arena) Subscribe(ctx context.Context, sessionID, subscriberID string, sub Subscriber) error {
	return a.session(sessionID).subscribe(ctx, subscriberID, sub)
}

// Unsubscribe drops the subscriber immediately.
func (a *Arena) Unsubscribe(ctx context.Context, sessionID, subscriberID string) error {
	return a.session(sessionID).unsubscribe(ctx, subscriberID)
}

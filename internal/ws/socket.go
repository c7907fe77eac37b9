package ws

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog/log"

	"github.com/fableforge/fableforge/internal/game"
)

// ConnCtx is the per-connection identity: which session the connection is
// attached to and the player id it was issued.
type ConnCtx struct {
	SessionID string
	PlayerID  string
}

type Server struct {
	arena     *game.Arena
	directory *game.Directory
}

func New(arena *game.Arena, directory *game.Directory) *Server {
	return &Server{arena: arena, directory: directory}
}

// connSubscriber adapts a socket connection to the core subscriber contract.
// Notify maps each event type to its wire name; Emit queues the frame and
// never blocks the broadcasting actor.
type connSubscriber struct {
	conn socketio.Conn
}

func (cs connSubscriber) Notify(ev game.Event) {
	switch e := ev.(type) {
	case game.ChatEvent:
		cs.conn.Emit("lobby:chat", e)
	case game.PlayerListEvent:
		cs.conn.Emit("lobby:players", e)
	case game.GameStartingEvent:
		cs.conn.Emit("game:starting", struct{}{})
	case game.GameStartedEvent:
		cs.conn.Emit("game:started", struct{}{})
	case game.RoundEvent:
		cs.conn.Emit("round:updated", e)
	case game.NarrativeEvent:
		cs.conn.Emit("story:message", e)
	case game.GameEndedEvent:
		cs.conn.Emit("game:ended", struct{}{})
	case game.DirectoryEvent:
		cs.conn.Emit("directory:update", e)
	}
}

// Mount attaches the Socket.IO server with handlers to the given Gin engine.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)

	io.OnConnect("/", func(s socketio.Conn) error {
		s.SetContext(&ConnCtx{})
		log.Info().Str("sid", s.ID()).Msg("socket connected")
		return nil
	})

	// session:create
	io.OnEvent("/", "session:create", func(s socketio.Conn, payload struct {
		SessionID string `json:"sessionId"`
	}) map[string]any {
		playerID := uuid.NewString()
		if err := srv.arena.Create(context.Background(), payload.SessionID, playerID); err != nil {
			return srv.err(s, errCode(err), err.Error())
		}
		s.SetContext(&ConnCtx{SessionID: payload.SessionID, PlayerID: playerID})
		_ = srv.arena.Subscribe(context.Background(), payload.SessionID, s.ID(), connSubscriber{conn: s})
		log.Info().Str("sid", s.ID()).Str("session", payload.SessionID).Msg("session:create")
		return map[string]any{"playerId": playerID}
	})

	// session:join
	io.OnEvent("/", "session:join", func(s socketio.Conn, payload struct {
		SessionID string `json:"sessionId"`
		Nickname  string `json:"nickname"`
		Theme     string `json:"theme"`
	}) map[string]any {
		ctx := s.Context().(*ConnCtx)
		playerID := ctx.PlayerID
		if playerID == "" || ctx.SessionID != payload.SessionID {
			playerID = uuid.NewString()
		}
		if err := srv.arena.Join(context.Background(), payload.SessionID, playerID, payload.Nickname, payload.Theme); err != nil {
			return srv.err(s, errCode(err), err.Error())
		}
		s.SetContext(&ConnCtx{SessionID: payload.SessionID, PlayerID: playerID})
		_ = srv.arena.Subscribe(context.Background(), payload.SessionID, s.ID(), connSubscriber{conn: s})
		log.Info().Str("sid", s.ID()).Str("session", payload.SessionID).Str("player", playerID).Msg("session:join")
		return map[string]any{"playerId": playerID}
	})

	// lobby:chat
	io.OnEvent("/", "lobby:chat", func(s socketio.Conn, payload struct {
		Text string `json:"text"`
	}) map[string]any {
		ctx := s.Context().(*ConnCtx)
		if ctx.SessionID == "" {
			return srv.err(s, "session_not_found", "not attached to a session")
		}
		if err := srv.arena.PostLobbyMessage(context.Background(), ctx.SessionID, ctx.PlayerID, payload.Text); err != nil {
			return srv.err(s, errCode(err), err.Error())
		}
		return map[string]any{"ok": true}
	})

	// session:start (host only; non-host calls are a defined no-op)
	io.OnEvent("/", "session:start", func(s socketio.Conn) map[string]any {
		ctx := s.Context().(*ConnCtx)
		if ctx.SessionID == "" {
			return srv.err(s, "session_not_found", "not attached to a session")
		}
		if err := srv.arena.Start(context.Background(), ctx.SessionID, ctx.PlayerID); err != nil {
			return srv.err(s, errCode(err), err.Error())
		}
		log.Info().Str("session", ctx.SessionID).Msg("session:start")
		return map[string]any{"ok": true}
	})

	// round:input
	io.OnEvent("/", "round:input", func(s socketio.Conn, payload struct {
		Text string `json:"text"`
	}) map[string]any {
		ctx := s.Context().(*ConnCtx)
		if ctx.SessionID == "" {
			return srv.err(s, "session_not_found", "not attached to a session")
		}
		if err := srv.arena.AddInput(context.Background(), ctx.SessionID, ctx.PlayerID, payload.Text); err != nil {
			return srv.err(s, errCode(err), err.Error())
		}
		return map[string]any{"ok": true}
	})

	// session:view doubles as the subscription keepalive: clients poll it
	// every few seconds, which refreshes their push lease.
	io.OnEvent("/", "session:view", func(s socketio.Conn) map[string]any {
		ctx := s.Context().(*ConnCtx)
		payload, err := srv.viewFor(context.Background(), ctx, s.ID(), connSubscriber{conn: s})
		if err != nil {
			return srv.err(s, errCode(err), err.Error())
		}
		return payload
	})

	// directory:subscribe
	io.OnEvent("/", "directory:subscribe", func(s socketio.Conn) map[string]any {
		srv.directory.Subscribe(s.ID(), connSubscriber{conn: s})
		return map[string]any{"sessions": srv.directory.List()}
	})

	io.OnError("/", func(s socketio.Conn, e error) {
		log.Error().Str("sid", s.ID()).Err(e).Msg("socket error")
	})
	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		if ctx, ok := s.Context().(*ConnCtx); ok && ctx.SessionID != "" {
			_ = srv.arena.Unsubscribe(context.Background(), ctx.SessionID, s.ID())
		}
		srv.directory.Unsubscribe(s.ID())
		log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
	})

	go io.Serve()

	// Mount to router
	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))

	// Basic CORS preflight for Socket.IO POST
	r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Status(http.StatusNoContent)
	})

	return io
}

// viewFor resolves the view payload for a connection. An unattached
// connection sees a nonexistent session without touching the arena, so idle
// pollers never mint an actor for the empty session id.
func (srv *Server) viewFor(ctx context.Context, cc *ConnCtx, subscriberID string, sub game.Subscriber) (map[string]any, error) {
	if cc.SessionID == "" {
		return viewPayload(game.ViewNonExistent{}), nil
	}
	_ = srv.arena.Subscribe(ctx, cc.SessionID, subscriberID, sub)
	view, err := srv.arena.GetView(ctx, cc.SessionID, cc.PlayerID)
	if err != nil {
		return nil, err
	}
	return viewPayload(view), nil
}

// viewPayload flattens the view variant into a tagged wire object.
func viewPayload(view game.View) map[string]any {
	switch v := view.(type) {
	case game.ViewNonExistent:
		return map[string]any{"phase": "nonexistent"}
	case game.ViewLobby:
		return map[string]any{"phase": "lobby", "view": v}
	case game.ViewActive:
		return map[string]any{"phase": "active", "view": v}
	default:
		return map[string]any{"phase": "unknown"}
	}
}

func errCode(err error) string {
	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, game.ErrSessionExists):
		return "session_exists"
	case errors.Is(err, game.ErrAlreadyStarted):
		return "already_started"
	case errors.Is(err, game.ErrNoActiveRound):
		return "no_active_round"
	case errors.Is(err, game.ErrInvariant):
		return "internal"
	default:
		return "bad_request"
	}
}

func (srv *Server) err(s socketio.Conn, code, message string) map[string]any {
	s.Emit("error", map[string]any{"code": code, "message": message})
	return map[string]any{"error": message, "code": code}
}

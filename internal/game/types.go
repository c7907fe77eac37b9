package game

import (
	"time"
)

// Player is a participant in one session. Immutable once joined; a re-join
// with the same id overwrites nickname and theme but keeps join order.
type Player struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Theme    string `json:"theme"`
}

// Round is one timed input-gathering phase. Inputs accept writes only while
// Processing is false; the owning session actor is the only writer.
type Round struct {
	EndsAt     time.Time         `json:"endsAt"`
	Inputs     map[string]string `json:"inputs"`
	Processing bool              `json:"processing"`
	Number     int               `json:"number"`
	Total      int               `json:"total"`
}

// PlayerResult is one player's final standing, computed during finalization.
type PlayerResult struct {
	PlayerID string  `json:"playerId"`
	Nickname string  `json:"nickname"`
	Theme    string  `json:"theme"`
	Count    int     `json:"count"`
	Weight   int     `json:"weight"`
	Score    float64 `json:"score"`
	Winner   bool    `json:"winner"`
}

// SessionState is the persistent, authoritative state of one session.
// It is mutated exclusively by the owning session actor and saved after
// every mutation. Finished sessions remain queryable.
type SessionState struct {
	Started        bool              `json:"started"`
	HostID         string            `json:"hostId"`
	Players        map[string]Player `json:"players"`
	JoinOrder      []string          `json:"joinOrder"`
	Weights        map[string]int    `json:"weights"`
	CurrentRound   *Round            `json:"currentRound"`
	PreviousRounds []Round           `json:"previousRounds"`
	Messages       []string          `json:"messages"`
	Finished       bool              `json:"finished"`
	Results        []PlayerResult    `json:"results,omitempty"`
}

func newSessionState(hostID string) *SessionState {
	return &SessionState{
		HostID:  hostID,
		Players: make(map[string]Player),
		Weights: make(map[string]int),
	}
}

// clone is a deep copy used to restore state when a persist fails.
func (s *SessionState) clone() *SessionState {
	c := *s
	c.Players = make(map[string]Player, len(s.Players))
	for id, p := range s.Players {
		c.Players[id] = p
	}
	c.JoinOrder = append([]string(nil), s.JoinOrder...)
	c.Weights = make(map[string]int, len(s.Weights))
	for id, w := range s.Weights {
		c.Weights[id] = w
	}
	if s.CurrentRound != nil {
		r := s.CurrentRound.clone()
		c.CurrentRound = &r
	}
	c.PreviousRounds = make([]Round, 0, len(s.PreviousRounds))
	for _, r := range s.PreviousRounds {
		c.PreviousRounds = append(c.PreviousRounds, r.clone())
	}
	c.Messages = append([]string(nil), s.Messages...)
	c.Results = append([]PlayerResult(nil), s.Results...)
	return &c
}

func (r Round) clone() Round {
	c := r
	c.Inputs = make(map[string]string, len(r.Inputs))
	for id, text := range r.Inputs {
		c.Inputs[id] = text
	}
	return c
}

// nicknames projects the player map to id -> nickname for lobby broadcasts.
func (s *SessionState) nicknames() map[string]string {
	out := make(map[string]string, len(s.Players))
	for id, p := range s.Players {
		out[id] = p.Nickname
	}
	return out
}

// DirectoryEntry is one open session as advertised by the directory.
// Entries exist only while a session is in the lobby phase.
type DirectoryEntry struct {
	SessionID    string `json:"sessionId"`
	Participants int    `json:"participants"`
}

// View is the per-requester read projection of a session. It is a closed
// set: ViewNonExistent, ViewLobby or ViewActive. Consumers type-switch.
type View interface {
	view()
}

// ViewNonExistent is returned for a session id that was never created.
type ViewNonExistent struct{}

// ViewLobby is the pre-start projection. Nickname and Theme are set only
// when the requester has joined.
type ViewLobby struct {
	IsHost   bool              `json:"isHost"`
	Joined   bool              `json:"joined"`
	Nickname string            `json:"nickname,omitempty"`
	Theme    string            `json:"theme,omitempty"`
	Players  map[string]string `json:"players"`
}

// ViewActive is the in-game projection for a joined player.
type ViewActive struct {
	IsHost   bool              `json:"isHost"`
	Nickname string            `json:"nickname"`
	Theme    string            `json:"theme"`
	Round    Round             `json:"round"`
	Players  map[string]string `json:"players"`
	Messages []string          `json:"messages"`
	Finished bool              `json:"finished"`
	Results  []PlayerResult    `json:"results,omitempty"`
}

func (ViewNonExistent) view() {}
func (ViewLobby) view()       {}
func (ViewActive) view()      {}

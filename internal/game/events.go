package game

// Event is a push notification delivered to subscribers. It is a closed set
// of payload-only types; consumers type-switch exhaustively.
type Event interface {
	event()
}

// ChatEvent is an ephemeral lobby chat line. Never persisted.
type ChatEvent struct {
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
	Text     string `json:"text"`
}

// PlayerListEvent carries the full id -> nickname map after a join.
type PlayerListEvent struct {
	Players map[string]string `json:"players"`
}

// GameStartingEvent fires when the host triggers Start, before the opening
// passage has been generated.
type GameStartingEvent struct{}

// GameStartedEvent fires once round 1 is armed.
type GameStartedEvent struct{}

// RoundEvent carries a full copy of the current round whenever it changes.
type RoundEvent struct {
	Round Round `json:"round"`
}

// NarrativeEvent is one appended story line.
type NarrativeEvent struct {
	Text string `json:"text"`
}

// GameEndedEvent fires when the final round has been processed.
type GameEndedEvent struct{}

// DirectoryEvent carries the full open-session list after any change.
type DirectoryEvent struct {
	Entries []DirectoryEntry `json:"entries"`
}

func (ChatEvent) event()         {}
func (PlayerListEvent) event()   {}
func (GameStartingEvent) event() {}
func (GameStartedEvent) event()  {}
func (RoundEvent) event()        {}
func (NarrativeEvent) event()    {}
func (GameEndedEvent) event()    {}
func (DirectoryEvent) event()    {}

package game

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
)

// session is the actor owning one game's authoritative state. One goroutine
// drains the op channel, so no two operations against the same session id
// ever overlap; that exclusivity replaces all locking on SessionState.
type session struct {
	id    string
	arena *Arena
	ops   chan func()

	// the fields below are touched only from the loop goroutine
	loaded    bool
	state     *SessionState
	engine    Engine
	observers *observers
}

func newSession(id string, arena *Arena) *session {
	s := &session{
		id:        id,
		arena:     arena,
		ops:       make(chan func()),
		observers: newObservers(arena.cfg.LeaseTTL),
	}
	go s.loop()
	return s
}

func (s *session) loop() {
	for op := range s.ops {
		op()
	}
}

// do runs fn on the actor loop and waits for its result. Operations queue in
// arrival order; the loop is busy for the full duration of each op,
// including any external-service calls it makes.
func (s *session) do(fn func() error) error {
	errc := make(chan error, 1)
	s.ops <- func() {
		errc <- fn()
	}
	return <-errc
}

// ensure lazily loads persisted state on first access. A loaded session that
// is mid-game re-arms its round timer, so an interrupted game resumes the
// next time anything touches it.
func (s *session) ensure(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	state, err := s.arena.store.Load(ctx, s.id)
	if err != nil {
		return fmt.Errorf("load session %s: %w", s.id, err)
	}
	s.state = state
	s.loaded = true
	if state == nil || !state.Started {
		return nil
	}
	if !state.Finished && state.CurrentRound != nil {
		s.armTimer()
	} else if state.Finished && state.Results == nil {
		// crashed between game end and results; pick finalization back up
		s.arena.scheduler.Schedule(s.id, 0, s.advanceAsync)
	}
	return nil
}

func (s *session) ensureEngine() Engine {
	if s.engine == nil {
		s.engine = s.arena.engines.NewEngine(s.id)
	}
	return s.engine
}

// commit persists the current state. On failure the caller must restore the
// snapshot it took before mutating; nothing may be broadcast for a mutation
// that did not persist.
func (s *session) commit(ctx context.Context) error {
	if err := s.arena.store.Save(ctx, s.id, s.state); err != nil {
		return fmt.Errorf("save session %s: %w", s.id, err)
	}
	return nil
}

func (s *session) create(ctx context.Context, playerID string) error {
	return s.do(func() error {
		if err := s.ensure(ctx); err != nil {
			return err
		}
		if s.state != nil {
			return ErrSessionExists
		}
		s.state = newSessionState(playerID)
		if err := s.commit(ctx); err != nil {
			s.state = nil
			return err
		}
		s.arena.directory.Upsert(s.id, 0)
		log.Info().Str("session", s.id).Str("host", playerID).Msg("session created")
		return nil
	})
}

func (s *session) join(ctx context.Context, playerID, nickname, theme string) error {
	return s.do(func() error {
		if err := s.ensure(ctx); err != nil {
			return err
		}
		if s.state == nil {
			return ErrSessionNotFound
		}
		if s.state.Started {
			return ErrAlreadyStarted
		}
		snap := s.state.clone()
		if _, seen := s.state.Players[playerID]; !seen {
			s.state.JoinOrder = append(s.state.JoinOrder, playerID)
		}
		s.state.Players[playerID] = Player{ID: playerID, Nickname: nickname, Theme: theme}
		if err := s.commit(ctx); err != nil {
			s.state = snap
			return err
		}
		s.observers.notify(PlayerListEvent{Players: s.state.nicknames()})
		s.arena.directory.Upsert(s.id, len(s.state.Players))
		log.Info().Str("session", s.id).Str("player", playerID).Str("nickname", nickname).Msg("player joined")
		return nil
	})
}

func (s *session) postLobbyMessage(ctx context.Context, playerID, text string) error {
	return s.do(func() error {
		if err := s.ensure(ctx); err != nil {
			return err
		}
		if s.state == nil {
			return ErrSessionNotFound
		}
		nickname := playerID
		if p, ok := s.state.Players[playerID]; ok {
			nickname = p.Nickname
		}
		s.observers.notify(ChatEvent{PlayerID: playerID, Nickname: nickname, Text: text})
		return nil
	})
}

func (s *session) start(ctx context.Context, playerID string) error {
	return s.do(func() error {
		if err := s.ensure(ctx); err != nil {
			return err
		}
		if s.state == nil {
			return ErrSessionNotFound
		}
		if playerID != s.state.HostID {
			log.Debug().Str("session", s.id).Str("player", playerID).Msg("start ignored: not host")
			return nil
		}
		if s.state.Started {
			log.Debug().Str("session", s.id).Msg("start ignored: already started")
			return nil
		}

		s.arena.directory.Remove(s.id)
		s.observers.notify(GameStartingEvent{})

		themes := make(map[string]string, len(s.state.Players))
		for id, p := range s.state.Players {
			themes[id] = p.Theme
		}
		raw, err := s.arena.weighter.AssignWeights(ctx, themes)
		if err != nil {
			s.reopen()
			return fmt.Errorf("assign weights: %w", err)
		}
		opening, err := s.ensureEngine().StartStory(ctx)
		if err != nil {
			s.reopen()
			return fmt.Errorf("start story: %w", err)
		}

		snap := s.state.clone()
		s.state.Started = true
		s.state.Weights = NormalizeWeights(raw)
		s.state.Messages = append(s.state.Messages, opening)
		s.state.CurrentRound = &Round{
			EndsAt: s.arena.now().Add(s.arena.cfg.RoundDuration),
			Inputs: make(map[string]string),
			Number: 1,
			Total:  s.arena.cfg.Rounds,
		}
		if err := s.commit(ctx); err != nil {
			s.state = snap
			s.reopen()
			return err
		}
		s.observers.notify(GameStartedEvent{})
		s.observers.notify(NarrativeEvent{Text: opening})
		s.observers.notify(RoundEvent{Round: s.state.CurrentRound.clone()})
		s.armTimer()
		log.Info().Str("session", s.id).Int("rounds", s.arena.cfg.Rounds).Msg("game started")
		return nil
	})
}

// reopen puts an aborted Start back in the directory so the host can retry.
func (s *session) reopen() {
	s.arena.directory.Upsert(s.id, len(s.state.Players))
}

func (s *session) addInput(ctx context.Context, playerID, text string) error {
	return s.do(func() error {
		if err := s.ensure(ctx); err != nil {
			return err
		}
		if s.state == nil {
			return ErrSessionNotFound
		}
		round := s.state.CurrentRound
		if round == nil {
			return ErrNoActiveRound
		}
		if round.Processing {
			log.Debug().Str("session", s.id).Str("player", playerID).Msg("input dropped: round processing")
			return nil
		}
		snap := s.state.clone()
		round.Inputs[playerID] = text
		if err := s.commit(ctx); err != nil {
			s.state = snap
			return err
		}
		return nil
	})
}

func (s *session) getView(ctx context.Context, playerID string) (View, error) {
	var view View
	err := s.do(func() error {
		if err := s.ensure(ctx); err != nil {
			return err
		}
		switch {
		case s.state == nil:
			view = ViewNonExistent{}
		case !s.state.Started:
			lobby := ViewLobby{
				IsHost:  playerID == s.state.HostID,
				Players: s.state.nicknames(),
			}
			if p, ok := s.state.Players[playerID]; ok {
				lobby.Joined = true
				lobby.Nickname = p.Nickname
				lobby.Theme = p.Theme
			}
			view = lobby
		default:
			p, ok := s.state.Players[playerID]
			if !ok {
				return invariantf("player %s requested view of active session %s without joining", playerID, s.id)
			}
			var round Round
			switch {
			case s.state.CurrentRound != nil:
				round = s.state.CurrentRound.clone()
			case s.state.Finished && len(s.state.PreviousRounds) > 0:
				round = s.state.PreviousRounds[len(s.state.PreviousRounds)-1].clone()
			default:
				return invariantf("active session %s has no round", s.id)
			}
			view = ViewActive{
				IsHost:   playerID == s.state.HostID,
				Nickname: p.Nickname,
				Theme:    p.Theme,
				Round:    round,
				Players:  s.state.nicknames(),
				Messages: append([]string(nil), s.state.Messages...),
				Finished: s.state.Finished,
				Results:  append([]PlayerResult(nil), s.state.Results...),
			}
		}
		return nil
	})
	return view, err
}

func (s *session) subscribe(ctx context.Context, subscriberID string, sub Subscriber) error {
	return s.do(func() error {
		if err := s.ensure(ctx); err != nil {
			return err
		}
		s.observers.subscribe(subscriberID, sub)
		return nil
	})
}

func (s *session) unsubscribe(ctx context.Context, subscriberID string) error {
	return s.do(func() error {
		s.observers.unsubscribe(subscriberID)
		return nil
	})
}

func (s *session) armTimer() {
	d := s.state.CurrentRound.EndsAt.Sub(s.arena.now())
	s.arena.scheduler.Schedule(s.id, d, s.advanceAsync)
}

// advanceAsync enqueues a round advance on the actor loop. Called from timer
// goroutines.
func (s *session) advanceAsync() {
	_ = s.do(func() error {
		s.advance(context.Background())
		return nil
	})
}

// retryAdvance re-arms the advance after an external-service or persistence
// failure. State was restored to its pre-attempt shape, so the retry starts
// from a consistent point.
func (s *session) retryAdvance(err error) {
	log.Error().Err(err).Str("session", s.id).Dur("retryIn", s.arena.cfg.RetryDelay).Msg("round advance failed")
	s.arena.scheduler.Schedule(s.id, s.arena.cfg.RetryDelay, s.advanceAsync)
}

// advance runs the round boundary: close the round, judge every input
// against the narrative engine, progress the story, then either open the
// next round or finalize the game. Runs on the actor loop only.
func (s *session) advance(ctx context.Context) {
	if err := s.ensure(ctx); err != nil {
		s.retryAdvance(err)
		return
	}
	if s.state == nil || !s.state.Started {
		log.Error().Str("session", s.id).Msg("advance fired for a session that is not running")
		return
	}
	if s.state.Finished {
		if s.state.Results == nil {
			s.finalizeResults(ctx)
		}
		return
	}
	round := s.state.CurrentRound
	if round == nil {
		log.Error().Str("session", s.id).Err(invariantf("started session has no current round")).Msg("advance aborted")
		return
	}

	// close the round for input before anything slow happens. A retry after
	// a mid-advance failure finds Processing already true and skips ahead.
	if !round.Processing {
		snap := s.state.clone()
		round.Processing = true
		if err := s.commit(ctx); err != nil {
			s.state = snap
			s.retryAdvance(err)
			return
		}
		s.observers.notify(RoundEvent{Round: round.clone()})
	}

	// judge inputs in ascending player-id order so runs are reproducible
	engine := s.ensureEngine()
	ids := make([]string, 0, len(round.Inputs))
	for id := range round.Inputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var lines []string
	var included []string
	for _, id := range ids {
		text := round.Inputs[id]
		nickname := id
		if p, ok := s.state.Players[id]; ok {
			nickname = p.Nickname
		}
		prob, err := engine.EstimateProbability(ctx, text)
		if err != nil {
			s.retryAdvance(fmt.Errorf("estimate probability: %w", err))
			return
		}
		if s.arena.rand() <= prob {
			included = append(included, text)
			lines = append(lines, fmt.Sprintf("%s: %q — woven into the story.", nickname, text))
		} else {
			lines = append(lines, fmt.Sprintf("%s: %q — the story moves on without it.", nickname, text))
		}
	}

	progression := ""
	if len(included) > 0 {
		var err error
		progression, err = engine.ProgressStory(ctx, included)
		if err != nil {
			s.retryAdvance(fmt.Errorf("progress story: %w", err))
			return
		}
	}

	// all external calls done; apply the whole boundary as one persisted
	// mutation, then broadcast in order
	snap := s.state.clone()
	s.state.Messages = append(s.state.Messages, lines...)
	if progression != "" {
		s.state.Messages = append(s.state.Messages, progression)
	}
	s.state.PreviousRounds = append(s.state.PreviousRounds, round.clone())

	final := round.Number >= round.Total
	var separator string
	if final {
		s.state.CurrentRound = nil
		s.state.Finished = true
	} else {
		next := &Round{
			EndsAt: s.arena.now().Add(s.arena.cfg.RoundDuration),
			Inputs: make(map[string]string),
			Number: round.Number + 1,
			Total:  round.Total,
		}
		separator = fmt.Sprintf("— Round %d —", next.Number)
		s.state.Messages = append(s.state.Messages, separator)
		s.state.CurrentRound = next
	}
	if err := s.commit(ctx); err != nil {
		s.state = snap
		s.retryAdvance(err)
		return
	}

	for _, line := range lines {
		s.observers.notify(NarrativeEvent{Text: line})
	}
	if progression != "" {
		s.observers.notify(NarrativeEvent{Text: progression})
	}
	if final {
		s.arena.scheduler.Cancel(s.id)
		s.observers.notify(GameEndedEvent{})
		log.Info().Str("session", s.id).Int("round", round.Number).Msg("final round processed")
		s.finalizeResults(ctx)
		return
	}
	s.observers.notify(NarrativeEvent{Text: separator})
	s.observers.notify(RoundEvent{Round: s.state.CurrentRound.clone()})
	s.armTimer()
	log.Info().Str("session", s.id).Int("round", s.state.CurrentRound.Number).Msg("round advanced")
}

// finalizeResults computes the standings: for each player the engine counts
// how often their theme reached the story; score = count * weight / 100.
// The winner is the first player, in join order, whose score is strictly
// greater than every score seen before theirs.
func (s *session) finalizeResults(ctx context.Context) {
	engine := s.ensureEngine()
	counts := make(map[string]int, len(s.state.JoinOrder))
	for _, id := range s.state.JoinOrder {
		p := s.state.Players[id]
		count, err := engine.CountOccurrences(ctx, p.Theme)
		if err != nil {
			s.retryAdvance(fmt.Errorf("count occurrences for %s: %w", id, err))
			return
		}
		counts[id] = count
	}

	results := make([]PlayerResult, 0, len(s.state.JoinOrder))
	winner := ""
	best := 0.0
	for _, id := range s.state.JoinOrder {
		p := s.state.Players[id]
		score := float64(counts[id]*s.state.Weights[id]) / 100
		if winner == "" || score > best {
			winner = id
			best = score
		}
		results = append(results, PlayerResult{
			PlayerID: id,
			Nickname: p.Nickname,
			Theme:    p.Theme,
			Count:    counts[id],
			Weight:   s.state.Weights[id],
			Score:    score,
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	lines := make([]string, 0, len(results))
	for i := range results {
		r := &results[i]
		r.Winner = r.PlayerID == winner
		line := fmt.Sprintf("%s — %q appeared %d time(s), weight %d: %.1f points", r.Nickname, r.Theme, r.Count, r.Weight, r.Score)
		if r.Winner {
			line = "Winner: " + line
		}
		lines = append(lines, line)
	}

	snap := s.state.clone()
	s.state.Results = results
	s.state.Messages = append(s.state.Messages, lines...)
	if err := s.commit(ctx); err != nil {
		s.state = snap
		s.retryAdvance(err)
		return
	}
	for _, line := range lines {
		s.observers.notify(NarrativeEvent{Text: line})
	}
	log.Info().Str("session", s.id).Str("winner", winner).Msg("game finished")
}

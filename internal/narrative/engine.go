package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fableforge/fableforge/internal/game"
)

const systemPrompt = "You are the narrator of a collaborative party game. " +
	"You keep a single evolving story going across the whole conversation. " +
	"When asked for a judgment, answer with exactly the JSON object requested and nothing else."

// Story is one session's conversation with the narrator model. Every call
// appends to the transcript, so earlier exchanges shape later judgments.
// A Story is owned by a single session actor and is not safe for concurrent
// use.
type Story struct {
	client    *Client
	sessionID string
	history   []message
}

// NewEngine mints the story conversation for a session.
func (c *Client) NewEngine(sessionID string) game.Engine {
	return &Story{
		client:    c,
		sessionID: sessionID,
		history:   []message{{Role: "system", Content: systemPrompt}},
	}
}

func (s *Story) ask(ctx context.Context, prompt string) (string, error) {
	s.history = append(s.history, message{Role: "user", Content: prompt})
	reply, err := s.client.chat(ctx, s.history)
	if err != nil {
		// drop the unanswered prompt so a retry rebuilds the same exchange
		s.history = s.history[:len(s.history)-1]
		return "", err
	}
	s.history = append(s.history, message{Role: "assistant", Content: reply})
	return reply, nil
}

func (s *Story) StartStory(ctx context.Context) (string, error) {
	return s.ask(ctx, "Begin a new short story with an open-ended scene that several characters could influence. Two or three sentences.")
}

// EstimateProbability asks the narrator how plausible it is that the given
// activity enters the story. A reply that cannot be parsed counts as 0.5
// rather than failing the round.
func (s *Story) EstimateProbability(ctx context.Context, activity string) (float64, error) {
	prompt := fmt.Sprintf(
		"A character attempts the following: %q. Given the story so far, how likely is it that this makes it into the story? Respond with only a JSON object like {\"probability\": 0.7} with a value between 0 and 1.",
		activity)
	reply, err := s.ask(ctx, prompt)
	if err != nil {
		return 0, err
	}
	block, ok := jsonBlock(reply)
	if !ok {
		log.Warn().Str("session", s.sessionID).Str("reply", reply).Msg("unparseable probability, defaulting to 0.5")
		return 0.5, nil
	}
	var out struct {
		Probability float64 `json:"probability"`
	}
	if err := json.Unmarshal([]byte(block), &out); err != nil || out.Probability < 0 || out.Probability > 1 {
		log.Warn().Str("session", s.sessionID).Str("reply", reply).Msg("unparseable probability, defaulting to 0.5")
		return 0.5, nil
	}
	return out.Probability, nil
}

func (s *Story) ProgressStory(ctx context.Context, activities []string) (string, error) {
	prompt := fmt.Sprintf(
		"Continue the story, working in the following events: %s. Two or three sentences, plain prose.",
		strings.Join(activities, "; "))
	return s.ask(ctx, prompt)
}

// CountOccurrences asks how often the theme showed up across the story so
// far. Unlike probability judgments, a malformed reply here is an error.
func (s *Story) CountOccurrences(ctx context.Context, theme string) (int, error) {
	prompt := fmt.Sprintf(
		"Across the whole story so far, count how many times the theme %q appeared or was touched on. Respond with only a JSON object like {\"count\": 3}.",
		theme)
	reply, err := s.ask(ctx, prompt)
	if err != nil {
		return 0, err
	}
	block, ok := jsonBlock(reply)
	if !ok {
		return 0, fmt.Errorf("unparseable count reply: %q", reply)
	}
	var out struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(block), &out); err != nil {
		return 0, fmt.Errorf("unparseable count reply: %q", reply)
	}
	if out.Count < 0 {
		return 0, fmt.Errorf("negative count %d", out.Count)
	}
	return out.Count, nil
}

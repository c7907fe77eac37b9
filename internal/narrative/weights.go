package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const weightsSystemPrompt = "You are a game balancer. You rate themes for how hard they are to " +
	"work into a story: common themes get low weights, obscure ones high weights. " +
	"Answer with exactly the JSON object requested and nothing else."

// AssignWeights asks the model for a 1-100 weight per player based on their
// theme. The raw weights rarely sum to 100; the game core renormalizes them.
func (c *Client) AssignWeights(ctx context.Context, themes map[string]string) (map[string]int, error) {
	ids := make([]string, 0, len(themes))
	for id := range themes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "%s: %s\n", id, themes[id])
	}
	prompt := fmt.Sprintf(
		"Assign each player a weight from 1 to 100 for their theme:\n%sRespond with only a JSON object mapping every player id to an integer weight.",
		b.String())

	reply, err := c.chat(ctx, []message{
		{Role: "system", Content: weightsSystemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return nil, err
	}
	block, ok := jsonBlock(reply)
	if !ok {
		return nil, fmt.Errorf("unparseable weight reply: %q", reply)
	}
	var weights map[string]int
	if err := json.Unmarshal([]byte(block), &weights); err != nil {
		return nil, fmt.Errorf("unparseable weight reply: %q", reply)
	}
	for _, id := range ids {
		w, ok := weights[id]
		if !ok {
			return nil, fmt.Errorf("weight reply missing player %s", id)
		}
		if w < 1 || w > 100 {
			return nil, fmt.Errorf("weight %d for player %s out of range", w, id)
		}
	}
	return weights, nil
}

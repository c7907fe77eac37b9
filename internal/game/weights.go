package game

import (
	"sort"
)

// NormalizeWeights rescales raw weights so they sum to exactly 100. Each
// weight is scaled by 100/sum and truncated; the remainder is handed out by
// largest fractional part, ties broken by ascending player id. A single
// player always gets exactly 100. A non-positive sum falls back to an equal
// split instead of dividing by zero.
func NormalizeWeights(raw map[string]int) map[string]int {
	out := make(map[string]int, len(raw))
	if len(raw) == 0 {
		return out
	}

	ids := make([]string, 0, len(raw))
	sum := 0
	for id, w := range raw {
		ids = append(ids, id)
		sum += w
	}
	sort.Strings(ids)

	if len(ids) == 1 {
		out[ids[0]] = 100
		return out
	}

	if sum <= 0 {
		for _, id := range ids {
			out[id] = 100 / len(ids)
		}
		distribute(out, ids, 100-total(out))
		return out
	}

	type part struct {
		id  string
		rem int // fractional remainder, scaled by sum
	}
	parts := make([]part, 0, len(ids))
	for _, id := range ids {
		scaled := raw[id] * 100
		out[id] = scaled / sum
		parts = append(parts, part{id: id, rem: scaled % sum})
	}
	sort.SliceStable(parts, func(i, j int) bool { return parts[i].rem > parts[j].rem })

	left := 100 - total(out)
	for i := 0; i < left && i < len(parts); i++ {
		out[parts[i].id]++
	}
	// more leftover than players only happens with pathological inputs
	if left > len(parts) {
		distribute(out, ids, left-len(parts))
	}
	return out
}

func total(m map[string]int) int {
	sum := 0
	for _, v := range m {
		sum += v
	}
	return sum
}

func distribute(m map[string]int, ids []string, n int) {
	for i := 0; n > 0; i = (i + 1) % len(ids) {
		m[ids[i]]++
		n--
	}
}

package markov

import (
	"slices"
)

// chain holds every recorded follower of one context, sorted by rune, along
// with the running totals used for weighted selection.
type chain struct {
	next       []Transition
	cumulative []int // cumulative[i] is the sum of next[0..i].Freq
	total      int
}

// buildTable counts (context -> next rune) links over the circular extension
// of text, which is text followed by its own first k runes. Every start index
// of the original text contributes exactly one link.
func buildTable(text []rune, k int) (map[string]*chain, []rune) {
	circular := make([]rune, 0, len(text)+k)
	circular = append(circular, text...)
	circular = append(circular, text[:k]...)

	counts := make(map[string]map[rune]int)
	seen := make(map[rune]struct{})

	for i := 0; i < len(text); i++ {
		prefix := string(circular[i : i+k])
		next := circular[i+k]

		followers, ok := counts[prefix]
		if !ok {
			followers = make(map[rune]int)
			counts[prefix] = followers
		}
		followers[next]++
		seen[next] = struct{}{}
	}

	table := make(map[string]*chain, len(counts))
	for prefix, followers := range counts {
		table[prefix] = freeze(followers)
		for _, r := range prefix {
			seen[r] = struct{}{}
		}
	}

	alphabet := make([]rune, 0, len(seen))
	for r := range seen {
		alphabet = append(alphabet, r)
	}
	slices.Sort(alphabet)

	return table, alphabet
}

// freeze turns a follower count map into a chain with a stable rune order so
// that seeded sampling does not depend on map iteration.
func freeze(followers map[rune]int) *chain {
	c := &chain{
		next:       make([]Transition, 0, len(followers)),
		cumulative: make([]int, 0, len(followers)),
	}
	for r, freq := range followers {
		c.next = append(c.next, Transition{Char: r, Freq: freq})
	}
	slices.SortFunc(c.next, func(a, b Transition) int {
		return int(a.Char) - int(b.Char)
	})
	for _, t := range c.next {
		c.total += t.Freq
		c.cumulative = append(c.cumulative, c.total)
	}
	return c
}

// freq returns the count of r in c, or 0 if r never followed this context.
func (c *chain) freq(r rune) int {
	i, found := slices.BinarySearchFunc(c.next, r, func(t Transition, target rune) int {
		return int(t.Char) - int(target)
	})
	if !found {
		return 0
	}
	return c.next[i].Freq
}

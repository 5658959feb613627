package markov

import (
	"slices"
)

// Transition is a single recorded follower of a context: the rune that came
// next and how many times it did.
type Transition struct {
	Char rune
	Freq int
}

// NextChars returns every rune observed after context, sorted by rune, along
// with the sum of their frequencies. If the context was never seen, it
// returns a nil slice and a total of 0. The returned slice is a copy.
func (m *Model) NextChars(context string) ([]Transition, int, error) {
	if err := m.checkContext(context); err != nil {
		return nil, 0, err
	}
	c, ok := m.table[context]
	if !ok {
		return nil, 0, nil
	}
	return slices.Clone(c.next), c.total, nil
}

// logProb returns the natural log of P(r | context), or ok=false when the
// context or the transition was never observed.
func (m *Model) logProb(context string, r rune) (float64, bool) {
	c, ok := m.table[context]
	if !ok {
		return 0, false
	}
	freq := c.freq(r)
	if freq == 0 {
		return 0, false
	}
	return logRatio(freq, c.total), true
}

// logStart returns the natural log of the probability of context occurring at
// a random position of the circular training text.
func (m *Model) logStart(context string) (float64, bool) {
	c, ok := m.table[context]
	if !ok {
		return 0, false
	}
	return logRatio(c.total, m.length), true
}

package markov

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sort"
)

// sampleOptions configures how a follower is chosen from a context's
// distribution.
type sampleOptions struct {
	temperature float64
	topK        int
}

// SampleOption is a function that configures sampling. It's used as a
// variadic argument in Sample, Generate and GenerateStream.
type SampleOption func(*sampleOptions)

// WithTemperature adjusts the randomness of the selection.
// A value of 1.0 is standard weighted random selection.
// Values > 1.0 flatten the distribution (making rare followers more likely).
// Values < 1.0 sharpen it (making frequent followers even more likely).
// A value of 0 or less always picks the most frequent follower, breaking ties
// towards the smallest rune.
func WithTemperature(t float64) SampleOption {
	return func(o *sampleOptions) { o.temperature = t }
}

// WithTopK restricts the selection pool to the k most frequent followers.
// A value of 0 disables Top-K filtering.
func WithTopK(k int) SampleOption {
	return func(o *sampleOptions) { o.topK = k }
}

func newSampleOptions(opts []SampleOption) *sampleOptions {
	options := &sampleOptions{
		temperature: 1.0,
		topK:        0,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// Sample draws a rune following context with probability proportional to its
// recorded frequency. If rng is nil, the process-wide source of math/rand/v2
// is used; pass a seeded *rand.Rand for reproducible draws. A *rand.Rand is
// not safe for concurrent use, so each goroutine needs its own.
//
// It returns ErrInvalidLength if context is not k runes long and
// ErrUnknownContext if context never occurred in the training text.
func (m *Model) Sample(context string, rng *rand.Rand, opts ...SampleOption) (rune, error) {
	if err := m.checkContext(context); err != nil {
		return 0, err
	}
	return m.sample(context, rng, newSampleOptions(opts))
}

func (m *Model) sample(context string, rng *rand.Rand, options *sampleOptions) (rune, error) {
	c, ok := m.table[context]
	if !ok {
		return 0, fmt.Errorf("%w: kgram %q", ErrUnknownContext, context)
	}
	return c.choose(rng, options), nil
}

// choose picks a follower from c according to options.
func (c *chain) choose(rng *rand.Rand, options *sampleOptions) rune {
	if options.topK <= 0 || options.topK >= len(c.next) {
		if options.temperature == 1.0 {
			return c.pick(intN(rng, c.total))
		}
		return chooseWeighted(c.next, rng, options.temperature)
	}

	choices := slices.Clone(c.next)
	// Stable so that equal frequencies keep rune order.
	slices.SortStableFunc(choices, func(a, b Transition) int {
		return b.Freq - a.Freq
	})
	return chooseWeighted(choices[:options.topK], rng, options.temperature)
}

// pick returns the follower whose cumulative weight range contains n, for n
// in [0, total).
func (c *chain) pick(n int) rune {
	i := sort.Search(len(c.cumulative), func(i int) bool {
		return c.cumulative[i] > n
	})
	return c.next[i].Char
}

// chooseWeighted selects from an arbitrary subset of followers, applying the
// temperature to their log frequencies.
func chooseWeighted(choices []Transition, rng *rand.Rand, temperature float64) rune {
	if temperature <= 0 { // Deterministic
		best := choices[0]
		for _, choice := range choices[1:] {
			if choice.Freq > best.Freq || (choice.Freq == best.Freq && choice.Char < best.Char) {
				best = choice
			}
		}
		return best.Char
	}

	if temperature == 1.0 {
		total := 0
		for _, choice := range choices {
			total += choice.Freq
		}
		n := intN(rng, total)
		for _, choice := range choices {
			n -= choice.Freq
			if n < 0 {
				return choice.Char
			}
		}
		return choices[len(choices)-1].Char
	}

	logProbabilities := make([]float64, len(choices))
	maxLog := math.Inf(-1)
	for i, choice := range choices {
		lp := math.Log(float64(choice.Freq)) / temperature
		logProbabilities[i] = lp
		if lp > maxLog {
			maxLog = lp
		}
	}
	var totalWeight float64
	weights := make([]float64, len(choices))
	for i, lp := range logProbabilities {
		w := math.Exp(lp - maxLog)
		weights[i] = w
		totalWeight += w
	}
	x := float64N(rng) * totalWeight
	for i, choice := range choices {
		x -= weights[i]
		if x < 0 {
			return choice.Char
		}
	}
	return choices[len(choices)-1].Char
}

func intN(rng *rand.Rand, n int) int {
	if rng == nil {
		return rand.IntN(n)
	}
	return rng.IntN(n)
}

func float64N(rng *rand.Rand) float64 {
	if rng == nil {
		return rand.Float64()
	}
	return rng.Float64()
}

package markov

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
)

// Generate simulates a trajectory through the chain and returns a string of
// exactly length runes whose first k runes are seed. Each step samples a rune
// following the last k runes generated so far.
//
// It returns ErrInvalidLength if seed is not k runes long or length is less
// than k, and ErrUnknownContext if the trajectory reaches a context that never
// occurred in the training text. rng has the same meaning as in Sample.
func (m *Model) Generate(seed string, length int, rng *rand.Rand, opts ...SampleOption) (string, error) {
	if err := m.checkSeed(seed, length); err != nil {
		return "", err
	}
	options := newSampleOptions(opts)

	out := make([]rune, 0, length)
	out = append(out, []rune(seed)...)

	for len(out) < length {
		prefix := string(out[len(out)-m.order:])
		next, err := m.sample(prefix, rng, options)
		if err != nil {
			m.logger.Debug("Generation terminated due to dead-end",
				slog.String("last_prefix", prefix),
				slog.Int("generated_length", len(out)),
			)
			return "", err
		}
		out = append(out, next)
	}

	return string(out), nil
}

func (m *Model) checkSeed(seed string, length int) error {
	if err := m.checkContext(seed); err != nil {
		return err
	}
	if length < m.order {
		return fmt.Errorf("%w: length %d is shorter than order %d", ErrInvalidLength, length, m.order)
	}
	return nil
}

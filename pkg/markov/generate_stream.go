package markov

import (
	"context"
	"log/slog"
	"math/rand/v2"
)

// GenerateStream is the streaming form of Generate. It validates its
// arguments synchronously and then returns a read-only channel that yields
// the runes of the seed followed by the generated runes, one at a time. The
// channel is closed once length runes have been sent, when the context is
// cancelled, or when the trajectory reaches an unknown context (which is
// logged at Debug level).
//
// rng is used only by the producing goroutine and must not be shared with
// other callers while the stream is running.
func (m *Model) GenerateStream(ctx context.Context, seed string, length int, rng *rand.Rand, opts ...SampleOption) (<-chan rune, error) {
	if err := m.checkSeed(seed, length); err != nil {
		return nil, err
	}
	options := newSampleOptions(opts)

	runeChan := make(chan rune)

	go func() {
		defer close(runeChan)

		window := []rune(seed)
		for _, r := range window {
			select {
			case <-ctx.Done():
				return
			case runeChan <- r:
			}
		}

		for generated := len(window); generated < length; generated++ {
			select {
			case <-ctx.Done():
				m.logger.DebugContext(ctx, "Generation stream cancelled by context")
				return
			default:
				// continue
			}

			prefix := string(window)
			next, err := m.sample(prefix, rng, options)
			if err != nil {
				m.logger.DebugContext(ctx, "Generation stream terminated due to dead-end",
					slog.String("last_prefix", prefix),
					slog.Int("generated_length", generated),
				)
				return
			}

			select {
			case <-ctx.Done():
				return
			case runeChan <- next:
			}
			// Shift the window and add the new rune.
			if m.order > 0 {
				window = append(window[1:], next)
			}
		}
	}()

	return runeChan, nil
}

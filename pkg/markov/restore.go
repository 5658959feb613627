package markov

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"slices"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// Restoration is the result of a successful restore: the most likely text and
// its log-likelihood. LogProb only accounts for the windows that contain at
// least one placeholder, since every other window is the same for all
// candidates.
type Restoration struct {
	Text    string
	LogProb float64
}

// restoreOptions configures the restoration search.
type restoreOptions struct {
	workers int
}

// RestoreOption is a function that configures RestoreContext.
type RestoreOption func(*restoreOptions)

// WithRestoreWorkers bounds the number of goroutines that search the
// candidate space in parallel. Values below 1 mean runtime.GOMAXPROCS(0).
func WithRestoreWorkers(n int) RestoreOption {
	return func(o *restoreOptions) { o.workers = n }
}

// Restore replaces every placeholder in corrupted with the runes that make the
// whole text most likely under the model. See RestoreContext.
func (m *Model) Restore(corrupted string, placeholder rune) (string, error) {
	res, err := m.RestoreContext(context.Background(), corrupted, placeholder)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// RestoreContext searches every assignment of the model's alphabet to the
// placeholder positions of corrupted and returns the one with the highest
// joint likelihood.
//
// The score of a candidate is the sum of the log probabilities of every
// (k+1)-rune window of the text that touches a placeholder, plus the log
// probability of the leading k-gram when it touches one. A window whose
// context or transition was never observed makes the candidate impossible.
// Ties go to the candidate whose placeholder runes sort first.
//
// It returns corrupted unchanged if it has no placeholders, ErrInvalidInput if
// it is not valid UTF-8, ErrInvalidLength if it is shorter than k runes, ErrUnrestorable if every candidate is
// impossible, and the context's error if ctx is cancelled.
func (m *Model) RestoreContext(ctx context.Context, corrupted string, placeholder rune, opts ...RestoreOption) (Restoration, error) {
	options := &restoreOptions{workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(options)
	}
	if options.workers < 1 {
		options.workers = runtime.GOMAXPROCS(0)
	}

	if !utf8.ValidString(corrupted) {
		return Restoration{}, fmt.Errorf("%w: corrupted text is not valid UTF-8", ErrInvalidInput)
	}
	text := []rune(corrupted)
	if len(text) < m.order {
		return Restoration{}, fmt.Errorf("%w: corrupted text of length %d is shorter than order %d", ErrInvalidLength, len(text), m.order)
	}

	var holes []int
	for i, r := range text {
		if r == placeholder {
			holes = append(holes, i)
		}
	}
	if len(holes) == 0 {
		return Restoration{Text: corrupted}, nil
	}
	if end, ok := m.fixedWindowsPossible(text, placeholder); !ok {
		return Restoration{}, fmt.Errorf("%w: fixed text %q has zero likelihood", ErrUnrestorable, string(text[end-m.order:end+1]))
	}
	if len(m.alphabet) == 0 {
		return Restoration{}, fmt.Errorf("%w: model has an empty alphabet", ErrUnrestorable)
	}

	plan := m.planChecks(len(text), holes)

	results := make([]*searcher, len(m.alphabet))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(options.workers)
	for i, r := range m.alphabet {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s := &searcher{
				ctx:   gctx,
				model: m,
				buf:   slices.Clone(text),
				holes: holes,
				plan:  plan,
				best:  math.Inf(-1),
			}
			results[i] = s
			return s.try(0, r, 0)
		})
	}
	if err := g.Wait(); err != nil {
		return Restoration{}, err
	}
	if err := ctx.Err(); err != nil {
		return Restoration{}, err
	}

	// Max-reduce in alphabet order; ties keep the earlier rune.
	var winner *searcher
	var nodes int
	for _, s := range results {
		if s == nil {
			continue
		}
		nodes += s.nodes
		if s.bestText != nil && (winner == nil || s.best > winner.best) {
			winner = s
		}
	}

	m.logger.DebugContext(ctx, "Restoration search finished",
		slog.Int("text_length", len(text)),
		slog.Int("placeholders", len(holes)),
		slog.Int("alphabet_size", len(m.alphabet)),
		slog.Int("nodes_visited", nodes),
		slog.Bool("restored", winner != nil),
	)

	if winner == nil {
		return Restoration{}, fmt.Errorf("%w: no assignment of %d placeholder(s) has non-zero likelihood", ErrUnrestorable, len(holes))
	}
	return Restoration{Text: string(winner.bestText), LogProb: winner.best}, nil
}

// fixedWindowsPossible checks every (k+1)-rune window without a placeholder.
// Those windows score the same for every candidate, so one impossible window
// makes the whole text impossible. It returns the end of the first such
// window and false.
func (m *Model) fixedWindowsPossible(text []rune, placeholder rune) (int, bool) {
	k := m.order
	for end := k; end < len(text); end++ {
		if slices.Contains(text[end-k:end+1], placeholder) {
			continue
		}
		if _, ok := m.logProb(string(text[end-k:end]), text[end]); !ok {
			return end, false
		}
	}
	return 0, true
}

// window is one scoring term of a candidate. When start is true it is the
// leading k-gram of the text; otherwise it is the transition from the k runes
// before end to the rune at end.
type window struct {
	end   int
	start bool
}

// planChecks assigns every window that touches a placeholder to the last
// placeholder it contains, so that a window is scored as soon as all of its
// runes are known during a left-to-right search.
func (m *Model) planChecks(n int, holes []int) [][]window {
	k := m.order
	// lastHole[i] is the index into holes of the last placeholder at or
	// before position i, or -1.
	lastHole := make([]int, n)
	h := -1
	for i := 0; i < n; i++ {
		if h+1 < len(holes) && holes[h+1] == i {
			h++
		}
		lastHole[i] = h
	}

	plan := make([][]window, len(holes))
	if k > 0 {
		if j := lastHole[k-1]; j >= 0 {
			plan[j] = append(plan[j], window{end: k, start: true})
		}
	}
	for end := k; end < n; end++ {
		j := lastHole[end]
		if j >= 0 && holes[j] >= end-k {
			plan[j] = append(plan[j], window{end: end})
		}
	}
	return plan
}

// searcher is a depth-first search over placeholder assignments. Each worker
// owns one, so none of its fields are shared.
type searcher struct {
	ctx      context.Context
	model    *Model
	buf      []rune
	holes    []int
	plan     [][]window
	best     float64
	bestText []rune
	nodes    int
}

// try assigns r to placeholder j, scores the windows that become complete,
// and descends if the partial score can still beat the best found so far.
func (s *searcher) try(j int, r rune, score float64) error {
	s.nodes++
	if s.nodes%4096 == 0 {
		if err := s.ctx.Err(); err != nil {
			return err
		}
	}

	s.buf[s.holes[j]] = r
	for _, w := range s.plan[j] {
		lp, ok := s.score(w)
		if !ok {
			return nil
		}
		score += lp
	}
	// Log probabilities are never positive, so a partial score that does not
	// beat the best cannot recover.
	if s.bestText != nil && score <= s.best {
		return nil
	}

	if j == len(s.holes)-1 {
		s.best = score
		s.bestText = slices.Clone(s.buf)
		return nil
	}
	for _, next := range s.model.alphabet {
		if err := s.try(j+1, next, score); err != nil {
			return err
		}
	}
	return nil
}

func (s *searcher) score(w window) (float64, bool) {
	k := s.model.order
	if w.start {
		return s.model.logStart(string(s.buf[:k]))
	}
	return s.model.logProb(string(s.buf[w.end-k:w.end]), s.buf[w.end])
}

func logRatio(num, den int) float64 {
	return math.Log(float64(num) / float64(den))
}

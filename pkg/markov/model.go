package markov

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"unicode/utf8"
)

// Model is an order-k Markov chain over the runes of a training text.
// It is immutable after New returns and safe for concurrent use.
type Model struct {
	order    int
	table    map[string]*chain
	alphabet []rune
	length   int // number of runes in the training text
	logger   *slog.Logger
}

// New builds a Model of order k from text. It returns ErrInvalidInput if k is
// negative, text is not valid UTF-8, or text has fewer than k runes.
func New(text string, k int) (*Model, error) {
	return newModel(text, k, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// NewWithLogger is like New but reports construction statistics to logger.
// The logger is also used by generation and restoration.
func NewWithLogger(text string, k int, logger *slog.Logger) (*Model, error) {
	if logger == nil {
		return New(text, k)
	}
	return newModel(text, k, logger)
}

// NewFromReader reads r to the end and builds a Model of order k from its
// contents.
func NewFromReader(r io.Reader, k int) (*Model, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("could not read training text: %w", err)
	}
	return New(string(data), k)
}

func newModel(text string, k int, logger *slog.Logger) (*Model, error) {
	if k < 0 {
		return nil, fmt.Errorf("%w: order %d is negative", ErrInvalidInput, k)
	}
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: training text is not valid UTF-8", ErrInvalidInput)
	}
	runes := []rune(text)
	if len(runes) < k {
		return nil, fmt.Errorf("%w: text of length %d is shorter than order %d", ErrInvalidInput, len(runes), k)
	}

	table, alphabet := buildTable(runes, k)
	m := &Model{
		order:    k,
		table:    table,
		alphabet: alphabet,
		length:   len(runes),
		logger:   logger,
	}

	stats := m.Stats()
	m.logger.Info("Model built",
		slog.Int("order", k),
		slog.Int("text_length", m.length),
		slog.Int("contexts", stats.Contexts),
		slog.Int("transitions", stats.Transitions),
		slog.Int("alphabet_size", stats.AlphabetSize),
	)
	return m, nil
}

// Order returns the order k of the model.
func (m *Model) Order() int {
	return m.order
}

// Alphabet returns the sorted set of runes the model has observed. The
// returned slice is a copy.
func (m *Model) Alphabet() []rune {
	return slices.Clone(m.alphabet)
}

// KgramFreq returns how many times context occurs in the circular training
// text. Unseen contexts have frequency 0. It returns ErrInvalidLength if
// context is not exactly k runes long and ErrInvalidInput if it is not valid
// UTF-8.
func (m *Model) KgramFreq(context string) (int, error) {
	if err := m.checkContext(context); err != nil {
		return 0, err
	}
	c, ok := m.table[context]
	if !ok {
		return 0, nil
	}
	return c.total, nil
}

// CharFreq returns how many times r follows context in the circular training
// text. Both an unseen context and an unseen follower have frequency 0; only
// a context of the wrong length is an error.
func (m *Model) CharFreq(context string, r rune) (int, error) {
	if err := m.checkContext(context); err != nil {
		return 0, err
	}
	c, ok := m.table[context]
	if !ok {
		return 0, nil
	}
	return c.freq(r), nil
}

func (m *Model) checkContext(context string) error {
	if !utf8.ValidString(context) {
		return fmt.Errorf("%w: kgram %q is not valid UTF-8", ErrInvalidInput, context)
	}
	if n := utf8.RuneCountInString(context); n != m.order {
		return fmt.Errorf("%w: kgram %q has length %d, want %d", ErrInvalidLength, context, n, m.order)
	}
	return nil
}

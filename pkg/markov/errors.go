package markov

import "errors"

var (
	// ErrInvalidInput is returned when the order is negative, the training
	// text is shorter than the order, or a text argument is not valid UTF-8.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidLength is returned when a context, seed, target length or
	// corrupted text does not fit the model's order.
	ErrInvalidLength = errors.New("invalid length")
	// ErrUnknownContext is returned when sampling or generation reaches a
	// context that never occurred in the training text.
	ErrUnknownContext = errors.New("unknown context")
	// ErrUnrestorable is returned when no placeholder assignment has a
	// non-zero likelihood under the model.
	ErrUnrestorable = errors.New("unrestorable text")
)

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/CTAG07/charkov/pkg/markov"
)

// trainingFlags are shared by every subcommand that builds a model.
type trainingFlags struct {
	file *string
	text *string
	k    *int
}

func addTrainingFlags(fs *flag.FlagSet) trainingFlags {
	return trainingFlags{
		file: fs.String("file", "", "read the training text from this file"),
		text: fs.String("text", "", "use this string as the training text"),
		k:    fs.Int("k", 3, "order of the model"),
	}
}

// load returns the training text selected by -file or -text.
func (t trainingFlags) load() (string, error) {
	if *t.file == "" {
		return *t.text, nil
	}
	if *t.text != "" {
		return "", errors.New("use only one of -file and -text")
	}
	return readTextFile(*t.file)
}

// runQueryCommand implements `charkov query <text> <k>`, answering the
// (kgram, char) pairs read from stdin.
func runQueryCommand(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) != 2 {
		return errors.New("usage: charkov query <text> <k>")
	}
	k, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid order %q: %w", args[1], err)
	}
	model, err := markov.New(args[0], k)
	if err != nil {
		return err
	}
	return runQuery(model, stdin, stdout)
}

func runGenerateCommand(args []string, stdout io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	training := addTrainingFlags(fs)
	length := fs.Int("n", 100, "number of characters to generate, including the seed")
	seed := fs.String("seed", "", "first k characters of the output (default: first k characters of the training text)")
	randSeed := fs.Uint64("rand-seed", 0, "seed for reproducible output (0 picks a random seed)")
	temperature := fs.Float64("temperature", 1.0, "sampling temperature")
	topK := fs.Int("top-k", 0, "restrict sampling to the k most frequent followers (0 disables)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	text, err := training.load()
	if err != nil {
		return err
	}
	model, err := markov.NewWithLogger(text, *training.k, logger)
	if err != nil {
		return err
	}

	start := *seed
	if start == "" {
		start = string([]rune(text)[:model.Order()])
	}

	var rng *rand.Rand
	if *randSeed != 0 {
		rng = rand.New(rand.NewPCG(*randSeed, *randSeed))
	}

	out, err := model.Generate(start, *length, rng, markov.WithTemperature(*temperature), markov.WithTopK(*topK))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, out)
	return err
}

func runRestoreCommand(args []string, stdin io.Reader, stdout io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	training := addTrainingFlags(fs)
	placeholder := fs.String("placeholder", "~", "character marking unknown positions")
	workers := fs.Int("workers", 0, "parallel search workers (0 uses all CPUs)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ph, err := parsePlaceholder(*placeholder)
	if err != nil {
		return err
	}
	text, err := training.load()
	if err != nil {
		return err
	}
	model, err := markov.NewWithLogger(text, *training.k, logger)
	if err != nil {
		return err
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return fmt.Errorf("could not read corrupted text: %w", err)
	}
	corrupted := strings.TrimRight(string(data), "\r\n")

	res, err := model.RestoreContext(context.Background(), corrupted, ph, markov.WithRestoreWorkers(*workers))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, res.Text)
	return err
}

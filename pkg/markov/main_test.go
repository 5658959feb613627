package markov

import (
	"go/build"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// newTestModel builds a model and fails the test if construction fails.
func newTestModel(t testing.TB, text string, k int) *Model {
	t.Helper()
	m, err := New(text, k)
	if err != nil {
		t.Fatalf("New(%q, %d) error = %v", text, k, err)
	}
	return m
}

// seededRand returns a deterministic source for reproducible draws.
func seededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// circularCount counts the start positions of text whose k runes, read with
// wraparound, equal kgram.
func circularCount(text string, k int, kgram string) int {
	runes := []rune(text)
	circular := append(append([]rune{}, runes...), runes[:k]...)
	count := 0
	for i := range runes {
		if string(circular[i:i+k]) == kgram {
			count++
		}
	}
	return count
}

var (
	benchmarkCorpus string
	corpusOnce      sync.Once
)

// createBenchmarkCorpus reads Go source files to create a corpus for benchmarking.
func createBenchmarkCorpus() string {
	corpusOnce.Do(func() {
		var sb strings.Builder
		goRoot := build.Default.GOROOT
		filesToRead := []string{
			filepath.Join(goRoot, "src/net/http/server.go"),
			filepath.Join(goRoot, "src/go/parser/parser.go"),
			filepath.Join(goRoot, "src/encoding/json/encode.go"),
		}

		for _, file := range filesToRead {
			content, err := os.ReadFile(file)
			if err != nil {
				benchmarkCorpus = "this is a fallback corpus for benchmarking. it is not very long but will prevent a crash. "
				return
			}
			sb.Write(content)
			sb.WriteString("\n")
		}
		benchmarkCorpus = sb.String()
	})
	return benchmarkCorpus
}

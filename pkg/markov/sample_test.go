package markov

import (
	"errors"
	"math"
	"testing"
)

func TestSampleErrors(t *testing.T) {
	m := newTestModel(t, "abcabc", 2)

	if _, err := m.Sample("a", nil); !errors.Is(err, ErrInvalidLength) {
		t.Errorf("Sample(a) error = %v, want ErrInvalidLength", err)
	}
	if _, err := m.Sample("zz", nil); !errors.Is(err, ErrUnknownContext) {
		t.Errorf("Sample(zz) error = %v, want ErrUnknownContext", err)
	}
	if _, err := m.Sample("ac", nil); !errors.Is(err, ErrUnknownContext) {
		t.Errorf("Sample(ac) error = %v, want ErrUnknownContext", err)
	}
}

func TestSampleNeverReturnsUnseenFollower(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog"
	m := newTestModel(t, text, 1)
	rng := seededRand(7)

	for _, context := range []string{"t", "h", "e", " ", "o"} {
		for i := 0; i < 500; i++ {
			r, err := m.Sample(context, rng)
			if err != nil {
				t.Fatalf("Sample(%q) error = %v", context, err)
			}
			freq, _ := m.CharFreq(context, r)
			if freq == 0 {
				t.Fatalf("Sample(%q) returned %q, which was never observed after it", context, r)
			}
		}
	}
}

func TestSampleConvergesToStoredProportions(t *testing.T) {
	m := newTestModel(t, "aaabbc", 0)
	rng := seededRand(42)

	const draws = 60000
	counts := make(map[rune]int)
	for i := 0; i < draws; i++ {
		r, err := m.Sample("", rng)
		if err != nil {
			t.Fatalf("Sample() error = %v", err)
		}
		counts[r]++
	}

	expected := map[rune]float64{'a': 3.0 / 6, 'b': 2.0 / 6, 'c': 1.0 / 6}
	for r, want := range expected {
		got := float64(counts[r]) / draws
		if math.Abs(got-want) > 0.01 {
			t.Errorf("empirical frequency of %q = %.4f, want %.4f ± 0.01", r, got, want)
		}
	}
}

func TestSampleReproducible(t *testing.T) {
	m := newTestModel(t, "gagggagaggcgagaaa", 2)

	draw := func() []rune {
		rng := seededRand(99)
		out := make([]rune, 0, 50)
		for i := 0; i < 50; i++ {
			r, err := m.Sample("ga", rng)
			if err != nil {
				t.Fatal(err)
			}
			out = append(out, r)
		}
		return out
	}

	first, second := draw(), draw()
	if string(first) != string(second) {
		t.Errorf("same seed produced different draws: %q vs %q", string(first), string(second))
	}
}

func TestSampleOptions(t *testing.T) {
	m := newTestModel(t, "aaabbc", 0)
	rng := seededRand(3)

	testCases := []struct {
		name string
		opts []SampleOption
		want rune
	}{
		{name: "Temperature zero picks most frequent", opts: []SampleOption{WithTemperature(0)}, want: 'a'},
		{name: "Top-1 always picks most frequent", opts: []SampleOption{WithTopK(1)}, want: 'a'},
		{name: "Top-1 with high temperature", opts: []SampleOption{WithTopK(1), WithTemperature(5)}, want: 'a'},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for i := 0; i < 100; i++ {
				r, err := m.Sample("", rng, tc.opts...)
				if err != nil {
					t.Fatalf("Sample() error = %v", err)
				}
				if r != tc.want {
					t.Fatalf("Sample() = %q, want %q", r, tc.want)
				}
			}
		})
	}

	t.Run("Temperature zero breaks ties towards smallest rune", func(t *testing.T) {
		tied := newTestModel(t, "baab", 0)
		r, err := tied.Sample("", rng, WithTemperature(0))
		if err != nil {
			t.Fatal(err)
		}
		if r != 'a' {
			t.Errorf("Sample() = %q, want 'a'", r)
		}
	})

	t.Run("High temperature stays within observed followers", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			r, err := m.Sample("", rng, WithTemperature(2.5), WithTopK(2))
			if err != nil {
				t.Fatal(err)
			}
			if r != 'a' && r != 'b' {
				t.Fatalf("Sample() = %q, want 'a' or 'b'", r)
			}
		}
	})
}

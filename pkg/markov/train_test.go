package markov

import (
	"fmt"
	"slices"
	"testing"
)

func TestBuildTable(t *testing.T) {
	table, alphabet := buildTable([]rune("abcab"), 2)

	// Circular extension is "abcabab": ab->c, bc->a, ca->b, ab->a, ba->b.
	expected := map[string][]Transition{
		"ab": {{Char: 'a', Freq: 1}, {Char: 'c', Freq: 1}},
		"bc": {{Char: 'a', Freq: 1}},
		"ca": {{Char: 'b', Freq: 1}},
		"ba": {{Char: 'b', Freq: 1}},
	}
	if len(table) != len(expected) {
		t.Fatalf("buildTable() produced %d contexts, want %d", len(table), len(expected))
	}
	for prefix, want := range expected {
		c, ok := table[prefix]
		if !ok {
			t.Errorf("context %q missing from table", prefix)
			continue
		}
		if !slices.Equal(c.next, want) {
			t.Errorf("table[%q].next = %v, want %v", prefix, c.next, want)
		}
	}

	if !slices.Equal(alphabet, []rune("abc")) {
		t.Errorf("alphabet = %q, want %q", string(alphabet), "abc")
	}
}

func TestBuildTableLinkCount(t *testing.T) {
	text := []rune("the quick brown fox jumps over the lazy dog")
	for k := 0; k <= 4; k++ {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			table, _ := buildTable(text, k)
			total := 0
			for prefix, c := range table {
				if got := len([]rune(prefix)); got != k {
					t.Errorf("context %q has length %d, want %d", prefix, got, k)
				}
				total += c.total
			}
			if total != len(text) {
				t.Errorf("links = %d, want one per character (%d)", total, len(text))
			}
		})
	}
}

func TestFreeze(t *testing.T) {
	c := freeze(map[rune]int{'z': 2, 'a': 5, 'm': 1})

	wantNext := []Transition{{Char: 'a', Freq: 5}, {Char: 'm', Freq: 1}, {Char: 'z', Freq: 2}}
	if !slices.Equal(c.next, wantNext) {
		t.Errorf("next = %v, want %v", c.next, wantNext)
	}
	if !slices.Equal(c.cumulative, []int{5, 6, 8}) {
		t.Errorf("cumulative = %v, want [5 6 8]", c.cumulative)
	}
	if c.total != 8 {
		t.Errorf("total = %d, want 8", c.total)
	}

	for r, want := range map[rune]int{'a': 5, 'm': 1, 'z': 2, 'b': 0, 'é': 0} {
		if got := c.freq(r); got != want {
			t.Errorf("freq(%q) = %d, want %d", r, got, want)
		}
	}
}

func BenchmarkBuildTable(b *testing.B) {
	corpus := []rune(createBenchmarkCorpus())
	for _, k := range []int{1, 3, 6} {
		b.Run(fmt.Sprintf("k=%d", k), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				buildTable(corpus, k)
			}
		})
	}
}

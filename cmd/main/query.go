package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/CTAG07/charkov/pkg/markov"
)

// frequencyQuery is one line of input to the query client. An empty char
// asks for the frequency of the kgram itself.
type frequencyQuery struct {
	kgram string
	char  string
}

// runQuery reads whitespace-separated (kgram, char) pairs from in and writes
// one frequency line per pair to out. A '-' in either field stands for a
// space, and a char of "-" asks for the frequency of the kgram alone:
//
//	freq(kgram) = n
//	freq(kgram, c) = n
//
// All input is read before any output is written.
func runQuery(model *markov.Model, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Split(bufio.ScanWords)

	var queries []frequencyQuery
	for scanner.Scan() {
		kgram := scanner.Text()
		if !scanner.Scan() {
			return fmt.Errorf("kgram %q has no matching character", kgram)
		}
		queries = append(queries, frequencyQuery{
			kgram: strings.ReplaceAll(kgram, "-", " "),
			char:  strings.ReplaceAll(scanner.Text(), "-", " "),
		})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("could not read queries: %w", err)
	}

	w := bufio.NewWriter(out)
	for _, q := range queries {
		if q.char == " " {
			freq, err := model.KgramFreq(q.kgram)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(w, "freq(%s) = %d\n", q.kgram, freq)
			continue
		}

		if utf8.RuneCountInString(q.char) != 1 {
			return fmt.Errorf("%q is not a single character", q.char)
		}
		r, _ := utf8.DecodeRuneInString(q.char)
		freq, err := model.CharFreq(q.kgram, r)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(w, "freq(%s, %s) = %d\n", q.kgram, q.char, freq)
	}
	return w.Flush()
}

package main

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CTAG07/charkov/pkg/markov"
)

func putCorpus(t *testing.T, h http.Handler, name, text string) CorpusInfo {
	t.Helper()
	rec := doRequest(t, h, http.MethodPost, "/api/corpora", CreateCorpusRequest{Name: name, Text: text}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[CorpusInfo](t, rec)
}

func TestCorporaListAndCreate(t *testing.T) {
	server, _ := setupTestServer(t)
	h := server.apiMux

	info := putCorpus(t, h, "alpha", "abcabcabc")
	assert.Equal(t, "alpha", info.Name)
	assert.Equal(t, 9, info.Length)
	putCorpus(t, h, "beta", "xyz")

	rec := doRequest(t, h, http.MethodGet, "/api/corpora", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	corpora := decodeBody[[]CorpusInfo](t, rec)
	require.Len(t, corpora, 2)
	assert.Equal(t, "alpha", corpora[0].Name)
	assert.Equal(t, "beta", corpora[1].Name)

	rec = doRequest(t, h, http.MethodGet, "/api/corpora/alpha", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, info.Id, decodeBody[CorpusInfo](t, rec).Id)

	rec = doRequest(t, h, http.MethodPost, "/api/corpora", CreateCorpusRequest{Name: "a/b", Text: "x"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPut, "/api/corpora", nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, POST", rec.Header().Get("Allow"))
}

func TestCorpusDelete(t *testing.T) {
	server, _ := setupTestServer(t)
	h := server.apiMux
	putCorpus(t, h, "alpha", "abcabcabc")

	rec := doRequest(t, h, http.MethodGet, "/api/corpora/alpha/stats?order=1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, server.cache.Snapshot(), 1)

	rec = doRequest(t, h, http.MethodDelete, "/api/corpora/alpha", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, server.cache.Snapshot(), "deleting a corpus drops its models")

	rec = doRequest(t, h, http.MethodDelete, "/api/corpora/alpha", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCorpusNotFoundSuggestions(t *testing.T) {
	server, _ := setupTestServer(t)
	h := server.apiMux
	putCorpus(t, h, "alpha", "abc")
	putCorpus(t, h, "shakespeare", "to be or not to be")

	testCases := []struct {
		name     string
		path     string
		expected []string
	}{
		{name: "Prefix of a stored name", path: "/api/corpora/shake", expected: []string{"shakespeare"}},
		{name: "Transposed letters", path: "/api/corpora/alpah/freq?order=1&kgram=a", expected: []string{"alpha"}},
		{name: "Nothing close", path: "/api/corpora/zzzzzzzz", expected: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodGet, tc.path, nil, "")
			require.Equal(t, http.StatusNotFound, rec.Code)
			body := decodeBody[struct {
				Error       string   `json:"error"`
				Suggestions []string `json:"suggestions"`
			}](t, rec)
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tc.expected, body.Suggestions)
		})
	}
}

func TestCorpusFrequency(t *testing.T) {
	server, _ := setupTestServer(t)
	h := server.apiMux
	putCorpus(t, h, "abc", "abcabcabc")

	rec := doRequest(t, h, http.MethodGet, "/api/corpora/abc/freq?order=1&kgram=a&char=b", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[FrequencyResponse](t, rec)
	assert.Equal(t, 3, resp.Frequency)

	rec = doRequest(t, h, http.MethodGet, "/api/corpora/abc/freq?order=2&kgram=ca", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3, decodeBody[FrequencyResponse](t, rec).Frequency)

	rec = doRequest(t, h, http.MethodGet, "/api/corpora/abc/freq?order=2&kgram=zz&char=a", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decodeBody[FrequencyResponse](t, rec).Frequency)

	rec = doRequest(t, h, http.MethodGet, "/api/corpora/abc/freq?order=2&kgram=abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "kgram longer than the order")

	rec = doRequest(t, h, http.MethodGet, "/api/corpora/abc/freq?order=-1&kgram=", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/corpora/abc/freq?order=1&kgram=a&char=bc", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/corpora/abc/freq?order=20&kgram=a", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "order longer than the corpus")
}

func TestCorpusNextChars(t *testing.T) {
	server, _ := setupTestServer(t)
	h := server.apiMux
	putCorpus(t, h, "abacad", "abacad")

	rec := doRequest(t, h, http.MethodGet, "/api/corpora/abacad/next?order=1&kgram=a", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[NextCharsResponse](t, rec)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, []TransitionInfo{{Char: "b", Freq: 1}, {Char: "c", Freq: 1}, {Char: "d", Freq: 1}}, resp.Transitions)
}

func TestCorpusStats(t *testing.T) {
	server, _ := setupTestServer(t)
	h := server.apiMux
	putCorpus(t, h, "cab", "cabcab")

	rec := doRequest(t, h, http.MethodGet, "/api/corpora/cab/stats?order=1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stats := decodeBody[markov.ModelStats](t, rec)
	assert.Equal(t, markov.ModelStats{Order: 1, Contexts: 3, Transitions: 3, TotalFrequency: 6, AlphabetSize: 3}, stats)
}

func TestCorpusGenerate(t *testing.T) {
	server, _ := setupTestServer(t)
	h := server.apiMux
	putCorpus(t, h, "alphabet", "abcdefg")

	order := 2
	rec := doRequest(t, h, http.MethodPost, "/api/corpora/alphabet/generate", GenerateRequest{Order: &order, Length: 10}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "abcdefgabc", decodeBody[GenerateResponse](t, rec).Text)

	rec = doRequest(t, h, http.MethodPost, "/api/corpora/alphabet/generate", GenerateRequest{Order: &order, Seed: "de", Length: 5, RandSeed: 7}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "defga", decodeBody[GenerateResponse](t, rec).Text)

	rec = doRequest(t, h, http.MethodPost, "/api/corpora/alphabet/generate", GenerateRequest{Order: &order, Seed: "zz", Length: 5}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/corpora/alphabet/generate", GenerateRequest{Order: &order, Seed: "abc", Length: 5}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/corpora/alphabet/generate", GenerateRequest{Order: &order, Length: 1 << 20}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/corpora/alphabet/generate", nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCorpusRestore(t *testing.T) {
	server, _ := setupTestServer(t)
	h := server.apiMux
	putCorpus(t, h, "abc", "abcabcabc")

	order := 1
	rec := doRequest(t, h, http.MethodPost, "/api/corpora/abc/restore", RestoreRequest{Order: &order, Text: "a~c"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[RestoreResponse](t, rec)
	assert.Equal(t, "abc", resp.Text)
	assert.InDelta(t, 0, resp.LogProb, 1e-12)

	rec = doRequest(t, h, http.MethodPost, "/api/corpora/abc/restore", RestoreRequest{Order: &order, Text: "a#c", Placeholder: "#"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "abc", decodeBody[RestoreResponse](t, rec).Text)

	rec = doRequest(t, h, http.MethodPost, "/api/corpora/abc/restore", RestoreRequest{Order: &order, Text: "a~a"}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	order = 3
	rec = doRequest(t, h, http.MethodPost, "/api/corpora/abc/restore", RestoreRequest{Order: &order, Text: "~b"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/corpora/abc/restore", RestoreRequest{Order: &order, Text: "abc", Placeholder: "~~"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCorpusUnknownAction(t *testing.T) {
	server, _ := setupTestServer(t)
	h := server.apiMux
	putCorpus(t, h, "abc", "abc")

	rec := doRequest(t, h, http.MethodGet, "/api/corpora/abc/prune", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/CTAG07/charkov/pkg/markov"
)

// maxSuggestions caps the "did you mean" list of a 404 response.
const maxSuggestions = 3

// MarkovAPI holds the dependencies for the corpus and model API handlers.
type MarkovAPI struct {
	store  *CorpusStore
	cache  *ModelCache
	cm     *ConfigManager
	logger *slog.Logger
}

// NewMarkovAPI creates a new instance of the MarkovAPI.
func NewMarkovAPI(store *CorpusStore, cache *ModelCache, cm *ConfigManager, logger *slog.Logger) *MarkovAPI {
	return &MarkovAPI{
		store:  store,
		cache:  cache,
		cm:     cm,
		logger: logger,
	}
}

// RegisterRoutes sets up the routing for all /api/corpora endpoints.
func (m *MarkovAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/corpora", func(w http.ResponseWriter, r *http.Request) {
		serveRoutes(w, r, map[string]route{
			http.MethodGet:  {scope: ScopeCorpusRead, handle: m.listCorpora},
			http.MethodPost: {scope: ScopeCorpusWrite, handle: m.putCorpus},
		})
	})
	mux.HandleFunc("/api/corpora/", m.handleCorpusByName)
}

// corpusRoutes maps each action under /api/corpora/{name} to its routes. The
// empty action is the corpus itself. Every model action needs model:query.
func (m *MarkovAPI) corpusRoutes(name string) map[string]map[string]route {
	query := func(handler func(http.ResponseWriter, *http.Request, string)) route {
		return route{scope: ScopeModelQuery, handle: func(w http.ResponseWriter, r *http.Request) {
			handler(w, r, name)
		}}
	}
	return map[string]map[string]route{
		"": {
			http.MethodGet: {scope: ScopeCorpusRead, handle: func(w http.ResponseWriter, r *http.Request) {
				m.corpusInfo(w, r, name)
			}},
			http.MethodDelete: {scope: ScopeCorpusWrite, handle: func(w http.ResponseWriter, r *http.Request) {
				m.deleteCorpus(w, r, name)
			}},
		},
		"freq":     {http.MethodGet: query(m.handleFrequency)},
		"next":     {http.MethodGet: query(m.handleNextChars)},
		"stats":    {http.MethodGet: query(m.handleModelStats)},
		"generate": {http.MethodPost: query(m.handleGenerate)},
		"restore":  {http.MethodPost: query(m.handleRestore)},
	}
}

type CreateCorpusRequest struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

type FrequencyResponse struct {
	Order     int    `json:"order"`
	Kgram     string `json:"kgram"`
	Char      string `json:"char,omitempty"`
	Frequency int    `json:"frequency"`
}

type NextCharsResponse struct {
	Order       int              `json:"order"`
	Kgram       string           `json:"kgram"`
	Total       int              `json:"total"`
	Transitions []TransitionInfo `json:"transitions"`
}

type TransitionInfo struct {
	Char string `json:"char"`
	Freq int    `json:"freq"`
}

type GenerateRequest struct {
	Order       *int     `json:"order"`
	Seed        string   `json:"seed"`
	Length      int      `json:"length"`
	RandSeed    uint64   `json:"rand_seed"`
	Temperature *float64 `json:"temperature"`
	TopK        int      `json:"top_k"`
}

type GenerateResponse struct {
	Text string `json:"text"`
}

type RestoreRequest struct {
	Order       *int   `json:"order"`
	Text        string `json:"text"`
	Placeholder string `json:"placeholder"`
}

type RestoreResponse struct {
	Text    string  `json:"text"`
	LogProb float64 `json:"log_prob"`
}

func (m *MarkovAPI) listCorpora(w http.ResponseWriter, r *http.Request) {
	corpora, err := m.store.List(r.Context())
	if err != nil {
		m.logger.Error("Failed to list corpora", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve corpora: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, corpora)
}

func (m *MarkovAPI) putCorpus(w http.ResponseWriter, r *http.Request) {
	var req CreateCorpusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	if req.Name == "" || strings.Contains(req.Name, "/") {
		respondWithError(w, http.StatusBadRequest, "Corpus name is required and must not contain '/'")
		return
	}
	if !utf8.ValidString(req.Text) {
		respondWithError(w, http.StatusBadRequest, "Corpus text must be valid UTF-8")
		return
	}

	info, err := m.store.Put(r.Context(), req.Name, req.Text)
	if err != nil {
		m.logger.Error("Failed to store corpus", "name", req.Name, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to store corpus: %v", err))
		return
	}
	m.cache.Invalidate(req.Name)
	respondWithJSON(w, http.StatusCreated, info)
}

// handleCorpusByName splits /api/corpora/{name}/{action} and serves the
// matching action's routes.
func (m *MarkovAPI) handleCorpusByName(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/corpora/"), "/")
	name, action, _ := strings.Cut(path, "/")
	if name == "" {
		respondWithError(w, http.StatusBadRequest, "Corpus name not specified")
		return
	}

	routes, ok := m.corpusRoutes(name)[action]
	if !ok {
		respondWithError(w, http.StatusNotFound, "Action not found")
		return
	}
	serveRoutes(w, r, routes)
}

func (m *MarkovAPI) corpusInfo(w http.ResponseWriter, r *http.Request, name string) {
	info, err := m.store.Info(r.Context(), name)
	if err != nil {
		m.respondWithModelError(w, r, name, err)
		return
	}
	respondWithJSON(w, http.StatusOK, info)
}

func (m *MarkovAPI) deleteCorpus(w http.ResponseWriter, r *http.Request, name string) {
	existed, err := m.store.Delete(r.Context(), name)
	if err != nil {
		m.logger.Error("Failed to remove corpus", "name", name, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to remove corpus: %v", err))
		return
	}
	m.cache.Invalidate(name)
	if !existed {
		m.respondWithModelError(w, r, name, sql.ErrNoRows)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFrequency answers ?order=&kgram=&char= with the kgram frequency, or
// with the frequency of char after kgram when char is given.
func (m *MarkovAPI) handleFrequency(w http.ResponseWriter, r *http.Request, name string) {
	q := r.URL.Query()
	order, err := m.orderParam(q.Get("order"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	model, err := m.cache.Get(r.Context(), name, order)
	if err != nil {
		m.respondWithModelError(w, r, name, err)
		return
	}

	resp := FrequencyResponse{Order: order, Kgram: q.Get("kgram"), Char: q.Get("char")}
	if resp.Char == "" {
		resp.Frequency, err = model.KgramFreq(resp.Kgram)
	} else {
		var c rune
		if c, err = parsePlaceholder(resp.Char); err != nil {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("char %q must be exactly one character", resp.Char))
			return
		}
		resp.Frequency, err = model.CharFreq(resp.Kgram, c)
	}
	if err != nil {
		m.respondWithModelError(w, r, name, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// handleNextChars lists every observed follower of ?kgram= with its frequency.
func (m *MarkovAPI) handleNextChars(w http.ResponseWriter, r *http.Request, name string) {
	q := r.URL.Query()
	order, err := m.orderParam(q.Get("order"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	model, err := m.cache.Get(r.Context(), name, order)
	if err != nil {
		m.respondWithModelError(w, r, name, err)
		return
	}

	kgram := q.Get("kgram")
	transitions, total, err := model.NextChars(kgram)
	if err != nil {
		m.respondWithModelError(w, r, name, err)
		return
	}
	resp := NextCharsResponse{
		Order:       order,
		Kgram:       kgram,
		Total:       total,
		Transitions: make([]TransitionInfo, len(transitions)),
	}
	for i, t := range transitions {
		resp.Transitions[i] = TransitionInfo{Char: string(t.Char), Freq: t.Freq}
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (m *MarkovAPI) handleModelStats(w http.ResponseWriter, r *http.Request, name string) {
	order, err := m.orderParam(r.URL.Query().Get("order"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	model, err := m.cache.Get(r.Context(), name, order)
	if err != nil {
		m.respondWithModelError(w, r, name, err)
		return
	}
	respondWithJSON(w, http.StatusOK, model.Stats())
}

func (m *MarkovAPI) handleGenerate(w http.ResponseWriter, r *http.Request, name string) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	config := m.cm.Get()
	if req.Length > config.Model.MaxGenerateLength {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("length %d exceeds the maximum of %d", req.Length, config.Model.MaxGenerateLength))
		return
	}

	order := config.Model.DefaultOrder
	if req.Order != nil {
		order = *req.Order
	}
	model, err := m.cache.Get(r.Context(), name, order)
	if err != nil {
		m.respondWithModelError(w, r, name, err)
		return
	}

	seed := req.Seed
	if seed == "" {
		// Default to the first k characters of the corpus.
		text, err := m.store.Text(r.Context(), name)
		if err != nil {
			m.respondWithModelError(w, r, name, err)
			return
		}
		seed = string([]rune(text)[:order])
	}

	var rng *rand.Rand
	if req.RandSeed != 0 {
		rng = rand.New(rand.NewPCG(req.RandSeed, req.RandSeed))
	}
	opts := []markov.SampleOption{markov.WithTopK(req.TopK)}
	if req.Temperature != nil {
		opts = append(opts, markov.WithTemperature(*req.Temperature))
	}

	text, err := model.Generate(seed, req.Length, rng, opts...)
	if err != nil {
		m.respondWithModelError(w, r, name, err)
		return
	}
	respondWithJSON(w, http.StatusOK, GenerateResponse{Text: text})
}

func (m *MarkovAPI) handleRestore(w http.ResponseWriter, r *http.Request, name string) {
	var req RestoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	config := m.cm.Get()

	placeholder := req.Placeholder
	if placeholder == "" {
		placeholder = config.Model.Placeholder
	}
	ph, err := parsePlaceholder(placeholder)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	order := config.Model.DefaultOrder
	if req.Order != nil {
		order = *req.Order
	}
	model, err := m.cache.Get(r.Context(), name, order)
	if err != nil {
		m.respondWithModelError(w, r, name, err)
		return
	}

	ctx := r.Context()
	if config.Model.RestoreTimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(config.Model.RestoreTimeoutSec)*time.Second)
		defer cancel()
	}

	res, err := model.RestoreContext(ctx, req.Text, ph, markov.WithRestoreWorkers(config.Model.RestoreWorkers))
	if err != nil {
		m.respondWithModelError(w, r, name, err)
		return
	}
	respondWithJSON(w, http.StatusOK, RestoreResponse{Text: res.Text, LogProb: res.LogProb})
}

// orderParam parses the ?order= query parameter, defaulting to the configured order.
func (m *MarkovAPI) orderParam(s string) (int, error) {
	if s == "" {
		return m.cm.Get().Model.DefaultOrder, nil
	}
	order, err := strconv.Atoi(s)
	if err != nil || order < 0 {
		return 0, fmt.Errorf("order %q must be a non-negative integer", s)
	}
	return order, nil
}

// respondWithModelError maps store and model errors to HTTP statuses.
func (m *MarkovAPI) respondWithModelError(w http.ResponseWriter, r *http.Request, name string, err error) {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		body := map[string]any{"error": fmt.Sprintf("Corpus '%s' not found", name)}
		if suggestions := m.suggest(r.Context(), name); len(suggestions) > 0 {
			body["suggestions"] = suggestions
		}
		respondWithJSON(w, http.StatusNotFound, body)
	case errors.Is(err, markov.ErrInvalidInput), errors.Is(err, markov.ErrInvalidLength):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, markov.ErrUnknownContext), errors.Is(err, markov.ErrUnrestorable):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondWithError(w, http.StatusGatewayTimeout, "Request took too long")
	case errors.Is(err, context.Canceled):
		m.logger.Debug("Request cancelled by client", "name", name)
	default:
		m.logger.Error("Corpus request failed", "name", name, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Request failed: %v", err))
	}
}

// suggest returns up to maxSuggestions stored corpus names close to name.
// Names that contain name as a subsequence rank first, then names within a
// small edit distance.
func (m *MarkovAPI) suggest(ctx context.Context, name string) []string {
	names, err := m.store.Names(ctx)
	if err != nil {
		m.logger.Warn("Failed to list corpus names for suggestions", "error", err)
		return nil
	}

	ranks := fuzzy.RankFindNormalizedFold(name, names)
	sort.Sort(ranks)
	seen := make(map[string]struct{}, maxSuggestions)
	suggestions := make([]string, 0, maxSuggestions)
	for _, rank := range ranks {
		if len(suggestions) == maxSuggestions {
			return suggestions
		}
		seen[rank.Target] = struct{}{}
		suggestions = append(suggestions, rank.Target)
	}

	lowered := strings.ToLower(name)
	for _, candidate := range names {
		if len(suggestions) == maxSuggestions {
			break
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		if fuzzy.LevenshteinDistance(lowered, strings.ToLower(candidate)) <= 2 {
			suggestions = append(suggestions, candidate)
		}
	}
	return suggestions
}

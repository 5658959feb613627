package main

import (
	"log/slog"
	"net/http"
)

// StatsSummary provides a high-level overview of stored corpora and cached models.
type StatsSummary struct {
	Corpora      int           `json:"corpora"`
	CorpusLength int           `json:"corpus_length"`
	CachedModels []CachedModel `json:"cached_models"`
}

// StatsAPI holds the dependencies for the statistics handlers.
type StatsAPI struct {
	store  *CorpusStore
	cache  *ModelCache
	logger *slog.Logger
}

func NewStatsAPI(store *CorpusStore, cache *ModelCache, logger *slog.Logger) *StatsAPI {
	return &StatsAPI{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

func (s *StatsAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		serveRoutes(w, r, map[string]route{http.MethodGet: {scope: ScopeStatsRead, handle: s.handleSummary}})
	})
	mux.HandleFunc("/api/stats/models", func(w http.ResponseWriter, r *http.Request) {
		serveRoutes(w, r, map[string]route{http.MethodGet: {scope: ScopeStatsRead, handle: s.handleModels}})
	})
}

func (s *StatsAPI) handleSummary(w http.ResponseWriter, r *http.Request) {
	var summary StatsSummary
	var err error
	summary.Corpora, summary.CorpusLength, err = s.store.Totals(r.Context())
	if err != nil {
		s.logger.Error("Failed to query corpus totals", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Database query failed")
		return
	}
	summary.CachedModels = s.cache.Snapshot()
	respondWithJSON(w, http.StatusOK, summary)
}

func (s *StatsAPI) handleModels(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.cache.Snapshot())
}

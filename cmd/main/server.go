package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
)

type Server struct {
	cm        *ConfigManager
	db        *sql.DB
	logger    *slog.Logger
	store     *CorpusStore
	keys      *KeyStore
	cache     *ModelCache
	authAPI   *AuthAPI
	markovAPI *MarkovAPI
	statsAPI  *StatsAPI
	serverAPI *ServerAPI
	apiMux    *http.ServeMux
}

func NewServer(cm *ConfigManager, logger *slog.Logger, db *sql.DB, actionChan chan string) (*Server, error) {
	config := cm.Get()

	store, err := NewCorpusStore(db, logger)
	if err != nil {
		return nil, fmt.Errorf("error creating corpus store: %w", err)
	}
	keys, err := NewKeyStore(db, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("error creating key store: %w", err)
	}
	cache := NewModelCache(store, config.Model.CacheSize, logger)

	// api initialization
	authAPI := NewAuthAPI(keys, logger)
	markovAPI := NewMarkovAPI(store, cache, cm, logger)
	statsAPI := NewStatsAPI(store, cache, logger)
	serverAPI := NewServerAPI(cm, cache, actionChan, logger)

	server := &Server{
		cm:        cm,
		db:        db,
		logger:    logger,
		store:     store,
		keys:      keys,
		cache:     cache,
		authAPI:   authAPI,
		markovAPI: markovAPI,
		statsAPI:  statsAPI,
		serverAPI: serverAPI,
		apiMux:    http.NewServeMux(),
	}

	apiMux := http.NewServeMux()

	server.authAPI.RegisterRoutes(apiMux)
	server.markovAPI.RegisterRoutes(apiMux)
	server.statsAPI.RegisterRoutes(apiMux)
	server.serverAPI.RegisterRoutes(apiMux)

	// Make sure api functions must pass through authentication first
	authedAPI := server.authAPI.Authenticate(apiMux)
	// ... except for the health check, which is unauthed so something like docker can use it
	server.apiMux.HandleFunc("/api/health", server.serverAPI.handleHealthCheck)
	server.apiMux.Handle("/api/", authedAPI)

	return server, nil
}

// Close releases the prepared statements held by the server.
func (s *Server) Close() {
	s.store.Close()
	s.keys.Close()
}

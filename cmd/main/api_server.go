package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

const (
	actionShutdown = "shutdown"
	actionRestart  = "restart"
)

// ServerAPI holds the dependencies for the main application API handlers.
type ServerAPI struct {
	cm         *ConfigManager
	cache      *ModelCache
	actionChan chan string
	logger     *slog.Logger
}

// VersionInfo defines the structure for build/version information.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// NewServerAPI creates a new instance of the ServerAPI.
func NewServerAPI(cm *ConfigManager, cache *ModelCache, actionChan chan string, logger *slog.Logger) *ServerAPI {
	return &ServerAPI{
		cm:         cm,
		cache:      cache,
		actionChan: actionChan,
		logger:     logger,
	}
}

// RegisterRoutes sets up the routing for all /api/server endpoints.
func (a *ServerAPI) RegisterRoutes(mux *http.ServeMux) {
	handle := func(path string, routes map[string]route) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			serveRoutes(w, r, routes)
		})
	}
	handle("/api/server/config", map[string]route{
		http.MethodGet: {scope: ScopeServerConfig, handle: a.getConfig},
		http.MethodPut: {scope: ScopeServerConfig, handle: a.putConfig},
	})
	handle("/api/server/version", map[string]route{
		http.MethodGet: {scope: ScopeStatsRead, handle: a.handleVersion},
	})
	handle("/api/server/shutdown", map[string]route{
		http.MethodPost: {scope: ScopeServerControl, handle: a.handleShutdown},
	})
	handle("/api/server/restart", map[string]route{
		http.MethodPost: {scope: ScopeServerControl, handle: a.handleRestart},
	})
}

// handleHealthCheck is served without authentication.
func (a *ServerAPI) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *ServerAPI) getConfig(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, a.cm.Get())
}

// putConfig replaces the configuration. Model settings apply at once; server
// settings need a restart.
func (a *ServerAPI) putConfig(w http.ResponseWriter, r *http.Request) {
	var newConfig Config
	if err := json.NewDecoder(r.Body).Decode(&newConfig); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	if err := newConfig.Validate(); err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid configuration: %v", err))
		return
	}

	if err := a.cm.Update(newConfig); err != nil {
		a.logger.Error("Failed to save configuration", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save configuration to disk: %v", err))
		return
	}
	a.cache.Resize(newConfig.Model.CacheSize)

	a.logger.Info("Configuration updated via API. Server settings require a restart.")
	respondWithJSON(w, http.StatusOK, a.cm.Get())
}

// handleVersion returns the application's build information.
func (a *ServerAPI) handleVersion(w http.ResponseWriter, r *http.Request) {
	info := VersionInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
	}
	respondWithJSON(w, http.StatusOK, info)
}

// handleShutdown initiates a graceful shutdown of the server.
func (a *ServerAPI) handleShutdown(w http.ResponseWriter, r *http.Request) {
	a.handleAction(w, r, actionShutdown, "Server is shutting down...")
}

// handleRestart initiates a graceful restart of the server.
func (a *ServerAPI) handleRestart(w http.ResponseWriter, r *http.Request) {
	a.handleAction(w, r, actionRestart, "Server is restarting...")
}

func (a *ServerAPI) handleAction(w http.ResponseWriter, r *http.Request, action, message string) {
	a.logger.Warn("Server action initiated via API", "action", action)
	respondWithJSON(w, http.StatusAccepted, map[string]string{"message": message})

	go func() {
		a.actionChan <- action
	}()
}

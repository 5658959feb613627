package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// authHeader carries the raw API key on every authenticated request.
const authHeader = "charkov-auth"

type grantKey struct{}

func withGrant(ctx context.Context, g grant) context.Context {
	return context.WithValue(ctx, grantKey{}, g)
}

// grantFromContext returns the caller's grant, or an empty one outside an
// authenticated request.
func grantFromContext(ctx context.Context) grant {
	g, _ := ctx.Value(grantKey{}).(grant)
	return g
}

// AuthAPI authenticates requests and manages API keys.
type AuthAPI struct {
	keys   *KeyStore
	logger *slog.Logger
}

func NewAuthAPI(keys *KeyStore, logger *slog.Logger) *AuthAPI {
	return &AuthAPI{keys: keys, logger: logger}
}

func (a *AuthAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		serveRoutes(w, r, map[string]route{
			// Any authenticated caller may inspect its own scopes.
			http.MethodGet: {scope: "", handle: a.handleMe},
		})
	})
	mux.HandleFunc("/api/auth/keys", func(w http.ResponseWriter, r *http.Request) {
		serveRoutes(w, r, map[string]route{
			http.MethodGet:  {scope: ScopeAuthManage, handle: a.listKeys},
			http.MethodPost: {scope: ScopeAuthManage, handle: a.createKey},
		})
	})
	mux.HandleFunc("/api/auth/keys/", func(w http.ResponseWriter, r *http.Request) {
		serveRoutes(w, r, map[string]route{
			http.MethodDelete: {scope: ScopeAuthManage, handle: a.deleteKey},
		})
	})
}

// CreateKeyRequest is the body of POST /api/auth/keys.
type CreateKeyRequest struct {
	Label  string   `json:"label"`
	Scopes []string `json:"scopes"`
}

// CreateKeyResponse carries the new key. RawKey is never returned again.
type CreateKeyResponse struct {
	APIKey
	RawKey string `json:"raw_key"`
}

// Authenticate resolves the charkov-auth header to a grant. While no keys
// exist every caller holds every scope, so the first key can be minted.
func (a *AuthAPI) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g, err := a.grantFor(r)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			respondWithError(w, http.StatusUnauthorized, "Missing or unknown API key")
			return
		case err != nil:
			a.logger.Error("Failed to authenticate request", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Authentication failed")
			return
		}
		next.ServeHTTP(w, r.WithContext(withGrant(r.Context(), g)))
	})
}

func (a *AuthAPI) grantFor(r *http.Request) (grant, error) {
	n, err := a.keys.Count(r.Context())
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return newGrant([]Scope{ScopeAll}), nil
	}
	rawKey := r.Header.Get(authHeader)
	if rawKey == "" {
		return nil, sql.ErrNoRows
	}
	return a.keys.Lookup(r.Context(), rawKey)
}

func (a *AuthAPI) handleMe(w http.ResponseWriter, r *http.Request) {
	g := grantFromContext(r.Context())
	scopes := make([]Scope, 0, len(g))
	for s := range g {
		scopes = append(scopes, s)
	}
	slices.Sort(scopes)
	respondWithJSON(w, http.StatusOK, map[string][]Scope{"scopes": scopes})
}

func (a *AuthAPI) listKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := a.keys.List(r.Context())
	if err != nil {
		a.logger.Error("Failed to list API keys", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Database query failed")
		return
	}
	respondWithJSON(w, http.StatusOK, keys)
}

func (a *AuthAPI) createKey(w http.ResponseWriter, r *http.Request) {
	var req CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}
	scopes, err := parseScopes(req.Scopes)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, rawKey, err := a.keys.Create(r.Context(), req.Label, scopes)
	if err != nil {
		a.logger.Error("Failed to create API key", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to save new key")
		return
	}
	respondWithJSON(w, http.StatusCreated, CreateKeyResponse{APIKey: key, RawKey: rawKey})
}

func (a *AuthAPI) deleteKey(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/auth/keys/"), "/"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid key ID format in URL")
		return
	}

	err = a.keys.Delete(r.Context(), id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		respondWithError(w, http.StatusNotFound, "Key not found")
	case errors.Is(err, errLastMasterKey):
		respondWithError(w, http.StatusBadRequest, "Cannot delete the last master key")
	case err != nil:
		a.logger.Error("Failed to delete API key", "key_id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to delete key")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
)

// route is one method of an API resource and the scope it needs.
type route struct {
	scope  Scope
	handle http.HandlerFunc
}

// serveRoutes dispatches r to the route registered for its method, answering
// 405 with an Allow header for any other method and 403 when the caller lacks
// the route's scope.
func serveRoutes(w http.ResponseWriter, r *http.Request, routes map[string]route) {
	rt, ok := routes[r.Method]
	if !ok {
		methods := make([]string, 0, len(routes))
		for method := range routes {
			methods = append(methods, method)
		}
		slices.Sort(methods)
		w.Header().Set("Allow", strings.Join(methods, ", "))
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !requireScope(w, r, rt.scope) {
		return
	}
	rt.handle(w, r)
}

// requireScope reports whether the caller holds scope, answering 403 if not.
// An empty scope only requires the request to be authenticated.
func requireScope(w http.ResponseWriter, r *http.Request, scope Scope) bool {
	if scope == "" || grantFromContext(r.Context()).allows(scope) {
		return true
	}
	respondWithError(w, http.StatusForbidden, fmt.Sprintf("Forbidden: requires '%s' scope", scope))
	return false
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

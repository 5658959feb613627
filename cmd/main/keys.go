package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

const keySchema = `
CREATE TABLE IF NOT EXISTS api_keys (
    key_id        INTEGER PRIMARY KEY,
    key_hash      TEXT    NOT NULL UNIQUE,
    scopes        TEXT    NOT NULL,
    label         TEXT    NOT NULL DEFAULT '',
    created_at    INTEGER NOT NULL
);
`

// Scope names one permission an API key can hold.
type Scope string

const (
	ScopeAll           Scope = "*"
	ScopeCorpusRead    Scope = "corpus:read"
	ScopeCorpusWrite   Scope = "corpus:write"
	ScopeModelQuery    Scope = "model:query"
	ScopeAuthManage    Scope = "auth:manage"
	ScopeServerConfig  Scope = "server:config"
	ScopeServerControl Scope = "server:control"
	ScopeStatsRead     Scope = "stats:read"
)

var allScopes = []Scope{
	ScopeAll,
	ScopeCorpusRead,
	ScopeCorpusWrite,
	ScopeModelQuery,
	ScopeAuthManage,
	ScopeServerConfig,
	ScopeServerControl,
	ScopeStatsRead,
}

var errLastMasterKey = errors.New("cannot remove the last key with the '*' scope")

// parseScopes validates scope names against allScopes.
func parseScopes(names []string) ([]Scope, error) {
	scopes := make([]Scope, 0, len(names))
	for _, name := range names {
		if !slices.Contains(allScopes, Scope(name)) {
			return nil, fmt.Errorf("unknown scope '%s'", name)
		}
		scopes = append(scopes, Scope(name))
	}
	return scopes, nil
}

func joinScopes(scopes []Scope) string {
	names := make([]string, len(scopes))
	for i, s := range scopes {
		names[i] = string(s)
	}
	return strings.Join(names, " ")
}

func splitScopes(s string) []Scope {
	var scopes []Scope
	for _, name := range strings.Fields(s) {
		scopes = append(scopes, Scope(name))
	}
	return scopes
}

// grant is the set of scopes held by the caller of a request.
type grant map[Scope]struct{}

func newGrant(scopes []Scope) grant {
	g := make(grant, len(scopes))
	for _, s := range scopes {
		g[s] = struct{}{}
	}
	return g
}

func (g grant) allows(scope Scope) bool {
	if _, ok := g[ScopeAll]; ok {
		return true
	}
	_, ok := g[scope]
	return ok
}

// APIKey describes a stored key. The raw key is only ever shown once, when it
// is created.
type APIKey struct {
	Id        int       `json:"id"`
	Label     string    `json:"label"`
	Scopes    []Scope   `json:"scopes"`
	CreatedAt time.Time `json:"created_at"`
}

// KeyStore keeps SHA-256 hashes of API keys in SQLite.
type KeyStore struct {
	stmtCount        *sql.Stmt
	stmtCountMasters *sql.Stmt
	stmtLookup       *sql.Stmt
	stmtScopes       *sql.Stmt
	stmtInsert       *sql.Stmt
	stmtList         *sql.Stmt
	stmtDelete       *sql.Stmt
	logger           *slog.Logger
}

func setupAuthSchema(db *sql.DB) error {
	if _, err := db.Exec(keySchema); err != nil {
		return fmt.Errorf("could not create key schema: %w", err)
	}
	return nil
}

// NewKeyStore prepares all statements used by the store.
func NewKeyStore(db *sql.DB, logger *slog.Logger) (*KeyStore, error) {
	s := &KeyStore{logger: logger}
	statements := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&s.stmtCount, `SELECT COUNT(*) FROM api_keys;`},
		{&s.stmtCountMasters, `SELECT COUNT(*) FROM api_keys WHERE instr(' ' || scopes || ' ', ' * ') > 0;`},
		{&s.stmtLookup, `SELECT scopes FROM api_keys WHERE key_hash = ?;`},
		{&s.stmtScopes, `SELECT scopes FROM api_keys WHERE key_id = ?;`},
		// The first key always gets every scope so the API cannot be locked.
		{&s.stmtInsert, `INSERT INTO api_keys (key_hash, scopes, label, created_at)
SELECT ?, CASE WHEN EXISTS (SELECT 1 FROM api_keys) THEN ? ELSE '*' END, ?, ?
RETURNING key_id, scopes;`},
		{&s.stmtList, `SELECT key_id, label, scopes, created_at FROM api_keys ORDER BY key_id;`},
		{&s.stmtDelete, `DELETE FROM api_keys WHERE key_id = ?;`},
	}
	for _, st := range statements {
		stmt, err := db.Prepare(st.query)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("could not prepare key statement: %w", err)
		}
		*st.dst = stmt
	}
	return s, nil
}

// Close releases all prepared statements held by the store.
func (s *KeyStore) Close() {
	for _, stmt := range []*sql.Stmt{s.stmtCount, s.stmtCountMasters, s.stmtLookup, s.stmtScopes, s.stmtInsert, s.stmtList, s.stmtDelete} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
}

// Count returns the number of stored keys.
func (s *KeyStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.stmtCount.QueryRowContext(ctx).Scan(&n)
	return n, err
}

// Lookup returns the scopes of rawKey, or sql.ErrNoRows if it is not stored.
func (s *KeyStore) Lookup(ctx context.Context, rawKey string) (grant, error) {
	var scopes string
	if err := s.stmtLookup.QueryRowContext(ctx, hashAPIKey(rawKey)).Scan(&scopes); err != nil {
		return nil, err
	}
	return newGrant(splitScopes(scopes)), nil
}

// Create stores a new key and returns it along with the raw key.
func (s *KeyStore) Create(ctx context.Context, label string, scopes []Scope) (APIKey, string, error) {
	rawKey, err := generateAPIKey()
	if err != nil {
		return APIKey{}, "", err
	}

	key := APIKey{Label: label, CreatedAt: time.Now().UTC().Truncate(time.Second)}
	var stored string
	err = s.stmtInsert.QueryRowContext(ctx, hashAPIKey(rawKey), joinScopes(scopes), label, key.CreatedAt.Unix()).Scan(&key.Id, &stored)
	if err != nil {
		return APIKey{}, "", fmt.Errorf("could not store key: %w", err)
	}
	key.Scopes = splitScopes(stored)

	s.logger.InfoContext(ctx, "API key created", slog.Int("key_id", key.Id), slog.String("scopes", stored))
	return key, rawKey, nil
}

// List returns every stored key, oldest first.
func (s *KeyStore) List(ctx context.Context) ([]APIKey, error) {
	rows, err := s.stmtList.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	keys := make([]APIKey, 0)
	for rows.Next() {
		var key APIKey
		var scopes string
		var created int64
		if err = rows.Scan(&key.Id, &key.Label, &scopes, &created); err != nil {
			return nil, err
		}
		key.Scopes = splitScopes(scopes)
		key.CreatedAt = time.Unix(created, 0).UTC()
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Delete removes the key with the given id. It returns sql.ErrNoRows if there
// is none and errLastMasterKey if it is the only key holding every scope.
func (s *KeyStore) Delete(ctx context.Context, id int) error {
	var scopes string
	if err := s.stmtScopes.QueryRowContext(ctx, id).Scan(&scopes); err != nil {
		return err
	}
	if slices.Contains(splitScopes(scopes), ScopeAll) {
		var masters int
		if err := s.stmtCountMasters.QueryRowContext(ctx).Scan(&masters); err != nil {
			return err
		}
		if masters == 1 {
			return errLastMasterKey
		}
	}
	if _, err := s.stmtDelete.ExecContext(ctx, id); err != nil {
		return fmt.Errorf("could not remove key %d: %w", id, err)
	}
	s.logger.InfoContext(ctx, "API key removed", slog.Int("key_id", id))
	return nil
}

func generateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return "charkov_" + hex.EncodeToString(buf), nil
}

func hashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

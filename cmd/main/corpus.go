package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

const corpusSchema = `
CREATE TABLE IF NOT EXISTS corpora (
    corpus_id     INTEGER PRIMARY KEY,
    corpus_name   TEXT    NOT NULL UNIQUE,
    body          TEXT    NOT NULL,
    created_at    INTEGER NOT NULL
);
`

// CorpusInfo holds the metadata of a stored training text.
type CorpusInfo struct {
	Id        int       `json:"id"`
	Name      string    `json:"name"`
	Length    int       `json:"length"` // in characters
	CreatedAt time.Time `json:"created_at"`
}

// CorpusStore keeps named training texts in SQLite. Models are never stored;
// they are rebuilt from a corpus when needed.
type CorpusStore struct {
	db            *sql.DB
	stmtPut       *sql.Stmt
	stmtGetBody   *sql.Stmt
	stmtGetInfo   *sql.Stmt
	stmtList      *sql.Stmt
	stmtDelete    *sql.Stmt
	stmtTotalSize *sql.Stmt
	logger        *slog.Logger
}

func setupCorpusSchema(db *sql.DB) error {
	if _, err := db.Exec(corpusSchema); err != nil {
		return fmt.Errorf("could not create corpus schema: %w", err)
	}
	return nil
}

// NewCorpusStore prepares all statements used by the store.
func NewCorpusStore(db *sql.DB, logger *slog.Logger) (*CorpusStore, error) {
	stmtPut, err := db.Prepare(`INSERT INTO corpora (corpus_name, body, created_at) VALUES (?, ?, ?)
ON CONFLICT(corpus_name) DO UPDATE SET body = excluded.body, created_at = excluded.created_at
RETURNING corpus_id, length(body), created_at;`)
	if err != nil {
		return nil, err
	}

	stmtGetBody, err := db.Prepare(`SELECT body FROM corpora WHERE corpus_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtGetInfo, err := db.Prepare(`SELECT corpus_id, length(body), created_at FROM corpora WHERE corpus_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtList, err := db.Prepare(`SELECT corpus_id, corpus_name, length(body), created_at FROM corpora ORDER BY corpus_name;`)
	if err != nil {
		return nil, err
	}

	stmtDelete, err := db.Prepare(`DELETE FROM corpora WHERE corpus_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtTotalSize, err := db.Prepare(`SELECT COUNT(*), coalesce(SUM(length(body)), 0) FROM corpora;`)
	if err != nil {
		return nil, err
	}

	return &CorpusStore{
		db:            db,
		stmtPut:       stmtPut,
		stmtGetBody:   stmtGetBody,
		stmtGetInfo:   stmtGetInfo,
		stmtList:      stmtList,
		stmtDelete:    stmtDelete,
		stmtTotalSize: stmtTotalSize,
		logger:        logger,
	}, nil
}

// Close releases all prepared statements held by the store.
func (s *CorpusStore) Close() {
	_ = s.stmtPut.Close()
	_ = s.stmtGetBody.Close()
	_ = s.stmtGetInfo.Close()
	_ = s.stmtList.Close()
	_ = s.stmtDelete.Close()
	_ = s.stmtTotalSize.Close()
}

// Put stores text under name, replacing any existing corpus with that name.
func (s *CorpusStore) Put(ctx context.Context, name, text string) (CorpusInfo, error) {
	info := CorpusInfo{Name: name}
	var created int64
	err := s.stmtPut.QueryRowContext(ctx, name, text, time.Now().Unix()).Scan(&info.Id, &info.Length, &created)
	if err != nil {
		return CorpusInfo{}, fmt.Errorf("could not store corpus '%s': %w", name, err)
	}
	info.CreatedAt = time.Unix(created, 0).UTC()

	s.logger.InfoContext(ctx, "Corpus stored",
		slog.String("corpus_name", name),
		slog.Int("corpus_id", info.Id),
		slog.Int("length", info.Length),
	)
	return info, nil
}

// Text returns the training text stored under name. It returns sql.ErrNoRows
// if there is none.
func (s *CorpusStore) Text(ctx context.Context, name string) (string, error) {
	var body string
	if err := s.stmtGetBody.QueryRowContext(ctx, name).Scan(&body); err != nil {
		return "", err
	}
	return body, nil
}

// Info returns the metadata of the corpus stored under name. It returns
// sql.ErrNoRows if there is none.
func (s *CorpusStore) Info(ctx context.Context, name string) (CorpusInfo, error) {
	info := CorpusInfo{Name: name}
	var created int64
	if err := s.stmtGetInfo.QueryRowContext(ctx, name).Scan(&info.Id, &info.Length, &created); err != nil {
		return CorpusInfo{}, err
	}
	info.CreatedAt = time.Unix(created, 0).UTC()
	return info, nil
}

// List returns the metadata of every stored corpus, sorted by name.
func (s *CorpusStore) List(ctx context.Context) ([]CorpusInfo, error) {
	rows, err := s.stmtList.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	corpora := make([]CorpusInfo, 0)
	for rows.Next() {
		var info CorpusInfo
		var created int64
		if err = rows.Scan(&info.Id, &info.Name, &info.Length, &created); err != nil {
			return nil, err
		}
		info.CreatedAt = time.Unix(created, 0).UTC()
		corpora = append(corpora, info)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return corpora, nil
}

// Names returns the names of every stored corpus.
func (s *CorpusStore) Names(ctx context.Context) ([]string, error) {
	corpora, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(corpora))
	for i, c := range corpora {
		names[i] = c.Name
	}
	return names, nil
}

// Delete removes the corpus stored under name and reports whether it existed.
func (s *CorpusStore) Delete(ctx context.Context, name string) (bool, error) {
	res, err := s.stmtDelete.ExecContext(ctx, name)
	if err != nil {
		return false, fmt.Errorf("could not remove corpus '%s': %w", name, err)
	}
	rowsAffected, _ := res.RowsAffected()
	if rowsAffected > 0 {
		s.logger.InfoContext(ctx, "Corpus removed", slog.String("corpus_name", name))
	}
	return rowsAffected > 0, nil
}

// Totals returns the number of stored corpora and their combined length.
func (s *CorpusStore) Totals(ctx context.Context) (count, length int, err error) {
	err = s.stmtTotalSize.QueryRowContext(ctx).Scan(&count, &length)
	return count, length, err
}

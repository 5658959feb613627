package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/CTAG07/charkov/pkg/markov"
)

type modelKey struct {
	corpus string
	order  int
}

// CachedModel describes one entry of the model cache.
type CachedModel struct {
	Corpus string            `json:"corpus"`
	Order  int               `json:"order"`
	Stats  markov.ModelStats `json:"stats"`
}

// ModelCache builds models from stored corpora on demand and keeps the most
// recently used ones in memory.
type ModelCache struct {
	store  *CorpusStore
	logger *slog.Logger

	mu      sync.Mutex
	size    int
	models  map[modelKey]*markov.Model
	recency []modelKey     // least recently used first
	epochs  map[string]int // bumped by Invalidate
}

// NewModelCache creates a cache holding at most size models.
func NewModelCache(store *CorpusStore, size int, logger *slog.Logger) *ModelCache {
	if size < 1 {
		size = 1
	}
	return &ModelCache{
		store:  store,
		logger: logger,
		size:   size,
		models: make(map[modelKey]*markov.Model),
		epochs: make(map[string]int),
	}
}

// Get returns the model of the given order for a stored corpus, building it
// if it is not cached. Errors from the store (including sql.ErrNoRows) are
// returned unwrapped so callers can inspect them.
func (c *ModelCache) Get(ctx context.Context, corpus string, order int) (*markov.Model, error) {
	key := modelKey{corpus: corpus, order: order}

	c.mu.Lock()
	if m, ok := c.models[key]; ok {
		c.touch(key)
		c.mu.Unlock()
		return m, nil
	}
	epoch := c.epochs[corpus]
	c.mu.Unlock()

	text, err := c.store.Text(ctx, corpus)
	if err != nil {
		return nil, err
	}
	m, err := markov.NewWithLogger(text, order, c.logger.With(slog.String("corpus_name", corpus)))
	if err != nil {
		return nil, fmt.Errorf("could not build model for corpus '%s': %w", corpus, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.models[key]; ok {
		// Another request built it first.
		c.touch(key)
		return existing, nil
	}
	if c.epochs[corpus] != epoch {
		// The corpus changed while the model was being built.
		return m, nil
	}
	c.models[key] = m
	c.recency = append(c.recency, key)
	for len(c.recency) > c.size {
		evicted := c.recency[0]
		c.recency = c.recency[1:]
		delete(c.models, evicted)
		c.logger.DebugContext(ctx, "Model evicted from cache",
			slog.String("corpus_name", evicted.corpus),
			slog.Int("order", evicted.order),
		)
	}
	return m, nil
}

// Invalidate drops every cached model built from corpus.
func (c *ModelCache) Invalidate(corpus string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epochs[corpus]++
	kept := c.recency[:0]
	for _, key := range c.recency {
		if key.corpus == corpus {
			delete(c.models, key)
			continue
		}
		kept = append(kept, key)
	}
	c.recency = kept
}

// Resize changes the maximum number of cached models, evicting the least
// recently used ones if needed.
func (c *ModelCache) Resize(size int) {
	if size < 1 {
		size = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.size = size
	for len(c.recency) > c.size {
		delete(c.models, c.recency[0])
		c.recency = c.recency[1:]
	}
}

// Snapshot lists the cached models from least to most recently used.
func (c *ModelCache) Snapshot() []CachedModel {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CachedModel, 0, len(c.recency))
	for _, key := range c.recency {
		out = append(out, CachedModel{
			Corpus: key.corpus,
			Order:  key.order,
			Stats:  c.models[key].Stats(),
		})
	}
	return out
}

// touch moves key to the most recently used end. The caller holds c.mu.
func (c *ModelCache) touch(key modelKey) {
	for i, k := range c.recency {
		if k == key {
			c.recency = append(c.recency[:i], c.recency[i+1:]...)
			break
		}
	}
	c.recency = append(c.recency, key)
}

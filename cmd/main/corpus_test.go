package main

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorpusStorePutAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	info, err := store.Put(ctx, "alpha", "héllo")
	require.NoError(t, err)
	assert.Equal(t, "alpha", info.Name)
	assert.Equal(t, 5, info.Length, "length is counted in characters")
	assert.False(t, info.CreatedAt.IsZero())

	text, err := store.Text(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "héllo", text)

	got, err := store.Info(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, info.Id, got.Id)
	assert.Equal(t, 5, got.Length)
}

func TestCorpusStoreReplace(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first, err := store.Put(ctx, "alpha", "abc")
	require.NoError(t, err)
	second, err := store.Put(ctx, "alpha", "abcdef")
	require.NoError(t, err)

	assert.Equal(t, first.Id, second.Id)
	assert.Equal(t, 6, second.Length)

	text, err := store.Text(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "abcdef", text)
}

func TestCorpusStoreMissing(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Text(ctx, "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	_, err = store.Info(ctx, "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	existed, err := store.Delete(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestCorpusStoreListDeleteAndTotals(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	corpora, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, corpora)

	for name, text := range map[string]string{"gamma": "ggg", "alpha": "a", "beta": "bb"} {
		_, err = store.Put(ctx, name, text)
		require.NoError(t, err)
	}

	names, err := store.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, names)

	count, length, err := store.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 6, length)

	existed, err := store.Delete(ctx, "beta")
	require.NoError(t, err)
	assert.True(t, existed)

	names, err = store.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "gamma"}, names)
}

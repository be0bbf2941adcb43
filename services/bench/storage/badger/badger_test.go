// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianBench/services/bench/harness"
)

// TestOpen verifies in-memory and persistent databases open and persist.
func TestOpen(t *testing.T) {
	t.Run("in memory", func(t *testing.T) {
		db, err := OpenInMemory()
		require.NoError(t, err)
		defer db.Close()

		assert.True(t, db.InMemory())
		assert.Empty(t, db.Path())
	})

	t.Run("path required", func(t *testing.T) {
		_, err := Open(Config{})
		assert.ErrorIs(t, err, ErrPathRequired)
	})

	t.Run("persistent", func(t *testing.T) {
		dir := t.TempDir()
		db, err := Open(DefaultConfig(dir))
		require.NoError(t, err)
		require.NoError(t, db.WithTxn(context.Background(), func(txn *badger.Txn) error {
			return txn.Set([]byte("k"), []byte("v"))
		}))
		require.NoError(t, db.Close())

		db, err = Open(DefaultConfig(dir))
		require.NoError(t, err)
		defer db.Close()
		require.NoError(t, db.WithReadTxn(context.Background(), func(txn *badger.Txn) error {
			item, err := txn.Get([]byte("k"))
			if err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				assert.Equal(t, "v", string(val))
				return nil
			})
		}))
	})
}

// TestWithTxn_Canceled verifies a canceled context never opens a transaction.
func TestWithTxn_Canceled(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err = db.WithTxn(ctx, func(*badger.Txn) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

// TestRunStore verifies runs round-trip and list newest first.
func TestRunStore(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	store := NewRunStore(db)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"first", "second", "third"} {
		require.NoError(t, store.Save(ctx, Run{
			ID:      id,
			Project: "demo",
			Time:    base.Add(time.Duration(i) * time.Hour),
			Records: []harness.Result{{
				Params: harness.BenchmarkParams{Benchmark: "example.com/bench.Suite.BenchmarkA"},
				Score:  float64(i + 1),
				Unit:   "ns/op",
			}},
		}))
	}

	t.Run("newest first", func(t *testing.T) {
		runs, err := store.List(ctx, 0)
		require.NoError(t, err)
		require.Len(t, runs, 3)
		assert.Equal(t, "third", runs[0].ID)
		assert.Equal(t, "first", runs[2].ID)
		assert.Equal(t, 3.0, runs[0].Records[0].Score)
		assert.True(t, runs[0].Time.Equal(base.Add(2*time.Hour)))
	})

	t.Run("limit", func(t *testing.T) {
		runs, err := store.List(ctx, 2)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "second", runs[1].ID)
	})

	t.Run("get", func(t *testing.T) {
		r, err := store.Get(ctx, "second")
		require.NoError(t, err)
		assert.Equal(t, "demo", r.Project)

		_, err = store.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrRunNotFound)
	})

	t.Run("id required", func(t *testing.T) {
		assert.Error(t, store.Save(ctx, Run{Time: base}))
	})
}

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
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/AleutianAI/AleutianBench/services/bench/harness"
)

const runPrefix = "run/"

// Run is one stored benchmark run.
type Run struct {
	ID         string            `json:"id"`
	Project    string            `json:"project,omitempty"`
	Version    string            `json:"version,omitempty"`
	Time       time.Time         `json:"time"`
	OS         string            `json:"os,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
	Records    []harness.Result  `json:"records"`
}

// RunStore reads and writes Run values.
//
// Thread Safety: Safe for concurrent use.
type RunStore struct {
	db *DB
}

// NewRunStore returns a store over db.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// runKey is "run/" + big-endian unix nanos + "/" + id.
func runKey(r Run) []byte {
	key := make([]byte, 0, len(runPrefix)+9+len(r.ID))
	key = append(key, runPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(r.Time.UnixNano()))
	key = append(key, '/')
	return append(key, r.ID...)
}

// Save stores r, replacing a run with the same id and time.
func (s *RunStore) Save(ctx context.Context, r Run) error {
	if r.ID == "" {
		return errors.New("run id is required")
	}
	value, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", r.ID, err)
	}
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(runKey(r), value)
	})
}

// List returns up to limit runs, newest first. A limit of 0 or less returns
// every run.
func (s *RunStore) List(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(runPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration seeks to the last key <= the seek key.
		seek := append([]byte(runPrefix), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(opts.Prefix); it.Next() {
			if limit > 0 && len(runs) >= limit {
				break
			}
			var r Run
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			}); err != nil {
				return fmt.Errorf("decode %q: %w", it.Item().Key(), err)
			}
			runs = append(runs, r)
		}
		return nil
	})
	return runs, err
}

// Get returns the run with the given id.
func (s *RunStore) Get(ctx context.Context, id string) (Run, error) {
	runs, err := s.List(ctx, 0)
	if err != nil {
		return Run{}, err
	}
	for _, r := range runs {
		if r.ID == id {
			return r, nil
		}
	}
	return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
}

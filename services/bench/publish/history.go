// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package publish

import (
	"context"
	"fmt"
	"io"

	"github.com/AleutianAI/AleutianBench/services/bench/storage/badger"
)

// RunOf converts b to a stored run.
func RunOf(b Bundle) badger.Run {
	return badger.Run{
		ID:         b.Metadata.RunID,
		Project:    b.Metadata.Project,
		Version:    b.Metadata.Version,
		Time:       b.Metadata.Time,
		OS:         b.Metadata.OS,
		Additional: b.Metadata.Additional,
		Records:    b.Records,
	}
}

// BundleOf is the inverse of RunOf.
func BundleOf(r badger.Run) Bundle {
	return Bundle{
		Metadata: Metadata{
			RunID:      r.ID,
			Project:    r.Project,
			Version:    r.Version,
			Time:       r.Time,
			OS:         r.OS,
			Additional: r.Additional,
		},
		Records: r.Records,
	}
}

// StoreWriter saves bundles to an open run store.
type StoreWriter struct {
	Store *badger.RunStore
}

// Write implements Writer.
func (w StoreWriter) Write(ctx context.Context, out io.Writer, b Bundle) error {
	if err := w.Store.Save(ctx, RunOf(b)); err != nil {
		return fmt.Errorf("save run %s: %w", b.Metadata.RunID, err)
	}
	fmt.Fprintf(out, "Stored run %s\n", b.Metadata.RunID)
	return nil
}

// BadgerFactory handles "badger:<dir>". Each write opens the history
// database at dir, saves the run and closes it.
func BadgerFactory() Factory {
	return PrefixFactory("badger:", func(dir string) (Writer, error) {
		if dir == "" {
			return nil, fmt.Errorf("%w: badger: needs a directory", ErrInvalidURI)
		}
		return WriterFunc(func(ctx context.Context, out io.Writer, b Bundle) error {
			db, err := badger.Open(badger.DefaultConfig(dir))
			if err != nil {
				return err
			}
			defer db.Close()
			return StoreWriter{Store: badger.NewRunStore(db)}.Write(ctx, out, b)
		}), nil
	})
}

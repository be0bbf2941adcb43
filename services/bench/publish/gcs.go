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
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// gcsTarget is a parsed gs://bucket/prefix URI.
type gcsTarget struct {
	bucket string
	prefix string
	opts   []option.ClientOption
}

func parseGCS(uri string, opts []option.ClientOption) (*gcsTarget, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: want gs://bucket/prefix", ErrInvalidURI)
	}
	return &gcsTarget{
		bucket: u.Host,
		prefix: strings.Trim(u.Path, "/"),
		opts:   opts,
	}, nil
}

// object returns "<prefix>/<run id>.json".
func (t *gcsTarget) object(m Metadata) string {
	return path.Join(t.prefix, m.RunID+".json")
}

func (t *gcsTarget) Write(ctx context.Context, out io.Writer, b Bundle) error {
	data, err := EncodeRecords(b)
	if err != nil {
		return err
	}

	client, err := storage.NewClient(ctx, t.opts...)
	if err != nil {
		return fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	defer client.Close()

	name := t.object(b.Metadata)
	writer := client.Bucket(t.bucket).Object(name).NewWriter(ctx)
	writer.ContentType = "application/json"
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to copy results to GCS object %s: %w", name, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %s: %w", name, err)
	}
	fmt.Fprintf(out, "Successfully uploaded results to gs://%s/%s\n", t.bucket, name)
	return nil
}

// GCSFactory handles "gs://bucket/prefix". opts are passed to
// storage.NewClient; with none the client uses application default
// credentials.
func GCSFactory(opts ...option.ClientOption) Factory {
	return FactoryFunc(func(uri string) (Writer, bool, error) {
		if !strings.HasPrefix(uri, "gs://") {
			return nil, false, nil
		}
		t, err := parseGCS(uri, opts)
		if err != nil {
			return nil, true, err
		}
		return t, true, nil
	})
}

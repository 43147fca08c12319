// Package storage defines the whole-document store used for the crawl
// database and the daily trending cache. Backends live in subpackages.
//
// Documents are read and written whole. Put replaces the stored bytes
// outright and concurrent writers are last-writer-wins: callers that
// read-modify-write must serialize among themselves.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get when key holds no document.
	ErrNotFound = errors.New("document not found")
	// ErrCorrupt is returned by GetJSON when the stored bytes do not decode.
	ErrCorrupt = errors.New("document corrupt")
)

// DocumentStore reads and writes whole documents by key.
type DocumentStore interface {
	// Get returns the document stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put replaces the document stored under key.
	Put(ctx context.Context, key string, data []byte) error
}

// GetJSON loads key and decodes it into out.
func GetJSON(ctx context.Context, store DocumentStore, key string, out any) error {
	data, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w: %w", key, ErrCorrupt, err)
	}
	return nil
}

// PutJSON encodes v and stores it under key.
func PutJSON(ctx context.Context, store DocumentStore, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return store.Put(ctx, key, data)
}

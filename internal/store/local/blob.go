// Package local persists each user's months as one JSON document on disk.
// It backs the session when no remote store is configured.
package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"budget/internal/core"
)

const documentVersion = 1

// Document is the serialized month collection of one user.
type Document struct {
	Version int          `json:"version"`
	UserID  string       `json:"user_id"`
	Months  []core.Month `json:"months"`
}

// BlobStore reads and writes documents wholesale.
type BlobStore struct {
	dir string
	mu  sync.Mutex
}

func NewBlobStore(dir string) (*BlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &BlobStore{dir: dir}, nil
}

func (b *BlobStore) path(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return filepath.Join(b.dir, hex.EncodeToString(sum[:16])+".json")
}

// Read returns the user's document; a missing blob yields an empty one.
func (b *BlobStore) Read(ctx context.Context, userID string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readLocked(userID)
}

func (b *BlobStore) readLocked(userID string) (Document, error) {
	raw, err := os.ReadFile(b.path(userID))
	if errors.Is(err, os.ErrNotExist) {
		return Document{Version: documentVersion, UserID: userID, Months: []core.Month{}}, nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("read blob: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("decode blob: %w", err)
	}
	if doc.UserID != userID {
		return Document{}, fmt.Errorf("blob owner mismatch for %s", userID)
	}
	return doc, nil
}

// Write replaces the user's document atomically.
func (b *BlobStore) Write(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writeLocked(doc)
}

func (b *BlobStore) writeLocked(doc Document) error {
	doc.Version = documentVersion
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode blob: %w", err)
	}
	tmp, err := os.CreateTemp(b.dir, ".blob-*")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path(doc.UserID)); err != nil {
		return fmt.Errorf("replace blob: %w", err)
	}
	return nil
}

// Update applies fn to the user's document under the store lock.
func (b *BlobStore) Update(ctx context.Context, userID string, fn func(*Document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, err := b.readLocked(userID)
	if err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		return err
	}
	return b.writeLocked(doc)
}

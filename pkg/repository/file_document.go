package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/dskvich/brahmos-bot/pkg/domain"
)

type fileDocument struct {
	path string
}

// NewFileDocument keeps the document in a pretty-printed JSON file at path.
func NewFileDocument(path string) *fileDocument {
	return &fileDocument{path: path}
}

func (d *fileDocument) Name() string { return filepath.Base(d.path) }

func (d *fileDocument) Load(_ context.Context, v any) error {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("reading %s: %w", d.path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return domain.ErrNotFound
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", d.path, err)
	}

	return nil
}

// Save replaces the file atomically: readers see either the old or the new document.
func (d *fileDocument) Save(_ context.Context, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", d.path, err)
	}

	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(d.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", d.path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, d.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", d.path, err)
	}

	return nil
}

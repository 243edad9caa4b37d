package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FavoritesKey - entry of the local document that holds the favorited ids.
const FavoritesKey = "favorites"

type FavoritesRepository interface {
	Load(ctx context.Context) ([]string, error)
	Save(ctx context.Context, ids []string) error
}

type fileFavorites struct {
	mu   sync.Mutex
	path string
}

// NewFavoritesRepository - favorites kept in a local JSON key-value document.
// Keys other than FavoritesKey are preserved on every rewrite.
func NewFavoritesRepository(path string) FavoritesRepository {
	return &fileFavorites{
		path: path,
	}
}

func (that *fileFavorites) Load(_ context.Context) ([]string, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	document, err := that.readDocument()
	if err != nil {
		return nil, err
	}

	raw, ok := document[FavoritesKey]
	if !ok {
		return []string{}, nil
	}

	var ids []string
	if err = json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("failed to unmarshal favorites: %w", err)
	}

	if ids == nil {
		ids = []string{}
	}

	return ids, nil
}

func (that *fileFavorites) Save(_ context.Context, ids []string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	document, err := that.readDocument()
	if err != nil {
		return err
	}

	if ids == nil {
		ids = []string{}
	}

	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal favorites: %w", err)
	}
	document[FavoritesKey] = raw

	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal favorites document: %w", err)
	}

	return that.writeFile(data)
}

func (that *fileFavorites) readDocument() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(that.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]json.RawMessage), nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read favorites document: %w", err)
	}

	document := make(map[string]json.RawMessage)
	if len(data) == 0 {
		return document, nil
	}

	if err = json.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("failed to unmarshal favorites document: %w", err)
	}

	return document, nil
}

// writeFile - replaces the document through a rename so readers never see a partial write.
func (that *fileFavorites) writeFile(data []byte) error {
	dir := filepath.Dir(that.path)

	tmp, err := os.CreateTemp(dir, ".favorites-*")
	if err != nil {
		return fmt.Errorf("failed to create temp favorites file: %w", err)
	}

	defer os.Remove(tmp.Name()) //nolint:errcheck // already renamed on success

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write favorites: %w", err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close favorites file: %w", err)
	}

	if err = os.Rename(tmp.Name(), that.path); err != nil {
		return fmt.Errorf("failed to replace favorites file: %w", err)
	}

	return nil
}

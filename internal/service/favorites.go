package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/apperror"
)

type favoritesRepo interface {
	Load(ctx context.Context) ([]string, error)
	Save(ctx context.Context, ids []string) error
}

// FavoritesService - in-memory list of favorited ids, written through to the repository on every change.
type FavoritesService struct {
	logger *slog.Logger
	repo   favoritesRepo

	mu  sync.Mutex
	ids []string
}

func NewFavoritesService(logger *slog.Logger, repo favoritesRepo) *FavoritesService {
	return &FavoritesService{
		logger: logger.With("component", "favoritesService"),
		repo:   repo,
		ids:    []string{},
	}
}

// Load - reads the persisted list. On error the list stays empty.
func (that *FavoritesService) Load(ctx context.Context) error {
	ids, err := that.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load favorites: %w", err)
	}

	that.mu.Lock()
	that.ids = ids
	that.mu.Unlock()

	that.logger.Debug("favorites loaded", "count", len(ids))

	return nil
}

func (that *FavoritesService) List() []string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return slices.Clone(that.ids)
}

func (that *FavoritesService) IsFavorite(id string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return slices.Contains(that.ids, id)
}

func (that *FavoritesService) Add(ctx context.Context, id string) ([]string, error) {
	return that.update(ctx, id, func(ids []string) []string {
		if slices.Contains(ids, id) {
			return ids
		}

		return append(ids, id)
	})
}

func (that *FavoritesService) Remove(ctx context.Context, id string) ([]string, error) {
	return that.update(ctx, id, func(ids []string) []string {
		return slices.DeleteFunc(ids, func(existing string) bool { return existing == id })
	})
}

// Toggle - adds or removes id, reports whether it is a favorite afterwards.
func (that *FavoritesService) Toggle(ctx context.Context, id string) (bool, error) {
	ids, err := that.update(ctx, id, func(ids []string) []string {
		if slices.Contains(ids, id) {
			return slices.DeleteFunc(ids, func(existing string) bool { return existing == id })
		}

		return append(ids, id)
	})
	if err != nil {
		return false, err
	}

	return slices.Contains(ids, id), nil
}

// update - applies change to a copy and keeps it only once it is persisted.
func (that *FavoritesService) update(ctx context.Context, id string, change func([]string) []string) ([]string, error) {
	if id == "" {
		return nil, apperror.ErrInvalidFavorite
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	next := change(slices.Clone(that.ids))

	if err := that.repo.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save favorites: %w", err)
	}

	that.ids = next

	return slices.Clone(next), nil
}

// Package store persists canonical tools and answers tag and name queries
// over them.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/triage-ai/toolcanon/internal/model"
	"go.uber.org/zap"
)

const (
	defaultCacheTTL = 60 * time.Second

	// scanPageSize is the page size tag and name queries read the repository with.
	scanPageSize = 500
)

// ToolStore is the high-level store for canonical tools.
type ToolStore struct {
	repo   Repository
	cache  *ToolCache
	logger *zap.Logger
}

// Config configures a ToolStore.
type Config struct {
	Repository Repository
	CacheTTL   time.Duration
	Logger     *zap.Logger
}

// NewToolStore creates a ToolStore. A nil Repository uses memory.
func NewToolStore(cfg Config) *ToolStore {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	repo := cfg.Repository
	if repo == nil {
		repo = NewMemoryRepository()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ToolStore{
		repo:   repo,
		cache:  NewToolCache(ttl),
		logger: logger,
	}
}

// Save persists tool and returns its new ID.
func (s *ToolStore) Save(ctx context.Context, tool model.CanonicalTool, extra Tags) (string, error) {
	stored, err := FromCanonicalTool(tool, extra)
	if err != nil {
		return "", fmt.Errorf("Save: %w", err)
	}
	if err := s.repo.Put(ctx, stored); err != nil {
		return "", fmt.Errorf("Save: %w", err)
	}
	s.cache.Set(stored.ID, stored)
	return stored.ID, nil
}

// Get returns the stored tool, or nil if the ID is unknown.
func (s *ToolStore) Get(ctx context.Context, id string) (*StoredTool, error) {
	cacheResult := s.cache.Get(id)
	if cacheResult.Hit {
		if cacheResult.NeedsRefresh {
			go s.refreshInBackground(id)
		}
		return cacheResult.Tool, nil
	}

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	// Nil is cached too, as a negative entry.
	s.cache.Set(id, t)
	return t, nil
}

func (s *ToolStore) refreshInBackground(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		s.logger.Warn("background tool store refresh failed",
			zap.String("tool_id", id),
			zap.Error(err),
		)
		return
	}
	s.cache.Set(id, t)
}

// Delete removes a stored tool and reports whether it existed.
func (s *ToolStore) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("Delete: %w", err)
	}
	s.cache.Delete(id)
	return ok, nil
}

// All returns stored tools in insertion order.
func (s *ToolStore) All(ctx context.Context, limit, offset int) ([]*StoredTool, error) {
	tools, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("All: %w", err)
	}
	return tools, nil
}

func (s *ToolStore) Count(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return n, nil
}

// FindByCapability returns tools whose capability tags contain capability exactly.
func (s *ToolStore) FindByCapability(ctx context.Context, capability string) ([]*StoredTool, error) {
	return s.filter(ctx, "FindByCapability", func(t *StoredTool) bool {
		return contains(t.Capabilities, capability)
	})
}

func (s *ToolStore) FindBySecurityTag(ctx context.Context, tag string) ([]*StoredTool, error) {
	return s.filter(ctx, "FindBySecurityTag", func(t *StoredTool) bool {
		return contains(t.SecurityTags, tag)
	})
}

func (s *ToolStore) FindByPIITag(ctx context.Context, tag string) ([]*StoredTool, error) {
	return s.filter(ctx, "FindByPIITag", func(t *StoredTool) bool {
		return contains(t.PIITags, tag)
	})
}

// SearchByName is a case-insensitive substring match on the tool name.
func (s *ToolStore) SearchByName(ctx context.Context, query string) ([]*StoredTool, error) {
	q := strings.ToLower(query)
	return s.filter(ctx, "SearchByName", func(t *StoredTool) bool {
		return strings.Contains(strings.ToLower(t.Name), q)
	})
}

func (s *ToolStore) FindBySourceFormat(ctx context.Context, f model.Format) ([]*StoredTool, error) {
	tools, err := s.repo.ListBySourceFormat(ctx, string(f))
	if err != nil {
		return nil, fmt.Errorf("FindBySourceFormat: %w", err)
	}
	return tools, nil
}

// filter pages through every stored row and keeps the ones keep accepts.
func (s *ToolStore) filter(ctx context.Context, op string, keep func(*StoredTool) bool) ([]*StoredTool, error) {
	out := []*StoredTool{}
	for offset := 0; ; offset += scanPageSize {
		page, err := s.repo.List(ctx, scanPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		for _, t := range page {
			if keep(t) {
				out = append(out, t)
			}
		}
		if len(page) < scanPageSize {
			return out, nil
		}
	}
}

// Close releases the underlying repository.
func (s *ToolStore) Close() error {
	return s.repo.Close()
}

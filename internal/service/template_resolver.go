package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/pathlab-mcp-server/internal/domain"
)

// TemplateCache is the shared cache tier between memory and the database.
type TemplateCache interface {
	Get(ctx context.Context, id string) (*domain.TestTemplate, bool, error)
	Set(ctx context.Context, tmpl *domain.TestTemplate, ttl time.Duration) error
	Invalidate(ctx context.Context, id string) error
}

// ResolverStats counts lookups per tier.
type ResolverStats struct {
	MemoryHits int64 `json:"memory_hits"`
	RedisHits  int64 `json:"redis_hits"`
	Loads      int64 `json:"loads"`
	Errors     int64 `json:"errors"`
}

// TemplateResolverConfig configures the resolver tiers.
type TemplateResolverConfig struct {
	MemoryCacheTTL time.Duration
	RedisCacheTTL  time.Duration
	MaxMemorySize  int
}

type memoryEntry struct {
	template  *domain.TestTemplate
	expiresAt time.Time
}

// TemplateResolver reads templates through a memory LRU, then the shared
// cache, then the repository. Writes go to the repository and invalidate
// both cache tiers.
type TemplateResolver struct {
	repo        domain.TemplateRepository
	memoryCache *lru.Cache
	redisCache  TemplateCache

	memoryCacheTTL time.Duration
	redisCacheTTL  time.Duration

	logger  *logrus.Logger
	stats   ResolverStats
	statsMu sync.Mutex
}

// NewTemplateResolver creates a resolver. redisCache may be nil.
func NewTemplateResolver(config TemplateResolverConfig, repo domain.TemplateRepository, redisCache TemplateCache, logger *logrus.Logger) (*TemplateResolver, error) {
	if config.MemoryCacheTTL == 0 {
		config.MemoryCacheTTL = 5 * time.Minute
	}
	if config.RedisCacheTTL == 0 {
		config.RedisCacheTTL = time.Hour
	}
	if config.MaxMemorySize == 0 {
		config.MaxMemorySize = 256
	}

	memoryCache, err := lru.New(config.MaxMemorySize)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	return &TemplateResolver{
		repo:           repo,
		memoryCache:    memoryCache,
		redisCache:     redisCache,
		memoryCacheTTL: config.MemoryCacheTTL,
		redisCacheTTL:  config.RedisCacheTTL,
		logger:         logger,
	}, nil
}

// Resolve returns the template with the given ID.
func (r *TemplateResolver) Resolve(ctx context.Context, id string) (*domain.TestTemplate, error) {
	if v, ok := r.memoryCache.Get(id); ok {
		entry := v.(memoryEntry)
		if time.Now().Before(entry.expiresAt) {
			r.count(func(s *ResolverStats) { s.MemoryHits++ })
			return entry.template, nil
		}
		r.memoryCache.Remove(id)
	}

	if r.redisCache != nil {
		tmpl, found, err := r.redisCache.Get(ctx, id)
		if err != nil {
			r.logger.WithError(err).WithField("template_id", id).Warn("Template cache read failed, falling back to database")
		} else if found {
			r.count(func(s *ResolverStats) { s.RedisHits++ })
			r.remember(tmpl)
			return tmpl, nil
		}
	}

	tmpl, err := r.repo.GetByID(ctx, id)
	if err != nil {
		r.count(func(s *ResolverStats) { s.Errors++ })
		return nil, fmt.Errorf("failed to load template %s: %w", id, err)
	}
	r.count(func(s *ResolverStats) { s.Loads++ })

	r.remember(tmpl)
	if r.redisCache != nil {
		if err := r.redisCache.Set(ctx, tmpl, r.redisCacheTTL); err != nil {
			r.logger.WithError(err).WithField("template_id", id).Warn("Failed to cache template")
		}
	}

	r.logger.WithFields(logrus.Fields{
		"template_id": id,
		"name":        tmpl.Name,
	}).Debug("Loaded template from database")
	return tmpl, nil
}

// Create stores a new template.
func (r *TemplateResolver) Create(ctx context.Context, tmpl *domain.TestTemplate) error {
	if err := r.repo.Create(ctx, tmpl); err != nil {
		return err
	}
	r.remember(tmpl)
	return nil
}

// Update replaces a template and drops cached copies.
func (r *TemplateResolver) Update(ctx context.Context, tmpl *domain.TestTemplate) error {
	if err := r.repo.Update(ctx, tmpl); err != nil {
		return err
	}
	r.Invalidate(ctx, tmpl.ID)
	return nil
}

// Delete removes a template and drops cached copies.
func (r *TemplateResolver) Delete(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}
	r.Invalidate(ctx, id)
	return nil
}

// List returns a lab's templates straight from the repository.
func (r *TemplateResolver) List(ctx context.Context, labID string) ([]*domain.TestTemplate, error) {
	return r.repo.List(ctx, labID)
}

// Invalidate drops a template from both cache tiers.
func (r *TemplateResolver) Invalidate(ctx context.Context, id string) {
	r.memoryCache.Remove(id)
	if r.redisCache != nil {
		if err := r.redisCache.Invalidate(ctx, id); err != nil {
			r.logger.WithError(err).WithField("template_id", id).Warn("Failed to invalidate cached template")
		}
	}
}

// Stats returns a snapshot of resolver statistics.
func (r *TemplateResolver) Stats() ResolverStats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.stats
}

func (r *TemplateResolver) remember(tmpl *domain.TestTemplate) {
	r.memoryCache.Add(tmpl.ID, memoryEntry{template: tmpl, expiresAt: time.Now().Add(r.memoryCacheTTL)})
}

func (r *TemplateResolver) count(fn func(*ResolverStats)) {
	r.statsMu.Lock()
	fn(&r.stats)
	r.statsMu.Unlock()
}

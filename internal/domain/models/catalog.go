package models

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/searchchat/chat-api/internal/domain/llm"
)

// Catalog caches the upstream model list behind a TTL. The accessor refreshes
// on expiry; a failed refresh serves the stale list when one exists.
type Catalog struct {
	lister llm.ModelLister
	ttl    time.Duration
	log    zerolog.Logger

	mu        sync.Mutex
	cached    []llm.Model
	expiresAt time.Time
}

// NewCatalog constructs a model catalog with the given cache TTL.
func NewCatalog(lister llm.ModelLister, ttl time.Duration, log zerolog.Logger) *Catalog {
	return &Catalog{
		lister: lister,
		ttl:    ttl,
		log:    log.With().Str("component", "model-catalog").Logger(),
	}
}

// List returns the cached model list, refreshing it when expired.
func (c *Catalog) List(ctx context.Context) ([]llm.Model, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil && time.Now().Before(c.expiresAt) {
		return c.cached, nil
	}

	fresh, err := c.lister.ListModels(ctx)
	if err != nil {
		if c.cached != nil {
			c.log.Warn().Err(err).Msg("model list refresh failed, serving stale cache")
			return c.cached, nil
		}
		return nil, err
	}

	c.cached = fresh
	c.expiresAt = time.Now().Add(c.ttl)
	return c.cached, nil
}

// Invalidate drops the cached list, forcing a refresh on next access.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = nil
	c.expiresAt = time.Time{}
}

package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"kanban-api/domain"
)

// cachedProject bundles a project document with the ETag it was read under,
// so cache hits can participate in conditional writes. A stale ETag is
// harmless: the conditioned update fails and the retry refetches through
// the backend after eviction.
type cachedProject struct {
	Project *domain.Project `json:"project"`
	ETag    string          `json:"etag"`
}

// Cache wraps a Storage instance with Redis-backed caching for read operations.
// Every write evicts the cached document before it can go stale.
type Cache struct {
	base  domain.Storage
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis client and TTL.
func NewCache(base domain.Storage, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
}

func (c *Cache) GetProject(ctx context.Context, projectID string) (*domain.Project, string, error) {
	if cached, ok := c.loadProjectFromCache(ctx, projectID); ok {
		return cached.Project, cached.ETag, nil
	}

	p, etag, err := c.base.GetProject(ctx, projectID)
	if err != nil {
		return nil, "", err
	}

	c.storeProject(ctx, projectID, cachedProject{Project: p, ETag: etag})
	return p, etag, nil
}

func (c *Cache) UpdateProject(ctx context.Context, p *domain.Project, etag string) error {
	// Evict before writing: even a conflicted write means the cached ETag
	// is suspect, and the retry loop must refetch through the backend.
	c.evict(ctx, projectCacheKey(p.ID))
	return c.base.UpdateProject(ctx, p, etag)
}

func (c *Cache) InsertProject(ctx context.Context, p *domain.Project) error {
	c.evict(ctx, projectCacheKey(p.ID))
	return c.base.InsertProject(ctx, p)
}

func (c *Cache) GetTeam(ctx context.Context, teamID string) (*domain.Team, error) {
	if team, ok := c.loadTeamFromCache(ctx, teamID); ok {
		return team, nil
	}

	team, err := c.base.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team != nil {
		c.storeTeam(ctx, teamID, team)
	}
	return team, nil
}

func (c *Cache) loadProjectFromCache(ctx context.Context, projectID string) (cachedProject, bool) {
	if c.redis == nil {
		return cachedProject{}, false
	}
	data, err := c.redis.Get(ctx, projectCacheKey(projectID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, projectCacheKey(projectID)).Err()
		}
		return cachedProject{}, false
	}
	var cached cachedProject
	if err := json.Unmarshal(data, &cached); err != nil || cached.Project == nil {
		_ = c.redis.Del(ctx, projectCacheKey(projectID)).Err()
		return cachedProject{}, false
	}
	return cached, true
}

func (c *Cache) loadTeamFromCache(ctx context.Context, teamID string) (*domain.Team, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, teamCacheKey(teamID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, teamCacheKey(teamID)).Err()
		}
		return nil, false
	}
	var team domain.Team
	if err := json.Unmarshal(data, &team); err != nil {
		_ = c.redis.Del(ctx, teamCacheKey(teamID)).Err()
		return nil, false
	}
	return &team, true
}

func (c *Cache) storeProject(ctx context.Context, projectID string, cached cachedProject) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(cached)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, projectCacheKey(projectID), data, c.ttl).Err()
}

func (c *Cache) storeTeam(ctx context.Context, teamID string, team *domain.Team) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(team)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, teamCacheKey(teamID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, keys ...string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, keys...).Result()
}

func projectCacheKey(projectID string) string {
	return "project:" + projectID
}

func teamCacheKey(teamID string) string {
	return "team:" + teamID
}

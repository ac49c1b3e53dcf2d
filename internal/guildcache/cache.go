package guildcache

import (
	"context"
	"time"

	"github.com/Fl4chi/discord-smartbot/internal/storage"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/sync/singleflight"
)

type cached struct {
	cfg   storage.GuildConfig
	found bool
}

// Cache fronts the guild-config table with an in-memory TTL cache. The
// detection engine looks configuration up on every gateway event, so misses
// are collapsed through singleflight to keep one query in flight per guild.
type Cache struct {
	store *storage.Store
	l1    *ristretto.Cache
	group singleflight.Group
	ttl   time.Duration
}

func New(store *storage.Store, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	l1, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{store: store, l1: l1, ttl: ttl}, nil
}

// GuildConfig implements guard.ConfigSource.
func (c *Cache) GuildConfig(ctx context.Context, guildID string) (storage.GuildConfig, bool, error) {
	if value, ok := c.l1.Get(guildID); ok {
		entry := value.(cached)
		return entry.cfg, entry.found, nil
	}

	result, err, _ := c.group.Do(guildID, func() (any, error) {
		cfg, found, err := c.store.GetGuildConfig(ctx, guildID)
		if err != nil {
			return nil, err
		}
		entry := cached{cfg: cfg, found: found}
		c.l1.SetWithTTL(guildID, entry, 1, c.ttl)
		c.l1.Wait()
		return entry, nil
	})
	if err != nil {
		return storage.GuildConfig{}, false, err
	}
	entry := result.(cached)
	return entry.cfg, entry.found, nil
}

// Upsert writes through to the store and drops the cached entry so the next
// lookup sees the new configuration.
func (c *Cache) Upsert(ctx context.Context, cfg storage.GuildConfig) error {
	if err := c.store.UpsertGuildConfig(ctx, cfg); err != nil {
		return err
	}
	c.l1.Del(cfg.GuildID)
	return nil
}

func (c *Cache) Close() {
	c.l1.Close()
}

package guildcache

import (
	"context"
	"testing"
	"time"

	"github.com/Fl4chi/discord-smartbot/internal/storage"
)

func newFixture(t *testing.T) (*Cache, *storage.Store) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cache, err := New(store, time.Minute)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	t.Cleanup(cache.Close)
	return cache, store
}

func TestLookupMissingGuild(t *testing.T) {
	cache, _ := newFixture(t)

	cfg, found, err := cache.GuildConfig(context.Background(), "g1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if found || cfg.AntiraidEnabled {
		t.Fatalf("expected absent config, got %+v found=%t", cfg, found)
	}
}

func TestLookupAfterUpsert(t *testing.T) {
	cache, _ := newFixture(t)
	ctx := context.Background()

	if err := cache.Upsert(ctx, storage.GuildConfig{GuildID: "g1", AntiraidEnabled: true, StrictMode: true}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	cfg, found, err := cache.GuildConfig(ctx, "g1")
	if err != nil || !found {
		t.Fatalf("lookup: %v found=%t", err, found)
	}
	if !cfg.AntiraidEnabled || !cfg.StrictMode {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestUpsertInvalidatesCachedEntry(t *testing.T) {
	cache, _ := newFixture(t)
	ctx := context.Background()

	_ = cache.Upsert(ctx, storage.GuildConfig{GuildID: "g1", AntiraidEnabled: true})
	if _, _, err := cache.GuildConfig(ctx, "g1"); err != nil {
		t.Fatalf("warm lookup: %v", err)
	}

	if err := cache.Upsert(ctx, storage.GuildConfig{GuildID: "g1", AntiraidEnabled: false}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	cfg, found, err := cache.GuildConfig(ctx, "g1")
	if err != nil || !found {
		t.Fatalf("lookup: %v found=%t", err, found)
	}
	if cfg.AntiraidEnabled {
		t.Fatalf("expected invalidated entry to reflect new value, got %+v", cfg)
	}
}

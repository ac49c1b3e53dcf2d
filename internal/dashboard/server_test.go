package dashboard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Fl4chi/discord-smartbot/internal/config"
	"github.com/Fl4chi/discord-smartbot/internal/guard"
	"github.com/Fl4chi/discord-smartbot/internal/metrics"
	"github.com/Fl4chi/discord-smartbot/internal/modules/audit"
	"github.com/Fl4chi/discord-smartbot/internal/storage"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

type fakeConfigs struct{}

func (fakeConfigs) GuildConfig(ctx context.Context, guildID string) (storage.GuildConfig, bool, error) {
	return storage.GuildConfig{GuildID: guildID, AntiraidEnabled: true}, true, nil
}

type nopExecutor struct{}

func (nopExecutor) Ban(context.Context, string, string, string, int) error { return nil }
func (nopExecutor) Kick(context.Context, string, string, string) error     { return nil }
func (nopExecutor) Timeout(context.Context, string, string, time.Duration, string) error {
	return nil
}
func (nopExecutor) DeleteMessage(context.Context, string, string) error       { return nil }
func (nopExecutor) SetSlowMode(context.Context, string, int, string) error    { return nil }
func (nopExecutor) SetVerificationLevel(context.Context, string, int, string) error {
	return nil
}

type nopExempt struct{}

func (nopExempt) HasModerationExemption(context.Context, string, string) bool { return false }

func newTestServer(t *testing.T) (*Server, *storage.Store, *guard.Coordinator) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := zap.NewNop()
	metricSet := metrics.New()
	coordinator := guard.New(config.DefaultConfig().Thresholds, logger, fakeConfigs{}, nopExecutor{}, nopExempt{}, audit.NewLogger(store, logger), metricSet)
	t.Cleanup(coordinator.Close)

	server := New(config.DashboardConfig{Enabled: true, Addr: ":0"}, logger, store, coordinator, metricSet)
	return server, store, coordinator
}

func get(t *testing.T, server *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	server, _, _ := newTestServer(t)
	rec := get(t, server, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}

func TestRaidStatusEndpoint(t *testing.T) {
	server, _, coordinator := newTestServer(t)

	rec := get(t, server, "/api/guilds/g1/raid")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var status struct {
		GuildID string `json:"guild_id"`
		Active  bool   `json:"active"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Active || status.GuildID != "g1" {
		t.Fatalf("expected inactive raid for g1, got %+v", status)
	}

	coordinator.ActivateRaidMode(context.Background(), "g1", "manual")
	rec = get(t, server, "/api/guilds/g1/raid")
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Active {
		t.Fatalf("expected active raid after activation, got %+v", status)
	}
}

func TestStatsEndpoint(t *testing.T) {
	server, store, coordinator := newTestServer(t)
	ctx := context.Background()

	for range [3]int{} {
		if err := store.AddModerationLog(ctx, storage.ModerationLog{
			GuildID: "g1", UserID: "u1", ModeratorID: "SYSTEM",
			Action: audit.ActionBan, CreatedAt: time.Now(),
		}); err != nil {
			t.Fatalf("seed log: %v", err)
		}
	}
	coordinator.ActivateRaidMode(ctx, "g1", "manual")

	rec := get(t, server, "/api/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp statsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Actions[audit.ActionBan] != 3 {
		t.Fatalf("expected 3 bans in stats, got %+v", resp.Actions)
	}
	if len(resp.ActiveRaids) != 1 || resp.ActiveRaids[0].GuildID != "g1" {
		t.Fatalf("expected g1 raid listed, got %+v", resp.ActiveRaids)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	server, store, _ := newTestServer(t)
	ctx := context.Background()

	if _, err := store.AddXP(ctx, "g1", "u1", 450); err != nil {
		t.Fatalf("seed xp: %v", err)
	}
	if _, err := store.AddXP(ctx, "g1", "u2", 120); err != nil {
		t.Fatalf("seed xp: %v", err)
	}

	rec := get(t, server, "/api/guilds/g1/leaderboard")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var entries []leaderboardEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 || entries[0].UserID != "u1" || entries[0].Level != 2 {
		t.Fatalf("unexpected leaderboard %+v", entries)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)
	rec := get(t, server, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
}

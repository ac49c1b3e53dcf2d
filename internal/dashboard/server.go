// Package dashboard exposes a small read-only HTTP API with guild
// moderation stats, raid status and XP leaderboards, plus Prometheus
// metrics. It never mutates state; all writes go through the bot.
package dashboard

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Fl4chi/discord-smartbot/internal/config"
	"github.com/Fl4chi/discord-smartbot/internal/guard"
	"github.com/Fl4chi/discord-smartbot/internal/metrics"
	"github.com/Fl4chi/discord-smartbot/internal/storage"
	"github.com/Fl4chi/discord-smartbot/internal/xp"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.DashboardConfig
	logger *zap.Logger
	store  *storage.Store
	guard  *guard.Coordinator
	srv    *http.Server
}

func New(cfg config.DashboardConfig, logger *zap.Logger, store *storage.Store, coordinator *guard.Coordinator, metricSet *metrics.Set) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		store:  store,
		guard:  coordinator,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Get("/api/stats", s.handleStats)
	r.Get("/api/guilds/{guildID}/raid", s.handleRaidStatus)
	r.Get("/api/guilds/{guildID}/leaderboard", s.handleLeaderboard)
	r.Handle("/metrics", promhttp.HandlerFor(metricSet.Registry, promhttp.HandlerOpts{}))

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

// Start blocks serving HTTP until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	s.logger.Info("dashboard listening", zap.String("addr", s.cfg.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// Handler returns the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statsResponse struct {
	ActiveRaids []raidStatus   `json:"active_raids"`
	Actions     map[string]int `json:"actions_7d"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	since := time.Now().AddDate(0, 0, -7)
	counts, err := s.store.CountModerationLogs(r.Context(), "", since)
	if err != nil {
		s.logger.Warn("stats query failed", zap.Error(err))
		http.Error(w, "stats unavailable", http.StatusInternalServerError)
		return
	}

	resp := statsResponse{Actions: counts, ActiveRaids: []raidStatus{}}
	for _, state := range s.guard.ActiveRaids() {
		resp.ActiveRaids = append(resp.ActiveRaids, raidStatusFrom(state.GuildID, true, state.IncidentID, state.Reason, state.StartedAt, state.AutoExpireAt))
	}
	writeJSON(w, http.StatusOK, resp)
}

type raidStatus struct {
	GuildID    string `json:"guild_id"`
	Active     bool   `json:"active"`
	IncidentID string `json:"incident_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
	StartedAt  string `json:"started_at,omitempty"`
	ExpiresAt  string `json:"expires_at,omitempty"`
}

func raidStatusFrom(guildID string, active bool, incidentID, reason string, startedAt, expiresAt time.Time) raidStatus {
	status := raidStatus{GuildID: guildID, Active: active}
	if active {
		status.IncidentID = incidentID
		status.Reason = reason
		status.StartedAt = startedAt.UTC().Format(time.RFC3339)
		status.ExpiresAt = expiresAt.UTC().Format(time.RFC3339)
	}
	return status
}

func (s *Server) handleRaidStatus(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	active := s.guard.IsUnderRaid(guildID)
	state, _ := s.guard.RaidSnapshot(guildID)
	writeJSON(w, http.StatusOK, raidStatusFrom(guildID, active, state.IncidentID, state.Reason, state.StartedAt, state.AutoExpireAt))
}

type leaderboardEntry struct {
	UserID   string `json:"user_id"`
	XP       int    `json:"xp"`
	Level    int    `json:"level"`
	Messages int    `json:"messages"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	records, err := s.store.Leaderboard(r.Context(), guildID, 10)
	if err != nil {
		s.logger.Warn("leaderboard query failed", zap.String("guild_id", guildID), zap.Error(err))
		http.Error(w, "leaderboard unavailable", http.StatusInternalServerError)
		return
	}

	entries := make([]leaderboardEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, leaderboardEntry{
			UserID:   rec.UserID,
			XP:       rec.XP,
			Level:    xp.Level(rec.XP),
			Messages: rec.Messages,
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

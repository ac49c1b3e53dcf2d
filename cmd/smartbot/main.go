package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Fl4chi/discord-smartbot/internal/actions"
	"github.com/Fl4chi/discord-smartbot/internal/automod"
	"github.com/Fl4chi/discord-smartbot/internal/bot"
	"github.com/Fl4chi/discord-smartbot/internal/config"
	"github.com/Fl4chi/discord-smartbot/internal/dashboard"
	"github.com/Fl4chi/discord-smartbot/internal/guard"
	"github.com/Fl4chi/discord-smartbot/internal/guildcache"
	"github.com/Fl4chi/discord-smartbot/internal/metrics"
	"github.com/Fl4chi/discord-smartbot/internal/modules/audit"
	"github.com/Fl4chi/discord-smartbot/internal/storage"
	"github.com/Fl4chi/discord-smartbot/internal/xp"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	configs, err := guildcache.New(store, time.Duration(cfg.GuildCacheTTLSecs)*time.Second)
	if err != nil {
		logger.Fatal("guild cache init failed", zap.Error(err))
	}
	defer configs.Close()

	auditLogger := audit.NewLogger(store, logger)
	metricSet := metrics.New()

	botSvc, err := bot.New(cfg, logger, store, configs, auditLogger)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	exec := actions.NewDiscordExecutor(botSvc.Session(), logger)
	exempt := actions.NewDiscordExemptions(botSvc.Session())
	coordinator := guard.New(cfg.Thresholds, logger, configs, exec, exempt, auditLogger, metricSet)
	defer coordinator.Close()
	autoMod := automod.New(cfg, exec, exempt, auditLogger, store, logger)
	xpSvc := xp.New(cfg.XP, store, logger)
	botSvc.Attach(coordinator, autoMod, xpSvc)

	dash := dashboard.New(cfg.Dashboard, logger, store, coordinator, metricSet)

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started")

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	group, ctx := errgroup.WithContext(runCtx)
	group.Go(dash.Start)
	group.Go(func() error {
		// Daily retention sweep over the moderation log.
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := store.CleanupModerationLogs(ctx, cfg.LogRetentionDays); err != nil {
					logger.Warn("moderation log cleanup failed", zap.Error(err))
				}
			case <-ctx.Done():
				return nil
			}
		}
	})
	group.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			logger.Info("shutdown requested", zap.String("signal", sig.String()))
		case <-ctx.Done():
		}
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = dash.Shutdown(shutdownCtx)
		botSvc.Close(shutdownCtx)
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Fatal("runtime failure", zap.Error(err))
	}
}

package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken      string          `yaml:"discord_token"`
	DatabasePath      string          `yaml:"database_path"`
	LogLevel          string          `yaml:"log_level"`
	DefaultModlogChan string          `yaml:"default_modlog_channel"`
	Dashboard         DashboardConfig `yaml:"dashboard"`
	Thresholds        Thresholds      `yaml:"thresholds"`
	AutoMod           AutoModConfig   `yaml:"automod"`
	XP                XPConfig        `yaml:"xp"`
	GuildCacheTTLSecs int             `yaml:"guild_cache_ttl_seconds"`
	LogRetentionDays  int             `yaml:"log_retention_days"`
}

type DashboardConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Thresholds are the detection knobs for the raid-protection engine.
type Thresholds struct {
	JoinWindowSeconds   int `yaml:"join_window_seconds"`
	RaidJoins           int `yaml:"raid_joins"`
	RaidNewAccounts     int `yaml:"raid_new_accounts"`
	RaidVeryNewAccounts int `yaml:"raid_very_new_accounts"`

	BurstWindowSeconds int `yaml:"burst_window_seconds"`
	BurstMessages      int `yaml:"burst_messages"`
	BurstDistinctUsers int `yaml:"burst_distinct_users"`
	BurstUserMessages  int `yaml:"burst_user_messages"`
	BurstSlowModeSecs  int `yaml:"burst_slowmode_seconds"`

	SpamWindowSeconds int `yaml:"spam_window_seconds"`
	SpamMessages      int `yaml:"spam_messages"`
	SpamDuplicates    int `yaml:"spam_duplicates"`
	SpamMentions      int `yaml:"spam_mentions"`
}

type AutoModConfig struct {
	Enabled           bool    `yaml:"enabled"`
	StrikeDecayPerMin float64 `yaml:"strike_decay_per_minute"`
	StrikeTTLMinutes  int     `yaml:"strike_ttl_minutes"`
	TimeoutStrikes    float64 `yaml:"timeout_strikes"`
	BanStrikes        float64 `yaml:"ban_strikes"`
	TimeoutMinutes    int     `yaml:"timeout_minutes"`
}

type XPConfig struct {
	Enabled         bool `yaml:"enabled"`
	PerMessage      int  `yaml:"per_message"`
	CooldownSeconds int  `yaml:"cooldown_seconds"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:      "/data/smartbot.db",
		LogLevel:          "info",
		DefaultModlogChan: "",
		Dashboard:         DashboardConfig{Enabled: true, Addr: ":3000"},
		Thresholds: Thresholds{
			JoinWindowSeconds:   10,
			RaidJoins:           10,
			RaidNewAccounts:     5,
			RaidVeryNewAccounts: 3,
			BurstWindowSeconds:  5,
			BurstMessages:       20,
			BurstDistinctUsers:  5,
			BurstUserMessages:   5,
			BurstSlowModeSecs:   10,
			SpamWindowSeconds:   10,
			SpamMessages:        5,
			SpamDuplicates:      3,
			SpamMentions:        5,
		},
		AutoMod: AutoModConfig{
			Enabled:           true,
			StrikeDecayPerMin: 0.5,
			StrikeTTLMinutes:  60,
			TimeoutStrikes:    3,
			BanStrikes:        8,
			TimeoutMinutes:    10,
		},
		XP:                XPConfig{Enabled: true, PerMessage: 10, CooldownSeconds: 60},
		GuildCacheTTLSecs: 60,
		LogRetentionDays:  90,
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.DefaultModlogChan = envString("DEFAULT_MODLOG_CHANNEL", cfg.DefaultModlogChan)
	cfg.Dashboard.Enabled = envBool("DASHBOARD_ENABLED", cfg.Dashboard.Enabled)
	cfg.Dashboard.Addr = envString("DASHBOARD_ADDR", cfg.Dashboard.Addr)
	cfg.Thresholds.JoinWindowSeconds = envInt("JOIN_WINDOW_SECONDS", cfg.Thresholds.JoinWindowSeconds)
	cfg.Thresholds.RaidJoins = envInt("RAID_JOINS", cfg.Thresholds.RaidJoins)
	cfg.Thresholds.RaidNewAccounts = envInt("RAID_NEW_ACCOUNTS", cfg.Thresholds.RaidNewAccounts)
	cfg.Thresholds.RaidVeryNewAccounts = envInt("RAID_VERY_NEW_ACCOUNTS", cfg.Thresholds.RaidVeryNewAccounts)
	cfg.Thresholds.BurstWindowSeconds = envInt("BURST_WINDOW_SECONDS", cfg.Thresholds.BurstWindowSeconds)
	cfg.Thresholds.BurstMessages = envInt("BURST_MESSAGES", cfg.Thresholds.BurstMessages)
	cfg.Thresholds.BurstDistinctUsers = envInt("BURST_DISTINCT_USERS", cfg.Thresholds.BurstDistinctUsers)
	cfg.Thresholds.BurstUserMessages = envInt("BURST_USER_MESSAGES", cfg.Thresholds.BurstUserMessages)
	cfg.Thresholds.BurstSlowModeSecs = envInt("BURST_SLOWMODE_SECONDS", cfg.Thresholds.BurstSlowModeSecs)
	cfg.Thresholds.SpamWindowSeconds = envInt("SPAM_WINDOW_SECONDS", cfg.Thresholds.SpamWindowSeconds)
	cfg.Thresholds.SpamMessages = envInt("SPAM_MESSAGES", cfg.Thresholds.SpamMessages)
	cfg.Thresholds.SpamDuplicates = envInt("SPAM_DUPLICATES", cfg.Thresholds.SpamDuplicates)
	cfg.Thresholds.SpamMentions = envInt("SPAM_MENTIONS", cfg.Thresholds.SpamMentions)
	cfg.AutoMod.Enabled = envBool("AUTOMOD_ENABLED", cfg.AutoMod.Enabled)
	cfg.AutoMod.TimeoutMinutes = envInt("AUTOMOD_TIMEOUT_MINUTES", cfg.AutoMod.TimeoutMinutes)
	cfg.XP.Enabled = envBool("XP_ENABLED", cfg.XP.Enabled)
	cfg.XP.PerMessage = envInt("XP_PER_MESSAGE", cfg.XP.PerMessage)
	cfg.XP.CooldownSeconds = envInt("XP_COOLDOWN_SECONDS", cfg.XP.CooldownSeconds)
	cfg.GuildCacheTTLSecs = envInt("GUILD_CACHE_TTL_SECONDS", cfg.GuildCacheTTLSecs)
	cfg.LogRetentionDays = envInt("LOG_RETENTION_DAYS", cfg.LogRetentionDays)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

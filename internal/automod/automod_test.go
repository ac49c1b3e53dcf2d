package automod

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Fl4chi/discord-smartbot/internal/config"
	"github.com/Fl4chi/discord-smartbot/internal/modules/audit"
	"github.com/Fl4chi/discord-smartbot/internal/storage"

	"go.uber.org/zap"
)

type fakeExecutor struct {
	mu       sync.Mutex
	deletes  int
	timeouts int
	bans     int
}

func (f *fakeExecutor) Ban(ctx context.Context, guildID, userID, reason string, deleteHistoryDays int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bans++
	return nil
}

func (f *fakeExecutor) Kick(ctx context.Context, guildID, userID, reason string) error { return nil }

func (f *fakeExecutor) Timeout(ctx context.Context, guildID, userID string, duration time.Duration, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeouts++
	return nil
}

func (f *fakeExecutor) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	return nil
}

func (f *fakeExecutor) SetSlowMode(ctx context.Context, channelID string, seconds int, reason string) error {
	return nil
}

func (f *fakeExecutor) SetVerificationLevel(ctx context.Context, guildID string, level int, reason string) error {
	return nil
}

type fakeExempt struct{ users map[string]bool }

func (f *fakeExempt) HasModerationExemption(ctx context.Context, guildID, userID string) bool {
	return f.users[userID]
}

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func newFixture(t *testing.T) (*Module, *fakeExecutor, *storage.Store) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	exec := &fakeExecutor{}
	module := New(
		config.DefaultConfig(),
		exec,
		&fakeExempt{users: map[string]bool{"mod": true}},
		audit.NewLogger(store, zap.NewNop()),
		store,
		zap.NewNop(),
	)
	module.WithClock(&fixedClock{now: time.Unix(100000, 0)})
	t.Cleanup(module.Close)
	return module, exec, store
}

func msg(userID, content string) Message {
	return Message{
		GuildID:   "g1",
		ChannelID: "c1",
		MessageID: "m1",
		UserID:    userID,
		Content:   content,
		At:        time.Unix(100000, 0),
	}
}

func TestSpamGetsDeleteAndTimeout(t *testing.T) {
	module, exec, _ := newFixture(t)
	ctx := context.Background()

	base := time.Unix(100000, 0)
	var result Result
	for i := 0; i < 4; i++ {
		event := msg("u1", "buy now")
		event.At = base.Add(time.Duration(i) * time.Second)
		result = module.HandleMessage(ctx, event)
	}
	if !result.Flagged || result.Action != "deleted + timeout" {
		t.Fatalf("expected duplicate spam punished, got %+v", result)
	}
	if exec.deletes == 0 || exec.timeouts == 0 {
		t.Fatalf("expected delete and timeout calls, got %+v", exec)
	}
}

func TestToxicLanguageDeletedAndWarned(t *testing.T) {
	module, exec, _ := newFixture(t)

	result := module.HandleMessage(context.Background(), msg("u1", "you are an asshole"))
	if !result.Flagged || result.Reason != "toxic language" {
		t.Fatalf("expected toxic language flag, got %+v", result)
	}
	if result.Action != "deleted + warned" {
		t.Fatalf("first offense should warn, got %+v", result)
	}
	if exec.deletes != 1 || exec.timeouts != 0 {
		t.Fatalf("expected delete without timeout, got %+v", exec)
	}
}

func TestStrikesEscalateToTimeout(t *testing.T) {
	module, exec, _ := newFixture(t)
	ctx := context.Background()

	// Default thresholds: content offenses add 1 strike, timeout at 3.
	module.HandleMessage(ctx, msg("u1", "merda"))
	module.HandleMessage(ctx, msg("u1", "what a shit take"))
	result := module.HandleMessage(ctx, msg("u1", "damn you all"))
	if result.Action != "deleted + timeout" {
		t.Fatalf("expected third strike to time out, got %+v", result)
	}
	if exec.timeouts != 1 {
		t.Fatalf("expected exactly one timeout, got %d", exec.timeouts)
	}
}

func TestInviteLinkFlagged(t *testing.T) {
	module, _, _ := newFixture(t)

	result := module.HandleMessage(context.Background(), msg("u1", "join us https://discord.gg/abc123"))
	if !result.Flagged || result.Reason != "unsolicited invite link" {
		t.Fatalf("expected invite link flag, got %+v", result)
	}
}

func TestBlockedDomainFlagged(t *testing.T) {
	module, _, store := newFixture(t)
	ctx := context.Background()

	if err := store.AddDomainBlock(ctx, "g1", "evil.example"); err != nil {
		t.Fatalf("add block: %v", err)
	}
	result := module.HandleMessage(ctx, msg("u1", "check https://evil.example/promo"))
	if !result.Flagged || result.Reason != "blocked domain: evil.example" {
		t.Fatalf("expected blocked domain flag, got %+v", result)
	}
}

func TestMassiveCapsFlagged(t *testing.T) {
	module, _, _ := newFixture(t)

	result := module.HandleMessage(context.Background(), msg("u1", "EVERYONE LOOK AT THIS RIGHT NOW"))
	if !result.Flagged || result.Reason != "excessive caps" {
		t.Fatalf("expected caps flag, got %+v", result)
	}
	clean := module.HandleMessage(context.Background(), msg("u2", "OK fine"))
	if clean.Flagged {
		t.Fatalf("short caps must pass, got %+v", clean)
	}
}

func TestRepeatedCharactersFlagged(t *testing.T) {
	module, _, _ := newFixture(t)

	result := module.HandleMessage(context.Background(), msg("u1", "hahahahahaha so funny"))
	if !result.Flagged || result.Reason != "repeated characters" {
		t.Fatalf("expected repeated character flag, got %+v", result)
	}
	clean := module.HandleMessage(context.Background(), msg("u2", "hahaha nice one"))
	if clean.Flagged {
		t.Fatalf("short repetition must pass, got %+v", clean)
	}
}

func TestExemptUsersPass(t *testing.T) {
	module, exec, _ := newFixture(t)

	result := module.HandleMessage(context.Background(), msg("mod", "fuck this shit https://discord.gg/xyz"))
	if result.Flagged {
		t.Fatalf("exempt user must pass, got %+v", result)
	}
	if exec.deletes != 0 {
		t.Fatalf("expected no actions against exempt user")
	}
}

func TestCleanMessagePasses(t *testing.T) {
	module, exec, _ := newFixture(t)

	result := module.HandleMessage(context.Background(), msg("u1", "good morning everyone, lovely day"))
	if result.Flagged {
		t.Fatalf("clean message flagged: %+v", result)
	}
	if exec.deletes != 0 || exec.timeouts != 0 || exec.bans != 0 {
		t.Fatalf("expected no actions, got %+v", exec)
	}
}

func TestStrikeDecay(t *testing.T) {
	strikes := NewStrikes(config.DefaultConfig().AutoMod)
	clock := &fixedClock{now: time.Unix(200000, 0)}
	strikes.WithClock(clock)

	strikes.Add("g1", "u1", 2)
	clock.now = clock.now.Add(2 * time.Minute)
	// 0.5/minute decay: 2 - 1 = 1.
	if score := strikes.Score("g1", "u1"); score != 1 {
		t.Fatalf("expected decayed score 1, got %v", score)
	}

	clock.now = clock.now.Add(2 * time.Hour)
	if score := strikes.Score("g1", "u1"); score != 0 {
		t.Fatalf("expected expired score 0, got %v", score)
	}
}

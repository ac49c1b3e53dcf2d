package burst

import (
	"fmt"
	"testing"
	"time"

	"github.com/Fl4chi/discord-smartbot/internal/config"
)

func sendBurst(module *Module, base time.Time, count int, users int) Verdict {
	var last Verdict
	for i := 0; i < count; i++ {
		last = module.Observe(Message{
			GuildID:   "g1",
			ChannelID: "c1",
			UserID:    fmt.Sprintf("u%d", i%users),
			At:        base.Add(time.Duration(i) * 100 * time.Millisecond),
		})
	}
	return last
}

func TestBurstTriggersOnFewSenders(t *testing.T) {
	module := New(config.DefaultConfig().Thresholds)
	defer module.Close()

	base := time.Unix(10000, 0)
	verdict := sendBurst(module, base, 21, 3)
	if !verdict.Triggered || !verdict.NewEpisode {
		t.Fatalf("expected burst on 21st message from 3 users, got %+v", verdict)
	}
	if !verdict.SlowMode {
		t.Fatalf("expected slow-mode request on episode start")
	}
	// 21 messages over 3 users = 7 each, all above the per-user threshold.
	if len(verdict.Flooders) != 3 {
		t.Fatalf("expected 3 flooders, got %v", verdict.Flooders)
	}
}

func TestOrganicChatterDoesNotTrigger(t *testing.T) {
	module := New(config.DefaultConfig().Thresholds)
	defer module.Close()

	base := time.Unix(20000, 0)
	// Same volume but spread over many senders.
	verdict := sendBurst(module, base, 25, 10)
	if verdict.Triggered {
		t.Fatalf("expected no burst for organic chatter, got %+v", verdict)
	}
}

func TestActionsIssuedOncePerEpisode(t *testing.T) {
	module := New(config.DefaultConfig().Thresholds)
	defer module.Close()

	base := time.Unix(30000, 0)
	first := sendBurst(module, base, 21, 3)
	if !first.NewEpisode {
		t.Fatalf("expected opening edge, got %+v", first)
	}

	// Predicate still true for the next message inside the same window.
	again := module.Observe(Message{GuildID: "g1", ChannelID: "c1", UserID: "u0", At: base.Add(3 * time.Second)})
	if !again.Triggered {
		t.Fatalf("expected still triggered inside open episode")
	}
	if again.NewEpisode || again.SlowMode || len(again.Flooders) != 0 {
		t.Fatalf("expected no repeated action requests, got %+v", again)
	}
}

func TestEpisodeClosesWhenWindowClears(t *testing.T) {
	module := New(config.DefaultConfig().Thresholds)
	defer module.Close()

	base := time.Unix(40000, 0)
	sendBurst(module, base, 21, 3)

	// Ten seconds later the window is empty; a lone message closes the episode.
	quiet := module.Observe(Message{GuildID: "g1", ChannelID: "c1", UserID: "u0", At: base.Add(13 * time.Second)})
	if quiet.Triggered {
		t.Fatalf("expected episode closed, got %+v", quiet)
	}

	// A fresh burst afterwards is a new episode with fresh action requests.
	second := sendBurst(module, base.Add(20*time.Second), 21, 3)
	if !second.NewEpisode || !second.SlowMode {
		t.Fatalf("expected new episode after quiet period, got %+v", second)
	}
}

func TestChannelsAreIndependent(t *testing.T) {
	module := New(config.DefaultConfig().Thresholds)
	defer module.Close()

	base := time.Unix(50000, 0)
	for i := 0; i < 21; i++ {
		module.Observe(Message{GuildID: "g1", ChannelID: "c1", UserID: "u0", At: base.Add(time.Duration(i) * 50 * time.Millisecond)})
	}
	other := module.Observe(Message{GuildID: "g1", ChannelID: "c2", UserID: "u0", At: base.Add(2 * time.Second)})
	if other.Triggered {
		t.Fatalf("burst in c1 must not leak into c2")
	}
}

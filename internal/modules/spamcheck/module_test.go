package spamcheck

import (
	"fmt"
	"testing"
	"time"

	"github.com/Fl4chi/discord-smartbot/internal/config"
)

func newModule(t *testing.T) *Module {
	t.Helper()
	module := New(config.DefaultConfig().Thresholds)
	t.Cleanup(module.Close)
	return module
}

func TestFloodingThreshold(t *testing.T) {
	module := newModule(t)
	base := time.Unix(10000, 0)

	for i := 0; i < 5; i++ {
		msg := Message{GuildID: "g1", UserID: "u1", Content: fmt.Sprintf("msg %d", i), At: base.Add(time.Duration(i) * time.Second)}
		if verdict := module.Classify(msg); verdict.IsSpam {
			t.Fatalf("message %d: expected clean below flood threshold", i+1)
		}
	}
	sixth := Message{GuildID: "g1", UserID: "u1", Content: "msg 5", At: base.Add(5 * time.Second)}
	verdict := module.Classify(sixth)
	if !verdict.IsSpam || verdict.Reason != ReasonFlooding {
		t.Fatalf("expected flooding on 6th message, got %+v", verdict)
	}
}

func TestDuplicateThreshold(t *testing.T) {
	module := newModule(t)
	base := time.Unix(20000, 0)

	var verdict Verdict
	for i := 0; i < 3; i++ {
		verdict = module.Classify(Message{GuildID: "g1", UserID: "u1", Content: "same thing", At: base.Add(time.Duration(i) * time.Second)})
	}
	if verdict.IsSpam {
		t.Fatalf("3 identical messages must not classify as spam, got %+v", verdict)
	}

	verdict = module.Classify(Message{GuildID: "g1", UserID: "u1", Content: "same thing", At: base.Add(3 * time.Second)})
	if !verdict.IsSpam || verdict.Reason != ReasonDuplicates {
		t.Fatalf("expected duplicate detection on 4th identical message, got %+v", verdict)
	}
}

func TestDuplicatesOutsideWindowForgotten(t *testing.T) {
	module := newModule(t)
	base := time.Unix(30000, 0)

	for i := 0; i < 3; i++ {
		module.Classify(Message{GuildID: "g1", UserID: "u1", Content: "same thing", At: base.Add(time.Duration(i) * time.Second)})
	}
	late := module.Classify(Message{GuildID: "g1", UserID: "u1", Content: "same thing", At: base.Add(15 * time.Second)})
	if late.IsSpam {
		t.Fatalf("duplicates outside the window must not count, got %+v", late)
	}
}

func TestMentionAbuse(t *testing.T) {
	module := newModule(t)
	base := time.Unix(40000, 0)

	clean := module.Classify(Message{GuildID: "g1", UserID: "u1", Content: "hi all", Mentions: 5, At: base})
	if clean.IsSpam {
		t.Fatalf("5 mentions is allowed, got %+v", clean)
	}
	verdict := module.Classify(Message{GuildID: "g1", UserID: "u1", Content: "hi everyone", Mentions: 6, At: base.Add(time.Second)})
	if !verdict.IsSpam || verdict.Reason != ReasonMentions {
		t.Fatalf("expected mention abuse at 6 mentions, got %+v", verdict)
	}
}

func TestFirstTrueReasonWins(t *testing.T) {
	module := newModule(t)
	base := time.Unix(50000, 0)

	// Build a history that floods and duplicates at once; flooding is
	// checked first so it supplies the reason.
	var verdict Verdict
	for i := 0; i < 6; i++ {
		verdict = module.Classify(Message{GuildID: "g1", UserID: "u1", Content: "same", Mentions: 9, At: base.Add(time.Duration(i) * time.Second)})
	}
	if !verdict.IsSpam || verdict.Reason != ReasonFlooding {
		t.Fatalf("expected flooding to win, got %+v", verdict)
	}
}

func TestUsersTrackedIndependently(t *testing.T) {
	module := newModule(t)
	base := time.Unix(60000, 0)

	for i := 0; i < 6; i++ {
		module.Classify(Message{GuildID: "g1", UserID: "u1", Content: fmt.Sprintf("m%d", i), At: base.Add(time.Duration(i) * time.Millisecond)})
	}
	other := module.Classify(Message{GuildID: "g1", UserID: "u2", Content: "hello", At: base.Add(time.Second)})
	if other.IsSpam {
		t.Fatalf("one user's flood must not flag another, got %+v", other)
	}
}

package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Varietyz/banes-lab-bot/internal/pkg/platform"
)

func TestStripPrefix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{FormatOutbound("u1@x.com", "hello"), "hello"},
		{FormatOutbound("a@b.c", "  spaced"), "spaced"},
		{"plain text", "plain text"},
		{"**`not a prefix`** text", "**`not a prefix`** text"},
		{"hello " + FormatOutbound("u1@x.com", "x"), "hello " + FormatOutbound("u1@x.com", "x")},
	}
	for _, tt := range tests {
		if got := StripPrefix(tt.in); got != tt.want {
			t.Errorf("StripPrefix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatOutbound(t *testing.T) {
	got := FormatOutbound("u1@x.com", "hello")
	want := "**`🌐 u1@x.com`** hello"
	if got != want {
		t.Errorf("FormatOutbound = %q, want %q", got, want)
	}
}

func TestReplay_OrderAndSelfProjection(t *testing.T) {
	env := newTestEnv(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	env.platform.AddChannel("ch-9", "🌐-u1xcom")
	env.platform.SetHistory("ch-9", []platform.Message{
		{ID: "1", ChannelID: "ch-9", Author: platform.Author{ID: testSelfID, Username: "relay-bot", Bot: true}, Content: FormatOutbound("u1@x.com", "hi"), CreatedAt: base},
		{ID: "2", ChannelID: "ch-9", Author: platform.Author{ID: "staff", Username: "Alice"}, Content: "hello back", CreatedAt: base.Add(time.Minute)},
		{ID: "3", ChannelID: "ch-9", Author: platform.Author{ID: testSelfID, Username: "relay-bot", Bot: true}, Content: FormatOutbound("u1@x.com", "thanks"), CreatedAt: base.Add(2 * time.Minute)},
	})

	r := NewReplayer(env.platform, 50, time.RFC3339, time.UTC, zap.NewNop())
	got := r.Replay(context.Background(), "ch-9")

	want := []Message{
		{Author: SelfLabel, Content: "hi", Timestamp: "2024-05-01T12:00:00Z", ChannelID: "ch-9"},
		{Author: "Alice", Content: "hello back", Timestamp: "2024-05-01T12:01:00Z", ChannelID: "ch-9"},
		{Author: SelfLabel, Content: "thanks", Timestamp: "2024-05-01T12:02:00Z", ChannelID: "ch-9"},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestReplay_LimitKeepsNewest(t *testing.T) {
	env := newTestEnv(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	env.platform.AddChannel("ch-9", "x")
	var msgs []platform.Message
	for i := 0; i < 5; i++ {
		msgs = append(msgs, platform.Message{
			ID:        string(rune('a' + i)),
			Author:    platform.Author{ID: "staff", Username: "Alice"},
			Content:   string(rune('a' + i)),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	env.platform.SetHistory("ch-9", msgs)

	got := NewReplayer(env.platform, 2, time.RFC3339, time.UTC, zap.NewNop()).Replay(context.Background(), "ch-9")
	if len(got) != 2 || got[0].Content != "d" || got[1].Content != "e" {
		t.Errorf("got %+v, want the two newest oldest-first", got)
	}
}

func TestReplay_FailureYieldsEmpty(t *testing.T) {
	env := newTestEnv(t)
	env.platform.HistoryErr = errors.New("rate limited")

	got := NewReplayer(env.platform, 50, time.RFC3339, time.UTC, zap.NewNop()).Replay(context.Background(), "ch-9")
	if got == nil || len(got) != 0 {
		t.Errorf("got %#v, want empty non-nil slice", got)
	}
}

func TestFormatTimestamp_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if got := FormatTimestamp(ts, "15:04", loc); got != "14:00" {
		t.Errorf("FormatTimestamp = %q, want 14:00", got)
	}
}

package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Varietyz/banes-lab-bot/internal/models"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/platform"
)

func TestOutbound_FormatsWithSenderAddress(t *testing.T) {
	env := newTestEnv(t)
	seedIdentity(t, env.store, "u1", "u1@x.com")
	env.platform.AddChannel("ch-1", "🌐-u1xcom")

	used, err := env.relay.Outbound(context.Background(), "u1", "ch-1", "hello")
	if err != nil {
		t.Fatalf("Outbound: %v", err)
	}
	if used != "ch-1" {
		t.Errorf("channel = %q", used)
	}
	if len(env.platform.Sends) != 1 {
		t.Fatalf("sends = %d, want 1", len(env.platform.Sends))
	}
	if got := env.platform.Sends[0].Content; got != "**`🌐 u1@x.com`** hello" {
		t.Errorf("content = %q", got)
	}
}

func TestOutbound_SenderResolution(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.platform.AddChannel("ch-1", "x")
	if _, _, err := env.store.InsertBindingIfAbsent(ctx, models.ChannelBinding{
		IdentityID: "gone", ContactAddress: "bound@x.com", ChannelID: "ch-1", CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed binding: %v", err)
	}

	if _, err := env.relay.Outbound(ctx, "gone", "ch-1", "a"); err != nil {
		t.Fatalf("Outbound: %v", err)
	}
	if _, err := env.relay.Outbound(ctx, "", "fallback", "b"); err != nil {
		t.Fatalf("Outbound: %v", err)
	}

	want := []string{FormatOutbound("bound@x.com", "a"), FormatOutbound(UnknownSender, "b")}
	for i, w := range want {
		if got := env.platform.Sends[i].Content; got != w {
			t.Errorf("send[%d] = %q, want %q", i, got, w)
		}
	}
}

func TestOutbound_FallbackChannel(t *testing.T) {
	env := newTestEnv(t)
	seedIdentity(t, env.store, "u1", "u1@x.com")

	used, err := env.relay.Outbound(context.Background(), "u1", "", "hi")
	if err != nil {
		t.Fatalf("Outbound: %v", err)
	}
	if used != "fallback" || env.platform.Sends[0].ChannelID != "fallback" {
		t.Errorf("used %q, sends %+v", used, env.platform.Sends)
	}
}

func TestOutbound_Failures(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		setup   func(env *testEnv)
		reason  string
	}{
		{
			name:    "channel deleted",
			channel: "ch-deleted",
			reason:  ReasonChannelNotFound,
		},
		{
			name:    "no channel and no fallback",
			channel: "",
			setup: func(env *testEnv) {
				env.relay.opts.FallbackChannelID = ""
			},
			reason: ReasonChannelNotFound,
		},
		{
			name:    "send rejected",
			channel: "fallback",
			setup: func(env *testEnv) {
				env.platform.SendErr = errors.New("503")
			},
			reason: ReasonSendFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.setup != nil {
				tt.setup(env)
			}
			_, err := env.relay.Outbound(context.Background(), "u1", tt.channel, "hi")
			var rf *RelayFailure
			if !errors.As(err, &rf) {
				t.Fatalf("err = %v, want *RelayFailure", err)
			}
			if rf.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", rf.Reason, tt.reason)
			}
			if n := env.platform.SendCount(); n != 0 {
				t.Errorf("sends = %d, want 0", n)
			}
		})
	}
}

func TestInbound_FansOutToSubscribers(t *testing.T) {
	env := newTestEnv(t)
	a, b, other := newFakeConn("a"), newFakeConn("b"), newFakeConn("other")
	env.hub.Subscribe("ch-1", a)
	env.hub.Subscribe("ch-1", b)
	env.hub.Subscribe("ch-2", other)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	env.platform.Emit(platform.Message{
		ID:        "m1",
		ChannelID: "ch-1",
		Author:    platform.Author{ID: "staff", Username: "Alice"},
		Content:   "hello there",
		CreatedAt: at,
	})

	want := Message{Author: "Alice", Content: "hello there", Timestamp: "2024-05-01T12:00:00Z", ChannelID: "ch-1"}
	for _, c := range []*fakeConn{a, b} {
		events := c.all()
		if len(events) != 1 || events[0].Event != EventMessage {
			t.Fatalf("%s events = %+v", c.id, events)
		}
		if got := events[0].Payload.(Message); got != want {
			t.Errorf("%s payload = %+v, want %+v", c.id, got, want)
		}
	}
	if n := len(other.all()); n != 0 {
		t.Errorf("other channel received %d events", n)
	}
}

func TestInbound_Filters(t *testing.T) {
	tests := []struct {
		name string
		msg  platform.Message
	}{
		{"bot author", platform.Message{ChannelID: "ch-1", Author: platform.Author{ID: "b", Username: "SomeBot", Bot: true}, Content: "x"}},
		{"own message", platform.Message{ChannelID: "ch-1", Author: platform.Author{ID: testSelfID, Username: "relay"}, Content: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			c := newFakeConn("a")
			env.hub.Subscribe("ch-1", c)
			env.platform.Emit(tt.msg)
			if n := len(c.all()); n != 0 {
				t.Errorf("events = %d, want 0", n)
			}
		})
	}
}

func TestInbound_ReportGoesToSinkOnly(t *testing.T) {
	env := newTestEnv(t)
	c := newFakeConn("a")
	env.hub.Subscribe("reports", c)

	report := platform.Message{
		ChannelID: "reports",
		WebhookID: "wh-1",
		Author:    platform.Author{ID: "wh-1", Username: "smartd", Bot: true},
		Embeds:    []platform.Embed{{Title: "SMART Report", Fields: []platform.EmbedField{{Name: "Temperature", Value: "41 C"}}}},
	}
	env.platform.Emit(report)
	if n := env.sink.len(); n != 1 {
		t.Errorf("sink received %d, want 1", n)
	}
	if n := len(c.all()); n != 0 {
		t.Errorf("report was broadcast to %d events", n)
	}

	// wrong title is not a report; it is a bot message, so it is dropped too
	report.Embeds[0].Title = "Something else"
	env.platform.Emit(report)
	if n := env.sink.len(); n != 1 {
		t.Errorf("sink received %d, want still 1", n)
	}
}

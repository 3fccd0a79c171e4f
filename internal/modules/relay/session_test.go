package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Varietyz/banes-lab-bot/internal/models"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/platform"
)

func bindSession(t *testing.T, env *testEnv, connID, token string) (*Session, *fakeConn) {
	t.Helper()
	conn := newFakeConn(connID)
	s := env.svc.Open(conn)
	s.Authenticate(token)
	conn.waitFor(t, EventHistoricalMessages)
	eventually(t, "relaying state", func() bool { return s.State() == StateRelaying })
	return s, conn
}

func TestSession_ConnectAuthenticateAndSend(t *testing.T) {
	env := newTestEnv(t)
	seedIdentity(t, env.store, "u1", "u1@x.com")
	tok := env.token(t, "u1", "u1@x.com", time.Hour)

	s, conn := bindSession(t, env, "c1", tok)

	events := conn.all()
	if events[0].Event != EventServerInfo {
		t.Fatalf("first event = %q, want serverInfo", events[0].Event)
	}
	if info := events[0].Payload.(ServerInfo); info.Version != testVersion {
		t.Errorf("version = %q", info.Version)
	}
	history := conn.waitFor(t, EventHistoricalMessages).Payload.([]Message)
	if len(history) != 0 {
		t.Errorf("history = %+v, want empty for a new channel", history)
	}

	channelID := s.ChannelID()
	if channelID == "" || !env.platform.HasChannel(channelID) {
		t.Fatalf("bound channel %q does not exist", channelID)
	}
	if s.Principal().IdentityID != "u1" {
		t.Errorf("principal = %+v", s.Principal())
	}

	s.SendMessage("hello")
	eventually(t, "outbound send", func() bool { return env.platform.SendCount() == 1 })
	if got := env.platform.Sends[0]; got.ChannelID != channelID || got.Content != "**`🌐 u1@x.com`** hello" {
		t.Errorf("sent %+v", got)
	}
}

func TestSession_ReconnectReusesChannelAndReplaysHistory(t *testing.T) {
	env := newTestEnv(t)
	seedIdentity(t, env.store, "u1", "u1@x.com")
	tok := env.token(t, "u1", "u1@x.com", time.Hour)

	first, _ := bindSession(t, env, "c1", tok)
	first.SendMessage("hello")
	eventually(t, "outbound send", func() bool { return env.platform.SendCount() == 1 })
	channelID := first.ChannelID()
	env.platform.SetHistory(channelID, []platform.Message{{
		ID:        "m1",
		ChannelID: channelID,
		Author:    platform.Author{ID: testSelfID, Username: "relay", Bot: true},
		Content:   env.platform.Sends[0].Content,
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}})
	first.Close()

	second, conn := bindSession(t, env, "c2", tok)
	if second.ChannelID() != channelID {
		t.Errorf("channel = %q, want %q", second.ChannelID(), channelID)
	}
	if n := env.platform.CreateCount(); n != 1 {
		t.Errorf("channels created = %d, want 1", n)
	}
	history := conn.waitFor(t, EventHistoricalMessages).Payload.([]Message)
	if len(history) != 1 || history[0].Author != SelfLabel || history[0].Content != "hello" {
		t.Errorf("history = %+v", history)
	}
	if n, _ := env.store.CountSessions(context.Background(), "u1"); n != 1 {
		t.Errorf("sessions = %d, want 1", n)
	}
}

func TestSession_TerminalFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, env *testEnv) string
		event   string
		message string
	}{
		{
			name: "expired token",
			setup: func(t *testing.T, env *testEnv) string {
				seedIdentity(t, env.store, "u1", "u1@x.com")
				return env.token(t, "u1", "u1@x.com", -time.Minute)
			},
			event:   EventTokenExpired,
			message: msgInvalidToken,
		},
		{
			name: "session ledger unavailable",
			setup: func(t *testing.T, env *testEnv) string {
				seedIdentity(t, env.store, "u1", "u1@x.com")
				if err := env.store.DB().Migrator().DropTable(&models.Session{}); err != nil {
					t.Fatalf("drop sessions: %v", err)
				}
				return env.token(t, "u1", "u1@x.com", time.Hour)
			},
			event:   EventServiceUnavailable,
			message: msgUnavailable,
		},
		{
			name: "unknown identity",
			setup: func(t *testing.T, env *testEnv) string {
				return env.token(t, "ghost", "ghost@x.com", time.Hour)
			},
			event:   EventUserNotFound,
			message: msgUserNotFound,
		},
		{
			name: "provisioning fails",
			setup: func(t *testing.T, env *testEnv) string {
				seedIdentity(t, env.store, "u1", "u1@x.com")
				env.platform.CreateErr = errors.New("missing access")
				return env.token(t, "u1", "u1@x.com", time.Hour)
			},
			event:   EventChannelNotFound,
			message: msgChannelNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			tok := tt.setup(t, env)
			conn := newFakeConn("c1")
			s := env.svc.Open(conn)
			s.Authenticate(tok)

			got := conn.waitFor(t, tt.event)
			if tt.event != EventTokenExpired && conn.count(EventTokenExpired) != 0 {
				t.Error("tokenExpired must be reserved for credential failures")
			}
			if n := got.Payload.(Notice); n.Message != tt.message {
				t.Errorf("notice = %q, want %q", n.Message, tt.message)
			}
			eventually(t, "session closed", func() bool { return s.State() == StateClosed })
			if !conn.isClosed() {
				t.Error("transport should be disconnected")
			}
			if conn.count(EventHistoricalMessages) != 0 {
				t.Error("no history should be sent")
			}
			if env.svc.Len() != 0 {
				t.Errorf("open sessions = %d", env.svc.Len())
			}
		})
	}
}

func TestSession_NoTokenTimesOut(t *testing.T) {
	env := newTestEnv(t)
	conn := newFakeConn("c1")
	s := env.svc.Open(conn)
	s.AwaitToken(10 * time.Millisecond)

	got := conn.waitFor(t, EventTokenExpired).Payload.(Notice)
	if got.Message != msgNoToken {
		t.Errorf("notice = %q", got.Message)
	}
	eventually(t, "closed", func() bool { return s.State() == StateClosed && conn.isClosed() })
}

func TestSession_AwaitTokenIgnoredOnceAuthenticated(t *testing.T) {
	env := newTestEnv(t)
	seedIdentity(t, env.store, "u1", "u1@x.com")
	s, conn := bindSession(t, env, "c1", env.token(t, "u1", "u1@x.com", time.Hour))
	s.AwaitToken(time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if conn.count(EventTokenExpired) != 0 || s.State() != StateRelaying {
		t.Errorf("state = %s, events = %+v", s.State(), conn.all())
	}
}

func TestSession_IgnoresOutOfOrderEvents(t *testing.T) {
	env := newTestEnv(t)
	seedIdentity(t, env.store, "u1", "u1@x.com")
	tok := env.token(t, "u1", "u1@x.com", time.Hour)

	conn := newFakeConn("c1")
	s := env.svc.Open(conn)
	s.SendMessage("too early")
	s.Authenticate(tok)
	s.Authenticate(tok)
	conn.waitFor(t, EventHistoricalMessages)
	s.SendMessage("   ")
	s.SendMessage("ok")
	eventually(t, "one send", func() bool { return env.platform.SendCount() == 1 })

	if n := conn.count(EventHistoricalMessages); n != 1 {
		t.Errorf("historicalMessages sent %d times", n)
	}
	if got := env.platform.Sends[0].Content; got != FormatOutbound("u1@x.com", "ok") {
		t.Errorf("sent %q", got)
	}
}

func TestSession_DeletedChannelNotifiesAndStaysOpen(t *testing.T) {
	env := newTestEnv(t)
	seedIdentity(t, env.store, "u1", "u1@x.com")
	s, conn := bindSession(t, env, "c1", env.token(t, "u1", "u1@x.com", time.Hour))

	if err := env.platform.DeleteChannel(context.Background(), s.ChannelID(), "test"); err != nil {
		t.Fatalf("DeleteChannel: %v", err)
	}
	s.SendMessage("anyone?")
	got := conn.waitFor(t, EventChannelNotFound).Payload.(Notice)
	if got.Message != msgChannelNotFound {
		t.Errorf("notice = %q", got.Message)
	}
	if s.State() != StateRelaying || conn.isClosed() {
		t.Errorf("state = %s closed = %v, want still relaying", s.State(), conn.isClosed())
	}

	env.platform.SendErr = errors.New("503")
	env.platform.AddChannel(s.ChannelID(), "back")
	s.SendMessage("retry")
	conn.waitFor(t, EventSendFailed)
}

func TestSession_InboundReachesEveryConnection(t *testing.T) {
	env := newTestEnv(t)
	seedIdentity(t, env.store, "u1", "u1@x.com")
	tok := env.token(t, "u1", "u1@x.com", time.Hour)
	a, connA := bindSession(t, env, "a", tok)
	_, connB := bindSession(t, env, "b", tok)

	env.platform.Emit(platform.Message{
		ChannelID: a.ChannelID(),
		Author:    platform.Author{ID: "staff", Username: "Alice"},
		Content:   "hi both",
		CreatedAt: time.Now(),
	})
	for _, c := range []*fakeConn{connA, connB} {
		msg := c.waitFor(t, EventMessage).Payload.(Message)
		if msg.Content != "hi both" || msg.Author != "Alice" {
			t.Errorf("%s got %+v", c.id, msg)
		}
	}
}

func TestSession_CloseUnsubscribes(t *testing.T) {
	env := newTestEnv(t)
	seedIdentity(t, env.store, "u1", "u1@x.com")
	s, _ := bindSession(t, env, "c1", env.token(t, "u1", "u1@x.com", time.Hour))
	channelID := s.ChannelID()
	if env.hub.subscribers(channelID) != 1 {
		t.Fatalf("subscribers = %d", env.hub.subscribers(channelID))
	}

	s.Close()
	s.Close()
	<-s.Done()
	if n := env.hub.subscribers(channelID); n != 0 {
		t.Errorf("subscribers after close = %d", n)
	}
	if env.svc.Len() != 0 {
		t.Errorf("open sessions = %d", env.svc.Len())
	}
	if s.State() != StateClosed {
		t.Errorf("state = %s", s.State())
	}
}

package relay

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Varietyz/banes-lab-bot/internal/models"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/jwt"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/metrics"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/platform"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/platform/platformtest"
	"github.com/Varietyz/banes-lab-bot/internal/store"
)

const (
	testSelfID  = "bot-self"
	testVersion = "1.2.3"
)

type emitted struct {
	Event   string
	Payload any
}

type fakeConn struct {
	id string

	mu     sync.Mutex
	events []emitted
	closed bool
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Emit(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, emitted{Event: event, Payload: payload})
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) all() []emitted {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]emitted(nil), c.events...)
}

func (c *fakeConn) count(event string) int {
	n := 0
	for _, e := range c.all() {
		if e.Event == event {
			n++
		}
	}
	return n
}

func (c *fakeConn) waitFor(t *testing.T, event string) emitted {
	t.Helper()
	var found emitted
	eventually(t, "event "+event, func() bool {
		for _, e := range c.all() {
			if e.Event == event {
				found = e
				return true
			}
		}
		return false
	})
	return found
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type memHub struct {
	mu   sync.Mutex
	subs map[string]map[string]Conn
}

func newMemHub() *memHub { return &memHub{subs: make(map[string]map[string]Conn)} }

func (h *memHub) Subscribe(channelID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[channelID] == nil {
		h.subs[channelID] = make(map[string]Conn)
	}
	h.subs[channelID][conn.ID()] = conn
}

func (h *memHub) Unsubscribe(channelID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[channelID], conn.ID())
	if len(h.subs[channelID]) == 0 {
		delete(h.subs, channelID)
	}
}

func (h *memHub) Broadcast(channelID, event string, payload any) int {
	h.mu.Lock()
	conns := make([]Conn, 0, len(h.subs[channelID]))
	for _, c := range h.subs[channelID] {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		_ = c.Emit(event, payload)
	}
	return len(conns)
}

func (h *memHub) subscribers(channelID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[channelID])
}

type recordingSink struct {
	mu   sync.Mutex
	msgs []platform.Message
}

func (s *recordingSink) HandleReport(_ context.Context, msg platform.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *recordingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:relay_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&models.Identity{}, &models.Session{}, &models.ChannelBinding{}, &models.DiskReport{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.New(db)
}

func seedIdentity(t *testing.T, st *store.Store, id, address string) {
	t.Helper()
	_, err := st.EnsureIdentity(context.Background(), models.Identity{
		Base:           models.Base{ID: id},
		Handle:         id,
		ContactAddress: address,
		ProvenanceHash: "prov-" + id,
	})
	if err != nil {
		t.Fatalf("seed identity %s: %v", id, err)
	}
}

type testEnv struct {
	store    *store.Store
	platform *platformtest.Fake
	hub      *memHub
	signer   *jwt.Signer
	sink     *recordingSink
	relay    *Relay
	svc      *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := newTestStore(t)
	fake := platformtest.New(testSelfID)
	fake.AddChannel("fallback", "general")
	fake.AddChannel("reports", "disk-reports")

	signer, err := jwt.NewSigner("test-secret")
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	hub := newMemHub()
	sink := &recordingSink{}
	log := zap.NewNop()
	rec := metrics.Nop{}

	auth := NewAuthenticator(signer, st, st, time.Hour, log, rec)
	binder := NewBinder(st, st, NewProvisioner(fake), NewLocalLocker(), hub, log, rec)
	replayer := NewReplayer(fake, 50, time.RFC3339, time.UTC, log)
	relay := NewRelay(fake, st, st, hub, sink, RelayOptions{
		FallbackChannelID: "fallback",
		ReportChannelID:   "reports",
		ReportTitle:       "SMART Report",
		TimestampLayout:   time.RFC3339,
		Location:          time.UTC,
	}, log, rec)
	fake.OnMessage(relay.Inbound)

	env := &testEnv{
		store:    st,
		platform: fake,
		hub:      hub,
		signer:   signer,
		sink:     sink,
		relay:    relay,
		svc:      NewService(auth, binder, replayer, relay, hub, testVersion, log, rec),
	}
	t.Cleanup(env.svc.Shutdown)
	return env
}

func (e *testEnv) token(t *testing.T, id, email string, ttl time.Duration) string {
	t.Helper()
	tok, err := e.signer.Sign(id, id, email, ttl)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return tok
}

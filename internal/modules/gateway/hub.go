package gateway

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"

	pkgredis "github.com/Varietyz/banes-lab-bot/internal/pkg/redis"
	"github.com/Varietyz/banes-lab-bot/internal/modules/relay"
)

// NewHub creates the socket.io server. rc may be nil; it is only used for the
// daily peak connection counter.
func NewHub(rc *pkgredis.Client, logger *zap.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[string]relay.Conn),
		conns:  make(map[string]struct{}),
		rc:     rc,
		logger: logger.Named("Gateway"),
		sio:    socketio.NewServer(nil, nil),
	}
}

func (h *Hub) Subscribe(channelID string, conn relay.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[channelID]
	if !ok {
		set = make(map[string]relay.Conn)
		h.subs[channelID] = set
	}
	set[conn.ID()] = conn
}

func (h *Hub) Unsubscribe(channelID string, conn relay.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[channelID]
	if !ok {
		return
	}
	delete(set, conn.ID())
	if len(set) == 0 {
		delete(h.subs, channelID)
	}
}

// Broadcast emits to a snapshot of the channel's subscribers. A failed emit
// to one connection does not stop delivery to the rest.
func (h *Hub) Broadcast(channelID, event string, payload any) int {
	h.mu.RLock()
	targets := make([]relay.Conn, 0, len(h.subs[channelID]))
	for _, c := range h.subs[channelID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Emit(event, payload); err != nil {
			h.logger.Warn("broadcast emit failed", zap.String("conn_id", c.ID()), zap.String("event", event), zap.Error(err))
		}
	}
	return len(targets)
}

func (h *Hub) register(connID string) {
	h.mu.Lock()
	h.conns[connID] = struct{}{}
	current := len(h.conns)
	h.mu.Unlock()
	h.updatePeak(current)
}

func (h *Hub) unregister(connID string) {
	h.mu.Lock()
	delete(h.conns, connID)
	h.mu.Unlock()
}

// Stats returns the live connection and channel counts.
func (h *Hub) Stats(ctx context.Context) Stats {
	h.mu.RLock()
	s := Stats{Connections: len(h.conns), Channels: len(h.subs)}
	h.mu.RUnlock()

	if h.rc != nil {
		v, err := h.rc.Raw().HGet(ctx, h.rc.Key(redisKeyPeakConnections), shortDateKey(time.Now())).Result()
		if err == nil {
			s.PeakToday, _ = strconv.Atoi(strings.TrimSpace(v))
		}
	}
	return s
}

func (h *Hub) updatePeak(current int) {
	if h.rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := h.rc.Key(redisKeyPeakConnections)
	dateKey := shortDateKey(time.Now())

	peak := 0
	v, err := h.rc.Raw().HGet(ctx, key, dateKey).Result()
	switch {
	case err == nil:
		if parsed, parseErr := strconv.Atoi(strings.TrimSpace(v)); parseErr == nil {
			peak = parsed
		}
	case err == redis.Nil:
	default:
		h.logger.Warn("get peak connections failed", zap.Error(err))
		return
	}

	if current > peak {
		if err := h.rc.Raw().HSet(ctx, key, dateKey, current).Err(); err != nil {
			h.logger.Warn("set peak connections failed", zap.Error(err))
		}
	}
}

func shortDateKey(t time.Time) string {
	return t.Format("1-2-06")
}

// Handler returns the socket.io HTTP handler mounted at /socket.io.
func (h *Hub) Handler() http.Handler {
	return h.sio.ServeHandler(nil)
}

// Close disconnects every client and stops the socket.io server.
func (h *Hub) Close() {
	h.sio.Close(nil)
}

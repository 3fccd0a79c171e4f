package gateway

import (
	"sync"

	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"

	pkgredis "github.com/Varietyz/banes-lab-bot/internal/pkg/redis"
	"github.com/Varietyz/banes-lab-bot/internal/modules/relay"
)

const (
	namespaceDefault = "/"

	redisKeyPeakConnections = "gateway:peak_connections"
)

// Stats is the snapshot served by /api/gateway/stats.
type Stats struct {
	Connections int `json:"connections"`
	Channels    int `json:"channels"`
	PeakToday   int `json:"peakToday,omitempty"`
}

// Hub owns the socket.io server and routes channel traffic to subscribed
// connections.
type Hub struct {
	mu sync.RWMutex

	// channel id -> conn id -> conn
	subs  map[string]map[string]relay.Conn
	conns map[string]struct{}

	rc     *pkgredis.Client
	logger *zap.Logger
	sio    *socketio.Server
}

package relay

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Varietyz/banes-lab-bot/internal/pkg/metrics"
)

// Service holds the relay components and the live sessions.
type Service struct {
	auth     *Authenticator
	binder   *Binder
	replayer *Replayer
	relay    *Relay
	hub      Hub
	version  string
	logger   *zap.Logger
	metrics  metrics.Recorder

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewService wires the per-connection pipeline. version is reported to every
// client in serverInfo.
func NewService(auth *Authenticator, binder *Binder, replayer *Replayer, relay *Relay, hub Hub, version string, logger *zap.Logger, rec metrics.Recorder) *Service {
	return &Service{
		auth:     auth,
		binder:   binder,
		replayer: replayer,
		relay:    relay,
		hub:      hub,
		version:  version,
		logger:   logger.Named("Session"),
		metrics:  rec,
		sessions: make(map[string]*Session),
	}
}

// Open starts a session for a new connection and sends serverInfo.
func (svc *Service) Open(conn Conn) *Session {
	s := newSession(svc, conn)

	svc.mu.Lock()
	svc.sessions[conn.ID()] = s
	svc.mu.Unlock()
	svc.metrics.ConnectionOpened()

	s.emit(EventServerInfo, ServerInfo{Version: svc.version})
	svc.logger.Info("connection opened", zap.String("conn_id", conn.ID()), zap.String("version", svc.version))
	go s.run()
	return s
}

func (svc *Service) remove(s *Session) {
	svc.mu.Lock()
	if cur, ok := svc.sessions[s.conn.ID()]; ok && cur == s {
		delete(svc.sessions, s.conn.ID())
	}
	svc.mu.Unlock()
	svc.metrics.ConnectionClosed()
}

// Len returns the number of open sessions.
func (svc *Service) Len() int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return len(svc.sessions)
}

// Relay exposes the message relay for platform event registration.
func (svc *Service) Relay() *Relay { return svc.relay }

// Shutdown closes every open session.
func (svc *Service) Shutdown() {
	svc.mu.Lock()
	open := make([]*Session, 0, len(svc.sessions))
	for _, s := range svc.sessions {
		open = append(open, s)
	}
	svc.mu.Unlock()

	for _, s := range open {
		s.Close()
	}
}

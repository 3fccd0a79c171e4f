package relay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// EventSendFailed tells the client a message could not be delivered.
	EventSendFailed = "sendFailed"
	// EventServiceUnavailable tells the client the relay could not record its
	// session; the token itself may be fine.
	EventServiceUnavailable = "serviceUnavailable"
)

const opQueueSize = 64

const (
	msgNoToken         = "No token provided, please log in again."
	msgInvalidToken    = "Invalid or expired token, please log in again."
	msgUserNotFound    = "User not found"
	msgChannelNotFound = "Discord channel not found"
	msgSendFailed      = "Message could not be delivered, please retry."
	msgUnavailable     = "Service temporarily unavailable, please reconnect later."
)

// State is the lifecycle position of one connection.
type State int32

const (
	StateOpen State = iota
	StateAuthenticating
	StateBound
	StateRelaying
	StateAuthFailed
	StateBindFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateAuthenticating:
		return "authenticating"
	case StateBound:
		return "bound"
	case StateRelaying:
		return "relaying"
	case StateAuthFailed:
		return "auth_failed"
	case StateBindFailed:
		return "bind_failed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session drives one connection through authenticate, bind, replay and relay.
// Operations run one at a time on the session's own goroutine, in arrival
// order. Closing cancels whatever is in flight.
type Session struct {
	svc  *Service
	conn Conn

	ctx    context.Context
	cancel context.CancelFunc
	ops    chan func(context.Context)
	done   chan struct{}

	mu        sync.Mutex
	state     State
	principal Principal
	channelID string

	closeOnce sync.Once
}

func newSession(svc *Service, conn Conn) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		svc:    svc,
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
		ops:    make(chan func(context.Context), opQueueSize),
		done:   make(chan struct{}),
		state:  StateOpen,
	}
}

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case op := <-s.ops:
			op(s.ctx)
		}
	}
}

func (s *Session) enqueue(op func(context.Context)) {
	select {
	case <-s.ctx.Done():
	case s.ops <- op:
	default:
		s.svc.logger.Warn("session queue full, dropping operation", zap.String("conn_id", s.conn.ID()))
	}
}

// ID returns the connection id.
func (s *Session) ID() string { return s.conn.ID() }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Principal returns the authenticated identity, if any.
func (s *Session) Principal() Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.principal
}

// ChannelID returns the bound channel, if any.
func (s *Session) ChannelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelID
}

// Done is closed once the session goroutine has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) transition(from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	return true
}

func (s *Session) setState(to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	s.state = to
	return true
}

// Authenticate queues authentication with token. It is ignored unless the
// session is still unauthenticated.
func (s *Session) Authenticate(token string) {
	s.enqueue(func(ctx context.Context) { s.authenticate(ctx, token) })
}

// AwaitToken fails the session with tokenExpired if it has not started
// authenticating within timeout.
func (s *Session) AwaitToken(timeout time.Duration) {
	timer := time.AfterFunc(timeout, func() {
		s.enqueue(func(ctx context.Context) {
			if !s.transition(StateOpen, StateAuthFailed) {
				return
			}
			s.svc.metrics.RecordAuth("missing")
			s.svc.logger.Warn("connection not authenticated: no token", zap.String("conn_id", s.conn.ID()))
			s.fail(EventTokenExpired, msgNoToken)
		})
	})
	go func() {
		<-s.ctx.Done()
		timer.Stop()
	}()
}

// SendMessage queues an outbound message.
func (s *Session) SendMessage(content string) {
	s.enqueue(func(ctx context.Context) { s.send(ctx, content) })
}

func (s *Session) authenticate(ctx context.Context, token string) {
	if !s.transition(StateOpen, StateAuthenticating) {
		s.svc.logger.Debug("ignoring authenticate", zap.String("conn_id", s.conn.ID()), zap.Stringer("state", s.State()))
		return
	}

	principal, err := s.svc.auth.Authenticate(ctx, token)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		if !s.setState(StateAuthFailed) {
			return
		}
		var af *AuthFailure
		if errors.As(err, &af) {
			s.svc.logger.Warn("token verification failed", zap.String("conn_id", s.conn.ID()), zap.Error(err))
			s.fail(EventTokenExpired, msgInvalidToken)
			return
		}
		s.svc.logger.Error("session ledger unavailable", zap.String("conn_id", s.conn.ID()), zap.Error(err))
		s.fail(EventServiceUnavailable, msgUnavailable)
		return
	}
	s.mu.Lock()
	s.principal = principal
	s.mu.Unlock()
	s.svc.logger.Info("connection authenticated", zap.String("conn_id", s.conn.ID()), zap.String("identity_id", principal.IdentityID))

	channelID, err := s.svc.binder.Bind(ctx, s.conn, principal.IdentityID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.svc.logger.Error("channel bind failed", zap.String("conn_id", s.conn.ID()), zap.Error(err))
		if !s.setState(StateBindFailed) {
			return
		}
		var bf *BindFailure
		if errors.As(err, &bf) && bf.Reason == ReasonIdentityUnknown {
			s.fail(EventUserNotFound, msgUserNotFound)
			return
		}
		s.fail(EventChannelNotFound, msgChannelNotFound)
		return
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		s.svc.hub.Unsubscribe(channelID, s.conn)
		return
	}
	s.channelID = channelID
	s.state = StateBound
	s.mu.Unlock()
	s.svc.logger.Info("connection bound", zap.String("conn_id", s.conn.ID()), zap.String("channel_id", channelID))

	history := s.svc.replayer.Replay(ctx, channelID)
	if ctx.Err() != nil {
		return
	}
	s.emit(EventHistoricalMessages, history)
	s.transition(StateBound, StateRelaying)
}

func (s *Session) send(ctx context.Context, content string) {
	state := s.State()
	if state != StateBound && state != StateRelaying {
		s.svc.logger.Debug("dropping message from unbound connection", zap.String("conn_id", s.conn.ID()), zap.Stringer("state", state))
		return
	}
	if strings.TrimSpace(content) == "" {
		return
	}

	principal := s.Principal()
	_, err := s.svc.relay.Outbound(ctx, principal.IdentityID, s.ChannelID(), content)
	if err == nil || ctx.Err() != nil {
		return
	}
	var rf *RelayFailure
	if errors.As(err, &rf) && rf.Reason == ReasonChannelNotFound {
		s.emit(EventChannelNotFound, Notice{Message: msgChannelNotFound})
		return
	}
	s.emit(EventSendFailed, Notice{Message: msgSendFailed})
}

func (s *Session) emit(event string, payload any) {
	if err := s.conn.Emit(event, payload); err != nil {
		s.svc.logger.Warn("emit failed", zap.String("conn_id", s.conn.ID()), zap.String("event", event), zap.Error(err))
	}
}

// fail notifies the client and then disconnects it.
func (s *Session) fail(event, message string) {
	s.emit(event, Notice{Message: message})
	s.conn.Close()
	s.Close()
}

// Close ends the session, unsubscribes it and cancels in-flight work. Safe to
// call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		channelID := s.channelID
		s.mu.Unlock()

		s.cancel()
		if channelID != "" {
			s.svc.hub.Unsubscribe(channelID, s.conn)
		}
		s.svc.remove(s)
		s.svc.logger.Info("connection closed", zap.String("conn_id", s.conn.ID()))
	})
}

// Package relay binds realtime web connections to private platform channels
// and moves messages between them.
package relay

import (
	"context"
	"time"

	"github.com/Varietyz/banes-lab-bot/internal/models"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/jwt"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/platform"
)

// Client-facing event names.
const (
	EventServerInfo         = "serverInfo"
	EventAuthenticate       = "authenticate"
	EventSendMessage        = "sendMessage"
	EventHistoricalMessages = "historicalMessages"
	EventTokenExpired       = "tokenExpired"
	EventChannelNotFound    = "channelNotFound"
	EventUserNotFound       = "userNotFound"
	EventMessage            = "message"
)

// Message is the wire shape of one chat line.
type Message struct {
	Author    string `json:"author"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	ChannelID string `json:"channelId"`
}

// Notice is the payload of the failure events.
type Notice struct {
	Message string `json:"message"`
}

// ServerInfo is sent first on every connection.
type ServerInfo struct {
	Version string `json:"version"`
}

// Conn is one live transport session.
type Conn interface {
	ID() string
	Emit(event string, payload any) error
	// Close force-disconnects the transport.
	Close()
}

// Hub fans channel traffic out to subscribed connections.
type Hub interface {
	Subscribe(channelID string, conn Conn)
	Unsubscribe(channelID string, conn Conn)
	// Broadcast emits to every subscriber of channelID and returns how many
	// connections it reached.
	Broadcast(channelID, event string, payload any) int
}

// TokenVerifier checks a bearer token.
type TokenVerifier interface {
	Parse(token string) (*jwt.Claims, error)
}

// IdentityStore reads identities.
type IdentityStore interface {
	Identity(ctx context.Context, id string) (models.Identity, error)
}

// SessionLedger is the durable token ledger.
type SessionLedger interface {
	TouchSession(ctx context.Context, tokenHash, sessionID string, now time.Time) (bool, error)
	InsertSession(ctx context.Context, row models.Session) error
}

// ChannelDirectory maps identities to channels.
type ChannelDirectory interface {
	BindingByIdentity(ctx context.Context, identityID string) (models.ChannelBinding, error)
	BindingByChannel(ctx context.Context, channelID string) (models.ChannelBinding, error)
	InsertBindingIfAbsent(ctx context.Context, binding models.ChannelBinding) (models.ChannelBinding, bool, error)
}

// Locker serialises work on a key, possibly across processes.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// ReportSink receives structured report messages from the report channel.
type ReportSink interface {
	HandleReport(ctx context.Context, msg platform.Message)
}

// Principal is the authenticated identity attached to a connection.
type Principal struct {
	IdentityID string
	Handle     string
	Email      string
	SessionID  string
}

// Package platform is the boundary to the external chat platform. The relay
// only sees the Client interface; the discord adapter implements it.
package platform

import (
	"context"
	"errors"
	"time"
)

// ErrChannelNotFound is returned when a channel id does not resolve.
var ErrChannelNotFound = errors.New("platform: channel not found")

// Author identifies the poster of a platform message.
type Author struct {
	ID       string
	Username string
	Bot      bool
}

// EmbedField is one labelled value inside an embed.
type EmbedField struct {
	Name  string
	Value string
}

// Embed is the structured part of a message.
type Embed struct {
	Title  string
	Fields []EmbedField
}

// Message is a platform message projected to the fields the relay uses.
type Message struct {
	ID        string
	ChannelID string
	Author    Author
	WebhookID string
	Content   string
	CreatedAt time.Time
	Embeds    []Embed
}

// Client is what the relay needs from the chat platform.
type Client interface {
	// SelfID is the platform user id the relay posts as.
	SelfID() string
	// FetchChannel resolves a channel, returning ErrChannelNotFound if it is gone.
	FetchChannel(ctx context.Context, channelID string) error
	// CreatePrivateChannel creates a text channel hidden from everyone by default.
	CreatePrivateChannel(ctx context.Context, name, topic string) (string, error)
	// DeleteChannel removes a channel. A missing channel yields ErrChannelNotFound.
	DeleteChannel(ctx context.Context, channelID, reason string) error
	// Send posts content to a channel.
	Send(ctx context.Context, channelID, content string) error
	// RecentMessages returns up to limit messages, newest first.
	RecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error)
	// OnMessage registers a handler for newly created messages.
	OnMessage(handler func(Message))
}

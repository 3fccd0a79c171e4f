// Package platformtest provides an in-memory platform.Client for tests.
package platformtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/Varietyz/banes-lab-bot/internal/pkg/platform"
)

// Sent records one Send call.
type Sent struct {
	ChannelID string
	Content   string
}

// Fake is a concurrency-safe in-memory chat platform.
type Fake struct {
	mu       sync.Mutex
	self     string
	nextID   int
	channels map[string]string // id -> name
	history  map[string][]platform.Message
	handlers []func(platform.Message)

	Sends      []Sent
	Created    []string
	Deleted    []string
	Topics     map[string]string
	FetchErr   error
	SendErr    error
	CreateErr  error
	DeleteErr  error
	HistoryErr error
}

// New returns a Fake whose own user id is selfID.
func New(selfID string) *Fake {
	return &Fake{
		self:     selfID,
		channels: make(map[string]string),
		history:  make(map[string][]platform.Message),
		Topics:   make(map[string]string),
	}
}

// AddChannel registers an existing channel.
func (f *Fake) AddChannel(id, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[id] = name
}

// SetHistory stores messages for a channel, oldest first.
func (f *Fake) SetHistory(channelID string, msgs []platform.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history[channelID] = append([]platform.Message(nil), msgs...)
}

// Emit delivers a message to all registered handlers.
func (f *Fake) Emit(msg platform.Message) {
	f.mu.Lock()
	handlers := append([]func(platform.Message){}, f.handlers...)
	f.mu.Unlock()
	for _, h := range handlers {
		h(msg)
	}
}

// HasChannel reports whether id is a live channel.
func (f *Fake) HasChannel(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.channels[id]
	return ok
}

// SendCount returns the number of successful sends.
func (f *Fake) SendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sends)
}

// CreateCount returns the number of channels created.
func (f *Fake) CreateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Created)
}

func (f *Fake) SelfID() string { return f.self }

func (f *Fake) FetchChannel(ctx context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FetchErr != nil {
		return f.FetchErr
	}
	if _, ok := f.channels[channelID]; !ok {
		return fmt.Errorf("fetch %s: %w", channelID, platform.ErrChannelNotFound)
	}
	return nil
}

func (f *Fake) CreatePrivateChannel(ctx context.Context, name, topic string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	f.nextID++
	id := fmt.Sprintf("ch-%d", f.nextID)
	f.channels[id] = name
	f.Topics[id] = topic
	f.Created = append(f.Created, id)
	return id, nil
}

func (f *Fake) DeleteChannel(ctx context.Context, channelID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	if _, ok := f.channels[channelID]; !ok {
		return fmt.Errorf("delete %s: %w", channelID, platform.ErrChannelNotFound)
	}
	delete(f.channels, channelID)
	delete(f.history, channelID)
	f.Deleted = append(f.Deleted, channelID)
	return nil
}

func (f *Fake) Send(ctx context.Context, channelID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return f.SendErr
	}
	if _, ok := f.channels[channelID]; !ok {
		return fmt.Errorf("send %s: %w", channelID, platform.ErrChannelNotFound)
	}
	f.Sends = append(f.Sends, Sent{ChannelID: channelID, Content: content})
	return nil
}

func (f *Fake) RecentMessages(ctx context.Context, channelID string, limit int) ([]platform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.HistoryErr != nil {
		return nil, f.HistoryErr
	}
	if _, ok := f.channels[channelID]; !ok {
		return nil, fmt.Errorf("history %s: %w", channelID, platform.ErrChannelNotFound)
	}
	stored := f.history[channelID]
	out := make([]platform.Message, 0, limit)
	for i := len(stored) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, stored[i])
	}
	return out, nil
}

func (f *Fake) OnMessage(handler func(platform.Message)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, handler)
}

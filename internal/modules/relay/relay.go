package relay

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Varietyz/banes-lab-bot/internal/pkg/metrics"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/platform"
	"github.com/Varietyz/banes-lab-bot/internal/store"
)

// UnknownSender is used when no contact address can be resolved.
const UnknownSender = "unknown@user"

const reportTimeout = 10 * time.Second

// RelayOptions configures a Relay.
type RelayOptions struct {
	FallbackChannelID string
	ReportChannelID   string
	ReportTitle       string
	TimestampLayout   string
	Location          *time.Location
}

// Relay forwards messages between connections and platform channels.
type Relay struct {
	platform   platform.Client
	identities IdentityStore
	directory  ChannelDirectory
	hub        Hub
	sink       ReportSink
	opts       RelayOptions
	logger     *zap.Logger
	metrics    metrics.Recorder
}

// NewRelay wires a Relay. sink may be nil when no report channel is used.
func NewRelay(client platform.Client, identities IdentityStore, directory ChannelDirectory, hub Hub, sink ReportSink, opts RelayOptions, logger *zap.Logger, rec metrics.Recorder) *Relay {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Relay{
		platform:   client,
		identities: identities,
		directory:  directory,
		hub:        hub,
		sink:       sink,
		opts:       opts,
		logger:     logger.Named("Relay"),
		metrics:    rec,
	}
}

// Outbound sends content from a connection to its channel, or to the
// fallback channel when the connection has none. It returns the channel used.
func (r *Relay) Outbound(ctx context.Context, identityID, channelID, content string) (string, error) {
	target := channelID
	if target == "" {
		target = r.opts.FallbackChannelID
		r.logger.Warn("falling back to default channel", zap.String("identity_id", identityID), zap.String("channel_id", target))
	}
	if target == "" {
		r.metrics.RecordRelay("outbound", ReasonChannelNotFound)
		return "", &RelayFailure{Reason: ReasonChannelNotFound, Err: platform.ErrChannelNotFound}
	}

	address := r.senderAddress(ctx, identityID, target)

	if err := r.platform.FetchChannel(ctx, target); err != nil {
		return target, r.relayErr(target, err)
	}
	if err := r.platform.Send(ctx, target, FormatOutbound(address, content)); err != nil {
		return target, r.relayErr(target, err)
	}

	r.metrics.RecordRelay("outbound", "sent")
	r.logger.Info("message relayed to platform", zap.String("sender", address), zap.String("channel_id", target))
	return target, nil
}

func (r *Relay) relayErr(channelID string, err error) error {
	reason := ReasonSendFailed
	if errors.Is(err, platform.ErrChannelNotFound) {
		reason = ReasonChannelNotFound
	}
	r.metrics.RecordRelay("outbound", reason)
	r.logger.Error("failed to relay message", zap.String("channel_id", channelID), zap.String("reason", reason), zap.Error(err))
	return &RelayFailure{Reason: reason, Err: err}
}

// senderAddress resolves the identity's address, then the address bound to
// the channel, then UnknownSender.
func (r *Relay) senderAddress(ctx context.Context, identityID, channelID string) string {
	if identityID != "" {
		identity, err := r.identities.Identity(ctx, identityID)
		switch {
		case err == nil && identity.ContactAddress != "":
			return identity.ContactAddress
		case err != nil && !errors.Is(err, store.ErrNotFound):
			r.logger.Error("failed to load sender identity", zap.String("identity_id", identityID), zap.Error(err))
		}
	}

	binding, err := r.directory.BindingByChannel(ctx, channelID)
	switch {
	case err == nil && binding.ContactAddress != "":
		return binding.ContactAddress
	case err != nil && !errors.Is(err, store.ErrNotFound):
		r.logger.Error("failed to load channel binding", zap.String("channel_id", channelID), zap.Error(err))
	}
	return UnknownSender
}

// Inbound handles a message created on the platform. Structured reports from
// the report channel go to the sink; other messages from people are fanned
// out to every connection subscribed to the channel. Bot and own messages are
// dropped.
func (r *Relay) Inbound(msg platform.Message) {
	if r.isReport(msg) {
		if r.sink != nil {
			ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
			defer cancel()
			r.sink.HandleReport(ctx, msg)
		}
		return
	}

	if msg.Author.Bot || msg.Author.ID == r.platform.SelfID() {
		return
	}

	n := r.hub.Broadcast(msg.ChannelID, EventMessage, Message{
		Author:    msg.Author.Username,
		Content:   msg.Content,
		Timestamp: FormatTimestamp(msg.CreatedAt, r.opts.TimestampLayout, r.opts.Location),
		ChannelID: msg.ChannelID,
	})
	r.metrics.RecordRelay("inbound", "delivered")
	r.logger.Debug("platform message fanned out",
		zap.String("channel_id", msg.ChannelID),
		zap.String("author", msg.Author.Username),
		zap.Int("connections", n),
	)
}

func (r *Relay) isReport(msg platform.Message) bool {
	if r.opts.ReportChannelID == "" || msg.ChannelID != r.opts.ReportChannelID {
		return false
	}
	if msg.WebhookID == "" || len(msg.Embeds) == 0 {
		return false
	}
	return strings.TrimSpace(msg.Embeds[0].Title) == r.opts.ReportTitle
}

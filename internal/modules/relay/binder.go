package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/Varietyz/banes-lab-bot/internal/models"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/metrics"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/platform"
	"github.com/Varietyz/banes-lab-bot/internal/store"
)

const (
	channelNamePrefix = "🌐-"
	provisionLockTTL  = 30 * time.Second
)

// ChannelName derives the platform channel name for a contact address:
// the address lower-cased with everything but letters and digits removed.
func ChannelName(address string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(address) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return channelNamePrefix + b.String()
}

// Provisioner creates private platform channels.
type Provisioner struct {
	platform platform.Client
}

// NewProvisioner returns a Provisioner over client.
func NewProvisioner(client platform.Client) *Provisioner {
	return &Provisioner{platform: client}
}

// Provision creates the channel for identity, hidden from everyone by default.
func (p *Provisioner) Provision(ctx context.Context, identity models.Identity) (string, error) {
	name := ChannelName(identity.ContactAddress)
	topic := "Private channel for " + identity.ContactAddress
	return p.platform.CreatePrivateChannel(ctx, name, topic)
}

// Discard removes a channel created by a provisioning attempt that lost.
func (p *Provisioner) Discard(ctx context.Context, channelID string) error {
	err := p.platform.DeleteChannel(ctx, channelID, "duplicate provisioning")
	if errors.Is(err, platform.ErrChannelNotFound) {
		return nil
	}
	return err
}

// Binder resolves or provisions the channel for an identity.
type Binder struct {
	directory   ChannelDirectory
	identities  IdentityStore
	provisioner *Provisioner
	locker      Locker
	hub         Hub
	logger      *zap.Logger
	metrics     metrics.Recorder
}

// NewBinder wires a Binder.
func NewBinder(directory ChannelDirectory, identities IdentityStore, provisioner *Provisioner, locker Locker, hub Hub, logger *zap.Logger, rec metrics.Recorder) *Binder {
	return &Binder{
		directory:   directory,
		identities:  identities,
		provisioner: provisioner,
		locker:      locker,
		hub:         hub,
		logger:      logger.Named("Binder"),
		metrics:     rec,
	}
}

// Bind returns the identity's channel, provisioning it when the directory has
// none, and subscribes conn to it. At most one channel per identity is kept:
// provisioning runs under a per-identity lock and the directory insert is
// insert-if-absent, so a losing attempt discards its channel.
func (b *Binder) Bind(ctx context.Context, conn Conn, identityID string) (string, error) {
	channelID, err := b.resolve(ctx, identityID)
	if err != nil {
		var bf *BindFailure
		if errors.As(err, &bf) {
			b.metrics.RecordBind(bf.Reason)
		}
		return "", err
	}
	b.hub.Subscribe(channelID, conn)
	return channelID, nil
}

func (b *Binder) resolve(ctx context.Context, identityID string) (string, error) {
	if channelID, ok, err := b.lookup(ctx, identityID); err != nil || ok {
		if ok {
			b.metrics.RecordBind("existing")
		}
		return channelID, err
	}

	identity, err := b.identities.Identity(ctx, identityID)
	if errors.Is(err, store.ErrNotFound) {
		b.logger.Warn("identity not found", zap.String("identity_id", identityID))
		return "", &BindFailure{Reason: ReasonIdentityUnknown}
	}
	if err != nil {
		return "", &BindFailure{Reason: ReasonProvisionFailed, Err: fmt.Errorf("load identity: %w", err)}
	}

	unlock, err := b.locker.Lock(ctx, "provision:"+identityID, provisionLockTTL)
	if err != nil {
		return "", &BindFailure{Reason: ReasonProvisionFailed, Err: fmt.Errorf("acquire provision lock: %w", err)}
	}
	defer unlock()

	// another connection may have provisioned while we waited
	if channelID, ok, err := b.lookup(ctx, identityID); err != nil || ok {
		if ok {
			b.metrics.RecordBind("existing")
		}
		return channelID, err
	}

	b.logger.Info("provisioning channel", zap.String("identity_id", identityID))
	channelID, err := b.provisioner.Provision(ctx, identity)
	if err != nil {
		return "", &BindFailure{Reason: ReasonProvisionFailed, Err: err}
	}

	stored, inserted, err := b.directory.InsertBindingIfAbsent(ctx, models.ChannelBinding{
		IdentityID:     identityID,
		ContactAddress: strings.ToLower(identity.ContactAddress),
		ChannelID:      channelID,
		ProvenanceHash: identity.ProvenanceHash,
	})
	if err != nil {
		b.discard(channelID)
		return "", &BindFailure{Reason: ReasonProvisionFailed, Err: err}
	}
	if !inserted {
		b.logger.Warn("lost provisioning race, using existing channel",
			zap.String("identity_id", identityID),
			zap.String("orphan", channelID),
			zap.String("channel_id", stored.ChannelID),
		)
		b.discard(channelID)
		b.metrics.RecordBind("existing")
		return stored.ChannelID, nil
	}

	b.logger.Info("channel provisioned", zap.String("identity_id", identityID), zap.String("channel_id", channelID))
	b.metrics.RecordBind("provisioned")
	return channelID, nil
}

func (b *Binder) lookup(ctx context.Context, identityID string) (string, bool, error) {
	binding, err := b.directory.BindingByIdentity(ctx, identityID)
	switch {
	case err == nil:
		return binding.ChannelID, true, nil
	case errors.Is(err, store.ErrNotFound):
		return "", false, nil
	default:
		return "", false, &BindFailure{Reason: ReasonProvisionFailed, Err: fmt.Errorf("lookup binding: %w", err)}
	}
}

// discard runs detached so a closed connection does not leak the channel.
func (b *Binder) discard(channelID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.provisioner.Discard(ctx, channelID); err != nil {
		b.logger.Error("failed to delete orphan channel", zap.String("channel_id", channelID), zap.Error(err))
	}
}

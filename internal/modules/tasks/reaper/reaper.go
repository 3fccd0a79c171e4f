// Package reaper removes identities that have been inactive for too long,
// archiving their channel history first.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Varietyz/banes-lab-bot/internal/pkg/archive"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/metrics"
	"github.com/Varietyz/banes-lab-bot/internal/pkg/platform"
	"github.com/Varietyz/banes-lab-bot/internal/store"
)

// JobName is the scheduler name of the sweep.
const JobName = "reaper"

const deleteReason = "inactive user cleanup"

// Store is the persistence the reaper needs.
type Store interface {
	DormantIdentities(ctx context.Context, cutoff time.Time, limit int) ([]store.Dormant, error)
	ActiveSince(ctx context.Context, identityID string, cutoff time.Time) (bool, error)
	PurgeIdentity(ctx context.Context, identityID string, cutoff time.Time) error
}

// Options tunes a sweep.
type Options struct {
	InactiveAfter time.Duration
	ArchiveLimit  int
	// BatchSize caps identities per sweep; <= 0 means all.
	BatchSize int
}

// Reaper archives and deletes dormant identities.
type Reaper struct {
	store    Store
	platform platform.Client
	archive  archive.Writer
	opts     Options
	logger   *zap.Logger
	metrics  metrics.Recorder
	now      func() time.Time
}

func New(st Store, client platform.Client, writer archive.Writer, opts Options, logger *zap.Logger, rec metrics.Recorder) *Reaper {
	return &Reaper{
		store:    st,
		platform: client,
		archive:  writer,
		opts:     opts,
		logger:   logger.Named("Reaper"),
		metrics:  rec,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run performs one sweep. A failing identity is left intact for the next
// sweep and does not stop the others; the returned error joins all failures.
func (r *Reaper) Run(ctx context.Context) error {
	now := r.now()
	cutoff := now.Add(-r.opts.InactiveAfter)

	dormant, err := r.store.DormantIdentities(ctx, cutoff, r.opts.BatchSize)
	if err != nil {
		return fmt.Errorf("find dormant identities: %w", err)
	}
	if len(dormant) == 0 {
		r.logger.Debug("no inactive users", zap.Time("cutoff", cutoff))
		return nil
	}
	r.logger.Info("reaping inactive users", zap.Int("count", len(dormant)), zap.Time("cutoff", cutoff))

	var errs []error
	reaped := 0
	for _, d := range dormant {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		err := r.reap(ctx, d, now, cutoff)
		if errors.Is(err, store.ErrActive) {
			r.metrics.RecordReap("skipped")
			r.logger.Info("user active again, skipped", zap.String("identity_id", d.Identity.ID))
			continue
		}
		if err != nil {
			r.metrics.RecordReap("failed")
			r.logger.Error("failed to reap user", zap.String("identity_id", d.Identity.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", d.Identity.ID, err))
			continue
		}
		reaped++
		r.metrics.RecordReap("reaped")
	}

	r.logger.Info("reaper sweep finished", zap.Int("reaped", reaped), zap.Int("failed", len(errs)))
	return errors.Join(errs...)
}

func (r *Reaper) reap(ctx context.Context, d store.Dormant, now, cutoff time.Time) error {
	if d.Binding != nil {
		if err := r.retireChannel(ctx, d, now, cutoff); err != nil {
			return err
		}
	}
	if err := r.store.PurgeIdentity(ctx, d.Identity.ID, cutoff); err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	r.logger.Info("user reaped", zap.String("identity_id", d.Identity.ID), zap.String("address", d.Identity.ContactAddress))
	return nil
}

// retireChannel archives the channel history and deletes the channel. A
// channel already gone on the platform counts as deleted. It returns
// store.ErrActive, leaving the channel alone, if the identity is seen again
// before the channel is deleted.
func (r *Reaper) retireChannel(ctx context.Context, d store.Dormant, now, cutoff time.Time) error {
	channelID := d.Binding.ChannelID
	if err := r.ensureDormant(ctx, d.Identity.ID, cutoff); err != nil {
		return err
	}

	msgs, err := r.platform.RecentMessages(ctx, channelID, r.opts.ArchiveLimit)
	if errors.Is(err, platform.ErrChannelNotFound) {
		r.logger.Warn("channel already gone, skipping archive", zap.String("channel_id", channelID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}

	if len(msgs) > 0 {
		entries := make([]archive.Entry, 0, len(msgs))
		for i := len(msgs) - 1; i >= 0; i-- {
			m := msgs[i]
			entries = append(entries, archive.Entry{
				Author:    m.Author.Username,
				Content:   m.Content,
				Timestamp: m.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		address := d.Identity.ContactAddress
		if address == "" {
			address = d.Binding.ContactAddress
		}
		location, err := r.archive.Write(ctx, address, entries, now)
		if err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		r.logger.Info("history archived", zap.String("channel_id", channelID), zap.String("location", location), zap.Int("messages", len(entries)))
	}

	if err := r.ensureDormant(ctx, d.Identity.ID, cutoff); err != nil {
		return err
	}
	if err := r.platform.DeleteChannel(ctx, channelID, deleteReason); err != nil && !errors.Is(err, platform.ErrChannelNotFound) {
		return fmt.Errorf("delete channel: %w", err)
	}
	return nil
}

func (r *Reaper) ensureDormant(ctx context.Context, identityID string, cutoff time.Time) error {
	active, err := r.store.ActiveSince(ctx, identityID, cutoff)
	if err != nil {
		return err
	}
	if active {
		return store.ErrActive
	}
	return nil
}

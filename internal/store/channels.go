package store

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/Varietyz/banes-lab-bot/internal/models"
)

// BindingByIdentity loads the channel binding for an identity.
func (s *Store) BindingByIdentity(ctx context.Context, identityID string) (models.ChannelBinding, error) {
	var row models.ChannelBinding
	if err := s.db.WithContext(ctx).Where("identity_id = ?", identityID).Take(&row).Error; err != nil {
		return models.ChannelBinding{}, notFound(err)
	}
	return row, nil
}

// BindingByChannel loads the binding that names channelID.
func (s *Store) BindingByChannel(ctx context.Context, channelID string) (models.ChannelBinding, error) {
	var row models.ChannelBinding
	if err := s.db.WithContext(ctx).Where("channel_id = ?", channelID).Take(&row).Error; err != nil {
		return models.ChannelBinding{}, notFound(err)
	}
	return row, nil
}

// InsertBindingIfAbsent inserts the binding unless the identity already has
// one, then returns whichever row is stored. inserted is false when another
// writer got there first.
func (s *Store) InsertBindingIfAbsent(ctx context.Context, binding models.ChannelBinding) (stored models.ChannelBinding, inserted bool, err error) {
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&binding).Error
	if err != nil {
		return models.ChannelBinding{}, false, fmt.Errorf("insert binding: %w", err)
	}
	stored, err = s.BindingByIdentity(ctx, binding.IdentityID)
	if err != nil {
		return models.ChannelBinding{}, false, fmt.Errorf("reload binding: %w", err)
	}
	return stored, stored.ChannelID == binding.ChannelID, nil
}

// CountBindings is used by the stats endpoint.
func (s *Store) CountBindings(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.ChannelBinding{}).Count(&n).Error
	return n, err
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Varietyz/banes-lab-bot/internal/models"
)

// ErrActive is returned when an identity selected as dormant has been seen
// at or after the cutoff since.
var ErrActive = errors.New("store: identity active")

// Dormant is an identity selected for reaping, with its binding if any.
type Dormant struct {
	Identity models.Identity
	Binding  *models.ChannelBinding
}

// DormantIdentities returns identities with no session seen at or after
// cutoff. Identities without any session are always included. limit <= 0
// means no limit.
func (s *Store) DormantIdentities(ctx context.Context, cutoff time.Time, limit int) ([]Dormant, error) {
	db := s.db.WithContext(ctx)
	recent := db.Model(&models.Session{}).
		Select("1").
		Where("user_sessions.identity_id = users.id AND user_sessions.last_seen_at >= ?", cutoff)

	q := db.Model(&models.Identity{}).Where("NOT EXISTS (?)", recent).Order("users.id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var identities []models.Identity
	if err := q.Find(&identities).Error; err != nil {
		return nil, fmt.Errorf("select dormant identities: %w", err)
	}
	if len(identities) == 0 {
		return nil, nil
	}

	ids := make([]string, len(identities))
	for i, identity := range identities {
		ids[i] = identity.ID
	}
	var bindings []models.ChannelBinding
	if err := db.Where("identity_id IN ?", ids).Find(&bindings).Error; err != nil {
		return nil, fmt.Errorf("select dormant bindings: %w", err)
	}
	byIdentity := make(map[string]models.ChannelBinding, len(bindings))
	for _, b := range bindings {
		byIdentity[b.IdentityID] = b
	}

	out := make([]Dormant, 0, len(identities))
	for _, identity := range identities {
		d := Dormant{Identity: identity}
		if b, ok := byIdentity[identity.ID]; ok {
			d.Binding = &b
		}
		out = append(out, d)
	}
	return out, nil
}

// ActiveSince reports whether the identity has a session seen at or after
// cutoff.
func (s *Store) ActiveSince(ctx context.Context, identityID string, cutoff time.Time) (bool, error) {
	return activeSince(s.db.WithContext(ctx), identityID, cutoff)
}

func activeSince(db *gorm.DB, identityID string, cutoff time.Time) (bool, error) {
	var n int64
	err := db.Model(&models.Session{}).
		Where("identity_id = ? AND last_seen_at >= ?", identityID, cutoff).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check activity %s: %w", identityID, err)
	}
	return n > 0, nil
}

// PurgeIdentity deletes the identity's sessions, binding and identity row in
// one transaction, in that order. It returns ErrActive and deletes nothing if
// a session was seen at or after cutoff.
func (s *Store) PurgeIdentity(ctx context.Context, identityID string, cutoff time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := activeSince(tx, identityID, cutoff)
		if err != nil {
			return err
		}
		if active {
			return ErrActive
		}
		if err := tx.Where("identity_id = ?", identityID).Delete(&models.Session{}).Error; err != nil {
			return fmt.Errorf("delete sessions: %w", err)
		}
		if err := tx.Where("identity_id = ?", identityID).Delete(&models.ChannelBinding{}).Error; err != nil {
			return fmt.Errorf("delete binding: %w", err)
		}
		if err := tx.Where("id = ?", identityID).Delete(&models.Identity{}).Error; err != nil {
			return fmt.Errorf("delete identity: %w", err)
		}
		return nil
	})
}

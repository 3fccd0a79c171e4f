package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm/clause"

	"github.com/Varietyz/banes-lab-bot/internal/models"
)

// Identity loads one identity by id.
func (s *Store) Identity(ctx context.Context, id string) (models.Identity, error) {
	var row models.Identity
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return models.Identity{}, notFound(err)
	}
	return row, nil
}

// EnsureIdentity inserts the identity if its id is new, leaving an existing
// row untouched, and returns the stored row. The contact address is
// lower-cased.
func (s *Store) EnsureIdentity(ctx context.Context, identity models.Identity) (models.Identity, error) {
	identity.ContactAddress = strings.ToLower(strings.TrimSpace(identity.ContactAddress))
	if identity.ID == "" || identity.ContactAddress == "" {
		return models.Identity{}, fmt.Errorf("identity requires id and contact address")
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&identity).Error
	if err != nil {
		return models.Identity{}, fmt.Errorf("insert identity %s: %w", identity.ID, err)
	}
	stored, err := s.Identity(ctx, identity.ID)
	if err != nil {
		return models.Identity{}, fmt.Errorf("identity %s not stored, contact address %q may belong to another id: %w",
			identity.ID, identity.ContactAddress, err)
	}
	return stored, nil
}

// CountIdentities is used by the stats endpoint.
func (s *Store) CountIdentities(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Identity{}).Count(&n).Error
	return n, err
}

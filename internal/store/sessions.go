package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"github.com/Varietyz/banes-lab-bot/internal/models"
)

// TouchSession replaces the session id of an existing ledger row and marks it
// seen. It reports false when no row exists for tokenHash.
func (s *Store) TouchSession(ctx context.Context, tokenHash, sessionID string, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("token_hash = ?", tokenHash).
		Updates(map[string]any{"session_id": sessionID, "last_seen_at": now})
	if res.Error != nil {
		return false, fmt.Errorf("update session: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// InsertSession writes a new ledger row. A concurrent insert for the same
// token collapses into an update of session id and last seen time, so the
// ledger keeps one row per token.
func (s *Store) InsertSession(ctx context.Context, row models.Session) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token_hash"}},
			DoUpdates: clause.AssignmentColumns([]string{"session_id", "last_seen_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// SessionByToken loads the ledger row for tokenHash.
func (s *Store) SessionByToken(ctx context.Context, tokenHash string) (models.Session, error) {
	var row models.Session
	if err := s.db.WithContext(ctx).Where("token_hash = ?", tokenHash).Take(&row).Error; err != nil {
		return models.Session{}, notFound(err)
	}
	return row, nil
}

// CountSessions returns the number of ledger rows for an identity.
func (s *Store) CountSessions(ctx context.Context, identityID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Session{}).Where("identity_id = ?", identityID).Count(&n).Error
	return n, err
}

// Package store is the gorm-backed durable state: identities, the session
// ledger, channel bindings and disk reports.
package store

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Store wraps the shared gorm handle.
type Store struct {
	db *gorm.DB
}

// New returns a Store over db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the handle for health checks.
func (s *Store) DB() *gorm.DB { return s.db }

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

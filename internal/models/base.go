package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base is the common row header. Rows are hard-deleted by the reaper, so there
// is no soft-delete column.
type Base struct {
	ID        string    `json:"id"       gorm:"type:varchar(64);primaryKey"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"modified"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}

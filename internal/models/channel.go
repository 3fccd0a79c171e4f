package models

import "time"

// ChannelBinding maps an identity to its dedicated platform channel.
// IdentityID is the primary key, so at most one row exists per identity.
type ChannelBinding struct {
	IdentityID     string    `json:"identity_id"     gorm:"type:varchar(64);primaryKey"`
	ContactAddress string    `json:"contact_address" gorm:"type:varchar(191);index;not null"`
	ChannelID      string    `json:"channel_id"      gorm:"type:varchar(64);uniqueIndex;not null"`
	ProvenanceHash string    `json:"-"               gorm:"type:varchar(128)"`
	CreatedAt      time.Time `json:"created"`
}

func (ChannelBinding) TableName() string { return "user_channels" }

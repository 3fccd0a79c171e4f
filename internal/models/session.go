package models

import "time"

// Session is the ledger row for one bearer token. The token itself is never
// stored, only its BLAKE2b-256 digest.
type Session struct {
	TokenHash      string    `json:"-"            gorm:"type:char(64);primaryKey"`
	SessionID      string    `json:"session_id"   gorm:"type:char(36);uniqueIndex;not null"`
	IdentityID     string    `json:"identity_id"  gorm:"type:varchar(64);index;not null"`
	ProvenanceHash string    `json:"-"            gorm:"type:varchar(128)"`
	CreatedAt      time.Time `json:"created_at"   gorm:"not null"`
	ExpiresAt      time.Time `json:"expires_at"   gorm:"index;not null"`
	LastSeenAt     time.Time `json:"last_seen_at" gorm:"index;not null"`
}

func (Session) TableName() string { return "user_sessions" }

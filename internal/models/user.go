package models

// Identity is one authenticated account. ID is the stable id issued by the
// identity provider and carried in the session token.
type Identity struct {
	Base
	Handle         string `json:"handle"          gorm:"not null"`
	ContactAddress string `json:"contact_address" gorm:"type:varchar(191);uniqueIndex;not null"`
	ProvenanceHash string `json:"-"               gorm:"type:varchar(128)"`
}

func (Identity) TableName() string { return "users" }

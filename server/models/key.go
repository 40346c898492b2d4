package models

import "time"

// KeyInfo holds per key state that is not part of the key files.
type KeyInfo struct {
	ID     string     `gorm:"primaryKey" json:"id"`
	Alias  *KeyAlias  `gorm:"foreignKey:KeyID;references:ID" json:"alias"`
	LostAt *time.Time `json:"lostAt"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Entitlement caches whether a user currently has premium access. It is derived
// from the subscription ledger and never the source of truth.
type Entitlement struct {
	UserID         uuid.UUID  `gorm:"type:varchar(36);primarykey" json:"userId"`
	IsPremium      bool       `gorm:"not null;default:false" json:"isPremium"`
	PremiumSince   *time.Time `json:"premiumSince,omitempty"`
	PremiumEndedAt *time.Time `json:"premiumEndedAt,omitempty"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

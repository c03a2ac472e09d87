package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Gateway-reported subscription statuses. The gateway owns this enumeration;
// values outside this list are stored as-is.
const (
	StatusPending    = "pending"
	StatusAuthorized = "authorized"
	StatusActive     = "active"
	StatusPaused     = "paused"
	StatusCancelled  = "cancelled"
)

type PlanType string

const (
	PlanMonthly PlanType = "monthly"
	PlanYearly  PlanType = "yearly"
)

// Subscription is the ledger entry for a user's subscription. There is at most
// one row per user; it is upserted and never deleted.
type Subscription struct {
	UserID                uuid.UUID       `gorm:"type:varchar(36);primarykey" json:"userId"`
	GatewaySubscriptionID string          `gorm:"size:64;index" json:"gatewaySubscriptionId"`
	Status                string          `gorm:"size:32;not null" json:"status"`
	PlanType              PlanType        `gorm:"size:16;not null" json:"planType"`
	Amount                decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency              string          `gorm:"size:3;not null" json:"currency"`
	PlanName              string          `gorm:"size:100" json:"planName"`
	Email                 string          `gorm:"size:255" json:"email"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
	LastWebhookAt         *time.Time      `json:"lastWebhookAt,omitempty"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// SubscriptionEvent is an append-only audit row for every applied ledger change.
type SubscriptionEvent struct {
	ID                    uuid.UUID                         `gorm:"type:varchar(36);primarykey" json:"id"`
	UserID                uuid.UUID                         `gorm:"type:varchar(36);index;not null" json:"userId"`
	GatewaySubscriptionID string                            `gorm:"size:64" json:"gatewaySubscriptionId"`
	Source                string                            `gorm:"size:16;not null" json:"source"`
	Status                string                            `gorm:"size:32;not null" json:"status"`
	Decision              string                            `gorm:"size:16;not null" json:"decision"`
	Before                datatypes.JSONType[*Subscription] `json:"before"`
	After                 datatypes.JSONType[*Subscription] `json:"after"`
	CreatedAt             time.Time                         `json:"createdAt"`
}

func (SubscriptionEvent) TableName() string {
	return "subscription_events"
}

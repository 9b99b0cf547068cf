package models

import (
	"time"

	"gorm.io/datatypes"
)

// TransitionTrigger names the path that moved a subscription.
type TransitionTrigger string

const (
	TriggerCreate        TransitionTrigger = "CREATE"
	TriggerRedirect      TransitionTrigger = "REDIRECT"
	TriggerWebhook       TransitionTrigger = "WEBHOOK"
	TriggerCancelRequest TransitionTrigger = "CANCEL_REQUEST"
)

// SubscriptionLog records state transitions of subscriptions.
// Use case: troubleshooting racy redirect/webhook deliveries.
type SubscriptionLog struct {
	ID             string            `gorm:"column:id;type:uuid;primary_key" json:"id"`
	SubscriptionID string            `gorm:"column:subscription_id;type:uuid;index;not null"`
	Trigger        TransitionTrigger `gorm:"column:trigger;type:varchar(32);not null"`
	// Before stores the subscription before the transition in JSON format.
	Before datatypes.JSONType[*Subscription] `gorm:"column:before;type:jsonb;default:'null'"`
	// After stores the subscription after the transition in JSON format.
	After     datatypes.JSONType[*Subscription] `gorm:"column:after;type:jsonb;default:'null'"`
	Extra     datatypes.JSONMap                 `gorm:"column:extra;type:jsonb;default:'{}'"`
	CreatedAt time.Time
}

func (SubscriptionLog) TableName() string {
	return "subscription_log"
}

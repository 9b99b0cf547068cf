package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/intopays/subpay/pkg/types"
)

// Subscription is the record reconciled between the browser-redirect path and
// the provider's webhook path. The two paths key off different columns:
// redirects resolve CorrelationCode, webhooks resolve ProviderSessionCode or
// ProviderSubscriptionCode.
type Subscription struct {
	ID           string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Status       types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null;default:'PROCESSING'" json:"status"`
	ChargeStatus types.ChargeStatus       `gorm:"column:charge_status;type:varchar(32);not null;default:'STOPPED'" json:"charge_status"`

	// CorrelationCode is assigned exactly once at creation, before any
	// provider call, and never exposed in DTOs.
	CorrelationCode string `gorm:"column:correlation_code;type:varchar(128);not null;uniqueIndex" json:"-"`
	// ProviderSessionCode is the provider's checkout-session identifier.
	ProviderSessionCode string `gorm:"column:provider_session_code;type:varchar(255);index" json:"-"`
	// ProviderSubscriptionCode is the provider's recurring-billing identifier,
	// populated at most once by the webhook-completion path.
	ProviderSubscriptionCode string `gorm:"column:provider_subscription_code;type:varchar(255);index" json:"-"`

	AccountID string   `gorm:"column:account_id;type:uuid;not null;index" json:"account_id"`
	ProductID string   `gorm:"column:product_id;type:uuid;not null" json:"product_id"`
	Product   *Product `gorm:"foreignKey:ProductID" json:"-"`

	// Version guards concurrent read-modify-write between the redirect and
	// webhook paths; every update is conditional on the loaded value.
	Version int64 `gorm:"column:version;not null;default:0" json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

type SubscriptionDTO struct {
	ID           string                   `json:"id"`
	Status       types.SubscriptionStatus `json:"status"`
	ChargeStatus types.ChargeStatus       `json:"charge_status"`
	ProductID    string                   `json:"product_id"`
	Product      *ProductDTO              `json:"product,omitempty"`
	CreatedAt    time.Time                `json:"created_at"`
	UpdatedAt    time.Time                `json:"updated_at"`
}

// DTO strips the correlation and provider codes; they are server-side
// reconciliation keys, not API surface.
func (s *Subscription) DTO() *SubscriptionDTO {
	if s == nil {
		return nil
	}
	return &SubscriptionDTO{
		ID:           s.ID,
		Status:       s.Status,
		ChargeStatus: s.ChargeStatus,
		ProductID:    s.ProductID,
		Product:      s.Product.DTO(),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

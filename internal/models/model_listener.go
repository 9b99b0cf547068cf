package models

import (
	"time"

	"gorm.io/gorm"
)

// Listener is a webhook endpoint registered with the payment provider.
type Listener struct {
	ID       string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Endpoint string `gorm:"column:endpoint;type:varchar(1020)" json:"endpoint"`
	// ReferenceCode is the path segment appended to the intake URL so inbound
	// events can be attributed to this registration.
	ReferenceCode string `gorm:"column:reference_code;type:varchar(510)" json:"reference_code"`
	// IntegrationCode is the provider's identifier for the webhook endpoint.
	IntegrationCode string `gorm:"column:integration_code;type:varchar(255)" json:"-"`

	AccountID string `gorm:"column:account_id;type:uuid;not null;index" json:"account_id"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Listener) TableName() string {
	return "listeners"
}

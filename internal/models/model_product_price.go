package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/intopays/subpay/pkg/types"
)

// ProductPrice is a purchasable price attached to a product. Amount is in the
// currency's minor unit (cents).
type ProductPrice struct {
	ID             string                    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Amount         int64                     `gorm:"column:amount;type:bigint;not null;default:0" json:"amount"`
	Currency       types.Currency            `gorm:"column:currency;type:varchar(8);not null;default:'BRL'" json:"currency"`
	Interval       types.PriceInterval       `gorm:"column:interval;type:varchar(16);not null;default:'ON_GOING'" json:"interval"`
	IntervalPeriod types.PriceIntervalPeriod `gorm:"column:interval_period;type:varchar(16);not null;default:'NONE'" json:"interval_period"`
	IntervalCount  int                       `gorm:"column:interval_count;not null;default:1" json:"interval_count"`
	// IntegrationCode is the provider's identifier for this price.
	IntegrationCode string `gorm:"column:integration_code;type:varchar(255)" json:"-"`

	ProductID string   `gorm:"column:product_id;type:uuid;not null;index" json:"product_id"`
	Product   *Product `gorm:"foreignKey:ProductID" json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (ProductPrice) TableName() string {
	return "product_prices"
}

// Recurring reports whether the price can back a subscription.
func (p *ProductPrice) Recurring() bool {
	return p != nil && p.Interval == types.PriceIntervalOnGoing
}

type ProductPriceDTO struct {
	ID             string                    `json:"id"`
	Amount         int64                     `json:"amount"`
	Currency       types.Currency            `json:"currency"`
	Interval       types.PriceInterval       `json:"interval"`
	IntervalPeriod types.PriceIntervalPeriod `json:"interval_period"`
	IntervalCount  int                       `json:"interval_count"`
	ProductID      string                    `json:"product_id"`
	CreatedAt      time.Time                 `json:"created_at"`
}

func (p *ProductPrice) DTO() *ProductPriceDTO {
	if p == nil {
		return nil
	}
	return &ProductPriceDTO{
		ID:             p.ID,
		Amount:         p.Amount,
		Currency:       p.Currency,
		Interval:       p.Interval,
		IntervalPeriod: p.IntervalPeriod,
		IntervalCount:  p.IntervalCount,
		ProductID:      p.ProductID,
		CreatedAt:      p.CreatedAt,
	}
}

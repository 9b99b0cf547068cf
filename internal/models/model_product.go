package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/intopays/subpay/pkg/types"
)

// Product is a sellable item mirrored to the payment provider.
type Product struct {
	ID          string            `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Name        string            `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Description string            `gorm:"column:description;type:text" json:"description"`
	Type        types.ProductType `gorm:"column:type;type:varchar(32);not null;default:'PRODUCT'" json:"type"`
	// IntegrationCode is the provider's identifier for this product.
	IntegrationCode string `gorm:"column:integration_code;type:varchar(255)" json:"-"`

	Prices []*ProductPrice `gorm:"foreignKey:ProductID" json:"prices,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Product) TableName() string {
	return "products"
}

type ProductDTO struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Type        types.ProductType  `json:"type"`
	Prices      []*ProductPriceDTO `json:"prices,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func (p *Product) DTO() *ProductDTO {
	if p == nil {
		return nil
	}
	dto := &ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Type:        p.Type,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	for _, price := range p.Prices {
		dto.Prices = append(dto.Prices, price.DTO())
	}
	return dto
}

package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/intopays/subpay/pkg/types"
)

// Account is a registered customer or operator.
type Account struct {
	ID       string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Name     string `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Email    string `gorm:"column:email;type:varchar(255);not null;uniqueIndex" json:"email"`
	Password string `gorm:"column:password;type:varchar(255);not null" json:"-"`
	// SecretKey signs this account's login tokens; rotating it revokes every
	// outstanding session for the account.
	SecretKey string               `gorm:"column:secret_key;type:varchar(255)" json:"-"`
	Role      types.PermissionRole `gorm:"column:role;type:varchar(32);not null;default:'CUSTOMER'" json:"role"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Account) TableName() string {
	return "accounts"
}

// AccountDTO is the externally visible shape of an account.
type AccountDTO struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Email     string               `json:"email"`
	Role      types.PermissionRole `json:"role"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func (a *Account) DTO() *AccountDTO {
	if a == nil {
		return nil
	}
	return &AccountDTO{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Amounts go over the wire as JSON numbers, matching the storefront.
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	UserRoleAdmin = "ADMIN"
	UserRoleUser  = "USER"

	UserStatusActive    = "ACTIVE"
	UserStatusInactive  = "INACTIVE"
	UserStatusSuspended = "SUSPENDED"
	UserStatusPending   = "PENDING"
)

// User is owned by the catalog; the payment pipeline only reads or creates it.
type User struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`
	Phone      string    `gorm:"type:varchar(32);not null;uniqueIndex:ux_users_phone" json:"phone"`
	Email      string    `gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email" json:"email"`
	Role       string    `gorm:"type:varchar(16);not null;default:'USER'" json:"role"`
	Status     string    `gorm:"type:varchar(16);not null;default:'ACTIVE'" json:"status"`
	IsVerified bool      `gorm:"not null;default:false" json:"isVerified"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// Product is the local catalog entry order items point at.
type Product struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string          `gorm:"type:varchar(255);not null;index" json:"name"`
	Slug      string          `gorm:"type:varchar(255);not null" json:"slug"`
	ImageURL  string          `gorm:"type:varchar(1024)" json:"imageUrl"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	StockQty  *int            `json:"stockQty,omitempty"`
	IsActive  bool            `gorm:"not null;default:true" json:"isActive"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

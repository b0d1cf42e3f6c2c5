package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending    = "PENDING"
	OrderStatusConfirmed  = "CONFIRMED"
	OrderStatusProcessing = "PROCESSING"
	OrderStatusShipped    = "SHIPPED"
	OrderStatusDelivered  = "DELIVERED"
	OrderStatusCancelled  = "CANCELLED"
	OrderStatusRefunded   = "REFUNDED"
)

const (
	PaymentStatusPending    = "PENDING"
	PaymentStatusProcessing = "PROCESSING"
	PaymentStatusSucceeded  = "SUCCEEDED"
	PaymentStatusFailed     = "FAILED"
	PaymentStatusCancelled  = "CANCELLED"
	PaymentStatusRefunded   = "REFUNDED"
)

// Order is created exactly once per payment intent. The unique index on
// stripe_payment_intent_id is what serializes racing confirmations.
type Order struct {
	ID                    uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNumber           string          `gorm:"type:varchar(64);not null;uniqueIndex:ux_orders_order_number" json:"orderNumber"`
	TrackingNumber        string          `gorm:"type:varchar(64);not null;uniqueIndex:ux_orders_tracking_number" json:"trackingNumber"`
	UserID                uuid.UUID       `gorm:"type:uuid;not null;index" json:"userId"`
	Currency              string          `gorm:"type:varchar(10);not null;default:'usd'" json:"currency"`
	TotalOrderAmount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"totalOrderAmount"`
	PaymentStatus         string          `gorm:"type:varchar(20);not null;default:'PENDING'" json:"paymentStatus"`
	OrderStatus           string          `gorm:"type:varchar(20);not null;default:'PENDING'" json:"orderStatus"`
	StripePaymentIntentID string          `gorm:"type:varchar(255);not null;uniqueIndex:ux_orders_payment_intent" json:"stripePaymentIntentId"`
	CreatedAt             time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
	OrderItems            []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Payment               *Payment        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"payment,omitempty"`
}

type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"orderId"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null" json:"productId"`
	Title     string          `gorm:"type:varchar(255);not null" json:"title"`
	ImageURL  string          `gorm:"type:varchar(1024)" json:"imageUrl"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

type Payment struct {
	ID                    uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID               uuid.UUID       `gorm:"type:uuid;not null;index" json:"orderId"`
	StripePaymentIntentID string          `gorm:"type:varchar(255);not null;uniqueIndex:ux_payments_payment_intent" json:"stripePaymentIntentId"`
	Amount                decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency              string          `gorm:"type:varchar(10);not null;default:'usd'" json:"currency"`
	Status                string          `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	PaymentMethod         string          `gorm:"type:varchar(64)" json:"paymentMethod"`
	CreatedAt             time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

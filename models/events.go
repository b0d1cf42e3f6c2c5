package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderConfirmed = "order_confirmed"
	EventOrderCancelled = "order_cancelled"
)

// OrderEvent is published after the pipeline changes an order.
type OrderEvent struct {
	Type            string          `json:"type"`
	OrderID         string          `json:"order_id"`
	OrderNumber     string          `json:"order_number"`
	UserID          string          `json:"user_id"`
	PaymentIntentID string          `json:"payment_intent_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	ItemCount       int             `json:"item_count"`
	UnmatchedLines  int             `json:"unmatched_lines,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}

// PipelineAlert is raised when money has moved at the gateway but no order
// can be created for it.
type PipelineAlert struct {
	Kind            string    `json:"kind"`
	PaymentIntentID string    `json:"payment_intent_id"`
	Source          string    `json:"source"`
	Message         string    `json:"message"`
	Timestamp       time.Time `json:"timestamp"`
}

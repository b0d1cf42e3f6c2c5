package models

import (
	"github.com/shopspring/decimal"
)

// CartLineItem is one product entry of a checkout. It only lives inside a
// request and inside payment intent metadata.
type CartLineItem struct {
	Name     string          `json:"name" validate:"required,max=250"`
	Price    decimal.Decimal `json:"price" validate:"gte=0"`
	Quantity int             `json:"quantity" validate:"gte=1"`
	Image    string          `json:"image,omitempty" validate:"omitempty,max=1024"`
}

// LineTotal is price × quantity.
func (i CartLineItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the ordered list of line items carried through the pipeline.
type Cart []CartLineItem

// Total is Σ price × quantity in major currency units.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c {
		total = total.Add(item.LineTotal())
	}
	return total
}

// CustomerDescriptor identifies the buyer at intent creation time. It is
// resolved to a User when the order is materialized.
type CustomerDescriptor struct {
	Name  string `json:"name" validate:"omitempty,max=255"`
	Email string `json:"email" validate:"required,email,max=255"`
	Phone string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

// CreateIntentRequest is the body of POST /payment-intent.
type CreateIntentRequest struct {
	Products Cart               `json:"products" validate:"required,min=1,dive"`
	Customer CustomerDescriptor `json:"customer"`
}

// ConfirmPaymentRequest is the body of POST /stripe/confirm-payment.
type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"paymentIntentId" binding:"required"`
}

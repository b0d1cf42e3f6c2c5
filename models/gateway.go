package models

// IntentStatusSucceeded is the gateway status of a paid intent.
const IntentStatusSucceeded = "succeeded"

// GatewayIntent is the subset of a payment intent the pipeline reads back.
type GatewayIntent struct {
	ID                 string
	Amount             int64
	Currency           string
	Status             string
	Metadata           map[string]string
	PaymentMethodTypes []string
}

// Succeeded reports whether the gateway considers the intent paid.
func (i *GatewayIntent) Succeeded() bool {
	return i.Status == IntentStatusSucceeded
}

// PaymentMethod is the first method type the intent allowed, defaulting to card.
func (i *GatewayIntent) PaymentMethod() string {
	if len(i.PaymentMethodTypes) > 0 && i.PaymentMethodTypes[0] != "" {
		return i.PaymentMethodTypes[0]
	}
	return "card"
}

// IntentHandle is returned to the storefront after intent creation.
type IntentHandle struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
}

// GatewayProduct is the payment provider's own catalog entry.
type GatewayProduct struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	DefaultPriceID string `json:"defaultPriceId,omitempty"`
}

package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/kingjethro999/the-ecommerce-api/models"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrGatewayTimeout   = errors.New("payment gateway timed out")
	ErrIntentNotFound   = errors.New("payment intent not found")
)

// PaymentGateway is the part of the payment provider the pipeline uses.
type PaymentGateway interface {
	ListActiveProducts(ctx context.Context) ([]models.GatewayProduct, error)
	CreateProduct(ctx context.Context, name string, unitAmount int64, currency, image string) (*models.GatewayProduct, error)
	CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*models.IntentHandle, error)
	RetrievePaymentIntent(ctx context.Context, id string) (*models.GatewayIntent, error)
	ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

// StripeService talks to Stripe through a dedicated client rather than the
// package-level stripe.Key.
type StripeService struct {
	api        *client.API
	webhookKey string
	timeout    time.Duration
}

// NewStripeService creates a Stripe gateway. apiBase overrides the API URL,
// e.g. for stripe-mock; empty means api.stripe.com.
func NewStripeService(secretKey, webhookKey, apiBase string, timeout time.Duration, logger *zap.Logger) *StripeService {
	httpClient := &http.Client{Timeout: timeout}

	cfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		LeveledLogger:     logger.Named("stripe").Sugar(),
		MaxNetworkRetries: stripe.Int64(2),
	}
	if apiBase != "" {
		cfg.URL = stripe.String(apiBase)
	}

	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	}

	return &StripeService{
		api:        client.New(secretKey, backends),
		webhookKey: webhookKey,
		timeout:    timeout,
	}
}

// ListActiveProducts pages through every active gateway product.
func (s *StripeService) ListActiveProducts(ctx context.Context) ([]models.GatewayProduct, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &stripe.ProductListParams{Active: stripe.Bool(true)}
	params.Context = ctx
	params.Limit = stripe.Int64(100)

	var products []models.GatewayProduct
	it := s.api.Products.List(params)
	for it.Next() {
		products = append(products, productFromStripe(it.Product()))
	}
	if err := it.Err(); err != nil {
		return nil, classifyStripeError(ctx, err)
	}
	return products, nil
}

// CreateProduct creates a product with a default price in one call.
func (s *StripeService) CreateProduct(ctx context.Context, name string, unitAmount int64, currency, image string) (*models.GatewayProduct, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &stripe.ProductParams{
		Name: stripe.String(name),
		DefaultPriceData: &stripe.ProductDefaultPriceDataParams{
			UnitAmount: stripe.Int64(unitAmount),
			Currency:   stripe.String(currency),
		},
	}
	if image != "" {
		params.Images = stripe.StringSlice([]string{image})
	}
	params.Context = ctx

	p, err := s.api.Products.New(params)
	if err != nil {
		return nil, classifyStripeError(ctx, err)
	}
	gp := productFromStripe(p)
	return &gp, nil
}

// CreatePaymentIntent issues one intent with automatic payment methods.
func (s *StripeService) CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*models.IntentHandle, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, classifyStripeError(ctx, err)
	}
	return &models.IntentHandle{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}

func (s *StripeService) RetrievePaymentIntent(ctx context.Context, id string) (*models.GatewayIntent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, classifyStripeError(ctx, err)
	}
	return GatewayIntentFromStripe(pi), nil
}

// ConstructEvent verifies the Stripe-Signature header against the raw body.
// Events pinned to another API version are accepted; only the intent id,
// metadata and payment method types are read from them.
func (s *StripeService) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, s.webhookKey, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return event, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}

// GatewayIntentFromStripe copies the fields the pipeline reads.
func GatewayIntentFromStripe(pi *stripe.PaymentIntent) *models.GatewayIntent {
	return &models.GatewayIntent{
		ID:                 pi.ID,
		Amount:             pi.Amount,
		Currency:           string(pi.Currency),
		Status:             string(pi.Status),
		Metadata:           pi.Metadata,
		PaymentMethodTypes: pi.PaymentMethodTypes,
	}
}

func productFromStripe(p *stripe.Product) models.GatewayProduct {
	gp := models.GatewayProduct{ID: p.ID, Name: p.Name}
	if p.DefaultPrice != nil {
		gp.DefaultPriceID = p.DefaultPrice.ID
	}
	return gp
}

func classifyStripeError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
		return fmt.Errorf("%w: %v", ErrIntentNotFound, err)
	}
	return err
}

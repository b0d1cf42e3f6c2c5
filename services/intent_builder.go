package services

import (
	"context"
	"errors"
	"strings"

	aws_pkg "github.com/kingjethro999/the-ecommerce-api/pkg/aws"
	"github.com/kingjethro999/the-ecommerce-api/models"
	"go.uber.org/zap"
)

// IntentBuilder turns a checkout into a payment intent whose metadata
// carries everything needed to build the order later.
type IntentBuilder interface {
	BuildIntent(ctx context.Context, req *models.CreateIntentRequest) (*models.IntentHandle, *ServiceError)
}

type intentBuilderImpl struct {
	Deps
	currency string
}

// NewIntentBuilder creates an IntentBuilder charging in currency.
func NewIntentBuilder(deps Deps, currency string) IntentBuilder {
	return &intentBuilderImpl{Deps: deps, currency: strings.ToLower(currency)}
}

func (s *intentBuilderImpl) BuildIntent(ctx context.Context, req *models.CreateIntentRequest) (*models.IntentHandle, *ServiceError) {
	if len(req.Products) == 0 {
		return nil, badRequest("Cart is empty", nil)
	}
	req.Customer.Email = NormalizeEmail(req.Customer.Email)
	if err := s.Codec.ValidateRequest(req); err != nil {
		return nil, badRequest("Invalid checkout request", err)
	}

	amount, err := ToMinorUnits(req.Products.Total(), s.currency)
	if err != nil {
		return nil, badRequest("Cart total is out of range", err)
	}
	if amount <= 0 {
		return nil, badRequest("Cart total must be greater than zero", nil)
	}

	metadata, err := s.Codec.Encode(req.Products, req.Customer)
	if err != nil {
		if errors.Is(err, ErrCartTooLarge) {
			return nil, badRequest("Cart has too many items for a single payment", err)
		}
		return nil, badRequest("Invalid checkout request", err)
	}

	if serr := s.ensureGatewayProducts(ctx, req.Products); serr != nil {
		return nil, serr
	}

	handle, err := s.Gateway.CreatePaymentIntent(ctx, amount, s.currency, metadata)
	if err != nil {
		s.Logger.Error("Failed to create payment intent", zap.Int64("amount", amount), zap.Error(err))
		return nil, gatewayFailure("Failed to create payment intent", err)
	}

	s.count(ctx, aws_pkg.MetricIntentsCreated, map[string]string{"Currency": s.currency})
	s.Logger.Info("Payment intent created",
		zap.String("payment_intent_id", handle.ID),
		zap.Int64("amount", amount),
		zap.String("currency", s.currency),
		zap.Int("line_items", len(req.Products)),
	)
	return handle, nil
}

// ensureGatewayProducts creates a gateway product for every cart line
// whose name, compared case-insensitively, is not already listed.
func (s *intentBuilderImpl) ensureGatewayProducts(ctx context.Context, cart models.Cart) *ServiceError {
	products, err := s.activeProducts(ctx)
	if err != nil {
		s.Logger.Error("Failed to list gateway products", zap.Error(err))
		return gatewayFailure("Failed to list gateway products", err)
	}

	known := make(map[string]bool, len(products))
	for _, p := range products {
		known[strings.ToLower(p.Name)] = true
	}

	created := 0
	for _, item := range cart {
		key := strings.ToLower(item.Name)
		if known[key] {
			continue
		}
		unitAmount, err := ToMinorUnits(item.Price, s.currency)
		if err != nil {
			return badRequest("Unit price is out of range", err)
		}
		p, err := s.Gateway.CreateProduct(ctx, item.Name, unitAmount, s.currency, item.Image)
		if err != nil {
			s.Logger.Error("Failed to create gateway product", zap.String("product", item.Name), zap.Error(err))
			s.invalidateCache(ctx, created)
			return gatewayFailure("Failed to create gateway product", err)
		}
		known[key] = true
		created++
		s.Logger.Info("Gateway product created", zap.String("product", item.Name), zap.String("gateway_product_id", p.ID))
	}

	if created > 0 {
		s.value(ctx, aws_pkg.MetricGatewayProductsCreated, float64(created), nil)
	}
	s.invalidateCache(ctx, created)
	return nil
}

func (s *intentBuilderImpl) activeProducts(ctx context.Context) ([]models.GatewayProduct, error) {
	if s.Cache != nil {
		if products, ok := s.Cache.Get(ctx); ok {
			return products, nil
		}
	}
	products, err := s.Gateway.ListActiveProducts(ctx)
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, products); err != nil {
			s.Logger.Warn("Failed to cache gateway products", zap.Error(err))
		}
	}
	return products, nil
}

func (s *intentBuilderImpl) invalidateCache(ctx context.Context, created int) {
	if s.Cache == nil || created == 0 {
		return
	}
	if err := s.Cache.Invalidate(ctx); err != nil {
		s.Logger.Warn("Failed to invalidate gateway product cache", zap.Error(err))
	}
}

package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kingjethro999/the-ecommerce-api/events"
	aws_pkg "github.com/kingjethro999/the-ecommerce-api/pkg/aws"
	"github.com/kingjethro999/the-ecommerce-api/models"
	"github.com/kingjethro999/the-ecommerce-api/repository"
	"go.uber.org/zap"
)

// Confirmation sources, used in logs, metrics and alerts.
const (
	SourceWebhook = "webhook"
	SourceConfirm = "confirm"
)

// OrderMaterializer turns a successful payment intent into exactly one
// Order with its items and payment, and cancels it on payment failure.
type OrderMaterializer interface {
	// Materialize returns the id of the order for ref, creating it when
	// none exists. intent may be nil, in which case it is fetched.
	Materialize(ctx context.Context, ref string, intent *models.GatewayIntent, source string) (uuid.UUID, *ServiceError)
	MarkFailed(ctx context.Context, ref string, source string) *ServiceError
	GetOrderByPaymentRef(ctx context.Context, ref string) (*models.Order, *ServiceError)
}

type MaterializerConfig struct {
	DefaultCurrency          string
	OrderNumberAttempts      int
	CancelConfirmedOnFailure bool
}

type orderMaterializerImpl struct {
	Deps
	cfg       MaterializerConfig
	customers *CustomerResolver
}

// NewOrderMaterializer creates a new OrderMaterializer.
func NewOrderMaterializer(deps Deps, cfg MaterializerConfig) OrderMaterializer {
	if cfg.OrderNumberAttempts < 1 {
		cfg.OrderNumberAttempts = 3
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "usd"
	}
	return &orderMaterializerImpl{
		Deps:      deps,
		cfg:       cfg,
		customers: NewCustomerResolver(deps.Store, deps.Logger),
	}
}

type resolvedLine struct {
	line    models.CartLineItem
	product *models.Product
}

func (s *orderMaterializerImpl) Materialize(ctx context.Context, ref string, intent *models.GatewayIntent, source string) (uuid.UUID, *ServiceError) {
	if ref == "" {
		return uuid.Nil, badRequest("Payment intent id is required", nil)
	}
	log := s.Logger.With(zap.String("payment_intent_id", ref), zap.String("source", source))

	existing, err := s.Store.FindOrderByPaymentRef(ctx, ref)
	if err == nil {
		log.Info("Order already materialized", zap.String("order_id", existing.ID.String()))
		s.count(ctx, aws_pkg.MetricOrdersDuplicateSuppressed, map[string]string{"Source": source})
		return existing.ID, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		log.Error("Idempotency lookup failed", zap.Error(err))
		return uuid.Nil, storeFailure("Failed to look up order", err)
	}

	if intent == nil {
		intent, err = s.Gateway.RetrievePaymentIntent(ctx, ref)
		if errors.Is(err, ErrIntentNotFound) {
			return uuid.Nil, notFound("Payment intent not found")
		}
		if err != nil {
			log.Error("Failed to retrieve payment intent", zap.Error(err))
			return uuid.Nil, gatewayFailure("Failed to retrieve payment intent", err)
		}
	}
	if intent.ID != ref {
		return uuid.Nil, s.rejectData(ctx, ref, source, "payment intent id mismatch", nil)
	}

	cart, desc, err := s.Codec.Decode(intent.Metadata)
	if err != nil {
		return uuid.Nil, s.rejectData(ctx, ref, source, "invalid payment intent metadata", err)
	}

	user, err := s.customers.Resolve(ctx, desc)
	if err != nil {
		log.Error("Failed to resolve customer", zap.Error(err))
		return uuid.Nil, storeFailure("Failed to resolve customer", err)
	}

	lines, unmatched, err := s.matchProducts(ctx, cart, log)
	if err != nil {
		return uuid.Nil, storeFailure("Failed to match products", err)
	}

	currency := strings.ToLower(intent.Currency)
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}
	total := cart.Total()
	if minor, err := ToMinorUnits(total, currency); err == nil && intent.Amount != 0 && intent.Amount != minor {
		log.Warn("Charged amount differs from cart total",
			zap.Int64("charged", intent.Amount),
			zap.String("cart_total", total.String()))
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.OrderNumberAttempts; attempt++ {
		orderNumber, trackingNumber := s.Identifiers.Next()
		order := &models.Order{
			ID:                    uuid.New(),
			OrderNumber:           orderNumber,
			TrackingNumber:        trackingNumber,
			UserID:                user.ID,
			Currency:              currency,
			TotalOrderAmount:      total,
			OrderStatus:           models.OrderStatusConfirmed,
			PaymentStatus:         models.PaymentStatusSucceeded,
			StripePaymentIntentID: ref,
		}

		err := s.writeOrder(ctx, order, lines, intent.PaymentMethod())
		switch {
		case err == nil:
			s.afterCreate(ctx, order, len(lines), unmatched, source)
			log.Info("Order materialized",
				zap.String("order_id", order.ID.String()),
				zap.String("order_number", order.OrderNumber),
				zap.Int("items", len(lines)),
				zap.Int("unmatched_lines", unmatched))
			return order.ID, nil

		case errors.Is(err, repository.ErrDuplicatePaymentRef):
			winner, ferr := s.Store.FindOrderByPaymentRef(ctx, ref)
			if ferr != nil {
				log.Error("Failed to re-read concurrently created order", zap.Error(ferr))
				return uuid.Nil, storeFailure("Failed to look up order", ferr)
			}
			log.Info("Order created concurrently, returning existing", zap.String("order_id", winner.ID.String()))
			s.count(ctx, aws_pkg.MetricOrdersDuplicateSuppressed, map[string]string{"Source": source})
			return winner.ID, nil

		case errors.Is(err, repository.ErrDuplicateOrderIdentifier):
			log.Warn("Order identifier collision, retrying", zap.Int("attempt", attempt))
			lastErr = err

		default:
			log.Error("Failed to write order", zap.Error(err))
			return uuid.Nil, storeFailure("Failed to create order", err)
		}
	}

	log.Error("Order identifiers exhausted", zap.Int("attempts", s.cfg.OrderNumberAttempts))
	return uuid.Nil, identifiersExhausted(lastErr)
}

// matchProducts pairs cart lines with catalog products by exact name.
// Lines without a product are dropped and counted.
func (s *orderMaterializerImpl) matchProducts(ctx context.Context, cart models.Cart, log *zap.Logger) ([]resolvedLine, int, error) {
	lines := make([]resolvedLine, 0, len(cart))
	unmatched := 0
	for _, line := range cart {
		product, err := s.Store.FindProductByName(ctx, line.Name)
		if errors.Is(err, repository.ErrNotFound) {
			unmatched++
			log.Warn("Cart line has no catalog product, dropping", zap.String("product", line.Name), zap.Int("quantity", line.Quantity))
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		lines = append(lines, resolvedLine{line: line, product: product})
	}
	return lines, unmatched, nil
}

func (s *orderMaterializerImpl) writeOrder(ctx context.Context, order *models.Order, lines []resolvedLine, paymentMethod string) error {
	return s.Store.WithinTransaction(ctx, func(tx repository.CatalogStore) error {
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		for _, rl := range lines {
			image := rl.line.Image
			if image == "" {
				image = rl.product.ImageURL
			}
			item := &models.OrderItem{
				ID:        uuid.New(),
				OrderID:   order.ID,
				ProductID: rl.product.ID,
				Title:     rl.line.Name,
				ImageURL:  image,
				Quantity:  rl.line.Quantity,
				Price:     rl.line.Price,
			}
			if err := tx.CreateOrderItem(ctx, item); err != nil {
				return err
			}
		}
		return tx.CreatePayment(ctx, &models.Payment{
			ID:                    uuid.New(),
			OrderID:               order.ID,
			StripePaymentIntentID: order.StripePaymentIntentID,
			Amount:                order.TotalOrderAmount,
			Currency:              order.Currency,
			Status:                models.PaymentStatusSucceeded,
			PaymentMethod:         paymentMethod,
		})
	})
}

func (s *orderMaterializerImpl) afterCreate(ctx context.Context, order *models.Order, items, unmatched int, source string) {
	dims := map[string]string{"Source": source}
	s.count(ctx, aws_pkg.MetricOrdersCreated, dims)
	s.count(ctx, aws_pkg.MetricPaymentSucceeded, dims)
	if unmatched > 0 {
		s.value(ctx, aws_pkg.MetricUnmatchedCartLines, float64(unmatched), dims)
	}

	s.publish(ctx, models.OrderEvent{
		Type:            models.EventOrderConfirmed,
		OrderID:         order.ID.String(),
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID.String(),
		PaymentIntentID: order.StripePaymentIntentID,
		Amount:          order.TotalOrderAmount,
		Currency:        order.Currency,
		ItemCount:       items,
		UnmatchedLines:  unmatched,
		Timestamp:       time.Now().UTC(),
	})
}

// MarkFailed cancels the order for ref. Missing orders and orders outside
// the cancellable states are left alone, as are intents the gateway now
// reports as succeeded.
func (s *orderMaterializerImpl) MarkFailed(ctx context.Context, ref string, source string) *ServiceError {
	if ref == "" {
		return badRequest("Payment intent id is required", nil)
	}
	log := s.Logger.With(zap.String("payment_intent_id", ref), zap.String("source", source))
	s.count(ctx, aws_pkg.MetricPaymentFailed, map[string]string{"Source": source})

	existing, err := s.Store.FindOrderByPaymentRef(ctx, ref)
	if errors.Is(err, repository.ErrNotFound) {
		log.Info("Payment failed before any order existed")
		return nil
	}
	if err != nil {
		log.Error("Failed to look up order", zap.Error(err))
		return storeFailure("Failed to look up order", err)
	}
	if !s.cancellable(existing.OrderStatus) {
		log.Info("Order not cancelled on payment failure",
			zap.String("order_id", existing.ID.String()),
			zap.String("order_status", existing.OrderStatus))
		return nil
	}

	// A failed attempt can be reported after a later attempt on the same
	// intent succeeded; the gateway's current status decides.
	succeeded, svcErr := s.intentSucceeded(ctx, ref)
	if svcErr != nil {
		log.Error("Failed to re-read payment intent status", zap.Error(svcErr))
		return svcErr
	}
	if succeeded {
		log.Info("Ignoring stale payment failure, intent has succeeded",
			zap.String("order_id", existing.ID.String()))
		return nil
	}

	var cancelled *models.Order
	err = s.Store.WithinTransaction(ctx, func(tx repository.CatalogStore) error {
		order, err := tx.LockOrderByPaymentRef(ctx, ref)
		if errors.Is(err, repository.ErrNotFound) {
			log.Info("Payment failed before any order existed")
			return nil
		}
		if err != nil {
			return err
		}
		if !s.cancellable(order.OrderStatus) {
			log.Info("Order not cancelled on payment failure",
				zap.String("order_id", order.ID.String()),
				zap.String("order_status", order.OrderStatus))
			return nil
		}

		if err := tx.UpdateOrderStatus(ctx, order.ID, models.OrderStatusCancelled, models.PaymentStatusFailed); err != nil {
			return err
		}
		if err := tx.UpdatePaymentStatus(ctx, order.ID, models.PaymentStatusFailed); err != nil {
			return err
		}
		order.OrderStatus = models.OrderStatusCancelled
		order.PaymentStatus = models.PaymentStatusFailed
		cancelled = order
		return nil
	})
	if err != nil {
		log.Error("Failed to mark order failed", zap.Error(err))
		return storeFailure("Failed to update order", err)
	}
	if cancelled == nil {
		return nil
	}

	log.Info("Order cancelled after payment failure", zap.String("order_id", cancelled.ID.String()))
	s.count(ctx, aws_pkg.MetricOrdersCancelled, map[string]string{"Source": source})
	s.publish(ctx, models.OrderEvent{
		Type:            models.EventOrderCancelled,
		OrderID:         cancelled.ID.String(),
		OrderNumber:     cancelled.OrderNumber,
		UserID:          cancelled.UserID.String(),
		PaymentIntentID: ref,
		Amount:          cancelled.TotalOrderAmount,
		Currency:        cancelled.Currency,
		Timestamp:       time.Now().UTC(),
	})
	return nil
}

// intentSucceeded re-reads the intent. An intent the gateway no longer
// knows is treated as not succeeded.
func (s *orderMaterializerImpl) intentSucceeded(ctx context.Context, ref string) (bool, *ServiceError) {
	intent, err := s.Gateway.RetrievePaymentIntent(ctx, ref)
	if errors.Is(err, ErrIntentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, gatewayFailure("Failed to retrieve payment intent", err)
	}
	return intent.Succeeded(), nil
}

func (s *orderMaterializerImpl) cancellable(status string) bool {
	switch status {
	case models.OrderStatusPending, models.OrderStatusProcessing:
		return true
	case models.OrderStatusConfirmed:
		return s.cfg.CancelConfirmedOnFailure
	default:
		return false
	}
}

func (s *orderMaterializerImpl) GetOrderByPaymentRef(ctx context.Context, ref string) (*models.Order, *ServiceError) {
	order, err := s.Store.GetOrderWithDetails(ctx, ref)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("Order not found")
	}
	if err != nil {
		s.Logger.Error("Failed to load order", zap.String("payment_intent_id", ref), zap.Error(err))
		return nil, storeFailure("Failed to load order", err)
	}
	return order, nil
}

// rejectData handles metadata that can never produce an order. Money has
// already moved, so operators are alerted.
func (s *orderMaterializerImpl) rejectData(ctx context.Context, ref, source, msg string, cause error) *ServiceError {
	s.Logger.Error("Payment intent rejected",
		zap.String("payment_intent_id", ref),
		zap.String("source", source),
		zap.String("reason", msg),
		zap.Error(cause))
	s.count(ctx, aws_pkg.MetricMetadataRejected, map[string]string{"Source": source})

	if s.Alerter != nil {
		detail := msg
		if cause != nil {
			detail = msg + ": " + cause.Error()
		}
		if err := s.Alerter.Alert(ctx, models.PipelineAlert{
			Kind:            "order_not_materialized",
			PaymentIntentID: ref,
			Source:          source,
			Message:         detail,
			Timestamp:       time.Now().UTC(),
		}); err != nil {
			s.Logger.Warn("Failed to raise alert", zap.String("payment_intent_id", ref), zap.Error(err))
		}
	}
	return invalidData("Payment intent cannot be turned into an order", cause)
}

func (s *orderMaterializerImpl) publish(ctx context.Context, evt models.OrderEvent) {
	if s.Publisher == nil {
		return
	}
	if err := events.PublishOrderEvent(ctx, s.Publisher, evt); err != nil {
		s.Logger.Warn("Failed to publish order event",
			zap.String("type", evt.Type),
			zap.String("order_id", evt.OrderID),
			zap.Error(err))
	}
}

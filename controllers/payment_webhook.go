package controllers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kingjethro999/the-ecommerce-api/services"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

// Stripe never sends more than this in one event.
const maxWebhookBodyBytes = int64(65536)

// StripeWebhook handles POST /webhooks/stripe. The signature is checked
// against the raw body before anything else is read from it.
func (pc *PaymentController) StripeWebhook(ctx *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to read request body"})
		return
	}

	event, err := pc.gateway.ConstructEvent(payload, ctx.GetHeader("Stripe-Signature"))
	if err != nil {
		pc.logger.Warn("Stripe webhook signature verification failed", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook signature"})
		return
	}

	pc.logger.Info("Processing Stripe webhook",
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID),
	)

	switch event.Type {
	case "payment_intent.succeeded":
		pc.handleIntentSucceeded(ctx, event)
	case "payment_intent.payment_failed":
		pc.handleIntentFailed(ctx, event)
	default:
		pc.logger.Info("Unhandled webhook event type", zap.String("event_type", string(event.Type)))
		ctx.JSON(http.StatusOK, gin.H{"received": true})
	}
}

func (pc *PaymentController) handleIntentSucceeded(ctx *gin.Context, event stripe.Event) {
	pi, ok := pc.decodeIntent(ctx, event)
	if !ok {
		return
	}

	orderID, svcErr := pc.materializer.Materialize(ctx.Request.Context(), pi.ID, services.GatewayIntentFromStripe(pi), services.SourceWebhook)
	if svcErr != nil {
		pc.respondError(ctx, svcErr)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"received": true, "orderId": orderID})
}

func (pc *PaymentController) handleIntentFailed(ctx *gin.Context, event stripe.Event) {
	pi, ok := pc.decodeIntent(ctx, event)
	if !ok {
		return
	}

	if svcErr := pc.materializer.MarkFailed(ctx.Request.Context(), pi.ID, services.SourceWebhook); svcErr != nil {
		pc.respondError(ctx, svcErr)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"received": true})
}

func (pc *PaymentController) decodeIntent(ctx *gin.Context, event stripe.Event) (*stripe.PaymentIntent, bool) {
	var pi stripe.PaymentIntent
	if event.Data == nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Webhook event has no data"})
		return nil, false
	}
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil || pi.ID == "" {
		pc.logger.Error("Failed to unmarshal payment intent", zap.String("event_id", event.ID), zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Webhook event is not a payment intent"})
		return nil, false
	}
	return &pi, true
}

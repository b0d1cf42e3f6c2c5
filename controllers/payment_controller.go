package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kingjethro999/the-ecommerce-api/models"
	"github.com/kingjethro999/the-ecommerce-api/services"
	"go.uber.org/zap"
)

// PaymentController handles checkout, confirmation and order lookup.
type PaymentController struct {
	builder      services.IntentBuilder
	materializer services.OrderMaterializer
	gateway      services.PaymentGateway
	logger       *zap.Logger
}

// NewPaymentController creates a new PaymentController.
func NewPaymentController(
	builder services.IntentBuilder,
	materializer services.OrderMaterializer,
	gateway services.PaymentGateway,
	logger *zap.Logger,
) *PaymentController {
	return &PaymentController{
		builder:      builder,
		materializer: materializer,
		gateway:      gateway,
		logger:       logger,
	}
}

// CreatePaymentIntent handles POST /payment-intent
func (pc *PaymentController) CreatePaymentIntent(ctx *gin.Context) {
	var req models.CreateIntentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	handle, svcErr := pc.builder.BuildIntent(ctx.Request.Context(), &req)
	if svcErr != nil {
		pc.respondError(ctx, svcErr)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"clientSecret": handle.ClientSecret})
}

// ConfirmPayment handles POST /stripe/confirm-payment
func (pc *PaymentController) ConfirmPayment(ctx *gin.Context) {
	var req models.ConfirmPaymentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	orderID, svcErr := pc.materializer.Materialize(ctx.Request.Context(), req.PaymentIntentID, nil, services.SourceConfirm)
	if svcErr != nil {
		pc.respondError(ctx, svcErr)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"received": true, "orderId": orderID})
}

// GetOrderByPayment handles GET /orders/by-payment/:paymentIntentId
func (pc *PaymentController) GetOrderByPayment(ctx *gin.Context) {
	ref := ctx.Param("paymentIntentId")
	if ref == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Payment intent id is required"})
		return
	}

	order, svcErr := pc.materializer.GetOrderByPaymentRef(ctx.Request.Context(), ref)
	if svcErr != nil {
		pc.respondError(ctx, svcErr)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"order": order})
}

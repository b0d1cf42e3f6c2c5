package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kingjethro999/the-ecommerce-api/controllers"
	"github.com/kingjethro999/the-ecommerce-api/middleware"
)

// PublicOptions configures the middleware on storefront-facing routes.
type PublicOptions struct {
	AllowedOrigins     []string
	RateLimitPerMinute int
	RateLimitBurst     int
}

// RegisterPaymentRoutes sets up the payment routes. The webhook is kept
// outside the CORS and rate-limit group: it is called server to server
// and authenticated by its signature.
func RegisterPaymentRoutes(r *gin.Engine, pc *controllers.PaymentController, opts PublicOptions) {
	r.POST("/webhooks/stripe", pc.StripeWebhook)

	public := r.Group("/")
	public.Use(
		middleware.SecurityHeaders(),
		middleware.CORS(opts.AllowedOrigins),
		middleware.RateLimit(opts.RateLimitPerMinute, opts.RateLimitBurst),
	)

	public.POST("/payment-intent", pc.CreatePaymentIntent)
	public.POST("/stripe/confirm-payment", pc.ConfirmPayment)
	public.GET("/orders/by-payment/:paymentIntentId", pc.GetOrderByPayment)
	public.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })
}

// RegisterHealthRoutes adds the liveness endpoint.
func RegisterHealthRoutes(r *gin.Engine, service string) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": service})
	})
}

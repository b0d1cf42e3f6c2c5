package routes_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kingjethro999/the-ecommerce-api/controllers"
	"github.com/kingjethro999/the-ecommerce-api/middleware"
	"github.com/kingjethro999/the-ecommerce-api/models"
	"github.com/kingjethro999/the-ecommerce-api/routes"
	"github.com/kingjethro999/the-ecommerce-api/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubBuilder struct{}

func (stubBuilder) BuildIntent(context.Context, *models.CreateIntentRequest) (*models.IntentHandle, *services.ServiceError) {
	return &models.IntentHandle{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil
}

type stubMaterializer struct{}

func (stubMaterializer) Materialize(context.Context, string, *models.GatewayIntent, string) (uuid.UUID, *services.ServiceError) {
	return uuid.New(), nil
}
func (stubMaterializer) MarkFailed(context.Context, string, string) *services.ServiceError {
	return nil
}
func (stubMaterializer) GetOrderByPaymentRef(_ context.Context, ref string) (*models.Order, *services.ServiceError) {
	return &models.Order{StripePaymentIntentID: ref}, nil
}

func newEngine(opts routes.PublicOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID())

	gateway := services.NewStripeService("sk_test_unused", "whsec_routes", "http://127.0.0.1:1", time.Second, zap.NewNop())
	pc := controllers.NewPaymentController(stubBuilder{}, stubMaterializer{}, gateway, zap.NewNop())

	routes.RegisterHealthRoutes(r, "payment-service")
	routes.RegisterPaymentRoutes(r, pc, opts)
	return r
}

func defaultOptions() routes.PublicOptions {
	return routes.PublicOptions{
		AllowedOrigins:     []string{"https://shop.example.com"},
		RateLimitPerMinute: 60,
		RateLimitBurst:     10,
	}
}

func TestHealth(t *testing.T) {
	r := newEngine(defaultOptions())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "payment-service", body["service"])
}

func TestRequestID_EchoedOrMinted(t *testing.T) {
	r := newEngine(defaultOptions())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	_, err := uuid.Parse(w.Header().Get("X-Request-ID"))
	assert.NoError(t, err)
}

func TestPublicRoutes_SecurityHeaders(t *testing.T) {
	r := newEngine(defaultOptions())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/by-payment/pi_1", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestCORS_AllowedOrigin(t *testing.T) {
	r := newEngine(defaultOptions())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payment-intent",
		strings.NewReader(`{"products":[{"name":"Widget","price":10,"quantity":1}],"customer":{"email":"a@b.co"}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://shop.example.com")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	r := newEngine(defaultOptions())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/payment-intent", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestCORS_UnknownOriginRejected(t *testing.T) {
	r := newEngine(defaultOptions())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/orders/by-payment/pi_1", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRateLimit_Exceeded(t *testing.T) {
	opts := defaultOptions()
	opts.RateLimitPerMinute = 1
	opts.RateLimitBurst = 2
	r := newEngine(opts)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/by-payment/pi_1", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestWebhook_NotRateLimitedOrCORSChecked(t *testing.T) {
	opts := defaultOptions()
	opts.RateLimitPerMinute = 1
	opts.RateLimitBurst = 1
	r := newEngine(opts)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
		req.Header.Set("Origin", "https://evil.example.com")
		r.ServeHTTP(w, req)
		// unsigned payloads fail signature checks, never the limiter or CORS
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
}

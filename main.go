package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kingjethro999/the-ecommerce-api/config"
	"github.com/kingjethro999/the-ecommerce-api/controllers"
	"github.com/kingjethro999/the-ecommerce-api/database"
	"github.com/kingjethro999/the-ecommerce-api/events"
	"github.com/kingjethro999/the-ecommerce-api/logger"
	"github.com/kingjethro999/the-ecommerce-api/middleware"
	aws_pkg "github.com/kingjethro999/the-ecommerce-api/pkg/aws"
	"github.com/kingjethro999/the-ecommerce-api/repository"
	"github.com/kingjethro999/the-ecommerce-api/routes"
	servicepkg "github.com/kingjethro999/the-ecommerce-api/services"
	"go.uber.org/zap"
)

const serviceName = "payment-service"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// AWS clients
	awsCfg, awsErr := aws_pkg.LoadAWSConfig(context.Background())

	var shipTo io.Writer
	if awsErr == nil && cfg.CloudWatchEnabled {
		cwLogs, err := aws_pkg.NewCloudWatchLogsClient(context.Background(), awsCfg, cfg.CloudWatchLogGroup, serviceName)
		if err != nil {
			log.Printf("CloudWatch Logs unavailable, logging to stdout only: %v", err)
		} else {
			shipTo = cwLogs
		}
	}

	zapLogger, err := logger.New(cfg.AppEnv, shipTo)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync() //nolint:errcheck

	var (
		snsClient aws_pkg.SNSPublisher
		metrics   *aws_pkg.MetricsClient
	)
	if awsErr != nil {
		zapLogger.Warn("AWS config unavailable, SNS and metrics disabled", zap.Error(awsErr))
	} else {
		snsClient = aws_pkg.NewSNSClient(awsCfg)
		metrics = aws_pkg.NewMetricsClient(awsCfg, "ECommerce/Payments", cfg.CloudWatchEnabled)
	}

	db, err := database.Connect(cfg.DSN(), zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db) //nolint:errcheck

	if err := database.Migrate(db); err != nil {
		zapLogger.Fatal("Failed to migrate database", zap.Error(err))
	}

	var productCache servicepkg.ProductCache
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(context.Background(), cfg.RedisURL)
		if err != nil {
			zapLogger.Warn("Redis unavailable, product cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close() //nolint:errcheck
			productCache = servicepkg.NewRedisProductCache(redisClient, cfg.ProductCacheTTL)
		}
	}

	publisher := newPublisher(cfg, snsClient, zapLogger)
	defer publisher.Close() //nolint:errcheck

	var alerter events.Alerter = events.NewLogAlerter(zapLogger)
	if snsClient != nil && cfg.AlertSNSTopicARN != "" {
		alerter = events.NewSNSAlerter(snsClient, cfg.AlertSNSTopicARN)
	}

	identifiers, err := servicepkg.NewSnowflakeIdentifiers(cfg.NodeID)
	if err != nil {
		zapLogger.Fatal("Failed to init identifier source", zap.Error(err))
	}

	// Gateway and DI chain
	gateway := servicepkg.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookKey, cfg.StripeAPIBase, cfg.GatewayTimeout, zapLogger)
	deps := servicepkg.Deps{
		Store:       repository.NewGormCatalogStore(db),
		Gateway:     gateway,
		Codec:       servicepkg.NewMetadataCodec(),
		Identifiers: identifiers,
		Cache:       productCache,
		Publisher:   publisher,
		Alerter:     alerter,
		Metrics:     metrics,
		Logger:      zapLogger,
	}
	builder := servicepkg.NewIntentBuilder(deps, cfg.DefaultCurrency)
	materializer := servicepkg.NewOrderMaterializer(deps, servicepkg.MaterializerConfig{
		DefaultCurrency:          cfg.DefaultCurrency,
		OrderNumberAttempts:      cfg.OrderNumberAttempts,
		CancelConfirmedOnFailure: cfg.CancelConfirmedOnFailure,
	})
	paymentController := controllers.NewPaymentController(builder, materializer, gateway, zapLogger)

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(zapLogger),
		middleware.MetricsMiddleware(metrics, serviceName),
		middleware.Timeout(cfg.RequestTimeout),
	)

	routes.RegisterHealthRoutes(r, serviceName)
	routes.RegisterPaymentRoutes(r, paymentController, routes.PublicOptions{
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	zapLogger.Info("Payment service started",
		zap.String("port", cfg.Port),
		zap.String("event_bus", cfg.EventBus),
		zap.Bool("product_cache", productCache != nil),
	)
	<-quit
	zapLogger.Info("Shutting down payment service...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	zapLogger.Info("Server exited cleanly")
}

// newPublisher picks the order event bus. SNS without an AWS config falls
// back to the no-op publisher.
func newPublisher(cfg *config.Config, snsClient aws_pkg.SNSPublisher, logger *zap.Logger) events.Publisher {
	switch cfg.EventBus {
	case config.EventBusKafka:
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.OrderEventsTopic, logger)
	case config.EventBusSNS:
		if snsClient != nil {
			return events.NewSNSPublisher(snsClient, cfg.OrderSNSTopicARN)
		}
		logger.Warn("SNS event bus requested without AWS config, order events disabled")
	}
	return events.NopPublisher{}
}

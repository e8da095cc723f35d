package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkout-service/config"
	"checkout-service/controllers"
	"checkout-service/database"
	"checkout-service/logger"
	"checkout-service/middleware"
	aws_pkg "checkout-service/pkg/aws"
	ddb "checkout-service/pkg/dynamodb"
	"checkout-service/repository"
	"checkout-service/routes"
	"checkout-service/services"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const (
	serviceName = "checkout-service"
	ledgerTTL   = 72 * time.Hour
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	// AWS is optional in development; without it SNS, SQS, CloudWatch and
	// the DynamoDB ledger stay off.
	awsCfg, awsErr := aws_pkg.LoadAWSConfig(context.Background())

	var cwWriter io.Writer
	var cwLogs *aws_pkg.CloudWatchLogsClient
	if awsErr == nil {
		if cw, err := aws_pkg.NewCloudWatchLogsClient(context.Background(), awsCfg, serviceName); err == nil && cw.IsEnabled() {
			cw.Start()
			cwLogs, cwWriter = cw, cw
		}
	}
	log, err := logger.InitializeWithWriter(cfg.Env, cwWriter)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync() //nolint:errcheck

	if awsErr != nil {
		log.Warn("AWS config unavailable, SNS/SQS/CloudWatch disabled", zap.Error(awsErr))
	}

	db, err := database.ConnectPostgres(cfg.PostgresDSN(), log, database.Models...)
	if err != nil {
		log.Fatal("DB connection failed", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClient(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatal("Redis connection failed", zap.Error(err))
		}
		log.Info("Connected to Redis")
	}

	var metricsClient *aws_pkg.MetricsClient
	var snsClient aws_pkg.SNSPublisher
	var repairQueue *aws_pkg.SQSConsumer
	if awsErr == nil {
		metricsClient = aws_pkg.NewMetricsClient(awsCfg)
		if cfg.OrderSNSTopicARN != "" {
			snsClient = aws_pkg.NewSNSClient(awsCfg)
		}
		if cfg.NotificationRepairQueueURL != "" {
			repairQueue = aws_pkg.NewSQSConsumer(awsCfg, cfg.NotificationRepairQueueURL, log)
		}
	}

	ledger, err := buildLedger(cfg, db, redisClient, awsCfg, awsErr)
	if err != nil {
		log.Fatal("Event ledger init failed", zap.Error(err))
	}
	log.Info("Event ledger ready", zap.String("backend", cfg.EventLedger))

	// Dependency injection
	gateway := services.NewStripeGateway(services.NewStripeAPI(cfg.StripeSecretKey, cfg.StripeTimeout))
	orderRepo := repository.NewGormOrderRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	pendingRepo := repository.NewGormPendingCheckoutRepo(db)

	checkoutService := services.NewCheckoutService(gateway, pendingRepo, cfg.Frontend, metricsClient, log)
	deps := services.ReconcilerDeps{
		Stripe:        gateway,
		Orders:        orderRepo,
		Notifications: notificationRepo,
		Pending:       pendingRepo,
		Ledger:        ledger,
		Publisher:     snsClient,
		TopicArn:      cfg.OrderSNSTopicARN,
		Metrics:       metricsClient,
		Timeout:       cfg.ReconcileTimeout,
		Logger:        log,
	}
	if repairQueue != nil {
		deps.Repairs = repairQueue
	}
	reconciler := services.NewOrderReconciler(deps)
	authenticator := services.NewEventAuthenticator(cfg.StripeWebhookKey, cfg.WebhookTolerance)

	var carts services.CartSource
	if redisClient != nil {
		carts = services.NewRedisCartSource(redisClient)
	}
	checkoutController := controllers.NewCheckoutController(checkoutService, carts, log)
	webhookController := controllers.NewWebhookController(authenticator, reconciler, metricsClient, log)

	limiter := middleware.NewRateLimiter(rate.Every(time.Minute/100), 50, 5*time.Minute)

	// Router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MetricsMiddleware(metricsClient, serviceName))
	r.Use(middleware.RequestLogger(log))

	routes.RegisterRoutes(r, checkoutController, webhookController, routes.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimiter:    limiter,
	})

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-bgCtx.Done():
				return
			case <-ticker.C:
				limiter.Cleanup()
			}
		}
	}()

	// Notification repair consumer
	if repairQueue != nil {
		handler := services.NewRepairHandler(reconciler, log)
		go func() {
			if err := repairQueue.StartPolling(bgCtx, handler); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Repair consumer stopped", zap.Error(err))
			}
		}()
	}

	// HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("Checkout service started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Initiating graceful shutdown...")
	bgCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Redis close error", zap.Error(err))
		}
	}
	if err := database.Close(db); err != nil {
		log.Error("Database close error", zap.Error(err))
	}

	log.Info("Checkout service stopped gracefully")
	if cwLogs != nil {
		_ = log.Sync()
		if err := cwLogs.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "CloudWatch flush failed: %v\n", err)
		}
	}
}

func buildLedger(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, awsCfg sdkaws.Config, awsErr error) (repository.EventLedger, error) {
	switch cfg.EventLedger {
	case "postgres":
		return repository.NewGormEventLedger(db), nil
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("redis ledger requires REDIS_URL")
		}
		return repository.NewRedisEventLedger(redisClient, ledgerTTL), nil
	case "dynamodb":
		if awsErr != nil {
			return nil, fmt.Errorf("dynamodb ledger requires AWS config: %w", awsErr)
		}
		client := ddb.NewClientFromConfig(awsCfg)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := ddb.EnsureTable(ctx, client, cfg.WebhookEventsTable, "event_id"); err != nil {
			return nil, err
		}
		return repository.NewDynamoEventLedger(client, cfg.WebhookEventsTable), nil
	default:
		return repository.NopEventLedger{}, nil
	}
}

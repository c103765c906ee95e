package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecommerce-api/config"
	"ecommerce-api/internal/api"
	"ecommerce-api/internal/broker"
	"ecommerce-api/internal/redisclient"
	"ecommerce-api/internal/service"
	"ecommerce-api/internal/store"
	"ecommerce-api/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Observ.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting ecommerce API",
		zap.String("env", cfg.Server.Env),
		zap.Int("discount_order_frequency", cfg.Business.DiscountOrderFrequency))

	tp, err := util.InitTracer("ecommerce-api", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	db := store.NewStore()

	var idempotency service.IdempotencyStore
	if cfg.Redis.Enabled {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		idempotency = redisClient
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))
	}

	var eventPublisher service.EventPublisher
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicStore)
		defer producer.Close()
		eventPublisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicStore))
	}

	frequency := cfg.Business.DiscountOrderFrequency
	cartService := service.NewCartService(db)
	orderService := service.NewOrderService(db)
	discountService := service.NewDiscountService(db, cfg.Business.DiscountPercentage, cfg.Business.DiscountCodeExpiryDays)
	adminService := service.NewAdminService(db, discountService, eventPublisher, frequency)
	checkout := service.NewCheckoutOrchestrator(
		db,
		cartService,
		orderService,
		discountService,
		eventPublisher,
		idempotency,
		time.Duration(cfg.Redis.IdempotencyTTLHours)*time.Hour,
		frequency,
	)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(cartService, orderService, discountService, adminService, checkout)
	handler.SetupRoutes(router, cfg.Server.CORSOrigins)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

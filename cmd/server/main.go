package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/marketplace/internal/cache"
	"github.com/fjod/go_cart/marketplace/internal/catalog"
	"github.com/fjod/go_cart/marketplace/internal/config"
	"github.com/fjod/go_cart/marketplace/internal/engine"
	"github.com/fjod/go_cart/marketplace/internal/events"
	h "github.com/fjod/go_cart/marketplace/internal/http"
	"github.com/fjod/go_cart/marketplace/internal/logger"
	"github.com/fjod/go_cart/marketplace/internal/metrics"
	"github.com/fjod/go_cart/marketplace/internal/repository"
	"github.com/fjod/go_cart/marketplace/internal/service"
	"github.com/fjod/go_cart/marketplace/internal/tracing"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	// Money leaves the process as JSON numbers, e.g. "total": 739.98, in HTTP
	// responses, cached carts and cart events alike.
	decimal.MarshalJSONWithoutQuotes = true

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	zl.Info("Starting marketplace server",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
	)

	ctx := context.Background()

	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName: cfg.Tracing.ServiceName,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		zl.Fatal("Failed to build tracer provider", zap.Error(err))
	}
	tracing.Install(tracerProvider)

	// Product catalog
	products, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		zl.Fatal("Failed to open catalog database", zap.Error(err))
	}
	defer products.Close()
	if err := products.RunMigrations(); err != nil {
		zl.Fatal("Failed to run catalog migrations", zap.Error(err))
	}

	// Cart store
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		zl.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	carts := repository.NewMongoRepository(mongoDB)
	if err := carts.CreateIndexes(ctx); err != nil {
		zl.Fatal("Failed to create cart indexes", zap.Error(err))
	}
	zl.Info("Connected to MongoDB", zap.String("database", cfg.Mongo.Database))

	// Cart cache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		zl.Fatal("Redis connection failed", zap.Error(err))
	}

	publisher := events.New(cfg.Kafka.CartTopic, cfg.Kafka.Brokers)
	if len(cfg.Kafka.Brokers) == 0 {
		zl.Info("Kafka brokers not configured, cart events disabled")
	} else {
		publisher = events.NewBreakerPublisher(publisher, events.BreakerSettings{
			OnStateChange: func(name string, from, to gobreaker.State) {
				zl.Warn("Event publisher breaker changed state",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}
	defer publisher.Close()

	srvMetrics := metrics.NewServerMetrics("cart_service")

	productService := service.NewProductService(products, zl.Named("products"))
	cartService := service.NewCartService(
		carts,
		cache.NewRedisCache(redisClient, cfg.Redis.CacheTTL),
		productService,
		engine.New(cfg.Pricing),
		publisher,
		srvMetrics,
		zl.Named("cart"),
	)

	router := h.NewRouter(h.RouterConfig{
		Cart:     cartService,
		Products: productService,
		Metrics:  srvMetrics,
		Logger:   zl.Named("http"),
		Timeout:  cfg.RequestTimeout,
	})

	handler := otelhttp.NewHandler(router, cfg.Tracing.ServiceName,
		otelhttp.WithTracerProvider(tracerProvider),
		otelhttp.WithPropagators(tracing.Propagator()),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("Failed to start server", zap.Error(err))
		}
	}()
	zl.Info("Server started", zap.String("address", srv.Addr))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := repository.Disconnect(shutdownCtx, mongoDB); err != nil {
		zl.Error("MongoDB disconnect failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		zl.Error("Tracer provider shutdown failed", zap.Error(err))
	}

	zl.Info("Server exited")
}

// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	lifecyclev1 "github.com/gurkanbulca/hustlemarket/api/lifecycle/v1"
	"github.com/gurkanbulca/hustlemarket/internal/config"
	"github.com/gurkanbulca/hustlemarket/internal/database"
	"github.com/gurkanbulca/hustlemarket/internal/events"
	"github.com/gurkanbulca/hustlemarket/internal/metrics"
	"github.com/gurkanbulca/hustlemarket/internal/middleware"
	"github.com/gurkanbulca/hustlemarket/internal/onboarding"
	"github.com/gurkanbulca/hustlemarket/internal/repository"
	"github.com/gurkanbulca/hustlemarket/internal/service"
	"github.com/gurkanbulca/hustlemarket/pkg/auth"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.ValidateConfig(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	level, _ := config.ParseLogLevel(cfg.Server.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	log.Println("Connecting to PostgreSQL...")
	db, err := database.NewDB(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Failed to close database connection: %v", err)
		}
	}()

	// Run auto migration
	if cfg.Server.AutoMigrate {
		if err := runAutoMigration(ctx, db); err != nil {
			log.Fatalf("Failed to run auto migration: %v", err)
		}
	}

	publisher, err := newPublisher(ctx, cfg.Events, logger)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer publisher.Close()

	recorder := metrics.New()

	// Initialize services
	lifecycleSvc := service.NewLifecycle(
		repository.NewStore(db),
		publisher,
		recorder,
		logger,
		service.WithSweepBatch(cfg.Jobs.ExpirySweepBatch),
	)
	taskService := service.NewTaskService(lifecycleSvc, onboarding.DefaultScorer())

	tokenManager := auth.NewTokenManager(cfg.JWT.AccessSecret, cfg.JWT.AccessTokenDuration)

	// Initialize middleware
	metadataExtractor := middleware.NewMetadataExtractorInterceptor()
	authInterceptor := middleware.NewAuthInterceptor(tokenManager)
	loggingInterceptor := middleware.NewLoggingInterceptor(logger)
	validationInterceptor := middleware.NewValidationInterceptor(middleware.DefaultValidationConfig())

	// Create gRPC server with interceptors
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			middleware.UnaryChain(metadataExtractor, authInterceptor, loggingInterceptor, validationInterceptor)...,
		),
		grpc.ChainStreamInterceptor(
			metadataExtractor.Stream(),
			authInterceptor.Stream(),
		),
	)

	// Register services
	lifecyclev1.RegisterLifecycleServiceServer(grpcServer, taskService)

	// Register health check
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(lifecyclev1.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING) // For overall health

	// Register reflection for development
	if cfg.Server.EnableReflection {
		reflection.Register(grpcServer)
		log.Println("gRPC reflection enabled (disable in production)")
	}

	// Create listener
	listener, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.Server.GRPCPort))
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}

	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.HTTPPort),
		Handler:           metricsMux(recorder),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Start background expiry sweep
	sweeper := service.NewExpirySweeper(lifecycleSvc, cfg.Jobs.ExpirySweepInterval, logger)
	go sweeper.Run(ctx)
	log.Printf("🧹 Expiry sweep running every %s", cfg.Jobs.ExpirySweepInterval)

	go func() {
		log.Printf("📈 Metrics listening on port %s", cfg.Server.HTTPPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to serve metrics: %v", err)
		}
	}()

	// Start server in goroutine
	go func() {
		log.Printf("🚀 HustleMarket gRPC server listening on port %s", cfg.Server.GRPCPort)
		if err := grpcServer.Serve(listener); err != nil {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	log.Println("📴 Shutting down server...")
	healthServer.Shutdown()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to stop metrics server: %v", err)
	}
	log.Println("✅ Server shutdown complete")
}

// runAutoMigration creates the schema if it is missing
func runAutoMigration(ctx context.Context, db *sqlx.DB) error {
	log.Println("🔄 Running auto migration...")
	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("run auto migration: %w", err)
	}
	log.Println("✅ Auto migration completed")
	return nil
}

// newPublisher connects to JetStream, or discards events when no URL is set
func newPublisher(ctx context.Context, cfg config.EventsConfig, logger *slog.Logger) (events.Publisher, error) {
	if cfg.NATSURL == "" {
		log.Println("NATS_URL not set, lifecycle events will not be published")
		return events.NopPublisher{}, nil
	}
	publisher, err := events.NewNATSPublisher(ctx, events.NATSConfig{
		URL:           cfg.NATSURL,
		Stream:        cfg.Stream,
		SubjectPrefix: cfg.SubjectPrefix,
	}, logger)
	if err != nil {
		return nil, err
	}
	log.Printf("📡 Publishing lifecycle events to %s", cfg.NATSURL)
	return publisher, nil
}

func metricsMux(recorder *metrics.Recorder) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

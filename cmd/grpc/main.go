package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/fekuna/omnipos-ledger-service/config"
	"github.com/fekuna/omnipos-ledger-service/internal/app"
	"github.com/fekuna/omnipos-ledger-service/internal/pkg/broker"
	"github.com/fekuna/omnipos-ledger-service/internal/pkg/database"
	"github.com/fekuna/omnipos-ledger-service/internal/pkg/middleware"
	pricingH "github.com/fekuna/omnipos-ledger-service/internal/pricing/handler"
	"github.com/fekuna/omnipos-ledger-service/internal/worker"
	stockH "github.com/fekuna/omnipos-ledger-service/internal/stock/handler"
	stockListenerPkg "github.com/fekuna/omnipos-ledger-service/internal/stock/listener"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	appLogger := app.NewLogger(cfg)
	defer appLogger.Sync()

	// 3. Connect infrastructure and build use cases
	a, err := app.New(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Could not initialize application", zap.Error(err))
	}
	defer a.Close()

	if err := database.Migrate(a.DB.DB, "postgres", "up"); err != nil {
		appLogger.Fatal("Could not migrate database", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var background sync.WaitGroup

	// 4. Order listener
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaConsumer := broker.NewConsumer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.OrdersTopic,
			GroupID: cfg.Kafka.GroupID,
		})
		defer kafkaConsumer.Close()
		appLogger.Info("Connected to Kafka Consumer", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.OrdersTopic))

		orderListener := stockListenerPkg.NewOrderListener(kafkaConsumer, a.Stock, appLogger)
		background.Add(1)
		go func() {
			defer background.Done()
			orderListener.Start(ctx)
		}()
	}

	// 5. Scheduled price sweep and periodic reconcile
	w := worker.NewWorker(a.Pricing, a.Stock, worker.Config{
		SweepInterval:      cfg.Scheduler.Interval,
		ReconcileInterval:  cfg.Scheduler.ReconcileInterval,
		ReconcileMerchants: cfg.Scheduler.ReconcileMerchants,
	}, appLogger)
	background.Add(1)
	go func() {
		defer background.Done()
		w.Start(ctx)
	}()

	// 6. Start gRPC Server
	port := cfg.Server.GRPCPort
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	lis, err := net.Listen("tcp", port)
	if err != nil {
		appLogger.Fatal("failed to listen", zap.String("port", port), zap.Error(err))
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			middleware.ContextInterceptor(),
			middleware.LoggingInterceptor(appLogger),
		),
	)

	stockH.RegisterStockServiceServer(grpcServer, stockH.NewStockHandler(a.Stock, appLogger))
	pricingH.RegisterPricingServiceServer(grpcServer, pricingH.NewPricingHandler(a.Pricing, appLogger))

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(stockH.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(pricingH.ServiceName, healthpb.HealthCheckResponse_SERVING)

	reflection.Register(grpcServer)

	appLogger.Info("Starting gRPC server", zap.String("port", port))

	// Graceful Shutdown
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	healthServer.Shutdown()
	grpcServer.GracefulStop()
	cancel()
	background.Wait()
	appLogger.Info("Server stopped")
}

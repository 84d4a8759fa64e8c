package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/tablepos/pkg/config"
	"github.com/example/tablepos/pkg/discovery"
	"github.com/example/tablepos/pkg/grpc"
	"github.com/example/tablepos/pkg/logging"
	"github.com/example/tablepos/pkg/notify"
	"github.com/example/tablepos/pkg/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func configPath() string {
	if p := os.Getenv("TABLEPOS_CONFIG"); p != "" {
		return p
	}
	return "config/config.yaml"
}

func main() {
	// Load config
	cfg, err := config.Load(configPath())
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	logger, err := logging.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting order service",
		zap.String("name", cfg.Server.Name),
		zap.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.OpenDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}

	redisRepo := repository.NewRedisRepository(&cfg.Redis)
	defer redisRepo.Close()

	// Ping dependencies
	if err := redisRepo.Ping(ctx); err != nil {
		logger.Warn("Redis connection failed", zap.Error(err))
	} else {
		logger.Info("Redis connected successfully")
	}

	mongoRepo, err := repository.NewMongoRepository(&cfg.MongoDB)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mongoRepo.Close(closeCtx)
	}()

	bus, closeBus, err := notify.Open(cfg.Notify, cfg.RabbitMQ, redisRepo.Client(), logger.Named("notify"))
	if err != nil {
		logger.Fatal("Failed to open change notifications", zap.Error(err))
	}
	defer closeBus()

	users := repository.NewUserRepository(db, redisRepo, logger.Named("users"))
	orders := repository.NewOrderRepository(db, users, repository.Hooks{Publisher: bus, Audit: mongoRepo}, logger.Named("orders"))
	if _, err := orders.Fetch(ctx); err != nil {
		logger.Warn("Initial order fetch failed", zap.Error(err))
	}

	server := grpc.NewOrderServer(&cfg.Server, orders, logger)

	// Connect to etcd for service discovery
	sd, err := discovery.NewServiceDiscovery(&cfg.Etcd, logger.Named("discovery"))
	if err != nil {
		logger.Fatal("Failed to connect to etcd", zap.Error(err))
	}
	defer sd.Close()

	instance := &discovery.ServiceInstance{
		Name: cfg.Server.Name,
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}
	if err := sd.Register(ctx, instance); err != nil {
		logger.Fatal("Failed to register service", zap.Error(err))
	}

	watcher := notify.NewWatcher(bus, orders, nil, logger.Named("watcher"), notify.TableOrders, notify.TableOrderItems)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Received shutdown signal")

		// Deregister service
		deregCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sd.Deregister(deregCtx, instance); err != nil {
			logger.Error("Failed to deregister service", zap.Error(err))
		}
		server.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", zap.Error(err))
	}

	logger.Info("Service stopped")
}

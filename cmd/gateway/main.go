package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/tablepos/gateway"
	"github.com/example/tablepos/pkg/auth"
	"github.com/example/tablepos/pkg/config"
	"github.com/example/tablepos/pkg/discovery"
	"github.com/example/tablepos/pkg/grpc"
	"github.com/example/tablepos/pkg/logging"
	"github.com/example/tablepos/pkg/notify"
	"github.com/example/tablepos/pkg/repository"
	"github.com/example/tablepos/pkg/session"
	"github.com/example/tablepos/pkg/storage"
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

	logger.Info("Starting API Gateway",
		zap.Int("port", cfg.Gateway.Port),
		zap.String("host", cfg.Gateway.Host))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.OpenDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to open database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}

	redisRepo := repository.NewRedisRepository(&cfg.Redis)
	defer redisRepo.Close()
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

	images, err := storage.NewGridFSStore(mongoRepo.Database(), cfg.Storage.Bucket, cfg.Storage.PublicBaseURL)
	if err != nil {
		logger.Fatal("Failed to open image bucket", zap.Error(err))
	}

	bus, closeBus, err := notify.Open(cfg.Notify, cfg.RabbitMQ, redisRepo.Client(), logger.Named("notify"))
	if err != nil {
		logger.Fatal("Failed to open change notifications", zap.String("driver", cfg.Notify.Driver), zap.Error(err))
	}
	defer closeBus()

	hub := notify.NewHub()
	hooks := repository.Hooks{Publisher: bus, Audit: mongoRepo}

	products := repository.NewProductRepository(db, images, hooks, logger.Named("products"))
	users := repository.NewUserRepository(db, redisRepo, logger.Named("users"))
	orders := repository.NewOrderRepository(db, users, hooks, logger.Named("orders"))

	if _, err := products.Fetch(ctx); err != nil {
		logger.Warn("Initial product fetch failed", zap.Error(err))
	}
	if _, err := orders.Fetch(ctx); err != nil {
		logger.Warn("Initial order fetch failed", zap.Error(err))
	}

	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authSvc := auth.NewService(db, issuer, logger.Named("auth"))
	if err := authSvc.Seed(ctx, cfg.Auth.BootstrapEmail, cfg.Auth.BootstrapPass); err != nil {
		logger.Fatal("Failed to seed admin credential", zap.Error(err))
	}

	carts := session.NewManager(cfg.Session, products, orders, logger)
	defer carts.Shutdown()

	var status gateway.StatusUpdater = orders
	if cfg.Gateway.StatusBackend == "grpc" {
		// Setup service discovery
		sd, err := discovery.NewServiceDiscovery(&cfg.Etcd, logger.Named("discovery"))
		if err != nil {
			logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		} else {
			defer sd.Close()
		}

		clients := grpc.NewClientManager(cfg.Server.Addr(), logger.Named("grpc"), sd)
		if err := clients.Connect(cfg.Server.Name); err != nil {
			logger.Fatal("Failed to connect to order service", zap.Error(err))
		}
		defer clients.Close()
		status = clients.OrderClient()
	}

	gw := gateway.NewGateway(&cfg.Gateway, gateway.Deps{
		Catalog: products,
		Orders:  orders,
		Status:  status,
		Carts:   carts,
		Guests:  users,
		Stats:   repository.NewStatsRepository(db),
		Auth:    authSvc,
		Tokens:  issuer,
		Images:  images,
		Events:  hub,
		Audit:   mongoRepo,
	}, logger.Named("http"))
	gw.SetupRoutes()

	productWatcher := notify.NewWatcher(bus, products, hub, logger.Named("watcher"), notify.TableProducts)
	orderWatcher := notify.NewWatcher(bus, orders, nil, logger.Named("watcher"), notify.TableOrders, notify.TableOrderItems)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(gw.Start)
	g.Go(func() error { return productWatcher.Run(gctx) })
	g.Go(func() error { return orderWatcher.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Received shutdown signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return gw.Shutdown(shutdownCtx)
	})

	logger.Info("Gateway started successfully")

	if err := g.Wait(); err != nil {
		logger.Error("Gateway error", zap.Error(err))
	}

	logger.Info("Gateway stopped")
}

package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/example/tablepos/pkg/auth"
	"github.com/example/tablepos/pkg/config"
	"github.com/example/tablepos/pkg/models"
	"github.com/example/tablepos/pkg/notify"
	"github.com/example/tablepos/pkg/repository"
	"github.com/example/tablepos/pkg/session"
	"github.com/example/tablepos/pkg/storage"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

type Catalog interface {
	Products() []models.Product
	Product(id string) (models.Product, bool)
	FindByBarcode(code string) (models.Product, bool)
	Search(term, category string, inStockOnly bool) []models.Product
	Categories() []string
	Create(ctx context.Context, fields models.ProductFields, img *storage.Image) (models.Product, error)
	Update(ctx context.Context, id string, fields models.ProductFields, img *storage.Image) (models.Product, error)
	Delete(ctx context.Context, id string) error
}

type Orders interface {
	Orders(status string) []models.Order
	Get(ctx context.Context, id string) (models.Order, error)
}

// StatusUpdater is served either by the local order repository or by the
// order service over gRPC.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id string, to models.OrderStatus) (models.Order, error)
}

type Carts interface {
	Send(sessionID string, msg interface{}) (*session.Reply, error)
	Close(sessionID string)
}

type Guests interface {
	LookupGuest(ctx context.Context, phone string) (*models.User, bool, error)
}

type Stats interface {
	Dashboard(ctx context.Context, now time.Time) (*repository.DashboardStats, error)
}

type Authenticator interface {
	Login(ctx context.Context, email, password string) (*auth.Session, error)
}

type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

type AuditReader interface {
	GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*repository.AuditLog, error)
}

// Deps are the services behind the HTTP API. Audit may be nil.
type Deps struct {
	Catalog Catalog
	Orders  Orders
	Status  StatusUpdater
	Carts   Carts
	Guests  Guests
	Stats   Stats
	Auth    Authenticator
	Tokens  TokenParser
	Images  storage.BlobStore
	Events  *notify.Hub
	Audit   AuditReader
}

type Gateway struct {
	config *config.GatewayConfig
	deps   Deps
	logger *zap.Logger
	router *gin.Engine
	server *http.Server
}

func NewGateway(cfg *config.GatewayConfig, deps Deps, logger *zap.Logger) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))
	router.Use(corsMiddleware(cfg.AllowOrigins))

	return &Gateway{
		config: cfg,
		deps:   deps,
		logger: logger,
		router: router,
		server: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", sessionHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return cors.New(c)
}

func (g *Gateway) SetupRoutes() {
	// Health check
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := g.router.Group("/api/v1")
	v1.Use(g.identify)
	{
		v1.POST("/auth/login", g.login)

		products := v1.Group("/products")
		{
			products.GET("", g.listProducts)
			products.GET("/search", g.searchProducts)
			products.GET("/categories", g.listCategories)
			products.GET("/barcode/:code", g.productByBarcode)
			products.POST("", g.requireStaff, g.createProduct)
			products.PUT("/:id", g.requireStaff, g.updateProduct)
			products.DELETE("/:id", g.requireStaff, g.deleteProduct)
		}
		v1.GET("/images/:name", g.getImage)

		cart := v1.Group("/cart")
		cart.Use(requireSession)
		{
			cart.GET("", g.getCart)
			cart.POST("/items", g.addCartItem)
			cart.PUT("/items/:product_id", g.updateCartItem)
			cart.PUT("/items/:product_id/note", g.setCartNote)
			cart.DELETE("/items/:product_id", g.removeCartItem)
			cart.DELETE("", g.clearCart)
			cart.POST("/checkout", g.checkout)
		}

		orders := v1.Group("/orders")
		orders.Use(g.requireStaff)
		{
			orders.GET("", g.listOrders)
			orders.GET("/:id", g.getOrder)
			orders.PUT("/:id/status", g.updateOrderStatus)
		}

		v1.GET("/guests/:phone", g.lookupGuest)
		v1.GET("/dashboard", g.requireStaff, g.dashboard)
		v1.GET("/audit/:entity_id", g.requireStaff, g.auditLogs)
		v1.GET("/realtime", g.realtime)
	}

	// Swagger
	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Handler exposes the router, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) Start() error {
	g.logger.Info("Gateway starting", zap.String("address", g.server.Addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	return g.server.Shutdown(ctx)
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		logger.Info("HTTP request", fields...)
	}
}

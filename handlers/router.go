package handlers

import (
	"shop-svc/cache"
	"shop-svc/database"
	"shop-svc/middleware"
	"shop-svc/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const tracerName = "shop-svc"

type RouterConfig struct {
	Logger      *zap.Logger
	Env         string
	Port        string
	Development bool

	Auth     *service.AuthService
	Orders   *service.OrderService
	Products database.ProductStore
	Cache    *cache.ProductCache
	Pinger   database.Pinger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	useJSONFieldNames()

	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(cfg.Logger, cfg.Development))
	// otelgin must run before the logger so the access log carries the trace id.
	router.Use(otelgin.Middleware(tracerName))
	router.Use(middleware.LoggerMiddleware(cfg.Logger))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/metrics", middleware.PrometheusHandler())

	api := router.Group("/api")

	health := NewHealthHandler(cfg.Pinger, cfg.Env, cfg.Port)
	api.GET("/health", health.HealthCheck)

	requireAuth := middleware.AuthMiddleware(cfg.Auth, cfg.Logger)
	requireAdmin := middleware.AdminMiddleware()

	authHandler := NewAuthHandler(cfg.Auth, cfg.Logger, cfg.Development)
	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", requireAuth, authHandler.Me)

	productHandler := NewProductHandler(cfg.Products, cfg.Cache, cfg.Logger, cfg.Development)
	products := api.Group("/products")
	products.GET("", productHandler.GetProducts)
	products.GET("/:id", productHandler.GetProduct)
	products.POST("", requireAuth, requireAdmin, productHandler.CreateProduct)
	products.PUT("/:id", requireAuth, requireAdmin, productHandler.UpdateProduct)
	products.DELETE("/:id", requireAuth, requireAdmin, productHandler.DeleteProduct)

	orderHandler := NewOrderHandler(cfg.Orders, cfg.Logger, cfg.Development)
	orders := api.Group("/orders", requireAuth)
	orders.GET("", requireAdmin, orderHandler.GetOrders)
	orders.GET("/my-orders", orderHandler.GetMyOrders)
	orders.GET("/:id", orderHandler.GetOrder)
	orders.POST("", orderHandler.CreateOrder)
	orders.PATCH("/:id/status", requireAdmin, orderHandler.UpdateOrderStatus)

	return router
}

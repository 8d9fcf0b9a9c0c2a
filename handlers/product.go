package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"shop-svc/cache"
	"shop-svc/circuitbreaker"
	"shop-svc/database"
	"shop-svc/middleware"
	"shop-svc/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var circuitOpenAttr = attribute.String("circuit.state", "open")

type ProductHandler struct {
	responder
	products       database.ProductStore
	cache          *cache.ProductCache
	circuitBreaker *circuitbreaker.CircuitBreaker
	now            func() time.Time
}

func NewProductHandler(products database.ProductStore, productCache *cache.ProductCache, logger *zap.Logger, development bool) *ProductHandler {
	return &ProductHandler{
		responder: responder{logger: logger, development: development},
		products:  products,
		cache:     productCache,
		circuitBreaker: circuitbreaker.NewCircuitBreaker(5, 30*time.Second,
			circuitbreaker.WithFailurePredicate(func(err error) bool {
				return !errors.Is(err, database.ErrNotFound) && !errors.Is(err, context.Canceled)
			}),
			circuitbreaker.WithStateChange(func(from, to circuitbreaker.State) {
				logger.Warn("Product store circuit breaker state changed",
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			}),
		),
		now: time.Now,
	}
}

func (h *ProductHandler) GetProducts(c *gin.Context) {
	ctx, span := otel.Tracer(tracerName).Start(c.Request.Context(), "GetProducts")
	defer span.End()

	filter := models.ProductFilter{Category: c.Query("category")}
	if raw, ok := c.GetQuery("featured"); ok {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "featured must be true or false"})
			return
		}
		filter.Featured = &featured
	}

	var products []models.Product
	err := h.circuitBreaker.Execute(ctx, func() error {
		var err error
		products, err = h.products.List(ctx, filter)
		return err
	})
	if err != nil {
		h.fail(c, span, err, "Error fetching products")
		return
	}

	span.SetAttributes(attribute.Int("products.count", len(products)))
	c.JSON(http.StatusOK, products)
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	ctx, span := otel.Tracer(tracerName).Start(c.Request.Context(), "GetProduct")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("product.id", id))

	productID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
		return
	}

	if cached, err := h.cache.GetProduct(ctx, id); err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		middleware.RecordCacheResult(true)
		c.JSON(http.StatusOK, cached)
		return
	} else if !errors.Is(err, cache.ErrMiss) {
		h.logger.Warn("Product cache read failed", zap.String("product_id", id), zap.Error(err))
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))
	if h.cache != nil {
		middleware.RecordCacheResult(false)
	}

	var product *models.Product
	err = h.circuitBreaker.Execute(ctx, func() error {
		var err error
		product, err = h.products.FindByID(ctx, productID)
		return err
	})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
			return
		}
		h.fail(c, span, err, "Error fetching product")
		return
	}

	if err := h.cache.SetProduct(ctx, product); err != nil {
		h.logger.Warn("Product cache write failed", zap.String("product_id", id), zap.Error(err))
	}

	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	ctx, span := otel.Tracer(tracerName).Start(c.Request.Context(), "CreateProduct")
	defer span.End()

	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	now := h.now().UTC()
	product := &models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Image:       req.Image,
		Stock:       req.Stock,
		Featured:    req.Featured,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := models.NewValidationError("product", product.Validate()); err != nil {
		h.fail(c, span, err, "Error creating product")
		return
	}

	if err := h.products.Create(ctx, product); err != nil {
		h.fail(c, span, err, "Error creating product")
		return
	}

	span.SetAttributes(attribute.String("product.id", product.ID.Hex()))
	h.logger.Info("Product created", zap.String("product_id", product.ID.Hex()))
	c.JSON(http.StatusCreated, product)
}

func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	ctx, span := otel.Tracer(tracerName).Start(c.Request.Context(), "UpdateProduct")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("product.id", id))

	productID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
		return
	}

	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	if err := models.NewValidationError("product", req.Validate()); err != nil {
		h.fail(c, span, err, "Error updating product")
		return
	}

	product, err := h.products.Update(ctx, productID, req)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
			return
		}
		h.fail(c, span, err, "Error updating product")
		return
	}

	h.invalidate(ctx, id)
	h.logger.Info("Product updated", zap.String("product_id", id))
	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	ctx, span := otel.Tracer(tracerName).Start(c.Request.Context(), "DeleteProduct")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("product.id", id))

	productID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
		return
	}

	if err := h.products.Delete(ctx, productID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
			return
		}
		h.fail(c, span, err, "Error deleting product")
		return
	}

	h.invalidate(ctx, id)
	h.logger.Info("Product deleted", zap.String("product_id", id))
	c.JSON(http.StatusOK, gin.H{"message": "Product removed"})
}

func (h *ProductHandler) invalidate(ctx context.Context, id string) {
	if err := h.cache.DeleteProduct(ctx, id); err != nil {
		h.logger.Warn("Product cache invalidation failed", zap.String("product_id", id), zap.Error(err))
	}
}

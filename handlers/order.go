package handlers

import (
	"errors"
	"net/http"

	"shop-svc/middleware"
	"shop-svc/models"
	"shop-svc/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type OrderHandler struct {
	responder
	orders *service.OrderService
}

func NewOrderHandler(orders *service.OrderService, logger *zap.Logger, development bool) *OrderHandler {
	return &OrderHandler{
		responder: responder{logger: logger, development: development},
		orders:    orders,
	}
}

func (h *OrderHandler) GetOrders(c *gin.Context) {
	ctx, span := otel.Tracer(tracerName).Start(c.Request.Context(), "GetOrders")
	defer span.End()

	orders, err := h.orders.ListOrders(ctx)
	if err != nil {
		h.internal(c, span, err, "Error fetching orders")
		return
	}

	span.SetAttributes(attribute.Int("orders.count", len(orders)))
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetMyOrders(c *gin.Context) {
	ctx, span := otel.Tracer(tracerName).Start(c.Request.Context(), "GetMyOrders")
	defer span.End()

	caller, _ := middleware.CurrentCaller(c)
	span.SetAttributes(attribute.String("user.id", caller.UserID.Hex()))

	orders, err := h.orders.MyOrders(ctx, caller)
	if err != nil {
		h.internal(c, span, err, "Error fetching orders")
		return
	}

	span.SetAttributes(attribute.Int("orders.count", len(orders)))
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, span := otel.Tracer(tracerName).Start(c.Request.Context(), "GetOrder")
	defer span.End()

	id := c.Param("id")
	caller, _ := middleware.CurrentCaller(c)
	span.SetAttributes(
		attribute.String("order.id", id),
		attribute.String("user.id", caller.UserID.Hex()),
	)

	order, err := h.orders.GetOrder(ctx, caller, id)
	if err != nil {
		h.fail(c, span, err, "Error fetching order")
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ctx, span := otel.Tracer(tracerName).Start(c.Request.Context(), "CreateOrder")
	defer span.End()

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RecordOrderRejected("validation")
		h.badRequest(c, err)
		return
	}

	caller, _ := middleware.CurrentCaller(c)
	span.SetAttributes(
		attribute.String("user.id", caller.UserID.Hex()),
		attribute.Int("order.items", len(req.Items)),
	)

	order, err := h.orders.CreateOrder(ctx, caller, req)
	if err != nil {
		middleware.RecordOrderRejected(rejectionReason(err))
		h.fail(c, span, err, "Error creating order")
		return
	}

	middleware.RecordOrderCreated()
	span.SetAttributes(
		attribute.String("order.id", order.ID.Hex()),
		attribute.Float64("order.total_amount", order.TotalAmount),
	)
	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	ctx, span := otel.Tracer(tracerName).Start(c.Request.Context(), "UpdateOrderStatus")
	defer span.End()

	id := c.Param("id")
	span.SetAttributes(attribute.String("order.id", id))

	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	span.SetAttributes(attribute.String("order.status", string(req.Status)))

	order, err := h.orders.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		h.fail(c, span, err, "Error updating order status")
		return
	}

	c.JSON(http.StatusOK, order)
}

func rejectionReason(err error) string {
	var stockErr *service.InsufficientStockError
	var validationErr *models.ValidationError
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		return "product_not_found"
	case errors.As(err, &stockErr):
		return "insufficient_stock"
	case errors.As(err, &validationErr):
		return "validation"
	}
	return "internal"
}

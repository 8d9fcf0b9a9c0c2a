package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shop-svc/database"
	"shop-svc/events"
	"shop-svc/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ProductCacheInvalidator drops cached product documents after their stock changes.
type ProductCacheInvalidator interface {
	DeleteProduct(ctx context.Context, ids ...string) error
}

type OrderService struct {
	store           *database.Store
	cache           ProductCacheInvalidator
	publisher       events.Publisher
	logger          *zap.Logger
	restockOnCancel bool
	now             func() time.Time
}

type OrderOption func(s *OrderService)

func WithProductCache(cache ProductCacheInvalidator) OrderOption {
	return func(s *OrderService) {
		s.cache = cache
	}
}

func WithPublisher(publisher events.Publisher) OrderOption {
	return func(s *OrderService) {
		s.publisher = publisher
	}
}

// WithRestockOnCancel returns line item quantities to stock the first time an order is cancelled.
func WithRestockOnCancel(enabled bool) OrderOption {
	return func(s *OrderService) {
		s.restockOnCancel = enabled
	}
}

func NewOrderService(store *database.Store, logger *zap.Logger, opts ...OrderOption) *OrderService {
	s := &OrderService{
		store:     store,
		publisher: events.NoopPublisher{},
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder reserves stock for every line item and persists the order. Each decrement is a
// conditional store update, so concurrent orders can never oversell. If any item or the final
// insert fails, the decrements already applied are returned to stock before the error is.
func (s *OrderService) CreateOrder(ctx context.Context, caller Caller, req models.CreateOrderRequest) (*models.Order, error) {
	items := make([]models.OrderItem, 0, len(req.Items))

	for i, line := range req.Items {
		item, err := s.reserve(ctx, i, line)
		if err != nil {
			s.release(ctx, items)
			return nil, err
		}
		items = append(items, item)
	}

	now := s.now().UTC()
	order := &models.Order{
		User:            caller.UserID,
		Items:           items,
		TotalAmount:     models.CalculateTotal(items),
		ShippingAddress: req.ShippingAddress,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		PaymentMethod:   req.PaymentMethod,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := models.NewValidationError("order", order.Validate()); err != nil {
		s.release(ctx, items)
		return nil, err
	}

	if err := s.store.Orders.Create(ctx, order); err != nil {
		s.release(ctx, items)
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.invalidate(ctx, items)
	s.publish(ctx, events.NewOrderEvent(events.OrderCreated, order))

	s.logger.Info("Order created",
		zap.String("order_id", order.ID.Hex()),
		zap.String("user_id", caller.UserID.Hex()),
		zap.Int("items", len(items)),
		zap.Float64("total_amount", order.TotalAmount),
	)
	return order, nil
}

func (s *OrderService) reserve(ctx context.Context, index int, line models.OrderItemRequest) (models.OrderItem, error) {
	if line.Quantity < 1 {
		return models.OrderItem{}, models.NewValidationError("order", []models.FieldError{{
			Field:   fmt.Sprintf("items.%d.quantity", index),
			Message: "Quantity must be at least 1",
		}})
	}

	productID, err := primitive.ObjectIDFromHex(line.Product)
	if err != nil {
		return models.OrderItem{}, ErrProductNotFound
	}

	product, err := s.findProduct(ctx, productID)
	if err != nil {
		return models.OrderItem{}, err
	}

	applied, err := s.store.Products.DecrementStock(ctx, productID, line.Quantity)
	if err != nil {
		return models.OrderItem{}, fmt.Errorf("failed to decrement stock: %w", err)
	}
	if !applied {
		// The product may have been deleted since the lookup.
		if _, err := s.findProduct(ctx, productID); err != nil {
			return models.OrderItem{}, err
		}
		return models.OrderItem{}, &InsufficientStockError{ProductName: product.Name}
	}

	return models.OrderItem{
		Product:  productID,
		Quantity: line.Quantity,
		Price:    product.Price,
	}, nil
}

func (s *OrderService) findProduct(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	product, err := s.store.Products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return product, nil
}

// release puts reserved quantities back. It runs detached from ctx so a cancelled request
// still compensates.
func (s *OrderService) release(ctx context.Context, items []models.OrderItem) {
	if len(items) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		if err := s.store.Products.IncrementStock(ctx, item.Product, item.Quantity); err != nil {
			s.logger.Error("Failed to release reserved stock",
				zap.String("product_id", item.Product.Hex()),
				zap.Int("quantity", item.Quantity),
				zap.Error(err),
			)
		}
	}
	s.invalidate(ctx, items)
}

func (s *OrderService) invalidate(ctx context.Context, items []models.OrderItem) {
	if s.cache == nil || len(items) == 0 {
		return
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.Product.Hex())
	}
	if err := s.cache.DeleteProduct(ctx, ids...); err != nil {
		s.logger.Warn("Failed to invalidate product cache", zap.Strings("product_ids", ids), zap.Error(err))
	}
}

func (s *OrderService) publish(ctx context.Context, event events.OrderEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish order event",
			zap.String("event_type", string(event.EventType)),
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}

// ListOrders returns every order with the owner's name and email and each product's name and
// price expanded.
func (s *OrderService) ListOrders(ctx context.Context) ([]models.OrderView, error) {
	orders, err := s.store.Orders.Find(ctx, database.OrderFilter{})
	if err != nil {
		return nil, err
	}
	return s.populate(ctx, orders, populateOptions{users: true})
}

// MyOrders returns the caller's orders with product name, price and image expanded.
func (s *OrderService) MyOrders(ctx context.Context, caller Caller) ([]models.OrderView, error) {
	orders, err := s.store.Orders.Find(ctx, database.OrderFilter{UserID: &caller.UserID})
	if err != nil {
		return nil, err
	}
	return s.populate(ctx, orders, populateOptions{productImage: true})
}

func (s *OrderService) GetOrder(ctx context.Context, caller Caller, id string) (*models.OrderView, error) {
	order, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanAccessOrder(caller, order.User) {
		return nil, ErrAccessDenied
	}

	views, err := s.populate(ctx, []models.Order{*order}, populateOptions{users: true, productImage: true})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// UpdateStatus writes any valid status regardless of the current one.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	orderID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	before, after, err := s.store.Orders.UpdateStatus(ctx, orderID, status)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if s.restockOnCancel && status == models.OrderStatusCancelled && before.Status != models.OrderStatusCancelled {
		s.restock(ctx, after)
	}

	event := events.NewOrderEvent(events.OrderStatusUpdated, after)
	event.PreviousStatus = before.Status
	s.publish(ctx, event)

	s.logger.Info("Order status updated",
		zap.String("order_id", after.ID.Hex()),
		zap.String("from", string(before.Status)),
		zap.String("to", string(after.Status)),
	)
	return after, nil
}

func (s *OrderService) restock(ctx context.Context, order *models.Order) {
	ctx = context.WithoutCancel(ctx)

	first, err := s.store.Orders.MarkRestocked(ctx, order.ID)
	if err != nil {
		s.logger.Error("Failed to mark order restocked", zap.String("order_id", order.ID.Hex()), zap.Error(err))
		return
	}
	if !first {
		return
	}

	for _, item := range order.Items {
		if err := s.store.Products.IncrementStock(ctx, item.Product, item.Quantity); err != nil {
			s.logger.Warn("Failed to restock product",
				zap.String("order_id", order.ID.Hex()),
				zap.String("product_id", item.Product.Hex()),
				zap.Error(err),
			)
		}
	}
	s.invalidate(ctx, order.Items)
	s.logger.Info("Order stock restored", zap.String("order_id", order.ID.Hex()))
}

func (s *OrderService) findOrder(ctx context.Context, id string) (*models.Order, error) {
	orderID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	order, err := s.store.Orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

package database

import (
	"context"
	"errors"

	"shop-svc/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
}

type ProductStore interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error)
	List(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)
	// Update writes only the fields set in patch and returns the product after the write.
	// Stock is touched only when the patch carries it.
	Update(ctx context.Context, id primitive.ObjectID, patch models.UpdateProductRequest) (*models.Product, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	// DecrementStock subtracts qty only if the current stock covers it, in a single
	// store operation. applied is false when the product is missing or under-stocked.
	DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) (applied bool, err error)
	IncrementStock(ctx context.Context, id primitive.ObjectID, qty int) error
}

type OrderFilter struct {
	UserID *primitive.ObjectID
}

type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	Find(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	// UpdateStatus sets the status and returns the order as it was before and after the update.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.OrderStatus) (before, after *models.Order, err error)
	// MarkRestocked flips the restocked flag once; it reports false if it was already set.
	MarkRestocked(ctx context.Context, id primitive.ObjectID) (bool, error)
}

// Store bundles the three collections the service works with.
type Store struct {
	Users    UserStore
	Products ProductStore
	Orders   OrderStore
}

// Pinger reports store reachability for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

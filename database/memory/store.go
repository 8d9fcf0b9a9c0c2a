// Package memory keeps users, products and orders in process memory. It mirrors the
// Mongo repositories closely enough to back tests and local runs without a database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"shop-svc/database"
	"shop-svc/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewStore returns a Store whose three repositories are backed by maps.
func NewStore() *database.Store {
	return &database.Store{
		Users:    NewUserRepository(),
		Products: NewProductRepository(),
		Orders:   NewOrderRepository(),
	}
}

type UserRepository struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]models.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[primitive.ObjectID]models.User)}
}

func (r *UserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return database.ErrDuplicateKey
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if _, exists := r.users[user.ID]; exists {
		return database.ErrDuplicateKey
	}

	r.users[user.ID] = *user
	return nil
}

func (r *UserRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, database.ErrNotFound
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range r.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, database.ErrNotFound
}

func (r *UserRepository) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var users []models.User
	for _, id := range ids {
		if user, exists := r.users[id]; exists {
			users = append(users, user)
		}
	}
	return users, nil
}

type ProductRepository struct {
	mu       sync.RWMutex
	products map[primitive.ObjectID]models.Product
}

func NewProductRepository() *ProductRepository {
	return &ProductRepository{products: make(map[primitive.ObjectID]models.Product)}
}

func (r *ProductRepository) Create(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID.IsZero() {
		product.ID = primitive.NewObjectID()
	}
	if _, exists := r.products[product.ID]; exists {
		return database.ErrDuplicateKey
	}

	r.products[product.ID] = *product
	return nil
}

func (r *ProductRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, exists := r.products[id]
	if !exists {
		return nil, database.ErrNotFound
	}
	return &product, nil
}

func (r *ProductRepository) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var products []models.Product
	for _, id := range ids {
		if product, exists := r.products[id]; exists {
			products = append(products, product)
		}
	}
	return products, nil
}

func (r *ProductRepository) List(_ context.Context, filter models.ProductFilter) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	products := []models.Product{}
	for _, product := range r.products {
		if filter.Category != "" && product.Category != filter.Category {
			continue
		}
		if filter.Featured != nil && product.Featured != *filter.Featured {
			continue
		}
		products = append(products, product)
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
	return products, nil
}

func (r *ProductRepository) Update(_ context.Context, id primitive.ObjectID, patch models.UpdateProductRequest) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, exists := r.products[id]
	if !exists {
		return nil, database.ErrNotFound
	}
	patch.Apply(&product)
	product.UpdatedAt = time.Now().UTC()
	r.products[id] = product
	return &product, nil
}

func (r *ProductRepository) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.products[id]; !exists {
		return database.ErrNotFound
	}
	delete(r.products, id)
	return nil
}

func (r *ProductRepository) DecrementStock(_ context.Context, id primitive.ObjectID, qty int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, exists := r.products[id]
	if !exists || product.Stock < qty {
		return false, nil
	}
	product.Stock -= qty
	product.UpdatedAt = time.Now().UTC()
	r.products[id] = product
	return true, nil
}

func (r *ProductRepository) IncrementStock(_ context.Context, id primitive.ObjectID, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, exists := r.products[id]
	if !exists {
		return database.ErrNotFound
	}
	product.Stock += qty
	product.UpdatedAt = time.Now().UTC()
	r.products[id] = product
	return nil
}

type OrderRepository struct {
	mu     sync.RWMutex
	orders map[primitive.ObjectID]models.Order
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: make(map[primitive.ObjectID]models.Order)}
}

func (r *OrderRepository) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	if _, exists := r.orders[order.ID]; exists {
		return database.ErrDuplicateKey
	}

	r.orders[order.ID] = copyOrder(*order)
	return nil
}

func (r *OrderRepository) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, exists := r.orders[id]
	if !exists {
		return nil, database.ErrNotFound
	}
	order = copyOrder(order)
	return &order, nil
}

func (r *OrderRepository) Find(_ context.Context, filter database.OrderFilter) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orders := []models.Order{}
	for _, order := range r.orders {
		if filter.UserID != nil && order.User != *filter.UserID {
			continue
		}
		orders = append(orders, copyOrder(order))
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (r *OrderRepository) UpdateStatus(_ context.Context, id primitive.ObjectID, status models.OrderStatus) (*models.Order, *models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, exists := r.orders[id]
	if !exists {
		return nil, nil, database.ErrNotFound
	}
	before := copyOrder(order)

	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	r.orders[id] = order

	after := copyOrder(order)
	return &before, &after, nil
}

func (r *OrderRepository) MarkRestocked(_ context.Context, id primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, exists := r.orders[id]
	if !exists || order.Restocked {
		return false, nil
	}
	order.Restocked = true
	r.orders[id] = order
	return true, nil
}

func copyOrder(order models.Order) models.Order {
	order.Items = append([]models.OrderItem(nil), order.Items...)
	return order
}

package service

import (
	"context"
	"fmt"

	"shop-svc/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type populateOptions struct {
	users        bool
	productImage bool
}

// populate expands order references with one batch lookup per collection. A reference
// whose document no longer exists is left unexpanded for users and null for products.
func (s *OrderService) populate(ctx context.Context, orders []models.Order, opts populateOptions) ([]models.OrderView, error) {
	products, err := s.productsByID(ctx, orders)
	if err != nil {
		return nil, err
	}

	var users map[primitive.ObjectID]*models.UserSummary
	if opts.users {
		if users, err = s.usersByID(ctx, orders); err != nil {
			return nil, err
		}
	}

	views := make([]models.OrderView, 0, len(orders))
	for _, order := range orders {
		view := models.OrderView{
			ID:              order.ID,
			User:            models.UserRef{ID: order.User, Summary: users[order.User]},
			Items:           make([]models.OrderItemView, 0, len(order.Items)),
			TotalAmount:     order.TotalAmount,
			ShippingAddress: order.ShippingAddress,
			Status:          order.Status,
			PaymentStatus:   order.PaymentStatus,
			PaymentMethod:   order.PaymentMethod,
			CreatedAt:       order.CreatedAt,
			UpdatedAt:       order.UpdatedAt,
		}
		for _, item := range order.Items {
			itemView := models.OrderItemView{Quantity: item.Quantity, Price: item.Price}
			if product, ok := products[item.Product]; ok {
				itemView.Product = product.Summary(opts.productImage)
			}
			view.Items = append(view.Items, itemView)
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *OrderService) productsByID(ctx context.Context, orders []models.Order) (map[primitive.ObjectID]*models.Product, error) {
	var ids []primitive.ObjectID
	seen := make(map[primitive.ObjectID]bool)
	for _, order := range orders {
		for _, item := range order.Items {
			if !seen[item.Product] {
				seen[item.Product] = true
				ids = append(ids, item.Product)
			}
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	products, err := s.store.Products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load order products: %w", err)
	}

	byID := make(map[primitive.ObjectID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return byID, nil
}

func (s *OrderService) usersByID(ctx context.Context, orders []models.Order) (map[primitive.ObjectID]*models.UserSummary, error) {
	var ids []primitive.ObjectID
	seen := make(map[primitive.ObjectID]bool)
	for _, order := range orders {
		if !seen[order.User] {
			seen[order.User] = true
			ids = append(ids, order.User)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	users, err := s.store.Users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load order owners: %w", err)
	}

	byID := make(map[primitive.ObjectID]*models.UserSummary, len(users))
	for i := range users {
		byID[users[i].ID] = users[i].Summary()
	}
	return byID, nil
}

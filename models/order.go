package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed:
		return true
	}
	return false
}

type ShippingAddress struct {
	Street  string `json:"street" bson:"street" binding:"required"`
	City    string `json:"city" bson:"city" binding:"required"`
	State   string `json:"state" bson:"state" binding:"required"`
	ZipCode string `json:"zipCode" bson:"zipCode" binding:"required"`
	Country string `json:"country" bson:"country" binding:"required"`
}

// OrderItem is a line item; Price is the unit price captured when the order was placed.
type OrderItem struct {
	Product  primitive.ObjectID `json:"product" bson:"product"`
	Quantity int                `json:"quantity" bson:"quantity"`
	Price    float64            `json:"price" bson:"price"`
}

type Order struct {
	ID              primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	User            primitive.ObjectID `json:"user" bson:"user"`
	Items           []OrderItem        `json:"items" bson:"items"`
	TotalAmount     float64            `json:"totalAmount" bson:"totalAmount"`
	ShippingAddress ShippingAddress    `json:"shippingAddress" bson:"shippingAddress"`
	Status          OrderStatus        `json:"status" bson:"status"`
	PaymentStatus   PaymentStatus      `json:"paymentStatus" bson:"paymentStatus"`
	PaymentMethod   string             `json:"paymentMethod" bson:"paymentMethod"`
	Restocked       bool               `json:"-" bson:"restocked,omitempty"`
	CreatedAt       time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// CalculateTotal sums quantity × captured price across the line items.
func CalculateTotal(items []OrderItem) float64 {
	var total float64
	for _, item := range items {
		total += float64(item.Quantity) * item.Price
	}
	return total
}

func (o *Order) Validate() []FieldError {
	var fields []FieldError

	if o.User.IsZero() {
		fields = append(fields, FieldError{Field: "user", Message: "User is required"})
	}
	if len(o.Items) == 0 {
		fields = append(fields, FieldError{Field: "items", Message: "Order must contain at least one item"})
	}
	for i, item := range o.Items {
		if item.Product.IsZero() {
			fields = append(fields, FieldError{Field: fmt.Sprintf("items.%d.product", i), Message: "Product is required"})
		}
		if item.Quantity < 1 {
			fields = append(fields, FieldError{Field: fmt.Sprintf("items.%d.quantity", i), Message: "Quantity must be at least 1"})
		}
		if item.Price < 0 {
			fields = append(fields, FieldError{Field: fmt.Sprintf("items.%d.price", i), Message: "Price cannot be negative"})
		}
	}
	if o.TotalAmount != CalculateTotal(o.Items) {
		fields = append(fields, FieldError{Field: "totalAmount", Message: "Total amount does not match items"})
	}

	addr := o.ShippingAddress
	fields = required(fields, "shippingAddress.street", addr.Street, "Street is required")
	fields = required(fields, "shippingAddress.city", addr.City, "City is required")
	fields = required(fields, "shippingAddress.state", addr.State, "State is required")
	fields = required(fields, "shippingAddress.zipCode", addr.ZipCode, "Zip code is required")
	fields = required(fields, "shippingAddress.country", addr.Country, "Country is required")

	if !o.Status.Valid() {
		fields = append(fields, FieldError{Field: "status", Message: fmt.Sprintf("%q is not a valid order status", o.Status)})
	}
	if !o.PaymentStatus.Valid() {
		fields = append(fields, FieldError{Field: "paymentStatus", Message: fmt.Sprintf("%q is not a valid payment status", o.PaymentStatus)})
	}
	fields = required(fields, "paymentMethod", o.PaymentMethod, "Payment method is required")

	return fields
}

// OrderView is an order with its user and product references expanded.
type OrderView struct {
	ID              primitive.ObjectID `json:"_id"`
	User            UserRef            `json:"user"`
	Items           []OrderItemView    `json:"items"`
	TotalAmount     float64            `json:"totalAmount"`
	ShippingAddress ShippingAddress    `json:"shippingAddress"`
	Status          OrderStatus        `json:"status"`
	PaymentStatus   PaymentStatus      `json:"paymentStatus"`
	PaymentMethod   string             `json:"paymentMethod"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

type OrderItemView struct {
	Product  *ProductSummary `json:"product"`
	Quantity int             `json:"quantity"`
	Price    float64         `json:"price"`
}

type OrderItemRequest struct {
	Product  string `json:"product" binding:"required"`
	Quantity int    `json:"quantity" binding:"min=1"`
}

type CreateOrderRequest struct {
	Items           []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	ShippingAddress ShippingAddress    `json:"shippingAddress" binding:"required"`
	PaymentMethod   string             `json:"paymentMethod" binding:"required"`
}

type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Product struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name        string             `json:"name" bson:"name"`
	Description string             `json:"description" bson:"description"`
	Price       float64            `json:"price" bson:"price"`
	Category    string             `json:"category" bson:"category"`
	Image       string             `json:"image" bson:"image"`
	Stock       int                `json:"stock" bson:"stock"`
	Featured    bool               `json:"featured" bson:"featured"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

func (p *Product) Validate() []FieldError {
	var fields []FieldError
	fields = required(fields, "name", p.Name, "Please add a product name")
	fields = required(fields, "description", p.Description, "Please add a description")
	if p.Price < 0 {
		fields = append(fields, FieldError{Field: "price", Message: "Price cannot be negative"})
	}
	fields = required(fields, "category", p.Category, "Please add a category")
	fields = required(fields, "image", p.Image, "Please add an image URL")
	if p.Stock < 0 {
		fields = append(fields, FieldError{Field: "stock", Message: "Stock cannot be negative"})
	}
	return fields
}

// ProductSummary is the expanded form of a product reference inside an order line item.
type ProductSummary struct {
	ID    primitive.ObjectID `json:"_id"`
	Name  string             `json:"name"`
	Price float64            `json:"price"`
	Image string             `json:"image,omitempty"`
}

func (p *Product) Summary(withImage bool) *ProductSummary {
	s := &ProductSummary{ID: p.ID, Name: p.Name, Price: p.Price}
	if withImage {
		s.Image = p.Image
	}
	return s
}

type ProductFilter struct {
	Category string
	Featured *bool
}

type CreateProductRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description" binding:"required"`
	Price       float64 `json:"price" binding:"gte=0"`
	Category    string  `json:"category" binding:"required"`
	Image       string  `json:"image" binding:"required"`
	Stock       int     `json:"stock" binding:"gte=0"`
	Featured    bool    `json:"featured"`
}

// UpdateProductRequest carries a partial update; nil fields are left untouched.
type UpdateProductRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" binding:"omitempty,gte=0"`
	Category    *string  `json:"category"`
	Image       *string  `json:"image"`
	Stock       *int     `json:"stock" binding:"omitempty,gte=0"`
	Featured    *bool    `json:"featured"`
}

// Validate checks only the fields present in the patch.
func (r *UpdateProductRequest) Validate() []FieldError {
	var fields []FieldError
	if r.Name != nil {
		fields = required(fields, "name", *r.Name, "Please add a product name")
	}
	if r.Description != nil {
		fields = required(fields, "description", *r.Description, "Please add a description")
	}
	if r.Price != nil && *r.Price < 0 {
		fields = append(fields, FieldError{Field: "price", Message: "Price cannot be negative"})
	}
	if r.Category != nil {
		fields = required(fields, "category", *r.Category, "Please add a category")
	}
	if r.Image != nil {
		fields = required(fields, "image", *r.Image, "Please add an image URL")
	}
	if r.Stock != nil && *r.Stock < 0 {
		fields = append(fields, FieldError{Field: "stock", Message: "Stock cannot be negative"})
	}
	return fields
}

// Apply copies the set fields onto p.
func (r *UpdateProductRequest) Apply(p *Product) {
	if r.Name != nil {
		p.Name = *r.Name
	}
	if r.Description != nil {
		p.Description = *r.Description
	}
	if r.Price != nil {
		p.Price = *r.Price
	}
	if r.Category != nil {
		p.Category = *r.Category
	}
	if r.Image != nil {
		p.Image = *r.Image
	}
	if r.Stock != nil {
		p.Stock = *r.Stock
	}
	if r.Featured != nil {
		p.Featured = *r.Featured
	}
}

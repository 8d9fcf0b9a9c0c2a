package models

import (
	"encoding/json"
	"net/mail"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type User struct {
	ID           primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name         string             `json:"name" bson:"name"`
	Email        string             `json:"email" bson:"email"`
	PasswordHash string             `json:"-" bson:"password"`
	Role         Role               `json:"role" bson:"role"`
	CreatedAt    time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt" bson:"updatedAt"`
}

func (u *User) Validate() []FieldError {
	var fields []FieldError
	fields = required(fields, "name", u.Name, "Please add a name")
	fields = required(fields, "email", u.Email, "Please add an email")
	if u.Email != "" {
		if _, err := mail.ParseAddress(u.Email); err != nil {
			fields = append(fields, FieldError{Field: "email", Message: "Please add a valid email"})
		}
	}
	fields = required(fields, "password", u.PasswordHash, "Please add a password")
	if !u.Role.Valid() {
		fields = append(fields, FieldError{Field: "role", Message: "Role must be user or admin"})
	}
	return fields
}

// UserSummary is the expanded form of a user reference inside an order.
type UserSummary struct {
	ID    primitive.ObjectID `json:"_id"`
	Name  string             `json:"name"`
	Email string             `json:"email"`
}

func (u *User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

// UserRef is an order's owner reference. It encodes as the bare id unless Summary is set.
type UserRef struct {
	ID      primitive.ObjectID
	Summary *UserSummary
}

func (r UserRef) MarshalJSON() ([]byte, error) {
	if r.Summary != nil {
		return json.Marshal(r.Summary)
	}
	return json.Marshal(r.ID)
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

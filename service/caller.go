package service

import (
	"shop-svc/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Caller is the authenticated identity behind a request.
type Caller struct {
	UserID primitive.ObjectID
	Role   models.Role
}

func (c Caller) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

// CanAccessOrder allows admins and the order's owner.
func CanAccessOrder(caller Caller, owner primitive.ObjectID) bool {
	return caller.IsAdmin() || caller.UserID == owner
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account that owns CRM documents
type User struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Email         string             `json:"email" bson:"email"`
	PasswordHash  string             `json:"-" bson:"password_hash"`
	Name          string             `json:"name" bson:"name"`
	Role          string             `json:"role" bson:"role"`
	EmailVerified bool               `json:"email_verified" bson:"email_verified"`
	LastLoginAt   *time.Time         `json:"last_login_at,omitempty" bson:"last_login_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" bson:"updated_at"`
}

// UserInfo represents user information in auth responses
type UserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"email_verified"`
}

// Info converts a User to its response shape
func (u *User) Info() UserInfo {
	return UserInfo{
		ID:            u.ID.Hex(),
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
	}
}

// UpdateUserRequest represents an admin request to update a user
type UpdateUserRequest struct {
	Name *string `json:"name,omitempty" validate:"omitempty,min=2"`
	Role *string `json:"role,omitempty" validate:"omitempty,oneof=user admin"`
}

// AdminStats holds instance-wide document counts for the admin dashboard
type AdminStats struct {
	Users         int64 `json:"users"`
	Contacts      int64 `json:"contacts"`
	Companies     int64 `json:"companies"`
	Opportunities int64 `json:"opportunities"`
	Activities    int64 `json:"activities"`
	Expenses      int64 `json:"expenses"`
	Leads         int64 `json:"leads"`
}

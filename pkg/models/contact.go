package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Contact represents a person in the CRM, optionally attached to a company
type Contact struct {
	ID        primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	UserID    primitive.ObjectID  `json:"user_id" bson:"user_id"`
	FirstName string              `json:"first_name" bson:"first_name"`
	LastName  string              `json:"last_name" bson:"last_name"`
	Email     string              `json:"email,omitempty" bson:"email,omitempty"`
	Phone     string              `json:"phone,omitempty" bson:"phone,omitempty"`
	Position  string              `json:"position,omitempty" bson:"position,omitempty"`
	CompanyID *primitive.ObjectID `json:"company_id,omitempty" bson:"company_id,omitempty"`
	Notes     string              `json:"notes,omitempty" bson:"notes,omitempty"`
	Tags      []string            `json:"tags,omitempty" bson:"tags,omitempty"`
	IsActive  bool                `json:"is_active" bson:"is_active"`
	CreatedAt time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time           `json:"updated_at" bson:"updated_at"`

	// Company is resolved from company_id on reads, never stored
	Company *CompanySummary `json:"company,omitempty" bson:"-"`
}

// CreateContactRequest represents a create contact request
type CreateContactRequest struct {
	FirstName string   `json:"first_name" validate:"required,min=1,max=100"`
	LastName  string   `json:"last_name" validate:"required,min=1,max=100"`
	Email     string   `json:"email,omitempty" validate:"omitempty,email"`
	Phone     string   `json:"phone,omitempty" validate:"omitempty,max=30"`
	Position  string   `json:"position,omitempty" validate:"omitempty,max=100"`
	CompanyID string   `json:"company_id,omitempty"`
	Notes     string   `json:"notes,omitempty" validate:"omitempty,max=2000"`
	Tags      []string `json:"tags,omitempty" validate:"omitempty,dive,max=50"`
	IsActive  *bool    `json:"is_active,omitempty"`
}

// UpdateContactRequest represents a partial contact update
type UpdateContactRequest struct {
	FirstName *string   `json:"first_name,omitempty" validate:"omitempty,min=1,max=100"`
	LastName  *string   `json:"last_name,omitempty" validate:"omitempty,min=1,max=100"`
	Email     *string   `json:"email,omitempty" validate:"omitempty,email"`
	Phone     *string   `json:"phone,omitempty" validate:"omitempty,max=30"`
	Position  *string   `json:"position,omitempty" validate:"omitempty,max=100"`
	CompanyID *string   `json:"company_id,omitempty"`
	Notes     *string   `json:"notes,omitempty" validate:"omitempty,max=2000"`
	Tags      *[]string `json:"tags,omitempty"`
	IsActive  *bool     `json:"is_active,omitempty"`
}

// ImportContactsRequest represents a JSON bulk contact import
type ImportContactsRequest struct {
	Contacts []CreateContactRequest `json:"contacts" validate:"required,min=1,max=1000"`
}

// ImportRowError describes a skipped import row
type ImportRowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ImportResult summarizes a bulk import: created rows plus per-row failures
type ImportResult struct {
	Imported []Contact        `json:"imported"`
	Skipped  []ImportRowError `json:"skipped"`
}

// ContactFilter holds the optional list query parameters for contacts
type ContactFilter struct {
	Search    string `query:"search"`
	CompanyID string `query:"company_id"`
	Tag       string `query:"tag"`
	IsActive  *bool  `query:"is_active"`
}

// Build converts the filter into an ownership-scoped bson query
func (f ContactFilter) Build(userID primitive.ObjectID) bson.M {
	q := bson.M{"user_id": userID}
	if f.Search != "" {
		q["$or"] = searchClause(f.Search, "first_name", "last_name", "email", "position")
	}
	if f.CompanyID != "" {
		if cid, err := primitive.ObjectIDFromHex(f.CompanyID); err == nil {
			q["company_id"] = cid
		}
	}
	if f.Tag != "" {
		q["tags"] = f.Tag
	}
	if f.IsActive != nil {
		q["is_active"] = *f.IsActive
	}
	return q
}

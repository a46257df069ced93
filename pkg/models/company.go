package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Company status values
const (
	CompanyStatusActive   = "active"
	CompanyStatusInactive = "inactive"
	CompanyStatusProspect = "prospect"
)

// Priority values shared by companies and opportunities
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Address is a structured postal address embedded in a company
type Address struct {
	Street  string `json:"street,omitempty" bson:"street,omitempty"`
	City    string `json:"city,omitempty" bson:"city,omitempty"`
	State   string `json:"state,omitempty" bson:"state,omitempty"`
	Country string `json:"country,omitempty" bson:"country,omitempty"`
	Zip     string `json:"zip,omitempty" bson:"zip,omitempty"`
}

// PointOfContact is the primary contact person embedded in a company
type PointOfContact struct {
	Name       string `json:"name,omitempty" bson:"name,omitempty"`
	Importance int    `json:"importance,omitempty" bson:"importance,omitempty" validate:"omitempty,min=1,max=3"`
}

// EmbeddedContact is an additional contact person stored inside a company document
type EmbeddedContact struct {
	Name     string `json:"name" bson:"name" validate:"required,min=1,max=100"`
	Email    string `json:"email,omitempty" bson:"email,omitempty" validate:"omitempty,email"`
	Phone    string `json:"phone,omitempty" bson:"phone,omitempty" validate:"omitempty,max=30"`
	Position string `json:"position,omitempty" bson:"position,omitempty" validate:"omitempty,max=100"`
}

// Company represents an organization in the CRM
type Company struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID         primitive.ObjectID `json:"user_id" bson:"user_id"`
	Name           string             `json:"name" bson:"name"`
	Sector         string             `json:"sector,omitempty" bson:"sector,omitempty"`
	Website        string             `json:"website,omitempty" bson:"website,omitempty"`
	Email          string             `json:"email,omitempty" bson:"email,omitempty"`
	Phone          string             `json:"phone,omitempty" bson:"phone,omitempty"`
	Address        Address            `json:"address,omitempty" bson:"address,omitempty"`
	PointOfContact PointOfContact     `json:"point_of_contact,omitempty" bson:"point_of_contact,omitempty"`
	Contacts       []EmbeddedContact  `json:"contacts,omitempty" bson:"contacts,omitempty"`
	Status         string             `json:"status" bson:"status"`
	Priority       string             `json:"priority,omitempty" bson:"priority,omitempty"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" bson:"updated_at"`
}

// CompanySummary is the shape used when a company is attached to another resource
type CompanySummary struct {
	ID     primitive.ObjectID `json:"id" bson:"_id"`
	Name   string             `json:"name" bson:"name"`
	Sector string             `json:"sector,omitempty" bson:"sector,omitempty"`
}

// Summary reduces a company to its reference shape
func (c *Company) Summary() *CompanySummary {
	return &CompanySummary{ID: c.ID, Name: c.Name, Sector: c.Sector}
}

// CreateCompanyRequest represents a create company request
type CreateCompanyRequest struct {
	Name           string            `json:"name" validate:"required,min=1,max=200"`
	Sector         string            `json:"sector,omitempty" validate:"omitempty,max=100"`
	Website        string            `json:"website,omitempty" validate:"omitempty,url"`
	Email          string            `json:"email,omitempty" validate:"omitempty,email"`
	Phone          string            `json:"phone,omitempty" validate:"omitempty,max=30"`
	Address        Address           `json:"address,omitempty"`
	PointOfContact PointOfContact    `json:"point_of_contact,omitempty"`
	Contacts       []EmbeddedContact `json:"contacts,omitempty" validate:"omitempty,dive"`
	Status         string            `json:"status,omitempty" validate:"omitempty,oneof=active inactive prospect"`
	Priority       string            `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
}

// Validate applies the rules the struct tags cannot express
func (r CreateCompanyRequest) Validate() error {
	for i, c := range r.Contacts {
		if c.Name == "" {
			return fmt.Errorf("contacts[%d]: name is required", i)
		}
	}
	return nil
}

// UpdateCompanyRequest represents a partial company update
type UpdateCompanyRequest struct {
	Name           *string            `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Sector         *string            `json:"sector,omitempty" validate:"omitempty,max=100"`
	Website        *string            `json:"website,omitempty" validate:"omitempty,url"`
	Email          *string            `json:"email,omitempty" validate:"omitempty,email"`
	Phone          *string            `json:"phone,omitempty" validate:"omitempty,max=30"`
	Address        *Address           `json:"address,omitempty"`
	PointOfContact *PointOfContact    `json:"point_of_contact,omitempty"`
	Contacts       *[]EmbeddedContact `json:"contacts,omitempty" validate:"omitempty,dive"`
	Status         *string            `json:"status,omitempty" validate:"omitempty,oneof=active inactive prospect"`
	Priority       *string            `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
}

// CompanyFilter holds the optional list query parameters for companies
type CompanyFilter struct {
	Search   string `query:"search"`
	Sector   string `query:"sector"`
	Status   string `query:"status"`
	Priority string `query:"priority"`
	Country  string `query:"country"`
}

// Build converts the filter into an ownership-scoped bson query
func (f CompanyFilter) Build(userID primitive.ObjectID) bson.M {
	q := bson.M{"user_id": userID}
	if f.Search != "" {
		q["$or"] = searchClause(f.Search, "name", "email", "website", "address.city")
	}
	if f.Sector != "" {
		q["sector"] = f.Sector
	}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.Priority != "" {
		q["priority"] = f.Priority
	}
	if f.Country != "" {
		q["address.country"] = f.Country
	}
	return q
}

// CompanyStats is the payload of GET /companies/stats/overview
type CompanyStats struct {
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"by_status"`
	BySector   map[string]int64 `json:"by_sector"`
	ByPriority map[string]int64 `json:"by_priority"`
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Lead statuses
const (
	LeadNew         = "new"
	LeadContacted   = "contacted"
	LeadQualified   = "qualified"
	LeadUnqualified = "unqualified"
	LeadConverted   = "converted"
	LeadLost        = "lost"
)

// Lead temperatures
const (
	TempCold = "cold"
	TempWarm = "warm"
	TempHot  = "hot"
)

// Conversion records the documents created when a lead was converted
type Conversion struct {
	ContactID     primitive.ObjectID  `json:"contact_id" bson:"contact_id"`
	CompanyID     *primitive.ObjectID `json:"company_id,omitempty" bson:"company_id,omitempty"`
	OpportunityID *primitive.ObjectID `json:"opportunity_id,omitempty" bson:"opportunity_id,omitempty"`
	ConvertedAt   time.Time           `json:"converted_at" bson:"converted_at"`
}

// Lead represents an unqualified prospect that may be converted into a
// contact, company and opportunity
type Lead struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID         primitive.ObjectID `json:"user_id" bson:"user_id"`
	Name           string             `json:"name" bson:"name"`
	Email          string             `json:"email,omitempty" bson:"email,omitempty"`
	Phone          string             `json:"phone,omitempty" bson:"phone,omitempty"`
	CompanyName    string             `json:"company_name,omitempty" bson:"company_name,omitempty"`
	Status         string             `json:"status" bson:"status"`
	Temperature    string             `json:"temperature,omitempty" bson:"temperature,omitempty"`
	Score          int                `json:"score" bson:"score"`
	Source         string             `json:"source,omitempty" bson:"source,omitempty"`
	EstimatedValue float64            `json:"estimated_value,omitempty" bson:"estimated_value,omitempty"`
	Notes          string             `json:"notes,omitempty" bson:"notes,omitempty"`
	Converted      *Conversion        `json:"converted,omitempty" bson:"converted,omitempty"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" bson:"updated_at"`
}

// CreateLeadRequest represents a create lead request
type CreateLeadRequest struct {
	Name           string  `json:"name" validate:"required,min=1,max=200"`
	Email          string  `json:"email,omitempty" validate:"omitempty,email"`
	Phone          string  `json:"phone,omitempty" validate:"omitempty,max=30"`
	CompanyName    string  `json:"company_name,omitempty" validate:"omitempty,max=200"`
	Status         string  `json:"status,omitempty" validate:"omitempty,oneof=new contacted qualified unqualified converted lost"`
	Temperature    string  `json:"temperature,omitempty" validate:"omitempty,oneof=cold warm hot"`
	Score          *int    `json:"score,omitempty" validate:"omitempty,min=0,max=100"`
	Source         string  `json:"source,omitempty" validate:"omitempty,max=100"`
	EstimatedValue float64 `json:"estimated_value,omitempty" validate:"omitempty,gte=0"`
	Notes          string  `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// UpdateLeadRequest represents a partial lead update
type UpdateLeadRequest struct {
	Name           *string  `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Email          *string  `json:"email,omitempty" validate:"omitempty,email"`
	Phone          *string  `json:"phone,omitempty" validate:"omitempty,max=30"`
	CompanyName    *string  `json:"company_name,omitempty" validate:"omitempty,max=200"`
	Status         *string  `json:"status,omitempty" validate:"omitempty,oneof=new contacted qualified unqualified converted lost"`
	Temperature    *string  `json:"temperature,omitempty" validate:"omitempty,oneof=cold warm hot"`
	Score          *int     `json:"score,omitempty" validate:"omitempty,min=0,max=100"`
	Source         *string  `json:"source,omitempty" validate:"omitempty,max=100"`
	EstimatedValue *float64 `json:"estimated_value,omitempty" validate:"omitempty,gte=0"`
	Notes          *string  `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// ConvertLeadRequest controls what documents a lead conversion creates
type ConvertLeadRequest struct {
	CreateCompany     bool    `json:"create_company,omitempty"`
	CreateOpportunity bool    `json:"create_opportunity,omitempty"`
	OpportunityTitle  string  `json:"opportunity_title,omitempty" validate:"omitempty,max=200"`
	OpportunityAmount float64 `json:"opportunity_amount,omitempty" validate:"omitempty,gte=0"`
}

// ConvertLeadResult is the payload of a successful conversion
type ConvertLeadResult struct {
	Lead        Lead         `json:"lead"`
	Contact     Contact      `json:"contact"`
	Company     *Company     `json:"company,omitempty"`
	Opportunity *Opportunity `json:"opportunity,omitempty"`
}

// LeadFilter holds the optional list query parameters for leads
type LeadFilter struct {
	Search      string `query:"search"`
	Status      string `query:"status"`
	Temperature string `query:"temperature"`
	Source      string `query:"source"`
	MinScore    *int   `query:"min_score"`
}

// Build converts the filter into an ownership-scoped bson query
func (f LeadFilter) Build(userID primitive.ObjectID) bson.M {
	q := bson.M{"user_id": userID}
	if f.Search != "" {
		q["$or"] = searchClause(f.Search, "name", "email", "company_name")
	}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.Temperature != "" {
		q["temperature"] = f.Temperature
	}
	if f.Source != "" {
		q["source"] = f.Source
	}
	if f.MinScore != nil {
		q["score"] = bson.M{"$gte": *f.MinScore}
	}
	return q
}

// LeadStats is the payload of GET /leads/analytics/stats
type LeadStats struct {
	Total         int64            `json:"total"`
	ByStatus      map[string]int64 `json:"by_status"`
	ByTemperature map[string]int64 `json:"by_temperature"`
	BySource      map[string]int64 `json:"by_source"`
	AverageScore  float64          `json:"average_score"`
}

// ConversionStats is the payload of GET /leads/analytics/conversion
type ConversionStats struct {
	Total          int64   `json:"total"`
	Converted      int64   `json:"converted"`
	Lost           int64   `json:"lost"`
	ConversionRate float64 `json:"conversion_rate"`
	ConvertedValue float64 `json:"converted_value"`
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Opportunity pipeline stages. Transitions are deliberately unconstrained:
// any stage may be written at any time.
const (
	StageQuality       = "quality"
	StageMeetContact   = "meet_contact"
	StageMeetPresent   = "meet_present"
	StagePurpose       = "purpose"
	StageNegotiate     = "negotiate"
	StageClosedWin     = "closed_win"
	StageLost          = "lost"
	StageNotResponding = "not_responding"
	StageRemarks       = "remarks"
)

// PipelineStages lists every valid opportunity status, in funnel order
var PipelineStages = []string{
	StageQuality, StageMeetContact, StageMeetPresent, StagePurpose,
	StageNegotiate, StageClosedWin, StageLost, StageNotResponding, StageRemarks,
}

// Forecast categories
const (
	ForecastPipeline = "pipeline"
	ForecastBestCase = "best_case"
	ForecastCommit   = "commit"
	ForecastClosed   = "closed"
)

// Opportunity represents a deal moving through the sales pipeline
type Opportunity struct {
	ID               primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	UserID           primitive.ObjectID  `json:"user_id" bson:"user_id"`
	Title            string              `json:"title" bson:"title"`
	Amount           float64             `json:"amount" bson:"amount"`
	ForecastAmount   float64             `json:"forecast_amount,omitempty" bson:"forecast_amount,omitempty"`
	CompanyID        primitive.ObjectID  `json:"company_id" bson:"company_id"`
	ContactID        *primitive.ObjectID `json:"contact_id,omitempty" bson:"contact_id,omitempty"`
	Status           string              `json:"status" bson:"status"`
	Probability      int                 `json:"probability" bson:"probability"`
	Priority         string              `json:"priority,omitempty" bson:"priority,omitempty"`
	Sector           string              `json:"sector,omitempty" bson:"sector,omitempty"`
	ForecastCategory string              `json:"forecast_category,omitempty" bson:"forecast_category,omitempty"`
	Importance       int                 `json:"importance,omitempty" bson:"importance,omitempty"`
	Competitors      []string            `json:"competitors,omitempty" bson:"competitors,omitempty"`
	OpenDate         *time.Time          `json:"open_date,omitempty" bson:"open_date,omitempty"`
	CloseDate        *time.Time          `json:"close_date,omitempty" bson:"close_date,omitempty"`
	CreatedAt        time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at" bson:"updated_at"`

	// Resolved references, never stored
	Company *CompanySummary `json:"company,omitempty" bson:"-"`
	Contact *ContactSummary `json:"contact,omitempty" bson:"-"`
}

// ContactSummary is the shape used when a contact is attached to another resource
type ContactSummary struct {
	ID        primitive.ObjectID `json:"id" bson:"_id"`
	FirstName string             `json:"first_name" bson:"first_name"`
	LastName  string             `json:"last_name" bson:"last_name"`
	Email     string             `json:"email,omitempty" bson:"email,omitempty"`
}

// Summary reduces a contact to its reference shape
func (c *Contact) Summary() *ContactSummary {
	return &ContactSummary{ID: c.ID, FirstName: c.FirstName, LastName: c.LastName, Email: c.Email}
}

// CreateOpportunityRequest represents a create opportunity request.
// The referenced company must already exist; inline company creation is
// deliberately unsupported to keep writes single-document.
type CreateOpportunityRequest struct {
	Title            string     `json:"title" validate:"required,min=1,max=200"`
	Amount           float64    `json:"amount" validate:"gte=0"`
	ForecastAmount   float64    `json:"forecast_amount,omitempty" validate:"omitempty,gte=0"`
	CompanyID        string     `json:"company_id" validate:"required"`
	ContactID        string     `json:"contact_id,omitempty"`
	Status           string     `json:"status,omitempty" validate:"omitempty,oneof=quality meet_contact meet_present purpose negotiate closed_win lost not_responding remarks"`
	Probability      *int       `json:"probability,omitempty" validate:"omitempty,min=0,max=100"`
	Priority         string     `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	Sector           string     `json:"sector,omitempty" validate:"omitempty,max=100"`
	ForecastCategory string     `json:"forecast_category,omitempty" validate:"omitempty,oneof=pipeline best_case commit closed"`
	Importance       int        `json:"importance,omitempty" validate:"omitempty,min=1,max=3"`
	Competitors      []string   `json:"competitors,omitempty" validate:"omitempty,dive,max=100"`
	OpenDate         *time.Time `json:"open_date,omitempty"`
	CloseDate        *time.Time `json:"close_date,omitempty"`
}

// UpdateOpportunityRequest represents a partial opportunity update
type UpdateOpportunityRequest struct {
	Title            *string    `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Amount           *float64   `json:"amount,omitempty" validate:"omitempty,gte=0"`
	ForecastAmount   *float64   `json:"forecast_amount,omitempty" validate:"omitempty,gte=0"`
	CompanyID        *string    `json:"company_id,omitempty"`
	ContactID        *string    `json:"contact_id,omitempty"`
	Status           *string    `json:"status,omitempty" validate:"omitempty,oneof=quality meet_contact meet_present purpose negotiate closed_win lost not_responding remarks"`
	Probability      *int       `json:"probability,omitempty" validate:"omitempty,min=0,max=100"`
	Priority         *string    `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	Sector           *string    `json:"sector,omitempty" validate:"omitempty,max=100"`
	ForecastCategory *string    `json:"forecast_category,omitempty" validate:"omitempty,oneof=pipeline best_case commit closed"`
	Importance       *int       `json:"importance,omitempty" validate:"omitempty,min=1,max=3"`
	Competitors      *[]string  `json:"competitors,omitempty"`
	OpenDate         *time.Time `json:"open_date,omitempty"`
	CloseDate        *time.Time `json:"close_date,omitempty"`
}

// OpportunityFilter holds the optional list query parameters for opportunities
type OpportunityFilter struct {
	Search    string     `query:"search"`
	Status    string     `query:"status"`
	Priority  string     `query:"priority"`
	Sector    string     `query:"sector"`
	CompanyID string     `query:"company_id"`
	MinAmount *float64   `query:"min_amount"`
	MaxAmount *float64   `query:"max_amount"`
	OpenAfter *time.Time `query:"open_after"`
}

// Build converts the filter into an ownership-scoped bson query
func (f OpportunityFilter) Build(userID primitive.ObjectID) bson.M {
	q := bson.M{"user_id": userID}
	if f.Search != "" {
		q["$or"] = searchClause(f.Search, "title", "sector")
	}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.Priority != "" {
		q["priority"] = f.Priority
	}
	if f.Sector != "" {
		q["sector"] = f.Sector
	}
	if f.CompanyID != "" {
		if cid, err := primitive.ObjectIDFromHex(f.CompanyID); err == nil {
			q["company_id"] = cid
		}
	}
	amount := bson.M{}
	if f.MinAmount != nil {
		amount["$gte"] = *f.MinAmount
	}
	if f.MaxAmount != nil {
		amount["$lte"] = *f.MaxAmount
	}
	if len(amount) > 0 {
		q["amount"] = amount
	}
	if f.OpenAfter != nil {
		q["open_date"] = bson.M{"$gte": *f.OpenAfter}
	}
	return q
}

// PipelineStage is one row of the pipeline analytics breakdown
type PipelineStage struct {
	Status         string  `json:"status"`
	Count          int64   `json:"count"`
	Amount         float64 `json:"amount"`
	WeightedAmount float64 `json:"weighted_amount"`
}

// ForecastBucket is one row of the forecast analytics breakdown
type ForecastBucket struct {
	Category       string  `json:"category"`
	Count          int64   `json:"count"`
	ForecastAmount float64 `json:"forecast_amount"`
}

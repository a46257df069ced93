package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Activity types
const (
	ActivityCall     = "call"
	ActivityEmail    = "email"
	ActivityMeeting  = "meeting"
	ActivityDemo     = "demo"
	ActivityProposal = "proposal"
	ActivityFollowUp = "follow_up"
	ActivityTask     = "task"
	ActivityNote     = "note"
	ActivityVisit    = "visit"
	ActivityOther    = "other"
)

// Activity statuses
const (
	ActivityScheduled = "scheduled"
	ActivityCompleted = "completed"
	ActivityCancelled = "cancelled"
	ActivityOverdue   = "overdue"
)

// Reminder configures a notification before an activity starts
type Reminder struct {
	Enabled       bool `json:"enabled" bson:"enabled"`
	MinutesBefore int  `json:"minutes_before,omitempty" bson:"minutes_before,omitempty"`
}

// Recurrence configures a repeating activity
type Recurrence struct {
	Frequency string     `json:"frequency,omitempty" bson:"frequency,omitempty" validate:"omitempty,oneof=daily weekly monthly"`
	Until     *time.Time `json:"until,omitempty" bson:"until,omitempty"`
}

// Activity represents a calendar entry (call, meeting, task, ...) optionally
// linked to a contact, company and opportunity
type Activity struct {
	ID            primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	UserID        primitive.ObjectID  `json:"user_id" bson:"user_id"`
	Title         string              `json:"title" bson:"title"`
	Type          string              `json:"type" bson:"type"`
	Status        string              `json:"status" bson:"status"`
	StartTime     time.Time           `json:"start_time" bson:"start_time"`
	EndTime       *time.Time          `json:"end_time,omitempty" bson:"end_time,omitempty"`
	Location      string              `json:"location,omitempty" bson:"location,omitempty"`
	Description   string              `json:"description,omitempty" bson:"description,omitempty"`
	ContactID     *primitive.ObjectID `json:"contact_id,omitempty" bson:"contact_id,omitempty"`
	CompanyID     *primitive.ObjectID `json:"company_id,omitempty" bson:"company_id,omitempty"`
	OpportunityID *primitive.ObjectID `json:"opportunity_id,omitempty" bson:"opportunity_id,omitempty"`
	Reminder      Reminder            `json:"reminder,omitempty" bson:"reminder,omitempty"`
	Recurrence    *Recurrence         `json:"recurrence,omitempty" bson:"recurrence,omitempty"`
	CreatedAt     time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at" bson:"updated_at"`

	// Resolved references, never stored
	Contact     *ContactSummary     `json:"contact,omitempty" bson:"-"`
	Company     *CompanySummary     `json:"company,omitempty" bson:"-"`
	Opportunity *OpportunitySummary `json:"opportunity,omitempty" bson:"-"`
}

// OpportunitySummary is the shape used when an opportunity is attached to another resource
type OpportunitySummary struct {
	ID     primitive.ObjectID `json:"id" bson:"_id"`
	Title  string             `json:"title" bson:"title"`
	Status string             `json:"status" bson:"status"`
	Amount float64            `json:"amount" bson:"amount"`
}

// Summary reduces an opportunity to its reference shape
func (o *Opportunity) Summary() *OpportunitySummary {
	return &OpportunitySummary{ID: o.ID, Title: o.Title, Status: o.Status, Amount: o.Amount}
}

// CreateActivityRequest represents a create activity request
type CreateActivityRequest struct {
	Title         string      `json:"title" validate:"required,min=1,max=200"`
	Type          string      `json:"type,omitempty" validate:"omitempty,oneof=call email meeting demo proposal follow_up task note visit other"`
	Status        string      `json:"status,omitempty" validate:"omitempty,oneof=scheduled completed cancelled overdue"`
	StartTime     time.Time   `json:"start_time" validate:"required"`
	EndTime       *time.Time  `json:"end_time,omitempty"`
	Location      string      `json:"location,omitempty" validate:"omitempty,max=200"`
	Description   string      `json:"description,omitempty" validate:"omitempty,max=2000"`
	ContactID     string      `json:"contact_id,omitempty"`
	CompanyID     string      `json:"company_id,omitempty"`
	OpportunityID string      `json:"opportunity_id,omitempty"`
	Reminder      *Reminder   `json:"reminder,omitempty"`
	Recurrence    *Recurrence `json:"recurrence,omitempty" validate:"omitempty"`
}

// Validate enforces the time-window invariant: end, when present, is never
// before start. Equal start and end is a valid zero-length activity.
func (r CreateActivityRequest) Validate() error {
	if r.EndTime != nil && r.EndTime.Before(r.StartTime) {
		return fmt.Errorf("end_time must not be before start_time")
	}
	return nil
}

// UpdateActivityRequest represents a partial activity update
type UpdateActivityRequest struct {
	Title         *string     `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Type          *string     `json:"type,omitempty" validate:"omitempty,oneof=call email meeting demo proposal follow_up task note visit other"`
	Status        *string     `json:"status,omitempty" validate:"omitempty,oneof=scheduled completed cancelled overdue"`
	StartTime     *time.Time  `json:"start_time,omitempty"`
	EndTime       *time.Time  `json:"end_time,omitempty"`
	Location      *string     `json:"location,omitempty" validate:"omitempty,max=200"`
	Description   *string     `json:"description,omitempty" validate:"omitempty,max=2000"`
	ContactID     *string     `json:"contact_id,omitempty"`
	CompanyID     *string     `json:"company_id,omitempty"`
	OpportunityID *string     `json:"opportunity_id,omitempty"`
	Reminder      *Reminder   `json:"reminder,omitempty"`
	Recurrence    *Recurrence `json:"recurrence,omitempty"`
}

// ActivityFilter holds the optional list query parameters for activities
type ActivityFilter struct {
	Search        string     `query:"search"`
	Type          string     `query:"type"`
	Status        string     `query:"status"`
	ContactID     string     `query:"contact_id"`
	CompanyID     string     `query:"company_id"`
	OpportunityID string     `query:"opportunity_id"`
	From          *time.Time `query:"from"`
	To            *time.Time `query:"to"`
}

// Build converts the filter into an ownership-scoped bson query
func (f ActivityFilter) Build(userID primitive.ObjectID) bson.M {
	q := bson.M{"user_id": userID}
	if f.Search != "" {
		q["$or"] = searchClause(f.Search, "title", "description", "location")
	}
	if f.Type != "" {
		q["type"] = f.Type
	}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.ContactID != "" {
		if id, err := primitive.ObjectIDFromHex(f.ContactID); err == nil {
			q["contact_id"] = id
		}
	}
	if f.CompanyID != "" {
		if id, err := primitive.ObjectIDFromHex(f.CompanyID); err == nil {
			q["company_id"] = id
		}
	}
	if f.OpportunityID != "" {
		if id, err := primitive.ObjectIDFromHex(f.OpportunityID); err == nil {
			q["opportunity_id"] = id
		}
	}
	window := bson.M{}
	if f.From != nil {
		window["$gte"] = *f.From
	}
	if f.To != nil {
		window["$lte"] = *f.To
	}
	if len(window) > 0 {
		q["start_time"] = window
	}
	return q
}

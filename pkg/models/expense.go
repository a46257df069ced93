package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Expense categories
var ExpenseCategories = []string{
	"travel", "meals", "accommodation", "transport", "marketing",
	"office", "software", "entertainment", "other",
}

// Expense approval statuses
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Expense represents a cost tracked against the sales process
type Expense struct {
	ID             primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	UserID         primitive.ObjectID  `json:"user_id" bson:"user_id"`
	Title          string              `json:"title" bson:"title"`
	Amount         float64             `json:"amount" bson:"amount"`
	Category       string              `json:"category" bson:"category"`
	Date           time.Time           `json:"date" bson:"date"`
	OpportunityID  *primitive.ObjectID `json:"opportunity_id,omitempty" bson:"opportunity_id,omitempty"`
	CompanyID      *primitive.ObjectID `json:"company_id,omitempty" bson:"company_id,omitempty"`
	ContactID      *primitive.ObjectID `json:"contact_id,omitempty" bson:"contact_id,omitempty"`
	TaxRate        float64             `json:"tax_rate,omitempty" bson:"tax_rate,omitempty"`
	TaxAmount      float64             `json:"tax_amount" bson:"tax_amount"`
	Total          float64             `json:"total" bson:"total"`
	Billable       bool                `json:"billable" bson:"billable"`
	ApprovalStatus string              `json:"approval_status" bson:"approval_status"`
	ReceiptURL     string              `json:"receipt_url,omitempty" bson:"receipt_url,omitempty"`
	Notes          string              `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt      time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at" bson:"updated_at"`

	// Resolved references, never stored
	Opportunity *OpportunitySummary `json:"opportunity,omitempty" bson:"-"`
	Company     *CompanySummary     `json:"company,omitempty" bson:"-"`
	Contact     *ContactSummary     `json:"contact,omitempty" bson:"-"`
}

// ComputeTotals derives tax_amount and total from amount and tax_rate.
// Stored values are always server-computed, never trusted from the client.
func (e *Expense) ComputeTotals() {
	e.TaxAmount = e.Amount * e.TaxRate / 100
	e.Total = e.Amount + e.TaxAmount
}

// CreateExpenseRequest represents a create expense request
type CreateExpenseRequest struct {
	Title         string     `json:"title" validate:"required,min=1,max=200"`
	Amount        *float64   `json:"amount" validate:"required,gte=0"`
	Category      string     `json:"category,omitempty" validate:"omitempty,oneof=travel meals accommodation transport marketing office software entertainment other"`
	Date          *time.Time `json:"date,omitempty"`
	OpportunityID string     `json:"opportunity_id,omitempty"`
	CompanyID     string     `json:"company_id,omitempty"`
	ContactID     string     `json:"contact_id,omitempty"`
	TaxRate       float64    `json:"tax_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	Billable      bool       `json:"billable,omitempty"`
	ReceiptURL    string     `json:"receipt_url,omitempty" validate:"omitempty,url"`
	Notes         string     `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// UpdateExpenseRequest represents a partial expense update
type UpdateExpenseRequest struct {
	Title          *string    `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Amount         *float64   `json:"amount,omitempty" validate:"omitempty,gte=0"`
	Category       *string    `json:"category,omitempty" validate:"omitempty,oneof=travel meals accommodation transport marketing office software entertainment other"`
	Date           *time.Time `json:"date,omitempty"`
	OpportunityID  *string    `json:"opportunity_id,omitempty"`
	CompanyID      *string    `json:"company_id,omitempty"`
	ContactID      *string    `json:"contact_id,omitempty"`
	TaxRate        *float64   `json:"tax_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	Billable       *bool      `json:"billable,omitempty"`
	ApprovalStatus *string    `json:"approval_status,omitempty" validate:"omitempty,oneof=pending approved rejected"`
	ReceiptURL     *string    `json:"receipt_url,omitempty" validate:"omitempty,url"`
	Notes          *string    `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// ExpenseFilter holds the optional list query parameters for expenses
type ExpenseFilter struct {
	Search         string     `query:"search"`
	Category       string     `query:"category"`
	ApprovalStatus string     `query:"approval_status"`
	Billable       *bool      `query:"billable"`
	CompanyID      string     `query:"company_id"`
	From           *time.Time `query:"from"`
	To             *time.Time `query:"to"`
}

// Build converts the filter into an ownership-scoped bson query
func (f ExpenseFilter) Build(userID primitive.ObjectID) bson.M {
	q := bson.M{"user_id": userID}
	if f.Search != "" {
		q["$or"] = searchClause(f.Search, "title", "notes")
	}
	if f.Category != "" {
		q["category"] = f.Category
	}
	if f.ApprovalStatus != "" {
		q["approval_status"] = f.ApprovalStatus
	}
	if f.Billable != nil {
		q["billable"] = *f.Billable
	}
	if f.CompanyID != "" {
		if id, err := primitive.ObjectIDFromHex(f.CompanyID); err == nil {
			q["company_id"] = id
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
		q["date"] = window
	}
	return q
}

// ExpenseSummary is the payload of GET /expenses/analytics/summary
type ExpenseSummary struct {
	Total      float64            `json:"total"`
	Count      int64              `json:"count"`
	ByCategory map[string]float64 `json:"by_category"`
	ByStatus   map[string]int64   `json:"by_status"`
	Billable   float64            `json:"billable"`
}

// MonthlyExpense is one row of GET /expenses/analytics/monthly
type MonthlyExpense struct {
	Year  int     `json:"year" bson:"year"`
	Month int     `json:"month" bson:"month"`
	Total float64 `json:"total" bson:"total"`
	Count int64   `json:"count" bson:"count"`
}

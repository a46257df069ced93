package expenses

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pipedesk/pipedesk/pkg/database"
	"github.com/pipedesk/pipedesk/pkg/models"
)

var (
	// ErrNotFound covers both missing and foreign-owned expenses
	ErrNotFound = errors.New("expense not found")
	// ErrBadReference is returned when a linked resource does not exist
	ErrBadReference = errors.New("linked resource not found")
)

// Service handles expense business logic
type Service struct {
	db *database.Client
}

// NewService creates a new expense service
func NewService(db *database.Client) *Service {
	return &Service{db: db}
}

func (s *Service) col() *mongo.Collection {
	return s.db.Collection(database.ColExpenses)
}

// Create inserts an expense. Tax amount and total are always computed
// server-side from amount and tax rate.
func (s *Service) Create(ctx context.Context, userID primitive.ObjectID, req models.CreateExpenseRequest) (*models.Expense, error) {
	opportunityID, err := s.ref(ctx, userID, database.ColOpportunities, req.OpportunityID)
	if err != nil {
		return nil, err
	}
	companyID, err := s.ref(ctx, userID, database.ColCompanies, req.CompanyID)
	if err != nil {
		return nil, err
	}
	contactID, err := s.ref(ctx, userID, database.ColContacts, req.ContactID)
	if err != nil {
		return nil, err
	}

	category := req.Category
	if category == "" {
		category = "other"
	}

	now := time.Now().UTC()
	date := now
	if req.Date != nil {
		date = *req.Date
	}

	expense := &models.Expense{
		UserID:         userID,
		Title:          req.Title,
		Amount:         *req.Amount,
		Category:       category,
		Date:           date,
		OpportunityID:  opportunityID,
		CompanyID:      companyID,
		ContactID:      contactID,
		TaxRate:        req.TaxRate,
		Billable:       req.Billable,
		ApprovalStatus: models.ApprovalPending,
		ReceiptURL:     req.ReceiptURL,
		Notes:          req.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	expense.ComputeTotals()

	res, err := s.col().InsertOne(ctx, expense)
	if err != nil {
		return nil, fmt.Errorf("failed creating expense: %w", err)
	}
	expense.ID = res.InsertedID.(primitive.ObjectID)
	return expense, nil
}

// List returns the user's expenses matching the filter, most recent first
func (s *Service) List(ctx context.Context, userID primitive.ObjectID, filter models.ExpenseFilter, page, limit int) ([]models.Expense, int64, error) {
	page, limit = models.NormalizePage(page, limit)
	query := filter.Build(userID)

	total, err := s.col().CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed counting expenses: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cur, err := s.col().Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed listing expenses: %w", err)
	}
	defer cur.Close(ctx)

	var items []models.Expense
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("failed decoding expenses: %w", err)
	}

	refs := make([]*models.Expense, len(items))
	for i := range items {
		refs[i] = &items[i]
	}
	s.resolveRefs(ctx, userID, refs)

	return items, total, nil
}

// Get fetches one expense by id, scoped to the owner
func (s *Service) Get(ctx context.Context, userID, id primitive.ObjectID) (*models.Expense, error) {
	var expense models.Expense
	err := s.col().FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&expense)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed fetching expense: %w", err)
	}

	s.resolveRefs(ctx, userID, []*models.Expense{&expense})
	return &expense, nil
}

// Update applies a partial update. Changing amount or tax rate recomputes
// the stored totals.
func (s *Service) Update(ctx context.Context, userID, id primitive.ObjectID, req models.UpdateExpenseRequest) (*models.Expense, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	unset := bson.M{}

	if req.Title != nil {
		set["title"] = *req.Title
	}
	if req.Category != nil {
		set["category"] = *req.Category
	}
	if req.Date != nil {
		set["date"] = *req.Date
	}
	if req.Billable != nil {
		set["billable"] = *req.Billable
	}
	if req.ApprovalStatus != nil {
		set["approval_status"] = *req.ApprovalStatus
	}
	if req.ReceiptURL != nil {
		set["receipt_url"] = *req.ReceiptURL
	}
	if req.Notes != nil {
		set["notes"] = *req.Notes
	}

	if req.Amount != nil || req.TaxRate != nil {
		current, err := s.Get(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		recomputed := *current
		if req.Amount != nil {
			recomputed.Amount = *req.Amount
		}
		if req.TaxRate != nil {
			recomputed.TaxRate = *req.TaxRate
		}
		recomputed.ComputeTotals()
		set["amount"] = recomputed.Amount
		set["tax_rate"] = recomputed.TaxRate
		set["tax_amount"] = recomputed.TaxAmount
		set["total"] = recomputed.Total
	}

	for _, link := range []struct {
		field string
		col   string
		ref   *string
	}{
		{"opportunity_id", database.ColOpportunities, req.OpportunityID},
		{"company_id", database.ColCompanies, req.CompanyID},
		{"contact_id", database.ColContacts, req.ContactID},
	} {
		if link.ref == nil {
			continue
		}
		if *link.ref == "" {
			unset[link.field] = ""
			continue
		}
		refID, err := s.ref(ctx, userID, link.col, *link.ref)
		if err != nil {
			return nil, err
		}
		set[link.field] = refID
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var expense models.Expense
	err := s.col().FindOneAndUpdate(ctx, bson.M{"_id": id, "user_id": userID}, update, opts).Decode(&expense)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed updating expense: %w", err)
	}
	return &expense, nil
}

// Delete removes an expense owned by userID
func (s *Service) Delete(ctx context.Context, userID, id primitive.ObjectID) error {
	res, err := s.col().DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed deleting expense: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Summary aggregates the overall expense stats for the user
func (s *Service) Summary(ctx context.Context, userID primitive.ObjectID) (*models.ExpenseSummary, error) {
	summary := &models.ExpenseSummary{
		ByCategory: make(map[string]float64),
		ByStatus:   make(map[string]int64),
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$total"},
			"count": bson.M{"$sum": 1},
			"billable": bson.M{"$sum": bson.M{
				"$cond": bson.A{"$billable", "$total", 0},
			}},
		}}},
	}
	cur, err := s.col().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed aggregating expenses: %w", err)
	}
	var totals []struct {
		Total    float64 `bson:"total"`
		Count    int64   `bson:"count"`
		Billable float64 `bson:"billable"`
	}
	if err := cur.All(ctx, &totals); err != nil {
		return nil, fmt.Errorf("failed decoding expense totals: %w", err)
	}
	if len(totals) > 0 {
		summary.Total = totals[0].Total
		summary.Count = totals[0].Count
		summary.Billable = totals[0].Billable
	}

	catCur, err := s.col().Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$group", Value: bson.M{"_id": "$category", "total": bson.M{"$sum": "$total"}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed aggregating expense categories: %w", err)
	}
	var cats []struct {
		ID    string  `bson:"_id"`
		Total float64 `bson:"total"`
	}
	if err := catCur.All(ctx, &cats); err != nil {
		return nil, fmt.Errorf("failed decoding expense categories: %w", err)
	}
	for _, c := range cats {
		summary.ByCategory[c.ID] = c.Total
	}

	statusCur, err := s.col().Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$group", Value: bson.M{"_id": "$approval_status", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed aggregating expense statuses: %w", err)
	}
	var statuses []struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := statusCur.All(ctx, &statuses); err != nil {
		return nil, fmt.Errorf("failed decoding expense statuses: %w", err)
	}
	for _, st := range statuses {
		summary.ByStatus[st.ID] = st.Count
	}

	return summary, nil
}

// Monthly aggregates totals per calendar month over the past months
func (s *Service) Monthly(ctx context.Context, userID primitive.ObjectID, months int) ([]models.MonthlyExpense, error) {
	if months <= 0 || months > 36 {
		months = 12
	}
	since := time.Now().UTC().AddDate(0, -months, 0)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID, "date": bson.M{"$gte": since}}}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"year": bson.M{"$year": "$date"}, "month": bson.M{"$month": "$date"}},
			"total": bson.M{"$sum": "$total"},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id.year", Value: 1}, {Key: "_id.month", Value: 1}}}},
	}

	cur, err := s.col().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed aggregating monthly expenses: %w", err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID struct {
			Year  int `bson:"year"`
			Month int `bson:"month"`
		} `bson:"_id"`
		Total float64 `bson:"total"`
		Count int64   `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed decoding monthly expenses: %w", err)
	}

	out := make([]models.MonthlyExpense, len(rows))
	for i, r := range rows {
		out[i] = models.MonthlyExpense{Year: r.ID.Year, Month: r.ID.Month, Total: r.Total, Count: r.Count}
	}
	return out, nil
}

// Count returns how many expenses the user owns
func (s *Service) Count(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.col().CountDocuments(ctx, bson.M{"user_id": userID})
}

// resolveRefs fills the opportunity, company and contact summaries with
// batched lookups. Best effort only.
func (s *Service) resolveRefs(ctx context.Context, userID primitive.ObjectID, items []*models.Expense) {
	oppIDs := collect(items, func(e *models.Expense) *primitive.ObjectID { return e.OpportunityID })
	companyIDs := collect(items, func(e *models.Expense) *primitive.ObjectID { return e.CompanyID })
	contactIDs := collect(items, func(e *models.Expense) *primitive.ObjectID { return e.ContactID })

	opportunities := make(map[primitive.ObjectID]*models.OpportunitySummary)
	if len(oppIDs) > 0 {
		cur, err := s.db.Collection(database.ColOpportunities).Find(ctx, bson.M{"_id": bson.M{"$in": oppIDs}, "user_id": userID})
		if err == nil {
			var rows []models.Opportunity
			if err := cur.All(ctx, &rows); err == nil {
				for i := range rows {
					opportunities[rows[i].ID] = rows[i].Summary()
				}
			}
		}
	}

	companies := make(map[primitive.ObjectID]*models.CompanySummary)
	if len(companyIDs) > 0 {
		cur, err := s.db.Collection(database.ColCompanies).Find(ctx, bson.M{"_id": bson.M{"$in": companyIDs}, "user_id": userID})
		if err == nil {
			var rows []models.Company
			if err := cur.All(ctx, &rows); err == nil {
				for i := range rows {
					companies[rows[i].ID] = rows[i].Summary()
				}
			}
		}
	}

	contacts := make(map[primitive.ObjectID]*models.ContactSummary)
	if len(contactIDs) > 0 {
		cur, err := s.db.Collection(database.ColContacts).Find(ctx, bson.M{"_id": bson.M{"$in": contactIDs}, "user_id": userID})
		if err == nil {
			var rows []models.Contact
			if err := cur.All(ctx, &rows); err == nil {
				for i := range rows {
					contacts[rows[i].ID] = rows[i].Summary()
				}
			}
		}
	}

	for _, e := range items {
		if e.OpportunityID != nil {
			e.Opportunity = opportunities[*e.OpportunityID]
		}
		if e.CompanyID != nil {
			e.Company = companies[*e.CompanyID]
		}
		if e.ContactID != nil {
			e.Contact = contacts[*e.ContactID]
		}
	}
}

func collect(items []*models.Expense, get func(*models.Expense) *primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool)
	var out []primitive.ObjectID
	for _, e := range items {
		if id := get(e); id != nil && !seen[*id] {
			seen[*id] = true
			out = append(out, *id)
		}
	}
	return out
}

// ref validates an optional hex reference against an owned collection
func (s *Service) ref(ctx context.Context, userID primitive.ObjectID, colName, hex string) (*primitive.ObjectID, error) {
	if hex == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil, ErrBadReference
	}
	count, err := s.db.Collection(colName).CountDocuments(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed checking %s reference: %w", colName, err)
	}
	if count == 0 {
		return nil, ErrBadReference
	}
	return &id, nil
}

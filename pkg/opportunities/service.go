package opportunities

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
	// ErrNotFound covers both missing and foreign-owned opportunities
	ErrNotFound = errors.New("opportunity not found")
	// ErrCompanyNotFound is returned when the referenced company does not exist
	ErrCompanyNotFound = errors.New("company not found")
	// ErrContactNotFound is returned when the referenced contact does not exist
	ErrContactNotFound = errors.New("contact not found")
)

// Service handles opportunity business logic
type Service struct {
	db *database.Client
}

// NewService creates a new opportunity service
func NewService(db *database.Client) *Service {
	return &Service{db: db}
}

func (s *Service) col() *mongo.Collection {
	return s.db.Collection(database.ColOpportunities)
}

// Create inserts an opportunity. The company reference is mandatory and
// must belong to the same owner; a contact reference is optional.
func (s *Service) Create(ctx context.Context, userID primitive.ObjectID, req models.CreateOpportunityRequest) (*models.Opportunity, error) {
	companyID, err := s.requireCompany(ctx, userID, req.CompanyID)
	if err != nil {
		return nil, err
	}

	contactID, err := s.optionalContact(ctx, userID, req.ContactID)
	if err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = models.StageQuality
	}
	probability := 0
	if req.Probability != nil {
		probability = *req.Probability
	}

	now := time.Now().UTC()
	openDate := req.OpenDate
	if openDate == nil {
		openDate = &now
	}

	opp := &models.Opportunity{
		UserID:           userID,
		Title:            req.Title,
		Amount:           req.Amount,
		ForecastAmount:   req.ForecastAmount,
		CompanyID:        companyID,
		ContactID:        contactID,
		Status:           status,
		Probability:      probability,
		Priority:         req.Priority,
		Sector:           req.Sector,
		ForecastCategory: req.ForecastCategory,
		Importance:       req.Importance,
		Competitors:      req.Competitors,
		OpenDate:         openDate,
		CloseDate:        req.CloseDate,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	res, err := s.col().InsertOne(ctx, opp)
	if err != nil {
		return nil, fmt.Errorf("failed creating opportunity: %w", err)
	}
	opp.ID = res.InsertedID.(primitive.ObjectID)

	s.resolveRefs(ctx, userID, []*models.Opportunity{opp})
	return opp, nil
}

// List returns the user's opportunities matching the filter, newest first
func (s *Service) List(ctx context.Context, userID primitive.ObjectID, filter models.OpportunityFilter, page, limit int) ([]models.Opportunity, int64, error) {
	page, limit = models.NormalizePage(page, limit)
	query := filter.Build(userID)

	total, err := s.col().CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed counting opportunities: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cur, err := s.col().Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed listing opportunities: %w", err)
	}
	defer cur.Close(ctx)

	var items []models.Opportunity
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("failed decoding opportunities: %w", err)
	}

	refs := make([]*models.Opportunity, len(items))
	for i := range items {
		refs[i] = &items[i]
	}
	s.resolveRefs(ctx, userID, refs)

	return items, total, nil
}

// Get fetches one opportunity by id, scoped to the owner
func (s *Service) Get(ctx context.Context, userID, id primitive.ObjectID) (*models.Opportunity, error) {
	var opp models.Opportunity
	err := s.col().FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&opp)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed fetching opportunity: %w", err)
	}

	s.resolveRefs(ctx, userID, []*models.Opportunity{&opp})
	return &opp, nil
}

// Update applies a partial update and returns the new document.
// Writing closed_win or lost without an explicit close date stamps one.
func (s *Service) Update(ctx context.Context, userID, id primitive.ObjectID, req models.UpdateOpportunityRequest) (*models.Opportunity, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	unset := bson.M{}

	if req.Title != nil {
		set["title"] = *req.Title
	}
	if req.Amount != nil {
		set["amount"] = *req.Amount
	}
	if req.ForecastAmount != nil {
		set["forecast_amount"] = *req.ForecastAmount
	}
	if req.CompanyID != nil {
		companyID, err := s.requireCompany(ctx, userID, *req.CompanyID)
		if err != nil {
			return nil, err
		}
		set["company_id"] = companyID
	}
	if req.ContactID != nil {
		if *req.ContactID == "" {
			unset["contact_id"] = ""
		} else {
			contactID, err := s.optionalContact(ctx, userID, *req.ContactID)
			if err != nil {
				return nil, err
			}
			set["contact_id"] = contactID
		}
	}
	if req.Status != nil {
		set["status"] = *req.Status
		if (*req.Status == models.StageClosedWin || *req.Status == models.StageLost) && req.CloseDate == nil {
			set["close_date"] = time.Now().UTC()
		}
	}
	if req.Probability != nil {
		set["probability"] = *req.Probability
	}
	if req.Priority != nil {
		set["priority"] = *req.Priority
	}
	if req.Sector != nil {
		set["sector"] = *req.Sector
	}
	if req.ForecastCategory != nil {
		set["forecast_category"] = *req.ForecastCategory
	}
	if req.Importance != nil {
		set["importance"] = *req.Importance
	}
	if req.Competitors != nil {
		set["competitors"] = *req.Competitors
	}
	if req.OpenDate != nil {
		set["open_date"] = *req.OpenDate
	}
	if req.CloseDate != nil {
		set["close_date"] = *req.CloseDate
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var opp models.Opportunity
	err := s.col().FindOneAndUpdate(ctx, bson.M{"_id": id, "user_id": userID}, update, opts).Decode(&opp)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed updating opportunity: %w", err)
	}

	s.resolveRefs(ctx, userID, []*models.Opportunity{&opp})
	return &opp, nil
}

// Delete removes an opportunity owned by userID
func (s *Service) Delete(ctx context.Context, userID, id primitive.ObjectID) error {
	res, err := s.col().DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed deleting opportunity: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Pipeline aggregates count, amount and probability-weighted amount per
// stage, in funnel order. Stages with no opportunities still appear.
func (s *Service) Pipeline(ctx context.Context, userID primitive.ObjectID) ([]models.PipelineStage, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$group", Value: bson.M{
			"_id":    "$status",
			"count":  bson.M{"$sum": 1},
			"amount": bson.M{"$sum": "$amount"},
			"weighted": bson.M{"$sum": bson.M{
				"$divide": bson.A{bson.M{"$multiply": bson.A{"$amount", "$probability"}}, 100},
			}},
		}}},
	}

	cur, err := s.col().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed aggregating pipeline: %w", err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID       string  `bson:"_id"`
		Count    int64   `bson:"count"`
		Amount   float64 `bson:"amount"`
		Weighted float64 `bson:"weighted"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed decoding pipeline aggregation: %w", err)
	}

	byStage := make(map[string]models.PipelineStage, len(rows))
	for _, r := range rows {
		byStage[r.ID] = models.PipelineStage{
			Status:         r.ID,
			Count:          r.Count,
			Amount:         r.Amount,
			WeightedAmount: r.Weighted,
		}
	}

	out := make([]models.PipelineStage, 0, len(models.PipelineStages))
	for _, stage := range models.PipelineStages {
		row, ok := byStage[stage]
		if !ok {
			row = models.PipelineStage{Status: stage}
		}
		out = append(out, row)
	}
	return out, nil
}

// Forecast aggregates forecast amounts per forecast category
func (s *Service) Forecast(ctx context.Context, userID primitive.ObjectID) ([]models.ForecastBucket, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID, "forecast_category": bson.M{"$ne": ""}}}},
		{{Key: "$group", Value: bson.M{
			"_id":             "$forecast_category",
			"count":           bson.M{"$sum": 1},
			"forecast_amount": bson.M{"$sum": "$forecast_amount"},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cur, err := s.col().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed aggregating forecast: %w", err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID             string  `bson:"_id"`
		Count          int64   `bson:"count"`
		ForecastAmount float64 `bson:"forecast_amount"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed decoding forecast aggregation: %w", err)
	}

	out := make([]models.ForecastBucket, len(rows))
	for i, r := range rows {
		out[i] = models.ForecastBucket{Category: r.ID, Count: r.Count, ForecastAmount: r.ForecastAmount}
	}
	return out, nil
}

// Count returns how many opportunities the user owns
func (s *Service) Count(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.col().CountDocuments(ctx, bson.M{"user_id": userID})
}

func (s *Service) requireCompany(ctx context.Context, userID primitive.ObjectID, ref string) (primitive.ObjectID, error) {
	companyID, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return primitive.NilObjectID, ErrCompanyNotFound
	}
	count, err := s.db.Collection(database.ColCompanies).CountDocuments(ctx, bson.M{"_id": companyID, "user_id": userID})
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("failed checking company: %w", err)
	}
	if count == 0 {
		return primitive.NilObjectID, ErrCompanyNotFound
	}
	return companyID, nil
}

func (s *Service) optionalContact(ctx context.Context, userID primitive.ObjectID, ref string) (*primitive.ObjectID, error) {
	if ref == "" {
		return nil, nil
	}
	contactID, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return nil, ErrContactNotFound
	}
	count, err := s.db.Collection(database.ColContacts).CountDocuments(ctx, bson.M{"_id": contactID, "user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed checking contact: %w", err)
	}
	if count == 0 {
		return nil, ErrContactNotFound
	}
	return &contactID, nil
}

// resolveRefs fills the company and contact summaries with batched lookups
func (s *Service) resolveRefs(ctx context.Context, userID primitive.ObjectID, opps []*models.Opportunity) {
	companyIDs := make([]primitive.ObjectID, 0, len(opps))
	contactIDs := make([]primitive.ObjectID, 0, len(opps))
	seenCompany := make(map[primitive.ObjectID]bool)
	seenContact := make(map[primitive.ObjectID]bool)

	for _, o := range opps {
		if !o.CompanyID.IsZero() && !seenCompany[o.CompanyID] {
			seenCompany[o.CompanyID] = true
			companyIDs = append(companyIDs, o.CompanyID)
		}
		if o.ContactID != nil && !seenContact[*o.ContactID] {
			seenContact[*o.ContactID] = true
			contactIDs = append(contactIDs, *o.ContactID)
		}
	}

	companies := make(map[primitive.ObjectID]*models.CompanySummary)
	if len(companyIDs) > 0 {
		cur, err := s.db.Collection(database.ColCompanies).Find(ctx, bson.M{
			"_id":     bson.M{"$in": companyIDs},
			"user_id": userID,
		})
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
		cur, err := s.db.Collection(database.ColContacts).Find(ctx, bson.M{
			"_id":     bson.M{"$in": contactIDs},
			"user_id": userID,
		})
		if err == nil {
			var rows []models.Contact
			if err := cur.All(ctx, &rows); err == nil {
				for i := range rows {
					contacts[rows[i].ID] = rows[i].Summary()
				}
			}
		}
	}

	for _, o := range opps {
		o.Company = companies[o.CompanyID]
		if o.ContactID != nil {
			o.Contact = contacts[*o.ContactID]
		}
	}
}

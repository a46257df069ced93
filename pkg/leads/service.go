package leads

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pipedesk/pipedesk/pkg/database"
	"github.com/pipedesk/pipedesk/pkg/models"
	"github.com/pipedesk/pipedesk/pkg/phone"
)

var (
	// ErrNotFound covers both missing and foreign-owned leads
	ErrNotFound = errors.New("lead not found")
	// ErrAlreadyConverted rejects converting the same lead twice
	ErrAlreadyConverted = errors.New("lead already converted")
	// ErrOpportunityNeedsCompany rejects an opportunity-only conversion:
	// an opportunity cannot exist without a company to hang off
	ErrOpportunityNeedsCompany = errors.New("creating an opportunity requires creating a company")
)

// Service handles lead business logic
type Service struct {
	db *database.Client
}

// NewService creates a new lead service
func NewService(db *database.Client) *Service {
	return &Service{db: db}
}

func (s *Service) col() *mongo.Collection {
	return s.db.Collection(database.ColLeads)
}

// Create inserts a lead owned by userID
func (s *Service) Create(ctx context.Context, userID primitive.ObjectID, req models.CreateLeadRequest) (*models.Lead, error) {
	status := req.Status
	if status == "" {
		status = models.LeadNew
	}
	score := 0
	if req.Score != nil {
		score = *req.Score
	}

	now := time.Now().UTC()
	lead := &models.Lead{
		UserID:         userID,
		Name:           req.Name,
		Email:          req.Email,
		Phone:          phone.NormalizeOrKeep(req.Phone, ""),
		CompanyName:    req.CompanyName,
		Status:         status,
		Temperature:    req.Temperature,
		Score:          score,
		Source:         req.Source,
		EstimatedValue: req.EstimatedValue,
		Notes:          req.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	res, err := s.col().InsertOne(ctx, lead)
	if err != nil {
		return nil, fmt.Errorf("failed creating lead: %w", err)
	}
	lead.ID = res.InsertedID.(primitive.ObjectID)
	return lead, nil
}

// List returns the user's leads matching the filter, newest first
func (s *Service) List(ctx context.Context, userID primitive.ObjectID, filter models.LeadFilter, page, limit int) ([]models.Lead, int64, error) {
	page, limit = models.NormalizePage(page, limit)
	query := filter.Build(userID)

	total, err := s.col().CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed counting leads: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cur, err := s.col().Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed listing leads: %w", err)
	}
	defer cur.Close(ctx)

	var items []models.Lead
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("failed decoding leads: %w", err)
	}
	return items, total, nil
}

// Get fetches one lead by id, scoped to the owner
func (s *Service) Get(ctx context.Context, userID, id primitive.ObjectID) (*models.Lead, error) {
	var lead models.Lead
	err := s.col().FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&lead)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed fetching lead: %w", err)
	}
	return &lead, nil
}

// Update applies a partial update and returns the new document
func (s *Service) Update(ctx context.Context, userID, id primitive.ObjectID, req models.UpdateLeadRequest) (*models.Lead, error) {
	set := bson.M{"updated_at": time.Now().UTC()}

	if req.Name != nil {
		set["name"] = *req.Name
	}
	if req.Email != nil {
		set["email"] = *req.Email
	}
	if req.Phone != nil {
		set["phone"] = phone.NormalizeOrKeep(*req.Phone, "")
	}
	if req.CompanyName != nil {
		set["company_name"] = *req.CompanyName
	}
	if req.Status != nil {
		set["status"] = *req.Status
	}
	if req.Temperature != nil {
		set["temperature"] = *req.Temperature
	}
	if req.Score != nil {
		set["score"] = *req.Score
	}
	if req.Source != nil {
		set["source"] = *req.Source
	}
	if req.EstimatedValue != nil {
		set["estimated_value"] = *req.EstimatedValue
	}
	if req.Notes != nil {
		set["notes"] = *req.Notes
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var lead models.Lead
	err := s.col().FindOneAndUpdate(ctx, bson.M{"_id": id, "user_id": userID}, bson.M{"$set": set}, opts).Decode(&lead)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed updating lead: %w", err)
	}
	return &lead, nil
}

// Delete removes a lead owned by userID
func (s *Service) Delete(ctx context.Context, userID, id primitive.ObjectID) error {
	res, err := s.col().DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed deleting lead: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Hot returns the highest scoring warm-or-hot open leads
func (s *Service) Hot(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.Lead, error) {
	if limit <= 0 || limit > models.MaxLimit {
		limit = 10
	}

	query := bson.M{
		"user_id":     userID,
		"temperature": bson.M{"$in": bson.A{models.TempWarm, models.TempHot}},
		"status":      bson.M{"$nin": bson.A{models.LeadConverted, models.LeadLost, models.LeadUnqualified}},
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "score", Value: -1}, {Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := s.col().Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed listing hot leads: %w", err)
	}
	defer cur.Close(ctx)

	var items []models.Lead
	if err := cur.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed decoding leads: %w", err)
	}
	return items, nil
}

// Convert turns a lead into a contact, optionally a company and an
// opportunity. Writes happen in sequence with compensating deletes, so a
// failure partway leaves no orphan documents and the lead untouched.
func (s *Service) Convert(ctx context.Context, userID, id primitive.ObjectID, req models.ConvertLeadRequest) (*models.ConvertLeadResult, error) {
	lead, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if lead.Converted != nil || lead.Status == models.LeadConverted {
		return nil, ErrAlreadyConverted
	}
	if req.CreateOpportunity && !req.CreateCompany {
		return nil, ErrOpportunityNeedsCompany
	}

	now := time.Now().UTC()
	var created []func() // compensations, run in reverse on failure

	rollback := func() {
		for i := len(created) - 1; i >= 0; i-- {
			created[i]()
		}
	}

	var company *models.Company
	if req.CreateCompany {
		name := lead.CompanyName
		if name == "" {
			name = lead.Name
		}
		company = &models.Company{
			UserID:    userID,
			Name:      name,
			Email:     lead.Email,
			Phone:     lead.Phone,
			Status:    models.CompanyStatusProspect,
			CreatedAt: now,
			UpdatedAt: now,
		}
		res, err := s.db.Collection(database.ColCompanies).InsertOne(ctx, company)
		if err != nil {
			return nil, fmt.Errorf("failed creating company from lead: %w", err)
		}
		company.ID = res.InsertedID.(primitive.ObjectID)
		created = append(created, func() {
			if _, err := s.db.Collection(database.ColCompanies).DeleteOne(context.Background(), bson.M{"_id": company.ID}); err != nil {
				log.Printf("⚠️  Conversion rollback: failed deleting company %s: %v", company.ID.Hex(), err)
			}
		})
	}

	first, last := splitName(lead.Name)
	contact := &models.Contact{
		UserID:    userID,
		FirstName: first,
		LastName:  last,
		Email:     lead.Email,
		Phone:     lead.Phone,
		Notes:     lead.Notes,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if company != nil {
		contact.CompanyID = &company.ID
	}
	contactRes, err := s.db.Collection(database.ColContacts).InsertOne(ctx, contact)
	if err != nil {
		rollback()
		return nil, fmt.Errorf("failed creating contact from lead: %w", err)
	}
	contact.ID = contactRes.InsertedID.(primitive.ObjectID)
	created = append(created, func() {
		if _, err := s.db.Collection(database.ColContacts).DeleteOne(context.Background(), bson.M{"_id": contact.ID}); err != nil {
			log.Printf("⚠️  Conversion rollback: failed deleting contact %s: %v", contact.ID.Hex(), err)
		}
	})

	var opportunity *models.Opportunity
	if req.CreateOpportunity {
		title := req.OpportunityTitle
		if title == "" {
			title = lead.Name
		}
		amount := req.OpportunityAmount
		if amount == 0 {
			amount = lead.EstimatedValue
		}
		opportunity = &models.Opportunity{
			UserID:    userID,
			Title:     title,
			Amount:    amount,
			CompanyID: company.ID,
			ContactID: &contact.ID,
			Status:    models.StageQuality,
			OpenDate:  &now,
			CreatedAt: now,
			UpdatedAt: now,
		}
		oppRes, err := s.db.Collection(database.ColOpportunities).InsertOne(ctx, opportunity)
		if err != nil {
			rollback()
			return nil, fmt.Errorf("failed creating opportunity from lead: %w", err)
		}
		opportunity.ID = oppRes.InsertedID.(primitive.ObjectID)
		created = append(created, func() {
			if _, err := s.db.Collection(database.ColOpportunities).DeleteOne(context.Background(), bson.M{"_id": opportunity.ID}); err != nil {
				log.Printf("⚠️  Conversion rollback: failed deleting opportunity %s: %v", opportunity.ID.Hex(), err)
			}
		})
	}

	conversion := &models.Conversion{
		ContactID:   contact.ID,
		ConvertedAt: now,
	}
	if company != nil {
		conversion.CompanyID = &company.ID
	}
	if opportunity != nil {
		conversion.OpportunityID = &opportunity.ID
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Lead
	err = s.col().FindOneAndUpdate(ctx,
		bson.M{"_id": id, "user_id": userID, "converted": nil},
		bson.M{"$set": bson.M{
			"status":     models.LeadConverted,
			"converted":  conversion,
			"updated_at": now,
		}}, opts).Decode(&updated)
	if err != nil {
		rollback()
		if err == mongo.ErrNoDocuments {
			return nil, ErrAlreadyConverted
		}
		return nil, fmt.Errorf("failed finalizing lead conversion: %w", err)
	}

	log.Printf("✅ Lead %s converted (contact=%s)", id.Hex(), contact.ID.Hex())

	return &models.ConvertLeadResult{
		Lead:        updated,
		Contact:     *contact,
		Company:     company,
		Opportunity: opportunity,
	}, nil
}

// Stats aggregates the lead analytics overview
func (s *Service) Stats(ctx context.Context, userID primitive.ObjectID) (*models.LeadStats, error) {
	stats := &models.LeadStats{
		ByStatus:      make(map[string]int64),
		ByTemperature: make(map[string]int64),
		BySource:      make(map[string]int64),
	}

	cur, err := s.col().Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$group", Value: bson.M{
			"_id":       nil,
			"total":     bson.M{"$sum": 1},
			"avg_score": bson.M{"$avg": "$score"},
		}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed aggregating leads: %w", err)
	}
	var totals []struct {
		Total    int64   `bson:"total"`
		AvgScore float64 `bson:"avg_score"`
	}
	if err := cur.All(ctx, &totals); err != nil {
		return nil, fmt.Errorf("failed decoding lead totals: %w", err)
	}
	if len(totals) > 0 {
		stats.Total = totals[0].Total
		stats.AverageScore = totals[0].AvgScore
	}

	for field, into := range map[string]map[string]int64{
		"status":      stats.ByStatus,
		"temperature": stats.ByTemperature,
		"source":      stats.BySource,
	} {
		cur, err := s.col().Aggregate(ctx, mongo.Pipeline{
			{{Key: "$match", Value: bson.M{"user_id": userID}}},
			{{Key: "$group", Value: bson.M{"_id": "$" + field, "count": bson.M{"$sum": 1}}}},
		})
		if err != nil {
			return nil, fmt.Errorf("failed aggregating leads by %s: %w", field, err)
		}
		var rows []struct {
			ID    string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cur.All(ctx, &rows); err != nil {
			return nil, fmt.Errorf("failed decoding %s aggregation: %w", field, err)
		}
		for _, r := range rows {
			key := r.ID
			if key == "" {
				key = "unspecified"
			}
			into[key] = r.Count
		}
	}

	return stats, nil
}

// ConversionStats aggregates the conversion funnel numbers
func (s *Service) ConversionStats(ctx context.Context, userID primitive.ObjectID) (*models.ConversionStats, error) {
	total, err := s.col().CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed counting leads: %w", err)
	}

	converted, err := s.col().CountDocuments(ctx, bson.M{"user_id": userID, "status": models.LeadConverted})
	if err != nil {
		return nil, fmt.Errorf("failed counting converted leads: %w", err)
	}

	lost, err := s.col().CountDocuments(ctx, bson.M{"user_id": userID, "status": models.LeadLost})
	if err != nil {
		return nil, fmt.Errorf("failed counting lost leads: %w", err)
	}

	cur, err := s.col().Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID, "status": models.LeadConverted}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "value": bson.M{"$sum": "$estimated_value"}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed aggregating converted value: %w", err)
	}
	var values []struct {
		Value float64 `bson:"value"`
	}
	if err := cur.All(ctx, &values); err != nil {
		return nil, fmt.Errorf("failed decoding converted value: %w", err)
	}

	stats := &models.ConversionStats{
		Total:     total,
		Converted: converted,
		Lost:      lost,
	}
	if total > 0 {
		stats.ConversionRate = float64(converted) / float64(total) * 100
	}
	if len(values) > 0 {
		stats.ConvertedValue = values[0].Value
	}
	return stats, nil
}

// Count returns how many leads the user owns
func (s *Service) Count(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.col().CountDocuments(ctx, bson.M{"user_id": userID})
}

// splitName divides a full name into first and last on the first space
func splitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	if i := strings.IndexByte(full, ' '); i > 0 {
		return full[:i], strings.TrimSpace(full[i+1:])
	}
	return full, ""
}

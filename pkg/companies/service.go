package companies

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pipedesk/pipedesk/pkg/database"
	"github.com/pipedesk/pipedesk/pkg/models"
)

// ErrNotFound covers both missing and foreign-owned companies
var ErrNotFound = errors.New("company not found")

// Service handles company business logic
type Service struct {
	db *database.Client
}

// NewService creates a new company service
func NewService(db *database.Client) *Service {
	return &Service{db: db}
}

func (s *Service) col() *mongo.Collection {
	return s.db.Collection(database.ColCompanies)
}

// Create inserts a company owned by userID
func (s *Service) Create(ctx context.Context, userID primitive.ObjectID, req models.CreateCompanyRequest) (*models.Company, error) {
	status := req.Status
	if status == "" {
		status = models.CompanyStatusActive
	}

	now := time.Now().UTC()
	company := &models.Company{
		UserID:         userID,
		Name:           req.Name,
		Sector:         req.Sector,
		Website:        req.Website,
		Email:          req.Email,
		Phone:          req.Phone,
		Address:        req.Address,
		PointOfContact: req.PointOfContact,
		Contacts:       req.Contacts,
		Status:         status,
		Priority:       req.Priority,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	res, err := s.col().InsertOne(ctx, company)
	if err != nil {
		return nil, fmt.Errorf("failed creating company: %w", err)
	}
	company.ID = res.InsertedID.(primitive.ObjectID)
	return company, nil
}

// List returns the user's companies matching the filter, newest first
func (s *Service) List(ctx context.Context, userID primitive.ObjectID, filter models.CompanyFilter, page, limit int) ([]models.Company, int64, error) {
	page, limit = models.NormalizePage(page, limit)
	query := filter.Build(userID)

	total, err := s.col().CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed counting companies: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cur, err := s.col().Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed listing companies: %w", err)
	}
	defer cur.Close(ctx)

	var items []models.Company
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("failed decoding companies: %w", err)
	}
	return items, total, nil
}

// Get fetches one company by id, scoped to the owner
func (s *Service) Get(ctx context.Context, userID, id primitive.ObjectID) (*models.Company, error) {
	var company models.Company
	err := s.col().FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&company)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed fetching company: %w", err)
	}
	return &company, nil
}

// Update applies a partial update and returns the new document
func (s *Service) Update(ctx context.Context, userID, id primitive.ObjectID, req models.UpdateCompanyRequest) (*models.Company, error) {
	set := bson.M{"updated_at": time.Now().UTC()}

	if req.Name != nil {
		set["name"] = *req.Name
	}
	if req.Sector != nil {
		set["sector"] = *req.Sector
	}
	if req.Website != nil {
		set["website"] = *req.Website
	}
	if req.Email != nil {
		set["email"] = *req.Email
	}
	if req.Phone != nil {
		set["phone"] = *req.Phone
	}
	if req.Address != nil {
		set["address"] = *req.Address
	}
	if req.PointOfContact != nil {
		set["point_of_contact"] = *req.PointOfContact
	}
	if req.Contacts != nil {
		set["contacts"] = *req.Contacts
	}
	if req.Status != nil {
		set["status"] = *req.Status
	}
	if req.Priority != nil {
		set["priority"] = *req.Priority
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var company models.Company
	err := s.col().FindOneAndUpdate(ctx, bson.M{"_id": id, "user_id": userID}, bson.M{"$set": set}, opts).Decode(&company)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed updating company: %w", err)
	}
	return &company, nil
}

// Delete removes a company and cascades to its dependents: contacts are
// detached, opportunities and activities tied to the company are removed.
func (s *Service) Delete(ctx context.Context, userID, id primitive.ObjectID) error {
	res, err := s.col().DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed deleting company: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}

	owner := bson.M{"user_id": userID, "company_id": id}

	if _, err := s.db.Collection(database.ColContacts).UpdateMany(ctx, owner, bson.M{
		"$unset": bson.M{"company_id": ""},
		"$set":   bson.M{"updated_at": time.Now().UTC()},
	}); err != nil {
		log.Printf("⚠️  Failed detaching contacts of company %s: %v", id.Hex(), err)
	}

	oppIDs, err := s.collectOpportunityIDs(ctx, userID, id)
	if err != nil {
		log.Printf("⚠️  Failed listing opportunities of company %s: %v", id.Hex(), err)
	}

	if _, err := s.db.Collection(database.ColOpportunities).DeleteMany(ctx, owner); err != nil {
		log.Printf("⚠️  Failed deleting opportunities of company %s: %v", id.Hex(), err)
	}

	actFilter := bson.M{"user_id": userID, "$or": bson.A{bson.M{"company_id": id}}}
	if len(oppIDs) > 0 {
		actFilter["$or"] = bson.A{
			bson.M{"company_id": id},
			bson.M{"opportunity_id": bson.M{"$in": oppIDs}},
		}
	}
	if _, err := s.db.Collection(database.ColActivities).DeleteMany(ctx, actFilter); err != nil {
		log.Printf("⚠️  Failed deleting activities of company %s: %v", id.Hex(), err)
	}

	return nil
}

func (s *Service) collectOpportunityIDs(ctx context.Context, userID, companyID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cur, err := s.db.Collection(database.ColOpportunities).Find(ctx,
		bson.M{"user_id": userID, "company_id": companyID},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids, nil
}

// Exists reports whether the user owns a company with the given id
func (s *Service) Exists(ctx context.Context, userID, id primitive.ObjectID) (bool, error) {
	count, err := s.col().CountDocuments(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return false, fmt.Errorf("failed checking company: %w", err)
	}
	return count > 0, nil
}

// Stats aggregates the stats overview for the user's companies
func (s *Service) Stats(ctx context.Context, userID primitive.ObjectID) (*models.CompanyStats, error) {
	stats := &models.CompanyStats{
		ByStatus:   make(map[string]int64),
		BySector:   make(map[string]int64),
		ByPriority: make(map[string]int64),
	}

	total, err := s.col().CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed counting companies: %w", err)
	}
	stats.Total = total

	for field, into := range map[string]map[string]int64{
		"status":   stats.ByStatus,
		"sector":   stats.BySector,
		"priority": stats.ByPriority,
	} {
		if err := s.groupCount(ctx, userID, field, into); err != nil {
			return nil, err
		}
	}

	return stats, nil
}

// groupCount runs a $group count over one field into the given map
func (s *Service) groupCount(ctx context.Context, userID primitive.ObjectID, field string, into map[string]int64) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$group", Value: bson.M{"_id": "$" + field, "count": bson.M{"$sum": 1}}}},
	}

	cur, err := s.col().Aggregate(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("failed aggregating companies by %s: %w", field, err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return fmt.Errorf("failed decoding %s aggregation: %w", field, err)
	}

	for _, r := range rows {
		key := r.ID
		if key == "" {
			key = "unspecified"
		}
		into[key] = r.Count
	}
	return nil
}

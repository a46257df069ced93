package contacts

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
	"github.com/pipedesk/pipedesk/pkg/phone"
)

var (
	// ErrNotFound covers both missing and foreign-owned contacts
	ErrNotFound = errors.New("contact not found")
	// ErrCompanyNotFound is returned when the referenced company does not exist
	ErrCompanyNotFound = errors.New("company not found")
)

// Service handles contact business logic
type Service struct {
	db *database.Client
}

// NewService creates a new contact service
func NewService(db *database.Client) *Service {
	return &Service{db: db}
}

func (s *Service) col() *mongo.Collection {
	return s.db.Collection(database.ColContacts)
}

// Create inserts a contact owned by userID. A company reference, when
// given, must point at an existing company of the same owner.
func (s *Service) Create(ctx context.Context, userID primitive.ObjectID, req models.CreateContactRequest) (*models.Contact, error) {
	companyID, err := s.resolveCompanyRef(ctx, userID, req.CompanyID)
	if err != nil {
		return nil, err
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	now := time.Now().UTC()
	contact := &models.Contact{
		UserID:    userID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     phone.NormalizeOrKeep(req.Phone, ""),
		Position:  req.Position,
		CompanyID: companyID,
		Notes:     req.Notes,
		Tags:      req.Tags,
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	res, err := s.col().InsertOne(ctx, contact)
	if err != nil {
		return nil, fmt.Errorf("failed creating contact: %w", err)
	}
	contact.ID = res.InsertedID.(primitive.ObjectID)

	s.resolveCompanies(ctx, userID, []*models.Contact{contact})
	return contact, nil
}

// List returns the user's contacts matching the filter, newest first
func (s *Service) List(ctx context.Context, userID primitive.ObjectID, filter models.ContactFilter, page, limit int) ([]models.Contact, int64, error) {
	page, limit = models.NormalizePage(page, limit)
	query := filter.Build(userID)

	total, err := s.col().CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed counting contacts: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cur, err := s.col().Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed listing contacts: %w", err)
	}
	defer cur.Close(ctx)

	var items []models.Contact
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("failed decoding contacts: %w", err)
	}

	refs := make([]*models.Contact, len(items))
	for i := range items {
		refs[i] = &items[i]
	}
	s.resolveCompanies(ctx, userID, refs)

	return items, total, nil
}

// Get fetches one contact by id, scoped to the owner
func (s *Service) Get(ctx context.Context, userID, id primitive.ObjectID) (*models.Contact, error) {
	var contact models.Contact
	err := s.col().FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&contact)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed fetching contact: %w", err)
	}

	s.resolveCompanies(ctx, userID, []*models.Contact{&contact})
	return &contact, nil
}

// Update applies a partial update and returns the new document
func (s *Service) Update(ctx context.Context, userID, id primitive.ObjectID, req models.UpdateContactRequest) (*models.Contact, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	unset := bson.M{}

	if req.FirstName != nil {
		set["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		set["last_name"] = *req.LastName
	}
	if req.Email != nil {
		set["email"] = *req.Email
	}
	if req.Phone != nil {
		set["phone"] = phone.NormalizeOrKeep(*req.Phone, "")
	}
	if req.Position != nil {
		set["position"] = *req.Position
	}
	if req.Notes != nil {
		set["notes"] = *req.Notes
	}
	if req.Tags != nil {
		set["tags"] = *req.Tags
	}
	if req.IsActive != nil {
		set["is_active"] = *req.IsActive
	}
	if req.CompanyID != nil {
		if *req.CompanyID == "" {
			// Explicit empty string detaches the contact from its company
			unset["company_id"] = ""
		} else {
			companyID, err := s.resolveCompanyRef(ctx, userID, *req.CompanyID)
			if err != nil {
				return nil, err
			}
			set["company_id"] = companyID
		}
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var contact models.Contact
	err := s.col().FindOneAndUpdate(ctx, bson.M{"_id": id, "user_id": userID}, update, opts).Decode(&contact)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed updating contact: %w", err)
	}

	s.resolveCompanies(ctx, userID, []*models.Contact{&contact})
	return &contact, nil
}

// Delete removes a contact owned by userID
func (s *Service) Delete(ctx context.Context, userID, id primitive.ObjectID) error {
	res, err := s.col().DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed deleting contact: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertMany bulk-inserts imported contacts
func (s *Service) InsertMany(ctx context.Context, contacts []models.Contact) (int, error) {
	if len(contacts) == 0 {
		return 0, nil
	}
	docs := make([]interface{}, len(contacts))
	for i := range contacts {
		docs[i] = contacts[i]
	}
	res, err := s.col().InsertMany(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("failed inserting contacts: %w", err)
	}
	return len(res.InsertedIDs), nil
}

// Count returns how many contacts the user owns
func (s *Service) Count(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.col().CountDocuments(ctx, bson.M{"user_id": userID})
}

// resolveCompanyRef validates an optional company id reference
func (s *Service) resolveCompanyRef(ctx context.Context, userID primitive.ObjectID, ref string) (*primitive.ObjectID, error) {
	if ref == "" {
		return nil, nil
	}

	companyID, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return nil, ErrCompanyNotFound
	}

	count, err := s.db.Collection(database.ColCompanies).CountDocuments(ctx, bson.M{"_id": companyID, "user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed checking company: %w", err)
	}
	if count == 0 {
		return nil, ErrCompanyNotFound
	}
	return &companyID, nil
}

// resolveCompanies fills the Company summary on each contact with one
// batched lookup. Resolution is best effort, a failed lookup just leaves
// the summaries empty.
func (s *Service) resolveCompanies(ctx context.Context, userID primitive.ObjectID, contacts []*models.Contact) {
	ids := make([]primitive.ObjectID, 0, len(contacts))
	seen := make(map[primitive.ObjectID]bool)
	for _, c := range contacts {
		if c.CompanyID != nil && !seen[*c.CompanyID] {
			seen[*c.CompanyID] = true
			ids = append(ids, *c.CompanyID)
		}
	}
	if len(ids) == 0 {
		return
	}

	cur, err := s.db.Collection(database.ColCompanies).Find(ctx, bson.M{
		"_id":     bson.M{"$in": ids},
		"user_id": userID,
	})
	if err != nil {
		return
	}
	defer cur.Close(ctx)

	var companies []models.Company
	if err := cur.All(ctx, &companies); err != nil {
		return
	}

	byID := make(map[primitive.ObjectID]*models.CompanySummary, len(companies))
	for i := range companies {
		byID[companies[i].ID] = companies[i].Summary()
	}
	for _, c := range contacts {
		if c.CompanyID != nil {
			c.Company = byID[*c.CompanyID]
		}
	}
}

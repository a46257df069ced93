package activities

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
	// ErrNotFound covers both missing and foreign-owned activities
	ErrNotFound = errors.New("activity not found")
	// ErrBadReference is returned when a linked resource does not exist
	ErrBadReference = errors.New("linked resource not found")
	// ErrBadSchedule is returned when an update would put end before start
	ErrBadSchedule = errors.New("end_time must not be before start_time")
)

// Service handles activity business logic
type Service struct {
	db *database.Client
}

// NewService creates a new activity service
func NewService(db *database.Client) *Service {
	return &Service{db: db}
}

func (s *Service) col() *mongo.Collection {
	return s.db.Collection(database.ColActivities)
}

// Create inserts an activity. Contact, company and opportunity references
// are optional but must belong to the same owner when given.
func (s *Service) Create(ctx context.Context, userID primitive.ObjectID, req models.CreateActivityRequest) (*models.Activity, error) {
	contactID, err := s.ref(ctx, userID, database.ColContacts, req.ContactID)
	if err != nil {
		return nil, err
	}
	companyID, err := s.ref(ctx, userID, database.ColCompanies, req.CompanyID)
	if err != nil {
		return nil, err
	}
	opportunityID, err := s.ref(ctx, userID, database.ColOpportunities, req.OpportunityID)
	if err != nil {
		return nil, err
	}

	actType := req.Type
	if actType == "" {
		actType = models.ActivityTask
	}
	status := req.Status
	if status == "" {
		status = models.ActivityScheduled
	}
	reminder := models.Reminder{}
	if req.Reminder != nil {
		reminder = *req.Reminder
	}

	now := time.Now().UTC()
	activity := &models.Activity{
		UserID:        userID,
		Title:         req.Title,
		Type:          actType,
		Status:        status,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Location:      req.Location,
		Description:   req.Description,
		ContactID:     contactID,
		CompanyID:     companyID,
		OpportunityID: opportunityID,
		Reminder:      reminder,
		Recurrence:    req.Recurrence,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	res, err := s.col().InsertOne(ctx, activity)
	if err != nil {
		return nil, fmt.Errorf("failed creating activity: %w", err)
	}
	activity.ID = res.InsertedID.(primitive.ObjectID)

	s.resolveRefs(ctx, userID, []*models.Activity{activity})
	return activity, nil
}

// List returns the user's activities matching the filter, soonest first
func (s *Service) List(ctx context.Context, userID primitive.ObjectID, filter models.ActivityFilter, page, limit int) ([]models.Activity, int64, error) {
	page, limit = models.NormalizePage(page, limit)
	query := filter.Build(userID)

	total, err := s.col().CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed counting activities: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cur, err := s.col().Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed listing activities: %w", err)
	}
	defer cur.Close(ctx)

	var items []models.Activity
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("failed decoding activities: %w", err)
	}

	refs := make([]*models.Activity, len(items))
	for i := range items {
		refs[i] = &items[i]
	}
	s.resolveRefs(ctx, userID, refs)

	return items, total, nil
}

// Get fetches one activity by id, scoped to the owner
func (s *Service) Get(ctx context.Context, userID, id primitive.ObjectID) (*models.Activity, error) {
	var activity models.Activity
	err := s.col().FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&activity)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed fetching activity: %w", err)
	}

	s.resolveRefs(ctx, userID, []*models.Activity{&activity})
	return &activity, nil
}

// Update applies a partial update, revalidating the time window against
// the stored document when only one side changes
func (s *Service) Update(ctx context.Context, userID, id primitive.ObjectID, req models.UpdateActivityRequest) (*models.Activity, error) {
	if req.StartTime != nil || req.EndTime != nil {
		current, err := s.Get(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		start := current.StartTime
		if req.StartTime != nil {
			start = *req.StartTime
		}
		end := current.EndTime
		if req.EndTime != nil {
			end = req.EndTime
		}
		if end != nil && end.Before(start) {
			return nil, ErrBadSchedule
		}
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	unset := bson.M{}

	if req.Title != nil {
		set["title"] = *req.Title
	}
	if req.Type != nil {
		set["type"] = *req.Type
	}
	if req.Status != nil {
		set["status"] = *req.Status
	}
	if req.StartTime != nil {
		set["start_time"] = *req.StartTime
	}
	if req.EndTime != nil {
		set["end_time"] = *req.EndTime
	}
	if req.Location != nil {
		set["location"] = *req.Location
	}
	if req.Description != nil {
		set["description"] = *req.Description
	}
	if req.Reminder != nil {
		set["reminder"] = *req.Reminder
	}
	if req.Recurrence != nil {
		set["recurrence"] = *req.Recurrence
	}

	for _, link := range []struct {
		field string
		col   string
		ref   *string
	}{
		{"contact_id", database.ColContacts, req.ContactID},
		{"company_id", database.ColCompanies, req.CompanyID},
		{"opportunity_id", database.ColOpportunities, req.OpportunityID},
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
	var activity models.Activity
	err := s.col().FindOneAndUpdate(ctx, bson.M{"_id": id, "user_id": userID}, update, opts).Decode(&activity)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed updating activity: %w", err)
	}

	s.resolveRefs(ctx, userID, []*models.Activity{&activity})
	return &activity, nil
}

// Delete removes an activity owned by userID
func (s *Service) Delete(ctx context.Context, userID, id primitive.ObjectID) error {
	res, err := s.col().DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed deleting activity: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Upcoming returns the next scheduled activities within the coming days
func (s *Service) Upcoming(ctx context.Context, userID primitive.ObjectID, days, limit int) ([]models.Activity, error) {
	if days <= 0 {
		days = 7
	}
	if limit <= 0 || limit > models.MaxLimit {
		limit = models.DefaultLimit
	}

	now := time.Now().UTC()
	query := bson.M{
		"user_id":    userID,
		"status":     models.ActivityScheduled,
		"start_time": bson.M{"$gte": now, "$lte": now.AddDate(0, 0, days)},
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}}).
		SetLimit(int64(limit))

	cur, err := s.col().Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed listing upcoming activities: %w", err)
	}
	defer cur.Close(ctx)

	var items []models.Activity
	if err := cur.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed decoding activities: %w", err)
	}

	refs := make([]*models.Activity, len(items))
	for i := range items {
		refs[i] = &items[i]
	}
	s.resolveRefs(ctx, userID, refs)

	return items, nil
}

// Overdue returns scheduled activities whose start time has passed
func (s *Service) Overdue(ctx context.Context, userID primitive.ObjectID) ([]models.Activity, error) {
	query := bson.M{
		"user_id":    userID,
		"status":     bson.M{"$in": bson.A{models.ActivityScheduled, models.ActivityOverdue}},
		"start_time": bson.M{"$lt": time.Now().UTC()},
	}

	cur, err := s.col().Find(ctx, query, options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed listing overdue activities: %w", err)
	}
	defer cur.Close(ctx)

	var items []models.Activity
	if err := cur.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed decoding activities: %w", err)
	}

	refs := make([]*models.Activity, len(items))
	for i := range items {
		refs[i] = &items[i]
	}
	s.resolveRefs(ctx, userID, refs)

	return items, nil
}

// MarkOverdue flips scheduled activities whose window has fully passed to
// overdue. An activity still in progress (end time in the future) is left
// alone. Used by the hourly cron sweep; returns the number of flipped
// documents.
func (s *Service) MarkOverdue(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	res, err := s.col().UpdateMany(ctx,
		bson.M{
			"status": models.ActivityScheduled,
			"$or": bson.A{
				bson.M{"end_time": bson.M{"$lt": now}},
				bson.M{"end_time": nil, "start_time": bson.M{"$lt": now}},
			},
		},
		bson.M{"$set": bson.M{"status": models.ActivityOverdue, "updated_at": now}})
	if err != nil {
		return 0, fmt.Errorf("failed marking overdue activities: %w", err)
	}
	return res.ModifiedCount, nil
}

// Count returns how many activities the user owns
func (s *Service) Count(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.col().CountDocuments(ctx, bson.M{"user_id": userID})
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

// resolveRefs fills the contact, company and opportunity summaries with
// batched lookups. Best effort only.
func (s *Service) resolveRefs(ctx context.Context, userID primitive.ObjectID, items []*models.Activity) {
	contactIDs := collect(items, func(a *models.Activity) *primitive.ObjectID { return a.ContactID })
	companyIDs := collect(items, func(a *models.Activity) *primitive.ObjectID { return a.CompanyID })
	oppIDs := collect(items, func(a *models.Activity) *primitive.ObjectID { return a.OpportunityID })

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

	for _, a := range items {
		if a.ContactID != nil {
			a.Contact = contacts[*a.ContactID]
		}
		if a.CompanyID != nil {
			a.Company = companies[*a.CompanyID]
		}
		if a.OpportunityID != nil {
			a.Opportunity = opportunities[*a.OpportunityID]
		}
	}
}

func collect(items []*models.Activity, get func(*models.Activity) *primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool)
	var out []primitive.ObjectID
	for _, a := range items {
		if id := get(a); id != nil && !seen[*id] {
			seen[*id] = true
			out = append(out, *id)
		}
	}
	return out
}

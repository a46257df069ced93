package settings

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pipedesk/pipedesk/pkg/database"
	"github.com/pipedesk/pipedesk/pkg/models"
)

// Service handles the per-user settings document
type Service struct {
	db *database.Client
}

// NewService creates a new settings service
func NewService(db *database.Client) *Service {
	return &Service{db: db}
}

func (s *Service) col() *mongo.Collection {
	return s.db.Collection(database.ColSettings)
}

// Get returns the user's settings, creating the document with defaults on
// first read. Every user therefore always has exactly one settings document.
func (s *Service) Get(ctx context.Context, userID primitive.ObjectID) (*models.Settings, error) {
	var settings models.Settings
	err := s.col().FindOne(ctx, bson.M{"user_id": userID}).Decode(&settings)
	if err == nil {
		return &settings, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, fmt.Errorf("failed fetching settings: %w", err)
	}

	defaults := defaultSettings(userID)
	res, err := s.col().InsertOne(ctx, defaults)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Lost the race against a concurrent first read, fetch theirs
			if err := s.col().FindOne(ctx, bson.M{"user_id": userID}).Decode(&settings); err == nil {
				return &settings, nil
			}
		}
		return nil, fmt.Errorf("failed creating default settings: %w", err)
	}
	defaults.ID = res.InsertedID.(primitive.ObjectID)
	return defaults, nil
}

// Upsert applies the request onto the settings document, creating it when
// missing. POST and PUT share this path.
func (s *Service) Upsert(ctx context.Context, userID primitive.ObjectID, req models.UpsertSettingsRequest) (*models.Settings, error) {
	// Ensure the document exists so defaults survive a partial write
	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	if req.DisplayName != nil {
		set["display_name"] = *req.DisplayName
	}
	if req.Email != nil {
		set["email"] = *req.Email
	}
	if req.AvatarURL != nil {
		set["avatar_url"] = *req.AvatarURL
	}
	if req.Sectors != nil {
		set["sectors"] = *req.Sectors
	}
	if req.ActivityTypes != nil {
		set["activity_types"] = *req.ActivityTypes
	}
	if req.Currency != nil {
		set["currency"] = *req.Currency
	}
	if req.Timezone != nil {
		set["timezone"] = *req.Timezone
	}
	if req.Notifications != nil {
		set["notifications"] = *req.Notifications
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var settings models.Settings
	err := s.col().FindOneAndUpdate(ctx, bson.M{"user_id": userID}, bson.M{"$set": set}, opts).Decode(&settings)
	if err != nil {
		return nil, fmt.Errorf("failed updating settings: %w", err)
	}
	return &settings, nil
}

func defaultSettings(userID primitive.ObjectID) *models.Settings {
	now := time.Now().UTC()
	return &models.Settings{
		UserID:        userID,
		Sectors:       append([]string(nil), models.DefaultSectors...),
		ActivityTypes: append([]string(nil), models.DefaultActivityTypes...),
		Currency:      "USD",
		Timezone:      "UTC",
		Notifications: models.NotificationPrefs{EmailEnabled: true, ReminderEnabled: true},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

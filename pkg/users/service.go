package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pipedesk/pipedesk/pkg/cache"
	"github.com/pipedesk/pipedesk/pkg/database"
	"github.com/pipedesk/pipedesk/pkg/metrics"
	"github.com/pipedesk/pipedesk/pkg/models"
)

// ErrNotFound is returned when no user matches the query
var ErrNotFound = errors.New("user not found")

// userCacheTTL bounds how stale the auth guard's user lookup may be.
// Role or profile changes take at most this long to propagate.
const userCacheTTL = 5 * time.Minute

// Service handles account storage and the per-request user resolution cache
type Service struct {
	db      *database.Client
	cache   *cache.Client
	metrics *metrics.Metrics
}

// NewService creates a new user service
func NewService(db *database.Client, cache *cache.Client, m *metrics.Metrics) *Service {
	return &Service{db: db, cache: cache, metrics: m}
}

func (s *Service) col() *mongo.Collection {
	return s.db.Collection(database.ColUsers)
}

// Create inserts a new account
func (s *Service) Create(ctx context.Context, email, passwordHash, name, role string) (*models.User, error) {
	now := time.Now().UTC()
	u := &models.User{
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	res, err := s.col().InsertOne(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed creating user: %w", err)
	}
	u.ID = res.InsertedID.(primitive.ObjectID)
	return u, nil
}

// GetByEmail finds an account by email
func (s *Service) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.col().FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed fetching user: %w", err)
	}
	return &u, nil
}

// EmailExists reports whether an account with the email already exists
func (s *Service) EmailExists(ctx context.Context, email string) (bool, error) {
	count, err := s.col().CountDocuments(ctx, bson.M{"email": email})
	if err != nil {
		return false, fmt.Errorf("failed counting users: %w", err)
	}
	return count > 0, nil
}

// GetByID fetches an account straight from the database
func (s *Service) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	err := s.col().FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed fetching user: %w", err)
	}
	return &u, nil
}

// Resolve fetches an account for request authentication, served from a
// short-TTL Redis cache to avoid a database round-trip on every request.
func (s *Service) Resolve(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	key := fmt.Sprintf("users:resolve:%s", id.Hex())

	if s.cache != nil {
		var cached models.User
		if found, err := s.cache.GetJSON(ctx, key, &cached); err == nil && found {
			if s.metrics != nil {
				s.metrics.RecordCacheHit()
			}
			return &cached, nil
		}
		if s.metrics != nil {
			s.metrics.RecordCacheMiss()
		}
	}

	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		// Best effort; a cache write failure never fails the request
		_ = s.cache.SetJSON(ctx, key, u, userCacheTTL)
	}
	return u, nil
}

// invalidate drops the resolution cache entry after a write
func (s *Service) invalidate(ctx context.Context, id primitive.ObjectID) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, fmt.Sprintf("users:resolve:%s", id.Hex()))
	}
}

// TouchLogin records a successful login
func (s *Service) TouchLogin(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now().UTC()
	_, err := s.col().UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"last_login_at": now, "updated_at": now},
	})
	return err
}

// SetPassword replaces the stored password hash
func (s *Service) SetPassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	now := time.Now().UTC()
	_, err := s.col().UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"password_hash": passwordHash, "updated_at": now},
	})
	if err != nil {
		return fmt.Errorf("failed updating password: %w", err)
	}
	s.invalidate(ctx, id)
	return nil
}

// List returns accounts for the admin console, newest first
func (s *Service) List(ctx context.Context, page, limit int) ([]models.User, int64, error) {
	page, limit = models.NormalizePage(page, limit)

	total, err := s.col().CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed counting users: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cur, err := s.col().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed listing users: %w", err)
	}
	defer cur.Close(ctx)

	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("failed decoding users: %w", err)
	}
	return out, total, nil
}

// Update applies an admin edit to an account
func (s *Service) Update(ctx context.Context, id primitive.ObjectID, req models.UpdateUserRequest) (*models.User, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if req.Name != nil {
		set["name"] = *req.Name
	}
	if req.Role != nil {
		set["role"] = *req.Role
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	err := s.col().FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed updating user: %w", err)
	}
	s.invalidate(ctx, id)
	return &u, nil
}

// Delete removes an account
func (s *Service) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.col().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed deleting user: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	s.invalidate(ctx, id)
	return nil
}

// Count returns the total number of accounts
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.col().CountDocuments(ctx, bson.M{})
}

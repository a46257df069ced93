package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names, one per resource
const (
	ColUsers         = "users"
	ColContacts      = "contacts"
	ColCompanies     = "companies"
	ColOpportunities = "opportunities"
	ColActivities    = "activities"
	ColExpenses      = "expenses"
	ColLeads         = "leads"
	ColSettings      = "settings"
	ColExports       = "exports"
)

// Client holds the MongoDB connection and database handle
type Client struct {
	Mongo *mongo.Client
	DB    *mongo.Database
}

// NewClient connects to MongoDB and verifies the connection
func NewClient(uri, dbName string) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed connecting to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed pinging mongodb: %w", err)
	}

	log.Println("✅ MongoDB connected")

	return &Client{
		Mongo: client,
		DB:    client.Database(dbName),
	}, nil
}

// Collection returns a handle to the named collection
func (c *Client) Collection(name string) *mongo.Collection {
	return c.DB.Collection(name)
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.Mongo.Ping(ctx, nil)
}

// Close disconnects from MongoDB
func (c *Client) Close(ctx context.Context) error {
	return c.Mongo.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the query paths rely on. Safe to call on
// every startup; Mongo treats existing identical indexes as a no-op.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	// Unique account email
	_, err := c.Collection(ColUsers).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed creating users index: %w", err)
	}

	// Every resource query is scoped by owner, newest first
	owned := []string{
		ColContacts, ColCompanies, ColOpportunities,
		ColActivities, ColExpenses, ColLeads, ColExports,
	}
	for _, col := range owned {
		_, err := c.Collection(col).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		})
		if err != nil {
			return fmt.Errorf("failed creating %s index: %w", col, err)
		}
	}

	// One settings document per user
	_, err = c.Collection(ColSettings).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed creating settings index: %w", err)
	}

	// Calendar range queries
	_, err = c.Collection(ColActivities).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "start_time", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed creating activities time index: %w", err)
	}

	return nil
}

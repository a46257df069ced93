package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pipedesk/pipedesk/config"
	"github.com/pipedesk/pipedesk/pkg/auth"
	"github.com/pipedesk/pipedesk/pkg/database"
	"github.com/pipedesk/pipedesk/pkg/models"
	"github.com/pipedesk/pipedesk/pkg/testdata"
)

// Seeds a demo workspace for local development. Running it again wipes
// and regenerates the demo user's documents.
func main() {
	email := flag.String("email", "demo@pipedesk.io", "demo account email")
	password := flag.String("password", "demo1234", "demo account password")
	companies := flag.Int("companies", 20, "number of companies to generate")
	leads := flag.Int("leads", 30, "number of leads to generate")
	flag.Parse()

	cfg := config.Load()

	db, err := database.NewClient(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = db.Close(ctx)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := db.EnsureIndexes(ctx); err != nil {
		log.Fatalf("❌ Failed to ensure indexes: %v", err)
	}

	userID, err := ensureDemoUser(ctx, db, *email, *password)
	if err != nil {
		log.Fatalf("❌ Failed to create demo user: %v", err)
	}
	log.Printf("✅ Demo user ready: %s", *email)

	// Wipe the demo user's previous documents
	for _, col := range []string{
		database.ColCompanies, database.ColContacts, database.ColOpportunities,
		database.ColActivities, database.ColExpenses, database.ColLeads,
	} {
		if _, err := db.Collection(col).DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
			log.Fatalf("❌ Failed to clear %s: %v", col, err)
		}
	}

	genCfg := testdata.DefaultGeneratorConfig()
	genCfg.Companies = *companies
	genCfg.Leads = *leads
	ws := testdata.GenerateWorkspace(userID, genCfg)

	insert(ctx, db, database.ColCompanies, toDocs(ws.Companies))
	insert(ctx, db, database.ColContacts, toDocs(ws.Contacts))
	insert(ctx, db, database.ColOpportunities, toDocs(ws.Opportunities))
	insert(ctx, db, database.ColActivities, toDocs(ws.Activities))
	insert(ctx, db, database.ColExpenses, toDocs(ws.Expenses))
	insert(ctx, db, database.ColLeads, toDocs(ws.Leads))

	log.Printf("✅ Seeded %d companies, %d contacts, %d opportunities, %d activities, %d expenses, %d leads",
		len(ws.Companies), len(ws.Contacts), len(ws.Opportunities),
		len(ws.Activities), len(ws.Expenses), len(ws.Leads))
}

func ensureDemoUser(ctx context.Context, db *database.Client, email, password string) (primitive.ObjectID, error) {
	col := db.Collection(database.ColUsers)

	var existing models.User
	err := col.FindOne(ctx, bson.M{"email": email}).Decode(&existing)
	if err == nil {
		return existing.ID, nil
	}
	if err != mongo.ErrNoDocuments {
		return primitive.NilObjectID, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return primitive.NilObjectID, err
	}

	now := time.Now().UTC()
	user := models.User{
		Email:         email,
		PasswordHash:  hash,
		Name:          "Demo User",
		Role:          models.RoleUser,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	res, err := col.InsertOne(ctx, user)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

func insert(ctx context.Context, db *database.Client, col string, docs []interface{}) {
	if len(docs) == 0 {
		return
	}
	if _, err := db.Collection(col).InsertMany(ctx, docs); err != nil {
		log.Fatalf("❌ Failed to insert into %s: %v", col, err)
	}
}

func toDocs[T any](items []T) []interface{} {
	docs := make([]interface{}, len(items))
	for i := range items {
		docs[i] = items[i]
	}
	return docs
}

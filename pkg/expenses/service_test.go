package expenses

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/pipedesk/pipedesk/pkg/database"
	"github.com/pipedesk/pipedesk/pkg/models"
)

func mockDB(mt *mtest.T) *database.Client {
	return &database.Client{Mongo: mt.Client, DB: mt.Client.Database("pipedesk_test")}
}

func TestGet_ResolvesReferences(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("summaries filled from referenced collections", func(mt *mtest.T) {
		svc := NewService(mockDB(mt))

		userID := primitive.NewObjectID()
		expenseID := primitive.NewObjectID()
		oppID := primitive.NewObjectID()
		companyID := primitive.NewObjectID()
		contactID := primitive.NewObjectID()

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "pipedesk_test.expenses", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: expenseID},
				{Key: "user_id", Value: userID},
				{Key: "title", Value: "Flights"},
				{Key: "amount", Value: 500.0},
				{Key: "category", Value: "travel"},
				{Key: "opportunity_id", Value: oppID},
				{Key: "company_id", Value: companyID},
				{Key: "contact_id", Value: contactID},
			}),
			mtest.CreateCursorResponse(0, "pipedesk_test.opportunities", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: oppID},
				{Key: "user_id", Value: userID},
				{Key: "title", Value: "Renewal"},
				{Key: "status", Value: "negotiate"},
				{Key: "amount", Value: 12000.0},
			}),
			mtest.CreateCursorResponse(0, "pipedesk_test.companies", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: companyID},
				{Key: "user_id", Value: userID},
				{Key: "name", Value: "Acme"},
				{Key: "sector", Value: "SaaS"},
			}),
			mtest.CreateCursorResponse(0, "pipedesk_test.contacts", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: contactID},
				{Key: "user_id", Value: userID},
				{Key: "first_name", Value: "Ada"},
				{Key: "last_name", Value: "Lovelace"},
			}),
		)

		expense, err := svc.Get(context.Background(), userID, expenseID)
		require.NoError(mt, err)

		require.NotNil(mt, expense.Opportunity)
		assert.Equal(mt, "Renewal", expense.Opportunity.Title)
		require.NotNil(mt, expense.Company)
		assert.Equal(mt, "Acme", expense.Company.Name)
		require.NotNil(mt, expense.Contact)
		assert.Equal(mt, "Ada", expense.Contact.FirstName)
	})
}

func TestGet_ScopedToOwner(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("foreign-owned expense reads as not found", func(mt *mtest.T) {
		svc := NewService(mockDB(mt))

		mt.AddMockResponses(mtest.CreateCursorResponse(0, "pipedesk_test.expenses", mtest.FirstBatch))

		_, err := svc.Get(context.Background(), primitive.NewObjectID(), primitive.NewObjectID())
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}

func TestList_DecoratesItems(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("company summary resolved, unrelated summaries left nil", func(mt *mtest.T) {
		svc := NewService(mockDB(mt))

		userID := primitive.NewObjectID()
		companyID := primitive.NewObjectID()

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "pipedesk_test.expenses", mtest.FirstBatch, bson.D{{Key: "n", Value: 1}}),
			mtest.CreateCursorResponse(0, "pipedesk_test.expenses", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "user_id", Value: userID},
				{Key: "title", Value: "Team dinner"},
				{Key: "amount", Value: 180.0},
				{Key: "category", Value: "meals"},
				{Key: "company_id", Value: companyID},
			}),
			mtest.CreateCursorResponse(0, "pipedesk_test.companies", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: companyID},
				{Key: "user_id", Value: userID},
				{Key: "name", Value: "Globex"},
			}),
		)

		items, total, err := svc.List(context.Background(), userID, models.ExpenseFilter{}, 1, 50)
		require.NoError(mt, err)
		assert.EqualValues(mt, 1, total)
		require.Len(mt, items, 1)

		require.NotNil(mt, items[0].Company)
		assert.Equal(mt, "Globex", items[0].Company.Name)
		assert.Nil(mt, items[0].Opportunity)
		assert.Nil(mt, items[0].Contact)
	})
}

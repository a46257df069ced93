package leads

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

func TestSplitName(t *testing.T) {
	tests := []struct {
		name      string
		full      string
		wantFirst string
		wantLast  string
	}{
		{"first and last", "John Doe", "John", "Doe"},
		{"three parts", "Ana María López", "Ana", "María López"},
		{"single name", "Cher", "Cher", ""},
		{"surrounding spaces", "  John Doe  ", "John", "Doe"},
		{"empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := splitName(tt.full)
			assert.Equal(t, tt.wantFirst, first)
			assert.Equal(t, tt.wantLast, last)
		})
	}
}

func mockDB(mt *mtest.T) *database.Client {
	return &database.Client{Mongo: mt.Client, DB: mt.Client.Database("pipedesk_test")}
}

// deletedCollections lists the collections hit by delete commands, in order
func deletedCollections(mt *mtest.T) []string {
	var out []string
	for _, evt := range mt.GetAllStartedEvents() {
		if evt.CommandName == "delete" {
			out = append(out, evt.Command.Lookup("delete").StringValue())
		}
	}
	return out
}

func TestConvert_AlreadyConverted(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("converted lead is rejected before any writes", func(mt *mtest.T) {
		svc := NewService(mockDB(mt))

		userID := primitive.NewObjectID()
		leadID := primitive.NewObjectID()

		mt.AddMockResponses(mtest.CreateCursorResponse(0, "pipedesk_test.leads", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: leadID},
			{Key: "user_id", Value: userID},
			{Key: "name", Value: "Jo Rivera"},
			{Key: "status", Value: models.LeadConverted},
			{Key: "converted", Value: bson.D{{Key: "contact_id", Value: primitive.NewObjectID()}}},
		}))

		_, err := svc.Convert(context.Background(), userID, leadID, models.ConvertLeadRequest{})
		assert.ErrorIs(mt, err, ErrAlreadyConverted)
		assert.Empty(mt, deletedCollections(mt))
	})
}

func TestConvert_FinalizeRaceRollsBack(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("losing the finalize race deletes the created contact", func(mt *mtest.T) {
		svc := NewService(mockDB(mt))

		userID := primitive.NewObjectID()
		leadID := primitive.NewObjectID()

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "pipedesk_test.leads", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: leadID},
				{Key: "user_id", Value: userID},
				{Key: "name", Value: "Jo Rivera"},
				{Key: "status", Value: models.LeadQualified},
			}),
			// Contact insert succeeds
			mtest.CreateSuccessResponse(),
			// Another request finalized the lead first: converted is no
			// longer nil, so the guarded findAndModify matches nothing
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			// Compensating contact delete
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
		)

		_, err := svc.Convert(context.Background(), userID, leadID, models.ConvertLeadRequest{})
		assert.ErrorIs(mt, err, ErrAlreadyConverted)
		assert.Equal(mt, []string{database.ColContacts}, deletedCollections(mt))
	})
}

func TestConvert_FailedInsertRollsBackCompany(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("contact insert failure deletes the created company", func(mt *mtest.T) {
		svc := NewService(mockDB(mt))

		userID := primitive.NewObjectID()
		leadID := primitive.NewObjectID()

		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "pipedesk_test.leads", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: leadID},
				{Key: "user_id", Value: userID},
				{Key: "name", Value: "Jo Rivera"},
				{Key: "company_name", Value: "Rivera Ltd"},
				{Key: "status", Value: models.LeadQualified},
			}),
			// Company insert succeeds
			mtest.CreateSuccessResponse(),
			// Contact insert fails
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key"}),
			// Compensating company delete
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
		)

		_, err := svc.Convert(context.Background(), userID, leadID, models.ConvertLeadRequest{CreateCompany: true})
		require.Error(mt, err)
		assert.NotErrorIs(mt, err, ErrAlreadyConverted)
		assert.Equal(mt, []string{database.ColCompanies}, deletedCollections(mt))
	})
}

func TestConvert_OpportunityRequiresCompany(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("opportunity-only conversion is rejected", func(mt *mtest.T) {
		svc := NewService(mockDB(mt))

		userID := primitive.NewObjectID()
		leadID := primitive.NewObjectID()

		mt.AddMockResponses(mtest.CreateCursorResponse(0, "pipedesk_test.leads", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: leadID},
			{Key: "user_id", Value: userID},
			{Key: "name", Value: "Jo Rivera"},
			{Key: "status", Value: models.LeadNew},
		}))

		_, err := svc.Convert(context.Background(), userID, leadID, models.ConvertLeadRequest{CreateOpportunity: true})
		assert.ErrorIs(mt, err, ErrOpportunityNeedsCompany)
	})
}

package activities

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/pipedesk/pipedesk/pkg/database"
)

func mockDB(mt *mtest.T) *database.Client {
	return &database.Client{Mongo: mt.Client, DB: mt.Client.Database("pipedesk_test")}
}

func TestMarkOverdue_SparesInProgressActivities(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("sweep filters on the end of the window", func(mt *mtest.T) {
		svc := NewService(mockDB(mt))

		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 3},
			bson.E{Key: "nModified", Value: 3},
		))

		flipped, err := svc.MarkOverdue(context.Background())
		require.NoError(mt, err)
		assert.EqualValues(mt, 3, flipped)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "update", evt.CommandName)

		var cmd struct {
			Updates []struct {
				Q bson.M `bson:"q"`
			} `bson:"updates"`
		}
		require.NoError(mt, bson.Unmarshal(evt.Command, &cmd))
		require.Len(mt, cmd.Updates, 1)

		q := cmd.Updates[0].Q
		assert.Equal(mt, "scheduled", q["status"])

		// An activity whose end time is still ahead must not match: the
		// sweep keys on end_time, falling back to start_time only for
		// open-ended activities
		or, ok := q["$or"].(bson.A)
		require.True(mt, ok, "sweep filter must use an $or over the window bounds")
		require.Len(mt, or, 2)

		ended, ok := or[0].(bson.M)
		require.True(mt, ok)
		assert.Contains(mt, ended, "end_time")
		assert.NotContains(mt, ended, "start_time")

		openEnded, ok := or[1].(bson.M)
		require.True(mt, ok)
		assert.Nil(mt, openEnded["end_time"])
		assert.Contains(mt, openEnded, "start_time")
	})
}

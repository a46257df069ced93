package users

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/pipedesk/pipedesk/pkg/cache"
	"github.com/pipedesk/pipedesk/pkg/database"
	"github.com/pipedesk/pipedesk/pkg/metrics"
)

func TestResolve_CacheCounters(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	redisClient, err := cache.NewClient("redis://" + mr.Addr())
	require.NoError(t, err)
	defer redisClient.Close()

	m := metrics.New()

	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("first resolve misses, second is served from cache", func(mt *mtest.T) {
		db := &database.Client{Mongo: mt.Client, DB: mt.Client.Database("pipedesk_test")}
		svc := NewService(db, redisClient, m)

		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "pipedesk_test.users", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "email", Value: "ada@example.com"},
			{Key: "name", Value: "Ada"},
			{Key: "role", Value: "user"},
		}))

		hits := testutil.ToFloat64(m.CacheHits)
		misses := testutil.ToFloat64(m.CacheMisses)

		u, err := svc.Resolve(context.Background(), id)
		require.NoError(mt, err)
		assert.Equal(mt, "ada@example.com", u.Email)
		assert.Equal(mt, hits, testutil.ToFloat64(m.CacheHits))
		assert.Equal(mt, misses+1, testutil.ToFloat64(m.CacheMisses))

		// No further mock responses queued: a database round-trip here fails
		u, err = svc.Resolve(context.Background(), id)
		require.NoError(mt, err)
		assert.Equal(mt, "ada@example.com", u.Email)
		assert.Equal(mt, hits+1, testutil.ToFloat64(m.CacheHits))
		assert.Equal(mt, misses+1, testutil.ToFloat64(m.CacheMisses))
	})
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a test Redis client using miniredis
func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	client := &Client{
		Redis: redisClient,
	}

	return client, mr
}

func TestClient_SetGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	err := client.Set(ctx, "test:key1", "value1", 1*time.Hour)
	require.NoError(t, err)

	val, err := client.Get(ctx, "test:key1")
	require.NoError(t, err)
	assert.Equal(t, "value1", val)
}

func TestClient_Delete(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	_ = client.Set(ctx, "test:key1", "value1", 1*time.Hour)
	_ = client.Set(ctx, "test:key2", "value2", 1*time.Hour)

	err := client.Delete(ctx, "test:key1")
	require.NoError(t, err)

	// Deleted key returns redis.Nil
	_, err = client.Get(ctx, "test:key1")
	assert.Error(t, err)

	// Other key should still exist
	val, err := client.Get(ctx, "test:key2")
	require.NoError(t, err)
	assert.Equal(t, "value2", val)
}

func TestClient_DeleteMultiple(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	_ = client.Set(ctx, "users:resolve:a", "data1", 1*time.Hour)
	_ = client.Set(ctx, "users:resolve:b", "data2", 1*time.Hour)
	_ = client.Set(ctx, "pwreset:c", "data3", 1*time.Hour)

	err := client.Delete(ctx, "users:resolve:a", "users:resolve:b")
	require.NoError(t, err)

	_, err = client.Get(ctx, "users:resolve:a")
	assert.Error(t, err)
	_, err = client.Get(ctx, "users:resolve:b")
	assert.Error(t, err)

	val, err := client.Get(ctx, "pwreset:c")
	require.NoError(t, err)
	assert.Equal(t, "data3", val)
}

func TestClient_Exists(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	exists, err := client.Exists(ctx, "test:nonexistent")
	require.NoError(t, err)
	assert.False(t, exists)

	_ = client.Set(ctx, "test:exists", "value", 1*time.Hour)

	exists, err = client.Exists(ctx, "test:exists")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestClient_TTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	_ = client.Set(ctx, "test:ttl", "value", 10*time.Second)

	ttl, err := client.TTL(ctx, "test:ttl")
	require.NoError(t, err)
	assert.Greater(t, ttl.Seconds(), 9.0)
	assert.LessOrEqual(t, ttl.Seconds(), 10.0)
}

func TestClient_Expiration(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	_ = client.Set(ctx, "test:expiring", "value", 1*time.Second)

	mr.FastForward(2 * time.Second)

	exists, err := client.Exists(ctx, "test:expiring")
	require.NoError(t, err)
	assert.False(t, exists, "Key should expire after TTL")
}

func TestClient_SetGetJSON(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	type cachedUser struct {
		Name string `json:"name"`
		Role string `json:"role"`
	}

	in := cachedUser{Name: "Alice Rivera", Role: "admin"}
	err := client.SetJSON(ctx, "users:resolve:abc", in, 5*time.Minute)
	require.NoError(t, err)

	var out cachedUser
	found, err := client.GetJSON(ctx, "users:resolve:abc", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)
}

func TestClient_GetJSON_Miss(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	var out map[string]string
	found, err := client.GetJSON(ctx, "users:resolve:missing", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

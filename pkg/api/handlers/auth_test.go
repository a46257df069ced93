package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipedesk/pipedesk/config"
	"github.com/pipedesk/pipedesk/pkg/auth"
	"github.com/pipedesk/pipedesk/pkg/cache"
)

func TestLogout_BlacklistTTLMatchesTokenLifetime(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := cache.NewClient("redis://" + mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	cfg := &config.Config{
		JWTSecret:          "test-secret",
		JWTExpirationHours: 24,
	}
	h := NewAuthHandler(nil, cfg, auth.NewTokenBlacklist(client), client, nil, nil)

	// Token issued with a 1 hour lifetime, far below the configured 24
	token, err := auth.GenerateJWT("507f1f77bcf86cd799439011", "a@b.com", "user", cfg.JWTSecret, 1)
	require.NoError(t, err)

	c, rec := newJSONContext(t, http.MethodGet, "/api/v1/auth/logout", "")
	c.Set("token", token)

	require.NoError(t, h.Logout(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	hash := sha256.Sum256([]byte(token))
	key := fmt.Sprintf("jwt:blacklist:%s", hex.EncodeToString(hash[:]))
	require.True(t, mr.Exists(key))

	// Revocation lives as long as the token, not the configured maximum
	ttl := mr.TTL(key)
	assert.LessOrEqual(t, ttl, time.Hour)
	assert.Greater(t, ttl, 50*time.Minute)
}

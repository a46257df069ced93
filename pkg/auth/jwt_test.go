package auth

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret-key-minimum-32-characters-long"

func TestGenerateJWT(t *testing.T) {
	userID := primitive.NewObjectID().Hex()

	token, err := GenerateJWT(userID, "test@example.com", "user", testSecret, 24)
	if err != nil {
		t.Fatalf("Failed to generate JWT: %v", err)
	}

	if token == "" {
		t.Error("Token should not be empty")
	}

	if len(token) < 10 {
		t.Error("Token seems too short")
	}
}

func TestValidateJWT(t *testing.T) {
	userID := primitive.NewObjectID().Hex()
	email := "test@example.com"
	role := "admin"

	token, err := GenerateJWT(userID, email, role, testSecret, 24)
	if err != nil {
		t.Fatalf("Failed to generate JWT: %v", err)
	}

	claims, err := ValidateJWT(token, testSecret)
	if err != nil {
		t.Fatalf("Failed to validate JWT: %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("Expected UserID %s, got %s", userID, claims.UserID)
	}

	if claims.Email != email {
		t.Errorf("Expected Email %s, got %s", email, claims.Email)
	}

	if claims.Role != role {
		t.Errorf("Expected Role %s, got %s", role, claims.Role)
	}
}

func TestValidateJWTInvalidToken(t *testing.T) {
	_, err := ValidateJWT("invalid.token.here", testSecret)
	if err == nil {
		t.Error("ValidateJWT should return error for invalid token")
	}

	_, err = ValidateJWT("", testSecret)
	if err == nil {
		t.Error("ValidateJWT should return error for empty token")
	}
}

func TestValidateJWTWrongSecret(t *testing.T) {
	userID := primitive.NewObjectID().Hex()
	wrongSecret := "wrong-secret-key-minimum-32-characters-long"

	token, err := GenerateJWT(userID, "test@example.com", "user", testSecret, 24)
	if err != nil {
		t.Fatalf("Failed to generate JWT: %v", err)
	}

	_, err = ValidateJWT(token, wrongSecret)
	if err == nil {
		t.Error("ValidateJWT should return error when using wrong secret")
	}
}

func TestJWTExpiration(t *testing.T) {
	userID := primitive.NewObjectID().Hex()

	token, err := GenerateJWT(userID, "test@example.com", "user", testSecret, 24)
	if err != nil {
		t.Fatalf("Failed to generate JWT: %v", err)
	}

	claims, err := ValidateJWT(token, testSecret)
	if err != nil {
		t.Errorf("Token should be valid immediately: %v", err)
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		t.Error("Token expiration should be in the future")
	}
}

func TestGenerateJWTDifferentRoles(t *testing.T) {
	roles := []string{"user", "admin"}

	for _, role := range roles {
		token, err := GenerateJWT(primitive.NewObjectID().Hex(), "test@example.com", role, testSecret, 24)
		if err != nil {
			t.Errorf("Failed to generate JWT for role %s: %v", role, err)
			continue
		}

		claims, err := ValidateJWT(token, testSecret)
		if err != nil {
			t.Errorf("Failed to validate JWT for role %s: %v", role, err)
			continue
		}

		if claims.Role != role {
			t.Errorf("Expected role %s, got %s", role, claims.Role)
		}
	}
}

func TestValidateJWTWithBlacklist(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	blacklist := NewTokenBlacklist(client)
	ctx := context.Background()

	token, err := GenerateJWT(primitive.NewObjectID().Hex(), "test@example.com", "user", testSecret, 24)
	if err != nil {
		t.Fatalf("Failed to generate JWT: %v", err)
	}

	// Valid and not revoked
	if _, err := ValidateJWTWithBlacklist(ctx, token, testSecret, blacklist); err != nil {
		t.Fatalf("Token should validate before revocation: %v", err)
	}

	// Revoke and check again
	if err := blacklist.Add(ctx, token, time.Hour); err != nil {
		t.Fatalf("Failed to blacklist token: %v", err)
	}

	if _, err := ValidateJWTWithBlacklist(ctx, token, testSecret, blacklist); err == nil {
		t.Error("Revoked token should not validate")
	}
}

package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pipedesk/pipedesk/config"
	"github.com/pipedesk/pipedesk/pkg/api/errors"
	"github.com/pipedesk/pipedesk/pkg/auth"
	"github.com/pipedesk/pipedesk/pkg/cache"
	"github.com/pipedesk/pipedesk/pkg/email"
	"github.com/pipedesk/pipedesk/pkg/metrics"
	"github.com/pipedesk/pipedesk/pkg/models"
	"github.com/pipedesk/pipedesk/pkg/users"
)

const resetTokenTTL = time.Hour

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	users        *users.Service
	config       *config.Config
	blacklist    *auth.TokenBlacklist
	cache        *cache.Client
	emailService *email.Service
	metrics      *metrics.Metrics
	validator    *validator.Validate
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(userSvc *users.Service, cfg *config.Config, blacklist *auth.TokenBlacklist, cache *cache.Client, emailService *email.Service, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{
		users:        userSvc,
		config:       cfg,
		blacklist:    blacklist,
		cache:        cache,
		emailService: emailService,
		metrics:      m,
		validator:    validator.New(),
	}
}

// Register creates a new account and returns a token for it
func (h *AuthHandler) Register(c echo.Context) error {
	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	exists, err := h.users.EmailExists(ctx, req.Email)
	if err != nil {
		return errors.DatabaseError(c, err)
	}
	if exists {
		return errors.Conflict(c, "User with this email already exists")
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return errors.InternalError(c, err)
	}

	newUser, err := h.users.Create(ctx, req.Email, hashedPassword, req.Name, models.RoleUser)
	if err != nil {
		return errors.DatabaseError(c, err)
	}

	token, err := auth.GenerateJWT(newUser.ID.Hex(), newUser.Email, newUser.Role, h.config.JWTSecret, h.config.JWTExpirationHours)
	if err != nil {
		return errors.InternalError(c, err)
	}

	if h.emailService != nil {
		// Welcome mail is best effort
		go h.emailService.SendWelcomeEmail(newUser.Email, newUser.Name)
	}
	if h.metrics != nil {
		h.metrics.RecordUserRegistered()
	}

	return c.JSON(http.StatusCreated, models.OK(models.AuthData{
		Token: token,
		User:  newUser.Info(),
	}))
}

// Login verifies credentials and returns a fresh token
func (h *AuthHandler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	account, err := h.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == users.ErrNotFound {
			h.recordLogin(false)
			return errors.Unauthorized(c, "Invalid email or password")
		}
		return errors.DatabaseError(c, err)
	}

	if !auth.CheckPassword(account.PasswordHash, req.Password) {
		h.recordLogin(false)
		return errors.Unauthorized(c, "Invalid email or password")
	}

	token, err := auth.GenerateJWT(account.ID.Hex(), account.Email, account.Role, h.config.JWTSecret, h.config.JWTExpirationHours)
	if err != nil {
		return errors.InternalError(c, err)
	}

	if err := h.users.TouchLogin(ctx, account.ID); err != nil {
		// Non-fatal, the login still succeeds
		c.Logger().Warnf("failed recording login time: %v", err)
	}
	h.recordLogin(true)

	return c.JSON(http.StatusOK, models.OK(models.AuthData{
		Token: token,
		User:  account.Info(),
	}))
}

// Logout revokes the presented token until it would have expired
func (h *AuthHandler) Logout(c echo.Context) error {
	token, ok := c.Get("token").(string)
	if !ok || token == "" {
		return errors.Unauthorized(c, "No token to revoke")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	// Keep the revocation only as long as the token stays valid
	ttl := time.Duration(h.config.JWTExpirationHours) * time.Hour
	if claims, err := auth.ValidateJWT(token, h.config.JWTSecret); err == nil && claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > 0 {
			ttl = remaining
		}
	}
	if err := h.blacklist.Add(ctx, token, ttl); err != nil {
		return errors.InternalError(c, err)
	}

	return c.JSON(http.StatusOK, models.OK(map[string]string{"message": "Logged out successfully"}))
}

// Me returns the authenticated account
func (h *AuthHandler) Me(c echo.Context) error {
	user, ok := c.Get("user").(*models.User)
	if !ok {
		return errors.Unauthorized(c, "")
	}
	return c.JSON(http.StatusOK, models.OK(user.Info()))
}

// ForgotPassword issues a reset token. The response is identical whether
// or not the email exists, so account presence is never leaked.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req models.ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	neutral := models.OK(map[string]string{
		"message": "If an account exists for that email, a reset link has been sent",
	})

	account, err := h.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if err == users.ErrNotFound {
			return c.JSON(http.StatusOK, neutral)
		}
		return errors.DatabaseError(c, err)
	}

	token, err := auth.GenerateResetToken()
	if err != nil {
		return errors.InternalError(c, err)
	}

	key := fmt.Sprintf("pwreset:%s", auth.HashResetToken(token))
	if err := h.cache.Set(ctx, key, account.ID.Hex(), resetTokenTTL); err != nil {
		return errors.InternalError(c, err)
	}

	if h.emailService != nil {
		if err := h.emailService.SendPasswordResetEmail(account.Email, account.Name, token); err != nil {
			c.Logger().Errorf("failed sending reset email: %v", err)
		}
	}

	return c.JSON(http.StatusOK, neutral)
}

// ResetPassword consumes a reset token and sets the new password
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return errors.BadRequest(c, "Reset token is required")
	}

	var req models.ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return errors.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	key := fmt.Sprintf("pwreset:%s", auth.HashResetToken(token))
	userHex, err := h.cache.Get(ctx, key)
	if err != nil || userHex == "" {
		return errors.BadRequest(c, "Invalid or expired reset token")
	}

	userID, err := primitive.ObjectIDFromHex(userHex)
	if err != nil {
		return errors.BadRequest(c, "Invalid or expired reset token")
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return errors.InternalError(c, err)
	}

	if err := h.users.SetPassword(ctx, userID, hashedPassword); err != nil {
		return errors.DatabaseError(c, err)
	}

	// One-shot token
	if err := h.cache.Delete(ctx, key); err != nil {
		c.Logger().Warnf("failed deleting reset token: %v", err)
	}

	return c.JSON(http.StatusOK, models.OK(map[string]string{"message": "Password has been reset"}))
}

func (h *AuthHandler) recordLogin(success bool) {
	if h.metrics != nil {
		h.metrics.RecordLoginAttempt(success)
	}
}

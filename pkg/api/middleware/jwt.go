package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pipedesk/pipedesk/pkg/auth"
	"github.com/pipedesk/pipedesk/pkg/models"
	"github.com/pipedesk/pipedesk/pkg/users"
)

// JWTMiddleware creates a JWT authentication middleware
func JWTMiddleware(secret string) echo.MiddlewareFunc {
	return JWTMiddlewareWithBlacklist(secret, nil, nil)
}

// JWTMiddlewareWithBlacklist creates a JWT authentication middleware with
// blacklist support and account resolution. When a user service is given,
// the token subject is resolved to a live account and stored in context;
// tokens for deleted accounts are rejected.
func JWTMiddlewareWithBlacklist(secret string, blacklist *auth.TokenBlacklist, userSvc *users.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, models.Fail("Authorization header is required"))
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return c.JSON(http.StatusUnauthorized, models.Fail("Authorization header must be 'Bearer {token}'"))
			}
			token := parts[1]

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()

			claims, err := auth.ValidateJWTWithBlacklist(ctx, token, secret, blacklist)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, models.Fail("Invalid or expired token"))
			}

			userID, err := primitive.ObjectIDFromHex(claims.UserID)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, models.Fail("Invalid or expired token"))
			}

			if userSvc != nil {
				user, err := userSvc.Resolve(ctx, userID)
				if err != nil {
					return c.JSON(http.StatusUnauthorized, models.Fail("User account not found"))
				}
				c.Set("user", user)
				c.Set("user_role", user.Role)
			} else {
				c.Set("user_role", claims.Role)
			}

			// Store token in context for potential logout
			c.Set("token", token)

			c.Set("user_id", userID)
			c.Set("user_email", claims.Email)

			return next(c)
		}
	}
}

// JWTFromQueryOrHeader creates a JWT middleware that accepts the token from a
// query parameter as well as the header. Export download links cannot set
// headers, so this covers them.
func JWTFromQueryOrHeader(secret string, blacklist *auth.TokenBlacklist, userSvc *users.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var token string

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader != "" {
				parts := strings.Split(authHeader, " ")
				if len(parts) == 2 && parts[0] == "Bearer" {
					token = parts[1]
				}
			}

			if token == "" {
				token = c.QueryParam("token")
			}

			if token == "" {
				return c.JSON(http.StatusUnauthorized, models.Fail("Authorization header or token query parameter is required"))
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()

			claims, err := auth.ValidateJWTWithBlacklist(ctx, token, secret, blacklist)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, models.Fail("Invalid or expired token"))
			}

			userID, err := primitive.ObjectIDFromHex(claims.UserID)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, models.Fail("Invalid or expired token"))
			}

			if userSvc != nil {
				user, err := userSvc.Resolve(ctx, userID)
				if err != nil {
					return c.JSON(http.StatusUnauthorized, models.Fail("User account not found"))
				}
				c.Set("user", user)
				c.Set("user_role", user.Role)
			} else {
				c.Set("user_role", claims.Role)
			}

			c.Set("token", token)
			c.Set("user_id", userID)
			c.Set("user_email", claims.Email)

			return next(c)
		}
	}
}

// CurrentUserID extracts the authenticated user id from context
func CurrentUserID(c echo.Context) (primitive.ObjectID, bool) {
	id, ok := c.Get("user_id").(primitive.ObjectID)
	return id, ok
}

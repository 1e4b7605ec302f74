package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/studieren/recipe_back/gormtool"
	"github.com/studieren/recipe_back/logging"
	"github.com/studieren/recipe_back/metrics"
	"github.com/studieren/recipe_back/models"
)

const (
	userIDKey = "userID"
	userKey   = "user"
	claimsKey = "claims"
)

// Middleware requires a valid "Authorization: Bearer <token>" header.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			metrics.RecordAuthFailure("missing_token")
			gormtool.Fail(c, http.StatusUnauthorized, "authentication credentials were not provided")
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			metrics.RecordAuthFailure("malformed_header")
			gormtool.Fail(c, http.StatusUnauthorized, "authorization header must be in format: Bearer {token}")
			return
		}

		user, claims, err := s.Verify(c.Request.Context(), parts[1])
		if err != nil {
			reason, message := "invalid_token", "invalid token"
			switch {
			case errors.Is(err, ErrTokenRevoked):
				reason, message = "revoked_token", "token has been revoked"
			case errors.Is(err, ErrUserInactive), errors.Is(err, ErrInvalidCredentials):
				reason, message = "inactive_user", "user inactive or deleted"
			}
			metrics.RecordAuthFailure(reason)
			logging.Ctx(c.Request.Context()).Debug().Err(err).Str("reason", reason).Msg("authentication rejected")
			gormtool.Fail(c, http.StatusUnauthorized, message)
			return
		}

		c.Set(userIDKey, user.ID)
		c.Set(userKey, user)
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// GetUserID returns the authenticated user's id.
func GetUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// CurrentUser returns the user loaded by Middleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}

// CurrentClaims returns the claims of the request's token.
func CurrentClaims(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	cl, ok := v.(*Claims)
	return cl, ok
}

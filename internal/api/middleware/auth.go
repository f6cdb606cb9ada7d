package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/surprisebag/internal/apperr"
	"github.com/example/surprisebag/internal/auth"
	"github.com/example/surprisebag/internal/identity"
)

// ServiceKey is the gin context key holding the calling service name
const ServiceKey = "service"

var (
	errInvalidToken   = apperr.New(apperr.KindUnauthorized, "invalid_token", "invalid token")
	errSessionRevoked = apperr.New(apperr.KindUnauthorized, "session_revoked", "session is no longer active")
)

// SessionChecker reports whether a token id still has a live session.
type SessionChecker interface {
	Active(ctx context.Context, tokenID string) (bool, error)
}

// ExtractToken extracts JWT token from cookie or Authorization header
func ExtractToken(c *gin.Context) string {
	// Try cookie first (for browser)
	if cookie, err := c.Cookie("access_token"); err == nil && cookie != "" {
		return cookie
	}
	// Fall back to Authorization header (for API clients)
	if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

func bearer(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// Authenticate validates the access token and stores the caller in the
// request context. sessions may be nil, which skips the revocation check.
func Authenticate(jwtService *auth.JWTService, sessions SessionChecker, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ExtractToken(c)
		if tokenString == "" {
			AbortWithError(c, log, apperr.ErrUnauthorized)
			return
		}

		claims, err := jwtService.ValidateAccessToken(tokenString)
		if err != nil {
			AbortWithError(c, log, errInvalidToken)
			return
		}
		caller, err := claims.Caller()
		if err != nil {
			AbortWithError(c, log, errInvalidToken)
			return
		}

		if sessions != nil {
			active, err := sessions.Active(c.Request.Context(), claims.ID)
			if err != nil {
				AbortWithError(c, log, apperr.Collaborator("session cache", err))
				return
			}
			if !active {
				AbortWithError(c, log, errSessionRevoked)
				return
			}
		}

		c.Request = c.Request.WithContext(identity.WithCaller(c.Request.Context(), caller))
		c.Next()
	}
}

// RequireRoles checks if the caller has one of the given roles
func RequireRoles(log *zap.Logger, roles ...identity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := identity.FromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, log, apperr.ErrUnauthorized)
			return
		}
		for _, role := range roles {
			if caller.Role == role {
				c.Next()
				return
			}
		}
		AbortWithError(c, log, apperr.ErrForbidden)
	}
}

// RequireService admits requests carrying a valid service token.
func RequireService(jwtService *auth.JWTService, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c)
		if token == "" {
			AbortWithError(c, log, apperr.ErrUnauthorized)
			return
		}
		service, err := jwtService.ValidateServiceToken(token)
		if err != nil {
			AbortWithError(c, log, errInvalidToken)
			return
		}
		c.Set(ServiceKey, service)
		c.Next()
	}
}

package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/siwf/core"
	"github.com/layer-3/siwf/service"
)

const (
	principalKey = "principal"

	// retryAfterSeconds is sent with 503 responses when trusted keys could not be fetched
	retryAfterSeconds = "5"
)

// AuthMiddleware creates middleware that verifies bearer tokens and attaches
// the resolved principal to the request context
func AuthMiddleware(authService *service.AuthService, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortWithAuthError(c, logger, core.ErrMissingToken)
			return
		}

		principal, err := authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			abortWithAuthError(c, logger, err)
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// PrincipalFromContext returns the principal set by AuthMiddleware
func PrincipalFromContext(c *gin.Context) (*core.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*core.Principal)
	return p, ok && p != nil
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

func abortWithAuthError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, core.ErrMissingToken):
		c.Header("WWW-Authenticate", "Bearer")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing token"})
	case errors.Is(err, core.ErrServerMisconfigured):
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Server misconfigured"})
	case errors.Is(err, core.ErrKeyFetchFailed):
		c.Header("Retry-After", retryAfterSeconds)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Token verification unavailable"})
	case errors.Is(err, core.ErrResolverFailure):
		c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unknown identity"})
	case errors.Is(err, core.ErrInvalidToken):
		c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
	default:
		// Never fall through to the handler on an unclassified error.
		logger.Error("unexpected authentication error", "error", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
	}
}

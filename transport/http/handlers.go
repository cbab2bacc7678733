package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/siwf/core"
	"github.com/layer-3/siwf/service"
)

// ServiceName is reported by the info endpoint
const ServiceName = "siwf"

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	issuerService *service.IssuerService
	jwks          []byte
	endpoints     []string
}

// NewAuthHandlers creates new auth handlers. issuerService and jwks may be
// nil when the local issuer is disabled.
func NewAuthHandlers(issuerService *service.IssuerService, jwks []byte) *AuthHandlers {
	h := &AuthHandlers{
		issuerService: issuerService,
		jwks:          jwks,
		endpoints:     []string{"GET /", "GET /healthz", "GET /me"},
	}
	if issuerService != nil {
		h.endpoints = append(h.endpoints, "POST /auth/token", "GET /.well-known/jwks.json")
	}
	return h
}

// Info describes the service
func (h *AuthHandlers) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   ServiceName,
		"endpoints": h.endpoints,
	})
}

// Healthz reports liveness
func (h *AuthHandlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Me returns the authenticated principal
func (h *AuthHandlers) Me(c *gin.Context) {
	principal, ok := PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	c.JSON(http.StatusOK, principal)
}

// Token exchanges a signed SIWF message for a bearer token
func (h *AuthHandlers) Token(c *gin.Context) {
	var req struct {
		Message   string `json:"message" binding:"required"`
		Signature string `json:"signature" binding:"required"`
		Nonce     string `json:"nonce"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	token, err := h.issuerService.Exchange(c.Request.Context(), req.Message, req.Signature, req.Nonce)
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorMsg := "Failed to issue token"

		switch {
		case errors.Is(err, core.ErrInvalidSignature):
			statusCode = http.StatusUnauthorized
			errorMsg = "Invalid signature"
		case errors.Is(err, core.ErrInvalidMessage):
			statusCode = http.StatusUnauthorized
			errorMsg = "Invalid sign-in message"
		case errors.Is(err, core.ErrIdentityExtractionFailed):
			statusCode = http.StatusBadRequest
			errorMsg = "Sign-in message has no fid"
		case errors.Is(err, core.ErrResolverFailure):
			statusCode = http.StatusServiceUnavailable
			errorMsg = "Identity registry unavailable"
		case errors.Is(err, core.ErrServerMisconfigured):
			errorMsg = "Server misconfigured"
		}

		c.JSON(statusCode, gin.H{"error": errorMsg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"token_type": "Bearer",
		"expires_in": int(h.issuerService.TokenTTL().Seconds()),
	})
}

// JWKS serves the issuer's public keys
func (h *AuthHandlers) JWKS(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "application/json", h.jwks)
}

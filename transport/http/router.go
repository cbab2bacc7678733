package http

import (
	"log/slog"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/layer-3/siwf/service"
)

// Issuer enables the local token issuer routes
type Issuer struct {
	Service *service.IssuerService
	JWKS    []byte // Public key set document served at /.well-known/jwks.json
}

// SetupRouter sets up the Gin router. issuer may be nil.
func SetupRouter(authService *service.AuthService, issuer *Issuer, logger *slog.Logger) *gin.Engine {
	router := gin.Default()
	router.Use(cors.Default())

	var handlers *AuthHandlers
	if issuer != nil && issuer.Service != nil {
		handlers = NewAuthHandlers(issuer.Service, issuer.JWKS)
	} else {
		handlers = NewAuthHandlers(nil, nil)
	}

	router.GET("/", handlers.Info)
	router.GET("/healthz", handlers.Healthz)

	if issuer != nil && issuer.Service != nil {
		router.POST("/auth/token", handlers.Token)
		router.GET("/.well-known/jwks.json", handlers.JWKS)
	}

	// Protected routes
	protected := router.Group("/")
	protected.Use(AuthMiddleware(authService, logger))
	{
		protected.GET("/me", handlers.Me)
	}

	return router
}

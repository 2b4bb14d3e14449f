package http

import (
	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// The orchestrator middleware runs globally in try mode: it resolves an
// identity when credentials are present and otherwise lets the request
// through unauthenticated, so every handler performs its own 401 check.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	if cfg.Orchestrator != nil {
		router.Use(cfg.Orchestrator.Handler())
	}

	healthController := NewHealthController(cfg.Version)
	router.GET("/health", healthController.Health)

	usersController := NewUsersController(cfg.Users, cfg.Audit, cfg.Cache, cfg.Tokens, cfg.AuthConfig)

	api := router.Group("/api")
	{
		api.POST("/users/session", usersController.Login)
		api.GET("/users/unsession", usersController.Logout)
		api.POST("/users", usersController.Register)
		api.GET("/users/:username", usersController.GetUser)
		api.PUT("/users", usersController.Update)
		api.DELETE("/users", usersController.Delete)
	}

	return router
}

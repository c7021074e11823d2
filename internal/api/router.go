// Package api wires together all HTTP routes for the APIVault backend.
//
// Route grouping philosophy:
//   - /api/v1/auth/register and /api/v1/auth/login are public with a strict
//     rate limit; everything else requires a Bearer token.
//   - Workspace-scoped routes (/workspaces/:id/...) check the caller's role
//     with middleware before the handler runs. Routes addressed by resource
//     ID (/collections/:id, /requests/:id, ...) resolve the owning workspace
//     inside the handler, so a resource in a foreign workspace is
//     indistinguishable from a missing one.
//   - /requests/:id/execute carries its own rate limit on top of the general
//     one; outbound executions are the most expensive operation served.
package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/apivault/apivault/internal/api/accounts"
	"github.com/apivault/apivault/internal/api/collections"
	"github.com/apivault/apivault/internal/api/environments"
	"github.com/apivault/apivault/internal/api/requests"
	"github.com/apivault/apivault/internal/api/workspaces"
	"github.com/apivault/apivault/internal/config"
	"github.com/apivault/apivault/internal/crypto"
	"github.com/apivault/apivault/internal/db/repositories"
	"github.com/apivault/apivault/internal/middleware"
	"github.com/apivault/apivault/internal/rbac"
	"github.com/apivault/apivault/internal/runner"
)

// BackgroundServices holds resources that must be stopped during graceful
// shutdown. The caller (cmd/server) calls Shutdown after the HTTP server has
// drained in-flight requests.
type BackgroundServices struct {
	rateLimiters []*middleware.RateLimiter
}

// Shutdown stops all background goroutines.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices, error) {
	router := gin.New()

	envCipher, err := crypto.NewEnvCipherFromHex(cfg.Security.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize environment cipher: %w", err)
	}

	// Repositories. Environment and history repositories use sqlx.
	userRepo := repositories.NewUserRepository(db)
	roleRepo := repositories.NewRoleRepository(db)
	workspaceRepo := repositories.NewWorkspaceRepository(db)
	collectionRepo := repositories.NewCollectionRepository(db)
	requestRepo := repositories.NewRequestRepository(db)

	sqlxDB := sqlx.NewDb(db, "postgres")
	environmentRepo := repositories.NewEnvironmentRepository(sqlxDB, envCipher)
	historyRepo := repositories.NewHistoryRepository(sqlxDB)

	engine := runner.NewEngine(
		requestRepo,
		environmentRepo,
		historyRepo,
		cfg.Execution.Timeout,
		cfg.Execution.MaxResponseBytes,
	)

	// Handlers
	accountsHandler := accounts.NewHandler(userRepo, workspaceRepo, cfg)
	workspacesHandler := workspaces.NewHandler(workspaceRepo, userRepo, roleRepo)
	collectionsHandler := collections.NewHandler(collectionRepo, workspaceRepo)
	environmentsHandler := environments.NewHandler(environmentRepo, workspaceRepo)
	requestsHandler := requests.NewHandler(requestRepo, collectionRepo, workspaceRepo, historyRepo, engine)

	// Rate limiters
	generalRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
	authRateLimiter := middleware.NewRateLimiter(middleware.AuthRateLimitConfig())
	executeRateLimiter := middleware.NewRateLimiter(middleware.ExecuteRateLimitConfig())

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware())

	router.GET("/health", healthCheckHandler(db))
	router.GET("/version", versionHandler())

	apiV1 := router.Group("/api/v1")
	{
		// Public authentication endpoints (strictly rate limited)
		authGroup := apiV1.Group("/auth")
		authGroup.Use(middleware.RateLimitMiddleware(authRateLimiter))
		{
			authGroup.POST("/register", accountsHandler.Register)
			authGroup.POST("/login", accountsHandler.Login)
		}

		// Everything below requires a valid token
		authed := apiV1.Group("")
		authed.Use(middleware.AuthMiddleware(userRepo))
		authed.Use(middleware.RateLimitMiddleware(generalRateLimiter))
		{
			authed.GET("/auth/me", accountsHandler.Me)

			authed.PUT("/users/me", accountsHandler.UpdateProfile)
			authed.PUT("/users/me/password", accountsHandler.ChangePassword)
			authed.DELETE("/users/me", accountsHandler.DeleteAccount)
			authed.DELETE("/users/:id", accountsHandler.DeleteUser)

			authed.POST("/workspaces", workspacesHandler.Create)
			authed.GET("/workspaces", workspacesHandler.List)

			// Workspace-scoped routes: the middleware resolves the caller's
			// membership from the :id parameter and enforces the minimum role.
			wsViewer := authed.Group("/workspaces/:id")
			wsViewer.Use(middleware.RequireWorkspaceRole(workspaceRepo, "id", rbac.RoleViewer))
			{
				wsViewer.GET("", workspacesHandler.Get)
				wsViewer.GET("/members", workspacesHandler.ListMembers)
				wsViewer.GET("/collections", collectionsHandler.ListByWorkspace)
				wsViewer.GET("/environments", environmentsHandler.ListByWorkspace)
				wsViewer.GET("/history", requestsHandler.WorkspaceHistory)
				// Removal is viewer-tier so members can leave; the handler
				// requires the admin capability to remove anyone else.
				wsViewer.DELETE("/members/:userId", workspacesHandler.RemoveMember)
			}

			wsEditor := authed.Group("/workspaces/:id")
			wsEditor.Use(middleware.RequireWorkspaceRole(workspaceRepo, "id", rbac.RoleEditor))
			{
				wsEditor.POST("/collections", collectionsHandler.Create)
				wsEditor.POST("/environments", environmentsHandler.Create)
			}

			wsAdmin := authed.Group("/workspaces/:id")
			wsAdmin.Use(middleware.RequireWorkspaceRole(workspaceRepo, "id", rbac.RoleAdmin))
			{
				wsAdmin.PUT("", workspacesHandler.Update)
				wsAdmin.POST("/members", workspacesHandler.AddMember)
				wsAdmin.PUT("/members/:userId", workspacesHandler.UpdateMemberRole)
			}

			wsOwner := authed.Group("/workspaces/:id")
			wsOwner.Use(middleware.RequireWorkspaceRole(workspaceRepo, "id", rbac.RoleOwner))
			{
				wsOwner.DELETE("", workspacesHandler.Delete)
			}

			// Resource-addressed routes: role checks happen in the handlers
			// after resolving the owning workspace.
			authed.GET("/collections/:id", collectionsHandler.Get)
			authed.PUT("/collections/:id", collectionsHandler.Update)
			authed.DELETE("/collections/:id", collectionsHandler.Delete)
			authed.POST("/collections/:id/folders", collectionsHandler.CreateFolder)
			authed.GET("/collections/:id/folders", collectionsHandler.ListFolders)
			authed.POST("/collections/:id/requests", requestsHandler.Create)
			authed.GET("/collections/:id/requests", requestsHandler.ListByCollection)

			authed.PUT("/folders/:id", collectionsHandler.RenameFolder)
			authed.DELETE("/folders/:id", collectionsHandler.DeleteFolder)

			authed.GET("/environments/:id", environmentsHandler.Get)
			authed.PUT("/environments/:id", environmentsHandler.Update)
			authed.DELETE("/environments/:id", environmentsHandler.Delete)

			authed.GET("/requests/:id", requestsHandler.Get)
			authed.PUT("/requests/:id", requestsHandler.Update)
			authed.DELETE("/requests/:id", requestsHandler.Delete)
			authed.POST("/requests/:id/execute",
				middleware.RateLimitMiddleware(executeRateLimiter),
				requestsHandler.Execute)
			authed.GET("/requests/:id/history", requestsHandler.History)
			authed.DELETE("/requests/:id/history", requestsHandler.ClearRequestHistory)

			authed.GET("/history/:id", requestsHandler.GetHistoryRecord)
			authed.DELETE("/history/:id", requestsHandler.DeleteHistoryRecord)
		}
	}

	bg := &BackgroundServices{
		rateLimiters: []*middleware.RateLimiter{generalRateLimiter, authRateLimiter, executeRateLimiter},
	}

	return router, bg, nil
}

// healthCheckHandler reports service health including database connectivity
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware logs every request through slog. Output format (text or
// JSON) follows the handler installed by telemetry.SetupLogger.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		requestID, _ := c.Get(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", latency),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
		)
	}
}

package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/JacquelineMorrissette/kpi/internal/config"
	"github.com/JacquelineMorrissette/kpi/internal/handler"
	"github.com/JacquelineMorrissette/kpi/internal/middleware"
	"github.com/JacquelineMorrissette/kpi/internal/model"
	"github.com/JacquelineMorrissette/kpi/internal/response"
	"github.com/JacquelineMorrissette/kpi/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth       *handler.AuthHandler
	Asset      *handler.AssetHandler
	Permission *handler.PermissionHandler
	Submission *handler.SubmissionHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	assetService *service.AssetService,
	permService *service.PermissionService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group ────────────────────────────────────────────────
	auth := router.Group("/api/v2/auth")
	{
		auth.POST("/login", authLimiter.Middleware(), handlers.Auth.Login)
		auth.POST("/logout", middleware.RequireJWT(authService), handlers.Auth.Logout)
		auth.GET("/me", middleware.RequireJWT(authService), handlers.Auth.Me)
	}

	// ─── 2. Permission Catalog (static) ───────────────────────────────
	router.GET("/api/v2/permissions",
		middleware.CacheControl(3600),
		handlers.Permission.ListCatalog,
	)

	// ─── 3. Assets ────────────────────────────────────────────────────
	assets := router.Group("/api/v2/assets")
	assets.Use(middleware.RequireJWT(authService))
	{
		assets.GET("", handlers.Asset.ListAssets)
		assets.POST("", handlers.Asset.CreateAsset)
	}

	// ─── 4. Per-Asset Routes (asset load + permission gates) ──────────
	asset := router.Group("/api/v2/assets/:uid")
	asset.Use(
		middleware.RequireJWT(authService),
		middleware.LoadAsset(assetService),
	)
	{
		asset.GET("",
			middleware.RequireAssetPermission(permService, model.PermViewAsset),
			handlers.Asset.GetAsset,
		)

		// Assignment listing needs view access; mutating assignments
		// needs manage access.
		asset.GET("/permission-assignments",
			middleware.RequireAssetPermission(permService, model.PermViewAsset),
			handlers.Permission.ListAssignments,
		)
		asset.GET("/permission-assignments/:assignment_uid",
			middleware.RequireAssetPermission(permService, model.PermViewAsset),
			handlers.Permission.GetAssignment,
		)
		asset.POST("/permission-assignments",
			middleware.RequireAssetPermission(permService, model.PermManageAsset),
			handlers.Permission.CreateAssignment,
		)
		asset.POST("/permission-assignments/bulk",
			middleware.RequireAssetPermission(permService, model.PermManageAsset),
			handlers.Permission.BulkAssign,
		)
		asset.DELETE("/permission-assignments/:assignment_uid",
			middleware.RequireAssetPermission(permService, model.PermManageAsset),
			handlers.Permission.DeleteAssignment,
		)

		// Submission access is gated inside the service: full viewers see
		// everything, partial holders see matching records only.
		asset.GET("/data",
			middleware.RequireAssetPermission(permService,
				model.PermViewSubmissions, model.PermPartialSubmissions),
			handlers.Submission.ListSubmissions,
		)
		asset.POST("/data",
			middleware.RequireAssetPermission(permService, model.PermAddSubmissions),
			handlers.Submission.CreateSubmission,
		)
		asset.GET("/data/:submission_uid",
			middleware.RequireAssetPermission(permService,
				model.PermViewSubmissions, model.PermPartialSubmissions),
			handlers.Submission.GetSubmission,
		)
		asset.DELETE("/data/:submission_uid",
			middleware.RequireAssetPermission(permService,
				model.PermDeleteSubmissions, model.PermPartialSubmissions),
			handlers.Submission.DeleteSubmission,
		)
		asset.PATCH("/data/:submission_uid/validation-status",
			middleware.RequireAssetPermission(permService,
				model.PermValidateSubmissions, model.PermPartialSubmissions),
			handlers.Submission.SetValidationStatus,
		)
	}

	return router
}

package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/labquiz/internal/config"
	"github.com/stemsi/labquiz/internal/handler"
	"github.com/stemsi/labquiz/internal/middleware"
	"github.com/stemsi/labquiz/internal/response"
)

// imageMaxAge is the cache lifetime of question images.
const imageMaxAge = 365 * 24 * time.Hour

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	StudentPortal *handler.StudentPortalHandler
	Admin         *handler.AdminHandler
	Media         *handler.MediaHandler
	WS            *handler.WSHandler
	Monitor       *handler.MonitorHandler
	System        *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds background work owned by middlewares (rate limiter eviction).
func SetupRouter(
	ctx context.Context,
	auth middleware.TokenValidator,
	sessions middleware.SessionChecker,
	handlers *Handlers,
	cfg *config.Config,
) (*gin.Engine, error) {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())

	// Spreadsheets are already zip-compressed; event streams are flushed per event.
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		Quality:   middleware.DefaultBrotliConfig.Quality,
		MinLength: middleware.DefaultBrotliConfig.MinLength,
		Skipper: func(c *gin.Context) bool {
			return c.Query("format") == "xlsx" || strings.HasSuffix(c.FullPath(), "/monitor")
		},
	}))

	router.GET("/health", handlers.System.Health)
	router.GET("/images/:filename", middleware.CacheControl(imageMaxAge), handlers.Media.ServeImage)

	loginLimiter := middleware.NewRateLimiter(ctx, cfg.LoginRateLimit, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	authAPI := router.Group("/api/v1/auth", middleware.NoStore())
	{
		authAPI.POST("/student/login", loginLimiter.Middleware(), handlers.Auth.StudentLogin)
		authAPI.POST("/admin/login", loginLimiter.Middleware(), handlers.Auth.AdminLogin)
		authAPI.POST("/student/logout",
			middleware.RequireStudentJWT(auth),
			middleware.RejectStaleSession(sessions),
			handlers.Auth.StudentLogout,
		)
	}

	// ─── 2. Student Group (JWT + Live Session) ─────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.NoStore(),
		middleware.RequireStudentJWT(auth),
		middleware.RejectStaleSession(sessions),
	)
	{
		studentAPI.GET("/session", handlers.StudentPortal.GetSession)
		studentAPI.PUT("/session/answers", handlers.StudentPortal.SaveAnswer)
		studentAPI.POST("/session/submit", handlers.StudentPortal.Submit)
	}

	// ─── 3. WebSocket Group (token via ?token=) ────────────────────────
	wsAPI := router.Group("/ws/v1")
	wsAPI.Use(
		middleware.RequireStudentJWT(auth),
		middleware.RejectStaleSession(sessions),
	)
	{
		wsAPI.GET("/student/session/stream", handlers.WS.SessionStream)
	}

	// ─── 4. Admin Group ────────────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(
		middleware.NoStore(),
		middleware.RequireAdminJWT(auth),
	)
	{
		adminAPI.GET("/results", handlers.Admin.ListResults)
		adminAPI.GET("/responses", handlers.Admin.ListResponses)
		adminAPI.GET("/students/:student_id/responses", handlers.Admin.GetStudentResponses)

		adminAPI.GET("/retakes/:student_id", handlers.Admin.PreviewRetake)
		adminAPI.POST("/retakes", handlers.Admin.ConfirmRetake)

		adminAPI.GET("/marksheet", handlers.Admin.DownloadMarksheet)

		adminAPI.GET("/sessions", handlers.Admin.ListSessions)
		adminAPI.POST("/sessions/:student_id/reset", handlers.Admin.ResetSession)

		adminAPI.GET("/monitor", handlers.Monitor.MonitorSSE)
		adminAPI.GET("/system", handlers.System.Stats)
	}

	return router, nil
}

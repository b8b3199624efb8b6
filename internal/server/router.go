package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/quantumlife-hq/horizon-backend/internal/handlers"
	"github.com/quantumlife-hq/horizon-backend/internal/middleware"
)

type RouterConfig struct {
	ServiceName        string
	AuthHandler        *handlers.AuthHandler
	AuthMiddleware     *middleware.AuthMiddleware
	ObservationHandler *handlers.ObservationHandler
	DriftHandler       *handlers.DriftHandler
	SignalHandler      *handlers.SignalHandler
	WindowHandler      *handlers.WindowHandler
	SuggestionHandler  *handlers.SuggestionHandler
	BoundaryHandler    *handlers.BoundaryHandler
	AdaptationHandler  *handlers.AdaptationHandler
	SweepHandler       *handlers.SweepHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Refresh-Token"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/register", cfg.AuthHandler.Register)
	router.POST("/login", cfg.AuthHandler.Login)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Auth
	protected.POST("/refresh", cfg.AuthHandler.Refresh)
	protected.POST("/logout", cfg.AuthHandler.Logout)
	// Observations
	protected.POST("/observations", cfg.ObservationHandler.Record)
	protected.GET("/observations", cfg.ObservationHandler.Query)
	// Drift
	protected.POST("/drift/detect", cfg.DriftHandler.Detect)
	protected.GET("/drift", cfg.DriftHandler.List)
	protected.POST("/drift/:id/acknowledge", cfg.DriftHandler.Acknowledge)
	// Signals
	protected.POST("/signals/evaluate", cfg.SignalHandler.Evaluate)
	protected.GET("/signals", cfg.SignalHandler.List)
	protected.GET("/signals/:id", cfg.SignalHandler.Get)
	protected.POST("/signals/:id/status", cfg.SignalHandler.Transition)
	// Forecast windows
	protected.POST("/windows/generate", cfg.WindowHandler.Generate)
	protected.GET("/windows", cfg.WindowHandler.List)
	protected.GET("/windows/open", cfg.WindowHandler.ListOpen)
	protected.GET("/windows/:id", cfg.WindowHandler.Get)
	protected.POST("/windows/:id/status", cfg.WindowHandler.Transition)
	protected.POST("/windows/:id/invalidate", cfg.WindowHandler.Invalidate)
	// Suggestions
	protected.POST("/suggestions/generate", cfg.SuggestionHandler.Generate)
	protected.GET("/suggestions", cfg.SuggestionHandler.List)
	protected.GET("/suggestions/:id", cfg.SuggestionHandler.Get)
	protected.POST("/suggestions/:id/status", cfg.SuggestionHandler.Transition)
	// Boundaries & consent
	protected.POST("/boundaries/check", cfg.BoundaryHandler.Check)
	protected.GET("/boundaries/profile", cfg.BoundaryHandler.GetProfile)
	protected.PUT("/boundaries/profile", cfg.BoundaryHandler.UpdateProfile)
	protected.POST("/consents", cfg.BoundaryHandler.RecordConsent)
	protected.GET("/consents", cfg.BoundaryHandler.ListConsents)
	// Adaptation plans
	protected.POST("/plans", cfg.AdaptationHandler.Propose)
	protected.GET("/plans", cfg.AdaptationHandler.List)
	protected.GET("/plans/:id", cfg.AdaptationHandler.Get)
	protected.POST("/plans/:id/confirm", cfg.AdaptationHandler.Confirm)
	protected.POST("/plans/:id/reject", cfg.AdaptationHandler.Reject)
	protected.POST("/plans/:id/apply", cfg.AdaptationHandler.Apply)
	protected.POST("/plans/:id/rollback", cfg.AdaptationHandler.Rollback)
	protected.GET("/personalization", cfg.AdaptationHandler.Profile)
	// Maintenance
	protected.POST("/sweep", cfg.SweepHandler.Run)

	return router
}

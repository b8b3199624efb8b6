package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/quantumlife-hq/horizon-backend/internal/clients/redis"
	"github.com/quantumlife-hq/horizon-backend/internal/config"
	"github.com/quantumlife-hq/horizon-backend/internal/db"
	"github.com/quantumlife-hq/horizon-backend/internal/handlers"
	"github.com/quantumlife-hq/horizon-backend/internal/logger"
	"github.com/quantumlife-hq/horizon-backend/internal/middleware"
	"github.com/quantumlife-hq/horizon-backend/internal/observability"
	"github.com/quantumlife-hq/horizon-backend/internal/repos"
	"github.com/quantumlife-hq/horizon-backend/internal/server"
	"github.com/quantumlife-hq/horizon-backend/internal/services"
	"github.com/quantumlife-hq/horizon-backend/internal/utils"
)

const serviceName = "horizon-backend"

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)
	sweepIntervalSec := utils.GetEnvAsInt("SWEEP_INTERVAL_SECONDS", 300, log)
	suggestionCooldownDays := utils.GetEnvAsInt("SUGGESTION_COOLDOWN_DAYS", 14, log)
	snapshotRetentionDays := utils.GetEnvAsInt("SNAPSHOT_RETENTION_DAYS", 90, log)
	gatePolicyPath := utils.GetEnv("GATE_POLICY_PATH", "", log)

	// Tracing
	shutdownOTel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: serviceName,
		Environment: utils.GetEnv("ENVIRONMENT", "development", log),
		Version:     utils.GetEnv("SERVICE_VERSION", "dev", log),
	})
	if shutdownOTel != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownOTel(ctx)
		}()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Gate policy
	gatePolicy, err := config.LoadGatePolicy(gatePolicyPath)
	if err != nil {
		log.Error("Gate policy load failed", "error", err)
		os.Exit(1)
	}

	// Event bus
	var emitter, notifier services.EventEmitter
	bus, busErr := redis.NewBus(log)
	if busErr != nil {
		log.Warn("Redis bus unavailable, audit events will be logged locally", "error", busErr)
		emitter = services.NewNoopEmitter(log)
		notifier = emitter
	} else {
		defer bus.Close()
		emitter = services.NewRedisEmitter(log, bus, utils.GetEnv("AUDIT_CHANNEL", "horizon.audit", log))
		notifier = services.NewRedisEmitter(log, bus, utils.GetEnv("NOTIFY_CHANNEL", "horizon.notify", log))
	}

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	userTokenRepo := repos.NewUserTokenRepo(thePG, log)
	observationRepo := repos.NewObservationRepo(thePG, log)
	driftEventRepo := repos.NewDriftEventRepo(thePG, log)
	signalRepo := repos.NewSignalRepo(thePG, log)
	windowRepo := repos.NewWindowRepo(thePG, log)
	suggestionRepo := repos.NewSuggestionRepo(thePG, log)
	planRepo := repos.NewAdaptationPlanRepo(thePG, log)
	snapshotRepo := repos.NewSnapshotRepo(thePG, log)
	personalizationRepo := repos.NewPersonalizationRepo(thePG, log)
	boundaryProfileRepo := repos.NewBoundaryProfileRepo(thePG, log)
	consentRecordRepo := repos.NewConsentRecordRepo(thePG, log)

	// Services
	log.Info("Setting up Services from main...")
	authService := services.NewAuthService(thePG, log, userRepo, userTokenRepo, jwtSecretKey,
		time.Duration(accessTokenTTL)*time.Second, time.Duration(refreshTokenTTL)*time.Second)
	boundaryService := services.NewBoundaryService(thePG, log, gatePolicy, boundaryProfileRepo, consentRecordRepo, emitter)
	observationService := services.NewObservationService(thePG, log, observationRepo)
	driftService := services.NewDriftService(thePG, log, observationRepo, driftEventRepo)
	signalService := services.NewSignalService(thePG, log, boundaryService, driftEventRepo, signalRepo, emitter)
	forecastService := services.NewForecastService(thePG, log, boundaryService, signalRepo, windowRepo, notifier)
	suggestionService := services.NewSuggestionService(thePG, log, boundaryService, windowRepo, signalRepo, suggestionRepo, notifier, suggestionCooldownDays)
	adaptationService := services.NewAdaptationService(thePG, log, boundaryService, planRepo, snapshotRepo, personalizationRepo, emitter, snapshotRetentionDays)
	sweeperService := services.NewSweeperService(thePG, log, signalRepo, windowRepo, suggestionRepo, planRepo, snapshotRepo)
	sweeperService.Start(context.Background(), time.Duration(sweepIntervalSec)*time.Second)
	defer sweeperService.Stop()

	// Handlers
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	observationHandler := handlers.NewObservationHandler(observationService)
	driftHandler := handlers.NewDriftHandler(driftService)
	signalHandler := handlers.NewSignalHandler(signalService)
	windowHandler := handlers.NewWindowHandler(forecastService)
	suggestionHandler := handlers.NewSuggestionHandler(suggestionService)
	boundaryHandler := handlers.NewBoundaryHandler(boundaryService)
	adaptationHandler := handlers.NewAdaptationHandler(adaptationService)
	sweepHandler := handlers.NewSweepHandler(sweeperService)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		ServiceName:        serviceName,
		AuthHandler:        authHandler,
		AuthMiddleware:     authMiddleware,
		ObservationHandler: observationHandler,
		DriftHandler:       driftHandler,
		SignalHandler:      signalHandler,
		WindowHandler:      windowHandler,
		SuggestionHandler:  suggestionHandler,
		BoundaryHandler:    boundaryHandler,
		AdaptationHandler:  adaptationHandler,
		SweepHandler:       sweepHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}

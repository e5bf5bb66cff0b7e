package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-co-op/gocron/v2"
	_ "github.com/lib/pq"

	"github.com/courtside/cbbpoll/brackets"
	"github.com/courtside/cbbpoll/config"
	"github.com/courtside/cbbpoll/db"
	"github.com/courtside/cbbpoll/handlers"
	"github.com/courtside/cbbpoll/middleware"
	"github.com/courtside/cbbpoll/repositories"
	api "github.com/courtside/cbbpoll/routes"
	"github.com/courtside/cbbpoll/services"
	"github.com/courtside/cbbpoll/storage"
)

// pollSweepInterval controls how often closed polls get their results
// recomputed; pollSweepLookback bounds how far back the sweep reaches.
const (
	pollSweepInterval = 5 * time.Minute
	pollSweepLookback = 14 * 24 * time.Hour
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.Int("season", cfg.CurrentSeason))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Logo storage is optional; without it team logos are disabled.
	var uploader storage.FileUploader
	if cfg.R2AccountID != "" {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	}

	wsHub := brackets.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket hub started")

	userRepo := repositories.NewPostgresUserRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	conferenceRepo := repositories.NewPostgresConferenceRepository(dbConn)
	gameRepo := repositories.NewPostgresGameRepository(dbConn)
	resultRepo := repositories.NewPostgresResultRepository(dbConn)
	predictionRepo := repositories.NewPostgresPredictionRepository(dbConn)
	pollRepo := repositories.NewPostgresPollRepository(dbConn)
	ballotRepo := repositories.NewPostgresBallotRepository(dbConn)
	voterEventRepo := repositories.NewPostgresVoterEventRepository(dbConn)
	apiKeyRepo := repositories.NewPostgresAPIKeyRepository(dbConn)
	logger.Info("repositories initialized")

	voterDirectory := services.NewEventVoterDirectory(voterEventRepo)
	emailService := services.NewEmailService(cfg, logger)
	pmSender := services.NewNoopPMSender(logger)

	redditProvider := services.NewRedditProvider(services.RedditConfig{
		ClientID:     cfg.RedditClientID,
		ClientSecret: cfg.RedditClientSecret,
		RedirectURI:  cfg.RedditRedirectURI,
		UserAgent:    cfg.RedditUserAgent,
	})

	authService := services.NewAuthService(userRepo, apiKeyRepo, redditProvider, cfg.JWTSecretKey, logger)
	userService := services.NewUserService(userRepo, voterDirectory, authService, emailService, pmSender, logger)
	teamService := services.NewTeamService(teamRepo, uploader, logger)
	scheduleService := services.NewScheduleService(conferenceRepo, gameRepo, logger)
	bracketService := services.NewBracketService(dbConn, gameRepo, resultRepo, wsHub, logger)
	predictionService := services.NewPredictionService(dbConn, predictionRepo, gameRepo, resultRepo)
	pollService := services.NewPollService(dbConn, pollRepo, ballotRepo, cfg.BallotSize, logger)
	adminService := services.NewAdminService(dbConn, userRepo, ballotRepo, predictionRepo, apiKeyRepo, voterEventRepo, voterDirectory, logger)
	logger.Info("services initialized")

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		logger.Error("failed to create scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(pollSweepInterval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := pollService.SweepClosedPolls(ctx, pollSweepLookback); err != nil {
				logger.Error("poll sweep failed", slog.Any("error", err))
			}
		}),
	)
	if err != nil {
		logger.Error("failed to schedule poll sweep", slog.Any("error", err))
		os.Exit(1)
	}
	scheduler.Start()
	defer func() { _ = scheduler.Shutdown() }()
	logger.Info("poll results scheduler started", slog.Duration("interval", pollSweepInterval))

	authenticator := middleware.NewAuthenticator(cfg.JWTSecretKey, authService)
	submitLimiter := middleware.NewRateLimiter(1, 5)

	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	teamHandler := handlers.NewTeamHandler(teamService)
	bracketHandler := handlers.NewBracketHandler(scheduleService, bracketService, cfg.CurrentSeason)
	predictionHandler := handlers.NewPredictionHandler(predictionService, cfg.CurrentSeason)
	pollHandler := handlers.NewPollHandler(pollService, cfg.CurrentSeason)
	adminHandler := handlers.NewAdminHandler(adminService)
	wsHandler := handlers.NewWSHandler(wsHub, logger)
	logger.Info("HTTP handlers initialized")

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		authenticator,
		submitLimiter,
		authHandler,
		userHandler,
		teamHandler,
		bracketHandler,
		predictionHandler,
		pollHandler,
		adminHandler,
		wsHandler,
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/majicagent/photo-pipeline/internal/config"
	"github.com/majicagent/photo-pipeline/internal/database"
	"github.com/majicagent/photo-pipeline/internal/handlers"
	"github.com/majicagent/photo-pipeline/internal/logging"
	"github.com/majicagent/photo-pipeline/internal/middleware"
	"github.com/majicagent/photo-pipeline/internal/pipeline"
	"github.com/majicagent/photo-pipeline/internal/realtime"
	"github.com/majicagent/photo-pipeline/internal/storage"
	"github.com/majicagent/photo-pipeline/internal/store"
	"github.com/majicagent/photo-pipeline/internal/vision"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

func main() {
	// .env is optional outside local development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(cfg.Environment)

	migrator, err := database.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create migrator")
	}
	if err := migrator.Run(); err != nil {
		migrator.Close()
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	migrator.Close()

	db, err := store.NewClient(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	blobs, err := storage.NewClient(cfg.SupabaseURL, cfg.SupabasePublishableKey, cfg.SupabaseStorageBucket)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}

	events, err := realtime.NewClient(cfg.SupabaseURL, cfg.SupabasePublishableKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create realtime client")
	}

	visionClient, err := vision.NewClient(context.Background(), cfg.GeminiAPIKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create vision client")
	}
	defer visionClient.Close()

	runner := pipeline.NewRunner(db, db, blobs, visionClient, visionClient, events, pipeline.Policy{
		MinAttemptInterval: cfg.MinAttemptInterval,
		MaxAttempts:        cfg.MaxAttempts,
	})
	runner.Start(cfg.WorkerCount)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.RetrySweepSpec, runner.Sweep); err != nil {
		log.Fatal().Err(err).Str("spec", cfg.RetrySweepSpec).Msg("Failed to schedule retry sweep")
	}
	scheduler.Start()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	photosHandler := handlers.NewPhotosHandler(db, db, blobs, runner, events, cfg)

	router.GET("/health", handlers.HealthCheck)

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))
	{
		api.POST("/photos/upload", photosHandler.Upload)
		api.POST("/photos/process", photosHandler.Upload)
		api.GET("/photos", photosHandler.List)
		api.GET("/photos/stats", photosHandler.Stats)
		api.GET("/photos/addresses", photosHandler.Addresses)
		api.GET("/photos/rooms", photosHandler.Rooms)
		api.GET("/photos/credits", photosHandler.Credits)
		api.PUT("/photos/tags", photosHandler.UpdateTags)
		api.POST("/photos/reprocess/:photo_id", photosHandler.Reprocess)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("environment", cfg.Environment).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	scheduler.Stop()
	runner.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown")
	}
}

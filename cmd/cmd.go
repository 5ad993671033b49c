package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photo-library-backend/internal/config"
	"photo-library-backend/internal/handlers"
	"photo-library-backend/internal/middleware"
	"photo-library-backend/internal/previews"
	"photo-library-backend/internal/repository"
	"photo-library-backend/internal/repository/migrations"
	"photo-library-backend/internal/services"
	"photo-library-backend/internal/storage"
	"photo-library-backend/internal/timestamp"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const previewMaxSize = 400

func Run() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	// Run migrations
	migrateDB := stdlib.OpenDBFromPool(db)
	if err := migrations.Up(migrateDB); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	log.Info().Msg("Database schema up to date")

	// Initialize storage
	resolver, err := storage.NewResolver(cfg.Storage.PhotosPath, cfg.Storage.PreviewsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	photoRepo := repository.NewPhotoRepository(db)
	eventLogRepo := repository.NewEventLogRepository(db)
	hashRepo := repository.NewHashRepository(db)
	favoriteRepo := repository.NewFavoriteRepository(db)

	// Initialize services
	wsHub := services.NewWSHub()
	renderer := previews.NewGenerator(previewMaxSize)
	timestamps := timestamp.NewResolver(nil)

	userService := services.NewUserService(userRepo, cfg.Auth.JWTSecret)
	syncService := services.NewSyncService(photoRepo, eventLogRepo)
	photoService := services.NewPhotoService(photoRepo, hashRepo, eventLogRepo, resolver, renderer, wsHub)
	trashService := services.NewTrashService(
		photoRepo,
		eventLogRepo,
		resolver,
		wsHub,
		services.RealClock{},
		time.Duration(cfg.Maintenance.TrashRetentionDays)*24*time.Hour,
	)
	favoriteService := services.NewFavoriteService(favoriteRepo, photoRepo)
	scanService := services.NewScanService(photoRepo, userRepo, resolver, timestamps, cfg.Maintenance.Workers)
	hashService := services.NewHashService(hashRepo, resolver, cfg.Maintenance.Workers)
	thumbHashService := services.NewThumbHashService(photoRepo, resolver, previews.ThumbHashEncoder{}, cfg.Maintenance.Workers)

	scheduler := services.NewScheduler(services.SchedulerConfig{
		Scanner: scanService,
		Hasher:  hashService,
		Trash:   trashService,
		Thumbs:  thumbHashService,
		Photos:  photoRepo,
		Events:  eventLogRepo,
		Storage: resolver,

		Interval:           time.Duration(cfg.Maintenance.IntervalHours) * time.Hour,
		EventLogRowsToKeep: cfg.Maintenance.EventLogRowsToKeep,
		ScanNewFiles:       cfg.Maintenance.ScanNewFiles,
	})
	scheduler.Start()
	defer scheduler.Stop()

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	syncHandler := handlers.NewSyncHandler(syncService)
	photoHandler := handlers.NewPhotoHandler(photoService)
	trashHandler := handlers.NewTrashHandler(trashService)
	favoriteHandler := handlers.NewFavoriteHandler(favoriteService)
	wsHandler := handlers.NewWebSocketHandler(wsHub, userService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", userHandler.Create)
		r.Post("/users/login", userHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(userService))

			r.Get("/sync/full", syncHandler.FullSnapshot)
			r.Get("/sync/changes", syncHandler.Changes)

			r.Get("/photos", photoHandler.List)
			r.Post("/photos/{name}", photoHandler.Upload)
			r.Get("/photos/{id}/file", photoHandler.Download)
			r.Get("/photos/{id}/preview", photoHandler.Preview)
			r.Delete("/photos/{id}", photoHandler.Delete)
			r.Post("/photos/move", photoHandler.Move)
			r.Post("/photos/rename-folder", photoHandler.RenameFolder)
			r.Get("/photos/duplicates", photoHandler.Duplicates)

			r.Post("/photos/{id}/trash", trashHandler.Trash)
			r.Post("/photos/{id}/restore", trashHandler.Restore)
			r.Get("/trash", trashHandler.List)

			r.Get("/favorites", favoriteHandler.List)
			r.Post("/favorites/{id}", favoriteHandler.Add)
			r.Delete("/favorites/{id}", favoriteHandler.Remove)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleConnection)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/postflowhq/autopost/configs"
	"github.com/postflowhq/autopost/internal/api/handlers"
	"github.com/postflowhq/autopost/internal/api/middleware"
	"github.com/postflowhq/autopost/internal/credentials"
	"github.com/postflowhq/autopost/internal/dispatcher"
	job "github.com/postflowhq/autopost/internal/jobs"
	"github.com/postflowhq/autopost/internal/publisher"
	"github.com/postflowhq/autopost/internal/queue"
	"github.com/postflowhq/autopost/internal/repository"
	"github.com/postflowhq/autopost/internal/service"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	postRepo := repository.NewPostRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	postMediaRepo := repository.NewPostMediaRepository(db)
	mediaAssetRepo := repository.NewMediaAssetRepository(db)
	postingHistoryRepo := repository.NewPostingHistoryRepository(db)

	credProvider := credentials.NewProvider(*cfg, socialAccountRepo)
	registry := publisher.NewRegistry(
		publisher.NewTiktokPublisher(*cfg),
		publisher.NewInstagramPublisher(*cfg),
		publisher.NewYoutubePublisher(*cfg),
	)

	dispatch := dispatcher.New(dispatcher.Config{
		BatchSize:      cfg.Dispatcher.BatchSize,
		MaxAttempts:    cfg.Dispatcher.MaxAttempts,
		WorkerCount:    cfg.Dispatcher.WorkerCount,
		PublishTimeout: cfg.Dispatcher.PublishTimeout,
		ClaimTTL:       cfg.Dispatcher.ClaimTTL,
		BackoffBase:    cfg.Dispatcher.BackoffBase,
		BackoffCeiling: cfg.Dispatcher.BackoffCeiling,
	}, postRepo, mediaAssetRepo, postingHistoryRepo, credProvider, registry)

	r2Service := service.NewR2Service(*cfg)
	postService := service.NewPostService(db, postRepo, socialAccountRepo, mediaAssetRepo, postMediaRepo, postingHistoryRepo, *r2Service)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	dispatchHandler := handlers.NewDispatchHandler(dispatch, *cfg)
	app.Post("/internal/dispatch", dispatchHandler.RunCycle)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(postService, client)
	api.Post("/posts/create", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/history", post.PostHistory)
	api.Post("/posts/cancel", post.CancelPost)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(socialAccountRepo, credProvider)
	queueWorker := queue.NewWorker(dispatch)

	c := cron.New()
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.AddFunc(cfg.Dispatcher.SweepInterval, func() {
		if _, err := dispatch.RunCycle(context.Background(), time.Now()); err != nil {
			log.Printf("Dispatch cycle failed: %v", err)
		}
	})
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: cfg.Dispatcher.WorkerCount,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypePublishPost, queueWorker.HandlePublishPostTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"proctorly/internal/app"
	"proctorly/internal/config"
	"proctorly/internal/service"
	"proctorly/internal/transport/rest"
	"proctorly/internal/transport/ws"
)

func main() {
	log.Println("started")
	ctx := context.Background()

	// Load .env if present (local dev convenience)
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env")
	}

	cfg := config.Load()

	// Log AI model settings
	aiConfig := config.DefaultAIConfig()
	log.Printf("AI Config:")
	log.Printf("  Suggest:       %s", aiConfig.Models.Suggest)
	log.Printf("  Batch Suggest: %s", aiConfig.Models.BatchSuggest)
	if aiConfig.IsEnabled() {
		log.Println("  API Key:       configured ✓")
	} else {
		log.Println("  API Key:       NOT SET (using mock suggestions)")
	}

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(ctx)

	// Ping MongoDB
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB:", err)
	}
	log.Println("Connected to MongoDB")

	// Redis connection
	redisAddr := cfg.RedisAddr
	// Remove redis:// prefix if present
	if len(redisAddr) > 8 && redisAddr[:8] == "redis://" {
		redisAddr = redisAddr[8:]
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	defer rdb.Close()

	// Ping Redis
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatal("Failed to ping Redis:", err)
	}
	log.Println("Connected to Redis")

	// Initialize WebSocket hub
	wsHub := ws.NewHub()
	log.Println("WebSocket hub started")

	// Initialize repositories and caches
	a := app.New(mongoClient, rdb)

	// Initialize services
	authSvc := service.NewAuthService(cfg)
	testSvc := service.NewTestService(a.TestRepo, a.TestCache)
	suggestSvc := service.NewSuggestService()
	attemptSvc := service.NewAttemptService(
		a.TestRepo, a.AttemptRepo, a.AnswerRepo, a.EventRepo,
		a.TestCache, a.AttemptCache, a.RiskCache, a.Markers,
	)
	gradingSvc := service.NewGradingService(attemptSvc, a.AnswerRepo, a.AttemptRepo, suggestSvc)

	// Inject broadcaster (wsHub implements service.Broadcaster)
	attemptSvc.SetBroadcaster(wsHub)
	gradingSvc.SetBroadcaster(wsHub)

	// Create router with container
	container := &rest.Container{
		AuthService:    authSvc,
		TestService:    testSvc,
		AttemptService: attemptSvc,
		GradingService: gradingSvc,
		UserRepo:       a.UserRepo,
		WSHub:          wsHub,
	}

	router := rest.NewRouter(container)

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		log.Printf("Staff auth: username=%s", cfg.StaffUsername)
		log.Println("Endpoints:")
		log.Println("  POST /v1/auth/login")
		log.Println("  POST/GET /v1/tests")
		log.Println("  POST /v1/tests/{testId}/attempts")
		log.Println("  POST /v1/attempts/{attemptId}/events")
		log.Println("  PUT  /v1/attempts/{attemptId}/answers")
		log.Println("  POST /v1/attempts/{attemptId}/submit")
		log.Println("  POST /v1/attempts/{attemptId}/grades")
		log.Println("  WS  /v1/ws/tests/{testId}/monitor")
		log.Println("  WS  /v1/ws/attempts/{attemptId}/live")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe:", err)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

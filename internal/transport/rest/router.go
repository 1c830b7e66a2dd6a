package rest

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"proctorly/internal/repository"
	"proctorly/internal/service"
	"proctorly/internal/transport/rest/handler"
	"proctorly/internal/transport/rest/middleware"
	"proctorly/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService    *service.AuthService
	TestService    *service.TestService
	AttemptService *service.AttemptService
	GradingService *service.GradingService
	UserRepo       repository.UserRepo
	WSHub          *ws.Hub
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService, c.UserRepo)
	testHandler := handler.NewTestHandler(c.TestService)
	attemptHandler := handler.NewAttemptHandler(c.AttemptService)
	gradingHandler := handler.NewGradingHandler(c.GradingService)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.AttemptService)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware)

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	// WebSocket routes (public with token in query param)
	v1.HandleFunc("/ws/tests/{testId}/monitor", wsHandler.MonitorWS).Methods("GET")
	v1.HandleFunc("/ws/attempts/{attemptId}/live", wsHandler.CandidateWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Staff routes (require staff auth)
	staffRoutes := v1.NewRoute().Subrouter()
	staffRoutes.Use(authMW.RequireStaff)

	staffRoutes.HandleFunc("/auth/candidate-token", authHandler.CandidateToken).Methods("POST", "OPTIONS")
	staffRoutes.HandleFunc("/tests", testHandler.Create).Methods("POST", "OPTIONS")
	staffRoutes.HandleFunc("/tests", testHandler.List).Methods("GET", "OPTIONS")
	staffRoutes.HandleFunc("/tests/{testId}", testHandler.Get).Methods("GET", "OPTIONS")
	staffRoutes.HandleFunc("/tests/{testId}", testHandler.Update).Methods("PUT", "OPTIONS")
	staffRoutes.HandleFunc("/tests/{testId}", testHandler.Delete).Methods("DELETE", "OPTIONS")
	staffRoutes.HandleFunc("/tests/{testId}/attempts", attemptHandler.List).Methods("GET", "OPTIONS")
	staffRoutes.HandleFunc("/tests/{testId}/risk", attemptHandler.TopRisk).Methods("GET", "OPTIONS")
	staffRoutes.HandleFunc("/attempts/{attemptId}/events", attemptHandler.Events).Methods("GET", "OPTIONS")
	staffRoutes.HandleFunc("/attempts/{attemptId}/status", attemptHandler.Status).Methods("GET", "OPTIONS")
	staffRoutes.HandleFunc("/attempts/{attemptId}/invalidate", attemptHandler.Invalidate).Methods("POST", "OPTIONS")

	// Grading routes (staff only)
	staffRoutes.HandleFunc("/attempts/{attemptId}/answers", gradingHandler.ListAnswers).Methods("GET", "OPTIONS")
	staffRoutes.HandleFunc("/attempts/{attemptId}/suggestions", gradingHandler.Suggest).Methods("POST", "OPTIONS")
	staffRoutes.HandleFunc("/attempts/{attemptId}/grades", gradingHandler.SaveGrades).Methods("POST", "OPTIONS")
	staffRoutes.HandleFunc("/attempts/{attemptId}/score", gradingHandler.Breakdown).Methods("GET", "OPTIONS")

	// Candidate routes (require candidate auth)
	candidateRoutes := v1.NewRoute().Subrouter()
	candidateRoutes.Use(authMW.RequireCandidate)

	candidateRoutes.HandleFunc("/tests/{testId}/attempts", attemptHandler.Start).Methods("POST", "OPTIONS")
	candidateRoutes.HandleFunc("/attempts/{attemptId}/events", attemptHandler.RecordEvent).Methods("POST", "OPTIONS")
	candidateRoutes.HandleFunc("/attempts/{attemptId}/counters", attemptHandler.PushCounters).Methods("PUT", "OPTIONS")
	candidateRoutes.HandleFunc("/attempts/{attemptId}/answers", attemptHandler.UpsertAnswer).Methods("PUT", "OPTIONS")
	candidateRoutes.HandleFunc("/attempts/{attemptId}/submit", attemptHandler.Submit).Methods("POST", "OPTIONS")
	candidateRoutes.HandleFunc("/attempts/{attemptId}/time", attemptHandler.Remaining).Methods("GET", "OPTIONS")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		allowedMethods := os.Getenv("CORS_ALLOWED_METHODS")
		if allowedMethods == "" {
			allowedMethods = "GET, POST, PUT, DELETE, OPTIONS"
		}

		allowedHeaders := os.Getenv("CORS_ALLOWED_HEADERS")
		if allowedHeaders == "" {
			allowedHeaders = "Content-Type, Authorization"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
		w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

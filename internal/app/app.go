package app

import (
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"proctorly/internal/cache"
	"proctorly/internal/repository"
)

// App bundles the storage-layer dependencies shared by the binaries
type App struct {
	TestRepo    repository.TestRepo
	AttemptRepo repository.AttemptRepo
	AnswerRepo  repository.AnswerRepo
	EventRepo   repository.ProctorEventRepo
	UserRepo    repository.UserRepo

	TestCache    cache.TestCache
	AttemptCache cache.AttemptCache
	RiskCache    cache.RiskCache
	Markers      *cache.MarkerCache
}

// New wires the repositories and caches over live connections
func New(mongoClient *mongo.Client, rdb *redis.Client) *App {
	return &App{
		TestRepo:    repository.NewTestRepo(mongoClient),
		AttemptRepo: repository.NewAttemptRepo(mongoClient),
		AnswerRepo:  repository.NewAnswerRepo(mongoClient),
		EventRepo:   repository.NewProctorEventRepo(mongoClient),
		UserRepo:    repository.NewUserRepo(mongoClient),

		TestCache:    cache.NewTestCache(rdb),
		AttemptCache: cache.NewAttemptCache(rdb),
		RiskCache:    cache.NewRiskCache(rdb),
		Markers:      cache.NewMarkerCache(rdb),
	}
}

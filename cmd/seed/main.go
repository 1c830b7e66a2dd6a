package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"proctorly/internal/model"
	"proctorly/internal/repository"
)

func main() {
	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(ctx)

	testRepo := repository.NewTestRepo(client)

	passwordSum := sha256.Sum256([]byte("letmein"))
	quorumAnswer := 3.0

	test := &model.Test{
		Title:             "Distributed Systems Midterm",
		DurationSeconds:   45 * 60,
		OpensAt:           time.Now(),
		ClosesAt:          time.Now().Add(7 * 24 * time.Hour),
		MaxAttempts:       2,
		RequireFullscreen: true,
		AllowMultiSession: false,
		PasswordHash:      hex.EncodeToString(passwordSum[:]),
		Questions: []model.Question{
			{
				ID:     "q1",
				Type:   model.QuestionTypeSingleSelect,
				Prompt: "Which consistency model guarantees that reads reflect all prior writes from the same session?",
				Points: 2,
				Options: []model.Option{
					{ID: "a", Text: "Eventual consistency"},
					{ID: "b", Text: "Read-your-writes consistency", Correct: true},
					{ID: "c", Text: "Weak consistency"},
				},
			},
			{
				ID:     "q2",
				Type:   model.QuestionTypeMultiSelect,
				Prompt: "Which of the following are safety properties of a consensus protocol?",
				Points: 3,
				Options: []model.Option{
					{ID: "a", Text: "Agreement", Correct: true},
					{ID: "b", Text: "Validity", Correct: true},
					{ID: "c", Text: "Termination"},
					{ID: "d", Text: "Low latency"},
				},
			},
			{
				ID:               "q3",
				Type:             model.QuestionTypeNumeric,
				Prompt:           "A cluster of 5 replicas uses majority quorums. What is the minimum read quorum size that guarantees intersection with a write quorum of 3?",
				Points:           2,
				CorrectNumeric:   &quorumAnswer,
				NumericTolerance: 0,
			},
			{
				ID:            "q4",
				Type:          model.QuestionTypeBlankFill,
				Prompt:        "The two phases of two-phase commit are ____ and ____.",
				Points:        2,
				CorrectBlanks: []string{"prepare", "commit"},
			},
			{
				ID:     "q5",
				Type:   model.QuestionTypeFreeResponse,
				Prompt: "Explain why exactly-once delivery is impossible over a lossy network and what systems do instead.",
				Rubric: "Full credit requires the impossibility argument (ack loss is indistinguishable from message loss) and at least one mitigation (idempotency keys or deduplication).",
				Points: 5,
			},
		},
	}

	if err := testRepo.Create(ctx, test); err != nil {
		log.Fatalf("Failed to insert test: %v", err)
	}

	fmt.Printf("Successfully created test '%s' (id %s, password 'letmein')\n", test.Title, test.ID)
}

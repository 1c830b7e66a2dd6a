package repository

import (
	"context"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"proctorly/internal/model"
)

type AttemptRepo interface {
	Create(ctx context.Context, attempt *model.Attempt) error
	GetByID(ctx context.Context, id string) (*model.Attempt, error)
	// GetInProgress returns the user's open attempt at a test, if any.
	GetInProgress(ctx context.Context, testID, userID string) (*model.Attempt, error)
	CountByTestAndUser(ctx context.Context, testID, userID string) (int64, error)
	ListByTest(ctx context.Context, testID string) ([]*model.Attempt, error)
	Update(ctx context.Context, attempt *model.Attempt) error
}

type attemptRepo struct {
	collection *mongo.Collection
}

func NewAttemptRepo(client *mongo.Client) AttemptRepo {
	db := client.Database("proctorly")
	return &attemptRepo{
		collection: db.Collection("attempts"),
	}
}

func (r *attemptRepo) Create(ctx context.Context, attempt *model.Attempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}

	_, err := r.collection.InsertOne(ctx, attempt)
	return err
}

func (r *attemptRepo) GetByID(ctx context.Context, id string) (*model.Attempt, error) {
	var attempt model.Attempt
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&attempt)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil // Attempt not found
		}
		return nil, err
	}

	return &attempt, nil
}

func (r *attemptRepo) GetInProgress(ctx context.Context, testID, userID string) (*model.Attempt, error) {
	var attempt model.Attempt
	err := r.collection.FindOne(ctx, bson.M{
		"testId": testID,
		"userId": userID,
		"status": model.AttemptInProgress,
	}).Decode(&attempt)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}

	return &attempt, nil
}

func (r *attemptRepo) CountByTestAndUser(ctx context.Context, testID, userID string) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{
		"testId": testID,
		"userId": userID,
		// Invalidated attempts do not count against the ceiling
		"status": bson.M{"$ne": model.AttemptInvalidated},
	})
}

func (r *attemptRepo) ListByTest(ctx context.Context, testID string) ([]*model.Attempt, error) {
	opts := options.Find().SetSort(bson.M{"startedAt": -1})
	cursor, err := r.collection.Find(ctx, bson.M{"testId": testID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var attempts []*model.Attempt
	if err = cursor.All(ctx, &attempts); err != nil {
		return nil, err
	}

	return attempts, nil
}

func (r *attemptRepo) Update(ctx context.Context, attempt *model.Attempt) error {
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": attempt.ID}, attempt)
	return err
}

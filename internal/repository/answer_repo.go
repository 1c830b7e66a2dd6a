package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"proctorly/internal/model"
)

type AnswerRepo interface {
	// Upsert replaces the response payload for (attempt, question),
	// creating the answer document on first save.
	Upsert(ctx context.Context, attemptID string, req model.UpsertAnswerRequest) (*model.Answer, error)
	GetByID(ctx context.Context, id string) (*model.Answer, error)
	ListByAttempt(ctx context.Context, attemptID string) ([]*model.Answer, error)
	Update(ctx context.Context, answer *model.Answer) error
}

type answerRepo struct {
	collection *mongo.Collection
}

func NewAnswerRepo(client *mongo.Client) AnswerRepo {
	db := client.Database("proctorly")
	return &answerRepo{
		collection: db.Collection("answers"),
	}
}

func (r *answerRepo) Upsert(ctx context.Context, attemptID string, req model.UpsertAnswerRequest) (*model.Answer, error) {
	filter := bson.M{"attemptId": attemptID, "questionId": req.QuestionID}
	update := bson.M{
		"$set": bson.M{
			"answerText":        req.AnswerText,
			"selectedOptionIds": req.SelectedOptionIDs,
			"numericAnswer":     req.NumericAnswer,
			"blankAnswers":      req.BlankAnswers,
			"markedForReview":   req.MarkedForReview,
			"updatedAt":         time.Now(),
		},
		"$setOnInsert": bson.M{
			"_id":        uuid.NewString(),
			"attemptId":  attemptID,
			"questionId": req.QuestionID,
		},
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var answer model.Answer
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&answer); err != nil {
		return nil, err
	}

	return &answer, nil
}

func (r *answerRepo) GetByID(ctx context.Context, id string) (*model.Answer, error) {
	var answer model.Answer
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&answer)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil // Answer not found
		}
		return nil, err
	}

	return &answer, nil
}

func (r *answerRepo) ListByAttempt(ctx context.Context, attemptID string) ([]*model.Answer, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"attemptId": attemptID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var answers []*model.Answer
	if err = cursor.All(ctx, &answers); err != nil {
		return nil, err
	}

	return answers, nil
}

func (r *answerRepo) Update(ctx context.Context, answer *model.Answer) error {
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": answer.ID}, answer)
	return err
}

package repository

import (
	"context"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"proctorly/internal/model"
)

// ProctorEventRepo is append-only: events are never updated or deleted,
// so the integrity record of an attempt cannot be rewritten.
type ProctorEventRepo interface {
	Append(ctx context.Context, event *model.ProctorEvent) error
	ListByAttempt(ctx context.Context, attemptID string) ([]*model.ProctorEvent, error)
	CountsByKind(ctx context.Context, attemptID string) (map[model.EventKind]int, error)
}

type proctorEventRepo struct {
	collection *mongo.Collection
}

func NewProctorEventRepo(client *mongo.Client) ProctorEventRepo {
	db := client.Database("proctorly")
	return &proctorEventRepo{
		collection: db.Collection("proctor_events"),
	}
}

func (r *proctorEventRepo) Append(ctx context.Context, event *model.ProctorEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	_, err := r.collection.InsertOne(ctx, event)
	return err
}

func (r *proctorEventRepo) ListByAttempt(ctx context.Context, attemptID string) ([]*model.ProctorEvent, error) {
	opts := options.Find().SetSort(bson.M{"at": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"attemptId": attemptID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []*model.ProctorEvent
	if err = cursor.All(ctx, &events); err != nil {
		return nil, err
	}

	return events, nil
}

func (r *proctorEventRepo) CountsByKind(ctx context.Context, attemptID string) (map[model.EventKind]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"attemptId": attemptID}}},
		{{Key: "$group", Value: bson.M{"_id": "$kind", "count": bson.M{"$sum": 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Kind  model.EventKind `bson:"_id"`
		Count int             `bson:"count"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	counts := make(map[model.EventKind]int, len(rows))
	for _, row := range rows {
		counts[row.Kind] = row.Count
	}

	return counts, nil
}

package repository

import (
	"context"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"proctorly/internal/model"
)

type TestRepo interface {
	Create(ctx context.Context, test *model.Test) error
	GetByID(ctx context.Context, id string) (*model.Test, error)
	List(ctx context.Context) ([]*model.Test, error)
	Update(ctx context.Context, test *model.Test) error
	Delete(ctx context.Context, id string) error
}

type testRepo struct {
	collection *mongo.Collection
}

func NewTestRepo(client *mongo.Client) TestRepo {
	db := client.Database("proctorly")
	return &testRepo{
		collection: db.Collection("tests"),
	}
}

func (r *testRepo) Create(ctx context.Context, test *model.Test) error {
	if test.ID == "" {
		test.ID = uuid.NewString()
	}
	for i := range test.Questions {
		if test.Questions[i].ID == "" {
			test.Questions[i].ID = uuid.NewString()
		}
	}

	_, err := r.collection.InsertOne(ctx, test)
	return err
}

func (r *testRepo) GetByID(ctx context.Context, id string) (*model.Test, error) {
	var test model.Test
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&test)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil // Test not found
		}
		return nil, err
	}

	return &test, nil
}

func (r *testRepo) List(ctx context.Context) ([]*model.Test, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tests []*model.Test
	if err = cursor.All(ctx, &tests); err != nil {
		return nil, err
	}

	return tests, nil
}

func (r *testRepo) Update(ctx context.Context, test *model.Test) error {
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": test.ID}, test)
	return err
}

func (r *testRepo) Delete(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"proctorly/internal/cache"
	"proctorly/internal/model"
	"proctorly/internal/repository"
)

var ErrInvalidTest = errors.New("invalid test configuration")

// TestService handles test configuration CRUD for staff
type TestService struct {
	testRepo  repository.TestRepo
	testCache cache.TestCache
}

// NewTestService creates a new test service
func NewTestService(testRepo repository.TestRepo, testCache cache.TestCache) *TestService {
	return &TestService{
		testRepo:  testRepo,
		testCache: testCache,
	}
}

// CreateTest validates and stores a new test. password, when non-empty,
// is hashed before storage; the plaintext is never persisted.
func (s *TestService) CreateTest(ctx context.Context, test *model.Test, password string) (*model.Test, error) {
	if err := validateTest(test); err != nil {
		return nil, err
	}
	if password != "" {
		test.PasswordHash = hashPassword(password)
	}

	if err := s.testRepo.Create(ctx, test); err != nil {
		return nil, fmt.Errorf("failed to create test: %w", err)
	}
	return test, nil
}

// GetTest loads a test by id
func (s *TestService) GetTest(ctx context.Context, id string) (*model.Test, error) {
	test, err := s.testRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get test: %w", err)
	}
	if test == nil {
		return nil, ErrTestNotFound
	}
	return test, nil
}

// ListTests returns all tests
func (s *TestService) ListTests(ctx context.Context) ([]*model.Test, error) {
	return s.testRepo.List(ctx)
}

// UpdateTest replaces a test configuration and drops the stale cache entry
func (s *TestService) UpdateTest(ctx context.Context, test *model.Test) (*model.Test, error) {
	if err := validateTest(test); err != nil {
		return nil, err
	}
	if err := s.testRepo.Update(ctx, test); err != nil {
		return nil, fmt.Errorf("failed to update test: %w", err)
	}
	if err := s.testCache.Delete(ctx, test.ID); err != nil {
		log.Printf("test cache invalidation failed for %s: %v", test.ID, err)
	}
	return test, nil
}

// DeleteTest removes a test
func (s *TestService) DeleteTest(ctx context.Context, id string) error {
	if err := s.testRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete test: %w", err)
	}
	if err := s.testCache.Delete(ctx, id); err != nil {
		log.Printf("test cache invalidation failed for %s: %v", id, err)
	}
	return nil
}

func validateTest(test *model.Test) error {
	if test.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidTest)
	}
	if test.DurationSeconds <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidTest)
	}
	if len(test.Questions) == 0 {
		return fmt.Errorf("%w: at least one question is required", ErrInvalidTest)
	}
	if !test.ClosesAt.After(test.OpensAt) {
		return fmt.Errorf("%w: close time must follow open time", ErrInvalidTest)
	}
	for _, q := range test.Questions {
		if q.Points < 0 {
			return fmt.Errorf("%w: question %s has negative points", ErrInvalidTest, q.ID)
		}
		if q.Prompt == "" {
			return fmt.Errorf("%w: question %s has no prompt", ErrInvalidTest, q.ID)
		}
	}
	return nil
}

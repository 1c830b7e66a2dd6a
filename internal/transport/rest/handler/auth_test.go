package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proctorly/internal/config"
	"proctorly/internal/model"
	"proctorly/internal/service"
)

type fakeUserRepo struct {
	users   map[string]*model.User
	creates int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	r.creates++
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	return r.users[id], nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *model.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id string) error {
	delete(r.users, id)
	return nil
}

func issueCandidateToken(t *testing.T, h *AuthHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/v1/auth/candidate-token", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.CandidateToken(rr, req)
	return rr
}

func TestCandidateTokenCreatesUserOnFirstIssuance(t *testing.T) {
	authSvc := service.NewAuthService(&config.Config{JWTSecret: "test-secret"})
	users := newFakeUserRepo()
	h := NewAuthHandler(authSvc, users)

	rr := issueCandidateToken(t, h, `{"testId":"test-1","userId":"user-1","name":"Ada","email":"ada@example.com"}`)
	require.Equal(t, 200, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "user-1", body["userId"])

	claims, err := authSvc.ValidateCandidateToken(body["token"])
	require.NoError(t, err)
	assert.Equal(t, "test-1", claims.TestID)
	assert.Equal(t, "user-1", claims.UserID)

	require.NotNil(t, users.users["user-1"])
	assert.Equal(t, "Ada", users.users["user-1"].Name)
	assert.Equal(t, "ada@example.com", users.users["user-1"].Email)
}

func TestCandidateTokenReusesExistingUser(t *testing.T) {
	authSvc := service.NewAuthService(&config.Config{JWTSecret: "test-secret"})
	users := newFakeUserRepo()
	h := NewAuthHandler(authSvc, users)

	rr := issueCandidateToken(t, h, `{"testId":"test-1","userId":"user-1","name":"Ada"}`)
	require.Equal(t, 200, rr.Code)
	// A second token for the same user must not create a duplicate document
	rr = issueCandidateToken(t, h, `{"testId":"test-2","userId":"user-1"}`)
	require.Equal(t, 200, rr.Code)

	assert.Equal(t, 1, users.creates)
	assert.Equal(t, "Ada", users.users["user-1"].Name)
}

func TestCandidateTokenRequiresIDs(t *testing.T) {
	authSvc := service.NewAuthService(&config.Config{JWTSecret: "test-secret"})
	h := NewAuthHandler(authSvc, newFakeUserRepo())

	rr := issueCandidateToken(t, h, `{"testId":"test-1"}`)
	assert.Equal(t, 400, rr.Code)
}

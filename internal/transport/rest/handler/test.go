package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"proctorly/internal/model"
	"proctorly/internal/service"
)

// TestHandler handles test configuration endpoints for staff
type TestHandler struct {
	testSvc *service.TestService
}

// NewTestHandler creates a new test handler
func NewTestHandler(testSvc *service.TestService) *TestHandler {
	return &TestHandler{testSvc: testSvc}
}

// createTestRequest carries the test plus its plaintext password, which is
// hashed before storage and never echoed back
type createTestRequest struct {
	model.Test
	Password string `json:"password,omitempty"`
}

// Create handles POST /v1/tests
func (h *TestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	test, err := h.testSvc.CreateTest(r.Context(), &req.Test, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidTest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, test)
}

// Get handles GET /v1/tests/{testId}
func (h *TestHandler) Get(w http.ResponseWriter, r *http.Request) {
	test, err := h.testSvc.GetTest(r.Context(), mux.Vars(r)["testId"])
	if err != nil {
		if errors.Is(err, service.ErrTestNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, test)
}

// List handles GET /v1/tests
func (h *TestHandler) List(w http.ResponseWriter, r *http.Request) {
	tests, err := h.testSvc.ListTests(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, tests)
}

// Update handles PUT /v1/tests/{testId}
func (h *TestHandler) Update(w http.ResponseWriter, r *http.Request) {
	var test model.Test
	if err := json.NewDecoder(r.Body).Decode(&test); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	test.ID = mux.Vars(r)["testId"]

	updated, err := h.testSvc.UpdateTest(r.Context(), &test)
	if err != nil {
		if errors.Is(err, service.ErrInvalidTest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /v1/tests/{testId}
func (h *TestHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.testSvc.DeleteTest(r.Context(), mux.Vars(r)["testId"]); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

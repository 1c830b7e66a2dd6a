package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"proctorly/internal/model"
	"proctorly/internal/service"
	"proctorly/internal/transport/rest/middleware"
)

// AttemptHandler handles the candidate attempt lifecycle and the staff
// monitoring views over it
type AttemptHandler struct {
	attemptSvc *service.AttemptService
}

// NewAttemptHandler creates a new attempt handler
func NewAttemptHandler(attemptSvc *service.AttemptService) *AttemptHandler {
	return &AttemptHandler{attemptSvc: attemptSvc}
}

// Start handles POST /v1/tests/{testId}/attempts
func (h *AttemptHandler) Start(w http.ResponseWriter, r *http.Request) {
	testID := mux.Vars(r)["testId"]
	if middleware.GetTestID(r.Context()) != testID {
		writeError(w, http.StatusForbidden, "token not valid for this test")
		return
	}

	var req model.StartAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	attempt, err := h.attemptSvc.StartAttempt(r.Context(), testID, middleware.GetUserID(r.Context()), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTestNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrStartWindowClosed):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrNeedTestPassword), errors.Is(err, service.ErrWrongTestPassword):
			writeCodedError(w, http.StatusForbidden, err.Error(), model.CodeNeedTestPassword)
		case errors.Is(err, service.ErrMaxAttemptsReached):
			writeCodedError(w, http.StatusConflict, err.Error(), model.CodeMaxAttemptsReached)
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, attempt)
}

// RecordEvent handles POST /v1/attempts/{attemptId}/events
func (h *AttemptHandler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	attemptID := mux.Vars(r)["attemptId"]
	if !h.authorizeCandidate(w, r, attemptID) {
		return
	}

	var req model.RecordEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Kind == "" {
		writeError(w, http.StatusBadRequest, "kind is required")
		return
	}

	if err := h.attemptSvc.RecordEvent(r.Context(), attemptID, req); err != nil {
		writeAttemptError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

// PushCounters handles PUT /v1/attempts/{attemptId}/counters
func (h *AttemptHandler) PushCounters(w http.ResponseWriter, r *http.Request) {
	attemptID := mux.Vars(r)["attemptId"]
	if !h.authorizeCandidate(w, r, attemptID) {
		return
	}

	var req model.PushCountersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.attemptSvc.PushCounters(r.Context(), attemptID, req); err != nil {
		writeAttemptError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// UpsertAnswer handles PUT /v1/attempts/{attemptId}/answers
func (h *AttemptHandler) UpsertAnswer(w http.ResponseWriter, r *http.Request) {
	attemptID := mux.Vars(r)["attemptId"]
	if !h.authorizeCandidate(w, r, attemptID) {
		return
	}

	var req model.UpsertAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.QuestionID == "" {
		writeError(w, http.StatusBadRequest, "questionId is required")
		return
	}

	answer, err := h.attemptSvc.UpsertAnswer(r.Context(), attemptID, req)
	if err != nil {
		writeAttemptError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

// Submit handles POST /v1/attempts/{attemptId}/submit
func (h *AttemptHandler) Submit(w http.ResponseWriter, r *http.Request) {
	attemptID := mux.Vars(r)["attemptId"]
	if !h.authorizeCandidate(w, r, attemptID) {
		return
	}

	var req model.SubmitAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	attempt, err := h.attemptSvc.SubmitAttempt(r.Context(), attemptID, req)
	if err != nil {
		writeAttemptError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, attempt)
}

// Remaining handles GET /v1/attempts/{attemptId}/time
func (h *AttemptHandler) Remaining(w http.ResponseWriter, r *http.Request) {
	attemptID := mux.Vars(r)["attemptId"]
	attempt, err := h.attemptSvc.GetAttempt(r.Context(), attemptID)
	if err != nil {
		writeAttemptError(w, err)
		return
	}
	if attempt.UserID != middleware.GetUserID(r.Context()) {
		writeError(w, http.StatusForbidden, "attempt belongs to another user")
		return
	}

	remaining, err := h.attemptSvc.RemainingSeconds(r.Context(), attempt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"remainingSeconds": remaining})
}

// List handles GET /v1/tests/{testId}/attempts (staff)
func (h *AttemptHandler) List(w http.ResponseWriter, r *http.Request) {
	testID := mux.Vars(r)["testId"]
	attempts, err := h.attemptSvc.ListAttempts(r.Context(), testID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, attempts)
}

// Events handles GET /v1/attempts/{attemptId}/events (staff)
func (h *AttemptHandler) Events(w http.ResponseWriter, r *http.Request) {
	attemptID := mux.Vars(r)["attemptId"]
	events, err := h.attemptSvc.ListEvents(r.Context(), attemptID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, events)
}

// TopRisk handles GET /v1/tests/{testId}/risk (staff)
func (h *AttemptHandler) TopRisk(w http.ResponseWriter, r *http.Request) {
	testID := mux.Vars(r)["testId"]
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := h.attemptSvc.TopRisk(r.Context(), testID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// Status handles GET /v1/attempts/{attemptId}/status (staff)
func (h *AttemptHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.attemptSvc.LiveStatus(r.Context(), mux.Vars(r)["attemptId"])
	if err != nil {
		writeAttemptError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// Invalidate handles POST /v1/attempts/{attemptId}/invalidate (staff)
func (h *AttemptHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	attemptID := mux.Vars(r)["attemptId"]

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	attempt, err := h.attemptSvc.InvalidateAttempt(r.Context(), attemptID, req.Reason)
	if err != nil {
		writeAttemptError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, attempt)
}

// authorizeCandidate verifies the attempt belongs to the authenticated
// candidate before any mutation
func (h *AttemptHandler) authorizeCandidate(w http.ResponseWriter, r *http.Request, attemptID string) bool {
	attempt, err := h.attemptSvc.GetAttempt(r.Context(), attemptID)
	if err != nil {
		writeAttemptError(w, err)
		return false
	}
	if attempt.UserID != middleware.GetUserID(r.Context()) {
		writeError(w, http.StatusForbidden, "attempt belongs to another user")
		return false
	}
	return true
}

func writeAttemptError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrAttemptNotFound), errors.Is(err, service.ErrTestNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAttemptNotInProgress), errors.Is(err, service.ErrAttemptInvalidated):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

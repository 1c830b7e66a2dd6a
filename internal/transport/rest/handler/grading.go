package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"proctorly/internal/model"
	"proctorly/internal/service"
)

// GradingHandler handles grading endpoints for staff
type GradingHandler struct {
	gradingSvc *service.GradingService
}

// NewGradingHandler creates a new grading handler
func NewGradingHandler(gradingSvc *service.GradingService) *GradingHandler {
	return &GradingHandler{gradingSvc: gradingSvc}
}

// ListAnswers handles GET /v1/attempts/{attemptId}/answers
func (h *GradingHandler) ListAnswers(w http.ResponseWriter, r *http.Request) {
	answers, err := h.gradingSvc.ListAnswers(r.Context(), mux.Vars(r)["attemptId"])
	if err != nil {
		writeGradingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, answers)
}

// Suggest handles POST /v1/attempts/{attemptId}/suggestions
func (h *GradingHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req model.SuggestGradesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Mode == model.SuggestSingle && req.AnswerID == "" {
		writeError(w, http.StatusBadRequest, "answerId is required for single mode")
		return
	}

	suggestions, err := h.gradingSvc.Suggest(r.Context(), mux.Vars(r)["attemptId"], req)
	if err != nil {
		writeGradingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"suggestions": suggestions})
}

// SaveGrades handles POST /v1/attempts/{attemptId}/grades
func (h *GradingHandler) SaveGrades(w http.ResponseWriter, r *http.Request) {
	var req model.SaveGradesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Grades) == 0 {
		writeError(w, http.StatusBadRequest, "grades are required")
		return
	}

	attempt, err := h.gradingSvc.SaveGrades(r.Context(), mux.Vars(r)["attemptId"], req)
	if err != nil {
		writeGradingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, attempt)
}

// Breakdown handles GET /v1/attempts/{attemptId}/score
func (h *GradingHandler) Breakdown(w http.ResponseWriter, r *http.Request) {
	breakdown, err := h.gradingSvc.Breakdown(r.Context(), mux.Vars(r)["attemptId"])
	if err != nil {
		writeGradingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, breakdown)
}

func writeGradingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrAttemptNotFound), errors.Is(err, service.ErrAnswerNotFound), errors.Is(err, service.ErrTestNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAnswerNotGradable), errors.Is(err, service.ErrGradeOutOfBounds):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAttemptNotSubmitted):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

package handler

import (
	"encoding/json"
	"net/http"

	"proctorly/internal/model"
	"proctorly/internal/repository"
	"proctorly/internal/service"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authSvc  *service.AuthService
	userRepo repository.UserRepo
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authSvc *service.AuthService, userRepo repository.UserRepo) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, userRepo: userRepo}
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.authSvc.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// CandidateToken handles POST /v1/auth/candidate-token (staff issues
// test-scoped tokens to distribute to candidates). The user document is
// created on first issuance, so every token references a stored user.
func (h *AuthHandler) CandidateToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TestID string `json:"testId"`
		UserID string `json:"userId"`
		Name   string `json:"name,omitempty"`
		Email  string `json:"email,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TestID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "testId and userId are required")
		return
	}

	user, err := h.userRepo.GetByID(r.Context(), req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if user == nil {
		user = &model.User{ID: req.UserID, Name: req.Name, Email: req.Email}
		if err := h.userRepo.Create(r.Context(), user); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to create user")
			return
		}
	}

	token, err := h.authSvc.GenerateCandidateToken(req.TestID, user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token, "userId": user.ID})
}

// Helper functions
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeCodedError adds a machine-readable code clients branch on
func writeCodedError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}

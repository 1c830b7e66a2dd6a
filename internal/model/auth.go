package model

import "github.com/golang-jwt/jwt/v5"

// StaffClaims are JWT claims for staff (proctor/grader) authentication
type StaffClaims struct {
	StaffID string `json:"staffId"`
	jwt.RegisteredClaims
}

// CandidateClaims are JWT claims for candidate test-scoped tokens
type CandidateClaims struct {
	TestID string `json:"testId"`
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// LoginRequest is the request body for staff login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned after successful login
type LoginResponse struct {
	Token   string `json:"token"`
	StaffID string `json:"staffId"`
}

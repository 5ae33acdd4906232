package models

import "time"

// User represents a learner account
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	GradeLevel   int       `json:"grade_level"`
	ReadingLevel float64   `json:"reading_level"`
	CreatedAt    time.Time `json:"created_at"`
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	GradeLevel int    `json:"grade_level"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	// Login is either an email or a username
	Login    string `json:"login"`
	Password string `json:"password"`
}

// AuthResponse is returned after successful registration or login
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	User        *User  `json:"user"`
}

// UpdateProfileRequest represents a profile update request
type UpdateProfileRequest struct {
	GradeLevel int `json:"grade_level"`
}

// UserStats is a user row of the admin overview
type UserStats struct {
	ID                int       `json:"id"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	GradeLevel        int       `json:"grade_level"`
	ReadingLevel      float64   `json:"reading_level"`
	CreatedAt         time.Time `json:"created_at"`
	TotalSessions     int       `json:"total_sessions"`
	CompletedSessions int       `json:"completed_sessions"`
	TotalQuestions    int       `json:"total_questions"`
	AverageScore      *float64  `json:"average_score"`
}

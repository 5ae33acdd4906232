package models

import "time"

// ReadingSession is one practice sitting over a chapter of a book
type ReadingSession struct {
	ID             int        `json:"id"`
	UserID         int        `json:"user_id"`
	BookTitle      string     `json:"book_title"`
	Chapter        string     `json:"chapter"`
	TotalQuestions int        `json:"total_questions"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at"`
}

// SessionListItem is a session with its progress
type SessionListItem struct {
	ReadingSession
	CompletedQuestions int `json:"completed_questions"`
}

// SessionDetail is a session together with its questions
type SessionDetail struct {
	ReadingSession
	Questions []QuestionView `json:"questions"`
}

// CreateSessionRequest represents a session creation request
type CreateSessionRequest struct {
	BookTitle      string `json:"book_title"`
	Chapter        string `json:"chapter"`
	TotalQuestions int    `json:"total_questions"`
}

// SessionSummary is the data of a session-completed notification
type SessionSummary struct {
	SessionID      int
	Username       string
	Email          string
	BookTitle      string
	Chapter        string
	TotalQuestions int
	AverageScore   float64
	ReadingLevel   float64
}

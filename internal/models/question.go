package models

import "time"

// Question is one comprehension question of a session
type Question struct {
	ID             int       `json:"id"`
	SessionID      int       `json:"session_id"`
	QuestionNumber int       `json:"question_number"`
	QuestionText   string    `json:"question_text"`
	ModelAnswer    string    `json:"-"`
	CurrentAnswer  *string   `json:"current_answer"`
	CurrentScore   *float64  `json:"current_score"`
	CurrentRating  *int      `json:"current_rating"`
	CreatedAt      time.Time `json:"created_at"`
}

// QuestionContext is a question joined with the data needed to grade an answer to it
type QuestionContext struct {
	Question
	UserID     int    `json:"user_id"`
	BookTitle  string `json:"book_title"`
	Chapter    string `json:"chapter"`
	GradeLevel int    `json:"grade_level"`
}

// QuestionView is a question with its derived state as shown to the learner
type QuestionView struct {
	Question
	State            QuestionState    `json:"state"`
	LegalSubmissions []SubmissionType `json:"legal_submissions"`
	Feedback         string           `json:"feedback,omitempty"`
	Examples         []string         `json:"examples,omitempty"`
}

// GeneratedQuestion is a question produced by the question generator
type GeneratedQuestion struct {
	QuestionText string `json:"question"`
	ModelAnswer  string `json:"model_answer"`
}

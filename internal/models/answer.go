package models

import "time"

// SubmissionType is the kind of answer submission
type SubmissionType string

const (
	SubmissionInitial SubmissionType = "initial"
	SubmissionRetry   SubmissionType = "retry"
	SubmissionFinal   SubmissionType = "final"
)

// QuestionState is the answer lifecycle state of a single question
type QuestionState string

const (
	StateNotAttempted          QuestionState = "not_attempted"
	StateAwaitingFirstFeedback QuestionState = "awaiting_first_feedback"
	StateAwaitingRetry         QuestionState = "awaiting_retry"
	StateSufficient            QuestionState = "sufficient"
	StateFinalized             QuestionState = "finalized"
)

// Answer is one immutable, scored submission for a question
type Answer struct {
	ID             int            `json:"id"`
	QuestionID     int            `json:"question_id"`
	AnswerText     string         `json:"answer_text"`
	SubmissionType SubmissionType `json:"submission_type"`
	Score          float64        `json:"score"`
	Rating         *int           `json:"rating"`
	Feedback       string         `json:"feedback"`
	Examples       []string       `json:"examples"`
	IsSufficient   bool           `json:"is_sufficient"`
	IsTerminal     bool           `json:"is_terminal"`
	CreatedAt      time.Time      `json:"created_at"`
}

// SubmitAnswerRequest represents an answer submission request
type SubmitAnswerRequest struct {
	AnswerText     string `json:"answer_text"`
	SubmissionType string `json:"submission_type"`
}

// SubmissionResult is the outcome of one answer submission
type SubmissionResult struct {
	Answer           *Answer          `json:"answer"`
	QuestionState    QuestionState    `json:"question_state"`
	LegalSubmissions []SubmissionType `json:"legal_submissions"`
	SessionCompleted bool             `json:"session_completed"`
	ReadingLevel     *float64         `json:"reading_level,omitempty"`
	Warning          string           `json:"warning,omitempty"`
}

// Evaluation is the validated verdict of the answer evaluator
type Evaluation struct {
	Score    float64
	Rating   *int
	Feedback string
	Examples []string
}

// EvaluationRequest carries everything the evaluator needs to grade an answer
type EvaluationRequest struct {
	SubmissionType SubmissionType
	BookTitle      string
	Chapter        string
	GradeLevel     int
	QuestionText   string
	ModelAnswer    string
	AnswerText     string
	// PreviousAnswer is the latest earlier answer, nil for initial submissions
	PreviousAnswer *Answer
	// Threshold is the score at which an answer counts as sufficient
	Threshold      float64
}

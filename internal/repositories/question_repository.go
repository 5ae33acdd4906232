package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lunareading/backend/internal/models"
	"go.uber.org/zap"
)

// questionRepository implements QuestionRepository
type questionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewQuestionRepository creates a new question repository
func NewQuestionRepository(db *sql.DB, logger *zap.Logger) *questionRepository {
	return &questionRepository{
		db:     db,
		logger: logger,
	}
}

// scanQuestion scans the question columns in questionColumns order plus any extra destinations
func scanQuestion(row interface{ Scan(dest ...any) error }, q *models.Question, extra ...any) error {
	var modelAnswer, currentAnswer sql.NullString
	var currentScore sql.NullFloat64
	var currentRating sql.NullInt32

	dest := append([]any{
		&q.ID, &q.SessionID, &q.QuestionNumber, &q.QuestionText, &modelAnswer,
		&currentAnswer, &currentScore, &currentRating, &q.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}

	q.ModelAnswer = modelAnswer.String
	if currentAnswer.Valid {
		q.CurrentAnswer = &currentAnswer.String
	}
	if currentScore.Valid {
		q.CurrentScore = &currentScore.Float64
	}
	if currentRating.Valid {
		rating := int(currentRating.Int32)
		q.CurrentRating = &rating
	}
	return nil
}

const questionColumns = `q.id, q.session_id, q.question_number, q.question_text, q.model_answer,
	q.current_answer, q.current_score, q.current_rating, q.created_at`

// GetContext retrieves a question with its session and owner data
func (r *questionRepository) GetContext(ctx context.Context, questionID int) (*models.QuestionContext, error) {
	query := `
		SELECT ` + questionColumns + `, s.user_id, s.book_title, s.chapter, u.grade_level
		FROM questions q
		JOIN reading_sessions s ON s.id = q.session_id
		JOIN users u ON u.id = s.user_id
		WHERE q.id = ?
	`

	qc := &models.QuestionContext{}
	err := scanQuestion(r.db.QueryRowContext(ctx, query, questionID), &qc.Question,
		&qc.UserID, &qc.BookTitle, &qc.Chapter, &qc.GradeLevel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("question %w", models.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get question", zap.Error(err), zap.Int("question_id", questionID))
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	return qc, nil
}

// ListBySession returns the questions of a session ordered by number
func (r *questionRepository) ListBySession(ctx context.Context, sessionID int) ([]models.Question, error) {
	query := `
		SELECT ` + questionColumns + `
		FROM questions q
		WHERE q.session_id = ?
		ORDER BY q.question_number
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		r.logger.Error("failed to query questions", zap.Error(err), zap.Int("session_id", sessionID))
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	questions := make([]models.Question, 0)
	for rows.Next() {
		var q models.Question
		if err := scanQuestion(rows, &q); err != nil {
			r.logger.Error("failed to scan question", zap.Error(err))
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating questions: %w", err)
	}

	return questions, nil
}

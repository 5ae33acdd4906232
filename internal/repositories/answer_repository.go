package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lunareading/backend/internal/mastery"
	"github.com/lunareading/backend/internal/models"
	"go.uber.org/zap"
)

// answerRepository implements AnswerRepository
type answerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAnswerRepository creates a new answer repository
func NewAnswerRepository(db *sql.DB, logger *zap.Logger) *answerRepository {
	return &answerRepository{
		db:     db,
		logger: logger,
	}
}

const answerColumns = `a.id, a.question_id, a.answer_text, a.submission_type, a.score, a.rating,
	a.feedback, a.examples, a.is_sufficient, a.is_terminal, a.created_at`

func scanAnswer(row interface{ Scan(dest ...any) error }) (models.Answer, error) {
	var a models.Answer
	var rating sql.NullInt32
	var feedback sql.NullString
	var examples []byte

	if err := row.Scan(
		&a.ID, &a.QuestionID, &a.AnswerText, &a.SubmissionType, &a.Score, &rating,
		&feedback, &examples, &a.IsSufficient, &a.IsTerminal, &a.CreatedAt,
	); err != nil {
		return a, err
	}

	if rating.Valid {
		r := int(rating.Int32)
		a.Rating = &r
	}
	a.Feedback = feedback.String
	if len(examples) > 0 {
		if err := json.Unmarshal(examples, &a.Examples); err != nil {
			return a, fmt.Errorf("failed to decode examples of answer %d: %w", a.ID, err)
		}
	}
	return a, nil
}

func (r *answerRepository) queryAnswers(ctx context.Context, query string, args ...any) ([]models.Answer, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to query answers", zap.Error(err))
		return nil, fmt.Errorf("failed to query answers: %w", err)
	}
	defer rows.Close()

	answers := make([]models.Answer, 0)
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			r.logger.Error("failed to scan answer", zap.Error(err))
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		answers = append(answers, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating answers: %w", err)
	}

	return answers, nil
}

// ListByQuestion returns the answer log of a question, oldest first
func (r *answerRepository) ListByQuestion(ctx context.Context, questionID int) ([]models.Answer, error) {
	query := `SELECT ` + answerColumns + ` FROM answers a WHERE a.question_id = ? ORDER BY a.id`
	return r.queryAnswers(ctx, query, questionID)
}

// ListBySession returns the answer logs of all questions of a session, grouped by question and oldest first
func (r *answerRepository) ListBySession(ctx context.Context, sessionID int) ([]models.Answer, error) {
	query := `
		SELECT ` + answerColumns + `
		FROM answers a
		JOIN questions q ON q.id = a.question_id
		WHERE q.session_id = ?
		ORDER BY q.question_number, a.id
	`
	return r.queryAnswers(ctx, query, sessionID)
}

// GetTerminalScores returns the scores of every terminal answer of a user
func (r *answerRepository) GetTerminalScores(ctx context.Context, userID int) ([]float64, error) {
	query := `
		SELECT a.score
		FROM answers a
		JOIN questions q ON q.id = a.question_id
		JOIN reading_sessions s ON s.id = q.session_id
		WHERE s.user_id = ? AND a.is_terminal = TRUE
		ORDER BY a.id
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("failed to query terminal scores", zap.Error(err), zap.Int("user_id", userID))
		return nil, fmt.Errorf("failed to query terminal scores: %w", err)
	}
	defer rows.Close()

	scores := make([]float64, 0)
	for rows.Next() {
		var score float64
		if err := rows.Scan(&score); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, score)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scores: %w", err)
	}

	return scores, nil
}

// Append records an answer, refreshes the question's current answer fields and,
// when the answer is terminal and no other question of the session is still open,
// marks the session completed. All of it happens in one transaction.
//
// priorCount is the length of the answer log the caller based its decision on.
// If the log has grown since, nothing is written and ErrPersistenceConflict is returned.
// Returns true when this call completed the session.
func (r *answerRepository) Append(ctx context.Context, answer *models.Answer, priorCount int) (bool, error) {
	examples, err := encodeExamples(answer.Examples)
	if err != nil {
		return false, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("failed to begin transaction", zap.Error(err))
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Lock the session and question rows first. Submissions to the same session
	// queue here, so the reads below see every answer committed before us.
	var sessionID int
	err = tx.QueryRowContext(ctx, `
		SELECT s.id
		FROM questions q
		JOIN reading_sessions s ON s.id = q.session_id
		WHERE q.id = ?
		FOR UPDATE
	`, answer.QuestionID).Scan(&sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("question %w", models.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to lock question", zap.Error(err), zap.Int("question_id", answer.QuestionID))
		return false, fmt.Errorf("failed to lock question: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM answers WHERE question_id = ?`, answer.QuestionID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count answers: %w", err)
	}
	if count != priorCount {
		r.logger.Info("answer log changed during evaluation",
			zap.Int("question_id", answer.QuestionID),
			zap.Int("expected", priorCount),
			zap.Int("actual", count),
		)
		return false, mastery.ErrPersistenceConflict
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO answers (question_id, answer_text, submission_type, score, rating, feedback, examples, is_sufficient, is_terminal)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, answer.QuestionID, answer.AnswerText, answer.SubmissionType, answer.Score, answer.Rating,
		answer.Feedback, examples, answer.IsSufficient, answer.IsTerminal)
	if err != nil {
		r.logger.Error("failed to insert answer", zap.Error(err))
		return false, fmt.Errorf("failed to insert answer: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to get last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE questions SET current_answer = ?, current_score = ?, current_rating = ?
		WHERE id = ?
	`, answer.AnswerText, answer.Score, answer.Rating, answer.QuestionID); err != nil {
		r.logger.Error("failed to update question", zap.Error(err))
		return false, fmt.Errorf("failed to update question: %w", err)
	}

	completed := false
	if answer.IsTerminal {
		var open int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*)
			FROM questions q
			WHERE q.session_id = ?
				AND NOT EXISTS (SELECT 1 FROM answers a WHERE a.question_id = q.id AND a.is_terminal = TRUE)
		`, sessionID).Scan(&open); err != nil {
			return false, fmt.Errorf("failed to count open questions: %w", err)
		}

		if open == 0 {
			res, err := tx.ExecContext(ctx, `
				UPDATE reading_sessions SET completed_at = CURRENT_TIMESTAMP
				WHERE id = ? AND completed_at IS NULL
			`, sessionID)
			if err != nil {
				r.logger.Error("failed to complete session", zap.Error(err))
				return false, fmt.Errorf("failed to complete session: %w", err)
			}
			rows, err := res.RowsAffected()
			if err != nil {
				return false, fmt.Errorf("failed to get rows affected: %w", err)
			}
			completed = rows == 1
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("failed to commit transaction", zap.Error(err))
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	answer.ID = int(id)
	return completed, nil
}

func encodeExamples(examples []string) (any, error) {
	if len(examples) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(examples)
	if err != nil {
		return nil, fmt.Errorf("failed to encode examples: %w", err)
	}
	return string(data), nil
}

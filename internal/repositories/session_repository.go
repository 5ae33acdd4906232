package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lunareading/backend/internal/models"
	"go.uber.org/zap"
)

// sessionRepository implements SessionRepository
type sessionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSessionRepository creates a new reading session repository
func NewSessionRepository(db *sql.DB, logger *zap.Logger) *sessionRepository {
	return &sessionRepository{
		db:     db,
		logger: logger,
	}
}

// CreateWithQuestions inserts a session and all of its questions in one transaction.
// Questions are numbered from 1 in the given order.
func (r *sessionRepository) CreateWithQuestions(ctx context.Context, session *models.ReadingSession, generated []models.GeneratedQuestion) ([]models.Question, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("failed to begin transaction", zap.Error(err))
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO reading_sessions (user_id, book_title, chapter, total_questions)
		VALUES (?, ?, ?, ?)
	`, session.UserID, session.BookTitle, session.Chapter, session.TotalQuestions)
	if err != nil {
		r.logger.Error("failed to create session", zap.Error(err))
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	sessionID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	insertQuestion := `
		INSERT INTO questions (session_id, question_number, question_text, model_answer)
		VALUES (?, ?, ?, ?)
	`
	questions := make([]models.Question, 0, len(generated))
	for i, g := range generated {
		res, err := tx.ExecContext(ctx, insertQuestion, sessionID, i+1, g.QuestionText, g.ModelAnswer)
		if err != nil {
			r.logger.Error("failed to create question", zap.Error(err), zap.Int("question_number", i+1))
			return nil, fmt.Errorf("failed to create question %d: %w", i+1, err)
		}
		questionID, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to get last insert id: %w", err)
		}
		questions = append(questions, models.Question{
			ID:             int(questionID),
			SessionID:      int(sessionID),
			QuestionNumber: i + 1,
			QuestionText:   g.QuestionText,
			ModelAnswer:    g.ModelAnswer,
		})
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("failed to commit transaction", zap.Error(err))
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	session.ID = int(sessionID)
	return questions, nil
}

// GetByID retrieves a session by ID
func (r *sessionRepository) GetByID(ctx context.Context, sessionID int) (*models.ReadingSession, error) {
	query := `
		SELECT id, user_id, book_title, chapter, total_questions, created_at, completed_at
		FROM reading_sessions
		WHERE id = ?
	`

	s := &models.ReadingSession{}
	var completedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&s.ID, &s.UserID, &s.BookTitle, &s.Chapter, &s.TotalQuestions, &s.CreatedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %w", models.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get session", zap.Error(err), zap.Int("session_id", sessionID))
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if completedAt.Valid {
		s.CompletedAt = &completedAt.Time
	}

	return s, nil
}

// ListByUser returns the sessions of a user, newest first, with the number of completed questions
func (r *sessionRepository) ListByUser(ctx context.Context, userID int) ([]models.SessionListItem, error) {
	query := `
		SELECT s.id, s.user_id, s.book_title, s.chapter, s.total_questions, s.created_at, s.completed_at,
			(SELECT COUNT(DISTINCT q.id)
				FROM questions q
				JOIN answers a ON a.question_id = q.id AND a.is_terminal = TRUE
				WHERE q.session_id = s.id) AS completed_questions
		FROM reading_sessions s
		WHERE s.user_id = ?
		ORDER BY s.created_at DESC, s.id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("failed to query sessions", zap.Error(err), zap.Int("user_id", userID))
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]models.SessionListItem, 0)
	for rows.Next() {
		var item models.SessionListItem
		var completedAt sql.NullTime
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.BookTitle, &item.Chapter, &item.TotalQuestions, &item.CreatedAt, &completedAt,
			&item.CompletedQuestions,
		); err != nil {
			r.logger.Error("failed to scan session", zap.Error(err))
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if completedAt.Valid {
			item.CompletedAt = &completedAt.Time
		}
		sessions = append(sessions, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// GetSummary returns the data of a session-completed notification
func (r *sessionRepository) GetSummary(ctx context.Context, sessionID int) (*models.SessionSummary, error) {
	query := `
		SELECT s.id, u.username, u.email, s.book_title, s.chapter, s.total_questions, u.reading_level,
			COALESCE((SELECT AVG(a.score)
				FROM answers a
				JOIN questions q ON q.id = a.question_id
				WHERE q.session_id = s.id AND a.is_terminal = TRUE), 0) AS average_score
		FROM reading_sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = ?
	`

	summary := &models.SessionSummary{}
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&summary.SessionID, &summary.Username, &summary.Email, &summary.BookTitle, &summary.Chapter,
		&summary.TotalQuestions, &summary.ReadingLevel, &summary.AverageScore,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %w", models.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get session summary", zap.Error(err), zap.Int("session_id", sessionID))
		return nil, fmt.Errorf("failed to get session summary: %w", err)
	}

	return summary, nil
}

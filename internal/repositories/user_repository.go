package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lunareading/backend/internal/models"
	"go.uber.org/zap"
)

// userRepository implements UserRepository
type userRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) *userRepository {
	return &userRepository{
		db:     db,
		logger: logger,
	}
}

const userColumns = `id, username, email, password_hash, grade_level, reading_level, created_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.GradeLevel,
		&user.ReadingLevel,
		&user.CreatedAt,
	)
	return user, err
}

// Create inserts a new user into the database
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, grade_level, reading_level)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query, user.Username, user.Email, user.PasswordHash, user.GradeLevel, user.ReadingLevel)
	if err != nil {
		if isDuplicateEntry(err) {
			return fmt.Errorf("user %w", models.ErrAlreadyExists)
		}
		r.logger.Error("failed to create user", zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		r.logger.Error("failed to get last insert id", zap.Error(err))
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	user.ID = int(id)
	return nil
}

// GetByEmailOrUsername retrieves a user by email or username
func (r *userRepository) GetByEmailOrUsername(ctx context.Context, login string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ? OR username = ? LIMIT 1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, login, login))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %w", models.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get user by email or username", zap.Error(err), zap.String("login", login))
		return nil, fmt.Errorf("failed to get user by email or username: %w", err)
	}

	return user, nil
}

// GetByID retrieves a user by ID
func (r *userRepository) GetByID(ctx context.Context, userID int) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %w", models.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get user by id", zap.Error(err), zap.Int("user_id", userID))
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return user, nil
}

// ExistsByEmail checks if a user exists with the given email
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		r.logger.Error("failed to check email existence", zap.Error(err))
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}

	return exists, nil
}

// ExistsByUsername checks if a user exists with the given username
func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, username).Scan(&exists); err != nil {
		r.logger.Error("failed to check username existence", zap.Error(err))
		return false, fmt.Errorf("failed to check username existence: %w", err)
	}

	return exists, nil
}

// UpdateGradeLevel sets the grade level of a user
func (r *userRepository) UpdateGradeLevel(ctx context.Context, userID int, gradeLevel int) error {
	return r.updateColumn(ctx, "grade_level", userID, gradeLevel)
}

// UpdateReadingLevel sets the reading level of a user
func (r *userRepository) UpdateReadingLevel(ctx context.Context, userID int, readingLevel float64) error {
	return r.updateColumn(ctx, "reading_level", userID, readingLevel)
}

// updateColumn writes one column of a user row. "column" is never user input.
func (r *userRepository) updateColumn(ctx context.Context, column string, userID int, value any) error {
	query := fmt.Sprintf(`UPDATE users SET %s = ? WHERE id = ?`, column)

	result, err := r.db.ExecContext(ctx, query, value, userID)
	if err != nil {
		r.logger.Error("failed to update user", zap.Error(err), zap.String("column", column), zap.Int("user_id", userID))
		return fmt.Errorf("failed to update %s: %w", column, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// MySQL reports 0 rows for an unchanged value, so check the user exists
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, userID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check user existence: %w", err)
		}
		if !exists {
			return fmt.Errorf("user %w", models.ErrNotFound)
		}
	}

	return nil
}

// ListWithStats returns every user with session and answer statistics
func (r *userRepository) ListWithStats(ctx context.Context) ([]models.UserStats, error) {
	query := `
		SELECT u.id, u.username, u.email, u.grade_level, u.reading_level, u.created_at,
			(SELECT COUNT(*) FROM reading_sessions s WHERE s.user_id = u.id) AS total_sessions,
			(SELECT COUNT(*) FROM reading_sessions s WHERE s.user_id = u.id AND s.completed_at IS NOT NULL) AS completed_sessions,
			(SELECT COUNT(*) FROM questions q JOIN reading_sessions s ON s.id = q.session_id WHERE s.user_id = u.id) AS total_questions,
			(SELECT AVG(a.score) FROM answers a
				JOIN questions q ON q.id = a.question_id
				JOIN reading_sessions s ON s.id = q.session_id
				WHERE s.user_id = u.id AND a.is_terminal = TRUE) AS average_score
		FROM users u
		ORDER BY u.id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("failed to query user stats", zap.Error(err))
		return nil, fmt.Errorf("failed to query user stats: %w", err)
	}
	defer rows.Close()

	stats := make([]models.UserStats, 0)
	for rows.Next() {
		var s models.UserStats
		var avg sql.NullFloat64
		if err := rows.Scan(
			&s.ID, &s.Username, &s.Email, &s.GradeLevel, &s.ReadingLevel, &s.CreatedAt,
			&s.TotalSessions, &s.CompletedSessions, &s.TotalQuestions, &avg,
		); err != nil {
			r.logger.Error("failed to scan user stats", zap.Error(err))
			return nil, fmt.Errorf("failed to scan user stats: %w", err)
		}
		if avg.Valid {
			s.AverageScore = &avg.Float64
		}
		stats = append(stats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user stats: %w", err)
	}

	return stats, nil
}

// ListIDsWithTerminalAnswers returns the IDs of users having at least one terminal answer
func (r *userRepository) ListIDsWithTerminalAnswers(ctx context.Context) ([]int, error) {
	query := `
		SELECT DISTINCT s.user_id
		FROM answers a
		JOIN questions q ON q.id = a.question_id
		JOIN reading_sessions s ON s.id = q.session_id
		WHERE a.is_terminal = TRUE
		ORDER BY s.user_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("failed to query users with terminal answers", zap.Error(err))
		return nil, fmt.Errorf("failed to query users with terminal answers: %w", err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user ids: %w", err)
	}

	return ids, nil
}

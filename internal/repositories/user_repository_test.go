package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/lunareading/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupUserTestRepository creates a user repository with a mock database
func setupUserTestRepository(t *testing.T) (*userRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewUserRepository(db, zap.NewNop())

	cleanup := func() {
		db.Close()
	}

	return repo, mock, cleanup
}

var userRowColumns = []string{"id", "username", "email", "password_hash", "grade_level", "reading_level", "created_at"}

func TestNewUserRepository(t *testing.T) {
	logger := zap.NewNop()
	db := &sql.DB{}

	repo := NewUserRepository(db, logger)

	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
	assert.Equal(t, logger, repo.logger)
}

func TestUserRepository_Create(t *testing.T) {
	tests := []struct {
		name          string
		setupMock     func(sqlmock.Sqlmock)
		expectedError error
		anyError      bool
		expectedID    int
	}{
		{
			name: "success",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO users`).
					WithArgs("luna", "luna@example.com", "hash", 4, 3.2).
					WillReturnResult(sqlmock.NewResult(7, 1))
			},
			expectedID: 7,
		},
		{
			name: "duplicate entry",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO users`).
					WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'luna' for key 'uq_users_username'"})
			},
			expectedError: models.ErrAlreadyExists,
		},
		{
			name: "database error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO users`).WillReturnError(errors.New("database error"))
			},
			anyError: true,
		},
		{
			name: "last insert id error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO users`).
					WillReturnResult(sqlmock.NewErrorResult(errors.New("last insert id error")))
			},
			anyError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupUserTestRepository(t)
			defer cleanup()
			tt.setupMock(mock)

			user := &models.User{Username: "luna", Email: "luna@example.com", PasswordHash: "hash", GradeLevel: 4, ReadingLevel: 3.2}
			err := repo.Create(context.Background(), user)

			switch {
			case tt.expectedError != nil:
				assert.ErrorIs(t, err, tt.expectedError)
			case tt.anyError:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.expectedID, user.ID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_GetByID(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name          string
		setupMock     func(sqlmock.Sqlmock)
		expectedError error
		anyError      bool
	}{
		{
			name: "success",
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(userRowColumns).AddRow(1, "luna", "luna@example.com", "hash", 4, 3.2, now)
				mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \?`).WithArgs(1).WillReturnRows(rows)
			},
		},
		{
			name: "not found",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \?`).WithArgs(1).WillReturnError(sql.ErrNoRows)
			},
			expectedError: models.ErrNotFound,
		},
		{
			name: "database error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \?`).WithArgs(1).WillReturnError(errors.New("db down"))
			},
			anyError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupUserTestRepository(t)
			defer cleanup()
			tt.setupMock(mock)

			user, err := repo.GetByID(context.Background(), 1)

			switch {
			case tt.expectedError != nil:
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, user)
			case tt.anyError:
				assert.Error(t, err)
				assert.Nil(t, user)
			default:
				require.NoError(t, err)
				assert.Equal(t, "luna", user.Username)
				assert.Equal(t, 4, user.GradeLevel)
				assert.Equal(t, 3.2, user.ReadingLevel)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_GetByEmailOrUsername(t *testing.T) {
	repo, mock, cleanup := setupUserTestRepository(t)
	defer cleanup()

	rows := sqlmock.NewRows(userRowColumns).AddRow(1, "luna", "luna@example.com", "hash", 4, 3.2, time.Now())
	mock.ExpectQuery(`WHERE email = \? OR username = \?`).WithArgs("luna", "luna").WillReturnRows(rows)
	mock.ExpectQuery(`WHERE email = \? OR username = \?`).WithArgs("ghost", "ghost").WillReturnError(sql.ErrNoRows)

	user, err := repo.GetByEmailOrUsername(context.Background(), "luna")
	require.NoError(t, err)
	assert.Equal(t, 1, user.ID)

	_, err = repo.GetByEmailOrUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Exists(t *testing.T) {
	repo, mock, cleanup := setupUserTestRepository(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM users WHERE email = \?\)`).
		WithArgs("luna@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM users WHERE username = \?\)`).
		WithArgs("luna").
		WillReturnError(errors.New("db down"))

	exists, err := repo.ExistsByEmail(context.Background(), "luna@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByUsername(context.Background(), "luna")
	assert.Error(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UpdateReadingLevel(t *testing.T) {
	tests := []struct {
		name          string
		setupMock     func(sqlmock.Sqlmock)
		expectedError error
		anyError      bool
	}{
		{
			name: "success",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE users SET reading_level = \? WHERE id = \?`).
					WithArgs(5.5, 1).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "unchanged value",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE users SET reading_level = \? WHERE id = \?`).
					WithArgs(5.5, 1).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(`SELECT EXISTS`).WithArgs(1).
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
			},
		},
		{
			name: "user not found",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE users SET reading_level = \? WHERE id = \?`).
					WithArgs(5.5, 1).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(`SELECT EXISTS`).WithArgs(1).
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
			},
			expectedError: models.ErrNotFound,
		},
		{
			name: "database error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE users SET reading_level`).WillReturnError(errors.New("lock wait timeout"))
			},
			anyError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupUserTestRepository(t)
			defer cleanup()
			tt.setupMock(mock)

			err := repo.UpdateReadingLevel(context.Background(), 1, 5.5)

			switch {
			case tt.expectedError != nil:
				assert.ErrorIs(t, err, tt.expectedError)
			case tt.anyError:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_UpdateGradeLevel(t *testing.T) {
	repo, mock, cleanup := setupUserTestRepository(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE users SET grade_level = \? WHERE id = \?`).
		WithArgs(6, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.UpdateGradeLevel(context.Background(), 3, 6))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ListWithStats(t *testing.T) {
	repo, mock, cleanup := setupUserTestRepository(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "username", "email", "grade_level", "reading_level", "created_at",
		"total_sessions", "completed_sessions", "total_questions", "average_score",
	}).
		AddRow(1, "luna", "luna@example.com", 4, 4.4, now, 3, 1, 15, 0.82).
		AddRow(2, "sol", "sol@example.com", 5, 4.0, now, 0, 0, 0, nil)
	mock.ExpectQuery(`SELECT u.id, u.username`).WillReturnRows(rows)

	stats, err := repo.ListWithStats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, 3, stats[0].TotalSessions)
	require.NotNil(t, stats[0].AverageScore)
	assert.Equal(t, 0.82, *stats[0].AverageScore)
	assert.Nil(t, stats[1].AverageScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ListIDsWithTerminalAnswers(t *testing.T) {
	repo, mock, cleanup := setupUserTestRepository(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT DISTINCT s.user_id`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(1).AddRow(4))

	ids, err := repo.ListIDsWithTerminalAnswers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

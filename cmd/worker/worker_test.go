package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/lunareading/backend/internal/models"
	"github.com/lunareading/backend/internal/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockSessionSummaryRepository is a mock implementation of SessionSummaryRepository
type mockSessionSummaryRepository struct {
	summary *models.SessionSummary
	err     error
}

func (m *mockSessionSummaryRepository) GetSummary(ctx context.Context, sessionID int) (*models.SessionSummary, error) {
	return m.summary, m.err
}

// mockRecomputer is a mock implementation of ReadingLevelRecomputer
type mockRecomputer struct {
	level float64
	err   error
	calls []int
}

func (m *mockRecomputer) Recompute(ctx context.Context, userID int) (float64, error) {
	m.calls = append(m.calls, userID)
	return m.level, m.err
}

type sentMail struct {
	to, subject, body string
}

// mockMailer records sent e-mails
type mockMailer struct {
	sent []sentMail
	err  error
}

func (m *mockMailer) Send(to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func sessionCompletedTask(t *testing.T, userID, sessionID int) *asynq.Task {
	t.Helper()
	task, err := tasks.NewSessionCompletedTask(userID, sessionID)
	require.NoError(t, err)
	return task
}

func TestWorker_HandleSessionCompleted(t *testing.T) {
	summary := &models.SessionSummary{
		SessionID:      9,
		Username:       "reader",
		Email:          "reader@example.com",
		BookTitle:      "Tom & Jerry",
		Chapter:        "Chapter 1",
		TotalQuestions: 5,
		AverageScore:   0.84,
		ReadingLevel:   4.13,
	}

	tests := []struct {
		name          string
		task          func(t *testing.T) *asynq.Task
		repo          *mockSessionSummaryRepository
		mailErr       error
		expectedError bool
		skipRetry     bool
		expectedSent  int
	}{
		{
			name:         "success",
			task:         func(t *testing.T) *asynq.Task { return sessionCompletedTask(t, 1, 9) },
			repo:         &mockSessionSummaryRepository{summary: summary},
			expectedSent: 1,
		},
		{
			name:          "malformed payload",
			task:          func(t *testing.T) *asynq.Task { return asynq.NewTask(tasks.TypeSessionCompleted, []byte("{")) },
			repo:          &mockSessionSummaryRepository{summary: summary},
			expectedError: true,
			skipRetry:     true,
		},
		{
			name: "session deleted",
			task: func(t *testing.T) *asynq.Task { return sessionCompletedTask(t, 1, 9) },
			repo: &mockSessionSummaryRepository{err: fmt.Errorf("session %w", models.ErrNotFound)},
		},
		{
			name:          "repository error is retried",
			task:          func(t *testing.T) *asynq.Task { return sessionCompletedTask(t, 1, 9) },
			repo:          &mockSessionSummaryRepository{err: errors.New("db down")},
			expectedError: true,
		},
		{
			name:          "smtp error is retried",
			task:          func(t *testing.T) *asynq.Task { return sessionCompletedTask(t, 1, 9) },
			repo:          &mockSessionSummaryRepository{summary: summary},
			mailErr:       errors.New("connection refused"),
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailer := &mockMailer{err: tt.mailErr}
			w := NewWorker(zap.NewNop(), tt.repo, &mockRecomputer{}, mailer)

			err := w.HandleSessionCompleted(context.Background(), tt.task(t))

			if tt.expectedError {
				require.Error(t, err)
				assert.Equal(t, tt.skipRetry, errors.Is(err, asynq.SkipRetry))
			} else {
				require.NoError(t, err)
			}
			assert.Len(t, mailer.sent, tt.expectedSent)
		})
	}
}

func TestWorker_HandleSessionCompleted_Body(t *testing.T) {
	mailer := &mockMailer{}
	repo := &mockSessionSummaryRepository{summary: &models.SessionSummary{
		Username:       "reader",
		Email:          "reader@example.com",
		BookTitle:      "Tom & Jerry",
		Chapter:        "<Chapter 1>",
		TotalQuestions: 5,
		AverageScore:   0.84,
		ReadingLevel:   4.13,
	}}
	w := NewWorker(zap.NewNop(), repo, &mockRecomputer{}, mailer)

	require.NoError(t, w.HandleSessionCompleted(context.Background(), sessionCompletedTask(t, 1, 9)))

	require.Len(t, mailer.sent, 1)
	sent := mailer.sent[0]
	assert.Equal(t, "reader@example.com", sent.to)
	assert.Contains(t, sent.subject, "Tom & Jerry")
	assert.Contains(t, sent.body, "Tom &amp; Jerry")
	assert.Contains(t, sent.body, "&lt;Chapter 1&gt;")
	assert.Contains(t, sent.body, "84%")
	assert.Contains(t, sent.body, "4.13")
}

func TestWorker_HandleReadingLevelRebuild(t *testing.T) {
	rebuildTask := func(t *testing.T) *asynq.Task {
		task, err := tasks.NewReadingLevelRebuildTask(3)
		require.NoError(t, err)
		return task
	}

	tests := []struct {
		name          string
		task          func(t *testing.T) *asynq.Task
		recomputeErr  error
		expectedError bool
		skipRetry     bool
		expectedCalls []int
	}{
		{
			name:          "success",
			task:          rebuildTask,
			expectedCalls: []int{3},
		},
		{
			name: "invalid user id",
			task: func(t *testing.T) *asynq.Task {
				return asynq.NewTask(tasks.TypeReadingLevelRebuild, []byte(`{"user_id":0}`))
			},
			expectedError: true,
			skipRetry:     true,
		},
		{
			name:          "user deleted",
			task:          rebuildTask,
			recomputeErr:  fmt.Errorf("%w: %w", models.ErrNotFound, errors.New("user")),
			expectedCalls: []int{3},
		},
		{
			name:          "recompute failure is retried",
			task:          rebuildTask,
			recomputeErr:  errors.New("db down"),
			expectedError: true,
			expectedCalls: []int{3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recomputer := &mockRecomputer{level: 4.5, err: tt.recomputeErr}
			w := NewWorker(zap.NewNop(), &mockSessionSummaryRepository{}, recomputer, &mockMailer{})

			err := w.HandleReadingLevelRebuild(context.Background(), tt.task(t))

			if tt.expectedError {
				require.Error(t, err)
				assert.Equal(t, tt.skipRetry, errors.Is(err, asynq.SkipRetry))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expectedCalls, recomputer.calls)
		})
	}
}

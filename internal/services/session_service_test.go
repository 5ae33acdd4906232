package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/lunareading/backend/internal/evaluator"
	"github.com/lunareading/backend/internal/mastery"
	"github.com/lunareading/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockSessionRepository is a mock implementation of SessionRepository
type mockSessionRepository struct {
	session   *models.ReadingSession
	sessions  []models.SessionListItem
	err       error
	created   []models.GeneratedQuestion
	createErr error
}

func (m *mockSessionRepository) CreateWithQuestions(ctx context.Context, session *models.ReadingSession, generated []models.GeneratedQuestion) ([]models.Question, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	session.ID = 10
	m.created = generated
	questions := make([]models.Question, 0, len(generated))
	for i, g := range generated {
		questions = append(questions, models.Question{
			ID:             100 + i,
			SessionID:      session.ID,
			QuestionNumber: i + 1,
			QuestionText:   g.QuestionText,
			ModelAnswer:    g.ModelAnswer,
		})
	}
	return questions, nil
}

func (m *mockSessionRepository) GetByID(ctx context.Context, sessionID int) (*models.ReadingSession, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.session, nil
}

func (m *mockSessionRepository) ListByUser(ctx context.Context, userID int) ([]models.SessionListItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.sessions, nil
}

// mockSessionQuestionRepository is a mock implementation of SessionQuestionRepository
type mockSessionQuestionRepository struct {
	questions []models.Question
	err       error
}

func (m *mockSessionQuestionRepository) ListBySession(ctx context.Context, sessionID int) ([]models.Question, error) {
	return m.questions, m.err
}

// mockSessionAnswerRepository is a mock implementation of SessionAnswerRepository
type mockSessionAnswerRepository struct {
	answers []models.Answer
	err     error
}

func (m *mockSessionAnswerRepository) ListBySession(ctx context.Context, sessionID int) ([]models.Answer, error) {
	return m.answers, m.err
}

// mockGenerator is a mock implementation of QuestionGenerator
type mockGenerator struct {
	questions []models.GeneratedQuestion
	err       error
	lastReq   evaluator.GenerationRequest
	calls     int
}

func (m *mockGenerator) Generate(ctx context.Context, req evaluator.GenerationRequest) ([]models.GeneratedQuestion, error) {
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.questions, nil
}

func generatedQuestions(n int) []models.GeneratedQuestion {
	out := make([]models.GeneratedQuestion, n)
	for i := range out {
		out[i] = models.GeneratedQuestion{
			QuestionText: fmt.Sprintf("Question %d?", i+1),
			ModelAnswer:  fmt.Sprintf("Answer %d.", i+1),
		}
	}
	return out
}

func TestSessionService_Create(t *testing.T) {
	tests := []struct {
		name          string
		req           models.CreateSessionRequest
		generator     *mockGenerator
		createErr     error
		expectedError error
		expectedCount int
		expectGen     bool
	}{
		{
			name:          "default question count",
			req:           models.CreateSessionRequest{BookTitle: " Holes ", Chapter: "Chapter 2"},
			generator:     &mockGenerator{questions: generatedQuestions(5)},
			expectedCount: 5,
			expectGen:     true,
		},
		{
			name:          "extra generated questions are dropped",
			req:           models.CreateSessionRequest{BookTitle: "Holes", Chapter: "Chapter 2", TotalQuestions: 3},
			generator:     &mockGenerator{questions: generatedQuestions(4)},
			expectedCount: 3,
			expectGen:     true,
		},
		{
			name:          "too few generated questions",
			req:           models.CreateSessionRequest{BookTitle: "Holes", Chapter: "Chapter 2", TotalQuestions: 3},
			generator:     &mockGenerator{questions: generatedQuestions(2)},
			expectedError: models.ErrGeneratorFailure,
			expectGen:     true,
		},
		{
			name:          "generator fails",
			req:           models.CreateSessionRequest{BookTitle: "Holes", Chapter: "Chapter 2"},
			generator:     &mockGenerator{err: errors.New("timeout")},
			expectedError: models.ErrGeneratorFailure,
			expectGen:     true,
		},
		{
			name:          "missing book title",
			req:           models.CreateSessionRequest{BookTitle: "  ", Chapter: "Chapter 2"},
			generator:     &mockGenerator{},
			expectedError: models.ErrValidation,
		},
		{
			name:          "too many questions",
			req:           models.CreateSessionRequest{BookTitle: "Holes", Chapter: "Chapter 2", TotalQuestions: 21},
			generator:     &mockGenerator{},
			expectedError: models.ErrValidation,
		},
		{
			name:          "negative question count",
			req:           models.CreateSessionRequest{BookTitle: "Holes", Chapter: "Chapter 2", TotalQuestions: -1},
			generator:     &mockGenerator{},
			expectedError: models.ErrValidation,
		},
		{
			name:          "chapter too long",
			req:           models.CreateSessionRequest{BookTitle: "Holes", Chapter: strings.Repeat("c", 101)},
			generator:     &mockGenerator{},
			expectedError: models.ErrValidation,
		},
		{
			name:          "persistence fails",
			req:           models.CreateSessionRequest{BookTitle: "Holes", Chapter: "Chapter 2"},
			generator:     &mockGenerator{questions: generatedQuestions(5)},
			createErr:     errors.New("deadlock"),
			expectedError: nil,
			expectGen:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &mockSessionRepository{createErr: tt.createErr}
			users := &fakeUserStore{user: &models.User{ID: 1, GradeLevel: 6}}
			svc := NewSessionService(sessions, &mockSessionQuestionRepository{}, &mockSessionAnswerRepository{}, users, tt.generator, zap.NewNop())

			detail, err := svc.Create(context.Background(), 1, &tt.req)

			if tt.expectGen {
				assert.Equal(t, 1, tt.generator.calls)
			} else {
				assert.Equal(t, 0, tt.generator.calls)
			}

			if tt.expectedError != nil || tt.createErr != nil {
				require.Error(t, err)
				if tt.expectedError != nil {
					assert.ErrorIs(t, err, tt.expectedError)
				}
				assert.Nil(t, detail)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, 10, detail.ID)
			assert.Equal(t, "Holes", detail.BookTitle)
			assert.Equal(t, tt.expectedCount, detail.TotalQuestions)
			assert.Len(t, detail.Questions, tt.expectedCount)
			assert.Len(t, sessions.created, tt.expectedCount)
			assert.Equal(t, 6, tt.generator.lastReq.GradeLevel)
			for _, q := range detail.Questions {
				assert.Equal(t, models.StateNotAttempted, q.State)
				assert.Equal(t, []models.SubmissionType{models.SubmissionInitial}, q.LegalSubmissions)
			}
		})
	}
}

func TestSessionService_Get(t *testing.T) {
	questions := []models.Question{
		{ID: 100, SessionID: 10, QuestionNumber: 1},
		{ID: 101, SessionID: 10, QuestionNumber: 2},
		{ID: 102, SessionID: 10, QuestionNumber: 3},
	}
	answers := []models.Answer{
		{ID: 1, QuestionID: 100, SubmissionType: models.SubmissionInitial, Score: 0.4, Feedback: "first", Examples: []string{"e1"}},
		{ID: 3, QuestionID: 100, SubmissionType: models.SubmissionRetry, Score: 0.9, IsSufficient: true, IsTerminal: true, Feedback: "second"},
		{ID: 2, QuestionID: 101, SubmissionType: models.SubmissionInitial, Score: 0.3, Feedback: "try again"},
	}

	svc := NewSessionService(
		&mockSessionRepository{session: &models.ReadingSession{ID: 10, UserID: 1, TotalQuestions: 3}},
		&mockSessionQuestionRepository{questions: questions},
		&mockSessionAnswerRepository{answers: answers},
		&fakeUserStore{},
		&mockGenerator{},
		zap.NewNop(),
	)

	detail, err := svc.Get(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, detail.Questions, 3)

	assert.Equal(t, models.StateSufficient, detail.Questions[0].State)
	assert.Empty(t, detail.Questions[0].LegalSubmissions)
	assert.Equal(t, "second", detail.Questions[0].Feedback)
	assert.Equal(t, []string{"e1"}, detail.Questions[0].Examples)

	assert.Equal(t, models.StateAwaitingRetry, detail.Questions[1].State)
	assert.Equal(t, "try again", detail.Questions[1].Feedback)

	assert.Equal(t, models.StateNotAttempted, detail.Questions[2].State)
	assert.Equal(t, []models.SubmissionType{models.SubmissionInitial}, detail.Questions[2].LegalSubmissions)

	_, err = svc.Get(context.Background(), 2, 10)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestSessionService_GetCorruptHistory(t *testing.T) {
	svc := NewSessionService(
		&mockSessionRepository{session: &models.ReadingSession{ID: 10, UserID: 1}},
		&mockSessionQuestionRepository{questions: []models.Question{{ID: 100}}},
		&mockSessionAnswerRepository{answers: []models.Answer{{QuestionID: 100, SubmissionType: models.SubmissionFinal}}},
		&fakeUserStore{},
		&mockGenerator{},
		zap.NewNop(),
	)

	_, err := svc.Get(context.Background(), 1, 10)
	assert.ErrorIs(t, err, mastery.ErrCorruptHistory)
}

func TestSessionService_List(t *testing.T) {
	sessions := &mockSessionRepository{sessions: []models.SessionListItem{{CompletedQuestions: 2}}}
	svc := NewSessionService(sessions, &mockSessionQuestionRepository{}, &mockSessionAnswerRepository{}, &fakeUserStore{}, &mockGenerator{}, zap.NewNop())

	items, err := svc.List(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	sessions.err = errors.New("db down")
	_, err = svc.List(context.Background(), 1)
	assert.Error(t, err)
}

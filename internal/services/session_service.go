package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lunareading/backend/internal/evaluator"
	"github.com/lunareading/backend/internal/mastery"
	"github.com/lunareading/backend/internal/models"
	"go.uber.org/zap"
)

const (
	defaultQuestionCount = 5
	maxQuestionCount     = 20
	maxBookTitleLength   = 200
	maxChapterLength     = 100
)

// SessionRepository is the interface that wraps methods for ReadingSession table data access
type SessionRepository interface {
	// CreateWithQuestions stores the session and its questions atomically and sets session.ID
	CreateWithQuestions(ctx context.Context, session *models.ReadingSession, generated []models.GeneratedQuestion) ([]models.Question, error)
	// GetByID returns a session or an error wrapping models.ErrNotFound
	GetByID(ctx context.Context, sessionID int) (*models.ReadingSession, error)
	// ListByUser returns the sessions of a user, newest first
	ListByUser(ctx context.Context, userID int) ([]models.SessionListItem, error)
}

// SessionQuestionRepository lists the questions of a session
type SessionQuestionRepository interface {
	ListBySession(ctx context.Context, sessionID int) ([]models.Question, error)
}

// SessionAnswerRepository lists the answers of a session grouped by question
type SessionAnswerRepository interface {
	ListBySession(ctx context.Context, sessionID int) ([]models.Answer, error)
}

// UserGetter retrieves a user by ID
type UserGetter interface {
	GetByID(ctx context.Context, userID int) (*models.User, error)
}

// QuestionGenerator writes comprehension questions for a chapter
type QuestionGenerator interface {
	Generate(ctx context.Context, req evaluator.GenerationRequest) ([]models.GeneratedQuestion, error)
}

// sessionService implements SessionService
type sessionService struct {
	sessionRepo  SessionRepository
	questionRepo SessionQuestionRepository
	answerRepo   SessionAnswerRepository
	userRepo     UserGetter
	generator    QuestionGenerator
	logger       *zap.Logger
}

// NewSessionService creates a new reading session service
func NewSessionService(
	sessionRepo SessionRepository,
	questionRepo SessionQuestionRepository,
	answerRepo SessionAnswerRepository,
	userRepo UserGetter,
	generator QuestionGenerator,
	logger *zap.Logger,
) *sessionService {
	return &sessionService{
		sessionRepo:  sessionRepo,
		questionRepo: questionRepo,
		answerRepo:   answerRepo,
		userRepo:     userRepo,
		generator:    generator,
		logger:       logger,
	}
}

// Create starts a reading session with freshly generated questions
func (s *sessionService) Create(ctx context.Context, userID int, req *models.CreateSessionRequest) (*models.SessionDetail, error) {
	bookTitle := strings.TrimSpace(req.BookTitle)
	chapter := strings.TrimSpace(req.Chapter)
	if bookTitle == "" || chapter == "" {
		return nil, fmt.Errorf("%w: book title and chapter are required", models.ErrValidation)
	}
	if utf8.RuneCountInString(bookTitle) > maxBookTitleLength {
		return nil, fmt.Errorf("%w: book title is longer than %d characters", models.ErrValidation, maxBookTitleLength)
	}
	if utf8.RuneCountInString(chapter) > maxChapterLength {
		return nil, fmt.Errorf("%w: chapter is longer than %d characters", models.ErrValidation, maxChapterLength)
	}

	count := req.TotalQuestions
	if count == 0 {
		count = defaultQuestionCount
	}
	if count < 1 || count > maxQuestionCount {
		return nil, fmt.Errorf("%w: total questions must be between 1 and %d", models.ErrValidation, maxQuestionCount)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	generated, err := s.generator.Generate(ctx, evaluator.GenerationRequest{
		BookTitle:  bookTitle,
		Chapter:    chapter,
		GradeLevel: user.GradeLevel,
		Count:      count,
	})
	if err != nil {
		s.logger.Warn("question generation failed", zap.Int("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", models.ErrGeneratorFailure, err)
	}
	if len(generated) < count {
		s.logger.Warn("generator returned too few questions",
			zap.Int("requested", count),
			zap.Int("returned", len(generated)),
		)
		return nil, fmt.Errorf("%w: %d of %d questions returned", models.ErrGeneratorFailure, len(generated), count)
	}
	generated = generated[:count]

	session := &models.ReadingSession{
		UserID:         userID,
		BookTitle:      bookTitle,
		Chapter:        chapter,
		TotalQuestions: count,
		CreatedAt:      time.Now().UTC(),
	}
	questions, err := s.sessionRepo.CreateWithQuestions(ctx, session, generated)
	if err != nil {
		return nil, err
	}

	s.logger.Info("reading session created",
		zap.Int("user_id", userID),
		zap.Int("session_id", session.ID),
		zap.Int("questions", len(questions)),
	)

	views := make([]models.QuestionView, 0, len(questions))
	for _, q := range questions {
		q.CreatedAt = session.CreatedAt
		view, err := buildQuestionView(q, nil)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}

	return &models.SessionDetail{ReadingSession: *session, Questions: views}, nil
}

// List returns the sessions of a user with their progress
func (s *sessionService) List(ctx context.Context, userID int) ([]models.SessionListItem, error) {
	return s.sessionRepo.ListByUser(ctx, userID)
}

// Get returns a session owned by the user with the derived state of every question
func (s *sessionService) Get(ctx context.Context, userID, sessionID int) (*models.SessionDetail, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, fmt.Errorf("session %w", models.ErrForbidden)
	}

	questions, err := s.questionRepo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	answers, err := s.answerRepo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	byQuestion := make(map[int][]models.Answer, len(questions))
	for _, a := range answers {
		byQuestion[a.QuestionID] = append(byQuestion[a.QuestionID], a)
	}

	views := make([]models.QuestionView, 0, len(questions))
	for _, q := range questions {
		view, err := buildQuestionView(q, byQuestion[q.ID])
		if err != nil {
			s.logger.Error("cannot replay answer log", zap.Int("question_id", q.ID), zap.Error(err))
			return nil, err
		}
		views = append(views, view)
	}

	return &models.SessionDetail{ReadingSession: *session, Questions: views}, nil
}

// buildQuestionView derives the state of a question from its answer log.
// Feedback comes from the latest answer, examples from the initial one.
func buildQuestionView(q models.Question, history []models.Answer) (models.QuestionView, error) {
	state, err := mastery.DeriveState(history)
	if err != nil {
		return models.QuestionView{}, err
	}

	view := models.QuestionView{
		Question:         q,
		State:            state,
		LegalSubmissions: mastery.LegalSubmissions(state),
	}
	if len(history) > 0 {
		view.Feedback = history[len(history)-1].Feedback
	}
	for _, a := range history {
		if a.SubmissionType == models.SubmissionInitial {
			view.Examples = a.Examples
			break
		}
	}
	return view, nil
}

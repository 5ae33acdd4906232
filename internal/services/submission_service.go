package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lunareading/backend/internal/mastery"
	"github.com/lunareading/backend/internal/models"
	"go.uber.org/zap"
)

// maxAnswerRunes bounds the answer text sent to the evaluator
const maxAnswerRunes = 5000

// readingLevelPendingWarning is shown when the answer was stored but the reading level was not refreshed
const readingLevelPendingWarning = "answer recorded, reading level will be updated shortly"

// QuestionContextRepository is the interface that wraps the question lookup of answer submission
type QuestionContextRepository interface {
	// GetContext returns a question joined with its session owner, book and the owner's grade level.
	//
	// If the question does not exist, an error wrapping models.ErrNotFound is returned.
	GetContext(ctx context.Context, questionID int) (*models.QuestionContext, error)
}

// AnswerRepository is the interface that wraps methods for Answer table data access
type AnswerRepository interface {
	// ListByQuestion returns the answer log of a question, oldest first
	ListByQuestion(ctx context.Context, questionID int) ([]models.Answer, error)
	// Append stores the answer if the log still holds priorCount answers and
	// reports whether the session was completed by it.
	//
	// If the log has grown, mastery.ErrPersistenceConflict is returned and nothing is written.
	Append(ctx context.Context, answer *models.Answer, priorCount int) (bool, error)
}

// AnswerEvaluator grades a free-text answer
type AnswerEvaluator interface {
	Evaluate(ctx context.Context, req models.EvaluationRequest) (*models.Evaluation, error)
}

// ReadingLevelRecomputer rebuilds the reading level of a user
type ReadingLevelRecomputer interface {
	Recompute(ctx context.Context, userID int) (float64, error)
}

// TaskDispatcher submits background jobs
type TaskDispatcher interface {
	SessionCompleted(ctx context.Context, userID, sessionID int) error
	RebuildReadingLevel(ctx context.Context, userID int) error
}

// submissionService implements SubmissionService
type submissionService struct {
	questionRepo QuestionContextRepository
	answerRepo   AnswerRepository
	evaluator    AnswerEvaluator
	readingLevel ReadingLevelRecomputer
	dispatcher   TaskDispatcher
	machine      *mastery.Machine
	logger       *zap.Logger
	now          func() time.Time
}

// NewSubmissionService creates a new answer submission service
func NewSubmissionService(
	questionRepo QuestionContextRepository,
	answerRepo AnswerRepository,
	evaluator AnswerEvaluator,
	readingLevel ReadingLevelRecomputer,
	dispatcher TaskDispatcher,
	machine *mastery.Machine,
	logger *zap.Logger,
) *submissionService {
	return &submissionService{
		questionRepo: questionRepo,
		answerRepo:   answerRepo,
		evaluator:    evaluator,
		readingLevel: readingLevel,
		dispatcher:   dispatcher,
		machine:      machine,
		logger:       logger,
		now:          time.Now,
	}
}

// SubmitAnswer grades an answer and records it.
//
// The order of checks is fixed: text encoding, empty text, text length, submission type, ownership, legality
// in the question's state, evaluation. The evaluator is called outside any transaction
// and nothing is stored if it fails.
//
// When the answer is recorded but the reading level could not be refreshed, both the
// result and an error wrapping mastery.ErrReadingLevelUpdateFailure are returned.
func (s *submissionService) SubmitAnswer(ctx context.Context, userID, questionID int, req *models.SubmitAnswerRequest) (*models.SubmissionResult, error) {
	if !utf8.ValidString(req.AnswerText) {
		return nil, fmt.Errorf("%w: answer is not valid UTF-8", models.ErrValidation)
	}
	text := strings.TrimSpace(req.AnswerText)
	if text == "" {
		return nil, mastery.ErrEmptyAnswer
	}
	if utf8.RuneCountInString(text) > maxAnswerRunes {
		return nil, fmt.Errorf("%w: answer must be at most %d characters", models.ErrValidation, maxAnswerRunes)
	}

	submissionType, err := mastery.ParseSubmissionType(strings.TrimSpace(req.SubmissionType))
	if err != nil {
		return nil, err
	}

	question, err := s.ownedQuestion(ctx, userID, questionID)
	if err != nil {
		return nil, err
	}

	history, err := s.answerRepo.ListByQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	state, err := mastery.DeriveState(history)
	if err != nil {
		s.logger.Error("cannot replay answer log", zap.Int("question_id", questionID), zap.Error(err))
		return nil, err
	}

	pending, err := mastery.Begin(state, submissionType)
	if err != nil {
		return nil, err
	}

	evalReq := models.EvaluationRequest{
		SubmissionType: submissionType,
		BookTitle:      question.BookTitle,
		Chapter:        question.Chapter,
		GradeLevel:     question.GradeLevel,
		QuestionText:   question.QuestionText,
		ModelAnswer:    question.ModelAnswer,
		AnswerText:     text,
		Threshold:      s.machine.Threshold(),
	}
	if len(history) > 0 {
		previous := history[len(history)-1]
		evalReq.PreviousAnswer = &previous
	}

	evaluation, err := s.evaluator.Evaluate(ctx, evalReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.Warn("answer evaluation failed", zap.Int("question_id", questionID), zap.Error(err))
		if errors.Is(err, mastery.ErrEvaluatorFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", mastery.ErrEvaluatorFailure, err)
	}
	if err := mastery.ValidateEvaluation(evaluation); err != nil {
		s.logger.Warn("invalid evaluation", zap.Int("question_id", questionID), zap.Error(err))
		return nil, err
	}

	// The caller is gone, nothing must be stored.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sufficient := s.machine.IsSufficient(evaluation.Score)
	next, err := mastery.Resolve(pending, submissionType, sufficient)
	if err != nil {
		return nil, err
	}

	answer := &models.Answer{
		QuestionID:     questionID,
		AnswerText:     text,
		SubmissionType: submissionType,
		Score:          evaluation.Score,
		Rating:         evaluation.Rating,
		Feedback:       evaluation.Feedback,
		Examples:       evaluation.Examples,
		IsSufficient:   sufficient,
		IsTerminal:     mastery.IsTerminal(next),
		CreatedAt:      s.now().UTC(),
	}

	sessionCompleted, err := s.answerRepo.Append(ctx, answer, len(history))
	if errors.Is(err, mastery.ErrPersistenceConflict) {
		return nil, s.conflictError(ctx, questionID)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("answer recorded",
		zap.Int("user_id", userID),
		zap.Int("question_id", questionID),
		zap.Int("answer_id", answer.ID),
		zap.String("submission_type", string(submissionType)),
		zap.Float64("score", answer.Score),
		zap.String("state", string(next)),
	)

	result := &models.SubmissionResult{
		Answer:           answer,
		QuestionState:    next,
		LegalSubmissions: mastery.LegalSubmissions(next),
		SessionCompleted: sessionCompleted,
	}

	if sessionCompleted {
		if err := s.dispatcher.SessionCompleted(ctx, userID, question.SessionID); err != nil {
			s.logger.Warn("failed to enqueue session summary", zap.Int("session_id", question.SessionID), zap.Error(err))
		}
	}

	if !answer.IsTerminal {
		return result, nil
	}

	level, err := s.readingLevel.Recompute(ctx, userID)
	if err != nil {
		s.logger.Error("failed to update reading level", zap.Int("user_id", userID), zap.Error(err))
		result.Warning = readingLevelPendingWarning
		if derr := s.dispatcher.RebuildReadingLevel(ctx, userID); derr != nil {
			s.logger.Error("failed to enqueue reading level rebuild", zap.Int("user_id", userID), zap.Error(derr))
		}
		if !errors.Is(err, mastery.ErrReadingLevelUpdateFailure) {
			err = fmt.Errorf("%w: %w", mastery.ErrReadingLevelUpdateFailure, err)
		}
		return result, err
	}
	result.ReadingLevel = &level

	return result, nil
}

// ListAnswers returns the answer log of a question owned by the user, oldest first
func (s *submissionService) ListAnswers(ctx context.Context, userID, questionID int) ([]models.Answer, error) {
	if _, err := s.ownedQuestion(ctx, userID, questionID); err != nil {
		return nil, err
	}
	return s.answerRepo.ListByQuestion(ctx, questionID)
}

func (s *submissionService) ownedQuestion(ctx context.Context, userID, questionID int) (*models.QuestionContext, error) {
	question, err := s.questionRepo.GetContext(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if question.UserID != userID {
		return nil, fmt.Errorf("question %w", models.ErrForbidden)
	}
	return question, nil
}

// conflictError describes a lost race. When the winner completed the question the
// error also wraps mastery.ErrQuestionAlreadyComplete.
func (s *submissionService) conflictError(ctx context.Context, questionID int) error {
	history, err := s.answerRepo.ListByQuestion(ctx, questionID)
	if err != nil {
		return mastery.ErrPersistenceConflict
	}
	state, err := mastery.DeriveState(history)
	if err != nil || !mastery.IsTerminal(state) {
		return mastery.ErrPersistenceConflict
	}
	return fmt.Errorf("%w: %w", mastery.ErrPersistenceConflict, mastery.ErrQuestionAlreadyComplete)
}

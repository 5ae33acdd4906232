package services

import (
	"context"
	"fmt"

	"github.com/lunareading/backend/internal/mastery"
	"github.com/lunareading/backend/internal/models"
	"go.uber.org/zap"
)

// ReadingLevelUserRepository is the interface that wraps the User table access of the reading level recompute
type ReadingLevelUserRepository interface {
	GetByID(ctx context.Context, userID int) (*models.User, error)
	UpdateReadingLevel(ctx context.Context, userID int, readingLevel float64) error
}

// TerminalScoreRepository is the interface that wraps the score history lookup
type TerminalScoreRepository interface {
	// GetTerminalScores returns the score of every answer that left its question in a terminal state
	GetTerminalScores(ctx context.Context, userID int) ([]float64, error)
}

// UserCacheInvalidator drops cached user data
type UserCacheInvalidator interface {
	Delete(ctx context.Context, userID int) error
}

// readingLevelService implements ReadingLevelService
type readingLevelService struct {
	userRepo   ReadingLevelUserRepository
	answerRepo TerminalScoreRepository
	cache      UserCacheInvalidator
	threshold  float64
	logger     *zap.Logger
}

// NewReadingLevelService creates a new reading level service
func NewReadingLevelService(
	userRepo ReadingLevelUserRepository,
	answerRepo TerminalScoreRepository,
	cache UserCacheInvalidator,
	threshold float64,
	logger *zap.Logger,
) *readingLevelService {
	return &readingLevelService{
		userRepo:   userRepo,
		answerRepo: answerRepo,
		cache:      cache,
		threshold:  threshold,
		logger:     logger,
	}
}

// Recompute rebuilds the reading level of a user from the full terminal score history and stores it.
// Any failure is returned wrapped in mastery.ErrReadingLevelUpdateFailure.
func (s *readingLevelService) Recompute(ctx context.Context, userID int) (float64, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", mastery.ErrReadingLevelUpdateFailure, err)
	}

	scores, err := s.answerRepo.GetTerminalScores(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", mastery.ErrReadingLevelUpdateFailure, err)
	}

	level := mastery.ReadingLevel(user.GradeLevel, user.ReadingLevel, scores, s.threshold)
	if level == user.ReadingLevel {
		return level, nil
	}

	if err := s.userRepo.UpdateReadingLevel(ctx, userID, level); err != nil {
		return 0, fmt.Errorf("%w: %w", mastery.ErrReadingLevelUpdateFailure, err)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, userID); err != nil {
			s.logger.Warn("failed to invalidate user cache", zap.Int("user_id", userID), zap.Error(err))
		}
	}

	s.logger.Info("reading level updated",
		zap.Int("user_id", userID),
		zap.Float64("previous", user.ReadingLevel),
		zap.Float64("reading_level", level),
		zap.Int("scores", len(scores)),
	)
	return level, nil
}

package services

import (
	"context"

	"github.com/lunareading/backend/internal/models"
	"go.uber.org/zap"
)

// ProfileUserRepository is the interface that wraps methods for User table data access needed by profile service
type ProfileUserRepository interface {
	// GetByID retrieves a user by ID
	//
	// If user with such ID does not exist, an error wrapping models.ErrNotFound is returned.
	GetByID(ctx context.Context, userID int) (*models.User, error)
	// UpdateGradeLevel sets the grade level of a user
	UpdateGradeLevel(ctx context.Context, userID int, gradeLevel int) error
}

// UserCache keeps user profiles between requests
type UserCache interface {
	// Get returns the cached user, or nil on a miss
	Get(ctx context.Context, userID int) (*models.User, error)
	// Version returns the invalidation version to pass to Set, read before loading the user
	Version(ctx context.Context, userID int) (int64, error)
	Set(ctx context.Context, user *models.User, version int64) error
	Delete(ctx context.Context, userID int) error
}

// profileService implements ProfileService
type profileService struct {
	userRepo     ProfileUserRepository
	cache        UserCache
	readingLevel ReadingLevelRecomputer
	dispatcher   TaskDispatcher
	logger       *zap.Logger
}

// NewProfileService creates a new profile service
func NewProfileService(
	userRepo ProfileUserRepository,
	cache UserCache,
	readingLevel ReadingLevelRecomputer,
	dispatcher TaskDispatcher,
	logger *zap.Logger,
) *profileService {
	return &profileService{
		userRepo:     userRepo,
		cache:        cache,
		readingLevel: readingLevel,
		dispatcher:   dispatcher,
		logger:       logger,
	}
}

// GetProfile returns the user, served from the cache when possible
func (s *profileService) GetProfile(ctx context.Context, userID int) (*models.User, error) {
	cached, err := s.cache.Get(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to read user cache", zap.Int("user_id", userID), zap.Error(err))
	}
	if cached != nil {
		return cached, nil
	}

	version, versionErr := s.cache.Version(ctx, userID)
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if versionErr != nil {
		s.logger.Warn("failed to read user cache version", zap.Int("user_id", userID), zap.Error(versionErr))
		return user, nil
	}
	if err := s.cache.Set(ctx, user, version); err != nil {
		s.logger.Warn("failed to cache user", zap.Int("user_id", userID), zap.Error(err))
	}
	return user, nil
}

// UpdateProfile changes the grade level of the user and recomputes the reading level against it
func (s *profileService) UpdateProfile(ctx context.Context, userID int, req *models.UpdateProfileRequest) (*models.User, error) {
	if err := validateGradeLevel(req.GradeLevel); err != nil {
		return nil, err
	}

	if err := s.userRepo.UpdateGradeLevel(ctx, userID, req.GradeLevel); err != nil {
		return nil, err
	}
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.logger.Warn("failed to invalidate user cache", zap.Int("user_id", userID), zap.Error(err))
	}

	if _, err := s.readingLevel.Recompute(ctx, userID); err != nil {
		s.logger.Error("failed to update reading level", zap.Int("user_id", userID), zap.Error(err))
		if derr := s.dispatcher.RebuildReadingLevel(ctx, userID); derr != nil {
			s.logger.Error("failed to enqueue reading level rebuild", zap.Int("user_id", userID), zap.Error(derr))
		}
	}

	return s.userRepo.GetByID(ctx, userID)
}

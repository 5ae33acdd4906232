package services

import (
	"context"
	"errors"
	"testing"

	"github.com/lunareading/backend/internal/mastery"
	"github.com/lunareading/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeUserStore keeps one user in memory
type fakeUserStore struct {
	user         *models.User
	getErr       error
	updateErr    error
	levelUpdates []float64
	gradeUpdates []int
}

func (f *fakeUserStore) GetByID(ctx context.Context, userID int) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.user == nil || f.user.ID != userID {
		return nil, models.ErrNotFound
	}
	u := *f.user
	return &u, nil
}

func (f *fakeUserStore) UpdateReadingLevel(ctx context.Context, userID int, readingLevel float64) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.user.ReadingLevel = readingLevel
	f.levelUpdates = append(f.levelUpdates, readingLevel)
	return nil
}

func (f *fakeUserStore) UpdateGradeLevel(ctx context.Context, userID int, gradeLevel int) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.user.GradeLevel = gradeLevel
	f.gradeUpdates = append(f.gradeUpdates, gradeLevel)
	return nil
}

// mockScoreRepository is a mock implementation of TerminalScoreRepository
type mockScoreRepository struct {
	scores []float64
	err    error
}

func (m *mockScoreRepository) GetTerminalScores(ctx context.Context, userID int) ([]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.scores, nil
}

// mockCacheInvalidator records invalidated users
type mockCacheInvalidator struct {
	deleted []int
	err     error
}

func (m *mockCacheInvalidator) Delete(ctx context.Context, userID int) error {
	m.deleted = append(m.deleted, userID)
	return m.err
}

func TestReadingLevelService_Recompute(t *testing.T) {
	tests := []struct {
		name            string
		users           *fakeUserStore
		scores          *mockScoreRepository
		expectedLevel   float64
		expectedError   bool
		expectedUpdates int
	}{
		{
			name:            "deterministic over terminal scores",
			users:           &fakeUserStore{user: &models.User{ID: 1, GradeLevel: 4, ReadingLevel: 3.2}},
			scores:          &mockScoreRepository{scores: []float64{0.9, 0.6, 0.75}},
			expectedLevel:   4.13,
			expectedUpdates: 1,
		},
		{
			name:          "no terminal answers keeps current level",
			users:         &fakeUserStore{user: &models.User{ID: 1, GradeLevel: 4, ReadingLevel: 3.2}},
			scores:        &mockScoreRepository{},
			expectedLevel: 3.2,
		},
		{
			name:          "user lookup fails",
			users:         &fakeUserStore{getErr: errors.New("db down")},
			scores:        &mockScoreRepository{},
			expectedError: true,
		},
		{
			name:          "score lookup fails",
			users:         &fakeUserStore{user: &models.User{ID: 1, GradeLevel: 4}},
			scores:        &mockScoreRepository{err: errors.New("db down")},
			expectedError: true,
		},
		{
			name:          "update fails",
			users:         &fakeUserStore{user: &models.User{ID: 1, GradeLevel: 4}, updateErr: errors.New("db down")},
			scores:        &mockScoreRepository{scores: []float64{0.9}},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := &mockCacheInvalidator{}
			svc := NewReadingLevelService(tt.users, tt.scores, cache, mastery.DefaultSufficiencyThreshold, zap.NewNop())

			level, err := svc.Recompute(context.Background(), 1)

			if tt.expectedError {
				assert.ErrorIs(t, err, mastery.ErrReadingLevelUpdateFailure)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expectedLevel, level, 1e-9)
			assert.Len(t, tt.users.levelUpdates, tt.expectedUpdates)
			assert.Len(t, cache.deleted, tt.expectedUpdates)
		})
	}
}

func TestReadingLevelService_RecomputeIsIdempotent(t *testing.T) {
	users := &fakeUserStore{user: &models.User{ID: 1, GradeLevel: 4, ReadingLevel: 3.2}}
	scores := &mockScoreRepository{scores: []float64{0.9, 0.6, 0.75}}
	svc := NewReadingLevelService(users, scores, &mockCacheInvalidator{}, mastery.DefaultSufficiencyThreshold, zap.NewNop())

	first, err := svc.Recompute(context.Background(), 1)
	require.NoError(t, err)
	second, err := svc.Recompute(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, users.levelUpdates, 1)

	// one more terminal answer: the level follows the new mean, not the previous output
	scores.scores = append(scores.scores, 0.2)
	third, err := svc.Recompute(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, mastery.ReadingLevel(4, 0, scores.scores, mastery.DefaultSufficiencyThreshold), third)
	assert.Less(t, third, second)
}

func TestReadingLevelService_CacheFailureIsNotFatal(t *testing.T) {
	users := &fakeUserStore{user: &models.User{ID: 1, GradeLevel: 4}}
	cache := &mockCacheInvalidator{err: errors.New("redis down")}
	svc := NewReadingLevelService(users, &mockScoreRepository{scores: []float64{0.7}}, cache, mastery.DefaultSufficiencyThreshold, zap.NewNop())

	level, err := svc.Recompute(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, 4.0, level)
	assert.Equal(t, []int{1}, cache.deleted)
}

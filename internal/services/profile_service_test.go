package services

import (
	"context"
	"errors"
	"testing"

	"github.com/lunareading/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockUserCache is a mock implementation of UserCache
type mockUserCache struct {
	cached     *models.User
	version    int64
	getErr     error
	versionErr error
	setErr     error
	stored     []*models.User
	versions   []int64
	deleted    []int
}

func (m *mockUserCache) Get(ctx context.Context, userID int) (*models.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.cached, nil
}

func (m *mockUserCache) Version(ctx context.Context, userID int) (int64, error) {
	return m.version, m.versionErr
}

func (m *mockUserCache) Set(ctx context.Context, user *models.User, version int64) error {
	m.stored = append(m.stored, user)
	m.versions = append(m.versions, version)
	return m.setErr
}

func (m *mockUserCache) Delete(ctx context.Context, userID int) error {
	m.deleted = append(m.deleted, userID)
	return nil
}

func TestProfileService_GetProfile(t *testing.T) {
	tests := []struct {
		name           string
		cache          *mockUserCache
		users          *fakeUserStore
		expectedName   string
		expectedError  bool
		expectedStored int
	}{
		{
			name:         "cache hit",
			cache:        &mockUserCache{cached: &models.User{ID: 1, Username: "cached"}},
			users:        &fakeUserStore{getErr: errors.New("must not be called")},
			expectedName: "cached",
		},
		{
			name:           "cache miss loads and stores",
			cache:          &mockUserCache{},
			users:          &fakeUserStore{user: &models.User{ID: 1, Username: "stored"}},
			expectedName:   "stored",
			expectedStored: 1,
		},
		{
			name:           "cache failure falls back to database",
			cache:          &mockUserCache{getErr: errors.New("redis down"), setErr: errors.New("redis down")},
			users:          &fakeUserStore{user: &models.User{ID: 1, Username: "stored"}},
			expectedName:   "stored",
			expectedStored: 1,
		},
		{
			name:           "cache stored with version read before loading",
			cache:          &mockUserCache{version: 7},
			users:          &fakeUserStore{user: &models.User{ID: 1, Username: "stored"}},
			expectedName:   "stored",
			expectedStored: 1,
		},
		{
			name:           "unknown cache version skips caching",
			cache:          &mockUserCache{versionErr: errors.New("redis down")},
			users:          &fakeUserStore{user: &models.User{ID: 1, Username: "stored"}},
			expectedName:   "stored",
			expectedStored: 0,
		},
		{
			name:          "user not found",
			cache:         &mockUserCache{},
			users:         &fakeUserStore{},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewProfileService(tt.users, tt.cache, &mockRecomputer{}, &mockDispatcher{}, zap.NewNop())

			user, err := svc.GetProfile(context.Background(), 1)

			if tt.expectedError {
				assert.ErrorIs(t, err, models.ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedName, user.Username)
			assert.Len(t, tt.cache.stored, tt.expectedStored)
			for _, v := range tt.cache.versions {
				assert.Equal(t, tt.cache.version, v)
			}
		})
	}
}

func TestProfileService_UpdateProfile(t *testing.T) {
	tests := []struct {
		name             string
		gradeLevel       int
		recomputer       *mockRecomputer
		expectedError    error
		expectedRebuilds int
	}{
		{
			name:       "success",
			gradeLevel: 6,
			recomputer: &mockRecomputer{level: 6},
		},
		{
			name:             "recompute failure schedules a rebuild",
			gradeLevel:       6,
			recomputer:       &mockRecomputer{err: errors.New("db down")},
			expectedRebuilds: 1,
		},
		{
			name:          "invalid grade level",
			gradeLevel:    0,
			recomputer:    &mockRecomputer{},
			expectedError: models.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &fakeUserStore{user: &models.User{ID: 1, GradeLevel: 5}}
			cache := &mockUserCache{}
			dispatcher := &mockDispatcher{}
			svc := NewProfileService(users, cache, tt.recomputer, dispatcher, zap.NewNop())

			user, err := svc.UpdateProfile(context.Background(), 1, &models.UpdateProfileRequest{GradeLevel: tt.gradeLevel})

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Empty(t, users.gradeUpdates)
				assert.Equal(t, 0, tt.recomputer.calls)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.gradeLevel, user.GradeLevel)
			assert.Equal(t, []int{1}, cache.deleted)
			assert.Equal(t, 1, tt.recomputer.calls)
			assert.Len(t, dispatcher.rebuilds, tt.expectedRebuilds)
		})
	}
}

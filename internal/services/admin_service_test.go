package services

import (
	"context"
	"errors"
	"testing"

	"github.com/lunareading/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockAdminUserRepository is a mock implementation of AdminUserRepository
type mockAdminUserRepository struct {
	users []models.UserStats
	err   error
}

func (m *mockAdminUserRepository) ListWithStats(ctx context.Context) ([]models.UserStats, error) {
	return m.users, m.err
}

func TestAdminService_ListUsers(t *testing.T) {
	score := 0.8
	repo := &mockAdminUserRepository{users: []models.UserStats{{ID: 1, AverageScore: &score}, {ID: 2}}}
	svc := NewAdminService(repo)

	users, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 2)

	repo.err = errors.New("db down")
	_, err = svc.ListUsers(context.Background())
	assert.Error(t, err)
}

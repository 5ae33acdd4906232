package services

import (
	"context"

	"github.com/lunareading/backend/internal/models"
)

// AdminUserRepository is the interface that wraps the user overview query
type AdminUserRepository interface {
	ListWithStats(ctx context.Context) ([]models.UserStats, error)
}

// adminService implements AdminService
type adminService struct {
	userRepo AdminUserRepository
}

// NewAdminService creates a new admin service
func NewAdminService(userRepo AdminUserRepository) *adminService {
	return &adminService{userRepo: userRepo}
}

// ListUsers returns every user with session and score statistics
func (s *adminService) ListUsers(ctx context.Context) ([]models.UserStats, error) {
	return s.userRepo.ListWithStats(ctx)
}

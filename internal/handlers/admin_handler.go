package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lunareading/backend/internal/models"
	"go.uber.org/zap"
)

// AdminService is the interface that wraps methods for the admin overview
type AdminService interface {
	// ListUsers returns every user with session and score statistics
	ListUsers(ctx context.Context) ([]models.UserStats, error)
}

// AdminHandler handles admin HTTP requests
type AdminHandler struct {
	BaseHandler
	adminService AdminService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(adminService AdminService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		BaseHandler:  BaseHandler{Logger: logger},
		adminService: adminService,
	}
}

// RegisterRoutes registers all admin handler routes
func (h *AdminHandler) RegisterRoutes(r chi.Router, apiKeyMiddleware func(http.Handler) http.Handler) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(apiKeyMiddleware)
		r.Get("/users", h.ListUsers)
	})
}

// ListUsers handles GET /admin/users
// @Summary List users with statistics
// @Tags admin
// @Produce json
// @Param X-API-Key header string true "Admin API key"
// @Success 200 {array} models.UserStats
// @Failure 401 {object} map[string]string "Invalid API key"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.adminService.ListUsers(r.Context())
	if err != nil {
		h.RespondServiceError(w, err, "list users")
		return
	}

	h.RespondJSON(w, http.StatusOK, users)
}

package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lunareading/backend/internal/models"
	"go.uber.org/zap"
)

// SessionService is the interface that wraps methods for reading session business logic
type SessionService interface {
	// Create starts a session with generated questions
	//
	// If the question generator fails, an error wrapping models.ErrGeneratorFailure is returned.
	Create(ctx context.Context, userID int, req *models.CreateSessionRequest) (*models.SessionDetail, error)
	// List returns the sessions of the user, newest first
	List(ctx context.Context, userID int) ([]models.SessionListItem, error)
	// Get returns a session of the user with the state of each question
	Get(ctx context.Context, userID, sessionID int) (*models.SessionDetail, error)
}

// SessionHandler handles reading session HTTP requests
type SessionHandler struct {
	BaseHandler
	sessionService SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionService SessionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    BaseHandler{Logger: logger},
		sessionService: sessionService,
	}
}

// RegisterRoutes registers all session handler routes
func (h *SessionHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/sessions", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/", h.CreateSession)
		r.Get("/", h.ListSessions)
		r.Get("/{id}", h.GetSession)
	})
}

// CreateSession handles POST /sessions
// @Summary Start a reading session
// @Description Generate comprehension questions for a book chapter. total_questions defaults to 5, at most 20.
// @Tags sessions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.CreateSessionRequest true "Session data"
// @Success 201 {object} models.SessionDetail
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 502 {object} map[string]string "Question generation failed"
// @Router /sessions [post]
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req models.CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	detail, err := h.sessionService.Create(r.Context(), userID, &req)
	if err != nil {
		h.RespondServiceError(w, err, "create session")
		return
	}

	h.RespondJSON(w, http.StatusCreated, detail)
}

// ListSessions handles GET /sessions
// @Summary List reading sessions
// @Tags sessions
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} models.SessionListItem
// @Failure 401 {object} map[string]string "Unauthorized"
// @Router /sessions [get]
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	sessions, err := h.sessionService.List(r.Context(), userID)
	if err != nil {
		h.RespondServiceError(w, err, "list sessions")
		return
	}

	h.RespondJSON(w, http.StatusOK, sessions)
}

// GetSession handles GET /sessions/{id}
// @Summary Get a reading session
// @Description Session with its questions, their state, current answer, latest feedback and example answers
// @Tags sessions
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Session ID"
// @Success 200 {object} models.SessionDetail
// @Failure 400 {object} map[string]string "Invalid session ID"
// @Failure 403 {object} map[string]string "Session belongs to another user"
// @Failure 404 {object} map[string]string "Session not found"
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	sessionID, err := pathID(r, "id")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	detail, err := h.sessionService.Get(r.Context(), userID, sessionID)
	if err != nil {
		h.RespondServiceError(w, err, "get session")
		return
	}

	h.RespondJSON(w, http.StatusOK, detail)
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/lunareading/backend/internal/auth/middleware"
	"github.com/lunareading/backend/internal/mastery"
	"github.com/lunareading/backend/internal/models"
	"go.uber.org/zap"
)

// StatusClientClosedRequest is answered when the client went away before the request was served
const StatusClientClosedRequest = 499

// BaseHandler provides common handler functionality
type BaseHandler struct {
	Logger *zap.Logger
}

// RespondJSON sends a JSON response
func (h *BaseHandler) RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// RespondError sends an error JSON response
func (h *BaseHandler) RespondError(w http.ResponseWriter, status int, message string) {
	h.RespondJSON(w, status, map[string]string{"error": message})
}

// RespondServiceError maps a service error to its status code and sends it.
// Internal and upstream failures are logged and their details are not exposed.
func (h *BaseHandler) RespondServiceError(w http.ResponseWriter, err error, action string) {
	status := StatusFor(err)
	switch status {
	case http.StatusInternalServerError:
		h.Logger.Error("failed to "+action, zap.Error(err))
		h.RespondError(w, status, "failed to "+action)
	case http.StatusBadGateway:
		h.Logger.Warn("upstream failure", zap.String("action", action), zap.Error(err))
		h.RespondError(w, status, upstreamMessage(err))
	case StatusClientClosedRequest, http.StatusServiceUnavailable:
		h.Logger.Debug("request abandoned", zap.String("action", action), zap.Error(err))
		h.RespondError(w, status, "request cancelled")
	default:
		h.Logger.Info("request rejected", zap.String("action", action), zap.Int("status", status), zap.Error(err))
		h.RespondError(w, status, err.Error())
	}
}

func upstreamMessage(err error) string {
	if errors.Is(err, models.ErrGeneratorFailure) {
		return "question generation service unavailable"
	}
	return "evaluation service unavailable"
}

// StatusFor returns the HTTP status code of a service error
func StatusFor(err error) int {
	switch {
	case errors.Is(err, mastery.ErrEmptyAnswer), errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, mastery.ErrInvalidSubmissionOrder),
		errors.Is(err, mastery.ErrQuestionAlreadyComplete),
		errors.Is(err, mastery.ErrPersistenceConflict),
		errors.Is(err, models.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, mastery.ErrEvaluatorFailure), errors.Is(err, models.ErrGeneratorFailure):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads the request body into dst
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// pathID parses a positive integer URL parameter
func pathID(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// userID returns the authenticated user, answering 401 when there is none
func (h *BaseHandler) userID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.RespondError(w, http.StatusUnauthorized, "unauthorized")
		return 0, false
	}
	return id, true
}

package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lunareading/backend/internal/mastery"
	"github.com/lunareading/backend/internal/models"
	"go.uber.org/zap"
)

// SubmissionService is the interface that wraps methods for answer submission business logic
type SubmissionService interface {
	// Method SubmitAnswer grades an answer and records it.
	//
	// "userID" parameter is the authenticated user, who must own the question.
	// "questionID" parameter identifies the question.
	//
	// If the answer was recorded but the reading level was not refreshed, the result is
	// returned together with an error wrapping mastery.ErrReadingLevelUpdateFailure.
	SubmitAnswer(ctx context.Context, userID, questionID int, req *models.SubmitAnswerRequest) (*models.SubmissionResult, error)
	// ListAnswers returns the answer log of a question, oldest first
	ListAnswers(ctx context.Context, userID, questionID int) ([]models.Answer, error)
}

// QuestionHandler handles question HTTP requests
type QuestionHandler struct {
	BaseHandler
	submissionService SubmissionService
	submitMiddlewares []func(http.Handler) http.Handler
}

// NewQuestionHandler creates a new question handler.
// submitMiddlewares wrap the answer submission route only.
func NewQuestionHandler(submissionService SubmissionService, logger *zap.Logger, submitMiddlewares ...func(http.Handler) http.Handler) *QuestionHandler {
	return &QuestionHandler{
		BaseHandler:       BaseHandler{Logger: logger},
		submissionService: submissionService,
		submitMiddlewares: submitMiddlewares,
	}
}

// RegisterRoutes registers all question handler routes
func (h *QuestionHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/questions/{id}", func(r chi.Router) {
		r.Use(authMiddleware)
		r.With(h.submitMiddlewares...).Post("/answer", h.SubmitAnswer)
		r.Get("/answers", h.ListAnswers)
	})
}

// SubmitAnswer handles POST /questions/{id}/answer
// @Summary Submit an answer
// @Description Grade an answer and record it. submission_type is initial, retry or final.
// @Description A question accepts initial first, then retry or final until it is sufficient or finalized.
// @Tags questions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Question ID"
// @Param request body models.SubmitAnswerRequest true "Answer"
// @Success 200 {object} models.SubmissionResult "Answer recorded, warning is set when the reading level update is pending"
// @Failure 400 {object} map[string]string "Empty answer"
// @Failure 403 {object} map[string]string "Question belongs to another user"
// @Failure 404 {object} map[string]string "Question not found"
// @Failure 409 {object} map[string]string "Submission not allowed in the question state"
// @Failure 502 {object} map[string]string "Evaluator unavailable, retry later"
// @Router /questions/{id}/answer [post]
func (h *QuestionHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	questionID, err := pathID(r, "id")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req models.SubmitAnswerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.submissionService.SubmitAnswer(r.Context(), userID, questionID, &req)
	if err != nil {
		if result != nil && errors.Is(err, mastery.ErrReadingLevelUpdateFailure) {
			h.Logger.Warn("answer recorded without reading level update", zap.Int("question_id", questionID), zap.Error(err))
			h.RespondJSON(w, http.StatusOK, result)
			return
		}
		h.RespondServiceError(w, err, "submit answer")
		return
	}

	h.RespondJSON(w, http.StatusOK, result)
}

// ListAnswers handles GET /questions/{id}/answers
// @Summary List the answers of a question
// @Tags questions
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Question ID"
// @Success 200 {array} models.Answer
// @Failure 403 {object} map[string]string "Question belongs to another user"
// @Failure 404 {object} map[string]string "Question not found"
// @Router /questions/{id}/answers [get]
func (h *QuestionHandler) ListAnswers(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	questionID, err := pathID(r, "id")
	if err != nil {
		h.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	answers, err := h.submissionService.ListAnswers(r.Context(), userID, questionID)
	if err != nil {
		h.RespondServiceError(w, err, "list answers")
		return
	}

	h.RespondJSON(w, http.StatusOK, answers)
}

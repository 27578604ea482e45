package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/mocktest-service/internal/services"
	"github.com/SAP-F-2025/mocktest-service/internal/utils"
	"github.com/SAP-F-2025/mocktest-service/internal/validator"
	"github.com/gin-gonic/gin"
)

type StartSessionRequest struct {
	TestID string `json:"test_id" validate:"required"`
}

type SessionHandler struct {
	BaseHandler
	sessions   services.SessionCoordinator
	submission services.SubmissionCoordinator
	feedback   services.FeedbackReporter
	validator  *validator.Validator
}

func NewSessionHandler(
	sessions services.SessionCoordinator,
	submission services.SubmissionCoordinator,
	feedback services.FeedbackReporter,
	validator *validator.Validator,
	logger utils.Logger,
) *SessionHandler {
	return &SessionHandler{
		BaseHandler: NewBaseHandler(logger, "session_handler"),
		sessions:    sessions,
		submission:  submission,
		feedback:    feedback,
		validator:   validator,
	}
}

// sessionTarget resolves the caller and the :id parameter
func (h *SessionHandler) sessionTarget(c *gin.Context) (userID, sessionID string, ok bool) {
	if userID, ok = h.requireUser(c); !ok {
		return "", "", false
	}
	if sessionID = ParseStringIDParam(c, "id"); sessionID == "" {
		return "", "", false
	}
	return userID, sessionID, true
}

// StartSession opens, or resumes, the caller's session on a test
// @Summary Start test session
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body StartSessionRequest true "Test to take"
// @Success 201 {object} services.SessionResponse
// @Router /sessions [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req StartSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	op := h.trace(c, "start_session")
	resp, err := h.sessions.Start(c.Request.Context(), req.TestID, userID)
	if err != nil {
		op.LogResult(req.TestID, "mock_test", err)
		h.handleServiceError(c, err)
		return
	}
	op.LogResult(resp.Session.ID, "session", nil)

	c.JSON(http.StatusCreated, resp)
}

// GetSession returns the session and its questions without answers
// @Summary Get test session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} services.SessionResponse
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	userID, sessionID, ok := h.sessionTarget(c)
	if !ok {
		return
	}

	resp, err := h.sessions.GetSession(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SubmitAnswer records the answer to one question; the latest write wins
// @Summary Answer a question
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param answer body services.SubmitAnswerRequest true "Answer"
// @Success 200 {object} models.UserAnswer
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/answers [put]
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	userID, sessionID, ok := h.sessionTarget(c)
	if !ok {
		return
	}

	var req services.SubmitAnswerRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	op := h.trace(c, "submit_answer")
	answer, err := h.sessions.SubmitAnswer(c.Request.Context(), sessionID, userID, &req)
	op.LogResult(sessionID, "session", err)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

// SubmitSession closes the session and returns its evaluation
// @Summary Submit test session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} services.SubmissionResult
// @Failure 409 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /sessions/{id}/submit [post]
func (h *SessionHandler) SubmitSession(c *gin.Context) {
	userID, sessionID, ok := h.sessionTarget(c)
	if !ok {
		return
	}

	op := h.trace(c, "submit_session")
	result, err := h.submission.SubmitAndEvaluate(c.Request.Context(), sessionID, userID)
	op.LogResult(sessionID, "session", err)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetEvaluation returns the stored evaluation of a submitted session
// @Summary Get evaluation
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.Evaluation
// @Router /sessions/{id}/evaluation [get]
func (h *SessionHandler) GetEvaluation(c *gin.Context) {
	userID, sessionID, ok := h.sessionTarget(c)
	if !ok {
		return
	}

	evaluation, err := h.feedback.GetEvaluation(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, evaluation)
}

// GetAnswerKey returns correct answers once the session is submitted
// @Router /sessions/{id}/answer-key [get]
func (h *SessionHandler) GetAnswerKey(c *gin.Context) {
	userID, sessionID, ok := h.sessionTarget(c)
	if !ok {
		return
	}

	key, err := h.sessions.GetAnswerKey(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, key)
}

// GetAnswerComparison returns the per-question side-by-side view
// @Router /sessions/{id}/comparison [get]
func (h *SessionHandler) GetAnswerComparison(c *gin.Context) {
	userID, sessionID, ok := h.sessionTarget(c)
	if !ok {
		return
	}

	comparison, err := h.sessions.GetAnswerComparison(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, comparison)
}

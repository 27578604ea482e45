package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/mocktest-service/internal/services"
	"github.com/SAP-F-2025/mocktest-service/internal/utils"
	"github.com/gin-gonic/gin"
)

// ===== COMMON RESPONSE STRUCTURES =====

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ===== BASE HANDLER STRUCT =====

// BaseHandler provides logging and error mapping shared by all handlers
type BaseHandler struct {
	logger utils.Logger
	ops    *services.ServiceLogger
}

func NewBaseHandler(logger utils.Logger, component string) BaseHandler {
	return BaseHandler{
		logger: logger,
		ops: services.NewServiceLogger(utils.ToSlogLogger(logger), services.LogConfig{
			Service:   "mocktest-service",
			Component: component,
		}),
	}
}

// trace starts an operation log entry closed by LogResult
func (h *BaseHandler) trace(c *gin.Context, operation string) *services.ContextualLogger {
	return h.ops.WithOperation(c.Request.Context(), operation, utils.CurrentUserID(c))
}

func (h *BaseHandler) requestLogger(c *gin.Context) utils.Logger {
	return utils.GetLoggerFromContext(c, h.logger)
}

// LogRequest logs an incoming request at debug level
func (h *BaseHandler) LogRequest(c *gin.Context, message string, additionalFields ...interface{}) {
	fields := append([]interface{}{
		"user_id", utils.CurrentUserID(c),
		"remote_addr", c.ClientIP(),
	}, additionalFields...)
	h.requestLogger(c).Debug(message, fields...)
}

// requireUser aborts with 401 when no authenticated user is on the context
func (h *BaseHandler) requireUser(c *gin.Context) (string, bool) {
	userID := utils.CurrentUserID(c)
	if userID == "" {
		h.RespondWithError(c, http.StatusUnauthorized, "User not authenticated", nil)
		return "", false
	}
	return userID, true
}

// RespondWithError sends a consistent error response and logs it
func (h *BaseHandler) RespondWithError(c *gin.Context, statusCode int, message string, err error, details ...interface{}) {
	errorResp := ErrorResponse{Message: message}
	if len(details) > 0 {
		errorResp.Details = details[0]
	}

	logger := h.requestLogger(c)
	if err != nil && statusCode >= http.StatusInternalServerError {
		logger.LogError(err, message, "status_code", statusCode)
	} else {
		logger.Debug(message, "status_code", statusCode, "error", err)
	}

	c.JSON(statusCode, errorResp)
}

// RespondWithSuccess sends a consistent success response
func (h *BaseHandler) RespondWithSuccess(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, SuccessResponse{
		Message: message,
		Data:    data,
	})
}

// handleServiceError maps a service error onto its HTTP status and body
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	status, message := statusForError(err)

	if status == http.StatusInternalServerError {
		// Unclassified failures are logged, not echoed back
		h.RespondWithError(c, status, message, err)
		return
	}

	details := services.FormatError(err)
	if code, ok := details["type"].(string); ok {
		c.Header("X-Error-Type", code)
	}
	h.RespondWithError(c, status, message, err, details)
}

// statusForError is checked in order: the first matching class wins
func statusForError(err error) (int, string) {
	switch {
	case services.IsConfiguration(err):
		return http.StatusBadRequest, "Invalid test configuration"
	case services.IsValidation(err):
		return http.StatusBadRequest, "Validation failed"
	case services.IsSourcing(err):
		return http.StatusBadGateway, "Question sourcing failed"
	case services.IsSubmitFailed(err), services.IsConflict(err):
		return http.StatusConflict, "Request conflicts with the session state"
	case services.IsNotFound(err):
		return http.StatusNotFound, "Resource not found"
	case services.IsUnauthorized(err):
		return http.StatusForbidden, "Access denied"
	case services.IsTransient(err):
		return http.StatusServiceUnavailable, "Service temporarily unavailable, try again shortly"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

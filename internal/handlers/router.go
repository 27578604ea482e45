package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/SAP-F-2025/mocktest-service/internal/services"
	"github.com/SAP-F-2025/mocktest-service/internal/utils"
	"github.com/SAP-F-2025/mocktest-service/internal/validator"
	"github.com/gin-gonic/gin"
)

// HealthCheck reports whether one dependency is reachable
type HealthCheck func(ctx context.Context) error

type HandlerManager struct {
	mockTestHandler *MockTestHandler
	sessionHandler  *SessionHandler
	questionHandler *QuestionHandler
	auth            gin.HandlerFunc
	checks          map[string]HealthCheck
	logger          utils.Logger
}

// NewHandlerManager wires handlers over the service graph. auth guards /api/v1.
func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	auth gin.HandlerFunc,
) *HandlerManager {
	repo := serviceManager.Repository()
	return &HandlerManager{
		mockTestHandler: NewMockTestHandler(serviceManager.ConfigValidator(), serviceManager.TestAssembler(), serviceManager.ImportExport(), logger),
		sessionHandler:  NewSessionHandler(serviceManager.Session(), serviceManager.Submission(), serviceManager.Feedback(), validator, logger),
		questionHandler: NewQuestionHandler(serviceManager.ImportExport(), logger),
		auth:            auth,
		logger:          logger,
		checks: map[string]HealthCheck{
			"database": repo.Ping,
		},
	}
}

// WithHealthCheck adds a dependency probe to /health
func (hm *HandlerManager) WithHealthCheck(name string, check HealthCheck) *HandlerManager {
	hm.checks[name] = check
	return hm
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.health)

	v1 := router.Group("/api/v1")
	if hm.auth != nil {
		v1.Use(hm.auth)
	}
	{
		tests := v1.Group("/tests")
		{
			tests.POST("/validate", hm.mockTestHandler.ValidateConfiguration)
			tests.POST("/generate", hm.mockTestHandler.GenerateTests)
			tests.GET("/:id/export", hm.mockTestHandler.ExportTest)
		}

		sessions := v1.Group("/sessions")
		{
			sessions.POST("", hm.sessionHandler.StartSession)
			sessions.GET("/:id", hm.sessionHandler.GetSession)
			sessions.PUT("/:id/answers", hm.sessionHandler.SubmitAnswer)
			sessions.POST("/:id/submit", hm.sessionHandler.SubmitSession)
			sessions.GET("/:id/evaluation", hm.sessionHandler.GetEvaluation)
			sessions.GET("/:id/answer-key", hm.sessionHandler.GetAnswerKey)
			sessions.GET("/:id/comparison", hm.sessionHandler.GetAnswerComparison)
		}

		questions := v1.Group("/questions")
		{
			questions.POST("/import", hm.questionHandler.ImportQuestions)
		}
	}
}

func (hm *HandlerManager) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	components := make(map[string]string, len(hm.checks))
	for name, check := range hm.checks {
		if err := check(ctx); err != nil {
			utils.GetLoggerFromContext(c, hm.logger).Warn("Health check failed", "component", name, "error", err)
			components[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":     overall,
		"service":    "mocktest-service",
		"components": components,
	})
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// ServiceLogger provides structured logging for service layer operations
type ServiceLogger struct {
	logger *slog.Logger
	config LogConfig
}

type LogConfig struct {
	Service     string
	Component   string
	EnableDebug bool
}

func NewServiceLogger(logger *slog.Logger, config LogConfig) *ServiceLogger {
	return &ServiceLogger{
		logger: logger.With("service", config.Service, "component", config.Component),
		config: config,
	}
}

// ===== OPERATION LOGGING =====

func (l *ServiceLogger) LogOperation(ctx context.Context, operation, userID, resourceID, resourceType string, duration time.Duration, err error) {
	level := slog.LevelInfo
	status := "success"

	if err != nil {
		level = slog.LevelError
		status = "error"

		// Caller-correctable failures are not service errors
		switch {
		case IsValidation(err), IsConfiguration(err):
			level = slog.LevelWarn
			status = "validation_error"
		case IsSubmitFailed(err), IsConflict(err):
			level = slog.LevelWarn
			status = "rejected"
		case IsUnauthorized(err):
			level = slog.LevelWarn
			status = "unauthorized"
		case IsNotFound(err):
			level = slog.LevelInfo
			status = "not_found"
		case IsTransient(err):
			level = slog.LevelWarn
			status = "transient"
		}
	}

	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("user_id", userID),
		slog.String("resource_id", resourceID),
		slog.String("resource_type", resourceType),
		slog.String("status", status),
		slog.Duration("duration", duration),
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))

		var configErr *ConfigurationError
		var sourcingErr *SourcingError
		var validationErrs ValidationErrors
		switch {
		case errors.As(err, &configErr):
			attrs = append(attrs, slog.String("error_kind", string(configErr.Kind)))
		case errors.As(err, &sourcingErr):
			attrs = append(attrs, slog.String("error_kind", string(sourcingErr.Kind)))
		case errors.As(err, &validationErrs):
			attrs = append(attrs, slog.Int("validation_errors_count", len(validationErrs)))
		}

		if level == slog.LevelError {
			if pc, file, line, ok := runtime.Caller(2); ok {
				if fn := runtime.FuncForPC(pc); fn != nil {
					attrs = append(attrs,
						slog.String("caller_func", fn.Name()),
						slog.String("caller_file", file),
						slog.Int("caller_line", line),
					)
				}
			}
		}
	}

	if level == slog.LevelDebug && !l.config.EnableDebug {
		return
	}

	l.logger.LogAttrs(ctx, level, fmt.Sprintf("%s operation %s", operation, status), attrs...)
}

// ContextualLogger wraps operations with automatic logging
type ContextualLogger struct {
	logger    *ServiceLogger
	operation string
	userID    string
	startTime time.Time
	ctx       context.Context
}

func (l *ServiceLogger) WithOperation(ctx context.Context, operation, userID string) *ContextualLogger {
	return &ContextualLogger{
		logger:    l,
		operation: operation,
		userID:    userID,
		startTime: time.Now(),
		ctx:       ctx,
	}
}

func (cl *ContextualLogger) LogResult(resourceID, resourceType string, err error) {
	cl.logger.LogOperation(cl.ctx, cl.operation, cl.userID, resourceID, resourceType, time.Since(cl.startTime), err)
}

// ===== ERROR FORMATTING HELPERS =====

// FormatError renders an error as a response body fragment
func FormatError(err error) map[string]interface{} {
	if err == nil {
		return nil
	}

	result := map[string]interface{}{
		"message": err.Error(),
		"type":    "unknown",
	}

	var configErr *ConfigurationError
	var sourcingErr *SourcingError
	var submitErr *SubmitError
	var validationErrs ValidationErrors

	switch {
	case errors.As(err, &configErr):
		result["type"] = "configuration"
		result["kind"] = configErr.Kind
		result["message"] = configErr.Message
		if len(configErr.MissingTopics) > 0 {
			result["missing_topics"] = configErr.MissingTopics
		}
		if configErr.Kind == InsufficientQuestions {
			result["available"] = configErr.Available
			result["requested"] = configErr.Requested
		}
	case errors.As(err, &sourcingErr):
		result["type"] = "sourcing"
		result["kind"] = sourcingErr.Kind
		if sourcingErr.TopicID != "" {
			result["topic_id"] = sourcingErr.TopicID
		}
		if sourcingErr.QuestionID != "" {
			result["question_id"] = sourcingErr.QuestionID
		}
	case errors.As(err, &submitErr):
		result["type"] = "submit_failed"
		result["message"] = submitErr.Reason
	case errors.As(err, &validationErrs):
		result["type"] = "validation"
		result["count"] = len(validationErrs)
		result["errors"] = validationErrs
	case IsNotFound(err):
		result["type"] = "not_found"
	case IsUnauthorized(err):
		result["type"] = "unauthorized"
	case IsTransient(err):
		result["type"] = "transient"
	}

	return result
}

package services

import (
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/SAP-F-2025/mocktest-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	ErrNotFound         = errors.New("resource not found")
	ErrValidationFailed = errors.New("validation failed")

	ErrTestNotFound       = errors.New("mock test not found")
	ErrQuestionNotFound   = errors.New("question not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrEvaluationNotFound = errors.New("evaluation not found")

	ErrSessionAccessDenied     = errors.New("access denied to session")
	ErrSessionNotActive        = errors.New("session is not in progress")
	ErrSessionAlreadySubmitted = errors.New("already submitted")
	ErrQuestionNotInTest       = errors.New("question does not belong to this test")
	ErrResultsLocked           = errors.New("results are available only after submission")

	// ErrPoolExhausted is raised before an attempt when the connection pool is saturated
	ErrPoolExhausted = errors.New("database connection pool exhausted")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

type ConfigurationErrorKind string

const (
	InvalidQuestionCount  ConfigurationErrorKind = "InvalidQuestionCount"
	InvalidTestCount      ConfigurationErrorKind = "InvalidTestCount"
	NoTopicsSelected      ConfigurationErrorKind = "NoTopicsSelected"
	InvalidTopics         ConfigurationErrorKind = "InvalidTopics"
	InsufficientQuestions ConfigurationErrorKind = "InsufficientQuestions"
)

// ConfigurationError is the closed set of request configuration failures
type ConfigurationError struct {
	Kind          ConfigurationErrorKind `json:"kind"`
	Message       string                 `json:"message"`
	MissingTopics []string               `json:"missing_topics,omitempty"`
	Available     int                    `json:"available,omitempty"`
	Requested     int                    `json:"requested,omitempty"`
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

type SourcingErrorKind string

const (
	GenerationFailed SourcingErrorKind = "GenerationFailed"
	TopicMismatch    SourcingErrorKind = "TopicMismatch"
	RetrievalFailed  SourcingErrorKind = "RetrievalFailed"
)

// SourcingError is fatal for the current generation run
type SourcingError struct {
	Kind       SourcingErrorKind `json:"kind"`
	TopicID    string            `json:"topic_id,omitempty"`
	QuestionID string            `json:"question_id,omitempty"`
	Message    string            `json:"message"`
	Err        error             `json:"-"`
}

func (e *SourcingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SourcingError) Unwrap() error {
	return e.Err
}

// GenerationError wraps any failure of a generateTests call
type GenerationError struct {
	Iteration int   `json:"iteration,omitempty"`
	Err       error `json:"-"`
}

func (e *GenerationError) Error() string {
	if e.Iteration > 0 {
		return fmt.Sprintf("test generation failed at test %d: %v", e.Iteration, e.Err)
	}
	return fmt.Sprintf("test generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// SubmitError is a rejected session transition or locked read
type SubmitError struct {
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit failed: %s", e.Reason)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

func newSubmitError(err error) *SubmitError {
	return &SubmitError{Reason: err.Error(), Err: err}
}

// ===== ERROR HELPERS =====

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrTestNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrEvaluationNotFound)
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrSessionAccessDenied)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) {
		return true
	}
	var ve apperrors.ValidationErrors
	if errors.As(err, &ve) {
		return true
	}
	var single *apperrors.ValidationError
	return errors.As(err, &single)
}

func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

func IsSourcing(err error) bool {
	var se *SourcingError
	return errors.As(err, &se)
}

func IsSubmitFailed(err error) bool {
	var se *SubmitError
	return errors.As(err, &se)
}

// IsConflict checks if error represents a resource conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrSessionAlreadySubmitted)
}

// connectionErrorVocabulary is matched case-insensitively against error text
var connectionErrorVocabulary = []string{
	"connection",
	"timeout",
	"pool",
	"econnrefused",
	"etimedout",
}

// IsTransient classifies connection-class failures worth retrying
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPoolExhausted) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, term := range connectionErrorVocabulary {
		if strings.Contains(msg, term) {
			return true
		}
	}
	return false
}

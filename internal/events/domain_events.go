package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the domain events emitted by the mock test pipeline
type EventType string

const (
	EventTestsGenerated      EventType = "tests.generated"
	EventSessionStarted      EventType = "session.started"
	EventSessionSubmitted    EventType = "session.submitted"
	EventEvaluationCompleted EventType = "evaluation.completed"
)

const (
	eventSource  = "mocktest-service"
	eventVersion = "1.0"
)

// DomainEvent is the envelope for every published event
type DomainEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type TestsGeneratedEvent struct {
	RunID         string   `json:"run_id"`
	RequesterID   string   `json:"requester_id"`
	Subject       string   `json:"subject"`
	TestIDs       []string `json:"test_ids"`
	QuestionCount int      `json:"question_count"`
	Topics        []string `json:"topics"`
}

type SessionStartedEvent struct {
	SessionID string    `json:"session_id"`
	TestID    string    `json:"test_id"`
	UserID    string    `json:"user_id"`
	StartedAt time.Time `json:"started_at"`
}

type SessionSubmittedEvent struct {
	SessionID     string    `json:"session_id"`
	TestID        string    `json:"test_id"`
	UserID        string    `json:"user_id"`
	SubmittedAt   time.Time `json:"submitted_at"`
	AnsweredCount int       `json:"answered_count"`
}

type EvaluationCompletedEvent struct {
	EvaluationID string   `json:"evaluation_id"`
	SessionID    string   `json:"session_id"`
	TestID       string   `json:"test_id"`
	UserID       string   `json:"user_id"`
	OverallScore float64  `json:"overall_score"`
	CorrectCount int      `json:"correct_count"`
	TotalCount   int      `json:"total_count"`
	WeakTopics   []string `json:"weak_topics"`
}

func newEvent(eventType EventType, data interface{}) *DomainEvent {
	return &DomainEvent{
		ID:        GenerateEventID(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

func NewTestsGeneratedEvent(payload TestsGeneratedEvent) *DomainEvent {
	return newEvent(EventTestsGenerated, payload)
}

func NewSessionStartedEvent(payload SessionStartedEvent) *DomainEvent {
	return newEvent(EventSessionStarted, payload)
}

func NewSessionSubmittedEvent(payload SessionSubmittedEvent) *DomainEvent {
	return newEvent(EventSessionSubmitted, payload)
}

func NewEvaluationCompletedEvent(payload EvaluationCompletedEvent) *DomainEvent {
	return newEvent(EventEvaluationCompleted, payload)
}

// GenerateEventID returns a unique event id
func GenerateEventID() string {
	return uuid.NewString()
}

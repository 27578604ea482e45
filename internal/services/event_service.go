package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/mocktest-service/internal/events"
	"github.com/SAP-F-2025/mocktest-service/internal/models"
)

// DomainEventService publishes lifecycle events. Publishing is best-effort: failures are
// logged and never returned to the operation that triggered them.
type DomainEventService interface {
	NotifyTestsGenerated(ctx context.Context, runID, requesterID string, cfg *models.TestConfiguration, tests []*models.MockTest)
	NotifySessionStarted(ctx context.Context, session *models.TestSession)
	NotifySessionSubmitted(ctx context.Context, session *models.TestSession, answeredCount int)
	NotifyEvaluationCompleted(ctx context.Context, evaluation *models.Evaluation)
}

type domainEventService struct {
	eventPublisher events.EventPublisher
	logger         *slog.Logger
}

// NewDomainEventService accepts a nil publisher, in which case events are dropped
func NewDomainEventService(eventPublisher events.EventPublisher, logger *slog.Logger) DomainEventService {
	return &domainEventService{
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

func (s *domainEventService) NotifyTestsGenerated(ctx context.Context, runID, requesterID string, cfg *models.TestConfiguration, tests []*models.MockTest) {
	testIDs := make([]string, len(tests))
	for i, t := range tests {
		testIDs[i] = t.ID
	}

	s.publish(ctx, events.NewTestsGeneratedEvent(events.TestsGeneratedEvent{
		RunID:         runID,
		RequesterID:   requesterID,
		Subject:       cfg.Subject,
		TestIDs:       testIDs,
		QuestionCount: cfg.QuestionCount,
		Topics:        cfg.Topics,
	}))
}

func (s *domainEventService) NotifySessionStarted(ctx context.Context, session *models.TestSession) {
	s.publish(ctx, events.NewSessionStartedEvent(events.SessionStartedEvent{
		SessionID: session.ID,
		TestID:    session.TestID,
		UserID:    session.UserID,
		StartedAt: session.StartedAt,
	}))
}

func (s *domainEventService) NotifySessionSubmitted(ctx context.Context, session *models.TestSession, answeredCount int) {
	submittedAt := time.Now()
	if session.SubmittedAt != nil {
		submittedAt = *session.SubmittedAt
	}

	s.publish(ctx, events.NewSessionSubmittedEvent(events.SessionSubmittedEvent{
		SessionID:     session.ID,
		TestID:        session.TestID,
		UserID:        session.UserID,
		SubmittedAt:   submittedAt,
		AnsweredCount: answeredCount,
	}))
}

func (s *domainEventService) NotifyEvaluationCompleted(ctx context.Context, evaluation *models.Evaluation) {
	s.publish(ctx, events.NewEvaluationCompletedEvent(events.EvaluationCompletedEvent{
		EvaluationID: evaluation.ID,
		SessionID:    evaluation.SessionID,
		TestID:       evaluation.TestID,
		UserID:       evaluation.UserID,
		OverallScore: evaluation.OverallScore,
		CorrectCount: evaluation.CorrectCount,
		TotalCount:   evaluation.TotalCount,
		WeakTopics:   evaluation.WeakTopics,
	}))
}

func (s *domainEventService) publish(ctx context.Context, event *events.DomainEvent) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish domain event",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err)
		return
	}
	s.logger.Debug("Published domain event", "event_id", event.ID, "event_type", event.Type)
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/mocktest-service/internal/models"
	"github.com/SAP-F-2025/mocktest-service/internal/repositories"
	"github.com/google/uuid"
)

type SessionCoordinator interface {
	// Start returns the caller's in-progress session for the test or opens a new one
	Start(ctx context.Context, testID, userID string) (*SessionResponse, error)
	GetSession(ctx context.Context, sessionID, userID string) (*SessionResponse, error)
	// SubmitAnswer upserts the answer; the last write for a question wins
	SubmitAnswer(ctx context.Context, sessionID, userID string, req *SubmitAnswerRequest) (*models.UserAnswer, error)
	// Submit closes the session exactly once
	Submit(ctx context.Context, sessionID, userID string) (*SubmissionSnapshot, error)
	// LoadSubmission rebuilds the snapshot of an already submitted session
	LoadSubmission(ctx context.Context, sessionID, userID string) (*SubmissionSnapshot, error)

	// Post-submission reads, rejected while the session is in progress
	GetAnswerKey(ctx context.Context, sessionID, userID string) (*AnswerKeyResponse, error)
	GetAnswerComparison(ctx context.Context, sessionID, userID string) (*AnswerComparisonResponse, error)
}

type sessionCoordinator struct {
	repo   repositories.Repository
	events DomainEventService
	logger *slog.Logger
}

func NewSessionCoordinator(repo repositories.Repository, events DomainEventService, logger *slog.Logger) SessionCoordinator {
	return &sessionCoordinator{
		repo:   repo,
		events: events,
		logger: logger,
	}
}

// ===== LIFECYCLE =====

func (s *sessionCoordinator) Start(ctx context.Context, testID, userID string) (*SessionResponse, error) {
	s.logger.Info("Starting test session", "test_id", testID, "user_id", userID)

	test, err := s.loadTest(ctx, testID)
	if err != nil {
		return nil, err
	}

	active, err := s.repo.Session().GetActive(ctx, testID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active session: %w", err)
	}
	if active != nil {
		s.logger.Info("Resuming existing session", "session_id", active.ID)
		responses, err := s.repo.Session().GetResponses(ctx, active.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load responses: %w", err)
		}
		active.Responses = derefAnswers(responses)
		return &SessionResponse{Session: active, Questions: sessionQuestions(test)}, nil
	}

	now := time.Now()
	session := &models.TestSession{
		ID:        uuid.New().String(),
		TestID:    testID,
		UserID:    userID,
		Status:    models.SessionInProgress,
		StartedAt: now,
	}

	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if err := tx.Session().Create(ctx, session); err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		if test.Status == models.TestStatusGenerated {
			if err := tx.MockTest().UpdateStatus(ctx, testID, models.TestStatusInProgress); err != nil {
				return fmt.Errorf("failed to update test status: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Session started", "session_id", session.ID, "test_id", testID)
	s.events.NotifySessionStarted(ctx, session)

	return &SessionResponse{Session: session, Questions: sessionQuestions(test)}, nil
}

func (s *sessionCoordinator) GetSession(ctx context.Context, sessionID, userID string) (*SessionResponse, error) {
	session, err := s.loadOwnedSession(ctx, sessionID, userID, true)
	if err != nil {
		return nil, err
	}

	test, err := s.loadTest(ctx, session.TestID)
	if err != nil {
		return nil, err
	}

	return &SessionResponse{Session: session, Questions: sessionQuestions(test)}, nil
}

func (s *sessionCoordinator) SubmitAnswer(ctx context.Context, sessionID, userID string, req *SubmitAnswerRequest) (*models.UserAnswer, error) {
	session, err := s.loadOwnedSession(ctx, sessionID, userID, false)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionInProgress {
		return nil, newSubmitError(ErrSessionNotActive)
	}

	test, err := s.repo.MockTest().GetByIDWithQuestions(ctx, session.TestID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}
	if !test.HasQuestion(req.QuestionID) {
		return nil, newSubmitError(ErrQuestionNotInTest)
	}

	answer := &models.UserAnswer{
		SessionID:  sessionID,
		QuestionID: req.QuestionID,
		Answer:     req.Answer,
		AnsweredAt: time.Now(),
	}
	if err := s.repo.Session().UpsertResponse(ctx, answer); err != nil {
		return nil, fmt.Errorf("failed to save answer: %w", err)
	}

	s.logger.Debug("Answer saved", "session_id", sessionID, "question_id", req.QuestionID)
	return answer, nil
}

func (s *sessionCoordinator) Submit(ctx context.Context, sessionID, userID string) (*SubmissionSnapshot, error) {
	s.logger.Info("Submitting session", "session_id", sessionID, "user_id", userID)

	session, err := s.loadOwnedSession(ctx, sessionID, userID, true)
	if err != nil {
		return nil, err
	}
	if session.IsSubmitted() {
		return nil, newSubmitError(ErrSessionAlreadySubmitted)
	}

	submittedAt := time.Now()
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		won, err := tx.Session().MarkSubmitted(ctx, sessionID, submittedAt)
		if err != nil {
			return fmt.Errorf("failed to mark session submitted: %w", err)
		}
		// A concurrent submit already flipped the status
		if !won {
			return newSubmitError(ErrSessionAlreadySubmitted)
		}
		if err := tx.MockTest().UpdateStatus(ctx, session.TestID, models.TestStatusSubmitted); err != nil {
			return fmt.Errorf("failed to update test status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	session.Status = models.SessionSubmitted
	session.SubmittedAt = &submittedAt

	s.logger.Info("Session submitted",
		"session_id", sessionID,
		"answered", len(session.Responses))
	s.events.NotifySessionSubmitted(ctx, session, len(session.Responses))

	return &SubmissionSnapshot{Session: session, Responses: session.Responses}, nil
}

func (s *sessionCoordinator) LoadSubmission(ctx context.Context, sessionID, userID string) (*SubmissionSnapshot, error) {
	session, err := s.loadOwnedSession(ctx, sessionID, userID, true)
	if err != nil {
		return nil, err
	}
	if !session.IsSubmitted() {
		return nil, newSubmitError(ErrResultsLocked)
	}
	return &SubmissionSnapshot{Session: session, Responses: session.Responses}, nil
}

// ===== POST-SUBMISSION READS =====

func (s *sessionCoordinator) GetAnswerKey(ctx context.Context, sessionID, userID string) (*AnswerKeyResponse, error) {
	session, test, err := s.loadSubmitted(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	key := test.AnswerKey.Data()
	links := test.OrderedLinks()
	entries := make([]AnswerKeyEntry, 0, len(links))
	for _, link := range links {
		entry := AnswerKeyEntry{QuestionID: link.QuestionID, Position: link.Position}
		if correct, ok := key[link.QuestionID]; ok {
			entry.CorrectAnswer = correct
		}
		if link.Question != nil {
			if entry.CorrectAnswer.IsEmpty() {
				entry.CorrectAnswer = link.Question.CorrectAnswer
			}
			entry.SolutionSteps = link.Question.SolutionSteps
		}
		entries = append(entries, entry)
	}

	return &AnswerKeyResponse{SessionID: session.ID, TestID: test.ID, Entries: entries}, nil
}

func (s *sessionCoordinator) GetAnswerComparison(ctx context.Context, sessionID, userID string) (*AnswerComparisonResponse, error) {
	session, test, err := s.loadSubmitted(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	responses := session.ResponseMap()
	result := &AnswerComparisonResponse{
		SessionID:   session.ID,
		TestID:      test.ID,
		SubmittedAt: session.SubmittedAt,
	}

	for _, link := range test.OrderedLinks() {
		if link.Question == nil {
			continue
		}
		q := link.Question

		item := AnswerComparisonItem{
			QuestionID:     q.ID,
			Position:       link.Position,
			TopicID:        q.TopicID,
			Text:           q.Text,
			Type:           q.Type,
			Options:        q.Options,
			CorrectAnswer:  q.CorrectAnswer,
			PointsPossible: link.Points,
			SolutionSteps:  q.SolutionSteps,
		}
		if response, ok := responses[q.ID]; ok {
			answer := response.Answer
			item.UserAnswer = &answer
			item.PointsEarned, item.IsCorrect = ScoreAnswer(q, answer, link.Points)
		}

		result.EarnedPoints += item.PointsEarned
		result.TotalPoints += item.PointsPossible
		result.Items = append(result.Items, item)
	}

	return result, nil
}

// ===== HELPERS =====

func (s *sessionCoordinator) loadTest(ctx context.Context, testID string) (*models.MockTest, error) {
	test, err := s.repo.MockTest().GetByIDWithQuestions(ctx, testID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}
	return test, nil
}

func (s *sessionCoordinator) loadOwnedSession(ctx context.Context, sessionID, userID string, withResponses bool) (*models.TestSession, error) {
	var (
		session *models.TestSession
		err     error
	)
	if withResponses {
		session, err = s.repo.Session().GetByIDWithResponses(ctx, sessionID)
	} else {
		session, err = s.repo.Session().GetByID(ctx, sessionID)
	}
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if session.UserID != userID {
		s.logger.Warn("Session access denied",
			"session_id", sessionID,
			"owner_id", session.UserID,
			"user_id", userID)
		return nil, ErrSessionAccessDenied
	}
	return session, nil
}

func (s *sessionCoordinator) loadSubmitted(ctx context.Context, sessionID, userID string) (*models.TestSession, *models.MockTest, error) {
	session, err := s.loadOwnedSession(ctx, sessionID, userID, true)
	if err != nil {
		return nil, nil, err
	}
	if !session.IsSubmitted() {
		return nil, nil, newSubmitError(ErrResultsLocked)
	}

	test, err := s.loadTest(ctx, session.TestID)
	if err != nil {
		return nil, nil, err
	}
	return session, test, nil
}

func sessionQuestions(test *models.MockTest) []SessionQuestion {
	links := test.OrderedLinks()
	out := make([]SessionQuestion, 0, len(links))
	for _, link := range links {
		view := SessionQuestion{
			QuestionID: link.QuestionID,
			Position:   link.Position,
			Points:     link.Points,
		}
		if q := link.Question; q != nil {
			view.TopicID = q.TopicID
			view.Text = q.Text
			view.Type = q.Type
			view.Options = q.Options
			view.MultiSelect = q.IsMultiSelect()
		}
		out = append(out, view)
	}
	return out
}

func derefAnswers(answers []*models.UserAnswer) []models.UserAnswer {
	out := make([]models.UserAnswer, 0, len(answers))
	for _, a := range answers {
		if a != nil {
			out = append(out, *a)
		}
	}
	return out
}

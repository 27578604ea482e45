package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/SAP-F-2025/mocktest-service/internal/cache"
	"github.com/SAP-F-2025/mocktest-service/internal/models"
	"github.com/SAP-F-2025/mocktest-service/internal/repositories"
)

const (
	// WeakTopicThreshold is the topic percentage below which a topic is reported as weak
	WeakTopicThreshold = 60.0
	strongScore        = 80.0
)

type FeedbackReporter interface {
	// Report orders topic scores weakest-first, derives feedback and persists the result.
	// A session that already has an evaluation gets the stored one back.
	Report(ctx context.Context, evaluation *models.Evaluation) (*models.Evaluation, error)
	// GetEvaluation reads the stored result, never recomputing it
	GetEvaluation(ctx context.Context, sessionID, userID string) (*models.Evaluation, error)
}

type feedbackReporter struct {
	repo     repositories.Repository
	cache    cache.CacheService
	events   DomainEventService
	logger   *slog.Logger
	cacheTTL time.Duration
}

func NewFeedbackReporter(
	repo repositories.Repository,
	cacheService cache.CacheService,
	events DomainEventService,
	logger *slog.Logger,
	cacheTTL time.Duration,
) FeedbackReporter {
	return &feedbackReporter{
		repo:     repo,
		cache:    cacheService,
		events:   events,
		logger:   logger,
		cacheTTL: cacheTTL,
	}
}

func (r *feedbackReporter) Report(ctx context.Context, evaluation *models.Evaluation) (*models.Evaluation, error) {
	SortWeakestFirst(evaluation.TopicScores)
	evaluation.WeakTopics = WeakTopics(evaluation.TopicScores)
	evaluation.Suggestions = Suggestions(evaluation)

	if err := r.repo.Evaluation().Create(ctx, evaluation); err != nil {
		if !repositories.IsDuplicateError(err) {
			return nil, fmt.Errorf("failed to save evaluation: %w", err)
		}
		r.logger.Info("Evaluation already exists for session", "session_id", evaluation.SessionID)
		existing, err := r.repo.Evaluation().GetBySessionID(ctx, evaluation.SessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load existing evaluation: %w", err)
		}
		return existing, nil
	}

	r.store(ctx, evaluation)
	r.events.NotifyEvaluationCompleted(ctx, evaluation)

	return evaluation, nil
}

func (r *feedbackReporter) GetEvaluation(ctx context.Context, sessionID, userID string) (*models.Evaluation, error) {
	if r.cache != nil {
		var cached models.Evaluation
		err := r.cache.Get(ctx, evaluationCacheKey(sessionID), &cached)
		if err == nil {
			if cached.UserID != userID {
				return nil, ErrSessionAccessDenied
			}
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			r.logger.Warn("Evaluation cache read failed", "session_id", sessionID, "error", err)
		}
	}

	evaluation, err := r.repo.Evaluation().GetBySessionID(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrEvaluationNotFound
		}
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}
	if evaluation.UserID != userID {
		return nil, ErrSessionAccessDenied
	}

	r.store(ctx, evaluation)
	return evaluation, nil
}

func (r *feedbackReporter) store(ctx context.Context, evaluation *models.Evaluation) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, evaluationCacheKey(evaluation.SessionID), evaluation, r.cacheTTL); err != nil {
		r.logger.Warn("Failed to cache evaluation", "session_id", evaluation.SessionID, "error", err)
	}
}

func evaluationCacheKey(sessionID string) string {
	return "evaluation:" + sessionID
}

// SortWeakestFirst orders by percentage ascending, keeping test order among ties
func SortWeakestFirst(scores []models.TopicScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Percentage < scores[j].Percentage
	})
}

func WeakTopics(scores []models.TopicScore) []string {
	weak := []string{}
	for _, s := range scores {
		if s.Percentage < WeakTopicThreshold {
			weak = append(weak, s.TopicName)
		}
	}
	return weak
}

func Suggestions(evaluation *models.Evaluation) []string {
	var suggestions []string
	for _, s := range evaluation.TopicScores {
		if s.Percentage >= WeakTopicThreshold {
			continue
		}
		suggestions = append(suggestions, fmt.Sprintf(
			"Review %s: you scored %.0f%% (%d of %d correct). Work through the solution steps before retrying.",
			s.TopicName, s.Percentage, s.Correct, s.Total))
	}

	switch {
	case evaluation.TotalCount == 0:
		suggestions = append(suggestions, "This test had no gradable questions.")
	case len(suggestions) == 0 && evaluation.OverallScore >= strongScore:
		suggestions = append(suggestions, "Strong result across all topics. Try a test with more questions or new topics.")
	case len(suggestions) == 0:
		suggestions = append(suggestions, "No weak topics, but there is room to improve. Take another practice test on the same topics.")
	}
	return suggestions
}

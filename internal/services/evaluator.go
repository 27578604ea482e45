package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/SAP-F-2025/mocktest-service/internal/models"
	"github.com/SAP-F-2025/mocktest-service/internal/repositories"
	"github.com/google/uuid"
)

type Evaluator interface {
	// Evaluate scores a submitted session. The result is not persisted here.
	Evaluate(ctx context.Context, snapshot *SubmissionSnapshot) (*models.Evaluation, error)
}

type evaluator struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewEvaluator(repo repositories.Repository, logger *slog.Logger) Evaluator {
	return &evaluator{
		repo:   repo,
		logger: logger,
	}
}

type topicTally struct {
	correct  int
	total    int
	earned   float64
	possible float64
}

func (e *evaluator) Evaluate(ctx context.Context, snapshot *SubmissionSnapshot) (*models.Evaluation, error) {
	session := snapshot.Session
	if !session.IsSubmitted() {
		return nil, newSubmitError(ErrSessionNotActive)
	}

	test, err := e.repo.MockTest().GetByIDWithQuestions(ctx, session.TestID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	responses := make(map[string]models.Answer, len(snapshot.Responses))
	for _, r := range snapshot.Responses {
		responses[r.QuestionID] = r.Answer
	}

	var (
		earned, possible float64
		correctCount     int
		totalCount       int
		topicOrder       []string
	)
	tallies := make(map[string]*topicTally)

	for _, link := range test.OrderedLinks() {
		q := link.Question
		// The question still counts toward the total and can earn nothing
		if q == nil {
			e.logger.Warn("Question missing from bank, scored as incorrect",
				"test_id", test.ID,
				"question_id", link.QuestionID)
			totalCount++
			possible += link.Points
			continue
		}

		// A missing response scores as an empty answer
		points, isCorrect := ScoreAnswer(q, responses[q.ID], link.Points)

		tally, ok := tallies[q.TopicID]
		if !ok {
			tally = &topicTally{}
			tallies[q.TopicID] = tally
			topicOrder = append(topicOrder, q.TopicID)
		}
		tally.total++
		tally.possible += link.Points
		tally.earned += points
		if isCorrect {
			tally.correct++
			correctCount++
		}

		totalCount++
		possible += link.Points
		earned += points
	}

	names := e.topicNames(ctx, topicOrder)

	evaluationID := uuid.New().String()
	topicScores := make([]models.TopicScore, 0, len(topicOrder))
	for _, topicID := range topicOrder {
		tally := tallies[topicID]
		topicScores = append(topicScores, models.TopicScore{
			EvaluationID:   evaluationID,
			TopicID:        topicID,
			TopicName:      names[topicID],
			Correct:        tally.correct,
			Total:          tally.total,
			EarnedPoints:   roundScore(tally.earned),
			PossiblePoints: tally.possible,
			Percentage:     percentage(tally.earned, tally.possible),
		})
	}

	evaluation := &models.Evaluation{
		ID:           evaluationID,
		SessionID:    session.ID,
		TestID:       test.ID,
		UserID:       session.UserID,
		OverallScore: percentage(earned, possible),
		EarnedPoints: roundScore(earned),
		TotalPoints:  possible,
		CorrectCount: correctCount,
		TotalCount:   totalCount,
		EvaluatedAt:  time.Now(),
		TopicScores:  topicScores,
	}

	e.logger.Info("Session evaluated",
		"session_id", session.ID,
		"test_id", test.ID,
		"score", evaluation.OverallScore,
		"correct", correctCount,
		"total", totalCount)

	return evaluation, nil
}

// topicNames falls back to the topic id for dynamic or unknown topics
func (e *evaluator) topicNames(ctx context.Context, ids []string) map[string]string {
	names := make(map[string]string, len(ids))
	for _, id := range ids {
		names[id] = id
	}

	var lookup []string
	for _, id := range ids {
		if !strings.HasPrefix(id, DynamicTopicPrefix) {
			lookup = append(lookup, id)
		}
	}
	if len(lookup) == 0 {
		return names
	}

	topics, err := e.repo.Topic().GetByIDs(ctx, lookup)
	if err != nil {
		e.logger.Warn("Failed to load topic names for evaluation", "error", err)
		return names
	}
	for _, t := range topics {
		if t.Name != "" {
			names[t.ID] = t.Name
		}
	}
	return names
}

func percentage(earned, possible float64) float64 {
	if possible <= 0 {
		return 0
	}
	return roundScore(100 * earned / possible)
}

func roundScore(v float64) float64 {
	return math.Round(v*100) / 100
}

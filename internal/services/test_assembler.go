package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SAP-F-2025/mocktest-service/internal/models"
	"github.com/SAP-F-2025/mocktest-service/internal/repositories"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// defaultQuestionPoints is the weight of every question in an assembled test
const defaultQuestionPoints = 1.0

type TestAssembler interface {
	// Assemble builds config.TestCount tests with no question repeated across them.
	// Errors are *GenerationError wrapping a configuration, sourcing or persistence failure.
	Assemble(ctx context.Context, cfg *models.TestConfiguration, requesterID string) ([]*models.MockTest, error)
}

type testAssembler struct {
	repo      repositories.Repository
	validator ConfigValidator
	sourcer   QuestionSourcer
	events    DomainEventService
	logger    *slog.Logger
}

func NewTestAssembler(
	repo repositories.Repository,
	validator ConfigValidator,
	sourcer QuestionSourcer,
	events DomainEventService,
	logger *slog.Logger,
) TestAssembler {
	return &testAssembler{
		repo:      repo,
		validator: validator,
		sourcer:   sourcer,
		events:    events,
		logger:    logger,
	}
}

func (a *testAssembler) Assemble(ctx context.Context, cfg *models.TestConfiguration, requesterID string) ([]*models.MockTest, error) {
	if err := a.validator.Validate(ctx, cfg); err != nil {
		return nil, &GenerationError{Err: err}
	}

	snapshot := *cfg
	snapshot.Topics = UniqueTopics(cfg.Topics)
	if snapshot.TestMode == "" {
		snapshot.TestMode = models.PDFDownload
	}

	topics, err := a.resolveTopics(ctx, snapshot.Topics)
	if err != nil {
		return nil, &GenerationError{Err: err}
	}

	runID := uuid.New().String()
	a.logger.Info("Generating mock tests",
		"run_id", runID,
		"requester_id", requesterID,
		"test_count", snapshot.TestCount,
		"question_count", snapshot.QuestionCount,
		"topics", snapshot.Topics,
		"mode", snapshot.TestMode)

	used := make(map[string]bool, snapshot.TotalRequested())
	var seen []*models.Question
	tests := make([]*models.MockTest, 0, snapshot.TestCount)

	// Iterations are sequential: each exclusion set depends on every earlier test
	for i := 1; i <= snapshot.TestCount; i++ {
		questions, err := a.sourcer.Source(ctx, SourceRequest{
			Topics:         topics,
			TotalQuestions: snapshot.QuestionCount,
			AlreadyUsed:    used,
			Seen:           seen,
			Subject:        snapshot.Subject,
			Mode:           snapshot.TestMode,
		})
		if err != nil {
			a.logger.Error("Sourcing failed, aborting run",
				"run_id", runID,
				"iteration", i,
				"error", err)
			return nil, &GenerationError{Iteration: i, Err: err}
		}
		if len(questions) != snapshot.QuestionCount {
			return nil, &GenerationError{Iteration: i, Err: &SourcingError{
				Kind:    GenerationFailed,
				Message: fmt.Sprintf("sourced %d of %d questions", len(questions), snapshot.QuestionCount),
			}}
		}

		for _, q := range questions {
			used[q.ID] = true
		}
		seen = append(seen, questions...)
		tests = append(tests, buildMockTest(runID, requesterID, snapshot, questions))
	}

	// All tests of a run are written together or not at all
	err = a.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		for _, test := range tests {
			if err := tx.MockTest().CreateWithQuestions(ctx, test); err != nil {
				return fmt.Errorf("failed to persist test %s: %w", test.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, &GenerationError{Err: err}
	}

	a.logger.Info("Mock tests generated", "run_id", runID, "tests", len(tests))
	a.events.NotifyTestsGenerated(ctx, runID, requesterID, &snapshot, tests)

	return tests, nil
}

// resolveTopics attaches display names; dynamic topics and topics without a record use their id
func (a *testAssembler) resolveTopics(ctx context.Context, ids []string) ([]models.TopicRef, error) {
	var lookup []string
	for _, id := range ids {
		if !strings.HasPrefix(id, DynamicTopicPrefix) {
			lookup = append(lookup, id)
		}
	}

	names := make(map[string]string, len(lookup))
	if len(lookup) > 0 {
		records, err := a.repo.Topic().GetByIDs(ctx, lookup)
		if err != nil {
			return nil, fmt.Errorf("failed to load topics: %w", err)
		}
		for _, t := range records {
			names[t.ID] = t.Name
		}
	}

	refs := make([]models.TopicRef, len(ids))
	for i, id := range ids {
		name := names[id]
		if name == "" {
			name = id
		}
		refs[i] = models.TopicRef{ID: id, Name: name}
	}
	return refs, nil
}

func buildMockTest(runID, requesterID string, cfg models.TestConfiguration, questions []*models.Question) *models.MockTest {
	testID := uuid.New().String()
	links := make([]models.MockTestQuestion, len(questions))
	answerKey := make(map[string]models.Answer, len(questions))

	for i, q := range questions {
		links[i] = models.MockTestQuestion{
			TestID:     testID,
			QuestionID: q.ID,
			Position:   i + 1,
			Points:     defaultQuestionPoints,
			Question:   q,
		}
		answerKey[q.ID] = q.CorrectAnswer
	}

	now := time.Now()
	return &models.MockTest{
		ID:            testID,
		RunID:         runID,
		RequesterID:   requesterID,
		Subject:       cfg.Subject,
		TestMode:      cfg.TestMode,
		Configuration: datatypes.NewJSONType(cfg),
		AnswerKey:     datatypes.NewJSONType(answerKey),
		Status:        models.TestStatusGenerated,
		CreatedAt:     now,
		UpdatedAt:     now,
		Questions:     links,
	}
}

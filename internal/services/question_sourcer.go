package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/mocktest-service/internal/models"
	"github.com/SAP-F-2025/mocktest-service/internal/repositories"
	"github.com/SAP-F-2025/mocktest-service/internal/validator"
)

// SourceRequest describes one test's worth of questions
type SourceRequest struct {
	Topics         []models.TopicRef
	TotalQuestions int
	// AlreadyUsed holds question ids placed into earlier tests of the same run
	AlreadyUsed map[string]bool
	// Seen is every question sourced so far in the run, passed to the Generator to avoid repeats
	Seen    []*models.Question
	Subject string
	Mode    models.TestMode
}

type QuestionSourcer interface {
	// Source returns exactly TotalQuestions questions or a *SourcingError
	Source(ctx context.Context, req SourceRequest) ([]*models.Question, error)
}

type questionSourcer struct {
	repo      repositories.Repository
	retriever Retriever
	generator Generator
	logger    *slog.Logger
	validator *validator.Validator
}

// NewQuestionSourcer builds a sourcer. generator may be nil for retrieval-only sourcing.
func NewQuestionSourcer(
	repo repositories.Repository,
	retriever Retriever,
	generator Generator,
	logger *slog.Logger,
	validator *validator.Validator,
) QuestionSourcer {
	return &questionSourcer{
		repo:      repo,
		retriever: retriever,
		generator: generator,
		logger:    logger,
		validator: validator,
	}
}

func (s *questionSourcer) Source(ctx context.Context, req SourceRequest) ([]*models.Question, error) {
	if req.TotalQuestions <= 0 || len(req.Topics) == 0 {
		return []*models.Question{}, nil
	}

	var (
		questions []*models.Question
		err       error
	)
	if s.generator != nil {
		questions, err = s.sourceFromGenerator(ctx, req)
	} else {
		questions, err = s.sourceFromRetriever(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	if err := s.checkPostconditions(req, questions); err != nil {
		return nil, err
	}

	if req.Mode == models.InAppExam {
		s.warnNonSingleAnswer(questions)
	}

	return questions, nil
}

func (s *questionSourcer) sourceFromGenerator(ctx context.Context, req SourceRequest) ([]*models.Question, error) {
	plan := PlanDistribution(req.Topics, req.TotalQuestions)

	seen := make([]*models.Question, len(req.Seen), len(req.Seen)+req.TotalQuestions)
	copy(seen, req.Seen)

	result := make([]*models.Question, 0, req.TotalQuestions)
	for _, dist := range plan {
		if dist.QuestionCount == 0 {
			continue
		}

		syllabus := s.syllabusFor(ctx, dist)

		s.logger.Info("Generating questions for topic",
			"topic_id", dist.TopicID,
			"count", dist.QuestionCount,
			"existing", len(seen))

		generated, err := s.generator.GenerateQuestions(ctx, syllabus, dist.QuestionCount, seen, req.Subject, req.Mode)
		if err != nil {
			return nil, &SourcingError{
				Kind:    GenerationFailed,
				TopicID: dist.TopicID,
				Message: "generator call failed",
				Err:     err,
			}
		}
		if len(generated) < dist.QuestionCount {
			return nil, &SourcingError{
				Kind:    GenerationFailed,
				TopicID: dist.TopicID,
				Message: fmt.Sprintf("generator returned %d of %d questions", len(generated), dist.QuestionCount),
			}
		}
		generated = generated[:dist.QuestionCount]

		// Reject before the write-through so bad questions never reach the bank
		if err := s.checkPostconditions(req, append(result, generated...)); err != nil {
			return nil, err
		}
		if err := s.persistGenerated(ctx, generated); err != nil {
			return nil, err
		}

		seen = append(seen, generated...)
		result = append(result, generated...)
	}

	return result, nil
}

// syllabusFor degrades to a bare context when the grounding lookup fails
func (s *questionSourcer) syllabusFor(ctx context.Context, dist models.TopicDistribution) models.SyllabusContext {
	syllabus := models.SyllabusContext{TopicID: dist.TopicID, TopicName: dist.TopicName}

	found, err := s.retriever.GetSyllabusContext(ctx, dist.TopicID)
	if err != nil {
		s.logger.Warn("Syllabus context unavailable, generating without grounding",
			"topic_id", dist.TopicID,
			"error", err)
		return syllabus
	}
	if found != nil {
		syllabus = *found
		syllabus.TopicID = dist.TopicID
		if syllabus.TopicName == "" || syllabus.TopicName == dist.TopicID {
			syllabus.TopicName = dist.TopicName
		}
	}
	return syllabus
}

// persistGenerated writes generated questions through to the bank and the retrieval index.
// The bank write must succeed since tests reference bank rows; index failures only cost reuse.
func (s *questionSourcer) persistGenerated(ctx context.Context, questions []*models.Question) error {
	if err := s.repo.Question().UpsertBatch(ctx, questions); err != nil {
		return fmt.Errorf("failed to persist generated questions: %w", err)
	}

	for _, q := range questions {
		if err := s.retriever.IndexQuestion(ctx, q); err != nil {
			s.logger.Warn("Failed to index generated question",
				"question_id", q.ID,
				"topic_id", q.TopicID,
				"error", err)
		}
	}
	return nil
}

func (s *questionSourcer) sourceFromRetriever(ctx context.Context, req SourceRequest) ([]*models.Question, error) {
	topicIDs := make([]string, len(req.Topics))
	for i, t := range req.Topics {
		topicIDs[i] = t.ID
	}

	exclude := make([]string, 0, len(req.AlreadyUsed))
	for id := range req.AlreadyUsed {
		exclude = append(exclude, id)
	}

	questions, err := s.retriever.RetrieveQuestions(ctx, topicIDs, req.TotalQuestions, exclude)
	if err != nil {
		return nil, &SourcingError{
			Kind:    RetrievalFailed,
			Message: "retriever call failed",
			Err:     err,
		}
	}
	if len(questions) < req.TotalQuestions {
		return nil, &SourcingError{
			Kind:    RetrievalFailed,
			Message: fmt.Sprintf("retrieved %d of %d questions", len(questions), req.TotalQuestions),
		}
	}

	return questions[:req.TotalQuestions], nil
}

func (s *questionSourcer) checkPostconditions(req SourceRequest, questions []*models.Question) error {
	allowed := make(map[string]bool, len(req.Topics))
	for _, t := range req.Topics {
		allowed[t.ID] = true
	}

	kind := RetrievalFailed
	if s.generator != nil {
		kind = GenerationFailed
	}

	placed := make(map[string]bool, len(questions))
	for _, q := range questions {
		if !allowed[q.TopicID] {
			return &SourcingError{
				Kind:       TopicMismatch,
				TopicID:    q.TopicID,
				QuestionID: q.ID,
				Message:    fmt.Sprintf("question %s belongs to topic %s outside the requested topics", q.ID, q.TopicID),
			}
		}
		if q.Difficulty == "" {
			q.Difficulty = models.DifficultyExamRealistic
		}
		if q.Difficulty != models.DifficultyExamRealistic {
			return &SourcingError{
				Kind:       kind,
				TopicID:    q.TopicID,
				QuestionID: q.ID,
				Message:    fmt.Sprintf("question %s has difficulty %s", q.ID, q.Difficulty),
			}
		}
		if req.AlreadyUsed[q.ID] || placed[q.ID] {
			return &SourcingError{
				Kind:       kind,
				TopicID:    q.TopicID,
				QuestionID: q.ID,
				Message:    fmt.Sprintf("question %s is already used in this run", q.ID),
			}
		}
		placed[q.ID] = true
	}
	return nil
}

func (s *questionSourcer) warnNonSingleAnswer(questions []*models.Question) {
	for _, q := range questions {
		if !s.validator.Question().IsSingleAnswerChoice(q) {
			s.logger.Warn("Non single-answer question sourced for in-app exam",
				"question_id", q.ID,
				"question_type", q.Type,
				"multi_select", q.IsMultiSelect())
		}
	}
}

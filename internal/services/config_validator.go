package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SAP-F-2025/mocktest-service/internal/models"
	"github.com/SAP-F-2025/mocktest-service/internal/repositories"
	"github.com/SAP-F-2025/mocktest-service/internal/validator"
)

// DynamicTopicPrefix marks topic ids minted upstream; they are trusted without a lookup
const DynamicTopicPrefix = "dynamic_"

type ConfigValidator interface {
	// Validate returns nil or a *ConfigurationError
	Validate(ctx context.Context, cfg *models.TestConfiguration) error
}

type configValidator struct {
	repo             repositories.Repository
	logger           *slog.Logger
	validator        *validator.Validator
	generatorEnabled bool
}

// NewConfigValidator builds the validator. When generatorEnabled is true the bank is not
// checked for availability.
func NewConfigValidator(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, generatorEnabled bool) ConfigValidator {
	return &configValidator{
		repo:             repo,
		logger:           logger,
		validator:        validator,
		generatorEnabled: generatorEnabled,
	}
}

func (v *configValidator) Validate(ctx context.Context, cfg *models.TestConfiguration) error {
	if err := v.validateShape(cfg); err != nil {
		return err
	}

	topics := UniqueTopics(cfg.Topics)

	if err := v.validateTopicsExist(ctx, topics); err != nil {
		return err
	}

	if v.generatorEnabled {
		return nil
	}

	return v.validateAvailability(ctx, topics, cfg)
}

// validateShape maps struct-tag failures to configuration kinds in a fixed priority order
func (v *configValidator) validateShape(cfg *models.TestConfiguration) error {
	err := v.validator.Validate(cfg)
	if err == nil {
		if len(UniqueTopics(cfg.Topics)) == 0 {
			return &ConfigurationError{Kind: NoTopicsSelected, Message: "at least one topic must be selected"}
		}
		return nil
	}

	fields := map[string]string{}
	if verrs, ok := err.(validator.ValidationErrors); ok {
		fields = verrs.Fields()
	}

	switch {
	case hasField(fields, "question_count"):
		return &ConfigurationError{
			Kind:    InvalidQuestionCount,
			Message: fmt.Sprintf("question count must be a positive integer, got %d", cfg.QuestionCount),
		}
	case hasField(fields, "test_count"):
		return &ConfigurationError{
			Kind:    InvalidTestCount,
			Message: fmt.Sprintf("test count must be a positive integer, got %d", cfg.TestCount),
		}
	case hasField(fields, "topics"):
		return &ConfigurationError{Kind: NoTopicsSelected, Message: "at least one topic must be selected"}
	}

	return fmt.Errorf("%w: %v", ErrValidationFailed, err)
}

func (v *configValidator) validateTopicsExist(ctx context.Context, topics []string) error {
	var lookup []string
	for _, id := range topics {
		if !strings.HasPrefix(id, DynamicTopicPrefix) {
			lookup = append(lookup, id)
		}
	}
	if len(lookup) == 0 {
		return nil
	}

	missing, err := v.repo.Topic().FindMissing(ctx, lookup)
	if err != nil {
		return fmt.Errorf("failed to check topics: %w", err)
	}
	if len(missing) > 0 {
		return &ConfigurationError{
			Kind:          InvalidTopics,
			Message:       fmt.Sprintf("topics not found: %s", strings.Join(missing, ", ")),
			MissingTopics: missing,
		}
	}
	return nil
}

func (v *configValidator) validateAvailability(ctx context.Context, topics []string, cfg *models.TestConfiguration) error {
	count, err := v.repo.Question().CountByTopics(ctx, topics)
	if err != nil {
		return fmt.Errorf("failed to count available questions: %w", err)
	}

	available := int(count)
	requested := cfg.TotalRequested()
	if available >= requested {
		return nil
	}

	v.logger.Info("Question pool too small for configuration",
		"available", available,
		"requested", requested,
		"topics", topics)

	return &ConfigurationError{
		Kind:      InsufficientQuestions,
		Message:   ShortfallMessage(available, cfg.QuestionCount, cfg.TestCount),
		Available: available,
		Requested: requested,
	}
}

// ShortfallMessage explains a pool shortfall and how to adjust the request
func ShortfallMessage(available, questionCount, testCount int) string {
	requested := questionCount * testCount
	if available <= 0 {
		return fmt.Sprintf("No questions are available for the selected topics (%d required). "+
			"Choose a different topic selection or add questions to the bank.", requested)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Only %d questions are available for the selected topics but %d are required "+
		"(%d questions x %d tests).", available, requested, questionCount, testCount)

	if testCount > 1 {
		if perTest := available / testCount; perTest > 0 {
			fmt.Fprintf(&b, " Reduce questions per test to %d to keep %d tests.", perTest, testCount)
		}
	}

	if maxTests := available / questionCount; maxTests < testCount {
		if maxTests > 0 {
			fmt.Fprintf(&b, " Alternatively reduce the number of tests to %d.", maxTests)
		} else {
			fmt.Fprintf(&b, " A single test can hold at most %d questions.", available)
		}
	}

	b.WriteString(" Adding more topics will also enlarge the pool.")
	return b.String()
}

// UniqueTopics drops blank and repeated ids and keeps first-seen order
func UniqueTopics(topics []string) []string {
	seen := make(map[string]bool, len(topics))
	out := make([]string, 0, len(topics))
	for _, id := range topics {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func hasField(fields map[string]string, name string) bool {
	_, ok := fields[name]
	return ok
}

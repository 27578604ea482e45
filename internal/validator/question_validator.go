package validator

import (
	"fmt"
	"strings"

	"github.com/SAP-F-2025/mocktest-service/internal/models"
)

const (
	minOptions = 2
	maxOptions = 10
)

// QuestionValidator handles question-specific validation
type QuestionValidator struct{}

// NewQuestionValidator creates a new question validator
func NewQuestionValidator() *QuestionValidator {
	return &QuestionValidator{}
}

// ValidateQuestion validates a complete bank question
func (v *QuestionValidator) ValidateQuestion(question *models.Question) error {
	if strings.TrimSpace(question.Text) == "" {
		return fmt.Errorf("question text is required")
	}
	if strings.TrimSpace(question.TopicID) == "" {
		return fmt.Errorf("topic id is required")
	}
	if question.CorrectAnswer.IsEmpty() {
		return fmt.Errorf("correct answer is required")
	}

	switch question.Type {
	case models.MultipleChoice:
		return v.validateMultipleChoice(question)
	case models.ShortAnswer:
		return v.validateShortAnswer(question)
	case models.Numerical:
		return v.validateNumerical(question)
	default:
		return fmt.Errorf("unsupported question type: %s", question.Type)
	}
}

// ValidateBatch validates multiple questions
func (v *QuestionValidator) ValidateBatch(questions []*models.Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("question batch cannot be empty")
	}

	for i, question := range questions {
		if err := v.ValidateQuestion(question); err != nil {
			return fmt.Errorf("validation failed for question %d: %w", i+1, err)
		}
	}

	return nil
}

// IsSingleAnswerChoice reports whether a question satisfies the in-app exam format.
func (v *QuestionValidator) IsSingleAnswerChoice(question *models.Question) bool {
	return question.Type == models.MultipleChoice && !question.CorrectAnswer.IsSet
}

func (v *QuestionValidator) validateMultipleChoice(question *models.Question) error {
	if len(question.Options) < minOptions {
		return fmt.Errorf("must have at least %d options", minOptions)
	}
	if len(question.Options) > maxOptions {
		return fmt.Errorf("cannot have more than %d options", maxOptions)
	}

	options := make(map[string]bool, len(question.Options))
	for _, option := range question.Options {
		if strings.TrimSpace(option) == "" {
			return fmt.Errorf("option text cannot be empty")
		}
		options[option] = true
	}

	answers := []string{question.CorrectAnswer.Single}
	if question.CorrectAnswer.IsSet {
		answers = question.CorrectAnswer.Set
	}
	for _, answer := range answers {
		if !options[answer] {
			return fmt.Errorf("correct answer '%s' does not match any option", answer)
		}
	}

	return nil
}

func (v *QuestionValidator) validateShortAnswer(question *models.Question) error {
	if len(question.Options) > 0 {
		return fmt.Errorf("short answer questions cannot have options")
	}
	return nil
}

func (v *QuestionValidator) validateNumerical(question *models.Question) error {
	if len(question.Options) > 0 {
		return fmt.Errorf("numerical questions cannot have options")
	}
	if question.CorrectAnswer.IsSet {
		return fmt.Errorf("numerical questions take a single answer")
	}
	return nil
}

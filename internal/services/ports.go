package services

import (
	"context"

	"github.com/SAP-F-2025/mocktest-service/internal/models"
)

// Retriever looks up questions in the indexed bank and serves syllabus grounding
type Retriever interface {
	RetrieveQuestions(ctx context.Context, topicIDs []string, count int, excludeIDs []string) ([]*models.Question, error)
	GetSyllabusContext(ctx context.Context, topicID string) (*models.SyllabusContext, error)
	IndexQuestion(ctx context.Context, question *models.Question) error
}

// Generator mints new questions grounded in a syllabus context. It is optional:
// a nil Generator means retrieval-only sourcing.
type Generator interface {
	GenerateQuestions(
		ctx context.Context,
		syllabus models.SyllabusContext,
		count int,
		existing []*models.Question,
		subject string,
		mode models.TestMode,
	) ([]*models.Question, error)
}

package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/mocktest-service/internal/models"
	"github.com/SAP-F-2025/mocktest-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EvaluationPostgreSQL struct {
	db *gorm.DB
}

func NewEvaluationPostgreSQL(db *gorm.DB) repositories.EvaluationRepository {
	return &EvaluationPostgreSQL{db: db}
}

func (e *EvaluationPostgreSQL) Create(ctx context.Context, evaluation *models.Evaluation) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(evaluation).Error; err != nil {
			return fmt.Errorf("failed to create evaluation: %w", translateError(err))
		}

		if len(evaluation.TopicScores) == 0 {
			return nil
		}

		for i := range evaluation.TopicScores {
			evaluation.TopicScores[i].EvaluationID = evaluation.ID
		}
		if err := tx.Create(&evaluation.TopicScores).Error; err != nil {
			return fmt.Errorf("failed to create topic scores: %w", translateError(err))
		}
		return nil
	})
}

func (e *EvaluationPostgreSQL) GetBySessionID(ctx context.Context, sessionID string) (*models.Evaluation, error) {
	var evaluation models.Evaluation
	if err := e.db.WithContext(ctx).
		Preload("TopicScores", func(db *gorm.DB) *gorm.DB {
			return db.Order("percentage ASC, id ASC")
		}).
		Where("session_id = ?", sessionID).
		First(&evaluation).Error; err != nil {
		return nil, translateError(err)
	}
	return &evaluation, nil
}

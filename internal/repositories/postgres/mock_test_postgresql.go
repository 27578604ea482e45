package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/mocktest-service/internal/models"
	"github.com/SAP-F-2025/mocktest-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MockTestPostgreSQL struct {
	db *gorm.DB
}

func NewMockTestPostgreSQL(db *gorm.DB) repositories.MockTestRepository {
	return &MockTestPostgreSQL{db: db}
}

// CreateWithQuestions writes the test row and then its links. Callers wanting
// atomicity across several tests wrap this in WithTransaction.
func (m *MockTestPostgreSQL) CreateWithQuestions(ctx context.Context, test *models.MockTest) error {
	db := m.db.WithContext(ctx)

	if err := db.Omit(clause.Associations).Create(test).Error; err != nil {
		return fmt.Errorf("failed to create mock test: %w", translateError(err))
	}

	if len(test.Questions) == 0 {
		return nil
	}

	links := make([]models.MockTestQuestion, len(test.Questions))
	for i, link := range test.Questions {
		links[i] = models.MockTestQuestion{
			TestID:     test.ID,
			QuestionID: link.QuestionID,
			Position:   link.Position,
			Points:     link.Points,
		}
	}

	if err := db.Omit(clause.Associations).CreateInBatches(links, questionBatchSize).Error; err != nil {
		return fmt.Errorf("failed to create mock test questions: %w", translateError(err))
	}
	return nil
}

func (m *MockTestPostgreSQL) GetByID(ctx context.Context, id string) (*models.MockTest, error) {
	var test models.MockTest
	if err := m.db.WithContext(ctx).Where("id = ?", id).First(&test).Error; err != nil {
		return nil, translateError(err)
	}
	return &test, nil
}

func (m *MockTestPostgreSQL) GetByIDWithQuestions(ctx context.Context, id string) (*models.MockTest, error) {
	var test models.MockTest
	if err := m.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Questions.Question").
		Where("id = ?", id).
		First(&test).Error; err != nil {
		return nil, translateError(err)
	}
	return &test, nil
}

func (m *MockTestPostgreSQL) ListByRun(ctx context.Context, runID string) ([]*models.MockTest, error) {
	var tests []*models.MockTest
	if err := m.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("run_id = ?", runID).
		Order("created_at ASC").
		Find(&tests).Error; err != nil {
		return nil, err
	}
	return tests, nil
}

func (m *MockTestPostgreSQL) UpdateStatus(ctx context.Context, id string, status models.TestStatus) error {
	result := m.db.WithContext(ctx).
		Model(&models.MockTest{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

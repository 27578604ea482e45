package postgres

import (
	"context"

	"github.com/SAP-F-2025/mocktest-service/internal/models"
	"github.com/SAP-F-2025/mocktest-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const questionBatchSize = 100

type QuestionPostgreSQL struct {
	db *gorm.DB
}

func NewQuestionPostgreSQL(db *gorm.DB) repositories.QuestionRepository {
	return &QuestionPostgreSQL{db: db}
}

func upsertByID() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}
}

func (q *QuestionPostgreSQL) Upsert(ctx context.Context, question *models.Question) error {
	return q.db.WithContext(ctx).Clauses(upsertByID()).Create(question).Error
}

func (q *QuestionPostgreSQL) UpsertBatch(ctx context.Context, questions []*models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	return q.db.WithContext(ctx).Clauses(upsertByID()).CreateInBatches(questions, questionBatchSize).Error
}

func (q *QuestionPostgreSQL) GetByID(ctx context.Context, id string) (*models.Question, error) {
	var question models.Question
	if err := q.db.WithContext(ctx).Where("id = ?", id).First(&question).Error; err != nil {
		return nil, translateError(err)
	}
	return &question, nil
}

// GetByIDs returns the questions in the order of ids; unknown ids are skipped
func (q *QuestionPostgreSQL) GetByIDs(ctx context.Context, ids []string) ([]*models.Question, error) {
	if len(ids) == 0 {
		return []*models.Question{}, nil
	}

	var found []*models.Question
	if err := q.db.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}

	byID := make(map[string]*models.Question, len(found))
	for _, question := range found {
		byID[question.ID] = question
	}

	ordered := make([]*models.Question, 0, len(found))
	for _, id := range ids {
		if question, ok := byID[id]; ok {
			ordered = append(ordered, question)
		}
	}
	return ordered, nil
}

func (q *QuestionPostgreSQL) List(ctx context.Context, filters repositories.QuestionFilters) ([]*models.Question, error) {
	var questions []*models.Question

	query := q.db.WithContext(ctx).Model(&models.Question{})
	if len(filters.TopicIDs) > 0 {
		query = query.Where("topic_id IN ?", filters.TopicIDs)
	}
	if len(filters.ExcludeIDs) > 0 {
		query = query.Where("id NOT IN ?", filters.ExcludeIDs)
	}
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}

	if err := query.Order("created_at ASC, id ASC").Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

func (q *QuestionPostgreSQL) CountByTopics(ctx context.Context, topicIDs []string) (int64, error) {
	var count int64
	if len(topicIDs) == 0 {
		return 0, nil
	}
	if err := q.db.WithContext(ctx).
		Model(&models.Question{}).
		Where("topic_id IN ?", topicIDs).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

package postgres

import (
	"context"

	"github.com/SAP-F-2025/mocktest-service/internal/models"
	"github.com/SAP-F-2025/mocktest-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TopicPostgreSQL struct {
	db *gorm.DB
}

func NewTopicPostgreSQL(db *gorm.DB) repositories.TopicRepository {
	return &TopicPostgreSQL{db: db}
}

func (t *TopicPostgreSQL) Upsert(ctx context.Context, topic *models.Topic) error {
	return t.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "subject", "description", "related_concepts", "updated_at"}),
		}).
		Create(topic).Error
}

func (t *TopicPostgreSQL) GetByID(ctx context.Context, id string) (*models.Topic, error) {
	var topic models.Topic
	if err := t.db.WithContext(ctx).Where("id = ?", id).First(&topic).Error; err != nil {
		return nil, translateError(err)
	}
	return &topic, nil
}

func (t *TopicPostgreSQL) GetByIDs(ctx context.Context, ids []string) ([]*models.Topic, error) {
	var topics []*models.Topic
	if len(ids) == 0 {
		return topics, nil
	}
	if err := t.db.WithContext(ctx).Where("id IN ?", ids).Find(&topics).Error; err != nil {
		return nil, err
	}
	return topics, nil
}

func (t *TopicPostgreSQL) FindMissing(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var found []string
	if err := t.db.WithContext(ctx).
		Model(&models.Topic{}).
		Where("id IN ?", ids).
		Pluck("id", &found).Error; err != nil {
		return nil, err
	}

	existing := make(map[string]bool, len(found))
	for _, id := range found {
		existing[id] = true
	}

	var missing []string
	for _, id := range ids {
		if !existing[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

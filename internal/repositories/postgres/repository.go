package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/SAP-F-2025/mocktest-service/internal/models"
	"github.com/SAP-F-2025/mocktest-service/internal/repositories"
	"gorm.io/gorm"
)

type postgresRepository struct {
	db         *gorm.DB
	topic      repositories.TopicRepository
	question   repositories.QuestionRepository
	mockTest   repositories.MockTestRepository
	session    repositories.SessionRepository
	evaluation repositories.EvaluationRepository
}

// NewRepository builds the gorm-backed persistence aggregate
func NewRepository(db *gorm.DB) repositories.Repository {
	return &postgresRepository{
		db:         db,
		topic:      NewTopicPostgreSQL(db),
		question:   NewQuestionPostgreSQL(db),
		mockTest:   NewMockTestPostgreSQL(db),
		session:    NewSessionPostgreSQL(db),
		evaluation: NewEvaluationPostgreSQL(db),
	}
}

// AutoMigrate creates or updates every table the service owns
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Topic{},
		&models.Question{},
		&models.MockTest{},
		&models.MockTestQuestion{},
		&models.TestSession{},
		&models.UserAnswer{},
		&models.Evaluation{},
		&models.TopicScore{},
	)
}

func (r *postgresRepository) Topic() repositories.TopicRepository { return r.topic }
func (r *postgresRepository) Question() repositories.QuestionRepository { return r.question }
func (r *postgresRepository) MockTest() repositories.MockTestRepository { return r.mockTest }
func (r *postgresRepository) Session() repositories.SessionRepository { return r.session }
func (r *postgresRepository) Evaluation() repositories.EvaluationRepository { return r.evaluation }

func (r *postgresRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}

func (r *postgresRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql db: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (r *postgresRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translateError maps gorm errors onto the repository error vocabulary
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repositories.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", repositories.ErrDuplicate, err)
	default:
		return err
	}
}

package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/SAP-F-2025/mocktest-service/internal/models"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// IsNotFoundError reports whether err means the record does not exist
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateError reports whether err is a unique constraint violation
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate) || errors.Is(err, gorm.ErrDuplicatedKey)
}

// Repository is the persistence port aggregate
type Repository interface {
	Topic() TopicRepository
	Question() QuestionRepository
	MockTest() MockTestRepository
	Session() SessionRepository
	Evaluation() EvaluationRepository

	// WithTransaction runs fn against a repository bound to a single transaction
	WithTransaction(ctx context.Context, fn func(Repository) error) error
	Ping(ctx context.Context) error
	Close() error
}

type TopicRepository interface {
	Upsert(ctx context.Context, topic *models.Topic) error
	GetByID(ctx context.Context, id string) (*models.Topic, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.Topic, error)
	// FindMissing returns the ids that have no topic record, in input order
	FindMissing(ctx context.Context, ids []string) ([]string, error)
}

// QuestionFilters narrows bank lookups used by retrieval fallbacks
type QuestionFilters struct {
	TopicIDs   []string `json:"topic_ids"`
	ExcludeIDs []string `json:"exclude_ids"`
	Limit      int      `json:"limit"`
}

type QuestionRepository interface {
	// Upsert inserts or replaces the question keyed by id
	Upsert(ctx context.Context, question *models.Question) error
	UpsertBatch(ctx context.Context, questions []*models.Question) error
	GetByID(ctx context.Context, id string) (*models.Question, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.Question, error)
	List(ctx context.Context, filters QuestionFilters) ([]*models.Question, error)
	CountByTopics(ctx context.Context, topicIDs []string) (int64, error)
}

type MockTestRepository interface {
	// CreateWithQuestions persists the test and its ordered question links
	CreateWithQuestions(ctx context.Context, test *models.MockTest) error
	GetByID(ctx context.Context, id string) (*models.MockTest, error)
	// GetByIDWithQuestions preloads links and their questions
	GetByIDWithQuestions(ctx context.Context, id string) (*models.MockTest, error)
	ListByRun(ctx context.Context, runID string) ([]*models.MockTest, error)
	UpdateStatus(ctx context.Context, id string, status models.TestStatus) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.TestSession) error
	GetByID(ctx context.Context, id string) (*models.TestSession, error)
	GetByIDWithResponses(ctx context.Context, id string) (*models.TestSession, error)
	// GetActive returns nil, nil when the user has no in-progress session for the test
	GetActive(ctx context.Context, testID, userID string) (*models.TestSession, error)
	UpsertResponse(ctx context.Context, answer *models.UserAnswer) error
	GetResponses(ctx context.Context, sessionID string) ([]*models.UserAnswer, error)
	// MarkSubmitted flips InProgress to Submitted and reports whether this call won
	MarkSubmitted(ctx context.Context, id string, submittedAt time.Time) (bool, error)
}

type EvaluationRepository interface {
	// Create persists the evaluation and its topic scores; a second evaluation
	// for the same session fails with ErrDuplicate
	Create(ctx context.Context, evaluation *models.Evaluation) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.Evaluation, error)
}

// PoolMetrics describes datastore connection pool usage
type PoolMetrics struct {
	Active             int     `json:"active"`
	Idle               int     `json:"idle"`
	Total              int     `json:"total"`
	UtilizationPercent float64 `json:"utilization_percent"`
}

type PoolProbe interface {
	GetPoolMetrics(ctx context.Context) (PoolMetrics, error)
}

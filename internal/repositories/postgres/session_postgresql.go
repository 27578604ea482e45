package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/SAP-F-2025/mocktest-service/internal/models"
	"github.com/SAP-F-2025/mocktest-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SessionPostgreSQL struct {
	db *gorm.DB
}

func NewSessionPostgreSQL(db *gorm.DB) repositories.SessionRepository {
	return &SessionPostgreSQL{db: db}
}

func (s *SessionPostgreSQL) Create(ctx context.Context, session *models.TestSession) error {
	return translateError(s.db.WithContext(ctx).Omit(clause.Associations).Create(session).Error)
}

func (s *SessionPostgreSQL) GetByID(ctx context.Context, id string) (*models.TestSession, error) {
	var session models.TestSession
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		return nil, translateError(err)
	}
	return &session, nil
}

func (s *SessionPostgreSQL) GetByIDWithResponses(ctx context.Context, id string) (*models.TestSession, error) {
	var session models.TestSession
	if err := s.db.WithContext(ctx).
		Preload("Responses").
		Where("id = ?", id).
		First(&session).Error; err != nil {
		return nil, translateError(err)
	}
	return &session, nil
}

func (s *SessionPostgreSQL) GetActive(ctx context.Context, testID, userID string) (*models.TestSession, error) {
	var session models.TestSession
	if err := s.db.WithContext(ctx).
		Where("test_id = ? AND user_id = ? AND status = ?", testID, userID, models.SessionInProgress).
		Order("started_at DESC").
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (s *SessionPostgreSQL) UpsertResponse(ctx context.Context, answer *models.UserAnswer) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"answer", "answered_at"}),
		}).
		Create(answer).Error
}

func (s *SessionPostgreSQL) GetResponses(ctx context.Context, sessionID string) ([]*models.UserAnswer, error) {
	var answers []*models.UserAnswer
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("answered_at ASC").
		Find(&answers).Error; err != nil {
		return nil, err
	}
	return answers, nil
}

// MarkSubmitted is a conditional write: only the caller that observes the
// InProgress row flips it.
func (s *SessionPostgreSQL) MarkSubmitted(ctx context.Context, id string, submittedAt time.Time) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&models.TestSession{}).
		Where("id = ? AND status = ?", id, models.SessionInProgress).
		Updates(map[string]interface{}{
			"status":       models.SessionSubmitted,
			"submitted_at": submittedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

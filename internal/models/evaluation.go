package models

import (
	"time"

	"gorm.io/datatypes"
)

type Evaluation struct {
	ID           string                      `json:"id" gorm:"primaryKey;size:64"`
	SessionID    string                      `json:"session_id" gorm:"not null;uniqueIndex;size:64"`
	TestID       string                      `json:"test_id" gorm:"not null;index;size:64"`
	UserID       string                      `json:"user_id" gorm:"not null;index;size:255"`
	OverallScore float64                     `json:"overall_score"` // 0-100, points weighted
	EarnedPoints float64                     `json:"earned_points"`
	TotalPoints  float64                     `json:"total_points"`
	CorrectCount int                         `json:"correct_count"`
	TotalCount   int                         `json:"total_count"`
	WeakTopics   datatypes.JSONSlice[string] `json:"weak_topics" gorm:"type:jsonb"`
	Suggestions  datatypes.JSONSlice[string] `json:"suggestions" gorm:"type:jsonb"`
	EvaluatedAt  time.Time                   `json:"evaluated_at"`

	TopicScores []TopicScore `json:"topic_scores" gorm:"foreignKey:EvaluationID"`
}

func (Evaluation) TableName() string {
	return "evaluations"
}

type TopicScore struct {
	ID             uint    `json:"-" gorm:"primaryKey"`
	EvaluationID   string  `json:"-" gorm:"not null;index;size:64"`
	TopicID        string  `json:"topic_id" gorm:"not null;size:128"`
	TopicName      string  `json:"topic_name" gorm:"size:200"`
	Correct        int     `json:"correct"`
	Total          int     `json:"total"`
	EarnedPoints   float64 `json:"earned_points"`
	PossiblePoints float64 `json:"possible_points"`
	Percentage     float64 `json:"percentage"`
}

func (TopicScore) TableName() string {
	return "topic_scores"
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

type Topic struct {
	ID              string                      `json:"id" gorm:"primaryKey;size:128"`
	Name            string                      `json:"name" gorm:"not null;size:200"`
	Subject         string                      `json:"subject" gorm:"size:100;index"`
	Description     string                      `json:"description" gorm:"type:text"`
	RelatedConcepts datatypes.JSONSlice[string] `json:"related_concepts" gorm:"type:jsonb"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
}

func (Topic) TableName() string {
	return "topics"
}

// TopicRef is the id/name pair used when planning a distribution.
type TopicRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TopicDistribution is derived per generation run and never persisted.
type TopicDistribution struct {
	TopicID       string `json:"topic_id"`
	TopicName     string `json:"topic_name"`
	QuestionCount int    `json:"question_count"`
}

// SyllabusContext grounds generation for a single topic.
type SyllabusContext struct {
	TopicID         string   `json:"topic_id"`
	TopicName       string   `json:"topic_name"`
	Content         string   `json:"content"`
	RelatedConcepts []string `json:"related_concepts"`
}

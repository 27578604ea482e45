package models

import (
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "MultipleChoice"
	ShortAnswer    QuestionType = "ShortAnswer"
	Numerical      QuestionType = "Numerical"
)

func (t QuestionType) IsValid() bool {
	switch t {
	case MultipleChoice, ShortAnswer, Numerical:
		return true
	}
	return false
}

type DifficultyLevel string

// DifficultyExamRealistic is the only tier sourced questions may carry.
const DifficultyExamRealistic DifficultyLevel = "ExamRealistic"

type QuestionSource string

const (
	SourceRetrieved QuestionSource = "retrieved"
	SourceGenerated QuestionSource = "generated"
	SourceImported  QuestionSource = "imported"
)

type Question struct {
	ID                string                      `json:"id" gorm:"primaryKey;size:64"`
	TopicID           string                      `json:"topic_id" gorm:"not null;index;size:128"`
	Text              string                      `json:"text" gorm:"type:text;not null"`
	Type              QuestionType                `json:"type" gorm:"not null;size:32;index"`
	Options           datatypes.JSONSlice[string] `json:"options,omitempty" gorm:"type:jsonb"`
	CorrectAnswer     Answer                      `json:"correct_answer" gorm:"type:text;not null"`
	SolutionSteps     datatypes.JSONSlice[string] `json:"solution_steps,omitempty" gorm:"type:jsonb"`
	SyllabusReference string                      `json:"syllabus_reference" gorm:"size:255"`
	Difficulty        DifficultyLevel             `json:"difficulty" gorm:"not null;size:32;default:ExamRealistic"`
	Source            QuestionSource              `json:"source" gorm:"size:20;default:retrieved"`
	CreatedAt         time.Time                   `json:"created_at"`
}

func (Question) TableName() string {
	return "questions"
}

// IsMultiSelect reports whether the question is scored with partial credit.
func (q *Question) IsMultiSelect() bool {
	return q.CorrectAnswer.IsSet
}

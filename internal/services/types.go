package services

import (
	"time"

	"github.com/SAP-F-2025/mocktest-service/internal/models"
)

// ===== SESSION VIEWS =====

// SessionQuestion is a test question as shown to the taker, without the answer
type SessionQuestion struct {
	QuestionID string              `json:"question_id"`
	Position   int                 `json:"position"`
	TopicID    string              `json:"topic_id"`
	Text       string              `json:"text"`
	Type       models.QuestionType `json:"type"`
	Options    []string            `json:"options,omitempty"`
	Points     float64             `json:"points"`
	// MultiSelect tells the client to accept several options
	MultiSelect bool `json:"multi_select"`
}

type SessionResponse struct {
	Session   *models.TestSession `json:"session"`
	Questions []SessionQuestion   `json:"questions"`
}

// SubmissionSnapshot is the frozen state of a submitted session
type SubmissionSnapshot struct {
	Session   *models.TestSession `json:"session"`
	Responses []models.UserAnswer `json:"responses"`
}

type SubmitAnswerRequest struct {
	QuestionID string        `json:"question_id" validate:"required"`
	Answer     models.Answer `json:"answer"`
}

// SubmissionResult is the outcome of the retry-wrapped submit path
type SubmissionResult struct {
	Snapshot   *SubmissionSnapshot `json:"snapshot"`
	Evaluation *models.Evaluation  `json:"evaluation"`
	Attempts   int                 `json:"attempts"`
}

// ===== POST-SUBMISSION READS =====

type AnswerKeyEntry struct {
	QuestionID    string        `json:"question_id"`
	Position      int           `json:"position"`
	CorrectAnswer models.Answer `json:"correct_answer"`
	SolutionSteps []string      `json:"solution_steps,omitempty"`
}

type AnswerKeyResponse struct {
	SessionID string           `json:"session_id"`
	TestID    string           `json:"test_id"`
	Entries   []AnswerKeyEntry `json:"entries"`
}

type AnswerComparisonItem struct {
	QuestionID     string              `json:"question_id"`
	Position       int                 `json:"position"`
	TopicID        string              `json:"topic_id"`
	Text           string              `json:"text"`
	Type           models.QuestionType `json:"type"`
	Options        []string            `json:"options,omitempty"`
	UserAnswer     *models.Answer      `json:"user_answer"`
	CorrectAnswer  models.Answer       `json:"correct_answer"`
	IsCorrect      bool                `json:"is_correct"`
	PointsEarned   float64             `json:"points_earned"`
	PointsPossible float64             `json:"points_possible"`
	SolutionSteps  []string            `json:"solution_steps,omitempty"`
}

type AnswerComparisonResponse struct {
	SessionID    string                 `json:"session_id"`
	TestID       string                 `json:"test_id"`
	SubmittedAt  *time.Time             `json:"submitted_at"`
	EarnedPoints float64                `json:"earned_points"`
	TotalPoints  float64                `json:"total_points"`
	Items        []AnswerComparisonItem `json:"items"`
}

// ===== GENERATION =====

type GenerateTestsResponse struct {
	RunID string             `json:"run_id"`
	Tests []*models.MockTest `json:"tests"`
}

package models

import "time"

type SessionStatus string

const (
	SessionInProgress SessionStatus = "InProgress"
	SessionSubmitted  SessionStatus = "Submitted"
)

type TestSession struct {
	ID          string        `json:"id" gorm:"primaryKey;size:64"`
	TestID      string        `json:"test_id" gorm:"not null;index:idx_session_test_user;size:64"`
	UserID      string        `json:"user_id" gorm:"not null;index:idx_session_test_user;size:255"`
	Status      SessionStatus `json:"status" gorm:"not null;size:20;default:InProgress"`
	StartedAt   time.Time     `json:"started_at"`
	SubmittedAt *time.Time    `json:"submitted_at"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`

	Responses []UserAnswer `json:"responses,omitempty" gorm:"foreignKey:SessionID"`
}

func (TestSession) TableName() string {
	return "test_sessions"
}

func (s *TestSession) IsSubmitted() bool {
	return s.Status == SessionSubmitted
}

// ResponseMap indexes responses by question id.
func (s *TestSession) ResponseMap() map[string]UserAnswer {
	out := make(map[string]UserAnswer, len(s.Responses))
	for _, r := range s.Responses {
		out[r.QuestionID] = r
	}
	return out
}

// UserAnswer is upserted per (session, question); the last write wins.
type UserAnswer struct {
	ID         uint      `json:"-" gorm:"primaryKey"`
	SessionID  string    `json:"session_id" gorm:"not null;size:64;uniqueIndex:idx_response_session_question"`
	QuestionID string    `json:"question_id" gorm:"not null;size:64;uniqueIndex:idx_response_session_question"`
	Answer     Answer    `json:"answer" gorm:"type:text"`
	AnsweredAt time.Time `json:"answered_at"`
}

func (UserAnswer) TableName() string {
	return "session_responses"
}

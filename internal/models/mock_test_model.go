package models

import (
	"sort"
	"time"

	"gorm.io/datatypes"
)

type TestMode string

const (
	// InAppExam restricts questions to single-answer multiple choice.
	InAppExam   TestMode = "InAppExam"
	PDFDownload TestMode = "PDFDownload"
)

func (m TestMode) IsValid() bool {
	return m == InAppExam || m == PDFDownload
}

type TestStatus string

const (
	TestStatusGenerated  TestStatus = "Generated"
	TestStatusInProgress TestStatus = "InProgress"
	TestStatusSubmitted  TestStatus = "Submitted"
)

// TestConfiguration is immutable once a generation run starts.
type TestConfiguration struct {
	Subject       string   `json:"subject"`
	Topics        []string `json:"topics" validate:"min=1"`
	QuestionCount int      `json:"question_count" validate:"min=1"`
	TestCount     int      `json:"test_count" validate:"min=1"`
	TestMode      TestMode `json:"test_mode" validate:"omitempty,test_mode"`
}

// TotalRequested is the number of distinct questions a run needs.
func (c TestConfiguration) TotalRequested() int {
	return c.QuestionCount * c.TestCount
}

type MockTest struct {
	ID            string                                  `json:"id" gorm:"primaryKey;size:64"`
	RunID         string                                  `json:"run_id" gorm:"not null;index;size:64"`
	RequesterID   string                                  `json:"requester_id" gorm:"not null;index;size:255"`
	Subject       string                                  `json:"subject" gorm:"size:100"`
	TestMode      TestMode                                `json:"test_mode" gorm:"not null;size:20"`
	Configuration datatypes.JSONType[TestConfiguration]   `json:"configuration" gorm:"type:jsonb"`
	AnswerKey     datatypes.JSONType[map[string]Answer]   `json:"-" gorm:"type:jsonb"`
	Status        TestStatus                              `json:"status" gorm:"not null;size:20;default:Generated;index"`
	CreatedAt     time.Time                               `json:"created_at"`
	UpdatedAt     time.Time                               `json:"updated_at"`
	Questions     []MockTestQuestion                      `json:"questions" gorm:"foreignKey:TestID"`
}

func (MockTest) TableName() string {
	return "mock_tests"
}

// MockTestQuestion links a question to a test at a fixed position.
type MockTestQuestion struct {
	TestID     string    `json:"test_id" gorm:"primaryKey;size:64"`
	QuestionID string    `json:"question_id" gorm:"primaryKey;size:64"`
	Position   int       `json:"position" gorm:"not null"`
	Points     float64   `json:"points" gorm:"not null;default:1"`
	Question   *Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
}

func (MockTestQuestion) TableName() string {
	return "mock_test_questions"
}

// OrderedLinks returns the question links sorted by position.
func (t *MockTest) OrderedLinks() []MockTestQuestion {
	links := make([]MockTestQuestion, len(t.Questions))
	copy(links, t.Questions)
	sort.SliceStable(links, func(i, j int) bool {
		return links[i].Position < links[j].Position
	})
	return links
}

func (t *MockTest) QuestionIDs() []string {
	links := t.OrderedLinks()
	ids := make([]string, len(links))
	for i, l := range links {
		ids[i] = l.QuestionID
	}
	return ids
}

func (t *MockTest) HasQuestion(questionID string) bool {
	for _, l := range t.Questions {
		if l.QuestionID == questionID {
			return true
		}
	}
	return false
}

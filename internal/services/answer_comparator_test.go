package services

import (
	"testing"

	"github.com/SAP-F-2025/mocktest-service/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeAnswer(t *testing.T) {
	assert.Equal(t, "new delhi", NormalizeAnswer("  New   \tDelhi \n"))
	assert.Equal(t, "", NormalizeAnswer("   "))
}

func TestCompareAnswers(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		correct  string
		qType    models.QuestionType
		expected bool
	}{
		{"numeric within tolerance", "4.00001", "4", models.Numerical, true},
		{"numeric outside tolerance", "4.1", "4", models.Numerical, false},
		{"numeric formatting", " 4.0 ", "4", models.Numerical, true},
		{"numeric falls back to text", "four", "Four", models.Numerical, true},
		{"numeric one side unparsable", "4", "four", models.Numerical, false},
		{"short answer case and spacing", "  photo   Synthesis", "Photo synthesis", models.ShortAnswer, true},
		{"short answer mismatch", "mitosis", "meiosis", models.ShortAnswer, false},
		{"multiple choice exact", "B", "b", models.MultipleChoice, true},
		{"multiple choice no tolerance", "4.00001", "4", models.MultipleChoice, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CompareAnswers(tt.user, tt.correct, tt.qType))
		})
	}
}

func TestCalculatePartialCredit(t *testing.T) {
	assert.InDelta(t, 2.0/3.0, CalculatePartialCredit([]string{"a", "b"}, []string{"a", "b", "c"}, 1), 1e-9)
	assert.Equal(t, 0.0, CalculatePartialCredit([]string{"a", "x"}, []string{"a", "b"}, 1))
	assert.Equal(t, 0.0, CalculatePartialCredit([]string{"x", "y", "a"}, []string{"a", "b"}, 1), "floored at zero")
	assert.Equal(t, 4.0, CalculatePartialCredit([]string{"B", " a "}, []string{"a", "b"}, 4))
	assert.Equal(t, 2.0, CalculatePartialCredit([]string{"a", "a", "A"}, []string{"a", "b"}, 4), "repeated selections count once")
	assert.Equal(t, 0.0, CalculatePartialCredit([]string{"a"}, nil, 1))
	assert.Equal(t, 0.0, CalculatePartialCredit(nil, []string{"a"}, 1))
}

func TestScoreAnswer(t *testing.T) {
	multi := &models.Question{Type: models.MultipleChoice, CorrectAnswer: models.SetAnswer("a", "b")}
	single := &models.Question{Type: models.Numerical, CorrectAnswer: models.SingleAnswer("9.81")}

	earned, correct := ScoreAnswer(multi, models.SetAnswer("a", "b"), 2)
	assert.Equal(t, 2.0, earned)
	assert.True(t, correct)

	earned, correct = ScoreAnswer(multi, models.SetAnswer("a"), 2)
	assert.Equal(t, 1.0, earned)
	assert.False(t, correct, "partial credit is not counted as correct")

	earned, correct = ScoreAnswer(multi, models.SingleAnswer("a"), 2)
	assert.Equal(t, 1.0, earned, "scalar answer to a multi-select is one selection")
	assert.False(t, correct)

	earned, correct = ScoreAnswer(single, models.SingleAnswer("9.81001"), 1)
	assert.Equal(t, 1.0, earned)
	assert.True(t, correct)

	earned, correct = ScoreAnswer(single, models.SetAnswer("9.81"), 1)
	assert.Equal(t, 1.0, earned, "single element set compares as a scalar")
	assert.True(t, correct)

	earned, correct = ScoreAnswer(single, models.Answer{}, 1)
	assert.Zero(t, earned)
	assert.False(t, correct)
}

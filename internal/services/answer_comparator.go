package services

import (
	"math"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/mocktest-service/internal/models"
)

// numericTolerance is the absolute difference under which two numerical answers match
const numericTolerance = 1e-4

// NormalizeAnswer trims, lowercases and collapses internal whitespace
func NormalizeAnswer(answer string) string {
	return strings.Join(strings.Fields(strings.ToLower(answer)), " ")
}

// CompareAnswers scores a single-answer question
func CompareAnswers(userAnswer, correctAnswer string, questionType models.QuestionType) bool {
	user := NormalizeAnswer(userAnswer)
	correct := NormalizeAnswer(correctAnswer)

	if questionType == models.Numerical {
		userValue, userErr := strconv.ParseFloat(user, 64)
		correctValue, correctErr := strconv.ParseFloat(correct, 64)
		if userErr == nil && correctErr == nil {
			return math.Abs(userValue-correctValue) < numericTolerance
		}
	}

	return user == correct
}

// CalculatePartialCredit scores a multi-select question. Each wrong selection cancels one
// right selection and the ratio is floored at zero. Duplicate selections count once.
func CalculatePartialCredit(userAnswers, correctAnswers []string, points float64) float64 {
	correct := make(map[string]bool, len(correctAnswers))
	for _, a := range correctAnswers {
		correct[NormalizeAnswer(a)] = true
	}
	if len(correct) == 0 {
		return 0
	}

	seen := make(map[string]bool, len(userAnswers))
	var right, wrong int
	for _, a := range userAnswers {
		normalized := NormalizeAnswer(a)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		if correct[normalized] {
			right++
		} else {
			wrong++
		}
	}

	ratio := float64(right-wrong) / float64(len(correct))
	if ratio < 0 {
		ratio = 0
	}
	return ratio * points
}

// ScoreAnswer returns the points earned and whether the answer counts as fully correct.
// A missing or empty answer earns nothing.
func ScoreAnswer(question *models.Question, answer models.Answer, points float64) (float64, bool) {
	if answer.IsEmpty() {
		return 0, false
	}

	if question.CorrectAnswer.IsSet {
		selections := answer.Set
		if !answer.IsSet {
			selections = []string{answer.Single}
		}
		ratio := CalculatePartialCredit(selections, question.CorrectAnswer.Set, 1)
		return ratio * points, math.Abs(ratio-1) < 1e-9
	}

	value := answer.Single
	if answer.IsSet {
		if len(answer.Set) != 1 {
			return 0, false
		}
		value = answer.Set[0]
	}
	if CompareAnswers(value, question.CorrectAnswer.Single, question.Type) {
		return points, true
	}
	return 0, false
}

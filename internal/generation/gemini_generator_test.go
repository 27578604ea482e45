package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/SAP-F-2025/mocktest-service/internal/config"
	"github.com/SAP-F-2025/mocktest-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geminiServer(t *testing.T, text string, capture *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))

		body, _ := io.ReadAll(r.Body)
		if capture != nil {
			*capture = string(body)
		}

		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]string{{"text": text}},
				}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestGenerator(baseURL string) *GeminiGenerator {
	return NewGeminiGenerator(config.AIConfig{
		APIKey:    "secret",
		BaseURL:   baseURL,
		Model:     "test-model",
		TimeoutMS: 5000,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGeminiGenerator_GenerateQuestions(t *testing.T) {
	payload := `{"questions": [
		{"text": "2 + 2 = ?", "type": "Numerical", "correct_answer": "4", "solution_steps": ["add"]},
		{"text": "Pick primes", "type": "MultipleChoice", "options": ["2", "3", "4"], "correct_answer": ["2", "3"]}
	]}`

	var sent string
	server := geminiServer(t, "```json\n"+payload+"\n```", &sent)
	defer server.Close()

	g := newTestGenerator(server.URL)
	existing := []*models.Question{{Text: "What is 1 + 1?"}}

	questions, err := g.GenerateQuestions(context.Background(), models.SyllabusContext{
		TopicID:   "arith",
		TopicName: "Arithmetic",
		Content:   "Addition of integers",
	}, 2, existing, "Maths", models.PDFDownload)
	require.NoError(t, err)
	require.Len(t, questions, 2)

	for _, q := range questions {
		assert.Equal(t, "arith", q.TopicID)
		assert.Equal(t, models.DifficultyExamRealistic, q.Difficulty)
		assert.Equal(t, models.SourceGenerated, q.Source)
		assert.NotEmpty(t, q.ID)
	}
	assert.Equal(t, models.SingleAnswer("4"), questions[0].CorrectAnswer)
	assert.Empty(t, questions[0].Options)
	assert.Equal(t, models.SetAnswer("2", "3"), questions[1].CorrectAnswer)
	assert.Equal(t, "Arithmetic", questions[1].SyllabusReference)

	assert.Contains(t, sent, "What is 1 + 1?")
	assert.Contains(t, sent, "Subject: Maths")
	assert.Contains(t, sent, "responseMimeType")
}

func TestGeminiGenerator_InAppExamPrompt(t *testing.T) {
	var sent string
	server := geminiServer(t, `{"questions": []}`, &sent)
	defer server.Close()

	questions, err := newTestGenerator(server.URL).GenerateQuestions(context.Background(),
		models.SyllabusContext{TopicID: "t"}, 1, nil, "", models.InAppExam)
	require.NoError(t, err)
	assert.Empty(t, questions)
	assert.True(t, strings.Contains(sent, "exactly one correct option"))
}

func TestGeminiGenerator_PromptListsEveryExistingQuestion(t *testing.T) {
	var sent string
	server := geminiServer(t, `{"questions": []}`, &sent)
	defer server.Close()

	existing := make([]*models.Question, 0, 70)
	for i := 0; i < 70; i++ {
		existing = append(existing, &models.Question{
			Text: fmt.Sprintf("Existing question %02d about the behaviour of light passing through a thin convex lens", i),
		})
	}

	_, err := newTestGenerator(server.URL).GenerateQuestions(context.Background(),
		models.SyllabusContext{TopicID: "optics", TopicName: "Optics"}, 5, existing, "Physics", models.PDFDownload)
	require.NoError(t, err)

	for i := 0; i < 70; i++ {
		assert.Contains(t, sent, fmt.Sprintf("Existing question %02d", i))
	}
	assert.Contains(t, sent, existing[69].Text)
	assert.Contains(t, sent, existing[20].Text)
	assert.NotContains(t, sent, existing[0].Text, "older questions are abbreviated")
	assert.Contains(t, sent, "earlier questions (abbreviated)")
}

func TestAbbreviate(t *testing.T) {
	assert.Equal(t, "short text", abbreviate("  short \n text ", 60))
	assert.Equal(t, "abcde...", abbreviate("abcdefgh", 5))
}

func TestGeminiGenerator_MalformedResponse(t *testing.T) {
	server := geminiServer(t, "not json", nil)
	defer server.Close()

	_, err := newTestGenerator(server.URL).GenerateQuestions(context.Background(),
		models.SyllabusContext{TopicID: "t"}, 1, nil, "", models.PDFDownload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed generation response")
}

func TestGeminiGenerator_UnknownType(t *testing.T) {
	server := geminiServer(t, `{"questions": [{"text": "x", "type": "Essay", "correct_answer": "y"}]}`, nil)
	defer server.Close()

	_, err := newTestGenerator(server.URL).GenerateQuestions(context.Background(),
		models.SyllabusContext{TopicID: "t"}, 1, nil, "", models.PDFDownload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown question type")
}

func TestGeminiGenerator_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestGenerator(server.URL).GenerateQuestions(context.Background(),
		models.SyllabusContext{TopicID: "t"}, 1, nil, "", models.PDFDownload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/SAP-F-2025/mocktest-service/internal/config"
	"github.com/SAP-F-2025/mocktest-service/internal/models"
	"github.com/google/uuid"
)

// maxExistingInPrompt caps how many recent prior questions are quoted in full.
// Older ones are still listed, cut to abbreviatedQuestionLen runes.
const (
	maxExistingInPrompt    = 50
	abbreviatedQuestionLen = 60
)

// GeminiGenerator produces syllabus-grounded questions through the Gemini
// generateContent API in JSON mode.
type GeminiGenerator struct {
	config config.AIConfig
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewGeminiGenerator(cfg config.AIConfig, logger *slog.Logger) *GeminiGenerator {
	return &GeminiGenerator{
		config: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		},
		logger: logger,
		now:    time.Now,
	}
}

type generatedQuestion struct {
	Text              string          `json:"text"`
	Type              string          `json:"type"`
	Options           []string        `json:"options"`
	CorrectAnswer     json.RawMessage `json:"correct_answer"`
	SolutionSteps     []string        `json:"solution_steps"`
	SyllabusReference string          `json:"syllabus_reference"`
}

type generationResponse struct {
	Questions []generatedQuestion `json:"questions"`
}

// GenerateQuestions asks the model for count questions on the context's topic.
// Returned questions are stamped with the topic id, a fresh id and the
// exam-realistic difficulty.
func (g *GeminiGenerator) GenerateQuestions(
	ctx context.Context,
	syllabus models.SyllabusContext,
	count int,
	existing []*models.Question,
	subject string,
	mode models.TestMode,
) ([]*models.Question, error) {
	if count <= 0 {
		return []*models.Question{}, nil
	}

	prompt := g.buildPrompt(syllabus, count, existing, subject, mode)

	start := g.now()
	response, err := g.callGemini(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generation request failed: %w", err)
	}

	var parsed generationResponse
	if err := json.Unmarshal([]byte(stripCodeFence(response)), &parsed); err != nil {
		return nil, fmt.Errorf("malformed generation response: %w", err)
	}

	createdAt := g.now()
	questions := make([]*models.Question, 0, len(parsed.Questions))
	for i, item := range parsed.Questions {
		question, err := toQuestion(item, syllabus, createdAt)
		if err != nil {
			return nil, fmt.Errorf("malformed generated question %d: %w", i+1, err)
		}
		questions = append(questions, question)
	}

	g.logger.Info("Generated questions",
		"topic_id", syllabus.TopicID,
		"requested", count,
		"received", len(questions),
		"duration", time.Since(start))

	return questions, nil
}

func toQuestion(item generatedQuestion, syllabus models.SyllabusContext, createdAt time.Time) (*models.Question, error) {
	if strings.TrimSpace(item.Text) == "" {
		return nil, fmt.Errorf("empty question text")
	}

	questionType := models.QuestionType(item.Type)
	if !questionType.IsValid() {
		return nil, fmt.Errorf("unknown question type %q", item.Type)
	}

	var answer models.Answer
	if len(item.CorrectAnswer) == 0 {
		return nil, fmt.Errorf("missing correct answer")
	}
	if err := json.Unmarshal(item.CorrectAnswer, &answer); err != nil {
		return nil, fmt.Errorf("invalid correct answer: %w", err)
	}
	if answer.IsEmpty() {
		return nil, fmt.Errorf("missing correct answer")
	}

	question := &models.Question{
		ID:                uuid.NewString(),
		TopicID:           syllabus.TopicID,
		Text:              strings.TrimSpace(item.Text),
		Type:              questionType,
		CorrectAnswer:     answer,
		SolutionSteps:     item.SolutionSteps,
		SyllabusReference: item.SyllabusReference,
		Difficulty:        models.DifficultyExamRealistic,
		Source:            models.SourceGenerated,
		CreatedAt:         createdAt,
	}
	if questionType == models.MultipleChoice {
		question.Options = item.Options
	}
	if question.SyllabusReference == "" {
		question.SyllabusReference = syllabus.TopicName
	}
	return question, nil
}

func (g *GeminiGenerator) buildPrompt(syllabus models.SyllabusContext, count int, existing []*models.Question, subject string, mode models.TestMode) string {
	var b strings.Builder

	b.WriteString("You are writing exam-realistic practice questions. Return ONLY valid JSON matching this schema:\n")
	b.WriteString(`{"questions": [{"text": "...", "type": "MultipleChoice" | "ShortAnswer" | "Numerical", "options": ["..."], "correct_answer": "..." or ["...", "..."], "solution_steps": ["..."], "syllabus_reference": "..."}]}`)
	b.WriteString("\n\n")

	if subject != "" {
		fmt.Fprintf(&b, "Subject: %s\n", subject)
	}
	fmt.Fprintf(&b, "Topic: %s\n", syllabus.TopicName)
	if syllabus.Content != "" {
		fmt.Fprintf(&b, "Syllabus content:\n%s\n", syllabus.Content)
	}
	if len(syllabus.RelatedConcepts) > 0 {
		fmt.Fprintf(&b, "Related concepts: %s\n", strings.Join(syllabus.RelatedConcepts, ", "))
	}

	fmt.Fprintf(&b, "\nWrite exactly %d questions at the difficulty of a real exam.\n", count)
	if mode == models.InAppExam {
		b.WriteString("Every question MUST be MultipleChoice with exactly one correct option; correct_answer must be a single string equal to one option.\n")
	} else {
		b.WriteString("Mix MultipleChoice, ShortAnswer and Numerical questions. Multi-select questions give correct_answer as an array of options.\n")
	}
	b.WriteString("Always include step-by-step solution_steps.\n")

	if len(existing) > 0 {
		b.WriteString("\nDo not repeat or paraphrase any of these existing questions:\n")
		start := 0
		if len(existing) > maxExistingInPrompt {
			start = len(existing) - maxExistingInPrompt
		}
		for _, q := range existing[start:] {
			fmt.Fprintf(&b, "- %s\n", q.Text)
		}
		if start > 0 {
			b.WriteString("Also avoid these earlier questions (abbreviated):\n")
			for _, q := range existing[:start] {
				fmt.Fprintf(&b, "- %s\n", abbreviate(q.Text, abbreviatedQuestionLen))
			}
		}
	}

	return b.String()
}

func abbreviate(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

// callGemini makes a request to the Gemini API
func (g *GeminiGenerator) callGemini(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]string{
					{"text": prompt},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"responseMimeType": "application/json",
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s?key=%s", g.config.ModelEndpoint(), g.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var geminiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}

	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", err
	}

	if len(geminiResp.Candidates) > 0 && len(geminiResp.Candidates[0].Content.Parts) > 0 {
		return geminiResp.Candidates[0].Content.Parts[0].Text, nil
	}

	return "", fmt.Errorf("empty response from Gemini")
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

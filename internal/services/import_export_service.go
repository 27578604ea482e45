package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/SAP-F-2025/mocktest-service/internal/models"
	"github.com/SAP-F-2025/mocktest-service/internal/repositories"
	"github.com/SAP-F-2025/mocktest-service/internal/validator"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// listSeparator splits options and solution steps inside one cell
const listSeparator = "|"

// ImportExportService moves bank questions and assembled tests in and out of spreadsheets
type ImportExportService interface {
	// Import operations
	ImportQuestionsFromFile(ctx context.Context, reader io.Reader, filename, defaultTopic string) (*models.ImportSummary, error)
	ImportQuestionsFromCSV(ctx context.Context, reader io.Reader, defaultTopic string) (*models.ImportSummary, error)
	ImportQuestionsFromExcel(ctx context.Context, reader io.Reader, defaultTopic string) (*models.ImportSummary, error)

	// Export operations
	ExportTestToExcel(ctx context.Context, testID, requesterID string) ([]byte, error)
}

type importExportService struct {
	repo      repositories.Repository
	retriever Retriever
	logger    *slog.Logger
	validator *validator.Validator
}

func NewImportExportService(repo repositories.Repository, retriever Retriever, logger *slog.Logger, validator *validator.Validator) ImportExportService {
	return &importExportService{
		repo:      repo,
		retriever: retriever,
		logger:    logger,
		validator: validator,
	}
}

// ===== IMPORT OPERATIONS =====

func (s *importExportService) ImportQuestionsFromFile(ctx context.Context, reader io.Reader, filename, defaultTopic string) (*models.ImportSummary, error) {
	s.logger.Info("Starting question import", "filename", filename, "default_topic", defaultTopic)

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".csv":
		return s.ImportQuestionsFromCSV(ctx, reader, defaultTopic)
	case ".xlsx":
		return s.ImportQuestionsFromExcel(ctx, reader, defaultTopic)
	default:
		return nil, NewValidationError("file", "unsupported file format", ext)
	}
}

func (s *importExportService) ImportQuestionsFromCSV(ctx context.Context, reader io.Reader, defaultTopic string) (*models.ImportSummary, error) {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	return s.importRows(ctx, records, defaultTopic)
}

func (s *importExportService) ImportQuestionsFromExcel(ctx context.Context, reader io.Reader, defaultTopic string) (*models.ImportSummary, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, NewValidationError("file", "Excel file has no sheets", nil)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read Excel rows: %w", err)
	}

	return s.importRows(ctx, rows, defaultTopic)
}

func (s *importExportService) importRows(ctx context.Context, rows [][]string, defaultTopic string) (*models.ImportSummary, error) {
	start := time.Now()

	if len(rows) < 2 {
		return nil, NewValidationError("file", "file must have a header row and at least one data row", len(rows))
	}

	headerMap := make(map[string]int)
	for i, header := range rows[0] {
		headerMap[strings.ToLower(strings.TrimSpace(header))] = i
	}
	for _, col := range []string{"type", "text", "correct_answer"} {
		if _, ok := headerMap[col]; !ok {
			return nil, NewValidationError("headers", fmt.Sprintf("missing required column: %s", col), col)
		}
	}

	summary := &models.ImportSummary{TotalRows: len(rows) - 1}

	var questions []*models.Question
	rowOf := make(map[*models.Question]int)
	for i, row := range rows[1:] {
		rowNum := i + 2
		if isBlankRow(row) {
			summary.TotalRows--
			continue
		}
		summary.ProcessedRows++

		question, rowErrors := s.parseRow(row, headerMap, rowNum, defaultTopic)
		if len(rowErrors) > 0 {
			summary.Errors = append(summary.Errors, rowErrors...)
			summary.ErrorCount++
			continue
		}
		questions = append(questions, question)
		rowOf[question] = rowNum
	}

	questions, topicErrors, err := s.rejectUnknownTopics(ctx, questions, rowOf)
	if err != nil {
		return nil, err
	}
	summary.Errors = append(summary.Errors, topicErrors...)
	summary.ErrorCount += len(topicErrors)

	if len(questions) > 0 {
		if err := s.saveImportedQuestions(ctx, questions); err != nil {
			return nil, err
		}
	}

	for _, q := range questions {
		summary.CreatedQuestions = append(summary.CreatedQuestions, q.ID)
	}
	summary.SuccessCount = len(questions)
	summary.ProcessingTime = time.Since(start)

	switch {
	case summary.SuccessCount == 0:
		summary.Status = models.ImportValidationFailed
	case summary.ErrorCount > 0:
		summary.Status = models.ImportPartial
	default:
		summary.Status = models.ImportCompleted
	}

	s.logger.Info("Question import completed",
		"total_rows", summary.TotalRows,
		"success_count", summary.SuccessCount,
		"error_count", summary.ErrorCount,
		"status", summary.Status)

	return summary, nil
}

func (s *importExportService) parseRow(record []string, headerMap map[string]int, rowNum int, defaultTopic string) (*models.Question, []models.ImportValidationError) {
	getColumn := func(name string) string {
		if index, exists := headerMap[name]; exists && index < len(record) {
			return strings.TrimSpace(record[index])
		}
		return ""
	}
	rowError := func(column, message, value, code string) []models.ImportValidationError {
		return []models.ImportValidationError{{Row: rowNum, Column: column, Message: message, Value: value, Code: code}}
	}

	topicID := getColumn("topic_id")
	if topicID == "" {
		topicID = defaultTopic
	}
	if topicID == "" {
		return nil, rowError("topic_id", "required field", "", "REQUIRED")
	}

	rawType := getColumn("type")
	questionType, ok := parseQuestionType(rawType)
	if !ok {
		return nil, rowError("type", "unsupported question type", rawType, "INVALID_TYPE")
	}

	text := getColumn("text")
	if text == "" {
		return nil, rowError("text", "required field", "", "REQUIRED")
	}

	rawAnswer := getColumn("correct_answer")
	if rawAnswer == "" {
		return nil, rowError("correct_answer", "required field", "", "REQUIRED")
	}

	id := getColumn("id")
	if id == "" {
		id = uuid.New().String()
	}

	question := &models.Question{
		ID:                id,
		TopicID:           topicID,
		Text:              text,
		Type:              questionType,
		Options:           splitList(getColumn("options")),
		CorrectAnswer:     models.ParseAnswer(rawAnswer),
		SolutionSteps:     splitList(getColumn("solution_steps")),
		SyllabusReference: getColumn("syllabus_reference"),
		Difficulty:        models.DifficultyExamRealistic,
		Source:            models.SourceImported,
		CreatedAt:         time.Now(),
	}

	if err := s.validator.Question().ValidateQuestion(question); err != nil {
		return nil, rowError("question", err.Error(), text, "INVALID_QUESTION")
	}

	return question, nil
}

// rejectUnknownTopics drops questions whose topic has no record; dynamic topics pass
func (s *importExportService) rejectUnknownTopics(ctx context.Context, questions []*models.Question, rowOf map[*models.Question]int) ([]*models.Question, []models.ImportValidationError, error) {
	var lookup []string
	for _, id := range uniqueTopicIDs(questions) {
		if !strings.HasPrefix(id, DynamicTopicPrefix) {
			lookup = append(lookup, id)
		}
	}
	if len(lookup) == 0 {
		return questions, nil, nil
	}

	missing, err := s.repo.Topic().FindMissing(ctx, lookup)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check topics: %w", err)
	}
	if len(missing) == 0 {
		return questions, nil, nil
	}

	unknown := make(map[string]bool, len(missing))
	for _, id := range missing {
		unknown[id] = true
	}

	var kept []*models.Question
	var errs []models.ImportValidationError
	for _, q := range questions {
		if unknown[q.TopicID] {
			errs = append(errs, models.ImportValidationError{
				Row: rowOf[q], Column: "topic_id", Message: "unknown topic", Value: q.TopicID, Code: "UNKNOWN_TOPIC",
			})
			continue
		}
		kept = append(kept, q)
	}
	return kept, errs, nil
}

func (s *importExportService) saveImportedQuestions(ctx context.Context, questions []*models.Question) error {
	if err := s.repo.Question().UpsertBatch(ctx, questions); err != nil {
		return fmt.Errorf("failed to save questions: %w", err)
	}

	if s.retriever == nil {
		return nil
	}
	for _, q := range questions {
		if err := s.retriever.IndexQuestion(ctx, q); err != nil {
			s.logger.Warn("Failed to index imported question", "question_id", q.ID, "error", err)
		}
	}
	return nil
}

// ===== EXPORT OPERATIONS =====

// ExportTestToExcel writes the question paper and the answer key as two sheets
func (s *importExportService) ExportTestToExcel(ctx context.Context, testID, requesterID string) ([]byte, error) {
	test, err := s.repo.MockTest().GetByIDWithQuestions(ctx, testID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}
	if test.RequesterID != requesterID {
		return nil, ErrSessionAccessDenied
	}

	f := excelize.NewFile()
	defer f.Close()

	const paperSheet, keySheet = "Questions", "Answer Key"
	if err := f.SetSheetName("Sheet1", paperSheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	if _, err := f.NewSheet(keySheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}

	paper := [][]interface{}{{"#", "Topic", "Type", "Question", "Options", "Points"}}
	key := [][]interface{}{{"#", "Correct Answer", "Solution Steps", "Syllabus Reference"}}
	for _, link := range test.OrderedLinks() {
		q := link.Question
		if q == nil {
			continue
		}
		paper = append(paper, []interface{}{
			link.Position, q.TopicID, string(q.Type), q.Text, strings.Join(q.Options, listSeparator), link.Points,
		})
		key = append(key, []interface{}{
			link.Position, q.CorrectAnswer.Raw(), strings.Join(q.SolutionSteps, listSeparator), q.SyllabusReference,
		})
	}

	if err := writeSheet(f, paperSheet, paper); err != nil {
		return nil, err
	}
	if err := writeSheet(f, keySheet, key); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	s.logger.Info("Exported test", "test_id", testID, "questions", len(paper)-1)
	return buf.Bytes(), nil
}

// ===== HELPER FUNCTIONS =====

func writeSheet(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", i+1, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+1, sheet, err)
		}
	}
	return nil
}

func parseQuestionType(raw string) (models.QuestionType, bool) {
	switch strings.ToLower(strings.NewReplacer("_", "", " ", "", "-", "").Replace(raw)) {
	case "multiplechoice", "mc", "mcq":
		return models.MultipleChoice, true
	case "shortanswer", "short":
		return models.ShortAnswer, true
	case "numerical", "numeric", "number":
		return models.Numerical, true
	}
	return "", false
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, listSeparator) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func uniqueTopicIDs(questions []*models.Question) []string {
	ids := make([]string, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.TopicID)
	}
	return UniqueTopics(ids)
}

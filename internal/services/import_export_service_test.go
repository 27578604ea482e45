package services

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/SAP-F-2025/mocktest-service/internal/models"
	"github.com/SAP-F-2025/mocktest-service/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newImportFixture() (*memoryRepository, *bankRetriever, ImportExportService) {
	repo := newMemoryRepository()
	repo.addTopic("algebra", "Algebra")
	retriever := &bankRetriever{repo: repo}
	return repo, retriever, NewImportExportService(repo, retriever, discardLogger(), validator.New())
}

func TestImportQuestionsFromCSV(t *testing.T) {
	repo, retriever, svc := newImportFixture()

	csvData := strings.Join([]string{
		"id,topic_id,type,text,options,correct_answer,solution_steps,syllabus_reference",
		`mc-1,algebra,MultipleChoice,Pick the primes,2|3|4,"[""2"",""3""]",2 is prime|3 is prime,Primes`,
		`num-1,,numerical,2 + 2,,4,,`,
		`bad-1,algebra,Essay,Describe,,x,,`,
		`bad-2,algebra,MultipleChoice,One option,only,only,,`,
		`bad-3,optics,ShortAnswer,What is light?,,a wave,,`,
		`,,,,,,,`,
	}, "\n")

	summary, err := svc.ImportQuestionsFromFile(context.Background(), strings.NewReader(csvData), "bank.csv", "algebra")
	require.NoError(t, err)

	assert.Equal(t, models.ImportPartial, summary.Status)
	assert.Equal(t, 5, summary.TotalRows, "blank rows are ignored")
	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 3, summary.ErrorCount)
	assert.Equal(t, []string{"mc-1", "num-1"}, summary.CreatedQuestions)

	codes := map[string]int{}
	for _, e := range summary.Errors {
		codes[e.Code] = e.Row
	}
	assert.Equal(t, 4, codes["INVALID_TYPE"])
	assert.Equal(t, 5, codes["INVALID_QUESTION"])
	assert.Equal(t, 6, codes["UNKNOWN_TOPIC"])

	mc := repo.store.questions["mc-1"]
	require.NotNil(t, mc)
	assert.Equal(t, models.SetAnswer("2", "3"), mc.CorrectAnswer)
	assert.Equal(t, []string{"2", "3", "4"}, []string(mc.Options))
	assert.Equal(t, []string{"2 is prime", "3 is prime"}, []string(mc.SolutionSteps))
	assert.Equal(t, models.SourceImported, mc.Source)
	assert.Equal(t, models.DifficultyExamRealistic, mc.Difficulty)

	num := repo.store.questions["num-1"]
	require.NotNil(t, num)
	assert.Equal(t, "algebra", num.TopicID, "default topic fills blanks")
	assert.Equal(t, models.Numerical, num.Type)

	assert.ElementsMatch(t, []string{"mc-1", "num-1"}, retriever.indexed)
}

func TestImportQuestionsFromExcel(t *testing.T) {
	repo, _, svc := newImportFixture()

	f := excelize.NewFile()
	rows := [][]interface{}{
		{"topic_id", "type", "text", "options", "correct_answer"},
		{"algebra", "ShortAnswer", "Name the variable", "", "x"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	summary, err := svc.ImportQuestionsFromFile(context.Background(), &buf, "bank.xlsx", "")
	require.NoError(t, err)
	assert.Equal(t, models.ImportCompleted, summary.Status)
	require.Len(t, summary.CreatedQuestions, 1)
	assert.Equal(t, "Name the variable", repo.store.questions[summary.CreatedQuestions[0]].Text)
}

func TestImportQuestions_RejectsBadFiles(t *testing.T) {
	_, _, svc := newImportFixture()
	ctx := context.Background()

	_, err := svc.ImportQuestionsFromFile(ctx, strings.NewReader("x"), "bank.pdf", "")
	assert.True(t, IsValidation(err))

	_, err = svc.ImportQuestionsFromCSV(ctx, strings.NewReader("topic_id,text\nalgebra,hi"), "")
	assert.True(t, IsValidation(err), "missing required columns")

	summary, err := svc.ImportQuestionsFromCSV(ctx, strings.NewReader("type,text,correct_answer\nEssay,hi,x"), "algebra")
	require.NoError(t, err)
	assert.Equal(t, models.ImportValidationFailed, summary.Status)
}

func TestExportTestToExcel(t *testing.T) {
	repo, _, svc := newImportFixture()
	multi := bankQuestion("m1", "algebra")
	multi.Type = models.MultipleChoice
	multi.Options = []string{"a", "b"}
	multi.CorrectAnswer = models.SetAnswer("a", "b")
	test := seedTest(repo, bankQuestion("q1", "algebra"), multi)
	ctx := context.Background()

	_, err := svc.ExportTestToExcel(ctx, test.ID, "someone-else")
	assert.ErrorIs(t, err, ErrSessionAccessDenied)

	data, err := svc.ExportTestToExcel(ctx, test.ID, "teacher-1")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	paper, err := f.GetRows("Questions")
	require.NoError(t, err)
	require.Len(t, paper, 3)
	assert.Equal(t, "Question q1", paper[1][3])
	assert.Equal(t, "a|b", paper[2][4])

	key, err := f.GetRows("Answer Key")
	require.NoError(t, err)
	require.Len(t, key, 3)
	assert.Equal(t, `["a","b"]`, key[2][1])
}

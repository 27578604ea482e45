package handlers

import (
	"net/http"
	"strings"

	"github.com/SAP-F-2025/mocktest-service/internal/models"
	"github.com/SAP-F-2025/mocktest-service/internal/services"
	"github.com/SAP-F-2025/mocktest-service/internal/utils"
	"github.com/gin-gonic/gin"
)

// maxImportSize bounds an uploaded question file
const maxImportSize = 10 << 20

type QuestionHandler struct {
	BaseHandler
	importExport services.ImportExportService
}

func NewQuestionHandler(importExport services.ImportExportService, logger utils.Logger) *QuestionHandler {
	return &QuestionHandler{
		BaseHandler:  NewBaseHandler(logger, "question_handler"),
		importExport: importExport,
	}
}

// ImportQuestions loads questions into the bank from a CSV or Excel upload
// @Summary Import questions
// @Description Rows that fail validation are reported and skipped; valid rows are saved
// @Tags questions
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or XLSX file"
// @Param topic_id formData string false "Topic for rows without one"
// @Success 201 {object} models.ImportSummary
// @Success 207 {object} models.ImportSummary
// @Failure 422 {object} models.ImportSummary
// @Router /questions/import [post]
func (h *QuestionHandler) ImportQuestions(c *gin.Context) {
	h.LogRequest(c, "Importing questions")

	if _, ok := h.requireUser(c); !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "A file upload is required", err)
		return
	}
	if fileHeader.Size > maxImportSize {
		h.RespondWithError(c, http.StatusRequestEntityTooLarge, "Import file is too large", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Unable to read uploaded file", err)
		return
	}
	defer file.Close()

	op := h.trace(c, "import_questions")
	summary, err := h.importExport.ImportQuestionsFromFile(
		c.Request.Context(), file, fileHeader.Filename, strings.TrimSpace(c.PostForm("topic_id")),
	)
	op.LogResult(fileHeader.Filename, "question_import", err)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	switch summary.Status {
	case models.ImportCompleted:
		c.JSON(http.StatusCreated, summary)
	case models.ImportPartial:
		c.JSON(http.StatusMultiStatus, summary)
	default:
		c.JSON(http.StatusUnprocessableEntity, summary)
	}
}

package handlers

import (
	"fmt"
	"net/http"

	"github.com/SAP-F-2025/mocktest-service/internal/models"
	"github.com/SAP-F-2025/mocktest-service/internal/services"
	"github.com/SAP-F-2025/mocktest-service/internal/utils"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type MockTestHandler struct {
	BaseHandler
	configValidator services.ConfigValidator
	assembler       services.TestAssembler
	importExport    services.ImportExportService
}

func NewMockTestHandler(
	configValidator services.ConfigValidator,
	assembler services.TestAssembler,
	importExport services.ImportExportService,
	logger utils.Logger,
) *MockTestHandler {
	return &MockTestHandler{
		BaseHandler:     NewBaseHandler(logger, "mock_test_handler"),
		configValidator: configValidator,
		assembler:       assembler,
		importExport:    importExport,
	}
}

// ValidateConfiguration checks a configuration without generating anything
// @Summary Validate test configuration
// @Tags tests
// @Accept json
// @Produce json
// @Param config body models.TestConfiguration true "Test configuration"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /tests/validate [post]
func (h *MockTestHandler) ValidateConfiguration(c *gin.Context) {
	h.LogRequest(c, "Validating test configuration")

	var cfg models.TestConfiguration
	if !bindJSON(c, &cfg) {
		return
	}

	op := h.trace(c, "validate_configuration")
	err := h.configValidator.Validate(c.Request.Context(), &cfg)
	op.LogResult("", "test_configuration", err)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Configuration is valid", gin.H{
		"valid":           true,
		"total_questions": cfg.TotalRequested(),
	})
}

// GenerateTests assembles TestCount disjoint mock tests
// @Summary Generate mock tests
// @Tags tests
// @Accept json
// @Produce json
// @Param config body models.TestConfiguration true "Test configuration"
// @Success 201 {object} services.GenerateTestsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /tests/generate [post]
func (h *MockTestHandler) GenerateTests(c *gin.Context) {
	h.LogRequest(c, "Generating mock tests")

	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	var cfg models.TestConfiguration
	if !bindJSON(c, &cfg) {
		return
	}

	op := h.trace(c, "generate_tests")
	tests, err := h.assembler.Assemble(c.Request.Context(), &cfg, userID)
	if err != nil {
		op.LogResult("", "mock_test", err)
		h.handleServiceError(c, err)
		return
	}

	resp := services.GenerateTestsResponse{Tests: tests}
	if len(tests) > 0 {
		resp.RunID = tests[0].RunID
	}
	op.LogResult(resp.RunID, "mock_test_run", nil)

	c.JSON(http.StatusCreated, resp)
}

// ExportTest downloads a generated test and its answer key as a workbook
// @Summary Export mock test
// @Tags tests
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Mock test ID"
// @Success 200 {file} file
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /tests/{id}/export [get]
func (h *MockTestHandler) ExportTest(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	testID := ParseStringIDParam(c, "id")
	if testID == "" {
		return
	}

	op := h.trace(c, "export_test")
	data, err := h.importExport.ExportTestToExcel(c.Request.Context(), testID, userID)
	op.LogResult(testID, "mock_test", err)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=mock-test-%s.xlsx", testID))
	c.Data(http.StatusOK, xlsxContentType, data)
}

package models

type ImportStatus string

const (
	ImportCompleted        ImportStatus = "completed"
	ImportPartial          ImportStatus = "partial"
	ImportValidationFailed ImportStatus = "validation_failed"
)

// ImportValidationError describes one rejected cell or row of an import file
type ImportValidationError struct {
	Row     int    `json:"row"`
	Column  string `json:"column"`
	Message string `json:"message"`
	Value   string `json:"value"`
	Code    string `json:"code"`
}

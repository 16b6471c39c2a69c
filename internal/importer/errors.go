package importer

// Error codes returned to clients. Support staff can use the code to find
// the failing stage.
//
//	FILE001 - file exceeds the upload size limit
//	FILE002 - file type is not a spreadsheet
//	FILE003 - file content is not an xlsx workbook
//	FILE004 - workbook could not be opened
//	FMT001  - layout not recognized
//	FMT002  - layout belongs to the other import endpoint
//	FMT003  - required columns missing
//	ROW001  - no usable data rows
//	COMMIT001 - no rows supplied to commit
//	COMMIT002 - commit payload malformed
//	COMMIT003 - none of the rows reference existing records
//	AUTH001 - caller not authenticated
//	DB001   - storage failure, nothing was saved
//	ERR000  - anything else

import (
	"errors"

	"salesplan/internal/excel"
)

var (
	ErrFileTooLarge       = errors.New("file too large")
	ErrInvalidMimeType    = errors.New("file is not a spreadsheet")
	ErrInvalidSignature   = errors.New("file content is not an xlsx workbook")
	ErrInvalidWorkbook    = errors.New("workbook could not be read")
	ErrFormatUndetected   = excel.ErrFormatUndetected
	ErrWrongFormat        = errors.New("workbook format does not match this import")
	ErrMissingColumns     = excel.ErrMissingColumns
	ErrNoDataRows         = errors.New("no data rows found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNoRowsToImport     = errors.New("no rows to import")
	ErrInvalidPayload     = errors.New("invalid import payload")
	ErrSecurityValidation = errors.New("no rows passed security validation")
	ErrPersistence        = errors.New("failed to save import")
)

type UserMessage struct {
	Message string
	Action  string
	Code    string
}

type errorMapping struct {
	target error
	msg    UserMessage
}

var errorMappings = []errorMapping{
	{ErrFileTooLarge, UserMessage{"File exceeds the 10 MB upload limit", "Split the workbook or remove unused sheets", "FILE001"}},
	{ErrInvalidMimeType, UserMessage{"File is not an Excel workbook", "Upload an .xlsx file", "FILE002"}},
	{ErrInvalidSignature, UserMessage{"File content is not a valid .xlsx workbook", "Re-save the file from Excel as .xlsx", "FILE003"}},
	{ErrInvalidWorkbook, UserMessage{"Workbook could not be opened", "Re-save the file from Excel and try again", "FILE004"}},
	{ErrFormatUndetected, UserMessage{"Workbook layout was not recognized", "Use an RTL PO, HOP forecast or retail sales export", "FMT001"}},
	{ErrWrongFormat, UserMessage{"Workbook belongs to a different import", "Upload forecasts and sales through their own import", "FMT002"}},
	{ErrMissingColumns, UserMessage{"Required columns are missing", "Check the header row against the export template", "FMT003"}},
	{ErrNoDataRows, UserMessage{"No data rows were found in the workbook", "Check that the sheet contains SKU rows below the header", "ROW001"}},
	{ErrUnauthorized, UserMessage{"You must be signed in to import", "Sign in and retry the import", "AUTH001"}},
	{ErrNoRowsToImport, UserMessage{"There are no rows to import", "Preview a workbook with valid rows first", "COMMIT001"}},
	{ErrInvalidPayload, UserMessage{"Import request is malformed", "Preview the workbook again and resubmit", "COMMIT002"}},
	{ErrSecurityValidation, UserMessage{"None of the rows reference existing SKUs and retailers", "Preview the workbook again; master data may have changed", "COMMIT003"}},
	{ErrPersistence, UserMessage{"Import could not be saved; nothing was changed", "Please try again in a few moments", "DB001"}},
}

// Describe maps err to a message that is safe to show to users.
func Describe(err error) UserMessage {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.msg
		}
	}
	return UserMessage{
		Message: "An unexpected error occurred",
		Action:  "Please try again or contact support",
		Code:    "ERR000",
	}
}

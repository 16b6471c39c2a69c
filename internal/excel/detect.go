package excel

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"salesplan/internal/domain"
)

var ErrFormatUndetected = errors.New("workbook format not recognized")

// UndetectedError lists what the detector looked at before giving up.
type UndetectedError struct {
	Sheets  []string
	Headers []string
}

func (e *UndetectedError) Error() string {
	return fmt.Sprintf("workbook format not recognized (sheets: %s; headers: %s)",
		strings.Join(e.Sheets, ", "), strings.Join(e.Headers, ", "))
}

func (e *UndetectedError) Is(target error) bool {
	return target == ErrFormatUndetected
}

var poSheetPattern = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?[\s\-_]*((?:19|20)\d{2})[\s\-_]*po\b`)

var salesTokens = []string{"units sold", "qty sold", "revenue", "sales"}

// IsPOSheet reports whether a sheet name looks like "Jan 2026 PO".
func IsPOSheet(name string) bool {
	return poSheetPattern.MatchString(name)
}

// Detect classifies wb. Rules are applied in order and the first match wins:
// a month/year PO sheet anywhere, then sales headers on the first sheet, then a
// product/item first column.
func Detect(wb *Workbook) (domain.ExcelFormat, error) {
	for _, sheet := range wb.Sheets {
		if IsPOSheet(sheet.Name) {
			return domain.FormatRTLForecast, nil
		}
	}

	headers := headerTokens(wb)
	if hasToken(headers, "sku") && hasToken(headers, salesTokens...) {
		return domain.FormatRetailSales, nil
	}
	if len(headers) > 0 && (strings.Contains(headers[0], "product") || strings.Contains(headers[0], "item")) {
		return domain.FormatHOPForecast, nil
	}

	return "", &UndetectedError{Sheets: wb.SheetNames(), Headers: headers}
}

func headerTokens(wb *Workbook) []string {
	sheet, ok := wb.First()
	if !ok {
		return nil
	}
	row := sheet.Row(0)
	tokens := make([]string, 0, len(row))
	for _, cell := range row {
		if token := normalizeHeader(cell.String()); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func hasToken(tokens []string, needles ...string) bool {
	for _, token := range tokens {
		for _, needle := range needles {
			if strings.Contains(token, needle) {
				return true
			}
		}
	}
	return false
}

// Package wire converts validated rows to and from their JSON transport form.
// Months travel as ISO dates ("2026-01-01") and revenue as a decimal string.
package wire

import (
	"fmt"
	"time"

	"salesplan/internal/domain"

	"github.com/shopspring/decimal"
)

const MonthLayout = "2006-01-02"

type SerializedRow struct {
	SKUID        int64            `json:"skuId" validate:"required,gt=0"`
	RetailerID   int64            `json:"retailerId" validate:"required,gt=0"`
	SKUCode      string           `json:"skuCode,omitempty"`
	RetailerName string           `json:"retailerName,omitempty"`
	Month        string           `json:"month" validate:"required,datetime=2006-01-02"`
	Quantity     int64            `json:"quantity"`
	Revenue      *decimal.Decimal `json:"revenue,omitempty"`
	Sheet        string           `json:"sheet,omitempty"`
	RowNumber    int              `json:"rowNumber,omitempty"`
}

type SerializedIssue struct {
	Code         domain.IssueCode `json:"code"`
	Reason       string           `json:"reason"`
	Sheet        string           `json:"sheet"`
	RowNumber    int              `json:"rowNumber"`
	SKUCode      string           `json:"skuCode"`
	RetailerName string           `json:"retailerName"`
	Month        string           `json:"month"`
	Quantity     int64            `json:"quantity"`
}

type Summary struct {
	TotalRows     int                      `json:"totalRows"`
	ValidRows     int                      `json:"validRows"`
	ErrorRows     int                      `json:"errorRows"`
	WarningRows   int                      `json:"warningRows"`
	DuplicateRows int                      `json:"duplicateRows"`
	Errors        map[domain.IssueCode]int `json:"errors"`
	Warnings      map[domain.IssueCode]int `json:"warnings"`
}

type Validation struct {
	Valid    []SerializedRow   `json:"valid"`
	Errors   []SerializedIssue `json:"errors"`
	Warnings []SerializedIssue `json:"warnings"`
	Summary  Summary           `json:"summary"`
}

func SerializeRow(row domain.ResolvedRow) SerializedRow {
	return SerializedRow{
		SKUID:        row.SKUID,
		RetailerID:   row.RetailerID,
		SKUCode:      row.SKUCode,
		RetailerName: row.RetailerName,
		Month:        domain.MonthStart(row.Month).Format(MonthLayout),
		Quantity:     row.Quantity,
		Revenue:      row.Revenue,
		Sheet:        row.Sheet,
		RowNumber:    row.RowNumber,
	}
}

func SerializeRows(rows []domain.ResolvedRow) []SerializedRow {
	out := make([]SerializedRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, SerializeRow(row))
	}
	return out
}

// DeserializeRow decodes a wire row. kind is supplied by the caller because
// the entry point, not the payload, decides what a row is.
func DeserializeRow(row SerializedRow, kind domain.RecordKind) (domain.ResolvedRow, error) {
	month, err := time.Parse(MonthLayout, row.Month)
	if err != nil {
		return domain.ResolvedRow{}, fmt.Errorf("invalid month %q: %w", row.Month, err)
	}
	return domain.ResolvedRow{
		ParsedRow: domain.ParsedRow{
			Kind:         kind,
			SKUCode:      row.SKUCode,
			RetailerName: row.RetailerName,
			Month:        domain.MonthStart(month),
			Quantity:     row.Quantity,
			Revenue:      row.Revenue,
			Sheet:        row.Sheet,
			RowNumber:    row.RowNumber,
		},
		SKUID:      row.SKUID,
		RetailerID: row.RetailerID,
	}, nil
}

func DeserializeRows(rows []SerializedRow, kind domain.RecordKind) ([]domain.ResolvedRow, error) {
	out := make([]domain.ResolvedRow, 0, len(rows))
	for i, row := range rows {
		decoded, err := DeserializeRow(row, kind)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, decoded)
	}
	return out, nil
}

func SerializeIssues(issues []domain.RowIssue) []SerializedIssue {
	out := make([]SerializedIssue, 0, len(issues))
	for _, issue := range issues {
		out = append(out, SerializedIssue{
			Code:         issue.Code,
			Reason:       issue.Reason,
			Sheet:        issue.Row.Sheet,
			RowNumber:    issue.Row.RowNumber,
			SKUCode:      issue.Row.SKUCode,
			RetailerName: issue.Row.RetailerName,
			Month:        issue.Row.Month.Format(MonthLayout),
			Quantity:     issue.Row.Quantity,
		})
	}
	return out
}

func SerializeOutcome(outcome domain.ValidationOutcome) Validation {
	return Validation{
		Valid:    SerializeRows(outcome.Valid),
		Errors:   SerializeIssues(outcome.Errors),
		Warnings: SerializeIssues(outcome.Warnings),
		Summary: Summary{
			TotalRows:     outcome.Summary.TotalRows,
			ValidRows:     outcome.Summary.ValidRows,
			ErrorRows:     outcome.Summary.ErrorRows,
			WarningRows:   outcome.Summary.WarningRows,
			DuplicateRows: outcome.Summary.DuplicateRows,
			Errors:        outcome.Summary.ErrorCounts,
			Warnings:      outcome.Summary.WarningCounts,
		},
	}
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ExcelFormat string

const (
	FormatRTLForecast ExcelFormat = "RTL_FORECAST"
	FormatHOPForecast ExcelFormat = "HOP_FORECAST"
	FormatRetailSales ExcelFormat = "RETAIL_SALES"
)

// Kind reports which record family a layout produces.
func (f ExcelFormat) Kind() RecordKind {
	if f == FormatRetailSales {
		return KindSale
	}
	return KindForecast
}

func (f ExcelFormat) Valid() bool {
	switch f {
	case FormatRTLForecast, FormatHOPForecast, FormatRetailSales:
		return true
	}
	return false
}

type RecordKind string

const (
	KindForecast RecordKind = "forecast"
	KindSale     RecordKind = "sales"
)

func ParseRecordKind(raw string) (RecordKind, bool) {
	switch RecordKind(raw) {
	case KindForecast:
		return KindForecast, true
	case KindSale, "sale":
		return KindSale, true
	}
	return "", false
}

// ParsedRow is a row extracted from a sheet before master-data resolution.
type ParsedRow struct {
	Kind         RecordKind
	SKUCode      string
	RetailerName string
	Month        time.Time
	Quantity     int64
	Revenue      *decimal.Decimal
	Sheet        string
	RowNumber    int
}

// ResolvedRow is a ParsedRow whose SKU and retailer were found in master data.
type ResolvedRow struct {
	ParsedRow
	SKUID      int64
	RetailerID int64
}

func (r ResolvedRow) Key() RowKey {
	return RowKey{SKUID: r.SKUID, RetailerID: r.RetailerID, Month: MonthStart(r.Month)}
}

type RowKey struct {
	SKUID      int64
	RetailerID int64
	Month      time.Time
}

type MasterKey struct {
	ID  int64
	Key string
}

type IssueCode string

const (
	IssueUnknownSKU        IssueCode = "UnknownSku"
	IssueUnknownRetailer   IssueCode = "UnknownRetailer"
	IssueAmbiguousSKU      IssueCode = "AmbiguousSku"
	IssueAmbiguousRetailer IssueCode = "AmbiguousRetailer"
	IssueInvalidQuantity   IssueCode = "InvalidQuantity"

	IssueZeroQuantity   IssueCode = "ZeroQuantity"
	IssueFarFutureMonth IssueCode = "FarFutureMonth"
	IssueDuplicateKey   IssueCode = "DuplicateKey"
)

type RowIssue struct {
	Code   IssueCode
	Reason string
	Row    ParsedRow
}

type ValidationSummary struct {
	TotalRows     int
	ValidRows     int
	ErrorRows     int
	WarningRows   int
	DuplicateRows int
	ErrorCounts   map[IssueCode]int
	WarningCounts map[IssueCode]int
}

type ValidationOutcome struct {
	Valid    []ResolvedRow
	Errors   []RowIssue
	Warnings []RowIssue
	Summary  ValidationSummary
}

type ImportBatch struct {
	ID       uuid.UUID
	Kind     RecordKind
	ActorID  string
	RowCount int
	Skipped  int
}

type UpsertCounts struct {
	Imported int
	Updated  int
}

type CommitResult struct {
	BatchID  uuid.UUID
	Imported int
	Updated  int
	Skipped  int
}

// MonthStart truncates t to the first day of its month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

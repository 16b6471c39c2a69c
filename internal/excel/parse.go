package excel

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"salesplan/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var ErrMissingColumns = errors.New("missing required columns")

type MissingColumnsError struct {
	Format  domain.ExcelFormat
	Sheet   string
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s sheet %q: missing required columns: %s", e.Format, e.Sheet, strings.Join(e.Missing, ", "))
}

func (e *MissingColumnsError) Is(target error) bool {
	return target == ErrMissingColumns
}

type Options struct {
	// HOPRetailer names the retailer for HOP sheets without a retailer column.
	HOPRetailer string
}

// Parse extracts rows from wb using the parser for format. A sheet never
// aborts on a bad cell; unusable rows are skipped.
func Parse(format domain.ExcelFormat, wb *Workbook, opts Options) ([]domain.ParsedRow, error) {
	switch format {
	case domain.FormatRTLForecast:
		return ParseRTLForecast(wb), nil
	case domain.FormatHOPForecast:
		return ParseHOPForecast(wb, opts.HOPRetailer)
	case domain.FormatRetailSales:
		return ParseRetailSales(wb)
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

const (
	colSKU      = "sku"
	colRetailer = "retailer"
	colQuantity = "quantity"
	colRevenue  = "revenue"
	colMonth    = "month"
)

var headerAliases = map[string]string{
	"sku":           colSKU,
	"sku code":      colSKU,
	"sku #":         colSKU,
	"item sku":      colSKU,
	"product sku":   colSKU,
	"upc":           colSKU,
	"retailer":      colRetailer,
	"retailer name": colRetailer,
	"customer":      colRetailer,
	"account":       colRetailer,
	"store":         colRetailer,
	"banner":        colRetailer,
	"chain":         colRetailer,
	"qty":           colQuantity,
	"quantity":      colQuantity,
	"units":         colQuantity,
	"forecast":      colQuantity,
	"forecast qty":  colQuantity,
	"po qty":        colQuantity,
	"units sold":    colQuantity,
	"qty sold":      colQuantity,
	"revenue":       colRevenue,
	"sales":         colRevenue,
	"sales $":       colRevenue,
	"sales amount":  colRevenue,
	"net sales":     colRevenue,
	"amount":        colRevenue,
	"month":         colMonth,
	"period":        colMonth,
	"date":          colMonth,
	"sales month":   colMonth,
}

func classifyHeader(normalized string) string {
	if normalized == "" {
		return ""
	}
	if canonical, ok := headerAliases[normalized]; ok {
		return canonical
	}
	switch {
	case strings.Contains(normalized, "sku"):
		return colSKU
	case strings.Contains(normalized, "retailer"), strings.Contains(normalized, "customer"):
		return colRetailer
	case strings.Contains(normalized, "revenue"),
		strings.Contains(normalized, "sales") && strings.ContainsAny(normalized, "$€£"),
		strings.Contains(normalized, "sales amount"):
		return colRevenue
	case strings.Contains(normalized, "units"), strings.Contains(normalized, "qty"), strings.Contains(normalized, "quantity"):
		return colQuantity
	case strings.Contains(normalized, "month"), strings.Contains(normalized, "period"):
		return colMonth
	}
	return ""
}

func mapColumns(header []Cell) map[string]int {
	mapped := make(map[string]int)
	for idx, cell := range header {
		canonical := classifyHeader(normalizeHeader(cell.String()))
		if canonical == "" {
			continue
		}
		if _, exists := mapped[canonical]; !exists {
			mapped[canonical] = idx
		}
	}
	return mapped
}

func normalizeHeader(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "\ufeff")
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "_", " ")
	return strings.Join(strings.Fields(value), " ")
}

func cleanText(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func cellAt(row []Cell, idx int) Cell {
	if idx < 0 || idx >= len(row) {
		return Cell{}
	}
	return row[idx]
}

func textAt(row []Cell, idx int) string {
	return cleanText(cellAt(row, idx).String())
}

func rowIsBlank(row []Cell) bool {
	for _, cell := range row {
		if !cell.IsEmpty() {
			return false
		}
	}
	return true
}

// Quantities beyond this are treated as garbage rather than converted.
const maxQuantity = 1e15

// quantityOf returns the cell as a whole quantity. ok is false only for
// blank cells; unreadable values come back as zero.
func quantityOf(c Cell) (qty int64, ok bool) {
	switch c.Kind {
	case CellEmpty:
		return 0, false
	case CellNumber:
		return roundQuantity(c.Number), true
	case CellText:
		if n, parsed := parseNumber(c.Text); parsed {
			return roundQuantity(n), true
		}
	}
	return 0, true
}

func roundQuantity(n float64) int64 {
	if math.IsNaN(n) || math.Abs(n) > maxQuantity {
		return 0
	}
	return int64(math.Round(n))
}

func revenueOf(c Cell) *decimal.Decimal {
	var value decimal.Decimal
	switch c.Kind {
	case CellNumber:
		value = decimal.NewFromFloat(c.Number)
	case CellText:
		cleaned, negative := normalizeNumericValue(c.Text)
		parsed, err := decimal.NewFromString(cleaned)
		if err != nil {
			return nil
		}
		if negative {
			parsed = parsed.Neg()
		}
		value = parsed
	default:
		return nil
	}
	value = value.Round(2)
	return &value
}

func parseNumber(raw string) (float64, bool) {
	cleaned, negative := normalizeNumericValue(raw)
	switch cleaned {
	case "":
		return 0, false
	case "-", "–", "—":
		return 0, true
	}
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		n = -n
	}
	return n, true
}

var numericReplacer = strings.NewReplacer(",", "", "$", "", "€", "", "£", "", " ", "", "\u00a0", "")

// normalizeNumericValue strips thousands separators and currency symbols.
// Accounting negatives like "(12)" are reported through negative.
func normalizeNumericValue(raw string) (value string, negative bool) {
	value = strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "\ufeff")
	if strings.HasPrefix(value, "(") && strings.HasSuffix(value, ")") {
		value = strings.TrimSuffix(strings.TrimPrefix(value, "("), ")")
		negative = true
	}
	return numericReplacer.Replace(value), negative
}

var monthLayouts = []string{
	"2006-01-02",
	"2006-01",
	"2006/01",
	"2006/1",
	"01/2006",
	"1/2006",
	"01-2006",
	"Jan 2006",
	"January 2006",
	"Jan-2006",
	"January-2006",
	"Jan-06",
	"Jan 06",
	"Jan. 2006",
	"1/2/2006",
	"01/02/2006",
	time.RFC3339,
}

// monthOf interprets a cell as a calendar month.
func monthOf(c Cell) (time.Time, bool) {
	switch c.Kind {
	case CellDate:
		return domain.MonthStart(c.Date), true
	case CellNumber:
		return monthFromNumber(c.Number)
	case CellText:
		return monthFromText(c.Text)
	}
	return time.Time{}, false
}

func monthFromNumber(n float64) (time.Time, bool) {
	if n != math.Trunc(n) && (n < 20000 || n > 80000) {
		return time.Time{}, false
	}
	// yyyymm
	if n >= 190001 && n <= 299912 {
		whole := int(n)
		if m := whole % 100; m >= 1 && m <= 12 {
			return time.Date(whole/100, time.Month(m), 1, 0, 0, 0, 0, time.UTC), true
		}
		return time.Time{}, false
	}
	// Excel serial dates between 1954 and 2119.
	if n >= 20000 && n <= 80000 {
		t, err := excelize.ExcelDateToTime(n, false)
		if err != nil {
			return time.Time{}, false
		}
		return domain.MonthStart(t), true
	}
	return time.Time{}, false
}

func monthFromText(raw string) (time.Time, bool) {
	value := cleanText(raw)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return domain.MonthStart(t), true
		}
	}
	if t, ok := monthFromName(value); ok {
		return t, true
	}
	return time.Time{}, false
}

var monthNamePattern = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?[\s\-_/]*((?:19|20)\d{2})(?:\D|$)`)

var monthPrefixes = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// monthFromName finds a "<month name> <yyyy>" pair anywhere in s.
func monthFromName(s string) (time.Time, bool) {
	match := monthNamePattern.FindStringSubmatch(s)
	if match == nil {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(match[2])
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(year, monthPrefixes[strings.ToLower(match[1])], 1, 0, 0, 0, 0, time.UTC), true
}

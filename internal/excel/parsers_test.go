package excel

import (
	"errors"
	"testing"
	"time"

	"salesplan/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func TestParseRTLForecastWideLayout(t *testing.T) {
	wb := loadFixture(t,
		sheetFixture{name: "Read Me", rows: [][]any{{"SKU", "Walmart"}, {"A-1", 99}}},
		sheetFixture{name: "Jan 2026 PO", rows: [][]any{
			{"Vendor: Acme"},
			{},
			{"SKU", "Description", "Walmart", "Target", "Total"},
			{"A-1", "Widget", 120, nil, 120},
			{"A-2", "Gadget", "1,500", "n/a", 1500},
			{nil, "Subtotal", 1620, 0, 1620},
		}},
		sheetFixture{name: "Feb 2026 PO", rows: [][]any{
			{"SKU", "Walmart"},
			{10042, 7},
		}},
	)

	rows := ParseRTLForecast(wb)
	require.Len(t, rows, 4)

	assert.Equal(t, domain.ParsedRow{
		Kind: domain.KindForecast, SKUCode: "A-1", RetailerName: "Walmart",
		Month: month(2026, time.January), Quantity: 120, Sheet: "Jan 2026 PO", RowNumber: 4,
	}, rows[0])

	assert.Equal(t, "A-2", rows[1].SKUCode)
	assert.Equal(t, "Walmart", rows[1].RetailerName)
	assert.Equal(t, int64(1500), rows[1].Quantity)

	// Non-numeric quantity text is kept as zero so validation can flag it.
	assert.Equal(t, "Target", rows[2].RetailerName)
	assert.Equal(t, int64(0), rows[2].Quantity)
	assert.Equal(t, 5, rows[2].RowNumber)

	assert.Equal(t, "10042", rows[3].SKUCode)
	assert.Equal(t, month(2026, time.February), rows[3].Month)
	assert.Equal(t, 2, rows[3].RowNumber)
}

func TestParseRTLForecastLongLayout(t *testing.T) {
	wb := loadFixture(t, sheetFixture{name: "March 2026 PO", rows: [][]any{
		{"SKU", "Retailer", "PO Qty", "Amount"},
		{"A-1", "Walmart", 10, 99.5},
		{"A-1", "Target", nil, 10},
		{"A-2", "", 5, 1},
		{"A-3", "Target", 4.6, "$1,200.10"},
	}})

	rows := ParseRTLForecast(wb)
	require.Len(t, rows, 2)
	assert.Equal(t, "Walmart", rows[0].RetailerName)
	require.NotNil(t, rows[0].Revenue)
	assert.Equal(t, "99.5", rows[0].Revenue.String())
	assert.Equal(t, month(2026, time.March), rows[0].Month)

	assert.Equal(t, "A-3", rows[1].SKUCode)
	assert.Equal(t, int64(5), rows[1].Quantity)
	assert.Equal(t, "1200.1", rows[1].Revenue.String())
	assert.Equal(t, 5, rows[1].RowNumber)
}

func TestParseRTLForecastSheetWithoutHeader(t *testing.T) {
	wb := loadFixture(t, sheetFixture{name: "Apr 2026 PO", rows: [][]any{{"nothing", "here"}, {1, 2}}})
	assert.Empty(t, ParseRTLForecast(wb))
}

func TestParseHOPForecastPivotsMonths(t *testing.T) {
	wb := loadFixture(t, sheetFixture{name: "HOP", rows: [][]any{
		{"Product", "Description", "Jan 2026", "Feb-26", "2026-03", "Total"},
		{"P-100", "Blue widget", 10, nil, "0", 10},
		{"", "orphan", 5, 5, 5, 15},
		{"P-200", "Red widget", "abc", 3, 4, 7},
	}})

	rows, err := ParseHOPForecast(wb, "HOP Distribution")
	require.NoError(t, err)
	require.Len(t, rows, 5)

	assert.Equal(t, domain.ParsedRow{
		Kind: domain.KindForecast, SKUCode: "P-100", RetailerName: "HOP Distribution",
		Month: month(2026, time.January), Quantity: 10, Sheet: "HOP", RowNumber: 2,
	}, rows[0])
	assert.Equal(t, month(2026, time.March), rows[1].Month)
	assert.Equal(t, int64(0), rows[1].Quantity)

	assert.Equal(t, "P-200", rows[2].SKUCode)
	assert.Equal(t, int64(0), rows[2].Quantity)
	assert.Equal(t, month(2026, time.February), rows[3].Month)
	assert.Equal(t, int64(4), rows[4].Quantity)
	assert.Equal(t, 4, rows[4].RowNumber)
}

func TestParseHOPForecastRetailerColumn(t *testing.T) {
	wb := loadFixture(t, sheetFixture{name: "HOP", rows: [][]any{
		{"Item", "Customer", "Jan 2026"},
		{"P-1", "Costco", 8},
		{"P-2", nil, 9},
	}})

	rows, err := ParseHOPForecast(wb, "HOP")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Costco", rows[0].RetailerName)
	assert.Equal(t, "HOP", rows[1].RetailerName)
}

func TestParseHOPForecastWithoutMonthColumns(t *testing.T) {
	wb := loadFixture(t, sheetFixture{name: "HOP", rows: [][]any{{"Product", "Notes"}, {"P-1", "x"}}})

	_, err := ParseHOPForecast(wb, "HOP")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumns))
}

func TestParseRetailSales(t *testing.T) {
	wb := loadFixture(t, sheetFixture{name: "Sales", rows: [][]any{
		{"SKU", "Retailer", "Month", "Units Sold", "Revenue"},
		{"A-1", "  Walmart  Supercenter ", "Jan 2026", 12, "1,234.567"},
		{"A-2", "Target", "not a month", 3, 10},
		{},
		{"A-3", "Target", time.Date(2026, time.February, 14, 0, 0, 0, 0, time.UTC), 4, nil},
		{"A-4", "Target", "2026-02", nil, 50},
	}})

	rows, err := ParseRetailSales(wb)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, domain.KindSale, first.Kind)
	assert.Equal(t, "Walmart Supercenter", first.RetailerName)
	assert.Equal(t, month(2026, time.January), first.Month)
	require.NotNil(t, first.Revenue)
	assert.Equal(t, "1234.57", first.Revenue.String())

	assert.Equal(t, "A-3", rows[1].SKUCode)
	assert.Equal(t, month(2026, time.February), rows[1].Month)
	assert.Nil(t, rows[1].Revenue)
	assert.Equal(t, 5, rows[1].RowNumber)
}

func TestParseRetailSalesMissingColumns(t *testing.T) {
	wb := loadFixture(t, sheetFixture{name: "Sales", rows: [][]any{{"SKU", "Units Sold"}}})

	_, err := ParseRetailSales(wb)
	var missing *MissingColumnsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"retailer", "month"}, missing.Missing)
}

func TestParseEmptySheetReturnsNoRows(t *testing.T) {
	wb := loadFixture(t, sheetFixture{name: "Sales", rows: [][]any{{"SKU", "Retailer", "Month", "Units Sold"}}})

	rows, err := Parse(domain.FormatRetailSales, wb, Options{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

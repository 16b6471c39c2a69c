package wire

import (
	"encoding/json"
	"testing"
	"time"

	"salesplan/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeRowEncodesMonthAsISODate(t *testing.T) {
	revenue := decimal.RequireFromString("1234.50")
	row := domain.ResolvedRow{
		ParsedRow: domain.ParsedRow{
			Kind: domain.KindSale, SKUCode: "A-1", RetailerName: "Walmart",
			Month:    time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
			Quantity: 12, Revenue: &revenue, Sheet: "Sales", RowNumber: 7,
		},
		SKUID: 3, RetailerID: 9,
	}

	payload, err := json.Marshal(SerializeRow(row))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"skuId": 3, "retailerId": 9, "skuCode": "A-1", "retailerName": "Walmart",
		"month": "2026-03-01", "quantity": 12, "revenue": "1234.5",
		"sheet": "Sales", "rowNumber": 7
	}`, string(payload))

	back, err := DeserializeRow(SerializeRow(row), domain.KindSale)
	require.NoError(t, err)
	assert.Equal(t, row.Key(), back.Key())
	assert.True(t, back.Revenue.Equal(revenue))
}

func TestDeserializeRowsRejectsBadMonth(t *testing.T) {
	_, err := DeserializeRows([]SerializedRow{
		{SKUID: 1, RetailerID: 1, Month: "2026-01-01"},
		{SKUID: 1, RetailerID: 1, Month: "January"},
	}, domain.KindForecast)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestSerializeOutcomeKeepsEmptyListsAsArrays(t *testing.T) {
	payload, err := json.Marshal(SerializeOutcome(domain.ValidationOutcome{}))
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"valid":[]`)
	assert.Contains(t, string(payload), `"errors":[]`)
}

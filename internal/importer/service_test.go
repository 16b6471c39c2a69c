package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"salesplan/internal/domain"
	"salesplan/internal/validation"
	"salesplan/internal/wire"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(store Store) *Service {
	return New(store, nil, Options{
		HOPRetailer: "Walmart",
		Validation: validation.Options{
			Now: func() time.Time { return time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC) },
		},
	})
}

func rtlWorkbook(t *testing.T) []byte {
	return workbookBytes(t, "Jan 2026 PO", [][]any{
		{"SKU", "Walmart", "Target", "Costco"},
		{"A-1", 10, 5, 1},
		{"A-2", 0, nil, nil},
		{"B-9", 3, nil, nil},
	})
}

func salesWorkbook(t *testing.T) []byte {
	return workbookBytes(t, "Sales", [][]any{
		{"SKU", "Retailer", "Month", "Units Sold", "Revenue"},
		{"A-1", "Walmart", "2026-01", 12, 120.5},
		{"A-2", "Target", "2026-01", 4, 40},
	})
}

func TestPreviewForecast(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)

	result, err := svc.PreviewForecast(context.Background(), xlsxUpload(rtlWorkbook(t)))
	require.NoError(t, err)

	assert.Equal(t, domain.FormatRTLForecast, result.Format)
	assert.Equal(t, 5, result.Outcome.Summary.TotalRows)
	assert.Equal(t, 3, result.Outcome.Summary.ValidRows)
	assert.Equal(t, 2, result.Outcome.Summary.ErrorRows)
	assert.Equal(t, 1, result.Outcome.Summary.WarningCounts[domain.IssueZeroQuantity])

	require.Len(t, result.PreviewData, 3)
	assert.Equal(t, "2026-01-01", result.PreviewData[0].Month)
	assert.Equal(t, int64(1), result.PreviewData[0].SKUID)
	assert.Equal(t, int64(10), result.PreviewData[0].RetailerID)

	assert.Empty(t, store.records)
	assert.Empty(t, store.batches)
}

func TestPreviewRejectsOtherFamilyBeforeParsing(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)

	_, err := svc.PreviewForecast(context.Background(), xlsxUpload(salesWorkbook(t)))
	require.ErrorIs(t, err, ErrWrongFormat)
	assert.Zero(t, store.listCalls)

	_, err = svc.PreviewSales(context.Background(), xlsxUpload(rtlWorkbook(t)))
	require.ErrorIs(t, err, ErrWrongFormat)
}

func TestPreviewSales(t *testing.T) {
	result, err := newTestService(newMemoryStore()).PreviewSales(context.Background(), xlsxUpload(salesWorkbook(t)))
	require.NoError(t, err)
	assert.Equal(t, domain.FormatRetailSales, result.Format)
	require.Len(t, result.Validation.Valid, 2)
	require.NotNil(t, result.Validation.Valid[0].Revenue)
	assert.Equal(t, "120.5", result.Validation.Valid[0].Revenue.String())
}

func TestPreviewFileChecks(t *testing.T) {
	svc := newTestService(newMemoryStore())
	ctx := context.Background()

	spoofed := xlsxUpload([]byte("SKU,Retailer\nA-1,Walmart\n"))
	_, err := svc.PreviewForecast(ctx, spoofed)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	csv := Upload{FileName: "forecast.csv", ContentType: "text/csv", Data: rtlWorkbook(t)}
	_, err = svc.PreviewForecast(ctx, csv)
	assert.ErrorIs(t, err, ErrInvalidMimeType)

	broken := xlsxUpload(append([]byte{0x50, 0x4B, 0x03, 0x04}, bytes.Repeat([]byte{0}, 64)...))
	_, err = svc.PreviewForecast(ctx, broken)
	assert.ErrorIs(t, err, ErrInvalidWorkbook)

	undetected := xlsxUpload(workbookBytes(t, "Budget", [][]any{{"Region", "Amount"}, {"West", 10}}))
	_, err = svc.PreviewForecast(ctx, undetected)
	assert.ErrorIs(t, err, ErrFormatUndetected)

	headerOnly := xlsxUpload(workbookBytes(t, "Sales", [][]any{{"SKU", "Retailer", "Month", "Units Sold"}}))
	_, err = svc.PreviewSales(ctx, headerOnly)
	assert.ErrorIs(t, err, ErrNoDataRows)

	missing := xlsxUpload(workbookBytes(t, "Sales", [][]any{{"SKU", "Units Sold"}, {"A-1", 3}}))
	_, err = svc.PreviewSales(ctx, missing)
	assert.ErrorIs(t, err, ErrMissingColumns)
}

func TestCheckUploadSizeBoundary(t *testing.T) {
	exact := make([]byte, MaxFileSize)
	copy(exact, zipSignature)
	assert.NoError(t, CheckUpload(xlsxUpload(exact), MaxFileSize))

	over := make([]byte, MaxFileSize+1)
	copy(over, zipSignature)
	assert.ErrorIs(t, CheckUpload(xlsxUpload(over), MaxFileSize), ErrFileTooLarge)

	// A configured limit can only tighten the cap.
	assert.ErrorIs(t, CheckUpload(xlsxUpload(over), 50<<20), ErrFileTooLarge)
}

func TestCheckUploadAcceptsMimeOrExtension(t *testing.T) {
	data := append([]byte{}, zipSignature...)

	assert.NoError(t, CheckUpload(Upload{FileName: "blob", ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet; charset=binary", Data: data}, 0))
	assert.NoError(t, CheckUpload(Upload{FileName: "Forecast.XLSX", ContentType: "application/octet-stream", Data: data}, 0))
	assert.ErrorIs(t, CheckUpload(Upload{FileName: "notes.txt", ContentType: "text/plain", Data: data}, 0), ErrInvalidMimeType)
}

func TestPreviewDataIsCapped(t *testing.T) {
	store := newMemoryStore()
	rows := [][]any{{"SKU", "Walmart"}}
	for i := 1; i <= 150; i++ {
		code := fmt.Sprintf("S-%d", i)
		store.skus[int64(100+i)] = code
		rows = append(rows, []any{code, i})
	}

	result, err := newTestService(store).PreviewForecast(context.Background(), xlsxUpload(workbookBytes(t, "Feb 2026 PO", rows)))
	require.NoError(t, err)
	assert.Len(t, result.Validation.Valid, 150)
	assert.Len(t, result.PreviewData, DefaultPreviewLimit)
}

func forecastRows() []wire.SerializedRow {
	return []wire.SerializedRow{
		{SKUID: 1, RetailerID: 10, Month: "2026-01-01", Quantity: 10},
		{SKUID: 2, RetailerID: 10, Month: "2026-01-01", Quantity: 4},
		{SKUID: 1, RetailerID: 11, Month: "2026-02-01", Quantity: 7},
	}
}

func TestCommitIsIdempotent(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()

	first, err := svc.CommitForecasts(ctx, forecastRows(), "planner@example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, first.Imported)
	assert.Equal(t, 0, first.Updated)
	assert.NotEqual(t, first.BatchID.String(), "00000000-0000-0000-0000-000000000000")

	second, err := svc.CommitForecasts(ctx, forecastRows(), "planner@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, 3, second.Updated)
	assert.Len(t, store.records, 3)

	// Sales with the same keys are a separate table.
	sales, err := svc.CommitSales(ctx, forecastRows(), "planner@example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, sales.Imported)
}

func TestCommitDropsRowsWithVanishedReferences(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()

	rows := forecastRows()
	delete(store.skus, 2)

	result, err := svc.CommitForecasts(ctx, rows, "planner")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.Skipped)
	for key := range store.records {
		assert.NotEqual(t, int64(2), key.key.SKUID)
	}

	_, err = svc.CommitForecasts(ctx, []wire.SerializedRow{{SKUID: 2, RetailerID: 10, Month: "2026-01-01", Quantity: 1}}, "planner")
	assert.ErrorIs(t, err, ErrSecurityValidation)
}

func TestCommitDropsNegativeQuantities(t *testing.T) {
	store := newMemoryStore()
	rows := append(forecastRows(), wire.SerializedRow{SKUID: 3, RetailerID: 10, Month: "2026-01-01", Quantity: -4})

	result, err := newTestService(store).CommitForecasts(context.Background(), rows, "planner")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Imported)
	assert.Equal(t, 1, result.Skipped)
}

func TestCommitLastRowWins(t *testing.T) {
	store := newMemoryStore()
	rows := []wire.SerializedRow{
		{SKUID: 1, RetailerID: 10, Month: "2026-01-01", Quantity: 10},
		{SKUID: 1, RetailerID: 10, Month: "2026-01-01", Quantity: 25},
	}

	result, err := newTestService(store).CommitForecasts(context.Background(), rows, "planner")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	require.Len(t, store.records, 1)
	for _, row := range store.records {
		assert.Equal(t, int64(25), row.Quantity)
	}
}

func TestCommitPreconditions(t *testing.T) {
	svc := newTestService(newMemoryStore())
	ctx := context.Background()

	_, err := svc.CommitForecasts(ctx, forecastRows(), "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.CommitForecasts(ctx, nil, "planner")
	assert.ErrorIs(t, err, ErrNoRowsToImport)

	_, err = svc.CommitForecasts(ctx, []wire.SerializedRow{{SKUID: 1, RetailerID: 10, Month: "Jan 2026"}}, "planner")
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = svc.CommitForecasts(ctx, []wire.SerializedRow{{SKUID: 0, RetailerID: 10, Month: "2026-01-01"}}, "planner")
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestCommitPersistenceFailureSavesNothing(t *testing.T) {
	store := newMemoryStore()
	store.saveErr = errors.New("deadlock detected")

	_, err := newTestService(store).CommitForecasts(context.Background(), forecastRows(), "planner")
	require.ErrorIs(t, err, ErrPersistence)
	assert.Empty(t, store.records)
	assert.Equal(t, "DB001", Describe(err).Code)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "FILE001", Describe(fmt.Errorf("%w: 11 MB", ErrFileTooLarge)).Code)
	assert.Equal(t, "FMT002", Describe(ErrWrongFormat).Code)
	assert.Equal(t, "COMMIT003", Describe(ErrSecurityValidation).Code)
	assert.Equal(t, "ERR000", Describe(errors.New("boom")).Code)
}

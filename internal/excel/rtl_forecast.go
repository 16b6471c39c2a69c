package excel

import (
	"strings"
	"time"

	"salesplan/internal/domain"
)

// The header row must appear within this many rows of the top of a PO sheet.
const rtlHeaderScanRows = 10

var rtlDescriptiveHeaders = []string{
	"description", "desc", "product", "name", "brand", "upc", "total", "item", "size", "pack", "category", "notes", "comment",
}

// ParseRTLForecast reads every "<Month> <Year> PO" sheet. The month of each
// row comes from its sheet name. Sheets either carry a retailer column (long
// layout) or one column per retailer (wide layout).
func ParseRTLForecast(wb *Workbook) []domain.ParsedRow {
	var rows []domain.ParsedRow
	for _, sheet := range wb.Sheets {
		if !IsPOSheet(sheet.Name) {
			continue
		}
		month, ok := monthFromName(sheet.Name)
		if !ok {
			continue
		}
		rows = append(rows, parseRTLSheet(sheet, month)...)
	}
	return rows
}

func parseRTLSheet(sheet Sheet, month time.Time) []domain.ParsedRow {
	headerIdx, colMap := findRTLHeader(sheet)
	if headerIdx < 0 {
		return nil
	}
	header := sheet.Row(headerIdx)
	skuIdx := colMap[colSKU]

	if retailerIdx, ok := colMap[colRetailer]; ok {
		qtyIdx, ok := colMap[colQuantity]
		if !ok {
			return nil
		}
		revenueIdx, hasRevenue := colMap[colRevenue]

		var rows []domain.ParsedRow
		for r := headerIdx + 1; r < len(sheet.Rows); r++ {
			cells := sheet.Rows[r]
			sku := textAt(cells, skuIdx)
			retailer := textAt(cells, retailerIdx)
			if sku == "" || retailer == "" {
				continue
			}
			qty, ok := quantityOf(cellAt(cells, qtyIdx))
			if !ok {
				continue
			}
			row := domain.ParsedRow{
				Kind:         domain.KindForecast,
				SKUCode:      sku,
				RetailerName: retailer,
				Month:        month,
				Quantity:     qty,
				Sheet:        sheet.Name,
				RowNumber:    r + 1,
			}
			if hasRevenue {
				row.Revenue = revenueOf(cellAt(cells, revenueIdx))
			}
			rows = append(rows, row)
		}
		return rows
	}

	retailerCols := make(map[int]string)
	for idx, cell := range header {
		if idx == skuIdx {
			continue
		}
		name := cleanText(cell.String())
		if name == "" || isRTLDescriptive(normalizeHeader(name)) {
			continue
		}
		retailerCols[idx] = name
	}

	var rows []domain.ParsedRow
	for r := headerIdx + 1; r < len(sheet.Rows); r++ {
		cells := sheet.Rows[r]
		sku := textAt(cells, skuIdx)
		if sku == "" {
			continue
		}
		for idx := range header {
			retailer, ok := retailerCols[idx]
			if !ok {
				continue
			}
			qty, ok := quantityOf(cellAt(cells, idx))
			if !ok {
				continue
			}
			rows = append(rows, domain.ParsedRow{
				Kind:         domain.KindForecast,
				SKUCode:      sku,
				RetailerName: retailer,
				Month:        month,
				Quantity:     qty,
				Sheet:        sheet.Name,
				RowNumber:    r + 1,
			})
		}
	}
	return rows
}

func findRTLHeader(sheet Sheet) (int, map[string]int) {
	for r := 0; r < len(sheet.Rows) && r < rtlHeaderScanRows; r++ {
		colMap := mapColumns(sheet.Rows[r])
		if _, ok := colMap[colSKU]; ok {
			return r, colMap
		}
	}
	return -1, nil
}

func isRTLDescriptive(normalized string) bool {
	switch classifyHeader(normalized) {
	case colSKU, colQuantity, colRevenue, colMonth:
		return true
	}
	for _, word := range rtlDescriptiveHeaders {
		if strings.Contains(normalized, word) {
			return true
		}
	}
	return false
}

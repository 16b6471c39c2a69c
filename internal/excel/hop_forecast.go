package excel

import (
	"time"

	"salesplan/internal/domain"
)

// ParseHOPForecast pivots the first sheet's product-by-month grid into one
// row per SKU and month.
func ParseHOPForecast(wb *Workbook, defaultRetailer string) ([]domain.ParsedRow, error) {
	sheet, ok := wb.First()
	if !ok {
		return nil, nil
	}
	header := sheet.Row(0)
	colMap := mapColumns(header)

	skuIdx, ok := colMap[colSKU]
	if !ok {
		skuIdx = firstNonEmpty(header)
	}
	retailerIdx, hasRetailer := colMap[colRetailer]

	type monthColumn struct {
		idx   int
		month time.Time
	}
	var months []monthColumn
	for idx, cell := range header {
		if idx == skuIdx || (hasRetailer && idx == retailerIdx) {
			continue
		}
		if month, ok := monthOf(cell); ok {
			months = append(months, monthColumn{idx: idx, month: month})
		}
	}

	var missing []string
	if skuIdx < 0 {
		missing = append(missing, "product")
	}
	if len(months) == 0 {
		missing = append(missing, "month columns")
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Format: domain.FormatHOPForecast, Sheet: sheet.Name, Missing: missing}
	}

	var rows []domain.ParsedRow
	for r := 1; r < len(sheet.Rows); r++ {
		cells := sheet.Rows[r]
		sku := textAt(cells, skuIdx)
		if sku == "" {
			continue
		}
		retailer := cleanText(defaultRetailer)
		if hasRetailer {
			if name := textAt(cells, retailerIdx); name != "" {
				retailer = name
			}
		}
		if retailer == "" {
			continue
		}
		for _, col := range months {
			qty, ok := quantityOf(cellAt(cells, col.idx))
			if !ok {
				continue
			}
			rows = append(rows, domain.ParsedRow{
				Kind:         domain.KindForecast,
				SKUCode:      sku,
				RetailerName: retailer,
				Month:        col.month,
				Quantity:     qty,
				Sheet:        sheet.Name,
				RowNumber:    r + 1,
			})
		}
	}
	return rows, nil
}

func firstNonEmpty(row []Cell) int {
	for idx, cell := range row {
		if !cell.IsEmpty() {
			return idx
		}
	}
	return -1
}

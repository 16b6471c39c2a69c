package excel

import (
	"salesplan/internal/domain"
)

// ParseRetailSales reads the first sheet as one sale per row.
func ParseRetailSales(wb *Workbook) ([]domain.ParsedRow, error) {
	sheet, ok := wb.First()
	if !ok {
		return nil, nil
	}
	colMap := mapColumns(sheet.Row(0))

	var missing []string
	for _, col := range []string{colSKU, colRetailer, colMonth, colQuantity} {
		if _, ok := colMap[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Format: domain.FormatRetailSales, Sheet: sheet.Name, Missing: missing}
	}
	revenueIdx, hasRevenue := colMap[colRevenue]

	rows := make([]domain.ParsedRow, 0, len(sheet.Rows))
	for r := 1; r < len(sheet.Rows); r++ {
		cells := sheet.Rows[r]
		if rowIsBlank(cells) {
			continue
		}
		sku := textAt(cells, colMap[colSKU])
		retailer := textAt(cells, colMap[colRetailer])
		if sku == "" || retailer == "" {
			continue
		}
		month, ok := monthOf(cellAt(cells, colMap[colMonth]))
		if !ok {
			continue
		}
		qty, ok := quantityOf(cellAt(cells, colMap[colQuantity]))
		if !ok {
			continue
		}

		row := domain.ParsedRow{
			Kind:         domain.KindSale,
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
	return rows, nil
}

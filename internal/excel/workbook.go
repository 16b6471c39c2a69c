package excel

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Uncompressed workbooks larger than this are rejected while unzipping.
const unzipSizeLimit = 256 << 20

type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
	CellDate
)

// Cell is a decoded spreadsheet value. The zero value is an empty cell.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
	Date   time.Time
}

func TextCell(s string) Cell {
	s = strings.TrimSpace(s)
	if s == "" {
		return Cell{}
	}
	return Cell{Kind: CellText, Text: s}
}

func NumberCell(n float64) Cell {
	return Cell{Kind: CellNumber, Number: n}
}

func DateCell(t time.Time) Cell {
	return Cell{Kind: CellDate, Date: t}
}

func (c Cell) IsEmpty() bool {
	return c.Kind == CellEmpty
}

// String renders the cell as plain text. Whole numbers print without a
// fractional part so numeric SKU codes survive.
func (c Cell) String() string {
	switch c.Kind {
	case CellText:
		return c.Text
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellDate:
		return c.Date.Format("2006-01-02")
	}
	return ""
}

type Sheet struct {
	Name string
	Rows [][]Cell
}

// Row returns the zero-based row i, or nil when the sheet is shorter.
func (s Sheet) Row(i int) []Cell {
	if i < 0 || i >= len(s.Rows) {
		return nil
	}
	return s.Rows[i]
}

// Workbook is an immutable, fully decoded copy of an uploaded file.
type Workbook struct {
	Sheets []Sheet
}

func (wb *Workbook) SheetNames() []string {
	names := make([]string, 0, len(wb.Sheets))
	for _, sheet := range wb.Sheets {
		names = append(names, sheet.Name)
	}
	return names
}

func (wb *Workbook) First() (Sheet, bool) {
	if wb == nil || len(wb.Sheets) == 0 {
		return Sheet{}, false
	}
	return wb.Sheets[0], true
}

// Load decodes every sheet of an xlsx payload into typed cells.
func Load(data []byte) (*Workbook, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data), excelize.Options{UnzipSizeLimit: unzipSizeLimit})
	if err != nil {
		return nil, fmt.Errorf("open excel file: %w", err)
	}
	defer file.Close()

	date1904 := false
	if props, err := file.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}
	styles := &dateStyles{file: file, cache: map[int]bool{}}

	sheets := file.GetSheetList()
	wb := &Workbook{Sheets: make([]Sheet, 0, len(sheets))}
	for _, name := range sheets {
		raw, err := file.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}

		rows := make([][]Cell, len(raw))
		for r, cols := range raw {
			cells := make([]Cell, len(cols))
			for c, value := range cols {
				if strings.TrimSpace(value) == "" {
					continue
				}
				axis, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return nil, fmt.Errorf("sheet %q: %w", name, err)
				}
				cellType, err := file.GetCellType(name, axis)
				if err != nil {
					return nil, fmt.Errorf("sheet %q cell %s: %w", name, axis, err)
				}
				dateStyled := false
				if cellType == excelize.CellTypeUnset || cellType == excelize.CellTypeNumber {
					dateStyled = styles.isDate(name, axis)
				}
				cells[c] = decodeCell(value, cellType, dateStyled, date1904)
			}
			rows[r] = cells
		}
		wb.Sheets = append(wb.Sheets, Sheet{Name: name, Rows: rows})
	}
	return wb, nil
}

// DecodeCell maps a raw cell value and its storage type to a Cell.
// Numbers carrying a date number format become dates.
func DecodeCell(raw string, cellType excelize.CellType, dateStyled bool) Cell {
	return decodeCell(raw, cellType, dateStyled, false)
}

func decodeCell(raw string, cellType excelize.CellType, dateStyled, date1904 bool) Cell {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Cell{}
	}

	switch cellType {
	case excelize.CellTypeError:
		return Cell{}
	case excelize.CellTypeBool:
		if value == "1" {
			return TextCell("TRUE")
		}
		return TextCell("FALSE")
	case excelize.CellTypeDate:
		if t, ok := parseISODate(value); ok {
			return DateCell(t)
		}
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		if n, err := strconv.ParseFloat(value, 64); err == nil {
			if dateStyled {
				if t, err := excelize.ExcelDateToTime(n, date1904); err == nil {
					return DateCell(t.UTC())
				}
			}
			return NumberCell(n)
		}
	}
	return TextCell(value)
}

func parseISODate(value string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

type dateStyles struct {
	file  *excelize.File
	cache map[int]bool
}

func (d *dateStyles) isDate(sheet, axis string) bool {
	styleID, err := d.file.GetCellStyle(sheet, axis)
	if err != nil || styleID == 0 {
		return false
	}
	if cached, ok := d.cache[styleID]; ok {
		return cached
	}
	isDate := false
	if style, err := d.file.GetStyle(styleID); err == nil && style != nil {
		isDate = isDateNumFmt(style.NumFmt, style.CustomNumFmt)
	}
	d.cache[styleID] = isDate
	return isDate
}

var numFmtLiterals = regexp.MustCompile(`"[^"]*"|\[[^\]]*\]|\\.`)

func isDateNumFmt(id int, custom *string) bool {
	if custom != nil && *custom != "" {
		code := strings.ToLower(numFmtLiterals.ReplaceAllString(*custom, ""))
		return strings.ContainsAny(code, "yd")
	}
	switch {
	case id >= 14 && id <= 17, id == 22:
		return true
	case id >= 27 && id <= 36, id >= 50 && id <= 58:
		return true
	}
	return false
}

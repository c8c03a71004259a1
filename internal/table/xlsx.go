package table

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// readXLSX reads the first sheet of a workbook. The first row is the header.
// Date-formatted numeric cells of date columns are converted with the
// workbook's date system; every other cell is returned as its formatted
// text, so a bare 2023 reads as a year rather than a serial.
func readXLSX(data []byte, isDate func(col string) bool) (grid, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return grid{}, eris.Wrap(err, "xlsx: open workbook")
	}

	if len(f.Sheets) == 0 {
		return grid{}, eris.New("xlsx: workbook has no sheets")
	}
	sheet := f.Sheets[0]

	if len(sheet.Rows) == 0 || sheet.Rows[0] == nil {
		return grid{}, eris.Errorf("xlsx: sheet %q has no header row", sheet.Name)
	}

	g := grid{header: normalizeHeader(rowToStrings(sheet.Rows[0]))}
	for _, row := range sheet.Rows[1:] {
		if row == nil {
			continue
		}
		cells := make([]any, len(row.Cells))
		for j, cell := range row.Cells {
			if cell == nil {
				continue
			}
			if j < len(g.header) && isDate(g.header[j]) && cell.Type() == xlsx.CellTypeNumeric && cell.IsTime() {
				if t, err := cell.GetTime(f.Date1904); err == nil {
					cells[j] = t
					continue
				}
			}
			cells[j] = cell.String()
		}
		g.rows = append(g.rows, cells)
	}

	return g, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell != nil {
			cells[j] = cell.String()
		}
	}
	return cells
}

package export

import (
	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/sells-group/concession-cli/internal/model"
)

const defaultExcelSheet = "Sheet1"

// writeXLSX renders one sheet per bundle section: a bold header row with
// the column names, then one row per record. No index column is written.
func writeXLSX(bundle model.Bundle) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, eris.Wrap(err, "export: create header style")
	}

	if len(bundle) == 0 {
		if err := f.SetSheetName(defaultExcelSheet, DefaultSheetName); err != nil {
			return nil, eris.Wrap(err, "export: rename default sheet")
		}
	}

	names := newSheetNamer()
	for i, sec := range bundle {
		sheet := names.next(sec.Title)
		if i == 0 {
			if err := f.SetSheetName(defaultExcelSheet, sheet); err != nil {
				return nil, eris.Wrapf(err, "export: name sheet %q", sheet)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, eris.Wrapf(err, "export: create sheet %q", sheet)
		}

		if err := writeSheet(f, sheet, sec.Table, headerStyle); err != nil {
			return nil, err
		}
		zap.L().Debug("export: wrote sheet",
			zap.String("title", sec.Title),
			zap.String("sheet", sheet),
			zap.Int("rows", sec.Table.Len()),
		)
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, eris.Wrap(err, "export: write workbook")
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, tbl model.Table, headerStyle int) error {
	if len(tbl.Columns) == 0 {
		return nil
	}

	header := make([]interface{}, len(tbl.Columns))
	for i, col := range tbl.Columns {
		header[i] = col
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return eris.Wrapf(err, "export: write header of %q", sheet)
	}
	last, err := excelize.CoordinatesToCellName(len(tbl.Columns), 1)
	if err != nil {
		return eris.Wrap(err, "export: header range")
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return eris.Wrapf(err, "export: style header of %q", sheet)
	}

	for r, rec := range tbl.Records {
		row := make([]interface{}, len(tbl.Columns))
		for c, col := range tbl.Columns {
			if v := rec[col]; v != nil {
				row[c] = cellText(v)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return eris.Wrap(err, "export: row coordinates")
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return eris.Wrapf(err, "export: write row %d of %q", r+1, sheet)
		}
	}
	return nil
}

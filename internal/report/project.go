package report

import (
	"go.uber.org/zap"

	"github.com/sells-group/concession-cli/internal/dates"
	"github.com/sells-group/concession-cli/internal/model"
)

// ProjectColumns restricts tbl to cols. Columns absent from the table
// schema are dropped and returned; requested order wins and repeated
// names are kept once. Every cell of a date column of schema is rendered
// in display form, so missing or unreadable dates become the placeholder.
// Other values are passed through unchanged.
func ProjectColumns(tbl model.Table, schema model.Schema, cols []string) (model.Table, []string) {
	var (
		kept    []string
		dropped []string
	)
	seen := make(map[string]bool, len(cols))
	for _, col := range cols {
		if seen[col] {
			continue
		}
		seen[col] = true
		if !tbl.Has(col) {
			dropped = append(dropped, col)
			continue
		}
		kept = append(kept, col)
	}

	if len(kept) == 0 {
		return model.Table{}, dropped
	}

	out := model.Table{Columns: kept, Records: make([]model.Record, 0, len(tbl.Records))}
	for _, r := range tbl.Records {
		row := make(model.Record, len(kept))
		for _, col := range kept {
			if schema.IsDate(col) {
				row[col] = dates.FormatValue(r[col])
			} else {
				row[col] = r[col]
			}
		}
		out.Records = append(out.Records, row)
	}
	return out, dropped
}

// Project builds one report section per choice of sel, titled from the
// catalog. Choices naming unknown sections are skipped; callers validate
// selections with Selection.Resolve first.
func Project(tbl model.Table, schema model.Schema, c Catalog, sel Selection) model.Bundle {
	log := zap.L().With(zap.String("component", "report"))

	bundle := make(model.Bundle, 0, len(sel))
	for _, ch := range sel {
		sec, ok := c.Lookup(ch.Section)
		if !ok {
			log.Warn("report: skipping unknown section", zap.String("section", string(ch.Section)))
			continue
		}

		projected, dropped := ProjectColumns(tbl, schema, ch.Columns)
		if len(dropped) > 0 {
			log.Debug("report: columns missing from table",
				zap.String("section", string(sec.ID)),
				zap.Strings("columns", dropped),
			)
		}
		bundle = append(bundle, model.Section{Title: sec.Title, Table: projected})
	}
	return bundle
}

// Combined merges the sections of b into one table holding every column
// once, in first-seen order.
func Combined(b model.Bundle) model.Table {
	var (
		cols []string
		rows int
	)
	seen := map[string]bool{}
	for _, s := range b {
		for _, col := range s.Table.Columns {
			if !seen[col] {
				seen[col] = true
				cols = append(cols, col)
			}
		}
		if n := len(s.Table.Records); n > rows {
			rows = n
		}
	}

	out := model.Table{Columns: cols, Records: make([]model.Record, rows)}
	for i := range out.Records {
		out.Records[i] = make(model.Record, len(cols))
	}
	for _, s := range b {
		for i, r := range s.Table.Records {
			for _, col := range s.Table.Columns {
				if _, ok := out.Records[i][col]; !ok {
					out.Records[i][col] = r[col]
				}
			}
		}
	}
	return out
}

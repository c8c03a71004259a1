// Package table loads the concession attribute workbook into records.
package table

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/concession-cli/internal/dates"
	"github.com/sells-group/concession-cli/internal/model"
	"github.com/sells-group/concession-cli/internal/textenc"
)

// Options configures the tabular loader.
type Options struct {
	Parser    dates.Parser
	Delimiter rune // CSV only; 0 sniffs ',' or ';'
}

// DefaultOptions returns day-first date parsing with delimiter sniffing.
func DefaultOptions() Options {
	return Options{Parser: dates.Default}
}

// grid is the untyped sheet content before record building.
type grid struct {
	header []string
	rows   [][]any
}

// Load reads the attribute table at path. Any failure is a *model.LoadError.
func Load(path string, schema model.Schema, opts Options) (model.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Table{}, model.NewLoadError(path, eris.Wrap(err, "table: read file"))
	}
	return LoadBytes(filepath.Base(path), data, schema, opts)
}

// LoadBytes reads an attribute table from memory. name selects the format by
// extension (.xlsx/.xlsm or .csv/.txt). Any failure is a *model.LoadError.
func LoadBytes(name string, data []byte, schema model.Schema, opts Options) (model.Table, error) {
	var (
		g   grid
		err error
	)

	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		g, err = readXLSX(data, schema.IsDate)
	case ".csv", ".txt":
		g, err = readCSV(data, opts.Delimiter)
	default:
		err = eris.Errorf("table: unsupported file type %q", filepath.Ext(name))
	}
	if err != nil {
		return model.Table{}, model.NewLoadError(name, err)
	}

	tbl := build(g, schema, opts.Parser)

	zap.L().Debug("table: loaded",
		zap.String("source", name),
		zap.Int("columns", len(tbl.Columns)),
		zap.Int("records", tbl.Len()),
	)

	return tbl, nil
}

// build turns a grid into records, coercing date columns and mapping blank
// cells to nil. Fully blank rows are dropped.
func build(g grid, schema model.Schema, parser dates.Parser) model.Table {
	isDate := make([]bool, len(g.header))
	for i, col := range g.header {
		isDate[i] = schema.IsDate(col)
	}

	tbl := model.Table{Columns: g.header}
	var badDates int

	for _, row := range g.rows {
		if blankRow(row) {
			continue
		}

		rec := make(model.Record, len(g.header))
		for i, col := range g.header {
			var raw any
			if i < len(row) {
				raw = row[i]
			}

			if isDate[i] {
				if t, ok := parser.Parse(raw); ok {
					rec[col] = t
				} else {
					if !blank(raw) {
						badDates++
					}
					rec[col] = nil
				}
				continue
			}

			rec[col] = cellValue(raw)
		}
		tbl.Records = append(tbl.Records, rec)
	}

	if badDates > 0 {
		zap.L().Debug("table: unparseable date cells set to null", zap.Int("cells", badDates))
	}

	return tbl
}

// cellValue trims text cells; blank cells become nil.
func cellValue(raw any) any {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return nil
		}
		return v
	default:
		return v
	}
}

func blank(raw any) bool {
	return cellValue(raw) == nil
}

func blankRow(row []any) bool {
	for _, v := range row {
		if !blank(v) {
			return false
		}
	}
	return true
}

// normalizeHeader NFC-normalizes column names, names empty headers
// "Unnamed: <i>" and suffixes duplicates with ".<n>".
func normalizeHeader(raw []string) []string {
	// Trailing empty header cells are formatting residue, not columns.
	end := len(raw)
	for end > 0 && strings.TrimSpace(raw[end-1]) == "" {
		end--
	}

	out := make([]string, end)
	seen := make(map[string]int, end)
	for i := 0; i < end; i++ {
		name := textenc.Normalize(raw[i])
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}

// Companies returns the distinct company values in first-appearance order.
func Companies(tbl model.Table, schema model.Schema) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, r := range tbl.Records {
		c := r.Text(schema.CompanyColumn)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
